package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maxiwhisper/transcript"
)

const waitFor = 2 * time.Second
const tick = 5 * time.Millisecond

type harness struct {
	c       *Controller
	opener  *fakeOpener
	backend *fakeBackend
	sink    *fakeSink
	notify  *fakeNotifier
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	h := &harness{
		opener:  &fakeOpener{},
		backend: newFakeBackend(),
		sink:    &fakeSink{},
		notify:  &fakeNotifier{},
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 16000
	}
	h.c = New(h.opener, h.backend, h.sink, h.notify, cfg)
	return h
}

func (h *harness) stream(t *testing.T) *fakeStream {
	t.Helper()
	select {
	case s := <-h.backend.opened:
		return s
	case <-time.After(waitFor):
		t.Fatal("backend was never opened")
		return nil
	}
}

func (h *harness) waitIncremental(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		inc, _, _ := h.sink.snapshot()
		return len(inc) >= n
	}, waitFor, tick)
}

func (h *harness) waitState(t *testing.T, want State) {
	t.Helper()
	require.Eventually(t, func() bool { return h.c.Status().State == want }, waitFor, tick)
}

func partial(text string) Event {
	return FragmentEvent{Fragment: transcript.Fragment{Text: text}}
}

func final(text string) Event {
	return FragmentEvent{Fragment: transcript.Fragment{Text: text, IsFinal: true}}
}

func TestStartConnectsAndBecomesActive(t *testing.T) {
	h := newHarness(t, Config{})

	require.True(t, h.c.Start(PushToTalk))
	st := h.c.Status()
	assert.Equal(t, Connecting, st.State)
	assert.Equal(t, PushToTalk, st.Mode)
	assert.NotEmpty(t, st.ID)

	s := h.stream(t)
	s.emit(BeginEvent{ID: "remote-1"})
	h.waitState(t, Active)

	ready, _, _ := h.notify.counts()
	assert.Equal(t, 1, ready)

	require.True(t, h.c.Stop())
	assert.Equal(t, Status{State: Idle, Mode: None}, h.c.Status())
}

func TestDictationScenario(t *testing.T) {
	h := newHarness(t, Config{})
	require.True(t, h.c.Start(PushToTalk))
	s := h.stream(t)

	s.emit(BeginEvent{ID: "r"})
	s.emit(partial("hello"))
	s.emit(final("hello world"))
	s.emit(partial("next"))
	h.waitIncremental(t, 3)

	require.True(t, h.c.Stop())

	inc, fin, emg := h.sink.snapshot()
	assert.Equal(t, []string{"hello", "hello world", "hello world next"}, inc)
	assert.Equal(t, []string{"hello world next"}, fin)
	assert.Empty(t, emg)

	_, stopped, _ := h.notify.counts()
	assert.Equal(t, 1, stopped)
}

func TestSecondStartIsNoopAndKeepsTranscript(t *testing.T) {
	h := newHarness(t, Config{})
	require.True(t, h.c.Start(PushToTalk))
	s := h.stream(t)
	first := h.c.Status()

	s.emit(BeginEvent{ID: "r"})
	s.emit(final("keep me"))
	h.waitIncremental(t, 1)

	assert.False(t, h.c.Start(Toggle))
	assert.False(t, h.c.Start(PushToTalk))
	assert.Equal(t, first.ID, h.c.Status().ID)
	assert.Equal(t, PushToTalk, h.c.Status().Mode)

	s.emit(partial("and this"))
	h.waitIncremental(t, 2)
	require.True(t, h.c.Stop())

	_, fin, _ := h.sink.snapshot()
	assert.Equal(t, []string{"keep me and this"}, fin)
	assert.Len(t, h.opener.sources, 1)
}

func TestEmptySessionWritesNothing(t *testing.T) {
	h := newHarness(t, Config{})
	require.True(t, h.c.Start(Toggle))
	s := h.stream(t)
	s.emit(BeginEvent{ID: "r"})
	h.waitState(t, Active)

	require.True(t, h.c.Stop())

	inc, fin, emg := h.sink.snapshot()
	assert.Empty(t, inc)
	assert.Empty(t, fin)
	assert.Empty(t, emg)
}

func TestStopIsBoundedWhenBackendHangs(t *testing.T) {
	h := newHarness(t, Config{StopTimeout: 100 * time.Millisecond})
	h.backend.hang = true

	require.True(t, h.c.Start(PushToTalk))
	s := h.stream(t)
	s.emit(final("partial result"))
	h.waitIncremental(t, 1)

	start := time.Now()
	require.True(t, h.c.Stop())
	assert.Less(t, time.Since(start), time.Second)

	assert.Equal(t, Idle, h.c.Status().State)
	_, fin, _ := h.sink.snapshot()
	assert.Equal(t, []string{"partial result"}, fin)
}

func TestStopWaitsForTrailingFragments(t *testing.T) {
	h := newHarness(t, Config{Tail: 20 * time.Millisecond})
	h.backend.hang = true

	require.True(t, h.c.Start(PushToTalk))
	s := h.stream(t)
	go func() {
		// Delivered after the microphone closes, before termination.
		<-h.opener.sources[0].closed
		s.emit(final("last words"))
		s.end()
	}()

	require.True(t, h.c.Stop())
	_, fin, _ := h.sink.snapshot()
	assert.Equal(t, []string{"last words"}, fin)
}

func TestErrorWhileStoppingSavesBoth(t *testing.T) {
	h := newHarness(t, Config{})
	h.backend.hang = true

	require.True(t, h.c.Start(PushToTalk))
	s := h.stream(t)
	s.emit(final("words"))
	h.waitIncremental(t, 1)

	stopped := make(chan bool, 1)
	go func() { stopped <- h.c.Stop() }()
	h.waitState(t, Stopping)
	s.emit(ErrorEvent{Err: errBoom})

	select {
	case ok := <-stopped:
		assert.True(t, ok)
	case <-time.After(waitFor):
		t.Fatal("Stop did not return")
	}

	_, fin, emg := h.sink.snapshot()
	assert.Equal(t, []string{"words"}, fin)
	assert.Equal(t, []string{"words"}, emg)
	assert.Equal(t, Idle, h.c.Status().State)

	_, stoppedN, failed := h.notify.counts()
	assert.Equal(t, 1, stoppedN)
	assert.Equal(t, 1, failed)
}

func TestEmergencyLeavesStoppingSessionToStop(t *testing.T) {
	h := newHarness(t, Config{StopTimeout: 200 * time.Millisecond})
	h.backend.hang = true

	require.True(t, h.c.Start(PushToTalk))
	s := h.stream(t)
	s.emit(final("done talking"))
	h.waitIncremental(t, 1)

	stopped := make(chan bool, 1)
	go func() { stopped <- h.c.Stop() }()
	h.waitState(t, Stopping)

	assert.False(t, h.c.Emergency("quit"))
	assert.True(t, <-stopped)

	_, fin, emg := h.sink.snapshot()
	assert.Equal(t, []string{"done talking"}, fin)
	assert.Empty(t, emg)
	assert.Equal(t, Idle, h.c.Status().State)
}

func TestStopWhenIdle(t *testing.T) {
	h := newHarness(t, Config{})
	assert.False(t, h.c.Stop())
}

func TestErrorSavesEmergencyAndReturnsToIdle(t *testing.T) {
	h := newHarness(t, Config{})
	require.True(t, h.c.Start(Toggle))
	s := h.stream(t)

	s.emit(BeginEvent{ID: "r"})
	s.emit(partial("half a sentence"))
	h.waitIncremental(t, 1)
	s.emit(ErrorEvent{Err: errBoom})

	h.waitState(t, Idle)
	_, fin, emg := h.sink.snapshot()
	assert.Equal(t, []string{"half a sentence"}, emg)
	assert.Empty(t, fin)
	assert.Equal(t, None, h.c.Status().Mode)

	_, stopped, failed := h.notify.counts()
	assert.Equal(t, 1, failed)
	assert.Equal(t, 1, stopped)

	// Next session starts fresh.
	require.True(t, h.c.Start(PushToTalk))
	s2 := h.stream(t)
	s2.emit(final("again"))
	h.waitIncremental(t, 2)
	require.True(t, h.c.Stop())

	_, fin, _ = h.sink.snapshot()
	assert.Equal(t, []string{"again"}, fin)
}

func TestStoppedIsReportedBeforeIdle(t *testing.T) {
	h := newHarness(t, Config{})
	require.True(t, h.c.Start(Toggle))
	s := h.stream(t)
	s.emit(ErrorEvent{Err: errBoom})

	h.waitState(t, Idle)
	_, stopped, _ := h.notify.counts()
	assert.Equal(t, 1, stopped)

	// The failed session's stop must not be reported against the next one.
	require.True(t, h.c.Start(PushToTalk))
	h.stream(t)
	_, stopped, _ = h.notify.counts()
	assert.Equal(t, 1, stopped)
	assert.True(t, h.c.Status().Recording())
	require.True(t, h.c.Stop())
}

func TestUnexpectedStreamEndIsAnError(t *testing.T) {
	h := newHarness(t, Config{})
	require.True(t, h.c.Start(PushToTalk))
	s := h.stream(t)
	s.emit(final("cut off"))
	h.waitIncremental(t, 1)
	s.end()

	h.waitState(t, Idle)
	_, _, emg := h.sink.snapshot()
	assert.Equal(t, []string{"cut off"}, emg)
	h.notify.mu.Lock()
	defer h.notify.mu.Unlock()
	require.Len(t, h.notify.errs, 1)
	assert.ErrorIs(t, h.notify.errs[0], ErrStreamEnded)
}

func TestConnectFailure(t *testing.T) {
	h := newHarness(t, Config{})
	h.backend.err = errBoom

	require.True(t, h.c.Start(PushToTalk))
	h.waitState(t, Idle)

	_, _, emg := h.sink.snapshot()
	assert.Empty(t, emg)
	_, _, failed := h.notify.counts()
	assert.Equal(t, 1, failed)

	h.backend.mu.Lock()
	h.backend.err = nil
	h.backend.mu.Unlock()
	assert.True(t, h.c.Start(PushToTalk))
	h.stream(t)
	assert.True(t, h.c.Stop())
}

func TestAudioOpenFailureStaysIdle(t *testing.T) {
	h := newHarness(t, Config{})
	h.opener.err = errBoom

	assert.False(t, h.c.Start(PushToTalk))
	assert.Equal(t, Idle, h.c.Status().State)
	_, _, failed := h.notify.counts()
	assert.Equal(t, 1, failed)
}

func TestEmergencyTearsDown(t *testing.T) {
	h := newHarness(t, Config{})
	require.True(t, h.c.Start(Toggle))
	s := h.stream(t)
	s.emit(final("save me"))
	h.waitIncremental(t, 1)

	assert.True(t, h.c.Emergency("quit"))
	assert.Equal(t, Idle, h.c.Status().State)

	_, fin, emg := h.sink.snapshot()
	assert.Equal(t, []string{"save me"}, emg)
	assert.Empty(t, fin)
	assert.False(t, h.c.Emergency("quit again"))
}

func TestStartNoneIsRejected(t *testing.T) {
	h := newHarness(t, Config{})
	assert.False(t, h.c.Start(None))
	assert.Empty(t, h.opener.sources)
}
