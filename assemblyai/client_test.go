package assemblyai

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"maxiwhisper/session"
	"maxiwhisper/transcript"
)

type serverFunc func(ctx context.Context, c *websocket.Conn, r *http.Request)

func newServer(t *testing.T, fn serverFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "test-key" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer c.CloseNow()
		fn(r.Context(), c, r)
	}))
	t.Cleanup(srv.Close)
	return &Client{APIKey: "test-key", Host: "ws://" + strings.TrimPrefix(srv.URL, "http://")}
}

func writeJSON(ctx context.Context, c *websocket.Conn, s string) error {
	return c.Write(ctx, websocket.MessageText, []byte(s))
}

func collect(t *testing.T, s session.Stream) []session.Event {
	t.Helper()
	var out []session.Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-s.Events():
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatalf("events channel not closed, got %v", out)
			return nil
		}
	}
}

func TestURL(t *testing.T) {
	c := New("k", "")
	assert.Equal(t,
		"wss://streaming.assemblyai.com/v3/ws?encoding=pcm_s16le&format_turns=true&sample_rate=16000",
		c.URL(session.Params{SampleRate: 16000, FormatTurns: true}))

	c = New("k", "ws://127.0.0.1:9000")
	assert.Equal(t,
		"ws://127.0.0.1:9000/v3/ws?encoding=pcm_s16le&sample_rate=8000",
		c.URL(session.Params{SampleRate: 8000}))
}

func TestStreamSession(t *testing.T) {
	received := make(chan int, 1)
	query := make(chan string, 1)

	client := newServer(t, func(ctx context.Context, c *websocket.Conn, r *http.Request) {
		query <- r.URL.RawQuery
		if writeJSON(ctx, c, `{"type":"Begin","id":"sess-1","expires_at":1700000000}`) != nil {
			return
		}
		total := 0
		for {
			typ, data, err := c.Read(ctx)
			if err != nil {
				return
			}
			if typ == websocket.MessageBinary {
				total += len(data)
				continue
			}
			if string(data) == string(terminateMessage) {
				break
			}
		}
		received <- total

		for _, msg := range []string{
			`{"type":"Turn","turn_order":0,"transcript":"hello","end_of_turn":false}`,
			`{"type":"Turn","turn_order":0,"transcript":"hello world","end_of_turn":true,"turn_is_formatted":false}`,
			`{"type":"Turn","turn_order":0,"transcript":"Hello world.","end_of_turn":true,"turn_is_formatted":true}`,
			`{"type":"Termination","audio_duration_seconds":0.2,"session_duration_seconds":1}`,
		} {
			if writeJSON(ctx, c, msg) != nil {
				return
			}
		}
		c.Close(websocket.StatusNormalClosure, "")
	})

	audio := strings.NewReader(strings.Repeat("\x00", 6400))
	s, err := client.Open(context.Background(), session.Params{SampleRate: 16000, FormatTurns: true}, audio)
	require.NoError(t, err)
	defer s.Close()

	events := collect(t, s)
	assert.Equal(t, []session.Event{
		session.BeginEvent{ID: "sess-1", ExpiresAt: time.Unix(1700000000, 0)},
		session.FragmentEvent{Fragment: transcript.Fragment{Text: "hello"}},
		session.FragmentEvent{Fragment: transcript.Fragment{Text: "hello world"}},
		session.FragmentEvent{Fragment: transcript.Fragment{Text: "Hello world.", IsFinal: true}},
		session.TerminationEvent{AudioDuration: 200 * time.Millisecond},
	}, events)
	assert.Equal(t, 6400, <-received)
	assert.Contains(t, <-query, "format_turns=true")
}

func TestAbnormalCloseIsAnError(t *testing.T) {
	client := newServer(t, func(ctx context.Context, c *websocket.Conn, _ *http.Request) {
		writeJSON(ctx, c, `{"type":"Begin","id":"sess-2"}`)
		c.Close(websocket.StatusCode(3005), "session expired")
	})

	pr, pw := io.Pipe()
	defer pw.Close()
	s, err := client.Open(context.Background(), session.Params{SampleRate: 16000}, pr)
	require.NoError(t, err)
	defer s.Close()

	events := collect(t, s)
	require.Len(t, events, 2)
	assert.IsType(t, session.BeginEvent{}, events[0])
	errEv, ok := events[1].(session.ErrorEvent)
	require.True(t, ok)
	assert.Contains(t, errEv.Err.Error(), "3005")
}

func TestServerErrorMessage(t *testing.T) {
	client := newServer(t, func(ctx context.Context, c *websocket.Conn, _ *http.Request) {
		writeJSON(ctx, c, `{"error":"Insufficient balance"}`)
		c.Read(ctx)
	})

	pr, pw := io.Pipe()
	defer pw.Close()
	s, err := client.Open(context.Background(), session.Params{SampleRate: 16000}, pr)
	require.NoError(t, err)
	defer s.Close()

	events := collect(t, s)
	require.Len(t, events, 1)
	errEv, ok := events[0].(session.ErrorEvent)
	require.True(t, ok)
	assert.Contains(t, errEv.Err.Error(), "Insufficient balance")
}

func TestDialRejected(t *testing.T) {
	client := newServer(t, func(context.Context, *websocket.Conn, *http.Request) {})
	client.APIKey = "wrong"

	_, err := client.Open(context.Background(), session.Params{SampleRate: 16000}, strings.NewReader(""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestCloseEndsEvents(t *testing.T) {
	client := newServer(t, func(ctx context.Context, c *websocket.Conn, _ *http.Request) {
		for {
			if _, _, err := c.Read(ctx); err != nil {
				return
			}
		}
	})

	pr, pw := io.Pipe()
	defer pw.Close()
	s, err := client.Open(context.Background(), session.Params{SampleRate: 16000}, pr)
	require.NoError(t, err)

	require.NoError(t, s.Close())
	assert.Empty(t, collect(t, s))
	assert.NoError(t, s.Close())
}

func TestDecodeWithoutFormatting(t *testing.T) {
	ev, ok, err := decode([]byte(`{"type":"Turn","transcript":" hi ","end_of_turn":true}`), false)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, session.FragmentEvent{Fragment: transcript.Fragment{Text: "hi", IsFinal: true}}, ev)

	_, ok, err = decode([]byte(`{"type":"SpeechStarted"}`), false)
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = decode([]byte(`not json`), false)
	assert.Error(t, err)
}

func ExampleClient_URL() {
	c := New("key", "")
	fmt.Println(c.URL(session.Params{SampleRate: 16000, FormatTurns: true}))
	// Output: wss://streaming.assemblyai.com/v3/ws?encoding=pcm_s16le&format_turns=true&sample_rate=16000
}
