// Package beep plays short audio cues for session start, stop and failure.
package beep

import (
	"math"
	"sync"
	"sync/atomic"
)

var disabled atomic.Bool

func Disable() { disabled.Store(true) }

func Enabled() bool { return !disabled.Load() }

const (
	sampleRate = 44100

	// Start: high pitch, short
	startFreq   = 1200
	startVolume = 0.5
	startDecay  = 60

	// End: medium pitch, slightly longer
	endFreq   = 900
	endVolume = 0.5
	endDecay  = 40

	// Error: low pitch double beep
	errorFreq   = 350
	errorVolume = 0.6
	errorDecay  = 30
)

var (
	startSamples []int16
	endSamples   []int16
	errorSamples []int16
	soundOnce    sync.Once
)

func initSamples() {
	// The 200ms tails leave room for the output buffer to fill.
	startSamples = tone(sampleRate, startFreq, 0.2, startVolume, startDecay)
	endSamples = tone(sampleRate, endFreq, 0.2, endVolume, endDecay)
	errorSamples = doubleTone(sampleRate, errorFreq, 0.08, 0.05, errorVolume, errorDecay)
}

// tone is an exponentially decaying mono sine.
func tone(rate int, freq, duration, volume, decay float64) []int16 {
	n := int(float64(rate) * duration)
	samples := make([]int16, n)
	for i := range samples {
		t := float64(i) / float64(rate)
		envelope := math.Exp(-t * decay)
		samples[i] = int16(math.Sin(2*math.Pi*freq*t) * 32767 * volume * envelope)
	}
	return samples
}

func doubleTone(rate int, freq, beepDur, gapDur, volume, decay float64) []int16 {
	b := tone(rate, freq, beepDur, volume, decay)
	gap := make([]int16, int(float64(rate)*gapDur))
	out := make([]int16, 0, len(b)*2+len(gap))
	out = append(out, b...)
	out = append(out, gap...)
	out = append(out, b...)
	return out
}

func Init() {
	soundOnce.Do(initSamples)
}

func PlayStart() { cue(&startSamples) }
func PlayEnd()   { cue(&endSamples) }
func PlayError() { cue(&errorSamples) }

func cue(samples *[]int16) {
	if disabled.Load() {
		return
	}
	soundOnce.Do(initSamples)
	playSamples(*samples)
}

// Cues implements session.Notifier with tones. The end tone is skipped when
// a session stops because it failed.
type Cues struct {
	failed atomic.Bool
}

func (c *Cues) Ready() {
	c.failed.Store(false)
	PlayStart()
}

func (c *Cues) Transcript(string) {}

func (c *Cues) Stopped() {
	if c.failed.Swap(false) {
		return
	}
	PlayEnd()
}

func (c *Cues) Failed(error) {
	c.failed.Store(true)
	PlayError()
}
