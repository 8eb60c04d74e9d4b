package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/go-audio/wav"
)

const (
	wavFrameSize = 1024 // samples per callback
	wavFormatPCM = 1
)

var ErrUnsupportedWAV = errors.New("unsupported WAV format")

// WAVInfo describes a decoded WAV file.
type WAVInfo struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// ReadWAV decodes a 16-bit PCM WAV file into little-endian sample bytes.
func ReadWAV(r io.ReadSeeker) ([]byte, WAVInfo, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return nil, WAVInfo{}, fmt.Errorf("%w: not a RIFF/WAVE file", ErrUnsupportedWAV)
	}
	info := WAVInfo{
		SampleRate:    int(d.SampleRate),
		Channels:      int(d.NumChans),
		BitsPerSample: int(d.BitDepth),
	}
	if d.WavAudioFormat != wavFormatPCM {
		return nil, info, fmt.Errorf("%w: format tag %d, want PCM", ErrUnsupportedWAV, d.WavAudioFormat)
	}
	if info.BitsPerSample != 16 {
		return nil, info, fmt.Errorf("%w: need 16-bit samples, got %d-bit", ErrUnsupportedWAV, info.BitsPerSample)
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, info, fmt.Errorf("%w: %v", ErrUnsupportedWAV, err)
	}
	pcm := make([]byte, 2*len(buf.Data))
	for i, v := range buf.Data {
		binary.LittleEndian.PutUint16(pcm[2*i:], uint16(int16(v)))
	}
	return pcm, info, nil
}

// WAVContext replays a WAV file as if it were a microphone. Every capture
// starts from the beginning of the file.
type WAVContext struct {
	pcm      []byte
	info     WAVInfo
	realtime bool

	mu     sync.Mutex
	played chan struct{}
}

func NewWAVContext(path string, realtime bool) (*WAVContext, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	pcm, info, err := ReadWAV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if info.Channels != 1 || info.BitsPerSample != 16 {
		return nil, fmt.Errorf("%s: %w: need 16-bit mono, got %d-bit %dch",
			path, ErrUnsupportedWAV, info.BitsPerSample, info.Channels)
	}
	played := make(chan struct{})
	close(played)
	return &WAVContext{pcm: pcm, info: info, realtime: realtime, played: played}, nil
}

func (w *WAVContext) Info() WAVInfo { return w.info }

func (w *WAVContext) Devices() ([]DeviceInfo, error) {
	return []DeviceInfo{{ID: "wav", Name: "WAV replay"}}, nil
}

func (w *WAVContext) Close() {}

// Played is closed once the most recent capture has delivered the whole
// file.
func (w *WAVContext) Played() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.played
}

func (w *WAVContext) NewCapture(_ *DeviceInfo, config CaptureConfig) (CaptureDevice, error) {
	if int(config.SampleRate) != w.info.SampleRate {
		return nil, fmt.Errorf("%w: file is %d Hz, stream wants %d Hz",
			ErrUnsupportedWAV, w.info.SampleRate, config.SampleRate)
	}
	played := make(chan struct{})
	w.mu.Lock()
	w.played = played
	w.mu.Unlock()
	return &wavCapture{
		pcm:      w.pcm,
		rate:     w.info.SampleRate,
		realtime: w.realtime,
		played:   played,
	}, nil
}

type wavCapture struct {
	pcm      []byte
	rate     int
	realtime bool
	played   chan struct{}

	mu       sync.Mutex
	cb       DataCallback
	stopCh   chan struct{}
	feedDone chan struct{}
	stopOnce sync.Once
}

func (f *wavCapture) SetCallback(cb DataCallback) {
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
}

func (f *wavCapture) ClearCallback() {
	f.mu.Lock()
	f.cb = nil
	f.mu.Unlock()
}

func (f *wavCapture) callback() DataCallback {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cb
}

func (f *wavCapture) feedChunk(cb DataCallback, pos, chunkBytes int) int {
	end := min(pos+chunkBytes, len(f.pcm))
	chunk := make([]byte, end-pos)
	copy(chunk, f.pcm[pos:end])
	cb(chunk, uint32(len(chunk)/2))
	return end
}

// Start delivers the file. Without realtime pacing the whole file is pushed
// at once; with it, chunks arrive at the file's sample rate followed by
// silence until Stop, like a live microphone.
func (f *wavCapture) Start() error {
	f.stopCh = make(chan struct{})
	f.feedDone = make(chan struct{})
	chunkBytes := wavFrameSize * 2

	if !f.realtime {
		if cb := f.callback(); cb != nil {
			for pos := 0; pos < len(f.pcm); {
				pos = f.feedChunk(cb, pos, chunkBytes)
			}
		}
		close(f.played)
		close(f.feedDone)
		return nil
	}

	interval := time.Duration(wavFrameSize) * time.Second / time.Duration(f.rate)
	go func() {
		defer close(f.feedDone)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		pos := 0
		silence := make([]byte, chunkBytes)
		finished := false
		defer func() {
			// Release waiters when stopped mid-file.
			if !finished {
				close(f.played)
			}
		}()

		for {
			if cb := f.callback(); cb != nil {
				if pos < len(f.pcm) {
					pos = f.feedChunk(cb, pos, chunkBytes)
				} else {
					if !finished {
						finished = true
						close(f.played)
					}
					cb(silence, wavFrameSize)
				}
			}
			select {
			case <-f.stopCh:
				return
			case <-ticker.C:
			}
		}
	}()
	return nil
}

func (f *wavCapture) Stop() {
	f.stopOnce.Do(func() {
		if f.stopCh == nil {
			return
		}
		close(f.stopCh)
		<-f.feedDone
	})
}

func (f *wavCapture) Close() {}
