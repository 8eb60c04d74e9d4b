//go:build !linux

package beep

import (
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"

	"maxiwhisper/log"
)

var (
	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device
	ctxOnce  sync.Once

	// Playback state, read from the device callback.
	playing atomic.Pointer[[]byte]
	playPos atomic.Uint32
	playMu  sync.Mutex
)

func initContext() {
	var err error
	malgoCtx, err = malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		log.Debugf("beep: %v", err)
		return
	}
	if err := initDevice(); err != nil {
		log.Debugf("beep: %v", err)
		_ = malgoCtx.Uninit()
		malgoCtx = nil
	}
}

func initDevice() error {
	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.Playback.Format = malgo.FormatS16
	config.Playback.Channels = 1
	config.SampleRate = sampleRate

	var err error
	device, err = malgo.InitDevice(malgoCtx.Context, config, malgo.DeviceCallbacks{Data: dataCallback})
	return err
}

func dataCallback(out, _ []byte, frameCount uint32) {
	clear(out)
	samples := playing.Load()
	if samples == nil {
		return
	}

	pos := playPos.Load()
	total := uint32(len(*samples))
	if pos >= total {
		playing.Store(nil)
		return
	}
	n := min(frameCount*2, total-pos, uint32(len(out)))
	copy(out[:n], (*samples)[pos:pos+n])
	playPos.Store(pos + n)
}

func toBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		buf[i*2] = byte(s)
		buf[i*2+1] = byte(s >> 8)
	}
	return buf
}

func playSamples(samples []int16) {
	ctxOnce.Do(initContext)
	if malgoCtx == nil || len(samples) == 0 {
		return
	}
	data := toBytes(samples)

	playMu.Lock()
	defer playMu.Unlock()

	_ = device.Stop()
	playPos.Store(0)
	playing.Store(&data)

	if err := device.Start(); err != nil {
		// Recreate the device, e.g. after sleep/wake.
		device.Uninit()
		if err := initDevice(); err != nil {
			playing.Store(nil)
			return
		}
		if err := device.Start(); err != nil {
			playing.Store(nil)
		}
	}
}
