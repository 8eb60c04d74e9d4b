// Package audio captures 16-bit mono PCM from a microphone, or replays a WAV
// file, as a blocking reader.
package audio

import "strings"

var btKeywords = []string{
	"airpods", "beats", "bose", "wh-1000", "wf-1000",
	"sony wh-", "sony wf-",
	"jabra", "galaxy buds", "pixel buds", "powerbeats",
	"jbl ", "sennheiser momentum", "plantronics",
	"tozo", "anker soundcore", "skullcandy",
	"bluetooth", " bt ", " bt)", " bt]",
}

// IsBluetooth guesses from the device name whether it is a headset running
// the low-bandwidth hands-free profile.
func IsBluetooth(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range btKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

type DataCallback func(data []byte, frameCount uint32)

type CaptureConfig struct {
	SampleRate uint32
	Channels   uint32
	// Gain multiplies every sample; 0 means unity.
	Gain int
}

type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
}

type Context interface {
	Devices() ([]DeviceInfo, error)
	NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error)
	Close()
}

type CaptureDevice interface {
	Start() error
	Stop()
	Close()
	SetCallback(cb DataCallback)
	ClearCallback()
}

// applyGain scales little-endian int16 samples in place, clipping at the
// int16 range.
func applyGain(data []byte, gain int) {
	if gain <= 1 {
		return
	}
	for i := 0; i+1 < len(data); i += 2 {
		s := int32(int16(uint16(data[i]) | uint16(data[i+1])<<8))
		s *= int32(gain)
		if s > 32767 {
			s = 32767
		} else if s < -32768 {
			s = -32768
		}
		data[i] = byte(uint16(int16(s)))
		data[i+1] = byte(uint16(int16(s)) >> 8)
	}
}
