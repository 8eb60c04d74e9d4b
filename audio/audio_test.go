package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCapture struct {
	cb      DataCallback
	started bool
	stopped int
	closed  int
}

func (s *stubCapture) Start() error                { s.started = true; return nil }
func (s *stubCapture) Stop()                       { s.stopped++ }
func (s *stubCapture) Close()                      { s.closed++ }
func (s *stubCapture) SetCallback(cb DataCallback) { s.cb = cb }
func (s *stubCapture) ClearCallback()              { s.cb = nil }

type stubContext struct {
	devices []DeviceInfo
	dev     *stubCapture
	cfg     CaptureConfig
}

func (s *stubContext) Devices() ([]DeviceInfo, error) { return s.devices, nil }
func (s *stubContext) Close()                         {}
func (s *stubContext) NewCapture(_ *DeviceInfo, cfg CaptureConfig) (CaptureDevice, error) {
	s.cfg = cfg
	s.dev = &stubCapture{}
	return s.dev, nil
}

func wavBytes(rate, channels, bits int, pcm []byte) []byte {
	var b bytes.Buffer
	b.WriteString("RIFF")
	binary.Write(&b, binary.LittleEndian, uint32(36+len(pcm)))
	b.WriteString("WAVEfmt ")
	binary.Write(&b, binary.LittleEndian, uint32(16))
	binary.Write(&b, binary.LittleEndian, uint16(1))
	binary.Write(&b, binary.LittleEndian, uint16(channels))
	binary.Write(&b, binary.LittleEndian, uint32(rate))
	binary.Write(&b, binary.LittleEndian, uint32(rate*channels*bits/8))
	binary.Write(&b, binary.LittleEndian, uint16(channels*bits/8))
	binary.Write(&b, binary.LittleEndian, uint16(bits))
	b.WriteString("data")
	binary.Write(&b, binary.LittleEndian, uint32(len(pcm)))
	b.Write(pcm)
	return b.Bytes()
}

func TestIsBluetooth(t *testing.T) {
	assert.True(t, IsBluetooth("AirPods Pro"))
	assert.True(t, IsBluetooth("Headset (WH-1000XM4)"))
	assert.False(t, IsBluetooth("Built-in Microphone"))
}

func TestMicSourceReadsThenEOF(t *testing.T) {
	ctx := &stubContext{}
	mic := &Mic{Context: ctx}

	src, err := mic.Open(16000)
	require.NoError(t, err)
	assert.True(t, ctx.dev.started)
	assert.Equal(t, CaptureConfig{SampleRate: 16000, Channels: 1}, ctx.cfg)

	ctx.dev.cb([]byte{1, 2, 3, 4}, 2)
	buf := make([]byte, 16)
	n, err := src.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, buf[:n])

	ctx.dev.cb([]byte{5, 6}, 1)
	require.NoError(t, src.Close())
	require.NoError(t, src.Close())
	assert.Equal(t, 1, ctx.dev.closed)

	n, err = src.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{5, 6}, buf[:n])
	_, err = src.Read(buf)
	assert.Equal(t, io.EOF, err)
}

func TestSourceReadBlocksUntilData(t *testing.T) {
	s := newSource(&stubCapture{}, 1024)
	got := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 8)
		n, _ := s.Read(buf)
		got <- buf[:n]
	}()

	select {
	case <-got:
		t.Fatal("read returned before data arrived")
	case <-time.After(20 * time.Millisecond):
	}
	s.push([]byte{9, 9}, 1)
	assert.Equal(t, []byte{9, 9}, <-got)
}

func TestSourceCloseUnblocksReader(t *testing.T) {
	s := newSource(&stubCapture{}, 1024)
	done := make(chan error, 1)
	go func() {
		_, err := s.Read(make([]byte, 8))
		done <- err
	}()
	s.Close()
	assert.Equal(t, io.EOF, <-done)
}

func TestSourceDropsOldestWhenFull(t *testing.T) {
	s := newSource(&stubCapture{}, 4)
	s.push([]byte{1, 1, 2, 2}, 2)
	s.push([]byte{3, 3}, 1)
	s.Close()

	data, err := io.ReadAll(s)
	require.NoError(t, err)
	assert.Equal(t, []byte{2, 2, 3, 3}, data)
}

func TestApplyGainClips(t *testing.T) {
	data := make([]byte, 6)
	binary.LittleEndian.PutUint16(data[0:], uint16(int16(100)))
	binary.LittleEndian.PutUint16(data[2:], uint16(int16(20000)))
	neg := int16(-20000)
	binary.LittleEndian.PutUint16(data[4:], uint16(neg))

	applyGain(data, 2)

	assert.Equal(t, int16(200), int16(binary.LittleEndian.Uint16(data[0:])))
	assert.Equal(t, int16(32767), int16(binary.LittleEndian.Uint16(data[2:])))
	assert.Equal(t, int16(-32768), int16(binary.LittleEndian.Uint16(data[4:])))
}

func TestReadWAV(t *testing.T) {
	pcm, info, err := ReadWAV(bytes.NewReader(wavBytes(16000, 1, 16, []byte{1, 2, 3, 4})))
	require.NoError(t, err)
	assert.Equal(t, WAVInfo{SampleRate: 16000, Channels: 1, BitsPerSample: 16}, info)
	assert.Equal(t, []byte{1, 2, 3, 4}, pcm)

	_, _, err = ReadWAV(strings.NewReader("nope"))
	assert.True(t, errors.Is(err, ErrUnsupportedWAV))

	_, info, err = ReadWAV(bytes.NewReader(wavBytes(16000, 1, 8, []byte{1, 2, 3, 4})))
	assert.ErrorIs(t, err, ErrUnsupportedWAV)
	assert.Equal(t, 8, info.BitsPerSample)
}

func TestWAVContextReplaysFile(t *testing.T) {
	pcm := bytes.Repeat([]byte{7, 0}, 3000)
	path := filepath.Join(t.TempDir(), "speech.wav")
	require.NoError(t, os.WriteFile(path, wavBytes(16000, 1, 16, pcm), 0644))

	wctx, err := NewWAVContext(path, false)
	require.NoError(t, err)

	mic := &Mic{Context: wctx}
	src, err := mic.Open(16000)
	require.NoError(t, err)

	select {
	case <-wctx.Played():
	case <-time.After(time.Second):
		t.Fatal("file not played")
	}
	src.Close()
	got, err := io.ReadAll(src)
	require.NoError(t, err)
	assert.Equal(t, pcm, got)

	_, err = mic.Open(8000)
	assert.ErrorIs(t, err, ErrUnsupportedWAV)
}

func TestWAVContextRejectsStereo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stereo.wav")
	require.NoError(t, os.WriteFile(path, wavBytes(16000, 2, 16, []byte{0, 0, 0, 0}), 0644))
	_, err := NewWAVContext(path, false)
	assert.ErrorIs(t, err, ErrUnsupportedWAV)
}

func TestFindDevice(t *testing.T) {
	ctx := &stubContext{devices: []DeviceInfo{
		{ID: "alsa_input.usb-mic", Name: "USB Microphone"},
		{ID: "alsa_input.pci", Name: "Built-in Audio"},
	}}

	d, err := FindDevice(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, d)

	d, err = FindDevice(ctx, "usb")
	require.NoError(t, err)
	assert.Equal(t, "USB Microphone", d.Name)

	d, err = FindDevice(ctx, "alsa_input.pci")
	require.NoError(t, err)
	assert.Equal(t, "Built-in Audio", d.Name)

	_, err = FindDevice(ctx, "webcam")
	assert.Error(t, err)
}

func TestListDevices(t *testing.T) {
	var out strings.Builder
	ctx := &stubContext{devices: []DeviceInfo{{ID: "bt", Name: "AirPods"}}}
	require.NoError(t, ListDevices(&out, ctx))
	assert.Contains(t, out.String(), "AirPods")
	assert.Contains(t, out.String(), "id: bt")
}
