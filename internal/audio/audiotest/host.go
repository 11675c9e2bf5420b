// Package audiotest provides a simulated audio host whose callbacks are
// driven by the test instead of by hardware.
package audiotest

import (
	"errors"
	"fmt"
	"sync"

	"github.com/yok-tottii/ezdaw/internal/audio"
)

// Device is a simulated device
type Device struct {
	name    string
	configs map[audio.Direction][]audio.StreamConfig
	openErr error
}

// Name is part of the audio.Device interface
func (d *Device) Name() string { return d.name }

// Configs is part of the audio.Device interface
func (d *Device) Configs(dir audio.Direction) ([]audio.StreamConfig, error) {
	return append([]audio.StreamConfig(nil), d.configs[dir]...), nil
}

// FailOpen makes every later OpenStream on the device fail with err
func (d *Device) FailOpen(err error) {
	d.openErr = err
}

// Host is a simulated audio.Host. Device listing order rotates on every call
// to mimic hosts that do not guarantee a stable order.
type Host struct {
	mu       sync.Mutex
	devices  map[audio.Direction][]*Device
	defaults map[audio.Direction]string
	listErr  error
	calls    int
	streams  []*Stream
	closed   bool
}

// NewHost returns an empty simulated host
func NewHost() *Host {
	return &Host{
		devices:  make(map[audio.Direction][]*Device),
		defaults: make(map[audio.Direction]string),
	}
}

// NewStandardHost returns a host with one stereo 48 kHz f32 device in each
// direction, both marked as default.
func NewStandardHost() *Host {
	h := NewHost()
	h.AddDevice(audio.Input, "Built-in Microphone", audio.StreamConfig{SampleRate: 48000, Channels: 2, Format: audio.FormatF32})
	h.AddDevice(audio.Output, "Built-in Output", audio.StreamConfig{SampleRate: 48000, Channels: 2, Format: audio.FormatF32})
	h.SetDefault(audio.Input, "Built-in Microphone")
	h.SetDefault(audio.Output, "Built-in Output")
	return h
}

// AddDevice adds a device supporting the given configurations
func (h *Host) AddDevice(dir audio.Direction, name string, configs ...audio.StreamConfig) *Device {
	h.mu.Lock()
	defer h.mu.Unlock()

	dev := &Device{name: name, configs: map[audio.Direction][]audio.StreamConfig{dir: configs}}
	h.devices[dir] = append(h.devices[dir], dev)
	return dev
}

// RemoveDevice removes a device by name
func (h *Host) RemoveDevice(dir audio.Direction, name string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	devs := h.devices[dir][:0]
	for _, d := range h.devices[dir] {
		if d.name != name {
			devs = append(devs, d)
		}
	}
	h.devices[dir] = devs
	if h.defaults[dir] == name {
		delete(h.defaults, dir)
	}
}

// SetDefault marks the named device as the default for dir
func (h *Host) SetDefault(dir audio.Direction, name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.defaults[dir] = name
}

// FailDevices makes Devices return err until called with nil
func (h *Host) FailDevices(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listErr = err
}

// Name is part of the audio.Host interface
func (h *Host) Name() string { return "simulated" }

// Devices is part of the audio.Host interface
func (h *Host) Devices(dir audio.Direction) ([]audio.Device, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.listErr != nil {
		return nil, h.listErr
	}

	devs := h.devices[dir]
	res := make([]audio.Device, 0, len(devs))
	if len(devs) == 0 {
		return res, nil
	}
	h.calls++
	start := h.calls % len(devs)
	for i := range devs {
		res = append(res, devs[(start+i)%len(devs)])
	}
	return res, nil
}

// DefaultDevice is part of the audio.Host interface
func (h *Host) DefaultDevice(dir audio.Direction) (audio.Device, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	name, ok := h.defaults[dir]
	if ok {
		for _, d := range h.devices[dir] {
			if d.name == name {
				return d, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %s", audio.ErrNoDefaultDevice, dir)
}

// OpenStream is part of the audio.Host interface
func (h *Host) OpenStream(dev audio.Device, dir audio.Direction, cfg audio.StreamConfig, callback any) (audio.Stream, error) {
	d, ok := dev.(*Device)
	if !ok {
		return nil, errors.New("foreign device")
	}
	if d.openErr != nil {
		return nil, d.openErr
	}

	switch callback.(type) {
	case func([]uint16), func([]int16), func([]float32):
	default:
		return nil, fmt.Errorf("%w: callback %T", audio.ErrUnsupportedFormat, callback)
	}

	s := &Stream{dir: dir, cfg: cfg, device: d.name, callback: callback}

	h.mu.Lock()
	h.streams = append(h.streams, s)
	h.mu.Unlock()

	return s, nil
}

// Close is part of the audio.Host interface
func (h *Host) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	return nil
}

// Stream returns the most recently opened stream for dir that is not
// closed, or nil.
func (h *Host) Stream(dir audio.Direction) *Stream {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i := len(h.streams) - 1; i >= 0; i-- {
		s := h.streams[i]
		if s.dir == dir && !s.Closed() {
			return s
		}
	}
	return nil
}

// OpenStreams returns the number of streams that are open
func (h *Host) OpenStreams() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := 0
	for _, s := range h.streams {
		if !s.Closed() {
			n++
		}
	}
	return n
}

// Stream is a simulated hardware stream. Feed and Pull invoke the stream
// callback synchronously on the calling goroutine, which plays the part of
// the host real-time thread.
type Stream struct {
	dir      audio.Direction
	cfg      audio.StreamConfig
	device   string
	callback any

	mu      sync.Mutex
	started bool
	closed  bool
}

// Start is part of the audio.Stream interface
func (s *Stream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("stream closed")
	}
	s.started = true
	return nil
}

// Close is part of the audio.Stream interface
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = false
	s.closed = true
	return nil
}

// Started reports whether the stream is running
func (s *Stream) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Closed reports whether the stream was closed
func (s *Stream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Config returns the configuration the stream was opened with
func (s *Stream) Config() audio.StreamConfig { return s.cfg }

// Device returns the name of the device the stream was opened on
func (s *Stream) Device() string { return s.device }

// Feed delivers samples to an input stream callback, converted to the
// stream's native format.
func (s *Stream) Feed(samples []float32) {
	if !s.Started() {
		return
	}
	switch cb := s.callback.(type) {
	case func([]float32):
		cb(append([]float32(nil), samples...))
	case func([]int16):
		buf := make([]int16, len(samples))
		for i, v := range samples {
			buf[i] = audio.FloatToI16(v)
		}
		cb(buf)
	case func([]uint16):
		buf := make([]uint16, len(samples))
		for i, v := range samples {
			buf[i] = audio.FloatToU16(v)
		}
		cb(buf)
	}
}

// Pull asks an output stream callback to fill n samples and returns them
// converted back to normalized form.
func (s *Stream) Pull(n int) []float32 {
	out := make([]float32, n)
	if !s.Started() {
		return out
	}
	switch cb := s.callback.(type) {
	case func([]float32):
		cb(out)
	case func([]int16):
		buf := make([]int16, n)
		cb(buf)
		for i, v := range buf {
			out[i] = audio.I16ToFloat(v)
		}
	case func([]uint16):
		buf := make([]uint16, n)
		cb(buf)
		for i, v := range buf {
			out[i] = audio.U16ToFloat(v)
		}
	}
	return out
}
