package audio

import (
	"fmt"
	"time"

	"github.com/decred/slog"
)

// Direction selects the input (capture) or output (playback) side of a host
type Direction int

const (
	// Input is the capture direction
	Input Direction = iota
	// Output is the playback direction
	Output
)

// String returns the string representation of the direction
func (d Direction) String() string {
	switch d {
	case Input:
		return "input"
	case Output:
		return "output"
	default:
		return "unknown"
	}
}

// StreamConfig is one configuration a device can open a stream with
type StreamConfig struct {
	SampleRate int          `json:"sample_rate"`
	Channels   int          `json:"channels"`
	Format     SampleFormat `json:"sample_format"`
}

// Format describes the signal flowing through an open stream pair
type Format struct {
	FrameRate int `json:"frame_rate"`
	Channels  int `json:"channels"`
}

// SamplesPerSecond returns the number of interleaved samples per second
func (f Format) SamplesPerSecond() int {
	return f.FrameRate * f.Channels
}

// FrameDuration returns the duration of n frames
func (f Format) FrameDuration(n int) time.Duration {
	if f.FrameRate <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(f.FrameRate)
}

// Device is an opaque handle to a host audio device
type Device interface {
	// Name returns the human readable device name, used as the catalog key
	Name() string

	// Configs returns the stream configurations the device supports in
	// the given direction
	Configs(dir Direction) ([]StreamConfig, error)
}

// Stream is an open hardware stream
type Stream interface {
	// Start begins invoking the stream callback
	Start() error

	// Close stops the stream and releases it. The callback is not invoked
	// once Close returns.
	Close() error
}

// Host is the operating system audio subsystem.
//
// The callback passed to OpenStream must be a func([]uint16), func([]int16)
// or func([]float32) matching cfg.Format. Input callbacks read the slice,
// output callbacks fill it. Callbacks run on host-managed real-time threads.
type Host interface {
	// Name returns the backend name
	Name() string

	// Devices lists the devices available in the given direction
	Devices(dir Direction) ([]Device, error)

	// DefaultDevice returns the host default device for the direction
	DefaultDevice(dir Direction) (Device, error)

	// OpenStream opens a stream on dev. The stream does not run until
	// Start is called.
	OpenStream(dev Device, dir Direction, cfg StreamConfig, callback any) (Stream, error)

	// Close releases the host
	Close() error
}

// Backend names accepted by OpenHost
const (
	BackendPortAudio = "portaudio"
	BackendMalgo     = "malgo"
)

// OpenHost opens the named host backend
func OpenHost(name string, log slog.Logger) (Host, error) {
	if log == nil {
		log = slog.Disabled
	}
	switch name {
	case "", BackendPortAudio:
		return NewPortAudioHost(log)
	case BackendMalgo:
		return NewMalgoHost(log)
	default:
		return nil, fmt.Errorf("unknown audio backend: %q", name)
	}
}

// checkCallback verifies that callback matches format.
func checkCallback(format SampleFormat, callback any) error {
	ok := false
	switch callback.(type) {
	case func([]uint16):
		ok = format == FormatU16
	case func([]int16):
		ok = format == FormatI16
	case func([]float32):
		ok = format == FormatF32
	}
	if !ok {
		return fmt.Errorf("%w: callback %T does not match %s", ErrUnsupportedFormat, callback, format)
	}
	return nil
}
