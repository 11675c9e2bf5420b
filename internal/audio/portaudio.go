package audio

import (
	"fmt"
	"sync"

	"github.com/decred/slog"
	"github.com/gordonklaus/portaudio"
)

// candidateRates are the sample rates tried when querying device configurations
var candidateRates = []int{8000, 11025, 16000, 22050, 32000, 44100, 48000, 88200, 96000, 176400, 192000}

// PortAudioHost implements Host using PortAudio
type PortAudioHost struct {
	log    slog.Logger
	mu     sync.Mutex
	closed bool
}

// portAudioDevice wraps a PortAudio device
type portAudioDevice struct {
	info *portaudio.DeviceInfo
}

// NewPortAudioHost initializes PortAudio
func NewPortAudioHost(log slog.Logger) (*PortAudioHost, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	if log == nil {
		log = slog.Disabled
	}
	return &PortAudioHost{log: log}, nil
}

// Name is part of the Host interface
func (h *PortAudioHost) Name() string {
	return BackendPortAudio
}

// Devices is part of the Host interface
func (h *PortAudioHost) Devices(dir Direction) ([]Device, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	var result []Device
	for _, dev := range devices {
		if maxChannels(dev, dir) > 0 {
			result = append(result, portAudioDevice{info: dev})
		}
	}
	return result, nil
}

// DefaultDevice is part of the Host interface
func (h *PortAudioHost) DefaultDevice(dir Direction) (Device, error) {
	var (
		dev *portaudio.DeviceInfo
		err error
	)
	if dir == Input {
		dev, err = portaudio.DefaultInputDevice()
	} else {
		dev, err = portaudio.DefaultOutputDevice()
	}
	if err != nil || dev == nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNoDefaultDevice, dir, err)
	}
	return portAudioDevice{info: dev}, nil
}

// OpenStream is part of the Host interface
func (h *PortAudioHost) OpenStream(dev Device, dir Direction, cfg StreamConfig, callback any) (Stream, error) {
	if err := checkCallback(cfg.Format, callback); err != nil {
		return nil, err
	}
	if cfg.Format == FormatU16 {
		// PortAudio has no unsigned 16-bit sample type.
		return nil, fmt.Errorf("%w: portaudio cannot open %s streams", ErrUnsupportedFormat, cfg.Format)
	}

	pd, ok := dev.(portAudioDevice)
	if !ok {
		return nil, fmt.Errorf("device %q does not belong to the portaudio host", dev.Name())
	}

	params := streamParams(pd.info, dir, cfg)
	stream, err := portaudio.OpenStream(params, callback)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s stream on %q: %w", dir, pd.info.Name, err)
	}

	h.log.Debugf("Opened %s stream on %q (%d Hz, %d ch, %s)", dir, pd.info.Name,
		cfg.SampleRate, cfg.Channels, cfg.Format)

	return &portAudioStream{stream: stream}, nil
}

// Close is part of the Host interface
func (h *PortAudioHost) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true

	if err := portaudio.Terminate(); err != nil {
		return fmt.Errorf("failed to terminate PortAudio: %w", err)
	}
	return nil
}

func (d portAudioDevice) Name() string {
	return d.info.Name
}

// Configs tries the standard sample rates in f32 and i16.
func (d portAudioDevice) Configs(dir Direction) ([]StreamConfig, error) {
	channels := maxChannels(d.info, dir)
	if channels <= 0 {
		return nil, fmt.Errorf("device %q has no %s channels", d.info.Name, dir)
	}

	var configs []StreamConfig
	for _, format := range []SampleFormat{FormatF32, FormatI16} {
		for _, rate := range candidateRates {
			cfg := StreamConfig{SampleRate: rate, Channels: channels, Format: format}
			params := streamParams(d.info, dir, cfg)
			if err := portaudio.IsFormatSupported(params, nopCallback(format)); err == nil {
				configs = append(configs, cfg)
			}
		}
	}
	return configs, nil
}

func nopCallback(format SampleFormat) any {
	if format == FormatI16 {
		return func([]int16) {}
	}
	return func([]float32) {}
}

func maxChannels(dev *portaudio.DeviceInfo, dir Direction) int {
	if dir == Input {
		return dev.MaxInputChannels
	}
	return dev.MaxOutputChannels
}

func streamParams(dev *portaudio.DeviceInfo, dir Direction, cfg StreamConfig) portaudio.StreamParameters {
	params := portaudio.StreamParameters{
		SampleRate:      float64(cfg.SampleRate),
		FramesPerBuffer: portaudio.FramesPerBufferUnspecified,
	}
	if dir == Input {
		params.Input = portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: cfg.Channels,
			Latency:  dev.DefaultLowInputLatency,
		}
	} else {
		params.Output = portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: cfg.Channels,
			Latency:  dev.DefaultLowOutputLatency,
		}
	}
	return params
}

// portAudioStream implements Stream
type portAudioStream struct {
	stream  *portaudio.Stream
	mu      sync.Mutex
	started bool
}

func (s *portAudioStream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.stream.Start(); err != nil {
		return fmt.Errorf("failed to start stream: %w", err)
	}
	s.started = true
	return nil
}

func (s *portAudioStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		if err := s.stream.Stop(); err != nil {
			return fmt.Errorf("failed to stop stream: %w", err)
		}
		s.started = false
	}
	if err := s.stream.Close(); err != nil {
		return fmt.Errorf("failed to close stream: %w", err)
	}
	return nil
}
