package audio

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/decred/slog"
	"github.com/gen2brain/malgo"
)

// malgoFallbackRate is used when miniaudio reports that a device accepts any
// sample rate.
const malgoFallbackRate = 48000

// MalgoHost implements Host using miniaudio through malgo
type MalgoHost struct {
	log slog.Logger
	ctx *malgo.AllocatedContext

	mu     sync.Mutex
	closed bool
}

// NewMalgoHost creates a miniaudio context
func NewMalgoHost(log slog.Logger) (*MalgoHost, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize miniaudio: %w", err)
	}
	if log == nil {
		log = slog.Disabled
	}
	return &MalgoHost{log: log, ctx: ctx}, nil
}

func malgoType(dir Direction) malgo.DeviceType {
	if dir == Input {
		return malgo.Capture
	}
	return malgo.Playback
}

// Name is part of the Host interface
func (h *MalgoHost) Name() string {
	return BackendMalgo
}

// Devices is part of the Host interface
func (h *MalgoHost) Devices(dir Direction) ([]Device, error) {
	typ := malgoType(dir)
	devices, err := h.ctx.Devices(typ)
	if err != nil {
		return nil, err
	}

	res := make([]Device, 0, len(devices))
	for _, dev := range devices {
		full, err := h.ctx.DeviceInfo(typ, dev.ID, malgo.Shared)
		if err != nil {
			h.log.Warnf("Unable to get audio device info: %v", err)
			continue
		}
		res = append(res, &malgoDevice{info: full})
	}
	return res, nil
}

// DefaultDevice is part of the Host interface
func (h *MalgoHost) DefaultDevice(dir Direction) (Device, error) {
	devices, err := h.Devices(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNoDefaultDevice, dir, err)
	}
	for _, dev := range devices {
		if dev.(*malgoDevice).info.IsDefault == 1 {
			return dev, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoDefaultDevice, dir)
}

// OpenStream is part of the Host interface
func (h *MalgoHost) OpenStream(dev Device, dir Direction, cfg StreamConfig, callback any) (Stream, error) {
	if err := checkCallback(cfg.Format, callback); err != nil {
		return nil, err
	}
	md, ok := dev.(*malgoDevice)
	if !ok {
		return nil, fmt.Errorf("device %q does not belong to the malgo host", dev.Name())
	}

	var format malgo.FormatType
	switch cfg.Format {
	case FormatF32:
		format = malgo.FormatF32
	case FormatI16:
		format = malgo.FormatS16
	default:
		return nil, fmt.Errorf("%w: miniaudio cannot open %s streams", ErrUnsupportedFormat, cfg.Format)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgoType(dir))
	deviceConfig.SampleRate = uint32(cfg.SampleRate)
	deviceConfig.Alsa.NoMMap = 1
	id := md.info.ID
	if dir == Input {
		deviceConfig.Capture.Format = format
		deviceConfig.Capture.Channels = uint32(cfg.Channels)
		deviceConfig.Capture.DeviceID = id.Pointer()
	} else {
		deviceConfig.Playback.Format = format
		deviceConfig.Playback.Channels = uint32(cfg.Channels)
		deviceConfig.Playback.DeviceID = id.Pointer()
	}

	callbacks := malgo.DeviceCallbacks{
		Data: dataProc(dir, callback),
	}

	device, err := malgo.InitDevice(h.ctx.Context, deviceConfig, callbacks)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s stream on %q: %w", dir, md.Name(), err)
	}

	h.log.Debugf("Opened %s stream on %q (%d Hz, %d ch, %s)", dir, md.Name(),
		cfg.SampleRate, cfg.Channels, cfg.Format)

	return &malgoStream{device: device}, nil
}

// dataProc adapts a typed callback to the raw byte buffers miniaudio uses.
// The typed slices alias the miniaudio buffers; nothing is copied.
func dataProc(dir Direction, callback any) malgo.DataProc {
	pick := func(out, in []byte) []byte {
		if dir == Input {
			return in
		}
		return out
	}

	switch cb := callback.(type) {
	case func([]float32):
		return func(out, in []byte, _ uint32) {
			b := pick(out, in)
			if len(b) < 4 {
				return
			}
			cb(unsafe.Slice((*float32)(unsafe.Pointer(&b[0])), len(b)/4))
		}
	case func([]int16):
		return func(out, in []byte, _ uint32) {
			b := pick(out, in)
			if len(b) < 2 {
				return
			}
			cb(unsafe.Slice((*int16)(unsafe.Pointer(&b[0])), len(b)/2))
		}
	default:
		return func(out, in []byte, _ uint32) {}
	}
}

// Close is part of the Host interface
func (h *MalgoHost) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true

	if err := h.ctx.Uninit(); err != nil {
		return err
	}
	h.ctx.Free()
	return nil
}

// malgoDevice wraps a miniaudio device info
type malgoDevice struct {
	info malgo.DeviceInfo
}

func (d *malgoDevice) Name() string {
	return d.info.Name()
}

// Configs returns the native data formats of the device that map to a
// supported sample format.
func (d *malgoDevice) Configs(dir Direction) ([]StreamConfig, error) {
	count := int(d.info.FormatCount)
	if count > len(d.info.Formats) {
		count = len(d.info.Formats)
	}

	var configs []StreamConfig
	for _, df := range d.info.Formats[:count] {
		var format SampleFormat
		switch df.Format {
		case malgo.FormatF32:
			format = FormatF32
		case malgo.FormatS16:
			format = FormatI16
		default:
			continue
		}

		rate := int(df.SampleRate)
		if rate == 0 {
			rate = malgoFallbackRate
		}
		channels := int(df.Channels)
		if channels == 0 {
			channels = 2
		}
		configs = append(configs, StreamConfig{SampleRate: rate, Channels: channels, Format: format})
	}

	if len(configs) == 0 && count == 0 {
		// No native formats reported; miniaudio converts to anything.
		configs = append(configs, StreamConfig{SampleRate: malgoFallbackRate, Channels: 2, Format: FormatF32})
	}
	return configs, nil
}

// malgoStream implements Stream
type malgoStream struct {
	device  *malgo.Device
	mu      sync.Mutex
	started bool
}

func (s *malgoStream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.device.Start(); err != nil {
		return fmt.Errorf("failed to start stream: %w", err)
	}
	s.started = true
	return nil
}

func (s *malgoStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	defer s.device.Uninit()
	if s.started {
		s.started = false
		if err := s.device.Stop(); err != nil {
			return fmt.Errorf("failed to stop stream: %w", err)
		}
	}
	return nil
}
