package engine

import (
	"fmt"

	"github.com/decred/slog"

	"github.com/yok-tottii/ezdaw/internal/audio"
)

// endpoint is a resolved device together with the configuration its stream
// is opened with.
type endpoint struct {
	name   string
	device audio.Device
	config audio.StreamConfig
}

// plan is everything needed to open a stream pair. Building a plan queries
// the host but opens nothing, so a failed plan leaves a running engine
// untouched.
type plan struct {
	desc    Descriptor
	catalog audio.Catalog

	input  endpoint
	output endpoint

	format  audio.Format
	latency int
}

// prepare enumerates the host devices and resolves desc against them.
func prepare(host audio.Host, desc Descriptor, log slog.Logger) (*plan, error) {
	if err := desc.Validate(); err != nil {
		return nil, &ConfigError{Err: err}
	}

	catalog, handles, err := audio.Enumerate(host, log)
	if err != nil {
		return nil, err
	}

	p := &plan{desc: desc, catalog: catalog}
	if p.input, err = resolve(host, catalog, handles, audio.Input, desc.InputDevice); err != nil {
		return nil, err
	}
	if p.output, err = resolve(host, catalog, handles, audio.Output, desc.OutputDevice); err != nil {
		return nil, err
	}

	p.format = audio.Format{
		FrameRate: p.output.config.SampleRate,
		Channels:  p.output.config.Channels,
	}
	p.latency = audio.LatencySamples(desc.LatencyMS, p.format.FrameRate, p.format.Channels)
	return p, nil
}

// resolve finds the device for a direction. A named device must be in the
// catalog; an empty name selects the host default.
func resolve(host audio.Host, catalog audio.Catalog, handles audio.Handles,
	dir audio.Direction, name string) (endpoint, error) {

	if name != "" {
		dev, ok := handles.Lookup(dir, name)
		info, known := catalog.Lookup(dir, name)
		if !ok || !known {
			return endpoint{}, &ConfigError{Direction: dir, Device: name, Err: audio.ErrDeviceNotFound}
		}
		return endpoint{name: name, device: dev, config: info.Config()}, nil
	}

	dev, err := host.DefaultDevice(dir)
	if err != nil {
		return endpoint{}, &ConfigError{Direction: dir, Err: err}
	}
	if info, ok := catalog.Lookup(dir, dev.Name()); ok {
		return endpoint{name: dev.Name(), device: dev, config: info.Config()}, nil
	}

	cfg, err := audio.Negotiate(dev, dir)
	if err != nil {
		return endpoint{}, &ConfigError{Direction: dir, Err: err}
	}
	return endpoint{name: dev.Name(), device: dev, config: cfg}, nil
}

// String describes the plan for logs
func (p *plan) String() string {
	return fmt.Sprintf("%q -> %q at %d Hz, %d ch", p.input.name, p.output.name,
		p.format.FrameRate, p.format.Channels)
}
