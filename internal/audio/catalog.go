package audio

import (
	"fmt"
	"sort"

	"github.com/decred/slog"
)

// DeviceInfo is the best configuration a device supports
type DeviceInfo struct {
	SampleRate int          `json:"sample_rate"`
	Channels   int          `json:"channels"`
	Format     SampleFormat `json:"sample_format"`
}

// Config returns the info as a stream configuration
func (i DeviceInfo) Config() StreamConfig {
	return StreamConfig{SampleRate: i.SampleRate, Channels: i.Channels, Format: i.Format}
}

// Catalog maps device names to their capabilities. Iteration order of the
// host is not stable, so devices are only ever addressed by name.
type Catalog struct {
	Inputs  map[string]DeviceInfo `json:"input_devices"`
	Outputs map[string]DeviceInfo `json:"output_devices"`
}

// NewCatalog returns an empty catalog
func NewCatalog() Catalog {
	return Catalog{
		Inputs:  make(map[string]DeviceInfo),
		Outputs: make(map[string]DeviceInfo),
	}
}

func (c Catalog) side(dir Direction) map[string]DeviceInfo {
	if dir == Input {
		return c.Inputs
	}
	return c.Outputs
}

// Lookup returns the info of the named device
func (c Catalog) Lookup(dir Direction, name string) (DeviceInfo, bool) {
	info, ok := c.side(dir)[name]
	return info, ok
}

// Names returns the sorted device names for a direction
func (c Catalog) Names(dir Direction) []string {
	m := c.side(dir)
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns a deep copy of the catalog
func (c Catalog) Clone() Catalog {
	out := NewCatalog()
	for k, v := range c.Inputs {
		out.Inputs[k] = v
	}
	for k, v := range c.Outputs {
		out.Outputs[k] = v
	}
	return out
}

// Handles maps device names to the host devices they were enumerated from
type Handles struct {
	Inputs  map[string]Device
	Outputs map[string]Device
}

// Lookup returns the device handle for a name
func (h Handles) Lookup(dir Direction, name string) (Device, bool) {
	m := h.Outputs
	if dir == Input {
		m = h.Inputs
	}
	dev, ok := m[name]
	return dev, ok
}

// BestConfig selects the configuration with the highest sample rate. Ties
// prefer f32 over i16 over u16 and then more channels.
func BestConfig(configs []StreamConfig) (StreamConfig, bool) {
	var best StreamConfig
	found := false
	for _, c := range configs {
		if c.SampleRate <= 0 || c.Channels <= 0 {
			continue
		}
		if !found || better(c, best) {
			best = c
			found = true
		}
	}
	return best, found
}

func better(a, b StreamConfig) bool {
	if a.SampleRate != b.SampleRate {
		return a.SampleRate > b.SampleRate
	}
	if a.Format.preference() != b.Format.preference() {
		return a.Format.preference() > b.Format.preference()
	}
	return a.Channels > b.Channels
}

// Negotiate returns the configuration a stream on dev will be opened with.
func Negotiate(dev Device, dir Direction) (StreamConfig, error) {
	configs, err := dev.Configs(dir)
	if err != nil {
		return StreamConfig{}, fmt.Errorf("failed to query %s configs of %q: %w", dir, dev.Name(), err)
	}
	best, ok := BestConfig(configs)
	if !ok {
		return StreamConfig{}, fmt.Errorf("%w: %s device %q", ErrUnsupportedFormat, dir, dev.Name())
	}
	return best, nil
}

// Enumerate lists every input and output device of host together with the
// best configuration of each.
func Enumerate(host Host, log slog.Logger) (Catalog, Handles, error) {
	if log == nil {
		log = slog.Disabled
	}

	catalog := NewCatalog()
	handles := Handles{
		Inputs:  make(map[string]Device),
		Outputs: make(map[string]Device),
	}

	for _, dir := range []Direction{Input, Output} {
		devices, err := host.Devices(dir)
		if err != nil {
			return Catalog{}, Handles{}, &QueryError{Direction: dir, Err: err}
		}

		infos := catalog.side(dir)
		table := handles.Outputs
		if dir == Input {
			table = handles.Inputs
		}

		for _, dev := range devices {
			name := dev.Name()
			if _, dup := table[name]; dup {
				log.Debugf("Skipping duplicate %s device %q", dir, name)
				continue
			}

			cfg, err := Negotiate(dev, dir)
			if err != nil {
				log.Warnf("Unable to get %s device config: %v", dir, err)
				continue
			}

			table[name] = dev
			infos[name] = DeviceInfo{
				SampleRate: cfg.SampleRate,
				Channels:   cfg.Channels,
				Format:     cfg.Format,
			}
		}
	}

	log.Debugf("Enumerated %d input and %d output devices on %s",
		len(catalog.Inputs), len(catalog.Outputs), host.Name())

	return catalog, handles, nil
}
