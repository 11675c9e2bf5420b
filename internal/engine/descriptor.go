package engine

import (
	"fmt"
	"math"
)

const (
	// DefaultLatencyMS is the latency of a default descriptor
	DefaultLatencyMS = 5.0
	// MaxLatencyMS is the largest accepted latency
	MaxLatencyMS = 1000.0
)

// Descriptor selects the devices and latency the engine runs with. An empty
// device name selects the host default device for that direction.
type Descriptor struct {
	LatencyMS    float64 `json:"latency_ms"`
	InputDevice  string  `json:"input_device,omitempty"`
	OutputDevice string  `json:"output_device,omitempty"`
}

// DefaultDescriptor returns a descriptor using the default devices
func DefaultDescriptor() Descriptor {
	return Descriptor{LatencyMS: DefaultLatencyMS}
}

// Validate checks the descriptor values
func (d Descriptor) Validate() error {
	if math.IsNaN(d.LatencyMS) || d.LatencyMS <= 0 || d.LatencyMS > MaxLatencyMS {
		return fmt.Errorf("%w: latency must be in (0, %v] ms, got %v",
			ErrInvalidDescriptor, MaxLatencyMS, d.LatencyMS)
	}
	return nil
}

func deviceLabel(name string) string {
	if name == "" {
		return "default"
	}
	return fmt.Sprintf("%q", name)
}

// String returns a short description for logs
func (d Descriptor) String() string {
	return fmt.Sprintf("latency %vms, input %s, output %s",
		d.LatencyMS, deviceLabel(d.InputDevice), deviceLabel(d.OutputDevice))
}
