package audio

import (
	"testing"
	"time"
)

func TestFormat(t *testing.T) {
	f := Format{FrameRate: 48000, Channels: 2}

	if f.SamplesPerSecond() != 96000 {
		t.Errorf("Expected 96000 samples per second, got %d", f.SamplesPerSecond())
	}
	if d := f.FrameDuration(480); d != 10*time.Millisecond {
		t.Errorf("Expected 10ms, got %v", d)
	}
	if d := (Format{}).FrameDuration(10); d != 0 {
		t.Errorf("Expected 0 for zero rate, got %v", d)
	}
}

func TestCheckCallback(t *testing.T) {
	if err := checkCallback(FormatF32, func([]float32) {}); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
	if err := checkCallback(FormatU16, func([]uint16) {}); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
	if err := checkCallback(FormatI16, func([]float32) {}); err == nil {
		t.Error("Expected mismatch error")
	}
	if err := checkCallback(FormatF32, func() {}); err == nil {
		t.Error("Expected error for non-callback")
	}
}

func TestOpenHost_Unknown(t *testing.T) {
	if _, err := OpenHost("jack", nil); err == nil {
		t.Error("Expected error for unknown backend")
	}
}

func TestNewPortAudioHost(t *testing.T) {
	host, err := NewPortAudioHost(nil)
	if err != nil {
		t.Skipf("PortAudio not available: %v", err)
	}
	defer host.Close()

	if host.Name() != BackendPortAudio {
		t.Errorf("Expected %q, got %q", BackendPortAudio, host.Name())
	}
}

func TestPortAudioEnumerate(t *testing.T) {
	host, err := NewPortAudioHost(nil)
	if err != nil {
		t.Skipf("PortAudio not available: %v", err)
	}
	defer host.Close()

	catalog, _, err := Enumerate(host, nil)
	if err != nil {
		t.Fatalf("Enumerate failed: %v", err)
	}

	if len(catalog.Inputs) == 0 && len(catalog.Outputs) == 0 {
		t.Skip("No audio devices available")
	}

	for _, name := range catalog.Names(Input) {
		info, _ := catalog.Lookup(Input, name)
		t.Logf("Input %q: %d Hz, %d ch, %s", name, info.SampleRate, info.Channels, info.Format)
	}
	for _, name := range catalog.Names(Output) {
		info, _ := catalog.Lookup(Output, name)
		t.Logf("Output %q: %d Hz, %d ch, %s", name, info.SampleRate, info.Channels, info.Format)
	}
}

func TestPortAudioDefaultStream(t *testing.T) {
	host, err := NewPortAudioHost(nil)
	if err != nil {
		t.Skipf("PortAudio not available: %v", err)
	}
	defer host.Close()

	dev, err := host.DefaultDevice(Output)
	if err != nil {
		t.Skipf("No default output device: %v", err)
	}
	cfg, err := Negotiate(dev, Output)
	if err != nil {
		t.Skipf("Default output has no usable config: %v", err)
	}

	var cb any
	switch cfg.Format {
	case FormatI16:
		cb = func(out []int16) {
			for i := range out {
				out[i] = 0
			}
		}
	default:
		cb = func(out []float32) {
			for i := range out {
				out[i] = 0
			}
		}
	}

	stream, err := host.OpenStream(dev, Output, cfg, cb)
	if err != nil {
		t.Fatalf("OpenStream failed: %v", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		t.Fatalf("Start failed: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if err := stream.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestMalgoHost(t *testing.T) {
	host, err := NewMalgoHost(nil)
	if err != nil {
		t.Skipf("miniaudio not available: %v", err)
	}
	defer host.Close()

	catalog, _, err := Enumerate(host, nil)
	if err != nil {
		t.Skipf("miniaudio enumeration failed: %v", err)
	}
	t.Logf("miniaudio: %d inputs, %d outputs", len(catalog.Inputs), len(catalog.Outputs))
}
