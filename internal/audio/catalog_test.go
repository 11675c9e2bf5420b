package audio_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/yok-tottii/ezdaw/internal/audio"
	"github.com/yok-tottii/ezdaw/internal/audio/audiotest"
)

func TestBestConfig(t *testing.T) {
	tests := []struct {
		name    string
		configs []audio.StreamConfig
		want    audio.StreamConfig
		ok      bool
	}{
		{
			name: "highest rate wins",
			configs: []audio.StreamConfig{
				{SampleRate: 44100, Channels: 2, Format: audio.FormatF32},
				{SampleRate: 96000, Channels: 1, Format: audio.FormatI16},
			},
			want: audio.StreamConfig{SampleRate: 96000, Channels: 1, Format: audio.FormatI16},
			ok:   true,
		},
		{
			name: "tie prefers f32",
			configs: []audio.StreamConfig{
				{SampleRate: 48000, Channels: 2, Format: audio.FormatU16},
				{SampleRate: 48000, Channels: 2, Format: audio.FormatF32},
				{SampleRate: 48000, Channels: 2, Format: audio.FormatI16},
			},
			want: audio.StreamConfig{SampleRate: 48000, Channels: 2, Format: audio.FormatF32},
			ok:   true,
		},
		{
			name: "tie prefers more channels",
			configs: []audio.StreamConfig{
				{SampleRate: 48000, Channels: 1, Format: audio.FormatF32},
				{SampleRate: 48000, Channels: 8, Format: audio.FormatF32},
			},
			want: audio.StreamConfig{SampleRate: 48000, Channels: 8, Format: audio.FormatF32},
			ok:   true,
		},
		{
			name:    "invalid entries ignored",
			configs: []audio.StreamConfig{{SampleRate: 0, Channels: 2}},
			ok:      false,
		},
		{
			name: "empty",
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := audio.BestConfig(tt.configs)
			if ok != tt.ok {
				t.Fatalf("Expected ok=%v, got %v", tt.ok, ok)
			}
			if ok && got != tt.want {
				t.Errorf("Expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func newCatalogHost() *audiotest.Host {
	h := audiotest.NewHost()
	h.AddDevice(audio.Input, "USB Mic",
		audio.StreamConfig{SampleRate: 44100, Channels: 1, Format: audio.FormatI16},
		audio.StreamConfig{SampleRate: 48000, Channels: 1, Format: audio.FormatI16})
	h.AddDevice(audio.Input, "Line In",
		audio.StreamConfig{SampleRate: 96000, Channels: 2, Format: audio.FormatF32})
	h.AddDevice(audio.Input, "Broken")
	h.AddDevice(audio.Output, "Speakers",
		audio.StreamConfig{SampleRate: 48000, Channels: 2, Format: audio.FormatU16},
		audio.StreamConfig{SampleRate: 48000, Channels: 2, Format: audio.FormatF32})
	h.AddDevice(audio.Output, "Headphones",
		audio.StreamConfig{SampleRate: 44100, Channels: 2, Format: audio.FormatI16})
	return h
}

func TestEnumerate(t *testing.T) {
	catalog, handles, err := audio.Enumerate(newCatalogHost(), nil)
	if err != nil {
		t.Fatalf("Enumerate failed: %v", err)
	}

	if got := catalog.Names(audio.Input); !reflect.DeepEqual(got, []string{"Line In", "USB Mic"}) {
		t.Errorf("Unexpected input names: %v", got)
	}
	if got := catalog.Names(audio.Output); !reflect.DeepEqual(got, []string{"Headphones", "Speakers"}) {
		t.Errorf("Unexpected output names: %v", got)
	}

	mic, ok := catalog.Lookup(audio.Input, "USB Mic")
	if !ok {
		t.Fatal("USB Mic missing from catalog")
	}
	if mic != (audio.DeviceInfo{SampleRate: 48000, Channels: 1, Format: audio.FormatI16}) {
		t.Errorf("Unexpected USB Mic info: %+v", mic)
	}

	speakers, _ := catalog.Lookup(audio.Output, "Speakers")
	if speakers.Format != audio.FormatF32 {
		t.Errorf("Expected f32 for Speakers, got %s", speakers.Format)
	}

	if _, ok := catalog.Lookup(audio.Input, "Broken"); ok {
		t.Error("Device without configs should be skipped")
	}

	dev, ok := handles.Lookup(audio.Output, "Headphones")
	if !ok || dev.Name() != "Headphones" {
		t.Errorf("Expected handle for Headphones, got %v", dev)
	}
	if _, ok := handles.Lookup(audio.Input, "Headphones"); ok {
		t.Error("Output device should not resolve as input")
	}
}

func TestEnumerate_RoundTrip(t *testing.T) {
	host := newCatalogHost()

	first, _, err := audio.Enumerate(host, nil)
	if err != nil {
		t.Fatalf("Enumerate failed: %v", err)
	}
	second, _, err := audio.Enumerate(host, nil)
	if err != nil {
		t.Fatalf("Enumerate failed: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Errorf("Catalogs differ:\n%+v\n%+v", first, second)
	}
}

func TestEnumerate_DuplicateNames(t *testing.T) {
	host := audiotest.NewHost()
	host.AddDevice(audio.Output, "Speakers",
		audio.StreamConfig{SampleRate: 48000, Channels: 2, Format: audio.FormatF32})
	host.AddDevice(audio.Output, "Speakers",
		audio.StreamConfig{SampleRate: 96000, Channels: 2, Format: audio.FormatF32})

	catalog, _, err := audio.Enumerate(host, nil)
	if err != nil {
		t.Fatalf("Enumerate failed: %v", err)
	}
	if len(catalog.Outputs) != 1 {
		t.Errorf("Expected 1 output, got %d", len(catalog.Outputs))
	}
}

func TestEnumerate_QueryError(t *testing.T) {
	host := newCatalogHost()
	cause := errors.New("coreaudio unavailable")
	host.FailDevices(cause)

	_, _, err := audio.Enumerate(host, nil)
	var qerr *audio.QueryError
	if !errors.As(err, &qerr) {
		t.Fatalf("Expected QueryError, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Error("QueryError should wrap the host error")
	}
	if qerr.Direction != audio.Input {
		t.Errorf("Expected input direction, got %s", qerr.Direction)
	}
}

func TestCatalog_Clone(t *testing.T) {
	c := audio.NewCatalog()
	c.Inputs["Mic"] = audio.DeviceInfo{SampleRate: 48000, Channels: 1, Format: audio.FormatF32}

	clone := c.Clone()
	clone.Inputs["Other"] = audio.DeviceInfo{}
	if len(c.Inputs) != 1 {
		t.Error("Clone should not share maps with the original")
	}
}
