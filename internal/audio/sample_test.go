package audio

import (
	"encoding/json"
	"testing"
)

func TestSampleFormat_String(t *testing.T) {
	tests := []struct {
		format   SampleFormat
		expected string
	}{
		{FormatU16, "u16"},
		{FormatI16, "i16"},
		{FormatF32, "f32"},
		{SampleFormat(42), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.format.String(); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestSampleFormat_JSON(t *testing.T) {
	info := DeviceInfo{SampleRate: 44100, Channels: 2, Format: FormatI16}
	data, err := json.Marshal(info)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	expected := `{"sample_rate":44100,"channels":2,"sample_format":"i16"}`
	if string(data) != expected {
		t.Errorf("Expected %s, got %s", expected, data)
	}

	var decoded DeviceInfo
	if err := json.Unmarshal([]byte(`{"sample_rate":8000,"channels":1,"sample_format":"U16"}`), &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if decoded.Format != FormatU16 {
		t.Errorf("Expected u16, got %s", decoded.Format)
	}

	if err := json.Unmarshal([]byte(`{"sample_format":"f64"}`), &decoded); err == nil {
		t.Error("Expected error for unknown sample format")
	}
}

func TestI16Conversion(t *testing.T) {
	tests := []struct {
		name string
		in   int16
		want float32
	}{
		{"min", -32768, -1},
		{"max", 32767, 1},
		{"zero", 0, 0},
		{"half negative", -16384, -0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := I16ToFloat(tt.in); got != tt.want {
				t.Errorf("I16ToFloat(%d) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}

	if got := FloatToI16(1); got != 32767 {
		t.Errorf("FloatToI16(1) = %d", got)
	}
	if got := FloatToI16(-1); got != -32768 {
		t.Errorf("FloatToI16(-1) = %d", got)
	}
	if got := FloatToI16(3.5); got != 32767 {
		t.Errorf("FloatToI16(3.5) should clamp, got %d", got)
	}
	if got := FloatToI16(-2); got != -32768 {
		t.Errorf("FloatToI16(-2) should clamp, got %d", got)
	}

	for _, v := range []int16{-32768, -1000, -1, 0, 1, 1000, 32767} {
		if got := FloatToI16(I16ToFloat(v)); got != v {
			t.Errorf("round trip of %d gave %d", v, got)
		}
	}
}

func TestU16Conversion(t *testing.T) {
	if got := U16ToFloat(0); got != -1 {
		t.Errorf("U16ToFloat(0) = %v, want -1", got)
	}
	if got := U16ToFloat(65535); got != 1 {
		t.Errorf("U16ToFloat(65535) = %v, want 1", got)
	}
	if got := U16ToFloat(32768); got != 0 {
		t.Errorf("U16ToFloat(32768) = %v, want 0", got)
	}
	if got := FloatToU16(0); got != 32768 {
		t.Errorf("FloatToU16(0) = %d, want 32768", got)
	}
	if got := FloatToU16(-5); got != 0 {
		t.Errorf("FloatToU16(-5) = %d, want 0", got)
	}

	for _, v := range []uint16{0, 1, 12345, 32768, 50000, 65535} {
		if got := FloatToU16(U16ToFloat(v)); got != v {
			t.Errorf("round trip of %d gave %d", v, got)
		}
	}
}
