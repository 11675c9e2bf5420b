package audio

import (
	"fmt"
	"strings"
)

// SampleFormat is a hardware-native sample representation
type SampleFormat int

const (
	// FormatU16 is unsigned 16-bit PCM with the zero level at 32768
	FormatU16 SampleFormat = iota
	// FormatI16 is signed 16-bit PCM
	FormatI16
	// FormatF32 is 32-bit float in [-1, 1]
	FormatF32
)

// String returns the string representation of the format
func (f SampleFormat) String() string {
	switch f {
	case FormatU16:
		return "u16"
	case FormatI16:
		return "i16"
	case FormatF32:
		return "f32"
	default:
		return "unknown"
	}
}

// ParseSampleFormat parses the value produced by String
func ParseSampleFormat(s string) (SampleFormat, error) {
	switch strings.ToLower(s) {
	case "u16":
		return FormatU16, nil
	case "i16":
		return FormatI16, nil
	case "f32":
		return FormatF32, nil
	default:
		return 0, fmt.Errorf("unknown sample format: %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler
func (f SampleFormat) MarshalText() ([]byte, error) {
	if f < FormatU16 || f > FormatF32 {
		return nil, fmt.Errorf("invalid sample format: %d", int(f))
	}
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (f *SampleFormat) UnmarshalText(b []byte) error {
	v, err := ParseSampleFormat(string(b))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// SampleSize returns the size of one sample in bytes
func (f SampleFormat) SampleSize() int {
	if f == FormatF32 {
		return 4
	}
	return 2
}

// preference orders formats when two configurations tie on sample rate.
func (f SampleFormat) preference() int {
	switch f {
	case FormatF32:
		return 2
	case FormatI16:
		return 1
	default:
		return 0
	}
}

// I16ToFloat converts a signed 16-bit sample to a normalized sample.
func I16ToFloat(v int16) float32 {
	if v < 0 {
		return float32(v) / 32768
	}
	return float32(v) / 32767
}

// FloatToI16 converts a normalized sample to signed 16-bit, clamping to [-1, 1].
func FloatToI16(v float32) int16 {
	switch {
	case v >= 1:
		return 32767
	case v <= -1:
		return -32768
	case v < 0:
		return int16(v * 32768)
	default:
		return int16(v * 32767)
	}
}

// U16ToFloat converts an unsigned 16-bit sample to a normalized sample.
func U16ToFloat(v uint16) float32 {
	return I16ToFloat(int16(v ^ 0x8000))
}

// FloatToU16 converts a normalized sample to unsigned 16-bit.
func FloatToU16(v float32) uint16 {
	return uint16(FloatToI16(v)) ^ 0x8000
}
