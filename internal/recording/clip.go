package recording

import (
	"time"

	"github.com/google/uuid"

	"github.com/yok-tottii/ezdaw/internal/audio"
)

// ClipID identifies a recorded clip
type ClipID uuid.UUID

// NewClipID returns a random clip ID
func NewClipID() ClipID {
	return ClipID(uuid.New())
}

// ParseClipID parses the string form of a clip ID
func ParseClipID(s string) (ClipID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return ClipID{}, err
	}
	return ClipID(id), nil
}

// String returns the string representation of the ID
func (id ClipID) String() string {
	return uuid.UUID(id).String()
}

// IsZero reports whether id is the zero ID
func (id ClipID) IsZero() bool {
	return id == ClipID{}
}

// MarshalText implements encoding.TextMarshaler
func (id ClipID) MarshalText() ([]byte, error) {
	return uuid.UUID(id).MarshalText()
}

// UnmarshalText implements encoding.TextUnmarshaler
func (id *ClipID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

// Frame is a group of up to Channels recorded samples for one point in time
type Frame []float32

// Sample returns the sample of a channel, or silence if the frame does not
// hold that channel.
func (f Frame) Sample(channel int) float32 {
	if channel < 0 || channel >= len(f) {
		return 0
	}
	return f[channel]
}

// Source is anything that can be sampled at a point in time
type Source interface {
	// Sample returns the normalized sample of channel at t seconds
	Sample(t float64, channel int) float32
}

// Clip is a recorded piece of audio. Samples are stored interleaved; every
// Channels consecutive samples form one frame, and only the last frame may be
// partial.
//
// A clip is append-only while it is being recorded and read-only afterwards.
// It is not safe for concurrent use while recording.
type Clip struct {
	ID        ClipID
	Format    audio.Format
	CreatedAt time.Time

	samples []float32
}

// NewClip creates an empty clip. preallocate is the number of samples to
// reserve up front.
func NewClip(format audio.Format, preallocate int) *Clip {
	if preallocate < 0 {
		preallocate = 0
	}
	return &Clip{
		ID:        NewClipID(),
		Format:    format,
		CreatedAt: time.Now(),
		samples:   make([]float32, 0, preallocate),
	}
}

// PushSample appends one sample. It continues the last frame until that frame
// holds Channels samples, after which a new frame is started.
func (c *Clip) PushSample(v float32) {
	c.samples = append(c.samples, v)
}

// IsEmpty reports whether no sample has been recorded
func (c *Clip) IsEmpty() bool {
	return len(c.samples) == 0
}

// SampleCount returns the number of recorded samples
func (c *Clip) SampleCount() int {
	return len(c.samples)
}

func (c *Clip) channels() int {
	if c.Format.Channels <= 0 {
		return 1
	}
	return c.Format.Channels
}

// FrameCount returns the number of frames, counting a trailing partial frame
func (c *Clip) FrameCount() int {
	ch := c.channels()
	return (len(c.samples) + ch - 1) / ch
}

// Frame returns frame i, or nil if out of range. The frame aliases the clip
// storage.
func (c *Clip) Frame(i int) Frame {
	ch := c.channels()
	start := i * ch
	if i < 0 || start >= len(c.samples) {
		return nil
	}
	end := min(start+ch, len(c.samples))
	return Frame(c.samples[start:end:end])
}

// Frames returns every frame of the clip in order
func (c *Clip) Frames() []Frame {
	n := c.FrameCount()
	frames := make([]Frame, n)
	for i := range frames {
		frames[i] = c.Frame(i)
	}
	return frames
}

// Samples returns the interleaved samples. The slice aliases the clip
// storage and must not be modified.
func (c *Clip) Samples() []float32 {
	return c.samples
}

// Duration returns the length of the clip
func (c *Clip) Duration() time.Duration {
	return c.Format.FrameDuration(c.FrameCount())
}

// Sample implements Source. Time is mapped to a frame index by the clip
// frame rate; positions outside the clip are silent.
func (c *Clip) Sample(t float64, channel int) float32 {
	if t < 0 || c.Format.FrameRate <= 0 {
		return 0
	}
	return c.Frame(int(t * float64(c.Format.FrameRate))).Sample(channel)
}
