package recording

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/yok-tottii/ezdaw/internal/audio"
)

var (
	// ErrAlreadyRecording is returned by Start when a clip is being captured
	ErrAlreadyRecording = errors.New("already recording")
	// ErrNotRecording is returned by Stop when no clip is being captured
	ErrNotRecording = errors.New("not recording")
	// ErrCaptureBusy is returned by Stop when the audio callback did not
	// release the clip in time
	ErrCaptureBusy = errors.New("audio callback did not release the clip")
)

// DefaultReleaseTimeout bounds how long Stop waits for the audio callback
const DefaultReleaseTimeout = time.Second

// Capture hands the active clip to the output callback without locks.
//
// Start and Stop are called from the control goroutine. The output callback
// brackets each period with Begin and End and appends samples to the clip
// returned by Begin. Stop unpublishes the clip and then waits for the
// in-flight period to end, so once Stop returns the callback no longer holds
// the clip.
//
// A clip whose period did not end in time stays pending: Active keeps
// reporting it, Start refuses a new clip and the next Stop resumes the wait.
type Capture struct {
	clip    atomic.Pointer[Clip]
	pending atomic.Pointer[Clip]
	busy    atomic.Bool
	periods atomic.Uint64

	// ReleaseTimeout overrides DefaultReleaseTimeout when positive
	ReleaseTimeout time.Duration
}

// Start publishes a fresh clip tagged with format
func (c *Capture) Start(format audio.Format, preallocate int) (*Clip, error) {
	if c.pending.Load() != nil {
		return nil, ErrCaptureBusy
	}
	clip := NewClip(format, preallocate)
	if !c.clip.CompareAndSwap(nil, clip) {
		return nil, ErrAlreadyRecording
	}
	return clip, nil
}

// Stop unpublishes the active clip and returns it once the output callback
// has released it. ErrCaptureBusy leaves the clip pending for a later Stop.
func (c *Capture) Stop() (*Clip, error) {
	clip := c.pending.Load()
	if clip == nil {
		clip = c.clip.Swap(nil)
		if clip == nil {
			return nil, ErrNotRecording
		}
		c.pending.Store(clip)
	}

	// Periods run one at a time, so the clip is released once no period
	// is in flight or one period ended after the clip was unpublished.
	seen := c.periods.Load()

	timeout := c.ReleaseTimeout
	if timeout <= 0 {
		timeout = DefaultReleaseTimeout
	}
	deadline := time.Now().Add(timeout)
	for c.busy.Load() && c.periods.Load() == seen {
		if time.Now().After(deadline) {
			return nil, ErrCaptureBusy
		}
		time.Sleep(time.Millisecond)
	}

	c.pending.Store(nil)
	return clip, nil
}

// Detach takes the active or pending clip without waiting for the output
// callback. It must only be called once the callback can no longer run.
func (c *Capture) Detach() *Clip {
	clip := c.pending.Swap(nil)
	if active := c.clip.Swap(nil); active != nil {
		clip = active
	}
	c.busy.Store(false)
	return clip
}

// Active reports whether a clip is being captured or waits to be released
func (c *Capture) Active() bool {
	return c.clip.Load() != nil || c.pending.Load() != nil
}

// Begin marks the start of a callback period and returns the clip to append
// to, or nil when not recording. Every Begin must be paired with End.
func (c *Capture) Begin() *Clip {
	c.busy.Store(true)
	return c.clip.Load()
}

// End marks the end of a callback period
func (c *Capture) End() {
	c.periods.Add(1)
	c.busy.Store(false)
}
