// Package recording holds recorded clips, the lock-free hand-off used to
// capture them from an audio callback, and the controller that drives
// recording from user input.
package recording

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/decred/slog"
)

// State represents the current recording state
type State int

const (
	// Idle means not recording
	Idle State = iota
	// Recording means currently recording audio
	Recording
	// Stopping means the recorded clip is being handed off
	Stopping
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Recording:
		return "Recording"
	case Stopping:
		return "Stopping"
	default:
		return "Unknown"
	}
}

// Recorder starts and stops clip capture
type Recorder interface {
	StartRecording(ctx context.Context) (ClipID, error)
	StopRecording(ctx context.Context) (ClipID, error)
}

// DetachNotifier is implemented by recorders that can store a clip without
// a StopRecording call returning it, for instance when the audio engine
// restarts mid-recording.
type DetachNotifier interface {
	OnClipDetached(f func(ClipID))
}

// Config holds configuration for the recording manager
type Config struct {
	// MaxDuration stops a recording automatically. Zero disables the limit.
	MaxDuration time.Duration
	// RequestTimeout bounds each request to the recorder
	RequestTimeout time.Duration
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		MaxDuration:    10 * time.Minute,
		RequestTimeout: 5 * time.Second,
	}
}

// Manager tracks the recording state shared by every control surface (hotkey,
// tray, HTTP API) and publishes the IDs of finished clips.
type Manager struct {
	rec    Recorder
	config Config
	log    slog.Logger

	mu        sync.Mutex
	state     State
	current   ClipID
	stopTimer *time.Timer
	clipChan  chan ClipID
	closed    bool
}

// NewManager creates a new recording manager
func NewManager(rec Recorder, config Config, log slog.Logger) *Manager {
	if log == nil {
		log = slog.Disabled
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = DefaultConfig().RequestTimeout
	}
	m := &Manager{
		rec:      rec,
		config:   config,
		log:      log,
		state:    Idle,
		clipChan: make(chan ClipID, 16),
	}
	if n, ok := rec.(DetachNotifier); ok {
		n.OnClipDetached(m.adopt)
	}
	return m
}

func (m *Manager) requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), m.config.RequestTimeout)
}

// Start starts recording
func (m *Manager) Start() (ClipID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ClipID{}, fmt.Errorf("recording manager is closed")
	}
	if m.state != Idle {
		return ClipID{}, fmt.Errorf("%w (current state: %s)", ErrAlreadyRecording, m.state)
	}

	ctx, cancel := m.requestContext()
	defer cancel()
	id, err := m.rec.StartRecording(ctx)
	if err != nil {
		return ClipID{}, fmt.Errorf("failed to start recording: %w", err)
	}

	m.state = Recording
	m.current = id

	if m.config.MaxDuration > 0 {
		m.stopTimer = time.AfterFunc(m.config.MaxDuration, func() {
			m.log.Infof("Recording reached the %s limit", m.config.MaxDuration)
			if _, err := m.stopIf(id); err != nil {
				m.log.Errorf("Auto-stop recording failed: %v", err)
			}
		})
	}

	m.log.Debugf("Recording started: %s", id)
	return id, nil
}

// Stop stops recording and returns the ID of the finished clip
func (m *Manager) Stop() (ClipID, error) {
	return m.stopIf(ClipID{})
}

// stopIf stops the recording. A non-zero id only stops that recording.
func (m *Manager) stopIf(id ClipID) (ClipID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != Recording || (!id.IsZero() && id != m.current) {
		return ClipID{}, fmt.Errorf("%w (current state: %s)", ErrNotRecording, m.state)
	}

	if m.stopTimer != nil {
		m.stopTimer.Stop()
		m.stopTimer = nil
	}
	m.state = Stopping

	ctx, cancel := m.requestContext()
	defer cancel()
	clip, err := m.rec.StopRecording(ctx)

	// The recorder may have dropped the recording on its own (engine
	// restart), so the manager always returns to idle.
	m.state = Idle
	m.current = ClipID{}
	if err != nil {
		return ClipID{}, fmt.Errorf("failed to stop recording: %w", err)
	}

	m.announce(clip)
	return clip, nil
}

// adopt takes a clip the recorder stored on its own. The matching recording
// is over, so the manager returns to idle and announces the clip.
func (m *Manager) adopt(id ClipID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == Recording && id == m.current {
		if m.stopTimer != nil {
			m.stopTimer.Stop()
			m.stopTimer = nil
		}
		m.state = Idle
		m.current = ClipID{}
	}
	m.log.Infof("Recorder stored clip %s", id)
	m.announce(id)
}

// announce publishes a finished clip. m.mu must be held.
func (m *Manager) announce(id ClipID) {
	if m.closed {
		return
	}
	select {
	case m.clipChan <- id:
	default:
		m.log.Warnf("Clip channel full, not announcing clip %s", id)
	}
}

// Toggle starts recording when idle and stops it otherwise
func (m *Manager) Toggle() error {
	if m.GetState() == Idle {
		_, err := m.Start()
		return err
	}
	_, err := m.Stop()
	return err
}

// Clips returns the channel announcing finished clips
func (m *Manager) Clips() <-chan ClipID {
	return m.clipChan
}

// GetState returns the current recording state
func (m *Manager) GetState() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Close stops an active recording and closes the clip channel
func (m *Manager) Close() error {
	var stopErr error
	if m.GetState() == Recording {
		_, stopErr = m.Stop()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.clipChan)
	}
	return stopErr
}
