package recording

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeRecorder records the calls made by the manager
type fakeRecorder struct {
	mu      sync.Mutex
	active  bool
	starts  int
	stops   int
	stopErr error
}

func (r *fakeRecorder) StartRecording(ctx context.Context) (ClipID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active {
		return ClipID{}, ErrAlreadyRecording
	}
	r.active = true
	r.starts++
	return NewClipID(), nil
}

func (r *fakeRecorder) StopRecording(ctx context.Context) (ClipID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopErr != nil {
		return ClipID{}, r.stopErr
	}
	if !r.active {
		return ClipID{}, ErrNotRecording
	}
	r.active = false
	r.stops++
	return NewClipID(), nil
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.MaxDuration != 10*time.Minute {
		t.Errorf("Expected MaxDuration 10m, got %v", config.MaxDuration)
	}
	if config.RequestTimeout != 5*time.Second {
		t.Errorf("Expected RequestTimeout 5s, got %v", config.RequestTimeout)
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state    State
		expected string
	}{
		{Idle, "Idle"},
		{Recording, "Recording"},
		{Stopping, "Stopping"},
		{State(9), "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			result := tt.state.String()
			if result != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, result)
			}
		})
	}
}

func TestManagerLifecycle(t *testing.T) {
	rec := &fakeRecorder{}
	m := NewManager(rec, DefaultConfig(), nil)
	defer m.Close()

	if _, err := m.Stop(); !errors.Is(err, ErrNotRecording) {
		t.Errorf("Expected ErrNotRecording, got %v", err)
	}

	if _, err := m.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if m.GetState() != Recording {
		t.Errorf("Expected Recording, got %s", m.GetState())
	}
	if _, err := m.Start(); !errors.Is(err, ErrAlreadyRecording) {
		t.Errorf("Expected ErrAlreadyRecording, got %v", err)
	}

	id, err := m.Stop()
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if m.GetState() != Idle {
		t.Errorf("Expected Idle, got %s", m.GetState())
	}

	select {
	case got := <-m.Clips():
		if got != id {
			t.Errorf("Expected clip %s, got %s", id, got)
		}
	default:
		t.Error("Expected finished clip to be announced")
	}
}

func TestManagerToggle(t *testing.T) {
	rec := &fakeRecorder{}
	m := NewManager(rec, DefaultConfig(), nil)
	defer m.Close()

	if err := m.Toggle(); err != nil {
		t.Fatalf("Toggle failed: %v", err)
	}
	if err := m.Toggle(); err != nil {
		t.Fatalf("Toggle failed: %v", err)
	}
	if rec.starts != 1 || rec.stops != 1 {
		t.Errorf("Expected 1 start and 1 stop, got %d and %d", rec.starts, rec.stops)
	}
}

func TestManagerStopFailureResets(t *testing.T) {
	rec := &fakeRecorder{}
	m := NewManager(rec, DefaultConfig(), nil)
	defer m.Close()

	if _, err := m.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	rec.stopErr = errors.New("engine restarted")
	if _, err := m.Stop(); err == nil {
		t.Fatal("Expected stop to fail")
	}
	if m.GetState() != Idle {
		t.Errorf("Expected Idle after failed stop, got %s", m.GetState())
	}
}

func TestManagerMaxDuration(t *testing.T) {
	rec := &fakeRecorder{}
	m := NewManager(rec, Config{MaxDuration: 20 * time.Millisecond}, nil)
	defer m.Close()

	if _, err := m.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	select {
	case <-m.Clips():
	case <-time.After(2 * time.Second):
		t.Fatal("Recording was not stopped automatically")
	}
	if m.GetState() != Idle {
		t.Errorf("Expected Idle, got %s", m.GetState())
	}
}

func TestManagerClose(t *testing.T) {
	rec := &fakeRecorder{}
	m := NewManager(rec, DefaultConfig(), nil)

	if _, err := m.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if rec.active {
		t.Error("Close should stop the active recording")
	}
	if _, err := m.Start(); err == nil {
		t.Error("Start should fail after Close")
	}
	if err := m.Close(); err != nil {
		t.Errorf("Second Close failed: %v", err)
	}
}

// detachingRecorder can drop the active recording on its own, the way the
// engine does when it restarts.
type detachingRecorder struct {
	fakeRecorder
	current ClipID
	notify  func(ClipID)
}

func (r *detachingRecorder) StartRecording(ctx context.Context) (ClipID, error) {
	id, err := r.fakeRecorder.StartRecording(ctx)
	r.mu.Lock()
	r.current = id
	r.mu.Unlock()
	return id, err
}

func (r *detachingRecorder) OnClipDetached(f func(ClipID)) {
	r.notify = f
}

func (r *detachingRecorder) detach() ClipID {
	r.mu.Lock()
	id := r.current
	r.active = false
	r.mu.Unlock()
	r.notify(id)
	return id
}

func TestManagerAdoptsDetachedClip(t *testing.T) {
	rec := &detachingRecorder{}
	m := NewManager(rec, DefaultConfig(), nil)
	defer m.Close()
	if rec.notify == nil {
		t.Fatal("Manager should register with a DetachNotifier")
	}

	id, err := m.Start()
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if got := rec.detach(); got != id {
		t.Fatalf("Detached %s, want %s", got, id)
	}

	select {
	case got := <-m.Clips():
		if got != id {
			t.Errorf("Announced %s, want %s", got, id)
		}
	case <-time.After(time.Second):
		t.Fatal("Detached clip was not announced")
	}
	if state := m.GetState(); state != Idle {
		t.Errorf("Expected Idle after the recorder dropped the recording, got %s", state)
	}
	if _, err := m.Start(); err != nil {
		t.Errorf("Start after a detached clip failed: %v", err)
	}
}

func TestManagerAdoptsLateClipWhileIdle(t *testing.T) {
	rec := &detachingRecorder{}
	m := NewManager(rec, DefaultConfig(), nil)

	late := NewClipID()
	rec.notify(late)
	select {
	case got := <-m.Clips():
		if got != late {
			t.Errorf("Announced %s, want %s", got, late)
		}
	case <-time.After(time.Second):
		t.Fatal("Late clip was not announced")
	}

	m.Close()
	// Announcing after Close must not panic on the closed channel.
	rec.notify(NewClipID())
}
