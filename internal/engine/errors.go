package engine

import (
	"errors"
	"fmt"

	"github.com/yok-tottii/ezdaw/internal/audio"
	"github.com/yok-tottii/ezdaw/internal/recording"
)

var (
	// ErrNotRunning is returned by requests sent while no worker runs
	ErrNotRunning = errors.New("engine is not running")
	// ErrAlreadyRunning is returned by Start when a worker runs
	ErrAlreadyRunning = errors.New("engine is already running")
	// ErrRecording is returned when a recording is already in progress
	ErrRecording = recording.ErrAlreadyRecording
	// ErrNotRecording is returned when stopping without a recording
	ErrNotRecording = recording.ErrNotRecording
	// ErrWorkerPanic is returned when the worker goroutine panicked
	ErrWorkerPanic = errors.New("engine worker panicked")
	// ErrInvalidDescriptor is returned for descriptors that fail validation
	ErrInvalidDescriptor = errors.New("invalid engine descriptor")
)

// ConfigError reports a descriptor that cannot be turned into a running
// stream pair. The engine state is unchanged when it is returned from
// Restart.
type ConfigError struct {
	Direction audio.Direction
	Device    string
	Err       error
}

func (e *ConfigError) Error() string {
	if errors.Is(e.Err, ErrInvalidDescriptor) {
		return e.Err.Error()
	}
	return fmt.Sprintf("cannot use %s %s device: %v", deviceLabel(e.Device), e.Direction, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
