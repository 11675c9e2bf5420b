package audio

import (
	"errors"
	"fmt"
)

var (
	// ErrDeviceNotFound is returned when a named device is not in the catalog
	ErrDeviceNotFound = errors.New("device not found")
	// ErrNoDefaultDevice is returned when the host has no default device
	ErrNoDefaultDevice = errors.New("no default device available")
	// ErrUnsupportedFormat is returned when a device cannot open a
	// stream in any of the supported sample formats
	ErrUnsupportedFormat = errors.New("unsupported stream configuration")
)

// QueryError reports a failure of the host while enumerating devices
type QueryError struct {
	Direction Direction
	Err       error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("failed to query %s devices: %v", e.Direction, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}
