// Package permissions reports the macOS privacy permissions the engine
// depends on. Capturing the input device needs microphone access; the
// global record hotkey needs accessibility access.
package permissions

import (
	"fmt"
	"os/exec"
	"runtime"
)

// Status represents the status of a system permission
type Status int

const (
	// NotDetermined means the user hasn't been asked yet
	NotDetermined Status = 0
	// Restricted means the permission is restricted by parental controls
	Restricted Status = 1
	// Denied means the user has explicitly denied the permission
	Denied Status = 2
	// Authorized means the user has authorized the permission
	Authorized Status = 3
)

// String returns the string representation of the status
func (s Status) String() string {
	switch s {
	case NotDetermined:
		return "not_determined"
	case Restricted:
		return "restricted"
	case Denied:
		return "denied"
	case Authorized:
		return "authorized"
	default:
		return "unknown"
	}
}

// MarshalText encodes the status as its name
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Message returns a human readable description of the status
func (s Status) Message() string {
	switch s {
	case NotDetermined:
		return "Permission not yet determined"
	case Restricted:
		return "Permission restricted by parental controls"
	case Denied:
		return "Permission denied"
	case Authorized:
		return "Permission authorized"
	default:
		return "Unknown permission status"
	}
}

// Kind names a permission
type Kind string

const (
	// Microphone is needed to open input streams
	Microphone Kind = "microphone"
	// Accessibility is needed to register the global hotkey
	Accessibility Kind = "accessibility"
)

// Report is the state of every permission
type Report struct {
	Microphone    Status `json:"microphone"`
	Accessibility Status `json:"accessibility"`
}

// Check queries the current permission state
func Check() Report {
	return Report{
		Microphone:    microphoneStatus(),
		Accessibility: accessibilityStatus(),
	}
}

// Get returns the status of one permission
func (r Report) Get(kind Kind) Status {
	switch kind {
	case Microphone:
		return r.Microphone
	case Accessibility:
		return r.Accessibility
	default:
		return NotDetermined
	}
}

// Missing returns the permissions that are not authorized. A microphone
// permission that was never asked for is not reported; the system prompts
// when the first input stream opens.
func (r Report) Missing() []Kind {
	var missing []Kind
	if r.Microphone != Authorized && r.Microphone != NotDetermined {
		missing = append(missing, Microphone)
	}
	if r.Accessibility != Authorized {
		missing = append(missing, Accessibility)
	}
	return missing
}

// Granted reports whether nothing is missing
func (r Report) Granted() bool {
	return len(r.Missing()) == 0
}

// SettingsURL returns the System Settings pane of a permission
func SettingsURL(kind Kind) (string, error) {
	switch kind {
	case Microphone:
		return "x-apple.systempreferences:com.apple.preference.security?Privacy_Microphone", nil
	case Accessibility:
		return "x-apple.systempreferences:com.apple.preference.security?Privacy_Accessibility", nil
	default:
		return "", fmt.Errorf("unknown permission: %s", kind)
	}
}

// OpenSettings opens the System Settings pane of a permission
func OpenSettings(kind Kind) error {
	if runtime.GOOS != "darwin" {
		return fmt.Errorf("permission settings are only available on macOS")
	}
	url, err := SettingsURL(kind)
	if err != nil {
		return err
	}
	return exec.Command("open", url).Run()
}
