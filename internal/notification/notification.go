// Package notification sends desktop notifications through the macOS
// Notification Center.
package notification

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/decred/slog"
)

// Type represents the severity of a notification
type Type string

const (
	// TypeInfo is an informational notification
	TypeInfo Type = "info"
	// TypeWarning is a warning notification
	TypeWarning Type = "warning"
	// TypeError is an error notification
	TypeError Type = "error"
	// TypeSuccess is a success notification
	TypeSuccess Type = "success"
)

// Notification is a single desktop notification
type Notification struct {
	Title   string
	Message string
	Type    Type
}

// runner executes a command, swapped in tests
type runner func(name string, args ...string) error

func execRunner(name string, args ...string) error {
	return exec.Command(name, args...).Run()
}

// Notifier sends notifications on behalf of the application
type Notifier struct {
	appName string
	log     slog.Logger
	run     runner
	enabled bool
}

// New creates a notifier. Notifications are only delivered on macOS;
// elsewhere they are logged.
func New(appName string, log slog.Logger) *Notifier {
	if log == nil {
		log = slog.Disabled
	}
	return &Notifier{
		appName: appName,
		log:     log,
		run:     execRunner,
		enabled: runtime.GOOS == "darwin",
	}
}

// Send delivers n
func (nt *Notifier) Send(n *Notification) error {
	if n == nil {
		return fmt.Errorf("notification cannot be nil")
	}

	nt.log.Infof("Notification (%s): %s - %s", n.Type, n.Title, n.Message)
	if !nt.enabled {
		return nil
	}

	if err := nt.run("osascript", "-e", script(n)); err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	return nil
}

// script returns the AppleScript displaying n
func script(n *Notification) string {
	return fmt.Sprintf(`display notification "%s" with title "%s"`,
		escapeAppleScript(n.Message), escapeAppleScript(n.Title))
}

// escapeAppleScript escapes special characters for AppleScript
func escapeAppleScript(s string) string {
	// Backslashes first to avoid double-escaping
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	s = strings.ReplaceAll(s, "\r", `\r`)
	s = strings.ReplaceAll(s, "\t", `\t`)
	return s
}

func (nt *Notifier) send(typ Type, title, message string) {
	if err := nt.Send(&Notification{Title: title, Message: message, Type: typ}); err != nil {
		nt.log.Debugf("Unable to show notification: %v", err)
	}
}

// Info sends an informational notification
func (nt *Notifier) Info(message string) {
	nt.send(TypeInfo, nt.appName, message)
}

// Warning sends a warning notification
func (nt *Notifier) Warning(message string) {
	nt.send(TypeWarning, nt.appName, message)
}

// Error sends an error notification
func (nt *Notifier) Error(message string) {
	nt.send(TypeError, nt.appName+" error", message)
}

// Success sends a success notification
func (nt *Notifier) Success(message string) {
	nt.send(TypeSuccess, nt.appName, message)
}

// ClipRecorded announces a finished clip
func (nt *Notifier) ClipRecorded(d time.Duration) {
	nt.Success(fmt.Sprintf("Clip recorded (%v)", d.Round(100*time.Millisecond)))
}

// EngineFailed reports that the engine could not start or stopped on error
func (nt *Notifier) EngineFailed(reason string) {
	message := "Audio engine stopped"
	if reason != "" {
		message += ": " + reason
	}
	nt.Error(message)
}

// DeviceNotFound reports that a configured device is gone
func (nt *Notifier) DeviceNotFound(name string) {
	nt.Warning(fmt.Sprintf("Audio device %q not found, using the system default", name))
}

// MicrophonePermissionDenied reports missing microphone access
func (nt *Notifier) MicrophonePermissionDenied() {
	nt.Error("Microphone access is denied. Allow it in System Settings > Privacy & Security.")
}
