package notification

import (
	"errors"
	"strings"
	"testing"
	"time"
)

type call struct {
	name string
	args []string
}

func newTestNotifier(err error) (*Notifier, *[]call) {
	var calls []call
	nt := New("ezdaw", nil)
	nt.enabled = true
	nt.run = func(name string, args ...string) error {
		calls = append(calls, call{name: name, args: args})
		return err
	}
	return nt, &calls
}

func TestSend(t *testing.T) {
	nt, calls := newTestNotifier(nil)

	if err := nt.Send(&Notification{Title: "T", Message: "M", Type: TypeInfo}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if len(*calls) != 1 {
		t.Fatalf("expected 1 command, got %d", len(*calls))
	}
	c := (*calls)[0]
	if c.name != "osascript" || len(c.args) != 2 || c.args[0] != "-e" {
		t.Fatalf("unexpected command %s %v", c.name, c.args)
	}
	if c.args[1] != `display notification "M" with title "T"` {
		t.Errorf("script = %s", c.args[1])
	}
}

func TestSendNil(t *testing.T) {
	nt, _ := newTestNotifier(nil)
	if err := nt.Send(nil); err == nil {
		t.Error("Send(nil) should fail")
	}
}

func TestSendFailure(t *testing.T) {
	nt, _ := newTestNotifier(errors.New("no display"))
	if err := nt.Send(&Notification{Title: "T", Message: "M"}); err == nil {
		t.Error("expected the command error to be returned")
	}

	// The helpers only log failures.
	nt.Error("still fine")
}

func TestDisabled(t *testing.T) {
	nt, calls := newTestNotifier(nil)
	nt.enabled = false

	nt.Info("hello")
	if len(*calls) != 0 {
		t.Errorf("disabled notifier ran %d commands", len(*calls))
	}
}

func TestTitles(t *testing.T) {
	tests := []struct {
		name  string
		send  func(*Notifier)
		title string
		want  string
	}{
		{"info", func(nt *Notifier) { nt.Info("a") }, "ezdaw", "a"},
		{"error", func(nt *Notifier) { nt.Error("b") }, "ezdaw error", "b"},
		{"clip", func(nt *Notifier) { nt.ClipRecorded(1234 * time.Millisecond) }, "ezdaw", "Clip recorded (1.2s)"},
		{"engine", func(nt *Notifier) { nt.EngineFailed("device lost") }, "ezdaw error", "Audio engine stopped: device lost"},
		{"engine no reason", func(nt *Notifier) { nt.EngineFailed("") }, "ezdaw error", "Audio engine stopped"},
		{"device", func(nt *Notifier) { nt.DeviceNotFound("USB Mic") }, "ezdaw", `Audio device \"USB Mic\" not found`},
		{"microphone", func(nt *Notifier) { nt.MicrophonePermissionDenied() }, "ezdaw error", "Microphone access is denied"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nt, calls := newTestNotifier(nil)
			tt.send(nt)
			if len(*calls) != 1 {
				t.Fatalf("expected 1 command, got %d", len(*calls))
			}
			s := (*calls)[0].args[1]
			if !strings.Contains(s, `with title "`+tt.title+`"`) {
				t.Errorf("script %s does not have title %q", s, tt.title)
			}
			if !strings.Contains(s, tt.want) {
				t.Errorf("script %s does not contain %q", s, tt.want)
			}
		})
	}
}

func TestEscapeAppleScript(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{`say "hi"`, `say \"hi\"`},
		{`a\b`, `a\\b`},
		{"line\nbreak", `line\nbreak`},
		{"tab\there", `tab\there`},
		{"\\\"", `\\\"`},
	}
	for _, tt := range tests {
		if got := escapeAppleScript(tt.in); got != tt.want {
			t.Errorf("escapeAppleScript(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
