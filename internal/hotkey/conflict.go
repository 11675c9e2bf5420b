package hotkey

import (
	"strings"

	"github.com/yok-tottii/ezdaw/internal/config"
)

// ConflictInfo represents information about a known shortcut conflict
type ConflictInfo struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Binding     config.HotkeyConfig `json:"binding"`
}

// knownConflicts contains shortcuts that are commonly taken on macOS
var knownConflicts = []ConflictInfo{
	{
		Name:        "Spotlight",
		Description: "macOS Spotlight search",
		Binding:     config.HotkeyConfig{Cmd: true, Key: "Space"},
	},
	{
		Name:        "Input Source",
		Description: "Switch to the previous input source",
		Binding:     config.HotkeyConfig{Ctrl: true, Key: "Space"},
	},
	{
		Name:        "Force Quit",
		Description: "macOS Force Quit",
		Binding:     config.HotkeyConfig{Cmd: true, Alt: true, Key: "Escape"},
	},
	{
		Name:        "Screenshot",
		Description: "Capture the entire screen",
		Binding:     config.HotkeyConfig{Cmd: true, Shift: true, Key: "3"},
	},
	{
		Name:        "Screenshot Selection",
		Description: "Capture a portion of the screen",
		Binding:     config.HotkeyConfig{Cmd: true, Shift: true, Key: "4"},
	},
	{
		Name:        "Record",
		Description: "Record in Logic Pro and GarageBand",
		Binding:     config.HotkeyConfig{Key: "R"},
	},
}

// CheckConflicts checks if the given binding conflicts with known system
// or DAW shortcuts
func CheckConflicts(b config.HotkeyConfig) []ConflictInfo {
	var conflicts []ConflictInfo

	for _, known := range knownConflicts {
		if hotkeyMatches(b, known.Binding) {
			conflicts = append(conflicts, known)
		}
	}

	return conflicts
}

// hotkeyMatches checks if two bindings are identical
func hotkeyMatches(a, b config.HotkeyConfig) bool {
	return a.Ctrl == b.Ctrl && a.Shift == b.Shift && a.Alt == b.Alt && a.Cmd == b.Cmd &&
		normalizeKey(a.Key) == normalizeKey(b.Key)
}

// FormatHotkey returns a human-readable representation of a binding
func FormatHotkey(b config.HotkeyConfig) string {
	var sb strings.Builder

	if b.Ctrl {
		sb.WriteString("⌃")
	}
	if b.Shift {
		sb.WriteString("⇧")
	}
	if b.Alt {
		sb.WriteString("⌥")
	}
	if b.Cmd {
		sb.WriteString("⌘")
	}

	key := normalizeKey(b.Key)
	if _, ok := keyNames[key]; !ok {
		key = "Unknown"
	}
	sb.WriteString(key)
	return sb.String()
}
