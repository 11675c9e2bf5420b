package hotkey

import (
	"fmt"
	"strings"

	"github.com/yok-tottii/ezdaw/internal/config"
	"golang.design/x/hotkey"
)

var keyNames = map[string]hotkey.Key{
	"Space":  hotkey.KeySpace,
	"Return": hotkey.KeyReturn,
	"Escape": hotkey.KeyEscape,
	"Delete": hotkey.KeyDelete,
	"Tab":    hotkey.KeyTab,
	"Left":   hotkey.KeyLeft,
	"Right":  hotkey.KeyRight,
	"Up":     hotkey.KeyUp,
	"Down":   hotkey.KeyDown,
	"A":      hotkey.KeyA,
	"B":      hotkey.KeyB,
	"C":      hotkey.KeyC,
	"D":      hotkey.KeyD,
	"E":      hotkey.KeyE,
	"F":      hotkey.KeyF,
	"G":      hotkey.KeyG,
	"H":      hotkey.KeyH,
	"I":      hotkey.KeyI,
	"J":      hotkey.KeyJ,
	"K":      hotkey.KeyK,
	"L":      hotkey.KeyL,
	"M":      hotkey.KeyM,
	"N":      hotkey.KeyN,
	"O":      hotkey.KeyO,
	"P":      hotkey.KeyP,
	"Q":      hotkey.KeyQ,
	"R":      hotkey.KeyR,
	"S":      hotkey.KeyS,
	"T":      hotkey.KeyT,
	"U":      hotkey.KeyU,
	"V":      hotkey.KeyV,
	"W":      hotkey.KeyW,
	"X":      hotkey.KeyX,
	"Y":      hotkey.KeyY,
	"Z":      hotkey.KeyZ,
	"0":      hotkey.Key0,
	"1":      hotkey.Key1,
	"2":      hotkey.Key2,
	"3":      hotkey.Key3,
	"4":      hotkey.Key4,
	"5":      hotkey.Key5,
	"6":      hotkey.Key6,
	"7":      hotkey.Key7,
	"8":      hotkey.Key8,
	"9":      hotkey.Key9,
	"F1":     hotkey.KeyF1,
	"F2":     hotkey.KeyF2,
	"F3":     hotkey.KeyF3,
	"F4":     hotkey.KeyF4,
	"F5":     hotkey.KeyF5,
	"F6":     hotkey.KeyF6,
	"F7":     hotkey.KeyF7,
	"F8":     hotkey.KeyF8,
	"F9":     hotkey.KeyF9,
	"F10":    hotkey.KeyF10,
	"F11":    hotkey.KeyF11,
	"F12":    hotkey.KeyF12,
}

// keyAliases maps alternative spellings to key names. macOS IMEs may
// report the space bar as NBSP.
var keyAliases = map[string]string{
	"\u00a0": "Space",
	"ESC":    "Escape",
	"ENTER":  "Return",
	"RETURN": "Return",
	"SPACE":  "Space",
	"TAB":    "Tab",
	"DELETE": "Delete",
	"ESCAPE": "Escape",
	"LEFT":   "Left",
	"RIGHT":  "Right",
	"UP":     "Up",
	"DOWN":   "Down",
}

// normalizeKey returns the canonical name of a key
func normalizeKey(name string) string {
	if alias, ok := keyAliases[name]; ok {
		return alias
	}
	upper := strings.ToUpper(strings.TrimSpace(name))
	if alias, ok := keyAliases[upper]; ok {
		return alias
	}
	return upper
}

// ParseKey returns the key code for a key name such as "R", "F5" or "Space"
func ParseKey(name string) (hotkey.Key, error) {
	key, ok := keyNames[normalizeKey(name)]
	if !ok {
		return 0, fmt.Errorf("unknown hotkey key %q", name)
	}
	return key, nil
}

// Modifiers returns the platform modifiers of a binding
func Modifiers(b config.HotkeyConfig) []hotkey.Modifier {
	var mods []hotkey.Modifier
	if b.Ctrl {
		mods = append(mods, hotkey.ModCtrl)
	}
	if b.Shift {
		mods = append(mods, hotkey.ModShift)
	}
	if b.Alt {
		mods = append(mods, modAlt)
	}
	if b.Cmd {
		mods = append(mods, modCmd)
	}
	return mods
}

// ParseMode converts a configured recording mode
func ParseMode(mode string) (RecordingMode, error) {
	switch mode {
	case config.ModePressToHold:
		return PressToHold, nil
	case config.ModeToggle:
		return Toggle, nil
	default:
		return 0, fmt.Errorf("unknown recording mode %q", mode)
	}
}

// FromSettings builds a hotkey configuration from the application settings
func FromSettings(b config.HotkeyConfig, mode string) (Config, error) {
	key, err := ParseKey(b.Key)
	if err != nil {
		return Config{}, err
	}
	m, err := ParseMode(mode)
	if err != nil {
		return Config{}, err
	}
	return Config{Binding: b, Modifiers: Modifiers(b), Key: key, Mode: m}, nil
}
