package hotkey

import "golang.design/x/hotkey"

// Mod1 is Alt and Mod4 is Super on common X11 keymaps.
const (
	modAlt = hotkey.Mod1
	modCmd = hotkey.Mod4
)
