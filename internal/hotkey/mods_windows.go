package hotkey

import "golang.design/x/hotkey"

const (
	modAlt = hotkey.ModAlt
	modCmd = hotkey.ModWin
)
