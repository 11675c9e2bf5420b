package hotkey

import "golang.design/x/hotkey"

const (
	modAlt = hotkey.ModOption
	modCmd = hotkey.ModCmd
)
