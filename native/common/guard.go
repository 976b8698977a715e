package common

import "errors"

// ErrModulePaused is returned by Guard when a module has been halted by the
// operator.
var ErrModulePaused = errors.New("module paused")

// PauseView reports whether a named module is currently halted.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard rejects mutations against a paused module. A nil view means pausing
// is not configured and everything is allowed.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}
