package common

import "errors"

var ErrModulePaused = errors.New("module paused")

type PauseView interface {
	IsPaused(module string) bool
}

func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

// CallFilter decides whether a call may run on the normal dispatch path.
type CallFilter interface {
	Allow(call Call) error
}

// PauseFilter rejects calls into paused modules.
type PauseFilter struct {
	View PauseView
}

// Allow implements CallFilter.
func (f PauseFilter) Allow(call Call) error {
	if call == nil {
		return nil
	}
	return Guard(f.View, call.Module())
}
