package state

import (
	"time"

	"mqwatch/media"
	"mqwatch/watcher"
)

// newLocalEnv creates a new LocalEnv instance with default values
func newLocalEnv() *LocalEnv {
	return &LocalEnv{
		start: time.Now(),
	}
}

// NewEnvironment creates media query oracle for the viewport.
func (e *LocalEnv) NewEnvironment(vp media.Viewport) *media.Environment {
	return media.NewEnvironment(vp, e.Log)
}

// NewWatcher creates watcher reporting to environment diagnostics and
// honoring configured malformed rules handling.
func (e *LocalEnv) NewWatcher(oracle media.Oracle) *watcher.Watcher {
	var opts []watcher.Option
	if e.Diag != nil {
		opts = append(opts, watcher.WithErrorLogger(e.Diag))
	}
	if e.Cfg != nil && e.Cfg.Watcher.SkipMalformed {
		opts = append(opts, watcher.WithSkipMalformed())
	}
	return watcher.New(oracle, e.Log, opts...)
}
