package window

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/yourusername/termctl/internal/config"
	"github.com/yourusername/termctl/internal/models"
)

// ID identifies a window within one termd process.
type ID = models.WindowID

// Window is one live terminal window and the process running in it.
//
// Its effective configuration is the manager's base configuration with the
// window's IPC overrides applied on top. Both are guarded by a per-window
// lock that IPC updates and config reloads share.
type Window struct {
	id   ID
	hold bool
	dir  string
	proc Process

	mu        sync.Mutex
	base      config.Config
	overrides []config.Option
	cfg       config.Config

	exited  atomic.Bool
	exitErr atomic.Value
}

func (w *Window) ID() ID { return w.id }

// Dir is the working directory the process was started in; empty means
// termd's own.
func (w *Window) Dir() string { return w.dir }

// Exited reports whether the process has exited. Only held windows stay
// live after that.
func (w *Window) Exited() bool { return w.exited.Load() }

func (w *Window) markExited(err error) {
	w.exitErr.Store(exitResult{err})
	w.exited.Store(true)
}

type exitResult struct{ err error }

// ExitErr returns the error the process exited with, if it has exited.
func (w *Window) ExitErr() error {
	if r, ok := w.exitErr.Load().(exitResult); ok {
		return r.err
	}
	return nil
}

// Config returns a copy of the window's effective configuration.
func (w *Window) Config() config.Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cfg.Clone()
}

// Overrides returns the IPC overrides currently applied to the window.
func (w *Window) Overrides() []config.Option {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.overrides)
}

// Change is a computed configuration update for one window that has not
// been committed yet.
type Change struct {
	overrides []config.Option
	cfg       config.Config
}

// PrepareLocked computes the window's configuration after applying opts.
// With reset, earlier overrides are dropped first. The window is not
// modified. The caller must hold the window lock (see LockAll).
func (w *Window) PrepareLocked(opts []config.Option, reset bool) (Change, error) {
	existing := w.overrides
	if reset {
		existing = nil
	}
	merged := config.MergeOptions(existing, opts)
	cfg, err := config.ApplyOptions(w.base, merged)
	if err != nil {
		return Change{}, err
	}
	return Change{overrides: merged, cfg: cfg}, nil
}

// CommitLocked installs a change produced by PrepareLocked.
func (w *Window) CommitLocked(c Change) {
	w.overrides = c.overrides
	w.cfg = c.cfg
}

// rebaseLocked recomputes the effective configuration from a new base.
// Overrides that no longer apply are dropped and returned.
func (w *Window) rebaseLocked(base config.Config) []config.Option {
	cfg := base.Clone()
	kept := make([]config.Option, 0, len(w.overrides))
	var dropped []config.Option
	for _, opt := range w.overrides {
		next, err := config.ApplyOptions(cfg, []config.Option{opt})
		if err != nil {
			dropped = append(dropped, opt)
			continue
		}
		cfg = next
		kept = append(kept, opt)
	}
	w.base = base.Clone()
	w.overrides = kept
	w.cfg = cfg
	return dropped
}

// LockAll locks every window in ascending id order and returns a function
// that releases them. Any code locking more than one window must go through
// it so concurrent callers cannot deadlock.
func LockAll(ws []*Window) (unlock func()) {
	sorted := slices.Clone(ws)
	slices.SortFunc(sorted, func(a, b *Window) int {
		switch {
		case a.id < b.id:
			return -1
		case a.id > b.id:
			return 1
		}
		return 0
	})
	sorted = slices.CompactFunc(sorted, func(a, b *Window) bool { return a.id == b.id })

	for _, w := range sorted {
		w.mu.Lock()
	}
	return func() {
		for i := len(sorted) - 1; i >= 0; i-- {
			sorted[i].mu.Unlock()
		}
	}
}
