// Package window owns the set of live windows in termd: creating them,
// tracking their processes and holding each one's effective configuration.
package window

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"sort"
	"strconv"
	"sync"

	"github.com/yourusername/termctl/internal/config"
	"github.com/yourusername/termctl/internal/logging"
	"github.com/yourusername/termctl/internal/registry"
)

var (
	// ErrUnknownWindow is returned for ids that are not live.
	ErrUnknownWindow = errors.New("unknown window")
	// ErrShutdown is returned by Create once Shutdown has started.
	ErrShutdown = errors.New("window manager is shutting down")
)

// Options describes a window to create.
type Options struct {
	// Hold keeps the window open after its process exits.
	Hold bool
	// WorkingDirectory overrides the configured working directory.
	WorkingDirectory string
	// Command replaces the configured shell; Command[0] is the program.
	Command []string
}

// Manager is the process-wide window set.
type Manager struct {
	spawner Spawner
	socket  string

	mu       sync.RWMutex
	base     config.Config
	baseGen  uint64
	windows  map[ID]*Window
	nextID   ID
	shutdown bool

	empty     chan struct{}
	emptyOnce sync.Once

	wg sync.WaitGroup
}

// NewManager creates an empty window set. socketPath is exported to every
// child as TERMCTL_SOCKET.
func NewManager(base *config.Config, spawner Spawner, socketPath string) *Manager {
	if spawner == nil {
		spawner = ExecSpawner{}
	}
	return &Manager{
		spawner: spawner,
		socket:  socketPath,
		base:    base.Clone(),
		windows: make(map[ID]*Window),
		empty:   make(chan struct{}),
	}
}

// Empty is closed the first time the last live window goes away.
func (m *Manager) Empty() <-chan struct{} {
	return m.empty
}

// noteRemovedLocked closes Empty when nothing is left. m.mu must be held.
func (m *Manager) noteRemovedLocked() {
	if len(m.windows) == 0 && !m.shutdown {
		m.emptyOnce.Do(func() { close(m.empty) })
	}
}

// Base returns a copy of the configuration new windows start from.
func (m *Manager) Base() config.Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.base.Clone()
}

// Create spawns a new window and registers it under a fresh id.
func (m *Manager) Create(ctx context.Context, opts Options) (*Window, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.shutdown {
		m.mu.Unlock()
		return nil, ErrShutdown
	}
	m.nextID++
	id := m.nextID
	base := m.base.Clone()
	gen := m.baseGen
	m.mu.Unlock()

	program, args := base.ShellProgram()
	if len(opts.Command) > 0 {
		program, args = opts.Command[0], slices.Clone(opts.Command[1:])
	}
	dir := opts.WorkingDirectory
	if dir == "" {
		dir = base.WorkingDirectory
	}

	proc, err := m.spawner.Spawn(Spec{
		Program: program,
		Args:    args,
		Dir:     dir,
		Env:     m.childEnv(base, id),
	})
	if err != nil {
		return nil, fmt.Errorf("spawn %s: %w", program, err)
	}

	m.mu.Lock()
	if m.shutdown {
		m.mu.Unlock()
		_ = proc.Kill()
		go func() { _ = proc.Wait() }()
		return nil, ErrShutdown
	}
	// A reload ran during the spawn; start from the base it installed.
	if m.baseGen != gen {
		base = m.base.Clone()
	}
	w := &Window{
		id:   id,
		hold: opts.Hold,
		dir:  dir,
		proc: proc,
		base: base,
		cfg:  base.Clone(),
	}
	m.windows[id] = w
	m.wg.Add(1)
	m.mu.Unlock()

	logging.Info().
		Uint64("window", uint64(id)).
		Int("pid", proc.Pid()).
		Str("program", program).
		Strs("args", args).
		Str("dir", dir).
		Bool("hold", opts.Hold).
		Msg("window created")

	go m.wait(w)

	return w, nil
}

func (m *Manager) childEnv(base config.Config, id ID) []string {
	env := os.Environ()
	keys := make([]string, 0, len(base.Env))
	for k := range base.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+base.Env[k])
	}
	if m.socket != "" {
		env = append(env, registry.SocketEnv+"="+m.socket)
	}
	return append(env, registry.WindowIDEnv+"="+strconv.FormatUint(uint64(id), 10))
}

func (m *Manager) wait(w *Window) {
	defer m.wg.Done()

	err := w.proc.Wait()
	w.markExited(err)

	event := logging.Info()
	if err != nil {
		event = logging.Warn().Err(err)
	}
	event.Uint64("window", uint64(w.id)).Bool("hold", w.hold).Msg("window process exited")

	if !w.hold {
		m.remove(w.id)
	}
}

func (m *Manager) remove(id ID) {
	m.mu.Lock()
	if _, ok := m.windows[id]; ok {
		delete(m.windows, id)
		m.noteRemovedLocked()
	}
	m.mu.Unlock()
}

// Lookup returns the live window with the given id.
func (m *Manager) Lookup(id ID) (*Window, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.windows[id]
	return w, ok
}

// Snapshot returns the live windows sorted by id.
func (m *Manager) Snapshot() []*Window {
	m.mu.RLock()
	out := make([]*Window, 0, len(m.windows))
	for _, w := range m.windows {
		out = append(out, w)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// Len returns the number of live windows.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.windows)
}

// Close terminates a window's process and removes it, held or not.
func (m *Manager) Close(id ID) error {
	m.mu.Lock()
	w, ok := m.windows[id]
	if ok {
		delete(m.windows, id)
		m.noteRemovedLocked()
	}
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownWindow, id)
	}
	if w.Exited() {
		return nil
	}
	return w.proc.Kill()
}

// Reload installs a new base configuration and recomputes every window
// from it, keeping each window's IPC overrides. An override the new base
// no longer accepts is dropped.
func (m *Manager) Reload(base *config.Config) {
	m.mu.Lock()
	m.base = base.Clone()
	m.baseGen++
	m.mu.Unlock()

	ws := m.Snapshot()
	unlock := LockAll(ws)
	defer unlock()

	// Concurrent reloads may get here out of order; the newest base wins.
	current := m.Base()
	for _, w := range ws {
		for _, opt := range w.rebaseLocked(current) {
			logging.Warn().
				Uint64("window", uint64(w.id)).
				Str("option", opt.String()).
				Msg("dropping override rejected by reloaded config")
		}
	}
	logging.Info().Int("windows", len(ws)).Msg("config reloaded")
}

// Shutdown stops accepting new windows, terminates every process and waits
// for them to exit or ctx to end.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.shutdown = true
	ws := make([]*Window, 0, len(m.windows))
	for _, w := range m.windows {
		ws = append(ws, w)
	}
	m.windows = make(map[ID]*Window)
	m.mu.Unlock()

	var errs []error
	for _, w := range ws {
		if w.Exited() {
			continue
		}
		if err := w.proc.Kill(); err != nil {
			errs = append(errs, fmt.Errorf("window %d: %w", w.id, err))
		}
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		errs = append(errs, ctx.Err())
	}
	return errors.Join(errs...)
}
