// Package registry locates the control socket of a running termd.
//
// Each termd listens on its own socket, named after the display it serves
// and its process id:
//
//	$XDG_RUNTIME_DIR/termctl-<display>-<pid>.sock
//
// Windows spawned by termd inherit TERMCTL_SOCKET, so a client run from one
// of those windows reaches the instance that owns it without any discovery.
package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

const (
	// SocketEnv names the socket of the instance that spawned the shell.
	SocketEnv = "TERMCTL_SOCKET"
	// WindowIDEnv names the window a shell runs in.
	WindowIDEnv = "TERMCTL_WINDOW_ID"

	socketPrefix = "termctl-"
	socketSuffix = ".sock"
)

var (
	// ErrNotFound means no instance could be located: nothing was named
	// explicitly or by the environment, or the named socket does not exist.
	ErrNotFound = errors.New("no running instance")
	// ErrStaleEndpoint means an address exists but nothing is serving it.
	ErrStaleEndpoint = errors.New("stale endpoint")
	// ErrAlreadyRunning means another live instance owns the socket path.
	ErrAlreadyRunning = errors.New("socket already served by a running instance")
)

var socketNamePattern = regexp.MustCompile(`^termctl-.+-(\d+)\.sock$`)

// Endpoint identifies one reachable instance.
type Endpoint struct {
	Path string
	// PID of the owning process, parsed from the socket name; 0 if unknown.
	PID int
}

// ResolveError wraps ErrNotFound or ErrStaleEndpoint with the offending path.
type ResolveError struct {
	Path string
	Err  error
}

func (e *ResolveError) Error() string {
	if e.Path == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%v: %s", e.Err, e.Path)
}

func (e *ResolveError) Unwrap() error {
	return e.Err
}

// SocketDir returns the directory sockets live in.
func SocketDir() string {
	if dir := strings.TrimSpace(os.Getenv("XDG_RUNTIME_DIR")); dir != "" {
		return dir
	}
	return os.TempDir()
}

// DisplayName returns a filename-safe name for the current display.
func DisplayName() string {
	display := os.Getenv("WAYLAND_DISPLAY")
	if display == "" {
		display = os.Getenv("DISPLAY")
	}
	display = strings.NewReplacer(":", "", "/", "_", ".", "_").Replace(display)
	if display == "" {
		return "0"
	}
	return display
}

// SocketPath returns the socket path for the instance with the given pid.
func SocketPath(pid int) string {
	return filepath.Join(SocketDir(), fmt.Sprintf("%s%s-%d%s", socketPrefix, DisplayName(), pid, socketSuffix))
}

// ParseEndpoint builds an Endpoint from a socket path, extracting the
// owning pid when the name follows the naming scheme.
func ParseEndpoint(path string) Endpoint {
	ep := Endpoint{Path: path}
	if m := socketNamePattern.FindStringSubmatch(filepath.Base(path)); m != nil {
		if pid, err := strconv.Atoi(m[1]); err == nil {
			ep.PID = pid
		}
	}
	return ep
}

// Resolve picks the endpoint to talk to: the explicit path if given,
// otherwise $TERMCTL_SOCKET. It never connects. A missing socket is
// ErrNotFound; a path that is not a socket, or whose owner is known to be
// dead, is ErrStaleEndpoint.
func Resolve(explicit string) (Endpoint, error) {
	path := strings.TrimSpace(explicit)
	if path == "" {
		path = strings.TrimSpace(os.Getenv(SocketEnv))
	}
	if path == "" {
		return Endpoint{}, &ResolveError{Err: fmt.Errorf("%w (use --socket or set %s)", ErrNotFound, SocketEnv)}
	}

	ep := ParseEndpoint(path)
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Endpoint{}, &ResolveError{Path: path, Err: ErrNotFound}
		}
		return Endpoint{}, &ResolveError{Path: path, Err: fmt.Errorf("%w: %v", ErrStaleEndpoint, err)}
	}
	if info.Mode()&os.ModeSocket == 0 {
		return Endpoint{}, &ResolveError{Path: path, Err: fmt.Errorf("%w: not a socket", ErrStaleEndpoint)}
	}
	if ep.PID > 0 && !ProcessAlive(ep.PID) {
		return Endpoint{}, &ResolveError{Path: path, Err: fmt.Errorf("%w: process %d has exited", ErrStaleEndpoint, ep.PID)}
	}
	return ep, nil
}

// ProcessAlive reports whether a process with pid exists. A process owned
// by another user counts as alive.
func ProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

// PruneStale removes sockets in dir whose owning process is gone and
// returns the removed paths. Sockets that do not follow the naming scheme
// are left alone.
func PruneStale(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, socketPrefix+"*"+socketSuffix))
	if err != nil {
		return nil, err
	}

	var removed []string
	for _, path := range matches {
		ep := ParseEndpoint(path)
		if ep.PID == 0 || ProcessAlive(ep.PID) {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return removed, fmt.Errorf("remove stale socket %s: %w", path, err)
		}
		removed = append(removed, path)
	}
	return removed, nil
}
