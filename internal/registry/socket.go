package registry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// Acquire binds the unix socket at path. When the address is taken it dials
// the existing socket once: a live listener yields ErrAlreadyRunning, a
// refused or vanished one is unlinked and the bind retried. Anything else is
// reported without touching the file.
func Acquire(ctx context.Context, path string, probeTimeout time.Duration) (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("ensure socket dir: %w", err)
	}

	for attempt := 0; attempt < 2; attempt++ {
		listener, err := net.Listen("unix", path)
		if err == nil {
			if err := os.Chmod(path, 0o600); err != nil {
				_ = listener.Close()
				return nil, fmt.Errorf("chmod socket %s: %w", path, err)
			}
			return listener, nil
		}
		if !errors.Is(err, syscall.EADDRINUSE) {
			return nil, fmt.Errorf("listen unix %s: %w", path, err)
		}

		alive, probeErr := probe(ctx, path, probeTimeout)
		if alive {
			return nil, ErrAlreadyRunning
		}
		if probeErr != nil {
			return nil, fmt.Errorf("probe existing socket %s: %w", path, probeErr)
		}

		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("remove stale socket %s: %w", path, err)
		}
	}

	return nil, fmt.Errorf("failed to acquire socket %s", path)
}

// Release closes the listener and unlinks its socket file.
func Release(listener net.Listener, path string) error {
	var errs []error
	if listener != nil {
		if err := listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, err)
		}
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// probe reports whether something accepts connections on path.
func probe(ctx context.Context, path string, timeout time.Duration) (bool, error) {
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "unix", path)
	if err == nil {
		_ = conn.Close()
		return true, nil
	}
	if IsRefused(err) || errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// IsRefused reports whether err means nothing is listening on the socket.
func IsRefused(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED)
}
