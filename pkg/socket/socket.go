// Package socket implements the UNIX domain socket contract between a
// supervised worker-pool server and the reverse proxy that consumes it.
// The server process owns creation and removal of the socket file; the
// supervisor only ever verifies it and clears provably stale leftovers
// before a fresh start.
package socket

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sockvisor/sockvisor/pkg/errors"
	"github.com/sockvisor/sockvisor/pkg/logging"
)

const dialTimeout = 500 * time.Millisecond

// ValidatePath rejects paths that cannot serve as a shared-mount socket
// contract. In particular anything that looks like a TCP address is refused:
// the worker pool must never bind a network port.
func ValidatePath(path string) error {
	if path == "" {
		return errors.NewValidationError("socket path cannot be empty", nil)
	}
	if !filepath.IsAbs(path) {
		return errors.NewValidationError("socket path must be absolute", nil).WithContext("path", path)
	}
	if strings.Contains(path, ":") {
		return errors.NewValidationError("socket path must be a filesystem path, not a network address", nil).WithContext("path", path)
	}
	return nil
}

// IsAccepting reports whether a server is currently accepting connections
// on the socket at path.
func IsAccepting(path string) bool {
	conn, err := net.DialTimeout("unix", path, dialTimeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// RemoveStale unlinks a socket file that no server is accepting on. Called
// before the first spawn so a fresh start never reuses a stale file; while
// the server is alive the file is left alone.
func RemoveStale(path string, logger logging.Logger) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.NewIOError("failed to stat socket file", err).WithContext("path", path)
	}

	if info.Mode()&os.ModeSocket == 0 {
		return errors.NewConflictError("path exists but is not a socket", nil).WithContext("path", path)
	}

	if IsAccepting(path) {
		return errors.NewConflictError("socket is still accepting connections", nil).WithContext("path", path)
	}

	logger.Warnf("Removing stale socket file: %s", path)
	if err := os.Remove(path); err != nil {
		return errors.NewIOError("failed to remove stale socket file", err).WithContext("path", path)
	}
	return nil
}

// WaitReady blocks until a server accepts connections on the socket at
// path, polling every interval, bounded by ctx.
func WaitReady(ctx context.Context, path string, interval time.Duration) error {
	if err := ValidatePath(path); err != nil {
		return err
	}
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if IsAccepting(path) {
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.NewTimeoutError("socket did not become ready", ctx.Err()).WithContext("path", path)
		case <-ticker.C:
		}
	}
}
