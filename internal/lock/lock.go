// Package lock keeps two lifecycle commands from working on the same
// cluster at once.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/sparkify/dwhctl/internal/config"
)

const DefaultPath = "~/.dwhctl/dwhctl.lock"

// ErrHeld is returned by Acquire when a live process owns the lock.
var ErrHeld = errors.New("lock held by another dwhctl process")

// Lock is an acquired lock file.
type Lock struct {
	path string
}

// Acquire creates the lock file holding the current PID. A lock left behind
// by a process that is no longer running is taken over.
func Acquire(path string) (*Lock, error) {
	if path == "" {
		path = DefaultPath
	}
	path = config.ExpandHome(path)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}

	for i := 0; i < 2; i++ {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			_, werr := f.WriteString(strconv.Itoa(os.Getpid()))
			cerr := f.Close()
			if werr != nil || cerr != nil {
				os.Remove(path)
				return nil, fmt.Errorf("writing lock file: %w", errors.Join(werr, cerr))
			}
			return &Lock{path: path}, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("creating lock file: %w", err)
		}

		held, pid, err := IsHeld(path)
		if err != nil {
			return nil, err
		}
		if held {
			return nil, fmt.Errorf("%w (PID %d)", ErrHeld, pid)
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("removing stale lock: %w", err)
		}
	}
	return nil, fmt.Errorf("%w: lock file keeps reappearing", ErrHeld)
}

// Release removes the lock file. Releasing twice is not an error.
func (l *Lock) Release() error {
	err := os.Remove(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// IsHeld reports whether the lock at path belongs to a running process.
func IsHeld(path string) (bool, int, error) {
	if path == "" {
		path = DefaultPath
	}
	data, err := os.ReadFile(config.ExpandHome(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, 0, nil
		}
		return false, 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return false, 0, nil
	}
	return isProcessRunning(pid), pid, nil
}

func isProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
