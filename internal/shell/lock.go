package shell

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrAlreadyRunning is returned by Acquire when another instance holds the lock.
var ErrAlreadyRunning = errors.New("another gradegrid instance is already running")

// InstanceLock keeps a single application instance per data directory
type InstanceLock struct {
	lock *flock.Flock
}

// NewInstanceLock creates a lock backed by the file at path
func NewInstanceLock(path string) *InstanceLock {
	return &InstanceLock{lock: flock.New(path)}
}

// Acquire takes the lock without blocking
func (l *InstanceLock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.lock.Path()), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}
	ok, err := l.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return ErrAlreadyRunning
	}
	return nil
}

// Release drops the lock
func (l *InstanceLock) Release() error {
	if err := l.lock.Unlock(); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}

// Path returns the lock file path
func (l *InstanceLock) Path() string {
	return l.lock.Path()
}
