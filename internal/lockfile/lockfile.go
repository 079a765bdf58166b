// Package lockfile guards against two monitors writing the same log.
package lockfile

import (
	"errors"
	"fmt"

	"github.com/gofrs/flock"
	"github.com/goodtune/idlewatch/internal/storage"
)

// ErrLocked is returned when another process holds the lock.
var ErrLocked = errors.New("lockfile: already locked by another process")

// Lock is a held advisory file lock.
type Lock struct {
	fl *flock.Flock
}

// Acquire takes the lock at path without blocking.
func Acquire(path string) (*Lock, error) {
	if err := storage.EnsureParentDir(path); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrLocked)
	}
	return &Lock{fl: fl}, nil
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.fl.Path()
}

// Release drops the lock. The file is left in place.
func (l *Lock) Release() error {
	return l.fl.Unlock()
}
