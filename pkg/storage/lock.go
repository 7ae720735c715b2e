package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// LockFile is the name of the run lock inside the data directory
const LockFile = ".marsfeed.lock"

// RunLock guards a data directory against concurrent runs
type RunLock struct {
	lock *flock.Flock
}

// AcquireRunLock takes the lock without blocking. It fails when another
// process already holds it.
func AcquireRunLock(dataDir string) (*RunLock, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	lock := flock.New(filepath.Join(dataDir, LockFile))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", dataDir, err)
	}
	if !locked {
		return nil, fmt.Errorf("another marsfeed run holds %s", lock.Path())
	}
	return &RunLock{lock: lock}, nil
}

// Release unlocks the data directory
func (l *RunLock) Release() error {
	return l.lock.Unlock()
}
