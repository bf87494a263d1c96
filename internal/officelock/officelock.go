// Package officelock guards the worker-side LibreOffice server singleton.
// Its listening port (2202) is process-wide state: only one instance may
// be alive per worker session. Grounded on the flock-based single-instance
// guard in cognusion-ripfix/rip.go.
package officelock

import (
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"
)

const lockFileName = ".libreoffice-server.lock"

// Lock guards a single LibreOffice server instance within scratchDir.
type Lock struct {
	fl *flock.Flock
}

// Acquire takes an exclusive, non-blocking lock in scratchDir. ok is false
// if another instance already holds it (the caller should not spawn a
// second server); it is never an error in that case, only in the case of a
// filesystem failure trying to take the lock at all.
func Acquire(scratchDir string) (lock *Lock, ok bool, err error) {
	fl := flock.New(filepath.Join(scratchDir, lockFileName))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, false, fmt.Errorf("officelock: could not acquire lock: %w", err)
	}
	if !locked {
		return nil, false, nil
	}
	return &Lock{fl: fl}, true, nil
}

// Release unlocks the guard. The caller must have already waited for the
// LibreOffice server process to exit before calling this: releasing the
// lock while the server still holds the working file open is what lets a
// subsequent rename-over-it race the server, per the documented open
// question this guard resolves.
func (l *Lock) Release() error {
	if l == nil {
		return nil
	}
	return l.fl.Unlock()
}
