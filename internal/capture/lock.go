package capture

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"

	"barscan/internal/faults"
)

// Locker grants exclusive ownership of a capture device.
type Locker interface {
	// Acquire locks device and returns the function that releases it.
	Acquire(device string) (release func() error, err error)
}

// FileLocker serializes device access across processes with flock files
// under Dir, one per device.
type FileLocker struct {
	Dir string
}

// NewFileLocker returns a locker that keeps lock files in dir.
func NewFileLocker(dir string) *FileLocker {
	return &FileLocker{Dir: dir}
}

// LockPath returns the lock file used for device.
func (l *FileLocker) LockPath(device string) string {
	name := strings.Trim(strings.NewReplacer("/", "_", "\\", "_", ":", "_").Replace(device), "_")
	if name == "" {
		name = "device"
	}
	return filepath.Join(l.Dir, name+".lock")
}

// Acquire takes a non-blocking lock; a busy device is ErrSourceUnavailable.
func (l *FileLocker) Acquire(device string) (func() error, error) {
	if err := os.MkdirAll(l.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	lock := flock.New(l.LockPath(device))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, faults.Wrap(faults.ErrSourceUnavailable, "capture", "lock", device, err)
	}
	if !ok {
		return nil, faults.Wrap(faults.ErrSourceUnavailable, "capture", "lock",
			fmt.Sprintf("%s is in use by another barscan instance", device), nil)
	}
	return lock.Unlock, nil
}

// NopLocker grants every request; used when locking is disabled.
type NopLocker struct{}

// Acquire always succeeds.
func (NopLocker) Acquire(string) (func() error, error) {
	return func() error { return nil }, nil
}
