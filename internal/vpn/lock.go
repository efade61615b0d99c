package vpn

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Lock is an exclusive file lock serializing connection attempts. At most
// one attempt may run per machine; the lock file records the owner's PID
// so a crashed owner can be detected.
type Lock struct {
	path string
}

// AcquireLock takes the lock at path, stealing it from dead owners.
// Returns ErrAlreadyRunning when another live process holds it.
func AcquireLock(path string) (*Lock, error) {
	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			fmt.Fprintf(f, "%d", os.Getpid())
			f.Close()
			return &Lock{path: path}, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("failed to create lock file: %w", err)
		}

		// Lock exists; reclaim it if the owner is gone.
		data, readErr := os.ReadFile(path)
		if readErr == nil {
			pid, convErr := strconv.Atoi(strings.TrimSpace(string(data)))
			if convErr == nil && isProcessRunning(pid) {
				return nil, ErrAlreadyRunning
			}
		}
		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			return nil, fmt.Errorf("failed to remove stale lock file: %w", rmErr)
		}
	}
	return nil, ErrAlreadyRunning
}

// Release drops the lock.
func (l *Lock) Release() error {
	err := os.Remove(l.path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
