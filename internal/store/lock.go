package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Error variables for file locking operations
var (
	// ErrLockTimeout is returned when a lock cannot be acquired within the specified timeout
	ErrLockTimeout = errors.New("lock acquisition timeout")
	// ErrLockNotHeld is returned when attempting to release a lock that isn't held
	ErrLockNotHeld = errors.New("lock not held")
)

// staleLockAge is how old a lock file must be before it is taken over.
const staleLockAge = 5 * time.Minute

// FileLock is an advisory lock held through an exclusively created file.
type FileLock struct {
	path     string
	lockFile *os.File
	locked   bool
}

// NewFileLock creates a lock backed by the file at lockPath.
func NewFileLock(lockPath string) *FileLock {
	return &FileLock{path: lockPath}
}

// Path is the lock file location.
func (fl *FileLock) Path() string {
	return fl.path
}

// Lock acquires the file lock, retrying until timeout.
func (fl *FileLock) Lock(timeout time.Duration) error {
	if fl.locked {
		return errors.New("lock already held")
	}

	if err := os.MkdirAll(filepath.Dir(fl.path), dirPermission); err != nil {
		return err
	}

	start := time.Now()
	for {
		file, err := os.OpenFile(fl.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, filePermission)
		if err == nil {
			fl.lockFile = file
			fl.locked = true

			if _, err := file.WriteString(strconv.Itoa(os.Getpid())); err != nil {
				_ = fl.Unlock()
				return err
			}
			if err := platformLock(file); err != nil {
				_ = fl.Unlock()
				return fmt.Errorf("%w: %v", ErrDataDirLocked, err)
			}
			return nil
		}

		if time.Since(start) > timeout {
			return ErrLockTimeout
		}

		if fl.isLockStale() {
			_ = os.Remove(fl.path)
			continue
		}

		time.Sleep(100 * time.Millisecond)
	}
}

// Unlock releases the file lock
func (fl *FileLock) Unlock() error {
	if !fl.locked {
		return ErrLockNotHeld
	}

	var err error
	if fl.lockFile != nil {
		if unlockErr := platformUnlock(fl.lockFile); unlockErr != nil {
			err = unlockErr
		}
		if closeErr := fl.lockFile.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		fl.lockFile = nil
	}

	if removeErr := os.Remove(fl.path); removeErr != nil && err == nil {
		err = removeErr
	}

	fl.locked = false
	return err
}

// IsLocked returns true if the lock is currently held
func (fl *FileLock) IsLocked() bool {
	return fl.locked
}

// Holder returns the pid recorded in the lock file, or 0 when unknown.
func (fl *FileLock) Holder() int {
	data, err := os.ReadFile(fl.path)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(string(data))
	if err != nil {
		return 0
	}
	return pid
}

// isLockStale treats a lock file older than staleLockAge as abandoned.
func (fl *FileLock) isLockStale() bool {
	info, err := os.Stat(fl.path)
	if err != nil {
		return false
	}
	return time.Since(info.ModTime()) > staleLockAge
}
