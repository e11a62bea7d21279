//go:build unix

package store

import (
	"os"
	"syscall"
)

// platformLock takes a non-blocking exclusive flock on the lock file.
func platformLock(file *os.File) error {
	return syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
}

func platformUnlock(file *os.File) error {
	return syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
}
