package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

const filePermission = 0o600

// rename is replaced in tests.
var rename = os.Rename

// AtomicWriter writes a file through a temp file in the same directory and
// renames it into place on Commit.
type AtomicWriter struct {
	targetPath string
	tempPath   string
	tempFile   *os.File
	log        *zap.Logger
}

// NewAtomicWriter creates the temp file for targetPath.
func NewAtomicWriter(targetPath string, log *zap.Logger) (*AtomicWriter, error) {
	if log == nil {
		log = zap.NewNop()
	}
	dir := filepath.Dir(targetPath)
	base := filepath.Base(targetPath)

	cleanDir := filepath.Clean(dir)
	if cleanDir != dir {
		return nil, fmt.Errorf("invalid directory path: potential directory traversal detected")
	}
	if strings.Contains(base, "..") || strings.ContainsRune(base, filepath.Separator) {
		return nil, fmt.Errorf("invalid filename: %s", base)
	}

	if err := os.MkdirAll(cleanDir, dirPermission); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	tempPath := filepath.Join(cleanDir, fmt.Sprintf(".%s.tmp.%d.%d", base, os.Getpid(), time.Now().UnixNano()))
	tempFile, err := os.OpenFile(filepath.Clean(tempPath), os.O_CREATE|os.O_WRONLY|os.O_EXCL, filePermission)
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}

	return &AtomicWriter{
		targetPath: targetPath,
		tempPath:   tempPath,
		tempFile:   tempFile,
		log:        log,
	}, nil
}

// Write writes data to the temporary file
func (aw *AtomicWriter) Write(data []byte) (int, error) {
	if aw.tempFile == nil {
		return 0, fmt.Errorf("writer is closed")
	}
	n, err := aw.tempFile.Write(data)
	if err != nil {
		aw.abortQuietly("write")
	}
	return n, err
}

// Commit syncs the temp file and renames it over the target.
func (aw *AtomicWriter) Commit() error {
	if aw.tempFile == nil {
		return fmt.Errorf("writer is closed")
	}

	if err := aw.tempFile.Sync(); err != nil {
		aw.abortQuietly("sync")
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := aw.tempFile.Close(); err != nil {
		aw.tempFile = nil
		aw.abortQuietly("close")
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	aw.tempFile = nil

	if err := rename(aw.tempPath, aw.targetPath); err != nil {
		_ = os.Remove(aw.tempPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Abort cancels the write and cleans up the temporary file
func (aw *AtomicWriter) Abort() error {
	var err error

	if aw.tempFile != nil {
		if closeErr := aw.tempFile.Close(); closeErr != nil {
			err = closeErr
		}
		aw.tempFile = nil
	}

	if removeErr := os.Remove(aw.tempPath); removeErr != nil && !os.IsNotExist(removeErr) && err == nil {
		err = removeErr
	}

	return err
}

func (aw *AtomicWriter) abortQuietly(stage string) {
	if err := aw.Abort(); err != nil {
		aw.log.Warn("failed to abort atomic write",
			zap.String("stage", stage),
			zap.String("path", aw.targetPath),
			zap.Error(err))
	}
}

// AtomicWriteFile writes data to path atomically with owner-only permissions.
func AtomicWriteFile(path string, data []byte, log *zap.Logger) error {
	writer, err := NewAtomicWriter(path, log)
	if err != nil {
		return err
	}

	if _, err := writer.Write(data); err != nil {
		return err
	}

	return writer.Commit()
}

// EnsureFilePermissions tightens path to 0600 if group or others have access.
func EnsureFilePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	if info.Mode().Perm()&0o077 != 0 {
		return os.Chmod(path, filePermission)
	}

	return nil
}
