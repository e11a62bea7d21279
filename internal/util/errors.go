// Package util maps journal errors to process exit codes.
package util

import (
	"errors"
	"fmt"
	"io"

	"github.com/sleepbook/sleepbook/internal/domain"
	"github.com/sleepbook/sleepbook/internal/journal"
	"github.com/sleepbook/sleepbook/internal/store"
	"github.com/sleepbook/sleepbook/internal/vault"
)

// Exit codes
const (
	ExitOK           = 0
	ExitError        = 1
	ExitInvalidInput = 2
	ExitLocked       = 3
	ExitIntegrityErr = 4
	ExitAuthFailed   = 5
)

// ErrInvalidInput marks command-line input that could not be parsed.
var ErrInvalidInput = errors.New("invalid input")

// InvalidInput wraps ErrInvalidInput with a message.
func InvalidInput(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// ExitCode returns the exit code for err.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, journal.ErrInvalidEntry),
		errors.Is(err, journal.ErrMetricExists),
		errors.Is(err, journal.ErrMetricNotFound),
		errors.Is(err, store.ErrInvalidID),
		errors.Is(err, domain.ErrInvalidUsername),
		errors.Is(err, domain.ErrPasswordTooShort),
		errors.Is(err, store.ErrAccountExists):
		return ExitInvalidInput
	case errors.Is(err, store.ErrDataDirLocked):
		return ExitLocked
	case errors.Is(err, journal.ErrIndexNotUpdated),
		errors.Is(err, store.ErrIndexUnreadable),
		errors.Is(err, store.ErrRegistryCorrupted),
		errors.Is(err, vault.ErrDecryptionFailed):
		return ExitIntegrityErr
	case errors.Is(err, vault.ErrPasswordMismatch),
		errors.Is(err, store.ErrAccountNotFound):
		return ExitAuthFailed
	default:
		return ExitError
	}
}

// Report writes err to w with a hint for the integrity codes and returns
// the exit code.
func Report(w io.Writer, err error) int {
	code := ExitCode(err)
	if code == ExitOK {
		return code
	}
	fmt.Fprintf(w, "Error: %v\n", err)
	switch code {
	case ExitIntegrityErr:
		fmt.Fprintln(w, "Run 'sleepbook doctor' to diagnose issues.")
	case ExitAuthFailed:
		fmt.Fprintln(w, "Check the username and password.")
	}
	return code
}

// WrapError wraps an error with additional context
func WrapError(err error, context string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", context, err)
}
