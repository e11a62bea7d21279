// Package clipboard copies entry renderings to the system clipboard and
// clears them again after a timeout.
package clipboard

import (
	"fmt"
	"time"

	"github.com/atotto/clipboard"
)

// backend is replaced in tests.
var (
	readAll  = clipboard.ReadAll
	writeAll = clipboard.WriteAll
)

// CopyWithTimeout copies text to the clipboard. After timeout the clipboard
// is cleared if it still holds text; the returned channel is closed once
// that check has run. A zero timeout never clears.
func CopyWithTimeout(text string, timeout time.Duration) (<-chan struct{}, error) {
	if err := writeAll(text); err != nil {
		return nil, fmt.Errorf("failed to copy to clipboard: %w", err)
	}

	done := make(chan struct{})
	if timeout <= 0 {
		close(done)
		return done, nil
	}

	go func() {
		defer close(done)
		time.Sleep(timeout)

		current, err := readAll()
		if err == nil && current == text {
			_ = writeAll("")
		}
	}()

	return done, nil
}

// IsAvailable reports whether the clipboard can be read.
func IsAvailable() bool {
	_, err := readAll()
	return err == nil
}

// Clear empties the clipboard
func Clear() error {
	return writeAll("")
}
