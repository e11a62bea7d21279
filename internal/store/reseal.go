package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/sleepbook/sleepbook/internal/vault"
)

// Reseal re-encrypts every journal file in layout from one sealer to
// another. All files are opened first; if any cannot be read nothing is
// rewritten. The new containers are then staged in temp files and renamed
// into place only once every one of them is written. If a rename fails,
// the files already replaced are sealed again under from. It returns the
// number of files rewritten.
func Reseal(layout Layout, from, to *vault.Sealer, log *zap.Logger) (int, error) {
	if log == nil {
		log = zap.NewNop()
	}
	paths, err := layout.ContainerFiles()
	if err != nil {
		return 0, err
	}

	reader := sealedFile{sealer: from, log: log}
	payloads := make([][]byte, 0, len(paths))
	defer func() {
		for _, p := range payloads {
			vault.Zeroize(p)
		}
	}()
	for _, p := range paths {
		payload, state := reader.read(p)
		if state != fileReadable {
			return 0, fmt.Errorf("%w: %s", vault.ErrDecryptionFailed, filepath.Base(p))
		}
		payloads = append(payloads, payload)
	}

	staged := make([]*AtomicWriter, 0, len(paths))
	abortStaged := func(start int) {
		for _, w := range staged[start:] {
			_ = w.Abort()
		}
	}
	for i, p := range paths {
		w, err := stageSealed(p, payloads[i], to, log)
		if err != nil {
			abortStaged(0)
			return 0, fmt.Errorf("failed to stage %s: %w", filepath.Base(p), err)
		}
		staged = append(staged, w)
	}

	for i, w := range staged {
		if err := w.Commit(); err != nil {
			abortStaged(i + 1)
			rollbackErr := restore(paths[:i], payloads[:i], from, log)
			if rollbackErr != nil {
				return 0, fmt.Errorf("resealed %d of %d files: %w", i, len(paths), errors.Join(err, rollbackErr))
			}
			return 0, fmt.Errorf("reseal rolled back: %w", err)
		}
	}

	log.Info("journal files resealed",
		zap.Int("files", len(paths)),
		zap.Uint32("version", to.Version()))
	return len(paths), nil
}

// stageSealed seals payload into a temp file next to path without
// replacing path.
func stageSealed(path string, payload []byte, sealer *vault.Sealer, log *zap.Logger) (*AtomicWriter, error) {
	data, err := sealer.Seal(payload)
	if err != nil {
		return nil, err
	}
	w, err := NewAtomicWriter(path, log)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	return w, nil
}

// restore writes payloads back to paths under sealer.
func restore(paths []string, payloads [][]byte, sealer *vault.Sealer, log *zap.Logger) error {
	writer := sealedFile{sealer: sealer, log: log}
	var errs []error
	for i, p := range paths {
		if err := writer.write(p, payloads[i]); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		log.Error("failed to roll back resealed files", zap.Int("files", len(errs)))
	}
	return errors.Join(errs...)
}

// FormatCensus counts the journal files of layout by container version.
// Files that are not containers are counted under version 0.
func FormatCensus(layout Layout) (map[uint32]int, error) {
	paths, err := layout.ContainerFiles()
	if err != nil {
		return nil, err
	}
	counts := make(map[uint32]int)
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		version, _, ok := vault.Unwrap(data)
		if !ok {
			version = 0
		}
		counts[version]++
	}
	return counts, nil
}
