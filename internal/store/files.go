package store

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"go.uber.org/zap"

	"github.com/sleepbook/sleepbook/internal/codec"
	"github.com/sleepbook/sleepbook/internal/domain"
	"github.com/sleepbook/sleepbook/internal/vault"
)

// fileState is the outcome of reading one container file.
type fileState int

const (
	fileMissing fileState = iota
	fileReadable
	fileUnreadable
)

// sealedFile reads and writes one container file with a Sealer.
type sealedFile struct {
	sealer *vault.Sealer
	log    *zap.Logger
}

// read returns the decrypted payload of path. Missing files and files that
// fail to unwrap or decrypt never surface as errors; the state tells them
// apart so callers can refuse to overwrite data they could not read.
func (f sealedFile) read(path string) ([]byte, fileState) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fileMissing
		}
		f.log.Error("failed to read journal file", zap.String("path", path), zap.Error(err))
		return nil, fileUnreadable
	}

	payload, err := f.sealer.Open(data)
	if err != nil {
		f.log.Warn("journal file could not be opened",
			zap.String("path", path),
			zap.Error(err))
		return nil, fileUnreadable
	}
	return payload, fileReadable
}

func (f sealedFile) write(path string, payload []byte) error {
	data, err := f.sealer.Seal(payload)
	if err != nil {
		return err
	}
	if err := AtomicWriteFile(path, data, f.log); err != nil {
		f.log.Error("failed to write journal file", zap.String("path", path), zap.Error(err))
		return err
	}
	return nil
}

func removeFile(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	return nil
}

// FileEntryStore keeps one container file per entry.
type FileEntryStore struct {
	layout Layout
	file   sealedFile
	log    *zap.Logger
}

// NewFileEntryStore returns an EntryStore over layout's directory.
func NewFileEntryStore(layout Layout, sealer *vault.Sealer, log *zap.Logger) *FileEntryStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &FileEntryStore{
		layout: layout,
		file:   sealedFile{sealer: sealer, log: log},
		log:    log,
	}
}

// Save writes e to sleep_<id>.
func (s *FileEntryStore) Save(e *domain.Entry) error {
	if e == nil {
		return fmt.Errorf("entry cannot be nil")
	}
	path, err := s.layout.EntryPath(e.ID)
	if err != nil {
		return err
	}
	if err := s.file.write(path, codec.EncodeEntry(e)); err != nil {
		return fmt.Errorf("failed to save entry %s: %w", e.ID, err)
	}
	return nil
}

// Load reads sleep_<id>. An id-less payload in an id-named file takes its
// id from the file name.
func (s *FileEntryStore) Load(id string) (*domain.Entry, bool) {
	path, err := s.layout.EntryPath(id)
	if err != nil {
		return nil, false
	}
	payload, state := s.file.read(path)
	if state != fileReadable {
		return nil, false
	}

	e, hasID, err := codec.DecodeEntryAnyVersion(payload)
	if err != nil {
		s.log.Warn("entry file could not be decoded", zap.String("id", id), zap.Error(err))
		return nil, false
	}
	if !hasID {
		e.ID = id
	}
	if e.ID != id {
		s.log.Warn("entry file holds a different id",
			zap.String("file_id", id),
			zap.String("entry_id", e.ID))
		return nil, false
	}
	return e, true
}

// Delete removes sleep_<id>; a missing file is not an error.
func (s *FileEntryStore) Delete(id string) error {
	path, err := s.layout.EntryPath(id)
	if err != nil {
		return err
	}
	return removeFile(path)
}

// Exists reports whether sleep_<id> is present.
func (s *FileEntryStore) Exists(id string) bool {
	path, err := s.layout.EntryPath(id)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// IDs lists the ids of all id-keyed entry files, sorted.
func (s *FileEntryStore) IDs() ([]string, error) {
	ids, _, err := s.layout.scanEntries()
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}

// LoadLegacyByDate reads sleep_<yyyy-mm-dd>. Either record layout is
// accepted; the returned entry keeps whatever id the payload carried.
func (s *FileEntryStore) LoadLegacyByDate(d domain.Date) (*domain.Entry, bool) {
	payload, state := s.file.read(s.layout.LegacyEntryPath(d))
	if state != fileReadable {
		return nil, false
	}
	e, _, err := codec.DecodeEntryAnyVersion(payload)
	if err != nil {
		s.log.Warn("legacy entry file could not be decoded",
			zap.String("date", d.String()),
			zap.Error(err))
		return nil, false
	}
	return e, true
}

// SaveLegacy writes e in the legacy layout under its date. Only used to
// produce files in the pre-identifier scheme.
func (s *FileEntryStore) SaveLegacy(e *domain.Entry) error {
	if e == nil || e.Date.IsZero() {
		return fmt.Errorf("legacy entry needs a date")
	}
	return s.file.write(s.layout.LegacyEntryPath(e.Date), codec.EncodeLegacyEntry(e))
}

// DeleteLegacy removes sleep_<yyyy-mm-dd>; a missing file is not an error.
func (s *FileEntryStore) DeleteLegacy(d domain.Date) error {
	return removeFile(s.layout.LegacyEntryPath(d))
}

// LegacyDates lists the dates of all date-named entry files, ascending.
func (s *FileEntryStore) LegacyDates() ([]domain.Date, error) {
	_, dates, err := s.layout.scanEntries()
	if err != nil {
		return nil, err
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates, nil
}

var _ EntryStore = (*FileEntryStore)(nil)
