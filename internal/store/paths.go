package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/sleepbook/sleepbook/internal/domain"
)

const (
	entryPrefix   = "sleep_"
	indexBase     = "symptom_history"
	metricsBase   = "symptoms"
	lockName      = ".sleepbook.lock"
	DefaultExt    = "dat"
	dirPermission = 0o700
)

// Layout names the files of one user's data directory.
type Layout struct {
	Dir string
	Ext string
}

// NewLayout returns the layout for dir. An empty ext uses DefaultExt.
func NewLayout(dir, ext string) Layout {
	ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
	if ext == "" {
		ext = DefaultExt
	}
	return Layout{Dir: filepath.Clean(dir), Ext: ext}
}

// EnsureDir creates the directory with owner-only permissions.
func (l Layout) EnsureDir() error {
	if err := os.MkdirAll(l.Dir, dirPermission); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	return nil
}

// ValidateID checks that id is a UUID in canonical lowercase form, which
// also keeps it from naming anything outside the data directory. One entry
// has exactly one spelling, so it maps to one file and one summary record.
func ValidateID(id string) error {
	parsed, err := uuid.Parse(id)
	if err != nil || parsed.String() != id {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

// EntryPath is sleep_<id>.<ext>.
func (l Layout) EntryPath(id string) (string, error) {
	if err := ValidateID(id); err != nil {
		return "", err
	}
	return l.file(entryPrefix + id), nil
}

// LegacyEntryPath is sleep_<yyyy-mm-dd>.<ext>.
func (l Layout) LegacyEntryPath(d domain.Date) string {
	return l.file(entryPrefix + d.String())
}

// IndexPath is symptom_history.<ext>.
func (l Layout) IndexPath() string {
	return l.file(indexBase)
}

// MetricsPath is symptoms.<ext>.
func (l Layout) MetricsPath() string {
	return l.file(metricsBase)
}

// LockPath is the lock file guarding the directory.
func (l Layout) LockPath() string {
	return filepath.Join(l.Dir, lockName)
}

func (l Layout) file(base string) string {
	return filepath.Join(l.Dir, base+"."+l.Ext)
}

// scanEntries lists the ids and legacy dates found among the entry files.
func (l Layout) scanEntries() (ids []string, dates []domain.Date, err error) {
	dirEntries, err := os.ReadDir(l.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("failed to read data directory: %w", err)
	}

	suffix := "." + l.Ext
	for _, de := range dirEntries {
		name := de.Name()
		if de.IsDir() || !strings.HasPrefix(name, entryPrefix) || !strings.HasSuffix(name, suffix) {
			continue
		}
		key := strings.TrimSuffix(strings.TrimPrefix(name, entryPrefix), suffix)
		if ValidateID(key) == nil {
			ids = append(ids, key)
			continue
		}
		if d, err := domain.ParseDate(key); err == nil && d.String() == key {
			dates = append(dates, d)
		}
	}
	return ids, dates, nil
}

// ContainerFiles lists every journal file of the directory: entries (both
// schemes), the summary index, and the metric definitions.
func (l Layout) ContainerFiles() ([]string, error) {
	ids, dates, err := l.scanEntries()
	if err != nil {
		return nil, err
	}
	var files []string
	for _, id := range ids {
		p, _ := l.EntryPath(id)
		files = append(files, p)
	}
	for _, d := range dates {
		files = append(files, l.LegacyEntryPath(d))
	}
	for _, p := range []string{l.IndexPath(), l.MetricsPath()} {
		if _, err := os.Stat(p); err == nil {
			files = append(files, p)
		}
	}
	return files, nil
}
