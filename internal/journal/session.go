// Package journal is the query and command surface over one user's
// encrypted record store. A Session carries the user's secret explicitly;
// nothing about the logged-in user is held in package state.
package journal

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sleepbook/sleepbook/internal/domain"
	"github.com/sleepbook/sleepbook/internal/store"
	"github.com/sleepbook/sleepbook/internal/vault"
)

var (
	// ErrIndexNotUpdated is wrapped by CommitError when the entry file was
	// written but the summary index was not.
	ErrIndexNotUpdated = errors.New("entry saved but summary index not updated")
	// ErrInvalidEntry is returned for entries that fail validation
	ErrInvalidEntry = errors.New("invalid entry")
	// ErrSessionClosed is returned by operations on a closed session
	ErrSessionClosed = errors.New("session is closed")
	// ErrNotFileBacked is returned by operations that need the on-disk layout
	ErrNotFileBacked = errors.New("session is not backed by a data directory")
)

// DefaultLockTimeout bounds how long Open waits for the directory lock.
const DefaultLockTimeout = 2 * time.Second

// Auditor receives one Operation per journal mutation.
type Auditor interface {
	LogOperation(op *domain.Operation) error
}

// Options configures a Session. The zero value is usable.
type Options struct {
	Logger *zap.Logger
	// FormatVersion is the container version written; 0 means vault.CurrentFormat.
	FormatVersion uint32
	// Extension of the journal files; empty means store.DefaultExt.
	Extension string
	// ExclusiveLock takes a lock file on the data directory for the
	// session's lifetime.
	ExclusiveLock bool
	LockTimeout   time.Duration
	Auditor       Auditor
	// Now and NewID are replaced in tests.
	Now   func() time.Time
	NewID func() string
}

// Stores bundles the persistence a Session works on.
type Stores struct {
	Entries store.EntryStore
	Index   store.SummaryIndex
	Metrics store.MetricStore
}

// Session is one user's open journal.
type Session struct {
	username string
	stores   Stores

	layout *store.Layout
	sealer *vault.Sealer
	lock   *store.FileLock

	log     *zap.Logger
	auditor Auditor
	now     func() time.Time
	newID   func() string
	closed  bool
}

// Open opens the journal stored in dir under the key derived from secret.
// The directory is created when missing.
func Open(dir, username, secret string, opts Options) (*Session, error) {
	version := opts.FormatVersion
	if version == 0 {
		version = vault.CurrentFormat
	}
	sealer, err := vault.NewSealer(vault.DeriveKey(secret), version)
	if err != nil {
		return nil, err
	}

	layout := store.NewLayout(dir, opts.Extension)
	if err := layout.EnsureDir(); err != nil {
		sealer.Destroy()
		return nil, err
	}

	var lock *store.FileLock
	if opts.ExclusiveLock {
		timeout := opts.LockTimeout
		if timeout <= 0 {
			timeout = DefaultLockTimeout
		}
		lock = store.NewFileLock(layout.LockPath())
		if err := lock.Lock(timeout); err != nil {
			sealer.Destroy()
			if errors.Is(err, store.ErrLockTimeout) {
				return nil, fmt.Errorf("%w: %s", store.ErrDataDirLocked, dir)
			}
			return nil, err
		}
	}

	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("user", username))

	s := NewSession(username, Stores{
		Entries: store.NewFileEntryStore(layout, sealer, log),
		Index:   store.NewFileSummaryIndex(layout, sealer, log),
		Metrics: store.NewFileMetricStore(layout, sealer, log),
	}, opts)
	s.log = log
	s.layout = &layout
	s.sealer = sealer
	s.lock = lock

	log.Debug("journal opened",
		zap.String("dir", dir),
		zap.Uint32("format_version", version),
		zap.Bool("locked", lock != nil))
	return s, nil
}

// NewSession builds a Session over the given stores.
func NewSession(username string, stores Stores, opts Options) *Session {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	newID := opts.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	return &Session{
		username: username,
		stores:   stores,
		log:      log,
		auditor:  opts.Auditor,
		now:      now,
		newID:    newID,
	}
}

// Username is the owner of the session.
func (s *Session) Username() string {
	return s.username
}

// Dir is the data directory, or "" for sessions not opened from disk.
func (s *Session) Dir() string {
	if s.layout == nil {
		return ""
	}
	return s.layout.Dir
}

// FormatVersion is the container version the session writes.
func (s *Session) FormatVersion() uint32 {
	if s.sealer == nil {
		return 0
	}
	return s.sealer.Version()
}

// Close clears the key and releases the directory lock.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.sealer != nil {
		s.sealer.Destroy()
	}
	if s.lock != nil {
		return s.lock.Unlock()
	}
	return nil
}

func (s *Session) check() error {
	if s.closed {
		return ErrSessionClosed
	}
	return nil
}

func (s *Session) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

func (s *Session) audit(opType, entryID, detail string, err error) {
	if s.auditor == nil {
		return
	}
	op := &domain.Operation{
		Type:      opType,
		Username:  s.username,
		EntryID:   entryID,
		Detail:    detail,
		Timestamp: s.now().UTC(),
		Success:   err == nil,
	}
	if auditErr := s.auditor.LogOperation(op); auditErr != nil {
		s.log.Warn("failed to record audit entry", zap.String("type", opType), zap.Error(auditErr))
	}
}
