package journal

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/sleepbook/sleepbook/internal/domain"
	"github.com/sleepbook/sleepbook/internal/store"
)

// CommitError reports a commit whose entry file was written but whose
// summary record was not. The entry is durable; Reconcile repairs the index.
type CommitError struct {
	EntryID string
	Err     error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("entry %s saved but summary index not updated: %v", e.EntryID, e.Err)
}

// Unwrap exposes both ErrIndexNotUpdated and the index failure.
func (e *CommitError) Unwrap() []error {
	return []error{ErrIndexNotUpdated, e.Err}
}

type indexChecker interface {
	Check() error
}

// Validate checks an entry before it is written. Text fields must be valid
// UTF-8, the only text the record codec reads back.
func Validate(e *domain.Entry) error {
	if e == nil {
		return fmt.Errorf("%w: nil entry", ErrInvalidEntry)
	}
	if e.Date.IsZero() {
		return fmt.Errorf("%w: date is required", ErrInvalidEntry)
	}
	if !e.Bedtime.Valid() || !e.WakeTime.Valid() {
		return fmt.Errorf("%w: bedtime and wake time must be valid times of day", ErrInvalidEntry)
	}
	if !utf8.ValidString(e.Notes) {
		return fmt.Errorf("%w: notes are not valid UTF-8", ErrInvalidEntry)
	}
	seen := make(map[string]bool, len(e.Metrics))
	for _, m := range e.Metrics {
		name := strings.TrimSpace(m.Name)
		if name == "" {
			return fmt.Errorf("%w: metric name is empty", ErrInvalidEntry)
		}
		if !utf8.ValidString(name) {
			return fmt.Errorf("%w: metric name %q is not valid UTF-8", ErrInvalidEntry, name)
		}
		if seen[name] {
			return fmt.Errorf("%w: metric %q given twice", ErrInvalidEntry, name)
		}
		seen[name] = true
		if math.IsNaN(m.Value) || math.IsInf(m.Value, 0) {
			return fmt.Errorf("%w: metric %q is not a finite number", ErrInvalidEntry, name)
		}
	}
	return nil
}

// Commit creates or updates an entry. An entry without an id is new: it is
// given an id and a creation time. For an existing id the stored creation
// time is kept. The entry file is written before the summary index; when
// only the first write succeeds the saved entry is returned together with a
// *CommitError.
func (s *Session) Commit(e *domain.Entry) (*domain.Entry, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	if err := Validate(e); err != nil {
		return nil, err
	}

	// an index that cannot be read usually means the wrong secret; refuse
	// before writing an entry nobody could list
	if c, ok := s.stores.Index.(indexChecker); ok {
		if err := c.Check(); err != nil {
			return nil, err
		}
	}

	entry := e.Clone()
	if entry.ID == "" {
		entry.ID = s.newID()
		entry.CreatedAt = s.timestamp()
	} else {
		if err := store.ValidateID(entry.ID); err != nil {
			return nil, err
		}
		if existing, ok := s.stores.Entries.Load(entry.ID); ok {
			entry.CreatedAt = existing.CreatedAt
		} else if entry.CreatedAt.IsZero() {
			entry.CreatedAt = s.timestamp()
		}
	}

	if err := s.stores.Entries.Save(entry); err != nil {
		s.audit(domain.OpCommit, entry.ID, "", err)
		return nil, err
	}

	if err := s.stores.Index.Upsert(entry.Summary()); err != nil {
		s.log.Warn("entry written without summary record",
			zap.String("id", entry.ID),
			zap.Error(err))
		cerr := &CommitError{EntryID: entry.ID, Err: err}
		s.audit(domain.OpCommit, entry.ID, "summary index not updated", cerr)
		return entry, cerr
	}

	s.log.Debug("entry committed", zap.String("id", entry.ID), zap.String("date", entry.Date.String()))
	s.audit(domain.OpCommit, entry.ID, entry.Date.String(), nil)
	return entry, nil
}

// Delete removes an entry and its summary record. The summary goes first
// so a failure in between leaves an entry without a summary, which
// Reconcile can see, rather than a summary pointing at nothing. Deleting
// an unknown id succeeds.
func (s *Session) Delete(id string) error {
	if err := s.check(); err != nil {
		return err
	}
	if err := store.ValidateID(id); err != nil {
		return err
	}

	if err := s.stores.Index.Remove(id); err != nil {
		s.audit(domain.OpDelete, id, "", err)
		return fmt.Errorf("failed to remove summary record: %w", err)
	}
	if err := s.stores.Entries.Delete(id); err != nil {
		s.log.Error("summary removed but entry file remains", zap.String("id", id), zap.Error(err))
		s.audit(domain.OpDelete, id, "", err)
		return err
	}

	s.log.Debug("entry deleted", zap.String("id", id))
	s.audit(domain.OpDelete, id, "", nil)
	return nil
}
