package journal

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sleepbook/sleepbook/internal/domain"
	"github.com/sleepbook/sleepbook/internal/store"
)

// legacyNamespace seeds the ids given to migrated date-keyed entries.
var legacyNamespace = uuid.MustParse("8b0e7d2c-5a61-4f3e-9c1d-2e4b6a7f9d10")

// LegacyID is the id a date-keyed entry receives when it is migrated. It is
// derived from the entry's date and creation time, so an interrupted
// migration that is run again assigns the same id.
func LegacyID(d domain.Date, e *domain.Entry) string {
	name := fmt.Sprintf("legacy:%s:%d", d, e.CreatedAt.UnixMilli())
	return uuid.NewSHA1(legacyNamespace, []byte(name)).String()
}

// MigrationReport summarizes a MigrateAll run.
type MigrationReport struct {
	// Migrated lists the ids given to entries rewritten from the date scheme.
	Migrated []string
	// Finished counts legacy files whose id-keyed copy already existed and
	// that were only removed.
	Finished int
	// SummariesCreated counts migrated entries that had no summary record.
	SummariesCreated int
	// Unresolved lists dates of id-less summary records with no legacy
	// file to migrate from.
	Unresolved []domain.Date
	// Failed lists dates whose migration could not be written.
	Failed []domain.Date
}

type migrateResult int

const (
	migrateNone migrateResult = iota
	migrateRewritten
	migrateFinished
	migrateFailed
)

// migrateDate moves the date-keyed entry for d to the id scheme and points
// the summary index at it. Steps run in order: write the id-keyed entry,
// adopt the summary record, delete the date-keyed file. Each step is safe
// to repeat, so an interrupted run is completed by the next one. A non-empty
// wantID is used as the new id; it names a summary record whose entry file
// is missing.
func (s *Session) migrateDate(d domain.Date, wantID string) (*domain.Entry, migrateResult, error) {
	legacy, ok := s.stores.Entries.LoadLegacyByDate(d)
	if !ok {
		return nil, migrateNone, nil
	}
	if legacy.Date.IsZero() {
		legacy.Date = d
	}

	migrated, result, err := s.placeLegacy(d, legacy, wantID)
	if err != nil {
		s.log.Error("legacy entry could not be migrated", zap.String("date", d.String()), zap.Error(err))
		s.audit(domain.OpMigrate, "", d.String(), err)
		return nil, migrateFailed, err
	}

	if err := s.stores.Index.AdoptLegacy(migrated.Summary()); err != nil {
		// the id-keyed file exists; the next run reuses it and retries
		s.log.Warn("migrated entry has no summary record yet",
			zap.String("date", d.String()),
			zap.String("id", migrated.ID),
			zap.Error(err))
		s.audit(domain.OpMigrate, migrated.ID, d.String(), err)
		return migrated, migrateFailed, &CommitError{EntryID: migrated.ID, Err: err}
	}

	if err := s.stores.Entries.DeleteLegacy(d); err != nil {
		s.log.Warn("migrated legacy file could not be removed",
			zap.String("date", d.String()),
			zap.Error(err))
	}

	s.log.Info("legacy entry migrated",
		zap.String("date", d.String()),
		zap.String("id", migrated.ID),
		zap.Bool("resumed", result == migrateFinished))
	s.audit(domain.OpMigrate, migrated.ID, d.String(), nil)
	return migrated, result, nil
}

// placeLegacy makes sure an id-keyed copy of legacy exists. An existing
// id-keyed entry for the same date with the same content is reused,
// including ones whose id came from an earlier random assignment.
func (s *Session) placeLegacy(d domain.Date, legacy *domain.Entry, wantID string) (*domain.Entry, migrateResult, error) {
	for _, rec := range s.stores.Index.LoadAll() {
		if !rec.HasID() || rec.Date != d {
			continue
		}
		if existing, ok := s.stores.Entries.Load(rec.ID); ok && sameRecord(existing, legacy) {
			return existing, migrateFinished, nil
		}
	}

	id := wantID
	if id == "" {
		id = legacy.ID
	}
	if store.ValidateID(id) != nil {
		id = LegacyID(d, legacy)
	}
	if existing, ok := s.stores.Entries.Load(id); ok {
		return existing, migrateFinished, nil
	}

	migrated := legacy.Clone()
	migrated.ID = id
	if migrated.CreatedAt.IsZero() {
		migrated.CreatedAt = d.Time()
	}
	if err := s.stores.Entries.Save(migrated); err != nil {
		return nil, migrateFailed, err
	}
	return migrated, migrateRewritten, nil
}

// sameRecord compares the user-visible fields of two entries.
func sameRecord(a, b *domain.Entry) bool {
	if a.Date != b.Date || a.Bedtime != b.Bedtime || a.WakeTime != b.WakeTime || a.Notes != b.Notes {
		return false
	}
	if len(a.Metrics) != len(b.Metrics) {
		return false
	}
	for i := range a.Metrics {
		if a.Metrics[i] != b.Metrics[i] {
			return false
		}
	}
	return true
}

// MigrateAll migrates every date-keyed entry file and reports summary
// records that still lack an id and have nothing to migrate from.
func (s *Session) MigrateAll() (*MigrationReport, error) {
	if err := s.check(); err != nil {
		return nil, err
	}

	dates, err := s.stores.Entries.LegacyDates()
	if err != nil {
		return nil, err
	}

	report := &MigrationReport{}
	hadSummary := map[domain.Date]bool{}
	for _, rec := range s.stores.Index.LoadAll() {
		if !rec.HasID() {
			hadSummary[rec.Date] = true
		}
	}

	var errs []error
	for _, d := range dates {
		migrated, result, err := s.migrateDate(d, "")
		switch result {
		case migrateRewritten:
			report.Migrated = append(report.Migrated, migrated.ID)
			if !hadSummary[d] {
				report.SummariesCreated++
			}
		case migrateFinished:
			report.Finished++
		case migrateFailed:
			report.Failed = append(report.Failed, d)
			errs = append(errs, fmt.Errorf("%s: %w", d, err))
		}
	}

	for _, rec := range s.stores.Index.LoadAll() {
		if !rec.HasID() {
			report.Unresolved = append(report.Unresolved, rec.Date)
		}
	}

	if len(report.Migrated) > 0 || report.Finished > 0 {
		s.log.Info("migration finished",
			zap.Int("migrated", len(report.Migrated)),
			zap.Int("finished", report.Finished),
			zap.Int("unresolved", len(report.Unresolved)))
	}
	return report, errors.Join(errs...)
}
