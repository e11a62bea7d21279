package journal

import (
	"sort"

	"go.uber.org/zap"

	"github.com/sleepbook/sleepbook/internal/domain"
)

// ReconcileReport describes what Reconcile found and repaired.
type ReconcileReport struct {
	// Created lists entries that had no summary record.
	Created []string
	// Repaired lists summary records that disagreed with their entry.
	Repaired []string
	// Orphaned lists summary records whose entry file is missing. They are
	// reported, not removed.
	Orphaned []string
	// Unreadable lists entry files that exist but could not be read.
	Unreadable []string
}

// Changed reports whether the index was rewritten.
func (r *ReconcileReport) Changed() bool {
	return len(r.Created) > 0 || len(r.Repaired) > 0
}

// Reconcile brings the summary index in line with the id-keyed entry files:
// missing records are created and stale ones are rebuilt from their entry.
func (s *Session) Reconcile() (*ReconcileReport, error) {
	if err := s.check(); err != nil {
		return nil, err
	}

	ids, err := s.stores.Entries.IDs()
	if err != nil {
		return nil, err
	}

	records := s.stores.Index.LoadAll()
	pos := make(map[string]int, len(records))
	for i, rec := range records {
		if rec.HasID() {
			pos[rec.ID] = i
		}
	}

	report := &ReconcileReport{}
	onDisk := make(map[string]bool, len(ids))
	var created []domain.SummaryRecord
	for _, id := range ids {
		onDisk[id] = true
		e, ok := s.stores.Entries.Load(id)
		if !ok {
			report.Unreadable = append(report.Unreadable, id)
			continue
		}

		want := e.Summary()
		i, ok := pos[id]
		switch {
		case !ok:
			created = append(created, want)
			report.Created = append(report.Created, id)
		case !sameSummary(records[i], want):
			records[i] = want
			report.Repaired = append(report.Repaired, id)
		}
	}

	for _, rec := range records {
		if rec.HasID() && !onDisk[rec.ID] {
			report.Orphaned = append(report.Orphaned, rec.ID)
		}
	}

	if report.Changed() {
		sort.SliceStable(created, func(i, j int) bool { return created[i].Date.Before(created[j].Date) })
		err := s.stores.Index.ReplaceAll(append(records, created...))
		s.audit(domain.OpReconcile, "", "", err)
		if err != nil {
			return report, err
		}
		s.log.Info("summary index reconciled",
			zap.Int("created", len(report.Created)),
			zap.Int("repaired", len(report.Repaired)))
	}
	if len(report.Orphaned) > 0 {
		s.log.Warn("summary records without an entry file", zap.Strings("ids", report.Orphaned))
	}
	return report, nil
}

func sameSummary(a, b domain.SummaryRecord) bool {
	if a.ID != b.ID || a.Date != b.Date || a.SleepHours != b.SleepHours || len(a.Metrics) != len(b.Metrics) {
		return false
	}
	for name, v := range a.Metrics {
		if w, ok := b.Metrics[name]; !ok || w != v {
			return false
		}
	}
	return true
}
