package journal

import (
	"sort"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/sleepbook/sleepbook/internal/domain"
	"github.com/sleepbook/sleepbook/internal/store"
)

// Get returns the entry with id. When its id-keyed file is missing but the
// summary index knows the id's date and a date-keyed file exists for it,
// the entry is migrated and returned as if it had always been id-keyed.
func (s *Session) Get(id string) (*domain.Entry, bool) {
	if s.check() != nil || store.ValidateID(id) != nil {
		return nil, false
	}
	if e, ok := s.stores.Entries.Load(id); ok {
		return e, true
	}

	for _, rec := range s.stores.Index.LoadAll() {
		if rec.ID != id {
			continue
		}
		if e, _, _ := s.migrateDate(rec.Date, id); e != nil && e.ID == id {
			return e, true
		}
		break
	}
	return nil, false
}

// GetByDate returns every entry attributed to d, oldest first. Summary
// records without an id and date-keyed files that have no summary record
// at all are migrated on the way.
func (s *Session) GetByDate(d domain.Date) []*domain.Entry {
	if s.check() != nil {
		return nil
	}

	var ids []string
	legacyPending := false
	for _, rec := range s.stores.Index.LoadAll() {
		if rec.Date != d {
			continue
		}
		if rec.HasID() {
			ids = append(ids, rec.ID)
		} else {
			legacyPending = true
		}
	}
	if !legacyPending {
		_, legacyPending = s.stores.Entries.LoadLegacyByDate(d)
	}

	seen := map[string]bool{}
	var out []*domain.Entry
	if legacyPending {
		if e, _, _ := s.migrateDate(d, ""); e != nil {
			seen[e.ID] = true
			out = append(out, e)
		}
	}
	for _, id := range ids {
		if seen[id] {
			continue
		}
		if e, ok := s.Get(id); ok {
			seen[id] = true
			out = append(out, e)
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// History returns the summary records within r, sorted by date. Pending
// date-keyed entries are migrated first so every listed record carries an
// id where one can be assigned.
func (s *Session) History(r domain.DateRange) ([]domain.SummaryRecord, error) {
	if err := s.check(); err != nil {
		return nil, err
	}

	if dates, err := s.stores.Entries.LegacyDates(); err == nil && len(dates) > 0 {
		if _, err := s.MigrateAll(); err != nil {
			s.log.Warn("some legacy entries were not migrated", zap.Error(err))
		}
	}

	var out []domain.SummaryRecord
	for _, rec := range s.stores.Index.LoadAll() {
		if r.Contains(rec.Date) {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// ParseSearchTokens splits the raw search string into lower-cased tokens.
// Tokens are delimited by '+' or any whitespace character.
func ParseSearchTokens(raw string) []string {
	fields := strings.FieldsFunc(strings.TrimSpace(raw), func(r rune) bool {
		return unicode.IsSpace(r) || r == '+'
	})
	if len(fields) == 0 {
		return nil
	}
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		tokens = append(tokens, strings.ToLower(f))
	}
	return tokens
}

// MatchesSearchTokens reports whether every token is found in the entry's
// notes, its date, or the name of a metric it recorded as present.
func MatchesSearchTokens(e *domain.Entry, tokens []string) bool {
	if e == nil {
		return false
	}
	notes := strings.ToLower(e.Notes)
	date := e.Date.String()

	var present []string
	for _, m := range e.Metrics {
		if m.Value != 0 {
			present = append(present, strings.ToLower(m.Name))
		}
	}

	for _, token := range tokens {
		if strings.Contains(notes, token) || strings.Contains(date, token) || anyContains(present, token) {
			continue
		}
		return false
	}
	return true
}

func anyContains(values []string, token string) bool {
	for _, v := range values {
		if strings.Contains(v, token) {
			return true
		}
	}
	return false
}

// Search returns the entries within r matching every token of query,
// sorted by date. An empty query matches everything.
func (s *Session) Search(r domain.DateRange, query string) ([]*domain.Entry, error) {
	records, err := s.History(r)
	if err != nil {
		return nil, err
	}
	tokens := ParseSearchTokens(query)

	var out []*domain.Entry
	for _, rec := range records {
		if !rec.HasID() {
			continue
		}
		e, ok := s.Get(rec.ID)
		if !ok {
			continue
		}
		if MatchesSearchTokens(e, tokens) {
			out = append(out, e)
		}
	}
	return out, nil
}

// MetricStat aggregates one metric over a set of summary records.
type MetricStat struct {
	Name string `json:"name"`
	// Occurrences counts records where the metric was non-zero.
	Occurrences int     `json:"occurrences"`
	Total       float64 `json:"total"`
}

// Stats aggregates summary records.
type Stats struct {
	Entries        int          `json:"entries"`
	From           domain.Date  `json:"from"`
	To             domain.Date  `json:"to"`
	MeanSleepHours float64      `json:"mean_sleep_hours"`
	MinSleepHours  float64      `json:"min_sleep_hours"`
	MaxSleepHours  float64      `json:"max_sleep_hours"`
	Metrics        []MetricStat `json:"metrics"`
}

// Stats summarizes the history within r.
func (s *Session) Stats(r domain.DateRange) (*Stats, error) {
	records, err := s.History(r)
	if err != nil {
		return nil, err
	}
	return ComputeStats(records), nil
}

// ComputeStats aggregates records. Metrics are ordered by occurrences,
// then by name.
func ComputeStats(records []domain.SummaryRecord) *Stats {
	st := &Stats{Entries: len(records), Metrics: []MetricStat{}}
	if len(records) == 0 {
		return st
	}

	byName := map[string]*MetricStat{}
	var sum float64
	st.From, st.To = records[0].Date, records[0].Date
	st.MinSleepHours, st.MaxSleepHours = records[0].SleepHours, records[0].SleepHours

	for _, rec := range records {
		sum += rec.SleepHours
		if rec.SleepHours < st.MinSleepHours {
			st.MinSleepHours = rec.SleepHours
		}
		if rec.SleepHours > st.MaxSleepHours {
			st.MaxSleepHours = rec.SleepHours
		}
		if rec.Date.Before(st.From) {
			st.From = rec.Date
		}
		if rec.Date.After(st.To) {
			st.To = rec.Date
		}

		for name, v := range rec.Metrics {
			ms, ok := byName[name]
			if !ok {
				ms = &MetricStat{Name: name}
				byName[name] = ms
			}
			if v != 0 {
				ms.Occurrences++
			}
			ms.Total += v
		}
	}
	st.MeanSleepHours = sum / float64(len(records))

	for _, ms := range byName {
		st.Metrics = append(st.Metrics, *ms)
	}
	sort.Slice(st.Metrics, func(i, j int) bool {
		if st.Metrics[i].Occurrences != st.Metrics[j].Occurrences {
			return st.Metrics[i].Occurrences > st.Metrics[j].Occurrences
		}
		return st.Metrics[i].Name < st.Metrics[j].Name
	})
	return st
}
