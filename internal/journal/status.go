package journal

import (
	"github.com/sleepbook/sleepbook/internal/store"
)

// Status describes the state of a user's journal files.
type Status struct {
	Dir            string         `json:"dir"`
	FormatVersion  uint32         `json:"format_version"`
	Entries        int            `json:"entries"`
	LegacyEntries  int            `json:"legacy_entries"`
	Summaries      int            `json:"summaries"`
	IDlessRecords  int            `json:"idless_summaries"`
	IndexReadable  bool           `json:"index_readable"`
	FilesByVersion map[uint32]int `json:"files_by_version,omitempty"`
}

// NeedsMigration reports whether date-keyed data is still present.
func (st *Status) NeedsMigration() bool {
	return st.LegacyEntries > 0 || st.IDlessRecords > 0
}

// NeedsUpgrade reports whether some files use an older container version.
func (st *Status) NeedsUpgrade() bool {
	for v, n := range st.FilesByVersion {
		if n > 0 && v != st.FormatVersion {
			return true
		}
	}
	return false
}

// Status inspects the journal without changing it.
func (s *Session) Status() (*Status, error) {
	if err := s.check(); err != nil {
		return nil, err
	}

	st := &Status{
		Dir:           s.Dir(),
		FormatVersion: s.FormatVersion(),
		IndexReadable: true,
	}

	ids, err := s.stores.Entries.IDs()
	if err != nil {
		return nil, err
	}
	dates, err := s.stores.Entries.LegacyDates()
	if err != nil {
		return nil, err
	}
	st.Entries = len(ids)
	st.LegacyEntries = len(dates)

	if c, ok := s.stores.Index.(indexChecker); ok && c.Check() != nil {
		st.IndexReadable = false
	}
	records := s.stores.Index.LoadAll()
	st.Summaries = len(records)
	for _, rec := range records {
		if !rec.HasID() {
			st.IDlessRecords++
		}
	}

	if s.layout != nil {
		if st.FilesByVersion, err = store.FormatCensus(*s.layout); err != nil {
			return nil, err
		}
	}
	return st, nil
}
