package store

import (
	"go.uber.org/zap"

	"github.com/sleepbook/sleepbook/internal/codec"
	"github.com/sleepbook/sleepbook/internal/domain"
	"github.com/sleepbook/sleepbook/internal/vault"
)

// FileSummaryIndex keeps every summary record in symptom_history. Each
// mutation reads the collection, applies the change and rewrites the file.
type FileSummaryIndex struct {
	path string
	file sealedFile
	log  *zap.Logger
}

// NewFileSummaryIndex returns a SummaryIndex over layout's index file.
func NewFileSummaryIndex(layout Layout, sealer *vault.Sealer, log *zap.Logger) *FileSummaryIndex {
	if log == nil {
		log = zap.NewNop()
	}
	return &FileSummaryIndex{
		path: layout.IndexPath(),
		file: sealedFile{sealer: sealer, log: log},
		log:  log,
	}
}

// LoadAll returns the stored records. Missing or unreadable files yield an
// empty collection.
func (x *FileSummaryIndex) LoadAll() []domain.SummaryRecord {
	records, _ := x.load()
	if records == nil {
		return []domain.SummaryRecord{}
	}
	return records
}

// Check reports ErrIndexUnreadable when the file exists but cannot be read.
func (x *FileSummaryIndex) Check() error {
	_, err := x.load()
	return err
}

func (x *FileSummaryIndex) load() ([]domain.SummaryRecord, error) {
	payload, state := x.file.read(x.path)
	switch state {
	case fileMissing:
		return nil, nil
	case fileUnreadable:
		return nil, ErrIndexUnreadable
	}
	records, err := codec.DecodeSummaries(payload)
	if err != nil {
		x.log.Warn("summary index could not be decoded", zap.String("path", x.path), zap.Error(err))
		return nil, ErrIndexUnreadable
	}
	return records, nil
}

// mutate applies fn to the current collection and persists the result.
// An index that exists but cannot be read is left untouched.
func (x *FileSummaryIndex) mutate(fn func([]domain.SummaryRecord) []domain.SummaryRecord) error {
	records, err := x.load()
	if err != nil {
		return err
	}
	return x.persist(fn(records))
}

func (x *FileSummaryIndex) persist(records []domain.SummaryRecord) error {
	return x.file.write(x.path, codec.EncodeSummaries(dedupe(records)))
}

// Upsert replaces the record with rec.ID in place, or appends it.
func (x *FileSummaryIndex) Upsert(rec domain.SummaryRecord) error {
	if err := ValidateID(rec.ID); err != nil {
		return err
	}
	return x.mutate(func(records []domain.SummaryRecord) []domain.SummaryRecord {
		return upsert(records, rec)
	})
}

// Remove drops the record with id. Removing an unknown id still rewrites
// nothing and succeeds.
func (x *FileSummaryIndex) Remove(id string) error {
	records, err := x.load()
	if err != nil {
		return err
	}
	kept := records[:0:0]
	for _, r := range records {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	if len(kept) == len(records) {
		return nil
	}
	return x.persist(kept)
}

// AdoptLegacy replaces the id-less records for rec.Date with rec.
func (x *FileSummaryIndex) AdoptLegacy(rec domain.SummaryRecord) error {
	if err := ValidateID(rec.ID); err != nil {
		return err
	}
	return x.mutate(func(records []domain.SummaryRecord) []domain.SummaryRecord {
		out := make([]domain.SummaryRecord, 0, len(records)+1)
		placed := false
		for _, r := range records {
			if !r.HasID() && r.Date == rec.Date {
				// the migrated record takes the place of the first legacy one
				if !placed {
					out = append(out, rec)
					placed = true
				}
				continue
			}
			out = append(out, r)
		}
		if !placed {
			return upsert(out, rec)
		}
		return out
	})
}

// ReplaceAll rewrites the index with records. It refuses to replace an
// index it cannot read.
func (x *FileSummaryIndex) ReplaceAll(records []domain.SummaryRecord) error {
	if _, err := x.load(); err != nil {
		return err
	}
	return x.persist(records)
}

func upsert(records []domain.SummaryRecord, rec domain.SummaryRecord) []domain.SummaryRecord {
	for i := range records {
		if records[i].ID == rec.ID {
			records[i] = rec
			return records
		}
	}
	return append(records, rec)
}

// dedupe keeps one record per id: the last value, at the first position.
// Records without an id are kept as they are.
func dedupe(records []domain.SummaryRecord) []domain.SummaryRecord {
	pos := make(map[string]int, len(records))
	out := make([]domain.SummaryRecord, 0, len(records))
	for _, r := range records {
		if !r.HasID() {
			out = append(out, r)
			continue
		}
		if i, ok := pos[r.ID]; ok {
			out[i] = r
			continue
		}
		pos[r.ID] = len(out)
		out = append(out, r)
	}
	return out
}

var _ SummaryIndex = (*FileSummaryIndex)(nil)
