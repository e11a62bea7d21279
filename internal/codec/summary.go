package codec

import (
	"fmt"
	"sort"

	"github.com/sleepbook/sleepbook/internal/domain"
)

// id(4) + date(4) + hours(8) + metric count(4)
const summaryRecordSize = 4 + 4 + 8 + 4

// EncodeSummaries serializes the summary index collection in order. A
// record without an id is written with a null id. Metrics are written sorted
// by name so equal records encode identically.
func EncodeSummaries(records []domain.SummaryRecord) []byte {
	w := &writer{}
	w.u32(uint32(len(records)))
	for _, rec := range records {
		w.nullableStr(rec.ID)
		w.str(rec.Date.String())
		w.f64(rec.SleepHours)

		names := make([]string, 0, len(rec.Metrics))
		for name := range rec.Metrics {
			names = append(names, name)
		}
		sort.Strings(names)

		w.u32(uint32(len(names)))
		for _, name := range names {
			w.str(name)
			w.f64(rec.Metrics[name])
		}
	}
	return w.buf
}

// DecodeSummaries parses a payload written by EncodeSummaries.
func DecodeSummaries(payload []byte) ([]domain.SummaryRecord, error) {
	r := &reader{data: payload}
	n := r.count(summaryRecordSize)
	records := make([]domain.SummaryRecord, 0, n)

	for i := 0; i < n && r.err == nil; i++ {
		var rec domain.SummaryRecord
		rec.ID = r.str()
		rec.Date = decodeDate(r, r.str())
		rec.SleepHours = r.f64()

		m := r.count(metricPairSize)
		rec.Metrics = make(map[string]float64, m)
		for j := 0; j < m && r.err == nil; j++ {
			name := r.str()
			rec.Metrics[name] = r.f64()
		}
		if r.err == nil && len(rec.Metrics) != m {
			r.fail(fmt.Errorf("%w: duplicate metric in record %d", ErrInvalidField, i))
		}
		records = append(records, rec)
	}

	if err := r.finish(); err != nil {
		return nil, err
	}
	return records, nil
}
