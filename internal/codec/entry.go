package codec

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sleepbook/sleepbook/internal/domain"
)

// minimum encoded size of one (name, value) metric pair
const metricPairSize = 4 + 8

// EncodeEntry serializes an entry in the current layout, id first:
// id, createdAt, date, bedtime, wakeTime, notes, metrics.
//
// The encoding normalizes two things: CreatedAt is kept as UTC milliseconds,
// and an empty metric list decodes as nil. Strings must be valid UTF-8;
// the decoder rejects anything else.
func EncodeEntry(e *domain.Entry) []byte {
	w := &writer{}
	w.str(e.ID)
	encodeEntryBody(w, e)
	return w.buf
}

// EncodeLegacyEntry serializes an entry in the layout used before entries
// had identifiers. The ID field is not written.
func EncodeLegacyEntry(e *domain.Entry) []byte {
	w := &writer{}
	encodeEntryBody(w, e)
	return w.buf
}

func encodeEntryBody(w *writer, e *domain.Entry) {
	w.i64(encodeTime(e.CreatedAt))
	w.str(e.Date.String())
	w.str(e.Bedtime.String())
	w.str(e.WakeTime.String())
	w.str(e.Notes)
	w.u32(uint32(len(e.Metrics)))
	for _, m := range e.Metrics {
		w.str(m.Name)
		w.f64(m.Value)
	}
}

// DecodeEntry parses the current layout. The id must be a UUID and every
// byte of the payload must be consumed.
func DecodeEntry(payload []byte) (*domain.Entry, error) {
	r := &reader{data: payload}
	id := r.str()
	if r.err == nil {
		if _, err := uuid.Parse(id); err != nil {
			r.fail(fmt.Errorf("%w: id %q", ErrInvalidField, id))
		}
	}
	e := decodeEntryBody(r)
	if err := r.finish(); err != nil {
		return nil, err
	}
	e.ID = id
	return e, nil
}

// DecodeLegacyEntry parses the id-less layout. The returned entry has an
// empty ID.
func DecodeLegacyEntry(payload []byte) (*domain.Entry, error) {
	r := &reader{data: payload}
	e := decodeEntryBody(r)
	if err := r.finish(); err != nil {
		return nil, err
	}
	return e, nil
}

// DecodeEntryAnyVersion decodes either layout. It tries the current layout
// first and falls back to the legacy one; hasID reports which matched.
func DecodeEntryAnyVersion(payload []byte) (e *domain.Entry, hasID bool, err error) {
	e, currentErr := DecodeEntry(payload)
	if currentErr == nil {
		return e, true, nil
	}
	e, legacyErr := DecodeLegacyEntry(payload)
	if legacyErr == nil {
		return e, false, nil
	}
	return nil, false, fmt.Errorf("payload matches no entry layout: %w", errors.Join(currentErr, legacyErr))
}

// ContainsID reports whether payload is a well-formed current-layout entry.
func ContainsID(payload []byte) bool {
	_, err := DecodeEntry(payload)
	return err == nil
}

func decodeEntryBody(r *reader) *domain.Entry {
	e := &domain.Entry{}
	e.CreatedAt = decodeTime(r.i64())
	e.Date = decodeDate(r, r.str())
	e.Bedtime = decodeClock(r, r.str())
	e.WakeTime = decodeClock(r, r.str())
	e.Notes = r.str()

	n := r.count(metricPairSize)
	if n > 0 {
		e.Metrics = make([]domain.MetricValue, 0, n)
	}
	for i := 0; i < n && r.err == nil; i++ {
		name := r.str()
		value := r.f64()
		e.Metrics = append(e.Metrics, domain.MetricValue{Name: name, Value: value})
	}
	return e
}

// encodeTime stores UTC milliseconds; the zero time is stored as 0.
func encodeTime(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func decodeTime(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func decodeDate(r *reader, s string) domain.Date {
	if r.err != nil || s == "" {
		return domain.Date{}
	}
	d, err := domain.ParseDate(s)
	if err != nil {
		r.fail(fmt.Errorf("%w: %v", ErrInvalidField, err))
	}
	return d
}

func decodeClock(r *reader, s string) domain.TimeOfDay {
	if r.err != nil {
		return domain.TimeOfDay{}
	}
	t, err := domain.ParseTimeOfDay(s)
	if err != nil {
		r.fail(fmt.Errorf("%w: %v", ErrInvalidField, err))
	}
	return t
}
