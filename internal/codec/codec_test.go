package codec

import (
	"encoding/binary"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sleepbook/sleepbook/internal/domain"
)

func sampleEntries() []*domain.Entry {
	created := time.UnixMilli(1705354800123).UTC()
	return []*domain.Entry{
		{
			ID:        "6f1c1f0e-3b7e-4c55-9d43-2a8a4f1e9b10",
			CreatedAt: created,
			Date:      domain.Date{Year: 2024, Month: time.January, Day: 15},
			Bedtime:   domain.TimeOfDay{Hour: 23},
			WakeTime:  domain.TimeOfDay{Hour: 7},
			Notes:     "slept ok",
			Metrics:   []domain.MetricValue{{Name: "Insomnia", Value: 0}},
		},
		{
			ID:        "0e3f2e1c-1111-4222-8333-444455556666",
			CreatedAt: created,
			Date:      domain.Date{Year: 2023, Month: time.December, Day: 31},
			Bedtime:   domain.TimeOfDay{Hour: 1, Minute: 30},
			WakeTime:  domain.TimeOfDay{Hour: 9, Minute: 5},
		},
		{
			ID:        "a6c1f1aa-90cd-4fd0-bc43-000000000001",
			CreatedAt: created,
			Date:      domain.Date{Year: 2024, Month: time.February, Day: 29},
			Bedtime:   domain.TimeOfDay{Hour: 22, Minute: 45},
			WakeTime:  domain.TimeOfDay{Hour: 6, Minute: 15},
			Notes:     "rêves étranges 🌙, 夢\nsecond line",
			Metrics: []domain.MetricValue{
				{Name: "Caffeine before bed", Value: 2},
				{Name: "Melatonin", Value: 0.5},
				{Name: "Stress/Anxiety", Value: 1},
				{Name: "Negative", Value: -3.25},
				{Name: "Huge", Value: math.MaxFloat64},
			},
		},
		{
			ID:   "ffffffff-ffff-4fff-bfff-ffffffffffff",
			Date: domain.Date{Year: 2020, Month: time.June, Day: 1},
		},
	}
}

func TestEntryRoundTrip(t *testing.T) {
	for _, e := range sampleEntries() {
		got, err := DecodeEntry(EncodeEntry(e))
		require.NoError(t, err)
		assert.Equal(t, e, got)
	}
}

func TestEntryRoundTripNormalizes(t *testing.T) {
	zone := time.FixedZone("UTC+2", 2*60*60)
	e := &domain.Entry{
		ID:        "6f1c1f0e-3b7e-4c55-9d43-2a8a4f1e9b10",
		CreatedAt: time.Date(2024, time.January, 16, 0, 20, 0, 123456789, zone),
		Date:      domain.Date{Year: 2024, Month: time.January, Day: 15},
		Bedtime:   domain.TimeOfDay{Hour: 23},
		WakeTime:  domain.TimeOfDay{Hour: 7},
		Metrics:   []domain.MetricValue{},
	}

	got, err := DecodeEntry(EncodeEntry(e))
	require.NoError(t, err)

	want := e.Clone()
	want.CreatedAt = e.CreatedAt.Truncate(time.Millisecond).UTC()
	want.Metrics = nil
	assert.Equal(t, want, got)
	assert.True(t, e.CreatedAt.Truncate(time.Millisecond).Equal(got.CreatedAt))
}

func TestDecodeRejectsInvalidUTF8(t *testing.T) {
	e := sampleEntries()[0].Clone()
	e.Notes = "bad \xff notes"
	_, err := DecodeEntry(EncodeEntry(e))
	assert.ErrorIs(t, err, ErrInvalidField)

	rec := domain.SummaryRecord{
		ID:      e.ID,
		Date:    e.Date,
		Metrics: map[string]float64{"Caf\xfe": 1},
	}
	_, err = DecodeSummaries(EncodeSummaries([]domain.SummaryRecord{rec}))
	assert.ErrorIs(t, err, ErrInvalidField)
}

func TestLegacyEntryRoundTrip(t *testing.T) {
	for _, e := range sampleEntries() {
		want := e.Clone()
		want.ID = ""
		if len(want.Metrics) == 0 {
			want.Metrics = nil
		}

		got, err := DecodeLegacyEntry(EncodeLegacyEntry(e))
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestDecodeEntryAnyVersion(t *testing.T) {
	for _, e := range sampleEntries() {
		current := EncodeEntry(e)
		got, hasID, err := DecodeEntryAnyVersion(current)
		require.NoError(t, err)
		assert.True(t, hasID)
		assert.Equal(t, e.ID, got.ID)
		assert.True(t, ContainsID(current))

		legacy := EncodeLegacyEntry(e)
		got, hasID, err = DecodeEntryAnyVersion(legacy)
		require.NoError(t, err)
		assert.False(t, hasID)
		assert.Empty(t, got.ID)
		assert.Equal(t, e.Notes, got.Notes)
		assert.Equal(t, e.Date, got.Date)
		assert.False(t, ContainsID(legacy))
	}
}

func TestDecodeEntryAnyVersionLegacyLookingLikeID(t *testing.T) {
	// createdAt whose high word reads as a 36-byte string length, the size
	// of a UUID
	e := &domain.Entry{
		CreatedAt: time.UnixMilli(36<<32 | 0x2d2d2d2d).UTC(),
		Date:      domain.Date{Year: 2024, Month: time.January, Day: 15},
		Bedtime:   domain.TimeOfDay{Hour: 23},
		WakeTime:  domain.TimeOfDay{Hour: 7},
		Notes:     "0123456789abcdef0123456789abcdef",
	}
	payload := EncodeLegacyEntry(e)
	require.Equal(t, uint32(36), binary.BigEndian.Uint32(payload))

	got, hasID, err := DecodeEntryAnyVersion(payload)
	require.NoError(t, err)
	assert.False(t, hasID)
	assert.Equal(t, e, got)
}

func TestDecodeEntryRejectsNonUUID(t *testing.T) {
	e := sampleEntries()[0]
	e.ID = "2024-01-15"
	_, err := DecodeEntry(EncodeEntry(e))
	assert.ErrorIs(t, err, ErrInvalidField)
}

func TestDecodeEntryMalformed(t *testing.T) {
	valid := EncodeEntry(sampleEntries()[2])

	hugeCount := append([]byte(nil), valid...)
	// metrics count sits after the last string; rewrite it to a huge value
	countOffset := len(valid) - 4
	for _, m := range sampleEntries()[2].Metrics {
		countOffset -= 4 + len(m.Name) + 8
	}
	binary.BigEndian.PutUint32(hugeCount[countOffset:], 0x7FFFFFFF)

	badUTF8 := EncodeLegacyEntry(&domain.Entry{Date: domain.Date{Year: 2024, Month: 1, Day: 1}, Notes: "x"})
	badUTF8[len(badUTF8)-5] = 0xFF

	tests := []struct {
		name    string
		payload []byte
	}{
		{"empty", nil},
		{"truncated", valid[:len(valid)-3]},
		{"trailing", append(append([]byte(nil), valid...), 0, 0)},
		{"huge metric count", hugeCount},
		{"invalid utf8 notes", badUTF8},
		{"random", []byte{1, 2, 3, 4, 5, 6, 7, 8, 9}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := DecodeEntryAnyVersion(tt.payload)
			assert.Error(t, err)
			assert.False(t, ContainsID(tt.payload))
		})
	}
}

func TestDecodeEntryInvalidClock(t *testing.T) {
	w := &writer{}
	w.i64(0)
	w.str("2024-01-15")
	w.str("25:99")
	w.str("07:00")
	w.str("")
	w.u32(0)

	_, err := DecodeLegacyEntry(w.buf)
	assert.ErrorIs(t, err, ErrInvalidField)
}

func TestSummariesRoundTrip(t *testing.T) {
	records := []domain.SummaryRecord{
		{
			ID:         "6f1c1f0e-3b7e-4c55-9d43-2a8a4f1e9b10",
			Date:       domain.Date{Year: 2024, Month: time.January, Day: 15},
			SleepHours: 8,
			Metrics:    map[string]float64{"Insomnia": 0, "Snoring": 1},
		},
		{
			// legacy record without an id
			Date:       domain.Date{Year: 2024, Month: time.January, Day: 16},
			SleepHours: 6.5,
			Metrics:    map[string]float64{},
		},
	}

	got, err := DecodeSummaries(EncodeSummaries(records))
	require.NoError(t, err)
	assert.Equal(t, records, got)
	assert.False(t, got[1].HasID())

	empty, err := DecodeSummaries(EncodeSummaries(nil))
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestSummariesEncodingIsDeterministic(t *testing.T) {
	rec := domain.SummaryRecord{Date: domain.Date{Year: 2024, Month: 1, Day: 1}, Metrics: map[string]float64{}}
	for i := 0; i < 20; i++ {
		rec.Metrics[string(rune('a'+i))] = float64(i)
	}
	first := EncodeSummaries([]domain.SummaryRecord{rec})
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, EncodeSummaries([]domain.SummaryRecord{rec}))
	}
}

func TestDecodeSummariesMalformed(t *testing.T) {
	valid := EncodeSummaries([]domain.SummaryRecord{{ID: "x", Date: domain.Date{Year: 2024, Month: 1, Day: 1}}})

	_, err := DecodeSummaries(valid[:len(valid)-1])
	assert.ErrorIs(t, err, ErrTruncated)

	_, err = DecodeSummaries([]byte{0xFF, 0xFF, 0xFF, 0xF0})
	assert.ErrorIs(t, err, ErrTruncated)

	w := &writer{}
	w.u32(1)
	w.nullableStr("")
	w.str("2024-01-01")
	w.f64(1)
	w.u32(2)
	w.str("dup")
	w.f64(1)
	w.str("dup")
	w.f64(2)
	_, err = DecodeSummaries(w.buf)
	assert.ErrorIs(t, err, ErrInvalidField)
}

func TestMetricDefinitionsRoundTrip(t *testing.T) {
	defs := append(domain.DefaultMetrics(),
		domain.MetricDefinition{Name: "Caffeine", Kind: domain.MetricCount, Unit: "cups"},
		domain.MetricDefinition{Name: "Melatonin", Kind: domain.MetricQuantity, Unit: "mg"},
	)

	got, err := DecodeMetricDefinitions(EncodeMetricDefinitions(defs))
	require.NoError(t, err)
	assert.Equal(t, defs, got)
}

func TestDecodeMetricDefinitionsInvalidKind(t *testing.T) {
	payload := EncodeMetricDefinitions([]domain.MetricDefinition{{Name: "x", Kind: 9}})
	_, err := DecodeMetricDefinitions(payload)
	assert.ErrorIs(t, err, ErrInvalidField)
}
