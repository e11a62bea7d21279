package codec

import (
	"fmt"

	"github.com/sleepbook/sleepbook/internal/domain"
)

// name(4) + kind(1) + unit(4)
const metricDefinitionSize = 4 + 1 + 4

// EncodeMetricDefinitions serializes the metric definition list.
func EncodeMetricDefinitions(defs []domain.MetricDefinition) []byte {
	w := &writer{}
	w.u32(uint32(len(defs)))
	for _, d := range defs {
		w.str(d.Name)
		w.u8(uint8(d.Kind))
		w.str(d.Unit)
	}
	return w.buf
}

// DecodeMetricDefinitions parses a payload written by EncodeMetricDefinitions.
func DecodeMetricDefinitions(payload []byte) ([]domain.MetricDefinition, error) {
	r := &reader{data: payload}
	n := r.count(metricDefinitionSize)
	defs := make([]domain.MetricDefinition, 0, n)

	for i := 0; i < n && r.err == nil; i++ {
		name := r.str()
		kind := domain.MetricKind(r.u8())
		unit := r.str()
		if r.err == nil && kind > domain.MetricQuantity {
			r.fail(fmt.Errorf("%w: metric kind %d", ErrInvalidField, kind))
		}
		defs = append(defs, domain.MetricDefinition{Name: name, Kind: kind, Unit: unit})
	}

	if err := r.finish(); err != nil {
		return nil, err
	}
	return defs, nil
}
