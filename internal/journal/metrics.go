package journal

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sleepbook/sleepbook/internal/domain"
)

var (
	// ErrMetricExists is returned when defining a metric whose name is taken
	ErrMetricExists = errors.New("metric already defined")
	// ErrMetricNotFound is returned when removing an unknown metric
	ErrMetricNotFound = errors.New("metric not defined")
)

// Metrics returns the user's metric definitions, or the default set when
// none have been stored.
func (s *Session) Metrics() []domain.MetricDefinition {
	if s.check() != nil {
		return nil
	}
	if defs, ok := s.stores.Metrics.Load(); ok {
		return defs
	}
	return domain.DefaultMetrics()
}

// DefineMetric adds a metric definition. Names are unique, compared
// without regard to case.
func (s *Session) DefineMetric(def domain.MetricDefinition) error {
	if err := s.check(); err != nil {
		return err
	}
	def.Name = strings.TrimSpace(def.Name)
	def.Unit = strings.TrimSpace(def.Unit)
	if def.Name == "" {
		return fmt.Errorf("%w: metric name is empty", ErrInvalidEntry)
	}
	if !utf8.ValidString(def.Name) || !utf8.ValidString(def.Unit) {
		return fmt.Errorf("%w: metric %q is not valid UTF-8", ErrInvalidEntry, def.Name)
	}
	if def.Kind > domain.MetricQuantity {
		return fmt.Errorf("%w: unknown metric kind %d", ErrInvalidEntry, def.Kind)
	}
	if def.Kind == domain.MetricQuantity && def.Unit == "" {
		return fmt.Errorf("%w: quantity metric %q needs a unit", ErrInvalidEntry, def.Name)
	}

	defs := s.Metrics()
	for _, d := range defs {
		if strings.EqualFold(d.Name, def.Name) {
			return fmt.Errorf("%w: %s", ErrMetricExists, d.Name)
		}
	}

	err := s.stores.Metrics.Save(append(defs, def))
	s.audit(domain.OpMetrics, "", "define "+def.Name, err)
	return err
}

// RemoveMetric drops a metric definition. Entries that recorded it keep
// their values.
func (s *Session) RemoveMetric(name string) error {
	if err := s.check(); err != nil {
		return err
	}
	defs := s.Metrics()
	kept := make([]domain.MetricDefinition, 0, len(defs))
	for _, d := range defs {
		if !strings.EqualFold(d.Name, strings.TrimSpace(name)) {
			kept = append(kept, d)
		}
	}
	if len(kept) == len(defs) {
		return fmt.Errorf("%w: %s", ErrMetricNotFound, name)
	}

	err := s.stores.Metrics.Save(kept)
	s.audit(domain.OpMetrics, "", "remove "+name, err)
	return err
}
