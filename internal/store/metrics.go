package store

import (
	"go.uber.org/zap"

	"github.com/sleepbook/sleepbook/internal/codec"
	"github.com/sleepbook/sleepbook/internal/domain"
	"github.com/sleepbook/sleepbook/internal/vault"
)

// FileMetricStore keeps the metric definitions in symptoms.<ext>.
type FileMetricStore struct {
	path string
	file sealedFile
	log  *zap.Logger
}

// NewFileMetricStore returns a MetricStore over layout's definitions file.
func NewFileMetricStore(layout Layout, sealer *vault.Sealer, log *zap.Logger) *FileMetricStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &FileMetricStore{
		path: layout.MetricsPath(),
		file: sealedFile{sealer: sealer, log: log},
		log:  log,
	}
}

// Load returns the stored definitions; false when none are readable.
func (m *FileMetricStore) Load() ([]domain.MetricDefinition, bool) {
	payload, state := m.file.read(m.path)
	if state != fileReadable {
		return nil, false
	}
	defs, err := codec.DecodeMetricDefinitions(payload)
	if err != nil {
		m.log.Warn("metric definitions could not be decoded", zap.Error(err))
		return nil, false
	}
	return defs, true
}

// Save replaces the stored definitions.
func (m *FileMetricStore) Save(defs []domain.MetricDefinition) error {
	return m.file.write(m.path, codec.EncodeMetricDefinitions(defs))
}

var _ MetricStore = (*FileMetricStore)(nil)
