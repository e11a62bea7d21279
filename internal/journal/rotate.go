package journal

import (
	"go.uber.org/zap"

	"github.com/sleepbook/sleepbook/internal/domain"
	"github.com/sleepbook/sleepbook/internal/store"
	"github.com/sleepbook/sleepbook/internal/vault"
)

// RotateSecret re-encrypts every journal file of the session under the key
// derived from newSecret and switches the session to it. Nothing is
// rewritten unless every file opens under the current secret.
func (s *Session) RotateSecret(newSecret string) (int, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	if s.layout == nil {
		return 0, ErrNotFileBacked
	}

	next, err := vault.NewSealer(vault.DeriveKey(newSecret), s.sealer.Version())
	if err != nil {
		return 0, err
	}
	n, err := store.Reseal(*s.layout, s.sealer, next, s.log)
	s.audit(domain.OpRotatePassword, "", "", err)
	if err != nil {
		next.Destroy()
		return n, err
	}

	s.useSealer(next)
	return n, nil
}

// Upgrade rewrites every journal file in the session's format version under
// the same secret, so version 1 files become authenticated ones.
func (s *Session) Upgrade() (int, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	if s.layout == nil {
		return 0, ErrNotFileBacked
	}
	return store.Reseal(*s.layout, s.sealer, s.sealer, s.log)
}

func (s *Session) useSealer(next *vault.Sealer) {
	old := s.sealer
	s.sealer = next
	s.stores = Stores{
		Entries: store.NewFileEntryStore(*s.layout, next, s.log),
		Index:   store.NewFileSummaryIndex(*s.layout, next, s.log),
		Metrics: store.NewFileMetricStore(*s.layout, next, s.log),
	}
	old.Destroy()
	s.log.Info("journal secret rotated", zap.Uint32("format_version", next.Version()))
}
