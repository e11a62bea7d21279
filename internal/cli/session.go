package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sleepbook/sleepbook/internal/config"
	"github.com/sleepbook/sleepbook/internal/domain"
	"github.com/sleepbook/sleepbook/internal/journal"
	"github.com/sleepbook/sleepbook/internal/store"
	"github.com/sleepbook/sleepbook/internal/util"
)

const (
	envPassword = config.EnvPassword
	// envNewPassword supplies the new password to rotate-password.
	envNewPassword = "SLEEPBOOK_NEW_PASSWORD"
)

// userSession is an authenticated user with an open journal.
type userSession struct {
	registry *store.AccountRegistry
	journal  *journal.Session
	account  *domain.Account
	password string
}

func (us *userSession) Close() error {
	var errs []error
	if us.journal != nil {
		errs = append(errs, us.journal.Close())
	}
	if us.registry != nil {
		errs = append(errs, us.registry.Close())
	}
	return errors.Join(errs...)
}

func (a *app) openRegistry() (*store.AccountRegistry, error) {
	if err := os.MkdirAll(a.cfg.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return store.OpenAccountRegistry(a.cfg.AccountsPath(), a.cfg.KDF, a.log)
}

func (a *app) username() (string, error) {
	if a.user == "" {
		return "", util.InvalidInput("no user given; pass --user or set %s", config.EnvUser)
	}
	return a.user, nil
}

func (a *app) journalOptions(auditor journal.Auditor) journal.Options {
	return journal.Options{
		Logger:        a.log,
		FormatVersion: a.cfg.FormatVersion,
		Extension:     a.cfg.FileExtension,
		ExclusiveLock: a.cfg.ExclusiveLock,
		Auditor:       auditor,
	}
}

// login authenticates the user against the registry and opens the journal
// under the same password.
func (a *app) login() (*userSession, error) {
	username, err := a.username()
	if err != nil {
		return nil, err
	}

	registry, err := a.openRegistry()
	if err != nil {
		return nil, err
	}
	us := &userSession{registry: registry}

	password, err := a.password(fmt.Sprintf("Password for %s: ", username))
	if err != nil {
		_ = us.Close()
		return nil, err
	}

	acct, err := registry.Authenticate(username, password)
	if err != nil {
		a.log.Warn("login failed", zap.String("user", username), zap.Error(err))
		if !errors.Is(err, store.ErrAccountNotFound) {
			_ = registry.LogOperation(&domain.Operation{Type: domain.OpLogin, Username: username})
		}
		_ = us.Close()
		return nil, fmt.Errorf("login failed: %w", err)
	}
	us.account = acct
	us.password = password

	s, err := journal.Open(a.cfg.UserDir(username), username, password, a.journalOptions(registry))
	if err != nil {
		_ = us.Close()
		return nil, err
	}
	us.journal = s

	a.log.Debug("logged in", zap.String("user", username))
	return us, nil
}

// withJournal runs fn with an authenticated session and closes it after.
func (a *app) withJournal(fn func(us *userSession) error) (err error) {
	us, err := a.login()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := us.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(us)
}

// runWithJournal adapts withJournal to a cobra RunE.
func (a *app) runWithJournal(fn func(cmd *cobra.Command, args []string, us *userSession) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		return a.withJournal(func(us *userSession) error {
			return fn(cmd, args, us)
		})
	}
}
