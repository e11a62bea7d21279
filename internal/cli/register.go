package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sleepbook/sleepbook/internal/domain"
	"github.com/sleepbook/sleepbook/internal/journal"
	"github.com/sleepbook/sleepbook/internal/passphrase"
)

func newRegisterCommand(a *app) *cobra.Command {
	var (
		displayName string
		generate    bool
		words       int
	)

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a journal account",
		Long: `Create an account and its encrypted journal directory.

The password encrypts every journal file of the account. It is read from
SLEEPBOOK_PASSWORD when set, otherwise it is prompted for twice.
With --generate a random passphrase is created and printed once.

Example:
  sleepbook register --user alice
  sleepbook register --user alice --generate --words 6`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegister(cmd, a, displayName, generate, words)
		},
	}

	cmd.Flags().StringVar(&displayName, "name", "", "display name (defaults to the username)")
	cmd.Flags().BoolVar(&generate, "generate", false, "generate a random passphrase")
	cmd.Flags().IntVar(&words, "words", passphrase.DefaultWords, "number of words for --generate")

	return cmd
}

func runRegister(cmd *cobra.Command, a *app, displayName string, generate bool, words int) error {
	out := cmd.OutOrStdout()

	username, err := a.username()
	if err != nil {
		return err
	}
	if err := domain.ValidateUsername(username); err != nil {
		return err
	}

	registry, err := a.openRegistry()
	if err != nil {
		return err
	}
	defer registry.Close()

	var password string
	switch {
	case generate:
		if password, err = passphrase.Generate(words); err != nil {
			return fmt.Errorf("failed to generate passphrase: %w", err)
		}
	case a.getenv(envPassword) != "":
		password = a.getenv(envPassword)
	default:
		if password, err = a.promptPasswordConfirm(fmt.Sprintf("New password for %s: ", username)); err != nil {
			return err
		}
	}

	acct, err := registry.Register(username, password, displayName)
	if err != nil {
		return fmt.Errorf("failed to register %s: %w", username, err)
	}

	s, err := journal.Open(a.cfg.UserDir(username), username, password, a.journalOptions(registry))
	if err != nil {
		return err
	}
	if err := s.Close(); err != nil {
		return err
	}
	_ = registry.LogOperation(&domain.Operation{Type: domain.OpRegister, Username: username, Success: true})

	if err := writeOutput(out, "✓ Account '%s' registered\n", acct.Username); err != nil {
		return err
	}
	if generate {
		return writeOutput(out, "Passphrase (shown once): %s\n", password)
	}
	if rating := passphrase.Rate(passphrase.Strength(password)); rating == passphrase.RatingWeak {
		return writeOutput(cmd.ErrOrStderr(), "Warning: the password is %s; consider 'register --generate' next time\n", rating)
	}
	return nil
}
