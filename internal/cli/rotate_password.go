package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sleepbook/sleepbook/internal/domain"
)

func newRotatePasswordCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rotate-password",
		Short: "Change the account password",
		Long: `Change the account password and re-encrypt every journal file under it.

This process:
1. Verifies the current password
2. Reads the new password (SLEEPBOOK_NEW_PASSWORD or a prompt)
3. Re-encrypts all journal files with the new key
4. Updates the account registry

Nothing is rewritten unless every file opens under the current password.

Example:
  sleepbook rotate-password --user alice`,
		Args: cobra.NoArgs,
		RunE: a.runWithJournal(func(cmd *cobra.Command, args []string, us *userSession) error {
			return runRotatePassword(cmd, a, us)
		}),
	}
}

func runRotatePassword(cmd *cobra.Command, a *app, us *userSession) error {
	username := us.account.Username

	newPassword := a.getenv(envNewPassword)
	if newPassword == "" {
		var err error
		newPassword, err = a.promptPasswordConfirm("New password: ")
		if err != nil {
			return err
		}
	}
	if err := domain.ValidatePassword(newPassword); err != nil {
		return err
	}

	n, err := us.journal.RotateSecret(newPassword)
	if err != nil {
		return fmt.Errorf("failed to re-encrypt journal: %w", err)
	}

	if err := us.registry.ChangePassword(username, us.password, newPassword); err != nil {
		// files are under the new key; put them back so the old password still works
		if _, rerr := us.journal.RotateSecret(us.password); rerr != nil {
			return errors.Join(fmt.Errorf("failed to update account: %w", err), rerr)
		}
		return fmt.Errorf("failed to update account: %w", err)
	}
	us.password = newPassword

	return writeOutput(cmd.OutOrStdout(), "✓ Password changed, %d files re-encrypted\n", n)
}
