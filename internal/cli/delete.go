package cli

import (
	"github.com/spf13/cobra"
)

func newDeleteCommand(a *app) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an entry",
		Long: `Delete an entry and its summary record. Deleting an id that does not
exist succeeds.

Example:
  sleepbook delete 6f1c1f0e-3b7e-4c55-9d43-2a8a4f1e9b10 --force`,
		Args: cobra.ExactArgs(1),
		RunE: a.runWithJournal(func(cmd *cobra.Command, args []string, us *userSession) error {
			id := entryID(args[0])
			out := cmd.OutOrStdout()

			if !force {
				e, ok := us.journal.Get(id)
				if ok {
					if err := writeString(out, renderEntry(e)); err != nil {
						return err
					}
				}
				confirmed, err := a.promptConfirm(cmd, "Delete this entry?")
				if err != nil {
					return err
				}
				if !confirmed {
					return writeOutput(out, "Deletion cancelled\n")
				}
			}

			if err := us.journal.Delete(id); err != nil {
				return err
			}
			return writeOutput(out, "✓ Entry %s deleted\n", id)
		}),
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "skip confirmation")
	return cmd
}
