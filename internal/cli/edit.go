package cli

import (
	"github.com/spf13/cobra"

	"github.com/sleepbook/sleepbook/internal/util"
)

func newEditCommand(a *app) *cobra.Command {
	flags := &entryFlags{}

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Update an entry",
		Long: `Update fields of an existing entry. Only the flags given are changed;
--metric replaces the whole metric list.

Example:
  sleepbook edit 6f1c1f0e-3b7e-4c55-9d43-2a8a4f1e9b10 --wake 07:30
  sleepbook edit 6f1c1f0e-3b7e-4c55-9d43-2a8a4f1e9b10 --notes "woke up twice"`,
		Args: cobra.ExactArgs(1),
		RunE: a.runWithJournal(func(cmd *cobra.Command, args []string, us *userSession) error {
			id := entryID(args[0])
			e, ok := us.journal.Get(id)
			if !ok {
				return util.InvalidInput("no entry with id %s", id)
			}
			if err := flags.apply(cmd, e); err != nil {
				return err
			}

			saved, err := us.journal.Commit(e)
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), "✓ Entry %s updated\n", saved.ID)
		}),
	}

	flags.register(cmd)
	return cmd
}
