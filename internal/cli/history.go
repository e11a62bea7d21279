package cli

import (
	"github.com/spf13/cobra"
)

func newHistoryCommand(a *app) *cobra.Command {
	var (
		rng    rangeFlags
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:     "history",
		Aliases: []string{"list", "ls"},
		Short:   "List recorded nights",
		Long: `List the summary of every recorded night, oldest first.

Example:
  sleepbook history
  sleepbook history --from 2024-01-01 --to 2024-01-31
  sleepbook history --days 7 --json`,
		Args: cobra.NoArgs,
		RunE: a.runWithJournal(func(cmd *cobra.Command, args []string, us *userSession) error {
			r, err := rng.dateRange()
			if err != nil {
				return err
			}
			records, err := us.journal.History(r)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, records)
			}
			if len(records) == 0 {
				return writeOutput(out, "No entries found\n")
			}
			for _, rec := range records {
				if err := writeString(out, renderSummary(rec)); err != nil {
					return err
				}
			}
			return nil
		}),
	}

	rng.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}
