package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

func newSearchCommand(a *app) *cobra.Command {
	var (
		rng    rangeFlags
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Find entries by notes, date or metric",
		Long: `Find entries whose notes, date or recorded metrics contain every word
of the query. Words are separated by spaces or '+'.

Example:
  sleepbook search coffee
  sleepbook search "insomnia+2024-01" --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: a.runWithJournal(func(cmd *cobra.Command, args []string, us *userSession) error {
			r, err := rng.dateRange()
			if err != nil {
				return err
			}
			entries, err := us.journal.Search(r, strings.Join(args, " "))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, entries)
			}
			if len(entries) == 0 {
				return writeOutput(out, "No matching entries\n")
			}
			for _, e := range entries {
				if err := writeString(out, renderSummary(e.Summary())); err != nil {
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
