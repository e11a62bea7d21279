package cli

import (
	"github.com/spf13/cobra"
)

func newStatsCommand(a *app) *cobra.Command {
	var (
		rng    rangeFlags
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize sleep and metrics",
		Long: `Summarize the recorded nights: count, mean, shortest and longest sleep,
and how often each metric was recorded.

Example:
  sleepbook stats --days 30`,
		Args: cobra.NoArgs,
		RunE: a.runWithJournal(func(cmd *cobra.Command, args []string, us *userSession) error {
			r, err := rng.dateRange()
			if err != nil {
				return err
			}
			st, err := us.journal.Stats(r)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, st)
			}
			if st.Entries == 0 {
				return writeOutput(out, "No entries found\n")
			}

			if err := writeOutput(out, "Nights:   %d (%s to %s)\n", st.Entries, st.From, st.To); err != nil {
				return err
			}
			if err := writeOutput(out, "Sleep:    mean %s, min %s, max %s\n",
				formatHours(st.MeanSleepHours), formatHours(st.MinSleepHours), formatHours(st.MaxSleepHours)); err != nil {
				return err
			}
			if len(st.Metrics) == 0 {
				return nil
			}
			if err := writeOutput(out, "Metrics:\n"); err != nil {
				return err
			}
			for _, m := range st.Metrics {
				if err := writeOutput(out, "  %-28s %3d nights  total %s\n", m.Name, m.Occurrences, formatValue(m.Total)); err != nil {
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
