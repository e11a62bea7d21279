package cli

import (
	"github.com/spf13/cobra"

	"github.com/sleepbook/sleepbook/internal/domain"
)

func newAddCommand(a *app) *cobra.Command {
	flags := &entryFlags{}

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a night",
		Long: `Record a new journal entry.

Bedtime and wake time are required. A wake time not later than the bedtime
falls on the next day.

Example:
  sleepbook add --bedtime 23:15 --wake 07:00
  sleepbook add --date 2024-01-15 --bedtime 23:00 --wake 06:30 -m Insomnia -m "Caffeine before bed"
  sleepbook add --bedtime 00:30 --wake 08:00 -m Coffee=2 --notes "late movie"`,
		Args: cobra.NoArgs,
		RunE: a.runWithJournal(func(cmd *cobra.Command, args []string, us *userSession) error {
			if !cmd.Flags().Changed("bedtime") || !cmd.Flags().Changed("wake") {
				return errMissingClock
			}
			e := &domain.Entry{Date: domain.Today()}
			if err := flags.apply(cmd, e); err != nil {
				return err
			}

			saved, err := us.journal.Commit(e)
			if err != nil {
				return err
			}

			if err := writeOutput(cmd.OutOrStdout(), "✓ Entry %s recorded for %s (%s)\n",
				saved.ID, saved.Date, formatHours(saved.SleepHours())); err != nil {
				return err
			}
			if a.verbose {
				return writeString(cmd.OutOrStdout(), renderEntry(saved))
			}
			return nil
		}),
	}

	flags.register(cmd)
	return cmd
}
