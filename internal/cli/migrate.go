package cli

import (
	"github.com/spf13/cobra"

	"github.com/sleepbook/sleepbook/internal/journal"
)

func newMigrateCommand(a *app) *cobra.Command {
	var upgrade bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Move date-keyed entries to identifiers",
		Long: `Rewrite every entry still stored under its date as an id-keyed entry
and point its summary record at it. Reads migrate single entries lazily;
this command migrates everything at once. Running it again is harmless.

With --upgrade every file is also rewritten in the configured format
version.

Example:
  sleepbook migrate
  sleepbook migrate --upgrade`,
		Args: cobra.NoArgs,
		RunE: a.runWithJournal(func(cmd *cobra.Command, args []string, us *userSession) error {
			out := cmd.OutOrStdout()

			report, err := us.journal.MigrateAll()
			if report != nil {
				if werr := writeMigrationReport(cmd, report); werr != nil {
					return werr
				}
			}
			if err != nil {
				return err
			}

			if upgrade {
				n, err := us.journal.Upgrade()
				if err != nil {
					return err
				}
				return writeOutput(out, "✓ %d files rewritten in format version %d\n", n, us.journal.FormatVersion())
			}
			return nil
		}),
	}

	cmd.Flags().BoolVar(&upgrade, "upgrade", false, "rewrite all files in the configured format version")
	return cmd
}

func writeMigrationReport(cmd *cobra.Command, report *journal.MigrationReport) error {
	out := cmd.OutOrStdout()
	if len(report.Migrated) == 0 && report.Finished == 0 && len(report.Unresolved) == 0 && len(report.Failed) == 0 {
		return writeOutput(out, "✓ Nothing to migrate\n")
	}
	if err := writeOutput(out, "✓ Migrated %d entries (%d summaries created, %d interrupted migrations finished)\n",
		len(report.Migrated), report.SummariesCreated, report.Finished); err != nil {
		return err
	}
	for _, d := range report.Unresolved {
		if err := writeOutput(out, "  ! summary for %s has no entry file\n", d); err != nil {
			return err
		}
	}
	for _, d := range report.Failed {
		if err := writeOutput(out, "  ✗ entry for %s could not be migrated\n", d); err != nil {
			return err
		}
	}
	return nil
}
