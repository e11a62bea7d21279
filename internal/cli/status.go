package cli

import (
	"sort"

	"github.com/spf13/cobra"
)

func newStatusCommand(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show journal status",
		Long: `Show where the journal lives and the state of its files.

Example:
  sleepbook status
  sleepbook status --json`,
		Args: cobra.NoArgs,
		RunE: a.runWithJournal(func(cmd *cobra.Command, args []string, us *userSession) error {
			st, err := us.journal.Status()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, st)
			}

			lines := []struct {
				format string
				args   []interface{}
			}{
				{"User:            %s\n", []interface{}{us.account.Username}},
				{"Directory:       %s\n", []interface{}{st.Dir}},
				{"Format version:  %d\n", []interface{}{st.FormatVersion}},
				{"Entries:         %d\n", []interface{}{st.Entries}},
				{"Summaries:       %d\n", []interface{}{st.Summaries}},
			}
			for _, l := range lines {
				if err := writeOutput(out, l.format, l.args...); err != nil {
					return err
				}
			}

			versions := make([]int, 0, len(st.FilesByVersion))
			for v := range st.FilesByVersion {
				versions = append(versions, int(v))
			}
			sort.Ints(versions)
			for _, v := range versions {
				if err := writeOutput(out, "  v%d files:       %d\n", v, st.FilesByVersion[uint32(v)]); err != nil {
					return err
				}
			}

			if !st.IndexReadable {
				if err := writeOutput(out, "⚠️  Summary index cannot be read (run 'sleepbook doctor')\n"); err != nil {
					return err
				}
			}
			if st.NeedsMigration() {
				return writeOutput(out, "⚠️  %d entries still keyed by date (run 'sleepbook migrate')\n", st.LegacyEntries+st.IDlessRecords)
			}
			return nil
		}),
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}
