package cli

import (
	"time"

	"github.com/spf13/cobra"
)

func newAuditCommand(a *app) *cobra.Command {
	var (
		asJSON bool
		verify bool
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show the account's audit log",
		Long: `Show the operations recorded for the account: registration, logins that
failed, commits, deletions, migrations and password changes.

Example:
  sleepbook audit
  sleepbook audit --limit 20
  sleepbook audit --verify`,
		Args: cobra.NoArgs,
		RunE: a.runWithJournal(func(cmd *cobra.Command, args []string, us *userSession) error {
			out := cmd.OutOrStdout()

			if verify {
				if err := us.registry.VerifyIntegrity(); err != nil {
					return err
				}
				if err := writeOutput(out, "✓ Audit log is intact\n"); err != nil {
					return err
				}
			}

			ops, err := us.registry.AuditLog(us.account.Username)
			if err != nil {
				return err
			}
			if limit > 0 && len(ops) > limit {
				ops = ops[len(ops)-limit:]
			}

			if asJSON {
				return writeJSON(out, ops)
			}
			for _, op := range ops {
				status := "ok"
				if !op.Success {
					status = "FAILED"
				}
				line := op.Timestamp.Local().Format(time.DateTime) + "  " + op.Type + "  " + status
				if op.EntryID != "" {
					line += "  " + op.EntryID
				}
				if op.Detail != "" {
					line += "  " + op.Detail
				}
				if err := writeString(out, line+"\n"); err != nil {
					return err
				}
			}
			return nil
		}),
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	cmd.Flags().BoolVar(&verify, "verify", false, "verify the registry before listing")
	cmd.Flags().IntVar(&limit, "limit", 0, "show only the most recent N operations")
	return cmd
}
