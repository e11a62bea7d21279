package cli

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sleepbook/sleepbook/internal/domain"
	"github.com/sleepbook/sleepbook/internal/store"
	"github.com/sleepbook/sleepbook/internal/util"
)

func newGetCommand(a *app) *cobra.Command {
	var (
		asJSON bool
		copyIt bool
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "get <id|date>",
		Short: "Show an entry",
		Long: `Show one entry by id, or every entry of a date.

Entries written before identifiers existed are migrated when read.

Example:
  sleepbook get 2024-01-15
  sleepbook get 6f1c1f0e-3b7e-4c55-9d43-2a8a4f1e9b10 --json
  sleepbook get 2024-01-15 --copy --ttl 10s`,
		Args: cobra.ExactArgs(1),
		RunE: a.runWithJournal(func(cmd *cobra.Command, args []string, us *userSession) error {
			entries, err := lookup(us, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, entries)
			}

			rendered := make([]string, len(entries))
			for i, e := range entries {
				rendered[i] = renderEntry(e)
			}
			text := strings.Join(rendered, "\n")

			if copyIt {
				if !cmd.Flags().Changed("ttl") {
					ttl = a.cfg.ClipboardTTL
				}
				done, err := a.copyText(text, ttl)
				if err != nil {
					return err
				}
				if err := writeOutput(out, "✓ Copied to clipboard (clears in %s)\n", ttl.Round(time.Second)); err != nil {
					return err
				}
				<-done
				return nil
			}
			return writeString(out, text)
		}),
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	cmd.Flags().BoolVarP(&copyIt, "copy", "c", false, "copy to the clipboard instead of printing")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "clipboard clear timeout (default from config)")
	cmd.MarkFlagsMutuallyExclusive("json", "copy")

	return cmd
}

// lookup resolves an id or a date to entries.
func lookup(us *userSession, arg string) ([]*domain.Entry, error) {
	if d, err := domain.ParseDate(arg); err == nil {
		entries := us.journal.GetByDate(d)
		if len(entries) == 0 {
			return nil, util.InvalidInput("no entry on %s", d)
		}
		return entries, nil
	}

	arg = entryID(arg)
	if err := store.ValidateID(arg); err != nil {
		if errors.Is(err, store.ErrInvalidID) {
			return nil, util.InvalidInput("%q is neither an entry id nor a date", arg)
		}
		return nil, err
	}
	e, ok := us.journal.Get(arg)
	if !ok {
		return nil, util.InvalidInput("no entry with id %s", arg)
	}
	return []*domain.Entry{e}, nil
}
