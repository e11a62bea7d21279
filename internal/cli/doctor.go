package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sleepbook/sleepbook/internal/store"
)

type checkup struct {
	out      io.Writer
	issues   int
	warnings int
}

func (c *checkup) section(title string) {
	fmt.Fprintf(c.out, "\n%s\n", title)
}

func (c *checkup) ok(format string, args ...interface{}) {
	fmt.Fprintf(c.out, "   ✅ "+format+"\n", args...)
}

func (c *checkup) warn(format string, args ...interface{}) {
	fmt.Fprintf(c.out, "   ⚠️  "+format+"\n", args...)
	c.warnings++
}

func (c *checkup) fail(format string, args ...interface{}) {
	fmt.Fprintf(c.out, "   ❌ "+format+"\n", args...)
	c.issues++
}

// permissions checks that path is not readable by group or others.
func (c *checkup) permissions(label, path string, want os.FileMode) {
	info, err := os.Stat(path)
	if err != nil {
		c.fail("Cannot check %s: %v", label, err)
		return
	}
	perm := info.Mode().Perm()
	switch {
	case perm == want:
		c.ok("%s permissions: %o (secure)", label, perm)
	case perm&0o077 != 0:
		c.fail("%s permissions: %o (too permissive, should be %o)", label, perm, want)
		fmt.Fprintf(c.out, "      Fix with: chmod %o %s\n", want, path)
	default:
		c.warn("%s permissions: %o (acceptable but %o recommended)", label, perm, want)
	}
}

func newDoctorCommand(a *app) *cobra.Command {
	var fix bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check and repair the journal",
		Long: `Check the health of the journal and its files.

This command checks:
- Data directory and file permissions
- Account registry integrity
- Readability of the summary index
- Entries still stored under their date
- Files written in an older format version

With --fix it migrates date-keyed entries and rebuilds summary records
that are missing or disagree with their entry.

Example:
  sleepbook doctor
  sleepbook doctor --fix`,
		Args: cobra.NoArgs,
		RunE: a.runWithJournal(func(cmd *cobra.Command, args []string, us *userSession) error {
			return runDoctor(cmd, a, us, fix)
		}),
	}

	cmd.Flags().BoolVar(&fix, "fix", false, "migrate and repair the summary index")
	return cmd
}

func runDoctor(cmd *cobra.Command, a *app, us *userSession, fix bool) error {
	c := &checkup{out: cmd.OutOrStdout()}
	fmt.Fprintln(c.out, "Journal Health Check")
	fmt.Fprintln(c.out, "====================")

	c.section("1. File Security")
	c.permissions("Journal directory", us.journal.Dir(), 0o700)
	layout := store.NewLayout(us.journal.Dir(), a.cfg.FileExtension)
	files, err := layout.ContainerFiles()
	if err != nil {
		c.fail("Cannot list journal files: %v", err)
	}
	loose := 0
	for _, f := range files {
		if info, err := os.Stat(f); err == nil && info.Mode().Perm()&0o077 != 0 {
			c.fail("%s is readable by other users", filepath.Base(f))
			loose++
		}
	}
	if loose == 0 {
		c.ok("%d journal files are private", len(files))
	}
	if _, err := os.Stat(a.cfgFile); err == nil {
		c.permissions("Config file", a.cfgFile, 0o600)
	}

	c.section("2. Account Registry")
	if err := us.registry.VerifyIntegrity(); err != nil {
		c.fail("Registry check failed: %v", err)
	} else {
		c.ok("Registry structure is valid")
	}

	c.section("3. Journal Data")
	st, err := us.journal.Status()
	if err != nil {
		return err
	}
	if st.IndexReadable {
		c.ok("Summary index readable (%d records)", st.Summaries)
	} else {
		c.fail("Summary index exists but cannot be read")
	}
	if st.NeedsMigration() {
		c.warn("%d entries and %d summaries still keyed by date", st.LegacyEntries, st.IDlessRecords)
	} else {
		c.ok("All %d entries use identifiers", st.Entries)
	}
	if st.NeedsUpgrade() {
		c.warn("Some files use an older format: %v (run 'sleepbook migrate --upgrade')", st.FilesByVersion)
	} else {
		c.ok("All files use format version %d", st.FormatVersion)
	}

	if fix && st.IndexReadable {
		c.section("4. Repair")
		report, err := us.journal.MigrateAll()
		if err != nil {
			c.fail("Migration incomplete: %v", err)
		} else if len(report.Migrated) > 0 || report.Finished > 0 {
			c.ok("Migrated %d entries", len(report.Migrated)+report.Finished)
		}
		rec, err := us.journal.Reconcile()
		if err != nil {
			c.fail("Index repair failed: %v", err)
		} else {
			if rec.Changed() {
				c.ok("Rebuilt %d summary records", len(rec.Created)+len(rec.Repaired))
			} else {
				c.ok("Summary index matches the entry files")
			}
			for _, id := range rec.Orphaned {
				c.warn("Summary %s has no entry file", id)
			}
			for _, id := range rec.Unreadable {
				c.fail("Entry %s cannot be read", id)
			}
		}
	}

	c.section("5. Settings")
	if a.cfg.ClipboardTTL > 60*time.Second {
		c.warn("Clipboard timeout is %v (consider reducing it)", a.cfg.ClipboardTTL)
	} else {
		c.ok("Clipboard timeout: %v", a.cfg.ClipboardTTL)
	}
	if a.cfg.KDF.Memory >= 65536 {
		c.ok("Password hash memory: %d KB (strong)", a.cfg.KDF.Memory)
	} else {
		c.warn("Password hash memory: %d KB (consider at least 65536 KB)", a.cfg.KDF.Memory)
	}

	fmt.Fprintln(c.out, "\n"+strings.Repeat("=", 40))
	if c.issues == 0 && c.warnings == 0 {
		fmt.Fprintln(c.out, "✅ All checks passed")
	}
	if c.issues > 0 {
		fmt.Fprintf(c.out, "❌ Found %d issues that should be fixed\n", c.issues)
	}
	if c.warnings > 0 {
		fmt.Fprintf(c.out, "⚠️  Found %d warnings for consideration\n", c.warnings)
	}

	if !st.IndexReadable {
		return fmt.Errorf("doctor: %w", store.ErrIndexUnreadable)
	}
	return nil
}
