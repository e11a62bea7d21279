// Package cli implements the sleepbook command line.
package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sleepbook/sleepbook/internal/clipboard"
	"github.com/sleepbook/sleepbook/internal/config"
	"github.com/sleepbook/sleepbook/internal/util"
)

// Version is set at build time.
var Version = "dev"

// app holds the state shared by one command invocation.
type app struct {
	cfgFile string
	dataDir string
	user    string
	verbose bool

	cfg *config.Config
	log *zap.Logger

	// replaced in tests
	stdin        io.Reader
	lines        *bufio.Reader
	readPassword func(prompt string) (string, error)
	copyText     func(text string, ttl time.Duration) (<-chan struct{}, error)
	getenv       func(string) string
}

func newApp() *app {
	a := &app{
		stdin:    os.Stdin,
		copyText: clipboard.CopyWithTimeout,
		getenv:   os.Getenv,
	}
	a.readPassword = a.promptPassword
	return a
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(newApp())
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "sleepbook",
		Short: "An encrypted, local-only sleep journal",
		Long: `Sleepbook keeps a per-user sleep and habit journal in encrypted files
on the local machine.

Each night is one entry: date, bedtime, wake time, notes and a set of
tracked metrics. Entries are encrypted under the account password and
summarized in an encrypted index used for history and statistics.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is $HOME/.config/sleepbook/config.yaml)")
	root.PersistentFlags().StringVar(&a.dataDir, "data-dir", "", "data directory")
	root.PersistentFlags().StringVarP(&a.user, "user", "u", "", "journal user")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "verbose output")

	root.AddCommand(
		newRegisterCommand(a),
		newAddCommand(a),
		newEditCommand(a),
		newGetCommand(a),
		newHistoryCommand(a),
		newSearchCommand(a),
		newStatsCommand(a),
		newDeleteCommand(a),
		newMetricsCommand(a),
		newMigrateCommand(a),
		newDoctorCommand(a),
		newRotatePasswordCommand(a),
		newAuditCommand(a),
		newStatusCommand(a),
		newConfigCommand(a),
	)
	return root
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	cmd := NewRootCommand()
	if err := cmd.Execute(); err != nil {
		return util.Report(cmd.ErrOrStderr(), err)
	}
	return util.ExitOK
}

func (a *app) setup(cmd *cobra.Command) error {
	if a.cfgFile == "" {
		a.cfgFile = config.DefaultPath()
	}

	if err := config.LoadDotEnv(".env", filepath.Join(filepath.Dir(a.cfgFile), ".env")); err != nil {
		return err
	}

	cfg, err := config.LoadConfig(a.cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if a.dataDir != "" {
		cfg.DataDir = a.dataDir
	}
	if a.user == "" {
		a.user = cfg.DefaultUser
	}
	a.cfg = cfg

	level, err := cfg.Level()
	if err != nil {
		return err
	}
	if a.verbose {
		level = zapcore.DebugLevel
	}
	a.log = newLogger(cmd.ErrOrStderr(), level)
	return nil
}

func newLogger(w io.Writer, level zapcore.Level) *zap.Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(w), level)
	return zap.New(core)
}
