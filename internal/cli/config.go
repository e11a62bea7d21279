package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sleepbook/sleepbook/internal/config"
	"github.com/sleepbook/sleepbook/internal/util"
)

func newConfigCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Manage configuration settings.

Configuration is stored in ~/.config/sleepbook/config.yaml by default.
SLEEPBOOK_* environment variables and a .env file override it.

Example:
  sleepbook config path                      # Show config file path
  sleepbook config get clipboard_ttl         # Get clipboard timeout
  sleepbook config set clipboard_ttl 60s     # Set clipboard timeout
  sleepbook config get                       # Show all configuration`,
	}

	getCmd := &cobra.Command{
		Use:   "get [key]",
		Short: "Get configuration value(s)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return runConfigGetAll(cmd, a)
			}
			return runConfigGet(cmd, a.cfg, args[0])
		},
	}

	setCmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigSet(cmd, a, args[0], args[1])
		},
	}

	pathCmd := &cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeOutput(cmd.OutOrStdout(), "%s\n", a.cfgFile)
		},
	}

	cmd.AddCommand(getCmd, setCmd, pathCmd)
	return cmd
}

var configKeys = []string{
	"data_dir", "file_extension", "format_version", "exclusive_lock", "log_level",
	"clipboard_ttl", "default_user", "kdf.memory", "kdf.iterations", "kdf.parallelism",
}

func normalizeKey(key string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(key)), "-", "_")
}

func configValue(cfg *config.Config, key string) (string, error) {
	switch normalizeKey(key) {
	case "data_dir":
		return cfg.DataDir, nil
	case "file_extension":
		return cfg.FileExtension, nil
	case "format_version":
		return strconv.FormatUint(uint64(cfg.FormatVersion), 10), nil
	case "exclusive_lock":
		return strconv.FormatBool(cfg.ExclusiveLock), nil
	case "log_level":
		return cfg.LogLevel, nil
	case "clipboard_ttl":
		return cfg.ClipboardTTL.String(), nil
	case "default_user":
		return cfg.DefaultUser, nil
	case "kdf.memory":
		return strconv.FormatUint(uint64(cfg.KDF.Memory), 10), nil
	case "kdf.iterations":
		return strconv.FormatUint(uint64(cfg.KDF.Iterations), 10), nil
	case "kdf.parallelism":
		return strconv.FormatUint(uint64(cfg.KDF.Parallelism), 10), nil
	}
	return "", util.InvalidInput("unknown configuration key: %s", key)
}

func runConfigGetAll(cmd *cobra.Command, a *app) error {
	out := cmd.OutOrStdout()
	if err := writeOutput(out, "Configuration file: %s\n\n", a.cfgFile); err != nil {
		return err
	}
	for _, key := range configKeys {
		v, err := configValue(a.cfg, key)
		if err != nil {
			return err
		}
		if err := writeOutput(out, "%s: %s\n", key, v); err != nil {
			return err
		}
	}
	return nil
}

func runConfigGet(cmd *cobra.Command, cfg *config.Config, key string) error {
	v, err := configValue(cfg, key)
	if err != nil {
		return err
	}
	return writeOutput(cmd.OutOrStdout(), "%s\n", v)
}

func runConfigSet(cmd *cobra.Command, a *app, key, value string) error {
	// edit the file itself so environment overrides are not persisted
	cfg, err := config.ReadFile(a.cfgFile)
	if err != nil {
		return err
	}

	invalid := func(kind string, err error) error {
		return util.InvalidInput("invalid %s for %s: %v", kind, key, err)
	}

	switch normalizeKey(key) {
	case "data_dir":
		cfg.DataDir = value
	case "file_extension":
		cfg.FileExtension = strings.TrimPrefix(value, ".")
	case "format_version":
		n, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return invalid("integer", err)
		}
		cfg.FormatVersion = uint32(n)
	case "exclusive_lock":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return invalid("boolean", err)
		}
		cfg.ExclusiveLock = b
	case "log_level":
		cfg.LogLevel = value
	case "clipboard_ttl":
		d, err := time.ParseDuration(value)
		if err != nil {
			return invalid("duration", err)
		}
		cfg.ClipboardTTL = d
	case "default_user":
		cfg.DefaultUser = value
	case "kdf.memory":
		n, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return invalid("integer", err)
		}
		cfg.KDF.Memory = uint32(n)
	case "kdf.iterations":
		n, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return invalid("integer", err)
		}
		cfg.KDF.Iterations = uint32(n)
	case "kdf.parallelism":
		n, err := strconv.ParseUint(value, 10, 8)
		if err != nil {
			return invalid("integer", err)
		}
		cfg.KDF.Parallelism = uint8(n)
	default:
		return util.InvalidInput("unknown configuration key: %s", key)
	}

	if err := cfg.Validate(); err != nil {
		return util.InvalidInput("%v", err)
	}
	if err := config.SaveConfig(cfg, a.cfgFile); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}
	return writeOutput(cmd.OutOrStdout(), "✓ Configuration updated: %s = %s\n", key, value)
}
