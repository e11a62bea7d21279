// Package config handles the configuration of the sleep journal.
// It loads the YAML config file and applies .env and environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/sleepbook/sleepbook/internal/store"
	"github.com/sleepbook/sleepbook/internal/vault"
)

// Environment variables that override the config file
const (
	EnvDataDir       = "SLEEPBOOK_DATA_DIR"
	EnvFormatVersion = "SLEEPBOOK_FORMAT_VERSION"
	EnvLogLevel      = "SLEEPBOOK_LOG_LEVEL"
	EnvPassword      = "SLEEPBOOK_PASSWORD"
	EnvUser          = "SLEEPBOOK_USER"
)

// Config represents the journal configuration
type Config struct {
	DataDir       string             `yaml:"data_dir"`
	FileExtension string             `yaml:"file_extension"`
	FormatVersion uint32             `yaml:"format_version"`
	ExclusiveLock bool               `yaml:"exclusive_lock"`
	LogLevel      string             `yaml:"log_level"`
	ClipboardTTL  time.Duration      `yaml:"clipboard_ttl"`
	DefaultUser   string             `yaml:"default_user,omitempty"`
	KDF           vault.Argon2Params `yaml:"kdf"`
}

// DefaultPath is $HOME/.config/sleepbook/config.yaml.
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "sleepbook", "config.yaml")
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		DataDir:       filepath.Join(home, ".local", "share", "sleepbook"),
		FileExtension: store.DefaultExt,
		FormatVersion: vault.CurrentFormat,
		ExclusiveLock: true,
		LogLevel:      "warn",
		ClipboardTTL:  30 * time.Second,
		KDF:           vault.DefaultArgon2Params(),
	}
}

// LoadConfig reads configPath, creating it with defaults when missing, and
// applies environment overrides. An empty path skips the file.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		if err := loadFile(cfg, configPath); err != nil {
			return cfg, err
		}
	}

	if err := cfg.applyEnv(os.Getenv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// ReadFile reads configPath over the defaults without environment
// overrides, for editing the file.
func ReadFile(configPath string) (*Config, error) {
	cfg := DefaultConfig()
	if err := loadFile(cfg, configPath); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(cfg *Config, configPath string) error {
	cleanPath := filepath.Clean(configPath)

	data, err := os.ReadFile(cleanPath)
	if os.IsNotExist(err) {
		if err := SaveConfig(cfg, cleanPath); err != nil {
			return fmt.Errorf("failed to create default config: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// LoadDotEnv loads variables from the .env files that exist. Variables
// already set in the environment win.
func LoadDotEnv(paths ...string) error {
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := strings.TrimSpace(getenv(EnvDataDir)); v != "" {
		c.DataDir = v
	}
	if v := strings.TrimSpace(getenv(EnvFormatVersion)); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvFormatVersion, v, err)
		}
		c.FormatVersion = uint32(n)
	}
	if v := strings.TrimSpace(getenv(EnvLogLevel)); v != "" {
		c.LogLevel = v
	}
	if v := strings.TrimSpace(getenv(EnvUser)); v != "" {
		c.DefaultUser = v
	}
	return nil
}

// Validate checks the configuration values.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("data_dir must be set")
	}
	if _, err := vault.CipherFor(c.FormatVersion); err != nil {
		return fmt.Errorf("format_version: %w", err)
	}
	if strings.ContainsAny(c.FileExtension, `/\`) {
		return fmt.Errorf("file_extension %q must not contain a path separator", c.FileExtension)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if c.ClipboardTTL < 0 {
		return fmt.Errorf("clipboard_ttl must not be negative")
	}
	return vault.ValidateArgon2Params(c.KDF)
}

// Level parses LogLevel.
func (c *Config) Level() (zapcore.Level, error) {
	lvl, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return zapcore.WarnLevel, fmt.Errorf("log_level: %w", err)
	}
	return lvl, nil
}

// AccountsPath is the account registry file under DataDir.
func (c *Config) AccountsPath() string {
	return filepath.Join(c.DataDir, store.AccountsFile)
}

// UserDir is the data directory of one user.
func (c *Config) UserDir(username string) string {
	return filepath.Join(c.DataDir, "users", username)
}

// SaveConfig saves configuration to file
func SaveConfig(cfg *Config, configPath string) error {
	cleanPath := filepath.Clean(configPath)

	if err := os.MkdirAll(filepath.Dir(cleanPath), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(cleanPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
