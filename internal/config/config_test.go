package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/sleepbook/sleepbook/internal/vault"
)

func clearEnv(t *testing.T) {
	for _, key := range []string{EnvDataDir, EnvFormatVersion, EnvLogLevel, EnvPassword, EnvUser} {
		t.Setenv(key, "")
	}
}

func TestLoadConfigCreatesDefault(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "sleepbook", "config.yaml")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	again, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestLoadConfigFromFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `data_dir: /srv/sleep
file_extension: bin
format_version: 1
exclusive_lock: false
log_level: debug
clipboard_ttl: 45s
kdf:
  memory: 2048
  iterations: 2
  parallelism: 1
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/sleep", cfg.DataDir)
	assert.Equal(t, "bin", cfg.FileExtension)
	assert.Equal(t, vault.FormatXOR, cfg.FormatVersion)
	assert.False(t, cfg.ExclusiveLock)
	assert.Equal(t, 45*time.Second, cfg.ClipboardTTL)
	assert.Equal(t, vault.Argon2Params{Memory: 2048, Iterations: 2, Parallelism: 1}, cfg.KDF)

	lvl, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, lvl)

	assert.Equal(t, filepath.Join("/srv/sleep", "accounts.db"), cfg.AccountsPath())
	assert.Equal(t, filepath.Join("/srv/sleep", "users", "bob"), cfg.UserDir("bob"))
}

func TestEnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvDataDir, "/tmp/override")
	t.Setenv(EnvFormatVersion, "1")
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvUser, "carol")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/override", cfg.DataDir)
	assert.Equal(t, vault.FormatXOR, cfg.FormatVersion)
	assert.Equal(t, "error", cfg.LogLevel)
	assert.Equal(t, "carol", cfg.DefaultUser)
}

func TestInvalidConfig(t *testing.T) {
	clearEnv(t)

	t.Setenv(EnvFormatVersion, "x")
	_, err := LoadConfig("")
	assert.Error(t, err)

	t.Setenv(EnvFormatVersion, "7")
	_, err = LoadConfig("")
	assert.ErrorIs(t, err, vault.ErrUnsupportedVersion)

	t.Setenv(EnvFormatVersion, "")
	t.Setenv(EnvLogLevel, "chatty")
	_, err = LoadConfig("")
	assert.Error(t, err)

	cfg := DefaultConfig()
	cfg.FileExtension = "../dat"
	assert.Error(t, cfg.Validate())

	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("data_dir: [unclosed"), 0o600))
	t.Setenv(EnvLogLevel, "")
	_, err = LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	require.NoError(t, os.Unsetenv(EnvDataDir))
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte(EnvDataDir+"=/from/dotenv\n"), 0o600))

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env"), envFile))
	assert.Equal(t, "/from/dotenv", os.Getenv(EnvDataDir))

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "/from/dotenv", cfg.DataDir)

	assert.NoError(t, LoadDotEnv(filepath.Join(dir, "none")))
}
