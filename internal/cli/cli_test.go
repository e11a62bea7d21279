package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sleepbook/sleepbook/internal/domain"
	"github.com/sleepbook/sleepbook/internal/store"
	"github.com/sleepbook/sleepbook/internal/util"
	"github.com/sleepbook/sleepbook/internal/vault"
)

const testPassword = "night-owl-42"

// TestHelper runs commands against a private data directory.
type TestHelper struct {
	TempDir    string
	ConfigPath string
	DataDir    string
	User       string
	Env        map[string]string
	Stdin      string
	Copied     []string
}

func NewTestHelper(t *testing.T) *TestHelper {
	t.Helper()
	tempDir := t.TempDir()
	h := &TestHelper{
		TempDir:    tempDir,
		ConfigPath: filepath.Join(tempDir, "config.yaml"),
		DataDir:    filepath.Join(tempDir, "data"),
		User:       "alice",
		Env:        map[string]string{envPassword: testPassword},
	}

	content := "data_dir: " + h.DataDir + `
file_extension: dat
format_version: 2
exclusive_lock: true
log_level: error
clipboard_ttl: 30s
kdf:
  memory: 1024
  iterations: 1
  parallelism: 1
`
	require.NoError(t, os.WriteFile(h.ConfigPath, []byte(content), 0o600))
	return h
}

// ExecuteCommand executes a CLI command and returns output
func (h *TestHelper) ExecuteCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer

	a := newApp()
	a.getenv = func(key string) string { return h.Env[key] }
	a.stdin = strings.NewReader(h.Stdin)
	a.readPassword = func(string) (string, error) { return a.readLine() }
	a.copyText = func(text string, ttl time.Duration) (<-chan struct{}, error) {
		h.Copied = append(h.Copied, text)
		done := make(chan struct{})
		close(done)
		return done, nil
	}

	cmd := newRootCommand(a)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", h.ConfigPath, "--user", h.User}, args...))

	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func (h *TestHelper) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, stderr, err := h.ExecuteCommand(t, args...)
	require.NoError(t, err, "stderr: %s", stderr)
	return out
}

func (h *TestHelper) register(t *testing.T) {
	t.Helper()
	out := h.mustRun(t, "register")
	require.Contains(t, out, "Account 'alice' registered")
}

// addEntry records a night and returns its id.
func (h *TestHelper) addEntry(t *testing.T, args ...string) string {
	t.Helper()
	out := h.mustRun(t, append([]string{"add"}, args...)...)
	fields := strings.Fields(out)
	require.GreaterOrEqual(t, len(fields), 3, out)
	id := fields[2]
	require.NoError(t, store.ValidateID(id))
	return id
}

func TestRegisterCommand(t *testing.T) {
	h := NewTestHelper(t)
	h.register(t)

	assert.DirExists(t, filepath.Join(h.DataDir, "users", "alice"))
	assert.FileExists(t, filepath.Join(h.DataDir, store.AccountsFile))

	_, _, err := h.ExecuteCommand(t, "register")
	assert.ErrorIs(t, err, store.ErrAccountExists)
	assert.Equal(t, util.ExitInvalidInput, util.ExitCode(err))

	h.User = "x"
	_, _, err = h.ExecuteCommand(t, "register")
	assert.Equal(t, util.ExitInvalidInput, util.ExitCode(err))
}

func TestRegisterPrompted(t *testing.T) {
	h := NewTestHelper(t)
	delete(h.Env, envPassword)

	h.Stdin = "first-pass\nsecond-pass\n"
	_, _, err := h.ExecuteCommand(t, "register")
	assert.Equal(t, util.ExitInvalidInput, util.ExitCode(err))

	h.Stdin = "abcd\nabcd\n"
	_, stderr, err := h.ExecuteCommand(t, "register")
	require.NoError(t, err)
	assert.Contains(t, stderr, "weak")
}

func TestRegisterGenerate(t *testing.T) {
	h := NewTestHelper(t)
	delete(h.Env, envPassword)

	out := h.mustRun(t, "register", "--generate", "--words", "4")
	_, phrase, found := strings.Cut(out, "Passphrase (shown once): ")
	require.True(t, found, out)
	phrase = strings.TrimSpace(phrase)
	assert.Len(t, strings.Fields(phrase), 4)

	h.Env[envPassword] = phrase
	assert.Contains(t, h.mustRun(t, "history"), "No entries found")
}

func TestJournalWorkflow(t *testing.T) {
	h := NewTestHelper(t)
	h.register(t)

	first := h.addEntry(t, "--date", "2024-01-15", "--bedtime", "23:00", "--wake", "07:00",
		"-m", "Insomnia", "-m", "Coffee=2", "--notes", "late coffee")
	second := h.addEntry(t, "--date", "2024-01-16", "--bedtime", "22:30", "--wake", "06:00")

	out := h.mustRun(t, "history")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "2024-01-15")
	assert.Contains(t, lines[0], "8.0h")
	assert.Contains(t, lines[0], "Coffee, Insomnia")
	assert.Contains(t, lines[1], second)

	out = h.mustRun(t, "history", "--from", "2024-01-16", "--json")
	var records []domain.SummaryRecord
	require.NoError(t, json.Unmarshal([]byte(out), &records))
	require.Len(t, records, 1)
	assert.Equal(t, second, records[0].ID)
	assert.Equal(t, 7.5, records[0].SleepHours)

	out = h.mustRun(t, "get", "2024-01-15")
	assert.Contains(t, out, first)
	assert.Contains(t, out, "Bedtime:  23:00")
	assert.Contains(t, out, "Coffee: 2")
	assert.Contains(t, out, "late coffee")

	out = h.mustRun(t, "get", first, "--json")
	var entries []domain.Entry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "late coffee", entries[0].Notes)

	out = h.mustRun(t, "search", "coffee")
	assert.Contains(t, out, first)
	assert.NotContains(t, out, second)
	assert.Contains(t, h.mustRun(t, "search", "nothing-like-this"), "No matching entries")

	out = h.mustRun(t, "stats")
	assert.Contains(t, out, "Nights:   2 (2024-01-15 to 2024-01-16)")
	assert.Contains(t, out, "mean 7.8h, min 7.5h, max 8.0h")
	assert.Contains(t, out, "Insomnia")

	h.mustRun(t, "edit", strings.ToUpper(first), "--wake", "08:30", "--notes", "slept in")
	out = h.mustRun(t, "get", first)
	assert.Contains(t, out, "Slept:    9.5h")
	assert.Contains(t, out, "slept in")

	h.mustRun(t, "delete", second, "--force")
	out = h.mustRun(t, "history")
	assert.NotContains(t, out, second)

	// deleting again succeeds
	h.mustRun(t, "delete", second, "--force")

	out = h.mustRun(t, "status")
	assert.Contains(t, out, "Entries:         1")
	assert.Contains(t, out, "Format version:  2")
}

func TestDeleteConfirmation(t *testing.T) {
	h := NewTestHelper(t)
	h.register(t)
	id := h.addEntry(t, "--bedtime", "23:00", "--wake", "07:00")

	h.Stdin = "n\n"
	out := h.mustRun(t, "delete", id)
	assert.Contains(t, out, "Deletion cancelled")

	h.Stdin = "yes\n"
	out = h.mustRun(t, "delete", id)
	assert.Contains(t, out, "deleted")
	assert.Contains(t, h.mustRun(t, "history"), "No entries found")
}

func TestInputErrors(t *testing.T) {
	h := NewTestHelper(t)
	h.register(t)

	tests := []struct {
		name string
		args []string
	}{
		{"missing clock", []string{"add", "--bedtime", "23:00"}},
		{"bad date", []string{"add", "--date", "15/01/2024", "--bedtime", "23:00", "--wake", "07:00"}},
		{"bad clock", []string{"add", "--bedtime", "25:00", "--wake", "07:00"}},
		{"bad metric", []string{"add", "--bedtime", "23:00", "--wake", "07:00", "-m", "Coffee=lots"}},
		{"bad lookup", []string{"get", "yesterday"}},
		{"unknown id", []string{"get", "6f1c1f0e-3b7e-4c55-9d43-2a8a4f1e9b10"}},
		{"empty date", []string{"get", "2023-12-31"}},
		{"bad range", []string{"history", "--from", "2024-02-01", "--to", "2024-01-01"}},
		{"bad delete id", []string{"delete", "../escape", "--force"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := h.ExecuteCommand(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, util.ExitInvalidInput, util.ExitCode(err), err.Error())
		})
	}
}

func TestLoginErrors(t *testing.T) {
	h := NewTestHelper(t)
	h.register(t)

	h.Env[envPassword] = "wrong-password"
	_, _, err := h.ExecuteCommand(t, "history")
	assert.ErrorIs(t, err, vault.ErrPasswordMismatch)
	assert.Equal(t, util.ExitAuthFailed, util.ExitCode(err))

	h.User = "nobody"
	_, _, err = h.ExecuteCommand(t, "history")
	assert.Equal(t, util.ExitAuthFailed, util.ExitCode(err))

	h.User = ""
	_, _, err = h.ExecuteCommand(t, "history")
	assert.Equal(t, util.ExitInvalidInput, util.ExitCode(err))
}

func TestGetCopy(t *testing.T) {
	h := NewTestHelper(t)
	h.register(t)
	id := h.addEntry(t, "--date", "2024-03-01", "--bedtime", "22:00", "--wake", "06:00")

	out := h.mustRun(t, "get", id, "--copy", "--ttl", "5s")
	assert.Contains(t, out, "Copied to clipboard (clears in 5s)")
	require.Len(t, h.Copied, 1)
	assert.Contains(t, h.Copied[0], id)
	assert.NotContains(t, out, id)

	out = h.mustRun(t, "get", "2024-03-01", "-c")
	assert.Contains(t, out, "clears in 30s")
}

func TestMetricsCommands(t *testing.T) {
	h := NewTestHelper(t)
	h.register(t)

	out := h.mustRun(t, "metrics", "list")
	assert.Contains(t, out, "Insomnia (Binary)")

	h.mustRun(t, "metrics", "add", "Coffee", "--kind", "quantity", "--unit", "cups")
	assert.Contains(t, h.mustRun(t, "metrics", "list"), "Coffee (Quantity, cups)")

	_, _, err := h.ExecuteCommand(t, "metrics", "add", "coffee")
	assert.Equal(t, util.ExitInvalidInput, util.ExitCode(err))
	_, _, err = h.ExecuteCommand(t, "metrics", "add", "Water", "--kind", "quantity")
	assert.Equal(t, util.ExitInvalidInput, util.ExitCode(err))
	_, _, err = h.ExecuteCommand(t, "metrics", "add", "Water", "--kind", "litres")
	assert.Equal(t, util.ExitInvalidInput, util.ExitCode(err))

	h.mustRun(t, "metrics", "remove", "Snoring")
	assert.NotContains(t, h.mustRun(t, "metrics", "list"), "Snoring")
	_, _, err = h.ExecuteCommand(t, "metrics", "rm", "Snoring")
	assert.Equal(t, util.ExitInvalidInput, util.ExitCode(err))
}

func TestRotatePasswordCommand(t *testing.T) {
	h := NewTestHelper(t)
	h.register(t)
	id := h.addEntry(t, "--bedtime", "23:00", "--wake", "07:00", "--notes", "before rotation")

	h.Env[envNewPassword] = "ab"
	_, _, err := h.ExecuteCommand(t, "rotate-password")
	assert.ErrorIs(t, err, domain.ErrPasswordTooShort)

	h.Env[envNewPassword] = "morning-lark-7"
	out := h.mustRun(t, "rotate-password")
	assert.Contains(t, out, "Password changed")

	_, _, err = h.ExecuteCommand(t, "get", id)
	assert.Equal(t, util.ExitAuthFailed, util.ExitCode(err))

	h.Env[envPassword] = "morning-lark-7"
	assert.Contains(t, h.mustRun(t, "get", id), "before rotation")
}

func TestAuditCommand(t *testing.T) {
	h := NewTestHelper(t)
	h.register(t)
	id := h.addEntry(t, "--bedtime", "23:00", "--wake", "07:00")
	h.mustRun(t, "delete", id, "--force")

	out := h.mustRun(t, "audit", "--verify")
	assert.Contains(t, out, "Audit log is intact")
	assert.Contains(t, out, domain.OpRegister)
	assert.Contains(t, out, domain.OpCommit)
	assert.Contains(t, out, domain.OpDelete)

	out = h.mustRun(t, "audit", "--json", "--limit", "1")
	var ops []domain.Operation
	require.NoError(t, json.Unmarshal([]byte(out), &ops))
	require.Len(t, ops, 1)
	assert.Equal(t, domain.OpDelete, ops[0].Type)
	assert.Equal(t, id, ops[0].EntryID)
}

// seedLegacy writes a date-keyed entry under the user's password, as the
// format before identifiers stored it.
func seedLegacy(t *testing.T, h *TestHelper, date string) {
	t.Helper()
	layout := store.NewLayout(filepath.Join(h.DataDir, "users", h.User), "dat")
	sealer, err := vault.NewSealer(vault.DeriveKey(testPassword), vault.FormatXOR)
	require.NoError(t, err)
	d, err := domain.ParseDate(date)
	require.NoError(t, err)

	entries := store.NewFileEntryStore(layout, sealer, nil)
	require.NoError(t, entries.SaveLegacy(&domain.Entry{
		CreatedAt: time.UnixMilli(1705359600000).UTC(),
		Date:      d,
		Bedtime:   domain.TimeOfDay{Hour: 23},
		WakeTime:  domain.TimeOfDay{Hour: 7},
		Notes:     "from the old app",
	}))
}

func TestMigrateCommand(t *testing.T) {
	h := NewTestHelper(t)
	h.register(t)
	seedLegacy(t, h, "2024-01-15")
	seedLegacy(t, h, "2024-01-16")

	out := h.mustRun(t, "status")
	assert.Contains(t, out, "still keyed by date")

	out = h.mustRun(t, "migrate", "--upgrade")
	assert.Contains(t, out, "Migrated 2 entries (2 summaries created")
	assert.Contains(t, out, "rewritten in format version 2")

	out = h.mustRun(t, "migrate")
	assert.Contains(t, out, "Nothing to migrate")

	out = h.mustRun(t, "status", "--json")
	var st struct {
		Entries        int            `json:"entries"`
		LegacyEntries  int            `json:"legacy_entries"`
		FilesByVersion map[string]int `json:"files_by_version"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.Equal(t, 2, st.Entries)
	assert.Zero(t, st.LegacyEntries)
	assert.Zero(t, st.FilesByVersion["1"])
}

func TestGetMigratesLegacyEntry(t *testing.T) {
	h := NewTestHelper(t)
	h.register(t)
	seedLegacy(t, h, "2024-01-15")

	out := h.mustRun(t, "get", "2024-01-15")
	assert.Contains(t, out, "from the old app")
	assert.NotContains(t, h.mustRun(t, "history"), "not migrated")
}

func TestDoctorCommand(t *testing.T) {
	h := NewTestHelper(t)
	h.register(t)
	h.addEntry(t, "--bedtime", "23:00", "--wake", "07:00")
	seedLegacy(t, h, "2024-01-15")

	out := h.mustRun(t, "doctor")
	assert.Contains(t, out, "Journal Health Check")
	assert.Contains(t, out, "Registry structure is valid")
	assert.Contains(t, out, "still keyed by date")
	assert.Contains(t, out, "Some files use an older format")

	out = h.mustRun(t, "doctor", "--fix")
	assert.Contains(t, out, "Migrated 1 entries")

	out = h.mustRun(t, "doctor")
	assert.Contains(t, out, "All 2 entries use identifiers")
	assert.NotContains(t, out, "❌")
}

func TestDoctorUnreadableIndex(t *testing.T) {
	h := NewTestHelper(t)
	h.register(t)
	h.addEntry(t, "--bedtime", "23:00", "--wake", "07:00")

	index := filepath.Join(h.DataDir, "users", h.User, "symptom_history.dat")
	require.NoError(t, os.WriteFile(index, []byte("garbage"), 0o600))

	out, _, err := h.ExecuteCommand(t, "doctor", "--fix")
	assert.ErrorIs(t, err, store.ErrIndexUnreadable)
	assert.Equal(t, util.ExitIntegrityErr, util.ExitCode(err))
	assert.Contains(t, out, "cannot be read")

	_, _, err = h.ExecuteCommand(t, "add", "--bedtime", "23:00", "--wake", "07:00")
	assert.Equal(t, util.ExitIntegrityErr, util.ExitCode(err))
}

func TestConfigCommand(t *testing.T) {
	h := NewTestHelper(t)

	out := h.mustRun(t, "config", "path")
	assert.Equal(t, h.ConfigPath+"\n", out)

	out = h.mustRun(t, "config", "get")
	assert.Contains(t, out, "data_dir: "+h.DataDir)
	assert.Contains(t, out, "kdf.memory: 1024")

	h.mustRun(t, "config", "set", "clipboard-ttl", "10s")
	assert.Equal(t, "10s\n", h.mustRun(t, "config", "get", "clipboard_ttl"))

	_, _, err := h.ExecuteCommand(t, "config", "set", "format_version", "9")
	assert.Equal(t, util.ExitInvalidInput, util.ExitCode(err))
	_, _, err = h.ExecuteCommand(t, "config", "get", "vault_path")
	assert.Equal(t, util.ExitInvalidInput, util.ExitCode(err))
}
