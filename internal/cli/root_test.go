package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KreativLabs-id/diskusibisnis/backend/internal/audit"
	"github.com/KreativLabs-id/diskusibisnis/backend/internal/database"
	"github.com/KreativLabs-id/diskusibisnis/backend/internal/models"
	"github.com/KreativLabs-id/diskusibisnis/backend/internal/notifications"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "forumd", cmd.Use)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"serve", "migrate", "sweep", "audit"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err, "Command %s should exist", name)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)
	assert.Equal(t, "", configFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
}

func TestInvalidFormat(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"migrate", "--format", "xml"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

// useSQLite points the configuration at a fresh SQLite file.
func useSQLite(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cli.db")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_PATH", path)
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	err := cmd.Execute()
	return out.String(), err
}

func TestMigrateSweepAudit(t *testing.T) {
	path := useSQLite(t)

	_, err := run(t, "migrate")
	require.NoError(t, err)

	out, err := run(t, "sweep", "--format", "json")
	require.NoError(t, err)
	var sweep notifications.Report
	require.NoError(t, json.Unmarshal([]byte(out), &sweep))
	assert.Zero(t, sweep.Total())

	out, err = run(t, "audit", "--format", "json")
	require.NoError(t, err)
	var report audit.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.True(t, report.Clean())

	// A score written around the ledger.
	d, err := database.OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, d.DB.Create(&models.User{Username: "mallory", Email: "m@example.com", ReputationPoints: 50}).Error)
	require.NoError(t, d.Close())

	out, err = run(t, "audit")
	require.ErrorIs(t, err, ErrAuditFailed)
	assert.Contains(t, out, "findings: 1")
	assert.Contains(t, out, audit.ReasonUntracked)
}

func TestWriteSweepText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeSweep(&buf, "text", notifications.Report{Superseded: 2, Orphaned: 1}))
	assert.Equal(t, "superseded: 2\norphaned: 1\nstale accepted: 0\ntotal: 3\n", buf.String())
}

func TestWriteAuditText(t *testing.T) {
	var buf bytes.Buffer
	err := writeAudit(&buf, "text", audit.Report{
		Users:   1,
		Entries: 2,
		Findings: []audit.Finding{
			{UserID: 4, EntryID: 9, Stored: 3, Expected: 5, Reason: audit.ReasonBrokenChain},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "users: 1\nentries: 2\nfindings: 1\n  user 4: broken_chain (stored 3, expected 5, entry 9)\n", buf.String())
}
