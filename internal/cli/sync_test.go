package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronos-cal/chronos/internal/engine"
)

func writeSyncConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chronos.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestSync_MemoryCalendarPass(t *testing.T) {
	cfg := writeSyncConfig(t, `
rules_dir: testdata/rules
calendars:
  - id: scratch
    type: memory
`)

	out, _, err := execute(t, "sync", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "calendar scratch")
}

func TestSync_JSONReports(t *testing.T) {
	cfg := writeSyncConfig(t, `
rules_dir: testdata/rules
calendars:
  - id: scratch
    type: memory
`)

	out, _, err := execute(t, "--format", "json", "sync", "--config", cfg)
	require.NoError(t, err)

	var resp Response
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)

	data, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var reports []*engine.Report
	require.NoError(t, json.Unmarshal(data, &reports))
	require.Len(t, reports, 1)
	assert.Equal(t, "scratch", reports[0].CalendarID)
	assert.NotEmpty(t, reports[0].PassToken)
}

func TestSync_ConfiguredTimezone(t *testing.T) {
	cfg := writeSyncConfig(t, `
rules_dir: testdata/rules
timezone: Europe/Berlin
calendars:
  - id: scratch
    type: memory
`)

	out, _, err := execute(t, "sync", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "calendar scratch")
}

func TestSync_SQLiteCalendarPass(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cal.db")
	cfg := writeSyncConfig(t, `
rules_dir: testdata/rules
calendars:
  - id: local
    type: sqlite
    path: `+dbPath+`
`)

	_, _, err := execute(t, "sync", "--config", cfg)
	require.NoError(t, err)
	assert.FileExists(t, dbPath)
}

func TestSync_MissingConfig(t *testing.T) {
	_, _, err := execute(t, "sync", "--config", filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestSync_BadRulesDir(t *testing.T) {
	cfg := writeSyncConfig(t, `
rules_dir: testdata/broken
calendars:
  - id: scratch
    type: memory
`)

	_, _, err := execute(t, "sync", "--config", cfg)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
