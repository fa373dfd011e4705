package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chronos.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_FullConfig(t *testing.T) {
	path := writeConfig(t, `
rules_dir: /etc/chronos/rules
timezone: Europe/Berlin
calendars:
  - id: family
    type: caldav
    url: https://dav.example.net/cal/family/
    username: anna
    password_env: CHRONOS_DAV_PASSWORD
  - id: local
    type: sqlite
    path: /var/lib/chronos/local.db
    read_only: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/etc/chronos/rules", cfg.RulesDir)
	assert.Equal(t, "Europe/Berlin", cfg.Timezone)
	require.Len(t, cfg.Calendars, 2)
	assert.Equal(t, "caldav", cfg.Calendars[0].Type)
	assert.Equal(t, "CHRONOS_DAV_PASSWORD", cfg.Calendars[0].PasswordEnv)
	assert.True(t, cfg.Calendars[1].ReadOnly)
}

func TestLoad_DefaultsApplied(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)
	assert.Equal(t, "rules", cfg.RulesDir)
	assert.Equal(t, "UTC", cfg.Timezone)
	assert.NotNil(t, cfg.Calendars)
}

func TestLoad_Invalid(t *testing.T) {
	for name, body := range map[string]string{
		"bad timezone":        "timezone: Mars/Olympus\n",
		"missing calendar id": "calendars:\n  - type: memory\n",
		"unknown type":        "calendars:\n  - id: x\n    type: carrier-pigeon\n",
		"caldav without url":  "calendars:\n  - id: x\n    type: caldav\n",
		"sqlite without path": "calendars:\n  - id: x\n    type: sqlite\n",
		"duplicate ids":       "calendars:\n  - id: x\n    type: memory\n  - id: x\n    type: memory\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)

	_, err = Load("")
	assert.Error(t, err)
}
