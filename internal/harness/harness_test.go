package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarios(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "scenarios", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		s, err := LoadScenario(path)
		require.NoError(t, err, path)
		t.Run(s.Name, func(t *testing.T) {
			Run(t, s)
		})
	}
}

func TestLoadScenario_Validation(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
		return path
	}

	_, err := LoadScenario(write("noname.yaml", "today: 2025-03-01\nrules: r\n"))
	assert.ErrorContains(t, err, "name")

	_, err = LoadScenario(write("notoday.yaml", "name: x\nrules: r\n"))
	assert.ErrorContains(t, err, "today")

	_, err = LoadScenario(write("norules.yaml", "name: x\ntoday: 2025-03-01\n"))
	assert.ErrorContains(t, err, "rules")

	_, err = LoadScenario(filepath.Join(dir, "absent.yaml"))
	assert.Error(t, err)

	s, err := LoadScenario(write("ok.yaml", "name: x\ntoday: 2025-03-01\nrules: rules\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, s.Passes)
	assert.Equal(t, filepath.Join(dir, "rules"), s.Rules)
}
