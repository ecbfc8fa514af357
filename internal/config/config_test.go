package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestInitAppliesDefaultsAndOverrides(t *testing.T) {
	path := writeConfig(t, `{
		"data_dir": "/tmp/datatracks",
		"addr": "0.0.0.0:9999",
		"engines": [
			{"engine_id": 1, "definition_id": 1, "kind": "SQLite", "config": {"path": "./var/trains.db"}}
		]
	}`)

	require.NoError(t, Init(path))
	require.Equal(t, "/tmp/datatracks", Keys.DataDir)
	require.Equal(t, "0.0.0.0:9999", Keys.Addr)
	require.Equal(t, 5000, Keys.DrainTimeoutMs) // default preserved
	require.Len(t, Keys.Engines, 1)
	require.Equal(t, "SQLite", string(Keys.Engines[0].Kind))
}

func TestInitRequiresDataDir(t *testing.T) {
	path := writeConfig(t, `{"addr": "0.0.0.0:8080"}`)
	err := Init(path)
	require.Error(t, err)
}

func TestInitRejectsUnknownEngineKind(t *testing.T) {
	path := writeConfig(t, `{
		"data_dir": "/tmp/x",
		"engines": [{"engine_id": 1, "definition_id": 1, "kind": "Redis", "config": {}}]
	}`)
	err := Init(path)
	require.Error(t, err)
}

func TestInitRejectsMissingFile(t *testing.T) {
	err := Init(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}
