package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gkampitakis/go-snaps/snaps"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	snaps.MatchStandaloneJSON(t, Default())
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pygls.toml")
	require.NoError(t, os.WriteFile(path, []byte(
		"max_workers = 4\nsync_kind = \"full\"\n",
	), 0o644))

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.MaxWorkers)
	assert.Equal(t, "full", cfg.SyncKind)
	// Untouched keys keep their defaults.
	assert.Equal(t, Default().HandlerWorkers, cfg.HandlerWorkers)
	assert.Equal(t, Default().HeaderLimit, cfg.HeaderLimit)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pygls.toml")
	require.NoError(t, os.WriteFile(path, []byte("log_level = \"debug\"\n"), 0o644))

	t.Setenv("PYGLS_LOG_LEVEL", "warn")
	t.Setenv("PYGLS_HANDLER_WORKERS", "8")

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 8, cfg.HandlerWorkers)
}

func TestLoadExplicitOverridesWinOverEnv(t *testing.T) {
	t.Setenv("PYGLS_LOG_LEVEL", "warn")

	cfg, err := Load("", map[string]any{"log_level": "error"})
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.LogLevel)
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "zero workers", env: map[string]string{"PYGLS_MAX_WORKERS": "0"}},
		{name: "unknown sync kind", env: map[string]string{"PYGLS_SYNC_KIND": "partial"}},
		{name: "negative header limit", env: map[string]string{"PYGLS_HEADER_LIMIT": "-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load("", nil)
			assert.Error(t, err)
		})
	}
}

func TestMain(m *testing.M) {
	v := m.Run()
	snaps.Clean(m)
	os.Exit(v)
}
