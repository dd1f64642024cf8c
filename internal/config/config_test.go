package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the user config lookup at an empty temp dir.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	return dir
}

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, 1, cfg.Version)
	assert.True(t, cfg.Queue.Enabled)
	assert.Equal(t, time.Second, cfg.QueueInterval())
	assert.Equal(t, 100, cfg.Search.DefaultLimit)
	assert.Equal(t, "updated_at", cfg.Search.OrderBy)
	assert.InDelta(t, 0.5, cfg.Search.SemanticThreshold, 1e-9)
	assert.Equal(t, "static", cfg.Embeddings.Provider)
	assert.Equal(t, 384, cfg.Embeddings.Dimensions)
	assert.Equal(t, "history.db", filepath.Base(cfg.DatabasePath()))
	require.NoError(t, cfg.Validate())
}

func TestLoad_NoFiles_ReturnsDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, NewConfig().Search, cfg.Search)
}

func TestLoad_ExplicitFileOverridesUserFile(t *testing.T) {
	// Given: a user config and an explicit config that disagree
	xdg := isolate(t)
	userPath := filepath.Join(xdg, "fttf", "config.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(userPath), 0o755))
	require.NoError(t, os.WriteFile(userPath, []byte("search:\n  default_limit: 50\n  order_by: rank\n"), 0o644))

	explicit := filepath.Join(t.TempDir(), "fttf.yaml")
	require.NoError(t, os.WriteFile(explicit, []byte("search:\n  default_limit: 25\nqueue:\n  enabled: false\n  interval: 250ms\n"), 0o644))

	// When: loading both
	cfg, err := Load(explicit)
	require.NoError(t, err)

	// Then: explicit wins, user values survive where explicit is silent
	assert.Equal(t, 25, cfg.Search.DefaultLimit)
	assert.Equal(t, "rank", cfg.Search.OrderBy)
	assert.False(t, cfg.Queue.Enabled)
	assert.Equal(t, 250*time.Millisecond, cfg.QueueInterval())
}

func TestLoad_EnvOverridesFiles(t *testing.T) {
	isolate(t)
	dataDir := t.TempDir()
	t.Setenv("FTTF_DATA_DIR", dataDir)
	t.Setenv("FTTF_EMBEDDINGS_PROVIDER", "ollama")
	t.Setenv("FTTF_SEMANTIC_THRESHOLD", "0.7")
	t.Setenv("FTTF_QUEUE_ENABLED", "0")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dataDir, "history.db"), cfg.DatabasePath())
	assert.Equal(t, "ollama", cfg.Embeddings.Provider)
	assert.InDelta(t, 0.7, cfg.Search.SemanticThreshold, 1e-9)
	assert.False(t, cfg.Queue.Enabled)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	isolate(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	isolate(t)
	p := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(p, []byte("search: [unclosed"), 0o644))

	_, err := Load(p)
	assert.Error(t, err)
}

func TestValidate_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad interval", func(c *Config) { c.Queue.Interval = "soon" }},
		{"bad order", func(c *Config) { c.Search.OrderBy = "title" }},
		{"bad provider", func(c *Config) { c.Embeddings.Provider = "mlx" }},
		{"bad dims", func(c *Config) { c.Embeddings.Dimensions = 0 }},
		{"bad threshold", func(c *Config) { c.Search.SemanticThreshold = 2 }},
		{"bad log level", func(c *Config) { c.Server.LogLevel = "loud" }},
		{"no storage", func(c *Config) { c.Storage.DataDir = ""; c.Storage.DBPath = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestWriteYAML_RoundTrip(t *testing.T) {
	isolate(t)
	cfg := NewConfig()
	cfg.Search.DefaultLimit = 42
	cfg.Index.HNSW = false

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, cfg.WriteYAML(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 42, loaded.Search.DefaultLimit)
	assert.False(t, loaded.Index.HNSW)
}
