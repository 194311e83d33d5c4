package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, 60, cfg.Retrieval.RRFConstant)
	assert.Equal(t, 100, cfg.Retrieval.ExactCacheSize)
	assert.Equal(t, 0.95, cfg.Retrieval.SemanticCacheThreshold)
	assert.Equal(t, float64(1500), cfg.Retrieval.SlowQueryMs)
	assert.Equal(t, float64(4000), cfg.Retrieval.DegradedQueryMs)
	assert.Equal(t, "default", cfg.Workspace.Name)
	assert.False(t, cfg.Rerank.Enabled)
	assert.False(t, cfg.Retrieval.Diversify)
	assert.False(t, cfg.Retrieval.Exploration)
}

func TestRetrievalWorkers_FloorOfTwo(t *testing.T) {
	cfg := NewConfig()

	// Unset means derived from CPU count with a floor of two
	assert.GreaterOrEqual(t, cfg.RetrievalWorkers(), 2)

	cfg.Retrieval.Workers = 7
	assert.Equal(t, 7, cfg.RetrievalWorkers())
}

func TestLoad_WorkspaceFileOverridesDefaults(t *testing.T) {
	// Given: a workspace config overriding some fields
	dir := t.TempDir()
	yaml := `
workspace:
  name: thesis
retrieval:
  rrf_constant: 90
  diversify: true
rerank:
  enabled: true
  top_n: 5
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".carrel.yaml"), []byte(yaml), 0o644))

	// When: loading
	cfg, err := Load(dir)
	require.NoError(t, err)

	// Then: overridden fields change, the rest keep defaults
	assert.Equal(t, "thesis", cfg.Workspace.Name)
	assert.Equal(t, 90, cfg.Retrieval.RRFConstant)
	assert.True(t, cfg.Retrieval.Diversify)
	assert.True(t, cfg.Rerank.Enabled)
	assert.Equal(t, 5, cfg.Rerank.TopN)
	assert.Equal(t, 100, cfg.Retrieval.ExactCacheSize)
	assert.Equal(t, "nomic-embed-text", cfg.Embeddings.Model)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	yaml := "workspace:\n  name: from-file\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".carrel.yaml"), []byte(yaml), 0o644))

	t.Setenv("CARREL_WORKSPACE", "from-env")
	t.Setenv("CARREL_RRF_CONSTANT", "30")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Workspace.Name)
	assert.Equal(t, 30, cfg.Retrieval.RRFConstant)
}

func TestLoad_InvalidYAMLFails(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".carrel.yaml"), []byte("retrieval: [not a map"), 0o644))

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestValidate_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero rrf constant", func(c *Config) { c.Retrieval.RRFConstant = 0 }},
		{"threshold above one", func(c *Config) { c.Retrieval.SemanticCacheThreshold = 1.5 }},
		{"inverted latency thresholds", func(c *Config) { c.Retrieval.SlowQueryMs = 5000 }},
		{"empty workspace name", func(c *Config) { c.Workspace.Name = "" }},
		{"unknown provider", func(c *Config) { c.Embeddings.Provider = "mystery" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSaveAndReload_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg := NewConfig()
	cfg.Workspace.Name = "papers"
	cfg.Retrieval.MaxResults = 25
	require.NoError(t, cfg.Save(path))

	loaded := NewConfig()
	require.NoError(t, loaded.loadYAML(path))
	assert.Equal(t, "papers", loaded.Workspace.Name)
	assert.Equal(t, 25, loaded.Retrieval.MaxResults)
}
