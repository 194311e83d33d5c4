// Package config loads and merges Carrel configuration.
//
// Configuration is applied in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User config (~/.config/carrel/config.yaml)
//  3. Workspace config (.carrel.yaml in the workspace directory)
//  4. Environment variables (CARREL_*)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config represents the complete Carrel configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Workspace  WorkspaceConfig  `yaml:"workspace" json:"workspace"`
	Retrieval  RetrievalConfig  `yaml:"retrieval" json:"retrieval"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Rerank     RerankConfig     `yaml:"rerank" json:"rerank"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
}

// WorkspaceConfig configures workspace storage.
type WorkspaceConfig struct {
	// DataDir is the directory holding the per-workspace SQLite files.
	// Defaults to ~/.carrel/workspaces.
	DataDir string `yaml:"data_dir" json:"data_dir"`

	// Name is the active workspace. Each workspace maps to one SQLite file.
	Name string `yaml:"name" json:"name"`
}

// RetrievalConfig configures the hybrid retrieval pipeline.
type RetrievalConfig struct {
	// RRFConstant is the RRF fusion smoothing parameter (k).
	// Default: 60. Higher values reduce the impact of rank differences.
	RRFConstant int `yaml:"rrf_constant" json:"rrf_constant"`

	// MaxResults is the default result count returned to the caller.
	MaxResults int `yaml:"max_results" json:"max_results"`

	// ExactCacheSize is the capacity of the exact-match result cache.
	// Default: 100.
	ExactCacheSize int `yaml:"exact_cache_size" json:"exact_cache_size"`

	// SemanticCacheSize caps the semantic result cache. Default: 512.
	SemanticCacheSize int `yaml:"semantic_cache_size" json:"semantic_cache_size"`

	// SemanticCacheThreshold is the cosine similarity above which a cached
	// query embedding is treated as equivalent. Default: 0.95.
	SemanticCacheThreshold float64 `yaml:"semantic_cache_threshold" json:"semantic_cache_threshold"`

	// SlowQueryMs shrinks retrieval depth when the latency EMA exceeds it.
	// Default: 1500.
	SlowQueryMs float64 `yaml:"slow_query_ms" json:"slow_query_ms"`

	// DegradedQueryMs switches to lexical-only retrieval when the latency
	// EMA exceeds it. Default: 4000.
	DegradedQueryMs float64 `yaml:"degraded_query_ms" json:"degraded_query_ms"`

	// Diversify enables the MMR diversity pass (experimental).
	Diversify bool `yaml:"diversify" json:"diversify"`

	// Exploration enables exploration candidate injection (experimental).
	Exploration bool `yaml:"exploration" json:"exploration"`

	// Workers sizes the retrieval worker pool. Zero means half the CPU
	// count with a floor of two.
	Workers int `yaml:"workers" json:"workers"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider selects the embedding backend: "ollama" or "lmstudio".
	// Empty triggers auto-detection via model discovery.
	Provider string `yaml:"provider" json:"provider"`

	// Model is the embedding model name.
	Model string `yaml:"model" json:"model"`

	// OllamaHost is the Ollama API endpoint (default: http://localhost:11434).
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`

	// LMStudioHost is the LM Studio API endpoint (default: http://localhost:1234).
	LMStudioHost string `yaml:"lmstudio_host" json:"lmstudio_host"`

	// CacheSize is the embedding LRU cache capacity. Default: 1000.
	CacheSize int `yaml:"cache_size" json:"cache_size"`

	// TimeoutSeconds is the per-request timeout. Default: 30.
	TimeoutSeconds int `yaml:"timeout_seconds" json:"timeout_seconds"`
}

// RerankConfig configures the cross-encoder reranker and its calibration.
type RerankConfig struct {
	// Enabled turns reranking on. Default: false (reranker is optional).
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Endpoint is the local reranker server URL.
	Endpoint string `yaml:"endpoint" json:"endpoint"`

	// Model is the cross-encoder model name.
	Model string `yaml:"model" json:"model"`

	// TopN is how many fused results are sent to the reranker. Default: 10.
	TopN int `yaml:"top_n" json:"top_n"`

	// TimeoutSeconds is the batch request timeout. Default: 20.
	TimeoutSeconds int `yaml:"timeout_seconds" json:"timeout_seconds"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	FilePath string `yaml:"file_path" json:"file_path"`
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Workspace: WorkspaceConfig{
			DataDir: defaultDataDir(),
			Name:    "default",
		},
		Retrieval: RetrievalConfig{
			// k=60 is the industry standard RRF constant
			RRFConstant:            60,
			MaxResults:             10,
			ExactCacheSize:         100,
			SemanticCacheSize:      512,
			SemanticCacheThreshold: 0.95,
			SlowQueryMs:            1500,
			DegradedQueryMs:        4000,
			Diversify:              false,
			Exploration:            false,
			Workers:                0,
		},
		Embeddings: EmbeddingsConfig{
			Provider:       "",
			Model:          "nomic-embed-text",
			OllamaHost:     "http://localhost:11434",
			LMStudioHost:   "http://localhost:1234",
			CacheSize:      1000,
			TimeoutSeconds: 30,
		},
		Rerank: RerankConfig{
			Enabled:        false,
			Endpoint:       "http://localhost:8765",
			Model:          "bge-reranker-base",
			TopN:           10,
			TimeoutSeconds: 20,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// RetrievalWorkers resolves the worker pool size: half the CPU count with
// a floor of two, unless overridden.
func (c *Config) RetrievalWorkers() int {
	if c.Retrieval.Workers > 0 {
		return c.Retrieval.Workers
	}
	n := runtime.NumCPU() / 2
	if n < 2 {
		n = 2
	}
	return n
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".carrel", "workspaces")
	}
	return filepath.Join(home, ".carrel", "workspaces")
}

// GetUserConfigPath returns the path to the user configuration file.
// It follows the XDG Base Directory specification.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "carrel", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "carrel", "config.yaml")
	}
	return filepath.Join(home, ".config", "carrel", "config.yaml")
}

// Load loads configuration for the given workspace directory.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userPath := GetUserConfigPath(); fileExists(userPath) {
		if err := cfg.loadYAML(userPath); err != nil {
			return nil, fmt.Errorf("failed to load user config: %w", err)
		}
	}

	for _, name := range []string{".carrel.yaml", ".carrel.yml"} {
		path := filepath.Join(dir, name)
		if fileExists(path) {
			if err := cfg.loadYAML(path); err != nil {
				return nil, err
			}
			break
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if other.Workspace.DataDir != "" {
		c.Workspace.DataDir = other.Workspace.DataDir
	}
	if other.Workspace.Name != "" {
		c.Workspace.Name = other.Workspace.Name
	}

	if other.Retrieval.RRFConstant != 0 {
		c.Retrieval.RRFConstant = other.Retrieval.RRFConstant
	}
	if other.Retrieval.MaxResults != 0 {
		c.Retrieval.MaxResults = other.Retrieval.MaxResults
	}
	if other.Retrieval.ExactCacheSize != 0 {
		c.Retrieval.ExactCacheSize = other.Retrieval.ExactCacheSize
	}
	if other.Retrieval.SemanticCacheSize != 0 {
		c.Retrieval.SemanticCacheSize = other.Retrieval.SemanticCacheSize
	}
	if other.Retrieval.SemanticCacheThreshold != 0 {
		c.Retrieval.SemanticCacheThreshold = other.Retrieval.SemanticCacheThreshold
	}
	if other.Retrieval.SlowQueryMs != 0 {
		c.Retrieval.SlowQueryMs = other.Retrieval.SlowQueryMs
	}
	if other.Retrieval.DegradedQueryMs != 0 {
		c.Retrieval.DegradedQueryMs = other.Retrieval.DegradedQueryMs
	}
	if other.Retrieval.Diversify {
		c.Retrieval.Diversify = true
	}
	if other.Retrieval.Exploration {
		c.Retrieval.Exploration = true
	}
	if other.Retrieval.Workers != 0 {
		c.Retrieval.Workers = other.Retrieval.Workers
	}

	if other.Embeddings.Provider != "" {
		c.Embeddings.Provider = other.Embeddings.Provider
	}
	if other.Embeddings.Model != "" {
		c.Embeddings.Model = other.Embeddings.Model
	}
	if other.Embeddings.OllamaHost != "" {
		c.Embeddings.OllamaHost = other.Embeddings.OllamaHost
	}
	if other.Embeddings.LMStudioHost != "" {
		c.Embeddings.LMStudioHost = other.Embeddings.LMStudioHost
	}
	if other.Embeddings.CacheSize != 0 {
		c.Embeddings.CacheSize = other.Embeddings.CacheSize
	}
	if other.Embeddings.TimeoutSeconds != 0 {
		c.Embeddings.TimeoutSeconds = other.Embeddings.TimeoutSeconds
	}

	if other.Rerank.Enabled {
		c.Rerank.Enabled = true
	}
	if other.Rerank.Endpoint != "" {
		c.Rerank.Endpoint = other.Rerank.Endpoint
	}
	if other.Rerank.Model != "" {
		c.Rerank.Model = other.Rerank.Model
	}
	if other.Rerank.TopN != 0 {
		c.Rerank.TopN = other.Rerank.TopN
	}
	if other.Rerank.TimeoutSeconds != 0 {
		c.Rerank.TimeoutSeconds = other.Rerank.TimeoutSeconds
	}

	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
	if other.Logging.FilePath != "" {
		c.Logging.FilePath = other.Logging.FilePath
	}
}

// applyEnvOverrides applies CARREL_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CARREL_WORKSPACE"); v != "" {
		c.Workspace.Name = v
	}
	if v := os.Getenv("CARREL_DATA_DIR"); v != "" {
		c.Workspace.DataDir = v
	}
	if v := os.Getenv("CARREL_RRF_CONSTANT"); v != "" {
		if k, err := strconv.Atoi(v); err == nil && k > 0 {
			c.Retrieval.RRFConstant = k
		}
	}
	if v := os.Getenv("CARREL_EMBEDDINGS_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("CARREL_EMBEDDINGS_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("CARREL_OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
	}
	if v := os.Getenv("CARREL_LMSTUDIO_HOST"); v != "" {
		c.Embeddings.LMStudioHost = v
	}
	if v := os.Getenv("CARREL_RERANK_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Rerank.Enabled = b
		}
	}
	if v := os.Getenv("CARREL_RERANK_ENDPOINT"); v != "" {
		c.Rerank.Endpoint = v
	}
	if v := os.Getenv("CARREL_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks the final configuration for inconsistent values.
func (c *Config) Validate() error {
	if c.Retrieval.RRFConstant <= 0 {
		return fmt.Errorf("retrieval.rrf_constant must be positive, got %d", c.Retrieval.RRFConstant)
	}
	if c.Retrieval.MaxResults <= 0 {
		return fmt.Errorf("retrieval.max_results must be positive, got %d", c.Retrieval.MaxResults)
	}
	if t := c.Retrieval.SemanticCacheThreshold; t <= 0 || t > 1 {
		return fmt.Errorf("retrieval.semantic_cache_threshold must be in (0, 1], got %g", t)
	}
	if c.Retrieval.SlowQueryMs >= c.Retrieval.DegradedQueryMs {
		return fmt.Errorf("retrieval.slow_query_ms (%g) must be below degraded_query_ms (%g)",
			c.Retrieval.SlowQueryMs, c.Retrieval.DegradedQueryMs)
	}
	if c.Workspace.Name == "" {
		return fmt.Errorf("workspace.name must not be empty")
	}
	switch c.Embeddings.Provider {
	case "", "ollama", "lmstudio":
	default:
		return fmt.Errorf("embeddings.provider must be \"ollama\" or \"lmstudio\", got %q", c.Embeddings.Provider)
	}
	return nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
