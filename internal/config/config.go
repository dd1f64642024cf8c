// Package config loads fttf configuration.
//
// Precedence, lowest first: built-in defaults, the user config file
// ($XDG_CONFIG_HOME/fttf/config.yaml), an explicit config file, and
// FTTF_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete fttf configuration.
type Config struct {
	Version    int              `yaml:"version"`
	Storage    StorageConfig    `yaml:"storage"`
	Queue      QueueConfig      `yaml:"queue"`
	Search     SearchConfig     `yaml:"search"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Index      IndexConfig      `yaml:"index"`
	Inbox      InboxConfig      `yaml:"inbox"`
	Server     ServerConfig     `yaml:"server"`
}

// StorageConfig locates the history database.
type StorageConfig struct {
	// DataDir holds the database, its lock file and logs.
	DataDir string `yaml:"data_dir"`
	// DBPath overrides the database location. Empty means <data_dir>/history.db.
	DBPath string `yaml:"db_path,omitempty"`
}

// QueueConfig controls the background job queue.
type QueueConfig struct {
	// Enabled starts the drain loop when the backend opens.
	Enabled bool `yaml:"enabled"`
	// Interval is the pause between two tasks, e.g. "1s".
	Interval string `yaml:"interval"`
}

// SearchConfig holds search defaults.
type SearchConfig struct {
	DefaultLimit      int     `yaml:"default_limit"`
	OrderBy           string  `yaml:"order_by"`
	TrigramLimit      int     `yaml:"trigram_limit"`
	SemanticLimit     int     `yaml:"semantic_limit"`
	SemanticThreshold float64 `yaml:"semantic_threshold"`
}

// EmbeddingsConfig selects the embedding collaborator.
type EmbeddingsConfig struct {
	// Provider is "static" or "ollama".
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	OllamaHost string `yaml:"ollama_host,omitempty"`
	// CacheSize is the number of query embeddings kept in memory. 0 disables the cache.
	CacheSize int `yaml:"cache_size"`
}

// IndexConfig controls in-memory acceleration structures.
type IndexConfig struct {
	// HNSW loads stored vectors into an approximate nearest-neighbour graph.
	HNSW bool `yaml:"hnsw"`
}

// InboxConfig configures the page-capture drop directory.
type InboxConfig struct {
	Dir string `yaml:"dir,omitempty"`
}

// ServerConfig holds process-level settings.
type ServerConfig struct {
	LogLevel string `yaml:"log_level"`
}

// NewConfig creates a Config with defaults.
func NewConfig() *Config {
	dataDir := defaultDataDir()
	return &Config{
		Version: 1,
		Storage: StorageConfig{
			DataDir: dataDir,
		},
		Queue: QueueConfig{
			Enabled:  true,
			Interval: "1s",
		},
		Search: SearchConfig{
			DefaultLimit:      100,
			OrderBy:           "updated_at",
			TrigramLimit:      20,
			SemanticLimit:     20,
			SemanticThreshold: 0.5,
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "static",
			Model:      "all-minilm",
			Dimensions: 384,
			CacheSize:  1000,
		},
		Index: IndexConfig{
			HNSW: true,
		},
		Inbox: InboxConfig{
			Dir: filepath.Join(dataDir, "inbox"),
		},
		Server: ServerConfig{
			LogLevel: "info",
		},
	}
}

// DatabasePath returns the resolved database file path.
func (c *Config) DatabasePath() string {
	if c.Storage.DBPath != "" {
		return c.Storage.DBPath
	}
	return filepath.Join(c.Storage.DataDir, "history.db")
}

// QueueInterval parses Queue.Interval, falling back to one second.
func (c *Config) QueueInterval() time.Duration {
	d, err := time.ParseDuration(c.Queue.Interval)
	if err != nil || d <= 0 {
		return time.Second
	}
	return d
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".fttf")
	}
	return filepath.Join(home, ".fttf")
}

// GetUserConfigPath returns the path to the user configuration file.
// It follows the XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/fttf/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/fttf/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "fttf", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "fttf", "config.yaml")
	}
	return filepath.Join(home, ".config", "fttf", "config.yaml")
}

// Load builds the effective configuration.
// explicitPath may be empty; when set, the file must exist.
func Load(explicitPath string) (*Config, error) {
	cfg := NewConfig()

	userPath := GetUserConfigPath()
	if fileExists(userPath) {
		if err := cfg.loadYAML(userPath); err != nil {
			return nil, fmt.Errorf("failed to load user config: %w", err)
		}
	}

	if explicitPath != "" {
		if !fileExists(explicitPath) {
			return nil, fmt.Errorf("config file not found: %s", explicitPath)
		}
		if err := cfg.loadYAML(explicitPath); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadYAML merges non-zero values from the file at path into c.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	// Booleans have no "unset" state in the struct, so read them from the raw map.
	var raw map[string]any
	_ = yaml.Unmarshal(data, &raw)

	c.mergeWith(&parsed, raw)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config, raw map[string]any) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if other.Storage.DataDir != "" {
		c.Storage.DataDir = other.Storage.DataDir
		if other.Inbox.Dir == "" {
			c.Inbox.Dir = filepath.Join(other.Storage.DataDir, "inbox")
		}
	}
	if other.Storage.DBPath != "" {
		c.Storage.DBPath = other.Storage.DBPath
	}

	if hasKey(raw, "queue", "enabled") {
		c.Queue.Enabled = other.Queue.Enabled
	}
	if other.Queue.Interval != "" {
		c.Queue.Interval = other.Queue.Interval
	}

	if other.Search.DefaultLimit != 0 {
		c.Search.DefaultLimit = other.Search.DefaultLimit
	}
	if other.Search.OrderBy != "" {
		c.Search.OrderBy = other.Search.OrderBy
	}
	if other.Search.TrigramLimit != 0 {
		c.Search.TrigramLimit = other.Search.TrigramLimit
	}
	if other.Search.SemanticLimit != 0 {
		c.Search.SemanticLimit = other.Search.SemanticLimit
	}
	if other.Search.SemanticThreshold != 0 {
		c.Search.SemanticThreshold = other.Search.SemanticThreshold
	}

	if other.Embeddings.Provider != "" {
		c.Embeddings.Provider = other.Embeddings.Provider
	}
	if other.Embeddings.Model != "" {
		c.Embeddings.Model = other.Embeddings.Model
	}
	if other.Embeddings.Dimensions != 0 {
		c.Embeddings.Dimensions = other.Embeddings.Dimensions
	}
	if other.Embeddings.OllamaHost != "" {
		c.Embeddings.OllamaHost = other.Embeddings.OllamaHost
	}
	if hasKey(raw, "embeddings", "cache_size") {
		c.Embeddings.CacheSize = other.Embeddings.CacheSize
	}

	if hasKey(raw, "index", "hnsw") {
		c.Index.HNSW = other.Index.HNSW
	}

	if other.Inbox.Dir != "" {
		c.Inbox.Dir = other.Inbox.Dir
	}

	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}
}

// applyEnvOverrides applies FTTF_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("FTTF_DATA_DIR"); v != "" {
		c.Storage.DataDir = v
	}
	if v := os.Getenv("FTTF_DB_PATH"); v != "" {
		c.Storage.DBPath = v
	}
	if v := os.Getenv("FTTF_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("FTTF_EMBEDDINGS_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("FTTF_EMBEDDINGS_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("FTTF_OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
	}
	if v := os.Getenv("FTTF_QUEUE_INTERVAL"); v != "" {
		c.Queue.Interval = v
	}
	if v := os.Getenv("FTTF_QUEUE_ENABLED"); v != "" {
		c.Queue.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("FTTF_SEMANTIC_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			c.Search.SemanticThreshold = f
		}
	}
	if v := os.Getenv("FTTF_INBOX_DIR"); v != "" {
		c.Inbox.Dir = v
	}
}

var validOrderBy = map[string]bool{
	"updated_at": true,
	"last_visit": true,
	"created_at": true,
	"rank":       true,
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	if c.Storage.DataDir == "" && c.Storage.DBPath == "" {
		return fmt.Errorf("storage.data_dir or storage.db_path is required")
	}
	if _, err := time.ParseDuration(c.Queue.Interval); err != nil {
		return fmt.Errorf("queue.interval must be a duration, got %q", c.Queue.Interval)
	}
	if c.Search.DefaultLimit < 0 {
		return fmt.Errorf("search.default_limit must be non-negative, got %d", c.Search.DefaultLimit)
	}
	if !validOrderBy[c.Search.OrderBy] {
		return fmt.Errorf("search.order_by must be one of updated_at, last_visit, created_at, rank; got %s", c.Search.OrderBy)
	}
	if c.Search.SemanticThreshold < -1 || c.Search.SemanticThreshold > 1 {
		return fmt.Errorf("search.semantic_threshold must be between -1 and 1, got %f", c.Search.SemanticThreshold)
	}

	switch strings.ToLower(c.Embeddings.Provider) {
	case "static", "ollama":
	default:
		return fmt.Errorf("embeddings.provider must be 'static' or 'ollama', got %s", c.Embeddings.Provider)
	}
	if c.Embeddings.Dimensions <= 0 {
		return fmt.Errorf("embeddings.dimensions must be positive, got %d", c.Embeddings.Dimensions)
	}
	if c.Embeddings.CacheSize < 0 {
		return fmt.Errorf("embeddings.cache_size must be non-negative, got %d", c.Embeddings.CacheSize)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}
	return nil
}

// WriteYAML writes the configuration to a YAML file, creating parent directories.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// hasKey reports whether section.key is present in a decoded YAML document.
func hasKey(raw map[string]any, section, key string) bool {
	m, ok := raw[section].(map[string]any)
	if !ok {
		return false
	}
	_, ok = m[key]
	return ok
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
