// Package config loads the layered configuration: defaults, the user file,
// the project file and CODEAGENT_* environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Creeper5261/Rikki-sub002/internal/embed"
	"github.com/Creeper5261/Rikki-sub002/internal/search"
)

// ProjectFileName is the per-project config file.
const ProjectFileName = ".codeagent.yaml"

// Config is the complete configuration.
type Config struct {
	Version       int                 `yaml:"version"`
	Elasticsearch ElasticsearchConfig `yaml:"elasticsearch"`
	Embeddings    EmbeddingsConfig    `yaml:"embeddings"`
	Search        SearchConfig        `yaml:"search"`
	Ingest        IngestConfig        `yaml:"ingest"`
	HashGate      HashGateConfig      `yaml:"hashgate"`
	Redis         RedisConfig         `yaml:"redis"`
	Kafka         KafkaConfig         `yaml:"kafka"`
	Watch         WatchConfig         `yaml:"watch"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// ElasticsearchConfig configures the document store client.
type ElasticsearchConfig struct {
	URL            string               `yaml:"url"`
	Dimensions     int                  `yaml:"dimensions"`
	RequestTimeout time.Duration        `yaml:"request_timeout"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// CircuitBreakerConfig guards similarity queries.
type CircuitBreakerConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxFailures int           `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
}

// EmbeddingsConfig selects the embedding provider.
type EmbeddingsConfig struct {
	// Provider: sha256, static, ollama or openai.
	Provider   string        `yaml:"provider"`
	Model      string        `yaml:"model"`
	Host       string        `yaml:"host"`
	APIKey     string        `yaml:"api_key,omitempty"`
	Dimensions int           `yaml:"dimensions"`
	Timeout    time.Duration `yaml:"timeout"`
	CacheSize  int           `yaml:"cache_size"`
}

// SearchConfig tunes the hybrid search.
type SearchConfig struct {
	TopK           int           `yaml:"top_k"`
	SourceTimeout  time.Duration `yaml:"source_timeout"`
	OverallTimeout time.Duration `yaml:"overall_timeout"`
	Retries        int           `yaml:"retries"`
	RetryBackoff   time.Duration `yaml:"retry_backoff"`
	// CancelMode: cancel or abandon.
	CancelMode   string `yaml:"cancel_mode"`
	CacheSize    int    `yaml:"cache_size"`
	SnippetChars int    `yaml:"snippet_chars"`
	// KeywordFallback answers vector queries from an in-memory full-text
	// index of the workspace while the document store is down or empty.
	KeywordFallback bool `yaml:"keyword_fallback"`
}

// IngestConfig tunes chunking and file limits.
type IngestConfig struct {
	Repo          string  `yaml:"repo"`
	TextMaxLines  int     `yaml:"text_max_lines"`
	TextMaxChars  int     `yaml:"text_max_chars"`
	MaxFileBytes  int64   `yaml:"max_file_bytes"`
	ScanWorkers   int     `yaml:"scan_workers"`
	RatePerSecond float64 `yaml:"rate_per_second"`
}

// HashGateConfig selects the content-hash gate backend.
type HashGateConfig struct {
	// Backend: memory, sqlite or redis.
	Backend    string `yaml:"backend"`
	SQLitePath string `yaml:"sqlite_path"`
}

// RedisConfig configures the Redis connection.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password,omitempty"`
	DB       int           `yaml:"db"`
	Timeout  time.Duration `yaml:"timeout"`
}

// KafkaConfig configures the broker. No brokers means in-process queues.
type KafkaConfig struct {
	Brokers         []string `yaml:"brokers"`
	FileChangeTopic string   `yaml:"file_change_topic"`
	ScanTopic       string   `yaml:"scan_topic"`
	GroupID         string   `yaml:"group_id"`
}

// WatchConfig configures the file watcher.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
	// InvalidateOnChange drops the symbol, filename and keyword indexes when
	// files are created or deleted.
	InvalidateOnChange bool `yaml:"invalidate_on_change"`
}

// LoggingConfig configures the log file.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	File      string `yaml:"file"`
	MaxSizeMB int    `yaml:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files"`
	Stderr    bool   `yaml:"stderr"`
}

// NewConfig returns the defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Elasticsearch: ElasticsearchConfig{
			URL:            "http://localhost:9200",
			Dimensions:     2048,
			RequestTimeout: 8 * time.Second,
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:     false,
				MaxFailures: 5,
				Timeout:     30 * time.Second,
			},
		},
		Embeddings: EmbeddingsConfig{
			Provider:   string(embed.ProviderSHA256),
			Model:      "nomic-embed-text",
			Host:       "http://localhost:11434",
			Dimensions: 2048,
			Timeout:    30 * time.Second,
			CacheSize:  embed.DefaultQueryCacheSize,
		},
		Search: SearchConfig{
			TopK:            search.DefaultTopK,
			SourceTimeout:   search.DefaultSourceTimeout,
			OverallTimeout:  search.DefaultOverallTimeout,
			Retries:         search.DefaultSourceRetries,
			RetryBackoff:    search.DefaultRetryBackoff,
			CancelMode:      search.CancelModeCancel,
			CacheSize:       search.DefaultResultCache,
			SnippetChars:    search.VectorSnippetChars,
			KeywordFallback: true,
		},
		Ingest: IngestConfig{
			Repo:         "code-agent",
			TextMaxLines: 200,
			TextMaxChars: 8000,
			MaxFileBytes: 10 * 1024 * 1024,
		},
		HashGate: HashGateConfig{
			Backend:    "sqlite",
			SQLitePath: filepath.Join(DataDir(), "hashgate.db"),
		},
		Redis: RedisConfig{
			Addr:    "localhost:6379",
			Timeout: 2 * time.Second,
		},
		Kafka: KafkaConfig{
			FileChangeTopic: "code-agent-v2-file-change",
			ScanTopic:       "code-agent-v2-scan",
			GroupID:         "code-agent-v2-indexer",
		},
		Watch: WatchConfig{
			Debounce: 500 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level:     "info",
			File:      filepath.Join(DataDir(), "logs", "codeagent.log"),
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
	}
}

// DataDir is where local state (hash gate, logs) lives.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".codeagent")
	}
	return filepath.Join(home, ".codeagent")
}

// GetUserConfigPath returns the user configuration file path:
//   - $XDG_CONFIG_HOME/codeagent/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/codeagent/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "codeagent", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "codeagent", "config.yaml")
	}
	return filepath.Join(home, ".config", "codeagent", "config.yaml")
}

// Load builds the configuration for a project directory. Later layers win:
//  1. Defaults
//  2. User config (~/.config/codeagent/config.yaml)
//  3. Project config (.codeagent.yaml in dir)
//  4. Environment variables (CODEAGENT_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if err := cfg.loadYAML(GetUserConfigPath()); err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	}
	if dir != "" {
		if err := cfg.loadYAML(filepath.Join(dir, ProjectFileName)); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadYAML overlays the keys present in path onto c. A missing file is not
// an error.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides applies CODEAGENT_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CODEAGENT_ES_URL"); v != "" {
		c.Elasticsearch.URL = v
	}
	if v := os.Getenv("CODEAGENT_ES_DIMENSIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Elasticsearch.Dimensions = n
			c.Embeddings.Dimensions = n
		}
	}
	if v := os.Getenv("CODEAGENT_EMBEDDINGS_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("CODEAGENT_EMBEDDINGS_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("CODEAGENT_EMBEDDINGS_HOST"); v != "" {
		c.Embeddings.Host = v
	}
	if v := os.Getenv("CODEAGENT_EMBEDDINGS_API_KEY"); v != "" {
		c.Embeddings.APIKey = v
	}
	if v := os.Getenv("CODEAGENT_SEARCH_CANCEL_MODE"); v != "" {
		c.Search.CancelMode = v
	}
	if v := os.Getenv("CODEAGENT_SEARCH_KEYWORD_FALLBACK"); v != "" {
		c.Search.KeywordFallback = strings.ToLower(v) == "true" || v == "1"
	}
	if v := os.Getenv("CODEAGENT_HASHGATE_BACKEND"); v != "" {
		c.HashGate.Backend = v
	}
	if v := os.Getenv("CODEAGENT_REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("CODEAGENT_KAFKA_BROKERS"); v != "" {
		var brokers []string
		for _, b := range strings.Split(v, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
		c.Kafka.Brokers = brokers
	}
	if v := os.Getenv("CODEAGENT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("CODEAGENT_WATCH_INVALIDATE"); v != "" {
		c.Watch.InvalidateOnChange = strings.ToLower(v) == "true" || v == "1"
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Elasticsearch.URL) == "" {
		return fmt.Errorf("elasticsearch.url must not be empty")
	}
	if c.Elasticsearch.Dimensions <= 0 {
		return fmt.Errorf("elasticsearch.dimensions must be positive, got %d", c.Elasticsearch.Dimensions)
	}
	if c.Embeddings.Dimensions != c.Elasticsearch.Dimensions {
		return fmt.Errorf("embeddings.dimensions (%d) must equal elasticsearch.dimensions (%d)",
			c.Embeddings.Dimensions, c.Elasticsearch.Dimensions)
	}

	validProviders := map[string]bool{"sha256": true, "static": true, "ollama": true, "openai": true, "dashscope": true}
	if !validProviders[strings.ToLower(c.Embeddings.Provider)] {
		return fmt.Errorf("embeddings.provider must be 'sha256', 'static', 'ollama' or 'openai', got %s", c.Embeddings.Provider)
	}

	if c.Search.TopK < 0 {
		return fmt.Errorf("search.top_k must be non-negative, got %d", c.Search.TopK)
	}
	if c.Search.Retries < 0 {
		return fmt.Errorf("search.retries must be non-negative, got %d", c.Search.Retries)
	}
	mode := strings.ToLower(c.Search.CancelMode)
	if mode != search.CancelModeCancel && mode != search.CancelModeAbandon {
		return fmt.Errorf("search.cancel_mode must be 'cancel' or 'abandon', got %s", c.Search.CancelMode)
	}

	if c.Ingest.TextMaxLines <= 0 || c.Ingest.TextMaxChars <= 0 {
		return fmt.Errorf("ingest.text_max_lines and ingest.text_max_chars must be positive")
	}

	validBackends := map[string]bool{"memory": true, "sqlite": true, "redis": true}
	if !validBackends[strings.ToLower(c.HashGate.Backend)] {
		return fmt.Errorf("hashgate.backend must be 'memory', 'sqlite' or 'redis', got %s", c.HashGate.Backend)
	}
	if strings.ToLower(c.HashGate.Backend) == "sqlite" && c.HashGate.SQLitePath == "" {
		return fmt.Errorf("hashgate.sqlite_path is required for the sqlite backend")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}
	return nil
}

// WriteYAML writes the configuration to a YAML file.
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

// Backup copies an existing file at path to path.bak.<timestamp> and
// returns the backup path. A missing file returns "".
func Backup(path string) (string, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read config for backup: %w", err)
	}
	backup := fmt.Sprintf("%s.bak.%s", path, time.Now().Format("20060102-150405"))
	if err := os.WriteFile(backup, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write backup: %w", err)
	}
	return backup, nil
}
