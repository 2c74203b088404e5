package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/codedogQBY/ReadAny/internal/chunker"
	"github.com/codedogQBY/ReadAny/internal/embedder"
	"github.com/codedogQBY/ReadAny/internal/storage"
	"github.com/codedogQBY/ReadAny/pkg/types"
)

// Environment variables read by the configuration layer
const (
	EnvConfigPath        = "READANY_CONFIG"
	EnvDBPath            = "READANY_DB_PATH"
	EnvStorageDriver     = "READANY_STORAGE_DRIVER"
	EnvLibraryDir        = "READANY_LIBRARY_DIR"
	EnvEmbeddingProvider = embedder.EnvProvider
)

// Config is the root configuration structure.
type Config struct {
	Storage   StorageConfig   `yaml:"storage"`
	Library   LibraryConfig   `yaml:"library"`
	Chunker   ChunkerConfig   `yaml:"chunker"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Vectorize VectorizeConfig `yaml:"vectorize"`
	Search    SearchConfig    `yaml:"search"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// StorageConfig selects the vector store.
type StorageConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "bolt"
	Path   string `yaml:"path"`
}

// LibraryConfig locates documents on disk.
type LibraryConfig struct {
	Root     string   `yaml:"root"`
	Includes []string `yaml:"includes"`
}

// ChunkerConfig controls the chunk window.
type ChunkerConfig struct {
	MaxChunkTokens int `yaml:"max_chunk_tokens"`
	OverlapTokens  int `yaml:"overlap_tokens"`
}

// EmbeddingConfig selects and tunes the embedding provider.
type EmbeddingConfig struct {
	Provider          string  `yaml:"provider"` // "jina", "openai", "ollama", "local"; empty detects from the environment
	Model             string  `yaml:"model"`
	BaseURL           string  `yaml:"base_url"`
	APIKeyEnv         string  `yaml:"api_key_env"` // Environment variable holding the API key
	Dimension         int     `yaml:"dimension"`
	BatchLimit        int     `yaml:"batch_limit"`
	TimeoutSecs       int     `yaml:"timeout_secs"`
	MaxAttempts       int     `yaml:"max_attempts"`
	InitialBackoffMs  int     `yaml:"initial_backoff_ms"`
	MaxBackoffMs      int     `yaml:"max_backoff_ms"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	CacheSize         int     `yaml:"cache_size"` // Negative disables the cache
}

// VectorizeConfig tunes vectorization runs.
type VectorizeConfig struct {
	BatchSize int `yaml:"batch_size"`
}

// SearchConfig holds retrieval defaults.
type SearchConfig struct {
	DefaultMode    string  `yaml:"default_mode"`
	DefaultTopK    int     `yaml:"default_top_k"`
	SemanticWeight float64 `yaml:"semantic_weight"`
	KeywordWeight  float64 `yaml:"keyword_weight"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Verbose bool `yaml:"verbose"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Driver: storage.DriverSQLite,
			Path:   filepath.Join(defaultDataDir(), "vectors.db"),
		},
		Library: LibraryConfig{
			Root:     filepath.Join(defaultDataDir(), "library"),
			Includes: []string{"**/*.txt", "**/*.md", "**/*.html", "**/*.xhtml", "**/*.htm"},
		},
		Chunker: ChunkerConfig{
			MaxChunkTokens: chunker.DefaultMaxChunkTokens,
			OverlapTokens:  chunker.DefaultOverlapTokens,
		},
		Embedding: EmbeddingConfig{
			BatchLimit:       embedder.DefaultBatchSize,
			TimeoutSecs:      int(embedder.DefaultTimeout / time.Second),
			MaxAttempts:      embedder.MaxAttempts,
			InitialBackoffMs: embedder.InitialBackoffMs,
			MaxBackoffMs:     embedder.MaxBackoffMs,
			CacheSize:        embedder.DefaultCacheSize,
		},
		Vectorize: VectorizeConfig{
			BatchSize: 16,
		},
		Search: SearchConfig{
			DefaultMode:    string(types.SearchModeHybrid),
			DefaultTopK:    5,
			SemanticWeight: 0.7,
			KeywordWeight:  0.3,
		},
	}
}

// Load reads a config from path. If the file does not exist, returns defaults.
// Environment overrides are applied in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	applyDefaults(cfg)
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadDefault loads $READANY_CONFIG, then ./readany.yaml, then
// ~/.readany/config.yaml, falling back to defaults. It returns the path used.
func LoadDefault() (*Config, string, error) {
	if p := os.Getenv(EnvConfigPath); p != "" {
		cfg, err := Load(p)
		return cfg, p, err
	}
	candidates := []string{"readany.yaml", filepath.Join(defaultDataDir(), "config.yaml")}

	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			cfg, err := Load(p)
			return cfg, p, err
		}
	}

	cfg, err := Load(candidates[len(candidates)-1])
	return cfg, "", err
}

// Save writes the config to the given path, creating directories as needed.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks value ranges that defaults cannot repair.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case storage.DriverSQLite, storage.DriverBolt:
	default:
		return fmt.Errorf("storage.driver must be %q or %q, got %q", storage.DriverSQLite, storage.DriverBolt, c.Storage.Driver)
	}
	if err := c.ChunkerConfig().Validate(); err != nil {
		return fmt.Errorf("chunker: %w", err)
	}
	switch strings.ToLower(c.Embedding.Provider) {
	case "", embedder.ProviderJina, embedder.ProviderOpenAI, embedder.ProviderOllama, embedder.ProviderLocal:
	default:
		return fmt.Errorf("%w: %s", embedder.ErrUnsupportedProvider, c.Embedding.Provider)
	}
	if c.Embedding.BatchLimit > embedder.MaxBatchSize {
		return fmt.Errorf("embedding.batch_limit must be <= %d, got %d", embedder.MaxBatchSize, c.Embedding.BatchLimit)
	}
	if _, err := types.ParseSearchMode(c.Search.DefaultMode); err != nil {
		return fmt.Errorf("search.default_mode: %w", err)
	}
	if c.Search.SemanticWeight < 0 || c.Search.KeywordWeight < 0 {
		return fmt.Errorf("search weights must be non-negative")
	}
	return nil
}

// ChunkerConfig returns the chunk window settings.
func (c *Config) ChunkerConfig() chunker.Config {
	return chunker.Config{
		MaxChunkTokens: c.Chunker.MaxChunkTokens,
		OverlapTokens:  c.Chunker.OverlapTokens,
	}
}

// EmbedderConfig maps the embedding section onto the embedder factory config.
func (c *Config) EmbedderConfig() embedder.Config {
	e := c.Embedding
	provider := strings.ToLower(e.Provider)
	if provider == "" {
		provider = embedder.DetectProvider()
	}

	var apiKey string
	if e.APIKeyEnv != "" {
		apiKey = os.Getenv(e.APIKeyEnv)
	}

	return embedder.Config{
		Provider:  provider,
		Model:     e.Model,
		APIKey:    apiKey,
		BaseURL:   e.BaseURL,
		Dimension: e.Dimension,
		Client: embedder.ClientConfig{
			BatchLimit: e.BatchLimit,
			Timeout:    time.Duration(e.TimeoutSecs) * time.Second,
			Retry: embedder.RetryConfig{
				MaxAttempts: e.MaxAttempts,
				BaseDelay:   time.Duration(e.InitialBackoffMs) * time.Millisecond,
				MaxDelay:    time.Duration(e.MaxBackoffMs) * time.Millisecond,
			},
			RequestsPerSecond: e.RequestsPerSecond,
			CacheSize:         e.CacheSize,
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".readany"
	}
	return filepath.Join(home, ".readany")
}

func applyDefaults(cfg *Config) {
	def := DefaultConfig()
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = def.Storage.Driver
	}
	cfg.Storage.Driver = strings.ToLower(cfg.Storage.Driver)
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = def.Storage.Path
	}
	if cfg.Library.Root == "" {
		cfg.Library.Root = def.Library.Root
	}
	if len(cfg.Library.Includes) == 0 {
		cfg.Library.Includes = def.Library.Includes
	}
	if cfg.Chunker.MaxChunkTokens == 0 {
		cfg.Chunker.MaxChunkTokens = def.Chunker.MaxChunkTokens
	}
	if cfg.Embedding.BatchLimit == 0 {
		cfg.Embedding.BatchLimit = def.Embedding.BatchLimit
	}
	if cfg.Embedding.TimeoutSecs == 0 {
		cfg.Embedding.TimeoutSecs = def.Embedding.TimeoutSecs
	}
	if cfg.Embedding.MaxAttempts == 0 {
		cfg.Embedding.MaxAttempts = def.Embedding.MaxAttempts
	}
	if cfg.Embedding.InitialBackoffMs == 0 {
		cfg.Embedding.InitialBackoffMs = def.Embedding.InitialBackoffMs
	}
	if cfg.Embedding.MaxBackoffMs == 0 {
		cfg.Embedding.MaxBackoffMs = def.Embedding.MaxBackoffMs
	}
	if cfg.Vectorize.BatchSize <= 0 {
		cfg.Vectorize.BatchSize = def.Vectorize.BatchSize
	}
	if cfg.Search.DefaultMode == "" {
		cfg.Search.DefaultMode = def.Search.DefaultMode
	}
	if cfg.Search.DefaultTopK <= 0 {
		cfg.Search.DefaultTopK = def.Search.DefaultTopK
	}
	if cfg.Search.SemanticWeight == 0 && cfg.Search.KeywordWeight == 0 {
		cfg.Search.SemanticWeight = def.Search.SemanticWeight
		cfg.Search.KeywordWeight = def.Search.KeywordWeight
	}
	cfg.Storage.Path = expandHome(cfg.Storage.Path)
	cfg.Library.Root = expandHome(cfg.Library.Root)
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvDBPath); v != "" {
		cfg.Storage.Path = expandHome(v)
	}
	if v := os.Getenv(EnvStorageDriver); v != "" {
		cfg.Storage.Driver = strings.ToLower(v)
	}
	if v := os.Getenv(EnvLibraryDir); v != "" {
		cfg.Library.Root = expandHome(v)
	}
	if v := os.Getenv(EnvEmbeddingProvider); v != "" {
		cfg.Embedding.Provider = strings.ToLower(v)
	}
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
