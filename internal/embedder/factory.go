package embedder

import (
	"fmt"
	"os"
	"strings"
)

// EnvProvider selects the embedding provider explicitly
const EnvProvider = "READANY_EMBEDDING_PROVIDER"

// Config holds embedder configuration
type Config struct {
	Provider  string
	Model     string
	APIKey    string
	BaseURL   string
	Dimension int
	Client    ClientConfig
}

// NewProvider creates the raw Embedder for cfg.Provider
func NewProvider(cfg Config) (Embedder, error) {
	pc := ProviderConfig{
		APIKey:    cfg.APIKey,
		BaseURL:   cfg.BaseURL,
		Model:     cfg.Model,
		Dimension: cfg.Dimension,
		Timeout:   cfg.Client.Timeout,
	}

	switch strings.ToLower(cfg.Provider) {
	case ProviderJina:
		return NewJinaProvider(pc)
	case ProviderOpenAI:
		return NewOpenAIProvider(pc)
	case ProviderOllama:
		return NewOllamaProvider(pc), nil
	case ProviderLocal, "":
		return NewLocalProvider(cfg.Dimension), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, cfg.Provider)
	}
}

// New creates an embedding client with explicit configuration
func New(cfg Config) (*Client, error) {
	e, err := NewProvider(cfg)
	if err != nil {
		return nil, err
	}
	return NewClient(e, cfg.Client), nil
}

// NewFromEnv creates an embedding client based on environment variables
// Priority:
// 1. READANY_EMBEDDING_PROVIDER (jina, openai, ollama, local)
// 2. Check for API keys: JINA_API_KEY, OPENAI_API_KEY
// 3. Default to local if no API keys found
func NewFromEnv() (*Client, error) {
	return New(Config{Provider: DetectProvider()})
}

// DetectProvider returns the provider that would be used based on current environment
func DetectProvider() string {
	provider := os.Getenv(EnvProvider)
	if provider != "" {
		return strings.ToLower(provider)
	}

	if os.Getenv(EnvJinaAPIKey) != "" {
		return ProviderJina
	}
	if os.Getenv(EnvOpenAIAPIKey) != "" {
		return ProviderOpenAI
	}

	return ProviderLocal
}
