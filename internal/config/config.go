package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Port string `env:"PORT" envDefault:"8090"`

	// Elasticsearch connection
	ESURL      string        `env:"ES_URL" envDefault:"http://localhost:9200"`
	ESUsername string        `env:"ES_USERNAME" envDefault:"elastic"`
	ESPassword string        `env:"ES_PASSWORD"`
	ESTimeout  time.Duration `env:"ES_TIMEOUT" envDefault:"30s"`

	// Index
	DefaultIndex string `env:"DEFAULT_INDEX" envDefault:"a-001"`
	VectorDim    int    `env:"VECTOR_DIM" envDefault:"768"`

	// OpenAI-compatible provider
	OpenAIAPIBase string        `env:"OPENAI_API_BASE" envDefault:"http://localhost:18000/v1"`
	OpenAIAPIKey  string        `env:"OPENAI_API_KEY"`
	LLMModel      string        `env:"LLM_MODEL" envDefault:"gpt-4o-mini"`
	EmbedModel    string        `env:"EMBED_MODEL" envDefault:"text-embedding-3-small"`
	LLMTimeout    time.Duration `env:"LLM_TIMEOUT" envDefault:"60s"`

	// Auth
	APIKey string `env:"OCTORAG_API_KEY"`

	// Worker pool
	WorkerCount        int `env:"WORKER_COUNT" envDefault:"4"`
	MaxQueueSize       int `env:"MAX_QUEUE_SIZE" envDefault:"100"`
	MaxConcurrentEmbed int `env:"MAX_CONCURRENT_EMBED" envDefault:"5"`
	MaxConcurrentIndex int `env:"MAX_CONCURRENT_INDEX" envDefault:"10"`

	// Upload limits
	MaxUploadBytes int64 `env:"MAX_UPLOAD_BYTES" envDefault:"52428800"`

	// Chunking defaults
	DefaultChunkSize    int    `env:"DEFAULT_CHUNK_SIZE" envDefault:"1000"`
	DefaultChunkOverlap int    `env:"DEFAULT_CHUNK_OVERLAP" envDefault:"200"`
	DefaultLanguage     string `env:"DEFAULT_LANGUAGE" envDefault:"auto"`

	// Job state
	JobTTL time.Duration `env:"JOB_TTL" envDefault:"1h"`

	// Embedding cache
	EmbedCacheSize int `env:"EMBED_CACHE_SIZE" envDefault:"10000"`

	// PDF
	PDFFallbackPdftotext bool `env:"PDF_FALLBACK_PDFTOTEXT" envDefault:"true"`
}

// Load reads configuration from a .env file (if present) and the
// environment. Environment variables win over the file.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxConcurrentEmbed <= 0 {
		cfg.MaxConcurrentEmbed = 5
	}
	if cfg.MaxConcurrentIndex <= 0 {
		cfg.MaxConcurrentIndex = 10
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = time.Hour
	}
	if cfg.EmbedCacheSize <= 0 {
		cfg.EmbedCacheSize = 10000
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("OCTORAG_API_KEY is required")
	}
	if c.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	if c.VectorDim <= 0 {
		return fmt.Errorf("VECTOR_DIM must be positive")
	}
	if c.DefaultChunkSize <= 0 {
		return fmt.Errorf("DEFAULT_CHUNK_SIZE must be positive")
	}
	if c.DefaultChunkOverlap < 0 || c.DefaultChunkOverlap >= c.DefaultChunkSize {
		return fmt.Errorf("DEFAULT_CHUNK_OVERLAP must be in [0, DEFAULT_CHUNK_SIZE)")
	}
	return nil
}
