package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	Environment            string  `envconfig:"ENVIRONMENT" default:"development"`
	SentryDSN              string  `envconfig:"SENTRY_DSN"`
	SentryTracesSampleRate float64 `envconfig:"SENTRY_TRACES_SAMPLE_RATE" default:"1.0"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	// Embedding provider
	OpenAIAPIKey        string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL       string `envconfig:"OPENAI_BASE_URL"`
	EmbeddingModel      string `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-small"`
	EmbeddingDimensions int    `envconfig:"EMBEDDING_DIMENSIONS" default:"1536"`
	EmbeddingBatchSize  int    `envconfig:"EMBEDDING_BATCH_SIZE" default:"32"`
	// Task prefixes for asymmetric retrieval models. Empty for OpenAI models;
	// set to "search_document: " / "search_query: " for nomic-style models
	// served through an OpenAI-compatible endpoint.
	DocumentPrefix string `envconfig:"EMBEDDING_DOCUMENT_PREFIX"`
	QueryPrefix    string `envconfig:"EMBEDDING_QUERY_PREFIX"`

	// Chunking (token counts, cl100k_base)
	ChunkSizeTokens    int `envconfig:"CHUNK_SIZE_TOKENS" default:"512"`
	ChunkOverlapTokens int `envconfig:"CHUNK_OVERLAP_TOKENS" default:"64"`
	ChunkMinTokens     int `envconfig:"CHUNK_MIN_TOKENS" default:"50"`

	// Search fusion
	RRFConstant         int     `envconfig:"SEARCH_RRF_CONSTANT" default:"60"`
	CandidateMultiplier int     `envconfig:"SEARCH_CANDIDATE_MULTIPLIER" default:"4"`
	SemanticWeight      float64 `envconfig:"SEARCH_SEMANTIC_WEIGHT" default:"1.0"`
	LexicalWeight       float64 `envconfig:"SEARCH_LEXICAL_WEIGHT" default:"0.85"`

	// Ingestion
	DefaultLibrary    string        `envconfig:"DEFAULT_LIBRARY" default:"default"`
	MaxConcurrency    int           `envconfig:"INGEST_MAX_CONCURRENCY" default:"4"`
	FetchTimeout      time.Duration `envconfig:"FETCH_TIMEOUT" default:"10s"`
	FetchUserAgent    string        `envconfig:"FETCH_USER_AGENT" default:"corpusd/1.0"`
	MaxUploadBytes    int64         `envconfig:"MAX_UPLOAD_BYTES" default:"52428800"`
	ReconcileInterval time.Duration `envconfig:"RECONCILE_INTERVAL" default:"10m"`

	// Optional S3-compatible source for s3:// URIs
	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("CORPUS", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}
