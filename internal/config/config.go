// Package config provides application configuration with multi-source
// priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables with the PITWALL_ prefix (runtime override)
//  2. Config file (~/.pitwall/config.yaml)
//  3. Default values
//
// The backend is a startup-time choice based on which settings are present:
// a database URL selects the postgres backend, a data directory selects the
// badger backend, and postgres wins when both are set. Missing credentials
// for the selected backend or the embedding service fail fast in Validate;
// this is the one error class that stops the system before any record is
// processed.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Backend identifiers used in Config.Backend.
const (
	BackendPostgres = "postgres"
	BackendBadger   = "badger"
)

// DefaultDims is the vector dimension this domain is deployed with.
const DefaultDims = 1024

var (
	// ErrNoBackend indicates neither backend is configured.
	ErrNoBackend = errors.New("no document store backend configured: set database_url or badger_dir")

	// ErrUnknownBackend indicates an explicit backend outside the known set.
	ErrUnknownBackend = errors.New("unknown backend")

	// ErrMissingEmbeddingEndpoints indicates no embedding endpoint is set.
	ErrMissingEmbeddingEndpoints = errors.New("no embedding endpoints configured")

	// ErrMissingEmbeddingModel indicates no embedding model is set.
	ErrMissingEmbeddingModel = errors.New("no embedding model configured")

	// ErrInvalidDims indicates a non-positive vector dimension.
	ErrInvalidDims = errors.New("embedding dimension must be positive")

	// ErrInvalidThreshold indicates a retrieval threshold outside [0, 1].
	ErrInvalidThreshold = errors.New("retrieval threshold must be between 0 and 1")

	// ErrInvalidBatchSize indicates a non-positive ingestion batch size.
	ErrInvalidBatchSize = errors.New("batch size must be positive")
)

// EmbeddingConfig configures the embedding service client.
type EmbeddingConfig struct {
	Endpoints         []string      `mapstructure:"endpoints"`
	Model             string        `mapstructure:"model"`
	APIKey            string        `mapstructure:"api_key"` // SENSITIVE: never logged
	Dims              int           `mapstructure:"dims"`
	Timeout           time.Duration `mapstructure:"timeout"`
	Stagger           time.Duration `mapstructure:"stagger"`
	BatchDelay        time.Duration `mapstructure:"batch_delay"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
}

// AnswerConfig configures the completion service client.
type AnswerConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	Model       string  `mapstructure:"model"`
	APIKey      string  `mapstructure:"api_key"` // SENSITIVE: never logged
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

// IngestConfig carries the pass-through knobs of an ingestion run.
type IngestConfig struct {
	BatchSize           int           `mapstructure:"batch_size"`
	InterBatchDelay     time.Duration `mapstructure:"inter_batch_delay"`
	MaxRecordsPerSource int           `mapstructure:"max_records_per_source"`
	MinPriority         int           `mapstructure:"min_priority"`
}

// Config stores application configuration.
type Config struct {
	// Backend selects the document store explicitly; empty means derive
	// from which of DatabaseURL/BadgerDir is set.
	Backend string `mapstructure:"backend"`

	// DatabaseURL is the postgres:// connection URL for the relational
	// backend. SENSITIVE: never logged.
	DatabaseURL string `mapstructure:"database_url"`

	// BadgerDir is the data directory for the embedded backend.
	BadgerDir string `mapstructure:"badger_dir"`

	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Answer    AnswerConfig    `mapstructure:"answer"`
	Ingest    IngestConfig    `mapstructure:"ingest"`

	// RetrievalThreshold is the similarity floor for vector search.
	RetrievalThreshold float64 `mapstructure:"retrieval_threshold"`

	// LogLevel is debug, info, warn or error.
	LogLevel string `mapstructure:"log_level"`

	// LogJSON switches log output to JSON.
	LogJSON bool `mapstructure:"log_json"`
}

// Load reads configuration from defaults, the config file and environment
// variables, then validates the result.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".pitwall"))
	}
	v.AddConfigPath(".")
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("PITWALL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// DATABASE_URL is the conventional cloud override and wins over the
	// file value.
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.DatabaseURL = dbURL
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Keys without a meaningful default still need to be registered so
	// AutomaticEnv can populate them through Unmarshal.
	v.SetDefault("backend", "")
	v.SetDefault("database_url", "")
	v.SetDefault("badger_dir", "")

	v.SetDefault("embedding.endpoints", []string{})
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.model", "cohere.embed-english-v3")
	v.SetDefault("embedding.dims", DefaultDims)
	v.SetDefault("embedding.timeout", 30*time.Second)
	v.SetDefault("embedding.stagger", 100*time.Millisecond)
	v.SetDefault("embedding.batch_delay", time.Second)
	v.SetDefault("embedding.requests_per_second", 10.0)

	v.SetDefault("answer.endpoint", "")
	v.SetDefault("answer.api_key", "")
	v.SetDefault("answer.model", "anthropic.claude-3-haiku")
	v.SetDefault("answer.max_tokens", 1024)
	v.SetDefault("answer.temperature", 0.3)

	v.SetDefault("ingest.batch_size", 5)
	v.SetDefault("ingest.inter_batch_delay", time.Second)
	v.SetDefault("ingest.max_records_per_source", 0)
	v.SetDefault("ingest.min_priority", 0)

	v.SetDefault("retrieval_threshold", 0.25)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)
}

// SelectedBackend resolves the effective backend from the explicit setting
// or, failing that, from which backend settings are present. Postgres is
// preferred when both are configured.
func (c *Config) SelectedBackend() string {
	if c.Backend != "" {
		return c.Backend
	}
	if c.DatabaseURL != "" {
		return BackendPostgres
	}
	if c.BadgerDir != "" {
		return BackendBadger
	}
	return ""
}

// Validate fails fast on configuration errors. Everything here is fatal:
// the system must not start ingesting with a broken backend or embedding
// setup.
func (c *Config) Validate() error {
	switch c.SelectedBackend() {
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("%w: postgres backend selected without database_url", ErrNoBackend)
		}
	case BackendBadger:
		if c.BadgerDir == "" {
			return fmt.Errorf("%w: badger backend selected without badger_dir", ErrNoBackend)
		}
	case "":
		return ErrNoBackend
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.Backend)
	}

	if len(c.Embedding.Endpoints) == 0 {
		return ErrMissingEmbeddingEndpoints
	}
	if c.Embedding.Model == "" {
		return ErrMissingEmbeddingModel
	}
	if c.Embedding.Dims <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidDims, c.Embedding.Dims)
	}
	if c.RetrievalThreshold < 0 || c.RetrievalThreshold > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidThreshold, c.RetrievalThreshold)
	}
	if c.Ingest.BatchSize <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidBatchSize, c.Ingest.BatchSize)
	}
	return nil
}

// SlogLevel maps the configured level name onto a slog level. Unknown names
// fall back to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
