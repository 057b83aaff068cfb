// Package config provides configuration management for Memkeep.
package config

import (
	"fmt"
	"time"
)

// Config is the global configuration for Memkeep.
type Config struct {
	// App is the application configuration.
	App AppConfig `mapstructure:"app" validate:"required"`

	// Server is the HTTP server configuration.
	Server ServerConfig `mapstructure:"server" validate:"required"`

	// Log is the logging configuration.
	Log LogConfig `mapstructure:"log" validate:"required"`

	// Storage is the persistence configuration.
	Storage StorageConfig `mapstructure:"storage"`

	// Embedding is the embedding provider configuration.
	Embedding EmbeddingConfig `mapstructure:"embedding"`

	// Recall is the recall ranking configuration.
	Recall RecallConfig `mapstructure:"recall"`

	// Metrics is the observability configuration.
	Metrics MetricsConfig `mapstructure:"metrics"`

	// Tracing is the distributed tracing configuration.
	Tracing TracingConfig `mapstructure:"tracing"`
}

// AppConfig holds application metadata and settings.
type AppConfig struct {
	// Name is the application name.
	Name string `mapstructure:"name" validate:"required"`

	// Version is the application version.
	Version string `mapstructure:"version"`

	// Environment is the runtime environment (development, staging, production).
	Environment string `mapstructure:"environment" validate:"env"`

	// Debug enables debug mode with verbose logging.
	Debug bool `mapstructure:"debug"`
}

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	// Host is the bind address.
	Host string `mapstructure:"host"`

	// Port is the HTTP API port.
	Port int `mapstructure:"port" validate:"required,min=1,max=65535"`

	// HTTP is the HTTP server configuration.
	HTTP HTTPConfig `mapstructure:"http"`

	// CORS is the CORS configuration.
	CORS CORSConfig `mapstructure:"cors"`
}

// HTTPConfig holds HTTP-specific settings.
type HTTPConfig struct {
	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next request.
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// RequestTimeout bounds per-request handling time.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	// MaxHeaderBytes limits the size of request headers.
	MaxHeaderBytes int `mapstructure:"max_header_bytes"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	// Enabled enables CORS support.
	Enabled bool `mapstructure:"enabled"`

	// AllowedOrigins is the list of allowed origins.
	AllowedOrigins []string `mapstructure:"allowed_origins"`

	// AllowedMethods is the list of allowed HTTP methods.
	AllowedMethods []string `mapstructure:"allowed_methods"`

	// AllowedHeaders is the list of allowed headers.
	AllowedHeaders []string `mapstructure:"allowed_headers"`

	// ExposedHeaders is the list of headers exposed to the client.
	ExposedHeaders []string `mapstructure:"exposed_headers"`

	// AllowCredentials indicates whether credentials are allowed.
	AllowCredentials bool `mapstructure:"allow_credentials"`

	// MaxAge is the maximum age of CORS preflight cache in seconds.
	MaxAge int `mapstructure:"max_age"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is the log level (debug, info, warn, error).
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`

	// Format is the output format (json, text).
	Format string `mapstructure:"format" validate:"oneof=json text"`

	// Output is the output destination (stdout, stderr, or file path).
	Output string `mapstructure:"output"`
}

// StorageConfig holds persistence settings.
type StorageConfig struct {
	// Type is the storage backend (sqlite, memory).
	Type string `mapstructure:"type" validate:"oneof=sqlite memory"`

	// SQLite is the SQLite configuration.
	SQLite SQLiteConfig `mapstructure:"sqlite"`
}

// SQLiteConfig holds SQLite-specific settings.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string `mapstructure:"path"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	// Provider is the embedding backend (openai, mock).
	Provider string `mapstructure:"provider" validate:"oneof=openai mock"`

	// BaseURL is the provider endpoint; any OpenAI-compatible API works.
	BaseURL string `mapstructure:"base_url"`

	// APIKey is the provider credential.
	APIKey string `mapstructure:"api_key"`

	// Model is the embedding model name.
	Model string `mapstructure:"model"`

	// Dimensions is the expected vector dimensionality.
	Dimensions int `mapstructure:"dimensions" validate:"min=1"`

	// MaxInputChars truncates embedding input. Zero disables.
	MaxInputChars int `mapstructure:"max_input_chars" validate:"min=0"`

	// CostPerMillionTokens prices usage for the daily ledger.
	CostPerMillionTokens float64 `mapstructure:"cost_per_million_tokens" validate:"min=0"`

	// Workers is the number of async embedding workers.
	Workers int `mapstructure:"workers" validate:"min=1"`

	// QueueSize is the async embedding queue capacity.
	QueueSize int `mapstructure:"queue_size" validate:"min=1"`

	// MaxAttempts bounds embedding attempts per call.
	MaxAttempts int `mapstructure:"max_attempts" validate:"min=1"`

	// RetryDelay is the wait after a rate limit with no server hint.
	RetryDelay time.Duration `mapstructure:"retry_delay"`

	// RepairSpacing is the minimum gap between provider calls during
	// a repair pass.
	RepairSpacing time.Duration `mapstructure:"repair_spacing"`

	// Cache is the embedding cache configuration.
	Cache EmbeddingCacheConfig `mapstructure:"cache"`
}

// EmbeddingCacheConfig holds embedding cache settings.
type EmbeddingCacheConfig struct {
	// Enabled enables embedding caching.
	Enabled bool `mapstructure:"enabled"`

	// Backend is the cache backend (memory, redis).
	Backend string `mapstructure:"backend" validate:"oneof=memory redis"`

	// TTL is how long cached vectors stay valid.
	TTL time.Duration `mapstructure:"ttl"`

	// Redis is the Redis configuration.
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig holds Redis-specific settings.
type RedisConfig struct {
	// Address is the Redis server address.
	Address string `mapstructure:"address"`

	// Password is the Redis password.
	Password string `mapstructure:"password"`

	// DB is the Redis database number.
	DB int `mapstructure:"db"`
}

// RecallConfig holds recall ranking settings.
type RecallConfig struct {
	// VectorWeight is the composite weight of vector similarity.
	VectorWeight float64 `mapstructure:"vector_weight" validate:"min=0"`

	// LexicalWeight is the composite weight of lexical overlap.
	LexicalWeight float64 `mapstructure:"lexical_weight" validate:"min=0"`

	// RecencyWeight is the composite weight of recency.
	RecencyWeight float64 `mapstructure:"recency_weight" validate:"min=0"`

	// ImportanceWeight is the composite weight of importance.
	ImportanceWeight float64 `mapstructure:"importance_weight" validate:"min=0"`

	// SimilarityThreshold is the minimum cosine similarity for a
	// vector match.
	SimilarityThreshold float64 `mapstructure:"similarity_threshold" validate:"min=-1,max=1"`

	// RecencyHalfLife is the age at which the recency signal halves.
	RecencyHalfLife time.Duration `mapstructure:"recency_half_life"`

	// DefaultLimit caps recall results when a request names no limit.
	DefaultLimit int `mapstructure:"default_limit" validate:"min=1"`
}

// MetricsConfig holds observability settings.
type MetricsConfig struct {
	// Enabled enables metrics collection.
	Enabled bool `mapstructure:"enabled"`

	// Path is the metrics endpoint path.
	Path string `mapstructure:"path"`

	// Port is the metrics server port.
	Port int `mapstructure:"port" validate:"min=1,max=65535"`
}

// TracingConfig holds distributed tracing settings.
type TracingConfig struct {
	// Enabled enables trace export.
	Enabled bool `mapstructure:"enabled"`

	// Exporter is the span exporter type (otlpgrpc).
	Exporter string `mapstructure:"exporter"`

	// Endpoint is the collector endpoint.
	Endpoint string `mapstructure:"endpoint"`

	// Headers are extra headers sent to the collector.
	Headers map[string]string `mapstructure:"headers"`

	// Timeout bounds span export calls.
	Timeout time.Duration `mapstructure:"timeout"`

	// Sampler selects the sampling policy (ratio, always_on, always_off).
	Sampler string `mapstructure:"sampler"`

	// SampleRate is the trace sampling ratio for the ratio sampler.
	SampleRate float64 `mapstructure:"sample_rate" validate:"min=0,max=1"`
}

// Validate performs validation on the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// String returns a string representation of the configuration (without sensitive data).
func (c *Config) String() string {
	return fmt.Sprintf("Config{App: %s, Server: :%d, Env: %s}",
		c.App.Name, c.Server.Port, c.App.Environment)
}
