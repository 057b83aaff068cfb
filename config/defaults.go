package config

import "time"

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:        "memkeep",
			Version:     "dev",
			Environment: "development",
			Debug:       false,
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
			HTTP: HTTPConfig{
				ReadTimeout:     30 * time.Second,
				WriteTimeout:    30 * time.Second,
				IdleTimeout:     120 * time.Second,
				ShutdownTimeout: 15 * time.Second,
				RequestTimeout:  60 * time.Second,
				MaxHeaderBytes:  1 << 20, // 1MB
			},
			CORS: CORSConfig{
				Enabled:          true,
				AllowedOrigins:   []string{"*"},
				AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
				AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
				ExposedHeaders:   []string{"X-Request-ID"},
				AllowCredentials: false,
				MaxAge:           300,
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Storage: StorageConfig{
			Type: "sqlite",
			SQLite: SQLiteConfig{
				Path: "./data/memkeep.db",
			},
		},
		Embedding: EmbeddingConfig{
			Provider:             "openai",
			BaseURL:              "https://api.openai.com/v1",
			Model:                "text-embedding-3-small",
			Dimensions:           1536,
			MaxInputChars:        8000,
			CostPerMillionTokens: 0.02,
			Workers:              2,
			QueueSize:            256,
			MaxAttempts:          3,
			RetryDelay:           1 * time.Second,
			RepairSpacing:        200 * time.Millisecond,
			Cache: EmbeddingCacheConfig{
				Enabled: false,
				Backend: "memory",
				TTL:     24 * time.Hour,
				Redis: RedisConfig{
					Address:  "localhost:6379",
					Password: "",
					DB:       0,
				},
			},
		},
		Recall: RecallConfig{
			VectorWeight:        0.45,
			LexicalWeight:       0.25,
			RecencyWeight:       0.15,
			ImportanceWeight:    0.15,
			SimilarityThreshold: 0.3,
			RecencyHalfLife:     7 * 24 * time.Hour,
			DefaultLimit:        20,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
			Port:    9091,
		},
		Tracing: TracingConfig{
			Enabled:    false,
			Exporter:   "otlpgrpc",
			Endpoint:   "localhost:4317",
			Timeout:    10 * time.Second,
			Sampler:    "ratio",
			SampleRate: 0.1,
		},
	}
}
