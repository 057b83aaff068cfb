package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.App.Name != "memkeep" {
		t.Errorf("expected app name 'memkeep', got %s", cfg.App.Name)
	}
	if cfg.App.Environment != "development" {
		t.Errorf("expected environment 'development', got %s", cfg.App.Environment)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("expected log level 'info', got %s", cfg.Log.Level)
	}
	if cfg.Storage.Type != "sqlite" {
		t.Errorf("expected storage type 'sqlite', got %s", cfg.Storage.Type)
	}
	if cfg.Embedding.Provider != "openai" {
		t.Errorf("expected embedding provider 'openai', got %s", cfg.Embedding.Provider)
	}
	if cfg.Embedding.Dimensions != 1536 {
		t.Errorf("expected 1536 dimensions, got %d", cfg.Embedding.Dimensions)
	}
	if cfg.Recall.SimilarityThreshold != 0.3 {
		t.Errorf("expected similarity threshold 0.3, got %f", cfg.Recall.SimilarityThreshold)
	}
	if cfg.Recall.RecencyHalfLife != 7*24*time.Hour {
		t.Errorf("expected recency half-life 168h, got %v", cfg.Recall.RecencyHalfLife)
	}
	if cfg.Metrics.Port != 9091 {
		t.Errorf("expected metrics port 9091, got %d", cfg.Metrics.Port)
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestConfig_String(t *testing.T) {
	cfg := DefaultConfig()
	str := cfg.String()
	if str == "" {
		t.Error("expected non-empty string representation")
	}
}

func TestValidation_InvalidEnvironment(t *testing.T) {
	cfg := DefaultConfig()
	cfg.App.Environment = "invalid"

	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for invalid environment")
	}
}

func TestValidation_InvalidPort(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Port = 0

	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for port 0")
	}

	cfg.Server.Port = 70000
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for port > 65535")
	}
}

func TestValidation_InvalidLogLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Log.Level = "verbose"

	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for invalid log level")
	}
}

func TestValidation_InvalidStorageType(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.Type = "postgres"

	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for unsupported storage type")
	}
}

func TestValidation_InvalidEmbeddingProvider(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Embedding.Provider = "invalid"

	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for invalid embedding provider")
	}
}

func TestValidation_InvalidCacheBackend(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Embedding.Cache.Backend = "memcached"

	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for invalid cache backend")
	}
}

func TestValidation_NegativeRecallWeight(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Recall.VectorWeight = -0.5

	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for negative weight")
	}
}

func TestLoader_Defaults(t *testing.T) {
	loader := NewLoader()
	cfg, err := loader.Load("", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.App.Name != "memkeep" {
		t.Errorf("expected 'memkeep', got '%s'", cfg.App.Name)
	}
	if cfg.Embedding.MaxAttempts != 3 {
		t.Errorf("expected max attempts 3, got %d", cfg.Embedding.MaxAttempts)
	}
	if cfg.Embedding.RepairSpacing != 200*time.Millisecond {
		t.Errorf("expected repair spacing 200ms, got %v", cfg.Embedding.RepairSpacing)
	}
	if cfg.Recall.DefaultLimit != 20 {
		t.Errorf("expected default limit 20, got %d", cfg.Recall.DefaultLimit)
	}
}

func TestLoader_Getters(t *testing.T) {
	loader := NewLoader()
	if _, err := loader.Load("", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if name := loader.GetString("app.name"); name != "memkeep" {
		t.Errorf("expected 'memkeep', got '%s'", name)
	}
	if port := loader.GetInt("server.port"); port != 8080 {
		t.Errorf("expected 8080, got %d", port)
	}
	if !loader.GetBool("metrics.enabled") {
		t.Error("expected metrics.enabled to be true")
	}
}

func TestLoader_Set(t *testing.T) {
	loader := NewLoader()
	_, _ = loader.Load("", nil)

	if err := loader.Set("app.name", "custom-app"); err != nil {
		t.Errorf("unexpected error setting value: %v", err)
	}
	if loader.GetString("app.name") != "custom-app" {
		t.Errorf("expected 'custom-app', got '%s'", loader.GetString("app.name"))
	}
}

func TestLoader_Print(t *testing.T) {
	loader := NewLoader()
	_, _ = loader.Load("", nil)

	if loader.Print() == "" {
		t.Error("expected non-empty print output")
	}
}

func TestLoad(t *testing.T) {
	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg == nil {
		t.Error("expected non-nil config")
	}
}

func TestLoadOrDie(t *testing.T) {
	cfg := LoadOrDie("", nil)
	if cfg == nil {
		t.Error("expected non-nil config")
	}
}

func TestLoadOrDie_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic for invalid config file")
		}
	}()

	LoadOrDie("/nonexistent/path/config.yaml", nil)
}

func TestLoader_LoadFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
app:
  name: yaml-test
  environment: production
server:
  port: 9999
log:
  level: debug
  format: text
storage:
  type: memory
embedding:
  provider: mock
  dimensions: 8
  max_attempts: 5
  retry_delay: 2s
  repair_spacing: 500ms
  cache:
    enabled: true
    backend: redis
    ttl: 1h
    redis:
      address: redis:6379
      db: 2
recall:
  similarity_threshold: 0.5
  default_limit: 10
  recency_half_life: 48h
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	loader := NewLoader()
	cfg, err := loader.Load(configPath, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.App.Name != "yaml-test" {
		t.Errorf("expected 'yaml-test', got '%s'", cfg.App.Name)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("expected 9999, got %d", cfg.Server.Port)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected 'debug', got '%s'", cfg.Log.Level)
	}
	if cfg.Storage.Type != "memory" {
		t.Errorf("expected storage type 'memory', got '%s'", cfg.Storage.Type)
	}
	if cfg.Embedding.Provider != "mock" {
		t.Errorf("expected provider 'mock', got '%s'", cfg.Embedding.Provider)
	}
	if cfg.Embedding.Dimensions != 8 {
		t.Errorf("expected 8 dimensions, got %d", cfg.Embedding.Dimensions)
	}
	if cfg.Embedding.RetryDelay != 2*time.Second {
		t.Errorf("expected retry delay 2s, got %v", cfg.Embedding.RetryDelay)
	}
	if !cfg.Embedding.Cache.Enabled {
		t.Error("expected cache to be enabled")
	}
	if cfg.Embedding.Cache.Backend != "redis" {
		t.Errorf("expected cache backend 'redis', got '%s'", cfg.Embedding.Cache.Backend)
	}
	if cfg.Embedding.Cache.Redis.Address != "redis:6379" {
		t.Errorf("expected redis address 'redis:6379', got '%s'", cfg.Embedding.Cache.Redis.Address)
	}
	if cfg.Recall.SimilarityThreshold != 0.5 {
		t.Errorf("expected threshold 0.5, got %f", cfg.Recall.SimilarityThreshold)
	}
	if cfg.Recall.RecencyHalfLife != 48*time.Hour {
		t.Errorf("expected half-life 48h, got %v", cfg.Recall.RecencyHalfLife)
	}
	// Untouched sections keep their defaults.
	if cfg.Metrics.Port != 9091 {
		t.Errorf("expected metrics port 9091, got %d", cfg.Metrics.Port)
	}
	if cfg.Embedding.Workers != 2 {
		t.Errorf("expected workers 2, got %d", cfg.Embedding.Workers)
	}
}

func TestLoader_LoadJSONFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	jsonContent := `{
		"app": {
			"name": "json-test",
			"environment": "staging"
		},
		"server": {
			"port": 8888
		},
		"log": {
			"level": "warn",
			"format": "json"
		}
	}`
	if err := os.WriteFile(configPath, []byte(jsonContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	loader := NewLoader()
	cfg, err := loader.Load(configPath, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.App.Name != "json-test" {
		t.Errorf("expected 'json-test', got '%s'", cfg.App.Name)
	}
	if cfg.Server.Port != 8888 {
		t.Errorf("expected 8888, got %d", cfg.Server.Port)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("expected 'warn', got '%s'", cfg.Log.Level)
	}
}

func TestLoader_LoadInvalidFile(t *testing.T) {
	loader := NewLoader()

	_, err := loader.Load("/nonexistent/config.yaml", nil)
	if err == nil {
		t.Error("expected error for non-existent file")
	}
}

func TestLoader_LoadUnsupportedFormat(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")

	if err := os.WriteFile(configPath, []byte("app = 'test'"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	loader := NewLoader()
	_, err := loader.Load(configPath, nil)
	if err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestLoader_EnvVars(t *testing.T) {
	t.Setenv("MEMKEEP_APP_NAME", "env-test")
	t.Setenv("MEMKEEP_SERVER_PORT", "7777")
	t.Setenv("MEMKEEP_LOG_LEVEL", "error")
	t.Setenv("MEMKEEP_STORAGE_TYPE", "memory")

	loader := NewLoader()
	cfg, err := loader.Load("", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.App.Name != "env-test" {
		t.Errorf("expected 'env-test', got '%s'", cfg.App.Name)
	}
	if cfg.Server.Port != 7777 {
		t.Errorf("expected 7777, got %d", cfg.Server.Port)
	}
	if cfg.Log.Level != "error" {
		t.Errorf("expected 'error', got '%s'", cfg.Log.Level)
	}
	if cfg.Storage.Type != "memory" {
		t.Errorf("expected 'memory', got '%s'", cfg.Storage.Type)
	}
}

func TestLoader_Overrides(t *testing.T) {
	loader := NewLoader()
	cfg, err := loader.Load("", map[string]interface{}{
		"server.port":          6060,
		"embedding.provider":   "mock",
		"recall.default_limit": 5,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 6060 {
		t.Errorf("expected 6060, got %d", cfg.Server.Port)
	}
	if cfg.Embedding.Provider != "mock" {
		t.Errorf("expected 'mock', got '%s'", cfg.Embedding.Provider)
	}
	if cfg.Recall.DefaultLimit != 5 {
		t.Errorf("expected 5, got %d", cfg.Recall.DefaultLimit)
	}
	// Overrides leave sibling defaults intact.
	if cfg.Recall.VectorWeight != 0.45 {
		t.Errorf("expected vector weight 0.45, got %f", cfg.Recall.VectorWeight)
	}
}

func TestLoader_FileRejectedByValidation(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
log:
  level: loud
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	loader := NewLoader()
	_, err := loader.Load(configPath, nil)
	if err == nil {
		t.Fatal("expected validation error for bad log level")
	}
}
