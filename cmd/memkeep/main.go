package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/memkeep/memkeep/config"
	"github.com/memkeep/memkeep/pkg/api"
	"github.com/memkeep/memkeep/pkg/api/handlers"
	"github.com/memkeep/memkeep/pkg/embedding"
	"github.com/memkeep/memkeep/pkg/logger"
	"github.com/memkeep/memkeep/pkg/memory"
	"github.com/memkeep/memkeep/pkg/metrics"
	"github.com/memkeep/memkeep/pkg/storage"
	"github.com/memkeep/memkeep/pkg/storage/memstore"
	"github.com/memkeep/memkeep/pkg/storage/sqlite"
	"github.com/memkeep/memkeep/pkg/telemetry/tracing"
	"github.com/memkeep/memkeep/pkg/usage"
	"github.com/memkeep/memkeep/pkg/version"
)

var (
	configPath  = flag.String("config", "", "Path to configuration file")
	versionFlag = flag.Bool("version", false, "Print version information")
	helpFlag    = flag.Bool("help", false, "Print help information")

	// CLI overrides
	serverPort = flag.Int("port", 0, "Override server port")
	logLevel   = flag.String("log-level", "", "Override log level")
	dbPath     = flag.String("db", "", "Override SQLite database path")
	provider   = flag.String("provider", "", "Override embedding provider (openai, mock)")
	debugMode  = flag.Bool("debug", false, "Enable debug mode")
)

func main() {
	flag.Parse()

	// Print help
	if *helpFlag {
		printHelp()
		os.Exit(0)
	}

	// Print version
	if *versionFlag {
		printVersion()
		os.Exit(0)
	}

	// Build CLI overrides map
	overrides := buildOverrides()

	// Load configuration
	cfg, err := config.Load(*configPath, overrides)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration:\n%s\n", err)
		os.Exit(1)
	}

	// Initialize logger with configuration
	logCfg := &logger.Config{
		Level:  logger.ParseLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	}
	if cfg.App.Debug || *debugMode {
		logCfg.Level = logger.DebugLevel
	}
	log := logger.New(logCfg)
	logger.SetGlobal(log)

	log.Info("Starting Memkeep",
		"version", version.Version,
		"buildTime", version.BuildTime,
		"gitCommit", version.GitCommit,
		"app", cfg.App.Name,
		"environment", cfg.App.Environment,
	)

	log.Debug("Configuration loaded", "config", cfg.String())

	// Create root context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Initialize tracing
	tracingShutdown, err := tracing.Init(ctx, cfg.Tracing, cfg.App.Name, version.Version)
	if err != nil {
		log.Error("Failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := tracingShutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down tracing", "error", err)
		}
	}()

	// Initialize storage backend
	var store storage.Store
	switch cfg.Storage.Type {
	case "sqlite":
		store, err = sqlite.New(cfg.Storage.SQLite.Path)
		if err != nil {
			log.Error("Failed to open SQLite storage", "error", err, "path", cfg.Storage.SQLite.Path)
			os.Exit(1)
		}
		log.Info("Initialized SQLite storage", "path", cfg.Storage.SQLite.Path)
	case "memory":
		store = memstore.New()
		log.Info("Initialized in-memory storage")
	default:
		store = memstore.New()
		log.Warn("Unknown storage type, using in-memory storage", "type", cfg.Storage.Type)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("Error closing storage", "error", err)
		}
	}()

	// Initialize metrics manager
	metricsCfg := metrics.Config{
		Enabled:               cfg.Metrics.Enabled,
		Port:                  cfg.Metrics.Port,
		Path:                  cfg.Metrics.Path,
		RecallDurationBuckets: metrics.DefaultConfig().RecallDurationBuckets,
		HTTPDurationBuckets:   metrics.DefaultConfig().HTTPDurationBuckets,
	}
	metricsManager := metrics.NewManager(metricsCfg)

	// Start metrics server if enabled
	if metricsManager.Enabled() {
		go func() {
			log.Info("Starting metrics server", "port", cfg.Metrics.Port, "path", cfg.Metrics.Path)
			if err := metricsManager.StartServer(ctx, cfg.Metrics.Port, cfg.Metrics.Path); err != nil {
				log.Error("Metrics server error", "error", err)
			}
		}()
	}

	// Initialize the embedding provider, wrapped in a cache when enabled.
	embedder, err := buildProvider(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to initialize embedding provider", "error", err)
		os.Exit(1)
	}

	// Initialize the usage ledger and embedding lifecycle.
	ledger := usage.NewLedger(store)
	lifecycle := memory.NewLifecycle(embedder, store, ledger, log, metricsManager, memory.LifecycleConfig{
		Workers:              cfg.Embedding.Workers,
		QueueSize:            cfg.Embedding.QueueSize,
		MaxAttempts:          cfg.Embedding.MaxAttempts,
		RetryDelay:           cfg.Embedding.RetryDelay,
		RepairSpacing:        cfg.Embedding.RepairSpacing,
		MaxInputChars:        cfg.Embedding.MaxInputChars,
		CostPerMillionTokens: cfg.Embedding.CostPerMillionTokens,
	})

	// Assemble and start the recall engine.
	eng := memory.NewEngine(store, lifecycle, memory.ScorerConfig{
		VectorWeight:        cfg.Recall.VectorWeight,
		LexicalWeight:       cfg.Recall.LexicalWeight,
		RecencyWeight:       cfg.Recall.RecencyWeight,
		ImportanceWeight:    cfg.Recall.ImportanceWeight,
		SimilarityThreshold: cfg.Recall.SimilarityThreshold,
		RecencyHalfLife:     cfg.Recall.RecencyHalfLife,
	},
		memory.WithEngineLogger(log),
		memory.WithEngineObserver(metricsManager),
		memory.WithDefaultLimit(cfg.Recall.DefaultLimit),
	)
	eng.Start()

	// Hot-reload log and recall settings when a config file is in use.
	if *configPath != "" {
		watcher := startConfigWatcher(ctx, cfg, overrides, log, eng)
		if watcher != nil {
			defer func() {
				if err := watcher.Stop(); err != nil {
					log.Error("Error stopping config watcher", "error", err)
				}
			}()
		}
	}

	// Initialize HTTP server with handlers
	apiHandlers := &api.Handlers{
		Memory:  handlers.NewMemoryHandler(eng, log),
		Recall:  handlers.NewRecallHandler(eng, log),
		Repair:  handlers.NewRepairHandler(eng, log),
		Usage:   handlers.NewUsageHandler(ledger, log),
		Stats:   handlers.NewStatsHandler(eng, log),
		Health:  handlers.NewHealthHandler(eng, version.Version),
		Metrics: metricsManager,
	}

	httpServer := api.NewHTTPServer(cfg, log, apiHandlers)

	// Start HTTP server in a separate goroutine
	serverErrChan := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port))
		if err := httpServer.Start(); err != nil {
			serverErrChan <- err
		}
	}()

	log.Info("Memkeep is running",
		"http_port", cfg.Server.Port,
		"metrics_port", cfg.Metrics.Port,
		"provider", embedder.Name(),
	)
	log.Info("Press Ctrl+C to stop")

	// Wait for shutdown signal or server error
	select {
	case sig := <-sigChan:
		log.Info("Received shutdown signal", "signal", sig)
	case err := <-serverErrChan:
		log.Error("HTTP server error", "error", err)
	case <-ctx.Done():
		log.Info("Context cancelled")
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.HTTP.ShutdownTimeout)
	defer shutdownCancel()

	// Shutdown HTTP server first
	log.Info("Shutting down HTTP server")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down HTTP server", "error", err)
	}

	// Drain embedding workers.
	log.Info("Stopping recall engine")
	eng.Stop()

	log.Info("Memkeep stopped gracefully")
}

// startConfigWatcher watches the config file and applies hot-reloadable
// settings in place. Log level and recall weights take effect
// immediately; settings that need a restart, such as the metrics
// port, only log a notice.
func startConfigWatcher(ctx context.Context, cfg *config.Config, overrides map[string]interface{}, log logger.Logger, eng *memory.Engine) *config.Watcher {
	watcher, err := config.NewWatcher(*configPath, config.NewLoader(),
		config.WithOverrides(overrides),
		config.WithWatcherLogger(log),
	)
	if err != nil {
		log.Warn("Config watcher unavailable, hot reload disabled", "error", err)
		return nil
	}

	var mu sync.Mutex
	current := config.ExtractHotReloadable(cfg)
	watcher.OnChange(func(next *config.Config) {
		mu.Lock()
		defer mu.Unlock()

		hot := config.ExtractHotReloadable(next)
		if !hot.Changed(current) {
			return
		}
		if hot.LogLevel != current.LogLevel {
			log.SetLevel(logger.ParseLevel(hot.LogLevel))
			log.Info("Log level updated", "level", hot.LogLevel)
		}
		if hot.LogFormat != current.LogFormat {
			log.Info("Log format change requires a restart", "format", hot.LogFormat)
		}
		if hot.Recall != current.Recall {
			eng.SetScorerConfig(memory.ScorerConfig{
				VectorWeight:        hot.Recall.VectorWeight,
				LexicalWeight:       hot.Recall.LexicalWeight,
				RecencyWeight:       hot.Recall.RecencyWeight,
				ImportanceWeight:    hot.Recall.ImportanceWeight,
				SimilarityThreshold: hot.Recall.SimilarityThreshold,
				RecencyHalfLife:     hot.Recall.RecencyHalfLife,
			})
			log.Info("Recall weights updated",
				"vector", hot.Recall.VectorWeight,
				"lexical", hot.Recall.LexicalWeight,
				"recency", hot.Recall.RecencyWeight,
				"importance", hot.Recall.ImportanceWeight,
			)
		}
		if hot.MetricsEnabled != current.MetricsEnabled ||
			hot.MetricsPort != current.MetricsPort ||
			hot.MetricsPath != current.MetricsPath {
			log.Info("Metrics server changes require a restart",
				"enabled", hot.MetricsEnabled,
				"port", hot.MetricsPort,
				"path", hot.MetricsPath,
			)
		}
		current = hot
	})

	go func() {
		if err := watcher.Watch(ctx); err != nil && ctx.Err() == nil {
			log.Error("Config watcher stopped", "error", err)
		}
	}()
	log.Info("Watching config file for changes", "path", *configPath)

	return watcher
}

// buildProvider assembles the configured embedding provider and wraps
// it in a cache when enabled.
func buildProvider(ctx context.Context, cfg *config.Config, log logger.Logger) (embedding.Provider, error) {
	var inner embedding.Provider
	switch cfg.Embedding.Provider {
	case "mock":
		inner = embedding.NewMockProvider(cfg.Embedding.Dimensions)
	default:
		if cfg.Embedding.APIKey == "" {
			log.Warn("No embedding API key configured, provider calls will fail until one is set")
		}
		inner = embedding.NewOpenAIProvider(
			cfg.Embedding.BaseURL,
			cfg.Embedding.APIKey,
			cfg.Embedding.Model,
			cfg.Embedding.Dimensions,
		)
	}

	if !cfg.Embedding.Cache.Enabled {
		return inner, nil
	}

	var cache embedding.Cache
	switch cfg.Embedding.Cache.Backend {
	case "redis":
		redisCache, err := embedding.NewRedisCache(ctx, embedding.RedisCacheConfig{
			Address:  cfg.Embedding.Cache.Redis.Address,
			Password: cfg.Embedding.Cache.Redis.Password,
			DB:       cfg.Embedding.Cache.Redis.DB,
			TTL:      cfg.Embedding.Cache.TTL,
		})
		if err != nil {
			return nil, fmt.Errorf("redis cache: %w", err)
		}
		cache = redisCache
		log.Info("Embedding cache enabled", "backend", "redis", "address", cfg.Embedding.Cache.Redis.Address)
	default:
		cache = embedding.NewMemoryCache(cfg.Embedding.Cache.TTL)
		log.Info("Embedding cache enabled", "backend", "memory", "ttl", cfg.Embedding.Cache.TTL)
	}

	return embedding.NewCachedProvider(inner, cache, log), nil
}

func buildOverrides() map[string]interface{} {
	overrides := make(map[string]interface{})

	if *serverPort != 0 {
		overrides["server.port"] = *serverPort
	}
	if *logLevel != "" {
		overrides["log.level"] = *logLevel
	}
	if *dbPath != "" {
		overrides["storage.sqlite.path"] = *dbPath
	}
	if *provider != "" {
		overrides["embedding.provider"] = *provider
	}
	if *debugMode {
		overrides["app.debug"] = true
	}

	return overrides
}

func printVersion() {
	fmt.Printf("Memkeep - Personal Memory Recall Engine\n")
	fmt.Printf("Version:    %s\n", version.Version)
	fmt.Printf("Build Time: %s\n", version.BuildTime)
	fmt.Printf("Git Commit: %s\n", version.GitCommit)
	fmt.Printf("Go Version: %s\n", version.GoVersion)
}

func printHelp() {
	fmt.Printf("Memkeep - Personal memory store with lexical, metadata, and vector recall\n\n")
	fmt.Printf("Usage: memkeep [options]\n\n")
	fmt.Printf("Options:\n")
	flag.PrintDefaults()
	fmt.Printf("\nExamples:\n")
	fmt.Printf("  memkeep                                   # Run with default config\n")
	fmt.Printf("  memkeep -config config.yaml               # Use specific config file\n")
	fmt.Printf("  memkeep -port 9090 -log-level debug       # Override specific options\n")
	fmt.Printf("  memkeep -provider mock -db :memory:       # Local development\n")
	fmt.Printf("  memkeep -version                          # Print version info\n")
}
