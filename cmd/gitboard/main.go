package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/gitboard/gitboard/internal/app"
	"github.com/gitboard/gitboard/internal/config"
	"github.com/gitboard/gitboard/internal/enrich"
	"github.com/gitboard/gitboard/internal/githubapi"
	"github.com/gitboard/gitboard/internal/health"
	"github.com/gitboard/gitboard/internal/prefs"
	"github.com/gitboard/gitboard/internal/service"
	"github.com/gitboard/gitboard/internal/store"
	"github.com/gitboard/gitboard/internal/telemetry"
	"github.com/gitboard/gitboard/internal/token"
)

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "gitboard: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to YAML config file (defaults apply when omitted)")
	flag.Parse()

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	loggerConfig := zap.NewProductionConfig()
	loggerConfig.Level = zap.NewAtomicLevelAt(logLevel(cfg.Server.LogLevel))
	logger, err := loggerConfig.Build()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	telemetryRuntime, err := telemetry.Setup(telemetry.Config{
		Enabled:          cfg.Telemetry.OTELEnabled,
		ServiceName:      "gitboard",
		TraceMode:        cfg.Telemetry.OTELTraceMode,
		TraceSampleRatio: cfg.Telemetry.OTELTraceSampleRatio,
	})
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = telemetryRuntime.Shutdown(shutdownCtx)
	}()

	rootCtx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	kv, err := buildStore(cfg)
	if err != nil {
		return fmt.Errorf("build store: %w", err)
	}

	tokens := token.NewStore(kv, logger)

	cache := githubapi.NewResponseCache(cfg.Cache.TTL, nil)
	if cfg.Cache.SweepEnabled {
		cache.StartSweeper(rootCtx)
	}

	httpClient := githubapi.NewHTTPClient(tokens, cfg.GitHub.RequestTimeout, nil)
	client := githubapi.NewClient(
		httpClient,
		tokens,
		cache,
		githubapi.RetryConfig{MaxAttempts: cfg.Retry.MaxAttempts, Delay: cfg.Retry.Delay},
		githubapi.RateLimitPolicy{
			FallbackBackoff: cfg.RateLimit.FallbackBackoff,
			MinResetBuffer:  cfg.RateLimit.MinResetBuffer,
		},
		cfg.GitHub.RateLimitWaitBudget,
	)
	paginator := githubapi.NewPaginator(client, logger)
	data, err := githubapi.NewDataClient(cfg.GitHub.APIBaseURL, client, paginator)
	if err != nil {
		return fmt.Errorf("build data client: %w", err)
	}

	enricher := enrich.New(data, logger, cfg.Enrich.Concurrency)
	svc := service.New(data, enricher, tokens, cache, logger)
	prefManager := prefs.NewManager(kv)

	monitor := health.NewMonitor(
		data,
		svc,
		logger,
		cfg.Health.GitHubProbeInterval,
		cfg.Health.GitHubFailureThreshold,
		cfg.Health.GitHubRecoverSuccessThreshold,
	)
	go monitor.Run(rootCtx)

	handlers := app.NewHandlers(svc, prefManager, logger)
	handler := app.NewHTTPHandler(handlers, promhttp.Handler(), health.NewHandler(monitor))
	server := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.ListenAddr))
		if serveErr := server.ListenAndServe(); serveErr != nil && serveErr != http.ErrServerClosed {
			serverErrCh <- serveErr
		}
		close(serverErrCh)
	}()

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case serveErr := <-serverErrCh:
		if serveErr != nil {
			return fmt.Errorf("http server failed: %w", serveErr)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}

	configFile, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config file: %w", err)
	}
	defer func() {
		_ = configFile.Close()
	}()

	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func buildStore(cfg *config.Config) (store.KV, error) {
	switch cfg.Store.Backend {
	case "memory":
		return store.NewMemoryStore(), nil
	case "file":
		return store.NewFileStore(cfg.Store.FileDir)
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Store.RedisAddr,
			Password: cfg.Store.RedisPassword,
			DB:       cfg.Store.RedisDB,
		})
		return store.NewRedisStore(client, store.RedisStoreConfig{Namespace: cfg.Store.RedisPrefix}), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

func logLevel(raw string) zapcore.Level {
	switch strings.ToLower(raw) {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
