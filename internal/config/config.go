package config

import (
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	validLogLevels     = []string{"debug", "info", "warn", "error"}
	validStoreBackends = []string{"memory", "file", "redis"}
	validTraceModes    = []string{"off", "errors", "sampled", "detailed"}
)

// Config is the root application configuration.
type Config struct {
	Server    ServerConfig
	GitHub    GitHubConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
	Retry     RetryConfig
	Enrich    EnrichConfig
	Bulk      BulkConfig
	Store     StoreConfig
	Health    HealthConfig
	Telemetry TelemetryConfig
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	LogLevel   string `yaml:"log_level"`
}

// GitHubConfig configures GitHub API interactions.
type GitHubConfig struct {
	APIBaseURL          string
	RequestTimeout      time.Duration
	RateLimitWaitBudget time.Duration
}

// CacheConfig configures the response cache.
type CacheConfig struct {
	TTL          time.Duration
	SweepEnabled bool
}

// RateLimitConfig configures rate-limit backoff behavior.
type RateLimitConfig struct {
	FallbackBackoff time.Duration
	MinResetBuffer  time.Duration
}

// RetryConfig configures transient-failure retries.
type RetryConfig struct {
	MaxAttempts int
	Delay       time.Duration
}

// EnrichConfig configures enrichment fan-out.
type EnrichConfig struct {
	Concurrency int `yaml:"concurrency"`
}

// BulkConfig configures the cross-repository commit sweep.
type BulkConfig struct {
	MaxRepos  int
	RepoDelay time.Duration
}

// StoreConfig selects and configures the persistent key-value backend.
type StoreConfig struct {
	Backend       string `yaml:"backend"`
	FileDir       string `yaml:"file_dir"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	RedisPrefix   string `yaml:"redis_prefix"`
}

// HealthConfig configures readiness probe behavior.
type HealthConfig struct {
	GitHubProbeInterval           time.Duration
	GitHubFailureThreshold        int
	GitHubRecoverSuccessThreshold int
}

// TelemetryConfig configures OpenTelemetry behavior.
type TelemetryConfig struct {
	OTELEnabled          bool
	OTELExporterEndpoint string
	OTELTraceMode        string
	OTELTraceSampleRatio float64
}

// Load reads configuration from YAML and validates the result.
func Load(reader io.Reader) (*Config, error) {
	if reader == nil {
		return nil, fmt.Errorf("config reader is nil")
	}

	decoder := yaml.NewDecoder(reader)
	decoder.KnownFields(true)

	var raw rawConfig
	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	cfg := raw.toConfig()
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when no config file is given.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Validate validates configuration values.
func (c *Config) Validate() error {
	var errs []string

	if !slices.Contains(validLogLevels, c.Server.LogLevel) {
		errs = append(errs, "server.log_level must be one of debug|info|warn|error")
	}

	if c.GitHub.RequestTimeout <= 0 {
		errs = append(errs, "github.request_timeout must be > 0")
	}
	if c.Cache.TTL <= 0 {
		errs = append(errs, "cache.ttl must be > 0")
	}
	if c.Retry.MaxAttempts <= 0 {
		errs = append(errs, "retry.max_attempts must be > 0")
	}
	if c.Enrich.Concurrency <= 0 {
		errs = append(errs, "enrich.concurrency must be > 0")
	}
	if c.Bulk.MaxRepos <= 0 {
		errs = append(errs, "bulk.max_repos must be > 0")
	}

	if !slices.Contains(validStoreBackends, c.Store.Backend) {
		errs = append(errs, "store.backend must be one of memory|file|redis")
	}
	if c.Store.Backend == "redis" && c.Store.RedisAddr == "" {
		errs = append(errs, "store.redis_addr is required when store.backend=redis")
	}

	if c.Telemetry.OTELEnabled {
		if !slices.Contains(validTraceModes, c.Telemetry.OTELTraceMode) {
			errs = append(errs, "telemetry.otel_trace_mode must be one of off|errors|sampled|detailed")
		}
		if c.Telemetry.OTELTraceSampleRatio < 0 || c.Telemetry.OTELTraceSampleRatio > 1 {
			errs = append(errs, "telemetry.otel_trace_sample_ratio must be within [0, 1]")
		}
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = "info"
	}
	if cfg.GitHub.RequestTimeout <= 0 {
		cfg.GitHub.RequestTimeout = 30 * time.Second
	}
	if cfg.GitHub.RateLimitWaitBudget <= 0 {
		cfg.GitHub.RateLimitWaitBudget = 15 * time.Minute
	}
	if cfg.Cache.TTL <= 0 {
		cfg.Cache.TTL = 5 * time.Minute
	}
	if cfg.RateLimit.FallbackBackoff <= 0 {
		cfg.RateLimit.FallbackBackoff = 30 * time.Second
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = 3
	}
	if cfg.Retry.Delay <= 0 {
		cfg.Retry.Delay = 2 * time.Second
	}
	if cfg.Enrich.Concurrency <= 0 {
		cfg.Enrich.Concurrency = 8
	}
	if cfg.Bulk.MaxRepos <= 0 {
		cfg.Bulk.MaxRepos = 10
	}
	if cfg.Bulk.RepoDelay <= 0 {
		cfg.Bulk.RepoDelay = 500 * time.Millisecond
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = "file"
	}
	if cfg.Store.RedisPrefix == "" {
		cfg.Store.RedisPrefix = "gitboard"
	}
	if cfg.Health.GitHubProbeInterval <= 0 {
		cfg.Health.GitHubProbeInterval = time.Minute
	}
	if cfg.Health.GitHubFailureThreshold <= 0 {
		cfg.Health.GitHubFailureThreshold = 3
	}
	if cfg.Health.GitHubRecoverSuccessThreshold <= 0 {
		cfg.Health.GitHubRecoverSuccessThreshold = 2
	}
	if cfg.Telemetry.OTELTraceMode == "" {
		cfg.Telemetry.OTELTraceMode = "off"
	}
}

type duration struct {
	time.Duration
}

func (d *duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil || value.Kind == 0 || strings.TrimSpace(value.Value) == "" {
		d.Duration = 0
		return nil
	}

	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("decode duration: %w", err)
	}

	parsed, err := parseFlexibleDuration(raw)
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func parseFlexibleDuration(raw string) (time.Duration, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, nil
	}

	if standard, err := time.ParseDuration(trimmed); err == nil {
		return standard, nil
	}

	if strings.HasSuffix(trimmed, "d") {
		return parseDurationWithMultiplier(strings.TrimSuffix(trimmed, "d"), 24)
	}
	if strings.HasSuffix(trimmed, "w") {
		return parseDurationWithMultiplier(strings.TrimSuffix(trimmed, "w"), 24*7)
	}

	return 0, fmt.Errorf("parse duration %q: invalid unit", raw)
}

func parseDurationWithMultiplier(numeric string, multiplierHours float64) (time.Duration, error) {
	value, err := strconv.ParseFloat(strings.TrimSpace(numeric), 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration value %q: %w", numeric, err)
	}

	nanos := value * multiplierHours * float64(time.Hour)
	if nanos > math.MaxInt64 || nanos < math.MinInt64 {
		return 0, fmt.Errorf("parse duration value %q: out of range", numeric)
	}
	return time.Duration(nanos), nil
}

type rawConfig struct {
	Server    ServerConfig `yaml:"server"`
	GitHub    rawGitHub    `yaml:"github"`
	Cache     rawCache     `yaml:"cache"`
	RateLimit rawRateLimit `yaml:"rate_limit"`
	Retry     rawRetry     `yaml:"retry"`
	Enrich    EnrichConfig `yaml:"enrich"`
	Bulk      rawBulk      `yaml:"bulk"`
	Store     StoreConfig  `yaml:"store"`
	Health    rawHealth    `yaml:"health"`
	Telemetry rawTelemetry `yaml:"telemetry"`
}

type rawGitHub struct {
	APIBaseURL          string   `yaml:"api_base_url"`
	RequestTimeout      duration `yaml:"request_timeout"`
	RateLimitWaitBudget duration `yaml:"rate_limit_wait_budget"`
}

type rawCache struct {
	TTL          duration `yaml:"ttl"`
	SweepEnabled bool     `yaml:"sweep_enabled"`
}

type rawRateLimit struct {
	FallbackBackoff duration `yaml:"fallback_backoff"`
	MinResetBuffer  duration `yaml:"min_reset_buffer"`
}

type rawRetry struct {
	MaxAttempts int      `yaml:"max_attempts"`
	Delay       duration `yaml:"delay"`
}

type rawBulk struct {
	MaxRepos  int      `yaml:"max_repos"`
	RepoDelay duration `yaml:"repo_delay"`
}

type rawHealth struct {
	GitHubProbeInterval           duration `yaml:"github_probe_interval"`
	GitHubFailureThreshold        int      `yaml:"github_failure_threshold"`
	GitHubRecoverSuccessThreshold int      `yaml:"github_recover_success_threshold"`
}

type rawTelemetry struct {
	OTELEnabled          bool    `yaml:"otel_enabled"`
	OTELExporterEndpoint string  `yaml:"otel_exporter_otlp_endpoint"`
	OTELTraceMode        string  `yaml:"otel_trace_mode"`
	OTELTraceSampleRatio float64 `yaml:"otel_trace_sample_ratio"`
}

func (r rawConfig) toConfig() *Config {
	return &Config{
		Server: r.Server,
		GitHub: GitHubConfig{
			APIBaseURL:          r.GitHub.APIBaseURL,
			RequestTimeout:      r.GitHub.RequestTimeout.Duration,
			RateLimitWaitBudget: r.GitHub.RateLimitWaitBudget.Duration,
		},
		Cache: CacheConfig{
			TTL:          r.Cache.TTL.Duration,
			SweepEnabled: r.Cache.SweepEnabled,
		},
		RateLimit: RateLimitConfig{
			FallbackBackoff: r.RateLimit.FallbackBackoff.Duration,
			MinResetBuffer:  r.RateLimit.MinResetBuffer.Duration,
		},
		Retry: RetryConfig{
			MaxAttempts: r.Retry.MaxAttempts,
			Delay:       r.Retry.Delay.Duration,
		},
		Enrich: r.Enrich,
		Bulk: BulkConfig{
			MaxRepos:  r.Bulk.MaxRepos,
			RepoDelay: r.Bulk.RepoDelay.Duration,
		},
		Store: r.Store,
		Health: HealthConfig{
			GitHubProbeInterval:           r.Health.GitHubProbeInterval.Duration,
			GitHubFailureThreshold:        r.Health.GitHubFailureThreshold,
			GitHubRecoverSuccessThreshold: r.Health.GitHubRecoverSuccessThreshold,
		},
		Telemetry: TelemetryConfig{
			OTELEnabled:          r.Telemetry.OTELEnabled,
			OTELExporterEndpoint: r.Telemetry.OTELExporterEndpoint,
			OTELTraceMode:        r.Telemetry.OTELTraceMode,
			OTELTraceSampleRatio: r.Telemetry.OTELTraceSampleRatio,
		},
	}
}
