// Package common provides shared utilities for the copilot background-job
// service: configuration, logging, correlation ids, versioning and the
// startup banner.
package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for the copilot worker service.
type Config struct {
	Environment   string              `toml:"environment"`
	Server        ServerConfig        `toml:"server"`
	Logging       LoggingConfig       `toml:"logging"`
	AuditLog      AuditLogConfig      `toml:"audit_log"`
	BackgroundJob BackgroundJobConfig `toml:"background_job"`
	Planner       LLMConfig           `toml:"planner"`
	Executor      LLMConfig           `toml:"executor"`
	Thinker       LLMConfig           `toml:"thinker"`
	Platform      PlatformConfig      `toml:"platform"`
	Storage       StorageConfig       `toml:"storage"`
}

// ServerConfig holds HTTP server configuration for the webhook endpoint and
// the operator/health endpoints.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string   `toml:"level"`
	Format     string   `toml:"format"`
	Outputs    []string `toml:"outputs"`
	FilePath   string   `toml:"file_path"`
	MaxSizeMB  int      `toml:"max_size_mb"`
	MaxBackups int      `toml:"max_backups"`
}

// AuditLogConfig configures the append-only audit log and its retention
// cleaner. Recognized key: `AuditLog:RetentionDays` (spec §6).
type AuditLogConfig struct {
	RetentionDays          int `toml:"retention_days"`
	CleanupIntervalMinutes int `toml:"cleanup_interval_minutes"`
}

// GetRetention returns the configured retention window, defaulting to 90 days.
func (c *AuditLogConfig) GetRetention() time.Duration {
	days := c.RetentionDays
	if days <= 0 {
		days = 90
	}
	return time.Duration(days) * 24 * time.Hour
}

// GetCleanupInterval returns how often the RetentionCleaner sweeps, defaulting
// to once an hour.
func (c *AuditLogConfig) GetCleanupInterval() time.Duration {
	if c.CleanupIntervalMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(c.CleanupIntervalMinutes) * time.Minute
}

// RetryPolicyConfig mirrors the RetryPolicyCalculator's policy shape
// (spec §4.5): `{Enabled,MaxRetries,BaseDelayMilliseconds,MaxDelayMilliseconds,
// BackoffStrategy,MinJitterFactor,MaxJitterFactor}`.
type RetryPolicyConfig struct {
	Enabled               bool    `toml:"enabled"`
	MaxRetries            int     `toml:"max_retries"`
	BaseDelayMilliseconds int64   `toml:"base_delay_milliseconds"`
	MaxDelayMilliseconds  int64   `toml:"max_delay_milliseconds"`
	BackoffStrategy       string  `toml:"backoff_strategy"` // "constant" | "linear" | "exponential"
	MinJitterFactor       float64 `toml:"min_jitter_factor"`
	MaxJitterFactor       float64 `toml:"max_jitter_factor"`
}

// BackgroundJobConfig configures the queue, dispatcher and processor.
// Keys match spec §6 "BackgroundJob:*" exactly.
type BackgroundJobConfig struct {
	MaxConcurrency          int               `toml:"max_concurrency"`
	MaxQueueSize            int               `toml:"max_queue_size"`
	EnablePrioritization    bool              `toml:"enable_prioritization"`
	PlanTimeoutSeconds      int               `toml:"plan_timeout_seconds"`
	ExecutionTimeoutSeconds int               `toml:"execution_timeout_seconds"`
	RetryPolicy             RetryPolicyConfig `toml:"retry_policy"`
	DrainTimeoutSeconds     int               `toml:"drain_timeout_seconds"`
	WebhookRateLimitPerSec  float64           `toml:"webhook_rate_limit_per_second"`
	WebhookRateLimitBurst   int               `toml:"webhook_rate_limit_burst"`
}

// GetWebhookRateLimit returns the token-bucket rate and burst guarding the
// Dispatcher's webhook-intake path, defaulting to 10/s with a burst of 20.
func (c *BackgroundJobConfig) GetWebhookRateLimit() (ratePerSecond float64, burst int) {
	ratePerSecond = c.WebhookRateLimitPerSec
	if ratePerSecond <= 0 {
		ratePerSecond = 10
	}
	burst = c.WebhookRateLimitBurst
	if burst <= 0 {
		burst = 20
	}
	return ratePerSecond, burst
}

// GetMaxConcurrency returns the configured worker pool size, defaulting to 4.
func (c *BackgroundJobConfig) GetMaxConcurrency() int {
	if c.MaxConcurrency <= 0 {
		return 4
	}
	return c.MaxConcurrency
}

// GetMaxQueueSize returns the configured bounded-queue depth, defaulting to 1000.
func (c *BackgroundJobConfig) GetMaxQueueSize() int {
	if c.MaxQueueSize <= 0 {
		return 1000
	}
	return c.MaxQueueSize
}

// GetDrainTimeout returns how long StopAsync waits for in-flight jobs, defaulting to 30s.
func (c *BackgroundJobConfig) GetDrainTimeout() time.Duration {
	if c.DrainTimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.DrainTimeoutSeconds) * time.Second
}

// PlanTimeout returns the configured plan-handler timeout; zero disables it.
func (c *BackgroundJobConfig) PlanTimeout() time.Duration {
	if c.PlanTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.PlanTimeoutSeconds) * time.Second
}

// ExecutionTimeout returns the configured execute-handler timeout; zero disables it.
func (c *BackgroundJobConfig) ExecutionTimeout() time.Duration {
	if c.ExecutionTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.ExecutionTimeoutSeconds) * time.Second
}

// LLMConfig configures a Planner/Executor/Thinker language-model collaborator.
// Validation follows spec §6: OpenAI/Gemini require ApiKey+ModelId,
// AzureOpenAI requires ApiKey+AzureEndpoint+AzureDeployment. An empty
// Provider means "not configured" (valid only for the optional Thinker block).
type LLMConfig struct {
	Provider        string `toml:"provider"` // "openai" | "azureopenai" | "gemini"
	ApiKey          string `toml:"api_key"`
	ModelId         string `toml:"model_id"`
	AzureEndpoint   string `toml:"azure_endpoint"`
	AzureDeployment string `toml:"azure_deployment"`
}

// Validate checks that the provider's required fields are present.
func (c LLMConfig) Validate() error {
	switch strings.ToLower(c.Provider) {
	case "":
		return nil
	case "openai", "gemini":
		if c.ApiKey == "" || c.ModelId == "" {
			return fmt.Errorf("provider %q requires api_key and model_id", c.Provider)
		}
	case "azureopenai":
		if c.ApiKey == "" || c.AzureEndpoint == "" || c.AzureDeployment == "" {
			return fmt.Errorf("provider azureopenai requires api_key, azure_endpoint and azure_deployment")
		}
	default:
		return fmt.Errorf("unknown llm provider %q", c.Provider)
	}
	return nil
}

// PlatformConfig configures the platform-API (repository host) collaborator
// credential path: a short-lived JWT is minted from AppID+PrivateKey and
// exchanged for an installation access token (§3 of SPEC_FULL.md).
type PlatformConfig struct {
	AppID           string  `toml:"app_id"`
	PrivateKeyPath  string  `toml:"private_key_path"`
	WebhookLabel    string  `toml:"webhook_label"` // default "copilot-assisted"
	RateLimitPerSec float64 `toml:"rate_limit_per_second"`
	RateLimitBurst  int     `toml:"rate_limit_burst"`
}

// GetWebhookLabel returns the configured qualifying label, defaulting to
// "copilot-assisted" per spec §4.8.
func (c *PlatformConfig) GetWebhookLabel() string {
	if c.WebhookLabel == "" {
		return "copilot-assisted"
	}
	return c.WebhookLabel
}

// GetRateLimit returns the token-bucket rate and burst guarding the
// Platform-API collaborator wrapper, defaulting to 5/s with a burst of 10 so
// a flaky or throttling platform API cannot starve the worker pool.
func (c *PlatformConfig) GetRateLimit() (ratePerSecond float64, burst int) {
	ratePerSecond = c.RateLimitPerSec
	if ratePerSecond <= 0 {
		ratePerSecond = 5
	}
	burst = c.RateLimitBurst
	if burst <= 0 {
		burst = 10
	}
	return ratePerSecond, burst
}

// StorageConfig configures the optional SurrealDB-backed persistence layer
// for JobStatusStore/TaskStore/AuditLog. An empty Address means "use the
// in-memory stores" (the default for a single-process deployment).
type StorageConfig struct {
	Address  string `toml:"address"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	Namespace string `toml:"namespace"`
	Database string `toml:"database"`
}

// Enabled reports whether a SurrealDB connection is configured.
func (c *StorageConfig) Enabled() bool {
	return c.Address != ""
}

// NewDefaultConfig returns a Config with sensible defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			Outputs:    []string{"console"},
			MaxSizeMB:  100,
			MaxBackups: 3,
		},
		AuditLog: AuditLogConfig{
			RetentionDays: 90,
		},
		BackgroundJob: BackgroundJobConfig{
			MaxConcurrency:          4,
			MaxQueueSize:            1000,
			EnablePrioritization:    true,
			PlanTimeoutSeconds:      600,
			ExecutionTimeoutSeconds: 1800,
			DrainTimeoutSeconds:     30,
			RetryPolicy: RetryPolicyConfig{
				Enabled:               true,
				MaxRetries:            3,
				BaseDelayMilliseconds: 500,
				MaxDelayMilliseconds:  30_000,
				BackoffStrategy:       "exponential",
				MinJitterFactor:       0,
				MaxJitterFactor:       0.2,
			},
		},
		Platform: PlatformConfig{
			WebhookLabel: "copilot-assisted",
		},
	}
}

// LoadConfig loads configuration from TOML files with environment overrides.
// Later paths override earlier ones; missing files are skipped.
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for _, path := range paths {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Planner.Validate(); err != nil {
		return nil, fmt.Errorf("invalid planner config: %w", err)
	}
	if err := config.Executor.Validate(); err != nil {
		return nil, fmt.Errorf("invalid executor config: %w", err)
	}
	if err := config.Thinker.Validate(); err != nil {
		return nil, fmt.Errorf("invalid thinker config: %w", err)
	}

	return config, nil
}

// applyEnvOverrides applies COPILOT_* environment variable overrides to config.
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("COPILOT_ENV"); env != "" {
		config.Environment = env
	}
	if host := os.Getenv("COPILOT_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("COPILOT_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if level := os.Getenv("COPILOT_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if key := os.Getenv("COPILOT_PLANNER_API_KEY"); key != "" {
		config.Planner.ApiKey = key
	}
	if key := os.Getenv("COPILOT_EXECUTOR_API_KEY"); key != "" {
		config.Executor.ApiKey = key
	}
	if key := os.Getenv("COPILOT_THINKER_API_KEY"); key != "" {
		config.Thinker.ApiKey = key
	}
	if n := os.Getenv("COPILOT_MAX_CONCURRENCY"); n != "" {
		if v, err := strconv.Atoi(n); err == nil {
			config.BackgroundJob.MaxConcurrency = v
		}
	}
	if n := os.Getenv("COPILOT_MAX_QUEUE_SIZE"); n != "" {
		if v, err := strconv.Atoi(n); err == nil {
			config.BackgroundJob.MaxQueueSize = v
		}
	}
	if n := os.Getenv("COPILOT_RETENTION_DAYS"); n != "" {
		if v, err := strconv.Atoi(n); err == nil {
			config.AuditLog.RetentionDays = v
		}
	}
	if label := os.Getenv("COPILOT_WEBHOOK_LABEL"); label != "" {
		config.Platform.WebhookLabel = label
	}
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// resolveRelative joins a relative path onto a base directory, leaving
// absolute paths untouched. Nothing in the package calls it at present.
func resolveRelative(base, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}
