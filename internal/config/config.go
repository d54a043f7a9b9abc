package config

import (
	"time"

	"github.com/chatrelay/chatrelay/internal/relay/ratelimit"
)

// Config represents the complete application configuration.
// Values come from three places, later ones winning:
// 1. Built-in defaults
// 2. Config file ($XDG_CONFIG_HOME/chatrelay/config.yaml)
// 3. Environment variables (CHATRELAY_*)
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Store     StoreConfig     `mapstructure:"store"`
	Upstream  UpstreamConfig  `mapstructure:"upstream"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Queue     QueueConfig     `mapstructure:"queue"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Health    HealthConfig    `mapstructure:"health"`
	Debug     DebugConfig     `mapstructure:"debug"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StoreConfig contains database configuration for libsql/Turso plus
// the history retention and flush tuning.
type StoreConfig struct {
	Driver    string `mapstructure:"driver"`
	Path      string `mapstructure:"path"`
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`

	KeepPerChat   int           `mapstructure:"keep_per_chat"`
	FlushSize     int           `mapstructure:"flush_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
}

// UpstreamConfig contains the completion API connection and the
// concurrency and retry policy for outbound calls.
type UpstreamConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`

	Model       string  `mapstructure:"model"`
	ImageModel  string  `mapstructure:"image_model"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`

	MaxConcurrent  int           `mapstructure:"max_concurrent"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout"`
	BackoffBase    time.Duration `mapstructure:"backoff_base"`
}

// RateLimitConfig contains per-action admission rules keyed by action
// kind (text, image, settings, command, global). Missing kinds use the
// shipped defaults.
type RateLimitConfig struct {
	Rules map[string]ratelimit.Rule `mapstructure:"rules"`
	VIPs  []int64                   `mapstructure:"vips"`
}

// QueueConfig contains the image pipeline bounds.
type QueueConfig struct {
	Capacity       int           `mapstructure:"capacity"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout"`
	BackoffBase    time.Duration `mapstructure:"backoff_base"`
	StaleAge       time.Duration `mapstructure:"stale_age"`
	ShutdownGrace  time.Duration `mapstructure:"shutdown_grace"`
}

// EngineConfig contains conversation and pagination settings.
type EngineConfig struct {
	SystemPrompt  string  `mapstructure:"system_prompt"`
	HistoryLimit  int     `mapstructure:"history_limit"`
	MaxImageBytes int64   `mapstructure:"max_image_bytes"`
	PageLength    int     `mapstructure:"page_length"`
	PageCacheSize int     `mapstructure:"page_cache_size"`
	AdminIDs      []int64 `mapstructure:"admin_ids"`
}

// LoggingConfig contains logging configuration
// Supports progressive logging profiles per Fulmen Forge Workhorse Standard:
// - SIMPLE: Console output only, minimal configuration (CLI tools)
// - STRUCTURED: Structured sinks, correlation IDs (API services)
// - ENTERPRISE: Multiple sinks, middleware, throttling, policy enforcement (production)
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`

	// Profile selects the logging complexity level
	// Valid values: SIMPLE, STRUCTURED, ENTERPRISE
	Profile string `mapstructure:"profile"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	// Enabled controls whether metrics are exposed
	Enabled bool `mapstructure:"enabled"`

	// Port is the dedicated metrics endpoint port (Prometheus format)
	// Metrics are also available at the main HTTP port in JSON format
	Port int `mapstructure:"port"`
}

// HealthConfig contains health check configuration
type HealthConfig struct {
	// Enabled controls whether health endpoints are exposed
	Enabled bool `mapstructure:"enabled"`
}

// DebugConfig contains debug and profiling configuration
type DebugConfig struct {
	// Enabled controls whether debug mode is active
	Enabled bool `mapstructure:"enabled"`

	// PprofEnabled controls whether pprof endpoints are exposed
	// WARNING: Only enable in development/staging environments
	PprofEnabled bool `mapstructure:"pprof_enabled"`
}
