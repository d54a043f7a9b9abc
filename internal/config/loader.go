// Package config provides centralized configuration management for
// ChatRelay. Defaults, a YAML config file, and CHATRELAY_* environment
// variables are merged through viper and decoded into typed structs.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const appName = "chatrelay"

var (
	// appConfig holds the current application configuration
	appConfig *Config
	configMu  sync.RWMutex
)

// SetDefaults installs the shipped defaults on the viper instance.
// Called before the config file and environment are merged in.
func SetDefaults(v *viper.Viper) {
	if v == nil {
		v = viper.GetViper()
	}

	// Server defaults
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")

	// Store defaults
	v.SetDefault("store.driver", "libsql")
	v.SetDefault("store.keep_per_chat", 40)
	v.SetDefault("store.flush_size", 16)
	v.SetDefault("store.flush_interval", "5s")

	// Upstream defaults
	// api_key defaults to empty so the env binding is always visible
	v.SetDefault("upstream.api_key", "")
	v.SetDefault("upstream.base_url", "https://api.openai.com/v1")
	v.SetDefault("upstream.model", "gpt-4o-mini")
	v.SetDefault("upstream.image_model", "gpt-4o")
	v.SetDefault("upstream.temperature", 0.7)
	v.SetDefault("upstream.max_tokens", 1024)
	v.SetDefault("upstream.max_concurrent", 5)
	v.SetDefault("upstream.max_attempts", 3)
	v.SetDefault("upstream.attempt_timeout", "120s")
	v.SetDefault("upstream.backoff_base", "400ms")

	// Queue defaults
	v.SetDefault("queue.capacity", 3)
	v.SetDefault("queue.max_attempts", 2)
	v.SetDefault("queue.attempt_timeout", "180s")
	v.SetDefault("queue.backoff_base", "1s")
	v.SetDefault("queue.stale_age", "5m")
	v.SetDefault("queue.shutdown_grace", "30s")

	// Engine defaults
	v.SetDefault("engine.history_limit", 12)
	v.SetDefault("engine.max_image_bytes", 10*1024*1024)
	v.SetDefault("engine.page_length", 3500)
	v.SetDefault("engine.page_cache_size", 256)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.profile", "SIMPLE")

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)

	// Health defaults
	v.SetDefault("health.enabled", true)

	// Debug defaults
	v.SetDefault("debug.enabled", false)
	v.SetDefault("debug.pprof_enabled", false)
}

// EnvKeyReplacer maps nested config keys to environment variable
// names: "server.read_timeout" reads CHATRELAY_SERVER_READ_TIMEOUT.
func EnvKeyReplacer() *strings.Replacer {
	return strings.NewReplacer(".", "_")
}

// Load decodes the merged viper state into a typed Config.
//
// This function is safe to call multiple times (e.g., for config reload)
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.GetViper()
	}

	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			mapstructure.StringToFloat64HookFunc(),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if strings.TrimSpace(cfg.Store.URL) == "" && strings.TrimSpace(cfg.Store.Path) == "" {
		cfg.Store.Path = DefaultStorePath()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	setConfig(cfg)

	return cfg, nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		return fmt.Errorf("invalid metrics port: %d", c.Metrics.Port)
	}
	if c.Engine.PageLength < 0 {
		return fmt.Errorf("invalid page length: %d", c.Engine.PageLength)
	}
	if c.Upstream.MaxConcurrent < 0 {
		return fmt.Errorf("invalid upstream concurrency: %d", c.Upstream.MaxConcurrent)
	}
	for kind, rule := range c.RateLimit.Rules {
		if rule.MaxRequests < 0 || rule.Window < 0 || rule.BlockDuration < 0 {
			return fmt.Errorf("invalid rate limit rule for %q", kind)
		}
	}
	return nil
}

// GetConfig returns the current application configuration (thread-safe)
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

// setConfig updates the current configuration (thread-safe)
func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}

// DefaultConfigPath returns the XDG-compliant path to the user config file.
func DefaultConfigPath() string {
	configDir := gfconfig.GetAppConfigDir(appName)
	if strings.TrimSpace(configDir) == "" {
		return ""
	}
	return filepath.Join(configDir, "config.yaml")
}

// DefaultDataDir returns the XDG-compliant data directory for the app.
func DefaultDataDir() string {
	return gfconfig.GetAppDataDir(appName)
}

// DefaultStorePath returns the XDG-compliant path to the database file.
func DefaultStorePath() string {
	dataDir := gfconfig.GetAppDataDir(appName)
	if strings.TrimSpace(dataDir) == "" {
		return "./" + appName + ".db"
	}
	return filepath.Join(dataDir, appName+".db")
}
