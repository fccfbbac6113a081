// Package config loads and validates taskdeck configuration from
// .taskdeck.yaml using Viper, falling back to shipped defaults when no
// file is present.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/taskdeck/taskdeck/pkg/models"
)

// Manager defines the interface for loading and validating taskdeck
// configuration.
type Manager interface {
	Load() (*models.Config, error)
	Validate(cfg *models.Config) error
}

// viperManager implements Manager using Viper for reading the YAML
// configuration file.
type viperManager struct {
	// basePath is the directory where .taskdeck.yaml resides.
	basePath string
}

// NewManager creates a Manager that reads configuration relative to
// basePath.
func NewManager(basePath string) Manager {
	return &viperManager{basePath: basePath}
}

// Default returns a Config populated with the shipped defaults.
func Default() *models.Config {
	return &models.Config{
		CLI: models.CLIConfig{
			Binary:  "task-master",
			Timeout: 30 * time.Second,
		},
		Retry: models.RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   time.Second,
			MaxDelay:    30 * time.Second,
			Multiplier:  2.0,
			Jitter:      true,
		},
		Breaker: models.BreakerConfig{
			FailureThreshold: 5,
			ResetTimeout:     time.Minute,
		},
		Cache: models.CacheConfig{
			Dir:             ".taskdeck/cache",
			MaxSize:         50 * 1024 * 1024,
			DefaultTTL:      5 * time.Minute,
			CleanupInterval: 10 * time.Minute,
			Persist:         true,
		},
		Fallback: models.FallbackConfig{
			TTL: 30 * time.Minute,
		},
	}
}

// Load reads .taskdeck.yaml from the base path. Missing keys fall back
// to the shipped defaults; a missing file returns the defaults
// unchanged.
func (m *viperManager) Load() (*models.Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigName(".taskdeck")
	v.SetConfigType("yaml")
	v.AddConfigPath(m.basePath)

	// Set Viper defaults so missing keys fall back gracefully.
	v.SetDefault("cli.binary", cfg.CLI.Binary)
	v.SetDefault("cli.timeout", cfg.CLI.Timeout)
	v.SetDefault("cli.workdir", cfg.CLI.WorkDir)
	v.SetDefault("retry.max_attempts", cfg.Retry.MaxAttempts)
	v.SetDefault("retry.base_delay", cfg.Retry.BaseDelay)
	v.SetDefault("retry.max_delay", cfg.Retry.MaxDelay)
	v.SetDefault("retry.multiplier", cfg.Retry.Multiplier)
	v.SetDefault("retry.jitter", cfg.Retry.Jitter)
	v.SetDefault("breaker.failure_threshold", cfg.Breaker.FailureThreshold)
	v.SetDefault("breaker.reset_timeout", cfg.Breaker.ResetTimeout)
	v.SetDefault("cache.dir", cfg.Cache.Dir)
	v.SetDefault("cache.max_size", cfg.Cache.MaxSize)
	v.SetDefault("cache.default_ttl", cfg.Cache.DefaultTTL)
	v.SetDefault("cache.cleanup_interval", cfg.Cache.CleanupInterval)
	v.SetDefault("cache.compression", cfg.Cache.Compression)
	v.SetDefault("cache.persist", cfg.Cache.Persist)
	v.SetDefault("fallback.ttl", cfg.Fallback.TTL)
	v.SetDefault("fallback.static_dataset", cfg.Fallback.StaticDataset)
	v.SetDefault("fallback.epics_path", cfg.Fallback.EpicsPath)
	v.SetDefault("notifications.enabled", cfg.Notifications.Enabled)
	v.SetDefault("notifications.slack.webhook_url", cfg.Notifications.Slack.WebhookURL)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// No config file found, return defaults.
			return cfg, nil
		}
		return nil, fmt.Errorf("reading .taskdeck.yaml: %w", err)
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing .taskdeck.yaml: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for invalid values and returns a
// clear error message identifying every problem found.
func (m *viperManager) Validate(cfg *models.Config) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	var errs []string

	if cfg.CLI.Binary == "" {
		errs = append(errs, "cli.binary must not be empty")
	}
	if cfg.CLI.Timeout <= 0 {
		errs = append(errs, fmt.Sprintf("cli.timeout must be positive, got %s", cfg.CLI.Timeout))
	}

	if cfg.Retry.MaxAttempts < 1 {
		errs = append(errs, fmt.Sprintf("retry.max_attempts must be at least 1, got %d", cfg.Retry.MaxAttempts))
	}
	if cfg.Retry.BaseDelay <= 0 {
		errs = append(errs, fmt.Sprintf("retry.base_delay must be positive, got %s", cfg.Retry.BaseDelay))
	}
	if cfg.Retry.MaxDelay < cfg.Retry.BaseDelay {
		errs = append(errs, fmt.Sprintf(
			"retry.max_delay %s must not be below retry.base_delay %s",
			cfg.Retry.MaxDelay, cfg.Retry.BaseDelay,
		))
	}
	if cfg.Retry.Multiplier < 1 {
		errs = append(errs, fmt.Sprintf("retry.multiplier must be at least 1, got %g", cfg.Retry.Multiplier))
	}

	if cfg.Breaker.FailureThreshold < 1 {
		errs = append(errs, fmt.Sprintf("breaker.failure_threshold must be at least 1, got %d", cfg.Breaker.FailureThreshold))
	}
	if cfg.Breaker.ResetTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("breaker.reset_timeout must be positive, got %s", cfg.Breaker.ResetTimeout))
	}

	if cfg.Cache.MaxSize <= 0 {
		errs = append(errs, fmt.Sprintf("cache.max_size must be positive, got %d", cfg.Cache.MaxSize))
	}
	if cfg.Cache.DefaultTTL <= 0 {
		errs = append(errs, fmt.Sprintf("cache.default_ttl must be positive, got %s", cfg.Cache.DefaultTTL))
	}
	if cfg.Cache.CleanupInterval <= 0 {
		errs = append(errs, fmt.Sprintf("cache.cleanup_interval must be positive, got %s", cfg.Cache.CleanupInterval))
	}
	if cfg.Cache.Persist && cfg.Cache.Dir == "" {
		errs = append(errs, "cache.dir must not be empty when cache.persist is enabled")
	}

	if cfg.Fallback.TTL <= 0 {
		errs = append(errs, fmt.Sprintf("fallback.ttl must be positive, got %s", cfg.Fallback.TTL))
	}

	if cfg.Notifications.Enabled && cfg.Notifications.Slack.WebhookURL == "" {
		errs = append(errs, "notifications.slack.webhook_url must be set when notifications are enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}
