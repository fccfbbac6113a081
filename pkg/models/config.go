package models

import "time"

// CLIConfig configures how the wrapped Task Master binary is invoked.
type CLIConfig struct {
	Binary  string        `yaml:"binary" mapstructure:"binary"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
	WorkDir string        `yaml:"workdir,omitempty" mapstructure:"workdir"`
}

// RetryConfig configures the recovery orchestrator's retry loop.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay" mapstructure:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay" mapstructure:"max_delay"`
	Multiplier  float64       `yaml:"multiplier" mapstructure:"multiplier"`
	Jitter      bool          `yaml:"jitter" mapstructure:"jitter"`
}

// BreakerConfig configures the circuit breaker.
type BreakerConfig struct {
	FailureThreshold int           `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeout     time.Duration `yaml:"reset_timeout" mapstructure:"reset_timeout"`
}

// CacheConfig configures the offline cache store.
type CacheConfig struct {
	Dir             string        `yaml:"dir" mapstructure:"dir"`
	MaxSize         int64         `yaml:"max_size" mapstructure:"max_size"`
	DefaultTTL      time.Duration `yaml:"default_ttl" mapstructure:"default_ttl"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" mapstructure:"cleanup_interval"`
	Compression     bool          `yaml:"compression" mapstructure:"compression"`
	Persist         bool          `yaml:"persist" mapstructure:"persist"`
}

// FallbackConfig configures the fallback data router.
type FallbackConfig struct {
	TTL           time.Duration `yaml:"ttl" mapstructure:"ttl"`
	StaticDataset string        `yaml:"static_dataset,omitempty" mapstructure:"static_dataset"`
	EpicsPath     string        `yaml:"epics_path,omitempty" mapstructure:"epics_path"`
}

// SlackConfig configures the Slack webhook notifier.
type SlackConfig struct {
	WebhookURL string `yaml:"webhook_url,omitempty" mapstructure:"webhook_url"`
}

// NotificationsConfig configures degradation notifications.
type NotificationsConfig struct {
	Enabled bool        `yaml:"enabled" mapstructure:"enabled"`
	Slack   SlackConfig `yaml:"slack,omitempty" mapstructure:"slack"`
}

// Config holds all taskdeck settings read from .taskdeck.yaml via Viper.
type Config struct {
	CLI           CLIConfig           `yaml:"cli" mapstructure:"cli"`
	Retry         RetryConfig         `yaml:"retry" mapstructure:"retry"`
	Breaker       BreakerConfig       `yaml:"breaker" mapstructure:"breaker"`
	Cache         CacheConfig         `yaml:"cache" mapstructure:"cache"`
	Fallback      FallbackConfig      `yaml:"fallback" mapstructure:"fallback"`
	Notifications NotificationsConfig `yaml:"notifications" mapstructure:"notifications"`
}
