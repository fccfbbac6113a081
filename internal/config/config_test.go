package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_NoConfigFileReturnsDefaults(t *testing.T) {
	m := NewManager(t.TempDir())

	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.CLI.Binary != "task-master" {
		t.Errorf("CLI.Binary = %s, want task-master", cfg.CLI.Binary)
	}
	if cfg.CLI.Timeout != 30*time.Second {
		t.Errorf("CLI.Timeout = %s, want 30s", cfg.CLI.Timeout)
	}
	if cfg.Retry.MaxAttempts != 3 {
		t.Errorf("Retry.MaxAttempts = %d, want 3", cfg.Retry.MaxAttempts)
	}
	if !cfg.Retry.Jitter {
		t.Error("Retry.Jitter = false, want true")
	}
	if cfg.Breaker.FailureThreshold != 5 {
		t.Errorf("Breaker.FailureThreshold = %d, want 5", cfg.Breaker.FailureThreshold)
	}
	if cfg.Cache.MaxSize != 50*1024*1024 {
		t.Errorf("Cache.MaxSize = %d, want 50MB", cfg.Cache.MaxSize)
	}
	if !cfg.Cache.Persist {
		t.Error("Cache.Persist = false, want true")
	}
	if cfg.Fallback.TTL != 30*time.Minute {
		t.Errorf("Fallback.TTL = %s, want 30m", cfg.Fallback.TTL)
	}
}

func TestLoad_ReadsYAMLOverrides(t *testing.T) {
	dir := t.TempDir()
	body := `cli:
  binary: tm-custom
  timeout: 10s
retry:
  max_attempts: 5
breaker:
  failure_threshold: 2
cache:
  compression: true
notifications:
  enabled: true
  slack:
    webhook_url: https://hooks.slack.example/T000/B000
`
	if err := os.WriteFile(filepath.Join(dir, ".taskdeck.yaml"), []byte(body), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	m := NewManager(dir)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.CLI.Binary != "tm-custom" {
		t.Errorf("CLI.Binary = %s, want tm-custom", cfg.CLI.Binary)
	}
	if cfg.CLI.Timeout != 10*time.Second {
		t.Errorf("CLI.Timeout = %s, want 10s", cfg.CLI.Timeout)
	}
	if cfg.Retry.MaxAttempts != 5 {
		t.Errorf("Retry.MaxAttempts = %d, want 5", cfg.Retry.MaxAttempts)
	}
	if cfg.Breaker.FailureThreshold != 2 {
		t.Errorf("Breaker.FailureThreshold = %d, want 2", cfg.Breaker.FailureThreshold)
	}
	if !cfg.Cache.Compression {
		t.Error("Cache.Compression = false, want true")
	}
	if !cfg.Notifications.Enabled {
		t.Error("Notifications.Enabled = false, want true")
	}

	// Untouched keys keep their defaults.
	if cfg.Retry.BaseDelay != time.Second {
		t.Errorf("Retry.BaseDelay = %s, want 1s", cfg.Retry.BaseDelay)
	}
	if cfg.Breaker.ResetTimeout != time.Minute {
		t.Errorf("Breaker.ResetTimeout = %s, want 1m", cfg.Breaker.ResetTimeout)
	}
}

func TestValidate_DefaultsAreValid(t *testing.T) {
	m := NewManager(t.TempDir())
	if err := m.Validate(Default()); err != nil {
		t.Errorf("Validate(defaults) error = %v", err)
	}
}

func TestValidate_AggregatesAllProblems(t *testing.T) {
	m := NewManager(t.TempDir())

	cfg := Default()
	cfg.CLI.Binary = ""
	cfg.Retry.MaxAttempts = 0
	cfg.Breaker.FailureThreshold = 0
	cfg.Cache.MaxSize = -1

	err := m.Validate(cfg)
	if err == nil {
		t.Fatal("Validate() = nil, want aggregated errors")
	}

	msg := err.Error()
	for _, want := range []string{
		"config validation failed",
		"cli.binary must not be empty",
		"retry.max_attempts must be at least 1",
		"breaker.failure_threshold must be at least 1",
		"cache.max_size must be positive",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("error missing %q:\n%s", want, msg)
		}
	}
}

func TestValidate_NotificationsNeedWebhook(t *testing.T) {
	m := NewManager(t.TempDir())

	cfg := Default()
	cfg.Notifications.Enabled = true

	err := m.Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "webhook_url") {
		t.Errorf("Validate() = %v, want webhook_url error", err)
	}
}

func TestValidate_NilConfig(t *testing.T) {
	m := NewManager(t.TempDir())
	if err := m.Validate(nil); err == nil {
		t.Error("Validate(nil) = nil, want error")
	}
}

func TestValidate_MaxDelayBelowBaseDelay(t *testing.T) {
	m := NewManager(t.TempDir())

	cfg := Default()
	cfg.Retry.BaseDelay = 10 * time.Second
	cfg.Retry.MaxDelay = time.Second

	err := m.Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "retry.max_delay") {
		t.Errorf("Validate() = %v, want max_delay error", err)
	}
}
