// Package internal provides the App struct that wires all components of
// taskdeck together and initializes the CLI layer.
package internal

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/taskdeck/taskdeck/internal/cli"
	"github.com/taskdeck/taskdeck/internal/config"
	"github.com/taskdeck/taskdeck/internal/fallback"
	"github.com/taskdeck/taskdeck/internal/integration"
	"github.com/taskdeck/taskdeck/internal/observability"
	"github.com/taskdeck/taskdeck/internal/resilience"
	"github.com/taskdeck/taskdeck/internal/storage"
	"github.com/taskdeck/taskdeck/pkg/models"
)

// App holds all service dependencies for taskdeck.
type App struct {
	BasePath string
	Config   *models.Config

	// Resilience layer
	Classifier *resilience.Classifier
	Breaker    *resilience.CircuitBreaker
	Runner     *resilience.Executor

	// Storage layer
	Cache *storage.Store

	// Data routing
	Router *fallback.Router

	// Integration services
	CLI    integration.CLIExecutor
	Client integration.TaskMasterClient
	Probe  integration.ConnectivityProbe

	// Observability
	EventLog    observability.EventLog
	MetricsCalc observability.MetricsCalculator
	Notifier    observability.Notifier
}

// NewApp creates and wires all components of taskdeck. basePath is the
// directory holding .taskdeck.yaml and the cache directory (typically
// the project root, or TASKDECK_HOME).
func NewApp(basePath string) (*App, error) {
	app := &App{BasePath: basePath}

	// --- Configuration ---
	cfgMgr := config.NewManager(basePath)
	cfg, err := cfgMgr.Load()
	if err != nil {
		return nil, err
	}
	if err := cfgMgr.Validate(cfg); err != nil {
		return nil, err
	}
	app.Config = cfg

	// --- Observability ---
	eventLogPath := filepath.Join(basePath, ".taskdeck_events.jsonl")
	app.EventLog, err = observability.NewJSONLEventLog(eventLogPath)
	if err != nil {
		// Non-fatal: disable observability if the log can't be created.
		app.EventLog = nil
	}
	if app.EventLog != nil {
		app.MetricsCalc = observability.NewMetricsCalculator(app.EventLog)
	}
	app.Notifier = observability.NopNotifier{}
	if cfg.Notifications.Enabled && cfg.Notifications.Slack.WebhookURL != "" {
		app.Notifier = observability.NewSlackNotifier(cfg.Notifications.Slack.WebhookURL)
	}

	obs := &eventObserver{log: app.EventLog, notifier: app.Notifier}

	// --- Resilience layer ---
	app.Classifier = resilience.NewClassifier(cfg.Retry.MaxAttempts, obs)
	app.Breaker = resilience.NewCircuitBreaker(
		cfg.Breaker.FailureThreshold, cfg.Breaker.ResetTimeout, obs.BreakerStateChanged)
	app.Runner = resilience.NewExecutor(resilience.RetryPolicy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   cfg.Retry.BaseDelay,
		MaxDelay:    cfg.Retry.MaxDelay,
		Multiplier:  cfg.Retry.Multiplier,
		Jitter:      cfg.Retry.Jitter,
	}, app.Breaker, app.Classifier, obs, cfg.Fallback.TTL)

	// --- Storage layer ---
	pipeline := storage.DefaultPipeline()
	if cfg.Cache.Compression {
		pipeline.Compression = storage.Gzip()
	}
	cacheDir := ""
	if cfg.Cache.Persist {
		cacheDir = cfg.Cache.Dir
		if !filepath.IsAbs(cacheDir) {
			cacheDir = filepath.Join(basePath, cacheDir)
		}
	}
	app.Cache, err = storage.NewStore(storage.Options{
		Dir:        cacheDir,
		MaxSize:    cfg.Cache.MaxSize,
		DefaultTTL: cfg.Cache.DefaultTTL,
		Pipeline:   pipeline,
		Sink:       obs,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing cache store: %w", err)
	}
	app.Cache.StartJanitor(cfg.Cache.CleanupInterval)

	// --- Integration services ---
	app.CLI = integration.NewCLIExecutor(cfg.CLI)
	app.Client = integration.NewTaskMasterClient(app.CLI, app.Runner, app.Cache, cfg.Cache.DefaultTTL)
	app.Probe = integration.NewConnectivityProbe("", "", 5*time.Second)

	// --- Data routing ---
	// Priority order: live CLI, offline cache, curated dataset, static.
	app.Router = fallback.NewRouter(obs.LevelChanged)
	app.Router.Register(integration.LiveSource(app.Client, 0))
	app.Router.Register(fallback.NewCacheSource(app.Cache, 1))
	if cfg.Fallback.StaticDataset != "" {
		dataset := cfg.Fallback.StaticDataset
		if !filepath.IsAbs(dataset) {
			dataset = filepath.Join(basePath, dataset)
		}
		app.Router.Register(fallback.NewFileSource("curated-dataset", 2, dataset))
	}
	app.Router.Register(fallback.NewStaticSource(3))

	// --- Wire CLI package-level variables ---
	cli.BasePath = basePath
	cli.Config = cfg
	cli.Client = app.Client
	cli.Router = app.Router
	cli.Cache = app.Cache
	cli.Runner = app.Runner
	cli.Classifier = app.Classifier
	cli.Probe = app.Probe
	cli.EventLog = app.EventLog
	cli.MetricsCalc = app.MetricsCalc

	return app, nil
}

// Close releases resources held by the App: the cache janitor and the
// event log file handle.
func (a *App) Close() error {
	if a.Cache != nil {
		_ = a.Cache.Close()
	}
	if a.EventLog != nil {
		return a.EventLog.Close()
	}
	return nil
}

// ResolveBasePath determines the base path for taskdeck data. It checks
// the TASKDECK_HOME env var, then walks up from the current directory
// looking for .taskdeck.yaml.
func ResolveBasePath() string {
	if home := os.Getenv("TASKDECK_HOME"); home != "" {
		return home
	}
	dir, err := os.Getwd()
	if err != nil {
		return "."
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, ".taskdeck.yaml")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	cwd, _ := os.Getwd()
	return cwd
}

// eventObserver fans resilience, cache, and degradation notifications
// into the JSONL event log, raising Slack alerts for the transitions an
// operator should hear about. It must never block the caller.
type eventObserver struct {
	log      observability.EventLog
	notifier observability.Notifier
}

func (o *eventObserver) write(level, eventType, message string, data map[string]any) {
	if o.log == nil {
		return
	}
	_ = o.log.Write(observability.NewEvent(level, eventType, message, data))
}

func (o *eventObserver) alert(severity observability.AlertSeverity, message string) {
	if o.notifier == nil {
		return
	}
	alert := observability.Alert{
		Severity:    severity,
		Message:     message,
		TriggeredAt: time.Now().UTC(),
	}
	go func() { _ = o.notifier.Notify([]observability.Alert{alert}) }()
}

func (o *eventObserver) ErrorClassified(cerr *resilience.ClassifiedError) {
	level := "WARN"
	switch cerr.Severity {
	case resilience.SeverityHigh, resilience.SeverityCritical:
		level = "ERROR"
	case resilience.SeverityLow:
		level = "INFO"
	}
	o.write(level, observability.EventErrorClassified, cerr.Message, map[string]any{
		"kind":        string(cerr.Kind),
		"severity":    string(cerr.Severity),
		"component":   cerr.Context.Component,
		"operation":   cerr.Context.Operation,
		"retry_count": cerr.Context.RetryCount,
	})
}

func (o *eventObserver) RetryAttempted(operationID string, attempt int, delay time.Duration, cerr *resilience.ClassifiedError) {
	data := map[string]any{
		"operation_id": operationID,
		"attempt":      attempt,
		"delay_ms":     delay.Milliseconds(),
	}
	if cerr != nil {
		data["kind"] = string(cerr.Kind)
	}
	o.write("WARN", observability.EventRetryAttempted,
		fmt.Sprintf("retrying %s (attempt %d)", operationID, attempt), data)
}

func (o *eventObserver) BreakerStateChanged(from, to resilience.BreakerState) {
	o.write("WARN", observability.EventBreakerStateChanged,
		fmt.Sprintf("circuit breaker %s -> %s", from, to), map[string]any{
			"from": string(from),
			"to":   string(to),
		})
	if to == resilience.BreakerOpen {
		o.alert(observability.SeverityHigh,
			"Task Master circuit breaker opened; live data suspended until the reset timeout elapses.")
	}
}

func (o *eventObserver) FallbackDataUsed(operationID string, strategy resilience.Strategy) {
	o.write("INFO", observability.EventFallbackUsed,
		fmt.Sprintf("served %s from %s data", operationID, strategy), map[string]any{
			"operation_id": operationID,
			"strategy":     string(strategy),
		})
}

func (o *eventObserver) OfflineModeActivated(operationID string) {
	o.write("WARN", observability.EventOfflineActivated,
		fmt.Sprintf("offline mode activated for %s", operationID), map[string]any{
			"operation_id": operationID,
		})
}

func (o *eventObserver) UserActionRequired(operationID string, action resilience.RecoveryAction) {
	o.write("WARN", observability.EventUserActionRequired, action.Description, map[string]any{
		"operation_id": operationID,
		"description":  action.Description,
	})
}

// CacheEvent implements storage.EventSink.
func (o *eventObserver) CacheEvent(event, key string) {
	var eventType string
	switch event {
	case "hit":
		eventType = observability.EventCacheHit
	case "miss":
		eventType = observability.EventCacheMiss
	case "evicted":
		eventType = observability.EventCacheEvicted
	case "expired":
		eventType = observability.EventCacheExpired
	default:
		eventType = "cache." + event
	}
	o.write("INFO", eventType, fmt.Sprintf("cache %s: %s", event, key), map[string]any{
		"key": key,
	})
}

// LevelChanged receives degradation level transitions from the router.
func (o *eventObserver) LevelChanged(from, to fallback.Level) {
	o.write("WARN", observability.EventDegradationChanged,
		fmt.Sprintf("degradation level %s -> %s", from, to), map[string]any{
			"from": string(from),
			"to":   string(to),
		})
	switch to {
	case fallback.LevelCritical:
		o.alert(observability.SeverityHigh, fallback.Describe(to).Message)
	case fallback.LevelSevere, fallback.LevelModerate:
		o.alert(observability.SeverityMedium, fallback.Describe(to).Message)
	}
}
