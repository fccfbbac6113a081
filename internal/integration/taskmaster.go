package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/taskdeck/taskdeck/internal/fallback"
	"github.com/taskdeck/taskdeck/internal/resilience"
	"github.com/taskdeck/taskdeck/internal/storage"
	"github.com/taskdeck/taskdeck/pkg/models"
)

// liveSourceName tags data obtained directly from the CLI.
const liveSourceName = "task-master"

// TaskMasterClient is the resilient facade over the Task Master CLI.
// Every method runs through the recovery orchestrator: failures are
// classified, retried, and recovered from cached data before an error
// ever reaches the caller. Successful results are written to the
// offline cache for later fallback use.
type TaskMasterClient interface {
	GetTasks(ctx context.Context) ([]models.Task, error)
	GetStats(ctx context.Context) (*models.TaskStats, error)
	GetNextTask(ctx context.Context) (*models.NextTask, error)
	GetComplexityReport(ctx context.Context) (*models.ComplexityReport, error)
}

// taskMasterClient implements TaskMasterClient.
type taskMasterClient struct {
	cli      CLIExecutor
	runner   *resilience.Executor
	cache    *storage.Store
	cacheTTL time.Duration
}

// NewTaskMasterClient creates the facade. cache may be nil to disable
// offline caching.
func NewTaskMasterClient(cli CLIExecutor, runner *resilience.Executor, cache *storage.Store, cacheTTL time.Duration) TaskMasterClient {
	return &taskMasterClient{
		cli:      cli,
		runner:   runner,
		cache:    cache,
		cacheTTL: cacheTTL,
	}
}

// LiveSource wraps a client as the highest-priority router source.
func LiveSource(client TaskMasterClient, priority int) *fallback.Source {
	return &fallback.Source{
		Name:             liveSourceName,
		Priority:         priority,
		Available:        true,
		Tasks:            client.GetTasks,
		Stats:            client.GetStats,
		NextTask:         client.GetNextTask,
		ComplexityReport: client.GetComplexityReport,
	}
}

func (c *taskMasterClient) GetTasks(ctx context.Context) ([]models.Task, error) {
	value, err := c.execute(ctx, "get_tasks", func(ctx context.Context) (any, error) {
		res, err := c.cli.Run(ctx, "list", "--json")
		if err != nil {
			return nil, err
		}
		return parseTasks(res.Stdout)
	})
	if err != nil {
		return nil, err
	}
	tasks, err := coerce[[]models.Task](value)
	if err != nil {
		return nil, err
	}
	c.store("get_tasks", tasks)
	return tasks, nil
}

func (c *taskMasterClient) GetStats(ctx context.Context) (*models.TaskStats, error) {
	value, err := c.execute(ctx, "get_stats", func(ctx context.Context) (any, error) {
		res, err := c.cli.Run(ctx, "list", "--json")
		if err != nil {
			return nil, err
		}
		tasks, err := parseTasks(res.Stdout)
		if err != nil {
			return nil, err
		}
		stats := models.ComputeStats(tasks)
		stats.Source = liveSourceName
		return stats, nil
	})
	if err != nil {
		return nil, err
	}
	stats, err := coerce[*models.TaskStats](value)
	if err != nil {
		return nil, err
	}
	c.store("get_stats", stats)
	return stats, nil
}

func (c *taskMasterClient) GetNextTask(ctx context.Context) (*models.NextTask, error) {
	value, err := c.execute(ctx, "get_next_task", func(ctx context.Context) (any, error) {
		res, err := c.cli.Run(ctx, "next", "--json")
		if err != nil {
			return nil, err
		}
		return parseNextTask(res.Stdout)
	})
	if err != nil {
		return nil, err
	}
	next, err := coerce[*models.NextTask](value)
	if err != nil {
		return nil, err
	}
	c.store("get_next_task", next)
	return next, nil
}

func (c *taskMasterClient) GetComplexityReport(ctx context.Context) (*models.ComplexityReport, error) {
	value, err := c.execute(ctx, "get_complexity_report", func(ctx context.Context) (any, error) {
		res, err := c.cli.Run(ctx, "complexity-report", "--json")
		if err != nil {
			return nil, err
		}
		return parseComplexityReport(res.Stdout)
	})
	if err != nil {
		return nil, err
	}
	report, err := coerce[*models.ComplexityReport](value)
	if err != nil {
		return nil, err
	}
	c.store("get_complexity_report", report)
	return report, nil
}

// execute runs op through the recovery orchestrator with cache-backed
// recovery actions.
func (c *taskMasterClient) execute(ctx context.Context, operationID string, op resilience.Operation) (any, error) {
	opCtx := resilience.Context{
		Component: "taskmaster",
		Operation: operationID,
	}
	return c.runner.Execute(ctx, operationID, op, c.recoveryActions(operationID), opCtx)
}

// recoveryActions builds the standing recovery chain for an operation:
// serve previously cached data, then whatever the in-memory fallback
// store still holds.
func (c *taskMasterClient) recoveryActions(operationID string) []resilience.RecoveryAction {
	actions := []resilience.RecoveryAction{{
		Strategy:    resilience.StrategyFallback,
		Description: "serve the last successful result",
		AutoExecute: true,
	}}
	if c.cache == nil {
		return actions
	}
	return append(actions, resilience.RecoveryAction{
		Strategy:    resilience.StrategyCache,
		Description: "serve cached offline data",
		AutoExecute: true,
		Execute: func(context.Context) (any, error) {
			var raw json.RawMessage
			ok, err := c.cache.Get(operationID, &raw)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, fmt.Errorf("no cached data for %s", operationID)
			}
			return raw, nil
		},
	})
}

// store writes a fresh result to the offline cache. Failures are not
// surfaced: caching is opportunistic.
func (c *taskMasterClient) store(operationID string, data any) {
	if c.cache == nil {
		return
	}
	_ = c.cache.Set(operationID, data, storage.SetOptions{
		TTL:     c.cacheTTL,
		Source:  liveSourceName,
		Persist: true,
	})
}

// coerce converts an orchestrator result to its concrete type. Data
// recovered from the cache arrives as raw JSON and is decoded here.
func coerce[T any](value any) (T, error) {
	if typed, ok := value.(T); ok {
		return typed, nil
	}
	var out T
	raw, ok := value.(json.RawMessage)
	if !ok {
		encoded, err := json.Marshal(value)
		if err != nil {
			return out, fmt.Errorf("decoding recovered data: %w", err)
		}
		raw = encoded
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decoding recovered data: %w", err)
	}
	return out, nil
}

// taskListWire is the envelope `task-master list --json` prints.
type taskListWire struct {
	Tasks []models.Task `json:"tasks"`
}

// parseTasks accepts both the enveloped and the bare-array output
// shapes the CLI has produced across versions.
func parseTasks(stdout string) ([]models.Task, error) {
	trimmed := strings.TrimSpace(stdout)
	if trimmed == "" {
		return nil, fmt.Errorf("parsing task list: empty output")
	}

	if strings.HasPrefix(trimmed, "[") {
		var tasks []models.Task
		if err := json.Unmarshal([]byte(trimmed), &tasks); err != nil {
			return nil, fmt.Errorf("parsing task list: %w", err)
		}
		return tagTasks(tasks), nil
	}

	var wire taskListWire
	if err := json.Unmarshal([]byte(trimmed), &wire); err != nil {
		return nil, fmt.Errorf("parsing task list: %w", err)
	}
	if wire.Tasks == nil {
		return nil, fmt.Errorf("parsing task list: unexpected response shape")
	}
	return tagTasks(wire.Tasks), nil
}

func tagTasks(tasks []models.Task) []models.Task {
	for i := range tasks {
		tasks[i].Source = liveSourceName
	}
	return tasks
}

// nextTaskWire is the envelope `task-master next --json` prints.
type nextTaskWire struct {
	Task   *models.Task `json:"task"`
	Reason string       `json:"reason"`
}

func parseNextTask(stdout string) (*models.NextTask, error) {
	trimmed := strings.TrimSpace(stdout)
	if trimmed == "" {
		return nil, fmt.Errorf("parsing next task: empty output")
	}
	var wire nextTaskWire
	if err := json.Unmarshal([]byte(trimmed), &wire); err != nil {
		return nil, fmt.Errorf("parsing next task: %w", err)
	}
	if wire.Task != nil {
		wire.Task.Source = liveSourceName
	}
	return &models.NextTask{
		Task:   wire.Task,
		Reason: wire.Reason,
		Source: liveSourceName,
	}, nil
}

// complexityWire mirrors the camelCase report the CLI emits.
type complexityWire struct {
	Meta struct {
		GeneratedAt time.Time `json:"generatedAt"`
	} `json:"meta"`
	ComplexityAnalysis []struct {
		TaskID              int     `json:"taskId"`
		TaskTitle           string  `json:"taskTitle"`
		ComplexityScore     float64 `json:"complexityScore"`
		RecommendedSubtasks int     `json:"recommendedSubtasks"`
		Reasoning           string  `json:"reasoning"`
	} `json:"complexityAnalysis"`
}

func parseComplexityReport(stdout string) (*models.ComplexityReport, error) {
	trimmed := strings.TrimSpace(stdout)
	if trimmed == "" {
		return nil, fmt.Errorf("parsing complexity report: empty output")
	}
	var wire complexityWire
	if err := json.Unmarshal([]byte(trimmed), &wire); err != nil {
		return nil, fmt.Errorf("parsing complexity report: %w", err)
	}

	report := &models.ComplexityReport{
		GeneratedAt: wire.Meta.GeneratedAt,
		Source:      liveSourceName,
	}
	for _, entry := range wire.ComplexityAnalysis {
		report.Tasks = append(report.Tasks, models.TaskComplexity{
			TaskID:              entry.TaskID,
			Title:               entry.TaskTitle,
			Score:               entry.ComplexityScore,
			RecommendedSubtasks: entry.RecommendedSubtasks,
			Reasoning:           entry.Reasoning,
		})
	}
	return report, nil
}
