package fallback

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/taskdeck/taskdeck/internal/storage"
	"github.com/taskdeck/taskdeck/pkg/models"
)

// StaticSourceName is the last-resort source serving hard-coded data.
const StaticSourceName = "static-fallback"

// StaticTasks returns the hard-coded task set served when nothing else
// is reachable. The tasks describe how to restore live data.
func StaticTasks() []models.Task {
	return []models.Task{
		{
			ID:          1,
			Title:       "Verify Task Master CLI installation",
			Description: "Run `task-master --version` to confirm the CLI is installed and on PATH.",
			Status:      models.StatusPending,
			Priority:    models.PriorityHigh,
			Source:      StaticSourceName,
		},
		{
			ID:           2,
			Title:        "Check network connectivity",
			Description:  "Confirm DNS resolution and outbound connectivity for registry access.",
			Status:       models.StatusPending,
			Priority:     models.PriorityMedium,
			Source:       StaticSourceName,
			Dependencies: []int{1},
		},
		{
			ID:           3,
			Title:        "Restart the dashboard once the CLI responds",
			Description:  "Live data resumes automatically when the Task Master CLI is reachable again.",
			Status:       models.StatusPending,
			Priority:     models.PriorityLow,
			Source:       StaticSourceName,
			Dependencies: []int{1, 2},
		},
	}
}

// NewStaticSource builds the always-available static source. It serves
// the hard-coded task set and derives stats and next-task from it;
// complexity reports are not supported.
func NewStaticSource(priority int) *Source {
	return &Source{
		Name:      StaticSourceName,
		Priority:  priority,
		Available: true,
		Tasks: func(context.Context) ([]models.Task, error) {
			return StaticTasks(), nil
		},
		Stats: func(context.Context) (*models.TaskStats, error) {
			stats := models.ComputeStats(StaticTasks())
			stats.Source = StaticSourceName
			return stats, nil
		},
		NextTask: func(context.Context) (*models.NextTask, error) {
			next := deriveNextTask(StaticTasks())
			next.Source = StaticSourceName
			return next, nil
		},
	}
}

// NewCacheSource builds a source that reads previously cached live
// data out of the offline cache store. The keys mirror the operation
// ids the integration layer caches under.
func NewCacheSource(store *storage.Store, priority int) *Source {
	return &Source{
		Name:      "offline-cache",
		Priority:  priority,
		Available: true,
		Tasks: func(context.Context) ([]models.Task, error) {
			var tasks []models.Task
			ok, err := store.Get("get_tasks", &tasks)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, fmt.Errorf("no cached task data")
			}
			return tasks, nil
		},
		Stats: func(context.Context) (*models.TaskStats, error) {
			var stats models.TaskStats
			ok, err := store.Get("get_stats", &stats)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, fmt.Errorf("no cached stats data")
			}
			return &stats, nil
		},
		NextTask: func(context.Context) (*models.NextTask, error) {
			var next models.NextTask
			ok, err := store.Get("get_next_task", &next)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, fmt.Errorf("no cached next-task data")
			}
			return &next, nil
		},
		ComplexityReport: func(context.Context) (*models.ComplexityReport, error) {
			var report models.ComplexityReport
			ok, err := store.Get("get_complexity_report", &report)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, fmt.Errorf("no cached complexity report")
			}
			return &report, nil
		},
	}
}

// fileDataset is the on-disk shape of a curated fallback dataset.
type fileDataset struct {
	UpdatedAt time.Time     `yaml:"updated_at"`
	Tasks     []models.Task `yaml:"tasks"`
}

// NewFileSource builds a source backed by a curated YAML dataset on
// disk, typically maintained alongside epic planning files. The file is
// re-read on every request so edits show up without a restart.
func NewFileSource(name string, priority int, path string) *Source {
	load := func() ([]models.Task, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading fallback dataset %s: %w", path, err)
		}
		var ds fileDataset
		if err := yaml.Unmarshal(data, &ds); err != nil {
			return nil, fmt.Errorf("parsing fallback dataset %s: %w", path, err)
		}
		for i := range ds.Tasks {
			if ds.Tasks[i].Source == "" {
				ds.Tasks[i].Source = name
			}
		}
		return ds.Tasks, nil
	}

	return &Source{
		Name:      name,
		Priority:  priority,
		Available: true,
		Tasks: func(context.Context) ([]models.Task, error) {
			return load()
		},
		Stats: func(context.Context) (*models.TaskStats, error) {
			tasks, err := load()
			if err != nil {
				return nil, err
			}
			stats := models.ComputeStats(tasks)
			stats.Source = name
			return stats, nil
		},
		NextTask: func(context.Context) (*models.NextTask, error) {
			tasks, err := load()
			if err != nil {
				return nil, err
			}
			next := deriveNextTask(tasks)
			next.Source = name
			return next, nil
		},
	}
}
