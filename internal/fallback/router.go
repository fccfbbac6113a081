package fallback

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/taskdeck/taskdeck/pkg/models"
)

// placeholderSource tags synthesized data returned when every source
// has failed.
const placeholderSource = "placeholder"

// Source is a named, prioritized provider of dashboard data. A nil
// accessor means the source does not support that data kind. The router
// marks a source unavailable whenever one of its accessors fails.
type Source struct {
	Name     string
	Priority int // lower is preferred

	Available     bool
	LastCheckedAt time.Time

	Tasks            func(ctx context.Context) ([]models.Task, error)
	Stats            func(ctx context.Context) (*models.TaskStats, error)
	NextTask         func(ctx context.Context) (*models.NextTask, error)
	ComplexityReport func(ctx context.Context) (*models.ComplexityReport, error)
}

// SourceStatus is a read-only snapshot of a source for status surfaces.
type SourceStatus struct {
	Name          string    `json:"name"`
	Priority      int       `json:"priority"`
	Available     bool      `json:"available"`
	LastCheckedAt time.Time `json:"last_checked_at,omitempty"`
}

// TasksResult is a routed task list plus its provenance.
type TasksResult struct {
	Tasks  []models.Task
	Source string
	Level  Level
}

// StatsResult is routed task statistics plus their provenance.
type StatsResult struct {
	Stats  *models.TaskStats
	Source string
	Level  Level
}

// NextTaskResult is a routed next-task recommendation plus its provenance.
type NextTaskResult struct {
	Next   *models.NextTask
	Source string
	Level  Level
}

// ComplexityResult is a routed complexity report plus its provenance.
type ComplexityResult struct {
	Report *models.ComplexityReport
	Source string
	Level  Level
}

// Router walks registered sources in ascending priority order and
// serves each request from the first source whose accessor succeeds.
// A failing accessor marks its source unavailable; availability changes
// recompute the degradation level. Router never returns an error: when
// everything fails it synthesizes placeholder data instead.
type Router struct {
	mu      sync.Mutex
	sources []*Source
	level   Level

	onLevelChange func(from, to Level)
	now           func() time.Time
}

// NewRouter creates an empty router at degradation level critical.
// onLevelChange may be nil; it is invoked synchronously on every level
// transition.
func NewRouter(onLevelChange func(from, to Level)) *Router {
	return &Router{
		level:         LevelCritical,
		onLevelChange: onLevelChange,
		now:           time.Now,
	}
}

// Register adds a source, keeping the set ordered by ascending
// priority, and recomputes the degradation level.
func (r *Router) Register(src *Source) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sources = append(r.sources, src)
	sort.SliceStable(r.sources, func(i, j int) bool {
		return r.sources[i].Priority < r.sources[j].Priority
	})
	r.recomputeLocked()
}

// MarkAvailable flips a source's availability, typically from a
// connectivity probe restoring a recovered source.
func (r *Router) MarkAvailable(name string, available bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, src := range r.sources {
		if src.Name == name {
			src.Available = available
			src.LastCheckedAt = r.now()
		}
	}
	r.recomputeLocked()
}

// Level returns the current degradation level.
func (r *Router) Level() Level {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.level
}

// LevelInfo returns the full description of the current level.
func (r *Router) LevelInfo() LevelInfo {
	return Describe(r.Level())
}

// Sources returns a snapshot of all registered sources in priority
// order.
func (r *Router) Sources() []SourceStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]SourceStatus, 0, len(r.sources))
	for _, src := range r.sources {
		out = append(out, SourceStatus{
			Name:          src.Name,
			Priority:      src.Priority,
			Available:     src.Available,
			LastCheckedAt: src.LastCheckedAt,
		})
	}
	return out
}

// GetTasks routes a task-list request. When no source can serve it, a
// single "service unavailable" pseudo-task is returned.
func (r *Router) GetTasks(ctx context.Context) TasksResult {
	for _, src := range r.candidates() {
		if src.Tasks == nil {
			continue
		}
		tasks, err := src.Tasks(ctx)
		if err != nil {
			r.markFailed(src)
			continue
		}
		r.markChecked(src)
		for i := range tasks {
			if tasks[i].Source == "" {
				tasks[i].Source = src.Name
			}
		}
		return TasksResult{Tasks: tasks, Source: src.Name, Level: r.Level()}
	}

	placeholder := []models.Task{{
		ID:       0,
		Title:    "Task data unavailable",
		Status:   models.StatusBlocked,
		Priority: models.PriorityHigh,
		Source:   placeholderSource,
		Description: "No task data source is currently reachable. " +
			"Check that the Task Master CLI is installed and the network is up.",
	}}
	return TasksResult{Tasks: placeholder, Source: placeholderSource, Level: r.Level()}
}

// GetStats routes a statistics request, deriving stats from routed task
// data when no source supports stats directly.
func (r *Router) GetStats(ctx context.Context) StatsResult {
	for _, src := range r.candidates() {
		if src.Stats == nil {
			continue
		}
		stats, err := src.Stats(ctx)
		if err != nil {
			r.markFailed(src)
			continue
		}
		r.markChecked(src)
		if stats.Source == "" {
			stats.Source = src.Name
		}
		return StatsResult{Stats: stats, Source: src.Name, Level: r.Level()}
	}

	tasks := r.GetTasks(ctx)
	stats := models.ComputeStats(tasks.Tasks)
	stats.Source = tasks.Source
	return StatsResult{Stats: stats, Source: tasks.Source, Level: r.Level()}
}

// GetNextTask routes a next-task request, falling back to a dependency
// walk over routed task data.
func (r *Router) GetNextTask(ctx context.Context) NextTaskResult {
	for _, src := range r.candidates() {
		if src.NextTask == nil {
			continue
		}
		next, err := src.NextTask(ctx)
		if err != nil {
			r.markFailed(src)
			continue
		}
		r.markChecked(src)
		if next.Source == "" {
			next.Source = src.Name
		}
		return NextTaskResult{Next: next, Source: src.Name, Level: r.Level()}
	}

	tasks := r.GetTasks(ctx)
	next := deriveNextTask(tasks.Tasks)
	next.Source = tasks.Source
	return NextTaskResult{Next: next, Source: tasks.Source, Level: r.Level()}
}

// GetComplexityReport routes a complexity-report request. There is no
// meaningful way to derive complexity scores from raw task data, so the
// placeholder is an empty report.
func (r *Router) GetComplexityReport(ctx context.Context) ComplexityResult {
	for _, src := range r.candidates() {
		if src.ComplexityReport == nil {
			continue
		}
		report, err := src.ComplexityReport(ctx)
		if err != nil {
			r.markFailed(src)
			continue
		}
		r.markChecked(src)
		if report.Source == "" {
			report.Source = src.Name
		}
		return ComplexityResult{Report: report, Source: src.Name, Level: r.Level()}
	}

	report := &models.ComplexityReport{
		GeneratedAt: r.now(),
		Source:      placeholderSource,
	}
	return ComplexityResult{Report: report, Source: placeholderSource, Level: r.Level()}
}

// candidates snapshots the available sources in priority order.
// Accessors are invoked outside the router lock.
func (r *Router) candidates() []*Source {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Source, 0, len(r.sources))
	for _, src := range r.sources {
		if src.Available {
			out = append(out, src)
		}
	}
	return out
}

func (r *Router) markFailed(src *Source) {
	r.mu.Lock()
	defer r.mu.Unlock()

	src.Available = false
	src.LastCheckedAt = r.now()
	r.recomputeLocked()
}

func (r *Router) markChecked(src *Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	src.LastCheckedAt = r.now()
}

// recomputeLocked must be called with the mutex held.
func (r *Router) recomputeLocked() {
	from := r.level
	to := computeLevel(r.sources)
	if to == from {
		return
	}
	r.level = to
	if r.onLevelChange != nil {
		r.onLevelChange(from, to)
	}
}

// deriveNextTask picks the first pending task whose dependencies are
// all done, preferring higher priority.
func deriveNextTask(tasks []models.Task) *models.NextTask {
	done := make(map[int]bool, len(tasks))
	for _, t := range tasks {
		if t.Status == models.StatusDone {
			done[t.ID] = true
		}
	}

	rank := map[models.Priority]int{
		models.PriorityHigh:   0,
		models.PriorityMedium: 1,
		models.PriorityLow:    2,
	}

	var best *models.Task
	for i := range tasks {
		t := &tasks[i]
		if t.Status != models.StatusPending {
			continue
		}
		blocked := false
		for _, dep := range t.Dependencies {
			if !done[dep] {
				blocked = true
				break
			}
		}
		if blocked {
			continue
		}
		if best == nil || rank[t.Priority] < rank[best.Priority] {
			best = t
		}
	}

	if best == nil {
		return &models.NextTask{Reason: "no pending task with satisfied dependencies"}
	}
	return &models.NextTask{
		Task:   best,
		Reason: "highest-priority pending task with all dependencies done",
	}
}
