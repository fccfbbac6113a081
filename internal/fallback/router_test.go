package fallback

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/taskdeck/taskdeck/internal/storage"
	"github.com/taskdeck/taskdeck/pkg/models"
)

func tasksSource(name string, priority int, tasks []models.Task) *Source {
	return &Source{
		Name:      name,
		Priority:  priority,
		Available: true,
		Tasks: func(context.Context) ([]models.Task, error) {
			return tasks, nil
		},
	}
}

func failingSource(name string, priority int) *Source {
	return &Source{
		Name:      name,
		Priority:  priority,
		Available: true,
		Tasks: func(context.Context) ([]models.Task, error) {
			return nil, errors.New("unreachable")
		},
		Stats: func(context.Context) (*models.TaskStats, error) {
			return nil, errors.New("unreachable")
		},
	}
}

func TestRouter_PrefersLowestPriority(t *testing.T) {
	r := NewRouter(nil)
	r.Register(tasksSource("secondary", 1, []models.Task{{ID: 2, Title: "from secondary"}}))
	r.Register(tasksSource("primary", 0, []models.Task{{ID: 1, Title: "from primary"}}))

	result := r.GetTasks(context.Background())
	if result.Source != "primary" {
		t.Fatalf("Source = %s, want primary", result.Source)
	}
	if len(result.Tasks) != 1 || result.Tasks[0].ID != 1 {
		t.Errorf("Tasks = %+v, want the primary task", result.Tasks)
	}
	if result.Level != LevelNone {
		t.Errorf("Level = %s, want %s", result.Level, LevelNone)
	}
}

func TestRouter_FailingSourceMarkedUnavailable(t *testing.T) {
	r := NewRouter(nil)
	r.Register(failingSource("primary", 0))
	r.Register(tasksSource("backup", 1, []models.Task{{ID: 9, Title: "from backup"}}))

	result := r.GetTasks(context.Background())
	if result.Source != "backup" {
		t.Fatalf("Source = %s, want backup", result.Source)
	}

	for _, src := range r.Sources() {
		if src.Name == "primary" && src.Available {
			t.Error("primary still marked available after a failed accessor")
		}
	}
	if r.Level() == LevelNone {
		t.Error("Level still none after a source failure")
	}
}

func TestRouter_StaticFallbackWhenOthersFail(t *testing.T) {
	r := NewRouter(nil)
	r.Register(failingSource("epic-workflow", 2))
	r.Register(NewStaticSource(3))

	result := r.GetTasks(context.Background())
	if result.Source != StaticSourceName {
		t.Fatalf("Source = %s, want %s", result.Source, StaticSourceName)
	}
	if len(result.Tasks) != 3 {
		t.Fatalf("len(Tasks) = %d, want 3", len(result.Tasks))
	}
	if result.Level != LevelSevere {
		t.Errorf("Level = %s, want %s", result.Level, LevelSevere)
	}
	for _, task := range result.Tasks {
		if task.Source != StaticSourceName {
			t.Errorf("task %d Source = %s, want %s", task.ID, task.Source, StaticSourceName)
		}
	}
}

func TestRouter_PlaceholderWhenNothingServes(t *testing.T) {
	r := NewRouter(nil)
	r.Register(failingSource("only", 0))

	result := r.GetTasks(context.Background())
	if result.Source != placeholderSource {
		t.Fatalf("Source = %s, want %s", result.Source, placeholderSource)
	}
	if len(result.Tasks) != 1 {
		t.Fatalf("len(Tasks) = %d, want 1 placeholder task", len(result.Tasks))
	}
	if result.Tasks[0].Status != models.StatusBlocked {
		t.Errorf("placeholder Status = %s, want %s", result.Tasks[0].Status, models.StatusBlocked)
	}
	if result.Level != LevelCritical {
		t.Errorf("Level = %s, want %s", result.Level, LevelCritical)
	}
}

func TestRouter_StatsDerivedFromTasks(t *testing.T) {
	r := NewRouter(nil)
	r.Register(tasksSource("tasks-only", 0, []models.Task{
		{ID: 1, Status: models.StatusDone, Priority: models.PriorityHigh},
		{ID: 2, Status: models.StatusPending, Priority: models.PriorityLow},
	}))

	result := r.GetStats(context.Background())
	if result.Stats == nil {
		t.Fatal("Stats is nil")
	}
	if result.Stats.Total != 2 {
		t.Errorf("Total = %d, want 2", result.Stats.Total)
	}
	if result.Stats.CompletionPercent != 50 {
		t.Errorf("CompletionPercent = %f, want 50", result.Stats.CompletionPercent)
	}
	if result.Source != "tasks-only" {
		t.Errorf("Source = %s, want tasks-only", result.Source)
	}
}

func TestRouter_NextTaskDerivation(t *testing.T) {
	r := NewRouter(nil)
	r.Register(tasksSource("tasks-only", 0, []models.Task{
		{ID: 1, Status: models.StatusDone, Priority: models.PriorityHigh},
		{ID: 2, Status: models.StatusPending, Priority: models.PriorityLow, Dependencies: []int{1}},
		{ID: 3, Status: models.StatusPending, Priority: models.PriorityHigh, Dependencies: []int{1}},
		{ID: 4, Status: models.StatusPending, Priority: models.PriorityHigh, Dependencies: []int{2}},
	}))

	result := r.GetNextTask(context.Background())
	if result.Next == nil || result.Next.Task == nil {
		t.Fatal("Next task is nil")
	}
	// Task 4's dependency is still pending; task 3 outranks task 2.
	if result.Next.Task.ID != 3 {
		t.Errorf("Next task ID = %d, want 3", result.Next.Task.ID)
	}
	if result.Next.Reason == "" {
		t.Error("Reason is empty")
	}
}

func TestRouter_NextTaskNoneEligible(t *testing.T) {
	r := NewRouter(nil)
	r.Register(tasksSource("tasks-only", 0, []models.Task{
		{ID: 1, Status: models.StatusPending, Dependencies: []int{2}},
		{ID: 2, Status: models.StatusInProgress},
	}))

	result := r.GetNextTask(context.Background())
	if result.Next == nil {
		t.Fatal("Next is nil")
	}
	if result.Next.Task != nil {
		t.Errorf("Task = %+v, want nil", result.Next.Task)
	}
	if result.Next.Reason != "no pending task with satisfied dependencies" {
		t.Errorf("Reason = %q", result.Next.Reason)
	}
}

func TestRouter_ComplexityPlaceholderIsEmptyReport(t *testing.T) {
	r := NewRouter(nil)
	r.Register(NewStaticSource(0))

	result := r.GetComplexityReport(context.Background())
	if result.Source != placeholderSource {
		t.Fatalf("Source = %s, want %s", result.Source, placeholderSource)
	}
	if len(result.Report.Tasks) != 0 {
		t.Errorf("Report.Tasks = %+v, want empty", result.Report.Tasks)
	}
}

func TestRouter_LevelChangeCallback(t *testing.T) {
	type change struct{ from, to Level }
	var changes []change

	r := NewRouter(func(from, to Level) {
		changes = append(changes, change{from, to})
	})

	r.Register(tasksSource("primary", 0, nil)) // critical -> none
	r.Register(failingSource("secondary", 1))  // stays none
	r.MarkAvailable("primary", false)          // none -> severe
	r.MarkAvailable("secondary", false)        // severe -> critical

	if len(changes) < 2 {
		t.Fatalf("got %d level changes, want at least 2: %v", len(changes), changes)
	}
	if changes[0].from != LevelCritical || changes[0].to != LevelNone {
		t.Errorf("first change = %v, want critical -> none", changes[0])
	}
	if changes[len(changes)-1].to != LevelCritical {
		t.Errorf("last change to = %s, want %s", changes[len(changes)-1].to, LevelCritical)
	}
}

func TestRouter_MarkAvailableRestoresSource(t *testing.T) {
	r := NewRouter(nil)
	r.Register(failingSource("primary", 0))
	r.Register(NewStaticSource(1))

	_ = r.GetTasks(context.Background()) // marks primary unavailable
	if r.Level() != LevelSevere {
		t.Fatalf("Level = %s, want %s", r.Level(), LevelSevere)
	}

	r.MarkAvailable("primary", true)
	if r.Level() != LevelNone {
		t.Errorf("Level after restore = %s, want %s", r.Level(), LevelNone)
	}
}

func TestCacheSource_ReadsStoredLiveData(t *testing.T) {
	store, err := storage.NewStore(storage.Options{MaxSize: 1 << 20})
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	cached := []models.Task{{ID: 7, Title: "cached task", Status: models.StatusPending}}
	if err := store.Set("get_tasks", cached, storage.SetOptions{TTL: time.Hour}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	src := NewCacheSource(store, 1)
	tasks, err := src.Tasks(context.Background())
	if err != nil {
		t.Fatalf("Tasks() error = %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != 7 {
		t.Errorf("Tasks() = %+v, want the cached task", tasks)
	}

	// Nothing cached for stats yet.
	if _, err := src.Stats(context.Background()); err == nil {
		t.Error("Stats() succeeded with an empty cache, want error")
	}
}

func TestFileSource_LoadsYAMLDataset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dataset.yaml")
	body := `updated_at: 2026-08-01T00:00:00Z
tasks:
  - id: 1
    title: Curated task
    status: pending
    priority: high
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing dataset: %v", err)
	}

	src := NewFileSource("curated-dataset", 2, path)
	tasks, err := src.Tasks(context.Background())
	if err != nil {
		t.Fatalf("Tasks() error = %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("len(Tasks()) = %d, want 1", len(tasks))
	}
	if tasks[0].Title != "Curated task" || tasks[0].Source != "curated-dataset" {
		t.Errorf("task = %+v, want curated task tagged with the source name", tasks[0])
	}

	stats, err := src.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Total != 1 {
		t.Errorf("Total = %d, want 1", stats.Total)
	}
}

func TestFileSource_MissingFileFails(t *testing.T) {
	src := NewFileSource("curated-dataset", 2, filepath.Join(t.TempDir(), "absent.yaml"))
	if _, err := src.Tasks(context.Background()); err == nil {
		t.Error("Tasks() succeeded with a missing dataset file")
	}
}
