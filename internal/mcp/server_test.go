package mcp

import (
	"context"
	"testing"
	"time"

	"github.com/taskdeck/taskdeck/internal/fallback"
	"github.com/taskdeck/taskdeck/internal/resilience"
	"github.com/taskdeck/taskdeck/internal/storage"
	"github.com/taskdeck/taskdeck/pkg/models"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	router := fallback.NewRouter(nil)
	router.Register(&fallback.Source{
		Name:      "test-source",
		Priority:  0,
		Available: true,
		Tasks: func(context.Context) ([]models.Task, error) {
			return []models.Task{
				{ID: 1, Title: "Ship the parser", Status: models.StatusPending, Priority: models.PriorityHigh},
				{ID: 2, Title: "Write docs", Status: models.StatusDone, Priority: models.PriorityLow},
			}, nil
		},
		NextTask: func(context.Context) (*models.NextTask, error) {
			task := models.Task{ID: 1, Title: "Ship the parser", Status: models.StatusPending, Priority: models.PriorityHigh}
			return &models.NextTask{Task: &task, Reason: "no blockers"}, nil
		},
		ComplexityReport: func(context.Context) (*models.ComplexityReport, error) {
			return &models.ComplexityReport{
				GeneratedAt: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
				Tasks:       []models.TaskComplexity{{TaskID: 1, Title: "Ship the parser", Score: 6}},
			}, nil
		},
	})

	breaker := resilience.NewCircuitBreaker(5, time.Minute, nil)
	classifier := resilience.NewClassifier(3, nil)
	runner := resilience.NewExecutor(resilience.DefaultRetryPolicy(), breaker, classifier, nil, 0)
	cache, err := storage.NewStore(storage.Options{MaxSize: 1 << 20})
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	return NewServer(router, runner, classifier, cache, "test")
}

func TestServer_GetTasks(t *testing.T) {
	s := newTestServer(t)

	_, out, err := s.handleGetTasks(context.Background(), nil, getTasksInput{})
	if err != nil {
		t.Fatalf("handleGetTasks() error = %v", err)
	}
	if out.Count != 2 {
		t.Fatalf("Count = %d, want 2", out.Count)
	}
	if out.Source != "test-source" {
		t.Errorf("Source = %s, want test-source", out.Source)
	}
	if out.DegradationLevel != string(fallback.LevelNone) {
		t.Errorf("DegradationLevel = %s, want none", out.DegradationLevel)
	}
}

func TestServer_GetTasksStatusFilter(t *testing.T) {
	s := newTestServer(t)

	_, out, err := s.handleGetTasks(context.Background(), nil, getTasksInput{Status: "done"})
	if err != nil {
		t.Fatalf("handleGetTasks() error = %v", err)
	}
	if out.Count != 1 {
		t.Fatalf("Count = %d, want 1", out.Count)
	}
	if out.Tasks[0].Status != "done" {
		t.Errorf("Status = %s, want done", out.Tasks[0].Status)
	}
}

func TestServer_GetStats(t *testing.T) {
	s := newTestServer(t)

	_, out, err := s.handleGetStats(context.Background(), nil, getStatsInput{})
	if err != nil {
		t.Fatalf("handleGetStats() error = %v", err)
	}
	if out.Total != 2 {
		t.Errorf("Total = %d, want 2", out.Total)
	}
	if out.CompletionPercent != 50 {
		t.Errorf("CompletionPercent = %f, want 50", out.CompletionPercent)
	}
	if out.ByStatus["pending"] != 1 || out.ByStatus["done"] != 1 {
		t.Errorf("ByStatus = %v", out.ByStatus)
	}
}

func TestServer_GetNextTask(t *testing.T) {
	s := newTestServer(t)

	_, out, err := s.handleGetNextTask(context.Background(), nil, getNextTaskInput{})
	if err != nil {
		t.Fatalf("handleGetNextTask() error = %v", err)
	}
	if out.Task == nil || out.Task.ID != 1 {
		t.Fatalf("Task = %+v, want id 1", out.Task)
	}
	if out.Reason != "no blockers" {
		t.Errorf("Reason = %q", out.Reason)
	}
}

func TestServer_GetComplexityReport(t *testing.T) {
	s := newTestServer(t)

	_, out, err := s.handleGetComplexityReport(context.Background(), nil, getComplexityReportInput{})
	if err != nil {
		t.Fatalf("handleGetComplexityReport() error = %v", err)
	}
	if len(out.Tasks) != 1 {
		t.Fatalf("len(Tasks) = %d, want 1", len(out.Tasks))
	}
	if out.Tasks[0].Score != 6 {
		t.Errorf("Score = %f, want 6", out.Tasks[0].Score)
	}
	if out.GeneratedAt == "" {
		t.Error("GeneratedAt is empty")
	}
}

func TestServer_GetHealth(t *testing.T) {
	s := newTestServer(t)

	_, out, err := s.handleGetHealth(context.Background(), nil, getHealthInput{})
	if err != nil {
		t.Fatalf("handleGetHealth() error = %v", err)
	}
	if out.DegradationLevel != string(fallback.LevelNone) {
		t.Errorf("DegradationLevel = %s, want none", out.DegradationLevel)
	}
	if out.BreakerState != string(resilience.BreakerClosed) {
		t.Errorf("BreakerState = %s, want closed", out.BreakerState)
	}
	if len(out.Sources) != 1 || out.Sources[0].Name != "test-source" {
		t.Errorf("Sources = %+v", out.Sources)
	}
	if out.Message == "" {
		t.Error("Message is empty")
	}
}

func TestServer_MCPServerExposed(t *testing.T) {
	s := newTestServer(t)
	if s.MCPServer() == nil {
		t.Fatal("MCPServer() = nil")
	}
}
