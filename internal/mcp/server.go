// Package mcp provides an MCP (Model Context Protocol) server that
// exposes taskdeck's routed task data and resilience health as MCP
// tools for AI coding assistants.
package mcp

import (
	"context"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/taskdeck/taskdeck/internal/fallback"
	"github.com/taskdeck/taskdeck/internal/resilience"
	"github.com/taskdeck/taskdeck/internal/storage"
	"github.com/taskdeck/taskdeck/pkg/models"
)

// Server wraps taskdeck services and exposes them as MCP tools. Every
// data tool routes through the fallback chain, so tools keep answering
// even when the Task Master CLI is down, and the degradation level in
// each response tells the client how fresh the data is.
type Server struct {
	server     *gomcp.Server
	router     *fallback.Router
	runner     *resilience.Executor
	classifier *resilience.Classifier
	cache      *storage.Store
}

// NewServer creates a new MCP server with the given taskdeck service
// dependencies. runner, classifier, and cache may be nil; the health
// tool reports what it can.
func NewServer(router *fallback.Router, runner *resilience.Executor, classifier *resilience.Classifier, cache *storage.Store, version string) *Server {
	if version == "" {
		version = "dev"
	}

	s := &Server{
		router:     router,
		runner:     runner,
		classifier: classifier,
		cache:      cache,
	}

	s.server = gomcp.NewServer(
		&gomcp.Implementation{Name: "taskdeck", Version: version},
		nil,
	)

	s.registerTools()

	return s
}

// Run starts the MCP server on stdio, blocking until the client
// disconnects or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &gomcp.StdioTransport{})
}

// MCPServer returns the underlying mcp.Server for testing purposes.
func (s *Server) MCPServer() *gomcp.Server {
	return s.server
}

// --- Tool input/output types ---

type getTasksInput struct {
	Status string `json:"status,omitempty" jsonschema:"filter tasks by status (pending, in-progress, review, done, deferred, cancelled, blocked)"`
}

type taskOutput struct {
	ID           int    `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description,omitempty"`
	Status       string `json:"status"`
	Priority     string `json:"priority"`
	Dependencies []int  `json:"dependencies,omitempty"`
	Source       string `json:"source,omitempty"`
}

type getTasksOutput struct {
	Tasks            []taskOutput `json:"tasks"`
	Count            int          `json:"count"`
	Source           string       `json:"source"`
	DegradationLevel string       `json:"degradation_level"`
}

type getStatsInput struct{}

type getStatsOutput struct {
	Total             int            `json:"total"`
	ByStatus          map[string]int `json:"by_status"`
	ByPriority        map[string]int `json:"by_priority"`
	CompletionPercent float64        `json:"completion_percent"`
	Source            string         `json:"source"`
	DegradationLevel  string         `json:"degradation_level"`
}

type getNextTaskInput struct{}

type getNextTaskOutput struct {
	Task             *taskOutput `json:"task,omitempty"`
	Reason           string      `json:"reason,omitempty"`
	Source           string      `json:"source"`
	DegradationLevel string      `json:"degradation_level"`
}

type getComplexityReportInput struct{}

type complexityOutput struct {
	TaskID              int     `json:"task_id"`
	Title               string  `json:"title"`
	Score               float64 `json:"score"`
	RecommendedSubtasks int     `json:"recommended_subtasks,omitempty"`
	Reasoning           string  `json:"reasoning,omitempty"`
}

type getComplexityReportOutput struct {
	GeneratedAt      string             `json:"generated_at,omitempty"`
	Tasks            []complexityOutput `json:"tasks"`
	Source           string             `json:"source"`
	DegradationLevel string             `json:"degradation_level"`
}

type getHealthInput struct{}

type sourceHealthOutput struct {
	Name      string `json:"name"`
	Priority  int    `json:"priority"`
	Available bool   `json:"available"`
}

type getHealthOutput struct {
	DegradationLevel string               `json:"degradation_level"`
	Message          string               `json:"message"`
	BreakerState     string               `json:"breaker_state,omitempty"`
	Sources          []sourceHealthOutput `json:"sources"`
	CacheEntries     int                  `json:"cache_entries"`
	CacheHitRate     float64              `json:"cache_hit_rate"`
	RecentErrors     map[string]int       `json:"recent_errors,omitempty"`
}

// --- Tool registration ---

func (s *Server) registerTools() {
	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_tasks",
		Description: "List tasks with an optional status filter. Data is routed through the fallback chain; the response names the source and degradation level.",
	}, s.handleGetTasks)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_stats",
		Description: "Get task counts by status and priority plus the overall completion percentage.",
	}, s.handleGetStats)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_next_task",
		Description: "Get the recommended next task to work on, with the reasoning behind the recommendation.",
	}, s.handleGetNextTask)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_complexity_report",
		Description: "Get the task complexity analysis. Unavailable from fallback data; an empty report is returned when no source can serve it.",
	}, s.handleGetComplexityReport)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_health",
		Description: "Get the resilience layer's health: degradation level, circuit breaker state, data source availability, cache statistics, and recent error counts.",
	}, s.handleGetHealth)
}

// --- Tool handlers ---

func (s *Server) handleGetTasks(ctx context.Context, _ *gomcp.CallToolRequest, input getTasksInput) (*gomcp.CallToolResult, getTasksOutput, error) {
	result := s.router.GetTasks(ctx)

	tasks := result.Tasks
	if input.Status != "" {
		status := models.TaskStatus(input.Status)
		filtered := make([]models.Task, 0, len(tasks))
		for _, t := range tasks {
			if t.Status == status {
				filtered = append(filtered, t)
			}
		}
		tasks = filtered
	}

	out := getTasksOutput{
		Tasks:            make([]taskOutput, len(tasks)),
		Count:            len(tasks),
		Source:           result.Source,
		DegradationLevel: string(result.Level),
	}
	for i, t := range tasks {
		out.Tasks[i] = taskToOutput(t)
	}

	return nil, out, nil
}

func (s *Server) handleGetStats(ctx context.Context, _ *gomcp.CallToolRequest, _ getStatsInput) (*gomcp.CallToolResult, getStatsOutput, error) {
	result := s.router.GetStats(ctx)

	out := getStatsOutput{
		Total:             result.Stats.Total,
		ByStatus:          make(map[string]int, len(result.Stats.ByStatus)),
		ByPriority:        make(map[string]int, len(result.Stats.ByPriority)),
		CompletionPercent: result.Stats.CompletionPercent,
		Source:            result.Source,
		DegradationLevel:  string(result.Level),
	}
	for status, count := range result.Stats.ByStatus {
		out.ByStatus[string(status)] = count
	}
	for pri, count := range result.Stats.ByPriority {
		out.ByPriority[string(pri)] = count
	}

	return nil, out, nil
}

func (s *Server) handleGetNextTask(ctx context.Context, _ *gomcp.CallToolRequest, _ getNextTaskInput) (*gomcp.CallToolResult, getNextTaskOutput, error) {
	result := s.router.GetNextTask(ctx)

	out := getNextTaskOutput{
		Source:           result.Source,
		DegradationLevel: string(result.Level),
	}
	if result.Next != nil {
		out.Reason = result.Next.Reason
		if result.Next.Task != nil {
			task := taskToOutput(*result.Next.Task)
			out.Task = &task
		}
	}

	return nil, out, nil
}

func (s *Server) handleGetComplexityReport(ctx context.Context, _ *gomcp.CallToolRequest, _ getComplexityReportInput) (*gomcp.CallToolResult, getComplexityReportOutput, error) {
	result := s.router.GetComplexityReport(ctx)

	out := getComplexityReportOutput{
		Tasks:            make([]complexityOutput, len(result.Report.Tasks)),
		Source:           result.Source,
		DegradationLevel: string(result.Level),
	}
	if !result.Report.GeneratedAt.IsZero() {
		out.GeneratedAt = result.Report.GeneratedAt.Format(time.RFC3339)
	}
	for i, t := range result.Report.Tasks {
		out.Tasks[i] = complexityOutput{
			TaskID:              t.TaskID,
			Title:               t.Title,
			Score:               t.Score,
			RecommendedSubtasks: t.RecommendedSubtasks,
			Reasoning:           t.Reasoning,
		}
	}

	return nil, out, nil
}

func (s *Server) handleGetHealth(_ context.Context, _ *gomcp.CallToolRequest, _ getHealthInput) (*gomcp.CallToolResult, getHealthOutput, error) {
	info := s.router.LevelInfo()
	out := getHealthOutput{
		DegradationLevel: string(info.Level),
		Message:          info.Message,
		RecentErrors:     make(map[string]int),
	}

	for _, src := range s.router.Sources() {
		out.Sources = append(out.Sources, sourceHealthOutput{
			Name:      src.Name,
			Priority:  src.Priority,
			Available: src.Available,
		})
	}

	if s.runner != nil {
		out.BreakerState = string(s.runner.BreakerState())
	}
	if s.cache != nil {
		stats := s.cache.Stats()
		out.CacheEntries = stats.Entries
		out.CacheHitRate = stats.HitRate
	}
	if s.classifier != nil {
		for kind, count := range s.classifier.Stats().ByKind {
			out.RecentErrors[string(kind)] = count
		}
	}

	return nil, out, nil
}

// --- Helpers ---

func taskToOutput(t models.Task) taskOutput {
	return taskOutput{
		ID:           t.ID,
		Title:        t.Title,
		Description:  t.Description,
		Status:       string(t.Status),
		Priority:     string(t.Priority),
		Dependencies: t.Dependencies,
		Source:       t.Source,
	}
}
