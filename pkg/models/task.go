package models

import "time"

// TaskStatus represents the lifecycle state of a Task Master task.
type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusInProgress TaskStatus = "in-progress"
	StatusReview     TaskStatus = "review"
	StatusDone       TaskStatus = "done"
	StatusDeferred   TaskStatus = "deferred"
	StatusCancelled  TaskStatus = "cancelled"
	StatusBlocked    TaskStatus = "blocked"
)

// Priority represents the urgency level of a task.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Subtask is a child work item nested under a Task.
type Subtask struct {
	ID     int        `json:"id" yaml:"id"`
	Title  string     `json:"title" yaml:"title"`
	Status TaskStatus `json:"status" yaml:"status"`
}

// Task represents a unit of work as reported by the Task Master CLI.
// Source identifies which data source produced the task ("task-master"
// for live CLI data, or a fallback source name when degraded).
type Task struct {
	ID           int        `json:"id" yaml:"id"`
	Title        string     `json:"title" yaml:"title"`
	Description  string     `json:"description,omitempty" yaml:"description,omitempty"`
	Status       TaskStatus `json:"status" yaml:"status"`
	Priority     Priority   `json:"priority" yaml:"priority"`
	Dependencies []int      `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	Subtasks     []Subtask  `json:"subtasks,omitempty" yaml:"subtasks,omitempty"`
	Source       string     `json:"source,omitempty" yaml:"source,omitempty"`
}

// TaskStats aggregates task counts by status plus an overall completion
// percentage.
type TaskStats struct {
	Total             int                `json:"total"`
	ByStatus          map[TaskStatus]int `json:"by_status"`
	ByPriority        map[Priority]int   `json:"by_priority"`
	CompletionPercent float64            `json:"completion_percent"`
	Source            string             `json:"source,omitempty"`
}

// NextTask is the recommended task to work on, with the reasoning the
// recommendation was based on.
type NextTask struct {
	Task   *Task  `json:"task"`
	Reason string `json:"reason,omitempty"`
	Source string `json:"source,omitempty"`
}

// TaskComplexity scores a single task's complexity as analyzed by Task Master.
type TaskComplexity struct {
	TaskID              int     `json:"task_id" yaml:"task_id"`
	Title               string  `json:"title" yaml:"title"`
	Score               float64 `json:"score" yaml:"score"`
	RecommendedSubtasks int     `json:"recommended_subtasks,omitempty" yaml:"recommended_subtasks,omitempty"`
	Reasoning           string  `json:"reasoning,omitempty" yaml:"reasoning,omitempty"`
}

// ComplexityReport is the full complexity analysis for a task set.
type ComplexityReport struct {
	GeneratedAt time.Time        `json:"generated_at" yaml:"generated_at"`
	Tasks       []TaskComplexity `json:"tasks" yaml:"tasks"`
	Source      string           `json:"source,omitempty" yaml:"source,omitempty"`
}

// ComputeStats derives TaskStats from a task list. The Source of the
// resulting stats is taken from the source tag of the task data.
func ComputeStats(tasks []Task) *TaskStats {
	stats := &TaskStats{
		Total:      len(tasks),
		ByStatus:   make(map[TaskStatus]int),
		ByPriority: make(map[Priority]int),
	}
	done := 0
	for _, t := range tasks {
		stats.ByStatus[t.Status]++
		stats.ByPriority[t.Priority]++
		if t.Status == StatusDone {
			done++
		}
		if stats.Source == "" && t.Source != "" {
			stats.Source = t.Source
		}
	}
	if stats.Total > 0 {
		stats.CompletionPercent = float64(done) / float64(stats.Total) * 100
	}
	return stats
}
