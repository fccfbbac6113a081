package models

import "testing"

func TestComputeStats(t *testing.T) {
	tasks := []Task{
		{ID: 1, Status: StatusDone, Priority: PriorityHigh, Source: "task-master"},
		{ID: 2, Status: StatusDone, Priority: PriorityMedium},
		{ID: 3, Status: StatusPending, Priority: PriorityHigh},
		{ID: 4, Status: StatusInProgress, Priority: PriorityLow},
	}

	stats := ComputeStats(tasks)
	if stats.Total != 4 {
		t.Fatalf("Total = %d, want 4", stats.Total)
	}
	if stats.ByStatus[StatusDone] != 2 {
		t.Errorf("ByStatus[done] = %d, want 2", stats.ByStatus[StatusDone])
	}
	if stats.ByPriority[PriorityHigh] != 2 {
		t.Errorf("ByPriority[high] = %d, want 2", stats.ByPriority[PriorityHigh])
	}
	if stats.CompletionPercent != 50 {
		t.Errorf("CompletionPercent = %f, want 50", stats.CompletionPercent)
	}
	if stats.Source != "task-master" {
		t.Errorf("Source = %s, want task-master", stats.Source)
	}
}

func TestComputeStats_Empty(t *testing.T) {
	stats := ComputeStats(nil)
	if stats.Total != 0 {
		t.Errorf("Total = %d, want 0", stats.Total)
	}
	if stats.CompletionPercent != 0 {
		t.Errorf("CompletionPercent = %f, want 0", stats.CompletionPercent)
	}
}
