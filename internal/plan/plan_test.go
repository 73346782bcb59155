package plan

import (
	"testing"

	"github.com/reconpilot/reconpilotd/internal/scan"
)

func TestAddTaskPriorityInsertsAtFront(t *testing.T) {
	p := New()
	first := scan.NewTask("subfinder", "a", nil)
	second := scan.NewTask("amass", "b", nil)
	urgent := scan.NewTask("nmap", "c", nil)

	p.AddTask(first, false)
	p.AddTask(second, false)
	p.AddTask(urgent, true)

	got := p.PopNext()
	if got.ID != urgent.ID {
		t.Errorf("PopNext() = %s, want priority task %s", got.Name, urgent.Name)
	}
}

func TestPopNextTransitionsToRunning(t *testing.T) {
	p := New()
	task := scan.NewTask("nmap", "scan", nil)
	p.AddTask(task, false)

	got := p.PopNext()
	if got.Status != scan.TaskRunning {
		t.Errorf("status after PopNext = %v, want Running", got.Status)
	}
	if got.StartedAt == nil {
		t.Error("StartedAt not set after PopNext")
	}
	if p.RunningCount() != 1 {
		t.Errorf("RunningCount() = %d, want 1", p.RunningCount())
	}
	if p.PendingCount() != 0 {
		t.Errorf("PendingCount() = %d, want 0", p.PendingCount())
	}
}

func TestPopNextOnEmptyReturnsNil(t *testing.T) {
	p := New()
	if got := p.PopNext(); got != nil {
		t.Errorf("PopNext() on empty plan = %v, want nil", got)
	}
}

func TestMarkCompletedMovesFromRunning(t *testing.T) {
	p := New()
	task := scan.NewTask("nmap", "scan", nil)
	p.AddTask(task, false)
	p.PopNext()

	p.MarkCompleted(task)

	if task.Status != scan.TaskCompleted {
		t.Errorf("status = %v, want Completed", task.Status)
	}
	if task.Progress != 100.0 {
		t.Errorf("Progress = %v, want 100", task.Progress)
	}
	if task.CompletedAt == nil {
		t.Error("CompletedAt not set")
	}
	if p.RunningCount() != 0 {
		t.Errorf("RunningCount() = %d, want 0 after completion", p.RunningCount())
	}
}

func TestMarkFailedWithoutPriorDispatch(t *testing.T) {
	p := New()
	task := scan.NewTask("missingtool", "scan", nil)

	p.MarkFailed(task, "tool not available")

	if task.Status != scan.TaskFailed {
		t.Errorf("status = %v, want Failed", task.Status)
	}
	if task.Error != "tool not available" {
		t.Errorf("Error = %q, want %q", task.Error, "tool not available")
	}

	all := p.AllTasks()
	if len(all) != 1 || all[0].ID != task.ID {
		t.Errorf("AllTasks() = %+v, want single failed task", all)
	}
}

func TestMarkSkipped(t *testing.T) {
	p := New()
	task := scan.NewTask("nikto", "scan", nil)
	p.AddTask(task, false)

	p.MarkSkipped(task, "binary not installed")

	if task.Status != scan.TaskSkipped {
		t.Errorf("status = %v, want Skipped", task.Status)
	}
	if p.PendingCount() != 0 {
		t.Errorf("PendingCount() = %d, want 0: a skipped task no longer waits in the pending queue", p.PendingCount())
	}
}

func TestIsDrained(t *testing.T) {
	p := New()
	if !p.IsDrained() {
		t.Error("IsDrained() = false on an empty plan, want true")
	}

	task := scan.NewTask("nmap", "scan", nil)
	p.AddTask(task, false)
	if p.IsDrained() {
		t.Error("IsDrained() = true with a pending task, want false")
	}

	p.PopNext()
	if p.IsDrained() {
		t.Error("IsDrained() = true with a running task, want false")
	}

	p.MarkCompleted(task)
	if !p.IsDrained() {
		t.Error("IsDrained() = false after the only task completed, want true")
	}
}

func TestAllTasksOrdering(t *testing.T) {
	p := New()
	pending := scan.NewTask("subfinder", "a", nil)
	toRun := scan.NewTask("amass", "b", nil)
	toFail := scan.NewTask("nmap", "c", nil)

	p.AddTask(toRun, false)
	p.AddTask(toFail, false)
	p.AddTask(pending, false)

	p.PopNext() // toRun -> running

	failTask := p.PopNext() // toFail -> running
	p.MarkFailed(failTask, "boom")

	all := p.AllTasks()
	if len(all) != 3 {
		t.Fatalf("AllTasks() returned %d tasks, want 3", len(all))
	}
	if all[0].ID != pending.ID {
		t.Errorf("expected pending bucket first, got %s", all[0].Name)
	}
}
