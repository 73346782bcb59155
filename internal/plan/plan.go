// Package plan implements the scan plan: the pending/running/completed/
// failed/skipped task buckets the orchestrator dispatches from.
package plan

import (
	"sync"
	"time"

	"github.com/reconpilot/reconpilotd/internal/scan"
)

// Plan holds a scan session's tasks partitioned by lifecycle state. All
// mutation goes through Plan's methods, which are safe for concurrent
// use; the orchestrator is the only writer but the API layer reads
// concurrently for status snapshots.
type Plan struct {
	mu        sync.Mutex
	pending   []*scan.Task
	running   []*scan.Task
	completed []*scan.Task
	failed    []*scan.Task
	skipped   []*scan.Task
}

// New returns an empty Plan.
func New() *Plan {
	return &Plan{}
}

// AddTask enqueues task. When priority is true the task is inserted at
// the front of the pending queue so it is popped before tasks already
// waiting.
func (p *Plan) AddTask(task *scan.Task, priority bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if priority {
		p.pending = append([]*scan.Task{task}, p.pending...)
		return
	}
	p.pending = append(p.pending, task)
}

// PopNext removes and returns the task at the front of the pending
// queue, moving it into running. Returns nil if pending is empty.
func (p *Plan) PopNext() *scan.Task {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.pending) == 0 {
		return nil
	}
	task := p.pending[0]
	p.pending = p.pending[1:]
	now := time.Now()
	task.Status = scan.TaskRunning
	task.StartedAt = &now
	p.running = append(p.running, task)
	return task
}

// MarkCompleted moves task from running to completed.
func (p *Plan) MarkCompleted(task *scan.Task) {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	task.Status = scan.TaskCompleted
	task.Progress = 100.0
	task.CompletedAt = &now
	p.moveFromRunning(task, &p.completed)
}

// MarkFailed moves task from running (or straight from creation, if it
// was never dispatched) to failed.
func (p *Plan) MarkFailed(task *scan.Task, errMsg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	task.Status = scan.TaskFailed
	task.Error = errMsg
	task.CompletedAt = &now
	if !p.moveFromRunning(task, &p.failed) {
		p.failed = append(p.failed, task)
	}
}

// MarkSkipped records task as skipped without ever running it, removing
// it from the pending queue if it is waiting there.
func (p *Plan) MarkSkipped(task *scan.Task, reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	task.Status = scan.TaskSkipped
	task.Error = reason
	task.CompletedAt = &now
	for i, t := range p.pending {
		if t.ID == task.ID {
			p.pending = append(p.pending[:i:i], p.pending[i+1:]...)
			break
		}
	}
	p.skipped = append(p.skipped, task)
}

// UpdateProgress sets task.Progress while it remains in running.
func (p *Plan) UpdateProgress(task *scan.Task, progress float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	task.Progress = progress
}

func (p *Plan) moveFromRunning(task *scan.Task, dest *[]*scan.Task) bool {
	for i, t := range p.running {
		if t.ID == task.ID {
			p.running = append(p.running[:i:i], p.running[i+1:]...)
			*dest = append(*dest, task)
			return true
		}
	}
	return false
}

// RunningCount returns how many tasks are currently in flight.
func (p *Plan) RunningCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.running)
}

// PendingCount returns how many tasks are waiting to be dispatched.
func (p *Plan) PendingCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// AllTasks returns every task across all buckets, in
// pending/running/completed/failed/skipped order.
func (p *Plan) AllTasks() []*scan.Task {
	p.mu.Lock()
	defer p.mu.Unlock()
	all := make([]*scan.Task, 0, len(p.pending)+len(p.running)+len(p.completed)+len(p.failed)+len(p.skipped))
	all = append(all, p.pending...)
	all = append(all, p.running...)
	all = append(all, p.completed...)
	all = append(all, p.failed...)
	all = append(all, p.skipped...)
	return all
}

// IsDrained reports whether there is no more work: nothing pending and
// nothing currently running.
func (p *Plan) IsDrained() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending) == 0 && len(p.running) == 0
}
