// Package orchestrator drives a single reconnaissance session: it picks
// the first task for a target, dispatches tasks to tool adapters up to
// a concurrency bound, ingests the assets and findings they discover,
// and chains follow-up tasks via the rules engine.
package orchestrator

import (
	"context"
	"fmt"
	"log"
	"net"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/reconpilot/reconpilotd/internal/events"
	"github.com/reconpilot/reconpilotd/internal/plan"
	"github.com/reconpilot/reconpilotd/internal/rules"
	"github.com/reconpilot/reconpilotd/internal/scan"
	"github.com/reconpilot/reconpilotd/internal/scoring"
	"github.com/reconpilot/reconpilotd/internal/store"
	"github.com/reconpilot/reconpilotd/internal/tools"
)

// Mode selects how aggressively the orchestrator chains follow-up
// tasks. Interactive is treated identically to Passive: neither mode
// auto-chains, leaving task creation to an external caller.
type Mode int

const (
	Auto Mode = iota
	Passive
	Interactive
)

// Options configures a single scan session.
type Options struct {
	Mode        Mode
	Scope       []string
	Exclude     []string
	MaxParallel int
	PassiveOnly bool
	Stealth     bool
	Timeout     time.Duration
}

var (
	urlRe = regexp.MustCompile(`^https?://`)
)

// Orchestrator runs the orchestration loop for one scan session. Each
// dispatched task ingests its own results on its own goroutine; o.mu
// guards session and seenAssets, and the plan guards itself with its
// own lock. Readers go through the exported, lock-guarded accessors.
type Orchestrator struct {
	mu      sync.Mutex
	session *scan.Session
	plan    *plan.Plan

	registry *tools.Registry
	rules    *rules.Engine
	scoring  *scoring.Engine
	bus      *events.Bus
	store    *store.Store

	opts Options
	sem  *semaphore.Weighted

	seenAssets map[scan.AssetKey]bool

	paused  atomic.Bool
	stopped atomic.Bool
	wg      sync.WaitGroup
}

// New creates an Orchestrator for target, ready to Start.
func New(target string, opts Options, registry *tools.Registry, rulesEngine *rules.Engine, scoringEngine *scoring.Engine, bus *events.Bus, st *store.Store) *Orchestrator {
	if opts.MaxParallel <= 0 {
		opts.MaxParallel = 3
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 300 * time.Second
	}
	return &Orchestrator{
		session:    scan.NewSession(target),
		plan:       plan.New(),
		registry:   registry,
		rules:      rulesEngine,
		scoring:    scoringEngine,
		bus:        bus,
		store:      st,
		opts:       opts,
		sem:        semaphore.NewWeighted(int64(opts.MaxParallel)),
		seenAssets: make(map[scan.AssetKey]bool),
	}
}

// Session returns a deep copy of the current session state, safe to
// read without racing the orchestration loop.
func (o *Orchestrator) Session() *scan.Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session.Clone()
}

// Start publishes ScanStarted, seeds the plan with an initial task
// selected by target shape, and runs the orchestration loop until the
// plan drains or Stop is called. It blocks until the session ends.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.publish(events.ScanStarted, map[string]any{"target": o.session.Target})

	initial := o.initialTask()
	o.mu.Lock()
	o.session.Tasks = append(o.session.Tasks, initial)
	o.mu.Unlock()
	o.plan.AddTask(initial, false)

	o.runLoop(ctx)

	o.mu.Lock()
	now := time.Now()
	o.session.CompletedAt = &now
	o.mu.Unlock()

	o.publish(events.ScanCompleted, map[string]any{
		"session_id": o.session.ID,
		"assets":     len(o.session.Assets),
		"findings":   len(o.session.Findings),
	})
	return nil
}

// initialTask picks the first tool to run based on the shape of the
// target string: a URL goes straight to HTTP probing, a bare IPv4
// address to port scanning, and everything else is assumed to be a
// domain and goes to subdomain enumeration.
func (o *Orchestrator) initialTask() *scan.Task {
	target := o.session.Target
	switch {
	case urlRe.MatchString(target):
		return scan.NewTask("httpx", "Initial HTTP probe", map[string]any{"target": target})
	case net.ParseIP(strings.TrimSpace(target)).To4() != nil:
		return scan.NewTask("nmap", "Initial port scan", map[string]any{"target": target})
	default:
		return scan.NewTask("subfinder", "Initial subdomain enumeration", map[string]any{"target": target})
	}
}

// Pause suspends dispatch of new tasks; tasks already running continue.
func (o *Orchestrator) Pause() {
	o.paused.Store(true)
	o.publish(events.ScanPaused, nil)
}

// Resume lifts a prior Pause.
func (o *Orchestrator) Resume() {
	o.paused.Store(false)
	o.publish(events.ScanResumed, nil)
}

// Stop halts dispatch of new tasks and lets the loop drain. Tasks
// already running are not interrupted.
func (o *Orchestrator) Stop() {
	o.stopped.Store(true)
}

// runLoop is the dispatch loop: while there's pending or running work
// and the session hasn't been stopped, pop the next task and fire it
// off in its own goroutine, bounded by the semaphore. Dispatch never
// awaits the spawned task — the loop immediately goes back to check for
// more work, matching the fire-and-forget scheduling every task's own
// goroutine coordinates through the plan and the semaphore.
func (o *Orchestrator) runLoop(ctx context.Context) {
	for {
		if o.stopped.Load() {
			break
		}
		if o.paused.Load() {
			time.Sleep(time.Second)
			continue
		}

		if o.plan.PendingCount() == 0 {
			if o.plan.RunningCount() == 0 {
				break
			}
			time.Sleep(100 * time.Millisecond)
			continue
		}

		if !o.sem.TryAcquire(1) {
			// Concurrency cap reached; wait for a running task to finish
			// before popping the next one off the pending queue.
			time.Sleep(100 * time.Millisecond)
			continue
		}

		task := o.plan.PopNext()
		if task == nil {
			o.sem.Release(1)
			time.Sleep(100 * time.Millisecond)
			continue
		}

		o.wg.Add(1)
		go func(t *scan.Task) {
			defer o.wg.Done()
			defer o.sem.Release(1)
			o.executeTask(ctx, t)
		}(task)
	}
	o.wg.Wait()
}

// executeTask runs a single task's adapter to completion, publishing
// TASK_STARTED, zero or more TASK_PROGRESS, and exactly one of
// TASK_COMPLETED or TASK_FAILED.
func (o *Orchestrator) executeTask(ctx context.Context, task *scan.Task) {
	adapter, ok := o.registry.Get(task.Name)
	if !ok || !adapter.IsAvailable() {
		reason := fmt.Sprintf("tool %q is not available", task.Name)
		o.plan.MarkFailed(task, reason)
		o.publish(events.TaskFailed, map[string]any{"task_id": task.ID, "name": task.Name, "error": reason})
		return
	}

	o.publish(events.TaskStarted, map[string]any{"task_id": task.ID, "name": task.Name})

	target := task.Target(o.session.Target)
	toolOpts := tools.Options{Scope: o.opts.Scope, Exclude: o.opts.Exclude, PassiveOnly: o.opts.PassiveOnly, Stealth: o.opts.Stealth}

	var last tools.Result
	var sawPartialData bool
	for result := range adapter.Execute(ctx, target, toolOpts) {
		last = result
		o.ingest(task, result)

		if result.Success && (len(result.Assets) > 0 || len(result.Findings) > 0) {
			sawPartialData = true
		}

		progress := result.Progress
		if progress == 0 {
			progress = 50.0
		}
		o.plan.UpdateProgress(task, progress)
		o.publish(events.TaskProgress, map[string]any{"task_id": task.ID, "progress": progress})
	}

	if !last.Success && !sawPartialData {
		o.plan.MarkFailed(task, last.Error)
		o.publish(events.TaskFailed, map[string]any{"task_id": task.ID, "name": task.Name, "error": last.Error})
		return
	}

	o.plan.MarkCompleted(task)
	o.publish(events.TaskCompleted, map[string]any{"task_id": task.ID, "name": task.Name})
}

// ingest records the assets and findings a tool result carries,
// deduplicating assets by (type, value) and chaining follow-up tasks in
// Auto mode. It's called from each task's own goroutine, so session
// and seenAssets mutations are guarded by o.mu.
func (o *Orchestrator) ingest(task *scan.Task, result tools.Result) {
	for _, asset := range result.Assets {
		o.handleAsset(asset)
	}
	for _, finding := range result.Findings {
		o.handleFinding(finding)
	}
	if o.store != nil {
		if err := o.store.SaveTask(context.Background(), o.session.ID, task); err != nil {
			log.Printf("orchestrator: persist task %s: %v", task.ID, err)
		}
	}
}

func (o *Orchestrator) handleAsset(asset *scan.Asset) {
	o.mu.Lock()
	key := asset.Key()
	if o.seenAssets[key] {
		o.mu.Unlock()
		return
	}
	o.seenAssets[key] = true
	asset.Score = o.scoring.ScoreAsset(asset)
	o.session.Assets = append(o.session.Assets, asset)
	o.mu.Unlock()

	o.publish(events.AssetDiscovered, map[string]any{
		"asset_id": asset.ID, "type": asset.Type, "value": asset.Value, "score": asset.Score,
	})

	if o.store != nil {
		if err := o.store.SaveAsset(context.Background(), o.session.ID, asset); err != nil {
			log.Printf("orchestrator: persist asset %s: %v", asset.ID, err)
		}
	}

	if o.opts.Mode != Auto {
		return
	}

	for _, match := range o.rules.NextTools(asset) {
		adapter, ok := o.registry.Get(match.Tool)
		if !ok || !adapter.IsAvailable() {
			continue
		}
		childTask := scan.NewTask(match.Tool, match.Reason, map[string]any{
			"target":   asset.Value,
			"asset_id": asset.ID,
		})
		o.mu.Lock()
		o.session.Tasks = append(o.session.Tasks, childTask)
		o.mu.Unlock()
		o.plan.AddTask(childTask, match.Priority > 8)
	}
}

func (o *Orchestrator) handleFinding(finding *scan.Finding) {
	o.mu.Lock()
	if finding.Metadata == nil {
		finding.Metadata = map[string]any{}
	}
	finding.Metadata["score"] = o.scoring.ScoreFinding(finding)
	o.session.Findings = append(o.session.Findings, finding)
	o.mu.Unlock()

	o.publish(events.FindingDiscovered, map[string]any{
		"finding_id": finding.ID, "severity": finding.Severity.String(), "title": finding.Title, "host": finding.Host,
	})

	if o.store != nil {
		if err := o.store.SaveFinding(context.Background(), o.session.ID, finding); err != nil {
			log.Printf("orchestrator: persist finding %s: %v", finding.ID, err)
		}
	}
}

func (o *Orchestrator) publish(typ events.Type, data map[string]any) {
	o.bus.Publish(events.Event{
		Type:      typ,
		Timestamp: time.Now(),
		Source:    "orchestrator",
		Data:      data,
	})
}
