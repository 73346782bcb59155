package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/reconpilot/reconpilotd/internal/events"
	"github.com/reconpilot/reconpilotd/internal/rules"
	"github.com/reconpilot/reconpilotd/internal/scan"
	"github.com/reconpilot/reconpilotd/internal/scoring"
	"github.com/reconpilot/reconpilotd/internal/tools"
)

// fakeAdapter produces a fixed set of assets/findings once, synchronously,
// bypassing tools.Execute's subprocess machinery entirely.
type fakeAdapter struct {
	name     string
	assets   []*scan.Asset
	findings []*scan.Finding
	calls    *int32Counter
}

type int32Counter struct {
	mu sync.Mutex
	n  int
}

func (c *int32Counter) inc() {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

func (c *int32Counter) get() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func (f *fakeAdapter) Config() tools.Config {
	return tools.Config{Name: f.name, Binary: f.name}
}
func (f *fakeAdapter) IsAvailable() bool { return true }
func (f *fakeAdapter) BuildCommand(target string, opts tools.Options) []string {
	return []string{f.name, target}
}
func (f *fakeAdapter) ParseOutput(stdout []byte) tools.Result {
	return tools.Result{Success: true, Assets: f.assets, Findings: f.findings}
}
func (f *fakeAdapter) ParsePartial(accum []byte) tools.Result {
	return tools.Result{Success: true}
}
func (f *fakeAdapter) Execute(ctx context.Context, target string, opts tools.Options) <-chan tools.Result {
	if f.calls != nil {
		f.calls.inc()
	}
	out := make(chan tools.Result, 1)
	out <- tools.Result{Success: true, Assets: f.assets, Findings: f.findings}
	close(out)
	return out
}

func newTestOrchestrator(target string, opts Options, registry *tools.Registry) *Orchestrator {
	return New(target, opts, registry, rules.NewEngine(), scoring.NewEngine(), events.New(), nil)
}

func TestStartPublishesLifecycleEvents(t *testing.T) {
	registry := tools.NewRegistry()
	registry.Register(&fakeAdapter{name: "subfinder"})

	bus := events.New()
	o := New("example.com", Options{MaxParallel: 1, Timeout: time.Second}, registry, rules.NewEngine(), scoring.NewEngine(), bus, nil)

	var mu sync.Mutex
	var seen []events.Type
	for _, typ := range []events.Type{events.ScanStarted, events.ScanCompleted, events.TaskStarted, events.TaskCompleted} {
		bus.Subscribe(typ, func(ev events.Event) {
			mu.Lock()
			seen = append(seen, ev.Type)
			mu.Unlock()
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := o.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	has := func(typ events.Type) bool {
		for _, s := range seen {
			if s == typ {
				return true
			}
		}
		return false
	}
	for _, typ := range []events.Type{events.ScanStarted, events.ScanCompleted, events.TaskStarted, events.TaskCompleted} {
		if !has(typ) {
			t.Errorf("expected event %v to have been published, saw %v", typ, seen)
		}
	}
}

func TestAssetDedupPreventsDoubleChaining(t *testing.T) {
	registry := tools.NewRegistry()
	calls := &int32Counter{}
	registry.Register(&fakeAdapter{
		name: "subfinder",
		assets: []*scan.Asset{
			scan.NewAsset("domain", "example.com", "subfinder", nil),
		},
	})
	registry.Register(&fakeAdapter{name: "whois", calls: calls})
	registry.Register(&fakeAdapter{name: "dnsrecon", calls: calls})

	o := newTestOrchestrator("example.com", Options{Mode: Auto, MaxParallel: 2, Timeout: time.Second}, registry)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := o.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	sess := o.Session()
	if len(sess.Assets) != 1 {
		t.Fatalf("expected exactly one deduplicated asset, got %d", len(sess.Assets))
	}
	// The domain asset chains whois and dnsrecon once each; the chained
	// subfinder re-reports the same asset, which must not chain again.
	if got := calls.get(); got != 2 {
		t.Errorf("whois+dnsrecon invoked %d times, want 2 (one chain per unique asset)", got)
	}
}

func TestPassiveModeDoesNotChain(t *testing.T) {
	registry := tools.NewRegistry()
	registry.Register(&fakeAdapter{
		name: "subfinder",
		assets: []*scan.Asset{
			scan.NewAsset("domain", "example.com", "subfinder", nil),
		},
	})
	registry.Register(&fakeAdapter{name: "whois"})
	registry.Register(&fakeAdapter{name: "dnsrecon"})

	o := newTestOrchestrator("example.com", Options{Mode: Passive, MaxParallel: 2, Timeout: time.Second}, registry)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := o.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	sess := o.Session()
	if len(sess.Tasks) != 1 {
		t.Errorf("passive mode chained follow-up tasks, got %d tasks: %+v", len(sess.Tasks), sess.Tasks)
	}
}

func TestInitialTaskSelectionByTargetShape(t *testing.T) {
	registry := tools.NewRegistry()
	cases := []struct {
		target string
		want   string
	}{
		{"https://example.com", "httpx"},
		{"192.168.1.1", "nmap"},
		{"example.com", "subfinder"},
	}
	for _, c := range cases {
		o := newTestOrchestrator(c.target, Options{}, registry)
		got := o.initialTask()
		if got.Name != c.want {
			t.Errorf("initialTask(%q) = %q, want %q", c.target, got.Name, c.want)
		}
	}
}

func TestPauseAndResumePublishEvents(t *testing.T) {
	registry := tools.NewRegistry()
	registry.Register(&fakeAdapter{name: "subfinder"})

	bus := events.New()
	var paused, resumed bool
	bus.Subscribe(events.ScanPaused, func(events.Event) { paused = true })
	bus.Subscribe(events.ScanResumed, func(events.Event) { resumed = true })

	o := New("example.com", Options{MaxParallel: 1, Timeout: time.Second}, registry, rules.NewEngine(), scoring.NewEngine(), bus, nil)
	o.Pause()
	o.Resume()

	if !paused {
		t.Error("Pause did not publish ScanPaused")
	}
	if !resumed {
		t.Error("Resume did not publish ScanResumed")
	}
}
