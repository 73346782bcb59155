package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"github.com/reconpilot/reconpilotd/internal/events"
	"github.com/reconpilot/reconpilotd/internal/rules"
	"github.com/reconpilot/reconpilotd/internal/scan"
	"github.com/reconpilot/reconpilotd/internal/scoring"
	"github.com/reconpilot/reconpilotd/internal/store"
	"github.com/reconpilot/reconpilotd/internal/tools"
)

// Manager tracks every orchestrator this process has started, keyed by
// session ID, so the API layer can look one up to pause/resume/stop it
// or read its current state.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Orchestrator

	registry *tools.Registry
	rules    *rules.Engine
	scoring  *scoring.Engine
	bus      *events.Bus
	store    *store.Store
}

// NewManager returns a Manager sharing the given collaborators across
// every session it starts.
func NewManager(registry *tools.Registry, rulesEngine *rules.Engine, scoringEngine *scoring.Engine, bus *events.Bus, st *store.Store) *Manager {
	return &Manager{
		sessions: make(map[string]*Orchestrator),
		registry: registry,
		rules:    rulesEngine,
		scoring:  scoringEngine,
		bus:      bus,
		store:    st,
	}
}

// StartSession creates a new Orchestrator for target and runs it in a
// background goroutine, returning immediately with the new session ID.
func (m *Manager) StartSession(ctx context.Context, target string, opts Options) string {
	orch := New(target, opts, m.registry, m.rules, m.scoring, m.bus, m.store)

	m.mu.Lock()
	m.sessions[orch.session.ID] = orch
	m.mu.Unlock()

	if m.store != nil {
		m.store.SaveSession(ctx, orch.Session())
	}

	go orch.Start(ctx)
	return orch.session.ID
}

// Get returns the live Orchestrator for sessionID, if this process
// started it. Sessions are never removed from the Manager.
func (m *Manager) Get(sessionID string) (*Orchestrator, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.sessions[sessionID]
	return o, ok
}

// List returns a snapshot of every session this process is tracking.
func (m *Manager) List() []*scan.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*scan.Session, 0, len(m.sessions))
	for _, o := range m.sessions {
		out = append(out, o.Session())
	}
	return out
}

// Pause, Resume and Stop relay control actions to the named session's
// orchestrator.
func (m *Manager) Pause(sessionID string) error {
	o, ok := m.Get(sessionID)
	if !ok {
		return fmt.Errorf("session %s not found", sessionID)
	}
	o.Pause()
	return nil
}

func (m *Manager) Resume(sessionID string) error {
	o, ok := m.Get(sessionID)
	if !ok {
		return fmt.Errorf("session %s not found", sessionID)
	}
	o.Resume()
	return nil
}

func (m *Manager) Stop(sessionID string) error {
	o, ok := m.Get(sessionID)
	if !ok {
		return fmt.Errorf("session %s not found", sessionID)
	}
	o.Stop()
	return nil
}
