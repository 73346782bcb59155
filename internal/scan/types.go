// Package scan holds the core data model: sessions, tasks, assets and
// findings discovered while reconnoitering a target.
package scan

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TaskStatus is the lifecycle state of a Task.
type TaskStatus int

const (
	TaskPending TaskStatus = iota
	TaskRunning
	TaskCompleted
	TaskFailed
	TaskSkipped
)

var taskStatusNames = map[TaskStatus]string{
	TaskPending:   "pending",
	TaskRunning:   "running",
	TaskCompleted: "completed",
	TaskFailed:    "failed",
	TaskSkipped:   "skipped",
}

var taskStatusFromName = map[string]TaskStatus{
	"pending":   TaskPending,
	"running":   TaskRunning,
	"completed": TaskCompleted,
	"failed":    TaskFailed,
	"skipped":   TaskSkipped,
}

func (s TaskStatus) String() string {
	if v, ok := taskStatusNames[s]; ok {
		return v
	}
	return "unknown"
}

func (s TaskStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *TaskStatus) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	if v, ok := taskStatusFromName[name]; ok {
		*s = v
	}
	return nil
}

// Severity is the impact level of a Finding.
type Severity int

const (
	SeverityCritical Severity = iota
	SeverityHigh
	SeverityMedium
	SeverityLow
	SeverityInfo
)

var severityNames = map[Severity]string{
	SeverityCritical: "critical",
	SeverityHigh:     "high",
	SeverityMedium:   "medium",
	SeverityLow:      "low",
	SeverityInfo:     "info",
}

var severityFromName = map[string]Severity{
	"critical": SeverityCritical,
	"high":     SeverityHigh,
	"medium":   SeverityMedium,
	"low":      SeverityLow,
	"info":     SeverityInfo,
}

func (s Severity) String() string {
	if v, ok := severityNames[s]; ok {
		return v
	}
	return "unknown"
}

func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Severity) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	if v, ok := severityFromName[name]; ok {
		*s = v
	}
	return nil
}

// Task is a unit of work naming a tool and a target.
type Task struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Status      TaskStatus     `json:"status"`
	Progress    float64        `json:"progress"`
	CreatedAt   time.Time      `json:"createdAt"`
	StartedAt   *time.Time     `json:"startedAt,omitempty"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`
	Error       string         `json:"error,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// NewTask creates a pending Task for the given tool name.
func NewTask(name, description string, metadata map[string]any) *Task {
	if metadata == nil {
		metadata = map[string]any{}
	}
	return &Task{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		Status:      TaskPending,
		CreatedAt:   time.Now(),
		Metadata:    metadata,
	}
}

// Target returns the task's target metadata, falling back to fallback when unset.
func (t *Task) Target(fallback string) string {
	if t.Metadata == nil {
		return fallback
	}
	if v, ok := t.Metadata["target"].(string); ok && v != "" {
		return v
	}
	return fallback
}

// Clone returns a deep copy safe to mutate independently of t.
func (t *Task) Clone() *Task {
	c := *t
	if t.StartedAt != nil {
		v := *t.StartedAt
		c.StartedAt = &v
	}
	if t.CompletedAt != nil {
		v := *t.CompletedAt
		c.CompletedAt = &v
	}
	c.Metadata = cloneMap(t.Metadata)
	return &c
}

// Asset is a discovered observable: a domain, subdomain, IP, port, HTTP
// service, technology fingerprint, and so on. The type set is open — new
// adapters may introduce new type strings without touching this package.
type Asset struct {
	ID            string         `json:"id"`
	Type          string         `json:"type"`
	Value         string         `json:"value"`
	DiscoveredBy  string         `json:"discoveredBy"`
	Timestamp     time.Time      `json:"timestamp"`
	Score         float64        `json:"score"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// NewAsset creates an Asset with a fresh ID and current timestamp.
func NewAsset(assetType, value, discoveredBy string, metadata map[string]any) *Asset {
	if metadata == nil {
		metadata = map[string]any{}
	}
	return &Asset{
		ID:           uuid.NewString(),
		Type:         assetType,
		Value:        value,
		DiscoveredBy: discoveredBy,
		Timestamp:    time.Now(),
		Metadata:     metadata,
	}
}

// Key returns the dedup key (type, value) used by the orchestrator.
func (a *Asset) Key() AssetKey {
	return AssetKey{Type: a.Type, Value: a.Value}
}

// Clone returns a deep copy safe to mutate independently of a.
func (a *Asset) Clone() *Asset {
	c := *a
	c.Metadata = cloneMap(a.Metadata)
	return &c
}

// AssetKey is the deduplication key for an Asset: the (type, value) pair.
type AssetKey struct {
	Type  string
	Value string
}

// Finding is a security-relevant observation with a severity.
type Finding struct {
	ID              string         `json:"id"`
	Severity        Severity       `json:"severity"`
	Title           string         `json:"title"`
	Host            string         `json:"host"`
	Description     string         `json:"description"`
	DiscoveredBy    string         `json:"discoveredBy"`
	Timestamp       time.Time      `json:"timestamp"`
	Evidence        string         `json:"evidence,omitempty"`
	Recommendations []string       `json:"recommendations,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// NewFinding creates a Finding with a fresh ID and current timestamp.
func NewFinding(severity Severity, title, host, description, discoveredBy string) *Finding {
	return &Finding{
		ID:           uuid.NewString(),
		Severity:     severity,
		Title:        title,
		Host:         host,
		Description:  description,
		DiscoveredBy: discoveredBy,
		Timestamp:    time.Now(),
	}
}

// Clone returns a deep copy safe to mutate independently of f.
func (f *Finding) Clone() *Finding {
	c := *f
	c.Recommendations = append([]string(nil), f.Recommendations...)
	c.Metadata = cloneMap(f.Metadata)
	return &c
}

// Session is the root aggregate for a complete reconnaissance run.
type Session struct {
	ID          string         `json:"id"`
	Target      string         `json:"target"`
	StartedAt   time.Time      `json:"startedAt"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`
	Tasks       []*Task        `json:"tasks"`
	Assets      []*Asset       `json:"assets"`
	Findings    []*Finding     `json:"findings"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// NewSession creates a Session rooted at target.
func NewSession(target string) *Session {
	return &Session{
		ID:        uuid.NewString(),
		Target:    target,
		StartedAt: time.Now(),
		Metadata:  map[string]any{},
	}
}

// CriticalCount returns the number of Findings at critical severity.
func (s *Session) CriticalCount() int {
	return s.countSeverity(SeverityCritical)
}

// HighCount returns the number of Findings at high severity.
func (s *Session) HighCount() int {
	return s.countSeverity(SeverityHigh)
}

func (s *Session) countSeverity(sev Severity) int {
	n := 0
	for _, f := range s.Findings {
		if f.Severity == sev {
			n++
		}
	}
	return n
}

// Clone returns a deep copy of the session, including all child slices.
func (s *Session) Clone() *Session {
	c := *s
	if s.CompletedAt != nil {
		v := *s.CompletedAt
		c.CompletedAt = &v
	}
	c.Tasks = make([]*Task, len(s.Tasks))
	for i, t := range s.Tasks {
		c.Tasks[i] = t.Clone()
	}
	c.Assets = make([]*Asset, len(s.Assets))
	for i, a := range s.Assets {
		c.Assets[i] = a.Clone()
	}
	c.Findings = make([]*Finding, len(s.Findings))
	for i, f := range s.Findings {
		c.Findings[i] = f.Clone()
	}
	c.Metadata = cloneMap(s.Metadata)
	return &c
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	c := make(map[string]any, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}
