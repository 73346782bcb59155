package adapters

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/reconpilot/reconpilotd/internal/scan"
	"github.com/reconpilot/reconpilotd/internal/tools"
)

type nucleiLine struct {
	TemplateID string `json:"template-id"`
	MatchedAt  string `json:"matched-at"`
	Info       struct {
		Name        string `json:"name"`
		Severity    string `json:"severity"`
		Description string `json:"description"`
	} `json:"info"`
}

var nucleiSeverity = map[string]scan.Severity{
	"critical": scan.SeverityCritical,
	"high":     scan.SeverityHigh,
	"medium":   scan.SeverityMedium,
	"low":      scan.SeverityLow,
	"info":     scan.SeverityInfo,
}

// Nuclei wraps the nuclei template-based vulnerability scanner.
type Nuclei struct {
	tools.BaseAdapter
}

// NewNuclei returns a Nuclei adapter.
func NewNuclei() *Nuclei {
	return &Nuclei{tools.BaseAdapter{Cfg: tools.Config{
		Name:     "nuclei",
		Binary:   "nuclei",
		Category: tools.CategoryVuln,
		Consumes: []string{"http_service"},
		Produces: []string{"vulnerability"},
		Timeout:  600 * time.Second,
	}}}
}

func (n *Nuclei) BuildCommand(target string, _ tools.Options) []string {
	return []string{"nuclei", "-u", target, "-json", "-silent"}
}

func (n *Nuclei) ParseOutput(stdout []byte) tools.Result {
	var findings []*scan.Finding
	for _, line := range strings.Split(strings.TrimSpace(string(stdout)), "\n") {
		if line == "" {
			continue
		}
		var rec nucleiLine
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			continue
		}

		severity, ok := nucleiSeverity[strings.ToLower(rec.Info.Severity)]
		if !ok {
			severity = scan.SeverityInfo
		}
		name := rec.Info.Name
		if name == "" {
			name = rec.TemplateID
		}
		description := rec.Info.Description
		if description == "" {
			description = "Nuclei template: " + rec.TemplateID
		}

		f := scan.NewFinding(severity, name, rec.MatchedAt, description, "nuclei")
		f.Evidence = line
		f.Metadata = map[string]any{"template_id": rec.TemplateID}
		f.Recommendations = []string{
			"Review the vulnerability details",
			"Apply patches or mitigations",
			"Verify the finding manually",
		}
		findings = append(findings, f)
	}
	return tools.Result{Success: true, Findings: findings}
}

func (n *Nuclei) ParsePartial(accum []byte) tools.Result {
	return n.ParseOutput(accum)
}

func (n *Nuclei) Execute(ctx context.Context, target string, opts tools.Options) <-chan tools.Result {
	return tools.Execute(ctx, n, target, opts)
}
