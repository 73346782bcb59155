package adapters

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/reconpilot/reconpilotd/internal/scan"
	"github.com/reconpilot/reconpilotd/internal/tools"
)

var (
	niktoTargetRe = regexp.MustCompile(`(?i)Target:\s+(.+)`)
	niktoOSVDBRe  = regexp.MustCompile(`OSVDB-(\d+)`)
)

var (
	niktoHighKeywords   = []string{"vulnerable", "exploit", "exposed"}
	niktoMediumKeywords = []string{"outdated", "deprecated", "old"}
	niktoLowKeywords    = []string{"missing", "weak"}
)

// Nikto wraps the nikto web server scanner.
type Nikto struct {
	tools.BaseAdapter
}

// NewNikto returns a Nikto adapter.
func NewNikto() *Nikto {
	return &Nikto{tools.BaseAdapter{Cfg: tools.Config{
		Name:     "nikto",
		Binary:   "nikto",
		Category: tools.CategoryVuln,
		Consumes: []string{"http_service"},
		Produces: []string{"vulnerability"},
		Timeout:  600 * time.Second,
	}}}
}

func (n *Nikto) BuildCommand(target string, _ tools.Options) []string {
	return []string{"nikto", "-h", target, "-nointeractive"}
}

func (n *Nikto) ParseOutput(stdout []byte) tools.Result {
	output := string(stdout)
	host := "unknown"
	if m := niktoTargetRe.FindStringSubmatch(output); m != nil {
		host = strings.TrimSpace(m[1])
	}

	var findings []*scan.Finding
	for _, raw := range strings.Split(output, "\n") {
		line := strings.TrimSpace(raw)
		if !strings.HasPrefix(line, "+") {
			continue
		}
		line = strings.TrimSpace(line[1:])
		if len(line) <= 10 {
			continue
		}

		severity := scan.SeverityInfo
		lower := strings.ToLower(line)
		switch {
		case containsAny(lower, niktoHighKeywords):
			severity = scan.SeverityHigh
		case containsAny(lower, niktoMediumKeywords):
			severity = scan.SeverityMedium
		case containsAny(lower, niktoLowKeywords):
			severity = scan.SeverityLow
		}

		f := scan.NewFinding(severity, "Nikto Finding", host, line, "nikto")
		f.Evidence = line
		if m := niktoOSVDBRe.FindStringSubmatch(line); m != nil {
			f.Metadata = map[string]any{"osvdb": m[1]}
		}
		findings = append(findings, f)
	}

	return tools.Result{Success: true, Findings: findings}
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func (n *Nikto) ParsePartial(accum []byte) tools.Result {
	return n.ParseOutput(accum)
}

func (n *Nikto) Execute(ctx context.Context, target string, opts tools.Options) <-chan tools.Result {
	return tools.Execute(ctx, n, target, opts)
}
