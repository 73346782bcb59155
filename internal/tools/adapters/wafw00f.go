package adapters

import (
	"context"
	"regexp"
	"strings"

	"github.com/reconpilot/reconpilotd/internal/scan"
	"github.com/reconpilot/reconpilotd/internal/tools"
)

var wafw00fURLRe = regexp.MustCompile(`https?://\S+`)

// Wafw00f wraps the wafw00f web application firewall fingerprinting tool.
type Wafw00f struct {
	tools.BaseAdapter
}

// NewWafw00f returns a Wafw00f adapter.
func NewWafw00f() *Wafw00f {
	return &Wafw00f{tools.BaseAdapter{Cfg: tools.Config{
		Name:     "wafw00f",
		Binary:   "wafw00f",
		Category: tools.CategoryHTTP,
		Consumes: []string{"http_service"},
		Produces: []string{"waf"},
	}}}
}

func (w *Wafw00f) BuildCommand(target string, _ tools.Options) []string {
	return []string{"wafw00f", target}
}

func (w *Wafw00f) ParseOutput(stdout []byte) tools.Result {
	output := string(stdout)
	var assets []*scan.Asset
	var findings []*scan.Finding

	for _, line := range strings.Split(output, "\n") {
		lower := strings.ToLower(line)
		if !strings.Contains(lower, "is behind") && !strings.Contains(lower, "detected") {
			continue
		}
		open := strings.Index(line, "(")
		close := strings.Index(line, ")")
		if open < 0 || close < 0 || close < open {
			continue
		}
		wafName := line[open+1 : close]

		assets = append(assets, scan.NewAsset("waf", wafName, "wafw00f", nil))

		url := "unknown"
		if m := wafw00fURLRe.FindString(output); m != "" {
			url = m
		}

		f := scan.NewFinding(scan.SeverityInfo, "WAF Detected: "+wafName, url,
			"Web application firewall detected: "+wafName, "wafw00f")
		f.Evidence = strings.TrimSpace(line)
		f.Recommendations = []string{
			"WAF may block certain security testing",
			"Consider WAF bypass techniques if authorized",
		}
		findings = append(findings, f)
	}

	return tools.Result{Success: true, Assets: assets, Findings: findings}
}

func (w *Wafw00f) ParsePartial(accum []byte) tools.Result {
	return w.ParseOutput(accum)
}

func (w *Wafw00f) Execute(ctx context.Context, target string, opts tools.Options) <-chan tools.Result {
	return tools.Execute(ctx, w, target, opts)
}
