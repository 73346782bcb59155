package adapters

import (
	"context"
	"encoding/json"
	"time"

	"github.com/reconpilot/reconpilotd/internal/scan"
	"github.com/reconpilot/reconpilotd/internal/tools"
)

type wpscanOutput struct {
	TargetURL string `json:"target_url"`
	Version   struct {
		Number string `json:"number"`
		Status string `json:"status"`
	} `json:"version"`
	Plugins map[string]wpscanComponent `json:"plugins"`
	Themes  map[string]wpscanComponent `json:"themes"`
}

type wpscanComponent struct {
	Vulnerabilities []wpscanVuln `json:"vulnerabilities"`
}

type wpscanVuln struct {
	Title string `json:"title"`
}

// Wpscan wraps the wpscan WordPress vulnerability scanner.
type Wpscan struct {
	tools.BaseAdapter
}

// NewWpscan returns a Wpscan adapter.
func NewWpscan() *Wpscan {
	return &Wpscan{tools.BaseAdapter{Cfg: tools.Config{
		Name:     "wpscan",
		Binary:   "wpscan",
		Category: tools.CategoryVuln,
		Consumes: []string{"http_service"},
		Produces: []string{"vulnerability"},
		Timeout:  600 * time.Second,
	}}}
}

func (w *Wpscan) BuildCommand(target string, _ tools.Options) []string {
	return []string{"wpscan", "--url", target, "--format", "json", "--random-user-agent"}
}

func (w *Wpscan) ParseOutput(stdout []byte) tools.Result {
	var data wpscanOutput
	if err := json.Unmarshal(stdout, &data); err != nil {
		return tools.Result{Success: true}
	}

	targetURL := data.TargetURL
	if targetURL == "" {
		targetURL = "unknown"
	}

	var assets []*scan.Asset
	var findings []*scan.Finding

	if data.Version.Number != "" {
		assets = append(assets, scan.NewAsset("technology", "WordPress "+data.Version.Number, "wpscan",
			map[string]any{"version": data.Version.Number}))

		if data.Version.Status == "insecure" {
			f := scan.NewFinding(scan.SeverityHigh, "Outdated WordPress Version", targetURL,
				"WordPress version "+data.Version.Number+" is outdated", "wpscan")
			f.Recommendations = []string{"Update WordPress to the latest version"}
			findings = append(findings, f)
		}
	}

	for name, plugin := range data.Plugins {
		for _, vuln := range plugin.Vulnerabilities {
			title := vuln.Title
			if title == "" {
				title = "WordPress Plugin Vulnerability"
			}
			evidence, _ := json.MarshalIndent(vuln, "", "  ")
			f := scan.NewFinding(scan.SeverityHigh, title, targetURL, "Plugin "+name+": "+title, "wpscan")
			f.Evidence = string(evidence)
			f.Recommendations = []string{"Update or remove plugin: " + name, "Review plugin security advisory"}
			findings = append(findings, f)
		}
	}

	for name, theme := range data.Themes {
		for _, vuln := range theme.Vulnerabilities {
			title := vuln.Title
			if title == "" {
				title = "WordPress Theme Vulnerability"
			}
			evidence, _ := json.MarshalIndent(vuln, "", "  ")
			f := scan.NewFinding(scan.SeverityMedium, title, targetURL, "Theme "+name+": "+title, "wpscan")
			f.Evidence = string(evidence)
			f.Recommendations = []string{"Update or change theme: " + name, "Review theme security advisory"}
			findings = append(findings, f)
		}
	}

	return tools.Result{Success: true, Assets: assets, Findings: findings}
}

func (w *Wpscan) ParsePartial(accum []byte) tools.Result {
	return w.ParseOutput(accum)
}

func (w *Wpscan) Execute(ctx context.Context, target string, opts tools.Options) <-chan tools.Result {
	return tools.Execute(ctx, w, target, opts)
}
