package adapters

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/reconpilot/reconpilotd/internal/scan"
	"github.com/reconpilot/reconpilotd/internal/tools"
)

type httpxLine struct {
	URL        string   `json:"url"`
	StatusCode int      `json:"status_code"`
	Title      string   `json:"title"`
	Tech       []string `json:"tech"`
}

var httpxSensitiveTitleWords = []string{"admin", "login", "dashboard", "panel", "console"}

// Httpx wraps the httpx HTTP probing tool.
type Httpx struct {
	tools.BaseAdapter
}

// NewHttpx returns an Httpx adapter.
func NewHttpx() *Httpx {
	return &Httpx{tools.BaseAdapter{Cfg: tools.Config{
		Name:     "httpx",
		Binary:   "httpx",
		Category: tools.CategoryHTTP,
		Consumes: []string{"domain", "subdomain", "ip"},
		Produces: []string{"http_service"},
	}}}
}

func (h *Httpx) BuildCommand(target string, _ tools.Options) []string {
	return []string{"httpx", "-u", target, "-json", "-silent", "-title", "-tech-detect", "-status-code"}
}

func (h *Httpx) ParseOutput(stdout []byte) tools.Result {
	var assets []*scan.Asset
	var findings []*scan.Finding

	for _, line := range strings.Split(strings.TrimSpace(string(stdout)), "\n") {
		if line == "" {
			continue
		}
		var rec httpxLine
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			continue
		}

		assets = append(assets, scan.NewAsset("http_service", rec.URL, "httpx", map[string]any{
			"status_code":  rec.StatusCode,
			"title":        rec.Title,
			"technologies": rec.Tech,
		}))

		if rec.StatusCode == 401 || rec.StatusCode == 403 {
			findings = append(findings, scan.NewFinding(scan.SeverityMedium, "Protected Resource", rec.URL,
				"HTTP service returned an authentication or authorization challenge", "httpx"))
		}

		lowerTitle := strings.ToLower(rec.Title)
		for _, kw := range httpxSensitiveTitleWords {
			if strings.Contains(lowerTitle, kw) {
				findings = append(findings, scan.NewFinding(scan.SeverityMedium, "Sensitive Page Detected", rec.URL,
					"Page title suggests an administrative or authentication interface", "httpx"))
				break
			}
		}
	}

	return tools.Result{Success: true, Assets: assets, Findings: findings}
}

func (h *Httpx) ParsePartial(accum []byte) tools.Result {
	return h.ParseOutput(accum)
}

func (h *Httpx) Execute(ctx context.Context, target string, opts tools.Options) <-chan tools.Result {
	return tools.Execute(ctx, h, target, opts)
}
