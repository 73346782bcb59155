package adapters

import (
	"context"
	"regexp"
	"strings"

	"github.com/reconpilot/reconpilotd/internal/scan"
	"github.com/reconpilot/reconpilotd/internal/tools"
)

var (
	whoisRegistrarRe  = regexp.MustCompile(`(?i)Registrar:\s+(.+)`)
	whoisCreatedRe    = regexp.MustCompile(`(?i)Creation Date:\s+(.+)`)
	whoisNameserverRe = regexp.MustCompile(`(?i)Name Server:\s+(.+)`)
	whoisDomainNameRe = regexp.MustCompile(`(?i)Domain Name:\s+(.+)`)
)

// Whois wraps the whois command-line client.
type Whois struct {
	tools.BaseAdapter
}

// NewWhois returns a Whois adapter.
func NewWhois() *Whois {
	return &Whois{tools.BaseAdapter{Cfg: tools.Config{
		Name:     "whois",
		Binary:   "whois",
		Category: tools.CategoryDomain,
		Consumes: []string{"domain"},
		Produces: []string{"whois_info"},
	}}}
}

func (w *Whois) BuildCommand(target string, _ tools.Options) []string {
	return []string{"whois", target}
}

func (w *Whois) ParseOutput(stdout []byte) tools.Result {
	output := string(stdout)
	var assets []*scan.Asset
	var findings []*scan.Finding

	if m := whoisRegistrarRe.FindStringSubmatch(output); m != nil {
		assets = append(assets, scan.NewAsset("whois_info", "Registrar: "+strings.TrimSpace(m[1]), "whois", nil))
	}
	if m := whoisCreatedRe.FindStringSubmatch(output); m != nil {
		assets = append(assets, scan.NewAsset("whois_info", "Created: "+strings.TrimSpace(m[1]), "whois", nil))
	}
	for _, m := range whoisNameserverRe.FindAllStringSubmatch(output, -1) {
		assets = append(assets, scan.NewAsset("nameserver", strings.ToLower(strings.TrimSpace(m[1])), "whois", nil))
	}

	lower := strings.ToLower(output)
	if strings.Contains(lower, "redacted") || strings.Contains(lower, "privacy") {
		domain := "unknown"
		if m := whoisDomainNameRe.FindStringSubmatch(output); m != nil {
			domain = strings.TrimSpace(m[1])
		}
		findings = append(findings, scan.NewFinding(scan.SeverityInfo, "Domain Privacy Enabled", domain,
			"Domain has privacy protection enabled", "whois"))
	}

	return tools.Result{Success: true, Assets: assets, Findings: findings}
}

func (w *Whois) ParsePartial(accum []byte) tools.Result {
	return w.ParseOutput(accum)
}

func (w *Whois) Execute(ctx context.Context, target string, opts tools.Options) <-chan tools.Result {
	return tools.Execute(ctx, w, target, opts)
}
