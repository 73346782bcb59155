package adapters

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/reconpilot/reconpilotd/internal/scan"
	"github.com/reconpilot/reconpilotd/internal/tools"
)

type dnsxLine struct {
	Host string   `json:"host"`
	A    []string `json:"a"`
	AAAA []string `json:"aaaa"`
}

// Dnsx wraps the fast dnsx resolver.
type Dnsx struct {
	tools.BaseAdapter
}

// NewDnsx returns a Dnsx adapter.
func NewDnsx() *Dnsx {
	return &Dnsx{tools.BaseAdapter{Cfg: tools.Config{
		Name:     "dnsx",
		Binary:   "dnsx",
		Category: tools.CategoryDomain,
		Consumes: []string{"domain", "subdomain"},
		Produces: []string{"ip"},
	}}}
}

func (d *Dnsx) BuildCommand(target string, _ tools.Options) []string {
	return []string{"dnsx", "-silent", "-json", "-a", "-aaaa", "-host", target}
}

func (d *Dnsx) ParseOutput(stdout []byte) tools.Result {
	var assets []*scan.Asset
	for _, line := range strings.Split(strings.TrimSpace(string(stdout)), "\n") {
		if line == "" {
			continue
		}
		var rec dnsxLine
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			continue
		}
		for _, ip := range rec.A {
			assets = append(assets, scan.NewAsset("ip", ip, "dnsx", map[string]any{"hostname": rec.Host}))
		}
		for _, ip := range rec.AAAA {
			assets = append(assets, scan.NewAsset("ip", ip, "dnsx", map[string]any{"hostname": rec.Host, "ipv6": true}))
		}
	}
	return tools.Result{Success: true, Assets: assets}
}

func (d *Dnsx) ParsePartial(accum []byte) tools.Result {
	return d.ParseOutput(accum)
}

func (d *Dnsx) Execute(ctx context.Context, target string, opts tools.Options) <-chan tools.Result {
	return tools.Execute(ctx, d, target, opts)
}
