package adapters

import (
	"context"
	"strings"
	"time"

	"github.com/reconpilot/reconpilotd/internal/scan"
	"github.com/reconpilot/reconpilotd/internal/tools"
)

// Amass wraps the amass subdomain enumeration tool in passive mode.
type Amass struct {
	tools.BaseAdapter
}

// NewAmass returns an Amass adapter.
func NewAmass() *Amass {
	return &Amass{tools.BaseAdapter{Cfg: tools.Config{
		Name:     "amass",
		Binary:   "amass",
		Category: tools.CategorySubdomain,
		Consumes: []string{"domain"},
		Produces: []string{"subdomain"},
		Timeout:  600 * time.Second,
	}}}
}

func (a *Amass) BuildCommand(target string, _ tools.Options) []string {
	return []string{"amass", "enum", "-d", target, "-passive"}
}

func (a *Amass) ParseOutput(stdout []byte) tools.Result {
	var assets []*scan.Asset
	for _, line := range strings.Split(string(stdout), "\n") {
		sub := strings.TrimSpace(line)
		if sub != "" && strings.Contains(sub, ".") {
			assets = append(assets, scan.NewAsset("subdomain", sub, "amass", nil))
		}
	}
	return tools.Result{Success: true, Assets: assets}
}

func (a *Amass) ParsePartial(accum []byte) tools.Result {
	return a.ParseOutput(accum)
}

func (a *Amass) Execute(ctx context.Context, target string, opts tools.Options) <-chan tools.Result {
	return tools.Execute(ctx, a, target, opts)
}
