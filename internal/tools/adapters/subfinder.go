// Package adapters contains one Adapter implementation per wrapped
// reconnaissance tool.
package adapters

import (
	"context"
	"strings"

	"github.com/reconpilot/reconpilotd/internal/scan"
	"github.com/reconpilot/reconpilotd/internal/tools"
)

// Subfinder wraps the subfinder passive subdomain enumeration tool.
type Subfinder struct {
	tools.BaseAdapter
}

// NewSubfinder returns a Subfinder adapter.
func NewSubfinder() *Subfinder {
	return &Subfinder{tools.BaseAdapter{Cfg: tools.Config{
		Name:     "subfinder",
		Binary:   "subfinder",
		Category: tools.CategorySubdomain,
		Consumes: []string{"domain"},
		Produces: []string{"subdomain"},
	}}}
}

func (s *Subfinder) BuildCommand(target string, _ tools.Options) []string {
	return []string{"subfinder", "-d", target, "-silent"}
}

func (s *Subfinder) ParseOutput(stdout []byte) tools.Result {
	var assets []*scan.Asset
	for _, line := range strings.Split(string(stdout), "\n") {
		sub := strings.TrimSpace(line)
		if sub != "" && strings.Contains(sub, ".") {
			assets = append(assets, scan.NewAsset("subdomain", sub, "subfinder", nil))
		}
	}
	return tools.Result{Success: true, Assets: assets}
}

func (s *Subfinder) ParsePartial(accum []byte) tools.Result {
	return s.ParseOutput(accum)
}

func (s *Subfinder) Execute(ctx context.Context, target string, opts tools.Options) <-chan tools.Result {
	return tools.Execute(ctx, s, target, opts)
}
