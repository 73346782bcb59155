package adapters

import (
	"context"
	"strings"

	"github.com/reconpilot/reconpilotd/internal/scan"
	"github.com/reconpilot/reconpilotd/internal/tools"
)

// Assetfinder wraps the assetfinder subdomain discovery tool.
type Assetfinder struct {
	tools.BaseAdapter
}

// NewAssetfinder returns an Assetfinder adapter.
func NewAssetfinder() *Assetfinder {
	return &Assetfinder{tools.BaseAdapter{Cfg: tools.Config{
		Name:     "assetfinder",
		Binary:   "assetfinder",
		Category: tools.CategorySubdomain,
		Consumes: []string{"domain"},
		Produces: []string{"subdomain"},
	}}}
}

func (a *Assetfinder) BuildCommand(target string, _ tools.Options) []string {
	return []string{"assetfinder", "--subs-only", target}
}

func (a *Assetfinder) ParseOutput(stdout []byte) tools.Result {
	var assets []*scan.Asset
	for _, line := range strings.Split(string(stdout), "\n") {
		sub := strings.TrimSpace(line)
		if sub != "" && strings.Contains(sub, ".") {
			assets = append(assets, scan.NewAsset("subdomain", sub, "assetfinder", nil))
		}
	}
	return tools.Result{Success: true, Assets: assets}
}

func (a *Assetfinder) ParsePartial(accum []byte) tools.Result {
	return a.ParseOutput(accum)
}

func (a *Assetfinder) Execute(ctx context.Context, target string, opts tools.Options) <-chan tools.Result {
	return tools.Execute(ctx, a, target, opts)
}
