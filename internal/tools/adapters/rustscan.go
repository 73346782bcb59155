package adapters

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/reconpilot/reconpilotd/internal/scan"
	"github.com/reconpilot/reconpilotd/internal/tools"
)

var rustscanLineRe = regexp.MustCompile(`(\S+)\s+->\s+\[(.+)\]`)

// Rustscan wraps the rustscan fast port scanner.
type Rustscan struct {
	tools.BaseAdapter
}

// NewRustscan returns a Rustscan adapter.
func NewRustscan() *Rustscan {
	return &Rustscan{tools.BaseAdapter{Cfg: tools.Config{
		Name:     "rustscan",
		Binary:   "rustscan",
		Category: tools.CategoryPort,
		Consumes: []string{"ip", "domain"},
		Produces: []string{"port"},
	}}}
}

func (r *Rustscan) BuildCommand(target string, _ tools.Options) []string {
	return []string{"rustscan", "-a", target, "--ulimit", "5000", "--greppable"}
}

func (r *Rustscan) ParseOutput(stdout []byte) tools.Result {
	var assets []*scan.Asset
	for _, line := range strings.Split(string(stdout), "\n") {
		m := rustscanLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		ip := m[1]
		for _, port := range strings.Split(m[2], ",") {
			port = strings.TrimSpace(port)
			if port == "" {
				continue
			}
			if _, err := fmt.Sscanf(port, "%d", new(int)); err != nil {
				continue
			}
			assets = append(assets, scan.NewAsset("port", fmt.Sprintf("%s:%s", ip, port), "rustscan", map[string]any{"port": port}))
		}
	}
	return tools.Result{Success: true, Assets: assets}
}

func (r *Rustscan) ParsePartial(accum []byte) tools.Result {
	return r.ParseOutput(accum)
}

func (r *Rustscan) Execute(ctx context.Context, target string, opts tools.Options) <-chan tools.Result {
	return tools.Execute(ctx, r, target, opts)
}
