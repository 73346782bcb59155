package adapters

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/reconpilot/reconpilotd/internal/scan"
	"github.com/reconpilot/reconpilotd/internal/tools"
)

type whatwebLine struct {
	Target  string                     `json:"target"`
	Plugins map[string]whatwebPlugin   `json:"plugins"`
}

type whatwebPlugin struct {
	Version []string `json:"version"`
}

// Whatweb wraps the whatweb web technology fingerprinting tool.
type Whatweb struct {
	tools.BaseAdapter
}

// NewWhatweb returns a Whatweb adapter.
func NewWhatweb() *Whatweb {
	return &Whatweb{tools.BaseAdapter{Cfg: tools.Config{
		Name:     "whatweb",
		Binary:   "whatweb",
		Category: tools.CategoryHTTP,
		Consumes: []string{"http_service"},
		Produces: []string{"technology"},
	}}}
}

func (w *Whatweb) BuildCommand(target string, _ tools.Options) []string {
	return []string{"whatweb", "--log-json=/dev/stdout", target}
}

func (w *Whatweb) ParseOutput(stdout []byte) tools.Result {
	var assets []*scan.Asset
	for _, line := range strings.Split(strings.TrimSpace(string(stdout)), "\n") {
		if line == "" {
			continue
		}
		var rec whatwebLine
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			continue
		}
		for name, plugin := range rec.Plugins {
			version := ""
			if len(plugin.Version) > 0 {
				version = plugin.Version[0]
			}
			value := name
			if version != "" {
				value = name + " " + version
			}
			assets = append(assets, scan.NewAsset("technology", value, "whatweb", map[string]any{
				"url":        rec.Target,
				"technology": name,
				"version":    version,
			}))
		}
	}
	return tools.Result{Success: true, Assets: assets}
}

func (w *Whatweb) ParsePartial(accum []byte) tools.Result {
	return w.ParseOutput(accum)
}

func (w *Whatweb) Execute(ctx context.Context, target string, opts tools.Options) <-chan tools.Result {
	return tools.Execute(ctx, w, target, opts)
}
