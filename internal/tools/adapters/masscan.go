package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/reconpilot/reconpilotd/internal/scan"
	"github.com/reconpilot/reconpilotd/internal/tools"
)

type masscanPort struct {
	Port  int    `json:"port"`
	Proto string `json:"proto"`
}

type masscanLine struct {
	IP    string        `json:"ip"`
	Ports []masscanPort `json:"ports"`
}

// Masscan wraps the masscan high-speed port scanner. Masscan requires
// elevated privileges to run; the adapter does not attempt to acquire
// them, it assumes the daemon process already has the capability.
type Masscan struct {
	tools.BaseAdapter
}

// NewMasscan returns a Masscan adapter.
func NewMasscan() *Masscan {
	return &Masscan{tools.BaseAdapter{Cfg: tools.Config{
		Name:     "masscan",
		Binary:   "masscan",
		Category: tools.CategoryPort,
		Consumes: []string{"ip", "domain"},
		Produces: []string{"port"},
	}}}
}

func (m *Masscan) BuildCommand(target string, _ tools.Options) []string {
	return []string{"masscan", target, "-p1-65535", "--rate=1000", "-oJ", "-"}
}

func (m *Masscan) ParseOutput(stdout []byte) tools.Result {
	var assets []*scan.Asset
	for _, line := range strings.Split(strings.TrimSpace(string(stdout)), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSuffix(line, ",")

		var rec masscanLine
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			continue
		}
		for _, p := range rec.Ports {
			if rec.IP == "" || p.Port == 0 {
				continue
			}
			proto := p.Proto
			if proto == "" {
				proto = "tcp"
			}
			assets = append(assets, scan.NewAsset("port", fmt.Sprintf("%s:%d", rec.IP, p.Port), "masscan", map[string]any{
				"port":     fmt.Sprintf("%d", p.Port),
				"protocol": proto,
			}))
		}
	}
	return tools.Result{Success: true, Assets: assets}
}

func (m *Masscan) ParsePartial(accum []byte) tools.Result {
	return m.ParseOutput(accum)
}

func (m *Masscan) Execute(ctx context.Context, target string, opts tools.Options) <-chan tools.Result {
	return tools.Execute(ctx, m, target, opts)
}
