package adapters

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/reconpilot/reconpilotd/internal/scan"
	"github.com/reconpilot/reconpilotd/internal/tools"
)

var dnsreconIPRe = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)

type dnsreconRecord struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	Address string `json:"address"`
}

// Dnsrecon wraps the dnsrecon DNS enumeration tool.
type Dnsrecon struct {
	tools.BaseAdapter
}

// NewDnsrecon returns a Dnsrecon adapter.
func NewDnsrecon() *Dnsrecon {
	return &Dnsrecon{tools.BaseAdapter{Cfg: tools.Config{
		Name:     "dnsrecon",
		Binary:   "dnsrecon",
		Category: tools.CategoryDomain,
		Consumes: []string{"domain"},
		Produces: []string{"ip", "subdomain", "dns_record"},
	}}}
}

func (d *Dnsrecon) BuildCommand(target string, _ tools.Options) []string {
	return []string{"dnsrecon", "-d", target, "-j", "/dev/stdout"}
}

func (d *Dnsrecon) ParseOutput(stdout []byte) tools.Result {
	output := string(stdout)
	var assets []*scan.Asset

	sawJSON := false
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var records []dnsreconRecord
		if err := json.Unmarshal([]byte(line), &records); err == nil {
			sawJSON = true
			for _, r := range records {
				assets = append(assets, dnsreconAsset(r)...)
			}
			continue
		}
		var record dnsreconRecord
		if err := json.Unmarshal([]byte(line), &record); err == nil {
			sawJSON = true
			assets = append(assets, dnsreconAsset(record)...)
		}
	}

	if !sawJSON {
		for _, ip := range dnsreconIPRe.FindAllString(output, -1) {
			if ip == "127.0.0.1" || ip == "0.0.0.0" {
				continue
			}
			assets = append(assets, scan.NewAsset("ip", ip, "dnsrecon", nil))
		}
	}

	return tools.Result{Success: true, Assets: assets}
}

func dnsreconAsset(r dnsreconRecord) []*scan.Asset {
	switch r.Type {
	case "A":
		if r.Address == "" {
			return nil
		}
		return []*scan.Asset{scan.NewAsset("ip", r.Address, "dnsrecon", map[string]any{"hostname": r.Name})}
	case "AAAA":
		if r.Address == "" {
			return nil
		}
		return []*scan.Asset{scan.NewAsset("ip", r.Address, "dnsrecon", map[string]any{"hostname": r.Name, "ipv6": true})}
	case "CNAME", "NS", "MX":
		if r.Name == "" {
			return nil
		}
		return []*scan.Asset{scan.NewAsset("dns_record", r.Name, "dnsrecon", map[string]any{"record_type": r.Type})}
	}
	return nil
}

func (d *Dnsrecon) ParsePartial(accum []byte) tools.Result {
	return d.ParseOutput(accum)
}

func (d *Dnsrecon) Execute(ctx context.Context, target string, opts tools.Options) <-chan tools.Result {
	return tools.Execute(ctx, d, target, opts)
}
