package adapters

import (
	"context"
	"encoding/xml"
	"fmt"
	"time"

	"github.com/reconpilot/reconpilotd/internal/scan"
	"github.com/reconpilot/reconpilotd/internal/tools"
)

type nmapRun struct {
	Hosts []nmapHost `xml:"host"`
}

type nmapHost struct {
	Addresses []nmapAddress `xml:"address"`
	Ports     struct {
		Ports []nmapPort `xml:"port"`
	} `xml:"ports"`
}

type nmapAddress struct {
	Addr     string `xml:"addr,attr"`
	AddrType string `xml:"addrtype,attr"`
}

type nmapPort struct {
	PortID   string `xml:"portid,attr"`
	Protocol string `xml:"protocol,attr"`
	State    struct {
		State string `xml:"state,attr"`
	} `xml:"state"`
	Service struct {
		Name    string `xml:"name,attr"`
		Product string `xml:"product,attr"`
		Version string `xml:"version,attr"`
	} `xml:"service"`
}

var nmapInsecureServices = map[string]bool{"telnet": true, "ftp": true, "smtp": true}

var nmapDatabasePorts = map[string]string{
	"3306":  "MySQL",
	"5432":  "PostgreSQL",
	"27017": "MongoDB",
	"6379":  "Redis",
	"1433":  "MSSQL",
}

// Nmap wraps nmap, emitting -oX XML to stdout for structured parsing.
type Nmap struct {
	tools.BaseAdapter
}

// NewNmap returns an Nmap adapter.
func NewNmap() *Nmap {
	return &Nmap{tools.BaseAdapter{Cfg: tools.Config{
		Name:     "nmap",
		Binary:   "nmap",
		Category: tools.CategoryPort,
		Consumes: []string{"ip", "domain"},
		Produces: []string{"port"},
		Timeout:  600 * time.Second,
	}}}
}

func (n *Nmap) BuildCommand(target string, _ tools.Options) []string {
	return []string{"nmap", "-sV", "-sC", "--top-ports", "1000", "-oX", "-", target}
}

func (n *Nmap) ParseOutput(stdout []byte) tools.Result {
	var run nmapRun
	if err := xml.Unmarshal(stdout, &run); err != nil {
		// nmap's XML is only complete once the scan finishes; a partial
		// document during streaming is expected, not an error.
		return tools.Result{Success: true}
	}

	var assets []*scan.Asset
	var findings []*scan.Finding

	for _, host := range run.Hosts {
		addr := ""
		for _, a := range host.Addresses {
			if a.AddrType == "ipv4" {
				addr = a.Addr
				break
			}
		}
		if addr == "" {
			for _, a := range host.Addresses {
				if a.AddrType == "ipv6" {
					addr = a.Addr
					break
				}
			}
		}
		if addr == "" {
			continue
		}

		for _, p := range host.Ports.Ports {
			if p.State.State != "open" {
				continue
			}
			value := fmt.Sprintf("%s:%s", addr, p.PortID)
			assets = append(assets, scan.NewAsset("port", value, "nmap", map[string]any{
				"port":     p.PortID,
				"protocol": p.Protocol,
				"service":  p.Service.Name,
				"product":  p.Service.Product,
				"version":  p.Service.Version,
			}))

			if nmapInsecureServices[p.Service.Name] {
				findings = append(findings, withRecommendations(
					scan.NewFinding(scan.SeverityMedium, "Insecure Service Exposed", value,
						fmt.Sprintf("Unencrypted service %q is reachable", p.Service.Name), "nmap"),
					[]string{
						"Disable the service if it is not required",
						"Replace with an encrypted equivalent (e.g. SSH, FTPS, SMTPS)",
					}))
			}

			if name, ok := nmapDatabasePorts[p.PortID]; ok {
				findings = append(findings, withRecommendations(
					scan.NewFinding(scan.SeverityHigh, "Database Port Exposed", value,
						fmt.Sprintf("%s appears to be reachable on its default port", name), "nmap"),
					[]string{
						"Restrict access to the database port via firewall rules",
						"Require authentication and TLS for remote connections",
						"Avoid exposing databases directly to untrusted networks",
					}))
			}
		}
	}

	return tools.Result{Success: true, Assets: assets, Findings: findings}
}

func withRecommendations(f *scan.Finding, recs []string) *scan.Finding {
	f.Recommendations = recs
	return f
}

func (n *Nmap) ParsePartial(accum []byte) tools.Result {
	return n.ParseOutput(accum)
}

func (n *Nmap) Execute(ctx context.Context, target string, opts tools.Options) <-chan tools.Result {
	return tools.Execute(ctx, n, target, opts)
}
