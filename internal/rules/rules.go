// Package rules implements the chain rules engine: given a discovered
// asset, it decides which tools should run against it next.
package rules

import (
	"sort"

	"github.com/reconpilot/reconpilotd/internal/scan"
)

// ChainRule is a single (condition, target) chaining decision. Predicate
// is evaluated against every discovered asset; when it matches, Tool is
// a candidate next task with the given Reason and Priority.
type ChainRule struct {
	Name     string
	Predicate func(*scan.Asset) bool
	Tool     string
	Reason   string
	Priority int
}

// Match is one (tool, reason, priority) recommendation returned by
// NextTools, sorted by priority descending.
type Match struct {
	Tool     string
	Reason   string
	Priority int
}

// Engine evaluates a registry of ChainRules against discovered assets.
type Engine struct {
	rules []ChainRule
}

// NewEngine returns an Engine pre-loaded with the canonical chaining
// rules for the built-in adapter set.
func NewEngine() *Engine {
	e := &Engine{}
	e.rules = defaultRules()
	return e
}

func defaultRules() []ChainRule {
	return []ChainRule{
		{
			Name:      "domain_to_dnsrecon",
			Predicate: func(a *scan.Asset) bool { return a.Type == "domain" },
			Tool:      "dnsrecon",
			Reason:    "Enumerate DNS records",
			Priority:  10,
		},
		{
			Name:      "domain_to_whois",
			Predicate: func(a *scan.Asset) bool { return a.Type == "domain" },
			Tool:      "whois",
			Reason:    "Get WHOIS information",
			Priority:  9,
		},
		{
			Name:      "domain_to_subfinder",
			Predicate: func(a *scan.Asset) bool { return a.Type == "domain" },
			Tool:      "subfinder",
			Reason:    "Find subdomains",
			Priority:  10,
		},
		{
			Name:      "domain_to_amass",
			Predicate: func(a *scan.Asset) bool { return a.Type == "domain" },
			Tool:      "amass",
			Reason:    "Deep subdomain enumeration",
			Priority:  8,
		},
		{
			Name:      "subdomain_to_dnsx",
			Predicate: func(a *scan.Asset) bool { return a.Type == "subdomain" },
			Tool:      "dnsx",
			Reason:    "Resolve subdomain IPs",
			Priority:  9,
		},
		{
			Name:      "subdomain_to_httpx",
			Predicate: func(a *scan.Asset) bool { return a.Type == "subdomain" },
			Tool:      "httpx",
			Reason:    "Probe for HTTP services",
			Priority:  8,
		},
		{
			Name:      "http_to_whatweb",
			Predicate: func(a *scan.Asset) bool { return a.Type == "http_service" },
			Tool:      "whatweb",
			Reason:    "Identify web technologies",
			Priority:  7,
		},
		{
			Name:      "http_to_wafw00f",
			Predicate: func(a *scan.Asset) bool { return a.Type == "http_service" },
			Tool:      "wafw00f",
			Reason:    "Detect WAF",
			Priority:  6,
		},
		{
			Name:      "http_to_nuclei",
			Predicate: func(a *scan.Asset) bool { return a.Type == "http_service" },
			Tool:      "nuclei",
			Reason:    "Scan for vulnerabilities",
			Priority:  7,
		},
		{
			Name: "wordpress_to_wpscan",
			Predicate: func(a *scan.Asset) bool {
				if a.Type != "http_service" {
					return false
				}
				tech, _ := a.Metadata["technology"].(string)
				return tech == "WordPress"
			},
			Tool:     "wpscan",
			Reason:   "Scan WordPress site",
			Priority: 8,
		},
		{
			Name:      "ip_to_nmap",
			Predicate: func(a *scan.Asset) bool { return a.Type == "ip" },
			Tool:      "nmap",
			Reason:    "Scan for open ports",
			Priority:  9,
		},
		{
			Name:      "ip_to_rustscan",
			Predicate: func(a *scan.Asset) bool { return a.Type == "ip" },
			Tool:      "rustscan",
			Reason:    "Fast port scan",
			Priority:  8,
		},
	}
}

// NextTools evaluates every rule against asset and returns the matching
// tools sorted by priority, highest first. Ties keep declaration order.
func (e *Engine) NextTools(asset *scan.Asset) []Match {
	var matches []Match
	for _, r := range e.rules {
		if r.Predicate(asset) {
			matches = append(matches, Match{Tool: r.Tool, Reason: r.Reason, Priority: r.Priority})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Priority > matches[j].Priority
	})
	return matches
}

// AddRule registers a custom chaining rule, evaluated alongside the
// built-in set.
func (e *Engine) AddRule(r ChainRule) {
	e.rules = append(e.rules, r)
}
