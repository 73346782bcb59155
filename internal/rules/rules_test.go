package rules

import (
	"testing"

	"github.com/reconpilot/reconpilotd/internal/scan"
)

func TestNextToolsOrdersByPriorityDescending(t *testing.T) {
	e := NewEngine()
	asset := scan.NewAsset("domain", "example.com", "subfinder", nil)

	matches := e.NextTools(asset)
	if len(matches) == 0 {
		t.Fatal("NextTools returned no matches for a domain asset")
	}
	for i := 1; i < len(matches); i++ {
		if matches[i-1].Priority < matches[i].Priority {
			t.Fatalf("matches not sorted by descending priority at index %d: %+v", i, matches)
		}
	}
}

func TestNextToolsStableTieBreakPreservesDeclarationOrder(t *testing.T) {
	e := NewEngine()
	asset := scan.NewAsset("domain", "example.com", "subfinder", nil)

	matches := e.NextTools(asset)
	var dnsrecon, subfinder int = -1, -1
	for i, m := range matches {
		if m.Tool == "dnsrecon" {
			dnsrecon = i
		}
		if m.Tool == "subfinder" {
			subfinder = i
		}
	}
	if dnsrecon == -1 || subfinder == -1 {
		t.Fatalf("expected both dnsrecon and subfinder in matches: %+v", matches)
	}
	if dnsrecon >= subfinder {
		t.Errorf("equal-priority rules out of declaration order: dnsrecon at %d, subfinder at %d", dnsrecon, subfinder)
	}
}

func TestNextToolsDoesNotMatchUnrelatedAssetType(t *testing.T) {
	e := NewEngine()
	asset := scan.NewAsset("ip", "1.2.3.4", "nmap", nil)

	for _, m := range e.NextTools(asset) {
		if m.Tool == "dnsrecon" || m.Tool == "whatweb" {
			t.Errorf("ip asset unexpectedly matched domain/http-only tool %s", m.Tool)
		}
	}
}

func TestWordpressRuleRequiresTechnologyMetadata(t *testing.T) {
	e := NewEngine()
	plain := scan.NewAsset("http_service", "https://example.com", "httpx", nil)
	wp := scan.NewAsset("http_service", "https://example.com", "httpx", map[string]any{"technology": "WordPress"})

	hasWpscan := func(matches []Match) bool {
		for _, m := range matches {
			if m.Tool == "wpscan" {
				return true
			}
		}
		return false
	}

	if hasWpscan(e.NextTools(plain)) {
		t.Error("wpscan matched an http_service asset with no WordPress technology metadata")
	}
	if !hasWpscan(e.NextTools(wp)) {
		t.Error("wpscan did not match an http_service asset with WordPress technology metadata")
	}
}

func TestAddRuleExtendsDefaults(t *testing.T) {
	e := NewEngine()
	before := len(e.NextTools(scan.NewAsset("custom", "x", "y", nil)))

	e.AddRule(ChainRule{
		Name:      "custom_rule",
		Predicate: func(a *scan.Asset) bool { return a.Type == "custom" },
		Tool:      "custom-tool",
		Reason:    "test",
		Priority:  100,
	})

	after := e.NextTools(scan.NewAsset("custom", "x", "y", nil))
	if len(after) != before+1 {
		t.Fatalf("len(after) = %d, want %d", len(after), before+1)
	}
	if after[0].Tool != "custom-tool" {
		t.Errorf("highest-priority custom rule should sort first, got %+v", after[0])
	}
}
