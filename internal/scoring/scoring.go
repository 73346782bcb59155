// Package scoring assigns a priority score to discovered assets and
// findings. The score is recorded on the asset (and in a finding's
// metadata); it does not affect the order of pending tasks.
package scoring

import (
	"strings"

	"github.com/reconpilot/reconpilotd/internal/scan"
)

const assetBaseScore = 10.0
const maxScore = 100.0

// AssetRule is a single (condition, modifier) scoring contribution,
// matched against every discovered asset.
type AssetRule struct {
	Name      string
	Predicate func(*scan.Asset) bool
	Modifier  float64
	Reason    string
}

// FindingRule is a single (condition, modifier) scoring contribution,
// matched against every discovered finding.
type FindingRule struct {
	Name      string
	Predicate func(*scan.Finding) bool
	Modifier  float64
	Reason    string
}

// Engine evaluates asset and finding scoring rules.
type Engine struct {
	assetRules   []AssetRule
	findingRules []FindingRule
}

// NewEngine returns an Engine pre-loaded with the default heuristics.
func NewEngine() *Engine {
	return &Engine{
		assetRules:   defaultAssetRules(),
		findingRules: defaultFindingRules(),
	}
}

var (
	adminKeywords    = []string{"admin", "login", "portal", "dashboard"}
	devKeywords      = []string{"dev", "staging", "test", "debug"}
	sensitiveKeywords = []string{".git", ".env", "config", "backup", ".sql", ".db"}
	apiKeywords      = []string{"/api/", "/v1/", "/v2/", "graphql"}
	databasePorts    = []string{"3306", "5432", "27017", "6379", "1433"}
)

func defaultAssetRules() []AssetRule {
	return []AssetRule{
		{
			Name:      "admin_panel",
			Predicate: func(a *scan.Asset) bool { return containsAnyFold(a.Value, adminKeywords) },
			Modifier:  50.0,
			Reason:    "Admin panel detected",
		},
		{
			Name:      "dev_environment",
			Predicate: func(a *scan.Asset) bool { return containsAnyFold(a.Value, devKeywords) },
			Modifier:  30.0,
			Reason:    "Development environment",
		},
		{
			Name: "database_port",
			Predicate: func(a *scan.Asset) bool {
				if a.Type != "port" {
					return false
				}
				port, _ := a.Metadata["port"].(string)
				for _, p := range databasePorts {
					if strings.Contains(port, p) {
						return true
					}
				}
				return false
			},
			Modifier: 40.0,
			Reason:   "Database port exposed",
		},
		{
			Name:      "sensitive_file",
			Predicate: func(a *scan.Asset) bool { return containsAnyFold(a.Value, sensitiveKeywords) },
			Modifier:  35.0,
			Reason:    "Sensitive file detected",
		},
		{
			Name:      "api_endpoint",
			Predicate: func(a *scan.Asset) bool { return containsAnyFold(a.Value, apiKeywords) },
			Modifier:  25.0,
			Reason:    "API endpoint",
		},
	}
}

var severityScores = map[scan.Severity]float64{
	scan.SeverityCritical: 100.0,
	scan.SeverityHigh:     75.0,
	scan.SeverityMedium:   50.0,
	scan.SeverityLow:      25.0,
	scan.SeverityInfo:     10.0,
}

func defaultFindingRules() []FindingRule {
	rules := make([]FindingRule, 0, len(severityScores))
	for sev, score := range severityScores {
		sev, score := sev, score
		rules = append(rules, FindingRule{
			Name:      "severity_" + sev.String(),
			Predicate: func(f *scan.Finding) bool { return f.Severity == sev },
			Modifier:  score,
			Reason:    capitalize(sev.String()) + " severity",
		})
	}
	return rules
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func containsAnyFold(value string, keywords []string) bool {
	lower := strings.ToLower(value)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// ScoreAsset returns a priority score for asset, capped at 100.
func (e *Engine) ScoreAsset(asset *scan.Asset) float64 {
	total := assetBaseScore
	for _, r := range e.assetRules {
		if r.Predicate(asset) {
			total += r.Modifier
		}
	}
	return clamp(total)
}

// ScoreFinding returns a severity-weighted score for finding, capped at 100.
func (e *Engine) ScoreFinding(finding *scan.Finding) float64 {
	total := 0.0
	for _, r := range e.findingRules {
		if r.Predicate(finding) {
			total += r.Modifier
		}
	}
	return clamp(total)
}

func clamp(v float64) float64 {
	if v > maxScore {
		return maxScore
	}
	return v
}

// AddAssetRule registers a custom asset scoring rule.
func (e *Engine) AddAssetRule(r AssetRule) {
	e.assetRules = append(e.assetRules, r)
}

// AddFindingRule registers a custom finding scoring rule.
func (e *Engine) AddFindingRule(r FindingRule) {
	e.findingRules = append(e.findingRules, r)
}
