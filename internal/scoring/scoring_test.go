package scoring

import (
	"testing"

	"github.com/reconpilot/reconpilotd/internal/scan"
)

func TestScoreAssetAppliesAdminModifier(t *testing.T) {
	e := NewEngine()
	asset := scan.NewAsset("subdomain", "admin.example.com", "subfinder", nil)

	got := e.ScoreAsset(asset)
	want := assetBaseScore + 50.0
	if got != want {
		t.Errorf("ScoreAsset() = %v, want %v", got, want)
	}
}

func TestScoreAssetStacksMultipleModifiers(t *testing.T) {
	e := NewEngine()
	asset := scan.NewAsset("subdomain", "dev-admin.example.com", "subfinder", nil)

	got := e.ScoreAsset(asset)
	want := assetBaseScore + 50.0 + 30.0
	if got != want {
		t.Errorf("ScoreAsset() = %v, want %v", got, want)
	}
}

func TestScoreAssetClampsAtMax(t *testing.T) {
	e := NewEngine()
	asset := scan.NewAsset("subdomain", "admin-dev-backup-api-login.example.com/.git/.env", "subfinder", nil)

	got := e.ScoreAsset(asset)
	if got != maxScore {
		t.Errorf("ScoreAsset() = %v, want clamp at %v", got, maxScore)
	}
}

func TestScoreAssetDatabasePortRequiresPortType(t *testing.T) {
	e := NewEngine()
	notPort := scan.NewAsset("ip", "1.2.3.4", "nmap", map[string]any{"port": "3306"})
	port := scan.NewAsset("port", "1.2.3.4:3306", "nmap", map[string]any{"port": "3306"})

	if got := e.ScoreAsset(notPort); got != assetBaseScore {
		t.Errorf("non-port asset got database_port modifier: ScoreAsset() = %v", got)
	}
	if got := e.ScoreAsset(port); got != assetBaseScore+40.0 {
		t.Errorf("ScoreAsset() = %v, want %v", got, assetBaseScore+40.0)
	}
}

func TestScoreFindingBySeverity(t *testing.T) {
	e := NewEngine()
	cases := []struct {
		sev  scan.Severity
		want float64
	}{
		{scan.SeverityCritical, 100.0},
		{scan.SeverityHigh, 75.0},
		{scan.SeverityMedium, 50.0},
		{scan.SeverityLow, 25.0},
		{scan.SeverityInfo, 10.0},
	}
	for _, c := range cases {
		f := scan.NewFinding(c.sev, "t", "h", "d", "tool")
		if got := e.ScoreFinding(f); got != c.want {
			t.Errorf("ScoreFinding(%v) = %v, want %v", c.sev, got, c.want)
		}
	}
}

func TestAddAssetRuleExtendsDefaults(t *testing.T) {
	e := NewEngine()
	e.AddAssetRule(AssetRule{
		Name:      "custom",
		Predicate: func(a *scan.Asset) bool { return a.Type == "custom" },
		Modifier:  5.0,
	})

	got := e.ScoreAsset(scan.NewAsset("custom", "x", "y", nil))
	if got != assetBaseScore+5.0 {
		t.Errorf("ScoreAsset() = %v, want %v", got, assetBaseScore+5.0)
	}
}

func TestAddFindingRuleExtendsDefaults(t *testing.T) {
	e := NewEngine()
	e.AddFindingRule(FindingRule{
		Name:      "custom",
		Predicate: func(f *scan.Finding) bool { return f.Title == "custom" },
		Modifier:  3.0,
	})

	f := scan.NewFinding(scan.SeverityInfo, "custom", "h", "d", "tool")
	got := e.ScoreFinding(f)
	if got != 10.0+3.0 {
		t.Errorf("ScoreFinding() = %v, want %v", got, 10.0+3.0)
	}
}
