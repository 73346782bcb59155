package adapters

import (
	"strings"
	"testing"

	"github.com/reconpilot/reconpilotd/internal/scan"
	"github.com/reconpilot/reconpilotd/internal/tools"
)

func TestHttpxParseOutputExtractsAssetsAndFindings(t *testing.T) {
	h := NewHttpx()
	output := strings.Join([]string{
		`{"url":"https://example.com","status_code":200,"title":"Example Home","tech":["nginx"]}`,
		`{"url":"https://example.com/admin","status_code":403,"title":"Admin Login","tech":[]}`,
		``,
	}, "\n")

	result := h.ParseOutput([]byte(output))
	if !result.Success {
		t.Fatal("ParseOutput reported failure")
	}
	if len(result.Assets) != 2 {
		t.Fatalf("got %d assets, want 2", len(result.Assets))
	}
	if result.Assets[0].Type != "http_service" || result.Assets[0].Value != "https://example.com" {
		t.Errorf("unexpected first asset: %+v", result.Assets[0])
	}

	var titles []string
	for _, f := range result.Findings {
		titles = append(titles, f.Title)
	}
	if !containsString(titles, "Protected Resource") {
		t.Errorf("expected a Protected Resource finding for the 403 response, got %v", titles)
	}
	if !containsString(titles, "Sensitive Page Detected") {
		t.Errorf("expected a Sensitive Page Detected finding for the admin title, got %v", titles)
	}
}

func TestHttpxBuildCommandIsDeterministic(t *testing.T) {
	h := NewHttpx()
	a := h.BuildCommand("https://example.com", tools.Options{})
	b := h.BuildCommand("https://example.com", tools.Options{})
	if !equalStrings(a, b) {
		t.Errorf("BuildCommand is not deterministic: %v vs %v", a, b)
	}
}

func TestNmapParseOutputSkipsClosedPorts(t *testing.T) {
	n := NewNmap()
	xmlDoc := `<nmaprun>
		<host>
			<address addr="10.0.0.1" addrtype="ipv4"/>
			<ports>
				<port portid="80" protocol="tcp">
					<state state="open"/>
					<service name="http"/>
				</port>
				<port portid="81" protocol="tcp">
					<state state="closed"/>
					<service name="http"/>
				</port>
			</ports>
		</host>
	</nmaprun>`

	result := n.ParseOutput([]byte(xmlDoc))
	if len(result.Assets) != 1 {
		t.Fatalf("got %d assets, want 1 (closed port should be skipped)", len(result.Assets))
	}
	if result.Assets[0].Value != "10.0.0.1:80" {
		t.Errorf("asset value = %q, want %q", result.Assets[0].Value, "10.0.0.1:80")
	}
}

func TestNmapParseOutputFlagsInsecureServicesAndDatabasePorts(t *testing.T) {
	n := NewNmap()
	xmlDoc := `<nmaprun>
		<host>
			<address addr="10.0.0.1" addrtype="ipv4"/>
			<ports>
				<port portid="23" protocol="tcp">
					<state state="open"/>
					<service name="telnet"/>
				</port>
				<port portid="3306" protocol="tcp">
					<state state="open"/>
					<service name="mysql"/>
				</port>
			</ports>
		</host>
	</nmaprun>`

	result := n.ParseOutput([]byte(xmlDoc))
	if len(result.Findings) != 2 {
		t.Fatalf("got %d findings, want 2", len(result.Findings))
	}
	var titles []string
	for _, f := range result.Findings {
		titles = append(titles, f.Title)
	}
	if !containsString(titles, "Insecure Service Exposed") {
		t.Errorf("expected Insecure Service Exposed finding, got %v", titles)
	}
	if !containsString(titles, "Database Port Exposed") {
		t.Errorf("expected Database Port Exposed finding, got %v", titles)
	}
}

func TestNmapParseOutputOnIncompleteXMLIsNotAnError(t *testing.T) {
	n := NewNmap()
	result := n.ParseOutput([]byte(`<nmaprun><host><address addr="10.0.0.1`))
	if !result.Success {
		t.Error("incomplete XML during streaming should yield Success: true with no results, not an error")
	}
	if len(result.Assets) != 0 {
		t.Errorf("expected no assets from incomplete XML, got %d", len(result.Assets))
	}
}

func TestWhoisParseOutputExtractsFields(t *testing.T) {
	w := NewWhois()
	output := strings.Join([]string{
		"Domain Name: EXAMPLE.COM",
		"Registrar: Example Registrar LLC",
		"Creation Date: 1995-08-14T04:00:00Z",
		"Name Server: NS1.EXAMPLE.COM",
		"Name Server: NS2.EXAMPLE.COM",
	}, "\n")

	result := w.ParseOutput([]byte(output))
	if len(result.Assets) != 4 {
		t.Fatalf("got %d assets, want 4 (registrar, created, 2 nameservers)", len(result.Assets))
	}

	var nameservers int
	for _, a := range result.Assets {
		if a.Type == "nameserver" {
			nameservers++
		}
	}
	if nameservers != 2 {
		t.Errorf("got %d nameserver assets, want 2", nameservers)
	}
}

func TestWhoisParseOutputDetectsPrivacyProtection(t *testing.T) {
	w := NewWhois()
	output := "Domain Name: EXAMPLE.COM\nRegistrant Organization: REDACTED FOR PRIVACY\n"

	result := w.ParseOutput([]byte(output))
	if len(result.Findings) != 1 {
		t.Fatalf("got %d findings, want 1", len(result.Findings))
	}
	if result.Findings[0].Severity != scan.SeverityInfo {
		t.Errorf("severity = %v, want Info", result.Findings[0].Severity)
	}
}

func containsString(s []string, v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
