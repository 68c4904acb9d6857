// SPDX-License-Identifier: MPL-2.0

package content

import "testing"

func TestCanonical(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"Get Alert Details", "get_alert_details"},
		{"JsonResult", "json_result"},
		{"AWS - EC2", "aws_ec2"},
		{"HTTPServer", "http_server"},
		{"ping_tool", "ping_tool"},
		{"Ping_Tool", "ping_tool"},
		{"  Enrich URL  ", "enrich_url"},
		{"v2Client", "v2_client"},
		{"", ""},
		{"---", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			if got := Canonical(tt.in); got != tt.want {
				t.Errorf("Canonical(%q) = %q, want %q", tt.in, got, tt.want)
			}
			if got := Canonical(Canonical(tt.in)); got != tt.want {
				t.Errorf("Canonical is not idempotent for %q: %q", tt.in, got)
			}
		})
	}
}

func TestIsCanonicalFileName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		want bool
	}{
		{"ping.py", true},
		{"ping_json_example.json", true},
		{"README.md", true},
		{"Ping.py", false},
		{"ping-tool.yaml", false},
		{"ping.YAML", false},
		{"ping tool.py", false},
	}
	for _, tt := range tests {
		if got := IsCanonicalFileName(tt.name); got != tt.want {
			t.Errorf("IsCanonicalFileName(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestExampleFileName(t *testing.T) {
	t.Parallel()

	if got := ExampleFileName("ping", DefaultResultName); got != "resources/ping_json_example.json" {
		t.Errorf("default result = %q", got)
	}
	if got := ExampleFileName("ping", ""); got != "resources/ping_json_example.json" {
		t.Errorf("empty result = %q", got)
	}
	if got := ExampleFileName("ping", "HostDetails"); got != "resources/ping_host_details_example.json" {
		t.Errorf("named result = %q", got)
	}
}
