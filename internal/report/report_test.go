package report

import (
	"strings"
	"testing"

	"panaudit/internal/inventory"
)

func TestRender(t *testing.T) {
	facts := []inventory.Fact{
		{
			Hostname:     "fw-edge-01",
			IPAddress:    "10.0.0.5",
			Serial:       "001901000001",
			Model:        "PA-440",
			SWVersion:    "10.2.4",
			AppVersion:   "8729-8157",
			CertStatus:   "Valid",
			RedistServer: true,
		},
		{
			Hostname:   "fw-branch-02",
			IPAddress:  "10.1.1.5",
			Serial:     "001901000002",
			Model:      "PA-220",
			SWVersion:  "10.1.9",
			AppVersion: "8642-7912",
			CertStatus: "None",
		},
	}

	var buf strings.Builder
	Render(&buf, facts)
	out := buf.String()

	for _, want := range []string{"HOSTNAME", "fw-edge-01", "fw-branch-02", "001901000002", "true", "false"} {
		if !strings.Contains(out, want) {
			t.Errorf("Rendered table missing %q:\n%s", want, out)
		}
	}

	// The report lists devices in the order they were collected.
	if strings.Index(out, "fw-edge-01") > strings.Index(out, "fw-branch-02") {
		t.Errorf("Row order not preserved:\n%s", out)
	}
}

func TestRenderEmpty(t *testing.T) {
	var buf strings.Builder
	Render(&buf, nil)

	out := buf.String()
	if strings.Contains(out, "true") || strings.Contains(out, "false") {
		t.Errorf("Empty report should have no data rows:\n%s", out)
	}
}
