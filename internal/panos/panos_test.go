package panos

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"panaudit/internal/xmldict"
)

const testKey = "LUFRPT1test=="

// newTestClient stands up a TLS API endpoint and a client pointed at it.
// The client skips certificate verification, so the httptest certificate
// is accepted.
func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewTLSServer(handler)
	t.Cleanup(server.Close)
	host := strings.TrimPrefix(server.URL, "https://")
	return NewClient(host, "audit", "secret")
}

func apiHandler(t *testing.T, lastTarget *string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("Failed to parse form: %v", err)
		}

		switch r.FormValue("type") {
		case "keygen":
			if r.FormValue("user") != "audit" || r.FormValue("password") != "secret" {
				w.Write([]byte(`<response status="error"><result><msg>Invalid Credential</msg></result></response>`))
				return
			}
			w.Write([]byte(`<response status="success"><result><key>` + testKey + `</key></result></response>`))
		case "op":
			if r.FormValue("key") != testKey {
				w.Write([]byte(`<response status="error"><result><msg>Invalid Key</msg></result></response>`))
				return
			}
			if lastTarget != nil {
				*lastTarget = r.FormValue("target")
			}
			switch r.FormValue("cmd") {
			case CmdSystemInfo:
				w.Write([]byte(`<response status="success"><result><system><hostname>panorama-01</hostname></system></result></response>`))
			case CmdRedistClients:
				w.Write([]byte(`<response status="success"><result><entry><host>001901000001</host></entry></result></response>`))
			default:
				w.Write([]byte(`<response status="error"><msg><line>Unknown command</line></msg></response>`))
			}
		default:
			t.Errorf("Unexpected request type %q", r.FormValue("type"))
		}
	}
}

func TestValidateAndOp(t *testing.T) {
	var lastTarget string
	client := newTestClient(t, apiHandler(t, &lastTarget))

	if err := client.Validate(context.Background()); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	resp, err := client.Op(context.Background(), CmdRedistClients)
	if err != nil {
		t.Fatalf("Op failed: %v", err)
	}
	if host, ok := xmldict.Text(resp, "response", "result", "entry", "host"); !ok || host != "001901000001" {
		t.Errorf("Host mismatch: got %q (present=%v)", host, ok)
	}
	if lastTarget != "" {
		t.Errorf("Controller op must not carry a target, got %q", lastTarget)
	}
}

func TestDeviceOpCarriesTarget(t *testing.T) {
	var lastTarget string
	client := newTestClient(t, apiHandler(t, &lastTarget))

	if err := client.Validate(context.Background()); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	dev := client.Device("001901000001")
	if dev.Serial() != "001901000001" {
		t.Errorf("Serial mismatch: got %q", dev.Serial())
	}
	if _, err := dev.Op(context.Background(), CmdSystemInfo); err != nil {
		t.Fatalf("Device op failed: %v", err)
	}
	if lastTarget != "001901000001" {
		t.Errorf("Device op target mismatch: got %q", lastTarget)
	}
}

func TestOpCommandRejected(t *testing.T) {
	client := newTestClient(t, apiHandler(t, nil))

	if err := client.Validate(context.Background()); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	_, err := client.Op(context.Background(), "<show><bogus/></show>")
	if err == nil {
		t.Fatal("Expected error for rejected command")
	}
	if !strings.Contains(err.Error(), "Unknown command") {
		t.Errorf("Error should carry the response message, got: %v", err)
	}
}

func TestOpHTTPError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	client.apiKey = testKey

	if _, err := client.Op(context.Background(), CmdSystemInfo); err == nil {
		t.Fatal("Expected error for HTTP failure status")
	}
}
