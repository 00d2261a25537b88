// Package inventory assembles the per-device fact record the audit
// report is built from.
package inventory

import (
	"context"
	"fmt"
	"strings"

	"panaudit/internal/panos"
	"panaudit/internal/xmldict"
)

// Device is the queryable handle the collector needs; satisfied by
// *panos.Device and by fakes in tests.
type Device interface {
	Op(ctx context.Context, cmd string) (map[string]any, error)
	Serial() string
}

// Fact is the normalized attribute set for one audited device. Field
// order matches the report column order.
type Fact struct {
	Hostname     string
	IPAddress    string
	Serial       string
	Model        string
	SWVersion    string
	AppVersion   string
	CertStatus   string
	RedistServer bool
}

// MissingFieldError reports a structured response that lacked a field the
// fact record requires.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("system info response missing %q", e.Field)
}

// Collect queries one device and assembles its fact record. The
// redistribution client query determines only whether the device acts as
// a redistribution server (a populated result body means yes); the system
// info query supplies every descriptive field, all of which are required.
// Any failure returns a zero Fact, never a partially filled one.
func Collect(ctx context.Context, dev Device) (Fact, error) {
	redist, err := dev.Op(ctx, panos.CmdRedistClients)
	if err != nil {
		return Fact{}, fmt.Errorf("redistribution client query failed: %w", err)
	}

	info, err := dev.Op(ctx, panos.CmdSystemInfo)
	if err != nil {
		return Fact{}, fmt.Errorf("system info query failed: %w", err)
	}

	system, ok := xmldict.Get(info, "response", "result", "system")
	sysMap, isMap := system.(map[string]any)
	if !ok || !isMap {
		return Fact{}, &MissingFieldError{Field: "system"}
	}

	var fact Fact
	required := []struct {
		key string
		dst *string
	}{
		{"hostname", &fact.Hostname},
		{"ip-address", &fact.IPAddress},
		{"serial", &fact.Serial},
		{"model", &fact.Model},
		{"sw-version", &fact.SWVersion},
		{"app-version", &fact.AppVersion},
		{"device-certificate-status", &fact.CertStatus},
	}
	for _, f := range required {
		v, ok := xmldict.Text(sysMap, f.key)
		if !ok {
			return Fact{}, &MissingFieldError{Field: f.key}
		}
		*f.dst = v
	}

	fact.RedistServer = hasResultBody(redist)
	return fact, nil
}

// hasResultBody reports whether the response carries a non-empty result
// element. Devices that are not redistribution servers answer the client
// query with an empty <result/>.
func hasResultBody(resp map[string]any) bool {
	v, ok := xmldict.Get(resp, "response", "result")
	if !ok || v == nil {
		return false
	}
	switch t := v.(type) {
	case map[string]any:
		return len(t) > 0
	case string:
		return strings.TrimSpace(t) != ""
	default:
		return true
	}
}
