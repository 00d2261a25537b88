// Package gate parses the redistribution service status text and decides
// whether the full fleet audit should run.
package gate

import (
	"regexp"
	"strconv"
	"strings"
)

// Field values the gate decision keys on.
const (
	ServiceUp       = "up"
	SSLDefaultCerts = "default_certificates"
)

// Status holds the fields extracted from the status command output.
// Absent fields stay at their zero values; Clients is a pointer so an
// unset count is distinct from zero.
type Status struct {
	Service   string
	SSLConfig string
	Clients   *int
}

var (
	serviceRe = regexp.MustCompile(`Redistribution service:\s+(\w+)`)
	sslRe     = regexp.MustCompile(`SSL config:\s+(.+)`)
	clientsRe = regexp.MustCompile(`number of clients:\s+(\d+)`)
)

// Parse extracts the service status, SSL configuration and client count
// from raw command output. Each pattern matches independently; a missing
// pattern leaves its field unset and is never an error. Keywords are
// case sensitive, surrounding text and line breaks are ignored.
func Parse(output string) Status {
	var status Status

	if m := serviceRe.FindStringSubmatch(output); m != nil {
		status.Service = m[1]
	}
	if m := sslRe.FindStringSubmatch(output); m != nil {
		// Output arrives over a terminal session, so trim the CR before
		// normalizing "Default certificates" to "default_certificates".
		ssl := strings.TrimSpace(m[1])
		status.SSLConfig = strings.ReplaceAll(strings.ToLower(ssl), " ", "_")
	}
	if m := clientsRe.FindStringSubmatch(output); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			status.Clients = &n
		}
	}

	return status
}

// ShouldAudit reports whether the fleet audit should proceed: only when
// the service is up but still running on the default certificates. Every
// other combination, including unset fields, skips the audit.
func ShouldAudit(s Status) bool {
	return s.Service == ServiceUp && s.SSLConfig == SSLDefaultCerts
}
