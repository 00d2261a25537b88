// Package audit orchestrates the fleet audit: gate check over the
// interactive session, member enumeration over the management API, and
// per-device fact collection.
package audit

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"

	"panaudit/internal/gate"
	"panaudit/internal/inventory"
	"panaudit/internal/panos"
	"panaudit/internal/shell"
	"panaudit/internal/xmldict"
)

// Gate health-check command sent over the interactive session.
const cmdServiceStatus = "show redistribution service status"

// ShellSession is the interactive text session the gate check runs over.
type ShellSession interface {
	Send(ctx context.Context, command string, terminator *regexp.Regexp) (string, error)
	Close() error
}

// Client is the management-API surface the audit consumes.
type Client interface {
	Validate(ctx context.Context) error
	Op(ctx context.Context, cmd string) (map[string]any, error)
	Device(serial string) inventory.Device
}

// Outcome is the terminal state of a run.
type Outcome string

const (
	// OutcomeComplete means the full audit ran and Facts holds the report.
	OutcomeComplete Outcome = "complete"
	// OutcomeGateSkipped means the gate preconditions were not met; the
	// management API was never touched. Not an error.
	OutcomeGateSkipped Outcome = "gate_skipped"
)

// Result is the consolidated outcome of one audit run. Facts holds one
// entry per successfully queried member, in enumeration order; members
// that failed to answer are omitted, so len(Facts) <= Members.
type Result struct {
	Outcome Outcome
	Gate    gate.Status
	Facts   []inventory.Fact
	Members int
}

// Auditor runs fleet audits. The member device handles a run registers
// are owned by that run and live exactly as long as it.
type Auditor struct {
	openShell func(ctx context.Context) (ShellSession, error)
	newClient func() Client
}

// New builds an auditor from its two collaborator factories: one opening
// the interactive session, one constructing the management-API client.
func New(openShell func(ctx context.Context) (ShellSession, error), newClient func() Client) *Auditor {
	return &Auditor{openShell: openShell, newClient: newClient}
}

// Run executes the audit. A GateSkipped result is a valid terminal state,
// not an error; errors are reserved for connection and auth failures.
// Per-member failures are logged and the member is omitted.
func (a *Auditor) Run(ctx context.Context) (*Result, error) {
	output, err := a.gateOutput(ctx)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(output) == "" {
		log.Printf("[INFO] No output from status command, skipping audit")
		return &Result{Outcome: OutcomeGateSkipped}, nil
	}

	status := gate.Parse(output)
	log.Printf("[DEBUG] Parsed gate status: service=%q ssl=%q", status.Service, status.SSLConfig)
	if !gate.ShouldAudit(status) {
		log.Printf("[INFO] Gate conditions not met (service=%q ssl=%q), skipping audit",
			status.Service, status.SSLConfig)
		return &Result{Outcome: OutcomeGateSkipped, Gate: status}, nil
	}
	log.Printf("[INFO] Redistribution service is up on default certificates, auditing fleet")

	client := a.newClient()
	if err := client.Validate(ctx); err != nil {
		return nil, fmt.Errorf("failed to validate management session: %w", err)
	}

	members, err := enumerate(ctx, client)
	if err != nil {
		return nil, err
	}
	reportDisconnected(ctx, client, members)

	devices := make([]inventory.Device, 0, len(members))
	for _, host := range members {
		devices = append(devices, client.Device(host))
	}

	result := &Result{Outcome: OutcomeComplete, Gate: status, Members: len(devices)}
	for _, dev := range devices {
		fact, err := inventory.Collect(ctx, dev)
		if err != nil {
			log.Printf("[WARN] Skipping device %s: %v", dev.Serial(), err)
			continue
		}
		log.Printf("[DEBUG] Collected facts for %s (%s)", fact.Hostname, fact.Serial)
		result.Facts = append(result.Facts, fact)
	}

	log.Printf("[INFO] Audit complete: %d of %d member(s) reported", len(result.Facts), result.Members)
	return result, nil
}

// gateOutput runs the health-check command over a session that is closed
// on every path. A command failure is downgraded to empty output, which
// the caller turns into a gate skip.
func (a *Auditor) gateOutput(ctx context.Context) (string, error) {
	sess, err := a.openShell(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to open controller session: %w", err)
	}
	defer func() {
		if err := sess.Close(); err != nil {
			log.Printf("[WARN] Failed to close controller session: %v", err)
		}
	}()

	output, err := sess.Send(ctx, cmdServiceStatus, shell.Prompt)
	if err != nil {
		log.Printf("[WARN] Status command returned no usable output: %v", err)
		return "", nil
	}
	return output, nil
}

// enumerate lists the redistribution service members via a single API
// call. The entry field arrives as an object for one member and a list
// for several, so it goes through the shape normalizer.
func enumerate(ctx context.Context, client Client) ([]string, error) {
	resp, err := client.Op(ctx, panos.CmdRedistClients)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate redistribution clients: %w", err)
	}

	entry, _ := xmldict.Get(resp, "response", "result", "entry")
	var hosts []string
	for _, e := range xmldict.Entries(entry) {
		host, ok := xmldict.Text(e, "host")
		if !ok || host == "" {
			log.Printf("[WARN] Skipping member entry without host identifier")
			continue
		}
		hosts = append(hosts, host)
	}

	log.Printf("[INFO] Enumerated %d redistribution member(s)", len(hosts))
	return hosts, nil
}

// reportDisconnected cross-checks the member list against the devices
// currently connected to the controller and flags members that are not.
// Advisory only: a failure here never aborts the run.
func reportDisconnected(ctx context.Context, client Client, members []string) {
	resp, err := client.Op(ctx, panos.CmdDevicesConnected)
	if err != nil {
		log.Printf("[WARN] Connected-devices query failed: %v", err)
		return
	}

	entry, _ := xmldict.Get(resp, "response", "result", "devices", "entry")
	connected := make(map[string]bool)
	for _, e := range xmldict.Entries(entry) {
		if serial, ok := xmldict.Text(e, "serial"); ok {
			connected[serial] = true
		}
	}

	for _, m := range members {
		if !connected[m] {
			log.Printf("[WARN] Member %s is not currently connected to the controller", m)
		}
	}
}
