// Package main implements panaudit, a one-shot audit of the
// redistribution service across a managed firewall fleet.
package main

import (
	"bytes"
	"context"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"panaudit/internal/audit"
	"panaudit/internal/config"
	"panaudit/internal/inventory"
	"panaudit/internal/panos"
	"panaudit/internal/report"
	"panaudit/internal/shell"
)

var (
	configPath = flag.String("config", "settings.yaml", "Path to settings file")
	hostname   = flag.String("hostname", "", "Hostname of the management controller (overrides settings)")
	username   = flag.String("username", "", "Username for the management controller (overrides settings)")
	password   = flag.String("password", "", "Password for the management controller (overrides settings)")
	debug      = flag.Bool("debug", false, "Enable debug logging")
)

func main() {
	flag.Parse()

	if !*debug {
		log.SetOutput(debugFilter{out: os.Stderr})
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("[ERROR] %v", err)
	}
	if *hostname != "" {
		cfg.Panorama.Hostname = *hostname
	}
	if *username != "" {
		cfg.Panorama.Username = *username
	}
	if *password != "" {
		cfg.Panorama.Password = *password
	}
	if cfg.Panorama.Hostname == "" || cfg.Panorama.Username == "" || cfg.Panorama.Password == "" {
		log.Fatal("[ERROR] Controller hostname, username and password are required (flags or settings file)")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	auditor := audit.New(
		func(ctx context.Context) (audit.ShellSession, error) {
			sess, err := shell.Open(ctx, shell.Config{
				Host:     cfg.Panorama.Hostname,
				Username: cfg.Panorama.Username,
				Password: cfg.Panorama.Password,
				Port:     cfg.Panorama.Port,
			})
			if err != nil {
				return nil, err
			}
			return sess, nil
		},
		func() audit.Client {
			return apiClient{panos.NewClient(cfg.Panorama.Hostname, cfg.Panorama.Username, cfg.Panorama.Password)}
		},
	)

	result, err := auditor.Run(ctx)
	if err != nil {
		log.Fatalf("[ERROR] Audit failed: %v", err)
	}

	if result.Outcome == audit.OutcomeGateSkipped {
		return
	}

	report.Render(os.Stdout, result.Facts)
}

// apiClient adapts *panos.Client to the audit.Client interface: the
// Device method must return the inventory.Device interface type, not the
// concrete *panos.Device handle.
type apiClient struct {
	*panos.Client
}

func (c apiClient) Device(serial string) inventory.Device {
	return c.Client.Device(serial)
}

// debugFilter drops [DEBUG] log lines unless --debug is set.
type debugFilter struct {
	out io.Writer
}

func (f debugFilter) Write(p []byte) (int, error) {
	if bytes.Contains(p, []byte("[DEBUG]")) {
		return len(p), nil
	}
	return f.out.Write(p)
}
