package main

import (
	"testing"

	"panaudit/internal/audit"
	"panaudit/internal/panos"
)

// The adapter, not the raw client, is what satisfies the auditor's
// client interface.
var _ audit.Client = apiClient{}

func TestAPIClientDeviceHandle(t *testing.T) {
	var client audit.Client = apiClient{panos.NewClient("panorama.example.net", "audit", "secret")}

	dev := client.Device("001901000001")
	if dev == nil {
		t.Fatal("Device returned nil handle")
	}
	if dev.Serial() != "001901000001" {
		t.Errorf("Serial mismatch: got %q, want %q", dev.Serial(), "001901000001")
	}
}
