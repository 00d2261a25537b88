// Package panos implements a client for the management controller's XML
// API: key-based authentication, operational commands, and per-device
// command proxying keyed by serial number.
package panos

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"

	"panaudit/internal/xmldict"
)

// Operational commands used by the audit.
const (
	CmdRedistClients    = "<show><redistribution><service><client>all</client></service></redistribution></show>"
	CmdSystemInfo       = "<show><system><info/></system></show>"
	CmdDevicesConnected = "<show><devices><connected/></devices></show>"
)

const (
	// HTTP client timeout covering connect, request and response.
	httpTimeout = 60 * time.Second
	// Maximum response size to prevent memory exhaustion.
	maxResponseSize = 4 * 1024 * 1024 // 4MB
	// Retry configuration for the authentication exchange.
	maxRetries     = 3
	initialBackoff = 1 * time.Second
	maxBackoff     = 30 * time.Second
)

// Client talks to one management controller. Construct with NewClient,
// then Validate before issuing operational commands.
type Client struct {
	httpClient *http.Client
	host       string
	username   string
	password   string
	apiKey     string
}

// NewClient builds a client for the controller's XML API. Management
// interfaces ship with self-signed certificates, so verification is off.
func NewClient(host, username, password string) *Client {
	return &Client{
		host:     host,
		username: username,
		password: password,
		httpClient: &http.Client{
			Timeout: httpTimeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // self-signed management certs
			},
		},
	}
}

// Validate authenticates against the controller and confirms the session
// works by requesting system identity. Must succeed before Op or Device.
func (c *Client) Validate(ctx context.Context) error {
	err := retry.Do(func() error {
		return c.keygen(ctx)
	}, retry.Attempts(maxRetries), retry.Delay(initialBackoff), retry.MaxDelay(maxBackoff))
	if err != nil {
		return fmt.Errorf("authentication rejected by %s: %w", c.host, err)
	}

	if _, err := c.Op(ctx, CmdSystemInfo); err != nil {
		return fmt.Errorf("identity check failed on %s: %w", c.host, err)
	}
	log.Printf("[DEBUG] Management session validated with %s", c.host)
	return nil
}

// Op sends an operational command to the controller itself.
func (c *Client) Op(ctx context.Context, cmd string) (map[string]any, error) {
	return c.op(ctx, cmd, "")
}

// Device returns a handle for a managed device, addressed by serial.
// Commands issued through the handle are proxied by the controller.
func (c *Client) Device(serial string) *Device {
	return &Device{client: c, serial: serial}
}

// Device is a queryable child device under a controller session.
type Device struct {
	client *Client
	serial string
}

// Serial returns the device's serial identity.
func (d *Device) Serial() string { return d.serial }

// Op sends an operational command addressed to this device.
func (d *Device) Op(ctx context.Context, cmd string) (map[string]any, error) {
	return d.client.op(ctx, cmd, d.serial)
}

func (c *Client) keygen(ctx context.Context) error {
	body, err := c.post(ctx, url.Values{
		"type":     {"keygen"},
		"user":     {c.username},
		"password": {c.password},
	})
	if err != nil {
		return err
	}

	resp, err := xmldict.Parse(body)
	if err != nil {
		return err
	}
	if status, _ := xmldict.Text(resp, "response", "-status"); status != "success" {
		return fmt.Errorf("key generation failed: %s", responseMessage(resp))
	}
	key, ok := xmldict.Text(resp, "response", "result", "key")
	if !ok || key == "" {
		return errors.New("key generation response missing key")
	}
	c.apiKey = key
	return nil
}

func (c *Client) op(ctx context.Context, cmd, target string) (map[string]any, error) {
	vals := url.Values{
		"type": {"op"},
		"cmd":  {cmd},
		"key":  {c.apiKey},
	}
	if target != "" {
		vals.Set("target", target)
	}

	body, err := c.post(ctx, vals)
	if err != nil {
		return nil, err
	}

	resp, err := xmldict.Parse(body)
	if err != nil {
		return nil, err
	}
	if status, _ := xmldict.Text(resp, "response", "-status"); status != "success" {
		return nil, fmt.Errorf("command rejected: %s", responseMessage(resp))
	}
	return resp, nil
}

// post sends a form-encoded request to the API endpoint. Credentials and
// keys travel in the body, not the URL, so they stay out of server logs.
func (c *Client) post(ctx context.Context, vals url.Values) ([]byte, error) {
	endpoint := fmt.Sprintf("https://%s/api/", c.host)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(vals.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", c.host, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned HTTP status %d", c.host, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", c.host, err)
	}
	return body, nil
}

// responseMessage digs the human-readable error out of a failed response.
// The API reports errors in a couple of shapes, so try each in turn.
func responseMessage(resp map[string]any) string {
	if msg, ok := xmldict.Text(resp, "response", "result", "msg"); ok {
		return msg
	}
	if msg, ok := xmldict.Text(resp, "response", "msg"); ok {
		return msg
	}
	if msg, ok := xmldict.Text(resp, "response", "msg", "line"); ok {
		return msg
	}
	return "no error detail in response"
}
