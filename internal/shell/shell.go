// Package shell provides an interactive command session to a network
// appliance over SSH. Commands are written to a pty shell and output is
// read until the device prompt appears, in the style of a human operator.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"golang.org/x/crypto/ssh"
)

const (
	// Defaults applied when the config leaves a value unset.
	defaultPort        = 22
	defaultDialTimeout = 10 * time.Second
	defaultReadTimeout = 30 * time.Second
	// Retry configuration for establishing the transport connection.
	maxRetries     = 3
	initialBackoff = 1 * time.Second
	maxBackoff     = 30 * time.Second
	// Read buffer size for the session output pump.
	readBufferSize = 4096
	// Terminal dimensions requested for the pty.
	termHeight = 80
	termWidth  = 200
)

// Prompt matches the appliance CLI prompt that terminates command output.
var Prompt = regexp.MustCompile(`>\s*$`)

// Config describes how to reach the appliance CLI.
type Config struct {
	Host        string
	Username    string
	Password    string
	Port        int
	DialTimeout time.Duration
	ReadTimeout time.Duration
}

// Session is an open interactive CLI session. It is not safe for
// concurrent use; the audit pipeline drives it sequentially.
type Session struct {
	client      *ssh.Client
	sess        *ssh.Session
	stdin       io.WriteCloser
	chunks      chan []byte
	done        chan struct{}
	closeOnce   sync.Once
	readTimeout time.Duration
}

// Open dials the appliance and starts an interactive shell. The dial is
// retried with backoff; everything above it is attempted exactly once.
// Callers must Close the returned session on every path.
func Open(ctx context.Context, cfg Config) (*Session, error) {
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = defaultReadTimeout
	}

	addr := net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port))
	sshCfg := &ssh.ClientConfig{
		User:            cfg.Username,
		Auth:            []ssh.AuthMethod{ssh.Password(cfg.Password)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec // appliance host keys are not pre-distributed
		Timeout:         cfg.DialTimeout,
	}

	var client *ssh.Client
	err := retry.Do(func() error {
		conn, err := (&net.Dialer{Timeout: cfg.DialTimeout}).DialContext(ctx, "tcp", addr)
		if err != nil {
			return err
		}
		c, chans, reqs, err := ssh.NewClientConn(conn, addr, sshCfg)
		if err != nil {
			conn.Close()
			return err
		}
		client = ssh.NewClient(c, chans, reqs)
		return nil
	}, retry.Attempts(maxRetries), retry.Delay(initialBackoff), retry.MaxDelay(maxBackoff))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	s, err := startShell(client, cfg.ReadTimeout)
	if err != nil {
		client.Close()
		return nil, err
	}

	// Drain the login banner up to the first prompt, then turn the pager
	// off so long command output arrives in one piece.
	if _, err := s.readUntil(ctx, Prompt); err != nil {
		log.Printf("[WARN] No prompt after login on %s: %v", cfg.Host, err)
	}
	if _, err := s.Send(ctx, "set cli pager off", Prompt); err != nil {
		log.Printf("[DEBUG] Could not disable pager on %s: %v", cfg.Host, err)
	}

	log.Printf("[DEBUG] Interactive session established with %s", addr)
	return s, nil
}

func startShell(client *ssh.Client, readTimeout time.Duration) (*Session, error) {
	sess, err := client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	stdin, err := sess.StdinPipe()
	if err != nil {
		sess.Close()
		return nil, fmt.Errorf("failed to attach stdin: %w", err)
	}
	stdout, err := sess.StdoutPipe()
	if err != nil {
		sess.Close()
		return nil, fmt.Errorf("failed to attach stdout: %w", err)
	}

	modes := ssh.TerminalModes{
		ssh.ECHO: 0,
	}
	if err := sess.RequestPty("vt100", termHeight, termWidth, modes); err != nil {
		sess.Close()
		return nil, fmt.Errorf("failed to request pty: %w", err)
	}
	if err := sess.Shell(); err != nil {
		sess.Close()
		return nil, fmt.Errorf("failed to start shell: %w", err)
	}

	s := &Session{
		client:      client,
		sess:        sess,
		stdin:       stdin,
		chunks:      make(chan []byte, 16),
		done:        make(chan struct{}),
		readTimeout: readTimeout,
	}

	go s.pump(stdout)

	return s, nil
}

// pump forwards session output to the chunk channel until the reader
// ends or the session is closed. The done channel keeps the goroutine
// from blocking on a full channel after the last reader is gone.
func (s *Session) pump(r io.Reader) {
	buf := make([]byte, readBufferSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case s.chunks <- chunk:
			case <-s.done:
				return
			}
		}
		if err != nil {
			close(s.chunks)
			return
		}
	}
}

// Send writes a command to the session and reads output until the
// terminator pattern matches. The accumulated output is returned even on
// timeout so callers can decide what to do with a partial read.
func (s *Session) Send(ctx context.Context, command string, terminator *regexp.Regexp) (string, error) {
	if _, err := fmt.Fprintf(s.stdin, "%s\n", command); err != nil {
		return "", fmt.Errorf("failed to send command: %w", err)
	}
	return s.readUntil(ctx, terminator)
}

func (s *Session) readUntil(ctx context.Context, terminator *regexp.Regexp) (string, error) {
	var out strings.Builder
	timer := time.NewTimer(s.readTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return out.String(), ctx.Err()
		case <-timer.C:
			return out.String(), fmt.Errorf("timed out after %v waiting for terminator %s", s.readTimeout, terminator)
		case chunk, ok := <-s.chunks:
			if !ok {
				return out.String(), errors.New("session closed before terminator")
			}
			out.Write(chunk)
			if terminator.MatchString(out.String()) {
				return out.String(), nil
			}
		}
	}
}

// Close tears down the shell channel and the underlying connection.
func (s *Session) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	s.stdin.Close()
	if err := s.sess.Close(); err != nil && !errors.Is(err, io.EOF) {
		s.client.Close()
		return fmt.Errorf("failed to close channel: %w", err)
	}
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("failed to close connection: %w", err)
	}
	return nil
}
