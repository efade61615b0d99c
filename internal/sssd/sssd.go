// Package sssd discovers identity-service domains and their domain
// controllers through the sssctl command-line tool. Domain controllers
// handle authentication for the local network and must stay reachable
// outside the tunnel.
package sssd

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"strings"
)

// Online reports the answers sssctl gives about a domain's status.
type Online int

const (
	// StatusUnknown means sssctl produced no online/offline verdict.
	StatusUnknown Online = iota
	// StatusOnline means the domain reported itself online.
	StatusOnline
	// StatusOffline means the domain explicitly reported itself offline.
	StatusOffline
)

// String returns a human-readable representation of the status.
func (o Online) String() string {
	switch o {
	case StatusOnline:
		return "online"
	case StatusOffline:
		return "offline"
	default:
		return "unknown"
	}
}

// StatusProvider enumerates identity-service domains, their controllers,
// and their online state.
type StatusProvider interface {
	// Available reports whether the provider can be queried at all.
	Available() bool
	// ListDomains enumerates the configured identity-service domains.
	ListDomains(ctx context.Context) ([]string, error)
	// DomainStatus reports the domain's online/offline state.
	DomainStatus(ctx context.Context, domain string) (Online, error)
	// DomainServers lists the domain's controller entries. Entries may
	// be literal addresses or hostnames needing secondary resolution.
	DomainServers(ctx context.Context, domain string) ([]string, error)
}

// Runner executes an external command and returns its combined output.
// It exists so tests can substitute canned sssctl output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Client queries sssctl.
type Client struct {
	run Runner
}

// NewClient creates a Client executing the real sssctl binary.
func NewClient() *Client {
	return &Client{run: execRunner}
}

// NewClientWithRunner creates a Client with a custom command runner.
func NewClientWithRunner(run Runner) *Client {
	return &Client{run: run}
}

// Available reports whether sssctl is installed.
func (c *Client) Available() bool {
	_, err := exec.LookPath("sssctl")
	return err == nil
}

// ListDomains returns the domains sssctl knows about. Internal
// pseudo-domains such as implicit_files are filtered out.
func (c *Client) ListDomains(ctx context.Context) ([]string, error) {
	out, err := c.run(ctx, "sssctl", "domain-list")
	if err != nil {
		return nil, fmt.Errorf("sssctl domain-list: %w", err)
	}

	var domains []string
	for _, line := range strings.Split(string(out), "\n") {
		d := strings.TrimSpace(line)
		if d == "" || d == "implicit_files" {
			continue
		}
		domains = append(domains, d)
	}
	return domains, nil
}

// DomainStatus parses the "Online status" line of sssctl domain-status.
// A missing or unparseable line yields StatusUnknown, not an error.
func (c *Client) DomainStatus(ctx context.Context, domain string) (Online, error) {
	out, err := c.run(ctx, "sssctl", "domain-status", domain)
	if err != nil {
		return StatusUnknown, fmt.Errorf("sssctl domain-status %s: %w", domain, err)
	}

	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "Online status:") {
			continue
		}
		value := strings.TrimSpace(strings.TrimPrefix(line, "Online status:"))
		switch strings.ToLower(value) {
		case "online":
			return StatusOnline, nil
		case "offline":
			return StatusOffline, nil
		}
	}
	return StatusUnknown, nil
}

// DomainServers extracts the domain-controller entries from sssctl
// domain-status output. Both the "Active servers" role lines and the
// "Discovered ... servers" bullet lists are considered; duplicates are
// dropped while preserving first-seen order.
func (c *Client) DomainServers(ctx context.Context, domain string) ([]string, error) {
	out, err := c.run(ctx, "sssctl", "domain-status", domain)
	if err != nil {
		return nil, fmt.Errorf("sssctl domain-status %s: %w", domain, err)
	}
	return parseServers(string(out)), nil
}

func parseServers(out string) []string {
	seen := make(map[string]bool)
	var servers []string

	add := func(entry string) {
		entry = strings.TrimSpace(entry)
		if entry == "" || !looksLikeServer(entry) {
			return
		}
		if !seen[entry] {
			seen[entry] = true
			servers = append(servers, entry)
		}
	}

	inActive := false
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)

		switch {
		case strings.HasPrefix(line, "Active servers:"):
			inActive = true
			continue
		case strings.HasSuffix(line, "servers:"):
			// "Discovered AD Domain Controller servers:" and friends
			inActive = false
			continue
		case line == "":
			inActive = false
			continue
		}

		if strings.HasPrefix(line, "- ") {
			add(strings.TrimPrefix(line, "- "))
			continue
		}

		if inActive {
			// Role lines: "AD Domain Controller: dc1.example.com"
			if idx := strings.LastIndex(line, ": "); idx >= 0 {
				add(line[idx+2:])
			}
		}
	}
	return servers
}

// looksLikeServer filters out sssctl placeholder values such as
// "not connected" or "none so far".
func looksLikeServer(entry string) bool {
	if strings.ContainsAny(entry, " \t") {
		return false
	}
	if net.ParseIP(entry) != nil {
		return true
	}
	return strings.Contains(entry, ".")
}
