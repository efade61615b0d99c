package vpn

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/vpntools/protonctl/internal/logging"
	"github.com/vpntools/protonctl/internal/resolver"
	"github.com/vpntools/protonctl/internal/sssd"
)

// Watchdog runs one connectivity check pass and kills the managed VPN
// client when a critical domain becomes unreachable or the identity
// service reports itself offline. It is meant to be invoked periodically
// from a systemd timer, independently of any connection attempt.
type Watchdog struct {
	// Resolver resolves the monitored domain.
	Resolver resolver.Resolver
	// Provider reports identity-service status. Optional.
	Provider sssd.StatusProvider

	// Domain is the critical domain whose resolvability is required.
	Domain string
	// SSSDDomain, when set, is additionally checked for an explicit
	// offline report.
	SSSDDomain string

	// Probe enables a bounded TCP reachability probe after successful
	// resolution. Probe failure is logged but does not count as a
	// connectivity failure: resolution success alone is sufficient.
	Probe       bool
	ProbePort   int
	DialTimeout time.Duration

	// stop and dial are test seams.
	stop func() error
	dial func(network, addr string, timeout time.Duration) (net.Conn, error)
}

// Result describes one watchdog pass.
type Result struct {
	DNSReachable   bool `json:"dns_reachable"`
	IdentityOnline bool `json:"identity_online"`
	Terminated     bool `json:"terminated"`
}

// Healthy reports whether both checks passed.
func (r Result) Healthy() bool {
	return r.DNSReachable && r.IdentityOnline
}

// NewWatchdog creates a watchdog that terminates the client tracked by
// pidFile when a check fails.
func NewWatchdog(res resolver.Resolver, provider sssd.StatusProvider, pidFile string) *Watchdog {
	return &Watchdog{
		Resolver:    res,
		Provider:    provider,
		Probe:       true,
		ProbePort:   443,
		DialTimeout: 5 * time.Second,
		stop: func() error {
			return NewProcess(pidFile).Stop(stopGrace)
		},
		dial: net.DialTimeout,
	}
}

// Run performs one watchdog pass. The two checks are evaluated
// independently; either failing triggers termination of the managed
// client. A missing client process is not an error.
func (w *Watchdog) Run(ctx context.Context) (Result, error) {
	if w.Domain == "" {
		return Result{}, errors.New("no watchdog domain configured")
	}

	result := Result{
		DNSReachable:   w.checkConnectivity(ctx),
		IdentityOnline: w.checkIdentity(ctx),
	}

	if result.Healthy() {
		logging.Debug("watchdog checks passed", "domain", w.Domain)
		return result, nil
	}

	logging.Warn("watchdog check failed, terminating VPN client",
		"domain", w.Domain,
		"dns_reachable", result.DNSReachable,
		"identity_online", result.IdentityOnline,
	)

	switch err := w.stop(); {
	case err == nil:
		result.Terminated = true
	case errors.Is(err, ErrNotRunning):
		logging.Info("no VPN client running, nothing to terminate")
	default:
		return result, fmt.Errorf("failed to terminate VPN client: %w", err)
	}
	return result, nil
}

// checkConnectivity resolves the monitored domain and optionally probes
// one resolved address over TCP.
func (w *Watchdog) checkConnectivity(ctx context.Context) bool {
	if w.Resolver == nil {
		logging.Warn("no DNS resolver available, treating domain as unreachable", "domain", w.Domain)
		return false
	}

	ips, err := w.Resolver.LookupA(ctx, w.Domain)
	if err != nil {
		logging.Warn("monitored domain did not resolve", "domain", w.Domain, "error", err)
		return false
	}

	if w.Probe && len(ips) > 0 {
		addr := net.JoinHostPort(ips[0].String(), strconv.Itoa(w.ProbePort))
		conn, err := w.dial("tcp", addr, w.DialTimeout)
		if err != nil {
			// Resolution succeeded, so the probe result is advisory
			// only and does not fail the check.
			logging.Warn("reachability probe failed", "addr", addr, "error", err)
		} else {
			conn.Close()
		}
	}
	return true
}

// checkIdentity queries the identity service for an explicit offline
// report. Missing tooling, a missing domain, or any status other than
// offline is acceptable.
func (w *Watchdog) checkIdentity(ctx context.Context) bool {
	if w.SSSDDomain == "" || w.Provider == nil || !w.Provider.Available() {
		return true
	}

	status, err := w.Provider.DomainStatus(ctx, w.SSSDDomain)
	if err != nil {
		logging.Debug("identity-service status query failed, treating as acceptable", "domain", w.SSSDDomain, "error", err)
		return true
	}
	if status == sssd.StatusOffline {
		logging.Warn("identity service reports domain offline", "domain", w.SSSDDomain)
		return false
	}
	return true
}
