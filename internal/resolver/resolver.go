// Package resolver provides IPv4 address resolution against the system's
// configured nameservers. It is deliberately small and interface-shaped so
// route injection and the watchdog can be tested without live DNS.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/miekg/dns"
)

const (
	// DefaultTimeout bounds a single DNS exchange.
	DefaultTimeout = 5 * time.Second

	// systemResolvConf is where the system nameservers are read from.
	systemResolvConf = "/etc/resolv.conf"
)

// ErrNoRecords is returned when a name resolves to zero IPv4 addresses.
var ErrNoRecords = errors.New("no A records")

// Resolver resolves a name to its IPv4 addresses.
type Resolver interface {
	LookupA(ctx context.Context, name string) ([]net.IP, error)
}

// DNSResolver resolves names by querying nameservers directly.
type DNSResolver struct {
	client  *dns.Client
	servers []string
}

// NewSystem creates a DNSResolver using the nameservers configured in
// /etc/resolv.conf.
func NewSystem() (*DNSResolver, error) {
	conf, err := dns.ClientConfigFromFile(systemResolvConf)
	if err != nil {
		return nil, fmt.Errorf("failed to read system resolver config: %w", err)
	}
	if len(conf.Servers) == 0 {
		return nil, errors.New("no nameservers configured")
	}

	servers := make([]string, 0, len(conf.Servers))
	for _, s := range conf.Servers {
		servers = append(servers, net.JoinHostPort(s, conf.Port))
	}
	return New(servers), nil
}

// New creates a DNSResolver querying the given "host:port" nameservers in
// order until one answers.
func New(servers []string) *DNSResolver {
	return &DNSResolver{
		client: &dns.Client{
			Timeout: DefaultTimeout,
		},
		servers: servers,
	}
}

// LookupA resolves all IPv4 A records for name. It returns ErrNoRecords
// when the name exists but has no A records or does not exist at all.
func (r *DNSResolver) LookupA(ctx context.Context, name string) ([]net.IP, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(name), dns.TypeA)
	m.RecursionDesired = true

	var lastErr error
	for _, server := range r.servers {
		resp, _, err := r.client.ExchangeContext(ctx, m, server)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.Rcode != dns.RcodeSuccess {
			lastErr = fmt.Errorf("%s: %w", dns.RcodeToString[resp.Rcode], ErrNoRecords)
			continue
		}

		var ips []net.IP
		for _, rr := range resp.Answer {
			if a, ok := rr.(*dns.A); ok {
				ips = append(ips, a.A)
			}
		}
		if len(ips) == 0 {
			return nil, ErrNoRecords
		}
		return ips, nil
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, ErrNoRecords
}

// Servers returns the nameservers the resolver queries.
func (r *DNSResolver) Servers() []string {
	return r.servers
}
