package profile

import (
	"context"
	"fmt"
	"net"

	"github.com/jackpal/gateway"
	"github.com/vpntools/protonctl/internal/logging"
	"github.com/vpntools/protonctl/internal/resolver"
	"github.com/vpntools/protonctl/internal/sssd"
)

// netGatewayKeyword tells OpenVPN to route via the pre-tunnel default
// gateway when we could not discover its address ourselves.
const netGatewayKeyword = "net_gateway"

// RouteBuilder computes the host routes that must stay reachable outside
// the tunnel. Routes are emitted as OpenVPN "route" directives, one per
// unique address per domain.
type RouteBuilder struct {
	// Resolver resolves domain names to IPv4 addresses. A nil resolver
	// degrades to emitting no routes, with a warning.
	Resolver resolver.Resolver

	// Provider discovers identity-service domains and their
	// controllers. A nil or unavailable provider skips that phase.
	Provider sssd.StatusProvider

	// DiscoverGateway returns the local default gateway address.
	// Defaults to gateway.DiscoverGateway; failure degrades to the
	// OpenVPN net_gateway keyword.
	DiscoverGateway func() (net.IP, error)
}

// Options configures a single route-building pass.
type Options struct {
	// BypassDomains are the user-configured domains to route around
	// the tunnel.
	BypassDomains []string

	// SSSDDomain restricts identity-service discovery to one domain.
	// Empty discovers every domain the provider reports.
	SSSDDomain string

	// SkipSSSD disables identity-service discovery entirely.
	SkipSSSD bool
}

// Build resolves every bypass domain and identity-service controller and
// returns the corresponding OpenVPN route directives. Individual
// resolution failures are logged and skipped; Build itself only fails on
// programming errors, never on DNS weather.
func (b *RouteBuilder) Build(ctx context.Context, opts Options) []string {
	if b.Resolver == nil {
		logging.Warn("no DNS resolver available, connecting without bypass routes")
		return nil
	}

	gw := b.gatewayArg()

	var routes []string
	for _, domain := range opts.BypassDomains {
		addrs := b.resolveDomain(ctx, domain)
		for _, addr := range addrs {
			routes = append(routes, routeDirective(addr, gw))
		}
	}

	if !opts.SkipSSSD {
		for _, domain := range b.identityDomains(ctx, opts.SSSDDomain) {
			addrs := b.identityServers(ctx, domain)
			for _, addr := range addrs {
				routes = append(routes, routeDirective(addr, gw))
			}
		}
	}

	return routes
}

// gatewayArg returns the gateway argument for route directives.
func (b *RouteBuilder) gatewayArg() string {
	discover := b.DiscoverGateway
	if discover == nil {
		discover = gateway.DiscoverGateway
	}

	ip, err := discover()
	if err != nil || ip == nil {
		logging.Warn("could not discover default gateway, using net_gateway keyword", "error", err)
		return netGatewayKeyword
	}
	return ip.String()
}

// resolveDomain resolves one bypass domain to its unique IPv4 addresses.
// Zero resolvable records is a warning, not a failure.
func (b *RouteBuilder) resolveDomain(ctx context.Context, domain string) []net.IP {
	ips, err := b.Resolver.LookupA(ctx, domain)
	if err != nil {
		logging.Warn("could not resolve bypass domain, skipping", "domain", domain, "error", err)
		return nil
	}
	return dedupe(ips)
}

// identityDomains enumerates the identity-service domains to process.
// Enumeration failure or an empty result skips the phase without error.
func (b *RouteBuilder) identityDomains(ctx context.Context, only string) []string {
	if b.Provider == nil || !b.Provider.Available() {
		logging.Debug("identity-service tooling not available, skipping controller routes")
		return nil
	}
	if only != "" {
		return []string{only}
	}

	domains, err := b.Provider.ListDomains(ctx)
	if err != nil {
		logging.Debug("identity-service domain enumeration failed, skipping", "error", err)
		return nil
	}
	return domains
}

// identityServers resolves one identity-service domain's controller
// entries to unique addresses. Literal addresses are used as-is; hostnames
// get a secondary resolution. Unresolvable entries are skipped with a
// warning.
func (b *RouteBuilder) identityServers(ctx context.Context, domain string) []net.IP {
	servers, err := b.Provider.DomainServers(ctx, domain)
	if err != nil {
		logging.Warn("could not query identity-service domain, skipping", "domain", domain, "error", err)
		return nil
	}

	var addrs []net.IP
	for _, server := range servers {
		if ip := net.ParseIP(server); ip != nil {
			if v4 := ip.To4(); v4 != nil {
				addrs = append(addrs, v4)
			}
			continue
		}

		ips, err := b.Resolver.LookupA(ctx, server)
		if err != nil {
			logging.Warn("could not resolve domain controller, skipping", "domain", domain, "server", server, "error", err)
			continue
		}
		addrs = append(addrs, ips...)
	}
	return dedupe(addrs)
}

// routeDirective formats a single /32 host route via the local gateway.
func routeDirective(addr net.IP, gw string) string {
	return fmt.Sprintf("route %s 255.255.255.255 %s", addr, gw)
}

// dedupe drops duplicate addresses while preserving order.
func dedupe(ips []net.IP) []net.IP {
	seen := make(map[string]bool, len(ips))
	var out []net.IP
	for _, ip := range ips {
		key := ip.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, ip)
	}
	return out
}
