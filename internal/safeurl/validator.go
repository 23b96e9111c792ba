// Package safeurl rejects URLs that could be used to make the service fetch
// internal resources (SSRF). The hostname is resolved and the resolved
// addresses are classified, not the hostname string, so DNS-rebinding style
// tricks are caught too.
package safeurl

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"net/url"

	"go.uber.org/zap"
)

// ValidationError carries a user-facing rejection reason.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// Resolver resolves hostnames to IP addresses. *net.Resolver satisfies it.
type Resolver interface {
	LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error)
}

type Validator struct {
	resolver Resolver
	log      *zap.Logger
}

func NewValidator(resolver Resolver, log *zap.Logger) *Validator {
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	return &Validator{resolver: resolver, log: log}
}

// reservedV4 covers IPv4 ranges that netip's built-in classifiers miss:
// shared address space, IETF protocol assignments, documentation nets,
// benchmarking, and the old class E block.
var reservedV4 = []netip.Prefix{
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("192.0.0.0/24"),
	netip.MustParsePrefix("192.0.2.0/24"),
	netip.MustParsePrefix("198.18.0.0/15"),
	netip.MustParsePrefix("198.51.100.0/24"),
	netip.MustParsePrefix("203.0.113.0/24"),
	netip.MustParsePrefix("240.0.0.0/4"),
}

var reservedV6 = []netip.Prefix{
	netip.MustParsePrefix("2001:db8::/32"),
	netip.MustParsePrefix("100::/64"),
}

// Validate checks the URL scheme and host, resolves the hostname, and
// rejects any address in a private, reserved, loopback, or link-local
// range. A nil return means the URL is safe to fetch.
func (v *Validator) Validate(ctx context.Context, rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return &ValidationError{Reason: "Invalid URL format."}
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return &ValidationError{Reason: fmt.Sprintf(
			"Invalid URL scheme: '%s'. Only HTTP/HTTPS is allowed.", parsed.Scheme)}
	}
	host := parsed.Hostname()
	if host == "" {
		return &ValidationError{Reason: "URL must have a valid hostname."}
	}

	addrs, err := v.resolver.LookupNetIP(ctx, "ip", host)
	if err != nil || len(addrs) == 0 {
		v.log.Warn("DNS resolution failed",
			zap.String("host", host), zap.Error(err))
		return &ValidationError{Reason: fmt.Sprintf("Could not resolve hostname: %s", host)}
	}

	for _, addr := range addrs {
		if unsafeAddr(addr.Unmap()) {
			v.log.Warn("blocked request to unsafe IP",
				zap.String("ip", addr.String()), zap.String("url", rawURL))
			return &ValidationError{Reason: "Access to internal or reserved IP addresses is not allowed."}
		}
	}
	return nil
}

func unsafeAddr(addr netip.Addr) bool {
	if addr.IsLoopback() || addr.IsPrivate() || addr.IsUnspecified() ||
		addr.IsLinkLocalUnicast() || addr.IsLinkLocalMulticast() ||
		addr.IsMulticast() {
		return true
	}
	ranges := reservedV6
	if addr.Is4() {
		ranges = reservedV4
	}
	for _, p := range ranges {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
