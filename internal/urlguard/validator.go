// Package urlguard rejects audit targets that would make the service fetch
// from private, loopback or otherwise reserved networks.
package urlguard

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"strings"

	"uxforge/internal/domain"
)

// Resolver looks up every address a hostname maps to.
type Resolver interface {
	LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error)
}

var reservedPrefixes = mustPrefixes(
	"0.0.0.0/8",
	"10.0.0.0/8",
	"100.64.0.0/10",
	"127.0.0.0/8",
	"169.254.0.0/16",
	"172.16.0.0/12",
	"192.0.0.0/24",
	"192.0.2.0/24",
	"192.88.99.0/24",
	"192.168.0.0/16",
	"198.18.0.0/15",
	"198.51.100.0/24",
	"203.0.113.0/24",
	"224.0.0.0/4",
	"240.0.0.0/4",
	"255.255.255.255/32",
	"::/128",
	"::1/128",
	"64:ff9b::/96",
	"100::/64",
	"2001::/23",
	"2001:db8::/32",
	"fc00::/7",
	"fe80::/10",
	"ff00::/8",
)

// Validator gates audit URLs before any network fetch is attempted.
type Validator struct {
	resolver Resolver
}

// New returns a Validator. A nil resolver falls back to net.DefaultResolver.
func New(resolver Resolver) *Validator {
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	return &Validator{resolver: resolver}
}

// Validate returns an error wrapping domain.ErrInvalidURL when rawURL must not
// be fetched. Every resolved address is checked so a single private record
// rejects the whole host.
func (v *Validator) Validate(ctx context.Context, rawURL string) error {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return invalid("malformed url: %v", err)
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return invalid("only http/https URLs are allowed")
	}
	host := parsed.Hostname()
	if parsed.Host == "" || host == "" {
		return invalid("url must include a host")
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		if IsReserved(addr) {
			return invalid("private IP addresses are not allowed")
		}
		return nil
	}

	addrs, err := v.resolver.LookupNetIP(ctx, "ip", host)
	if err != nil {
		return invalid("hostname could not be resolved: %v", err)
	}
	if len(addrs) == 0 {
		return invalid("hostname could not be resolved")
	}
	for _, addr := range addrs {
		if IsReserved(addr) {
			return invalid("%s resolved to a private IP; refusing to fetch", host)
		}
	}
	return nil
}

// IsReserved reports whether addr belongs to a non-public range.
func IsReserved(addr netip.Addr) bool {
	addr = addr.Unmap().WithZone("")
	if !addr.IsValid() {
		return true
	}
	if addr.IsLoopback() || addr.IsPrivate() || addr.IsUnspecified() ||
		addr.IsLinkLocalUnicast() || addr.IsLinkLocalMulticast() ||
		addr.IsInterfaceLocalMulticast() || addr.IsMulticast() {
		return true
	}
	for _, prefix := range reservedPrefixes {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrInvalidURL, fmt.Sprintf(format, args...))
}

func mustPrefixes(entries ...string) []netip.Prefix {
	out := make([]netip.Prefix, 0, len(entries))
	for _, entry := range entries {
		out = append(out, netip.MustParsePrefix(entry))
	}
	return out
}
