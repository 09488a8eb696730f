package utils

import (
	"fmt"
	"net"
	"net/netip"
	"strings"
)

// ClientIP returns the address a request came from. X-Forwarded-For and
// X-Real-IP are honoured only when the peer is a trusted proxy; otherwise
// any client could pick its own address.
func ClientIP(remoteAddr, xForwardedFor, xRealIP string, trusted []netip.Prefix) string {
	peer := StripPort(remoteAddr)
	if !isTrusted(peer, trusted) {
		return peer
	}

	// Walk the chain from the nearest hop and stop at the first address
	// that is not one of our own proxies.
	if hops := SplitList(xForwardedFor); len(hops) > 0 {
		for i := len(hops) - 1; i >= 0; i-- {
			if !isTrusted(hops[i], trusted) {
				return hops[i]
			}
		}
		return hops[0]
	}

	if ip := strings.TrimSpace(xRealIP); ip != "" {
		return ip
	}
	return peer
}

// ParseTrustedProxies accepts bare IPs and CIDR blocks.
func ParseTrustedProxies(values []string) ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(values))
	for _, v := range values {
		if strings.Contains(v, "/") {
			prefix, err := netip.ParsePrefix(v)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", v, err)
			}
			prefixes = append(prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(v)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", v, err)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

func isTrusted(ip string, trusted []netip.Prefix) bool {
	if len(trusted) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range trusted {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// StripPort returns the host part of a host:port address.
func StripPort(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return strings.Trim(addr, "[]")
}
