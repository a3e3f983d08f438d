// Package ipaddr validates candidate addresses observed by an IpSource
// before they are allowed to reach the engine. The checks reject loopback,
// unspecified and multicast addresses in both families, and link-local
// addresses in IPv6 only; unique-local (ULA) and IPv4 link-local
// addresses are accepted.
package ipaddr

import "net/netip"

// Valid reports whether addr is acceptable input to the engine: not the
// zero value, not loopback, not unspecified, not multicast, and — for
// IPv6 — not link-local. IPv4-mapped IPv6 addresses are unwrapped before the checks
// so callers never see a false "valid" for ::ffff:127.0.0.1-style values.
func Valid(addr netip.Addr) bool {
	if !addr.IsValid() {
		return false
	}
	a := addr.Unmap()
	if a.IsLoopback() || a.IsUnspecified() || a.IsMulticast() {
		return false
	}
	if a.Is6() && !a.Is4In6() && a.IsLinkLocalUnicast() {
		return false
	}
	return true
}

// IsIPv4 reports whether addr should be published as an A record.
func IsIPv4(addr netip.Addr) bool {
	return addr.Unmap().Is4()
}

// IsIPv6 reports whether addr should be published as an AAAA record.
func IsIPv6(addr netip.Addr) bool {
	a := addr.Unmap()
	return a.Is6() && !a.Is4In6()
}
