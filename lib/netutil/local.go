// Copyright 2026 The Latchkey Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"net"
	"net/netip"
	"strings"
)

// IsLocalHost reports whether host names the machine the server runs
// on: an IPv4 loopback address, an IPv6 loopback address, or the
// literal "localhost". IPv4-mapped IPv6 addresses (::ffff:127.0.0.1)
// are unmapped before comparison. Anything unparseable is not local.
func IsLocalHost(host string) bool {
	if host == "" {
		return false
	}
	if strings.EqualFold(host, "localhost") {
		return true
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	return addr.Unmap().IsLoopback()
}

// ClientAddr resolves the client address and locality of an inbound
// request from its socket address and Forwarded-For header value.
//
// A non-empty forwarded header means an intermediary (the tunnel, a
// reverse proxy) relayed the request, so the caller is never treated
// as local — the header can demote locality but can never promote it.
// When trustProxy is set the first forwarded hop is reported as the
// client address; otherwise the socket address is kept and the header
// only affects locality.
func ClientAddr(remoteAddr, forwardedFor string, trustProxy bool) (ip string, local bool) {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}

	forwarded := firstForwardedHop(forwardedFor)
	if forwarded == "" {
		return host, IsLocalHost(host)
	}
	if trustProxy {
		return forwarded, false
	}
	return host, false
}

// firstForwardedHop returns the first entry of a comma-separated
// X-Forwarded-For value, which by convention is the originating
// client. Empty entries collapse to "".
func firstForwardedHop(header string) string {
	first, _, _ := strings.Cut(header, ",")
	return strings.TrimSpace(first)
}
