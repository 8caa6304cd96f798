// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package scrape implements the pull-side Prometheus endpoint: rate
// limiting, trusted-proxy IP resolution, auth, and self-metrics recording
// around a single GET handler.
package scrape

import (
	"net"
	"net/http"
	"strings"
)

// CIDRSet is an ordered set of network prefixes, tested in order.
type CIDRSet []*net.IPNet

// ParseCIDRSet parses a list of CIDR strings (or bare IPs, treated as /32 or
// /128) into a CIDRSet, failing fast on the first malformed entry.
func ParseCIDRSet(cidrs []string) (CIDRSet, error) {
	out := make(CIDRSet, 0, len(cidrs))
	for _, c := range cidrs {
		if !strings.Contains(c, "/") {
			ip := net.ParseIP(c)
			if ip == nil {
				return nil, &net.ParseError{Type: "CIDR address", Text: c}
			}
			bits := 32
			if ip.To4() == nil {
				bits = 128
			}
			c = c + "/" + itoa(bits)
		}
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func itoa(n int) string {
	if n == 32 {
		return "32"
	}
	return "128"
}

// Contains reports whether ip falls inside any network in the set.
func (s CIDRSet) Contains(ip net.IP) bool {
	for _, n := range s {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// ResolveClientIP determines the address a request should be attributed to.
// If trusted is non-empty and the immediate peer IP matches it, the leftmost
// address from X-Forwarded-For (or RFC 7239 Forwarded) is trusted instead;
// otherwise the peer IP itself is used. An empty, unparsable result means
// the client IP could not be determined (ClientIpUnknown).
func ResolveClientIP(r *http.Request, trusted CIDRSet) (net.IP, bool) {
	peer := peerIP(r.RemoteAddr)
	if peer == nil {
		return nil, false
	}
	if len(trusted) == 0 || !trusted.Contains(peer) {
		return peer, true
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if ip := parseForwardedAddr(first); ip != nil {
			return ip, true
		}
	}
	if fwd := r.Header.Get("Forwarded"); fwd != "" {
		if ip := parseForwardedHeader(fwd); ip != nil {
			return ip, true
		}
	}
	return peer, true
}

func peerIP(remoteAddr string) net.IP {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	return net.ParseIP(host)
}

// parseForwardedAddr parses a bracketed IPv6 literal, a bare IP, or a
// host:port token, and returns nil if none of these forms parses.
func parseForwardedAddr(addr string) net.IP {
	addr = strings.TrimSpace(addr)
	if strings.HasPrefix(addr, "[") {
		if end := strings.Index(addr, "]"); end != -1 {
			return net.ParseIP(addr[1:end])
		}
	}
	if ip := net.ParseIP(addr); ip != nil {
		return ip
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		if ip := net.ParseIP(host); ip != nil {
			return ip
		}
	}
	return nil
}

// parseForwardedHeader extracts the first "for=" token from an RFC 7239
// Forwarded header value.
func parseForwardedHeader(value string) net.IP {
	first := strings.Split(value, ",")[0]
	for _, part := range strings.Split(first, ";") {
		part = strings.TrimSpace(part)
		if !strings.HasPrefix(strings.ToLower(part), "for=") {
			continue
		}
		addr := strings.TrimPrefix(part, part[:4])
		addr = strings.Trim(addr, `"`)
		return parseForwardedAddr(addr)
	}
	return nil
}
