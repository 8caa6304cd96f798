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

package scrape

import (
	"crypto/subtle"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
)

// DenyReason names why a request was rejected, matching the scrape-side
// error taxonomy: used both for the HTTP status chosen and the self-metrics
// reason label.
type DenyReason string

const (
	ReasonNone            DenyReason = ""
	ReasonHostDenied      DenyReason = "host_denied"
	ReasonIPDenied        DenyReason = "ip_denied"
	ReasonProxyViolation  DenyReason = "proxy_violation"
	ReasonBasicAuthFailed DenyReason = "basic_auth_failed"
	ReasonMTLSFailed      DenyReason = "mtls_failed"
	ReasonClientIPUnknown DenyReason = "client_ip_unknown"
	ReasonRateLimited     DenyReason = "rate_limited"
	ReasonTimeout         DenyReason = "timeout"
	ReasonException       DenyReason = "exception"
)

var errAuthDenied = errors.New("scrape: request denied")

// BasicAuthCredential is one accepted username/password pair.
type BasicAuthCredential struct {
	Username string
	Password string
}

// AuthConfig configures the optional auth and IP-allow-list checks applied
// after rate limiting.
type AuthConfig struct {
	AllowedHosts       []string // empty disables the check
	AllowedClientCIDRs CIDRSet
	BasicAuth          []BasicAuthCredential
	RequireMTLS        bool
}

// Check runs the host, allow-list, and authentication checks for one
// request given its already-resolved client IP, returning a deny reason
// (ReasonNone on success).
func (c AuthConfig) Check(r *http.Request, clientIP net.IP) DenyReason {
	if len(c.AllowedHosts) > 0 && !containsHost(c.AllowedHosts, r.Host) {
		return ReasonHostDenied
	}
	if len(c.AllowedClientCIDRs) > 0 && !c.AllowedClientCIDRs.Contains(clientIP) {
		return ReasonIPDenied
	}
	if c.RequireMTLS {
		if r.TLS == nil || len(r.TLS.PeerCertificates) == 0 {
			return ReasonMTLSFailed
		}
		if err := verifyClientCert(r.TLS); err != nil {
			return ReasonMTLSFailed
		}
	}
	if len(c.BasicAuth) > 0 {
		user, pass, ok := r.BasicAuth()
		if !ok || !matchesAny(c.BasicAuth, user, pass) {
			return ReasonBasicAuthFailed
		}
	}
	return ReasonNone
}

func verifyClientCert(state *tls.ConnectionState) error {
	if len(state.PeerCertificates) == 0 {
		return errAuthDenied
	}
	return nil
}

func containsHost(hosts []string, host string) bool {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	for _, allowed := range hosts {
		if allowed == host {
			return true
		}
	}
	return false
}

func matchesAny(creds []BasicAuthCredential, user, pass string) bool {
	for _, c := range creds {
		userOK := subtle.ConstantTimeCompare([]byte(c.Username), []byte(user)) == 1
		passOK := subtle.ConstantTimeCompare([]byte(c.Password), []byte(pass)) == 1
		if userOK && passOK {
			return true
		}
	}
	return false
}

// StatusFor maps a deny reason to the HTTP status spec §4.7 step 4 requires.
func StatusFor(reason DenyReason) int {
	switch reason {
	case ReasonNone:
		return http.StatusOK
	case ReasonRateLimited:
		return http.StatusTooManyRequests
	case ReasonBasicAuthFailed, ReasonMTLSFailed:
		return http.StatusUnauthorized
	default:
		return http.StatusForbidden
	}
}
