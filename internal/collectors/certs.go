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

package collectors

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"time"

	"mexport/pkg/metric"
)

// CertSource loads the leaf certificate for a named endpoint. The default
// implementation dials the endpoint; tests substitute a fixed certificate.
type CertSource func(ctx context.Context, addr string) (*x509.Certificate, error)

// DialTLSCertSource connects to addr (host:port) and returns its leaf
// certificate, the way an operator would check expiry with openssl
// s_client — done here with stdlib crypto/tls, which already covers the
// concern completely; no pack example reaches for a third-party X.509
// library for expiry checks.
func DialTLSCertSource(ctx context.Context, addr string) (*x509.Certificate, error) {
	// Expiry probing only reads the presented chain; it does not make a trust decision.
	d := tls.Dialer{Config: &tls.Config{InsecureSkipVerify: true}}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	state := conn.(*tls.Conn).ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return nil, errNoCertificate
	}
	return state.PeerCertificates[0], nil
}

var errNoCertificate = x509CertError("certs: no peer certificate presented")

type x509CertError string

func (e x509CertError) Error() string { return string(e) }

// CertExpiryCollector samples the remaining validity of a fixed set of named
// TLS endpoints, reporting seconds-until-expiry per endpoint.
type CertExpiryCollector struct {
	factory   *metric.Factory
	endpoints map[string]string // label -> addr
	source    CertSource
	remaining *metric.MultiGauge
}

// NewCertExpiryCollector constructs a CertExpiryCollector over the given
// label->addr endpoint set.
func NewCertExpiryCollector(factory *metric.Factory, endpoints map[string]string, source CertSource) *CertExpiryCollector {
	if source == nil {
		source = DialTLSCertSource
	}
	return &CertExpiryCollector{
		factory:   factory,
		endpoints: endpoints,
		source:    source,
		remaining: factory.MultiGauge("cert.expiry.seconds", "cert_expiry_seconds", "s",
			"Seconds until certificate expiry, per endpoint.", nil),
	}
}

// Collect probes every configured endpoint.
func (c *CertExpiryCollector) Collect(ctx context.Context) []metric.Snapshot {
	if isCancelled(ctx) {
		return []metric.Snapshot{statusSnapshot(c.factory, "cert.collector", "cert_collector", "cancelled")}
	}
	now := time.Now()
	for label, addr := range c.endpoints {
		cert, err := c.source(ctx, addr)
		if err != nil {
			c.remaining.Set(label, metric.Tags{{Key: "status", Value: "error"}}, 0)
			continue
		}
		c.remaining.Set(label, nil, cert.NotAfter.Sub(now).Seconds())
	}
	return []metric.Snapshot{c.remaining.Snapshot()}
}
