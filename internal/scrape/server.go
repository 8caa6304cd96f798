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
	"context"
	"net/http"
	"time"

	"mexport/internal/encode"
	"mexport/internal/selfmetrics"
	"mexport/pkg/metric"
)

// SnapshotSource supplies the current set of instrument readings.
// cmd/mexport-agent adapts *metric.Factory to it by collecting ForEach into a
// slice.
type SnapshotSource interface {
	Snapshots() []metric.Snapshot
}

// Config configures a Server.
type Config struct {
	Path           string // default "/metrics"
	TrustedProxies CIDRSet
	Auth           AuthConfig
	RateLimit      *IPRateLimiter // nil disables rate limiting
	Timeout        time.Duration  // 0 disables the per-request deadline
}

// Server is the HTTP handler for the Prometheus text-exposition endpoint. It
// implements spec §4.7's full per-request pipeline: in-flight tracking,
// trusted-proxy IP resolution, rate limiting, auth, streamed body, and
// self-metrics recording — the same request-scoped-struct-plus-ServeMux
// shape the corpus's own API server uses, generalized from a single
// check-and-consume handler to a multi-stage gate.
type Server struct {
	cfg     Config
	source  SnapshotSource
	encoder *encode.PrometheusEncoder
	metrics *selfmetrics.Metrics
}

// NewServer constructs a Server. metrics must already be registered by the
// caller; Server only records into it.
func NewServer(cfg Config, source SnapshotSource, metrics *selfmetrics.Metrics) *Server {
	if cfg.Path == "" {
		cfg.Path = "/metrics"
	}
	return &Server{
		cfg:     cfg,
		source:  source,
		encoder: encode.NewPrometheusEncoder(),
		metrics: metrics,
	}
}

// RegisterRoutes mounts the scrape handler on mux at the configured path.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc(s.cfg.Path, s.handleScrape)
}

func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	// 1. In-flight gauge.
	s.metrics.InFlight.Inc()
	defer s.metrics.InFlight.Dec()

	if s.cfg.Timeout > 0 {
		ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Timeout)
		defer cancel()
		r = r.WithContext(ctx)
	}

	// 2. Trusted-proxy resolution.
	clientIP, ok := ResolveClientIP(r, s.cfg.TrustedProxies)
	if !ok {
		s.deny(w, ReasonClientIPUnknown, start)
		return
	}

	// 3. Per-IP token bucket.
	if s.cfg.RateLimit != nil && !s.cfg.RateLimit.Allow(clientIP.String()) {
		s.metrics.RateLimitedTotal.Inc()
		s.deny(w, ReasonRateLimited, start)
		return
	}

	// 4. Allow-list and authentication.
	if reason := s.cfg.Auth.Check(r, clientIP); reason != ReasonNone {
		s.deny(w, reason, start)
		return
	}

	// 5. Stream Prometheus text, counting bytes written.
	batch := s.source.Snapshots()
	out, err := s.encoder.Encode(batch, time.Now().UTC())
	if err != nil {
		s.deny(w, ReasonException, start)
		return
	}

	w.Header().Set("Content-Type", encode.PrometheusContentType)
	w.WriteHeader(http.StatusOK)
	n, werr := w.Write(out.Payload)

	// 6. Record duration, total, and size.
	s.metrics.ScrapeDuration.Observe(time.Since(start).Seconds())
	s.metrics.ScrapesTotal.Inc()
	s.metrics.LastScrapeSizeBytes.Set(float64(n))

	// 7. Write errors surface as a reason increment; the status code is
	// already committed at this point so nothing further can be sent.
	if werr != nil {
		s.metrics.ErrorsByReason.WithLabelValues(string(ReasonException)).Inc()
	}
}

func (s *Server) deny(w http.ResponseWriter, reason DenyReason, start time.Time) {
	s.metrics.ErrorsByReason.WithLabelValues(string(reason)).Inc()
	s.metrics.ScrapeDuration.Observe(time.Since(start).Seconds())
	http.Error(w, string(reason), StatusFor(reason))
}
