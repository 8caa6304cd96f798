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

// Package selfmetrics holds the pipeline's own operational metrics —
// registered once, globally, the way the corpus registers its own
// first-class KPIs rather than routing them back through the instrument
// factory they describe.
package selfmetrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ScrapeDurationBuckets are the fixed histogram bounds spec §4.7 step 6
// requires (seconds), with the +Inf bucket implicit in client_golang.
var ScrapeDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// Metrics bundles the self-observability surface around the scrape
// endpoint and the export pipeline. One instance is expected per process;
// callers register it against a prometheus.Registerer of their choosing.
type Metrics struct {
	InFlight            prometheus.Gauge
	ScrapeDuration      prometheus.Histogram
	ScrapesTotal        prometheus.Counter
	RateLimitedTotal    prometheus.Counter
	ErrorsByReason      *prometheus.CounterVec
	LastScrapeSizeBytes prometheus.Gauge
	BufferOverflowTotal prometheus.Counter
}

// New constructs a Metrics bundle. Register must be called before use.
func New() *Metrics {
	return &Metrics{
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mexport_scrape_in_flight",
			Help: "Number of scrape requests currently being served.",
		}),
		ScrapeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mexport_scrape_duration_seconds",
			Help:    "Time spent serving a scrape request.",
			Buckets: ScrapeDurationBuckets,
		}),
		ScrapesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mexport_scrapes_total",
			Help: "Total number of completed scrape requests.",
		}),
		RateLimitedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mexport_rate_limited_total",
			Help: "Total number of scrape requests rejected by the per-IP rate limiter.",
		}),
		ErrorsByReason: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mexport_errors_total",
			Help: "Total number of pipeline errors, partitioned by reason.",
		}, []string{"reason"}),
		LastScrapeSizeBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mexport_last_scrape_size_bytes",
			Help: "Size in bytes of the most recently served scrape body.",
		}),
		BufferOverflowTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mexport_buffer_overflow_total",
			Help: "Total number of snapshots dropped because the producer buffer was full.",
		}),
	}
}

// Register adds every collector in m to reg. MustRegister panics on a
// duplicate registration, matching the corpus's own eager-registration
// idiom — callers are expected to construct exactly one Metrics per
// process.
func (m *Metrics) Register(reg prometheus.Registerer) {
	reg.MustRegister(
		m.InFlight,
		m.ScrapeDuration,
		m.ScrapesTotal,
		m.RateLimitedTotal,
		m.ErrorsByReason,
		m.LastScrapeSizeBytes,
		m.BufferOverflowTotal,
	)
}
