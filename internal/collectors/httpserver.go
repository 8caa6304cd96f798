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
	"sync/atomic"
	"time"

	"mexport/pkg/metric"
)

// HTTPServerCollector samples in-flight request count, total requests, and a
// latency histogram for an instrumented HTTP server. The server calls Begin
// at the start of each request and the returned func when it completes;
// Collect only reads the already-maintained counters.
type HTTPServerCollector struct {
	factory *metric.Factory

	inFlight atomic.Int64
	total    *metric.Counter
	latency  *metric.Timer
}

// NewHTTPServerCollector registers the instruments this collector reports
// against factory.
func NewHTTPServerCollector(factory *metric.Factory) *HTTPServerCollector {
	return &HTTPServerCollector{
		factory: factory,
		total:   factory.Counter("http.server.requests", "http_server_requests", "", "Total HTTP requests served.", nil),
		latency: factory.Timer("http.server.latency", "http_server_latency", "Request handling latency.", nil,
			[]float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500}),
	}
}

// Begin marks the start of a request; the returned func must be called
// exactly once when the request completes.
func (c *HTTPServerCollector) Begin() func() {
	c.inFlight.Add(1)
	start := time.Now()
	return func() {
		c.inFlight.Add(-1)
		c.total.Add(1)
		c.latency.Record(time.Since(start))
	}
}

// Collect reports the current in-flight gauge alongside the counter/timer
// snapshots, which already live in factory and are exported via its normal
// ForEach path — Collect only needs to materialize the in-flight gauge,
// which has no natural home as a persistent instrument since it is derived
// from a running total rather than accumulated observations.
func (c *HTTPServerCollector) Collect(ctx context.Context) []metric.Snapshot {
	if isCancelled(ctx) {
		return []metric.Snapshot{statusSnapshot(c.factory, "http.server.collector", "http_server_collector", "cancelled")}
	}
	g := c.factory.Gauge("http.server.in_flight", "http_server_in_flight", "", "Requests currently being handled.", nil)
	g.Set(float64(c.inFlight.Load()))
	return []metric.Snapshot{g.Snapshot()}
}
