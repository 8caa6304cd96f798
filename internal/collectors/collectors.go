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

// Package collectors implements the domain-state samplers that feed metric
// instruments between scrapes: an HTTP-server request sampler, an MQ queue
// sampler, real Redis/RabbitMQ probes, a TLS certificate expiry probe, and a
// WebSocket hub activity probe standing in for a SignalR hub.
package collectors

import (
	"context"

	"mexport/pkg/metric"
)

// Collector samples domain state into zero or more snapshots. Implementations
// must be safe under cancellation and must never panic on a failed probe —
// per spec, a failed collection is encoded as a status snapshot with a
// "status" tag of "error" or "cancelled" and a numeric value of 0, not an
// error return from Collect itself.
type Collector interface {
	Collect(ctx context.Context) []metric.Snapshot
}

// statusSnapshot builds the degraded-collection marker spec.md §6 requires:
// a zero-valued gauge carrying a "status" tag instead of a propagated error.
func statusSnapshot(factory *metric.Factory, id, name, status string) metric.Snapshot {
	g := factory.Gauge(id, name, "", "", metric.Tags{{Key: "status", Value: status}})
	g.Set(0)
	return g.Snapshot()
}

func isCancelled(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}
