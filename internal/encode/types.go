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

// Package encode implements the backend-specific wire encoders: InfluxDB
// Line Protocol, CloudWatch PutMetricData, JSON Lines, Prometheus text
// exposition, and a composite fan-out across any of the above.
package encode

import (
	"context"
	"time"

	"mexport/pkg/metric"
)

// EncodedBatch is the wire-ready output of an Encoder: a payload plus enough
// transport metadata for a Transport to deliver it without knowing the
// encoding's internals.
type EncodedBatch struct {
	Payload         []byte
	ContentType     string
	ContentEncoding string // "" or "gzip"
	TargetURL       string // empty when the transport already knows its endpoint
	Headers         map[string]string
}

// Encoder converts a batch of snapshots into a wire payload. Encoders are
// stateless except for caches of compiled regexes or similar; they never
// panic or return an error for a single malformed snapshot — unknown-kind
// values are rendered as an "unknown" marker instead (spec §7 propagation
// policy).
type Encoder interface {
	Encode(batch []metric.Snapshot, now time.Time) (EncodedBatch, error)
}

// Transport delivers an already-encoded batch to a backend and reports the
// outcome. Transient/fatal classification of the returned error is the
// caller's responsibility (see pipeline.DefaultClassifier).
type Transport interface {
	Send(ctx context.Context, batch EncodedBatch) error
}
