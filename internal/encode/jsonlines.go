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

package encode

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	"mexport/pkg/metric"
)

// jsonLine is the wire shape of one JSON Lines record: the common envelope
// plus a per-variant extra object mirroring the Influx field breakdown.
type jsonLine struct {
	Timestamp   time.Time         `json:"ts"`
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Kind        string            `json:"kind"`
	Unit        string            `json:"unit"`
	Description string            `json:"desc"`
	Tags        map[string]string `json:"tags"`
	Extra       interface{}       `json:"extra"`
}

type jsonGaugeExtra struct {
	Value float64 `json:"value"`
}

type jsonCounterExtra struct {
	Value int64 `json:"value"`
}

type jsonDistributionExtra struct {
	Count int64   `json:"count"`
	Min   float64 `json:"min,omitempty"`
	Max   float64 `json:"max,omitempty"`
	P50   float64 `json:"p50,omitempty"`
	P90   float64 `json:"p90,omitempty"`
	P99   float64 `json:"p99,omitempty"`
}

type jsonSummaryExtra struct {
	Count     int64              `json:"count"`
	Min       float64            `json:"min,omitempty"`
	Max       float64            `json:"max,omitempty"`
	Quantiles map[string]float64 `json:"quantiles,omitempty"`
}

type jsonHistogramExtra struct {
	Count  int64     `json:"count"`
	Min    float64   `json:"min,omitempty"`
	Max    float64   `json:"max,omitempty"`
	Sum    float64   `json:"sum"`
	Bounds []float64 `json:"bounds"`
	Counts []int64   `json:"counts"`
}

type jsonMultiSampleExtra struct {
	Items int `json:"items"`
}

type jsonUnknownExtra struct {
	Kind string `json:"kind"`
}

// JSONLinesEncoder renders snapshots as one JSON object per line. Histograms
// carry their bounds and counts as arrays and summaries a quantiles map,
// rather than the flattened per-bucket fields the Influx encoder writes.
type JSONLinesEncoder struct{}

// NewJSONLinesEncoder constructs a JSONLinesEncoder. It carries no state.
func NewJSONLinesEncoder() *JSONLinesEncoder {
	return &JSONLinesEncoder{}
}

// Encode renders batch as newline-terminated JSON, one object per snapshot.
func (e *JSONLinesEncoder) Encode(batch []metric.Snapshot, now time.Time) (EncodedBatch, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, s := range batch {
		if err := enc.Encode(toJSONLine(s)); err != nil {
			return EncodedBatch{}, err
		}
	}
	return EncodedBatch{
		Payload:     buf.Bytes(),
		ContentType: "application/x-ndjson",
	}, nil
}

func toJSONLine(s metric.Snapshot) jsonLine {
	tags := make(map[string]string, len(s.Tags))
	for _, t := range s.Tags {
		tags[t.Key] = t.Value
	}
	return jsonLine{
		Timestamp:   s.Timestamp,
		ID:          s.ID,
		Name:        s.Name,
		Kind:        s.Kind.String(),
		Unit:        s.Unit,
		Description: s.Description,
		Tags:        tags,
		Extra:       jsonExtraFor(s),
	}
}

func jsonExtraFor(s metric.Snapshot) interface{} {
	switch s.Kind {
	case metric.KindGauge:
		return jsonGaugeExtra{Value: s.Value.Gauge.Double}
	case metric.KindCounter:
		return jsonCounterExtra{Value: s.Value.Counter.Int64}
	case metric.KindDistribution:
		d := s.Value.Distribution
		extra := jsonDistributionExtra{Count: d.Count}
		if d.Count > 0 {
			extra.Min, extra.Max, extra.P50, extra.P90, extra.P99 = d.Min, d.Max, d.P50, d.P90, d.P99
		}
		return extra
	case metric.KindSummary:
		sm := s.Value.Summary
		extra := jsonSummaryExtra{Count: sm.Count}
		if sm.Count > 0 {
			extra.Min, extra.Max = sm.Min, sm.Max
			if len(sm.Quantiles) > 0 {
				extra.Quantiles = make(map[string]float64, len(sm.Quantiles))
				for q, v := range sm.Quantiles {
					extra.Quantiles[formatFloat(q)] = v
				}
			}
		}
		return extra
	case metric.KindBucketHistogram:
		h := s.Value.Histogram
		extra := jsonHistogramExtra{Count: h.Count, Sum: h.Sum, Bounds: h.Bounds, Counts: h.Counts}
		if h.Count > 0 {
			extra.Min, extra.Max = h.Min, h.Max
		}
		return extra
	case metric.KindMultiSample:
		return jsonMultiSampleExtra{Items: len(s.Value.MultiSample.Items)}
	default:
		return jsonUnknownExtra{Kind: s.Kind.String()}
	}
}

// JSONLinesFileSink is a buffered append-mode JSONL sink, grounded directly
// on the corpus's own buffered-writer batch sink: same mutex-guarded
// *bufio.Writer, same periodic-flush discipline bounding data loss on crash.
type JSONLinesFileSink struct {
	mu   sync.Mutex
	f    *os.File
	w    *bufio.Writer
	enc  *JSONLinesEncoder
	path string

	lastFlush     time.Time
	flushInterval time.Duration
}

// NewJSONLinesFileSink opens (or creates) the file at path in append mode
// with a 1 MiB buffered writer.
func NewJSONLinesFileSink(path string) (*JSONLinesFileSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &JSONLinesFileSink{
		f:             f,
		w:             bufio.NewWriterSize(f, 1<<20),
		enc:           NewJSONLinesEncoder(),
		path:          path,
		lastFlush:     time.Now(),
		flushInterval: 100 * time.Millisecond,
	}, nil
}

// Send encodes batch and appends it, flushing periodically rather than on
// every call to bound syscall overhead on high-rate pipelines.
func (s *JSONLinesFileSink) Send(ctx context.Context, batch []metric.Snapshot, now time.Time) error {
	if len(batch) == 0 {
		return nil
	}
	out, err := s.enc.Encode(batch, now)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write(out.Payload); err != nil {
		return err
	}
	if time.Since(s.lastFlush) > s.flushInterval {
		if err := s.w.Flush(); err != nil {
			return err
		}
		s.lastFlush = time.Now()
	}
	return nil
}

// Flush forces buffered data to be written to disk.
func (s *JSONLinesFileSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastFlush = time.Now()
	return s.w.Flush()
}

// Close flushes and closes the underlying file.
func (s *JSONLinesFileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.w.Flush()
	return s.f.Close()
}
