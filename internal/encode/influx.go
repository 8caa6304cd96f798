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
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"mexport/pkg/metric"
)

// Precision selects the epoch unit an InfluxEncoder stamps its points with.
type Precision string

const (
	PrecisionSeconds      Precision = "s"
	PrecisionMilliseconds Precision = "ms"
	PrecisionMicroseconds Precision = "us"
	PrecisionNanoseconds  Precision = "ns"
)

const defaultMinGzipSizeBytes = 8 * 1024

// InfluxOptions configures an InfluxEncoder and its HTTP transport.
type InfluxOptions struct {
	BaseAddress      string
	Org              string
	Bucket           string
	Token            string
	Precision        Precision
	EnableGzip       bool
	MinGzipSizeBytes int // defaults to 8 KiB when <= 0
	// BatchMaxBytes and BatchMaxLines are stored but not read by Encode,
	// which always renders the whole batch into one payload; batch limits
	// are enforced upstream by the pipeline's Batcher.
	BatchMaxBytes int
	BatchMaxLines int
}

// InfluxEncoder renders metric snapshots as InfluxDB Line Protocol. Encoding
// is hand-rolled rather than delegated to an SDK so the exact escaping and
// timestamp-precision behavior required by round-trip tests stays directly
// testable (see the accompanying design notes).
type InfluxEncoder struct {
	opts InfluxOptions
}

// NewInfluxEncoder constructs an InfluxEncoder from opts.
func NewInfluxEncoder(opts InfluxOptions) *InfluxEncoder {
	if opts.Precision == "" {
		opts.Precision = PrecisionNanoseconds
	}
	if opts.MinGzipSizeBytes <= 0 {
		opts.MinGzipSizeBytes = defaultMinGzipSizeBytes
	}
	return &InfluxEncoder{opts: opts}
}

// Encode renders batch as newline-terminated Line Protocol, one line per
// snapshot, gzip-compressing the payload when it is large enough and
// EnableGzip is set.
func (e *InfluxEncoder) Encode(batch []metric.Snapshot, now time.Time) (EncodedBatch, error) {
	var buf bytes.Buffer
	for _, s := range batch {
		buf.WriteString(influxLine(s, e.opts.Precision))
		buf.WriteByte('\n')
	}

	payload := buf.Bytes()
	encoding := ""
	if e.opts.EnableGzip && len(payload) >= e.opts.MinGzipSizeBytes {
		var gz bytes.Buffer
		w, _ := gzip.NewWriterLevel(&gz, gzip.BestSpeed)
		if _, err := w.Write(payload); err != nil {
			return EncodedBatch{}, err
		}
		if err := w.Close(); err != nil {
			return EncodedBatch{}, err
		}
		payload = gz.Bytes()
		encoding = "gzip"
	}

	target := fmt.Sprintf("%s/api/v2/write?org=%s&bucket=%s&precision=%s",
		strings.TrimRight(e.opts.BaseAddress, "/"),
		url.QueryEscape(e.opts.Org),
		url.QueryEscape(e.opts.Bucket),
		e.opts.Precision)

	return EncodedBatch{
		Payload:         payload,
		ContentType:     "text/plain",
		ContentEncoding: encoding,
		TargetURL:       target,
		Headers: map[string]string{
			"Authorization": "Token " + e.opts.Token,
			"User-Agent":    "mexport",
		},
	}, nil
}

// influxLine renders one snapshot as a single Line Protocol line (without the
// trailing newline).
func influxLine(s metric.Snapshot, precision Precision) string {
	var b strings.Builder
	b.WriteString(escapeMeasurement(s.Name))
	for _, tag := range s.Tags.Sorted() {
		b.WriteByte(',')
		b.WriteString(escapeTagOrField(tag.Key))
		b.WriteByte('=')
		b.WriteString(escapeTagOrField(tag.Value))
	}
	b.WriteByte(' ')
	b.WriteString(influxFields(s))
	b.WriteByte(' ')
	b.WriteString(strconv.FormatInt(influxTimestamp(s.Timestamp, precision), 10))
	return b.String()
}

func influxFields(s metric.Snapshot) string {
	switch s.Kind {
	case metric.KindGauge:
		return "value=" + formatFloat(s.Value.Gauge.Double)
	case metric.KindCounter:
		return "value=" + strconv.FormatInt(s.Value.Counter.Int64, 10) + "i"
	case metric.KindDistribution:
		d := s.Value.Distribution
		fields := []string{"count=" + strconv.FormatInt(d.Count, 10) + "i"}
		if d.Count > 0 {
			fields = append(fields,
				"min="+formatFloat(d.Min),
				"max="+formatFloat(d.Max),
				"p50="+formatFloat(d.P50),
				"p90="+formatFloat(d.P90),
				"p99="+formatFloat(d.P99),
			)
		}
		return strings.Join(fields, ",")
	case metric.KindSummary:
		sm := s.Value.Summary
		fields := []string{"count=" + strconv.FormatInt(sm.Count, 10) + "i"}
		if sm.Count > 0 {
			fields = append(fields, "min="+formatFloat(sm.Min), "max="+formatFloat(sm.Max))
			quantiles := make([]float64, 0, len(sm.Quantiles))
			for q := range sm.Quantiles {
				quantiles = append(quantiles, q)
			}
			sort.Float64s(quantiles)
			for _, q := range quantiles {
				fields = append(fields, "q"+formatFloat(q)+"="+formatFloat(sm.Quantiles[q]))
			}
		}
		return strings.Join(fields, ",")
	case metric.KindBucketHistogram:
		h := s.Value.Histogram
		fields := []string{"count=" + strconv.FormatInt(h.Count, 10) + "i"}
		if h.Count > 0 {
			fields = append(fields, "min="+formatFloat(h.Min), "max="+formatFloat(h.Max))
		}
		fields = append(fields, "sum="+formatFloat(h.Sum))
		for i, c := range h.Counts {
			fields = append(fields, fmt.Sprintf("b%d_le=%di", i, c))
		}
		return strings.Join(fields, ",")
	case metric.KindMultiSample:
		return "items=" + strconv.Itoa(len(s.Value.MultiSample.Items)) + "i"
	default:
		return `unknown="` + escapeQuoted(s.Name) + `"`
	}
}

func influxTimestamp(ts time.Time, precision Precision) int64 {
	switch precision {
	case PrecisionSeconds:
		return ts.Unix()
	case PrecisionMilliseconds:
		return ts.UnixMilli()
	case PrecisionMicroseconds:
		return ts.UnixMicro()
	default:
		return ts.UnixNano()
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// escapeMeasurement escapes the two characters that are significant in the
// measurement position: comma and space.
func escapeMeasurement(s string) string {
	r := strings.NewReplacer(",", `\,`, " ", `\ `)
	return r.Replace(s)
}

// escapeTagOrField escapes comma, space, and equals — the three characters
// significant in tag keys/values and field keys.
func escapeTagOrField(s string) string {
	r := strings.NewReplacer(",", `\,`, " ", `\ `, "=", `\=`)
	return r.Replace(s)
}

func escapeQuoted(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}

// InfluxTransport POSTs encoded batches to an InfluxDB v2 write endpoint.
// Plain stdlib net/http, matching the corpus's own raw-HTTP-client idiom
// rather than a generated SDK client.
type InfluxTransport struct {
	client *http.Client
}

// NewInfluxTransport constructs an InfluxTransport with connection reuse
// tuned the way the corpus's own Influx writer configures its transport.
func NewInfluxTransport() *InfluxTransport {
	return &InfluxTransport{
		client: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 100,
			},
		},
	}
}

// Send issues the HTTP POST described by batch. A 204 response indicates
// success; anything else is returned as an error carrying the status text so
// the caller's classifier can route it as transient or fatal.
func (t *InfluxTransport) Send(ctx context.Context, batch EncodedBatch) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, batch.TargetURL, bytes.NewReader(batch.Payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", batch.ContentType)
	if batch.ContentEncoding != "" {
		req.Header.Set("Content-Encoding", batch.ContentEncoding)
	}
	for k, v := range batch.Headers {
		req.Header.Set(k, v)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("influx write: unexpected status %s", resp.Status)
	}
	return nil
}
