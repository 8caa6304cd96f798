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
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"mexport/pkg/metric"
)

// PrometheusEncoder renders a set of instrument snapshots as Prometheus text
// exposition. Rendering is hand-rolled rather than built on a registered
// client_golang Collector because instruments here carry an arbitrary,
// per-snapshot tag set: client_golang panics the moment two samples under
// the same metric name expose different label dimensions, which is exactly
// what a dynamically tagged MultiGauge or ad hoc collector produces. Text
// formatting still follows the exposition format client_golang's own
// promhttp.Handler would emit.
type PrometheusEncoder struct{}

// NewPrometheusEncoder constructs a PrometheusEncoder. It carries no state.
func NewPrometheusEncoder() *PrometheusEncoder {
	return &PrometheusEncoder{}
}

// PrometheusContentType is the exposition format's negotiated media type.
const PrometheusContentType = "text/plain; version=0.0.4; charset=utf-8"

// Encode renders batch as Prometheus text exposition: one `# TYPE` line per
// instrument followed by its sample line(s).
func (e *PrometheusEncoder) Encode(batch []metric.Snapshot, now time.Time) (EncodedBatch, error) {
	var b strings.Builder
	for _, s := range batch {
		writePrometheusSnapshot(&b, s)
	}
	return EncodedBatch{
		Payload:     []byte(b.String()),
		ContentType: PrometheusContentType,
	}, nil
}

func writePrometheusSnapshot(b *strings.Builder, s metric.Snapshot) {
	name := prometheusName(s)
	fmt.Fprintf(b, "# TYPE %s %s\n", name, prometheusType(s.Kind))

	switch s.Kind {
	case metric.KindGauge:
		writeSample(b, name, s.Tags, nil, s.Value.Gauge.Double)
	case metric.KindCounter:
		writeSample(b, name, s.Tags, nil, float64(s.Value.Counter.Int64))
	case metric.KindDistribution:
		d := s.Value.Distribution
		writeSample(b, name, s.Tags, []prometheusLabel{{"quantile", "0.5"}}, d.P50)
		writeSample(b, name, s.Tags, []prometheusLabel{{"quantile", "0.9"}}, d.P90)
		writeSample(b, name, s.Tags, []prometheusLabel{{"quantile", "0.99"}}, d.P99)
		writeSample(b, name+"_count", s.Tags, nil, float64(d.Count))
	case metric.KindSummary:
		sm := s.Value.Summary
		quantiles := make([]float64, 0, len(sm.Quantiles))
		for q := range sm.Quantiles {
			quantiles = append(quantiles, q)
		}
		sort.Float64s(quantiles)
		for _, q := range quantiles {
			writeSample(b, name, s.Tags, []prometheusLabel{{"quantile", formatFloat(q)}}, sm.Quantiles[q])
		}
		writeSample(b, name+"_count", s.Tags, nil, float64(sm.Count))
	case metric.KindBucketHistogram:
		writeHistogram(b, name, s.Tags, s.Value.Histogram)
	case metric.KindMultiSample:
		for _, item := range s.Value.MultiSample.Items {
			merged := s.Tags.WithOverrides(item.Tags)
			switch item.ItemKind {
			case metric.KindGauge:
				writeSample(b, prometheusSanitizeName(item.Name), merged, nil, item.Gauge.Double)
			case metric.KindCounter:
				writeSample(b, prometheusSanitizeName(item.Name)+"_total", merged, nil, float64(item.Counter.Int64))
			}
		}
	}
}

// writeHistogram emits the cumulative le buckets (including +Inf), _sum and
// _count lines. Per spec's worked example: bounds=[0.1,1], observations
// {0.05,0.5,2,2} -> bucket{le="0.1"}=1, bucket{le="1"}=2, bucket{le="+Inf"}=4.
func writeHistogram(b *strings.Builder, name string, tags metric.Tags, h metric.BucketHistogramValue) {
	for i, bound := range h.Bounds {
		writeSample(b, name+"_bucket", tags, []prometheusLabel{{"le", formatFloat(bound)}}, float64(h.Counts[i]))
	}
	writeSample(b, name+"_bucket", tags, []prometheusLabel{{"le", "+Inf"}}, float64(h.Counts[len(h.Counts)-1]))
	writeSample(b, name+"_sum", tags, nil, h.Sum)
	writeSample(b, name+"_count", tags, nil, float64(h.Count))
}

type prometheusLabel struct {
	Key   string
	Value string
}

func writeSample(b *strings.Builder, name string, tags metric.Tags, extra []prometheusLabel, value float64) {
	b.WriteString(name)

	sorted := tags.Sorted()
	if len(sorted) > 0 || len(extra) > 0 {
		b.WriteByte('{')
		first := true
		for _, t := range sorted {
			if !first {
				b.WriteByte(',')
			}
			first = false
			fmt.Fprintf(b, `%s="%s"`, prometheusSanitizeName(t.Key), prometheusEscapeLabelValue(t.Value))
		}
		for _, e := range extra {
			if !first {
				b.WriteByte(',')
			}
			first = false
			fmt.Fprintf(b, `%s="%s"`, e.Key, prometheusEscapeLabelValue(e.Value))
		}
		b.WriteByte('}')
	}
	b.WriteByte(' ')
	b.WriteString(formatPrometheusValue(value))
	b.WriteByte('\n')
}

func prometheusType(k metric.Kind) string {
	switch k {
	case metric.KindCounter:
		return "counter"
	case metric.KindBucketHistogram:
		return "histogram"
	case metric.KindSummary:
		return "summary"
	default:
		return "gauge"
	}
}

// prometheusName derives the exposed metric name, appending the mandatory
// _total suffix for counters.
func prometheusName(s metric.Snapshot) string {
	name := prometheusSanitizeName(s.Name)
	if s.Kind == metric.KindCounter && !strings.HasSuffix(name, "_total") {
		name += "_total"
	}
	return name
}

// prometheusSanitizeName replaces any character outside [a-zA-Z0-9_:] with '_',
// the exposition format's metric/label-name character set.
func prometheusSanitizeName(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == ':' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

func prometheusEscapeLabelValue(s string) string {
	r := strings.NewReplacer(`\`, `\\`, "\n", `\n`, `"`, `\"`)
	return r.Replace(s)
}

// formatPrometheusValue renders a float with compact decimal formatting,
// the invariant-culture behavior spec §4.6.3 calls for.
func formatPrometheusValue(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
