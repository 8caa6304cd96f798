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
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/cloudwatch"

	"mexport/pkg/metric"
)

// maxCloudWatchDatumsPerCall is the hard cap PutMetricData enforces; configured
// batch sizes above this are clamped.
const maxCloudWatchDatumsPerCall = 20

// maxCloudWatchDimensions is the per-datum dimension cap.
const maxCloudWatchDimensions = 10

// maxCloudWatchDimensionChars bounds dimension name/value length.
const maxCloudWatchDimensionChars = 255

// CloudWatchOptions configures a CloudWatchEncoder.
type CloudWatchOptions struct {
	Namespace                 string
	ApproximateSumWhenMissing bool
	FlattenMultiSample        bool
	StorageResolution         int64 // 1 for high-resolution, 60 (default) otherwise
}

// CloudWatchEncoder maps metric snapshots onto CloudWatch MetricDatum values.
type CloudWatchEncoder struct {
	opts CloudWatchOptions
}

// NewCloudWatchEncoder constructs a CloudWatchEncoder from opts.
func NewCloudWatchEncoder(opts CloudWatchOptions) *CloudWatchEncoder {
	if opts.StorageResolution <= 0 {
		opts.StorageResolution = 60
	}
	return &CloudWatchEncoder{opts: opts}
}

// BuildInput maps batch onto a cloudwatch.PutMetricDataInput, clamped to 20
// datums regardless of the caller's batch size. CloudWatch has no wire bytes
// to inspect, so — unlike the other backends — it is not shoehorned into the
// byte-oriented Encoder interface; CloudWatchTransport consumes this typed
// input directly.
func (e *CloudWatchEncoder) BuildInput(batch []metric.Snapshot) (*cloudwatch.PutMetricDataInput, error) {
	if e.opts.Namespace == "" {
		return nil, fmt.Errorf("cloudwatch: namespace must not be empty")
	}

	var datums []*cloudwatch.MetricDatum
	for _, s := range batch {
		datums = append(datums, e.datumsFor(s)...)
		if len(datums) >= maxCloudWatchDatumsPerCall {
			datums = datums[:maxCloudWatchDatumsPerCall]
			break
		}
	}

	return &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(e.opts.Namespace),
		MetricData: datums,
	}, nil
}

// DatumsFor maps a single snapshot to its CloudWatch datum(s).
func (e *CloudWatchEncoder) DatumsFor(s metric.Snapshot, now time.Time) []*cloudwatch.MetricDatum {
	return e.datumsFor(s)
}

func (e *CloudWatchEncoder) datumsFor(s metric.Snapshot) []*cloudwatch.MetricDatum {
	dims := cloudWatchDimensions(s.Tags)
	ts := aws.Time(s.Timestamp)

	switch s.Kind {
	case metric.KindGauge:
		return []*cloudwatch.MetricDatum{{
			MetricName:        aws.String(s.Name),
			Timestamp:         ts,
			Unit:              aws.String(cloudWatchUnit(s.Unit)),
			Value:             aws.Float64(s.Value.Gauge.Double),
			Dimensions:        dims,
			StorageResolution: aws.Int64(e.opts.StorageResolution),
		}}
	case metric.KindCounter:
		name := s.Name
		if !strings.HasSuffix(name, "_total") {
			name += "_total"
		}
		return []*cloudwatch.MetricDatum{{
			MetricName:        aws.String(name),
			Timestamp:         ts,
			Unit:              aws.String(cloudwatch.StandardUnitCount),
			Value:             aws.Float64(float64(s.Value.Counter.Int64)),
			Dimensions:        dims,
			StorageResolution: aws.Int64(e.opts.StorageResolution),
		}}
	case metric.KindDistribution:
		d := s.Value.Distribution
		representative := (d.P50 + d.P90 + d.P99) / 3
		return []*cloudwatch.MetricDatum{e.statisticDatum(s.Name, dims, ts, float64(d.Count), d.Min, d.Max, representative)}
	case metric.KindSummary:
		sm := s.Value.Summary
		representative := sm.Min + (sm.Max-sm.Min)/2
		if v, ok := sm.Quantiles[0.5]; ok {
			representative = v
		}
		return []*cloudwatch.MetricDatum{e.statisticDatum(s.Name, dims, ts, float64(sm.Count), sm.Min, sm.Max, representative)}
	case metric.KindBucketHistogram:
		h := s.Value.Histogram
		return []*cloudwatch.MetricDatum{{
			MetricName: aws.String(s.Name),
			Timestamp:  ts,
			Unit:       aws.String(cloudWatchUnit(s.Unit)),
			StatisticValues: &cloudwatch.StatisticSet{
				SampleCount: aws.Float64(float64(h.Count)),
				Minimum:     aws.Float64(h.Min),
				Maximum:     aws.Float64(h.Max),
				Sum:         aws.Float64(h.Sum),
			},
			Dimensions:        dims,
			StorageResolution: aws.Int64(e.opts.StorageResolution),
		}}
	case metric.KindMultiSample:
		return e.multiSampleDatums(s, dims, ts)
	default:
		return nil
	}
}

// statisticDatum builds a StatisticValues-based datum. Sum is approximated as
// representative*count when ApproximateSumWhenMissing is set and is the
// representative alone otherwise. The option's zero value is false;
// cmd/mexport-agent sets it to true.
func (e *CloudWatchEncoder) statisticDatum(name string, dims []*cloudwatch.Dimension, ts *time.Time, count, min, max, representative float64) *cloudwatch.MetricDatum {
	sum := representative
	if e.opts.ApproximateSumWhenMissing {
		n := count
		if n < 1 {
			n = 1
		}
		sum = representative * n
	}
	return &cloudwatch.MetricDatum{
		MetricName: aws.String(name),
		Timestamp:  ts,
		StatisticValues: &cloudwatch.StatisticSet{
			SampleCount: aws.Float64(count),
			Minimum:     aws.Float64(min),
			Maximum:     aws.Float64(max),
			Sum:         aws.Float64(sum),
		},
		Dimensions:        dims,
		StorageResolution: aws.Int64(e.opts.StorageResolution),
	}
}

func (e *CloudWatchEncoder) multiSampleDatums(s metric.Snapshot, parentDims []*cloudwatch.Dimension, ts *time.Time) []*cloudwatch.MetricDatum {
	items := s.Value.MultiSample.Items
	if e.opts.FlattenMultiSample {
		var sum float64
		var n int
		for _, it := range items {
			switch it.ItemKind {
			case metric.KindGauge:
				sum += it.Gauge.Double
				n++
			case metric.KindCounter:
				sum += float64(it.Counter.Int64)
				n++
			}
		}
		if n == 0 {
			return nil
		}
		return []*cloudwatch.MetricDatum{{
			MetricName:        aws.String(s.Name),
			Timestamp:         ts,
			Value:             aws.Float64(sum / float64(n)),
			Dimensions:        parentDims,
			StorageResolution: aws.Int64(e.opts.StorageResolution),
		}}
	}

	var out []*cloudwatch.MetricDatum
	for _, it := range items {
		merged := cloudWatchDimensions(s.Tags.WithOverrides(it.Tags))
		switch it.ItemKind {
		case metric.KindGauge:
			out = append(out, &cloudwatch.MetricDatum{
				MetricName:        aws.String(it.Name),
				Timestamp:         ts,
				Value:             aws.Float64(it.Gauge.Double),
				Dimensions:        merged,
				StorageResolution: aws.Int64(e.opts.StorageResolution),
			})
		case metric.KindCounter:
			out = append(out, &cloudwatch.MetricDatum{
				MetricName:        aws.String(it.Name),
				Timestamp:         ts,
				Unit:              aws.String(cloudwatch.StandardUnitCount),
				Value:             aws.Float64(float64(it.Counter.Int64)),
				Dimensions:        merged,
				StorageResolution: aws.Int64(e.opts.StorageResolution),
			})
		}
	}
	return out
}

// cloudWatchDimensions sorts tags by key, caps the count at 10, and
// truncates name/value to 255 chars with CR/LF replaced by a space — the
// post-CardinalityGuard dimension shaping spec §4.6.2 requires.
func cloudWatchDimensions(tags metric.Tags) []*cloudwatch.Dimension {
	sorted := tags.Sorted()
	if len(sorted) > maxCloudWatchDimensions {
		sorted = sorted[:maxCloudWatchDimensions]
	}
	out := make([]*cloudwatch.Dimension, 0, len(sorted))
	for _, t := range sorted {
		out = append(out, &cloudwatch.Dimension{
			Name:  aws.String(cloudWatchSanitize(t.Key)),
			Value: aws.String(cloudWatchSanitize(t.Value)),
		})
	}
	return out
}

func cloudWatchSanitize(s string) string {
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) > maxCloudWatchDimensionChars {
		s = s[:maxCloudWatchDimensionChars]
	}
	return s
}

// cloudWatchUnit maps the free-form unit string to a CloudWatch StandardUnit.
func cloudWatchUnit(unit string) string {
	switch strings.ToLower(unit) {
	case "ms":
		return cloudwatch.StandardUnitMilliseconds
	case "s":
		return cloudwatch.StandardUnitSeconds
	case "bytes":
		return cloudwatch.StandardUnitBytes
	case "%", "percent":
		return cloudwatch.StandardUnitPercent
	case "count":
		return cloudwatch.StandardUnitCount
	default:
		return cloudwatch.StandardUnitNone
	}
}

// CloudWatchTransport maps snapshots to datums and sends them via
// PutMetricData.
type CloudWatchTransport struct {
	client    *cloudwatch.CloudWatch
	encoder   *CloudWatchEncoder
	namespace string
}

// NewCloudWatchTransport constructs a CloudWatchTransport over an existing
// SDK client (narrow interface would obscure the real PutMetricData
// signature, so the concrete client is wrapped directly — matching the
// teacher's pattern of wrapping a real backend client behind a small type).
func NewCloudWatchTransport(client *cloudwatch.CloudWatch, encoder *CloudWatchEncoder, namespace string) *CloudWatchTransport {
	return &CloudWatchTransport{client: client, encoder: encoder, namespace: namespace}
}

// SendSnapshots maps snapshots to datums and issues PutMetricData directly,
// bypassing EncodedBatch's byte payload (CloudWatch has no wire bytes to
// inspect; the SDK marshals the typed input itself).
func (t *CloudWatchTransport) SendSnapshots(ctx context.Context, snapshots []metric.Snapshot, now time.Time) error {
	var datums []*cloudwatch.MetricDatum
	for _, s := range snapshots {
		datums = append(datums, t.encoder.DatumsFor(s, now)...)
	}
	if len(datums) > maxCloudWatchDatumsPerCall {
		datums = datums[:maxCloudWatchDatumsPerCall]
	}
	_, err := t.client.PutMetricDataWithContext(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(t.namespace),
		MetricData: datums,
	})
	return err
}
