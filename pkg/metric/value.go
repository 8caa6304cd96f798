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

// Package metric provides the closed value model shared by every instrument,
// collector, and encoder: a tagged union of metric values plus the instruments
// that produce them.
package metric

// Kind identifies which variant of Value a Snapshot carries.
type Kind int

const (
	KindGauge Kind = iota
	KindCounter
	KindDistribution
	KindSummary
	KindBucketHistogram
	KindMultiSample
	// KindUnknown is the forward-compatible fallback for a Value that does not
	// match any closed variant. Encoders must never panic on it.
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindGauge:
		return "gauge"
	case KindCounter:
		return "counter"
	case KindDistribution:
		return "distribution"
	case KindSummary:
		return "summary"
	case KindBucketHistogram:
		return "histogram"
	case KindMultiSample:
		return "multi_sample"
	default:
		return "unknown"
	}
}

// GaugeValue is an instantaneous measurement.
type GaugeValue struct {
	Double float64
}

// CounterValue is a monotonically non-decreasing total within a process
// lifetime.
type CounterValue struct {
	Int64 int64
}

// DistributionValue summarizes a set of observations with fixed quantiles.
// Min/Max are undefined (and must not be emitted) when Count == 0.
type DistributionValue struct {
	Count int64
	Min   float64
	Max   float64
	P50   float64
	P90   float64
	P99   float64
}

// SummaryValue summarizes a set of observations with caller-chosen quantiles.
// Quantiles maps a value in [0,1] to the observed value at that quantile.
type SummaryValue struct {
	Count     int64
	Min       float64
	Max       float64
	Quantiles map[float64]float64
}

// BucketHistogramValue is a cumulative bucket histogram.
//
// Invariant: len(Counts) == len(Bounds)+1. Counts[i] is the number of samples
// <= Bounds[i]; Counts[len(Bounds)] is the +Inf bucket.
type BucketHistogramValue struct {
	Count  int64
	Min    float64
	Max    float64
	Sum    float64
	Bounds []float64
	Counts []int64
}

// MultiItem is one member of a MultiSampleValue. Tags here override the
// parent Snapshot's tags by key (most-specific wins, per spec).
type MultiItem struct {
	Name string
	Tags Tags
	// Exactly one of Gauge/Counter is populated; ItemKind says which.
	ItemKind Kind
	Gauge    GaugeValue
	Counter  CounterValue
}

// MultiSampleValue is an ordered sequence of related gauge/counter readings,
// such as per-queue depths sampled in a single collection pass.
type MultiSampleValue struct {
	Items []MultiItem
}

// Value is the tagged union held by a Snapshot. Exactly one field is
// meaningful, selected by the enclosing Snapshot's Kind.
type Value struct {
	Gauge        GaugeValue
	Counter      CounterValue
	Distribution DistributionValue
	Summary      SummaryValue
	Histogram    BucketHistogramValue
	MultiSample  MultiSampleValue
}
