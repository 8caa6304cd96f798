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

package metric

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCounter_AddAndSnapshot(t *testing.T) {
	c := &Counter{meta: meta{id: "reqs", name: "requests"}}
	c.Add(3)
	c.Add(4)
	c.Add(-100) // negative deltas are clamped, never decrease the total

	snap := c.Snapshot()
	require.Equal(t, KindCounter, snap.Kind)
	require.Equal(t, int64(7), snap.Value.Counter.Int64)
}

func TestCounter_ConcurrentAdd(t *testing.T) {
	c := &Counter{meta: meta{id: "reqs"}}
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Add(1)
		}()
	}
	wg.Wait()
	require.Equal(t, int64(100), c.Snapshot().Value.Counter.Int64)
}

func TestGauge_SetAndAdd(t *testing.T) {
	g := &Gauge{meta: meta{id: "temp"}}
	g.Set(10.5)
	g.Add(2.5)
	require.InDelta(t, 13.0, g.Snapshot().Value.Gauge.Double, 1e-9)
}

func TestHistogram_ObserveBucketsAndExtremes(t *testing.T) {
	h := NewHistogram("lat", "latency", "ms", "", nil, []float64{10, 50, 100})
	h.Observe(5)
	h.Observe(25)
	h.Observe(25)
	h.Observe(500)

	snap := h.Snapshot()
	val := snap.Value.Histogram
	require.Equal(t, int64(4), val.Count)
	// cumulative: bucket<=10 has 1, <=50 has 3, <=100 has 3, +Inf has 4
	require.Equal(t, []int64{1, 3, 3, 4}, val.Counts)
	require.Equal(t, 5.0, val.Min)
	require.Equal(t, 500.0, val.Max)
	require.InDelta(t, 555.0, val.Sum, 1e-9)
}

func TestHistogram_EmptyHasNoMinMax(t *testing.T) {
	h := NewHistogram("lat", "latency", "ms", "", nil, []float64{10})
	snap := h.Snapshot()
	require.Equal(t, int64(0), snap.Value.Histogram.Count)
	require.Equal(t, 0.0, snap.Value.Histogram.Min)
}

func TestSummary_QuantilesAndBoundedReservoir(t *testing.T) {
	s := NewSummary("sz", "payload_size", "bytes", "", nil, []float64{0, 0.5, 1}, 3)
	for _, v := range []float64{1, 2, 3, 4, 5} {
		s.Observe(v)
	}
	snap := s.Snapshot()
	val := snap.Value.Summary
	require.Equal(t, int64(3), val.Count) // reservoir bounded to 3, drop-oldest
	require.Equal(t, 3.0, val.Min)
	require.Equal(t, 5.0, val.Max)
	require.Equal(t, 5.0, val.Quantiles[1])
	require.Equal(t, 3.0, val.Quantiles[0])
}

func TestMultiGauge_SetPreservesOrderAndOverridesTags(t *testing.T) {
	parentTags := Tags{{Key: "app", Value: "mexport"}}
	mg := NewMultiGauge("queues", "queue_depth", "items", "", parentTags)
	mg.Set("orders", Tags{{Key: "queue", Value: "orders"}}, 12)
	mg.SetCounter("payments", Tags{{Key: "queue", Value: "payments"}}, 99)
	mg.Set("orders", Tags{{Key: "queue", Value: "orders"}}, 15) // replace, not append

	snap := mg.Snapshot()
	items := snap.Value.MultiSample.Items
	require.Len(t, items, 2)
	require.Equal(t, "orders", items[0].Name)
	require.Equal(t, 15.0, items[0].Gauge.Double)
	v, ok := items[0].Tags.Get("app")
	require.True(t, ok)
	require.Equal(t, "mexport", v)
	require.Equal(t, "payments", items[1].Name)
	require.Equal(t, int64(99), items[1].Counter.Int64)
}

func TestTimer_RecordsInMilliseconds(t *testing.T) {
	timer := NewTimer("op", "op_duration", "", nil, []float64{10, 100})
	timer.Record(25 * time.Millisecond)
	snap := timer.Snapshot()
	require.Equal(t, "ms", snap.Unit)
	require.Equal(t, int64(1), snap.Value.Histogram.Count)
}
