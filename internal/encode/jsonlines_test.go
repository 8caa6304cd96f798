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
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mexport/pkg/metric"
)

func TestJSONLinesEncoder_RoundTripsRequiredFields(t *testing.T) {
	ts := time.Date(2025, 9, 2, 0, 0, 0, 0, time.UTC)
	s, err := metric.New("cpu.usage", "cpu_usage", metric.KindGauge, "%", "host CPU", metric.Tags{{Key: "host", Value: "web-01"}},
		metric.Value{Gauge: metric.GaugeValue{Double: 0.64}}, ts)
	require.NoError(t, err)

	enc := NewJSONLinesEncoder()
	out, err := enc.Encode([]metric.Snapshot{s}, ts)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(out.Payload), "\n"), "\n")
	require.Len(t, lines, 1)

	var decoded jsonLine
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &decoded))
	require.True(t, decoded.Timestamp.Equal(ts))
	require.Equal(t, "cpu.usage", decoded.ID)
	require.Equal(t, "cpu_usage", decoded.Name)
	require.Equal(t, "gauge", decoded.Kind)
	require.Equal(t, "%", decoded.Unit)
	require.Equal(t, "host CPU", decoded.Description)
	require.Equal(t, map[string]string{"host": "web-01"}, decoded.Tags)
}

func TestJSONLinesEncoder_GaugeExtraValue(t *testing.T) {
	s, err := metric.New("m", "m", metric.KindGauge, "", "", nil, metric.Value{Gauge: metric.GaugeValue{Double: 3.5}}, time.Now())
	require.NoError(t, err)

	enc := NewJSONLinesEncoder()
	out, err := enc.Encode([]metric.Snapshot{s}, time.Now())
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(out.Payload, &raw))
	extra := raw["extra"].(map[string]interface{})
	require.Equal(t, 3.5, extra["value"])
}

func TestJSONLinesEncoder_HistogramExtraMirrorsInflux(t *testing.T) {
	s, err := metric.New("lat", "lat", metric.KindBucketHistogram, "", "", nil,
		metric.Value{Histogram: metric.BucketHistogramValue{
			Count: 5, Min: 0.5, Max: 20, Sum: 38.5,
			Bounds: []float64{1, 5, 10}, Counts: []int64{1, 3, 4, 5},
		}}, time.Now())
	require.NoError(t, err)

	enc := NewJSONLinesEncoder()
	out, err := enc.Encode([]metric.Snapshot{s}, time.Now())
	require.NoError(t, err)

	var decoded jsonLine
	require.NoError(t, json.Unmarshal(out.Payload, &decoded))
	extraBytes, err := json.Marshal(decoded.Extra)
	require.NoError(t, err)
	var h jsonHistogramExtra
	require.NoError(t, json.Unmarshal(extraBytes, &h))
	require.Equal(t, int64(5), h.Count)
	require.Equal(t, 38.5, h.Sum)
	require.Equal(t, []int64{1, 3, 4, 5}, h.Counts)
}

func TestJSONLinesEncoder_MultipleLinesNewlineTerminated(t *testing.T) {
	var snaps []metric.Snapshot
	for i := 0; i < 3; i++ {
		s, _ := metric.New("m", "m", metric.KindCounter, "", "", nil, metric.Value{Counter: metric.CounterValue{Int64: int64(i)}}, time.Now())
		snaps = append(snaps, s)
	}
	enc := NewJSONLinesEncoder()
	out, err := enc.Encode(snaps, time.Now())
	require.NoError(t, err)
	require.Equal(t, 3, strings.Count(string(out.Payload), "\n"))
}

func TestJSONLinesFileSink_AppendsAndFlushesOnClose(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "metrics.jsonl")

	sink, err := NewJSONLinesFileSink(path)
	require.NoError(t, err)

	s, err := metric.New("m", "m", metric.KindGauge, "", "", nil, metric.Value{Gauge: metric.GaugeValue{Double: 1}}, time.Now())
	require.NoError(t, err)

	require.NoError(t, sink.Send(context.Background(), []metric.Snapshot{s}, time.Now()))
	require.NoError(t, sink.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `"name":"m"`)
}

func TestJSONLinesFileSink_EmptyBatchIsNoOp(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewJSONLinesFileSink(filepath.Join(dir, "metrics.jsonl"))
	require.NoError(t, err)
	defer sink.Close()

	require.NoError(t, sink.Send(context.Background(), nil, time.Now()))
}
