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
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTags_SortedAndGet(t *testing.T) {
	tags := Tags{{Key: "zone", Value: "b"}, {Key: "app", Value: "mexport"}}
	sorted := tags.Sorted()
	require.Equal(t, "app", sorted[0].Key)
	require.Equal(t, "zone", sorted[1].Key)

	v, ok := tags.Get("zone")
	require.True(t, ok)
	require.Equal(t, "b", v)

	_, ok = tags.Get("missing")
	require.False(t, ok)
}

// Item tags override parent tags by key; unrelated parent tags survive.
func TestTags_WithOverrides(t *testing.T) {
	parent := Tags{{Key: "app", Value: "mexport"}, {Key: "zone", Value: "a"}}
	item := Tags{{Key: "zone", Value: "b"}, {Key: "queue", Value: "orders"}}

	merged := parent.WithOverrides(item)
	v, ok := merged.Get("zone")
	require.True(t, ok)
	require.Equal(t, "b", v)

	v, ok = merged.Get("app")
	require.True(t, ok)
	require.Equal(t, "mexport", v)

	v, ok = merged.Get("queue")
	require.True(t, ok)
	require.Equal(t, "orders", v)
}

func TestNew_RejectsEmptyID(t *testing.T) {
	_, err := New("", "name", KindGauge, "", "", nil, Value{}, time.Time{})
	require.ErrorIs(t, err, ErrEmptyID)
}

func TestNew_RejectsDuplicateTagKey(t *testing.T) {
	tags := Tags{{Key: "zone", Value: "a"}, {Key: "zone", Value: "b"}}
	_, err := New("id", "name", KindGauge, "", "", tags, Value{}, time.Time{})
	require.ErrorIs(t, err, ErrDuplicateTagKey)
}

func TestNew_RejectsEmptyTagKey(t *testing.T) {
	tags := Tags{{Key: "", Value: "a"}}
	_, err := New("id", "name", KindGauge, "", "", tags, Value{}, time.Time{})
	require.ErrorIs(t, err, ErrEmptyTagKey)
}

func TestNew_DefaultsTimestampAndStamps(t *testing.T) {
	before := time.Now().Add(-time.Second)
	s, err := New("id", "name", KindGauge, "", "", nil, Value{}, time.Time{})
	require.NoError(t, err)
	require.True(t, s.Timestamp.After(before))
	require.Equal(t, time.UTC, s.Timestamp.Location())
}

func TestSnapshot_Validate_HistogramCountsMismatch(t *testing.T) {
	s := Snapshot{
		ID:   "h1",
		Kind: KindBucketHistogram,
		Value: Value{Histogram: BucketHistogramValue{
			Bounds: []float64{1, 2},
			Counts: []int64{0, 0}, // should be len(Bounds)+1 == 3
		}},
	}
	err := s.Validate()
	require.Error(t, err)
}
