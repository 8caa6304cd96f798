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

	"github.com/stretchr/testify/require"
)

func TestFactory_CounterGetOrCreate(t *testing.T) {
	f := NewFactory()
	c1 := f.Counter("reqs", "requests", "", "", Tags{{Key: "route", Value: "/a"}})
	c2 := f.Counter("reqs", "requests", "", "", Tags{{Key: "route", Value: "/a"}})
	require.Same(t, c1, c2)

	c3 := f.Counter("reqs", "requests", "", "", Tags{{Key: "route", Value: "/b"}})
	require.NotSame(t, c1, c3)
}

func TestFactory_TagOrderDoesNotAffectIdentity(t *testing.T) {
	f := NewFactory()
	a := f.Gauge("g", "g", "", "", Tags{{Key: "a", Value: "1"}, {Key: "b", Value: "2"}})
	b := f.Gauge("g", "g", "", "", Tags{{Key: "b", Value: "2"}, {Key: "a", Value: "1"}})
	require.Same(t, a, b)
}

func TestFactory_ConcurrentGetOrCreateReturnsOneInstance(t *testing.T) {
	f := NewFactory()
	var wg sync.WaitGroup
	results := make([]*Counter, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			results[idx] = f.Counter("shared", "shared", "", "", nil)
		}(i)
	}
	wg.Wait()
	for _, r := range results {
		require.Same(t, results[0], r)
	}
}

func TestFactory_ForEachVisitsAllKinds(t *testing.T) {
	f := NewFactory()
	f.Counter("c", "c", "", "", nil).Add(1)
	f.Gauge("g", "g", "", "", nil).Set(2)
	f.Histogram("h", "h", "", "", nil, []float64{1}).Observe(1)
	f.Summary("s", "s", "", "", nil, []float64{0.5}, 0).Observe(1)
	f.MultiGauge("m", "m", "", "", nil)
	f.Timer("t", "t", "", nil, []float64{1}).Record(0)

	seen := map[string]bool{}
	f.ForEach(func(s Snapshot) { seen[s.ID] = true })
	require.True(t, seen["c"])
	require.True(t, seen["g"])
	require.True(t, seen["h"])
	require.True(t, seen["s"])
	require.True(t, seen["m"])
	require.True(t, seen["t"])
}

func TestFactory_Delete(t *testing.T) {
	f := NewFactory()
	f.Counter("c", "c", "", "", nil)
	f.Delete("c", nil)

	var count int
	f.ForEach(func(Snapshot) { count++ })
	require.Equal(t, 0, count)
}
