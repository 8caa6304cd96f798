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

package pipeline

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mexport/pkg/metric"
)

func snap(id string) metric.Snapshot {
	s, err := metric.New(id, id, metric.KindCounter, "", "", nil, metric.Value{}, time.Time{})
	if err != nil {
		panic(err)
	}
	return s
}

func TestBuffer_CapacityFloor(t *testing.T) {
	b := NewBuffer(1)
	require.Equal(t, minCapacity, b.capacity)
}

func TestBuffer_DrainFIFO(t *testing.T) {
	b := NewBuffer(1000)
	b.Submit(snap("a"))
	b.Submit(snap("b"))
	b.Submit(snap("c"))

	got := b.Drain(2)
	require.Equal(t, []string{"a", "b"}, []string{got[0].ID, got[1].ID})

	got = b.Drain(10)
	require.Len(t, got, 1)
	require.Equal(t, "c", got[0].ID)
}

func TestBuffer_DrainEmptyReturnsNil(t *testing.T) {
	b := NewBuffer(1000)
	require.Nil(t, b.Drain(10))
}

// Buffer of capacity 1000 receives 1500 submissions in order; consumer reads
// exactly 1000 items, overflow counter = 500.
func TestBuffer_OverflowCountsDropOldest(t *testing.T) {
	b := NewBuffer(1000)
	for i := 0; i < 1500; i++ {
		b.Submit(snap("x"))
	}
	require.Equal(t, int64(500), b.Overflow())

	all := b.Drain(2000)
	require.Len(t, all, 1000)
}

// Capacity 1, second submit while first unread: buffer holds only the
// second item; overflow == 1.
func TestBuffer_SingleCapacityOverflow(t *testing.T) {
	b := NewBuffer(0)
	b.capacity = 1 // force below the spec floor to exercise the exact boundary scenario
	b.Submit(snap("first"))
	b.Submit(snap("second"))

	require.Equal(t, int64(1), b.Overflow())
	got := b.Drain(10)
	require.Len(t, got, 1)
	require.Equal(t, "second", got[0].ID)
}

func TestBuffer_SubmitAfterCloseIsNoop(t *testing.T) {
	b := NewBuffer(1000)
	b.Close()
	b.Submit(snap("a"))
	require.Equal(t, 0, b.Len())
}

func TestBuffer_ConcurrentProducersSingleConsumer(t *testing.T) {
	b := NewBuffer(10000)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				b.Submit(snap("x"))
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1000, b.Len())
}
