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
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu   sync.Mutex
	sent int
}

func (s *recordingSink) Send(ctx context.Context, batch Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent += len(batch.Items)
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	l.SetLevel(logrus.PanicLevel)
	return l
}

// 50 items in buffer, Stop() invoked; within the grace period all 50 items
// are drained and sent; no items remain in memory.
func TestFlusher_GracefulShutdownDrainsBuffer(t *testing.T) {
	buf := NewBuffer(1000)
	for i := 0; i < 50; i++ {
		buf.Submit(snap("x"))
	}
	sink := &recordingSink{}
	f := NewFlusher(buf, NewBatcher(10, 0, nil), sink, 250*time.Millisecond, 100, 5*time.Second, nil, quietLogger())
	f.Start()
	f.Stop()

	require.Equal(t, 50, sink.count())
	require.Equal(t, 0, buf.Len())
}

func TestFlusher_PeriodicDrainOnTick(t *testing.T) {
	buf := NewBuffer(1000)
	sink := &recordingSink{}
	f := NewFlusher(buf, NewBatcher(10, 0, nil), sink, 250*time.Millisecond, 100, time.Second, nil, quietLogger())
	f.Start()
	defer f.Stop()

	buf.Submit(snap("a"))
	require.Eventually(t, func() bool { return sink.count() == 1 }, time.Second, 10*time.Millisecond)
}

func TestFlusher_StopIsIdempotent(t *testing.T) {
	buf := NewBuffer(1000)
	f := NewFlusher(buf, NewBatcher(10, 0, nil), &recordingSink{}, 250*time.Millisecond, 100, time.Second, nil, quietLogger())
	f.Start()
	f.Stop()
	f.Stop()
}

// minCapacity+10 items submitted into a minCapacity buffer overflow the oldest 10; the
// overflow metric must reflect that loss rather than staying at zero.
func TestFlusher_ReconcilesBufferOverflow(t *testing.T) {
	buf := NewBuffer(minCapacity)
	for i := 0; i < minCapacity+10; i++ {
		buf.Submit(snap("x"))
	}
	require.Equal(t, int64(10), buf.Overflow())

	overflowMetric := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_buffer_overflow_total"})
	f := NewFlusher(buf, NewBatcher(10, 0, nil), &recordingSink{}, 250*time.Millisecond, 100, time.Second, overflowMetric, quietLogger())
	f.Start()
	defer f.Stop()

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(overflowMetric) == 10
	}, time.Second, 10*time.Millisecond)
}
