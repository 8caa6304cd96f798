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

// Package pipeline implements the export pipeline that carries metric
// snapshots from collectors to backend encoders: a bounded buffer, a batcher,
// a periodic flusher, and a retrying sender.
package pipeline

import (
	"sync"
	"sync/atomic"

	"mexport/pkg/metric"
)

// minCapacity is the floor enforced on every Buffer regardless of the
// configured capacity.
const minCapacity = 1000

// Buffer is a bounded, multi-producer, single-consumer FIFO queue of metric
// snapshots. When full, Submit drops the oldest queued snapshot to make room
// for the new one (DropOldest) and counts the discard.
//
// Only the consumer calls Drain; producers only ever call Submit. The
// internal lock is held briefly, the same shared-resource discipline as the
// VSA's scalar/vector mutex.
type Buffer struct {
	mu       sync.Mutex
	items    []metric.Snapshot
	head     int
	capacity int
	closed   bool

	overflow atomic.Int64
}

// NewBuffer constructs a Buffer with the given capacity, raised to the
// spec-mandated floor of 1000 if lower.
func NewBuffer(capacity int) *Buffer {
	if capacity < minCapacity {
		capacity = minCapacity
	}
	return &Buffer{capacity: capacity}
}

// Submit enqueues snapshot, never blocking. If the buffer is full, the oldest
// queued snapshot is dropped and the overflow counter is incremented. Submit
// is a no-op after Close.
func (b *Buffer) Submit(snapshot metric.Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	if len(b.items)-b.head >= b.capacity {
		b.head++
		b.overflow.Add(1)
	}
	b.items = append(b.items, snapshot)
	b.compact()
}

// compact reclaims the discarded prefix once it grows past half the
// backing array, so a long-running buffer does not retain memory for items
// it has already dropped or drained.
func (b *Buffer) compact() {
	if b.head == 0 || b.head < len(b.items)/2 {
		return
	}
	remaining := len(b.items) - b.head
	copy(b.items, b.items[b.head:])
	b.items = b.items[:remaining]
	b.head = 0
}

// Drain removes and returns up to maxItems snapshots in FIFO order. It
// returns an empty slice if the buffer currently holds nothing. Drain is
// consumer-only and must not be called concurrently from multiple goroutines.
func (b *Buffer) Drain(maxItems int) []metric.Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	available := len(b.items) - b.head
	if available <= 0 || maxItems <= 0 {
		return nil
	}
	n := maxItems
	if n > available {
		n = available
	}
	out := make([]metric.Snapshot, n)
	copy(out, b.items[b.head:b.head+n])
	b.head += n
	b.compact()
	return out
}

// Len returns the number of snapshots currently queued.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items) - b.head
}

// Close signals that no further producers will submit. Queued items remain
// drainable until empty.
func (b *Buffer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
}

// Overflow returns the cumulative count of snapshots dropped due to the
// buffer being full (buffer.overflow.total).
func (b *Buffer) Overflow() int64 {
	return b.overflow.Load()
}
