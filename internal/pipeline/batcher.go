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

import "mexport/pkg/metric"

// EncodedSizer estimates the encoded byte size of a single snapshot, used by
// the Batcher to enforce the byte cap without running the real encoder on
// every item. No encoder in this module supplies one; cmd/mexport-agent
// passes a fixed per-snapshot estimate.
type EncodedSizer func(metric.Snapshot) int

// Batch is an ordered group of snapshots that together satisfy a backend's
// count and byte caps (except for a deliberately oversized solo batch).
type Batch struct {
	Items []metric.Snapshot
}

// Batcher partitions a sequence of snapshots into batches obeying a maximum
// item count and a maximum encoded byte size. It mirrors the
// accumulate-until-cap-then-flush discipline of a shard accumulator: items
// stream in, a running total is kept, and crossing either cap starts a new
// batch.
//
// Tie-break: if a single item's encoded size alone exceeds maxBytes, any
// batch accumulated so far is emitted first, then the oversized item is
// emitted alone in its own batch (resolves the spec's ambiguous tie-break;
// see the accompanying design notes).
type Batcher struct {
	maxItems int
	maxBytes int
	size     EncodedSizer
}

// NewBatcher constructs a Batcher. maxItems must be >= 1; maxBytes == 0 means
// unlimited.
func NewBatcher(maxItems, maxBytes int, size EncodedSizer) *Batcher {
	if maxItems < 1 {
		maxItems = 1
	}
	return &Batcher{maxItems: maxItems, maxBytes: maxBytes, size: size}
}

// Batches partitions snapshots into batches per the count/byte caps,
// preserving snapshot order both within and across batches.
func (b *Batcher) Batches(snapshots []metric.Snapshot) []Batch {
	var batches []Batch
	var current []metric.Snapshot
	var currentBytes int

	flush := func() {
		if len(current) == 0 {
			return
		}
		batches = append(batches, Batch{Items: current})
		current = nil
		currentBytes = 0
	}

	for _, s := range snapshots {
		itemBytes := 0
		if b.size != nil {
			itemBytes = b.size(s)
		}

		oversizedAlone := b.maxBytes > 0 && itemBytes > b.maxBytes
		if oversizedAlone {
			flush()
			batches = append(batches, Batch{Items: []metric.Snapshot{s}})
			continue
		}

		wouldExceedCount := len(current) >= b.maxItems
		wouldExceedBytes := b.maxBytes > 0 && len(current) > 0 && currentBytes+itemBytes > b.maxBytes
		if wouldExceedCount || wouldExceedBytes {
			flush()
		}

		current = append(current, s)
		currentBytes += itemBytes
	}
	flush()
	return batches
}
