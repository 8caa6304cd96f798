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
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// opportunisticSleep bounds the idle sleep between non-blocking drain
// attempts while waiting for the next tick.
const opportunisticSleep = 25 * time.Millisecond

// minFlushInterval is the floor enforced on the configured flush interval.
const minFlushInterval = 250 * time.Millisecond

// Sink is what the Flusher hands drained batches to: batch, encode, and
// retry-send. Implementations must classify errors per the retry engine's
// transient/fatal taxonomy; the Flusher only logs and counts, it never
// interprets the error itself.
type Sink interface {
	Send(ctx context.Context, batch Batch) error
}

// Flusher periodically drains a Buffer and hands batches to a Sink. It mixes
// a coarse ticker with an opportunistic non-blocking drain loop so that a
// burst of submissions is not held back for a full interval, the same timer
// + stop-channel discipline as the teacher's background commit worker.
type Flusher struct {
	buffer        *Buffer
	batcher       *Batcher
	sink          Sink
	flushInterval time.Duration
	maxFlushBatch int
	shutdownGrace time.Duration
	log           logrus.FieldLogger

	// overflowMetric, if non-nil, is reconciled against buffer.Overflow() on
	// every tick so a scrape of /metrics reflects information loss as it
	// happens rather than reading a permanently-zero decorative counter.
	overflowMetric prometheus.Counter
	lastOverflow   int64 // loop-goroutine-only, no lock needed

	stopChan chan struct{}
	wg       sync.WaitGroup
	stopped  atomic.Bool
}

// NewFlusher constructs a Flusher. flushInterval is raised to the 250ms
// floor if lower; maxFlushBatch is the count cap handed to Buffer.Drain on
// each tick. overflowMetric may be nil to disable overflow reconciliation.
func NewFlusher(buffer *Buffer, batcher *Batcher, sink Sink, flushInterval time.Duration, maxFlushBatch int, shutdownGrace time.Duration, overflowMetric prometheus.Counter, log logrus.FieldLogger) *Flusher {
	if flushInterval < minFlushInterval {
		flushInterval = minFlushInterval
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Flusher{
		buffer:         buffer,
		batcher:        batcher,
		sink:           sink,
		flushInterval:  flushInterval,
		maxFlushBatch:  maxFlushBatch,
		shutdownGrace:  shutdownGrace,
		overflowMetric: overflowMetric,
		log:            log,
		stopChan:       make(chan struct{}),
	}
}

// Start launches the background flush loop.
func (f *Flusher) Start() {
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		f.loop()
	}()
}

// Stop signals the flush loop to perform a bounded final drain-and-flush and
// waits for it to finish. Safe to call more than once.
func (f *Flusher) Stop() {
	if !f.stopped.CompareAndSwap(false, true) {
		return
	}
	close(f.stopChan)
	f.wg.Wait()
}

func (f *Flusher) loop() {
	tick := time.NewTicker(f.flushInterval)
	defer tick.Stop()
	poll := time.NewTicker(opportunisticSleep)
	defer poll.Stop()

	for {
		select {
		case <-tick.C:
			f.reconcileOverflow()
			f.drainAndSend(context.Background(), f.maxFlushBatch)
		case <-poll.C:
			// Opportunistic drain: don't wait for the next full tick if items
			// are already queued.
			if f.buffer.Len() > 0 {
				f.drainAndSend(context.Background(), f.maxFlushBatch)
			}
		case <-f.stopChan:
			f.reconcileOverflow()
			f.finalFlush()
			return
		}
	}
}

// reconcileOverflow adds the growth in buffer.Overflow() since the last call
// to overflowMetric. Called only from the flush loop goroutine.
func (f *Flusher) reconcileOverflow() {
	if f.overflowMetric == nil {
		return
	}
	current := f.buffer.Overflow()
	if delta := current - f.lastOverflow; delta > 0 {
		f.overflowMetric.Add(float64(delta))
		f.lastOverflow = current
	}
}

func (f *Flusher) drainAndSend(ctx context.Context, maxItems int) {
	items := f.buffer.Drain(maxItems)
	if len(items) == 0 {
		return
	}
	for _, batch := range f.batcher.Batches(items) {
		if err := f.sink.Send(ctx, batch); err != nil {
			f.log.WithError(err).WithField("batch_size", len(batch.Items)).Warn("flush: batch dropped after terminal failure")
		}
	}
}

// finalFlush drains whatever remains in the buffer and attempts to send it,
// bounded by shutdownGrace. Items that cannot be sent within the grace period
// are discarded and logged; no counter records them.
func (f *Flusher) finalFlush() {
	ctx := context.Background()
	if f.shutdownGrace > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.shutdownGrace)
		defer cancel()
	}

	for {
		items := f.buffer.Drain(f.maxFlushBatch)
		if len(items) == 0 {
			return
		}
		for _, batch := range f.batcher.Batches(items) {
			select {
			case <-ctx.Done():
				f.log.WithField("batch_size", len(batch.Items)).Warn("flush: shutdown grace expired, discarding batch")
				return
			default:
			}
			if err := f.sink.Send(ctx, batch); err != nil {
				f.log.WithError(err).WithField("batch_size", len(batch.Items)).Warn("flush: final batch dropped after terminal failure")
			}
		}
	}
}
