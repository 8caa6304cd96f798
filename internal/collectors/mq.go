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

package collectors

import (
	"context"

	"mexport/pkg/metric"
)

// QueueDepthFunc returns the current depth of a named queue. Implementations
// are expected to be fast and non-blocking; a slow implementation should do
// its own internal caching rather than block Collect.
type QueueDepthFunc func(ctx context.Context, queue string) (int64, error)

// MQCollector samples the depth of a fixed set of named queues into a single
// MultiGauge, independent of which broker actually backs them — callers
// supply the depth function, so this collector has no transport dependency
// of its own (the concrete RabbitMQ probe lives in rabbitmq.go).
type MQCollector struct {
	factory *metric.Factory
	queues  []string
	depth   QueueDepthFunc
	gauge   *metric.MultiGauge
}

// NewMQCollector constructs an MQCollector sampling depth(queue) for each
// name in queues on every Collect call.
func NewMQCollector(factory *metric.Factory, queues []string, depth QueueDepthFunc) *MQCollector {
	return &MQCollector{
		factory: factory,
		queues:  queues,
		depth:   depth,
		gauge:   factory.MultiGauge("mq.queue.depth", "mq_queue_depth", "messages", "Per-queue message depth.", nil),
	}
}

// Collect samples every configured queue's depth. A queue whose depth lookup
// fails is reported as a 0-value status item rather than aborting the whole
// collection, per the Collector contract's degrade-per-item expectation.
func (c *MQCollector) Collect(ctx context.Context) []metric.Snapshot {
	if isCancelled(ctx) {
		return []metric.Snapshot{statusSnapshot(c.factory, "mq.collector", "mq_collector", "cancelled")}
	}
	for _, q := range c.queues {
		depth, err := c.depth(ctx, q)
		if err != nil {
			c.gauge.Set(q, metric.Tags{{Key: "status", Value: "error"}}, 0)
			continue
		}
		c.gauge.Set(q, nil, float64(depth))
	}
	return []metric.Snapshot{c.gauge.Snapshot()}
}
