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

	amqp "github.com/rabbitmq/amqp091-go"

	"mexport/pkg/metric"
)

// RabbitMQInspector is the narrow surface RabbitMQCollector needs: passive
// queue declaration, which amqp091-go returns the current message count
// for without side effects when the queue already exists with matching
// arguments.
type RabbitMQInspector interface {
	QueueInspect(name string) (amqp.Queue, error)
}

// realRabbitMQInspector adapts an *amqp.Channel to RabbitMQInspector.
type realRabbitMQInspector struct{ ch *amqp.Channel }

func (r realRabbitMQInspector) QueueInspect(name string) (amqp.Queue, error) {
	return r.ch.QueueInspect(name)
}

// NewRabbitMQInspector wraps an existing channel, matching the corpus's
// idiom of wrapping a real client behind a narrow, test-friendly interface
// rather than depending on the concrete type directly.
func NewRabbitMQInspector(ch *amqp.Channel) RabbitMQInspector {
	return realRabbitMQInspector{ch: ch}
}

// RabbitMQCollector samples message counts for a fixed set of queues.
type RabbitMQCollector struct {
	factory   *metric.Factory
	inspector RabbitMQInspector
	queues    []string
	depth     *metric.MultiGauge
}

// NewRabbitMQCollector constructs a RabbitMQCollector over inspector,
// sampling the given queue names on every Collect call.
func NewRabbitMQCollector(factory *metric.Factory, inspector RabbitMQInspector, queues []string) *RabbitMQCollector {
	return &RabbitMQCollector{
		factory:   factory,
		inspector: inspector,
		queues:    queues,
		depth: factory.MultiGauge("rabbitmq.queue.messages", "rabbitmq_queue_messages", "messages",
			"Per-queue ready message count.", nil),
	}
}

// Collect inspects every configured queue. A queue that cannot be inspected
// (missing, connection error) is reported via a per-item status tag rather
// than aborting the rest of the batch.
func (c *RabbitMQCollector) Collect(ctx context.Context) []metric.Snapshot {
	if isCancelled(ctx) {
		return []metric.Snapshot{statusSnapshot(c.factory, "rabbitmq.collector", "rabbitmq_collector", "cancelled")}
	}
	for _, q := range c.queues {
		info, err := c.inspector.QueueInspect(q)
		if err != nil {
			c.depth.Set(q, metric.Tags{{Key: "status", Value: "error"}}, 0)
			continue
		}
		c.depth.Set(q, nil, float64(info.Messages))
	}
	return []metric.Snapshot{c.depth.Snapshot()}
}
