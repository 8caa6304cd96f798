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
	"time"

	redis "github.com/redis/go-redis/v9"

	"mexport/pkg/metric"
)

// RedisPinger is the narrow surface RedisCollector needs, wrapping a real
// client behind a small interface — the same shape the corpus's persistence
// adapters wrap a concrete client in (GoRedisEvaler over *redis.Client).
type RedisPinger interface {
	Ping(ctx context.Context) error
}

// realRedisPinger adapts *redis.Client to RedisPinger.
type realRedisPinger struct{ c *redis.Client }

func (r realRedisPinger) Ping(ctx context.Context) error {
	return r.c.Ping(ctx).Err()
}

// NewRedisClient builds a go-redis client for addr, wrapped as a RedisPinger.
func NewRedisClient(addr string) RedisPinger {
	return realRedisPinger{c: redis.NewClient(&redis.Options{Addr: addr})}
}

// RedisCollector probes a Redis instance's reachability and round-trip
// latency on each Collect call.
type RedisCollector struct {
	factory *metric.Factory
	pinger  RedisPinger
	up      *metric.Gauge
	latency *metric.Timer
}

// NewRedisCollector constructs a RedisCollector over pinger.
func NewRedisCollector(factory *metric.Factory, pinger RedisPinger) *RedisCollector {
	return &RedisCollector{
		factory: factory,
		pinger:  pinger,
		up:      factory.Gauge("redis.up", "redis_up", "", "1 if the last Redis probe succeeded, else 0.", nil),
		latency: factory.Timer("redis.ping.latency", "redis_ping_latency", "Redis PING round-trip latency.", nil,
			[]float64{1, 5, 10, 25, 50, 100, 250, 500}),
	}
}

// Collect issues a PING and records reachability plus latency.
func (c *RedisCollector) Collect(ctx context.Context) []metric.Snapshot {
	if isCancelled(ctx) {
		return []metric.Snapshot{statusSnapshot(c.factory, "redis.collector", "redis_collector", "cancelled")}
	}

	start := time.Now()
	err := c.pinger.Ping(ctx)
	elapsed := time.Since(start)

	if err != nil {
		c.up.Set(0)
		return []metric.Snapshot{c.up.Snapshot(), statusSnapshot(c.factory, "redis.collector", "redis_collector", "error")}
	}

	c.up.Set(1)
	c.latency.Record(elapsed)
	return []metric.Snapshot{c.up.Snapshot(), c.latency.Snapshot()}
}
