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
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"mexport/pkg/metric"
)

// Hub tracks a set of long-lived WebSocket connections grouped for
// broadcast — the idiomatic Go stand-in for a SignalR hub, which has no
// direct equivalent in this ecosystem. Connections are registered by
// Upgrade and deregistered by Leave; WSHubCollector only reads the counters Hub
// already maintains.
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	conns   map[*websocket.Conn]struct{}
	joined  atomic.Int64
	left    atomic.Int64
	dropped atomic.Int64
}

// NewHub constructs an empty Hub.
func NewHub() *Hub {
	return &Hub{conns: make(map[*websocket.Conn]struct{})}
}

// Upgrade promotes an HTTP request to a WebSocket connection and registers
// it with the hub. Callers are responsible for reading/writing the
// connection and calling Leave when finished.
func (h *Hub) Upgrade(w http.ResponseWriter, r *http.Request) (*websocket.Conn, error) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.dropped.Add(1)
		return nil, err
	}
	h.mu.Lock()
	h.conns[conn] = struct{}{}
	h.mu.Unlock()
	h.joined.Add(1)
	return conn, nil
}

// Leave deregisters conn. Safe to call more than once for the same
// connection.
func (h *Hub) Leave(conn *websocket.Conn) {
	h.mu.Lock()
	_, existed := h.conns[conn]
	delete(h.conns, conn)
	h.mu.Unlock()
	if existed {
		h.left.Add(1)
	}
}

// ActiveCount reports the number of currently registered connections.
func (h *Hub) ActiveCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// WSHubCollector samples Hub activity: active connections, cumulative
// joins/leaves, and dropped upgrade attempts.
type WSHubCollector struct {
	factory *metric.Factory
	hub     *Hub

	active  *metric.Gauge
	joined  *metric.Counter
	left    *metric.Counter
	dropped *metric.Counter
}

// NewWSHubCollector constructs a WSHubCollector over hub.
func NewWSHubCollector(factory *metric.Factory, hub *Hub) *WSHubCollector {
	return &WSHubCollector{
		factory: factory,
		hub:     hub,
		active:  factory.Gauge("wshub.active_connections", "wshub_active_connections", "", "Currently connected WebSocket clients.", nil),
		joined:  factory.Counter("wshub.joins", "wshub_joins", "", "Total WebSocket connections accepted.", nil),
		left:    factory.Counter("wshub.leaves", "wshub_leaves", "", "Total WebSocket connections closed.", nil),
		dropped: factory.Counter("wshub.dropped", "wshub_dropped", "", "Total upgrade attempts that failed.", nil),
	}
}

// Collect reports the hub's current activity counters.
func (c *WSHubCollector) Collect(ctx context.Context) []metric.Snapshot {
	if isCancelled(ctx) {
		return []metric.Snapshot{statusSnapshot(c.factory, "wshub.collector", "wshub_collector", "cancelled")}
	}

	c.active.Set(float64(c.hub.ActiveCount()))

	joinedDelta := c.hub.joined.Load() - c.joined.Snapshot().Value.Counter.Int64
	if joinedDelta > 0 {
		c.joined.Add(joinedDelta)
	}
	leftDelta := c.hub.left.Load() - c.left.Snapshot().Value.Counter.Int64
	if leftDelta > 0 {
		c.left.Add(leftDelta)
	}
	droppedDelta := c.hub.dropped.Load() - c.dropped.Snapshot().Value.Counter.Int64
	if droppedDelta > 0 {
		c.dropped.Add(droppedDelta)
	}

	return []metric.Snapshot{c.active.Snapshot(), c.joined.Snapshot(), c.left.Snapshot(), c.dropped.Snapshot()}
}
