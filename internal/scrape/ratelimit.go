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

package scrape

import (
	"sync"

	"golang.org/x/time/rate"
)

// IPRateLimiter holds one token bucket per client IP, created lazily the
// first time that IP is seen — the same fast-Load-then-LoadOrStore shape
// the corpus uses for its per-key store, generalized from one counter per
// API key to one bucket per IP.
type IPRateLimiter struct {
	buckets         sync.Map // string -> *rate.Limiter
	capacity        int
	refillPerSecond float64
}

// NewIPRateLimiter constructs a limiter where each IP gets capacity tokens,
// refilled at refillPerSecond tokens/second.
func NewIPRateLimiter(capacity int, refillPerSecond float64) *IPRateLimiter {
	return &IPRateLimiter{capacity: capacity, refillPerSecond: refillPerSecond}
}

// Allow reports whether ip may proceed, consuming one token if so.
func (l *IPRateLimiter) Allow(ip string) bool {
	return l.bucketFor(ip).Allow()
}

func (l *IPRateLimiter) bucketFor(ip string) *rate.Limiter {
	if v, ok := l.buckets.Load(ip); ok {
		return v.(*rate.Limiter)
	}
	fresh := rate.NewLimiter(rate.Limit(l.refillPerSecond), l.capacity)
	actual, _ := l.buckets.LoadOrStore(ip, fresh)
	return actual.(*rate.Limiter)
}

// Count reports how many distinct IPs currently have a bucket. Intended for
// diagnostics/tests, not the hot path.
func (l *IPRateLimiter) Count() int {
	n := 0
	l.buckets.Range(func(_, _ interface{}) bool {
		n++
		return true
	})
	return n
}
