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

// Package cardinality bounds the shape of a metric's dimensions before it
// reaches a backend encoder: dropping denied keys, truncating values, and
// capping the number of distinct values seen per key.
package cardinality

import (
	"regexp"
	"strings"
	"sync"
	"sync/atomic"

	"mexport/pkg/metric"
)

const (
	defaultMaxUniqueValuesPerKey = 10000
	defaultMaxDimensionValueLen  = 250
)

// Options configures a Guard. The zero value is usable: value length cap
// 250, no unique-value cap (0 disables it), no allow-list or deny patterns.
// A negative MaxUniqueValuesPerKey selects the 10000 default.
type Options struct {
	// AllowList, if non-empty, keeps only dimensions whose key appears here.
	AllowList []string
	// DenyPatterns are case-insensitive regexes; any dimension whose key
	// matches one is dropped before the allow-list is applied.
	DenyPatterns []string
	// DropEmptyDimensions drops a dimension whose value is empty or
	// all-whitespace.
	DropEmptyDimensions bool
	// MaxDimensionValueLength truncates dimension values longer than this.
	// Defaults to 250 if <= 0.
	MaxDimensionValueLength int
	// MaxUniqueValuesPerKey bounds the number of distinct values a guard
	// will admit for any one key. 0 disables the cap entirely. Defaults to
	// 10000 if left unset (negative).
	MaxUniqueValuesPerKey int
	// DropOnlyOverflowingKey, when a key's unique-value cap is exceeded,
	// drops just that dimension instead of the entire metric.
	DropOnlyOverflowingKey bool
	// MaxDimensions caps the number of dimensions kept per metric, applied
	// last, after sorting by key. 0 disables the cap.
	MaxDimensions int
}

// Guard enforces per-dimension cardinality limits across the snapshots that
// pass through it. It is safe for concurrent use by multiple encoders.
type Guard struct {
	opts Options
	deny []*regexp.Regexp
	allow map[string]bool

	mu   sync.Mutex
	seen map[string]map[string]bool

	overflowTotal atomic.Int64
}

// New constructs a Guard from opts. Malformed deny-pattern regexes are
// compiled with case-insensitivity folded in (spec: "case-insensitive,
// culture-invariant"); a pattern that fails to compile is skipped rather
// than causing a panic, since regex sourcing is operator-controlled
// configuration validated at startup by the caller.
func New(opts Options) *Guard {
	if opts.MaxDimensionValueLength <= 0 {
		opts.MaxDimensionValueLength = defaultMaxDimensionValueLen
	}
	if opts.MaxUniqueValuesPerKey < 0 {
		opts.MaxUniqueValuesPerKey = defaultMaxUniqueValuesPerKey
	}

	g := &Guard{opts: opts, seen: make(map[string]map[string]bool)}
	for _, pat := range opts.DenyPatterns {
		if re, err := regexp.Compile("(?i)" + pat); err == nil {
			g.deny = append(g.deny, re)
		}
	}
	if len(opts.AllowList) > 0 {
		g.allow = make(map[string]bool, len(opts.AllowList))
		for _, k := range opts.AllowList {
			g.allow[k] = true
		}
	}
	return g
}

// Apply filters and truncates a copy of snapshot's tags, returning the
// possibly-modified snapshot and whether it should still be emitted. A
// snapshot is dropped entirely only when a key's unique-value cap overflows
// and DropOnlyOverflowingKey is false.
func (g *Guard) Apply(s metric.Snapshot) (metric.Snapshot, bool) {
	filtered := make(metric.Tags, 0, len(s.Tags))
	for _, tag := range s.Tags {
		if g.isDenied(tag.Key) {
			continue
		}
		if g.allow != nil && !g.allow[tag.Key] {
			continue
		}
		value := tag.Value
		if g.opts.DropEmptyDimensions && strings.TrimSpace(value) == "" {
			continue
		}
		if len(value) > g.opts.MaxDimensionValueLength {
			value = value[:g.opts.MaxDimensionValueLength]
		}

		if g.opts.MaxUniqueValuesPerKey > 0 {
			admitted := g.admit(tag.Key, value)
			if !admitted {
				g.overflowTotal.Add(1)
				if g.opts.DropOnlyOverflowingKey {
					continue
				}
				return metric.Snapshot{}, false
			}
		}

		filtered = append(filtered, metric.Tag{Key: tag.Key, Value: value})
	}

	if g.opts.MaxDimensions > 0 && len(filtered) > g.opts.MaxDimensions {
		sorted := filtered.Sorted()
		filtered = sorted[:g.opts.MaxDimensions]
	}

	s.Tags = filtered
	return s, true
}

func (g *Guard) isDenied(key string) bool {
	for _, re := range g.deny {
		if re.MatchString(key) {
			return true
		}
	}
	return false
}

// admit records value as seen for key and reports whether the cap still
// permits it: either value was already seen, or the per-key set has room.
func (g *Guard) admit(key, value string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	values, ok := g.seen[key]
	if !ok {
		values = make(map[string]bool)
		g.seen[key] = values
	}
	if values[value] {
		return true
	}
	if len(values) >= g.opts.MaxUniqueValuesPerKey {
		return false
	}
	values[value] = true
	return true
}

// DistinctValues returns the number of distinct values admitted for key so
// far, for tests and diagnostics.
func (g *Guard) DistinctValues(key string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.seen[key])
}

// OverflowTotal returns the cumulative count of metrics or dimensions
// dropped due to the unique-value cap.
func (g *Guard) OverflowTotal() int64 {
	return g.overflowTotal.Load()
}
