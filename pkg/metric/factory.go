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

package metric

import (
	"strings"
	"sync"
)

// key identifies an instrument by its id plus the sorted signature of its
// tags — two calls with the same id but different tag sets are distinct
// instruments, the same way the teacher's Store keys a VSA by its full
// counter key rather than a bare name.
type key string

func keyFor(id string, tags Tags) key {
	var b strings.Builder
	b.WriteString(id)
	for _, t := range tags.Sorted() {
		b.WriteByte('\x1f')
		b.WriteString(t.Key)
		b.WriteByte('=')
		b.WriteString(t.Value)
	}
	return key(b.String())
}

// Factory is a concurrent get-or-create registry of instruments, keyed by id
// plus tag signature. The fast path is a lock-free sync.Map.Load; allocation
// only happens on first observation of a given id+tags pair, mirroring the
// teacher's Store.GetOrCreate fast-path-then-LoadOrStore pattern.
type Factory struct {
	entries sync.Map // key -> any instrument pointer
}

// NewFactory constructs an empty Factory.
func NewFactory() *Factory {
	return &Factory{}
}

// Counter returns the Counter for id+tags, creating it on first use.
func (f *Factory) Counter(id, name, unit, description string, tags Tags) *Counter {
	k := keyFor(id, tags)
	if v, ok := f.entries.Load(k); ok {
		return v.(*Counter)
	}
	c := &Counter{meta: meta{id: id, name: name, unit: unit, description: description, tags: tags}}
	actual, _ := f.entries.LoadOrStore(k, c)
	return actual.(*Counter)
}

// Gauge returns the Gauge for id+tags, creating it on first use.
func (f *Factory) Gauge(id, name, unit, description string, tags Tags) *Gauge {
	k := keyFor(id, tags)
	if v, ok := f.entries.Load(k); ok {
		return v.(*Gauge)
	}
	g := &Gauge{meta: meta{id: id, name: name, unit: unit, description: description, tags: tags}}
	actual, _ := f.entries.LoadOrStore(k, g)
	return actual.(*Gauge)
}

// Histogram returns the Histogram for id+tags, creating it with bounds on
// first use. bounds is ignored on subsequent calls for the same id+tags.
func (f *Factory) Histogram(id, name, unit, description string, tags Tags, bounds []float64) *Histogram {
	k := keyFor(id, tags)
	if v, ok := f.entries.Load(k); ok {
		return v.(*Histogram)
	}
	h := NewHistogram(id, name, unit, description, tags, bounds)
	actual, _ := f.entries.LoadOrStore(k, h)
	return actual.(*Histogram)
}

// Summary returns the Summary for id+tags, creating it on first use.
func (f *Factory) Summary(id, name, unit, description string, tags Tags, quantiles []float64, maxSamples int) *Summary {
	k := keyFor(id, tags)
	if v, ok := f.entries.Load(k); ok {
		return v.(*Summary)
	}
	s := NewSummary(id, name, unit, description, tags, quantiles, maxSamples)
	actual, _ := f.entries.LoadOrStore(k, s)
	return actual.(*Summary)
}

// MultiGauge returns the MultiGauge for id+tags, creating it on first use.
func (f *Factory) MultiGauge(id, name, unit, description string, tags Tags) *MultiGauge {
	k := keyFor(id, tags)
	if v, ok := f.entries.Load(k); ok {
		return v.(*MultiGauge)
	}
	m := NewMultiGauge(id, name, unit, description, tags)
	actual, _ := f.entries.LoadOrStore(k, m)
	return actual.(*MultiGauge)
}

// Timer returns the Timer for id+tags, creating it with boundsMs on first use.
func (f *Factory) Timer(id, name, description string, tags Tags, boundsMs []float64) *Timer {
	k := keyFor(id, tags)
	if v, ok := f.entries.Load(k); ok {
		return v.(*Timer)
	}
	t := NewTimer(id, name, description, tags, boundsMs)
	actual, _ := f.entries.LoadOrStore(k, t)
	return actual.(*Timer)
}

// snapshotter is implemented by every instrument type.
type snapshotter interface {
	Snapshot() Snapshot
}

// ForEach calls fn with a Snapshot of every instrument currently registered.
// Order is unspecified, matching the teacher's Store.ForEach over sync.Map.
func (f *Factory) ForEach(fn func(Snapshot)) {
	f.entries.Range(func(_, v any) bool {
		if s, ok := v.(snapshotter); ok {
			fn(s.Snapshot())
		}
		return true
	})
}

// Delete removes the instrument registered under id+tags, if any.
func (f *Factory) Delete(id string, tags Tags) {
	f.entries.Delete(keyFor(id, tags))
}
