// Package metrics provides a small in-process metrics registry that
// renders in the Prometheus text exposition format.
package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Counter is a monotonically increasing value.
type Counter struct {
	mu    sync.Mutex
	value float64
}

// Inc adds one to the counter.
func (c *Counter) Inc() { c.Add(1) }

// Add adds delta to the counter. Negative deltas are ignored.
func (c *Counter) Add(delta float64) {
	if delta < 0 {
		return
	}
	c.mu.Lock()
	c.value += delta
	c.mu.Unlock()
}

// Value returns the current count.
func (c *Counter) Value() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Gauge is a value that can go up and down.
type Gauge struct {
	mu    sync.Mutex
	value float64
}

// Set replaces the gauge value.
func (g *Gauge) Set(v float64) {
	g.mu.Lock()
	g.value = v
	g.mu.Unlock()
}

// Add adjusts the gauge by delta.
func (g *Gauge) Add(delta float64) {
	g.mu.Lock()
	g.value += delta
	g.mu.Unlock()
}

// Value returns the current gauge value.
func (g *Gauge) Value() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.value
}

// Timing accumulates observed durations as a sum and a count, rendered
// as the _sum and _count pair of a Prometheus summary.
type Timing struct {
	mu    sync.Mutex
	sum   float64
	count int64
}

// Observe records one duration.
func (t *Timing) Observe(d time.Duration) {
	t.mu.Lock()
	t.sum += d.Seconds()
	t.count++
	t.mu.Unlock()
}

// Count returns how many durations have been observed.
func (t *Timing) Count() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

type metricEntry struct {
	help    string
	counter *Counter
	gauge   *Gauge
	timing  *Timing
}

// Registry holds named metrics and renders them on demand.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*metricEntry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*metricEntry)}
}

// Counter returns the counter registered under name, creating it on
// first use. help is only recorded on creation.
func (r *Registry) Counter(name, help string) *Counter {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[name]
	if !ok {
		entry = &metricEntry{help: help, counter: &Counter{}}
		r.entries[name] = entry
	}
	if entry.counter == nil {
		entry.counter = &Counter{}
	}
	return entry.counter
}

// Gauge returns the gauge registered under name, creating it on first
// use.
func (r *Registry) Gauge(name, help string) *Gauge {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[name]
	if !ok {
		entry = &metricEntry{help: help, gauge: &Gauge{}}
		r.entries[name] = entry
	}
	if entry.gauge == nil {
		entry.gauge = &Gauge{}
	}
	return entry.gauge
}

// Timing returns the timing registered under name, creating it on
// first use.
func (r *Registry) Timing(name, help string) *Timing {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[name]
	if !ok {
		entry = &metricEntry{help: help, timing: &Timing{}}
		r.entries[name] = entry
	}
	if entry.timing == nil {
		entry.timing = &Timing{}
	}
	return entry.timing
}

// Render writes every metric in the Prometheus text format, sorted by
// name for stable output.
func (r *Registry) Render() string {
	r.mu.Lock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	entries := make(map[string]*metricEntry, len(r.entries))
	for name, entry := range r.entries {
		entries[name] = entry
	}
	r.mu.Unlock()

	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		entry := entries[name]
		if entry.help != "" {
			fmt.Fprintf(&b, "# HELP %s %s\n", name, entry.help)
		}
		switch {
		case entry.counter != nil:
			fmt.Fprintf(&b, "# TYPE %s counter\n", name)
			fmt.Fprintf(&b, "%s %s\n", name, formatValue(entry.counter.Value()))
		case entry.gauge != nil:
			fmt.Fprintf(&b, "# TYPE %s gauge\n", name)
			fmt.Fprintf(&b, "%s %s\n", name, formatValue(entry.gauge.Value()))
		case entry.timing != nil:
			entry.timing.mu.Lock()
			sum, count := entry.timing.sum, entry.timing.count
			entry.timing.mu.Unlock()
			fmt.Fprintf(&b, "# TYPE %s summary\n", name)
			fmt.Fprintf(&b, "%s_sum %s\n", name, formatValue(sum))
			fmt.Fprintf(&b, "%s_count %d\n", name, count)
		}
	}
	return b.String()
}

func formatValue(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%g", v)
}
