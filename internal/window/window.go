// Package window implements a fixed-size rolling window of request
// outcomes per backend. Snapshots derived from the window feed strategy
// ranking and circuit breaker decisions.
package window

import (
	"sort"
	"time"
)

// Outcome is a single observed request result.
type Outcome struct {
	// Success reports whether the request completed successfully.
	Success bool

	// Latency is the observed request duration.
	Latency time.Duration
}

// Snapshot is a point-in-time aggregate of the window contents.
type Snapshot struct {
	// SampleCount is the number of outcomes currently in the window.
	SampleCount int

	// SuccessCount is the number of successful outcomes in the window.
	SuccessCount int

	// SuccessRate is SuccessCount / SampleCount. Zero when empty.
	SuccessRate float64

	// ErrorRate is 1 - SuccessRate. Zero when empty.
	ErrorRate float64

	// P50 is the median observed latency. Zero when empty.
	P50 time.Duration

	// P95 is the 95th-percentile observed latency. Zero when empty.
	P95 time.Duration

	// HasData reports whether the window holds at least one sample.
	// Strategies treat backends without data as unranked rather than
	// perfect or broken.
	HasData bool
}

// Window is a fixed-capacity ring buffer of outcomes. Once full, each
// new outcome evicts the oldest.
//
// Window is not safe for concurrent use; the owning backend serializes
// access.
type Window struct {
	outcomes []Outcome
	capacity int
	next     int
	size     int
}

// New creates a window with the given capacity. Capacity must be at
// least 1; smaller values are clamped.
func New(capacity int) *Window {
	if capacity < 1 {
		capacity = 1
	}
	return &Window{
		outcomes: make([]Outcome, capacity),
		capacity: capacity,
	}
}

// Record appends an outcome, evicting the oldest when full.
func (w *Window) Record(o Outcome) {
	w.outcomes[w.next] = o
	w.next = (w.next + 1) % w.capacity
	if w.size < w.capacity {
		w.size++
	}
}

// Reset discards all recorded outcomes.
func (w *Window) Reset() {
	w.next = 0
	w.size = 0
}

// Size returns the number of outcomes currently held.
func (w *Window) Size() int {
	return w.size
}

// Capacity returns the configured window capacity.
func (w *Window) Capacity() int {
	return w.capacity
}

// Snapshot computes aggregates over the current contents.
func (w *Window) Snapshot() Snapshot {
	if w.size == 0 {
		return Snapshot{}
	}

	successes := 0
	latencies := make([]time.Duration, 0, w.size)
	for i := 0; i < w.size; i++ {
		o := w.outcomes[i]
		if o.Success {
			successes++
		}
		latencies = append(latencies, o.Latency)
	}

	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	successRate := float64(successes) / float64(w.size)

	return Snapshot{
		SampleCount:  w.size,
		SuccessCount: successes,
		SuccessRate:  successRate,
		ErrorRate:    1 - successRate,
		P50:          percentile(latencies, 50),
		P95:          percentile(latencies, 95),
		HasData:      true,
	}
}

// percentile returns the nearest-rank percentile of sorted latencies.
func percentile(sorted []time.Duration, p int) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	rank := (p*len(sorted) + 99) / 100
	if rank < 1 {
		rank = 1
	}
	if rank > len(sorted) {
		rank = len(sorted)
	}
	return sorted[rank-1]
}
