// Package stats provides rolling statistical context for signal generators.
package stats

import (
	"math"
	"sort"

	"github.com/moznion/go-optional"
)

// minObservations is the number of observations required before any
// statistic is considered valid.
const minObservations = 10

const epsilon = 1e-10

// RollingHistory is a bounded FIFO of scalar observations with lazily
// recomputed caches for mean, sample standard deviation and a sorted copy
// used for percentile rank. Caches are invalidated on push and rebuilt on
// the first read afterwards, keeping push O(1) amortized.
//
// RollingHistory is not safe for concurrent use; callers synchronize access.
type RollingHistory struct {
	values  []float64
	maxSize int

	dirty  bool
	sorted []float64
	mean   float64
	stdDev float64
}

// NewRollingHistory creates a history holding at most maxSize observations.
// A maxSize below 1 is raised to 1.
func NewRollingHistory(maxSize int) *RollingHistory {
	if maxSize < 1 {
		maxSize = 1
	}

	return &RollingHistory{
		values:  make([]float64, 0, maxSize),
		maxSize: maxSize,
		dirty:   true,
	}
}

// Push appends an observation, evicting the oldest when capacity is exceeded.
func (h *RollingHistory) Push(value float64) {
	if len(h.values) >= h.maxSize {
		copy(h.values, h.values[1:])
		h.values = h.values[:len(h.values)-1]
	}

	h.values = append(h.values, value)
	h.dirty = true
}

// Len returns the number of observations currently held.
func (h *RollingHistory) Len() int {
	return len(h.values)
}

// HasSufficientData returns true once enough observations have accumulated
// for statistics to be valid.
func (h *RollingHistory) HasSufficientData() bool {
	return len(h.values) >= minObservations
}

// Mean returns the arithmetic mean, or None with insufficient data.
func (h *RollingHistory) Mean() optional.Option[float64] {
	if !h.HasSufficientData() {
		return optional.None[float64]()
	}

	h.refresh()

	return optional.Some(h.mean)
}

// StdDev returns the sample standard deviation (N-1 denominator), or None
// with insufficient data.
func (h *RollingHistory) StdDev() optional.Option[float64] {
	if !h.HasSufficientData() {
		return optional.None[float64]()
	}

	h.refresh()

	return optional.Some(h.stdDev)
}

// ZScore returns how many standard deviations value sits from the mean.
// A degenerate (all-equal) history yields 0 rather than NaN or Inf; with
// insufficient data the result is None.
func (h *RollingHistory) ZScore(value float64) optional.Option[float64] {
	if !h.HasSufficientData() {
		return optional.None[float64]()
	}

	h.refresh()

	if h.stdDev < epsilon {
		return optional.Some(0.0)
	}

	return optional.Some((value - h.mean) / h.stdDev)
}

// Percentile returns the tie-aware percentile rank of value in [0, 1]: the
// fraction of observations strictly below plus half the fraction exactly
// equal. With insufficient data the result is None.
func (h *RollingHistory) Percentile(value float64) optional.Option[float64] {
	if !h.HasSufficientData() {
		return optional.None[float64]()
	}

	h.refresh()

	below := sort.SearchFloat64s(h.sorted, value)
	upper := sort.Search(len(h.sorted), func(i int) bool { return h.sorted[i] > value })
	equal := upper - below

	rank := (float64(below) + 0.5*float64(equal)) / float64(len(h.sorted))

	return optional.Some(rank)
}

// Values returns a copy of the observations, oldest first.
func (h *RollingHistory) Values() []float64 {
	out := make([]float64, len(h.values))
	copy(out, h.values)

	return out
}

func (h *RollingHistory) refresh() {
	if !h.dirty {
		return
	}

	n := len(h.values)

	if cap(h.sorted) < n {
		h.sorted = make([]float64, n)
	}

	h.sorted = h.sorted[:n]
	copy(h.sorted, h.values)
	sort.Float64s(h.sorted)

	if n == 0 {
		h.mean = 0
		h.stdDev = 0
		h.dirty = false

		return
	}

	sum := 0.0
	for _, v := range h.values {
		sum += v
	}

	h.mean = sum / float64(n)

	if n < 2 {
		h.stdDev = 0
		h.dirty = false

		return
	}

	variance := 0.0
	for _, v := range h.values {
		diff := v - h.mean
		variance += diff * diff
	}

	h.stdDev = math.Sqrt(variance / float64(n-1))
	h.dirty = false
}
