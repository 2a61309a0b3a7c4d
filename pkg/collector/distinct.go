// Package collector provides small thread-safe accumulators used by the
// fetch pipelines to union results streamed by concurrent workers.
package collector

import (
	"sync"
)

// Distinct keeps the first value observed per key, in arrival order. Leaf
// fetches of a disjunctive attribute filter run concurrently and may return
// overlapping definitions, so their union is deduplicated here.
type Distinct[K comparable, V any] struct {
	mtx    sync.Mutex
	keyOf  func(V) K
	seen   map[K]struct{}
	values []V
}

func NewDistinct[K comparable, V any](keyOf func(V) K) *Distinct[K, V] {
	return &Distinct[K, V]{
		keyOf: keyOf,
		seen:  make(map[K]struct{}),
	}
}

// Collect adds v unless a value with the same key was already collected.
// It reports whether v was added.
func (d *Distinct[K, V]) Collect(v V) (added bool) {
	d.mtx.Lock()
	defer d.mtx.Unlock()

	k := d.keyOf(v)
	if _, ok := d.seen[k]; ok {
		return false
	}
	d.seen[k] = struct{}{}
	d.values = append(d.values, v)
	return true
}

// Values returns a copy of the collected values in first-seen order.
func (d *Distinct[K, V]) Values() []V {
	d.mtx.Lock()
	defer d.mtx.Unlock()

	out := make([]V, len(d.values))
	copy(out, d.values)
	return out
}

// Len is the number of distinct keys collected so far.
func (d *Distinct[K, V]) Len() int {
	d.mtx.Lock()
	defer d.mtx.Unlock()

	return len(d.values)
}
