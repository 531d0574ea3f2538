package lame

import (
	"sort"

	"golang.org/x/exp/constraints"
)

// sortedRing is a small growable ring buffer that keeps its elements in
// non-decreasing order, supporting an O(log n) search for insertion
// point. It backs the runqueue's oldest-ready-timestamp tracking: ready_tsc
// values only ever increase as time passes, but multiple uthreads can
// share a tsc sample, so a search (not a simple min/max pair) is needed
// to keep the true ordering across removals.
type sortedRing[E constraints.Ordered] struct {
	s    []E
	r, w uint
}

func newSortedRing[E constraints.Ordered](size int) *sortedRing[E] {
	if size <= 0 || size&(size-1) != 0 {
		panic("lame: sortedRing: size must be a power of 2")
	}
	return &sortedRing[E]{s: make([]E, size)}
}

func (x *sortedRing[E]) mask(val uint) uint { return val & (uint(len(x.s)) - 1) }

func (x *sortedRing[E]) Len() int { return int(x.w - x.r) }

func (x *sortedRing[E]) Get(i int) E {
	if i < 0 || i >= x.Len() {
		panic("lame: sortedRing: get: index out of range")
	}
	return x.s[x.mask(x.r+uint(i))]
}

// Oldest returns the smallest element still tracked, and whether the
// ring holds anything at all.
func (x *sortedRing[E]) Oldest() (E, bool) {
	var zero E
	if x.Len() == 0 {
		return zero, false
	}
	return x.Get(0), true
}

// RemoveOldest drops the smallest tracked element, used when the
// corresponding uthread leaves the runqueue.
func (x *sortedRing[E]) RemoveOldest() {
	if x.Len() > 0 {
		x.r++
	}
}

// Insert adds value, keeping the ring sorted. Grows by doubling when
// full, the same special case catrate's ring buffer uses.
func (x *sortedRing[E]) Insert(value E) {
	index := sort.Search(x.Len(), func(i int) bool { return x.Get(i) >= value })
	l := x.Len()
	if l == len(x.s) {
		s := make([]E, uint(len(x.s))<<1)
		for i := 0; i < l; i++ {
			s[i] = x.Get(i)
		}
		copy(s[index+1:], s[index:l])
		s[index] = value
		x.s = s
		x.r = 0
		x.w = uint(l + 1)
		return
	}
	// Shift the logical tail to make room, then rewrite through the
	// mask so wrap-around is handled uniformly.
	for i := l; i > index; i-- {
		x.s[x.mask(x.r+uint(i))] = x.s[x.mask(x.r+uint(i-1))]
	}
	x.s[x.mask(x.r+uint(index))] = value
	x.w++
}
