package lame

import "sync/atomic"

// runqueueRingSize is the fixed ring capacity; pushes beyond it spill to
// the overflow list. Grounded on the same chunked/ring-then-overflow
// shape as a bounded ingress queue, sized small because a worker's own
// runqueue is meant to stay shallow between work-stealer visits.
const runqueueRingSize = 32

// runqueue is a worker's hand-off target for dismantled bundle members:
// a fixed-size ring plus an overflow slice, so a dismantle never blocks
// on allocation in the common case and never loses a uthread in the
// uncommon one.
//
// head and tail are both atomic.Uint64. push and drainOverflow write
// tail, and steal/bumpHead (a host work-stealer claiming entries via
// Worker.StealReady) write head; steal also runs drainOverflow, so both
// sides store tail, always under the runqueue's spinlock. A ring slot
// write always precedes the tail store that publishes it, so a
// work-stealer's load of tail is guaranteed to observe the thread_ready
// store that preceded it; bumpHead's head store symmetrically releases
// the claimed slots back for reuse by a later push.
type runqueue struct {
	lock spinlock

	ring     [runqueueRingSize]*Uthread
	head     atomic.Uint64
	tail     atomic.Uint64
	overflow []*Uthread

	// readyTSC tracks every queued uthread's ReadyTSC in sorted order,
	// so oldestReady is an O(1) query rather than a scan; this is the
	// "updates the oldest-ready timestamp if the ring transitioned from
	// empty" bookkeeping the dismantle hand-off contract calls for.
	readyTSC *sortedRing[uint64]
}

func newRunqueue() *runqueue {
	return &runqueue{
		overflow: make([]*Uthread, 0, 16),
		readyTSC: newSortedRing[uint64](64),
	}
}

// push enqueues u at the tail of the ring; if the ring is full it
// appends to the overflow list and attempts to drain it back into the
// ring. Callers hold the worker's spinlock.
func (q *runqueue) push(u *Uthread) {
	q.readyTSC.Insert(u.ReadyTSC)
	head := q.head.Load()
	tail := q.tail.Load()
	if tail-head < runqueueRingSize {
		q.ring[tail%runqueueRingSize] = u
		q.tail.Store(tail + 1)
		return
	}
	q.overflow = append(q.overflow, u)
	q.drainOverflow()
}

// oldestReady returns the ReadyTSC of the longest-waiting queued
// uthread, and whether the queue is non-empty.
func (q *runqueue) oldestReady() (uint64, bool) {
	return q.readyTSC.Oldest()
}

// drainOverflow attempts to move overflow entries back into the ring
// once room exists. Called after every push and may be called
// opportunistically by the work-stealer path.
func (q *runqueue) drainOverflow() {
	for len(q.overflow) > 0 {
		head := q.head.Load()
		tail := q.tail.Load()
		if tail-head >= runqueueRingSize {
			return
		}
		q.ring[tail%runqueueRingSize] = q.overflow[0]
		q.overflow = q.overflow[1:]
		q.tail.Store(tail + 1)
	}
}

// bumpHead advances the ring head by n, releasing the n claimed ring
// slots back to push. n is the number of entries a consumer just
// claimed via steal.
func (q *runqueue) bumpHead(n uint64) {
	q.head.Store(q.head.Load() + n)
}

// steal claims up to max queued uthreads, oldest first, copying them
// out of the ring and then the overflow list and releasing the claimed
// ring slots via bumpHead. This is the runqueue's actual consumer path,
// backing Worker.StealReady.
func (q *runqueue) steal(max int) []*Uthread {
	if max <= 0 {
		return nil
	}
	head := q.head.Load()
	tail := q.tail.Load()
	avail := tail - head
	n := uint64(max)
	if avail < n {
		n = avail
	}
	out := make([]*Uthread, 0, n)
	for i := uint64(0); i < n; i++ {
		out = append(out, q.ring[(head+i)%runqueueRingSize])
	}
	if n > 0 {
		q.bumpHead(n)
	}
	for remaining := max - int(n); remaining > 0 && len(q.overflow) > 0; remaining-- {
		out = append(out, q.overflow[0])
		q.overflow = q.overflow[1:]
	}
	for range out {
		q.readyTSC.RemoveOldest()
	}
	q.drainOverflow()
	return out
}

// all returns the union of ring and overflow contents, ordered by push
// (oldest first), for tests asserting the dismantle-then-empty law.
func (q *runqueue) all() []*Uthread {
	head := q.head.Load()
	tail := q.tail.Load()
	out := make([]*Uthread, 0, tail-head+uint64(len(q.overflow)))
	for i := head; i < tail; i++ {
		out = append(out, q.ring[i%runqueueRingSize])
	}
	out = append(out, q.overflow...)
	return out
}

// len reports the total number of uthreads currently queued, ring plus
// overflow.
func (q *runqueue) len() int {
	return int(q.tail.Load()-q.head.Load()) + len(q.overflow)
}
