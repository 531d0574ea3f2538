package lame

import "sync/atomic"

var uthreadSeq atomic.Uint64

// Uthread is the host runtime's lightweight thread, treated as opaque
// except for the fields the core touches directly: its Trapframe and the
// bookkeeping the runqueue hand-off needs (ThreadReady, ThreadRunning,
// ReadyTSC). There is no separate runqueue link node: a Uthread appears in
// exactly one of a Bundle's Slots or a runqueue's ring/overflow at a time,
// never both.
type Uthread struct {
	ID uint64

	// TF is this uthread's saved register state. The entry paths
	// (Worker.entryCommon) store the pushed frame in it and return it on
	// resume; elsewhere it is purely diagnostic.
	TF Trapframe

	// ThreadReady and ThreadRunning mirror the host runtime's own
	// thread_ready/thread_running flags. While a uthread sits in a
	// Bundle these are forced to false/true respectively (the
	// "readiness illusion"), so the work-stealer will not grab it.
	ThreadReady   bool
	ThreadRunning bool

	// ReadyTSC records when this uthread last became ready, set by
	// dismantle-to-runqueue.
	ReadyTSC uint64

	// resume is the rendezvous channel backing the goroutine-handoff
	// simulation of the trapframe-to-trapframe jump: a switch away from
	// this uthread blocks its goroutine on a receive from this channel,
	// and a later switch back to it sends a token.
	resume chan struct{}
}

// NewUthread allocates a Uthread not yet associated with any Bundle or
// runqueue.
func NewUthread() *Uthread {
	return &Uthread{
		ID:     uthreadSeq.Add(1),
		resume: make(chan struct{}, 1),
	}
}

// park blocks the calling goroutine until woken by wake. It is the
// goroutine-handoff analogue of the cooperative jump's "control resumes
// here when some later switch returns to cur" step.
func (u *Uthread) park() {
	<-u.resume
}

// wake resumes a parked uthread's goroutine. Never blocks: resume is
// buffered depth 1, matching the fact that a uthread can only be the
// target of one pending switch at a time.
func (u *Uthread) wake() {
	select {
	case u.resume <- struct{}{}:
	default:
	}
}
