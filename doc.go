// Package lame implements a user-level bundle scheduler: a per-worker
// fixed-capacity collection ("Bundle") of lightweight "uthreads" that an
// asynchronous interrupt can rotate between without involving the host
// kernel scheduler.
//
// # Architecture
//
// A [Runtime] owns N [Worker]s, one per pinned OS thread. Each Worker owns
// exactly one [Bundle]: a small inline array of [Slot]s. When a uthread
// stalls, an interrupt (modeled here as a call to [Worker.EntryINT] or
// [Worker.EntryPMU]) runs the switch policy in [Worker.lameHandle], which
// round-robins to a sibling uthread in the same Bundle via [Bundle.PickNext].
//
// Because this rewrite has no assembly trapframe-to-trapframe jump, the
// actual suspension in step 5 of the switch policy is realized as a
// goroutine handoff: a uthread's own goroutine blocks in [Uthread.park]
// and is woken by the next switch via [Uthread.wake]. The [Trapframe]
// type models the logical register state for invariants, logging and
// tests; it is not the mechanism of the switch.
//
// # Platform support
//
// Driver registration ([Worker.Register]) talks to a `/dev/lame`-style
// device node via ioctl on linux; darwin and windows builds return
// [ErrDriverUnsupported] and the Runtime downgrades to "LAME disabled".
//
// # Thread safety
//
// A Bundle and its owning Worker are single-threaded: all Bundle
// operations run on the Worker's own goroutine, pinned with
// runtime.LockOSThread. Cross-worker communication happens only through
// the runqueue ring and overflow list ([runqueue]).
package lame
