package lame

import (
	"fmt"
	"sync/atomic"
)

// Worker owns exactly one Bundle and one runqueue, pinned to a single OS
// thread the way a kthread is pinned to a hardware thread.
// All Bundle operations and the switch policy run on the Worker's own
// goroutine; cross-worker communication happens only through the
// runqueue ring and overflow list.
type Worker struct {
	id int

	Bundle *Bundle
	rq     *runqueue

	cfg     Config
	logger  Logger
	bitmap  *CodeRangeBitmap
	variant Variant

	// self is the per-thread "current uthread" pointer the handler
	// updates on every switch; the host runtime reads it elsewhere.
	// Go's atomic.Pointer gives the store-before-resume ordering the
	// concurrency model requires without an explicit fence.
	self atomic.Pointer[Uthread]

	// inLame is the per-thread reentrancy guard: incremented on entry,
	// decremented on exit (and lowered while the entering uthread is
	// parked in a switch), gating nested LAME delivery.
	inLame atomic.Int32

	// TSC-style counters for the pretend/nop measurement variants.
	totalEntries atomic.Uint64
	totalNsec    atomic.Int64

	// External collaborator hooks (see the external interfaces
	// contract): the host runtime's preempt_enable/disable, getk/putk,
	// thread_yield, thread_cede and the "was a cede actually needed"
	// query. Exposed as fields, defaulting to no-ops, so this package
	// compiles and is testable standalone; a real integration replaces
	// them at construction.
	PreemptEnable      func()
	PreemptDisable     func()
	PreemptCedeNeeded  func() bool
	ThreadCede         func()
	ThreadYield        func()
	GetK               func()
	PutK               func()
}

// NewWorker constructs a Worker with an empty Bundle of the configured
// capacity. bitmap may be nil, which disables XSAVE gating (NeedsXSave
// then always reports true).
func NewWorker(id int, cfg Config, logger Logger, bitmap *CodeRangeBitmap) (*Worker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	b, err := NewBundle(id, uint32(cfg.LameBundleSize))
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = NoOpLogger{}
	}
	if bitmap == nil {
		bitmap = DisabledCodeRangeBitmap()
	}
	w := &Worker{
		id:                id,
		Bundle:            b,
		rq:                newRunqueue(),
		cfg:               cfg,
		logger:            logger,
		bitmap:            bitmap,
		variant:           cfg.Variant(),
		PreemptEnable:     func() {},
		PreemptDisable:    func() {},
		PreemptCedeNeeded: func() bool { return false },
		ThreadCede:        func() {},
		ThreadYield:       func() {},
		GetK:              func() {},
		PutK:              func() {},
	}
	return w, nil
}

// ID returns the worker's index, used in log lines as "kthread".
func (w *Worker) ID() int { return w.id }

// Self returns the uthread the handler last marked current.
func (w *Worker) Self() *Uthread { return w.self.Load() }

// SetSelf installs the initial current-uthread pointer; used when a
// worker starts running a uthread outside of any LAME switch.
func (w *Worker) SetSelf(u *Uthread) { w.self.Store(u) }

// DismantleBundle moves every present slot's uthread back into the
// runqueue, under the worker's spinlock. Called when the worker is being
// parked, a uthread is descheduled/preempted, the host runtime yields, or
// bundling is being disabled.
func (w *Worker) DismantleBundle(now uint64) {
	w.rq.lock.Lock()
	defer w.rq.lock.Unlock()
	w.dismantleLocked(now)
}

// dismantleLocked is the lock-already-held variant, for callers already
// holding the runqueue's spinlock (e.g. as part of a larger transition).
func (w *Worker) dismantleLocked(now uint64) {
	b := w.Bundle
	for i := uint32(0); i < b.capacity; i++ {
		s := &b.slots[i]
		if !s.Present {
			continue
		}
		u := s.Uthread
		u.ThreadReady = true
		u.ThreadRunning = false
		u.ReadyTSC = now
		w.rq.push(u)
		*s = Slot{}
	}
	b.used = 0
	b.active = 0
	w.logger.Log(LogEntry{Level: LevelDebug, Category: "bundle", WorkerID: w.id, Message: bundleLogLine(b)})
}

// StealReady claims up to max uthreads from this worker's runqueue,
// oldest-ready first, for a host work-stealer moving them to another
// worker. It is the runqueue's actual consumer path, under the same
// spinlock DismantleBundle uses to publish entries.
func (w *Worker) StealReady(max int) []*Uthread {
	w.rq.lock.Lock()
	defer w.rq.lock.Unlock()
	return w.rq.steal(max)
}

// Register opens the LAME device node and issues the appropriate ioctl
// naming the entry stub for this worker's configured register mode.
// Failures downgrade to "LAME disabled" (ErrDriverUnsupported/DriverError
// are returned, never panicked).
func (w *Worker) Register() error {
	if w.cfg.LameRegister == RegisterNone {
		return nil
	}
	handlerAddr := entryStubAddress(w.cfg.LameRegister, w.cfg.LameBundleSize)
	return registerDriver(w.cfg.LameDriverPath, w.cfg.LameRegister, handlerAddr)
}

// entryStubAddress names, conceptually, which compiled entry point would
// be registered for a given mode/capacity; since this rewrite has no
// assembly stubs it is a stable synthetic value distinguishing the
// variants for logging and tests, standing in for a choice among several
// entry symbols (including a capacity==2 fixed-unroll specialization).
func entryStubAddress(mode RegisterMode, capacity int) uint64 {
	base := uint64(0x1000)
	switch mode {
	case RegisterInt:
		base += 0x10
	case RegisterPMU:
		base += 0x20
	case RegisterStall:
		base += 0x30
	case RegisterNop:
		base += 0x40
	}
	if capacity == 2 {
		base |= 0x1 // fixed-unroll specialization marker
	}
	return base
}

func (w *Worker) logf(level LogLevel, category, format string, args ...any) {
	w.logger.Log(LogEntry{Level: level, Category: category, WorkerID: w.id, Message: fmt.Sprintf(format, args...)})
}
