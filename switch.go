package lame

import "time"

// assumedCyclesPerNanosecond approximates a modern x86 TSC rate for the
// stall variant's timed pause; this rewrite has no tpause-equivalent
// primitive, so the stall budget is realized as a sleep of comparable
// wall-clock duration rather than a true cycle-accurate busy-wait.
const assumedCyclesPerNanosecond = 3

// lameHandle is the switch policy: the handler invoked by both entry
// paths with the faulting instruction pointer. It is oblivious to which
// path reached it; only the final return instruction chosen by the stub
// differs between INT and PMU.
func (w *Worker) lameHandle(rip uint64) {
	switch w.variant {
	case VariantNop:
		return
	case VariantStall:
		w.stall(rip)
		return
	}

	b := w.Bundle
	if !b.IsEnabled() || b.used <= 1 {
		// Disabled bundle (S6), or no sibling to switch to.
		return
	}

	cur := b.slots[b.active].Uthread
	next, ok := b.PickNext()
	if !ok || cur == nil || next == nil {
		// Internal consistency violation: log it loudly and return
		// without switching.
		w.logf(LevelError, "sched", "%v: lameHandle: no current or next uthread with used=%d", ErrInconsistent, b.used)
		return
	}

	// Commit the new self pointer before the jump: the store must be
	// observable before next resumes, which the goroutine-handoff
	// rendezvous (next.wake happens-before next's park returns)
	// guarantees.
	w.self.Store(next)
	b.totalLames++

	needsXSave := w.bitmap.NeedsXSave(rip)
	if needsXSave {
		b.totalXsaveLames++
	}

	switched := w.variant != VariantPretend
	w.logf(LevelDebug, "sched", "%s", schedLogLine(true, "lame_handle", w.id, next, switched, needsXSave))

	if w.variant == VariantPretend {
		// Bookkeeping only, for TSC measurement of save/restore cost;
		// the actual jump is skipped.
		return
	}

	// cur leaves the handler while it is parked: lower the reentrancy
	// guard across the handoff so next can take its own LAME entries,
	// and raise it again once control returns to cur.
	w.inLame.Add(-1)
	next.wake()
	cur.park()
	w.inLame.Add(1)
	// Control resumes here when some later switch returns to cur. The
	// extended-state save/restore this rip required (if any) is modeled
	// entirely by the totalXsaveLames counter above; there is no
	// separate buffer to release.
}

// stall emulates the stall variant's fixed-cycle delay in place of a
// real switch, for A/B measurement against VariantSwitch. Counters
// update the same as a real switch would; no switch occurs.
func (w *Worker) stall(rip uint64) {
	w.Bundle.totalLames++
	needsXSave := w.bitmap.NeedsXSave(rip)
	if needsXSave {
		w.Bundle.totalXsaveLames++
	}
	w.logf(LevelDebug, "sched", "%s", schedLogLine(true, "lame_stall", w.id, nil, false, needsXSave))

	cycles := w.cfg.LameStallCycles
	if cycles == 0 {
		cycles = 600
	}
	time.Sleep(time.Duration(cycles/assumedCyclesPerNanosecond) * time.Nanosecond)
}
