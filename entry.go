package lame

// entry.go models the two interrupt entry stub kinds from the common
// entry contract. Real hardware entry stubs save volatile state in
// assembly before calling into high-level code; this rewrite has no such
// stubs; EntryINT/EntryPMU play their role directly, taking the
// caller-supplied register snapshot as the "pushed interrupt frame" and
// returning the trapframe to resume from, exactly as the contract
// describes the stub's reload-and-return step.

// reentrant reports whether this worker is already inside the switch
// handler, gating nested LAME delivery into a fast return-now per the
// reentrancy rule.
func (w *Worker) reentrant() bool { return w.inLame.Load() > 0 }

// EntryINT models the INT path: a synchronous software-interrupt
// instruction embedded in application code, acting as an explicit yield
// to the bundle. regs is the register state the "processor" pushed at
// the interrupt site; cur is the uthread executing at that site.
func (w *Worker) EntryINT(cur *Uthread, regs Trapframe) Trapframe {
	if w.reentrant() {
		return regs
	}
	return w.entryCommon(cur, regs)
}

// EntryPMU models the PMU ("bret") path: a performance-counter overflow
// the kernel driver re-vectors into user space. It shares entryCommon
// with EntryINT, then additionally runs the slow-path cede/yield detour
// when the host runtime indicates preemption was actually needed.
func (w *Worker) EntryPMU(cur *Uthread, regs Trapframe) Trapframe {
	if w.reentrant() {
		return regs
	}
	tf := w.entryCommon(cur, regs)
	if w.PreemptCedeNeeded() {
		w.bretSlowPath()
	}
	return tf
}

// entryCommon implements the shared entry contract: save the pushed
// frame into cur's trapframe, raise the reentrancy guard, disable
// preemption, run the switch policy, then lower the guard and re-enable
// preemption. By the time lameHandle returns, this worker's goroutine is
// the one that was most recently woken into cur (a switch only returns
// control here via cur's own resume channel), so cur.TF is always the
// correct trapframe to resume from.
func (w *Worker) entryCommon(cur *Uthread, regs Trapframe) Trapframe {
	cur.TF = regs
	w.inLame.Add(1)
	w.PreemptDisable()
	w.lameHandle(regs.RIP)
	w.inLame.Add(-1)
	w.PreemptEnable()
	return cur.TF
}

// bretSlowPath saves extended state conceptually (accounted for via the
// bitmap/counter path already run in lameHandle) and either cedes the
// worker to the control plane or yields it to the host scheduler,
// depending on whether a cede is still needed by the time the detour
// runs.
func (w *Worker) bretSlowPath() {
	if w.PreemptCedeNeeded() {
		w.ThreadCede()
		return
	}
	w.PutK()
	w.ThreadYield()
}
