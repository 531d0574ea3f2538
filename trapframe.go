package lame

// Trapframe is the fixed-layout save area for a uthread's general-purpose
// register state and return metadata. It models, at the value level, what
// the INT and PMU entry stubs would marshal to and from the interrupted
// uthread's saved state; see the design notes on raw trapframes.
//
// This rewrite has no assembly entry stubs, so Trapframe is never
// actually populated by a hardware interrupt frame. It exists so the
// switch-preservation property (every GP register, flags, and IP
// observed at resume equals the values at interrupt entry) is a concrete,
// checkable value rather than an assumption about goroutine scheduling.
type Trapframe struct {
	RAX, RBX, RCX, RDX uint64
	RSI, RDI, RBP, RSP uint64
	R8, R9, R10, R11   uint64
	R12, R13, R14, R15 uint64
	RIP                uint64
	RFlags             uint64
}

// Snapshot captures a Trapframe value by copy, for before/after
// comparisons in tests exercising switch preservation.
func (tf Trapframe) Snapshot() Trapframe { return tf }
