package lame

import "fmt"

// MaxBundleCapacity bounds the inline slot array. Bundles are sized in
// the 2-8 range in practice; this is a generous ceiling that still keeps
// a Bundle value small and allocation-free.
const MaxBundleCapacity = 8

// Slot either is empty or holds a strong reference to a uthread, plus
// per-slot accounting. Invariant: Present == (Uthread != nil).
type Slot struct {
	Uthread   *Uthread
	Present   bool
	Cycles    uint64
	LameCount uint64
}

// SlotState is a derived query over a Slot/Bundle pair; it is not stored,
// since storing it separately from Present/active would let the two
// diverge.
type SlotState int

const (
	SlotEmpty SlotState = iota
	SlotPresent
	SlotPresentActive
)

// Bundle is a per-worker fixed-capacity collection of uthread Slots over
// which the switch policy rotates. The Open Question on Slot layout is
// resolved in favor of this inline array: it is a value embedded directly
// in Bundle, never a heap-allocated slice, so adding a uthread never
// allocates.
type Bundle struct {
	slots    [MaxBundleCapacity]Slot
	capacity uint32
	used     uint32
	active   uint32
	enabled  bool

	totalCycles     uint64
	totalLames      uint64
	totalXsaveLames uint64

	// workerID is carried only for Print's structured log line.
	workerID int
}

// NewBundle constructs an empty Bundle of the given capacity, owned by
// workerID. capacity must be in [1, MaxBundleCapacity].
func NewBundle(workerID int, capacity uint32) (*Bundle, error) {
	if capacity < 1 || capacity > MaxBundleCapacity {
		return nil, fmt.Errorf("%w: bundle capacity %d out of range [1,%d]", ErrInvalidArgument, capacity, MaxBundleCapacity)
	}
	return &Bundle{capacity: capacity, workerID: workerID}, nil
}

// Capacity returns the Bundle's fixed slot count.
func (b *Bundle) Capacity() uint32 { return b.capacity }

// Used returns the number of occupied slots.
func (b *Bundle) Used() uint32 { return b.used }

// Active returns the index of the currently-active slot.
func (b *Bundle) Active() uint32 { return b.active }

// SlotAt returns a copy of the slot at index i, for diagnostics/tests.
func (b *Bundle) SlotAt(i uint32) Slot { return b.slots[i] }

// SlotState derives slot i's lifecycle state from its Present flag and
// the active index.
func (b *Bundle) SlotState(i uint32) SlotState {
	if !b.slots[i].Present {
		return SlotEmpty
	}
	if i == b.active {
		return SlotPresentActive
	}
	return SlotPresent
}

// CheckInvariants validates the quantified invariants in the testable
// properties, returning an ErrInconsistent-wrapped error for the first
// violation found. It is used by tests.
func (b *Bundle) CheckInvariants() error {
	if b.used > b.capacity {
		return fmt.Errorf("%w: used %d > capacity %d", ErrInconsistent, b.used, b.capacity)
	}
	var count uint32
	seen := make(map[*Uthread]struct{}, b.used)
	for i := uint32(0); i < b.capacity; i++ {
		s := &b.slots[i]
		if s.Present {
			count++
			if s.Uthread == nil {
				return fmt.Errorf("%w: slot %d present with nil uthread", ErrInconsistent, i)
			}
			if _, dup := seen[s.Uthread]; dup {
				return fmt.Errorf("%w: uthread aliased across slots", ErrInconsistent)
			}
			seen[s.Uthread] = struct{}{}
		} else if s.Uthread != nil {
			return fmt.Errorf("%w: slot %d absent but holds a uthread reference", ErrInconsistent, i)
		}
	}
	if count != b.used {
		return fmt.Errorf("%w: used %d does not match present count %d", ErrInconsistent, b.used, count)
	}
	if b.used >= 1 && !b.slots[b.active].Present {
		return fmt.Errorf("%w: active slot %d not present while used=%d", ErrInconsistent, b.active, b.used)
	}
	if b.used == 0 && b.active != 0 {
		return fmt.Errorf("%w: active %d must be 0 when used=0", ErrInconsistent, b.active)
	}
	if b.enabled && b.capacity <= 1 {
		return fmt.Errorf("%w: enabled bundle must have capacity > 1", ErrInconsistent)
	}
	return nil
}

// Add places uthread into the Bundle. If the uthread is already present
// (by pointer identity) this is an idempotent no-op treated as success;
// nothing is logged. Otherwise it claims the first empty slot, left-to-right,
// zeroes that slot's counters, and optionally makes it active.
func (b *Bundle) Add(u *Uthread, setActive bool) error {
	if u == nil {
		return fmt.Errorf("%w: nil uthread", ErrInvalidArgument)
	}
	for i := uint32(0); i < b.capacity; i++ {
		if b.slots[i].Present && b.slots[i].Uthread == u {
			// idempotent add: already present, nothing to do.
			return nil
		}
	}
	for i := uint32(0); i < b.capacity; i++ {
		if !b.slots[i].Present {
			b.slots[i] = Slot{Uthread: u, Present: true}
			b.used++
			if setActive {
				b.active = i
			}
			u.ThreadReady = false
			u.ThreadRunning = true
			return nil
		}
	}
	return fmt.Errorf("%w: bundle full at capacity %d", ErrNoSpace, b.capacity)
}

// Remove scans for the slot referencing uthread and empties it.
func (b *Bundle) Remove(u *Uthread) error {
	for i := uint32(0); i < b.capacity; i++ {
		if b.slots[i].Present && b.slots[i].Uthread == u {
			return b.RemoveByIndex(i)
		}
	}
	return fmt.Errorf("%w: uthread not present in bundle", ErrNotFound)
}

// RemoveByIndex empties the slot at index i.
func (b *Bundle) RemoveByIndex(i uint32) error {
	if i >= b.capacity {
		return fmt.Errorf("%w: slot index %d out of range [0,%d)", ErrInvalidArgument, i, b.capacity)
	}
	if !b.slots[i].Present {
		return fmt.Errorf("%w: slot %d not present", ErrNotFound, i)
	}
	b.slots[i] = Slot{}
	b.used--
	return nil
}

// RemoveAtActive removes the slot at the current active index. It does
// not move active: per the resolved Open Question, the next PickNext
// scans forward from active+1 and will step past the now-empty slot
// correctly.
func (b *Bundle) RemoveAtActive() error {
	return b.RemoveByIndex(b.active)
}

// PickNext is the round-robin switch oracle: starting from
// (active+1) mod capacity, scan forward up to capacity steps for the
// first present slot, set active to it, and return its uthread. Returns
// (nil, false) if used == 0, leaving active untouched.
func (b *Bundle) PickNext() (*Uthread, bool) {
	if b.used == 0 {
		return nil, false
	}
	for step := uint32(1); step <= b.capacity; step++ {
		i := (b.active + step) % b.capacity
		if b.slots[i].Present {
			b.active = i
			return b.slots[i].Uthread, true
		}
	}
	return nil, false
}

// PickNextFast is the dense-bundle fast path: it assumes every slot in
// [0, used) is present (no holes from prior removals) and simply advances
// active modulo used. Callers must only use this when that density
// invariant actually holds; it does not re-validate it.
func (b *Bundle) PickNextFast() (*Uthread, bool) {
	if b.used == 0 {
		return nil, false
	}
	b.active = (b.active + 1) % b.used
	return b.slots[b.active].Uthread, true
}

// Enable turns on dynamic bundling. It does not itself enforce
// capacity > 1; IsEnabled folds that check in alongside the dynamic flag.
func (b *Bundle) Enable() { b.enabled = true }

// Disable turns off dynamic bundling.
func (b *Bundle) Disable() { b.enabled = false }

// IsStaticallyEnabled reports whether this Bundle's fixed capacity could
// ever support bundling (capacity > 1), independent of the dynamic flag.
func (b *Bundle) IsStaticallyEnabled() bool { return b.capacity > 1 }

// IsDynamicallyEnabled reports the runtime-toggled enabled flag alone.
func (b *Bundle) IsDynamicallyEnabled() bool { return b.enabled }

// IsEnabled is true only when both the static and dynamic conditions
// hold.
func (b *Bundle) IsEnabled() bool { return b.IsStaticallyEnabled() && b.enabled }

// Print renders the one-line structured snapshot record external log
// analyzers consume; see the BUNDLE log-line format in the external
// interfaces contract.
func (b *Bundle) Print() string {
	s := fmt.Sprintf("[LAME][BUNDLE][kthread:%d][size:%d][used:%d][active:%d][enabled:%t][bundle:",
		b.workerID, b.capacity, b.used, b.active, b.IsEnabled())
	for i := uint32(0); i < b.capacity; i++ {
		if b.slots[i].Present {
			s += fmt.Sprintf("<%p>", b.slots[i].Uthread)
		} else {
			s += "<nil>"
		}
	}
	return s + "]"
}
