package lame

// Variant is the switch-policy handler variant, derived once from the
// Config when a Worker is built. All variants share EntryINT/EntryPMU;
// lameHandle branches on the variant on every entry.
type Variant int

const (
	// VariantSwitch performs a real bundle switch to a sibling uthread.
	VariantSwitch Variant = iota
	// VariantStall emulates a fixed-cycle delay instead of switching,
	// for A/B measurement against VariantSwitch.
	VariantStall
	// VariantNop enters and returns immediately: baseline overhead
	// measurement for the entry stub itself.
	VariantNop
	// VariantPretend follows the same bookkeeping as VariantSwitch but
	// skips the actual jump, for TSC measurement of save/restore cost
	// alone. Fixed to capacity 2.
	VariantPretend
)

func (v Variant) String() string {
	switch v {
	case VariantSwitch:
		return "switch"
	case VariantStall:
		return "stall"
	case VariantNop:
		return "nop"
	case VariantPretend:
		return "pretend"
	default:
		return "unknown"
	}
}
