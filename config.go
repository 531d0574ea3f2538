package lame

import (
	"fmt"
	"runtime"

	"github.com/BurntSushi/toml"
	"github.com/pbnjay/memory"
)

// RegisterMode selects which interrupt source and variant Register binds
// to the LAME device node.
type RegisterMode string

const (
	RegisterNone RegisterMode = "none"
	RegisterInt  RegisterMode = "int"
	RegisterPMU  RegisterMode = "pmu"
	RegisterStall RegisterMode = "stall"
	RegisterNop  RegisterMode = "nop"
)

// TSCMode selects a measurement override for the switch policy.
type TSCMode string

const (
	TSCOff     TSCMode = "off"
	TSCPretend TSCMode = "pretend"
	TSCNop     TSCMode = "nop"
)

// Config is the flat configuration surface described in the external
// interfaces contract. It is loaded from a TOML file; field names map to
// the snake_case keys via struct tags.
type Config struct {
	// LameBundleSize is the Bundle capacity. 1 disables bundling
	// entirely (a Bundle of capacity 1 can never be "enabled").
	LameBundleSize int `toml:"lame_bundle_size"`

	// LameRegister chooses the entry source and variant registered with
	// the driver.
	LameRegister RegisterMode `toml:"lame_register"`

	// LameTSC selects a measurement override; "pretend" requires
	// LameBundleSize == 2.
	LameTSC TSCMode `toml:"lame_tsc"`

	// LameBitmapPgszFactor is the bitmap's region-size exponent
	// (region size = 2^factor bytes). Negative disables the bitmap
	// (NeedsXSave then always reports true).
	LameBitmapPgszFactor int `toml:"lame_bitmap_pgsz_factor"`

	// LameStallCycles is the stall variant's cycle budget. Left
	// configurable; defaults to a constant near 600.
	LameStallCycles uint64 `toml:"lame_stall_cycles"`

	// LameBitmapPath names the .gprdump artifact. NewRuntime reads
	// neither this field nor LameBitmapPgszFactor and loads no file;
	// workers use the bitmap installed with WithCodeRangeBitmap, and
	// without one NeedsXSave always reports true.
	LameBitmapPath string `toml:"lame_bitmap_path"`

	// LameDriverPath names the device node opened during registration.
	LameDriverPath string `toml:"lame_driver_path"`

	// WorkerCount is the number of pinned workers the Runtime starts.
	// Zero selects DefaultWorkerCount.
	WorkerCount int `toml:"worker_count"`
}

// DefaultConfig returns a Config with conservative defaults: bundling
// disabled, no driver registration, no measurement override, bitmap
// disabled, and the ~600-cycle stall budget.
func DefaultConfig() Config {
	return Config{
		LameBundleSize:        1,
		LameRegister:          RegisterNone,
		LameTSC:               TSCOff,
		LameBitmapPgszFactor:  -1,
		LameStallCycles:       600,
		LameDriverPath:        "/dev/lame",
	}
}

// LoadConfig reads and validates a TOML config file at path.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, &ConfigError{Key: path, Message: "decode failed", Cause: err}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate enforces the configuration-error cases named in the error
// taxonomy: pretend measurement requires capacity 2, and a bundle size
// below 1 is nonsensical.
func (c Config) Validate() error {
	if c.LameBundleSize < 1 {
		return &ConfigError{Key: "lame_bundle_size", Message: "must be >= 1"}
	}
	if c.LameBundleSize > MaxBundleCapacity {
		return &ConfigError{Key: "lame_bundle_size", Message: fmt.Sprintf("must be <= %d", MaxBundleCapacity)}
	}
	if c.LameTSC == TSCPretend && c.LameBundleSize != 2 {
		return &ConfigError{Key: "lame_tsc", Message: "pretend requires lame_bundle_size == 2"}
	}
	switch c.LameRegister {
	case RegisterNone, RegisterInt, RegisterPMU, RegisterStall, RegisterNop:
	default:
		return &ConfigError{Key: "lame_register", Message: fmt.Sprintf("unknown mode %q", c.LameRegister)}
	}
	switch c.LameTSC {
	case TSCOff, TSCPretend, TSCNop:
	default:
		return &ConfigError{Key: "lame_tsc", Message: fmt.Sprintf("unknown mode %q", c.LameTSC)}
	}
	return nil
}

// Variant derives the switch-policy variant this configuration selects.
// lame_tsc overrides lame_register's implied variant when set.
func (c Config) Variant() Variant {
	switch c.LameTSC {
	case TSCPretend:
		return VariantPretend
	case TSCNop:
		return VariantNop
	}
	switch c.LameRegister {
	case RegisterStall:
		return VariantStall
	case RegisterNop:
		return VariantNop
	default:
		return VariantSwitch
	}
}

// DefaultWorkerCount picks a worker count from available system memory
// and CPU count when Config.WorkerCount is unset.
func DefaultWorkerCount() int {
	n := runtime.NumCPU()
	// Guard against absurdly memory-constrained hosts: one worker per
	// ~256MiB of system memory, never below 1 or above NumCPU.
	if total := memory.TotalMemory(); total > 0 {
		byMem := int(total / (256 << 20))
		if byMem < n && byMem > 0 {
			n = byMem
		}
	}
	if n < 1 {
		n = 1
	}
	return n
}

func (c Config) resolvedWorkerCount() int {
	if c.WorkerCount > 0 {
		return c.WorkerCount
	}
	return DefaultWorkerCount()
}
