// Command lamebench drives a single Worker through a fixed number of
// simulated LAME entries under a chosen measurement variant, then prints
// the resulting TSC-style counters.
//
// Only the non-switching variants (stall, nop, pretend) are safe to
// drive this way: VariantSwitch's goroutine handoff requires a real
// per-uthread goroutine on the other end of the rendezvous channel,
// which this single-threaded driver does not provide. Exercising a real
// switch end-to-end is covered by the package's own tests instead.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joeycumines/lame"
)

func main() {
	variant := flag.String("variant", "stall", "stall|nop|pretend")
	iterations := flag.Int("iterations", 10000, "number of simulated entries")
	flag.Parse()

	cfg := lame.DefaultConfig()
	switch *variant {
	case "stall":
		cfg.LameBundleSize = 4
		cfg.LameRegister = lame.RegisterStall
	case "nop":
		cfg.LameBundleSize = 4
		cfg.LameRegister = lame.RegisterNop
	case "pretend":
		cfg.LameBundleSize = 2
		cfg.LameTSC = lame.TSCPretend
	default:
		fmt.Fprintf(os.Stderr, "lamebench: unknown variant %q (want stall|nop|pretend)\n", *variant)
		os.Exit(2)
	}

	w, err := lame.NewWorker(0, cfg, nil, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "lamebench: %v\n", err)
		os.Exit(1)
	}

	uthreads := make([]*lame.Uthread, cfg.LameBundleSize)
	for i := range uthreads {
		uthreads[i] = lame.NewUthread()
		if err := w.Bundle.Add(uthreads[i], i == 0); err != nil {
			fmt.Fprintf(os.Stderr, "lamebench: %v\n", err)
			os.Exit(1)
		}
	}
	w.Bundle.Enable()
	w.SetSelf(uthreads[0])

	for i := 0; i < *iterations; i++ {
		w.EntryINT(w.Self(), lame.Trapframe{RIP: uint64(0x400000 + i)})
	}

	fmt.Print(lame.BenchSummary(w))
}
