package lame

import (
	"fmt"
	"runtime"

	"github.com/KimMachineGun/automemlimit/memlimit"
	"go.uber.org/automaxprocs/maxprocs"
)

// Runtime ties a fixed set of Workers together: it is the process-level
// entry point a host program constructs once, at startup, bringing up
// every worker's bundle and driver registration in one call.
type Runtime struct {
	cfg     Config
	logger  Logger
	Workers []*Worker
}

// NewRuntime builds N Workers (N from cfg.WorkerCount, or
// DefaultWorkerCount if unset), applies resource tuning, and registers
// each worker with the driver per cfg.LameRegister. A driver
// registration failure on any worker downgrades that worker to "LAME
// disabled" rather than failing Runtime construction, per the
// user-visible failure mode in the error handling design.
func NewRuntime(cfg Config, opts ...RuntimeOption) (*Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ro, err := resolveRuntimeOptions(opts)
	if err != nil {
		return nil, err
	}

	rt := &Runtime{cfg: cfg, logger: ro.logger}

	if ro.tuneResources {
		rt.tuneResources()
	}

	n := cfg.resolvedWorkerCount()
	rt.Workers = make([]*Worker, n)
	for i := 0; i < n; i++ {
		w, err := NewWorker(i, cfg, ro.logger, ro.bitmap)
		if err != nil {
			return nil, fmt.Errorf("lame: constructing worker %d: %w", i, err)
		}
		if err := w.Register(); err != nil {
			rt.logger.Log(LogEntry{
				Level:    LevelWarn,
				Category: "driver",
				WorkerID: i,
				Message:  "LAME driver registration failed, continuing with LAME disabled for this worker",
				Err:      err,
			})
			w.cfg.LameRegister = RegisterNone
		}
		rt.Workers[i] = w
	}
	return rt, nil
}

// tuneResources aligns GOMAXPROCS and GOMEMLIMIT with the surrounding
// cgroup/container limits before workers are pinned to OS threads.
func (rt *Runtime) tuneResources() {
	printf := func(format string, args ...any) {
		rt.logger.Log(LogEntry{Level: LevelDebug, Category: "resource", Message: fmt.Sprintf(format, args...)})
	}

	if _, err := maxprocs.Set(maxprocs.Logger(printf)); err != nil {
		rt.logger.Log(LogEntry{Level: LevelWarn, Category: "resource", Message: "automaxprocs: GOMAXPROCS left unchanged", Err: err})
	}

	if _, err := memlimit.SetGoMemLimitWithOpts(memlimit.WithRatio(0.9)); err != nil {
		rt.logger.Log(LogEntry{Level: LevelWarn, Category: "resource", Message: "automemlimit: GOMEMLIMIT left unchanged", Err: err})
	}
}

// PinCurrentWorker locks the calling goroutine to its OS thread for the
// duration of w's cooperative Bundle work, per the per-worker singleton
// design note: a Bundle is exclusively owned by the worker that runs on
// this thread.
func PinCurrentWorker(w *Worker, fn func()) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	fn()
}

// Shutdown dismantles every worker's Bundle back to its runqueue, the
// same transition that happens when a worker is parked.
func (rt *Runtime) Shutdown(now uint64) {
	for _, w := range rt.Workers {
		w.DismantleBundle(now)
	}
}
