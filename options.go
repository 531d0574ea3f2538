package lame

// runtimeOptions holds configuration gathered from RuntimeOption values.
type runtimeOptions struct {
	logger        Logger
	bitmap        *CodeRangeBitmap
	tuneResources bool
}

// RuntimeOption configures a Runtime instance.
type RuntimeOption interface {
	applyRuntime(*runtimeOptions) error
}

type runtimeOptionFunc func(*runtimeOptions) error

func (f runtimeOptionFunc) applyRuntime(opts *runtimeOptions) error { return f(opts) }

// WithLogger installs a structured Logger; the default is a no-op
// logger.
func WithLogger(logger Logger) RuntimeOption {
	return runtimeOptionFunc(func(opts *runtimeOptions) error {
		opts.logger = logger
		return nil
	})
}

// WithCodeRangeBitmap installs a pre-loaded code-range bitmap, shared
// read-only across every worker. Use [LoadGPRDump] plus
// [NewCodeRangeBitmap] to build one from a .gprdump artifact.
func WithCodeRangeBitmap(bitmap *CodeRangeBitmap) RuntimeOption {
	return runtimeOptionFunc(func(opts *runtimeOptions) error {
		opts.bitmap = bitmap
		return nil
	})
}

// WithResourceTuning enables GOMAXPROCS/GOMEMLIMIT auto-tuning at Runtime
// startup (see [Runtime.tuneResources]). Defaults to enabled.
func WithResourceTuning(enabled bool) RuntimeOption {
	return runtimeOptionFunc(func(opts *runtimeOptions) error {
		opts.tuneResources = enabled
		return nil
	})
}

func resolveRuntimeOptions(opts []RuntimeOption) (*runtimeOptions, error) {
	cfg := &runtimeOptions{
		logger:        NoOpLogger{},
		tuneResources: true,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyRuntime(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
