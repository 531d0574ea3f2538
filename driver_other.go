//go:build !linux

package lame

// registerDriver is unavailable on platforms without a LAME kernel
// driver binding; the Runtime catches this and downgrades to "LAME
// disabled" per the error handling design's user-visible failure mode.
func registerDriver(path string, mode RegisterMode, handlerAddr uint64) error {
	if mode == RegisterNone {
		return nil
	}
	return &DriverError{Op: "open", Path: path, Cause: ErrDriverUnsupported}
}
