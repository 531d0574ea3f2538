//go:build linux

package lame

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// Numeric ioctl commands for registering the INT and PMU entry sources,
// matching the "register INT"/"register PMU" contract in the external
// interfaces section. They carry the 'L' magic in the top byte and the
// command number in the low bits, not the kernel's _IO/_IOW bit layout;
// the payload is passed by pointer in the ioctl argument.
const (
	ioctlRegisterINT = 0x4c000001 // 'L' magic, INT registration
	ioctlRegisterPMU = 0x4c000002 // 'L' magic, PMU registration
)

// lameRegisterArg is the struct{present u8, handler_addr u64} the driver
// ioctl expects.
type lameRegisterArg struct {
	Present     uint8
	_           [7]byte // padding to align handler_addr on 8 bytes
	HandlerAddr uint64
}

func registerDriver(path string, mode RegisterMode, handlerAddr uint64) error {
	var cmd uintptr
	switch mode {
	case RegisterInt:
		cmd = ioctlRegisterINT
	case RegisterPMU, RegisterStall, RegisterNop:
		cmd = ioctlRegisterPMU
	default:
		return nil
	}

	fd, err := unix.Open(path, unix.O_RDWR, 0)
	if err != nil {
		return &DriverError{Op: "open", Path: path, Cause: err}
	}
	defer unix.Close(fd)

	arg := lameRegisterArg{Present: 1, HandlerAddr: handlerAddr}
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), cmd, uintptr(unsafe.Pointer(&arg)))
	if errno != 0 {
		return &DriverError{Op: "ioctl", Path: path, Cause: errno}
	}
	return nil
}
