//go:build linux

package linux

import (
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"
)

// i2c-dev ioctl requests (linux/i2c-dev.h).
const (
	ioctlI2CFuncs = 0x0705
	ioctlI2CRdwr  = 0x0707
)

// Adapter functionality bits (linux/i2c.h).
const (
	funcI2C = 0x00000001
)

// Message flags (linux/i2c.h).
const (
	msgRead = 0x0001
)

// maxMessages is the kernel's I2C_RDWR_IOCTL_MAX_MSGS.
const maxMessages = 42

// i2cMsg must match the kernel's struct i2c_msg layout.
type i2cMsg struct {
	addr  uint16
	flags uint16
	len   uint16
	buf   uintptr
}

// i2cRdwrData must match the kernel's struct i2c_rdwr_ioctl_data layout.
type i2cRdwrData struct {
	msgs  uintptr
	nmsgs uint32
}

// adapterFuncs queries the adapter's functionality mask.
func adapterFuncs(fd int) (uintptr, error) {
	var funcs uintptr
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), ioctlI2CFuncs, uintptr(unsafe.Pointer(&funcs)))
	if errno != 0 {
		return 0, errno
	}
	return funcs, nil
}

// rdwr issues msgs as one combined transaction.
func rdwr(fd int, msgs []message) error {
	raw := make([]i2cMsg, len(msgs))
	for i, m := range msgs {
		raw[i] = i2cMsg{addr: uint16(m.addr), len: uint16(len(m.buf))}
		if m.read {
			raw[i].flags = msgRead
		}
		if len(m.buf) > 0 {
			raw[i].buf = uintptr(unsafe.Pointer(&m.buf[0]))
		}
	}
	data := i2cRdwrData{
		msgs:  uintptr(unsafe.Pointer(&raw[0])),
		nmsgs: uint32(len(raw)),
	}
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), ioctlI2CRdwr, uintptr(unsafe.Pointer(&data)))
	runtime.KeepAlive(raw)
	runtime.KeepAlive(msgs)
	if errno != 0 {
		return errno
	}
	return nil
}
