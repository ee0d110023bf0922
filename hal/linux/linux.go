//go:build linux

package linux

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/ardnew/m24cxx/hal"
	"github.com/ardnew/m24cxx/pkg"
)

// maxMessageLen is the largest payload of one i2c_msg.
const maxMessageLen = 0xFFFF

// message is one queued segment of a combined transaction.
type message struct {
	addr hal.Address
	read bool
	buf  []byte
}

// Bus implements hal.Bus on a Linux i2c-dev character device.
type Bus struct {
	path  string
	fd    int
	queue []message

	// transact issues a combined transaction; replaced in tests.
	transact func(msgs []message) error
}

// Open opens the i2c-dev device at path and checks that the adapter
// supports plain I2C messages.
func Open(path string) (*Bus, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, mapErrno(err))
	}

	funcs, err := adapterFuncs(fd)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("query %s: %w", path, mapErrno(err))
	}
	if funcs&funcI2C == 0 {
		unix.Close(fd)
		return nil, fmt.Errorf("%w: %s cannot issue combined I2C transfers", pkg.ErrNotSupported, path)
	}

	b := newBus(path, fd, nil)
	b.transact = func(msgs []message) error { return rdwr(b.fd, msgs) }

	pkg.LogDebug(pkg.ComponentHAL, "i2c-dev bus opened", "path", path, "funcs", fmt.Sprintf("0x%08x", funcs))
	return b, nil
}

func newBus(path string, fd int, transact func([]message) error) *Bus {
	return &Bus{path: path, fd: fd, transact: transact}
}

// Close releases the device. Queued held transfers are discarded.
func (b *Bus) Close() error {
	if b.fd < 0 {
		return pkg.ErrClosed
	}
	b.queue = nil
	err := unix.Close(b.fd)
	b.fd = -1
	pkg.LogDebug(pkg.ComponentHAL, "i2c-dev bus closed", "path", b.path)
	return err
}

// WriteBlocking writes p to the target at addr.
func (b *Bus) WriteBlocking(ctx context.Context, addr hal.Address, p []byte, nostop bool) (int, error) {
	if err := b.check(ctx, addr); err != nil {
		return 0, err
	}

	if last := len(b.queue) - 1; last >= 0 && !b.queue[last].read && b.queue[last].addr == addr {
		b.queue[last].buf = append(b.queue[last].buf, p...)
	} else {
		b.queue = append(b.queue, message{addr: addr, buf: append([]byte(nil), p...)})
	}

	if nostop {
		return len(p), nil
	}
	if err := b.flush(); err != nil {
		return 0, err
	}
	return len(p), nil
}

// ReadBlocking reads len(p) bytes from the target at addr into p.
//
// The kernel cannot leave the bus held after a read, so nostop is ignored
// and the queue is always flushed.
func (b *Bus) ReadBlocking(ctx context.Context, addr hal.Address, p []byte, nostop bool) (int, error) {
	if err := b.check(ctx, addr); err != nil {
		return 0, err
	}
	b.queue = append(b.queue, message{addr: addr, read: true, buf: p})
	if err := b.flush(); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (b *Bus) check(ctx context.Context, addr hal.Address) error {
	if b.fd < 0 {
		b.queue = nil
		return pkg.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		b.queue = nil
		return err
	}
	if !addr.Valid() {
		b.queue = nil
		return fmt.Errorf("%w: bus address %s", pkg.ErrInvalidParameter, addr)
	}
	return nil
}

// flush issues every queued message as one combined transaction.
func (b *Bus) flush() error {
	msgs := b.queue
	b.queue = nil

	if len(msgs) > maxMessages {
		return fmt.Errorf("%w: %d queued messages", pkg.ErrNotSupported, len(msgs))
	}
	for _, m := range msgs {
		if len(m.buf) > maxMessageLen {
			return fmt.Errorf("%w: %d byte message", pkg.ErrNotSupported, len(m.buf))
		}
	}

	if err := b.transact(msgs); err != nil {
		err = mapErrno(err)
		pkg.LogDebug(pkg.ComponentHAL, "i2c-dev transaction failed", "path", b.path, "messages", len(msgs), "error", err)
		return err
	}
	return nil
}

// mapErrno translates i2c-dev errno values into driver sentinels.
func mapErrno(err error) error {
	var errno unix.Errno
	if !errors.As(err, &errno) {
		return err
	}
	switch errno {
	case unix.ENXIO, unix.EREMOTEIO:
		return fmt.Errorf("%w: %v", pkg.ErrNAK, errno)
	case unix.ETIMEDOUT:
		return fmt.Errorf("%w: %v", pkg.ErrTimeout, errno)
	case unix.ENODEV, unix.ENOENT:
		return fmt.Errorf("%w: %v", pkg.ErrNoDevice, errno)
	}
	return err
}

var _ hal.Bus = (*Bus)(nil)
