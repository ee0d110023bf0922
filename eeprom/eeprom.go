package eeprom

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/ardnew/m24cxx/hal"
	"github.com/ardnew/m24cxx/pkg"
)

// Stats holds cumulative counters for a Device.
type Stats struct {
	PagesWritten int // physical page writes issued
	PagesSkipped int // update chunks left alone because they already matched
	BytesRead    int // bytes returned by sequential reads, including read-back
}

// Device drives one M24Cxx EEPROM on a two-wire bus.
//
// A Device holds no cached memory contents; every call talks to the chip.
// It is not safe for concurrent use, and it never retains anything from
// the bus beyond the reference passed to New.
type Device struct {
	bus     hal.Bus
	cfg     Config
	id      uint8
	delayer hal.Delayer
	stats   Stats
}

// Option configures a Device.
type Option func(*Device)

// WithConfig selects the family member. The default is [M24C08].
func WithConfig(cfg Config) Option {
	return func(d *Device) { d.cfg = cfg }
}

// WithDeviceID sets the level of the chip-enable pins not used for block
// bits (E2 on the M24C08).
func WithDeviceID(id uint8) Option {
	return func(d *Device) { d.id = id }
}

// WithDelayer replaces the blocking sleep used for the write-cycle delay.
func WithDelayer(delayer hal.Delayer) Option {
	return func(d *Device) { d.delayer = delayer }
}

// New creates a Device on bus. It panics if the resulting configuration is
// invalid, since presets are always valid and custom configurations are
// a programming decision.
func New(bus hal.Bus, opts ...Option) *Device {
	d := &Device{
		bus:     bus,
		cfg:     M24C08,
		delayer: hal.SleepDelayer,
	}
	for _, opt := range opts {
		opt(d)
	}
	if err := d.cfg.Validate(); err != nil {
		panic(err)
	}
	return d
}

// Config returns the device configuration.
func (d *Device) Config() Config {
	return d.cfg
}

// Stats returns the cumulative counters.
func (d *Device) Stats() Stats {
	return d.stats
}

// DeviceSelect returns the bus address used to reach memory address addr.
func (d *Device) DeviceSelect(addr uint16) hal.Address {
	return d.cfg.DeviceSelect(d.id, addr)
}

// Init prepares the device for use. The M24Cxx needs no setup, so Init
// always succeeds; it exists so callers have a stable place for it.
func (d *Device) Init(ctx context.Context) error {
	pkg.LogDebug(pkg.ComponentEEPROM, "device initialized",
		"device", d.cfg.Name, "select", d.DeviceSelect(0))
	return nil
}

// Read fills dst starting at addr with a single sequential read.
//
// Only the start address is checked. Reading past the last cell is not an
// error: the chip's address counter wraps to 0 and the read continues.
func (d *Device) Read(ctx context.Context, addr uint16, dst []byte) error {
	if int(addr) >= d.cfg.Capacity {
		return fmt.Errorf("%w: read at 0x%03x, capacity %d", pkg.ErrOutOfRange, addr, d.cfg.Capacity)
	}
	if len(dst) == 0 {
		return nil
	}
	sel := d.DeviceSelect(addr)
	if err := d.setPointer(ctx, sel, addr); err != nil {
		return err
	}
	n, err := d.bus.ReadBlocking(ctx, sel, dst, false)
	if err = transferError(err, n, len(dst), "read", addr); err != nil {
		return err
	}
	d.stats.BytesRead += n
	return nil
}

// Write stores data starting at addr, one page write per page touched.
//
// The whole range is checked before anything is sent. On failure some
// leading pages may already be programmed.
func (d *Device) Write(ctx context.Context, addr uint16, data []byte) error {
	return d.program(ctx, addr, data, false)
}

// Update stores data starting at addr like Write, but reads each chunk
// back first and skips the page write when the chip already holds it.
func (d *Device) Update(ctx context.Context, addr uint16, data []byte) error {
	return d.program(ctx, addr, data, true)
}

func (d *Device) program(ctx context.Context, addr uint16, data []byte, differential bool) error {
	if err := d.checkRange(addr, len(data)); err != nil {
		return err
	}

	var readBack []byte
	if differential {
		readBack = make([]byte, d.cfg.PageSize)
	}

	for len(data) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		chunk := d.chunkLen(addr, len(data))

		if differential {
			current := readBack[:chunk]
			if err := d.Read(ctx, addr, current); err != nil {
				return err
			}
			if bytes.Equal(current, data[:chunk]) {
				d.stats.PagesSkipped++
				pkg.LogDebug(pkg.ComponentEEPROM, "chunk unchanged", "addr", addr, "size", chunk)
				addr += uint16(chunk)
				data = data[chunk:]
				continue
			}
		}

		if err := d.writePage(ctx, addr, data[:chunk]); err != nil {
			return err
		}
		addr += uint16(chunk)
		data = data[chunk:]
	}
	return nil
}

// writePage sends offset and data as one write message and waits out the
// write cycle. data never crosses a page boundary.
func (d *Device) writePage(ctx context.Context, addr uint16, data []byte) error {
	sel := d.DeviceSelect(addr)
	if err := d.setPointer(ctx, sel, addr); err != nil {
		return err
	}
	n, err := d.bus.WriteBlocking(ctx, sel, data, false)
	if err = transferError(err, n, len(data), "page write", addr); err != nil {
		return err
	}

	d.stats.PagesWritten++
	pkg.LogDebug(pkg.ComponentEEPROM, "page written", "addr", addr, "size", len(data), "select", sel)

	d.delayer.Delay(d.cfg.WriteCycle)
	return nil
}

// setPointer loads the chip's address counter and holds the bus.
func (d *Device) setPointer(ctx context.Context, sel hal.Address, addr uint16) error {
	n, err := d.bus.WriteBlocking(ctx, sel, []byte{Offset(addr)}, true)
	return transferError(err, n, 1, "address", addr)
}

// chunkLen returns how many of the remaining bytes fit before the next
// page boundary.
func (d *Device) chunkLen(addr uint16, remaining int) int {
	chunk := d.cfg.PageSize - int(addr)%d.cfg.PageSize
	if chunk > remaining {
		chunk = remaining
	}
	return chunk
}

func (d *Device) checkRange(addr uint16, n int) error {
	if int(addr)+n > d.cfg.Capacity {
		return fmt.Errorf("%w: %d bytes at 0x%03x, capacity %d",
			pkg.ErrOutOfRange, n, addr, d.cfg.Capacity)
	}
	return nil
}

func transferError(err error, n, want int, phase string, addr uint16) error {
	if err != nil {
		pkg.LogDebug(pkg.ComponentEEPROM, "transfer failed", "phase", phase, "addr", addr, "error", err)
		return fmt.Errorf("%s at 0x%03x: %w", phase, addr, err)
	}
	if n != want {
		pkg.LogDebug(pkg.ComponentEEPROM, "short transfer", "phase", phase, "addr", addr, "bytes", n, "want", want)
		return fmt.Errorf("%w: %s at 0x%03x moved %d of %d bytes",
			pkg.ErrShortTransfer, phase, addr, n, want)
	}
	return nil
}

// ReadAt implements [io.ReaderAt]. Unlike Read it never wraps: a read that
// reaches the end of the array returns the bytes up to it and io.EOF.
func (d *Device) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("%w: negative offset %d", pkg.ErrInvalidParameter, off)
	}
	if off >= int64(d.cfg.Capacity) {
		return 0, io.EOF
	}
	n := len(p)
	var eof error
	if rem := d.cfg.Capacity - int(off); n > rem {
		n, eof = rem, io.EOF
	}
	if err := d.Read(context.Background(), uint16(off), p[:n]); err != nil {
		return 0, err
	}
	return n, eof
}

// WriteAt implements [io.WriterAt] using Update, so rewriting unchanged
// regions costs reads instead of write cycles. Writes past the end of the
// array fail without touching the chip.
func (d *Device) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 || off > int64(d.cfg.Capacity) {
		return 0, fmt.Errorf("%w: offset %d", pkg.ErrOutOfRange, off)
	}
	if err := d.Update(context.Background(), uint16(off), p); err != nil {
		return 0, err
	}
	return len(p), nil
}

var (
	_ io.ReaderAt = (*Device)(nil)
	_ io.WriterAt = (*Device)(nil)
)
