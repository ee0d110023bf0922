package sim

import (
	"context"
	"errors"
	"fmt"

	"github.com/ardnew/m24cxx/hal"
	"github.com/ardnew/m24cxx/pkg"
)

// Op identifies the direction of a logged transfer.
type Op uint8

// Transfer directions.
const (
	OpWrite Op = iota
	OpRead
)

// String returns "write" or "read".
func (o Op) String() string {
	if o == OpRead {
		return "read"
	}
	return "write"
}

// Transfer records one call to WriteBlocking or ReadBlocking.
type Transfer struct {
	Op       Op
	Addr     hal.Address
	Data     []byte // bytes written, or bytes read
	NoStop   bool
	Continue bool // write that extended a held write message
	Status   pkg.Status
}

// Fault selects how an injected failure behaves.
type Fault uint8

// Injectable faults.
const (
	// FaultNAK makes the address byte go unacknowledged, or the first data
	// byte when the write continues a held write message.
	FaultNAK Fault = iota + 1
	// FaultShort transfers every byte but the last, then releases the bus
	// without reporting an error.
	FaultShort
	// FaultTimeout releases the bus without clocking any byte and reports
	// pkg.ErrTimeout, like an adapter whose target stretches the clock too
	// long.
	FaultTimeout
)

// BusStats counts controller-side events.
type BusStats struct {
	Writes       int // WriteBlocking calls
	Reads        int // ReadBlocking calls
	Transactions int // STOP conditions issued
}

// Bus implements [hal.Bus] on top of a simulated [Wire].
//
// Bus is not safe for concurrent use.
type Bus struct {
	wire  Wire
	clock *Clock

	held      bool
	heldAddr  hal.Address
	heldWrite bool

	calls  int
	faults map[int]Fault
	log    []Transfer
	stats  BusStats
}

// NewBus creates an empty simulated bus with its own virtual clock.
func NewBus() *Bus {
	return &Bus{
		clock:  new(Clock),
		faults: make(map[int]Fault),
	}
}

// Clock returns the bus's virtual clock. Pass it to the driver as its
// [hal.Delayer].
func (b *Bus) Clock() *Clock {
	return b.clock
}

// Wire returns the byte-level signalling layer of the bus.
func (b *Bus) Wire() *Wire {
	return &b.wire
}

// Attach connects a target to the bus.
func (b *Bus) Attach(t Target) {
	b.wire.Attach(t)
}

// AddEEPROM creates an EEPROM timed by the bus clock and attaches it.
func (b *Bus) AddEEPROM(cfg Config) *EEPROM {
	ee := NewEEPROM(b.clock, cfg)
	b.Attach(ee)
	return ee
}

// InjectFault arranges for the n-th transfer call from now (1-based) to
// fail in the given way.
func (b *Bus) InjectFault(n int, f Fault) {
	b.faults[b.calls+n] = f
}

// Log returns the transfers issued so far.
func (b *Bus) Log() []Transfer {
	out := make([]Transfer, len(b.log))
	copy(out, b.log)
	return out
}

// Stats returns the controller-side counters.
func (b *Bus) Stats() BusStats {
	return b.stats
}

// Reset clears the transfer log, counters and pending faults.
func (b *Bus) Reset() {
	b.log = nil
	b.stats = BusStats{}
	b.faults = make(map[int]Fault)
}

// WriteBlocking writes p to the target at addr.
func (b *Bus) WriteBlocking(ctx context.Context, addr hal.Address, p []byte, nostop bool) (int, error) {
	b.stats.Writes++
	xfer := Transfer{Op: OpWrite, Addr: addr, NoStop: nostop}
	n, err := b.write(ctx, addr, p, nostop, &xfer)
	xfer.Data = append([]byte(nil), p[:n]...)
	b.record(xfer, n, len(p), err)
	return n, err
}

func (b *Bus) write(ctx context.Context, addr hal.Address, p []byte, nostop bool, xfer *Transfer) (int, error) {
	fault, err := b.begin(ctx, addr)
	if err != nil {
		return 0, err
	}

	xfer.Continue = b.held && b.heldWrite && b.heldAddr == addr
	if !xfer.Continue {
		b.wire.Start()
		if fault == FaultNAK || !b.wire.Send(addr.Wire(false)) {
			b.release()
			return 0, fmt.Errorf("%w: address %s", pkg.StatusNAK.Error(), addr)
		}
	} else if fault == FaultNAK && len(p) > 0 {
		b.release()
		return 0, fmt.Errorf("%w: data byte 0 to %s", pkg.StatusNAK.Error(), addr)
	}

	out := p
	if fault == FaultShort && len(out) > 0 {
		out = out[:len(out)-1]
	}
	for i, c := range out {
		if !b.wire.Send(c) {
			b.release()
			return i, fmt.Errorf("%w: data byte %d to %s", pkg.StatusNAK.Error(), i, addr)
		}
	}
	if fault == FaultShort {
		b.release()
		return len(out), nil
	}

	b.end(addr, true, nostop)
	return len(p), nil
}

// ReadBlocking reads len(p) bytes from the target at addr into p.
func (b *Bus) ReadBlocking(ctx context.Context, addr hal.Address, p []byte, nostop bool) (int, error) {
	b.stats.Reads++
	xfer := Transfer{Op: OpRead, Addr: addr, NoStop: nostop}
	n, err := b.read(ctx, addr, p, nostop)
	xfer.Data = append([]byte(nil), p[:n]...)
	b.record(xfer, n, len(p), err)
	return n, err
}

func (b *Bus) read(ctx context.Context, addr hal.Address, p []byte, nostop bool) (int, error) {
	fault, err := b.begin(ctx, addr)
	if err != nil {
		return 0, err
	}

	b.wire.Start()
	if fault == FaultNAK || !b.wire.Send(addr.Wire(true)) {
		b.release()
		return 0, fmt.Errorf("%w: address %s", pkg.StatusNAK.Error(), addr)
	}

	n := len(p)
	if fault == FaultShort && n > 0 {
		n--
	}
	for i := 0; i < n; i++ {
		p[i] = b.wire.Recv()
	}
	if fault == FaultShort {
		b.release()
		return n, nil
	}

	b.end(addr, false, nostop)
	return n, nil
}

// begin validates a transfer and consumes any fault scheduled for it.
func (b *Bus) begin(ctx context.Context, addr hal.Address) (Fault, error) {
	b.calls++
	fault := b.faults[b.calls]
	delete(b.faults, b.calls)

	if err := ctx.Err(); err != nil {
		b.release()
		return 0, err
	}
	if !addr.Valid() {
		b.release()
		return 0, fmt.Errorf("%w: bus address %s", pkg.ErrInvalidParameter, addr)
	}
	if fault == FaultTimeout {
		b.release()
		return 0, fmt.Errorf("%w: %s", pkg.StatusTimeout.Error(), addr)
	}
	return fault, nil
}

// end either holds the bus for the next transfer or issues a STOP.
func (b *Bus) end(addr hal.Address, write, nostop bool) {
	if nostop {
		b.held = true
		b.heldAddr = addr
		b.heldWrite = write
		return
	}
	b.release()
}

// release issues a STOP if a transaction is open.
func (b *Bus) release() {
	if b.wire.Held() {
		b.wire.Stop()
		b.stats.Transactions++
	}
	b.held = false
}

func (b *Bus) record(xfer Transfer, n, want int, err error) {
	switch {
	case err == nil && n == want:
		xfer.Status = pkg.StatusOK
	case err == nil:
		xfer.Status = pkg.StatusShort
	case errors.Is(err, pkg.ErrNAK):
		xfer.Status = pkg.StatusNAK
	case errors.Is(err, pkg.ErrTimeout):
		xfer.Status = pkg.StatusTimeout
	default:
		xfer.Status = pkg.StatusError
	}
	b.log = append(b.log, xfer)
	if xfer.Status != pkg.StatusOK {
		pkg.LogDebug(pkg.ComponentSim, "transfer failed",
			"op", xfer.Op, "addr", xfer.Addr, "bytes", n, "want", want, "status", xfer.Status)
	}
}

var _ hal.Bus = (*Bus)(nil)
