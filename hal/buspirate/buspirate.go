package buspirate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/pkg/term"

	"github.com/ardnew/m24cxx/hal"
	"github.com/ardnew/m24cxx/pkg"
)

// Baud is the serial rate of the Bus Pirate's USB UART.
const Baud = 115200

// DefaultTimeout is the serial read timeout.
const DefaultTimeout = 100 * time.Millisecond

// options holds adapter settings applied by Open and NewWithPort.
type options struct {
	speed   Speed
	power   bool
	pullups bool
	timeout time.Duration
}

// Option configures the adapter.
type Option func(*options)

// WithSpeed sets the I2C clock rate. The default is 100 kHz.
func WithSpeed(s Speed) Option {
	return func(o *options) { o.speed = s }
}

// WithPower enables or disables the adapter's 3.3V/5V supplies.
func WithPower(on bool) Option {
	return func(o *options) { o.power = on }
}

// WithPullups enables or disables the on-board pull-up resistors.
func WithPullups(on bool) Option {
	return func(o *options) { o.pullups = on }
}

// WithTimeout sets the serial read timeout used by Open.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

func defaultOptions() options {
	return options{
		speed:   Speed100kHz,
		power:   true,
		pullups: true,
		timeout: DefaultTimeout,
	}
}

// Bus implements hal.Bus through a Bus Pirate in binary I2C mode.
//
// Bus is not safe for concurrent use.
type Bus struct {
	port   io.ReadWriter
	closer io.Closer
	opts   options

	held      bool
	heldAddr  hal.Address
	heldWrite bool
	closed    bool
}

// Open opens the serial device and brings the adapter into I2C mode.
func Open(device string, opts ...Option) (*Bus, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	t, err := term.Open(device, term.Speed(Baud), term.RawMode)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", pkg.ErrNoDevice, device, err)
	}
	if err := t.SetReadTimeout(o.timeout); err != nil {
		t.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", device, err)
	}
	if err := t.Flush(); err != nil {
		t.Close()
		return nil, fmt.Errorf("flush %s: %w", device, err)
	}

	b, err := newBus(t, t, o)
	if err != nil {
		t.Close()
		return nil, fmt.Errorf("%s: %w", device, err)
	}
	pkg.LogInfo(pkg.ComponentHAL, "bus pirate ready", "device", device, "speed", o.speed)
	return b, nil
}

// NewWithPort brings the adapter reachable through port into I2C mode. If
// port implements io.Closer, Close closes it.
func NewWithPort(port io.ReadWriter, opts ...Option) (*Bus, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	closer, _ := port.(io.Closer)
	return newBus(port, closer, o)
}

func newBus(port io.ReadWriter, closer io.Closer, o options) (*Bus, error) {
	b := &Bus{port: port, closer: closer, opts: o}
	if err := b.setup(); err != nil {
		return nil, err
	}
	return b, nil
}

// setup enters bit-bang mode, then I2C mode, and applies the options.
func (b *Bus) setup() error {
	if err := b.enterBinary(); err != nil {
		return err
	}
	if err := b.send(cmdI2CMode); err != nil {
		return err
	}
	if err := b.expect(bannerI2C); err != nil {
		return fmt.Errorf("enter I2C mode: %w", err)
	}
	if err := b.command(cmdSpeed | byte(b.opts.speed&0x03)); err != nil {
		return fmt.Errorf("set speed %s: %w", b.opts.speed, err)
	}
	periph := byte(cmdPeripheral)
	if b.opts.power {
		periph |= periphPower
	}
	if b.opts.pullups {
		periph |= periphPullups
	}
	if err := b.command(periph); err != nil {
		return fmt.Errorf("configure peripherals: %w", err)
	}
	return nil
}

// enterBinary sends reset bytes until the adapter answers with the
// bit-bang banner.
func (b *Bus) enterBinary() error {
	buf := make([]byte, len(bannerBinary))
	for i := 0; i < resetAttempts; i++ {
		if err := b.send(cmdReset); err != nil {
			return err
		}
		n, err := b.readFull(buf)
		if err == nil && string(buf[:n]) == bannerBinary {
			pkg.LogDebug(pkg.ComponentHAL, "bus pirate in bit-bang mode", "attempts", i+1)
			return nil
		}
		if err != nil && !errors.Is(err, pkg.ErrTimeout) {
			return err
		}
	}
	return fmt.Errorf("%w: no %s banner after %d resets", pkg.ErrNoDevice, bannerBinary, resetAttempts)
}

// Close returns the adapter to its user terminal and closes the port.
func (b *Bus) Close() error {
	if b.closed {
		return pkg.ErrClosed
	}
	b.closed = true

	var err error
	if b.held {
		err = b.stop()
	}
	if e := b.send(cmdReset); e != nil && err == nil {
		err = e
	}
	if e := b.expect(bannerBinary); e != nil && err == nil {
		err = e
	}
	if e := b.send(cmdExit); e != nil && err == nil {
		err = e
	}
	if b.closer != nil {
		if e := b.closer.Close(); e != nil && err == nil {
			err = e
		}
	}
	return err
}

// WriteBlocking writes p to the target at addr.
func (b *Bus) WriteBlocking(ctx context.Context, addr hal.Address, p []byte, nostop bool) (int, error) {
	if err := b.check(ctx, addr); err != nil {
		return 0, err
	}

	if !(b.held && b.heldWrite && b.heldAddr == addr) {
		if err := b.begin(addr, false); err != nil {
			return 0, err
		}
	}

	n, err := b.bulkWrite(p)
	if err != nil {
		b.abort()
		return n, err
	}
	return n, b.finish(addr, true, nostop)
}

// ReadBlocking reads len(p) bytes from the target at addr into p. Every
// byte but the last is acknowledged.
func (b *Bus) ReadBlocking(ctx context.Context, addr hal.Address, p []byte, nostop bool) (int, error) {
	if err := b.check(ctx, addr); err != nil {
		return 0, err
	}
	if err := b.begin(addr, true); err != nil {
		return 0, err
	}

	var one [1]byte
	for i := range p {
		if err := b.send(cmdReadByte); err != nil {
			b.abort()
			return i, err
		}
		if _, err := b.readFull(one[:]); err != nil {
			b.abort()
			return i, err
		}
		p[i] = one[0]

		ack := byte(cmdACK)
		if i == len(p)-1 {
			ack = cmdNACK
		}
		if err := b.command(ack); err != nil {
			b.abort()
			return i + 1, err
		}
	}
	return len(p), b.finish(addr, false, nostop)
}

func (b *Bus) check(ctx context.Context, addr hal.Address) error {
	if b.closed {
		return pkg.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		b.abort()
		return err
	}
	if !addr.Valid() {
		b.abort()
		return fmt.Errorf("%w: bus address %s", pkg.ErrInvalidParameter, addr)
	}
	return nil
}

// begin issues a START (repeated when held) and the address byte.
func (b *Bus) begin(addr hal.Address, read bool) error {
	if err := b.command(cmdStart); err != nil {
		b.abort()
		return err
	}
	b.held = true
	b.heldWrite = false
	if _, err := b.bulkWrite([]byte{addr.Wire(read)}); err != nil {
		b.abort()
		if errors.Is(err, pkg.ErrNAK) {
			return fmt.Errorf("%w: address %s", pkg.ErrNAK, addr)
		}
		return err
	}
	return nil
}

// finish records the held state or issues STOP.
func (b *Bus) finish(addr hal.Address, write, nostop bool) error {
	if nostop {
		b.held = true
		b.heldAddr = addr
		b.heldWrite = write
		return nil
	}
	return b.stop()
}

func (b *Bus) stop() error {
	b.held = false
	b.heldWrite = false
	return b.command(cmdStop)
}

// abort releases the bus after a failure, keeping the original error.
func (b *Bus) abort() {
	if !b.held {
		return
	}
	if err := b.stop(); err != nil {
		pkg.LogDebug(pkg.ComponentHAL, "bus pirate stop after failure", "error", err)
	}
}

// bulkWrite clocks p out in groups of up to maxBulk bytes and returns the
// number of acknowledged bytes.
func (b *Bus) bulkWrite(p []byte) (int, error) {
	acks := make([]byte, maxBulk)
	written := 0
	for len(p) > 0 {
		n := min(len(p), maxBulk)
		if err := b.command(cmdBulkWrite | byte(n-1)); err != nil {
			return written, err
		}
		if err := b.send(p[:n]...); err != nil {
			return written, err
		}
		if _, err := b.readFull(acks[:n]); err != nil {
			return written, err
		}
		for i := 0; i < n; i++ {
			if acks[i] != replyACK {
				return written, fmt.Errorf("%w: byte %d", pkg.ErrNAK, written)
			}
			written++
		}
		p = p[n:]
	}
	return written, nil
}

// command sends a one-byte command and expects the OK reply.
func (b *Bus) command(c byte) error {
	if err := b.send(c); err != nil {
		return err
	}
	var r [1]byte
	if _, err := b.readFull(r[:]); err != nil {
		return fmt.Errorf("command 0x%02x: %w", c, err)
	}
	if r[0] != replyOK {
		return fmt.Errorf("%w: command 0x%02x replied 0x%02x", pkg.ErrProtocol, c, r[0])
	}
	return nil
}

func (b *Bus) send(p ...byte) error {
	if _, err := b.port.Write(p); err != nil {
		return fmt.Errorf("serial write: %w", err)
	}
	return nil
}

// expect reads len(s) bytes and compares them with s.
func (b *Bus) expect(s string) error {
	buf := make([]byte, len(s))
	if _, err := b.readFull(buf); err != nil {
		return err
	}
	if string(buf) != s {
		return fmt.Errorf("%w: got %q, want %q", pkg.ErrProtocol, buf, s)
	}
	return nil
}

// readFull fills p from the port. A read that returns no data, or io.EOF
// from a timed-out serial read, ends with pkg.ErrTimeout.
func (b *Bus) readFull(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		m, err := b.port.Read(p[n:])
		n += m
		if m == 0 && (err == nil || errors.Is(err, io.EOF)) {
			return n, fmt.Errorf("%w: %d of %d bytes", pkg.ErrTimeout, n, len(p))
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return n, fmt.Errorf("serial read: %w", err)
		}
	}
	return n, nil
}

var _ hal.Bus = (*Bus)(nil)
