package buspirate

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/davecgh/go-spew/spew"

	"github.com/ardnew/m24cxx/eeprom"
	"github.com/ardnew/m24cxx/hal/sim"
	"github.com/ardnew/m24cxx/pkg"
)

// ============================================================================
// Fake adapter
// ============================================================================

type pirateMode int

const (
	modeTerminal pirateMode = iota
	modeBinary
	modeI2C
)

// fakePirate answers binary-mode commands and drives a simulated wire.
type fakePirate struct {
	wire *sim.Wire
	mode pirateMode
	out  bytes.Buffer
	sent []byte

	bulk         int // data bytes left in the current bulk write
	speed        byte
	periph       byte
	silentResets int  // reset bytes ignored before the banner appears
	badReply     byte // command whose reply is corrupted
	closed       bool
}

func newFakePirate() *fakePirate {
	return &fakePirate{wire: new(sim.Wire)}
}

func (f *fakePirate) Write(p []byte) (int, error) {
	if f.closed {
		return 0, io.ErrClosedPipe
	}
	f.sent = append(f.sent, p...)
	for _, c := range p {
		f.handle(c)
	}
	return len(p), nil
}

func (f *fakePirate) Read(p []byte) (int, error) {
	if f.out.Len() == 0 {
		return 0, io.EOF
	}
	return f.out.Read(p)
}

func (f *fakePirate) Close() error {
	f.closed = true
	return nil
}

func (f *fakePirate) reply(c byte, r ...byte) {
	if f.badReply != 0 && c == f.badReply {
		f.out.WriteByte(0xEE)
		return
	}
	f.out.Write(r)
}

func (f *fakePirate) handle(c byte) {
	if f.bulk > 0 {
		f.bulk--
		if f.wire.Send(c) {
			f.out.WriteByte(0x00)
		} else {
			f.out.WriteByte(0x01)
		}
		return
	}

	switch f.mode {
	case modeTerminal:
		if c != cmdReset {
			return
		}
		if f.silentResets > 0 {
			f.silentResets--
			return
		}
		f.mode = modeBinary
		f.out.WriteString(bannerBinary)

	case modeBinary:
		switch c {
		case cmdReset:
			f.out.WriteString(bannerBinary)
		case cmdI2CMode:
			f.mode = modeI2C
			f.out.WriteString(bannerI2C)
		case cmdExit:
			f.mode = modeTerminal
			f.out.WriteByte(replyOK)
		}

	case modeI2C:
		switch {
		case c == cmdReset:
			f.mode = modeBinary
			f.out.WriteString(bannerBinary)
		case c == cmdStart:
			f.wire.Start()
			f.reply(c, replyOK)
		case c == cmdStop:
			f.wire.Stop()
			f.reply(c, replyOK)
		case c == cmdReadByte:
			f.out.WriteByte(f.wire.Recv())
		case c == cmdACK, c == cmdNACK:
			f.reply(c, replyOK)
		case c&0xF0 == cmdBulkWrite:
			f.bulk = int(c&0x0F) + 1
			f.reply(c, replyOK)
		case c&0xF0 == cmdPeripheral:
			f.periph = c & 0x0F
			f.reply(c, replyOK)
		case c&0xF0 == cmdSpeed:
			f.speed = c & 0x03
			f.reply(c, replyOK)
		default:
			f.out.WriteByte(0x00)
		}
	}
}

// count returns how many times c was sent outside bulk payloads. It is
// only approximate for byte values that also occur as data.
func (f *fakePirate) count(c byte) int {
	return bytes.Count(f.sent, []byte{c})
}

func newTestBus(t *testing.T, opts ...Option) (*Bus, *fakePirate, *sim.EEPROM, *sim.Clock) {
	t.Helper()
	f := newFakePirate()
	clock := new(sim.Clock)
	ee := sim.NewEEPROM(clock, sim.M24C08())
	f.wire.Attach(ee)

	b, err := NewWithPort(f, opts...)
	if err != nil {
		t.Fatalf("NewWithPort: %v", err)
	}
	return b, f, ee, clock
}

// ============================================================================
// Setup
// ============================================================================

func TestSetup(t *testing.T) {
	_, f, _, _ := newTestBus(t)

	if f.mode != modeI2C {
		t.Fatalf("mode = %d, want I2C", f.mode)
	}
	if f.speed != byte(Speed100kHz) {
		t.Errorf("speed = %d, want %d", f.speed, Speed100kHz)
	}
	if f.periph != periphPower|periphPullups {
		t.Errorf("peripherals = 0x%x, want 0x%x", f.periph, periphPower|periphPullups)
	}
}

func TestSetupOptions(t *testing.T) {
	_, f, _, _ := newTestBus(t, WithSpeed(Speed400kHz), WithPower(false), WithPullups(true))

	if f.speed != byte(Speed400kHz) {
		t.Errorf("speed = %d, want %d", f.speed, Speed400kHz)
	}
	if f.periph != periphPullups {
		t.Errorf("peripherals = 0x%x, want 0x%x", f.periph, periphPullups)
	}
}

func TestSetupRetriesReset(t *testing.T) {
	f := newFakePirate()
	f.silentResets = 7

	if _, err := NewWithPort(f); err != nil {
		t.Fatalf("NewWithPort: %v", err)
	}
	if got := f.count(cmdReset); got != 8 {
		t.Errorf("reset bytes sent = %d, want 8", got)
	}
}

func TestSetupNoAdapter(t *testing.T) {
	f := newFakePirate()
	f.silentResets = resetAttempts + 1

	_, err := NewWithPort(f)
	if !errors.Is(err, pkg.ErrNoDevice) {
		t.Fatalf("err = %v, want ErrNoDevice", err)
	}
	if got := f.count(cmdReset); got != resetAttempts {
		t.Errorf("reset bytes sent = %d, want %d", got, resetAttempts)
	}
}

func TestSetupBadReply(t *testing.T) {
	f := newFakePirate()
	f.badReply = cmdPeripheral | periphPower | periphPullups

	_, err := NewWithPort(f)
	if !errors.Is(err, pkg.ErrProtocol) {
		t.Fatalf("err = %v, want ErrProtocol", err)
	}
}

func TestSpeedString(t *testing.T) {
	tests := []struct {
		speed Speed
		want  string
	}{
		{Speed5kHz, "5kHz"},
		{Speed50kHz, "50kHz"},
		{Speed100kHz, "100kHz"},
		{Speed400kHz, "400kHz"},
		{Speed(9), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.speed.String(); got != tt.want {
			t.Errorf("Speed(%d).String() = %q, want %q", tt.speed, got, tt.want)
		}
	}
}

// ============================================================================
// Transfers
// ============================================================================

func TestWriteThenRead(t *testing.T) {
	b, _, ee, clock := newTestBus(t)
	ctx := context.Background()

	data := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	if _, err := b.WriteBlocking(ctx, 0x50, []byte{0x20}, true); err != nil {
		t.Fatal(err)
	}
	if n, err := b.WriteBlocking(ctx, 0x50, data, false); err != nil || n != len(data) {
		t.Fatalf("WriteBlocking = %d, %v", n, err)
	}
	if got := ee.Memory()[0x20:0x24]; !bytes.Equal(got, data) {
		t.Fatalf("memory = % x, want % x", got, data)
	}
	if got := ee.Stats().PageWrites; got != 1 {
		t.Errorf("page writes = %d, want 1", got)
	}

	clock.Delay(eeprom.WriteCycle)

	if _, err := b.WriteBlocking(ctx, 0x50, []byte{0x20}, true); err != nil {
		t.Fatal(err)
	}
	got := make([]byte, len(data))
	if n, err := b.ReadBlocking(ctx, 0x50, got, false); err != nil || n != len(got) {
		t.Fatalf("ReadBlocking = %d, %v", n, err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("read % x, want % x", got, data)
	}
}

func TestBulkWriteSplits(t *testing.T) {
	b, f, ee, _ := newTestBus(t)
	ctx := context.Background()

	// The address byte and the offset each take one bulk write; the held
	// continuation sends the page as a single 16-byte bulk write.
	page := bytes.Repeat([]byte{0x22}, 16)
	b.WriteBlocking(ctx, 0x50, []byte{0x00}, true)
	if _, err := b.WriteBlocking(ctx, 0x50, page, false); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(ee.Memory()[:16], page) {
		t.Fatalf("memory = % x", ee.Memory()[:16])
	}

	var bulks []byte
	for _, c := range f.sent {
		if c&0xF0 == cmdBulkWrite {
			bulks = append(bulks, c)
		}
	}
	want := []byte{0x10, 0x10, 0x1F}
	if !bytes.Equal(bulks, want) {
		t.Errorf("bulk commands = % x, want % x\n%s", bulks, want, spew.Sdump(f.sent))
	}
}

func TestAddressNAK(t *testing.T) {
	b, _, _, _ := newTestBus(t)

	n, err := b.WriteBlocking(context.Background(), 0x20, []byte{0}, false)
	if n != 0 || !errors.Is(err, pkg.ErrNAK) {
		t.Fatalf("WriteBlocking = %d, %v; want 0, ErrNAK", n, err)
	}
	if b.held {
		t.Error("bus still held after NAK")
	}
}

func TestBusyDeviceNAKs(t *testing.T) {
	b, _, _, _ := newTestBus(t)
	ctx := context.Background()

	b.WriteBlocking(ctx, 0x50, []byte{0x00, 1}, false)
	_, err := b.WriteBlocking(ctx, 0x50, []byte{0x00}, true)
	if !errors.Is(err, pkg.ErrNAK) {
		t.Fatalf("err = %v, want ErrNAK during write cycle", err)
	}
}

func TestReadWithoutTarget(t *testing.T) {
	b, _, _, _ := newTestBus(t)

	_, err := b.ReadBlocking(context.Background(), 0x33, make([]byte, 2), false)
	if !errors.Is(err, pkg.ErrNAK) {
		t.Fatalf("err = %v, want ErrNAK", err)
	}
}

func TestReadAcknowledgesAllButLast(t *testing.T) {
	b, f, _, _ := newTestBus(t)
	ctx := context.Background()

	f.sent = nil
	if _, err := b.ReadBlocking(ctx, 0x50, make([]byte, 5), false); err != nil {
		t.Fatal(err)
	}
	if got := f.count(cmdACK); got != 4 {
		t.Errorf("ACK commands = %d, want 4", got)
	}
	if got := f.count(cmdNACK); got != 1 {
		t.Errorf("NACK commands = %d, want 1", got)
	}
}

func TestTimeout(t *testing.T) {
	b, f, _, _ := newTestBus(t)
	// An adapter that dropped back to its terminal ignores commands.
	f.mode = modeTerminal

	_, err := b.WriteBlocking(context.Background(), 0x50, []byte{0}, false)
	if !errors.Is(err, pkg.ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
}

func TestRejectedTransfers(t *testing.T) {
	b, f, _, _ := newTestBus(t)
	f.sent = nil

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := b.WriteBlocking(ctx, 0x50, []byte{0}, false); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled: err = %v", err)
	}
	if _, err := b.ReadBlocking(context.Background(), 0x90, make([]byte, 1), false); !errors.Is(err, pkg.ErrInvalidParameter) {
		t.Errorf("bad address: err = %v", err)
	}
	if len(f.sent) != 0 {
		t.Errorf("rejected transfers sent % x", f.sent)
	}
}

func TestClose(t *testing.T) {
	b, f, _, _ := newTestBus(t)

	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !f.closed {
		t.Error("port not closed")
	}
	if f.mode != modeTerminal {
		t.Errorf("mode = %d, want terminal", f.mode)
	}
	if err := b.Close(); !errors.Is(err, pkg.ErrClosed) {
		t.Errorf("second Close = %v, want ErrClosed", err)
	}
	if _, err := b.WriteBlocking(context.Background(), 0x50, nil, false); !errors.Is(err, pkg.ErrClosed) {
		t.Errorf("write after Close = %v, want ErrClosed", err)
	}
}

// ============================================================================
// Driver integration
// ============================================================================

func TestEEPROMOverBusPirate(t *testing.T) {
	b, _, ee, clock := newTestBus(t)
	dev := eeprom.New(b, eeprom.WithDelayer(clock))
	ctx := context.Background()

	data := make([]byte, 40)
	for i := range data {
		data[i] = byte(i * 7)
	}
	if err := dev.Write(ctx, 0x3F0-8, data[:24]); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := dev.Write(ctx, 0x0FA, data); err != nil {
		t.Fatalf("Write across block: %v", err)
	}

	got := make([]byte, len(data))
	if err := dev.Read(ctx, 0x0FA, got); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("read back % x\nwant % x", got, data)
	}
	if !bytes.Equal(ee.Memory()[0x3E8:0x400], data[:24]) {
		t.Errorf("tail memory = % x", ee.Memory()[0x3E8:0x400])
	}

	before := ee.Stats().PageWrites
	if err := dev.Update(ctx, 0x0FA, data); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got := ee.Stats().PageWrites; got != before {
		t.Errorf("update of identical data wrote %d pages", got-before)
	}
}
