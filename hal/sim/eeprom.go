package sim

import (
	"fmt"
	"io"
	"math/bits"
	"time"

	"github.com/ardnew/m24cxx/hal"
	"github.com/ardnew/m24cxx/pkg"
)

// Erased is the value of an unprogrammed EEPROM cell.
const Erased = 0xFF

// Config describes a simulated EEPROM.
type Config struct {
	Capacity   int           // bytes, a multiple of PageSize
	PageSize   int           // bytes, a power of two
	Base       hal.Address   // device-select base, low 3 bits zero
	ChipEnable uint8         // level of the chip-enable pins not used for block bits
	WriteCycle time.Duration // busy time after a committed page write
}

// M24C08 returns the configuration of an M24C08 with its E2 pin low.
func M24C08() Config {
	return Config{
		Capacity:   1024,
		PageSize:   16,
		Base:       0x50,
		WriteCycle: 5 * time.Millisecond,
	}
}

// Validate checks the configuration for internal consistency.
func (c Config) Validate() error {
	switch {
	case c.PageSize <= 0 || c.PageSize&(c.PageSize-1) != 0:
		return fmt.Errorf("%w: page size %d", pkg.ErrInvalidConfig, c.PageSize)
	case c.Capacity <= 0 || c.Capacity%c.PageSize != 0 || c.Capacity > 2048:
		return fmt.Errorf("%w: capacity %d", pkg.ErrInvalidConfig, c.Capacity)
	case c.Capacity > 256 && c.Capacity&(c.Capacity-1) != 0:
		return fmt.Errorf("%w: capacity %d", pkg.ErrInvalidConfig, c.Capacity)
	case !c.Base.Valid() || c.Base&0x07 != 0:
		return fmt.Errorf("%w: base address %s", pkg.ErrInvalidConfig, c.Base)
	}
	return nil
}

// blockBits is the number of device-select bits carrying high address bits.
func (c Config) blockBits() uint {
	if c.Capacity <= 256 {
		return 0
	}
	return uint(bits.TrailingZeros(uint(c.Capacity >> 8)))
}

// EEPROMStats counts device-side events.
type EEPROMStats struct {
	PageWrites    int // committed page writes (each starts a write cycle)
	PointerSets   int // address pointer loads from an offset byte
	BytesRead     int // bytes returned to the controller
	AbortedWrites int // latched data discarded by a repeated START
	BusyNAKs      int // address bytes refused during a write cycle
}

type eepromMode uint8

const (
	modeIdle eepromMode = iota
	modeOffset
	modeData
	modeRead
)

// EEPROM is a simulated M24Cxx serial EEPROM. It implements [Target].
type EEPROM struct {
	cfg        Config
	clock      *Clock
	mem        []byte
	blockMask  hal.Address
	selectAddr hal.Address

	mode      eepromMode
	block     int
	ptr       int
	pageBase  int
	col       int
	latch     []byte
	dirty     []bool
	pending   bool
	busyUntil time.Duration

	stats EEPROMStats
}

// NewEEPROM creates an erased EEPROM whose write cycle is timed by clock.
// It panics if cfg is invalid.
func NewEEPROM(clock *Clock, cfg Config) *EEPROM {
	if err := cfg.Validate(); err != nil {
		panic(err)
	}
	if clock == nil {
		clock = new(Clock)
	}
	bb := cfg.blockBits()
	ee := &EEPROM{
		cfg:       cfg,
		clock:     clock,
		mem:       make([]byte, cfg.Capacity),
		blockMask: hal.Address(1<<bb - 1),
		latch:     make([]byte, cfg.PageSize),
		dirty:     make([]bool, cfg.PageSize),
	}
	chipBits := 3 - bb
	ce := hal.Address(cfg.ChipEnable) & hal.Address(1<<chipBits-1)
	ee.selectAddr = cfg.Base | ce<<bb
	ee.Erase()
	return ee
}

// Config returns the device configuration.
func (ee *EEPROM) Config() Config {
	return ee.cfg
}

// Erase sets every cell to [Erased].
func (ee *EEPROM) Erase() {
	for i := range ee.mem {
		ee.mem[i] = Erased
	}
}

// Memory returns a copy of the array contents.
func (ee *EEPROM) Memory() []byte {
	out := make([]byte, len(ee.mem))
	copy(out, ee.mem)
	return out
}

// Load copies data into the array at off, bypassing the bus and the
// write cycle.
func (ee *EEPROM) Load(off int, data []byte) error {
	if off < 0 || off+len(data) > len(ee.mem) {
		return fmt.Errorf("%w: load %d bytes at %d", pkg.ErrOutOfRange, len(data), off)
	}
	copy(ee.mem[off:], data)
	return nil
}

// ReadImage fills the array from r. A short image leaves the remaining
// cells untouched.
func (ee *EEPROM) ReadImage(r io.Reader) (int, error) {
	n, err := io.ReadFull(r, ee.mem)
	if err == io.ErrUnexpectedEOF || err == io.EOF {
		err = nil
	}
	return n, err
}

// WriteImage writes the whole array to w.
func (ee *EEPROM) WriteImage(w io.Writer) (int, error) {
	return w.Write(ee.mem)
}

// Stats returns the device-side counters.
func (ee *EEPROM) Stats() EEPROMStats {
	return ee.stats
}

// ResetStats clears the device-side counters.
func (ee *EEPROM) ResetStats() {
	ee.stats = EEPROMStats{}
}

// Busy reports whether a write cycle is in progress.
func (ee *EEPROM) Busy() bool {
	return ee.clock.Now() < ee.busyUntil
}

// Pointer returns the internal address counter.
func (ee *EEPROM) Pointer() int {
	return ee.ptr
}

// Match reports whether addr selects this device. The block bits of the
// select byte are address bits, so every block address matches.
func (ee *EEPROM) Match(addr hal.Address) bool {
	return addr&^ee.blockMask == ee.selectAddr
}

// Start aborts any latched page write; only a STOP commits.
func (ee *EEPROM) Start() {
	if ee.pending {
		ee.stats.AbortedWrites++
		pkg.LogDebug(pkg.ComponentSim, "page write aborted by repeated start", "page", ee.pageBase)
	}
	ee.pending = false
	ee.mode = modeIdle
}

// Address handles the device-select byte.
func (ee *EEPROM) Address(b byte) bool {
	if ee.Busy() {
		ee.stats.BusyNAKs++
		return false
	}
	ee.block = int(hal.Address(b>>1) & ee.blockMask)
	if b&0x01 != 0 {
		ee.mode = modeRead
	} else {
		ee.mode = modeOffset
	}
	return true
}

// Send handles a byte written by the controller.
func (ee *EEPROM) Send(b byte) bool {
	switch ee.mode {
	case modeOffset:
		ee.ptr = (ee.block<<8 | int(b)) % len(ee.mem)
		ee.pageBase = ee.ptr &^ (ee.cfg.PageSize - 1)
		ee.col = ee.ptr - ee.pageBase
		copy(ee.latch, ee.mem[ee.pageBase:ee.pageBase+ee.cfg.PageSize])
		for i := range ee.dirty {
			ee.dirty[i] = false
		}
		ee.mode = modeData
		ee.stats.PointerSets++
		return true
	case modeData:
		ee.latch[ee.col] = b
		ee.dirty[ee.col] = true
		ee.col = (ee.col + 1) % ee.cfg.PageSize
		ee.pending = true
		return true
	}
	return false
}

// Recv returns the byte at the address counter and advances it, wrapping
// at the end of the array.
func (ee *EEPROM) Recv() byte {
	if ee.mode != modeRead {
		return Erased
	}
	v := ee.mem[ee.ptr]
	ee.ptr = (ee.ptr + 1) % len(ee.mem)
	ee.stats.BytesRead++
	return v
}

// Stop commits a latched page write and starts the write cycle.
func (ee *EEPROM) Stop() {
	if ee.pending {
		n := 0
		for i, d := range ee.dirty {
			if d {
				ee.mem[ee.pageBase+i] = ee.latch[i]
				n++
			}
		}
		ee.ptr = ee.pageBase + ee.col
		ee.busyUntil = ee.clock.Now() + ee.cfg.WriteCycle
		ee.stats.PageWrites++
		pkg.LogDebug(pkg.ComponentSim, "page committed", "page", ee.pageBase, "bytes", n)
	}
	ee.pending = false
	ee.mode = modeIdle
}

var _ Target = (*EEPROM)(nil)
