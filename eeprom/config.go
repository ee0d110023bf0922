package eeprom

import (
	"fmt"
	"math/bits"
	"strings"
	"time"

	"github.com/ardnew/m24cxx/hal"
	"github.com/ardnew/m24cxx/pkg"
)

// Protocol constants of the M24C08.
const (
	BaseAddress hal.Address = 0x50                 // top bits of the 7-bit select byte
	PageSize                = 16                   // bytes per page write
	Capacity                = 1024                 // bytes
	WriteCycle              = 5 * time.Millisecond // busy time after a page write
)

// Config describes one member of the M24Cxx family.
type Config struct {
	Name        string
	BaseAddress hal.Address
	Capacity    int           // bytes
	PageSize    int           // bytes per page write
	WriteCycle  time.Duration // settle delay after every page write
}

// Family presets. All members share the base address, page size and
// write-cycle time; they differ in capacity and therefore in how many
// select bits carry address bits.
var (
	M24C01 = Config{Name: "M24C01", BaseAddress: BaseAddress, Capacity: 128, PageSize: PageSize, WriteCycle: WriteCycle}
	M24C02 = Config{Name: "M24C02", BaseAddress: BaseAddress, Capacity: 256, PageSize: PageSize, WriteCycle: WriteCycle}
	M24C04 = Config{Name: "M24C04", BaseAddress: BaseAddress, Capacity: 512, PageSize: PageSize, WriteCycle: WriteCycle}
	M24C08 = Config{Name: "M24C08", BaseAddress: BaseAddress, Capacity: Capacity, PageSize: PageSize, WriteCycle: WriteCycle}
	M24C16 = Config{Name: "M24C16", BaseAddress: BaseAddress, Capacity: 2048, PageSize: PageSize, WriteCycle: WriteCycle}
)

// Lookup returns the preset with the given name, ignoring case.
func Lookup(name string) (Config, error) {
	for _, c := range []Config{M24C01, M24C02, M24C04, M24C08, M24C16} {
		if strings.EqualFold(c.Name, name) {
			return c, nil
		}
	}
	return Config{}, fmt.Errorf("%w: unknown device %q", pkg.ErrInvalidParameter, name)
}

// Validate checks the configuration for internal consistency.
func (c Config) Validate() error {
	switch {
	case c.PageSize <= 0 || c.PageSize&(c.PageSize-1) != 0:
		return fmt.Errorf("%w: page size %d is not a power of two", pkg.ErrInvalidConfig, c.PageSize)
	case c.Capacity <= 0 || c.Capacity%c.PageSize != 0:
		return fmt.Errorf("%w: capacity %d is not a multiple of the page size", pkg.ErrInvalidConfig, c.Capacity)
	case c.Capacity > 2048 || (c.Capacity > 256 && c.Capacity&(c.Capacity-1) != 0):
		return fmt.Errorf("%w: capacity %d cannot be addressed with 3 block bits", pkg.ErrInvalidConfig, c.Capacity)
	case !c.BaseAddress.Valid() || c.BaseAddress&0x07 != 0:
		return fmt.Errorf("%w: base address %s", pkg.ErrInvalidConfig, c.BaseAddress)
	case c.WriteCycle < 0:
		return fmt.Errorf("%w: negative write cycle", pkg.ErrInvalidConfig)
	}
	return nil
}

// BlockBits returns the number of low select-byte bits that carry the
// high bits of the memory address.
func (c Config) BlockBits() uint {
	if c.Capacity <= 256 {
		return 0
	}
	return uint(bits.TrailingZeros(uint(c.Capacity >> 8)))
}

// ChipEnableBits returns the number of select-byte bits left for the
// chip-enable pins.
func (c Config) ChipEnableBits() uint {
	return 3 - c.BlockBits()
}

// Pages returns the number of pages in the array.
func (c Config) Pages() int {
	return c.Capacity / c.PageSize
}

// DeviceSelect returns the 7-bit bus address for memory address addr on
// the device whose chip-enable pins are strapped to id. For the M24C08
// this is BaseAddress | (id&1)<<2 | (addr>>8)&0b11.
func (c Config) DeviceSelect(id uint8, addr uint16) hal.Address {
	bb := c.BlockBits()
	ce := hal.Address(id) & (1<<c.ChipEnableBits() - 1)
	block := hal.Address(addr>>8) & (1<<bb - 1)
	return c.BaseAddress | ce<<bb | block
}

// Offset returns the in-device offset byte for addr.
func Offset(addr uint16) byte {
	return byte(addr & 0xFF)
}
