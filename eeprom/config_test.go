package eeprom

import (
	"errors"
	"testing"

	"github.com/ardnew/m24cxx/hal"
	"github.com/ardnew/m24cxx/pkg"
)

func TestConfig_DeviceSelect(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		id   uint8
		addr uint16
		want hal.Address
	}{
		{"c08 first cell", M24C08, 0, 0x000, 0x50},
		{"c08 block 1", M24C08, 0, 0x1FF, 0x51},
		{"c08 block 2", M24C08, 0, 0x200, 0x52},
		{"c08 last cell", M24C08, 0, 0x3FF, 0x53},
		{"c08 chip 1", M24C08, 1, 0x3FF, 0x57},
		{"c08 id masked to one bit", M24C08, 3, 0x000, 0x54},
		{"c01 chip 5", M24C01, 5, 0x07F, 0x55},
		{"c02 chip 7", M24C02, 7, 0x0FF, 0x57},
		{"c04 chip 3 block 1", M24C04, 3, 0x1FF, 0x57},
		{"c16 ignores id", M24C16, 1, 0x7FF, 0x57},
		{"c16 block 4", M24C16, 0, 0x400, 0x54},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.DeviceSelect(tt.id, tt.addr); got != tt.want {
				t.Errorf("DeviceSelect(%d, 0x%03x) = %s, want %s", tt.id, tt.addr, got, tt.want)
			}
		})
	}
}

func TestConfig_DeviceSelectMatchesFormula(t *testing.T) {
	for id := uint8(0); id < 4; id++ {
		for addr := uint16(0); addr < Capacity; addr++ {
			want := hal.Address(0x50 | (id&1)<<2 | uint8(addr>>8)&0b11)
			if got := M24C08.DeviceSelect(id, addr); got != want {
				t.Fatalf("DeviceSelect(%d, 0x%03x) = %s, want %s", id, addr, got, want)
			}
		}
	}
}

func TestConfig_Bits(t *testing.T) {
	tests := []struct {
		cfg        Config
		blockBits  uint
		enableBits uint
		pages      int
	}{
		{M24C01, 0, 3, 8},
		{M24C02, 0, 3, 16},
		{M24C04, 1, 2, 32},
		{M24C08, 2, 1, 64},
		{M24C16, 3, 0, 128},
	}

	for _, tt := range tests {
		t.Run(tt.cfg.Name, func(t *testing.T) {
			if got := tt.cfg.BlockBits(); got != tt.blockBits {
				t.Errorf("BlockBits() = %d, want %d", got, tt.blockBits)
			}
			if got := tt.cfg.ChipEnableBits(); got != tt.enableBits {
				t.Errorf("ChipEnableBits() = %d, want %d", got, tt.enableBits)
			}
			if got := tt.cfg.Pages(); got != tt.pages {
				t.Errorf("Pages() = %d, want %d", got, tt.pages)
			}
			if err := tt.cfg.Validate(); err != nil {
				t.Errorf("Validate() = %v", err)
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"page size zero", func(c *Config) { c.PageSize = 0 }},
		{"page size not power of two", func(c *Config) { c.PageSize = 24 }},
		{"capacity not page multiple", func(c *Config) { c.Capacity = 1000 }},
		{"capacity too large", func(c *Config) { c.Capacity = 4096 }},
		{"capacity not addressable", func(c *Config) { c.Capacity = 1536 }},
		{"base address low bits", func(c *Config) { c.BaseAddress = 0x52 }},
		{"base address too wide", func(c *Config) { c.BaseAddress = 0xA0 }},
		{"negative write cycle", func(c *Config) { c.WriteCycle = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := M24C08
			tt.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, pkg.ErrInvalidConfig) {
				t.Errorf("Validate() = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestLookup(t *testing.T) {
	cfg, err := Lookup("m24c08")
	if err != nil {
		t.Fatalf("Lookup(m24c08) error = %v", err)
	}
	if cfg != M24C08 {
		t.Errorf("Lookup(m24c08) = %+v, want %+v", cfg, M24C08)
	}

	if _, err := Lookup("at24c512"); !errors.Is(err, pkg.ErrInvalidParameter) {
		t.Errorf("Lookup(at24c512) error = %v, want ErrInvalidParameter", err)
	}
}

func TestOffset(t *testing.T) {
	tests := []struct {
		addr uint16
		want byte
	}{
		{0x000, 0x00},
		{0x0FF, 0xFF},
		{0x100, 0x00},
		{0x3AB, 0xAB},
	}
	for _, tt := range tests {
		if got := Offset(tt.addr); got != tt.want {
			t.Errorf("Offset(0x%03x) = 0x%02x, want 0x%02x", tt.addr, got, tt.want)
		}
	}
}
