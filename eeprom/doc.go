// Package eeprom drives M24Cxx-family serial EEPROMs (M24C01 through
// M24C16) over a two-wire bus.
//
// The driver translates (address, buffer) requests into bus transactions
// the chip accepts:
//
//   - [Device.Read] loads the chip's address counter and streams the whole
//     buffer in one sequential read. The counter wraps at the end of the
//     array, so only the start address is range-checked.
//   - [Device.Write] splits the buffer at page boundaries and sends one
//     page write per chunk, then waits out the write cycle before the
//     next. The whole range is checked before the first byte is sent.
//   - [Device.Update] reads each chunk back first and skips the page write
//     (and its settle delay) when the chip already holds the data.
//
// # Addressing
//
// The chips have more cells than one offset byte can address. The high
// address bits travel in the low bits of the 7-bit device-select address,
// below the chip-enable bits:
//
//	M24C08 select = 0x50 | (id&1)<<2 | (addr>>8)&0b11
//
// [Config] captures the family parameters; [M24C08] is the default.
//
// # Failures
//
// Every operation returns nil or an error. Range violations wrap
// [pkg.ErrOutOfRange] and happen before any bus traffic; transfers that
// move the wrong number of bytes wrap [pkg.ErrShortTransfer]; bus errors
// are wrapped as returned by the HAL. There is no retry and no rollback:
// after a failed Write or Update some leading pages may be programmed.
//
// # Example
//
//	dev := eeprom.New(bus)
//	if err := dev.Update(ctx, 0x10, settings); err != nil {
//	    return err
//	}
//	buf := make([]byte, len(settings))
//	err := dev.Read(ctx, 0x10, buf)
package eeprom
