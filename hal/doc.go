// Package hal defines the Hardware Abstraction Layer consumed by the
// EEPROM driver.
//
// The HAL is a blocking two-wire bus primitive: write a buffer to a 7-bit
// address, or read a buffer from one, optionally holding the bus for a
// follow-up transfer. The driver builds every EEPROM command from these
// two calls, so a new platform only needs a [Bus] implementation.
//
// # Held Transfers
//
// Holding the bus (nostop) is how a driver sets a device's internal
// address pointer and then streams data in the same transaction:
//
//	bus.WriteBlocking(ctx, 0x50, []byte{offset}, true)  // pointer, bus held
//	bus.ReadBlocking(ctx, 0x50, buf, false)             // repeated start, read, stop
//
// A write that follows a held write to the same address extends the same
// write message, which is how a page write is sent as offset then data.
//
// # Timing
//
// Settle delays are expressed through [Delayer] rather than direct calls
// to time.Sleep, so simulated buses can fast-forward virtual time.
//
// # Implementations
//
//   - [github.com/ardnew/m24cxx/hal/sim]: in-memory EEPROM model for tests
//   - [github.com/ardnew/m24cxx/hal/linux]: Linux i2c-dev character devices
//   - [github.com/ardnew/m24cxx/hal/buspirate]: Bus Pirate adapters over serial
package hal
