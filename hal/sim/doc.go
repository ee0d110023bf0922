// Package sim provides a simulated two-wire bus with an M24Cxx-class
// serial EEPROM attached.
//
// This package implements the [hal.Bus] interface entirely in memory. It
// is designed for testing and for running the driver tools without any
// hardware, in the same way a FIFO-backed HAL stands in for a real
// controller.
//
// # Architecture
//
// The simulation has three layers:
//
//	Bus    - hal.Bus: held transfers, fault injection, transfer log
//	Wire   - byte-level START / address / data / STOP signalling
//	EEPROM - the target: device-select decode, address pointer, page latch
//
// Time is virtual. A [Clock] implements [hal.Delayer]; the EEPROM stays
// busy for its write-cycle time after every committed page write and
// refuses to acknowledge its address until the clock has been advanced
// past that point. A driver that forgets its settle delay therefore fails
// against the simulation exactly as it would against silicon.
//
// # Device Model
//
//   - Erased cells read as 0xFF
//   - The first byte of a write message sets the low 8 address bits; the
//     high bits come from the block bits of the device-select byte
//   - Data bytes latch into the current page and roll over inside it
//   - The latch is committed on STOP and discarded on a repeated START
//   - Sequential reads wrap from the last cell back to address 0
//
// # Usage
//
//	bus := sim.NewBus()
//	ee := bus.AddEEPROM(sim.M24C08())
//	dev := eeprom.New(bus, eeprom.WithDelayer(bus.Clock()))
//
//	_ = dev.Write(ctx, 0x10, []byte("hello"))
//	fmt.Println(ee.Stats().PageWrites) // 1
package sim
