// Package buspirate provides a two-wire bus HAL backed by a Bus Pirate
// adapter in binary I2C mode.
//
// The adapter is reached over its USB serial port, opened with
// [github.com/pkg/term] at 115200 baud in raw mode. [Open] enters binary
// bit-bang mode, switches to I2C mode, sets the bus speed and enables the
// on-board power supply and pull-ups.
//
// Each transfer is expanded into Bus Pirate commands: START (or repeated
// START), a bulk write of the address byte and data in groups of up to 16
// bytes with a per-byte ACK check, single-byte reads acknowledged on all
// but the final byte, and STOP unless the bus is held. A write that follows
// a held write to the same address continues the open write message
// without a new START.
//
// [NewWithPort] accepts any io.ReadWriter, which is how the tests drive a
// scripted adapter.
package buspirate
