// Package linux provides a two-wire bus HAL for Linux using the i2c-dev
// character devices (/dev/i2c-N).
//
// Transfers are issued with the I2C_RDWR ioctl through
// [golang.org/x/sys/unix]; there is no cgo dependency. Because the kernel
// ends every I2C_RDWR call with a STOP, held transfers (nostop) are queued
// and the queue is flushed as one combined transaction, with repeated
// starts between messages, when a transfer releases the bus.
//
// A write that follows a held write to the same address is appended to the
// queued message instead of starting a new one, so an EEPROM offset byte
// and its page data reach the chip as a single write message.
//
// # Requirements
//
// The i2c-dev module must be loaded and the user needs read/write access
// to the device node, typically through membership of the i2c group.
//
// # Usage
//
//	bus, err := linux.Open("/dev/i2c-1")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer bus.Close()
//
//	dev := eeprom.New(bus)
package linux
