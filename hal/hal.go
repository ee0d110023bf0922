package hal

import (
	"context"
	"fmt"
	"time"
)

// Address is a right-aligned 7-bit two-wire bus address. It does not
// include the R/W bit.
type Address uint8

// MaxAddress is the largest valid 7-bit bus address.
const MaxAddress Address = 0x7F

// Valid reports whether a fits in 7 bits.
func (a Address) Valid() bool {
	return a <= MaxAddress
}

// Wire returns the address byte sent on the bus, with the R/W bit set
// for a read transfer.
func (a Address) Wire(read bool) byte {
	if read {
		return byte(a)<<1 | 0x01
	}
	return byte(a) << 1
}

// String returns the address in 0x-prefixed hex.
func (a Address) String() string {
	return fmt.Sprintf("0x%02x", uint8(a))
}

// Bus defines the Hardware Abstraction Layer interface for a two-wire bus
// controller.
//
// Both transfer methods block until the transfer completes or fails. They
// return the number of bytes actually moved; a count short of len(p) is a
// failed transfer even if the returned error is nil.
//
// When nostop is true the controller does not release the bus after the
// transfer, so the next transfer continues the same device transaction. A
// WriteBlocking that follows a held WriteBlocking to the same address
// continues the same write message without a repeated start; any other
// follow-up transfer begins with a repeated start.
//
// A Bus is not safe for concurrent use. Callers serialize their own access.
type Bus interface {
	// WriteBlocking writes p to the target at addr.
	WriteBlocking(ctx context.Context, addr Address, p []byte, nostop bool) (int, error)

	// ReadBlocking reads len(p) bytes from the target at addr into p.
	ReadBlocking(ctx context.Context, addr Address, p []byte, nostop bool) (int, error)
}

// Delayer blocks the caller for a fixed duration. It is injected wherever
// a device mandates a settle time, so simulations can advance virtual time
// instead of sleeping.
type Delayer interface {
	Delay(d time.Duration)
}

// DelayFunc adapts an ordinary function to the Delayer interface.
type DelayFunc func(d time.Duration)

// Delay calls f(d).
func (f DelayFunc) Delay(d time.Duration) {
	f(d)
}

// SleepDelayer parks the calling goroutine with time.Sleep.
var SleepDelayer Delayer = DelayFunc(time.Sleep)
