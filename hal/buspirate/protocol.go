package buspirate

// Binary-mode command bytes.
const (
	cmdReset      = 0x00 // enter (or return to) bit-bang mode
	cmdI2CMode    = 0x02 // bit-bang mode: switch to I2C
	cmdExit       = 0x0F // bit-bang mode: reset to the user terminal
	cmdStart      = 0x02
	cmdStop       = 0x03
	cmdReadByte   = 0x04
	cmdACK        = 0x06
	cmdNACK       = 0x07
	cmdBulkWrite  = 0x10 // low nibble: count-1
	cmdPeripheral = 0x40 // low nibble: power, pull-ups, AUX, CS
	cmdSpeed      = 0x60 // low bits: Speed
)

// Peripheral configuration bits.
const (
	periphPower   = 0x08
	periphPullups = 0x04
)

// Replies.
const (
	replyOK  = 0x01
	replyACK = 0x00
)

const (
	bannerBinary = "BBIO1"
	bannerI2C    = "I2C1"
)

// maxBulk is the largest bulk write payload.
const maxBulk = 16

// resetAttempts bounds the number of 0x00 bytes sent while looking for the
// bit-bang banner.
const resetAttempts = 20

// Speed selects the I2C clock rate.
type Speed uint8

// Supported bus speeds.
const (
	Speed5kHz Speed = iota
	Speed50kHz
	Speed100kHz
	Speed400kHz
)

// String returns the clock rate.
func (s Speed) String() string {
	switch s {
	case Speed5kHz:
		return "5kHz"
	case Speed50kHz:
		return "50kHz"
	case Speed100kHz:
		return "100kHz"
	case Speed400kHz:
		return "400kHz"
	default:
		return "unknown"
	}
}
