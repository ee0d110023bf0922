package pkg

import "errors"

// Driver errors.
var (
	// ErrOutOfRange indicates a request extends past the device capacity.
	// It is reported before any bus activity takes place.
	ErrOutOfRange = errors.New("address range exceeds device capacity")

	// ErrShortTransfer indicates the bus moved fewer bytes than requested.
	ErrShortTransfer = errors.New("short bus transfer")

	// ErrNAK indicates the target did not acknowledge an address or data byte.
	ErrNAK = errors.New("NAK received")

	// ErrTimeout indicates a bus transaction timed out.
	ErrTimeout = errors.New("bus timeout")

	// ErrNoDevice indicates the bus adapter or target is not present.
	ErrNoDevice = errors.New("device not present")

	// ErrProtocol indicates an adapter replied with something unexpected.
	ErrProtocol = errors.New("protocol error")

	// ErrInvalidParameter indicates an invalid parameter was provided.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrInvalidConfig indicates a device configuration is inconsistent.
	ErrInvalidConfig = errors.New("invalid device configuration")

	// ErrNotSupported indicates an unsupported operation or feature.
	ErrNotSupported = errors.New("not supported")

	// ErrClosed indicates the bus has already been closed.
	ErrClosed = errors.New("bus closed")
)

// Status classifies the outcome of a single bus transfer.
type Status int

// Transfer status values.
const (
	StatusOK      Status = iota // All bytes transferred and acknowledged
	StatusNAK                   // Target did not acknowledge
	StatusShort                 // Fewer bytes than requested
	StatusTimeout               // Adapter timed out
	StatusError                 // Any other failure
)

// String returns a string representation of the transfer status.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNAK:
		return "nak"
	case StatusShort:
		return "short"
	case StatusTimeout:
		return "timeout"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Error returns the corresponding error for the transfer status.
func (s Status) Error() error {
	switch s {
	case StatusOK:
		return nil
	case StatusNAK:
		return ErrNAK
	case StatusShort:
		return ErrShortTransfer
	case StatusTimeout:
		return ErrTimeout
	default:
		return ErrProtocol
	}
}
