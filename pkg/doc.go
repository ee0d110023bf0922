// Package pkg provides shared utilities for the M24Cxx EEPROM driver.
//
// This package contains common functionality used by the driver and by
// every bus HAL, including:
//
//   - Structured logging via Go's standard [log/slog] package
//   - Sentinel errors for range, transfer and adapter failures
//   - Component identifiers for log filtering
//
// # Logging
//
// The logging subsystem wraps [log/slog] with a component attribute:
//
//	pkg.SetLogLevel(slog.LevelDebug)
//	pkg.LogDebug(pkg.ComponentEEPROM, "page written", "addr", 0x10)
//
// # Errors
//
// Failures are reported as wrapped sentinel values:
//
//	if errors.Is(err, pkg.ErrOutOfRange) {
//	    // nothing was sent on the bus
//	}
package pkg
