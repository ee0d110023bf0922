package sim

import "github.com/ardnew/m24cxx/hal"

// Target is a device attached to a simulated [Wire].
type Target interface {
	// Match reports whether the target answers to the 7-bit address.
	Match(addr hal.Address) bool

	// Start notifies the target of a START or repeated START condition.
	Start()

	// Address delivers the address byte (including the R/W bit) to a
	// matching target. It returns the target's acknowledge.
	Address(b byte) bool

	// Send delivers a data byte written by the controller and returns the
	// target's acknowledge.
	Send(b byte) bool

	// Recv returns the next byte read by the controller.
	Recv() byte

	// Stop notifies the target of a STOP condition.
	Stop()
}

// Wire is the byte-level signalling layer of the simulated bus. Its method
// set mirrors a bit-banged controller: Start, Send, Recv, Stop.
type Wire struct {
	targets    []Target
	active     Target
	started    bool
	expectAddr bool
}

// Attach connects a target to the wire.
func (w *Wire) Attach(t Target) {
	w.targets = append(w.targets, t)
}

// Start issues a START, or a repeated START when the bus is already held.
func (w *Wire) Start() {
	w.started = true
	w.expectAddr = true
	w.active = nil
	for _, t := range w.targets {
		t.Start()
	}
}

// Send clocks one byte out to the bus and returns the acknowledge. The
// first byte after a START is the address byte.
func (w *Wire) Send(b byte) bool {
	if !w.started {
		return false
	}
	if w.expectAddr {
		w.expectAddr = false
		addr := hal.Address(b >> 1)
		for _, t := range w.targets {
			if t.Match(addr) && t.Address(b) {
				w.active = t
				return true
			}
		}
		return false
	}
	if w.active == nil {
		return false
	}
	return w.active.Send(b)
}

// Recv clocks one byte in from the addressed target. With nobody driving
// the bus the pulled-up lines read as 0xFF.
func (w *Wire) Recv() byte {
	if !w.started || w.active == nil {
		return 0xFF
	}
	return w.active.Recv()
}

// Stop issues a STOP and releases the bus.
func (w *Wire) Stop() {
	w.started = false
	w.expectAddr = false
	w.active = nil
	for _, t := range w.targets {
		t.Stop()
	}
}

// Held reports whether a transaction is open (START without STOP).
func (w *Wire) Held() bool {
	return w.started
}
