package sim

import "time"

// Clock is a virtual monotonic clock. It implements [hal.Delayer] by
// advancing itself instead of sleeping.
//
// The zero value is a clock at time zero.
type Clock struct {
	now    time.Duration
	delays []time.Duration
}

// Now returns the elapsed virtual time.
func (c *Clock) Now() time.Duration {
	return c.now
}

// Delay advances the clock by d and records the request.
func (c *Clock) Delay(d time.Duration) {
	if d < 0 {
		d = 0
	}
	c.now += d
	c.delays = append(c.delays, d)
}

// Advance moves the clock forward without recording a delay request.
func (c *Clock) Advance(d time.Duration) {
	if d > 0 {
		c.now += d
	}
}

// Delays returns a copy of every duration passed to Delay, in order.
func (c *Clock) Delays() []time.Duration {
	out := make([]time.Duration, len(c.delays))
	copy(out, c.delays)
	return out
}

// ResetDelays forgets the recorded delay requests. The current time is kept.
func (c *Clock) ResetDelays() {
	c.delays = c.delays[:0]
}
