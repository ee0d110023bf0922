package hal

import (
	"testing"
	"time"
)

func TestAddress(t *testing.T) {
	tests := []struct {
		addr      Address
		valid     bool
		writeByte byte
		readByte  byte
		str       string
	}{
		{0x50, true, 0xA0, 0xA1, "0x50"},
		{0x53, true, 0xA6, 0xA7, "0x53"},
		{0x7F, true, 0xFE, 0xFF, "0x7f"},
		{0x80, false, 0x00, 0x01, "0x80"},
	}

	for _, tt := range tests {
		t.Run(tt.str, func(t *testing.T) {
			if got := tt.addr.Valid(); got != tt.valid {
				t.Errorf("Valid() = %v, want %v", got, tt.valid)
			}
			if got := tt.addr.Wire(false); got != tt.writeByte {
				t.Errorf("Wire(false) = 0x%02x, want 0x%02x", got, tt.writeByte)
			}
			if got := tt.addr.Wire(true); got != tt.readByte {
				t.Errorf("Wire(true) = 0x%02x, want 0x%02x", got, tt.readByte)
			}
			if got := tt.addr.String(); got != tt.str {
				t.Errorf("String() = %q, want %q", got, tt.str)
			}
		})
	}
}

func TestDelayFunc(t *testing.T) {
	var total time.Duration
	var d Delayer = DelayFunc(func(d time.Duration) { total += d })

	d.Delay(5 * time.Millisecond)
	d.Delay(5 * time.Millisecond)

	if total != 10*time.Millisecond {
		t.Errorf("total delay = %v, want 10ms", total)
	}
}

func TestSleepDelayer(t *testing.T) {
	start := time.Now()
	SleepDelayer.Delay(2 * time.Millisecond)
	if elapsed := time.Since(start); elapsed < 2*time.Millisecond {
		t.Errorf("SleepDelayer returned after %v, want >= 2ms", elapsed)
	}
}
