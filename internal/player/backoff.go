package player

import "time"

// Policy computes capped exponential reconnect delays.
type Policy struct {
	Base time.Duration // Delay unit before doubling
	Cap  time.Duration // Upper bound on any single delay
}

// NextDelay returns the delay before the given reconnect attempt (1-based):
// min(Cap, Base * 2^attempt). The sequence is non-decreasing.
func (p Policy) NextDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := p.Base
	for i := 0; i < attempt; i++ {
		d *= 2
		// Doubling past the cap can never come back down
		if p.Cap > 0 && d >= p.Cap {
			return p.Cap
		}
	}
	if p.Cap > 0 && d > p.Cap {
		return p.Cap
	}
	return d
}
