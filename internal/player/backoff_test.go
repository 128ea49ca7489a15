package player

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPolicy_NextDelay(t *testing.T) {
	p := Policy{Base: time.Second, Cap: time.Minute}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: 0, want: time.Second},
		{attempt: 1, want: 2 * time.Second},
		{attempt: 2, want: 4 * time.Second},
		{attempt: 5, want: 32 * time.Second},
		{attempt: 6, want: time.Minute}, // 64s capped
		{attempt: 7, want: time.Minute},
		{attempt: 60, want: time.Minute}, // would overflow without the cap
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, p.NextDelay(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestPolicy_NonDecreasing(t *testing.T) {
	p := Policy{Base: 500 * time.Millisecond, Cap: 30 * time.Second}

	prev := time.Duration(0)
	for n := 0; n <= 20; n++ {
		d := p.NextDelay(n)
		assert.GreaterOrEqual(t, d, prev, "delay sequence must be non-decreasing")
		assert.LessOrEqual(t, d, p.Cap)
		prev = d
	}
}

func TestPolicy_NegativeAttempt(t *testing.T) {
	p := Policy{Base: time.Second, Cap: time.Minute}
	assert.Equal(t, time.Second, p.NextDelay(-3))
}
