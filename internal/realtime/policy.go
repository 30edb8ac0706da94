package realtime

import (
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Policy configures reconnection.
type Policy struct {
	BaseDelay   time.Duration
	CapDelay    time.Duration
	MaxAttempts int
}

// DefaultPolicy returns 1s base delay, 30s cap and 5 attempts.
func DefaultPolicy() Policy {
	return Policy{
		BaseDelay:   time.Second,
		CapDelay:    30 * time.Second,
		MaxAttempts: 5,
	}
}

func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.BaseDelay <= 0 {
		p.BaseDelay = d.BaseDelay
	}
	if p.CapDelay <= 0 {
		p.CapDelay = d.CapDelay
	}
	if p.CapDelay < p.BaseDelay {
		p.CapDelay = p.BaseDelay
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	return p
}

// Delay returns min(BaseDelay * 2^attempts, CapDelay).
func (p Policy) Delay(attempts int) time.Duration {
	b := p.schedule()
	var d time.Duration
	for i := 0; i <= attempts; i++ {
		d = b.NextBackOff()
		if d >= p.CapDelay {
			return p.CapDelay
		}
	}
	return d
}

// schedule returns a jitter-free doubling backoff positioned at attempt zero.
func (p Policy) schedule() *backoff.ExponentialBackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     p.BaseDelay,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         p.CapDelay,
	}
	b.Reset()
	return b
}
