package engine

import (
	"context"
	"math/rand/v2"
	"time"
)

// Pacer delays the natural respondent so replies do not arrive at machine
// speed.
type Pacer interface {
	Wait(ctx context.Context) error
}

// PacerFunc adapts a plain function to the Pacer interface.
type PacerFunc func(ctx context.Context) error

// Wait implements Pacer.
func (f PacerFunc) Wait(ctx context.Context) error { return f(ctx) }

// NoPacing never waits.
var NoPacing Pacer = PacerFunc(func(ctx context.Context) error { return ctx.Err() })

// RandomPacer waits a uniformly random duration in [Min, Max].
type RandomPacer struct {
	Min time.Duration
	Max time.Duration
}

// NewRandomPacer returns a pacer waiting between min and max. Swapped bounds
// are normalized.
func NewRandomPacer(min, max time.Duration) *RandomPacer {
	if max < min {
		min, max = max, min
	}
	return &RandomPacer{Min: min, Max: max}
}

// Delay picks the next delay.
func (p *RandomPacer) Delay() time.Duration {
	if p.Max <= p.Min {
		return p.Min
	}
	return p.Min + rand.N(p.Max-p.Min+1)
}

// Wait implements Pacer. It returns early with ctx.Err() on cancellation.
func (p *RandomPacer) Wait(ctx context.Context) error {
	d := p.Delay()
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
