package scrape

import (
	"context"
	"time"
)

// Pacer pauses between consecutive units of work.
type Pacer interface {
	Wait(ctx context.Context) error
}

// Gap is a Pacer that sleeps a fixed delay. Callers wait only between units,
// after the previous one has finished, so a slow fetch never shortens the
// pause before the next request.
type Gap struct {
	delay time.Duration
}

// NewPacer returns a Gap of delay. A non-positive delay disables pacing.
func NewPacer(delay time.Duration) Gap {
	return Gap{delay: delay}
}

// Wait blocks for the delay or until ctx is done.
func (g Gap) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if g.delay <= 0 {
		return nil
	}
	t := time.NewTimer(g.delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
