package broadcast

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer enforces a minimum interval between consecutive sends. It is a thin
// wrapper over a token limiter (one token per interval, burst of one) so the
// pacing policy can be tested apart from delivery.
type Pacer struct {
	lim *rate.Limiter
}

func NewPacer(interval time.Duration) *Pacer {
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	lim := rate.NewLimiter(rate.Every(interval), 1)
	// Drain the token the limiter starts with, so the very first Wait already
	// costs a full interval. The pause is mandatory after every attempt,
	// including the first.
	lim.Allow()
	return &Pacer{lim: lim}
}

// Wait blocks until the next send slot or until ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	return p.lim.Wait(ctx)
}
