package registry

import (
	"context"
	"sync/atomic"
	"time"
)

// Clock abstracts time for the Gate.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done, returning ctx.Err() in the latter case.
	Sleep(ctx context.Context, d time.Duration) error
}

// realClock is the wall clock.
type realClock struct{}

// Now returns the current wall-clock time.
func (realClock) Now() time.Time { return time.Now() }

// Sleep waits for d on a timer, returning early when ctx is done.
func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Gate enforces a minimum interval between registry requests issued by the process.
//
// Wait takes the gate's single slot, sleeps the remainder of the interval since the
// last issued request and stamps the new issue time before handing the slot back.
// Callers queue on the slot, so no two issue times are ever closer than the interval.
type Gate struct {
	slot     chan struct{}
	clock    Clock
	interval time.Duration
	last     time.Time
	issued   atomic.Uint64
}

// NewGate creates a Gate with the given minimum interval.
//
// Parameters:
//   - interval: Minimum spacing between issued requests; zero or negative disables pacing.
//   - clock: Time source, or nil for the wall clock.
//
// Returns:
//   - *Gate: Ready-to-use gate.
func NewGate(interval time.Duration, clock Clock) *Gate {
	if clock == nil {
		clock = realClock{}
	}

	return &Gate{slot: make(chan struct{}, 1), clock: clock, interval: interval}
}

// Wait blocks until a request may be issued and records its issue time.
//
// Parameters:
//   - ctx: Context bounding the wait.
//
// Returns:
//   - time.Time: The recorded issue time.
//   - error: ctx.Err() if the context ended while waiting; nothing is stamped then.
func (g *Gate) Wait(ctx context.Context) (time.Time, error) {
	select {
	case g.slot <- struct{}{}:
	case <-ctx.Done():
		return time.Time{}, ctx.Err()
	}

	defer func() { <-g.slot }()

	if g.interval > 0 && !g.last.IsZero() {
		if remaining := g.interval - g.clock.Now().Sub(g.last); remaining > 0 {
			if err := g.clock.Sleep(ctx, remaining); err != nil {
				return time.Time{}, err
			}
		}
	}

	g.last = g.clock.Now()
	g.issued.Add(1)

	return g.last, nil
}

// Issued returns the number of requests let through so far.
func (g *Gate) Issued() uint64 {
	return g.issued.Load()
}

// Interval returns the configured minimum spacing.
func (g *Gate) Interval() time.Duration {
	return g.interval
}
