// Package backoff provides context-aware exponential waits between retries.
package backoff

import (
	"context"
	"time"
)

// Backoff doubles the wait after every completed Backoff call, capped at limit.
type Backoff struct {
	start time.Duration
	limit time.Duration
	next  time.Duration
}

// NewExponential returns a backoff starting at start and never exceeding limit.
// A zero limit disables the cap.
func NewExponential(start, limit time.Duration) *Backoff {
	b := &Backoff{start: start, limit: limit}
	b.Reset()
	return b
}

// Next reports how long the following Backoff call will sleep.
func (b *Backoff) Next() time.Duration { return b.next }

// Reset starts the sequence over, typically after a successful attempt.
func (b *Backoff) Reset() { b.next = b.start }

// Backoff sleeps for the current duration and advances the sequence.
// It returns ctx.Err() if the context ends first.
func (b *Backoff) Backoff(ctx context.Context) error {
	t := time.NewTimer(b.next)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
	}
	b.next *= 2
	if b.limit > 0 && b.next > b.limit {
		b.next = b.limit
	}
	return nil
}
