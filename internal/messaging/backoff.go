package messaging

import (
	"context"
	"math/rand/v2"
	"time"
)

// Backoff yields jittered exponential delays between Initial and Max. The zero value waits one
// second, doubling up to thirty.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration

	next time.Duration
}

// Next returns the delay before the following attempt: a random point in the upper half of the
// current step.
func (b *Backoff) Next() time.Duration {
	if b.next <= 0 {
		b.next = b.Initial
		if b.next <= 0 {
			b.next = time.Second
		}
	}
	ceiling := b.Max
	if ceiling <= 0 {
		ceiling = 30 * time.Second
	}

	step := min(b.next, ceiling)
	b.next = min(step*2, ceiling)
	return step/2 + rand.N(step/2+1)
}

// Reset starts the sequence over after a success.
func (b *Backoff) Reset() {
	b.next = 0
}

// Wait sleeps for Next or until ctx ends.
func (b *Backoff) Wait(ctx context.Context) error {
	timer := time.NewTimer(b.Next())
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
