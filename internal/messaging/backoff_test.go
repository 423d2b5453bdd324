package messaging

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffGrowsWithinBounds(t *testing.T) {
	b := Backoff{Initial: 100 * time.Millisecond, Max: 400 * time.Millisecond}

	steps := []time.Duration{100, 200, 400, 400}
	for _, step := range steps {
		step *= time.Millisecond
		d := b.Next()
		assert.GreaterOrEqual(t, d, step/2)
		assert.LessOrEqual(t, d, step)
	}

	b.Reset()
	assert.LessOrEqual(t, b.Next(), 100*time.Millisecond)

	var zero Backoff
	d := zero.Next()
	assert.GreaterOrEqual(t, d, 500*time.Millisecond)
	assert.LessOrEqual(t, d, time.Second)
}

func TestBackoffWaitStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	b := Backoff{Initial: time.Hour, Max: time.Hour}
	assert.ErrorIs(t, b.Wait(ctx), context.Canceled)
}
