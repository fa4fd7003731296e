// Package pacing spaces out outbound provider calls with randomized delays.
package pacing

import (
	"context"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"
)

// Pacer blocks before each outbound fetch.
type Pacer interface {
	Wait(ctx context.Context) error
}

// Random waits a uniformly distributed duration in [Min, Max] before each call.
type Random struct {
	Min time.Duration
	Max time.Duration

	rnd   *rand.Rand
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRandom creates a pacer; bounds are normalized so that 0 <= min <= max.
func NewRandom(min, max time.Duration) *Random {
	if min < 0 {
		min = 0
	}
	if max < 0 {
		max = 0
	}
	if min > max {
		min, max = max, min
	}
	return &Random{
		Min:   min,
		Max:   max,
		rnd:   rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep: sleepContext,
	}
}

// Next returns the next delay without waiting
func (p *Random) Next() time.Duration {
	span := p.Max - p.Min
	if span <= 0 {
		return p.Min
	}
	return p.Min + time.Duration(p.rnd.Int63n(int64(span)+1))
}

// Wait sleeps for Next() or until ctx is done
func (p *Random) Wait(ctx context.Context) error {
	d := p.Next()
	log.Debug().Dur("delay", d).Msg("Pacing before fetch")
	return p.sleep(ctx, d)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// None never waits. Used for tests and local replays.
type None struct{}

func (None) Wait(ctx context.Context) error {
	return ctx.Err()
}
