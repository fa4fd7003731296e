package cache

import (
	"context"
	"time"

	"baseball_db/ingestion/internal/pull"

	"github.com/rs/zerolog/log"
)

// Guarded wraps a refresher with the table lock. The refresh is skipped with
// ErrLockHeld when another run is already working on the table.
type Guarded struct {
	pull.Refresher
	Locker Locker
	Now    func() time.Time
}

// Guard returns r wrapped with l
func Guard(r pull.Refresher, l Locker) *Guarded {
	return &Guarded{Refresher: r, Locker: l, Now: time.Now}
}

func (g *Guarded) Refresh(ctx context.Context) (*pull.Summary, error) {
	name := g.Name()

	release, err := g.Locker.Acquire(ctx, name)
	if err != nil {
		return nil, err
	}
	defer func() {
		// release even if the run was cancelled
		if err := release(context.WithoutCancel(ctx)); err != nil {
			log.Warn().Err(err).Str("table", name).Msg("Failed to release lock")
		}
	}()

	summary, err := g.Refresher.Refresh(ctx)
	if err != nil {
		return summary, err
	}

	if err := g.Locker.MarkRefreshed(ctx, name, g.Now()); err != nil {
		log.Warn().Err(err).Str("table", name).Msg("Failed to record refresh time")
	}
	return summary, nil
}
