package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"baseball_db/ingestion/internal/cache"
	"baseball_db/ingestion/internal/catalog"
	"baseball_db/ingestion/internal/client"
	"baseball_db/ingestion/internal/metrics"
	"baseball_db/ingestion/internal/pacing"
	"baseball_db/ingestion/internal/pull"

	"github.com/rs/zerolog/log"
)

// buildRefreshers turns every catalog pull into a locked refresher
func buildRefreshers(cat *catalog.Catalog, dataDir string, provider *client.Client, pacer pacing.Pacer, locker cache.Locker, now func() time.Time) ([]pull.Refresher, error) {
	out := make([]pull.Refresher, 0, len(cat.Pulls))
	for _, pc := range cat.Pulls {
		cfg, err := pc.PullConfig(dataDir, now)
		if err != nil {
			return nil, fmt.Errorf("failed to configure %s.%s: %w", pc.Schema, pc.Name, err)
		}
		source := provider.Source(pc.Source, pacer)

		var r pull.Refresher
		if pc.Kind == catalog.KindSingle {
			r = pull.NewSingleTable(cfg, source, pacer)
		} else {
			r = pull.NewPuller(cfg, source, pacer)
		}
		out = append(out, cache.Guard(r, locker))
	}
	return out, nil
}

// refreshStamps reads the time a table was last refreshed
type refreshStamps interface {
	LastRefresh(ctx context.Context, name string) (time.Time, bool, error)
}

// logLastRefresh reports when each table was last refreshed by any run
func logLastRefresh(ctx context.Context, stamps refreshStamps, refreshers []pull.Refresher) {
	for _, r := range refreshers {
		at, ok, err := stamps.LastRefresh(ctx, r.Name())
		switch {
		case err != nil:
			log.Warn().Err(err).Str("table", r.Name()).Msg("Failed to read last refresh time")
		case !ok:
			log.Info().Str("table", r.Name()).Msg("Table has never been refreshed")
		default:
			log.Info().
				Str("table", r.Name()).
				Time("last_refresh", at).
				Dur("age", time.Since(at).Round(time.Second)).
				Msg("Last refresh")
		}
	}
}

// runAll refreshes every table in catalog order. Period failures are part of
// the summaries; an error from a whole table is logged, the remaining tables
// still run, and the first such error is returned.
func runAll(ctx context.Context, refreshers []pull.Refresher) error {
	start := time.Now()
	var firstErr error
	failedPeriods := 0

	for _, r := range refreshers {
		if ctx.Err() != nil {
			log.Warn().Msg("Refresh cancelled")
			break
		}

		summary, err := r.Refresh(ctx)
		if errors.Is(err, cache.ErrLockHeld) {
			log.Warn().Str("table", r.Name()).Msg("Table is being refreshed by another run, skipping")
			continue
		}
		if err != nil {
			log.Error().Err(err).Str("table", r.Name()).Msg("Refresh failed")
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to refresh %s: %w", r.Name(), err)
			}
			continue
		}

		failedPeriods += len(summary.Failed())
		log.Info().
			Str("table", r.Name()).
			Int("outstanding", summary.Outstanding).
			Int("succeeded", summary.Succeeded()).
			Int("failed", len(summary.Failed())).
			Msg("Refresh complete")
	}

	status := "success"
	switch {
	case firstErr != nil || ctx.Err() != nil:
		status = "error"
	case failedPeriods > 0:
		status = "partial"
	}
	metrics.RecordRun("refresh", status, time.Since(start).Seconds())

	if firstErr == nil {
		firstErr = ctx.Err()
	}
	return firstErr
}
