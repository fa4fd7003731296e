package pull

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"baseball_db/ingestion/internal/metrics"
	"baseball_db/ingestion/internal/period"

	"github.com/rs/zerolog/log"
)

// Invalidator removes the most recent period files so they are fetched again.
// Upstream data for the latest period(s) is incomplete until they have
// fully elapsed.
type Invalidator struct {
	Table       string
	Granularity period.Granularity
}

// Invalidate deletes the Granularity.InvalidationCount() most recent
// well-formed period files in dir and returns the periods removed.
func (i *Invalidator) Invalidate(dir string) ([]period.Period, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		log.Info().Str("table", i.Table).Msg("There is no data to remove")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	present := make(period.Set)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		token, ok := period.Token(e.Name())
		if !ok {
			continue
		}
		if p, ok := i.Granularity.Parse(token); ok && e.Name() == p.Filename() {
			present.Add(p)
		}
	}
	if len(present) == 0 {
		log.Info().Str("table", i.Table).Msg("There is no data to remove")
		return nil, nil
	}

	recent := present.Descending()
	if n := i.Granularity.InvalidationCount(); n < len(recent) {
		recent = recent[:n]
	}

	removed := make([]period.Period, 0, len(recent))
	for _, p := range recent {
		path := filepath.Join(dir, p.Filename())
		if err := os.Remove(path); err != nil {
			metrics.RecordRemoved(i.Table, "invalidated", len(removed))
			return removed, fmt.Errorf("failed to remove %s: %w", path, err)
		}
		removed = append(removed, p)
		log.Info().
			Str("table", i.Table).
			Str("path", path).
			Msg("Removed most recent data to refresh it")
	}
	metrics.RecordRemoved(i.Table, "invalidated", len(removed))

	return removed, nil
}
