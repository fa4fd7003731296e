package pull

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"baseball_db/ingestion/internal/period"
	"baseball_db/ingestion/internal/tabular"

	"github.com/rs/zerolog/log"
)

// ErrNoPeriodFiles is returned when a directory has nothing to aggregate.
// Writing an empty consolidated table over a good one would be worse than failing.
var ErrNoPeriodFiles = errors.New("no period files to aggregate")

// PeriodFiles returns the well-formed period files in dir, oldest first.
// Malformed names are skipped, not removed.
func PeriodFiles(dir string, g period.Granularity) ([]period.Period, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	found := make(period.Set)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		token, ok := period.Token(e.Name())
		if !ok {
			continue
		}
		if p, ok := g.Parse(token); ok && e.Name() == p.Filename() {
			found.Add(p)
		}
	}
	return found.Ascending(), nil
}

// Aggregate concatenates every period file in dir into the consolidated file
// at out and returns the number of rows written.
func Aggregate(dir, out string, g period.Granularity) (int, error) {
	periods, err := PeriodFiles(dir, g)
	if err != nil {
		return 0, err
	}
	if len(periods) == 0 {
		return 0, fmt.Errorf("%s: %w", dir, ErrNoPeriodFiles)
	}

	log.Info().Str("path", out).Int("files", len(periods)).Msg("Beginning to aggregate data")

	tables := make([]*tabular.Table, 0, len(periods))
	for _, p := range periods {
		t, err := tabular.ReadFile(filepath.Join(dir, p.Filename()), tabular.TSVGzip, 0)
		if err != nil {
			return 0, fmt.Errorf("failed to read period %s: %w", p, err)
		}
		tables = append(tables, t)
	}

	merged, err := tabular.Concat(tables...)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return 0, fmt.Errorf("failed to create directory for %s: %w", out, err)
	}
	if err := tabular.WriteFile(out, merged, tabular.TSVGzip); err != nil {
		return 0, err
	}

	log.Info().Str("path", out).Int("rows", merged.Len()).Msg("Finished aggregating data")
	return merged.Len(), nil
}
