package pull

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"baseball_db/ingestion/internal/metrics"
	"baseball_db/ingestion/internal/period"

	"github.com/rs/zerolog/log"
)

// Plan is the outcome of one coverage resolution.
type Plan struct {
	// Potential is every period that could exist between the minimum year and now.
	Potential period.Set
	// Actual is every well-formed period file found on disk.
	Actual period.Set
	// Covered is Actual restricted to Potential.
	Covered period.Set
	// Outstanding is Potential minus Actual, most recent first.
	Outstanding []period.Period
}

// Batch returns the first limit outstanding periods; limit <= 0 means all.
func (p *Plan) Batch(limit int) []period.Period {
	if limit <= 0 || limit >= len(p.Outstanding) {
		return p.Outstanding
	}
	return p.Outstanding[:limit]
}

// Resolver computes potential and actual coverage of a period directory.
type Resolver struct {
	Table             string
	Granularity       period.Granularity
	MinYear           int
	IncludeInProgress bool
	// VerifyManifest quarantines period files that the manifest does not vouch for.
	VerifyManifest bool
	Now            func() time.Time
}

func (r *Resolver) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// Potential returns the periods that could possibly exist as of now
func (r *Resolver) Potential() period.Set {
	return r.Granularity.Potential(r.MinYear, r.now(), r.IncludeInProgress)
}

// Actual lists the period files in dir. Files carrying the "tsv" infix whose
// token does not round-trip are deleted before being counted. A missing
// directory is created and yields empty coverage.
func (r *Resolver) Actual(dir string) (period.Set, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	var manifest Manifest
	if r.VerifyManifest {
		if manifest, err = ReadManifest(dir); err != nil {
			return nil, err
		}
	}

	actual := make(period.Set)
	malformed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		token, ok := period.Token(e.Name())
		if !ok {
			continue
		}

		path := filepath.Join(dir, e.Name())
		p, ok := r.Granularity.Parse(token)
		if ok && e.Name() == p.Filename() && (manifest == nil || manifest.Matches(p, path)) {
			actual.Add(p)
			continue
		}

		if err := os.Remove(path); err != nil {
			return nil, fmt.Errorf("failed to remove malformed file %s: %w", path, err)
		}
		malformed++
		log.Warn().
			Str("table", r.Table).
			Str("path", path).
			Msg("Removed malformed cache file")
	}
	metrics.RecordRemoved(r.Table, "malformed", malformed)

	return actual, nil
}

// Resolve computes the coverage plan for dir
func (r *Resolver) Resolve(dir string) (*Plan, error) {
	actual, err := r.Actual(dir)
	if err != nil {
		return nil, err
	}
	potential := r.Potential()

	plan := &Plan{
		Potential:   potential,
		Actual:      actual,
		Covered:     actual.Intersect(potential),
		Outstanding: potential.Difference(actual).Descending(),
	}
	metrics.RecordCoverage(r.Table, len(plan.Covered), len(plan.Outstanding))

	return plan, nil
}
