package pull

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"baseball_db/ingestion/internal/metrics"
	"baseball_db/ingestion/internal/pacing"
	"baseball_db/ingestion/internal/period"
	"baseball_db/ingestion/internal/tabular"

	"github.com/rs/zerolog/log"
)

// ErrEmptyResult means the provider returned no table at all for a period.
// A header-only table is not empty: it records a period without games.
var ErrEmptyResult = errors.New("provider returned no data")

// Stage is the step of a period fetch that failed.
type Stage string

const (
	StageFetch     Stage = "fetch"
	StageNormalize Stage = "normalize"
	StagePersist   Stage = "persist"
)

// FetchError describes why a single period could not be materialized.
type FetchError struct {
	Period period.Period
	Stage  Stage
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("period %s: %s failed: %v", e.Period, e.Stage, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Result is the typed outcome of one period fetch: a path on success or a
// *FetchError on failure.
type Result struct {
	Period   period.Period
	Path     string
	Rows     int
	Duration time.Duration
	Err      error
}

// OK reports whether the period was persisted
func (r Result) OK() bool {
	return r.Err == nil
}

// Normalize lists the per-table post-processing applied to fetched data.
type Normalize struct {
	// DropColumns are removed before anything else (e.g. a leaked "index").
	DropColumns []string
	// PeriodColumn, when set, is stamped onto every row with the period key.
	PeriodColumn string
	// RequiredColumns drop rows where any of them is blank.
	RequiredColumns []string
}

// apply concatenates the fetched frames and runs the post-processing steps.
func (n Normalize) apply(tables []*tabular.Table, label string) (*tabular.Table, error) {
	if len(tables) == 0 {
		return nil, ErrEmptyResult
	}
	t, err := tabular.Concat(tables...)
	if err != nil {
		return nil, err
	}
	t.DropColumns(n.DropColumns...)
	if len(t.Columns) == 0 {
		return nil, ErrEmptyResult
	}
	if n.PeriodColumn != "" {
		t.SetColumn(n.PeriodColumn, label)
	}
	if removed := t.DropBlank(n.RequiredColumns...); removed > 0 {
		log.Debug().Int("rows", removed).Msg("Dropped rows with blank required columns")
	}
	return t, nil
}

// Fetcher pulls one period from a Source and persists it to Dir/<period>.tsv.gz.
type Fetcher struct {
	Table       string
	Dir         string
	Granularity period.Granularity
	Source      Source
	Pacer       pacing.Pacer
	Normalize   Normalize
	// RecordManifest writes a size sentinel for every persisted file.
	RecordManifest bool
}

// FetchAndPersist paces, fetches, normalizes and writes one period. Failures
// are returned inside the Result as a *FetchError, never as a panic.
func (f *Fetcher) FetchAndPersist(ctx context.Context, p period.Period) Result {
	start := time.Now()
	res := f.fetchAndPersist(ctx, p)
	res.Duration = time.Since(start)

	status := "success"
	if !res.OK() {
		status = "failed"
	}
	metrics.RecordFetch(f.Table, status, res.Duration.Seconds(), res.Rows)

	return res
}

func (f *Fetcher) fetchAndPersist(ctx context.Context, p period.Period) Result {
	fail := func(stage Stage, err error) Result {
		return Result{Period: p, Err: &FetchError{Period: p, Stage: stage, Err: err}}
	}

	if f.Pacer != nil {
		if err := f.Pacer.Wait(ctx); err != nil {
			return fail(StageFetch, err)
		}
	}

	args, err := f.Granularity.FetchArgs(p)
	if err != nil {
		return fail(StageFetch, err)
	}

	log.Info().
		Str("table", f.Table).
		Str("period", p.String()).
		Str("start", args.StartDate()).
		Str("end", args.EndDate()).
		Msg("Pulling data")

	tables, err := safeFetch(ctx, f.Source, Request{Period: p, Range: args})
	if err != nil {
		return fail(StageFetch, err)
	}

	t, err := f.Normalize.apply(tables, p.String())
	if err != nil {
		return fail(StageNormalize, err)
	}

	if err := os.MkdirAll(f.Dir, 0o755); err != nil {
		return fail(StagePersist, fmt.Errorf("failed to create directory %s: %w", f.Dir, err))
	}
	path := filepath.Join(f.Dir, p.Filename())
	if err := persist(path, t); err != nil {
		return fail(StagePersist, err)
	}
	if f.RecordManifest {
		if err := recordManifest(f.Dir, p, path, t.Len()); err != nil {
			return fail(StagePersist, err)
		}
	}

	return Result{Period: p, Path: path, Rows: t.Len()}
}

// persist writes the table and reads its header back so a returned path is
// always a readable file.
func persist(path string, t *tabular.Table) error {
	if err := tabular.WriteFile(path, t, tabular.TSVGzip); err != nil {
		return err
	}
	if _, err := tabular.ReadHeader(path, tabular.TSVGzip); err != nil {
		os.Remove(path)
		return fmt.Errorf("written file is unreadable: %w", err)
	}
	return nil
}

// safeFetch calls the source and turns a panic into an error so that one
// misbehaving provider call cannot take down the batch.
func safeFetch(ctx context.Context, s Source, req Request) (tables []*tabular.Table, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("provider call panicked: %v", r)
		}
	}()
	return s.Fetch(ctx, req)
}
