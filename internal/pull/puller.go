package pull

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"baseball_db/ingestion/internal/metrics"
	"baseball_db/ingestion/internal/pacing"
	"baseball_db/ingestion/internal/period"

	"github.com/rs/zerolog/log"
)

// Refresher is one configured pull that can be brought up to date.
type Refresher interface {
	Name() string
	Refresh(ctx context.Context) (*Summary, error)
}

// Summary reports what a refresh did.
type Summary struct {
	Table       string
	Invalidated []period.Period
	Outstanding int
	Results     []Result
	Aggregated  int
}

// Succeeded counts persisted periods
func (s *Summary) Succeeded() int {
	n := 0
	for _, r := range s.Results {
		if r.OK() {
			n++
		}
	}
	return n
}

// Failed returns the failed results
func (s *Summary) Failed() []Result {
	var out []Result
	for _, r := range s.Results {
		if !r.OK() {
			out = append(out, r)
		}
	}
	return out
}

// Config describes a period-partitioned pull.
type Config struct {
	Name              string
	Schema            string
	DataDir           string
	Granularity       period.Granularity
	MinYear           int
	Limit             int
	IncludeInProgress bool
	Aggregate         bool
	VerifyManifest    bool
	Normalize         Normalize
	Now               func() time.Time
}

// TablePath is the consolidated file, data/<schema>/<name>.tsv.gz
func (c Config) TablePath() string {
	return filepath.Join(c.DataDir, c.Schema, c.Name+period.FileSuffix)
}

// DirectoryPath is the per-period cache, data/<schema>/<name>_dir
func (c Config) DirectoryPath() string {
	return filepath.Join(c.DataDir, c.Schema, c.Name+"_dir")
}

// Puller keeps a per-period directory up to date: it invalidates the most
// recent periods, resolves what is missing and fetches a bounded batch.
type Puller struct {
	cfg         Config
	resolver    *Resolver
	invalidator *Invalidator
	fetcher     *Fetcher
}

// NewPuller wires the resolver, invalidator and fetcher for one pull
func NewPuller(cfg Config, source Source, pacer pacing.Pacer) *Puller {
	table := cfg.Schema + "." + cfg.Name
	dir := cfg.DirectoryPath()

	return &Puller{
		cfg: cfg,
		resolver: &Resolver{
			Table:             table,
			Granularity:       cfg.Granularity,
			MinYear:           cfg.MinYear,
			IncludeInProgress: cfg.IncludeInProgress,
			VerifyManifest:    cfg.VerifyManifest,
			Now:               cfg.Now,
		},
		invalidator: &Invalidator{
			Table:       table,
			Granularity: cfg.Granularity,
		},
		fetcher: &Fetcher{
			Table:          table,
			Dir:            dir,
			Granularity:    cfg.Granularity,
			Source:         source,
			Pacer:          pacer,
			Normalize:      cfg.Normalize,
			RecordManifest: cfg.VerifyManifest,
		},
	}
}

func (p *Puller) Name() string {
	return p.cfg.Schema + "." + p.cfg.Name
}

// Refresh runs one cycle. Only directory errors, cancellation and aggregation
// failures are returned; a failed period is logged and recorded in the summary.
func (p *Puller) Refresh(ctx context.Context) (*Summary, error) {
	dir := p.cfg.DirectoryPath()
	summary := &Summary{Table: p.Name()}

	log.Info().Str("table", p.Name()).Msg("Beginning to update the data")

	invalidated, err := p.invalidator.Invalidate(dir)
	summary.Invalidated = invalidated
	if err != nil {
		return summary, fmt.Errorf("failed to invalidate recent data: %w", err)
	}

	plan, err := p.resolver.Resolve(dir)
	if err != nil {
		return summary, fmt.Errorf("failed to resolve coverage: %w", err)
	}
	summary.Outstanding = len(plan.Outstanding)

	batch := plan.Batch(p.cfg.Limit)
	log.Info().
		Str("table", p.Name()).
		Str("granularity", p.cfg.Granularity.Name()).
		Int("outstanding", len(plan.Outstanding)).
		Int("pulling", len(batch)).
		Msg("Resolved coverage")

	for _, key := range batch {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		res := p.fetcher.FetchAndPersist(ctx, key)
		summary.Results = append(summary.Results, res)
		if !res.OK() {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return summary, ctxErr
			}
			log.Warn().
				Err(res.Err).
				Str("table", p.Name()).
				Str("period", key.String()).
				Msg("Could not pull data for period")
			continue
		}

		log.Info().
			Str("table", p.Name()).
			Str("path", res.Path).
			Int("rows", res.Rows).
			Dur("duration", res.Duration).
			Msg("Wrote data")
	}

	if p.cfg.Aggregate {
		rows, err := Aggregate(dir, p.cfg.TablePath(), p.cfg.Granularity)
		if err != nil {
			return summary, fmt.Errorf("failed to aggregate %s: %w", p.Name(), err)
		}
		summary.Aggregated = rows
	}

	log.Info().
		Str("table", p.Name()).
		Int("succeeded", summary.Succeeded()).
		Int("failed", len(summary.Failed())).
		Msg("Finished updating the data")

	return summary, nil
}

// SingleTable pulls a non-periodic source in full on every run and writes it
// to data/<schema>/<name>.tsv.gz.
type SingleTable struct {
	cfg    Config
	source Source
	pacer  pacing.Pacer
}

// NewSingleTable creates a whole-table pull; only Name, Schema, DataDir and
// Normalize of cfg are used.
func NewSingleTable(cfg Config, source Source, pacer pacing.Pacer) *SingleTable {
	return &SingleTable{cfg: cfg, source: source, pacer: pacer}
}

func (s *SingleTable) Name() string {
	return s.cfg.Schema + "." + s.cfg.Name
}

// Refresh fetches the whole table once. Like a period fetch, a provider
// failure is reported in the summary rather than returned.
func (s *SingleTable) Refresh(ctx context.Context) (*Summary, error) {
	summary := &Summary{Table: s.Name(), Outstanding: 1}
	start := time.Now()

	res := s.refresh(ctx)
	res.Duration = time.Since(start)
	summary.Results = append(summary.Results, res)

	status := "success"
	if !res.OK() {
		status = "failed"
		if ctxErr := ctx.Err(); ctxErr != nil {
			return summary, ctxErr
		}
		log.Warn().Err(res.Err).Str("table", s.Name()).Msg("Could not pull table")
	} else {
		log.Info().Str("table", s.Name()).Str("path", res.Path).Int("rows", res.Rows).Msg("Wrote data")
	}
	metrics.RecordFetch(s.Name(), status, res.Duration.Seconds(), res.Rows)

	return summary, nil
}

func (s *SingleTable) refresh(ctx context.Context) Result {
	fail := func(stage Stage, err error) Result {
		return Result{Err: &FetchError{Stage: stage, Err: err}}
	}

	if s.pacer != nil {
		if err := s.pacer.Wait(ctx); err != nil {
			return fail(StageFetch, err)
		}
	}

	tables, err := safeFetch(ctx, s.source, Request{})
	if err != nil {
		return fail(StageFetch, err)
	}
	t, err := s.cfg.Normalize.apply(tables, "")
	if err != nil {
		return fail(StageNormalize, err)
	}

	path := s.cfg.TablePath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fail(StagePersist, err)
	}
	if err := persist(path, t); err != nil {
		return fail(StagePersist, err)
	}
	return Result{Path: path, Rows: t.Len()}
}
