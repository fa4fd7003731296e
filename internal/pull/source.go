package pull

import (
	"context"
	"errors"
	"fmt"

	"baseball_db/ingestion/internal/pacing"
	"baseball_db/ingestion/internal/period"
	"baseball_db/ingestion/internal/tabular"

	"github.com/rs/zerolog/log"
)

// ErrNoMoreData is returned by a provider call to signal that a paged
// enumeration is exhausted.
var ErrNoMoreData = errors.New("no more data")

// defaultMaxPages bounds paged enumerations whose config sets no limit.
const defaultMaxPages = 100

// Request carries the arguments of one period fetch. Range is zero for
// single-table pulls.
type Request struct {
	Period period.Period
	Range  period.Range
}

// Source fetches the tables making up one period. A source may return several
// tables; they are row-concatenated before persisting.
type Source interface {
	Fetch(ctx context.Context, req Request) ([]*tabular.Table, error)
}

// FetchFunc adapts a single-table provider call into a Source.
type FetchFunc func(ctx context.Context, req Request) (*tabular.Table, error)

func (f FetchFunc) Fetch(ctx context.Context, req Request) ([]*tabular.Table, error) {
	t, err := f(ctx, req)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, nil
	}
	return []*tabular.Table{t}, nil
}

// MultiFetchFunc adapts a provider call returning several frames.
type MultiFetchFunc func(ctx context.Context, req Request) ([]*tabular.Table, error)

func (f MultiFetchFunc) Fetch(ctx context.Context, req Request) ([]*tabular.Table, error) {
	return f(ctx, req)
}

// PageFunc fetches one sub-category (round, page, split) of a period.
type PageFunc func(ctx context.Context, req Request, page int) (*tabular.Table, error)

// Paged enumerates pages 1..MaxPages of a period until the provider returns
// ErrNoMoreData or an empty page. Pacer, when set, runs between pages.
type Paged struct {
	Page     PageFunc
	MaxPages int
	Pacer    pacing.Pacer
}

func (s Paged) Fetch(ctx context.Context, req Request) ([]*tabular.Table, error) {
	max := s.MaxPages
	if max <= 0 {
		max = defaultMaxPages
	}

	var tables []*tabular.Table
	for page := 1; page <= max; page++ {
		if page > 1 && s.Pacer != nil {
			if err := s.Pacer.Wait(ctx); err != nil {
				return nil, err
			}
		}

		t, err := s.Page(ctx, req, page)
		if errors.Is(err, ErrNoMoreData) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to fetch page %d: %w", page, err)
		}
		if t == nil || t.Len() == 0 {
			break
		}

		log.Debug().
			Str("period", req.Period.String()).
			Int("page", page).
			Int("rows", t.Len()).
			Msg("Fetched page")
		tables = append(tables, t)
	}
	return tables, nil
}
