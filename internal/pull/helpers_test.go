package pull

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"baseball_db/ingestion/internal/period"
	"baseball_db/ingestion/internal/tabular"

	"github.com/stretchr/testify/require"
)

func fixedNow(y int, m time.Month, d int) func() time.Time {
	return func() time.Time {
		return time.Date(y, m, d, 9, 0, 0, 0, time.UTC)
	}
}

// writePeriodFile creates a valid cache file with one row
func writePeriodFile(t *testing.T, dir string, p period.Period) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	tbl := tabular.New("player_id", "hr")
	tbl.Append("ruthba01", "60")
	require.NoError(t, tabular.WriteFile(filepath.Join(dir, p.Filename()), tbl, tabular.TSVGzip))
}

func touch(t *testing.T, dir, name string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

// fakeSource returns one row per period and fails for the configured periods.
type fakeSource struct {
	mu       sync.Mutex
	failFor  map[period.Period]error
	requests []Request
}

func (f *fakeSource) Fetch(_ context.Context, req Request) ([]*tabular.Table, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if err, ok := f.failFor[req.Period]; ok {
		return nil, err
	}
	tbl := tabular.New("game_date", "events")
	tbl.Append(req.Range.StartDate(), "home_run")
	tbl.Append("", "strikeout")
	return []*tabular.Table{tbl}, nil
}

func (f *fakeSource) periods() []period.Period {
	out := make([]period.Period, len(f.requests))
	for i, r := range f.requests {
		out[i] = r.Period
	}
	return out
}

var errUpstream = fmt.Errorf("upstream returned 500")
