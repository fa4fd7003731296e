package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"baseball_db/ingestion/internal/cache"
	"baseball_db/ingestion/internal/catalog"
	"baseball_db/ingestion/internal/client"
	"baseball_db/ingestion/internal/pacing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCatalog = `
pulls:
  - name: batting
    schema: fangraphs
    granularity: year
    min_year: 2021
    period_column: season
    aggregate: true
    source:
      url: /batting/{period}
  - name: pitching
    schema: fangraphs
    granularity: year
    min_year: 2022
    aggregate: true
    source:
      url: /broken/{period}
  - name: register
    schema: chadwick
    kind: single
    source:
      url: /register.csv
`

func newProvider(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/batting/"):
			w.Write([]byte("playerid,hr\nabc,10\ndef,20\n"))
		case r.URL.Path == "/register.csv":
			w.Write([]byte("key_mlbam,name_last\n545361,Trout\n"))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRunAll_RefreshesEveryPull(t *testing.T) {
	srv := newProvider(t)
	dataDir := t.TempDir()

	cat, err := catalog.Parse([]byte(testCatalog))
	require.NoError(t, err)

	provider := client.NewClient(client.Options{BaseURL: srv.URL, Timeout: 5 * time.Second})
	now := func() time.Time { return time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC) }

	refreshers, err := buildRefreshers(cat, dataDir, provider, pacing.None{}, cache.NopLocker{}, now)
	require.NoError(t, err)
	require.Len(t, refreshers, 3)

	err = runAll(context.Background(), refreshers)
	// pitching has nothing to aggregate; the other pulls still ran
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fangraphs.pitching")

	for _, f := range []string{
		"fangraphs/batting_dir/2021.tsv.gz",
		"fangraphs/batting_dir/2022.tsv.gz",
		"fangraphs/batting.tsv.gz",
		"chadwick/register.tsv.gz",
	} {
		_, err := os.Stat(filepath.Join(dataDir, f))
		assert.NoError(t, err, f)
	}
	_, err = os.Stat(filepath.Join(dataDir, "fangraphs", "pitching.tsv.gz"))
	assert.True(t, os.IsNotExist(err))
}

type heldLocker struct{ cache.NopLocker }

func (heldLocker) Acquire(context.Context, string) (cache.Release, error) {
	return nil, cache.ErrLockHeld
}

func TestRunAll_SkipsLockedTables(t *testing.T) {
	srv := newProvider(t)
	dataDir := t.TempDir()

	cat, err := catalog.Parse([]byte(testCatalog))
	require.NoError(t, err)

	provider := client.NewClient(client.Options{BaseURL: srv.URL, Timeout: 5 * time.Second})
	refreshers, err := buildRefreshers(cat, dataDir, provider, pacing.None{}, heldLocker{}, time.Now)
	require.NoError(t, err)

	assert.NoError(t, runAll(context.Background(), refreshers))

	entries, err := os.ReadDir(dataDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

type fakeStamps map[string]time.Time

func (f fakeStamps) LastRefresh(_ context.Context, name string) (time.Time, bool, error) {
	if name == "fangraphs.pitching" {
		return time.Time{}, false, errors.New("connection reset")
	}
	at, ok := f[name]
	return at, ok, nil
}

func TestLogLastRefresh(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })

	cat, err := catalog.Parse([]byte(testCatalog))
	require.NoError(t, err)
	provider := client.NewClient(client.Options{BaseURL: "http://127.0.0.1", Timeout: time.Second})
	refreshers, err := buildRefreshers(cat, t.TempDir(), provider, pacing.None{}, cache.NopLocker{}, time.Now)
	require.NoError(t, err)

	stamps := fakeStamps{"fangraphs.batting": time.Date(2023, 3, 1, 6, 0, 0, 0, time.UTC)}
	logLastRefresh(context.Background(), stamps, refreshers)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], `"last_refresh":"2023-03-01T06:00:00Z"`)
	assert.Contains(t, lines[1], `"error":"connection reset"`)
	assert.Contains(t, lines[2], `"table":"chadwick.register"`)
	assert.Contains(t, lines[2], "never been refreshed")
}
