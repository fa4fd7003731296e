package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCatalog = `
pulls:
  - name: batting
    schema: fangraphs
    granularity: year
    min_year: 1995
    limit: 5
    period_column: season
    required_columns: [playerid]
    drop_columns: [index]
    aggregate: true
    source:
      url: "/fangraphs/batting?season={period}"
  - name: statcast
    schema: statcast
    granularity: month
    min_year: 2015
    source:
      url: "/statcast/search"
      format: csv
      params:
        game_date_gt: "{start}"
        game_date_lt: "{end}"
  - name: register
    schema: chadwick
    kind: single
    source:
      url: "/register/people.csv"
tables:
  fangraphs:
    batting:
      directory: batting_dir
      table_type: partitioned
      partitioned_by: season
      iterator: year
      index_statement: create index on fangraphs.batting (playerid)
  chadwick:
    register:
      path: register.tsv.gz
      schema_override:
        key_mlbam: varchar
`

func TestParse_AppliesDefaults(t *testing.T) {
	c, err := Parse([]byte(sampleCatalog))
	require.NoError(t, err)
	require.Len(t, c.Pulls, 3)

	batting := c.Pulls[0]
	assert.Equal(t, KindPeriodic, batting.Kind)
	assert.Equal(t, "csv", batting.Source.Format)
	assert.Equal(t, StrategySingle, batting.Source.Strategy)
	require.NotNil(t, batting.Limit)
	assert.Equal(t, 5, *batting.Limit)

	statcast := c.Pulls[1]
	require.NotNil(t, statcast.Limit)
	assert.Equal(t, defaultLimit, *statcast.Limit)
	assert.Equal(t, "{start}", statcast.Source.Params["game_date_gt"])

	assert.Equal(t, KindSingle, c.Pulls[2].Kind)

	tables := c.TableList()
	require.Len(t, tables, 2)
	assert.Equal(t, "chadwick.register", tables[0].QualifiedName())
	assert.Equal(t, "fangraphs.batting", tables[1].QualifiedName())

	reg := tables[0]
	assert.False(t, reg.Partitioned())
	assert.True(t, reg.Gzip())
	assert.Equal(t, '\t', reg.Separator())
	assert.Equal(t, "varchar", reg.SchemaOverride["key_mlbam"])

	bat := tables[1]
	assert.True(t, bat.Partitioned())
	assert.Equal(t, IteratorYear, bat.Iterator)
}

func TestParse_RejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte(`
pulls:
  - name: batting
    schema: fangraphs
    granularity: year
    min_yaer: 1995
    source:
      url: /x
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "min_yaer")
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	_, err := Parse([]byte(`
pulls:
  - name: batting
    schema: fangraphs
    granularity: week
    source:
      url: /x
      strategy: paged
  - name: batting
    schema: fangraphs
    granularity: year
    min_year: 2000
    source:
      url: /y
      format: xml
tables:
  fangraphs:
    batting:
      table_type: partitioned
      iterator: decade
      sep: "ab"
`))
	require.Error(t, err)

	msg := err.Error()
	assert.Contains(t, msg, "granularity")
	assert.Contains(t, msg, "min_year")
	assert.Contains(t, msg, "{page}")
	assert.Contains(t, msg, "declared more than once")
	assert.Contains(t, msg, "source.format")
	assert.Contains(t, msg, "directory")
	assert.Contains(t, msg, "partitioned_by")
	assert.Contains(t, msg, "iterator")
	assert.Contains(t, msg, "sep")

	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestValidate_SinglePullRejectsPeriodOptions(t *testing.T) {
	_, err := Parse([]byte(`
pulls:
  - name: register
    schema: chadwick
    kind: single
    period_column: season
    aggregate: true
    source:
      url: /r
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "period_column")
	assert.Contains(t, err.Error(), "aggregate")
}

func TestValidate_UnpartitionedTableNeedsPath(t *testing.T) {
	_, err := Parse([]byte(`
tables:
  lahman:
    people:
      compression: zip
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path")
	assert.Contains(t, err.Error(), "compression")
}

func TestPaged_PlaceholderInParams(t *testing.T) {
	_, err := Parse([]byte(`
pulls:
  - name: draft
    schema: mlb
    granularity: year
    min_year: 1965
    source:
      url: /draft/{period}
      strategy: paged
      max_pages: 50
      params:
        round: "{page}"
`))
	assert.NoError(t, err)
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleCatalog), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, c.Pulls, 3)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestPullConfig_Conversion(t *testing.T) {
	c, err := Parse([]byte(sampleCatalog))
	require.NoError(t, err)

	now := func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }
	cfg, err := c.Pulls[0].PullConfig("data", now)
	require.NoError(t, err)

	assert.Equal(t, "batting", cfg.Name)
	assert.Equal(t, "year", cfg.Granularity.Name())
	assert.Equal(t, 1995, cfg.MinYear)
	assert.Equal(t, "season", cfg.Normalize.PeriodColumn)
	assert.Equal(t, []string{"index"}, cfg.Normalize.DropColumns)
	assert.True(t, cfg.Aggregate)
	assert.Equal(t, filepath.Join("data", "fangraphs", "batting_dir"), cfg.DirectoryPath())

	single, err := c.Pulls[2].PullConfig("data", now)
	require.NoError(t, err)
	assert.Nil(t, single.Granularity)
	assert.Equal(t, filepath.Join("data", "chadwick", "register.tsv.gz"), single.TablePath())
}

func TestPullConfig_ZeroLimitFetchesEverything(t *testing.T) {
	c, err := Parse([]byte(`
pulls:
  - name: batting
    schema: fangraphs
    granularity: year
    min_year: 1995
    limit: 0
    source:
      url: /batting/{period}
  - name: pitching
    schema: fangraphs
    granularity: year
    min_year: 1995
    source:
      url: /pitching/{period}
`))
	require.NoError(t, err)

	now := func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }
	unbounded, err := c.Pulls[0].PullConfig("data", now)
	require.NoError(t, err)
	assert.Equal(t, 0, unbounded.Limit)

	defaulted, err := c.Pulls[1].PullConfig("data", now)
	require.NoError(t, err)
	assert.Equal(t, defaultLimit, defaulted.Limit)
}

func TestLoad_ShippedCatalog(t *testing.T) {
	c, err := Load(filepath.Join("..", "..", "config", "catalog.yaml"))
	require.NoError(t, err)
	assert.NotEmpty(t, c.Pulls)
	assert.NotEmpty(t, c.TableList())
}
