package pull

import (
	"path/filepath"
	"testing"

	"baseball_db/ingestion/internal/period"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvalidator_YearRemovesMostRecent(t *testing.T) {
	dir := t.TempDir()
	for _, p := range []period.Period{"2019", "2020", "2021"} {
		writePeriodFile(t, dir, p)
	}

	inv := &Invalidator{Table: "test.year", Granularity: period.Year{}}
	removed, err := inv.Invalidate(dir)
	require.NoError(t, err)

	assert.Equal(t, []period.Period{"2021"}, removed)
	assert.Equal(t, []string{"2019.tsv.gz", "2020.tsv.gz"}, listDir(t, dir))
}

func TestInvalidator_MonthRemovesTwoMostRecent(t *testing.T) {
	dir := t.TempDir()
	for _, p := range []period.Period{"2021-04", "2021-05", "2021-06", "2021-07"} {
		writePeriodFile(t, dir, p)
	}

	inv := &Invalidator{Table: "test.month", Granularity: period.Month{}}
	removed, err := inv.Invalidate(dir)
	require.NoError(t, err)

	assert.Equal(t, []period.Period{"2021-07", "2021-06"}, removed)
	assert.Equal(t, []string{"2021-04.tsv.gz", "2021-05.tsv.gz"}, listDir(t, dir))
}

func TestInvalidator_FewerFilesThanCount(t *testing.T) {
	dir := t.TempDir()
	writePeriodFile(t, dir, "2021-04")

	inv := &Invalidator{Table: "test.single", Granularity: period.Month{}}
	removed, err := inv.Invalidate(dir)
	require.NoError(t, err)

	assert.Equal(t, []period.Period{"2021-04"}, removed)
	assert.Empty(t, listDir(t, dir))
}

func TestInvalidator_EmptyOrMissingDirectoryIsNoop(t *testing.T) {
	inv := &Invalidator{Table: "test.empty", Granularity: period.Year{}}

	removed, err := inv.Invalidate(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, removed)

	removed, err = inv.Invalidate(filepath.Join(t.TempDir(), "does_not_exist"))
	require.NoError(t, err)
	assert.Empty(t, removed)
}

func TestInvalidator_IgnoresMalformedNames(t *testing.T) {
	dir := t.TempDir()
	writePeriodFile(t, dir, "2019")
	touch(t, dir, "9999x.tsv.gz")

	inv := &Invalidator{Table: "test.ignore", Granularity: period.Year{}}
	removed, err := inv.Invalidate(dir)
	require.NoError(t, err)

	assert.Equal(t, []period.Period{"2019"}, removed)
	assert.Equal(t, []string{"9999x.tsv.gz"}, listDir(t, dir), "malformed files are left for the resolver")
}
