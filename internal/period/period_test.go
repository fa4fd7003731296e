package period

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func TestYear_Potential(t *testing.T) {
	ref := date(2023, time.January, 15)

	completed := Year{}.Potential(2020, ref, false)
	assert.Equal(t, []Period{"2020", "2021", "2022"}, completed.Ascending())

	withCurrent := Year{}.Potential(2020, ref, true)
	assert.Equal(t, []Period{"2020", "2021", "2022", "2023"}, withCurrent.Ascending())

	assert.Empty(t, Year{}.Potential(2024, ref, false), "min year after current year has no coverage")
}

func TestYear_Parse(t *testing.T) {
	p, ok := Year{}.Parse("2008")
	require.True(t, ok)
	assert.Equal(t, Period("2008"), p)

	for _, token := range []string{"08", "20O8", "0999", "+200", "2008-01", ""} {
		_, ok := Year{}.Parse(token)
		assert.False(t, ok, "token %q should not parse as a year", token)
	}
}

func TestYear_FetchArgs(t *testing.T) {
	r, err := Year{}.FetchArgs("2019")
	require.NoError(t, err)
	assert.Equal(t, "2019-01-01", r.StartDate())
	assert.Equal(t, "2019-12-31", r.EndDate())

	_, err = Year{}.FetchArgs("nope")
	assert.Error(t, err)
}

func TestMonth_Potential(t *testing.T) {
	// 2019-10-10 + 28 days lands in November
	s := Month{}.Potential(2019, date(2019, time.October, 10), false)
	assert.Equal(t, []Period{
		"2019-03", "2019-04", "2019-05", "2019-06", "2019-07",
		"2019-08", "2019-09", "2019-10", "2019-11",
	}, s.Ascending())
}

func TestMonth_PotentialSkipsOffSeasonAndNoDataMonths(t *testing.T) {
	s := Month{}.Potential(2020, date(2021, time.March, 20), false)

	for _, p := range []Period{"2020-01", "2020-12", "2021-01", "2020-04", "2020-05", "2020-06"} {
		assert.False(t, s.Has(p), "period %s should be excluded", p)
	}
	for _, p := range []Period{"2020-03", "2020-07", "2020-11", "2021-02", "2021-03", "2021-04"} {
		assert.True(t, s.Has(p), "period %s should be included", p)
	}
	assert.False(t, s.Has("2021-05"))
}

func TestMonth_Parse(t *testing.T) {
	p, ok := Month{}.Parse("2021-04")
	require.True(t, ok)
	assert.Equal(t, Period("2021-04"), p)

	for _, token := range []string{"2020-13", "2020-4", "2020", "2020-04-01", "april"} {
		_, ok := Month{}.Parse(token)
		assert.False(t, ok, "token %q should not parse as a month", token)
	}
}

func TestMonth_FetchArgs(t *testing.T) {
	r, err := Month{}.FetchArgs("2020-02")
	require.NoError(t, err)
	assert.Equal(t, "2020-02-01", r.StartDate())
	assert.Equal(t, "2020-02-29", r.EndDate())
}

func TestToken(t *testing.T) {
	token, ok := Token("2019-07.tsv.gz")
	require.True(t, ok)
	assert.Equal(t, "2019-07", token)

	token, ok = Token(".2019.tsv.gz.tmp")
	require.True(t, ok)
	assert.Equal(t, "", token)

	_, ok = Token("_manifest.csv")
	assert.False(t, ok)
}

func TestSet_Operations(t *testing.T) {
	potential := NewSet("2020", "2021", "2022")
	actual := NewSet("2020", "2019")

	assert.Equal(t, []Period{"2022", "2021"}, potential.Difference(actual).Descending())
	assert.Equal(t, []Period{"2020"}, potential.Intersect(actual).Ascending())
	assert.Len(t, potential.Union(actual), 4)
}

func TestForName(t *testing.T) {
	g, err := ForName("month")
	require.NoError(t, err)
	assert.Equal(t, "month", g.Name())

	_, err = ForName("week")
	assert.Error(t, err)
}
