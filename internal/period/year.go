package period

import (
	"fmt"
	"strconv"
	"time"
)

// Year covers one full season per period, keyed "YYYY".
type Year struct{}

func (Year) Name() string { return "year" }

// Potential returns every year in [minYear, year(ref)), or up to and including
// year(ref) when the in-progress season is wanted.
func (Year) Potential(minYear int, ref time.Time, includeInProgress bool) Set {
	last := ref.Year()
	if !includeInProgress {
		last--
	}
	out := make(Set)
	for y := minYear; y <= last; y++ {
		out.Add(Period(strconv.Itoa(y)))
	}
	return out
}

func (Year) Parse(token string) (Period, bool) {
	if len(token) != 4 {
		return "", false
	}
	y, err := strconv.Atoi(token)
	if err != nil || strconv.Itoa(y) != token {
		return "", false
	}
	return Period(token), true
}

// InvalidationCount is 1: only the current season is perpetually partial.
func (Year) InvalidationCount() int { return 1 }

func (y Year) FetchArgs(p Period) (Range, error) {
	if _, ok := y.Parse(string(p)); !ok {
		return Range{}, fmt.Errorf("invalid year period %q", p)
	}
	year, _ := strconv.Atoi(string(p))
	return Range{
		Start: time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC),
	}, nil
}

// Int returns the numeric year of a year period
func (Year) Int(p Period) (int, error) {
	year, err := strconv.Atoi(string(p))
	if err != nil {
		return 0, fmt.Errorf("invalid year period %q: %w", p, err)
	}
	return year, nil
}
