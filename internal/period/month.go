package period

import (
	"fmt"
	"time"
)

const monthLayout = "2006-01"

// lookAhead keeps the month containing ref+28d in scope: last month's data
// is revised for weeks after it ends.
const lookAhead = 28 * 24 * time.Hour

// noDataMonths had no games at all (2020 season start was delayed).
var noDataMonths = NewSet("2020-04", "2020-05", "2020-06")

// Month covers one calendar month per period, keyed "YYYY-MM".
type Month struct{}

func (Month) Name() string { return "month" }

// Potential returns every month from March of minYear through the month
// containing ref+28d, skipping January, December and known no-data months.
// The look-ahead already reaches into the in-progress month, so
// includeInProgress has no effect.
func (Month) Potential(minYear int, ref time.Time, _ bool) Set {
	end := ref.Add(lookAhead)
	last := time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, time.UTC)

	out := make(Set)
	for m := time.Date(minYear, time.March, 1, 0, 0, 0, 0, time.UTC); !m.After(last); m = m.AddDate(0, 1, 0) {
		if m.Month() == time.January || m.Month() == time.December {
			continue
		}
		p := Period(m.Format(monthLayout))
		if noDataMonths.Has(p) {
			continue
		}
		out.Add(p)
	}
	return out
}

func (Month) Parse(token string) (Period, bool) {
	t, err := time.Parse(monthLayout, token)
	if err != nil || t.Format(monthLayout) != token {
		return "", false
	}
	return Period(token), true
}

// InvalidationCount is 2: the two most recent months are both still revised.
func (Month) InvalidationCount() int { return 2 }

// FetchArgs spans the first through the last day of the month.
func (Month) FetchArgs(p Period) (Range, error) {
	start, err := time.Parse(monthLayout, string(p))
	if err != nil {
		return Range{}, fmt.Errorf("invalid month period %q: %w", p, err)
	}
	return Range{
		Start: start,
		End:   start.AddDate(0, 1, -1),
	}, nil
}

// FirstDay returns the first day of the month period
func (Month) FirstDay(p Period) (time.Time, error) {
	start, err := time.Parse(monthLayout, string(p))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid month period %q: %w", p, err)
	}
	return start, nil
}
