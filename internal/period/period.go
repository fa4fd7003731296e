// Package period models the coverage units used to partition pulled data:
// whole seasons ("2008") and season months ("2019-07").
package period

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// FileSuffix is appended to a period key to form its cache filename.
const FileSuffix = ".tsv.gz"

// Period is an opaque, totally ordered coverage key. Keys of one granularity
// are fixed width, so lexical order is chronological order.
type Period string

// String returns the period key
func (p Period) String() string {
	return string(p)
}

// Filename returns the cache filename for the period
func (p Period) Filename() string {
	return string(p) + FileSuffix
}

// Range is the inclusive date span a period covers, used as fetch arguments.
type Range struct {
	Start time.Time
	End   time.Time
}

// StartDate returns the range start formatted as YYYY-MM-DD
func (r Range) StartDate() string {
	return r.Start.Format(time.DateOnly)
}

// EndDate returns the range end formatted as YYYY-MM-DD
func (r Range) EndDate() string {
	return r.End.Format(time.DateOnly)
}

// Token extracts the period token from a cache filename. Only names carrying
// the "tsv" infix are considered; the token is everything before the first dot.
func Token(filename string) (string, bool) {
	if !strings.Contains(filename, "tsv") {
		return "", false
	}
	token, _, _ := strings.Cut(filename, ".")
	return token, true
}

// Set is a set of periods.
type Set map[Period]struct{}

// NewSet builds a set from the given periods
func NewSet(periods ...Period) Set {
	s := make(Set, len(periods))
	for _, p := range periods {
		s[p] = struct{}{}
	}
	return s
}

func (s Set) Add(p Period) {
	s[p] = struct{}{}
}

func (s Set) Has(p Period) bool {
	_, ok := s[p]
	return ok
}

// Difference returns the periods in s that are not in o
func (s Set) Difference(o Set) Set {
	out := make(Set)
	for p := range s {
		if !o.Has(p) {
			out.Add(p)
		}
	}
	return out
}

// Intersect returns the periods present in both s and o
func (s Set) Intersect(o Set) Set {
	out := make(Set)
	for p := range s {
		if o.Has(p) {
			out.Add(p)
		}
	}
	return out
}

// Union returns the periods present in either s or o
func (s Set) Union(o Set) Set {
	out := make(Set, len(s)+len(o))
	for p := range s {
		out.Add(p)
	}
	for p := range o {
		out.Add(p)
	}
	return out
}

// Ascending returns the periods oldest first
func (s Set) Ascending() []Period {
	out := make([]Period, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Descending returns the periods most recent first
func (s Set) Descending() []Period {
	out := s.Ascending()
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Granularity is the strategy that defines a family of periods: which ones
// can exist, how they are parsed back from filenames, how many of the most
// recent ones are refreshed on every run and which dates they span.
type Granularity interface {
	Name() string
	Potential(minYear int, ref time.Time, includeInProgress bool) Set
	Parse(token string) (Period, bool)
	InvalidationCount() int
	FetchArgs(p Period) (Range, error)
}

// ForName returns the granularity registered under name
func ForName(name string) (Granularity, error) {
	switch name {
	case "year":
		return Year{}, nil
	case "month":
		return Month{}, nil
	default:
		return nil, fmt.Errorf("unknown granularity %q", name)
	}
}
