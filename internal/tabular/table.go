// Package tabular holds the in-memory table shape shared by fetchers, the
// aggregator and the load planner, plus its gzip TSV file codec.
package tabular

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ErrNoTables is returned when concatenating an empty list of tables.
var ErrNoTables = errors.New("no tables to concatenate")

// Table is a header plus string rows. Every row has len(Columns) cells.
type Table struct {
	Columns []string
	Rows    [][]string
}

// New creates an empty table with the given header. Repeated names are
// renamed name.1, name.2 and so on so every column stays addressable.
func New(columns ...string) *Table {
	return &Table{Columns: uniqueColumns(columns)}
}

func uniqueColumns(columns []string) []string {
	out := make([]string, len(columns))
	used := make(map[string]bool, len(columns))
	next := make(map[string]int)
	for i, c := range columns {
		name := c
		for used[name] {
			next[c]++
			name = c + "." + strconv.Itoa(next[c])
		}
		used[name] = true
		out[i] = name
	}
	return out
}

// Len returns the number of rows
func (t *Table) Len() int {
	return len(t.Rows)
}

// ColumnIndex returns the position of a column or -1
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Append adds a row, padding or truncating it to the header width
func (t *Table) Append(row ...string) {
	t.Rows = append(t.Rows, fit(row, len(t.Columns)))
}

// Column returns every value of the named column
func (t *Table) Column(name string) ([]string, error) {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil, fmt.Errorf("column %q not found", name)
	}
	out := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[idx]
	}
	return out, nil
}

// SetColumn stamps value onto every row, adding the column if it is missing.
func (t *Table) SetColumn(name, value string) {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		t.Columns = append(t.Columns, name)
		for i := range t.Rows {
			t.Rows[i] = append(t.Rows[i], value)
		}
		return
	}
	for _, row := range t.Rows {
		row[idx] = value
	}
}

// DropColumns removes the named columns; unknown names are ignored.
func (t *Table) DropColumns(names ...string) {
	drop := make(map[int]bool)
	for _, n := range names {
		if idx := t.ColumnIndex(n); idx >= 0 {
			drop[idx] = true
		}
	}
	if len(drop) == 0 {
		return
	}

	keep := func(in []string) []string {
		out := make([]string, 0, len(in)-len(drop))
		for i, v := range in {
			if !drop[i] {
				out = append(out, v)
			}
		}
		return out
	}
	t.Columns = keep(t.Columns)
	for i, row := range t.Rows {
		t.Rows[i] = keep(row)
	}
}

// DropBlank removes rows where any of the named columns is empty and returns
// how many rows were removed. Columns missing from the header count as blank.
func (t *Table) DropBlank(columns ...string) int {
	if len(columns) == 0 {
		return 0
	}
	idx := make([]int, len(columns))
	for i, c := range columns {
		idx[i] = t.ColumnIndex(c)
	}

	kept := t.Rows[:0]
	removed := 0
	for _, row := range t.Rows {
		ok := true
		for _, j := range idx {
			if j < 0 || strings.TrimSpace(row[j]) == "" {
				ok = false
				break
			}
		}
		if ok {
			kept = append(kept, row)
		} else {
			removed++
		}
	}
	t.Rows = kept
	return removed
}

// Concat row-concatenates tables. The result header is the union of all
// headers in first-seen order; cells a table lacks are left empty.
func Concat(tables ...*Table) (*Table, error) {
	if len(tables) == 0 {
		return nil, ErrNoTables
	}

	out := &Table{}
	pos := make(map[string]int)
	for _, t := range tables {
		for _, c := range t.Columns {
			if _, ok := pos[c]; !ok {
				pos[c] = len(out.Columns)
				out.Columns = append(out.Columns, c)
			}
		}
	}

	for _, t := range tables {
		for _, row := range t.Rows {
			merged := make([]string, len(out.Columns))
			for i, c := range t.Columns {
				merged[pos[c]] = row[i]
			}
			out.Rows = append(out.Rows, merged)
		}
	}
	return out, nil
}

// FromRecords converts decoded JSON objects into a table. Columns are the
// sorted union of keys since object key order is not preserved.
func FromRecords(records []map[string]interface{}) *Table {
	keys := make(map[string]struct{})
	for _, r := range records {
		for k := range r {
			keys[k] = struct{}{}
		}
	}
	columns := make([]string, 0, len(keys))
	for k := range keys {
		columns = append(columns, k)
	}
	sort.Strings(columns)

	t := New(columns...)
	for _, r := range records {
		row := make([]string, len(columns))
		for i, c := range columns {
			row[i] = formatValue(r[c])
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func formatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case json.Number:
		return val.String()
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	}
}

func fit(row []string, width int) []string {
	out := make([]string, width)
	copy(out, row)
	return out
}
