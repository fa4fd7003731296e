package loader

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"baseball_db/ingestion/internal/catalog"
	"baseball_db/ingestion/internal/period"
)

// Bounds are the SQL literals of a range partition, From inclusive and To
// exclusive.
type Bounds struct {
	From string
	To   string
}

// PartitionBounds derives the range covered by one period file
func PartitionBounds(iterator string, key period.Period) (Bounds, error) {
	switch iterator {
	case catalog.IteratorYear, catalog.IteratorYearDate, catalog.IteratorYearDateInt:
		if _, ok := (period.Year{}).Parse(key.String()); !ok {
			return Bounds{}, fmt.Errorf("period %q is not a year", key)
		}
		y, err := period.Year{}.Int(key)
		if err != nil {
			return Bounds{}, err
		}
		switch iterator {
		case catalog.IteratorYear:
			return Bounds{From: strconv.Itoa(y), To: strconv.Itoa(y + 1)}, nil
		case catalog.IteratorYearDate:
			return Bounds{From: fmt.Sprintf("'%04d-01-01'", y), To: fmt.Sprintf("'%04d-01-01'", y+1)}, nil
		default:
			return Bounds{From: fmt.Sprintf("%04d0101", y), To: fmt.Sprintf("%04d0101", y+1)}, nil
		}

	case catalog.IteratorMonth:
		first, err := period.Month{}.FirstDay(key)
		if err != nil {
			return Bounds{}, err
		}
		next := first.AddDate(0, 1, 0)
		return Bounds{
			From: "'" + first.Format(time.DateOnly) + "'",
			To:   "'" + next.Format(time.DateOnly) + "'",
		}, nil
	}
	return Bounds{}, fmt.Errorf("unknown partition iterator %q", iterator)
}

// PartitionName is schema.table_yyyy, or schema.table_yyyy_mm for months
func PartitionName(t catalog.TableConfig, key period.Period) string {
	suffix := strings.ReplaceAll(key.String(), "-", "_")
	return t.QualifiedName() + "_" + suffix
}

// granularityFor returns the period granularity whose files back a
// partitioned table.
func granularityFor(iterator string) (period.Granularity, error) {
	switch iterator {
	case catalog.IteratorYear, catalog.IteratorYearDate, catalog.IteratorYearDateInt:
		return period.Year{}, nil
	case catalog.IteratorMonth:
		return period.Month{}, nil
	}
	return nil, fmt.Errorf("unknown partition iterator %q", iterator)
}
