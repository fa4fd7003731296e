package loader

import (
	"strconv"
	"strings"

	"baseball_db/ingestion/internal/tabular"
)

// SampleRows is how many data rows type inference reads.
const SampleRows = 40000

// Column types emitted by inference
const (
	TypeFloat   = "float"
	TypeVarchar = "varchar"
)

// naValues are the tokens read as missing, the same set pandas uses by
// default. Missing values do not affect a column's type.
var naValues = map[string]struct{}{
	"": {}, "#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {},
	"-NaN": {}, "-nan": {}, "1.#IND": {}, "1.#QNAN": {}, "<NA>": {}, "N/A": {},
	"NA": {}, "NULL": {}, "NaN": {}, "None": {}, "n/a": {}, "nan": {}, "null": {},
}

// Column is one inferred column definition. Name is the source header.
type Column struct {
	Name string
	Type string
}

// InferColumns maps each column of the sample to float when every non-missing
// value is numeric (integers included) and to varchar otherwise. Integer
// columns deliberately become float so that a later file with a missing
// value still loads.
func InferColumns(t *tabular.Table) []Column {
	cols := make([]Column, len(t.Columns))
	for i, name := range t.Columns {
		typ := TypeFloat
		for _, row := range t.Rows {
			if i >= len(row) {
				continue
			}
			if !isNumeric(row[i]) {
				typ = TypeVarchar
				break
			}
		}
		cols[i] = Column{Name: name, Type: typ}
	}
	return cols
}

func isNumeric(v string) bool {
	if _, na := naValues[v]; na {
		return true
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return true
	}
	// ParseFloat accepts hex floats which a delimited reader never would.
	if strings.ContainsAny(v, "xX_") {
		return false
	}
	_, err := strconv.ParseFloat(v, 64)
	return err == nil
}

// Identifier normalizes a source header into a quoted column identifier:
// lower case with "." replaced by "_".
func Identifier(name string) string {
	id := strings.ReplaceAll(strings.ToLower(name), ".", "_")
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}
