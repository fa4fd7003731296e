package tabular

import (
	"compress/gzip"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Format describes how a table file is encoded on disk.
type Format struct {
	Sep  rune
	Gzip bool
}

// TSVGzip is the cache format: tab separated, gzip compressed, header row.
var TSVGzip = Format{Sep: '\t', Gzip: true}

// Write encodes the table with a header row
func Write(w io.Writer, t *Table, sep rune) error {
	cw := csv.NewWriter(w)
	cw.Comma = sep
	if err := cw.Write(t.Columns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("failed to write rows: %w", err)
	}
	return nil
}

// Read decodes a table with a header row. limit caps the number of data rows
// read; zero or less reads everything. Short rows are padded with empty
// cells and a row wider than the header is an error.
func Read(r io.Reader, sep rune, limit int) (*Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = sep
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = false

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("missing header row")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	t := New(header...)
	for limit <= 0 || t.Len() < limit {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", t.Len()+1, err)
		}
		if len(rec) > len(t.Columns) {
			return nil, fmt.Errorf("row %d has %d fields, header has %d", t.Len()+1, len(rec), len(t.Columns))
		}
		t.Append(rec...)
	}
	return t, nil
}

// ReadFile reads a table file, see Read for limit
func ReadFile(path string, f Format, limit int) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	var r io.Reader = file
	if f.Gzip {
		gz, err := gzip.NewReader(file)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip stream %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}

	t, err := Read(r, f.Sep, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return t, nil
}

// ReadHeader returns only the header row of a table file
func ReadHeader(path string, f Format) ([]string, error) {
	t, err := ReadFile(path, f, 1)
	if err != nil {
		return nil, err
	}
	return t.Columns, nil
}

// WriteFile writes the table to path through a hidden temp file in the same
// directory and renames it into place, so path never holds a partial file.
func WriteFile(path string, t *Table, f Format) (err error) {
	dir, base := filepath.Split(path)
	tmp := filepath.Join(dir, "."+base+".tmp")

	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", tmp, err)
	}
	defer func() {
		if err != nil {
			file.Close()
			os.Remove(tmp)
		}
	}()

	var w io.Writer = file
	var gz *gzip.Writer
	if f.Gzip {
		gz = gzip.NewWriter(file)
		w = gz
	}

	if err = Write(w, t, f.Sep); err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if gz != nil {
		if err = gz.Close(); err != nil {
			return fmt.Errorf("failed to finish gzip stream %s: %w", path, err)
		}
	}
	if err = file.Sync(); err != nil {
		return fmt.Errorf("failed to sync %s: %w", tmp, err)
	}
	if err = file.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmp, err)
	}
	if err = os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", path, err)
	}
	return nil
}
