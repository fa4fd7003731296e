// Package catalog loads the declarative YAML that lists every pull the
// refresher runs and every table the loader materializes.
package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"baseball_db/ingestion/internal/period"
	"baseball_db/ingestion/internal/pull"

	"gopkg.in/yaml.v3"
)

// Pull kinds
const (
	KindPeriodic = "periodic"
	KindSingle   = "single"
)

// Source strategies
const (
	StrategySingle = "single"
	StrategyPaged  = "paged"
)

// Partition iterators understood by the load planner
const (
	IteratorYear        = "year"
	IteratorYearDate    = "year_date"
	IteratorYearDateInt = "year_date_int"
	IteratorMonth       = "month"
)

// Compression values
const (
	CompressionGzip = "gzip"
	CompressionNone = "none"
)

// TableTypePartitioned marks a table loaded from a period directory.
const TableTypePartitioned = "partitioned"

const defaultLimit = 10

// Catalog is the parsed catalog file.
type Catalog struct {
	Pulls []PullConfig `yaml:"pulls"`
	// Tables is keyed by schema, then table name.
	Tables map[string]map[string]TableConfig `yaml:"tables"`
}

// PullConfig declares one upstream pull.
type PullConfig struct {
	Name              string       `yaml:"name"`
	Schema            string       `yaml:"schema"`
	Kind              string       `yaml:"kind"`
	Granularity       string       `yaml:"granularity"`
	MinYear           int          `yaml:"min_year"`
	// Limit caps the periods fetched per run. Unset means the default of
	// 10; an explicit 0 fetches every outstanding period.
	Limit             *int         `yaml:"limit"`
	IncludeInProgress bool         `yaml:"include_in_progress"`
	Aggregate         bool         `yaml:"aggregate"`
	VerifyManifest    bool         `yaml:"verify_manifest"`
	PeriodColumn      string       `yaml:"period_column"`
	RequiredColumns   []string     `yaml:"required_columns"`
	DropColumns       []string     `yaml:"drop_columns"`
	Source            SourceConfig `yaml:"source"`
}

// SourceConfig describes the provider endpoint of a pull. URL and Params may
// reference {period}, {year}, {start}, {end} and {page}.
type SourceConfig struct {
	URL      string            `yaml:"url"`
	Format   string            `yaml:"format"`
	Strategy string            `yaml:"strategy"`
	MaxPages int               `yaml:"max_pages"`
	Params   map[string]string `yaml:"params"`
	// RecordsPath selects a nested array in JSON responses, e.g. "data.rows".
	RecordsPath string `yaml:"records_path"`
}

// TableConfig declares how one relational table is materialized.
type TableConfig struct {
	Schema string `yaml:"-"`
	Name   string `yaml:"-"`

	Path           string            `yaml:"path"`
	Directory      string            `yaml:"directory"`
	Sep            string            `yaml:"sep"`
	Compression    string            `yaml:"compression"`
	TableType      string            `yaml:"table_type"`
	PartitionedBy  string            `yaml:"partitioned_by"`
	Iterator       string            `yaml:"iterator"`
	SchemaOverride map[string]string `yaml:"schema_override"`
	IndexStatement string            `yaml:"index_statement"`
}

// QualifiedName returns schema.table
func (t TableConfig) QualifiedName() string {
	return t.Schema + "." + t.Name
}

// Partitioned reports whether the table is range partitioned by period
func (t TableConfig) Partitioned() bool {
	return t.TableType == TableTypePartitioned
}

// Separator returns the single column separator rune
func (t TableConfig) Separator() rune {
	r, _ := utf8.DecodeRuneInString(t.Sep)
	return r
}

// Gzip reports whether source files are gzip compressed
func (t TableConfig) Gzip() bool {
	return t.Compression == CompressionGzip
}

// Load reads, defaults and validates the catalog at path. Unknown keys are
// rejected so that typos fail before anything runs.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates catalog YAML
func Parse(data []byte) (*Catalog, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var c Catalog
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}
	return &c, nil
}

func (c *Catalog) applyDefaults() {
	for i := range c.Pulls {
		p := &c.Pulls[i]
		if p.Kind == "" {
			p.Kind = KindPeriodic
		}
		if p.Limit == nil {
			limit := defaultLimit
			p.Limit = &limit
		}
		if p.Source.Format == "" {
			p.Source.Format = "csv"
		}
		if p.Source.Strategy == "" {
			p.Source.Strategy = StrategySingle
		}
	}

	for schema, tables := range c.Tables {
		for name, t := range tables {
			t.Schema = schema
			t.Name = name
			if t.Sep == "" {
				t.Sep = "\t"
			}
			if t.Compression == "" {
				t.Compression = CompressionGzip
			}
			tables[name] = t
		}
	}
}

// TableList returns every table ordered by schema then name
func (c *Catalog) TableList() []TableConfig {
	var out []TableConfig
	for _, tables := range c.Tables {
		for _, t := range tables {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Schema != out[j].Schema {
			return out[i].Schema < out[j].Schema
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// ValidationError names the catalog entry and field that is wrong.
type ValidationError struct {
	Entry string
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Entry, e.Field, e.Msg)
}

// Validate checks every pull and table, reporting all problems at once.
func (c *Catalog) Validate() error {
	var errs []error
	add := func(entry, field, msg string, args ...interface{}) {
		errs = append(errs, &ValidationError{Entry: entry, Field: field, Msg: fmt.Sprintf(msg, args...)})
	}

	seen := make(map[string]bool)
	for i, p := range c.Pulls {
		entry := fmt.Sprintf("pulls[%d]", i)
		if p.Name == "" {
			add(entry, "name", "is required")
		}
		if p.Schema == "" {
			add(entry, "schema", "is required")
		}
		if p.Name != "" && p.Schema != "" {
			entry = p.Schema + "." + p.Name
			if seen[entry] {
				add(entry, "name", "is declared more than once")
			}
			seen[entry] = true
		}

		switch p.Kind {
		case KindPeriodic:
			if _, err := period.ForName(p.Granularity); err != nil {
				add(entry, "granularity", "must be year or month, got %q", p.Granularity)
			}
			if p.MinYear <= 0 {
				add(entry, "min_year", "is required")
			}
			if p.Limit != nil && *p.Limit < 0 {
				add(entry, "limit", "must not be negative")
			}
		case KindSingle:
			if p.PeriodColumn != "" {
				add(entry, "period_column", "is not allowed for single pulls")
			}
			if p.Aggregate {
				add(entry, "aggregate", "is not allowed for single pulls")
			}
		default:
			add(entry, "kind", "must be periodic or single, got %q", p.Kind)
		}

		s := p.Source
		if s.URL == "" {
			add(entry, "source.url", "is required")
		}
		switch s.Format {
		case "csv", "tsv", "json":
		default:
			add(entry, "source.format", "must be csv, tsv or json, got %q", s.Format)
		}
		switch s.Strategy {
		case StrategySingle:
		case StrategyPaged:
			if !s.usesPlaceholder("{page}") {
				add(entry, "source", "paged strategy needs a {page} placeholder")
			}
			if s.MaxPages < 0 {
				add(entry, "source.max_pages", "must not be negative")
			}
		default:
			add(entry, "source.strategy", "must be single or paged, got %q", s.Strategy)
		}
	}

	for _, t := range c.TableList() {
		entry := "tables." + t.QualifiedName()
		if utf8.RuneCountInString(t.Sep) != 1 {
			add(entry, "sep", "must be a single character")
		}
		switch t.Compression {
		case CompressionGzip, CompressionNone:
		default:
			add(entry, "compression", "must be gzip or none, got %q", t.Compression)
		}

		switch t.TableType {
		case TableTypePartitioned:
			if t.Directory == "" {
				add(entry, "directory", "is required for partitioned tables")
			}
			if t.PartitionedBy == "" {
				add(entry, "partitioned_by", "is required for partitioned tables")
			}
			if t.Compression != CompressionGzip {
				add(entry, "compression", "period directories are always gzip")
			}
			switch t.Iterator {
			case IteratorYear, IteratorYearDate, IteratorYearDateInt, IteratorMonth:
			default:
				add(entry, "iterator", "must be year, year_date, year_date_int or month, got %q", t.Iterator)
			}
		case "":
			if t.Path == "" {
				add(entry, "path", "is required")
			}
		default:
			add(entry, "table_type", "must be partitioned or empty, got %q", t.TableType)
		}
	}

	return errors.Join(errs...)
}

func (s SourceConfig) usesPlaceholder(ph string) bool {
	if strings.Contains(s.URL, ph) {
		return true
	}
	for _, v := range s.Params {
		if strings.Contains(v, ph) {
			return true
		}
	}
	return false
}

// PullConfig converts the entry into the puller configuration
func (p PullConfig) PullConfig(dataDir string, now func() time.Time) (pull.Config, error) {
	cfg := pull.Config{
		Name:              p.Name,
		Schema:            p.Schema,
		DataDir:           dataDir,
		MinYear:           p.MinYear,
		Limit:             defaultLimit,
		IncludeInProgress: p.IncludeInProgress,
		Aggregate:         p.Aggregate,
		VerifyManifest:    p.VerifyManifest,
		Normalize: pull.Normalize{
			DropColumns:     p.DropColumns,
			PeriodColumn:    p.PeriodColumn,
			RequiredColumns: p.RequiredColumns,
		},
		Now: now,
	}
	if p.Limit != nil {
		cfg.Limit = *p.Limit
	}
	if p.Kind == KindPeriodic {
		g, err := period.ForName(p.Granularity)
		if err != nil {
			return pull.Config{}, err
		}
		cfg.Granularity = g
	}
	return cfg, nil
}
