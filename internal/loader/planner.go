// Package loader plans and applies the statements that materialize cached
// flat files as relational tables.
package loader

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"baseball_db/ingestion/internal/catalog"
	"baseball_db/ingestion/internal/period"
	"baseball_db/ingestion/internal/pull"
	"baseball_db/ingestion/internal/tabular"
)

// ErrNoSourceFiles is returned for a partitioned table whose directory holds
// no period files.
var ErrNoSourceFiles = errors.New("no source files")

// StatementKind labels a planned statement
type StatementKind string

const (
	KindDrop            StatementKind = "drop"
	KindCreate          StatementKind = "create"
	KindCreatePartition StatementKind = "create_partition"
	KindCopy            StatementKind = "copy"
	KindIndex           StatementKind = "index"
)

// Statement is one SQL statement, committed on its own
type Statement struct {
	Kind StatementKind
	// Target is the table or partition the statement acts on
	Target string
	SQL    string
}

// Plan is the ordered statement list for one table
type Plan struct {
	Table      string
	Columns    []Column
	Partitions []period.Period
	Statements []Statement
}

// Planner turns table configs into plans. Relative paths resolve under
// DataDir/<schema>.
type Planner struct {
	DataDir    string
	SampleRows int
}

// NewPlanner creates a planner reading files under dataDir
func NewPlanner(dataDir string) *Planner {
	return &Planner{DataDir: dataDir, SampleRows: SampleRows}
}

// PlanAll plans every table, failing before anything is executed if one
// table cannot be planned.
func (p *Planner) PlanAll(tables []catalog.TableConfig) ([]*Plan, error) {
	plans := make([]*Plan, 0, len(tables))
	for _, t := range tables {
		plan, err := p.Plan(t)
		if err != nil {
			return nil, fmt.Errorf("failed to plan %s: %w", t.QualifiedName(), err)
		}
		plans = append(plans, plan)
	}
	return plans, nil
}

// Plan produces drop, create and copy statements for one table. For a
// partitioned table every period file gets a partition and a copy scoped to
// it, newest period first.
func (p *Planner) Plan(t catalog.TableConfig) (*Plan, error) {
	format := tabular.Format{Sep: t.Separator(), Gzip: t.Gzip()}

	if !t.Partitioned() {
		path, err := p.resolve(t, t.Path)
		if err != nil {
			return nil, err
		}
		cols, err := p.inferFile(t, path, format)
		if err != nil {
			return nil, err
		}

		plan := &Plan{Table: t.QualifiedName(), Columns: cols}
		plan.add(KindDrop, t.QualifiedName(), dropStatement(t))
		plan.add(KindCreate, t.QualifiedName(), createStatement(t, cols))
		plan.add(KindCopy, t.QualifiedName(), copyStatement(t.QualifiedName(), path, t))
		plan.addIndex(t)
		return plan, nil
	}

	g, err := granularityFor(t.Iterator)
	if err != nil {
		return nil, err
	}
	dir, err := p.resolve(t, t.Directory)
	if err != nil {
		return nil, err
	}
	periods, err := pull.PeriodFiles(dir, g)
	if err != nil {
		return nil, err
	}
	if len(periods) == 0 {
		return nil, fmt.Errorf("%s: %w", dir, ErrNoSourceFiles)
	}

	// newest file decides the schema
	latest := periods[len(periods)-1]
	cols, err := p.inferFile(t, filepath.Join(dir, latest.Filename()), format)
	if err != nil {
		return nil, err
	}
	if !hasColumn(cols, t.PartitionedBy) {
		return nil, fmt.Errorf("partitioned_by column %q is not in the source file", t.PartitionedBy)
	}

	plan := &Plan{Table: t.QualifiedName(), Columns: cols}
	plan.add(KindDrop, t.QualifiedName(), dropStatement(t))
	plan.add(KindCreate, t.QualifiedName(), createStatement(t, cols))

	for i := len(periods) - 1; i >= 0; i-- {
		key := periods[i]
		bounds, err := PartitionBounds(t.Iterator, key)
		if err != nil {
			return nil, err
		}
		name := PartitionName(t, key)
		plan.Partitions = append(plan.Partitions, key)
		plan.add(KindCreatePartition, name, fmt.Sprintf(
			"create table if not exists %s partition of %s for values from (%s) to (%s)",
			name, t.QualifiedName(), bounds.From, bounds.To,
		))
		plan.add(KindCopy, name, copyStatement(name, filepath.Join(dir, key.Filename()), t))
	}
	plan.addIndex(t)
	return plan, nil
}

func (pl *Plan) add(kind StatementKind, target, sql string) {
	pl.Statements = append(pl.Statements, Statement{Kind: kind, Target: target, SQL: sql})
}

func (pl *Plan) addIndex(t catalog.TableConfig) {
	if s := strings.TrimSpace(t.IndexStatement); s != "" {
		pl.add(KindIndex, t.QualifiedName(), s)
	}
}

// resolve returns the absolute path of a table source. The database server
// reads copy sources itself, so the path must not be relative.
func (p *Planner) resolve(t catalog.TableConfig, rel string) (string, error) {
	path := rel
	if !filepath.IsAbs(path) {
		path = filepath.Join(p.DataDir, t.Schema, rel)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", rel, err)
	}
	return abs, nil
}

func (p *Planner) inferFile(t catalog.TableConfig, path string, format tabular.Format) ([]Column, error) {
	sample, err := tabular.ReadFile(path, format, p.SampleRows)
	if err != nil {
		return nil, fmt.Errorf("failed to sample %s: %w", path, err)
	}
	cols := InferColumns(sample)
	if err := applyOverrides(cols, t.SchemaOverride); err != nil {
		return nil, err
	}
	return cols, nil
}

// applyOverrides replaces inferred types. Keys match either the source header
// or its normalized identifier.
func applyOverrides(cols []Column, overrides map[string]string) error {
	for name, typ := range overrides {
		matched := false
		for i := range cols {
			if cols[i].Name == name || Identifier(cols[i].Name) == Identifier(name) {
				cols[i].Type = typ
				matched = true
			}
		}
		if !matched {
			return fmt.Errorf("schema_override column %q is not in the source file", name)
		}
	}
	return nil
}

func hasColumn(cols []Column, name string) bool {
	for _, c := range cols {
		if Identifier(c.Name) == Identifier(name) {
			return true
		}
	}
	return false
}

func dropStatement(t catalog.TableConfig) string {
	return "drop table if exists " + t.QualifiedName()
}

func createStatement(t catalog.TableConfig, cols []Column) string {
	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = Identifier(c.Name) + " " + c.Type
	}
	stmt := fmt.Sprintf("create table if not exists %s (%s)", t.QualifiedName(), strings.Join(defs, ", "))
	if t.Partitioned() {
		stmt += fmt.Sprintf(" partition by range (%s)", Identifier(t.PartitionedBy))
	}
	return stmt
}

// copyStatement bulk loads path into target. Gzip files are streamed through
// the server-side program form of copy.
func copyStatement(target, path string, t catalog.TableConfig) string {
	from := "'" + quoteLiteral(path) + "'"
	if t.Gzip() {
		from = "program 'gzip -dc " + quoteLiteral(path) + "'"
	}
	return fmt.Sprintf("copy %s from %s CSV Header DELIMITER E'%s'", target, from, escapeDelimiter(t.Separator()))
}

func quoteLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func escapeDelimiter(r rune) string {
	switch r {
	case '\t':
		return `\t`
	case '\'':
		return `\'`
	case '\\':
		return `\\`
	}
	return string(r)
}
