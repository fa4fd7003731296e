package loader

import (
	"context"
	"fmt"
	"time"

	"baseball_db/ingestion/internal/metrics"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
)

// Executor runs one statement and commits it. repository.Database satisfies
// it with an autocommit connection.
type Executor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// StatementError reports the statement a load stopped at. Statements before
// it are already committed.
type StatementError struct {
	Table     string
	Index     int
	Statement Statement
	Err       error
}

func (e *StatementError) Error() string {
	return fmt.Sprintf("%s: statement %d (%s on %s) failed: %v",
		e.Table, e.Index+1, e.Statement.Kind, e.Statement.Target, e.Err)
}

func (e *StatementError) Unwrap() error { return e.Err }

// Apply executes the plan in order and stops at the first failure. Nothing
// is rolled back: the next load drops and recreates the table.
func Apply(ctx context.Context, exec Executor, plan *Plan) error {
	log.Info().Str("table", plan.Table).Int("statements", len(plan.Statements)).Msg("Beginning to update table")
	start := time.Now()

	for i, stmt := range plan.Statements {
		if err := ctx.Err(); err != nil {
			return &StatementError{Table: plan.Table, Index: i, Statement: stmt, Err: err}
		}

		log.Debug().
			Str("table", plan.Table).
			Str("kind", string(stmt.Kind)).
			Str("target", stmt.Target).
			Msg(stmt.SQL)

		stmtStart := time.Now()
		tag, err := exec.Exec(ctx, stmt.SQL)
		elapsed := time.Since(stmtStart).Seconds()
		if err != nil {
			metrics.RecordStatement(string(stmt.Kind), "error", elapsed)
			return &StatementError{Table: plan.Table, Index: i, Statement: stmt, Err: err}
		}
		metrics.RecordStatement(string(stmt.Kind), "success", elapsed)

		if stmt.Kind == KindCopy {
			log.Info().
				Str("target", stmt.Target).
				Int64("rows", tag.RowsAffected()).
				Msg("Copied data")
		}
	}

	log.Info().
		Str("table", plan.Table).
		Dur("duration", time.Since(start)).
		Msg("Finished updating table")
	return nil
}
