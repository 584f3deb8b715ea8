package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/veloshop/storefront/internal/metrics"
)

// Runner executes built statements on a pool or a transaction and records
// a db query metric for every call
type Runner struct {
	q       Querier
	metrics *metrics.AppMetrics
}

func NewRunner(q Querier, m *metrics.AppMetrics) *Runner {
	return &Runner{q: q, metrics: m}
}

// Query runs a SELECT returning many rows
func (r *Runner) Query(ctx context.Context, stmt Statement) (*sql.Rows, error) {
	query, args := stmt.Build()
	start := time.Now()
	rows, err := r.q.QueryContext(ctx, query, args...)
	r.record(ctx, stmt, query, start, err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", stmt.TableName(), err)
	}
	return rows, nil
}

// Row is the pending result of QueryRow. The query metric is recorded when
// the row is scanned.
type Row struct {
	row  *sql.Row
	done func(err error) error
}

// Scan copies the row into dest. The "no rows" condition is returned as
// sql.ErrNoRows, unwrapped.
func (row *Row) Scan(dest ...any) error {
	return row.done(row.row.Scan(dest...))
}

// QueryRow runs a single-row SELECT
func (r *Runner) QueryRow(ctx context.Context, stmt Statement) *Row {
	query, args := stmt.Build()
	start := time.Now()
	row := r.q.QueryRowContext(ctx, query, args...)
	return &Row{row: row, done: func(err error) error {
		r.record(ctx, stmt, query, start, err == nil || err == sql.ErrNoRows)
		if err == nil || err == sql.ErrNoRows {
			return err
		}
		return fmt.Errorf("failed to query %s: %w", stmt.TableName(), err)
	}}
}

// Count runs the COUNT(*) form of a select
func (r *Runner) Count(ctx context.Context, q *SelectQuery) (int, error) {
	var n int
	if err := r.QueryRow(ctx, q.Count()).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Exec runs a mutation and returns the number of affected rows
func (r *Runner) Exec(ctx context.Context, stmt Statement) (int64, error) {
	query, args := stmt.Build()
	start := time.Now()
	result, err := r.q.ExecContext(ctx, query, args...)
	r.record(ctx, stmt, query, start, err == nil)
	if err != nil {
		return 0, fmt.Errorf("failed to %s %s: %w", stmt.Operation(), stmt.TableName(), err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected, nil
}

func (r *Runner) record(ctx context.Context, stmt Statement, query string, start time.Time, success bool) {
	if r.metrics == nil {
		return
	}
	r.metrics.RecordDBQuery(ctx, stmt.Operation(), stmt.TableName(), query, start, success)
}
