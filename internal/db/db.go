// Package db stores the decision log: one row per advisory, keyed by its
// adv_ ID, holding the verdict with the forecasts and model it was made from.
package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is what DecisionLogRepository needs from Postgres. *pgxpool.Pool and
// pgx.Tx both satisfy it; tests substitute a testify mock.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}
