// Package postgres implements the store contracts on PostgreSQL. Records are
// stored as JSONB documents next to the columns the queries filter on, plus
// a version column every write compare-and-swaps against.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/golyo/golyo-calendar/internal/store"
)

// execCAS runs a write that must affect exactly one row; zero affected rows
// means the document version moved underneath us.
func execCAS(ctx context.Context, pool *pgxpool.Pool, query string, args ...any) error {
	tag, err := pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrConflict
	}
	return nil
}

func notFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
