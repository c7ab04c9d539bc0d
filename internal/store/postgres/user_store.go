package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/golyo/golyo-calendar/internal/model"
	"github.com/golyo/golyo-calendar/internal/store"
)

type UserStore struct {
	pool *pgxpool.Pool
}

func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

// Get returns the user or store.ErrNotFound.
func (s *UserStore) Get(ctx context.Context, id string) (*model.User, error) {
	query := `SELECT doc, version FROM users WHERE id = $1`

	var doc []byte
	var version int64
	err := s.pool.QueryRow(ctx, query, id).Scan(&doc, &version)
	if err != nil {
		if notFound(err) {
			return nil, fmt.Errorf("user %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	var user model.User
	if err := json.Unmarshal(doc, &user); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	user.Version = version
	return &user, nil
}

// Save inserts a fresh user (version 0) or compare-and-swaps an update.
func (s *UserStore) Save(ctx context.Context, u *model.User) error {
	doc, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}

	if u.Version == 0 {
		query := `
			INSERT INTO users (id, version, doc)
			VALUES ($1, 1, $2)
			ON CONFLICT (id) DO NOTHING
		`
		if err := execCAS(ctx, s.pool, query, u.ID, doc); err != nil {
			return fmt.Errorf("insert user: %w", err)
		}
		u.Version = 1
		return nil
	}

	query := `
		UPDATE users
		SET doc = $2, version = version + 1
		WHERE id = $1 AND version = $3
	`
	if err := execCAS(ctx, s.pool, query, u.ID, doc, u.Version); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	u.Version++
	return nil
}

// Delete removes the user record. Deleting a missing user is a no-op.
func (s *UserStore) Delete(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}
