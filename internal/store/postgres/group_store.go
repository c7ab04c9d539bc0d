package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/golyo/golyo-calendar/internal/model"
	"github.com/golyo/golyo-calendar/internal/store"
)

type GroupStore struct {
	pool *pgxpool.Pool
}

func NewGroupStore(pool *pgxpool.Pool) *GroupStore {
	return &GroupStore{pool: pool}
}

// Get returns the group or store.ErrNotFound.
func (s *GroupStore) Get(ctx context.Context, trainerID, id string) (*model.TrainingGroup, error) {
	query := `SELECT doc, version FROM groups WHERE trainer_id = $1 AND id = $2`

	var doc []byte
	var version int64
	err := s.pool.QueryRow(ctx, query, trainerID, id).Scan(&doc, &version)
	if err != nil {
		if notFound(err) {
			return nil, fmt.Errorf("group %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("get group: %w", err)
	}

	var group model.TrainingGroup
	if err := json.Unmarshal(doc, &group); err != nil {
		return nil, fmt.Errorf("decode group: %w", err)
	}
	group.Version = version
	return &group, nil
}

// List returns all training groups of the trainer.
func (s *GroupStore) List(ctx context.Context, trainerID string) ([]*model.TrainingGroup, error) {
	query := `SELECT doc, version FROM groups WHERE trainer_id = $1 ORDER BY id`

	rows, err := s.pool.Query(ctx, query, trainerID)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	var groups []*model.TrainingGroup
	for rows.Next() {
		var doc []byte
		var version int64
		if err := rows.Scan(&doc, &version); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		var group model.TrainingGroup
		if err := json.Unmarshal(doc, &group); err != nil {
			return nil, fmt.Errorf("decode group: %w", err)
		}
		group.Version = version
		groups = append(groups, &group)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}

	return groups, nil
}

// Save inserts a fresh group (version 0) or compare-and-swaps an update.
func (s *GroupStore) Save(ctx context.Context, trainerID string, g *model.TrainingGroup) error {
	doc, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("encode group: %w", err)
	}

	if g.Version == 0 {
		query := `
			INSERT INTO groups (trainer_id, id, version, doc)
			VALUES ($1, $2, 1, $3)
			ON CONFLICT (trainer_id, id) DO NOTHING
		`
		if err := execCAS(ctx, s.pool, query, trainerID, g.ID, doc); err != nil {
			return fmt.Errorf("insert group: %w", err)
		}
		g.Version = 1
		return nil
	}

	query := `
		UPDATE groups
		SET doc = $3, version = version + 1
		WHERE trainer_id = $1 AND id = $2 AND version = $4
	`
	if err := execCAS(ctx, s.pool, query, trainerID, g.ID, doc, g.Version); err != nil {
		return fmt.Errorf("update group: %w", err)
	}
	g.Version++
	return nil
}

// Delete removes the group definition. Deleting a missing group is a no-op.
func (s *GroupStore) Delete(ctx context.Context, trainerID, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM groups WHERE trainer_id = $1 AND id = $2`, trainerID, id)
	if err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	return nil
}
