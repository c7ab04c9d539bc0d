package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/golyo/golyo-calendar/internal/model"
	"github.com/golyo/golyo-calendar/internal/store"
)

type MemberStore struct {
	pool *pgxpool.Pool
}

func NewMemberStore(pool *pgxpool.Pool) *MemberStore {
	return &MemberStore{pool: pool}
}

// Get returns the member or store.ErrNotFound.
func (s *MemberStore) Get(ctx context.Context, trainerID, id string) (*model.Member, error) {
	query := `SELECT doc, version FROM members WHERE trainer_id = $1 AND id = $2`

	var doc []byte
	var version int64
	err := s.pool.QueryRow(ctx, query, trainerID, id).Scan(&doc, &version)
	if err != nil {
		if notFound(err) {
			return nil, fmt.Errorf("member %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("get member: %w", err)
	}

	var member model.Member
	if err := json.Unmarshal(doc, &member); err != nil {
		return nil, fmt.Errorf("decode member: %w", err)
	}
	member.Version = version
	return &member, nil
}

// List returns all member records under the trainer.
func (s *MemberStore) List(ctx context.Context, trainerID string) ([]*model.Member, error) {
	query := `SELECT doc, version FROM members WHERE trainer_id = $1 ORDER BY id`

	rows, err := s.pool.Query(ctx, query, trainerID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []*model.Member
	for rows.Next() {
		var doc []byte
		var version int64
		if err := rows.Scan(&doc, &version); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		var member model.Member
		if err := json.Unmarshal(doc, &member); err != nil {
			return nil, fmt.Errorf("decode member: %w", err)
		}
		member.Version = version
		members = append(members, &member)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}

	return members, nil
}

// Save inserts a fresh member (version 0) or compare-and-swaps an update.
func (s *MemberStore) Save(ctx context.Context, trainerID string, m *model.Member) error {
	doc, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode member: %w", err)
	}

	if m.Version == 0 {
		query := `
			INSERT INTO members (trainer_id, id, version, doc)
			VALUES ($1, $2, 1, $3)
			ON CONFLICT (trainer_id, id) DO NOTHING
		`
		if err := execCAS(ctx, s.pool, query, trainerID, m.ID, doc); err != nil {
			return fmt.Errorf("insert member: %w", err)
		}
		m.Version = 1
		return nil
	}

	query := `
		UPDATE members
		SET doc = $3, version = version + 1
		WHERE trainer_id = $1 AND id = $2 AND version = $4
	`
	if err := execCAS(ctx, s.pool, query, trainerID, m.ID, doc, m.Version); err != nil {
		return fmt.Errorf("update member: %w", err)
	}
	m.Version++
	return nil
}

// Delete removes the member record. Deleting a missing member is a no-op.
func (s *MemberStore) Delete(ctx context.Context, trainerID, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM members WHERE trainer_id = $1 AND id = $2`, trainerID, id)
	if err != nil {
		return fmt.Errorf("delete member: %w", err)
	}
	return nil
}
