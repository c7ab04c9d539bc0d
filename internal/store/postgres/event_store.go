package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/golyo/golyo-calendar/internal/model"
	"github.com/golyo/golyo-calendar/internal/store"
)

type EventStore struct {
	pool *pgxpool.Pool
}

func NewEventStore(pool *pgxpool.Pool) *EventStore {
	return &EventStore{pool: pool}
}

// Query returns the trainer's events starting inside the window, optionally
// restricted to the given groups, ordered by start time.
func (s *EventStore) Query(ctx context.Context, trainerID string, w store.Window, groupIDs []string) ([]*model.Event, error) {
	query := `
		SELECT doc, version
		FROM events
		WHERE trainer_id = $1
		  AND start_time >= $2
		  AND start_time <= $3
	`
	args := []any{trainerID, w.From, w.To}

	if len(groupIDs) > 0 {
		query += ` AND group_id = ANY($4)`
		args = append(args, groupIDs)
	}
	query += ` ORDER BY start_time`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []*model.Event
	for rows.Next() {
		var doc []byte
		var version int64
		if err := rows.Scan(&doc, &version); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		var event model.Event
		if err := json.Unmarshal(doc, &event); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		event.Version = version
		events = append(events, &event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}

	return events, nil
}

// Get returns the event or store.ErrNotFound.
func (s *EventStore) Get(ctx context.Context, trainerID, id string) (*model.Event, error) {
	query := `SELECT doc, version FROM events WHERE trainer_id = $1 AND id = $2`

	var doc []byte
	var version int64
	err := s.pool.QueryRow(ctx, query, trainerID, id).Scan(&doc, &version)
	if err != nil {
		if notFound(err) {
			return nil, fmt.Errorf("event %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("get event: %w", err)
	}

	var event model.Event
	if err := json.Unmarshal(doc, &event); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	event.Version = version
	return &event, nil
}

// Save inserts a fresh event (version 0) or compare-and-swaps an update.
func (s *EventStore) Save(ctx context.Context, trainerID string, e *model.Event) error {
	doc, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	if e.Version == 0 {
		query := `
			INSERT INTO events (trainer_id, id, group_id, start_time, version, doc)
			VALUES ($1, $2, $3, $4, 1, $5)
			ON CONFLICT (trainer_id, id) DO NOTHING
		`
		if err := execCAS(ctx, s.pool, query, trainerID, e.ID, e.GroupID, e.StartTime, doc); err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
		e.Version = 1
		return nil
	}

	query := `
		UPDATE events
		SET group_id = $3, start_time = $4, doc = $5, version = version + 1
		WHERE trainer_id = $1 AND id = $2 AND version = $6
	`
	if err := execCAS(ctx, s.pool, query, trainerID, e.ID, e.GroupID, e.StartTime, doc, e.Version); err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	e.Version++
	return nil
}

// Delete hard-removes the event record. Deleting a missing event is a no-op.
func (s *EventStore) Delete(ctx context.Context, trainerID, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM events WHERE trainer_id = $1 AND id = $2`, trainerID, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return nil
}
