// Package store defines the persistence contracts the booking core depends
// on. The core treats every store as a replaceable collaborator: the postgres
// subpackage backs production, the memory subpackage backs tests.
//
// Documents carry a version. Save is compare-and-swap: a document with
// version 0 must not exist yet, any other version must match the stored one,
// otherwise Save fails with ErrConflict and the caller re-reads and retries.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/golyo/golyo-calendar/internal/model"
)

var (
	// ErrNotFound marks a lookup miss where existence was assumed.
	ErrNotFound = errors.New("document not found")
	// ErrConflict marks a compare-and-swap write that lost against a
	// concurrent mutation.
	ErrConflict = errors.New("document version conflict")
)

// IsNotFound reports whether err is a lookup miss.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict reports whether err is a lost compare-and-swap.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// Window is a half-open-by-convention query range; both bounds are compared
// inclusively against event start times, matching the calendar views.
type Window struct {
	From time.Time
	To   time.Time
}

// Contains reports whether a start time falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.From) && !t.After(w.To)
}

// EventStore persists concrete event records keyed by trainer and event ID.
type EventStore interface {
	// Query returns the trainer's events whose start time falls inside the
	// window, optionally restricted to the given groups (nil means all),
	// ordered by start time.
	Query(ctx context.Context, trainerID string, w Window, groupIDs []string) ([]*model.Event, error)
	// Get returns the event or ErrNotFound.
	Get(ctx context.Context, trainerID, id string) (*model.Event, error)
	// Save inserts (version 0) or updates the event, bumping its version.
	Save(ctx context.Context, trainerID string, e *model.Event) error
	// Delete hard-removes the event record.
	Delete(ctx context.Context, trainerID, id string) error
}

// MemberStore persists member records under a trainer.
type MemberStore interface {
	Get(ctx context.Context, trainerID, id string) (*model.Member, error)
	List(ctx context.Context, trainerID string) ([]*model.Member, error)
	Save(ctx context.Context, trainerID string, m *model.Member) error
	Delete(ctx context.Context, trainerID, id string) error
}

// GroupStore persists training group definitions under a trainer.
type GroupStore interface {
	Get(ctx context.Context, trainerID, id string) (*model.TrainingGroup, error)
	List(ctx context.Context, trainerID string) ([]*model.TrainingGroup, error)
	Save(ctx context.Context, trainerID string, g *model.TrainingGroup) error
	Delete(ctx context.Context, trainerID, id string) error
}

// UserStore persists the global user records with membership back-references.
type UserStore interface {
	Get(ctx context.Context, id string) (*model.User, error)
	Save(ctx context.Context, u *model.User) error
	Delete(ctx context.Context, id string) error
}
