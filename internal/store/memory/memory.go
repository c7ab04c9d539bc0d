// Package memory implements the store contracts with mutex-guarded maps,
// including the same compare-and-swap version semantics as the postgres
// backend. It exists to keep service tests hermetic and doubles as a dev
// backend.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/golyo/golyo-calendar/internal/model"
	"github.com/golyo/golyo-calendar/internal/store"
)

// EventStore is an in-memory store.EventStore.
type EventStore struct {
	mu     sync.RWMutex
	events map[string]map[string]*model.Event // trainerID -> eventID -> event
}

func NewEventStore() *EventStore {
	return &EventStore{events: make(map[string]map[string]*model.Event)}
}

func (s *EventStore) Query(_ context.Context, trainerID string, w store.Window, groupIDs []string) ([]*model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	groupFilter := make(map[string]bool, len(groupIDs))
	for _, id := range groupIDs {
		groupFilter[id] = true
	}

	var events []*model.Event
	for _, e := range s.events[trainerID] {
		if !w.Contains(e.StartTime) {
			continue
		}
		if len(groupFilter) > 0 && !groupFilter[e.GroupID] {
			continue
		}
		events = append(events, e.Clone())
	}
	sort.Slice(events, func(i, j int) bool {
		return events[i].StartTime.Before(events[j].StartTime)
	})
	return events, nil
}

func (s *EventStore) Get(_ context.Context, trainerID, id string) (*model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.events[trainerID][id]
	if !ok {
		return nil, fmt.Errorf("event %s: %w", id, store.ErrNotFound)
	}
	return e.Clone(), nil
}

func (s *EventStore) Save(_ context.Context, trainerID string, e *model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.events[trainerID] == nil {
		s.events[trainerID] = make(map[string]*model.Event)
	}

	current, exists := s.events[trainerID][e.ID]
	if e.Version == 0 {
		if exists {
			return fmt.Errorf("insert event %s: %w", e.ID, store.ErrConflict)
		}
	} else if !exists || current.Version != e.Version {
		return fmt.Errorf("update event %s: %w", e.ID, store.ErrConflict)
	}

	e.Version++
	s.events[trainerID][e.ID] = e.Clone()
	return nil
}

func (s *EventStore) Delete(_ context.Context, trainerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.events[trainerID], id)
	return nil
}

// MemberStore is an in-memory store.MemberStore.
type MemberStore struct {
	mu      sync.RWMutex
	members map[string]map[string]*model.Member
}

func NewMemberStore() *MemberStore {
	return &MemberStore{members: make(map[string]map[string]*model.Member)}
}

func (s *MemberStore) Get(_ context.Context, trainerID, id string) (*model.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.members[trainerID][id]
	if !ok {
		return nil, fmt.Errorf("member %s: %w", id, store.ErrNotFound)
	}
	return m.Clone(), nil
}

func (s *MemberStore) List(_ context.Context, trainerID string) ([]*model.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var members []*model.Member
	for _, m := range s.members[trainerID] {
		members = append(members, m.Clone())
	}
	sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })
	return members, nil
}

func (s *MemberStore) Save(_ context.Context, trainerID string, m *model.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.members[trainerID] == nil {
		s.members[trainerID] = make(map[string]*model.Member)
	}

	current, exists := s.members[trainerID][m.ID]
	if m.Version == 0 {
		if exists {
			return fmt.Errorf("insert member %s: %w", m.ID, store.ErrConflict)
		}
	} else if !exists || current.Version != m.Version {
		return fmt.Errorf("update member %s: %w", m.ID, store.ErrConflict)
	}

	m.Version++
	s.members[trainerID][m.ID] = m.Clone()
	return nil
}

func (s *MemberStore) Delete(_ context.Context, trainerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.members[trainerID], id)
	return nil
}

// GroupStore is an in-memory store.GroupStore.
type GroupStore struct {
	mu     sync.RWMutex
	groups map[string]map[string]*model.TrainingGroup
}

func NewGroupStore() *GroupStore {
	return &GroupStore{groups: make(map[string]map[string]*model.TrainingGroup)}
}

func (s *GroupStore) Get(_ context.Context, trainerID, id string) (*model.TrainingGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.groups[trainerID][id]
	if !ok {
		return nil, fmt.Errorf("group %s: %w", id, store.ErrNotFound)
	}
	clone := *g
	return &clone, nil
}

func (s *GroupStore) List(_ context.Context, trainerID string) ([]*model.TrainingGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var groups []*model.TrainingGroup
	for _, g := range s.groups[trainerID] {
		clone := *g
		groups = append(groups, &clone)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].ID < groups[j].ID })
	return groups, nil
}

func (s *GroupStore) Save(_ context.Context, trainerID string, g *model.TrainingGroup) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.groups[trainerID] == nil {
		s.groups[trainerID] = make(map[string]*model.TrainingGroup)
	}

	current, exists := s.groups[trainerID][g.ID]
	if g.Version == 0 {
		if exists {
			return fmt.Errorf("insert group %s: %w", g.ID, store.ErrConflict)
		}
	} else if !exists || current.Version != g.Version {
		return fmt.Errorf("update group %s: %w", g.ID, store.ErrConflict)
	}

	g.Version++
	clone := *g
	s.groups[trainerID][g.ID] = &clone
	return nil
}

func (s *GroupStore) Delete(_ context.Context, trainerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.groups[trainerID], id)
	return nil
}

// UserStore is an in-memory store.UserStore.
type UserStore struct {
	mu    sync.RWMutex
	users map[string]*model.User
}

func NewUserStore() *UserStore {
	return &UserStore{users: make(map[string]*model.User)}
}

func (s *UserStore) Get(_ context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, store.ErrNotFound)
	}
	return u.Clone(), nil
}

func (s *UserStore) Save(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.users[u.ID]
	if u.Version == 0 {
		if exists {
			return fmt.Errorf("insert user %s: %w", u.ID, store.ErrConflict)
		}
	} else if !exists || current.Version != u.Version {
		return fmt.Errorf("update user %s: %w", u.ID, store.ErrConflict)
	}

	u.Version++
	s.users[u.ID] = u.Clone()
	return nil
}

func (s *UserStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
	return nil
}
