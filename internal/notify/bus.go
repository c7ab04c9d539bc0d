// Package notify carries fire-and-forget "event changed" signals from the
// booking core to calendar views. Subscribers register explicitly per view
// instance; there is no ambient global channel.
package notify

import (
	"sync"

	"github.com/golyo/golyo-calendar/internal/model"
)

// ChangeType tells a view how to apply an event change.
type ChangeType string

const (
	Added   ChangeType = "added"
	Changed ChangeType = "changed"
	Removed ChangeType = "removed"
)

// EventChange is the signal shape consumed by views.
type EventChange struct {
	Event *model.Event
	Type  ChangeType
}

// Bus is a typed pub/sub channel for event changes. Publishing never blocks;
// a subscriber that stops draining loses signals, which is acceptable because
// the next calendar query supersedes them anyway.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]chan EventChange
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan EventChange)}
}

// Subscribe registers a new listener. The returned cancel func unregisters
// it and closes the channel.
func (b *Bus) Subscribe(buffer int) (<-chan EventChange, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan EventChange, buffer)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish fans the change out to every subscriber without blocking.
func (b *Bus) Publish(change EventChange) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs {
		select {
		case ch <- change:
		default:
		}
	}
}
