package model

import (
	"slices"
	"strconv"
	"time"
)

// Event is one concrete bookable occurrence of a training group.
//
// A virtual event exists only in memory, produced by the occurrence
// generator; it becomes persisted the moment any mutation happens to it.
// Virtual events carry their start timestamp (unix milliseconds, decimal)
// as ID so that the same occurrence always resolves to the same document.
type Event struct {
	ID        string    `json:"id"`
	GroupID   string    `json:"groupId"`
	TrainerID string    `json:"trainerId"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	MemberIDs []string  `json:"memberIds"`
	IsDeleted bool      `json:"isDeleted"`
	// Deletable marks ad-hoc extra sessions that may be hard-removed.
	// Canceled recurring slots are only ever soft-deleted, otherwise the
	// generator would resurrect them.
	Deletable bool `json:"deletable"`

	// Badge is the attendee count rendered for calendar views. Computed,
	// never authoritative.
	Badge string `json:"badge,omitempty"`

	Version int64 `json:"-"`
}

// VirtualEventID derives the event ID used for generator-produced occurrences.
func VirtualEventID(start time.Time) string {
	return strconv.FormatInt(start.UnixMilli(), 10)
}

// NewOccurrence builds an in-memory occurrence of the group at the given start.
func NewOccurrence(group *TrainingGroup, trainerID string, start time.Time) *Event {
	return &Event{
		ID:        VirtualEventID(start),
		GroupID:   group.ID,
		TrainerID: trainerID,
		StartTime: start,
		EndTime:   start.Add(group.Duration()),
		MemberIDs: []string{},
	}
}

// HasMember reports whether the member is booked into this event.
func (e *Event) HasMember(memberID string) bool {
	return slices.Contains(e.MemberIDs, memberID)
}

// AddMember appends the member to the attendee list.
func (e *Event) AddMember(memberID string) {
	e.MemberIDs = append(e.MemberIDs, memberID)
}

// RemoveMember drops the member from the attendee list.
func (e *Event) RemoveMember(memberID string) {
	e.MemberIDs = slices.DeleteFunc(e.MemberIDs, func(id string) bool {
		return id == memberID
	})
}

// RefreshBadge recomputes the attendee-count badge.
func (e *Event) RefreshBadge() {
	e.Badge = strconv.Itoa(len(e.MemberIDs))
}

// Clone returns a deep copy of the event.
func (e *Event) Clone() *Event {
	c := *e
	c.MemberIDs = slices.Clone(e.MemberIDs)
	return &c
}
