package service

import (
	"time"

	"github.com/golyo/golyo-calendar/internal/model"
)

// joinGuard validates a join attempt against the group invariants. The same
// checks run again inside the read-modify-write on the authoritative copy.
func joinGuard(group *model.TrainingGroup, event *model.Event, now time.Time) error {
	if event.IsDeleted {
		return ErrEventCancelled
	}
	if !now.Before(event.StartTime) {
		return ErrEventStarted
	}
	if len(event.MemberIDs) >= group.MaxMembers {
		return ErrCapacityExceeded
	}
	return nil
}

// Refundable reports whether leaving the event now still refunds the credit.
// Leaving closer to the start than the group's cancellation deadline
// forfeits it.
func Refundable(group *model.TrainingGroup, event *model.Event, now time.Time) bool {
	return !now.Add(group.CancellationDeadline()).After(event.StartTime)
}
