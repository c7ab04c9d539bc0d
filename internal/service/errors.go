package service

import "errors"

// Rejection reasons surfaced to callers; user-facing messaging is the
// caller's job. Store lookup misses and lost compare-and-swap writes come
// through as store.ErrNotFound and store.ErrConflict.
var (
	ErrCapacityExceeded  = errors.New("event is at maximum capacity")
	ErrEventCancelled    = errors.New("event is cancelled")
	ErrEventStarted      = errors.New("event has already started")
	ErrAlreadyBooked     = errors.New("member is already booked into the event")
	ErrMemberExists      = errors.New("membership already exists")
	ErrInviteOnly        = errors.New("group accepts members by trainer invite only")
	ErrInvalidTransition = errors.New("membership state transition not allowed")
	ErrGroupNotEmpty     = errors.New("group still has active members")
)
