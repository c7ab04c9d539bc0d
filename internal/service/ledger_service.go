package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/golyo/golyo-calendar/internal/model"
	"github.com/golyo/golyo-calendar/internal/notify"
	"github.com/golyo/golyo-calendar/internal/store"
)

// casAttempts bounds the compare-and-swap retries before the conflict is
// surfaced to the caller.
const casAttempts = 5

// Delta is one atomic ticket-sheet mutation.
type Delta struct {
	Purchase   int
	Credit     int
	Attendance int
}

// LedgerService keeps the per-member, per-group-type ticket sheets
// consistent and moves members in and out of events.
type LedgerService struct {
	events  store.EventStore
	members store.MemberStore
	groups  store.GroupStore
	clock   Clock
	bus     *notify.Bus
	logger  *zap.Logger
}

func NewLedgerService(
	events store.EventStore,
	members store.MemberStore,
	groups store.GroupStore,
	clock Clock,
	bus *notify.Bus,
	logger *zap.Logger,
) *LedgerService {
	return &LedgerService{
		events:  events,
		members: members,
		groups:  groups,
		clock:   clock,
		bus:     bus,
		logger:  logger,
	}
}

// ApplyDelta applies all three deltas to the member's sheet for the group
// type in one read-modify-write, creating the sheet lazily on first need.
// A missing member is store.ErrNotFound; a write that keeps losing against
// concurrent mutations is store.ErrConflict.
func (s *LedgerService) ApplyDelta(ctx context.Context, trainerID, memberID string, pool model.GroupType, d Delta) (*model.TicketSheet, error) {
	var sheet model.TicketSheet

	backoff := retry.WithMaxRetries(casAttempts, retry.NewFibonacci(5*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		member, err := s.members.Get(ctx, trainerID, memberID)
		if err != nil {
			return err
		}

		sh := member.EnsureSheet(pool)
		sh.PurchasedTicketCount += d.Purchase
		sh.RemainingCredits += d.Credit
		sh.AttendanceCount += d.Attendance
		if d.Purchase != 0 {
			at := endOfDay(s.clock.Now())
			sh.PurchasedAt = &at
		}

		if err := s.members.Save(ctx, trainerID, member); err != nil {
			if store.IsConflict(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		sheet = *sh
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("apply ticket delta for member %s: %w", memberID, err)
	}

	s.logger.Debug("Ticket sheet updated",
		zap.String("member_id", memberID),
		zap.String("group_type", string(pool)),
		zap.Int("remaining_credits", sheet.RemainingCredits),
		zap.Int("attendance", sheet.AttendanceCount),
	)

	return &sheet, nil
}

// BuySeasonTicket credits a full ticket block to the member's sheet for the
// group's pool.
func (s *LedgerService) BuySeasonTicket(ctx context.Context, trainerID, memberID, groupID string) (*model.TicketSheet, error) {
	group, err := s.groups.Get(ctx, trainerID, groupID)
	if err != nil {
		return nil, fmt.Errorf("get group: %w", err)
	}

	sheet, err := s.ApplyDelta(ctx, trainerID, memberID, group.PoolKey(), Delta{
		Purchase: 1,
		Credit:   group.TicketBlockSize,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Season ticket purchased",
		zap.String("member_id", memberID),
		zap.String("group_id", groupID),
		zap.Int("block_size", group.TicketBlockSize),
	)

	return sheet, nil
}

// AddMember books the member into the event, materializing the event if it
// was still virtual, then debits one credit and counts the attendance.
func (s *LedgerService) AddMember(ctx context.Context, trainerID string, event *model.Event, memberID string) (*model.Event, error) {
	group, err := s.groups.Get(ctx, trainerID, event.GroupID)
	if err != nil {
		return nil, fmt.Errorf("get group: %w", err)
	}

	if err := joinGuard(group, event, s.clock.Now()); err != nil {
		return nil, err
	}

	updated, err := s.getAndModify(ctx, trainerID, event, func(e *model.Event) error {
		// re-check against the authoritative copy
		if e.IsDeleted {
			return ErrEventCancelled
		}
		if len(e.MemberIDs) >= group.MaxMembers {
			return ErrCapacityExceeded
		}
		if e.HasMember(memberID) {
			return ErrAlreadyBooked
		}
		e.AddMember(memberID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.ApplyDelta(ctx, trainerID, memberID, group.PoolKey(), Delta{Credit: -1, Attendance: 1}); err != nil {
		return nil, err
	}

	s.logger.Info("Member joined event",
		zap.String("event_id", updated.ID),
		zap.String("member_id", memberID),
		zap.Int("attendees", len(updated.MemberIDs)),
	)

	s.publish(notify.Changed, updated)
	return updated, nil
}

// RemoveMember takes the member off the event's attendee list and reverses
// the attendance. refundCredit is decided by the caller through Refundable:
// a leave inside the cancellation deadline forfeits the credit.
func (s *LedgerService) RemoveMember(ctx context.Context, trainerID string, event *model.Event, memberID string, refundCredit bool) (*model.Event, error) {
	group, err := s.groups.Get(ctx, trainerID, event.GroupID)
	if err != nil {
		return nil, fmt.Errorf("get group: %w", err)
	}

	updated, err := s.getAndModify(ctx, trainerID, event, func(e *model.Event) error {
		e.RemoveMember(memberID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	credit := 0
	if refundCredit {
		credit = 1
	}
	if _, err := s.ApplyDelta(ctx, trainerID, memberID, group.PoolKey(), Delta{Credit: credit, Attendance: -1}); err != nil {
		return nil, err
	}

	s.logger.Info("Member left event",
		zap.String("event_id", updated.ID),
		zap.String("member_id", memberID),
		zap.Bool("refunded", refundCredit),
	)

	s.publish(notify.Changed, updated)
	return updated, nil
}

// getAndModify is the scoped read-modify-write every event mutation goes
// through: fetch the current document (falling back to the caller's virtual
// copy when none is persisted yet), apply the modifier, and compare-and-swap
// it back, retrying lost races a bounded number of times.
func (s *LedgerService) getAndModify(ctx context.Context, trainerID string, seed *model.Event, mod func(*model.Event) error) (*model.Event, error) {
	var result *model.Event

	backoff := retry.WithMaxRetries(casAttempts, retry.NewFibonacci(5*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		current, err := s.events.Get(ctx, trainerID, seed.ID)
		if store.IsNotFound(err) {
			current = seed.Clone()
			current.Version = 0
		} else if err != nil {
			return err
		}

		if err := mod(current); err != nil {
			return err
		}

		if err := s.events.Save(ctx, trainerID, current); err != nil {
			if store.IsConflict(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		result = current
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("modify event %s: %w", seed.ID, err)
	}

	result.RefreshBadge()
	return result, nil
}

func (s *LedgerService) publish(t notify.ChangeType, e *model.Event) {
	if s.bus != nil {
		s.bus.Publish(notify.EventChange{Event: e, Type: t})
	}
}

// endOfDay stamps purchases with the last instant of the local day, so a
// sheet bought any time today sorts after today's sessions.
func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, t.Location())
}
