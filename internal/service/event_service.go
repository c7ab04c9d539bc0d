package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/golyo/golyo-calendar/internal/cronrule"
	"github.com/golyo/golyo-calendar/internal/model"
	"github.com/golyo/golyo-calendar/internal/notify"
	"github.com/golyo/golyo-calendar/internal/occurrence"
	"github.com/golyo/golyo-calendar/internal/store"
)

// EventService merges persisted events with generated occurrences into the
// unified chronological list calendar views render, and drives the event
// lifecycle (ad-hoc creation, cancellation, reactivation, removal).
type EventService struct {
	events store.EventStore
	groups store.GroupStore
	ledger *LedgerService
	gen    *occurrence.Generator
	clock  Clock
	bus    *notify.Bus
	logger *zap.Logger
}

func NewEventService(
	events store.EventStore,
	groups store.GroupStore,
	ledger *LedgerService,
	gen *occurrence.Generator,
	clock Clock,
	bus *notify.Bus,
	logger *zap.Logger,
) *EventService {
	return &EventService{
		events: events,
		groups: groups,
		ledger: ledger,
		gen:    gen,
		clock:  clock,
		bus:    bus,
		logger: logger,
	}
}

// Events returns the trainer's events in [from, to], persisted and virtual
// merged, ascending by start time with group ID as tie-breaker. groupID
// restricts the result to one group; empty means all groups. An inverted
// window is a legitimate query while UI state settles and yields an empty
// list, not an error.
func (s *EventService) Events(ctx context.Context, trainerID string, from, to time.Time, groupID string) ([]*model.Event, error) {
	if to.Before(from) {
		return []*model.Event{}, nil
	}

	groups, err := s.groups.List(ctx, trainerID)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	if groupID != "" {
		filtered := groups[:0]
		for _, g := range groups {
			if g.ID == groupID {
				filtered = append(filtered, g)
			}
		}
		groups = filtered
	}
	if len(groups) == 0 {
		return []*model.Event{}, nil
	}

	// persisted events, one store query per group, joined before merging
	window := store.Window{From: from, To: to}
	perGroup := make([][]*model.Event, len(groups))
	eg, qctx := errgroup.WithContext(ctx)
	for i, g := range groups {
		eg.Go(func() error {
			events, err := s.events.Query(qctx, trainerID, window, []string{g.ID})
			if err != nil {
				return fmt.Errorf("query events of group %s: %w", g.ID, err)
			}
			perGroup[i] = events
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	var all []*model.Event
	persisted := make(map[string]bool)
	for _, events := range perGroup {
		for _, e := range events {
			persisted[occurrenceKey(e.GroupID, e.StartTime)] = true
			all = append(all, e)
		}
	}

	// future part of the window: append generated occurrences, persisted
	// records stay authoritative on start-time collisions
	now := s.clock.Now()
	if to.After(now) {
		genFrom := from
		if now.After(genFrom) {
			genFrom = now
		}
		for _, g := range groups {
			starts, err := s.expandGroup(g, genFrom, to)
			if err != nil {
				return nil, err
			}
			for _, start := range starts {
				if persisted[occurrenceKey(g.ID, start)] {
					continue
				}
				all = append(all, model.NewOccurrence(g, trainerID, start))
			}
		}
	}

	sort.Slice(all, func(i, j int) bool {
		if !all[i].StartTime.Equal(all[j].StartTime) {
			return all[i].StartTime.Before(all[j].StartTime)
		}
		return all[i].GroupID < all[j].GroupID
	})
	for _, e := range all {
		e.RefreshBadge()
	}

	return all, nil
}

// expandGroup runs the generator over every recurrence rule of the group.
func (s *EventService) expandGroup(g *model.TrainingGroup, from, to time.Time) ([]time.Time, error) {
	var starts []time.Time
	for _, raw := range g.RecurrenceRules {
		rule, err := cronrule.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("group %s: %w", g.ID, err)
		}
		expanded, err := s.gen.Generate(rule, from, to)
		if err != nil {
			return nil, fmt.Errorf("group %s: %w", g.ID, err)
		}
		starts = append(starts, expanded...)
	}
	return starts, nil
}

// CreateEvent persists an ad-hoc extra session. Unlike recurring occurrences
// it is fully removable again.
func (s *EventService) CreateEvent(ctx context.Context, trainerID, groupID string, start time.Time) (*model.Event, error) {
	group, err := s.groups.Get(ctx, trainerID, groupID)
	if err != nil {
		return nil, fmt.Errorf("get group: %w", err)
	}

	event := model.NewOccurrence(group, trainerID, start)
	event.Deletable = true
	if err := s.events.Save(ctx, trainerID, event); err != nil {
		return nil, fmt.Errorf("save event: %w", err)
	}
	event.RefreshBadge()

	s.logger.Info("Ad-hoc event created",
		zap.String("event_id", event.ID),
		zap.String("group_id", groupID),
		zap.Time("start_time", start),
	)

	s.publish(notify.Added, event)
	return event, nil
}

// CancelEvent soft-deletes a recurring occurrence: every attendee gets the
// credit back and the attendance reversed, the record stays (struck through
// in views) so the generator cannot resurrect the slot.
func (s *EventService) CancelEvent(ctx context.Context, trainerID string, event *model.Event) (*model.Event, error) {
	group, err := s.groups.Get(ctx, trainerID, event.GroupID)
	if err != nil {
		return nil, fmt.Errorf("get group: %w", err)
	}

	var attendees []string
	updated, err := s.ledger.getAndModify(ctx, trainerID, event, func(e *model.Event) error {
		attendees = append(attendees[:0], e.MemberIDs...)
		e.IsDeleted = true
		e.MemberIDs = []string{}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.refund(ctx, trainerID, group, attendees); err != nil {
		return nil, err
	}

	s.logger.Info("Event cancelled",
		zap.String("event_id", updated.ID),
		zap.Int("refunded_members", len(attendees)),
	)

	s.publish(notify.Changed, updated)
	return updated, nil
}

// ReactivateEvent makes a cancelled occurrence bookable again. Prior
// bookings are not reinstated; the attendee list starts empty.
func (s *EventService) ReactivateEvent(ctx context.Context, trainerID string, event *model.Event) (*model.Event, error) {
	updated, err := s.ledger.getAndModify(ctx, trainerID, event, func(e *model.Event) error {
		e.IsDeleted = false
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Event reactivated", zap.String("event_id", updated.ID))

	s.publish(notify.Changed, updated)
	return updated, nil
}

// DeleteEvent hard-removes an ad-hoc session after refunding its attendees.
// Recurring occurrences are not removable and fall back to cancellation.
func (s *EventService) DeleteEvent(ctx context.Context, trainerID string, event *model.Event) error {
	if !event.Deletable {
		_, err := s.CancelEvent(ctx, trainerID, event)
		return err
	}

	group, err := s.groups.Get(ctx, trainerID, event.GroupID)
	if err != nil {
		return fmt.Errorf("get group: %w", err)
	}

	saved, err := s.events.Get(ctx, trainerID, event.ID)
	if store.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("get event: %w", err)
	}

	if err := s.refund(ctx, trainerID, group, saved.MemberIDs); err != nil {
		return err
	}
	if err := s.events.Delete(ctx, trainerID, event.ID); err != nil {
		return fmt.Errorf("delete event: %w", err)
	}

	s.logger.Info("Event deleted",
		zap.String("event_id", event.ID),
		zap.Int("refunded_members", len(saved.MemberIDs)),
	)

	s.publish(notify.Removed, saved)
	return nil
}

// refund gives one credit back and reverses one attendance per member.
func (s *EventService) refund(ctx context.Context, trainerID string, group *model.TrainingGroup, memberIDs []string) error {
	for _, memberID := range memberIDs {
		_, err := s.ledger.ApplyDelta(ctx, trainerID, memberID, group.PoolKey(), Delta{Credit: 1, Attendance: -1})
		if err != nil {
			return fmt.Errorf("refund member %s: %w", memberID, err)
		}
	}
	return nil
}

func (s *EventService) publish(t notify.ChangeType, e *model.Event) {
	if s.bus != nil {
		s.bus.Publish(notify.EventChange{Event: e, Type: t})
	}
}

func occurrenceKey(groupID string, start time.Time) string {
	return groupID + "|" + strconv.FormatInt(start.UnixMilli(), 10)
}
