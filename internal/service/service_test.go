package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/golyo/golyo-calendar/internal/model"
	"github.com/golyo/golyo-calendar/internal/notify"
	"github.com/golyo/golyo-calendar/internal/occurrence"
	"github.com/golyo/golyo-calendar/internal/store/memory"
)

const testTrainerID = "trainer-1"

// Thursday noon
var testNow = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fixture struct {
	ctx        context.Context
	clock      *fakeClock
	events     *memory.EventStore
	members    *memory.MemberStore
	groups     *memory.GroupStore
	users      *memory.UserStore
	bus        *notify.Bus
	ledger     *LedgerService
	eventSrv   *EventService
	membership *MembershipService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zap.NewNop()
	clock := &fakeClock{now: testNow}

	events := memory.NewEventStore()
	members := memory.NewMemberStore()
	groups := memory.NewGroupStore()
	users := memory.NewUserStore()
	bus := notify.NewBus()

	ledger := NewLedgerService(events, members, groups, clock, bus, logger)
	gen := occurrence.New(clock.Now, 0)
	eventSrv := NewEventService(events, groups, ledger, gen, clock, bus, logger)
	membership := NewMembershipService(members, users, groups, logger)

	return &fixture{
		ctx:        context.Background(),
		clock:      clock,
		events:     events,
		members:    members,
		groups:     groups,
		users:      users,
		bus:        bus,
		ledger:     ledger,
		eventSrv:   eventSrv,
		membership: membership,
	}
}

func (f *fixture) saveGroup(t *testing.T, g *model.TrainingGroup) *model.TrainingGroup {
	t.Helper()
	require.NoError(t, f.groups.Save(f.ctx, testTrainerID, g))
	return g
}

func (f *fixture) saveMember(t *testing.T, m *model.Member) *model.Member {
	t.Helper()
	require.NoError(t, f.members.Save(f.ctx, testTrainerID, m))
	return m
}

func (f *fixture) saveEvent(t *testing.T, e *model.Event) *model.Event {
	t.Helper()
	require.NoError(t, f.events.Save(f.ctx, testTrainerID, e))
	return e
}

func (f *fixture) sheet(t *testing.T, memberID string, pool model.GroupType) model.TicketSheet {
	t.Helper()
	m, err := f.members.Get(f.ctx, testTrainerID, memberID)
	require.NoError(t, err)
	sheet := m.Sheet(pool)
	require.NotNil(t, sheet)
	return *sheet
}

func groupFixture(id string) *model.TrainingGroup {
	return &model.TrainingGroup{
		ID:                        id,
		Name:                      "Functional training",
		GroupType:                 model.GroupTypeGroup,
		DurationMinutes:           60,
		MaxMembers:                12,
		CancellationDeadlineHours: 24,
		TicketBlockSize:           10,
		RecurrenceRules:           []string{"0 18 * * 1,3"}, // Mon, Wed 18:00
	}
}

func memberFixture(id string, credits int) *model.Member {
	return &model.Member{
		ID:    id,
		Name:  id,
		State: model.StateAccepted,
		TicketSheets: []model.TicketSheet{{
			GroupType:        model.GroupTypeGroup,
			RemainingCredits: credits,
		}},
	}
}
