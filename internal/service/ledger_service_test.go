package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/golyo/golyo-calendar/internal/model"
	"github.com/golyo/golyo-calendar/internal/store"
)

func futureEvent(g *model.TrainingGroup, start time.Time) *model.Event {
	return model.NewOccurrence(g, testTrainerID, start)
}

func TestAddMemberDebitsAndMaterializes(t *testing.T) {
	f := newFixture(t)
	group := f.saveGroup(t, groupFixture("g1"))
	f.saveMember(t, memberFixture("m1", 10))

	event := futureEvent(group, testNow.Add(48*time.Hour))

	updated, err := f.ledger.AddMember(f.ctx, testTrainerID, event, "m1")
	require.NoError(t, err)
	assert.Equal(t, []string{"m1"}, updated.MemberIDs)
	assert.Equal(t, "1", updated.Badge)

	// virtual occurrence became a persisted record
	saved, err := f.events.Get(f.ctx, testTrainerID, event.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"m1"}, saved.MemberIDs)

	sheet := f.sheet(t, "m1", model.GroupTypeGroup)
	assert.Equal(t, 9, sheet.RemainingCredits)
	assert.Equal(t, 1, sheet.AttendanceCount)
}

func TestJoinLeaveIsNoOpPair(t *testing.T) {
	f := newFixture(t)
	group := f.saveGroup(t, groupFixture("g1"))
	f.saveMember(t, memberFixture("m1", 5))

	event := futureEvent(group, testNow.Add(48*time.Hour))

	joined, err := f.ledger.AddMember(f.ctx, testTrainerID, event, "m1")
	require.NoError(t, err)

	_, err = f.ledger.RemoveMember(f.ctx, testTrainerID, joined, "m1", true)
	require.NoError(t, err)

	sheet := f.sheet(t, "m1", model.GroupTypeGroup)
	assert.Equal(t, 5, sheet.RemainingCredits)
	assert.Equal(t, 0, sheet.AttendanceCount)
}

func TestCapacityScenario(t *testing.T) {
	f := newFixture(t)
	group := groupFixture("g1")
	group.MaxMembers = 1
	f.saveGroup(t, group)
	f.saveMember(t, memberFixture("m1", 10))
	f.saveMember(t, memberFixture("m2", 10))

	event := futureEvent(group, testNow.Add(48*time.Hour))

	joined, err := f.ledger.AddMember(f.ctx, testTrainerID, event, "m1")
	require.NoError(t, err)
	first := f.sheet(t, "m1", model.GroupTypeGroup)
	assert.Equal(t, 9, first.RemainingCredits)
	assert.Equal(t, 1, first.AttendanceCount)

	_, err = f.ledger.AddMember(f.ctx, testTrainerID, joined, "m2")
	assert.ErrorIs(t, err, ErrCapacityExceeded)

	// attendee list unchanged, m2's sheet untouched
	saved, err := f.events.Get(f.ctx, testTrainerID, event.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"m1"}, saved.MemberIDs)
	second := f.sheet(t, "m2", model.GroupTypeGroup)
	assert.Equal(t, 10, second.RemainingCredits)

	// late leave without refund
	_, err = f.ledger.RemoveMember(f.ctx, testTrainerID, saved, "m1", false)
	require.NoError(t, err)
	first = f.sheet(t, "m1", model.GroupTypeGroup)
	assert.Equal(t, 9, first.RemainingCredits)
	assert.Equal(t, 0, first.AttendanceCount)
}

func TestAddMemberGuards(t *testing.T) {
	f := newFixture(t)
	group := f.saveGroup(t, groupFixture("g1"))
	f.saveMember(t, memberFixture("m1", 10))

	cancelled := futureEvent(group, testNow.Add(48*time.Hour))
	cancelled.IsDeleted = true
	_, err := f.ledger.AddMember(f.ctx, testTrainerID, cancelled, "m1")
	assert.ErrorIs(t, err, ErrEventCancelled)

	started := futureEvent(group, testNow.Add(-time.Minute))
	_, err = f.ledger.AddMember(f.ctx, testTrainerID, started, "m1")
	assert.ErrorIs(t, err, ErrEventStarted)

	event := futureEvent(group, testNow.Add(48*time.Hour))
	_, err = f.ledger.AddMember(f.ctx, testTrainerID, event, "m1")
	require.NoError(t, err)
	_, err = f.ledger.AddMember(f.ctx, testTrainerID, event, "m1")
	assert.ErrorIs(t, err, ErrAlreadyBooked)
}

func TestApplyDeltaCreatesSheetLazily(t *testing.T) {
	f := newFixture(t)
	f.saveMember(t, &model.Member{ID: "m1", Name: "m1", State: model.StateAccepted})

	sheet, err := f.ledger.ApplyDelta(f.ctx, testTrainerID, "m1", model.GroupTypePersonal, Delta{Credit: -1, Attendance: 1})
	require.NoError(t, err)
	assert.Equal(t, model.GroupTypePersonal, sheet.GroupType)
	assert.Equal(t, -1, sheet.RemainingCredits) // balance may go negative
	assert.Equal(t, 1, sheet.AttendanceCount)
}

func TestApplyDeltaMissingMember(t *testing.T) {
	f := newFixture(t)

	_, err := f.ledger.ApplyDelta(f.ctx, testTrainerID, "ghost", model.GroupTypeGroup, Delta{Credit: 1})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestBuySeasonTicket(t *testing.T) {
	f := newFixture(t)
	f.saveGroup(t, groupFixture("g1"))
	f.saveMember(t, memberFixture("m1", 2))

	sheet, err := f.ledger.BuySeasonTicket(f.ctx, testTrainerID, "m1", "g1")
	require.NoError(t, err)
	assert.Equal(t, 1, sheet.PurchasedTicketCount)
	assert.Equal(t, 12, sheet.RemainingCredits)
	require.NotNil(t, sheet.PurchasedAt)
	assert.Equal(t, 23, sheet.PurchasedAt.Hour())
}

func TestAttachedGroupsShareOneSheet(t *testing.T) {
	f := newFixture(t)
	morning := groupFixture("morning")
	evening := groupFixture("evening")
	morning.AttachedGroupIDs = []string{"evening"}
	evening.AttachedGroupIDs = []string{"morning"}
	f.saveGroup(t, morning)
	f.saveGroup(t, evening)
	f.saveMember(t, memberFixture("m1", 0))

	_, err := f.ledger.BuySeasonTicket(f.ctx, testTrainerID, "m1", "morning")
	require.NoError(t, err)

	event := futureEvent(evening, testNow.Add(48*time.Hour))
	_, err = f.ledger.AddMember(f.ctx, testTrainerID, event, "m1")
	require.NoError(t, err)

	m, err := f.members.Get(f.ctx, testTrainerID, "m1")
	require.NoError(t, err)
	require.Len(t, m.TicketSheets, 1)
	assert.Equal(t, 9, m.TicketSheets[0].RemainingCredits)
}

// conflictingMemberStore keeps losing every compare-and-swap.
type conflictingMemberStore struct {
	store.MemberStore
}

func (s *conflictingMemberStore) Save(ctx context.Context, trainerID string, m *model.Member) error {
	return fmt.Errorf("update member %s: %w", m.ID, store.ErrConflict)
}

func TestApplyDeltaSurfacesConflict(t *testing.T) {
	f := newFixture(t)
	f.saveMember(t, memberFixture("m1", 5))

	ledger := NewLedgerService(f.events, &conflictingMemberStore{MemberStore: f.members}, f.groups, f.clock, f.bus, zap.NewNop())

	_, err := ledger.ApplyDelta(f.ctx, testTrainerID, "m1", model.GroupTypeGroup, Delta{Credit: -1})
	assert.ErrorIs(t, err, store.ErrConflict)
}

func TestRefundableGuard(t *testing.T) {
	group := groupFixture("g1") // 24h deadline
	event := &model.Event{StartTime: testNow.Add(30 * time.Hour)}

	assert.True(t, Refundable(group, event, testNow))
	assert.False(t, Refundable(group, event, testNow.Add(10*time.Hour)))
	// exactly at the deadline still refunds
	assert.True(t, Refundable(group, event, testNow.Add(6*time.Hour)))
}
