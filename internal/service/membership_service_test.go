package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/golyo/golyo-calendar/internal/cronrule"
	"github.com/golyo/golyo-calendar/internal/model"
	"github.com/golyo/golyo-calendar/internal/store"
)

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		name    string
		by      Actor
		from    model.MemberState
		to      *model.MemberState
		allowed bool
	}{
		{"user requests access", ActorUser, "", statePtr(model.StateUserRequest), true},
		{"trainer invites", ActorTrainer, "", statePtr(model.StateTrainerRequest), true},
		{"user cannot self-accept own request", ActorUser, model.StateUserRequest, statePtr(model.StateAccepted), false},
		{"trainer accepts user request", ActorTrainer, model.StateUserRequest, statePtr(model.StateAccepted), true},
		{"trainer rejects user request", ActorTrainer, model.StateUserRequest, statePtr(model.StateUserSuspended), true},
		{"user accepts trainer invite", ActorUser, model.StateTrainerRequest, statePtr(model.StateAccepted), true},
		{"user rejects trainer invite", ActorUser, model.StateTrainerRequest, statePtr(model.StateTrainerSuspended), true},
		{"user leaves", ActorUser, model.StateAccepted, statePtr(model.StateUserSuspended), true},
		{"trainer suspends", ActorTrainer, model.StateAccepted, statePtr(model.StateTrainerSuspended), true},
		{"trainer reactivates user-suspended", ActorTrainer, model.StateUserSuspended, statePtr(model.StateAccepted), true},
		{"user cannot reactivate own suspension", ActorUser, model.StateUserSuspended, statePtr(model.StateAccepted), false},
		{"user reactivates trainer-suspended", ActorUser, model.StateTrainerSuspended, statePtr(model.StateAccepted), true},
		{"trainer deletes user-suspended", ActorTrainer, model.StateUserSuspended, nil, true},
		{"user deletes trainer-suspended", ActorUser, model.StateTrainerSuspended, nil, true},
		{"user cancels own request", ActorUser, model.StateUserRequest, nil, true},
		{"trainer cancels own invite", ActorTrainer, model.StateTrainerRequest, nil, true},
		{"no delete while accepted", ActorTrainer, model.StateAccepted, nil, false},
		{"no direct accept from nothing", ActorTrainer, "", statePtr(model.StateAccepted), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, transitionAllowed(tt.by, tt.from, tt.to))
		})
	}
}

func TestCreateRequestAndAccept(t *testing.T) {
	f := newFixture(t)
	f.saveGroup(t, groupFixture("g1"))

	member := &model.Member{ID: "anna@example.com", Name: "Anna"}
	err := f.membership.CreateRequest(f.ctx, testTrainerID, "Coach", member, "g1", ActorTrainer)
	require.NoError(t, err)

	saved, err := f.members.Get(f.ctx, testTrainerID, "anna@example.com")
	require.NoError(t, err)
	assert.Equal(t, model.StateTrainerRequest, saved.State)
	assert.Equal(t, []string{"g1"}, saved.Groups)

	// placeholder user with back-reference
	user, err := f.users.Get(f.ctx, "anna@example.com")
	require.NoError(t, err)
	require.Len(t, user.Memberships, 1)
	assert.Equal(t, "g1", user.Memberships[0].GroupID)
	assert.Equal(t, testTrainerID, user.Memberships[0].TrainerID)
	assert.False(t, user.Registered())

	accepted, err := f.membership.SetState(f.ctx, testTrainerID, "anna@example.com", statePtr(model.StateAccepted), ActorUser)
	require.NoError(t, err)
	assert.Equal(t, model.StateAccepted, accepted.State)

	// duplicate request is rejected
	err = f.membership.CreateRequest(f.ctx, testTrainerID, "Coach", &model.Member{ID: "anna@example.com"}, "g1", ActorTrainer)
	assert.ErrorIs(t, err, ErrMemberExists)
}

func TestCreateRequestInviteOnly(t *testing.T) {
	f := newFixture(t)

	closed := groupFixture("closed")
	closed.InviteOnly = true
	f.saveGroup(t, closed)

	err := f.membership.CreateRequest(f.ctx, testTrainerID, "Coach", &model.Member{ID: "walkin"}, "closed", ActorUser)
	assert.ErrorIs(t, err, ErrInviteOnly)

	// trainer can still invite into a closed group
	err = f.membership.CreateRequest(f.ctx, testTrainerID, "Coach", &model.Member{ID: "walkin"}, "closed", ActorTrainer)
	require.NoError(t, err)
}

func TestSetStateInvalidTransition(t *testing.T) {
	f := newFixture(t)
	f.saveGroup(t, groupFixture("g1"))
	f.saveMember(t, memberFixture("m1", 0)) // ACCEPTED

	_, err := f.membership.SetState(f.ctx, testTrainerID, "m1", statePtr(model.StateAccepted), ActorTrainer)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.membership.SetState(f.ctx, testTrainerID, "ghost", statePtr(model.StateAccepted), ActorTrainer)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteCleansUpUnregisteredUser(t *testing.T) {
	f := newFixture(t)
	f.saveGroup(t, groupFixture("g1"))

	member := &model.Member{ID: "guest", Name: "Guest"}
	require.NoError(t, f.membership.CreateRequest(f.ctx, testTrainerID, "Coach", member, "g1", ActorTrainer))

	_, err := f.membership.SetState(f.ctx, testTrainerID, "guest", nil, ActorTrainer)
	require.NoError(t, err)

	_, err = f.members.Get(f.ctx, testTrainerID, "guest")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = f.users.Get(f.ctx, "guest")
	assert.ErrorIs(t, err, store.ErrNotFound, "placeholder user goes with its last membership")
}

func TestDeleteKeepsRegisteredUser(t *testing.T) {
	f := newFixture(t)
	f.saveGroup(t, groupFixture("g1"))

	registered := testNow.Add(-30 * 24 * time.Hour)
	require.NoError(t, f.users.Save(f.ctx, &model.User{ID: "bela", Name: "Béla", RegisteredAt: &registered}))

	member := &model.Member{ID: "bela", Name: "Béla"}
	require.NoError(t, f.membership.CreateRequest(f.ctx, testTrainerID, "Coach", member, "g1", ActorTrainer))

	_, err := f.membership.SetState(f.ctx, testTrainerID, "bela", nil, ActorTrainer)
	require.NoError(t, err)

	user, err := f.users.Get(f.ctx, "bela")
	require.NoError(t, err)
	assert.Empty(t, user.Memberships)
}

func TestSaveGroupValidatesRules(t *testing.T) {
	f := newFixture(t)

	bad := groupFixture("")
	bad.RecurrenceRules = []string{"18:00 on mondays"}
	err := f.membership.SaveGroup(f.ctx, testTrainerID, bad)
	assert.ErrorIs(t, err, cronrule.ErrValidation)

	good := groupFixture("")
	require.NoError(t, f.membership.SaveGroup(f.ctx, testTrainerID, good))
	assert.NotEmpty(t, good.ID, "new group gets an id assigned")
}

func TestGroupMembers(t *testing.T) {
	f := newFixture(t)
	f.saveGroup(t, groupFixture("g1"))

	inGroup := memberFixture("m1", 5)
	inGroup.Groups = []string{"g1"}
	f.saveMember(t, inGroup)

	suspended := memberFixture("m2", 0)
	suspended.Groups = []string{"g1"}
	suspended.State = model.StateTrainerSuspended
	f.saveMember(t, suspended)

	f.saveMember(t, memberFixture("m3", 0)) // not attached

	group, members, err := f.membership.GroupMembers(f.ctx, testTrainerID, "g1")
	require.NoError(t, err)
	assert.Equal(t, "g1", group.ID)
	require.Len(t, members, 2, "suspended members are listed, unattached are not")
	assert.Equal(t, "m1", members[0].ID)
	assert.Equal(t, "m2", members[1].ID)

	_, _, err = f.membership.GroupMembers(f.ctx, testTrainerID, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteGroupGuardedByActiveMembers(t *testing.T) {
	f := newFixture(t)
	f.saveGroup(t, groupFixture("g1"))

	member := memberFixture("m1", 0)
	member.Groups = []string{"g1"}
	f.saveMember(t, member)

	err := f.membership.DeleteGroup(f.ctx, testTrainerID, "g1")
	assert.ErrorIs(t, err, ErrGroupNotEmpty)

	// suspended members do not block deletion
	_, err = f.membership.SetState(f.ctx, testTrainerID, "m1", statePtr(model.StateTrainerSuspended), ActorTrainer)
	require.NoError(t, err)
	require.NoError(t, f.membership.DeleteGroup(f.ctx, testTrainerID, "g1"))
}
