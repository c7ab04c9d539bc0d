package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/golyo/golyo-calendar/internal/cronrule"
	"github.com/golyo/golyo-calendar/internal/model"
	"github.com/golyo/golyo-calendar/internal/store"
)

// Actor is the party driving a membership transition. User- and
// trainer-initiated variants differ in which transitions are self-service.
type Actor string

const (
	ActorUser    Actor = "user"
	ActorTrainer Actor = "trainer"
)

// A nil target state always means "delete the membership record".
func statePtr(s model.MemberState) *model.MemberState { return &s }

// allowedTransitions encodes the membership state machine per actor. The
// empty source state is "no relationship yet".
var allowedTransitions = map[Actor]map[model.MemberState][]*model.MemberState{
	ActorUser: {
		"":                          {statePtr(model.StateUserRequest)},
		model.StateTrainerRequest:   {statePtr(model.StateAccepted), statePtr(model.StateTrainerSuspended)},
		model.StateAccepted:         {statePtr(model.StateUserSuspended)},
		model.StateTrainerSuspended: {statePtr(model.StateAccepted), nil},
		model.StateUserRequest:      {nil},
	},
	ActorTrainer: {
		"":                        {statePtr(model.StateTrainerRequest)},
		model.StateUserRequest:    {statePtr(model.StateAccepted), statePtr(model.StateUserSuspended)},
		model.StateAccepted:       {statePtr(model.StateTrainerSuspended)},
		model.StateUserSuspended:  {statePtr(model.StateAccepted), nil},
		model.StateTrainerRequest: {nil},
	},
}

func transitionAllowed(by Actor, from model.MemberState, to *model.MemberState) bool {
	for _, target := range allowedTransitions[by][from] {
		if target == nil && to == nil {
			return true
		}
		if target != nil && to != nil && *target == *to {
			return true
		}
	}
	return false
}

// MembershipService drives the trainer/member state machine, the user
// back-references, and the training group lifecycle.
type MembershipService struct {
	members store.MemberStore
	users   store.UserStore
	groups  store.GroupStore
	logger  *zap.Logger
}

func NewMembershipService(
	members store.MemberStore,
	users store.UserStore,
	groups store.GroupStore,
	logger *zap.Logger,
) *MembershipService {
	return &MembershipService{
		members: members,
		users:   users,
		groups:  groups,
		logger:  logger,
	}
}

// CreateRequest starts a trainer/member relationship for a group. The
// resulting state depends on which party initiates.
func (s *MembershipService) CreateRequest(ctx context.Context, trainerID, trainerName string, member *model.Member, groupID string, by Actor) error {
	if _, err := s.members.Get(ctx, trainerID, member.ID); err == nil {
		return fmt.Errorf("member %s: %w", member.ID, ErrMemberExists)
	} else if !store.IsNotFound(err) {
		return fmt.Errorf("get member: %w", err)
	}

	group, err := s.groups.Get(ctx, trainerID, groupID)
	if err != nil {
		return fmt.Errorf("get group: %w", err)
	}
	if by == ActorUser && group.InviteOnly {
		return fmt.Errorf("group %s: %w", groupID, ErrInviteOnly)
	}

	switch by {
	case ActorUser:
		member.State = model.StateUserRequest
	default:
		member.State = model.StateTrainerRequest
	}
	member.AddGroup(groupID)

	if err := s.members.Save(ctx, trainerID, member); err != nil {
		return fmt.Errorf("save member: %w", err)
	}

	if err := s.setUserMembership(ctx, member, model.UserGroup{
		GroupID:     groupID,
		TrainerID:   trainerID,
		TrainerName: trainerName,
	}); err != nil {
		return err
	}

	s.logger.Info("Membership request created",
		zap.String("member_id", member.ID),
		zap.String("group_id", groupID),
		zap.String("state", string(member.State)),
	)

	return nil
}

// SetState applies one state-machine transition. A nil target deletes the
// membership record and cleans the user's back-references; deleting the last
// membership of a user who never registered independently removes the user
// record as well.
func (s *MembershipService) SetState(ctx context.Context, trainerID, memberID string, to *model.MemberState, by Actor) (*model.Member, error) {
	member, err := s.members.Get(ctx, trainerID, memberID)
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}

	if !transitionAllowed(by, member.State, to) {
		return nil, fmt.Errorf("%s: %s -> %s: %w", by, member.State, stateName(to), ErrInvalidTransition)
	}

	if to == nil {
		for _, groupID := range member.Groups {
			if err := s.removeUserMembership(ctx, memberID, groupID); err != nil {
				return nil, err
			}
		}
		if err := s.members.Delete(ctx, trainerID, memberID); err != nil {
			return nil, fmt.Errorf("delete member: %w", err)
		}
		s.logger.Info("Membership removed",
			zap.String("member_id", memberID),
			zap.String("by", string(by)),
		)
		return nil, nil
	}

	member.State = *to
	backoff := retry.WithMaxRetries(casAttempts, retry.NewFibonacci(5*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := s.members.Save(ctx, trainerID, member); err != nil {
			if !store.IsConflict(err) {
				return err
			}
			fresh, gerr := s.members.Get(ctx, trainerID, memberID)
			if gerr != nil {
				return gerr
			}
			if !transitionAllowed(by, fresh.State, to) {
				return fmt.Errorf("%s: %s -> %s: %w", by, fresh.State, stateName(to), ErrInvalidTransition)
			}
			fresh.State = *to
			member = fresh
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("save member: %w", err)
	}

	s.logger.Info("Membership state changed",
		zap.String("member_id", memberID),
		zap.String("state", string(*to)),
		zap.String("by", string(by)),
	)

	return member, nil
}

func (s *MembershipService) setUserMembership(ctx context.Context, member *model.Member, ref model.UserGroup) error {
	user, err := s.users.Get(ctx, member.ID)
	if store.IsNotFound(err) {
		// placeholder record for an invited user who never signed up
		user = &model.User{ID: member.ID, Name: member.Name}
	} else if err != nil {
		return fmt.Errorf("get user: %w", err)
	}

	user.SetMembership(ref)
	if err := s.users.Save(ctx, user); err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

func (s *MembershipService) removeUserMembership(ctx context.Context, userID, groupID string) error {
	user, err := s.users.Get(ctx, userID)
	if store.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}

	user.RemoveMembership(groupID)
	if len(user.Memberships) == 0 && !user.Registered() {
		if err := s.users.Delete(ctx, userID); err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		return nil
	}
	if err := s.users.Save(ctx, user); err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

// SaveGroup validates and persists a training group definition, assigning an
// ID to new groups.
func (s *MembershipService) SaveGroup(ctx context.Context, trainerID string, g *model.TrainingGroup) error {
	for _, raw := range g.RecurrenceRules {
		if _, err := cronrule.Parse(raw); err != nil {
			return err
		}
	}
	if g.ID == "" {
		g.ID = uuid.NewString()
	}

	if err := s.groups.Save(ctx, trainerID, g); err != nil {
		return fmt.Errorf("save group: %w", err)
	}

	s.logger.Info("Group saved",
		zap.String("group_id", g.ID),
		zap.String("group_type", string(g.GroupType)),
		zap.Int("rules", len(g.RecurrenceRules)),
	)

	return nil
}

// GroupMembers returns the group with everyone attached to it, any state.
func (s *MembershipService) GroupMembers(ctx context.Context, trainerID, groupID string) (*model.TrainingGroup, []*model.Member, error) {
	group, err := s.groups.Get(ctx, trainerID, groupID)
	if err != nil {
		return nil, nil, fmt.Errorf("get group: %w", err)
	}

	members, err := s.members.List(ctx, trainerID)
	if err != nil {
		return nil, nil, fmt.Errorf("list members: %w", err)
	}

	attached := members[:0]
	for _, m := range members {
		if m.InGroup(groupID) {
			attached = append(attached, m)
		}
	}
	return group, attached, nil
}

// DeleteGroup removes a group definition; only groups without active members
// are deletable.
func (s *MembershipService) DeleteGroup(ctx context.Context, trainerID, groupID string) error {
	members, err := s.members.List(ctx, trainerID)
	if err != nil {
		return fmt.Errorf("list members: %w", err)
	}
	for _, m := range members {
		if m.InGroup(groupID) && m.State.Active() {
			return fmt.Errorf("group %s: %w", groupID, ErrGroupNotEmpty)
		}
	}

	if err := s.groups.Delete(ctx, trainerID, groupID); err != nil {
		return fmt.Errorf("delete group: %w", err)
	}

	s.logger.Info("Group deleted", zap.String("group_id", groupID))
	return nil
}

func stateName(s *model.MemberState) string {
	if s == nil {
		return "removed"
	}
	return string(*s)
}
