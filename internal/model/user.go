package model

import (
	"slices"
	"time"
)

// UserGroup is a user's back-reference to a group membership under a trainer.
type UserGroup struct {
	GroupID     string `json:"groupId"`
	TrainerID   string `json:"trainerId"`
	TrainerName string `json:"trainerName"`
}

// User is the global user record. Trainers create placeholder users for
// invited members; such users have no RegisteredAt until they sign up
// themselves, and are removed once their last membership is gone.
type User struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	RegisteredAt *time.Time  `json:"registeredAt,omitempty"`
	Memberships  []UserGroup `json:"memberships"`

	Version int64 `json:"-"`
}

// Registered reports whether the user signed up independently of any
// trainer-created membership.
func (u *User) Registered() bool {
	return u.RegisteredAt != nil
}

// MembershipIndex returns the index of the back-reference for the group,
// or -1 if there is none.
func (u *User) MembershipIndex(groupID string) int {
	return slices.IndexFunc(u.Memberships, func(g UserGroup) bool {
		return g.GroupID == groupID
	})
}

// SetMembership inserts or replaces the back-reference for the group.
func (u *User) SetMembership(g UserGroup) {
	if idx := u.MembershipIndex(g.GroupID); idx >= 0 {
		u.Memberships[idx] = g
		return
	}
	u.Memberships = append(u.Memberships, g)
}

// RemoveMembership drops the back-reference for the group.
func (u *User) RemoveMembership(groupID string) {
	u.Memberships = slices.DeleteFunc(u.Memberships, func(g UserGroup) bool {
		return g.GroupID == groupID
	})
}

// Clone returns a deep copy of the user.
func (u *User) Clone() *User {
	c := *u
	c.Memberships = slices.Clone(u.Memberships)
	return &c
}
