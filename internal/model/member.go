package model

import (
	"slices"
	"time"
)

// MemberState is the state of a trainer/member relationship.
type MemberState string

const (
	StateAccepted         MemberState = "ACCEPTED"
	StateUserRequest      MemberState = "USER_REQUEST"
	StateTrainerRequest   MemberState = "TRAINER_REQUEST"
	StateUserSuspended    MemberState = "USER_SUSPENDED"
	StateTrainerSuspended MemberState = "TRAINER_SUSPENDED"
)

// Active reports whether the member currently counts against group limits.
func (s MemberState) Active() bool {
	return s == StateAccepted
}

// TicketSheet tracks a member's credit balance for one group type. Attached
// groups of the same type draw from the same sheet. RemainingCredits may go
// negative: the member owes attendance until the next purchase.
type TicketSheet struct {
	GroupType            GroupType  `json:"groupType"`
	PurchasedTicketCount int        `json:"purchasedTicketCount"`
	RemainingCredits     int        `json:"remainingCredits"`
	AttendanceCount      int        `json:"attendanceCount"`
	PurchasedAt          *time.Time `json:"purchasedAt,omitempty"`
}

// Member is one member record under a trainer, including the per-type
// ticket sheets.
type Member struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Avatar       string        `json:"avatar,omitempty"`
	State        MemberState   `json:"state"`
	Groups       []string      `json:"groups"`
	TicketSheets []TicketSheet `json:"ticketSheets"`

	Version int64 `json:"-"`
}

// Sheet returns the ticket sheet for the group type, or nil if the member
// has none yet.
func (m *Member) Sheet(t GroupType) *TicketSheet {
	for i := range m.TicketSheets {
		if m.TicketSheets[i].GroupType == t {
			return &m.TicketSheets[i]
		}
	}
	return nil
}

// EnsureSheet returns the ticket sheet for the group type, creating an empty
// one if the member has none yet. A missing sheet is not an error, sheets
// are created lazily on first need.
func (m *Member) EnsureSheet(t GroupType) *TicketSheet {
	if sheet := m.Sheet(t); sheet != nil {
		return sheet
	}
	m.TicketSheets = append(m.TicketSheets, TicketSheet{GroupType: t})
	return &m.TicketSheets[len(m.TicketSheets)-1]
}

// InGroup reports whether the member belongs to the group.
func (m *Member) InGroup(groupID string) bool {
	return slices.Contains(m.Groups, groupID)
}

// AddGroup adds the group to the member's group list, once.
func (m *Member) AddGroup(groupID string) {
	if !m.InGroup(groupID) {
		m.Groups = append(m.Groups, groupID)
	}
}

// RemoveGroup drops the group from the member's group list.
func (m *Member) RemoveGroup(groupID string) {
	m.Groups = slices.DeleteFunc(m.Groups, func(id string) bool {
		return id == groupID
	})
}

// Clone returns a deep copy of the member.
func (m *Member) Clone() *Member {
	c := *m
	c.Groups = slices.Clone(m.Groups)
	c.TicketSheets = slices.Clone(m.TicketSheets)
	return &c
}
