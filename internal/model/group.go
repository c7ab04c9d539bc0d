package model

import "time"

// GroupType is the pooling key for ticket sheets: groups of the same type
// (and groups attached to each other) draw credits from one shared sheet.
type GroupType string

const (
	GroupTypePersonal GroupType = "PERSONAL"
	GroupTypeGroup    GroupType = "GROUP"
	GroupTypeMass     GroupType = "MASS"
)

// TrainingGroup is a trainer's recurring training group definition.
type TrainingGroup struct {
	ID                        string    `json:"id"`
	Name                      string    `json:"name"`
	GroupType                 GroupType `json:"groupType"`
	DurationMinutes           int       `json:"durationMinutes"`
	MaxMembers                int       `json:"maxMembers"`
	CancellationDeadlineHours int       `json:"cancellationDeadlineHours"`
	TicketBlockSize           int       `json:"ticketBlockSize"`
	RecurrenceRules           []string  `json:"recurrenceRules"` // compact cron form, see cronrule
	Color                     string    `json:"color,omitempty"`
	AttachedGroupIDs          []string  `json:"attachedGroupIds,omitempty"`
	InviteOnly                bool      `json:"inviteOnly"`

	// Version is the stored document version used for compare-and-swap writes.
	Version int64 `json:"-"`
}

// Duration returns the length of one occurrence.
func (g *TrainingGroup) Duration() time.Duration {
	return time.Duration(g.DurationMinutes) * time.Minute
}

// CancellationDeadline returns the minimum lead time before an occurrence's
// start within which leaving forfeits the credit refund.
func (g *TrainingGroup) CancellationDeadline() time.Duration {
	return time.Duration(g.CancellationDeadlineHours) * time.Hour
}

// PoolKey resolves the ticket pool this group draws credits from. Attached
// groups share a pool by sharing a group type, so the type is the key.
func (g *TrainingGroup) PoolKey() GroupType {
	return g.GroupType
}
