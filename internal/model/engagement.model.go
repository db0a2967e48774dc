package model

import "time"

// Milestone is one step of the fixed engagement funnel.
type Milestone string

const (
	MilestoneInvited       Milestone = "invited"
	MilestoneDelivered     Milestone = "delivered"
	MilestoneRead          Milestone = "read"
	MilestoneLinkOpened    Milestone = "link_opened"
	MilestoneRSVPConfirmed Milestone = "rsvp_confirmed"
)

// Milestones returns the funnel in its fixed order.
func Milestones() []Milestone {
	return []Milestone{
		MilestoneInvited,
		MilestoneDelivered,
		MilestoneRead,
		MilestoneLinkOpened,
		MilestoneRSVPConfirmed,
	}
}

// MilestoneStatus reports whether a milestone was reached, at its first
// occurrence, regardless of event arrival order.
type MilestoneStatus struct {
	Milestone Milestone  `json:"milestone"`
	Reached   bool       `json:"reached"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
	Channel   Channel    `json:"channel,omitempty"`
}

type RecipientTimeline struct {
	TenantID    int64             `json:"tenant_id"`
	RecipientID int64             `json:"recipient_id"`
	Milestones  []MilestoneStatus `json:"milestones"`
	Completion  int               `json:"completion_percent"`
}

type TenantStats struct {
	TenantID        int64             `json:"tenant_id"`
	Recipients      int               `json:"recipients"`
	MilestoneCounts map[Milestone]int `json:"milestone_counts"`
	AvgCompletion   float64           `json:"avg_completion_percent"`
}

// ChannelReadRate aggregates send outcomes per channel. Rates are percent
// values in [0, 100]; a zero denominator yields 0.
type ChannelReadRate struct {
	Channel      Channel `json:"channel"`
	Sent         int     `json:"sent"`
	Delivered    int     `json:"delivered"`
	Read         int     `json:"read"`
	Failed       int     `json:"failed"`
	DeliveryRate float64 `json:"delivery_rate"`
	ReadRate     float64 `json:"read_rate"`
}

// StaleInvitation is a recipient who was invited but never read the
// message; used to drive re-engagement sends.
type StaleInvitation struct {
	RecipientID int64      `json:"recipient_id"`
	InvitedAt   time.Time  `json:"invited_at"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	DaysSince   int        `json:"days_since_invitation"`
	Channel     Channel    `json:"channel,omitempty"`
}
