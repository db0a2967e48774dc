package model

import (
	"errors"
	"time"
)

// EventType is the closed set of engagement events the platform records.
type EventType string

const (
	EventInvitationSent   EventType = "invitation_sent"
	EventReminderSent     EventType = "reminder_sent"
	EventSaveTheDateSent  EventType = "save_the_date_sent"
	EventLinkOpened       EventType = "link_opened"
	EventRSVPStarted      EventType = "rsvp_started"
	EventRSVPSubmitted    EventType = "rsvp_submitted"
	EventRSVPUpdated      EventType = "rsvp_updated"
	EventMessageDelivered EventType = "message_delivered"
	EventMessageRead      EventType = "message_read"
	EventMessageFailed    EventType = "message_failed"
	EventGuestAdded       EventType = "guest_added"
	EventPaymentReceived  EventType = "payment_received"
)

// SentEventTypes are the outbound-send family; each carries the provider
// message SID used to join delivery-status callbacks later.
func SentEventTypes() []EventType {
	return []EventType{EventInvitationSent, EventReminderSent, EventSaveTheDateSent}
}

// DeliveryStatusEventTypes are the provider-reported statuses subject to the
// (tenant_id, message_sid, event_type) idempotency constraint.
func DeliveryStatusEventTypes() []EventType {
	return []EventType{EventMessageDelivered, EventMessageRead, EventMessageFailed}
}

func (t EventType) IsSent() bool {
	switch t {
	case EventInvitationSent, EventReminderSent, EventSaveTheDateSent:
		return true
	}
	return false
}

func (t EventType) IsDeliveryStatus() bool {
	switch t {
	case EventMessageDelivered, EventMessageRead, EventMessageFailed:
		return true
	}
	return false
}

func (t EventType) Valid() bool {
	switch t {
	case EventInvitationSent, EventReminderSent, EventSaveTheDateSent,
		EventLinkOpened, EventRSVPStarted, EventRSVPSubmitted, EventRSVPUpdated,
		EventMessageDelivered, EventMessageRead, EventMessageFailed,
		EventGuestAdded, EventPaymentReceived:
		return true
	}
	return false
}

// Channel is the transport a message travelled on. Empty for
// channel-agnostic events (rsvp_submitted, guest_added, ...).
type Channel string

const (
	ChannelWhatsApp Channel = "whatsapp"
	ChannelSMS      Channel = "sms"
	ChannelEmail    Channel = "email"
)

// TrackingEvent is one immutable entry in a recipient's engagement history.
// Corrections are made by appending new events, never by editing.
type TrackingEvent struct {
	ID             int64     `json:"id"`
	TenantID       int64     `json:"tenant_id"`
	RecipientID    int64     `json:"recipient_id"`
	EventType      EventType `json:"event_type"`
	Channel        Channel   `json:"channel,omitempty"`
	MessageSID     string    `json:"message_sid,omitempty"`
	Metadata       Metadata  `json:"metadata"`
	AdminTriggered bool      `json:"admin_triggered"`
	Timestamp      time.Time `json:"timestamp"`
}

func (TrackingEvent) TableName() string { return "tracking_events" }

func (e *TrackingEvent) Validate() error {
	if e.TenantID == 0 {
		return errors.New("tenant_id is required")
	}
	if e.RecipientID == 0 {
		return errors.New("recipient_id is required")
	}
	if !e.EventType.Valid() {
		return errors.New("unknown event_type " + string(e.EventType))
	}
	if e.EventType.IsSent() && e.MessageSID == "" {
		return errors.New("message_sid is required for send events")
	}
	return e.Metadata.Validate(e.EventType)
}

// EventFilter controls bulk event reads.
type EventFilter struct {
	TenantID    int64
	RecipientID *int64      // equals
	Types       []EventType // IN (...)
	MessageSID  *string     // equals
	From        *time.Time
	To          *time.Time
	Limit       int // default 50, 0 means default; aggregator reads pass NoLimit
	Offset      int
	Desc        bool // order by timestamp
}

// NoLimit disables pagination for the aggregator's tenant-wide bulk reads.
const NoLimit = -1
