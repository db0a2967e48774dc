package fixtures

import (
	"time"

	"github.com/hitchly/engagement-tracker/internal/model"
)

var (
	TestRecipient1 = model.Recipient{
		ID:       1,
		TenantID: 1,
		Name:     "Avery Quinn",
		Mobile:   "+15550001111",
		Email:    "avery@example.com",
	}

	TestRecipient2 = model.Recipient{
		ID:       2,
		TenantID: 1,
		Name:     "Jordan Reyes",
		Mobile:   "+15550002222",
		Email:    "jordan@example.com",
	}

	TestRecipientOtherTenant = model.Recipient{
		ID:       3,
		TenantID: 2,
		Name:     "Sam Okafor",
		Mobile:   "+15550003333",
		Email:    "sam@example.com",
	}
)

func NewSentEvent(tenantID, recipientID int64, kind model.EventType, channel model.Channel, sid, templateID string) *model.TrackingEvent {
	return &model.TrackingEvent{
		TenantID:    tenantID,
		RecipientID: recipientID,
		EventType:   kind,
		Channel:     channel,
		MessageSID:  sid,
		Metadata:    model.SentMetadata(templateID),
		Timestamp:   time.Now().UTC(),
	}
}

func NewDeliveryEvent(tenantID, recipientID int64, kind model.EventType, channel model.Channel, sid string) *model.TrackingEvent {
	return &model.TrackingEvent{
		TenantID:    tenantID,
		RecipientID: recipientID,
		EventType:   kind,
		Channel:     channel,
		MessageSID:  sid,
		Timestamp:   time.Now().UTC(),
	}
}

func NewEngagementEvent(tenantID, recipientID int64, kind model.EventType, meta model.Metadata) *model.TrackingEvent {
	return &model.TrackingEvent{
		TenantID:    tenantID,
		RecipientID: recipientID,
		EventType:   kind,
		Metadata:    meta,
		Timestamp:   time.Now().UTC(),
	}
}

func NewOutboundMessage(tenantID, recipientID int64, kind model.EventType, channel model.Channel, to string) model.OutboundMessage {
	return model.OutboundMessage{
		TenantID:    tenantID,
		RecipientID: recipientID,
		Kind:        kind,
		Channel:     channel,
		To:          to,
		TemplateID:  "tmpl-invite-gold",
	}
}

func NewTenantSnapshot(tenantID int64) *model.TenantSnapshot {
	opensAt := time.Now().UTC().Add(24 * time.Hour)
	return &model.TenantSnapshot{
		TenantID:    tenantID,
		Theme:       "botanical",
		TemplateRef: "tmpl-invite-gold",
		RSVPOpenAt:  opensAt,
		RSVPCloseAt: opensAt.Add(30 * 24 * time.Hour),
		Features:    map[string]bool{"registry": true, "photo_wall": false},
		GeneratedAt: time.Now().UTC(),
	}
}

var ValidMobileNumbers = []string{
	"+15550001111",
	"+15550002222",
	"+4412345678",
	"+33123456789",
	"+81312345678",
}

func EventFilterByRecipient(tenantID, recipientID int64) model.EventFilter {
	return model.EventFilter{
		TenantID:    tenantID,
		RecipientID: &recipientID,
		Limit:       50,
		Offset:      0,
		Desc:        false,
	}
}

func EventFilterByTypes(tenantID int64, types ...model.EventType) model.EventFilter {
	return model.EventFilter{
		TenantID: tenantID,
		Types:    types,
		Limit:    50,
	}
}

func EventFilterByTimeRange(tenantID int64, from, to time.Time) model.EventFilter {
	return model.EventFilter{
		TenantID: tenantID,
		From:     &from,
		To:       &to,
		Limit:    50,
	}
}
