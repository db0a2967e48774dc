package repository

import (
	"encoding/json"
	"time"

	"github.com/hitchly/engagement-tracker/internal/model"
)

// TrackingEventEntity is the persisted row. The partial unique index over
// (tenant_id, message_sid, event_type) for the delivery-status types is
// created by the goose migration (and by raw SQL in the test helper); gorm
// index tags cannot express partial composite indexes.
type TrackingEventEntity struct {
	ID             int64     `db:"id"              gorm:"primaryKey;autoIncrement;column:id"`
	TenantID       int64     `db:"tenant_id"       gorm:"column:tenant_id;not null;index:idx_events_tenant"`
	RecipientID    int64     `db:"recipient_id"    gorm:"column:recipient_id;not null;index:idx_events_recipient"`
	EventType      string    `db:"event_type"      gorm:"column:event_type;not null;index"`
	Channel        string    `db:"channel"         gorm:"column:channel"`
	MessageSID     string    `db:"message_sid"     gorm:"column:message_sid;index:idx_events_sid"`
	Metadata       string    `db:"metadata"        gorm:"column:metadata;type:text"`
	AdminTriggered bool      `db:"admin_triggered" gorm:"column:admin_triggered;not null;default:false"`
	Timestamp      time.Time `db:"timestamp"       gorm:"column:timestamp;not null;autoCreateTime"`
}

func (TrackingEventEntity) TableName() string {
	return "tracking_events"
}

func toTrackingEventEntity(m *model.TrackingEvent) *TrackingEventEntity {
	if m == nil {
		return nil
	}
	meta := ""
	if !m.Metadata.IsZero() {
		if b, err := json.Marshal(m.Metadata); err == nil {
			meta = string(b)
		}
	}
	return &TrackingEventEntity{
		ID:             m.ID,
		TenantID:       m.TenantID,
		RecipientID:    m.RecipientID,
		EventType:      string(m.EventType),
		Channel:        string(m.Channel),
		MessageSID:     m.MessageSID,
		Metadata:       meta,
		AdminTriggered: m.AdminTriggered,
		Timestamp:      m.Timestamp,
	}
}

func toTrackingEventModel(e *TrackingEventEntity) *model.TrackingEvent {
	if e == nil {
		return nil
	}
	var meta model.Metadata
	if e.Metadata != "" {
		_ = json.Unmarshal([]byte(e.Metadata), &meta)
	}
	return &model.TrackingEvent{
		ID:             e.ID,
		TenantID:       e.TenantID,
		RecipientID:    e.RecipientID,
		EventType:      model.EventType(e.EventType),
		Channel:        model.Channel(e.Channel),
		MessageSID:     e.MessageSID,
		Metadata:       meta,
		AdminTriggered: e.AdminTriggered,
		Timestamp:      e.Timestamp,
	}
}

func toTrackingEventModels(entities []*TrackingEventEntity) []*model.TrackingEvent {
	if entities == nil {
		return nil
	}
	models := make([]*model.TrackingEvent, len(entities))
	for i, e := range entities {
		models[i] = toTrackingEventModel(e)
	}
	return models
}
