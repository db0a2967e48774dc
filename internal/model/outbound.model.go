package model

import "errors"

// OutboundMessage is one queued send job: an invitation, reminder, or
// save-the-date addressed to a single recipient. The dispatcher posts it to
// the messaging provider and records the matching send event carrying the
// provider-issued message SID.
type OutboundMessage struct {
	TenantID       int64     `json:"tenant_id"`
	RecipientID    int64     `json:"recipient_id"`
	Kind           EventType `json:"kind"` // one of the send family
	Channel        Channel   `json:"channel"`
	To             string    `json:"to"` // mobile or email per channel
	TemplateID     string    `json:"template_id"`
	Body           string    `json:"body"`
	AdminTriggered bool      `json:"admin_triggered"`
}

func (m OutboundMessage) Validate() error {
	if m.TenantID == 0 {
		return errors.New("tenant_id is required")
	}
	if m.RecipientID == 0 {
		return errors.New("recipient_id is required")
	}
	if !m.Kind.IsSent() {
		return errors.New("kind must be a send event type")
	}
	if m.To == "" {
		return errors.New("to is required")
	}
	if m.Channel == "" {
		return errors.New("channel is required")
	}
	return nil
}
