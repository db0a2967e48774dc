package model

import "errors"

// Metadata is the per-event payload. The source system carried an untyped
// bag here; instead each event type gets exactly the fields that are
// meaningful for it, constructed through the helpers below and enforced by
// Validate. Unused fields stay zero and are omitted on the wire.
type Metadata struct {
	TemplateID  string `json:"template_id,omitempty"`  // send events
	ErrorCode   string `json:"error_code,omitempty"`   // message_failed
	PageURL     string `json:"page_url,omitempty"`     // link_opened
	PartySize   int    `json:"party_size,omitempty"`   // rsvp_submitted / rsvp_updated
	AmountCents int64  `json:"amount_cents,omitempty"` // payment_received
	Source      string `json:"source,omitempty"`       // guest_added (import, form, admin)
}

func SentMetadata(templateID string) Metadata {
	return Metadata{TemplateID: templateID}
}

func FailureMetadata(errorCode string) Metadata {
	return Metadata{ErrorCode: errorCode}
}

func LinkOpenMetadata(pageURL string) Metadata {
	return Metadata{PageURL: pageURL}
}

func RSVPMetadata(partySize int) Metadata {
	return Metadata{PartySize: partySize}
}

func PaymentMetadata(amountCents int64) Metadata {
	return Metadata{AmountCents: amountCents}
}

func GuestAddedMetadata(source string) Metadata {
	return Metadata{Source: source}
}

// Validate rejects fields that do not belong to the event type.
func (m Metadata) Validate(t EventType) error {
	if m.ErrorCode != "" && t != EventMessageFailed {
		return errors.New("error_code is only valid on message_failed events")
	}
	if m.TemplateID != "" && !t.IsSent() {
		return errors.New("template_id is only valid on send events")
	}
	if m.PageURL != "" && t != EventLinkOpened {
		return errors.New("page_url is only valid on link_opened events")
	}
	if m.PartySize != 0 && t != EventRSVPSubmitted && t != EventRSVPUpdated {
		return errors.New("party_size is only valid on rsvp events")
	}
	if m.AmountCents != 0 && t != EventPaymentReceived {
		return errors.New("amount_cents is only valid on payment_received events")
	}
	if m.Source != "" && t != EventGuestAdded {
		return errors.New("source is only valid on guest_added events")
	}
	return nil
}

func (m Metadata) IsZero() bool {
	return m == Metadata{}
}
