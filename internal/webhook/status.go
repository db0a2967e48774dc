package webhook

import "github.com/hitchly/engagement-tracker/internal/model"

// MapProviderStatus translates a provider-reported status string into the
// internal event type. The second return is false for statuses that do not
// correspond to a trackable transition: provider-internal intermediate
// states ("queued", "sent", ...) and anything unknown. Providers add new
// intermediate statuses over time, so unknown strings are a degrade, not an
// error.
func MapProviderStatus(status string) (model.EventType, bool) {
	switch status {
	case "delivered":
		return model.EventMessageDelivered, true
	case "read":
		return model.EventMessageRead, true
	case "failed", "undelivered":
		return model.EventMessageFailed, true
	case "queued", "accepted", "sending", "sent":
		return "", false
	default:
		return "", false
	}
}

// KnownProviderStatus reports whether the status is in the provider's
// documented vocabulary; the ingestion handler logs unknown ones.
func KnownProviderStatus(status string) bool {
	switch status {
	case "delivered", "read", "failed", "undelivered", "queued", "accepted", "sending", "sent":
		return true
	}
	return false
}
