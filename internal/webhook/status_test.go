package webhook

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hitchly/engagement-tracker/internal/model"
)

func TestMapProviderStatus(t *testing.T) {
	tests := []struct {
		status string
		want   model.EventType
		mapped bool
	}{
		{"delivered", model.EventMessageDelivered, true},
		{"read", model.EventMessageRead, true},
		{"failed", model.EventMessageFailed, true},
		{"undelivered", model.EventMessageFailed, true},
		{"queued", "", false},
		{"accepted", "", false},
		{"sending", "", false},
		{"sent", "", false},
		{"partially_delivered", "", false}, // future provider vocabulary
		{"DELIVERED", "", false},           // statuses are case sensitive
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run("status_"+tt.status, func(t *testing.T) {
			got, ok := MapProviderStatus(tt.status)
			assert.Equal(t, tt.mapped, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestKnownProviderStatus(t *testing.T) {
	for _, s := range []string{"delivered", "read", "failed", "undelivered", "queued", "accepted", "sending", "sent"} {
		assert.True(t, KnownProviderStatus(s), s)
	}
	for _, s := range []string{"", "unknown", "Read", "expired"} {
		assert.False(t, KnownProviderStatus(s), s)
	}
}
