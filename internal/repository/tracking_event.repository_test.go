package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitchly/engagement-tracker/internal/model"
)

func sentEvent(tenantID, recipientID int64, sid string) *model.TrackingEvent {
	return &model.TrackingEvent{
		TenantID:    tenantID,
		RecipientID: recipientID,
		EventType:   model.EventInvitationSent,
		Channel:     model.ChannelWhatsApp,
		MessageSID:  sid,
		Metadata:    model.SentMetadata("tmpl-invite-gold"),
	}
}

func deliveryEvent(tenantID, recipientID int64, sid string, t model.EventType) *model.TrackingEvent {
	return &model.TrackingEvent{
		TenantID:    tenantID,
		RecipientID: recipientID,
		EventType:   t,
		Channel:     model.ChannelWhatsApp,
		MessageSID:  sid,
	}
}

func TestTrackingEventRepository_Append(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTrackingEventRepository(db.DB)
	ctx := context.Background()

	created, err := repo.Append(ctx, sentEvent(1, 10, "SM100"))
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, model.EventInvitationSent, created.EventType)
	assert.False(t, created.Timestamp.IsZero())
	assert.Equal(t, "tmpl-invite-gold", created.Metadata.TemplateID)
}

func TestTrackingEventRepository_Append_MetadataRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTrackingEventRepository(db.DB)
	ctx := context.Background()

	_, err := repo.Append(ctx, &model.TrackingEvent{
		TenantID:    1,
		RecipientID: 10,
		EventType:   model.EventRSVPSubmitted,
		Metadata:    model.RSVPMetadata(4),
	})
	require.NoError(t, err)

	events, err := repo.ListAll(ctx, model.EventFilter{TenantID: 1, Limit: model.NoLimit})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, 4, events[0].Metadata.PartySize)
}

func TestTrackingEventRepository_AppendIdempotent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTrackingEventRepository(db.DB)
	ctx := context.Background()

	ev := deliveryEvent(1, 10, "SM100", model.EventMessageDelivered)

	created, inserted, err := repo.AppendIdempotent(ctx, ev)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.NotZero(t, created.ID)

	// Identical triple again: absorbed at the index, no error.
	_, inserted, err = repo.AppendIdempotent(ctx, deliveryEvent(1, 10, "SM100", model.EventMessageDelivered))
	require.NoError(t, err)
	assert.False(t, inserted)

	var count int64
	db.rawDB.Model(&TrackingEventEntity{}).Where("event_type = ?", "message_delivered").Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestTrackingEventRepository_AppendIdempotent_DistinctTypesCoexist(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTrackingEventRepository(db.DB)
	ctx := context.Background()

	for _, et := range model.DeliveryStatusEventTypes() {
		_, inserted, err := repo.AppendIdempotent(ctx, deliveryEvent(1, 10, "SM100", et))
		require.NoError(t, err)
		assert.True(t, inserted, string(et))
	}

	var count int64
	db.rawDB.Model(&TrackingEventEntity{}).Where("message_sid = ?", "SM100").Count(&count)
	assert.Equal(t, int64(3), count)
}

func TestTrackingEventRepository_AppendIdempotent_TenantScoped(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTrackingEventRepository(db.DB)
	ctx := context.Background()

	// The same SID under different tenants never collides.
	_, inserted, err := repo.AppendIdempotent(ctx, deliveryEvent(1, 10, "SM100", model.EventMessageDelivered))
	require.NoError(t, err)
	assert.True(t, inserted)

	_, inserted, err = repo.AppendIdempotent(ctx, deliveryEvent(2, 20, "SM100", model.EventMessageDelivered))
	require.NoError(t, err)
	assert.True(t, inserted)
}

func TestTrackingEventRepository_FindSentBySID(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTrackingEventRepository(db.DB)
	ctx := context.Background()

	_, err := repo.Append(ctx, sentEvent(7, 42, "SM200"))
	require.NoError(t, err)

	// A delivery row with the same SID must not shadow the send row.
	_, _, err = repo.AppendIdempotent(ctx, deliveryEvent(7, 42, "SM200", model.EventMessageDelivered))
	require.NoError(t, err)

	found, err := repo.FindSentBySID(ctx, "SM200")
	require.NoError(t, err)
	assert.Equal(t, int64(7), found.TenantID)
	assert.Equal(t, int64(42), found.RecipientID)
	assert.Equal(t, model.EventInvitationSent, found.EventType)
}

func TestTrackingEventRepository_FindSentBySID_NotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTrackingEventRepository(db.DB)

	_, err := repo.FindSentBySID(context.Background(), "SM999")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTrackingEventRepository_ExistsDeliveryStatus(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTrackingEventRepository(db.DB)
	ctx := context.Background()

	exists, err := repo.ExistsDeliveryStatus(ctx, 1, "SM100", model.EventMessageDelivered)
	require.NoError(t, err)
	assert.False(t, exists)

	_, _, err = repo.AppendIdempotent(ctx, deliveryEvent(1, 10, "SM100", model.EventMessageDelivered))
	require.NoError(t, err)

	exists, err = repo.ExistsDeliveryStatus(ctx, 1, "SM100", model.EventMessageDelivered)
	require.NoError(t, err)
	assert.True(t, exists)

	// Scoped to the event type.
	exists, err = repo.ExistsDeliveryStatus(ctx, 1, "SM100", model.EventMessageRead)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestTrackingEventRepository_List(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTrackingEventRepository(db.DB)
	ctx := context.Background()

	base := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		ev := sentEvent(1, int64(10+i), "SM10"+string(rune('0'+i)))
		ev.Timestamp = base.Add(time.Duration(i) * time.Minute)
		_, err := repo.Append(ctx, ev)
		require.NoError(t, err)
	}
	// Other tenant's row never leaks into tenant 1 reads.
	other := sentEvent(2, 99, "SM900")
	other.Timestamp = base
	_, err := repo.Append(ctx, other)
	require.NoError(t, err)

	t.Run("tenant scope and total", func(t *testing.T) {
		events, total, err := repo.List(ctx, model.EventFilter{TenantID: 1, Limit: 50})
		require.NoError(t, err)
		assert.Equal(t, int64(5), total)
		assert.Len(t, events, 5)
	})

	t.Run("pagination", func(t *testing.T) {
		events, total, err := repo.List(ctx, model.EventFilter{TenantID: 1, Limit: 2, Offset: 4})
		require.NoError(t, err)
		assert.Equal(t, int64(5), total)
		assert.Len(t, events, 1)
	})

	t.Run("recipient filter", func(t *testing.T) {
		rid := int64(12)
		events, total, err := repo.List(ctx, model.EventFilter{TenantID: 1, RecipientID: &rid, Limit: 50})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, events, 1)
		assert.Equal(t, rid, events[0].RecipientID)
	})

	t.Run("time range filter", func(t *testing.T) {
		from := base.Add(1 * time.Minute)
		to := base.Add(3 * time.Minute)
		// To is exclusive: minutes 1 and 2 match, minute 3 does not.
		_, total, err := repo.List(ctx, model.EventFilter{TenantID: 1, From: &from, To: &to, Limit: 50})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
	})

	t.Run("descending order", func(t *testing.T) {
		events, _, err := repo.List(ctx, model.EventFilter{TenantID: 1, Limit: 50, Desc: true})
		require.NoError(t, err)
		require.Len(t, events, 5)
		assert.True(t, events[0].Timestamp.After(events[4].Timestamp))
	})
}

func TestTrackingEventRepository_ListAll_NoPagination(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTrackingEventRepository(db.DB)
	ctx := context.Background()

	for i := 0; i < 60; i++ {
		ev := sentEvent(1, int64(i+1), "")
		ev.MessageSID = "SMB" + string(rune('A'+i%26)) + string(rune('A'+i/26))
		_, err := repo.Append(ctx, ev)
		require.NoError(t, err)
	}

	events, err := repo.ListAll(ctx, model.EventFilter{TenantID: 1, Limit: model.NoLimit})
	require.NoError(t, err)
	assert.Len(t, events, 60, "ListAll must not clamp to the default page size")
}
