package handlers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitchly/engagement-tracker/internal/model"
	xhttp "github.com/hitchly/engagement-tracker/pkg/http"
)

type stubEngagementService struct {
	timeline *model.RecipientTimeline
	stats    *model.TenantStats
	rates    []*model.ChannelReadRate
	stale    []*model.StaleInvitation
	err      error

	gotTenantID    int64
	gotRecipientID int64
}

func (s *stubEngagementService) RecipientTimeline(ctx context.Context, tenantID, recipientID int64) (*model.RecipientTimeline, error) {
	s.gotTenantID, s.gotRecipientID = tenantID, recipientID
	return s.timeline, s.err
}

func (s *stubEngagementService) TenantStats(ctx context.Context, tenantID int64) (*model.TenantStats, error) {
	s.gotTenantID = tenantID
	return s.stats, s.err
}

func (s *stubEngagementService) ChannelReadRates(ctx context.Context, tenantID int64) ([]*model.ChannelReadRate, error) {
	s.gotTenantID = tenantID
	return s.rates, s.err
}

func (s *stubEngagementService) StaleInvitations(ctx context.Context, tenantID int64) ([]*model.StaleInvitation, error) {
	s.gotTenantID = tenantID
	return s.stale, s.err
}

func TestGetRecipientTimeline(t *testing.T) {
	svc := &stubEngagementService{timeline: &model.RecipientTimeline{
		TenantID:    7,
		RecipientID: 42,
		Completion:  60,
	}}
	h := NewEngagementHandler(svc)

	ctx := newRequestCtx("GET", "/api/v1/tenants/7/recipients/42/timeline", nil)
	ctx.SetUserValue("tenant_id", "7")
	ctx.SetUserValue("recipient_id", "42")

	h.GetRecipientTimeline(ctx)

	require.Equal(t, xhttp.StatusOK, ctx.Response.StatusCode())
	assert.EqualValues(t, 7, svc.gotTenantID)
	assert.EqualValues(t, 42, svc.gotRecipientID)

	var got model.RecipientTimeline
	decodeBody(t, ctx, &got)
	assert.Equal(t, 60, got.Completion)
}

func TestGetRecipientTimeline_BadTenantID(t *testing.T) {
	h := NewEngagementHandler(&stubEngagementService{})

	ctx := newRequestCtx("GET", "/api/v1/tenants/seven/recipients/42/timeline", nil)
	ctx.SetUserValue("tenant_id", "seven")
	ctx.SetUserValue("recipient_id", "42")

	h.GetRecipientTimeline(ctx)

	assert.Equal(t, xhttp.StatusBadRequest, ctx.Response.StatusCode())
}

func TestGetTenantStats(t *testing.T) {
	svc := &stubEngagementService{stats: &model.TenantStats{
		TenantID:   7,
		Recipients: 120,
		MilestoneCounts: map[model.Milestone]int{
			model.MilestoneInvited: 120,
			model.MilestoneRead:    80,
		},
		AvgCompletion: 52.4,
	}}
	h := NewEngagementHandler(svc)

	ctx := newRequestCtx("GET", "/api/v1/tenants/7/stats", nil)
	ctx.SetUserValue("tenant_id", "7")

	h.GetTenantStats(ctx)

	require.Equal(t, xhttp.StatusOK, ctx.Response.StatusCode())
	var got model.TenantStats
	decodeBody(t, ctx, &got)
	assert.Equal(t, 120, got.Recipients)
	assert.Equal(t, 80, got.MilestoneCounts[model.MilestoneRead])
}

func TestGetTenantStats_ServiceError(t *testing.T) {
	h := NewEngagementHandler(&stubEngagementService{err: errors.New("db down")})

	ctx := newRequestCtx("GET", "/api/v1/tenants/7/stats", nil)
	ctx.SetUserValue("tenant_id", "7")

	h.GetTenantStats(ctx)

	assert.Equal(t, xhttp.StatusInternalServerError, ctx.Response.StatusCode())
}

func TestGetChannelReadRates(t *testing.T) {
	svc := &stubEngagementService{rates: []*model.ChannelReadRate{
		{Channel: model.ChannelWhatsApp, Sent: 10, Delivered: 8, Read: 4, DeliveryRate: 80, ReadRate: 50},
	}}
	h := NewEngagementHandler(svc)

	ctx := newRequestCtx("GET", "/api/v1/tenants/7/channel-rates", nil)
	ctx.SetUserValue("tenant_id", "7")

	h.GetChannelReadRates(ctx)

	require.Equal(t, xhttp.StatusOK, ctx.Response.StatusCode())
	var got []*model.ChannelReadRate
	decodeBody(t, ctx, &got)
	require.Len(t, got, 1)
	assert.Equal(t, model.ChannelWhatsApp, got[0].Channel)
	assert.InDelta(t, 50.0, got[0].ReadRate, 0.01)
}

func TestGetStaleInvitations(t *testing.T) {
	svc := &stubEngagementService{stale: []*model.StaleInvitation{
		{RecipientID: 3, DaysSince: 12, Channel: model.ChannelSMS},
	}}
	h := NewEngagementHandler(svc)

	ctx := newRequestCtx("GET", "/api/v1/tenants/7/stale-invitations", nil)
	ctx.SetUserValue("tenant_id", "7")

	h.GetStaleInvitations(ctx)

	require.Equal(t, xhttp.StatusOK, ctx.Response.StatusCode())
	var got []*model.StaleInvitation
	decodeBody(t, ctx, &got)
	require.Len(t, got, 1)
	assert.Equal(t, 12, got[0].DaysSince)
}
