package handlers

import (
	"context"

	"github.com/fasthttp/router"
	"github.com/hitchly/engagement-tracker/internal/model"
	xhttp "github.com/hitchly/engagement-tracker/pkg/http"
)

type EngagementService interface {
	RecipientTimeline(ctx context.Context, tenantID, recipientID int64) (*model.RecipientTimeline, error)
	TenantStats(ctx context.Context, tenantID int64) (*model.TenantStats, error)
	ChannelReadRates(ctx context.Context, tenantID int64) ([]*model.ChannelReadRate, error)
	StaleInvitations(ctx context.Context, tenantID int64) ([]*model.StaleInvitation, error)
}

// EngagementHandler exposes the read-only, tenant-scoped analytics surface
// consumed by dashboard and report collaborators.
type EngagementHandler struct {
	svc EngagementService
}

func RegisterEngagementRoutes(e *router.Group, h *EngagementHandler) {
	e.GET("/tenants/{tenant_id}/recipients/{recipient_id}/timeline", h.GetRecipientTimeline)
	e.GET("/tenants/{tenant_id}/stats", h.GetTenantStats)
	e.GET("/tenants/{tenant_id}/channel-rates", h.GetChannelReadRates)
	e.GET("/tenants/{tenant_id}/stale-invitations", h.GetStaleInvitations)
}

func NewEngagementHandler(svc EngagementService) *EngagementHandler {
	return &EngagementHandler{
		svc: svc,
	}
}

func (h *EngagementHandler) GetRecipientTimeline(ctx *xhttp.RequestCtx) {
	tenantID, err := pathInt64(ctx, "tenant_id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid tenant_id")
		return
	}
	recipientID, err := pathInt64(ctx, "recipient_id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid recipient_id")
		return
	}

	timeline, err := h.svc.RecipientTimeline(ctx, tenantID, recipientID)
	if err != nil {
		writeError(ctx, xhttp.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusOK, timeline)
}

func (h *EngagementHandler) GetTenantStats(ctx *xhttp.RequestCtx) {
	tenantID, err := pathInt64(ctx, "tenant_id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid tenant_id")
		return
	}

	stats, err := h.svc.TenantStats(ctx, tenantID)
	if err != nil {
		writeError(ctx, xhttp.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusOK, stats)
}

func (h *EngagementHandler) GetChannelReadRates(ctx *xhttp.RequestCtx) {
	tenantID, err := pathInt64(ctx, "tenant_id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid tenant_id")
		return
	}

	rates, err := h.svc.ChannelReadRates(ctx, tenantID)
	if err != nil {
		writeError(ctx, xhttp.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusOK, rates)
}

func (h *EngagementHandler) GetStaleInvitations(ctx *xhttp.RequestCtx) {
	tenantID, err := pathInt64(ctx, "tenant_id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid tenant_id")
		return
	}

	stale, err := h.svc.StaleInvitations(ctx, tenantID)
	if err != nil {
		writeError(ctx, xhttp.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusOK, stale)
}
