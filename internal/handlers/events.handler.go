package handlers

import (
	"context"
	"strconv"
	"strings"

	"github.com/fasthttp/router"
	"github.com/hitchly/engagement-tracker/internal/model"
	xhttp "github.com/hitchly/engagement-tracker/pkg/http"
)

type TrackingService interface {
	Record(ctx context.Context, ev *model.TrackingEvent) (*model.TrackingEvent, error)
}

type EventLister interface {
	List(ctx context.Context, f model.EventFilter) ([]*model.TrackingEvent, int64, error)
}

type OutboundPublisher interface {
	PublishJSON(ctx context.Context, data interface{}, metadata map[string]string) (string, error)
}

// EventsHandler is the collaborator-facing surface: page and payment
// collaborators append engagement events here, admins queue outbound sends,
// dashboards page through the raw history.
type EventsHandler struct {
	svc       TrackingService
	events    EventLister
	publisher OutboundPublisher
}

func RegisterEventRoutes(e *router.Group, h *EventsHandler) {
	e.POST("/tenants/{tenant_id}/events", h.RecordEvent)
	e.GET("/tenants/{tenant_id}/events", h.ListEvents)
	e.POST("/tenants/{tenant_id}/messages", h.EnqueueMessage)
}

func NewEventsHandler(svc TrackingService, events EventLister, publisher OutboundPublisher) *EventsHandler {
	return &EventsHandler{
		svc:       svc,
		events:    events,
		publisher: publisher,
	}
}

type recordEventRequest struct {
	RecipientID    int64           `json:"recipient_id"`
	EventType      model.EventType `json:"event_type"`
	Channel        model.Channel   `json:"channel,omitempty"`
	Metadata       model.Metadata  `json:"metadata"`
	AdminTriggered bool            `json:"admin_triggered"`
}

type listEventsResponse struct {
	Items []*model.TrackingEvent `json:"items"`
	Total int64                  `json:"total"`
}

func (h *EventsHandler) RecordEvent(ctx *xhttp.RequestCtx) {
	tenantID, err := pathInt64(ctx, "tenant_id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid tenant_id")
		return
	}

	var req recordEventRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	ev := &model.TrackingEvent{
		TenantID:       tenantID,
		RecipientID:    req.RecipientID,
		EventType:      req.EventType,
		Channel:        req.Channel,
		Metadata:       req.Metadata,
		AdminTriggered: req.AdminTriggered,
	}

	created, err := h.svc.Record(ctx, ev)
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusCreated, created)
}

func (h *EventsHandler) ListEvents(ctx *xhttp.RequestCtx) {
	tenantID, err := pathInt64(ctx, "tenant_id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid tenant_id")
		return
	}

	f := model.EventFilter{TenantID: tenantID}
	if v := query(ctx, "recipient_id"); v != "" {
		if id, e := strconv.ParseInt(v, 10, 64); e == nil {
			f.RecipientID = &id
		}
	}
	if v := query(ctx, "type"); v != "" {
		parts := strings.Split(v, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
			if parts[i] != "" {
				f.Types = append(f.Types, model.EventType(parts[i]))
			}
		}
	}
	if v := query(ctx, "message_sid"); v != "" {
		f.MessageSID = &v
	}
	if v := query(ctx, "from"); v != "" {
		if t, e := parseTime(v); e == nil {
			f.From = &t
		}
	}
	if v := query(ctx, "to"); v != "" {
		if t, e := parseTime(v); e == nil {
			f.To = &t
		}
	}
	if v := query(ctx, "limit"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Limit = n
		}
	}
	if v := query(ctx, "offset"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Offset = n
		}
	}
	if strings.EqualFold(query(ctx, "order"), "desc") {
		f.Desc = true
	}

	items, total, err := h.events.List(ctx, f)
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusOK, listEventsResponse{Items: items, Total: total})
}

type enqueueMessageRequest struct {
	RecipientID    int64           `json:"recipient_id"`
	Kind           model.EventType `json:"kind"`
	Channel        model.Channel   `json:"channel"`
	To             string          `json:"to"`
	TemplateID     string          `json:"template_id"`
	Body           string          `json:"body"`
	AdminTriggered bool            `json:"admin_triggered"`
}

// EnqueueMessage queues one outbound send for the dispatcher. The send
// event itself is recorded by the dispatcher once the provider issues the
// message SID.
func (h *EventsHandler) EnqueueMessage(ctx *xhttp.RequestCtx) {
	tenantID, err := pathInt64(ctx, "tenant_id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid tenant_id")
		return
	}

	var req enqueueMessageRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	msg := model.OutboundMessage{
		TenantID:       tenantID,
		RecipientID:    req.RecipientID,
		Kind:           req.Kind,
		Channel:        req.Channel,
		To:             req.To,
		TemplateID:     req.TemplateID,
		Body:           req.Body,
		AdminTriggered: req.AdminTriggered,
	}
	if err := msg.Validate(); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}

	id, err := h.publisher.PublishJSON(ctx, msg, nil)
	if err != nil {
		writeError(ctx, xhttp.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusAccepted, map[string]string{"queued_id": id})
}
