package handlers

import (
	"context"
	"errors"

	"github.com/fasthttp/router"
	"github.com/hitchly/engagement-tracker/internal/services"
	"github.com/hitchly/engagement-tracker/internal/webhook"
	xhttp "github.com/hitchly/engagement-tracker/pkg/http"
)

type CallbackService interface {
	ProcessCallback(ctx context.Context, cb services.Callback) (services.Outcome, error)
}

// CallbackHandler is the inbound webhook surface. It answers 2xx for every
// processable outcome so the provider never retries a callback we have
// already absorbed; only an unauthenticated or malformed request is
// rejected.
type CallbackHandler struct {
	svc     CallbackService
	baseURL string // public base the provider signs against, no trailing slash
}

func RegisterCallbackRoutes(e *router.Group, h *CallbackHandler) {
	e.POST("/webhooks/delivery", h.HandleDeliveryCallback)
}

func NewCallbackHandler(svc CallbackService, baseURL string) *CallbackHandler {
	return &CallbackHandler{
		svc:     svc,
		baseURL: baseURL,
	}
}

type callbackAck struct {
	Status  string `json:"status"`
	Outcome string `json:"outcome,omitempty"`
}

func (h *CallbackHandler) HandleDeliveryCallback(ctx *xhttp.RequestCtx) {
	params := make(map[string]string)
	ctx.PostArgs().VisitAll(func(k, v []byte) {
		params[string(k)] = string(v)
	})

	cb := services.Callback{
		MessageSID: params["MessageSid"],
		Status:     params["MessageStatus"],
		ErrorCode:  params["ErrorCode"],
		Signature:  string(ctx.Request.Header.Peek(webhook.SignatureHeader)),
		URL:        h.baseURL + string(ctx.Path()),
		Params:     params,
	}

	outcome, err := h.svc.ProcessCallback(ctx, cb)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidSignature):
			writeError(ctx, xhttp.StatusForbidden, "signature verification failed")
		case errors.Is(err, services.ErrMissingMessageSID):
			writeError(ctx, xhttp.StatusBadRequest, "MessageSid is required")
		default:
			// Absorbed conditions never reach here, but a provider retry
			// storm is worse than a swallowed anomaly.
			writeJSON(ctx, xhttp.StatusOK, callbackAck{Status: "ok"})
		}
		return
	}

	writeJSON(ctx, xhttp.StatusOK, callbackAck{Status: "ok", Outcome: string(outcome)})
}
