package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hitchly/engagement-tracker/internal/model"
	"github.com/hitchly/engagement-tracker/internal/repository"
	"github.com/hitchly/engagement-tracker/internal/webhook"
	"github.com/hitchly/engagement-tracker/pkg/logger"
	"github.com/hitchly/engagement-tracker/pkg/prom"
	"github.com/hitchly/engagement-tracker/pkg/redis"
)

var (
	// ErrInvalidSignature rejects callbacks the provider cannot
	// authenticate; the only condition besides ErrMissingMessageSID that
	// surfaces as a failure to the caller.
	ErrInvalidSignature = errors.New("callback signature verification failed")

	// ErrMissingMessageSID rejects callbacks without the correlation id.
	ErrMissingMessageSID = errors.New("callback is missing the message sid")
)

// Outcome classifies what ProcessCallback did with an authenticated
// callback. Everything except a recorded event is a benign no-op
// acknowledged to the provider.
type Outcome string

const (
	OutcomeRecorded       Outcome = "recorded"
	OutcomeDuplicate      Outcome = "duplicate"
	OutcomeOrphan         Outcome = "orphan"
	OutcomeUnmapped       Outcome = "unmapped"
	OutcomeStorageFailure Outcome = "storage_failure"
)

// Callback is one parsed provider delivery-status callback plus the raw
// material needed to verify its signature.
type Callback struct {
	MessageSID string
	Status     string
	ErrorCode  string
	Signature  string
	URL        string
	Params     map[string]string
}

type TrackingEventRepository interface {
	Append(ctx context.Context, ev *model.TrackingEvent) (*model.TrackingEvent, error)
	AppendIdempotent(ctx context.Context, ev *model.TrackingEvent) (*model.TrackingEvent, bool, error)
	FindSentBySID(ctx context.Context, sid string) (*model.TrackingEvent, error)
	ExistsDeliveryStatus(ctx context.Context, tenantID int64, sid string, t model.EventType) (bool, error)
}

const orphanKeyPrefix = "orphan:"
const orphanTTL = 24 * time.Hour

type TrackingService struct {
	events    TrackingEventRepository
	authToken string
	redis     redis.RedisAdapter // orphan markers; optional
}

func NewTrackingService(events TrackingEventRepository, authToken string, redisAdapter redis.RedisAdapter) *TrackingService {
	return &TrackingService{
		events:    events,
		authToken: authToken,
		redis:     redisAdapter,
	}
}

// ProcessCallback runs the full ingestion pipeline for one inbound
// provider callback: authenticate, parse, map, correlate, idempotency
// check, append. Only an invalid signature or a missing message sid return
// an error; every other condition is absorbed here and reported through the
// outcome, because the provider retries anything it does not see succeed.
func (s *TrackingService) ProcessCallback(ctx context.Context, cb Callback) (Outcome, error) {
	if !webhook.VerifySignature(s.authToken, cb.URL, cb.Params, cb.Signature) {
		logger.Warn("callback signature rejected", "message_sid", cb.MessageSID, "url", cb.URL)
		prom.IncCallbackOutcome("rejected_signature")
		return "", ErrInvalidSignature
	}

	if cb.MessageSID == "" {
		prom.IncCallbackOutcome("rejected_malformed")
		return "", ErrMissingMessageSID
	}

	eventType, ok := webhook.MapProviderStatus(cb.Status)
	if !ok {
		if webhook.KnownProviderStatus(cb.Status) {
			logger.Debug("provider-internal status ignored", "message_sid", cb.MessageSID, "status", cb.Status)
		} else {
			logger.Warn("unmapped provider status", "message_sid", cb.MessageSID, "status", cb.Status)
		}
		prom.IncCallbackOutcome(string(OutcomeUnmapped))
		return OutcomeUnmapped, nil
	}

	// The callback carries no tenant identity; the originating send event
	// is the only place it can be derived from.
	sent, err := s.events.FindSentBySID(ctx, cb.MessageSID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			logger.Warn("orphan callback, no matching send event",
				"message_sid", cb.MessageSID, "status", cb.Status)
			s.recordOrphan(cb)
			prom.IncCallbackOutcome(string(OutcomeOrphan))
			return OutcomeOrphan, nil
		}
		logger.Error("send event lookup failed", "message_sid", cb.MessageSID, "error", err)
		prom.IncCallbackOutcome(string(OutcomeStorageFailure))
		return OutcomeStorageFailure, nil
	}

	exists, err := s.events.ExistsDeliveryStatus(ctx, sent.TenantID, cb.MessageSID, eventType)
	if err != nil {
		logger.Error("idempotency check failed", "message_sid", cb.MessageSID, "error", err)
		prom.IncCallbackOutcome(string(OutcomeStorageFailure))
		return OutcomeStorageFailure, nil
	}
	if exists {
		prom.IncCallbackOutcome(string(OutcomeDuplicate))
		return OutcomeDuplicate, nil
	}

	ev := &model.TrackingEvent{
		TenantID:    sent.TenantID,
		RecipientID: sent.RecipientID,
		EventType:   eventType,
		Channel:     sent.Channel,
		MessageSID:  cb.MessageSID,
	}
	if eventType == model.EventMessageFailed && cb.ErrorCode != "" {
		ev.Metadata = model.FailureMetadata(cb.ErrorCode)
	}

	// The unique index absorbs the race between the pre-check above and
	// this insert; a constraint hit is a duplicate, not an error.
	_, inserted, err := s.events.AppendIdempotent(ctx, ev)
	if err != nil {
		logger.Error("failed to append delivery-status event",
			"message_sid", cb.MessageSID, "event_type", eventType, "error", err)
		prom.IncCallbackOutcome(string(OutcomeStorageFailure))
		return OutcomeStorageFailure, nil
	}
	if !inserted {
		prom.IncCallbackOutcome(string(OutcomeDuplicate))
		return OutcomeDuplicate, nil
	}

	prom.IncCallbackOutcome(string(OutcomeRecorded))
	return OutcomeRecorded, nil
}

// RecordMessageSent is the outbound-send collaborator contract: the send
// record, carrying the provider-issued sid, must exist before the provider
// can fire a callback for it.
func (s *TrackingService) RecordMessageSent(ctx context.Context, tenantID, recipientID int64, kind model.EventType, channel model.Channel, sid, templateID string, adminTriggered bool) (*model.TrackingEvent, error) {
	if !kind.IsSent() {
		return nil, fmt.Errorf("event type %s is not a send event", kind)
	}
	ev := &model.TrackingEvent{
		TenantID:       tenantID,
		RecipientID:    recipientID,
		EventType:      kind,
		Channel:        channel,
		MessageSID:     sid,
		Metadata:       model.SentMetadata(templateID),
		AdminTriggered: adminTriggered,
	}
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	return s.events.Append(ctx, ev)
}

// Record appends one collaborator-originated event (guest_added,
// payment_received, rsvp transitions, link_opened).
func (s *TrackingService) Record(ctx context.Context, ev *model.TrackingEvent) (*model.TrackingEvent, error) {
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	return s.events.Append(ctx, ev)
}

// recordOrphan keeps a short-lived marker so an operator can reconstruct
// which send failed to persist its sid before the provider called back.
func (s *TrackingService) recordOrphan(cb Callback) {
	if s.redis == nil {
		return
	}
	payload, _ := json.Marshal(map[string]string{
		"message_sid": cb.MessageSID,
		"status":      cb.Status,
		"received_at": time.Now().UTC().Format(time.RFC3339),
	})
	if err := s.redis.Set(orphanKeyPrefix+cb.MessageSID, payload, orphanTTL); err != nil {
		logger.Warn("failed to record orphan marker", "message_sid", cb.MessageSID, "error", err)
	}
}
