package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	gateway "github.com/hitchly/engagement-tracker/internal/gateways"
	"github.com/hitchly/engagement-tracker/internal/model"
	"github.com/hitchly/engagement-tracker/internal/queue"
	"github.com/hitchly/engagement-tracker/pkg/logger"
	"github.com/hitchly/engagement-tracker/pkg/prom"
)

// SentRecorder persists the send event once the provider accepts a
// message. The event carries the provider-issued SID so later delivery
// callbacks can be joined back to the tenant and recipient.
type SentRecorder interface {
	RecordMessageSent(ctx context.Context, tenantID, recipientID int64, kind model.EventType, channel model.Channel, sid, templateID string, adminTriggered bool) (*model.TrackingEvent, error)
}

// OutboundProcessor drains queued invitation and reminder jobs, posts
// them to the messaging provider and records the matching send event.
type OutboundProcessor struct {
	client      *gateway.Client
	tracker     SentRecorder
	idempotency *IdempotencyService
}

func NewOutboundProcessor(client *gateway.Client, tracker SentRecorder, idempotency *IdempotencyService) *OutboundProcessor {
	return &OutboundProcessor{
		client:      client,
		tracker:     tracker,
		idempotency: idempotency,
	}
}

func (p *OutboundProcessor) GetType() string {
	return "outbound"
}

// Process sends one queued message with idempotency guarantees. The
// lock is keyed on the stream entry id, so a redelivered entry whose
// first attempt already succeeded is acked without a second send.
func (p *OutboundProcessor) Process(ctx context.Context, queueMessage *queue.Message) error {
	var job model.OutboundMessage
	if err := json.Unmarshal(queueMessage.Data, &job); err != nil {
		logger.Error("Failed to unmarshal outbound job", "error", err, "job_id", queueMessage.ID)
		return err // malformed payload, let the DLQ keep it
	}

	if err := job.Validate(); err != nil {
		logger.Error("Invalid outbound job", "error", err, "job_id", queueMessage.ID)
		return err
	}

	jobID := queueMessage.ID

	procCtx, err := p.idempotency.AcquireProcessingLock(ctx, jobID)
	if err != nil {
		if errors.Is(err, ErrAlreadyProcessed) {
			logger.Info("Job already processed, skipping", "job_id", jobID)
			return nil
		}
		if errors.Is(err, ErrMaxRetriesExceeded) {
			logger.Error("Max retries exceeded, dropping job",
				"job_id", jobID,
				"tenant_id", job.TenantID,
				"recipient_id", job.RecipientID)
			return nil // ack so the entry moves to the DLQ path
		}
		if errors.Is(err, ErrLockAcquireFailed) {
			logger.Info("Lock held by another consumer, will retry", "job_id", jobID)
			return errors.New("lock held by another consumer")
		}
		logger.Error("Failed to acquire lock", "job_id", jobID, "error", err)
		return err
	}

	defer func() {
		if procCtx.lockAcquired {
			p.idempotency.ReleaseLock(ctx, procCtx)
		}
	}()

	logger.Info("Dispatching message",
		"job_id", jobID,
		"tenant_id", job.TenantID,
		"recipient_id", job.RecipientID,
		"kind", job.Kind,
		"channel", job.Channel,
		"retry_count", procCtx.RetryCount)

	start := time.Now()
	res, err := p.client.Send(ctx, &gateway.SendRequest{
		TenantID:    job.TenantID,
		RecipientID: job.RecipientID,
		Channel:     string(job.Channel),
		To:          job.To,
		TemplateID:  job.TemplateID,
		Body:        job.Body,
	})
	if err != nil {
		logger.Error("Failed to send message", "job_id", jobID, "error", err)
		if markErr := p.idempotency.MarkFailure(ctx, procCtx, err); markErr != nil {
			logger.Error("Failed to mark failure", "job_id", jobID, "error", markErr)
		}
		return err // nack, the queue retries
	}

	prom.AddDispatchSendDuration(time.Since(start).Seconds(), string(job.Channel))

	// The send event must be on record before the entry is acked:
	// otherwise a delivery callback for this SID has nothing to join to.
	if _, err := p.tracker.RecordMessageSent(ctx, job.TenantID, job.RecipientID, job.Kind, job.Channel, res.MessageSID, job.TemplateID, job.AdminTriggered); err != nil {
		// The provider accepted the message, so a retry would double
		// send. Log loudly and ack; the callback path keeps an orphan
		// marker for this SID.
		logger.Error("Failed to record send event",
			"job_id", jobID,
			"message_sid", res.MessageSID,
			"tenant_id", job.TenantID,
			"error", err)
	} else {
		logger.Info("Message dispatched",
			"job_id", jobID,
			"message_sid", res.MessageSID,
			"status", res.Status,
			"retry_count", procCtx.RetryCount)
	}

	if markErr := p.idempotency.MarkSuccess(ctx, procCtx); markErr != nil {
		logger.Error("Failed to mark success", "job_id", jobID, "error", markErr)
	}

	return nil // ack
}
