package services

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/hitchly/engagement-tracker/internal/model"
)

type RecipientReader interface {
	ListByTenant(ctx context.Context, tenantID int64) ([]*model.Recipient, error)
}

type EventReader interface {
	ListAll(ctx context.Context, f model.EventFilter) ([]*model.TrackingEvent, error)
}

// EngagementService is the read side: per-recipient funnels and per-tenant
// statistics computed from the event log. Every operation is at most two
// bulk reads (recipients, events) regardless of tenant size; this renders
// on every dashboard load.
type EngagementService struct {
	recipients RecipientReader
	events     EventReader
	now        func() time.Time
}

func NewEngagementService(recipients RecipientReader, events EventReader) *EngagementService {
	return &EngagementService{
		recipients: recipients,
		events:     events,
		now:        time.Now,
	}
}

// funnelEventTypes are the event types that can advance a milestone.
func funnelEventTypes() []model.EventType {
	return []model.EventType{
		model.EventInvitationSent, model.EventReminderSent, model.EventSaveTheDateSent,
		model.EventMessageDelivered, model.EventMessageRead,
		model.EventLinkOpened, model.EventRSVPSubmitted,
	}
}

func milestoneFor(t model.EventType) (model.Milestone, bool) {
	switch {
	case t.IsSent():
		return model.MilestoneInvited, true
	case t == model.EventMessageDelivered:
		return model.MilestoneDelivered, true
	case t == model.EventMessageRead:
		return model.MilestoneRead, true
	case t == model.EventLinkOpened:
		return model.MilestoneLinkOpened, true
	case t == model.EventRSVPSubmitted:
		return model.MilestoneRSVPConfirmed, true
	}
	return "", false
}

// buildTimeline folds events (any order) into the fixed funnel, keeping the
// first occurrence per milestone. Arrival order does not matter: "read
// before delivered" still yields both milestones with their own timestamps.
func buildTimeline(events []*model.TrackingEvent) ([]model.MilestoneStatus, int) {
	type first struct {
		at      time.Time
		channel model.Channel
	}
	firsts := make(map[model.Milestone]first, 5)
	for _, ev := range events {
		m, ok := milestoneFor(ev.EventType)
		if !ok {
			continue
		}
		if cur, seen := firsts[m]; !seen || ev.Timestamp.Before(cur.at) {
			firsts[m] = first{at: ev.Timestamp, channel: ev.Channel}
		}
	}

	order := model.Milestones()
	statuses := make([]model.MilestoneStatus, 0, len(order))
	reached := 0
	for _, m := range order {
		st := model.MilestoneStatus{Milestone: m}
		if f, ok := firsts[m]; ok {
			ts := f.at
			st.Reached = true
			st.Timestamp = &ts
			st.Channel = f.channel
			reached++
		}
		statuses = append(statuses, st)
	}

	completion := int(math.Round(float64(reached) / float64(len(order)) * 100))
	return statuses, completion
}

// RecipientTimeline reports the five-milestone funnel for one recipient.
func (s *EngagementService) RecipientTimeline(ctx context.Context, tenantID, recipientID int64) (*model.RecipientTimeline, error) {
	events, err := s.events.ListAll(ctx, model.EventFilter{
		TenantID:    tenantID,
		RecipientID: &recipientID,
		Types:       funnelEventTypes(),
		Limit:       model.NoLimit,
	})
	if err != nil {
		return nil, err
	}

	statuses, completion := buildTimeline(events)
	return &model.RecipientTimeline{
		TenantID:    tenantID,
		RecipientID: recipientID,
		Milestones:  statuses,
		Completion:  completion,
	}, nil
}

// TenantStats aggregates milestone counts across all recipients plus the
// mean completion percentage. A tenant with no recipients reports zeroes.
func (s *EngagementService) TenantStats(ctx context.Context, tenantID int64) (*model.TenantStats, error) {
	recipients, err := s.recipients.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	events, err := s.events.ListAll(ctx, model.EventFilter{
		TenantID: tenantID,
		Types:    funnelEventTypes(),
		Limit:    model.NoLimit,
	})
	if err != nil {
		return nil, err
	}

	byRecipient := groupByRecipient(events)

	stats := &model.TenantStats{
		TenantID:        tenantID,
		Recipients:      len(recipients),
		MilestoneCounts: make(map[model.Milestone]int, 5),
	}
	for _, m := range model.Milestones() {
		stats.MilestoneCounts[m] = 0
	}

	if len(recipients) == 0 {
		return stats, nil
	}

	totalCompletion := 0
	for _, rec := range recipients {
		statuses, completion := buildTimeline(byRecipient[rec.ID])
		totalCompletion += completion
		for _, st := range statuses {
			if st.Reached {
				stats.MilestoneCounts[st.Milestone]++
			}
		}
	}
	stats.AvgCompletion = float64(totalCompletion) / float64(len(recipients))

	return stats, nil
}

// ChannelReadRates reports per-channel send outcomes. Both rates are 0 when
// their denominator is 0 and are clamped to [0, 100].
func (s *EngagementService) ChannelReadRates(ctx context.Context, tenantID int64) ([]*model.ChannelReadRate, error) {
	types := append(model.SentEventTypes(), model.DeliveryStatusEventTypes()...)
	events, err := s.events.ListAll(ctx, model.EventFilter{
		TenantID: tenantID,
		Types:    types,
		Limit:    model.NoLimit,
	})
	if err != nil {
		return nil, err
	}

	byChannel := make(map[model.Channel]*model.ChannelReadRate)
	order := make([]model.Channel, 0, 4)
	for _, ev := range events {
		if ev.Channel == "" {
			continue
		}
		rate, ok := byChannel[ev.Channel]
		if !ok {
			rate = &model.ChannelReadRate{Channel: ev.Channel}
			byChannel[ev.Channel] = rate
			order = append(order, ev.Channel)
		}
		switch {
		case ev.EventType.IsSent():
			rate.Sent++
		case ev.EventType == model.EventMessageDelivered:
			rate.Delivered++
		case ev.EventType == model.EventMessageRead:
			rate.Read++
		case ev.EventType == model.EventMessageFailed:
			rate.Failed++
		}
	}

	out := make([]*model.ChannelReadRate, 0, len(order))
	for _, ch := range order {
		rate := byChannel[ch]
		if rate.Sent > 0 {
			rate.DeliveryRate = clampPercent(float64(rate.Sent-rate.Failed) / float64(rate.Sent) * 100)
		}
		if rate.Delivered > 0 {
			rate.ReadRate = clampPercent(float64(rate.Read) / float64(rate.Delivered) * 100)
		}
		out = append(out, rate)
	}
	return out, nil
}

// StaleInvitations lists recipients who were invited but never read the
// message, with the age of the invitation; used by re-engagement workflows.
func (s *EngagementService) StaleInvitations(ctx context.Context, tenantID int64) ([]*model.StaleInvitation, error) {
	types := append(model.SentEventTypes(), model.EventMessageDelivered, model.EventMessageRead)
	events, err := s.events.ListAll(ctx, model.EventFilter{
		TenantID: tenantID,
		Types:    types,
		Limit:    model.NoLimit,
	})
	if err != nil {
		return nil, err
	}

	byRecipient := groupByRecipient(events)
	now := s.now()

	var out []*model.StaleInvitation
	for rid, evs := range byRecipient {
		var invitedAt, deliveredAt *time.Time
		var channel model.Channel
		read := false
		for _, ev := range evs {
			ts := ev.Timestamp
			switch {
			case ev.EventType.IsSent():
				if invitedAt == nil || ts.Before(*invitedAt) {
					invitedAt = &ts
					channel = ev.Channel
				}
			case ev.EventType == model.EventMessageDelivered:
				if deliveredAt == nil || ts.Before(*deliveredAt) {
					deliveredAt = &ts
				}
			case ev.EventType == model.EventMessageRead:
				read = true
			}
		}
		if invitedAt == nil || read {
			continue
		}
		out = append(out, &model.StaleInvitation{
			RecipientID: rid,
			InvitedAt:   *invitedAt,
			DeliveredAt: deliveredAt,
			DaysSince:   int(now.Sub(*invitedAt).Hours() / 24),
			Channel:     channel,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecipientID < out[j].RecipientID })
	return out, nil
}

func groupByRecipient(events []*model.TrackingEvent) map[int64][]*model.TrackingEvent {
	byRecipient := make(map[int64][]*model.TrackingEvent)
	for _, ev := range events {
		byRecipient[ev.RecipientID] = append(byRecipient[ev.RecipientID], ev)
	}
	return byRecipient
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
