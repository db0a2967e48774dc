package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitchly/engagement-tracker/internal/model"
	"github.com/hitchly/engagement-tracker/pkg/pg"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrNotFound is returned when no matching event exists.
	ErrNotFound = errors.New("tracking event not found")
)

type TrackingEventRepository struct {
	*pg.DB
}

func NewTrackingEventRepository(db *pg.DB) *TrackingEventRepository {
	return &TrackingEventRepository{
		db,
	}
}

// Append inserts one event. Events are immutable; there is no update path.
func (r *TrackingEventRepository) Append(ctx context.Context, ev *model.TrackingEvent) (*model.TrackingEvent, error) {
	entity := toTrackingEventEntity(ev)
	if entity.Timestamp.IsZero() {
		entity.Timestamp = time.Now().UTC()
	}

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toTrackingEventModel(entity), nil
}

// AppendIdempotent inserts one delivery-status event, relying on the
// storage-level unique index over (tenant_id, message_sid, event_type) to
// absorb concurrent duplicates. The second return reports whether a row was
// actually inserted; a constraint hit is a no-op, not an error.
func (r *TrackingEventRepository) AppendIdempotent(ctx context.Context, ev *model.TrackingEvent) (*model.TrackingEvent, bool, error) {
	entity := toTrackingEventEntity(ev)
	if entity.Timestamp.IsZero() {
		entity.Timestamp = time.Now().UTC()
	}

	res := r.Write(ctx).WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(entity)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, false, nil
	}

	return toTrackingEventModel(entity), true, nil
}

// FindSentBySID locates the originating send event for a provider message
// SID. Callbacks carry no tenant identity, so this is the join that derives
// it.
func (r *TrackingEventRepository) FindSentBySID(ctx context.Context, sid string) (*model.TrackingEvent, error) {
	var entity TrackingEventEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("message_sid = ?", sid).
		Where("event_type IN ?", sentTypeStrings()).
		Order("timestamp ASC").
		First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return toTrackingEventModel(&entity), nil
}

// ExistsDeliveryStatus reports whether a delivery-status event of the given
// type already exists for the correlation tuple. The unique index remains
// the authoritative guard; this pre-check just keeps the common duplicate
// path off the write connection.
func (r *TrackingEventRepository) ExistsDeliveryStatus(ctx context.Context, tenantID int64, sid string, t model.EventType) (bool, error) {
	var count int64
	err := r.Read(ctx).WithContext(ctx).
		Model(&TrackingEventEntity{}).
		Where("tenant_id = ? AND message_sid = ? AND event_type = ?", tenantID, sid, string(t)).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// List returns events matching the filter plus the unpaginated total.
func (r *TrackingEventRepository) List(ctx context.Context, f model.EventFilter) ([]*model.TrackingEvent, int64, error) {
	q := r.buildFilterQuery(ctx, f)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "timestamp"
	if f.Desc {
		order += " DESC"
	} else {
		order += " ASC"
	}

	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	var entities []*TrackingEventEntity
	if err := q.Order(order).Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	return toTrackingEventModels(entities), total, nil
}

// ListAll returns every matching event in one read, no count, no
// pagination. This is the aggregator's bulk-read path: one call per tenant,
// never one query per recipient.
func (r *TrackingEventRepository) ListAll(ctx context.Context, f model.EventFilter) ([]*model.TrackingEvent, error) {
	var entities []*TrackingEventEntity
	err := r.buildFilterQuery(ctx, f).Order("timestamp ASC").Find(&entities).Error
	if err != nil {
		return nil, err
	}
	return toTrackingEventModels(entities), nil
}

func (r *TrackingEventRepository) buildFilterQuery(ctx context.Context, f model.EventFilter) *gorm.DB {
	q := r.Read(ctx).WithContext(ctx).Model(&TrackingEventEntity{}).
		Where("tenant_id = ?", f.TenantID)

	if f.RecipientID != nil {
		q = q.Where("recipient_id = ?", *f.RecipientID)
	}
	if len(f.Types) > 0 {
		types := make([]string, len(f.Types))
		for i, t := range f.Types {
			types[i] = string(t)
		}
		q = q.Where("event_type IN ?", types)
	}
	if f.MessageSID != nil && *f.MessageSID != "" {
		q = q.Where("message_sid = ?", *f.MessageSID)
	}
	if f.From != nil {
		q = q.Where("timestamp >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("timestamp < ?", *f.To)
	}
	return q
}

func sentTypeStrings() []string {
	types := model.SentEventTypes()
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}
