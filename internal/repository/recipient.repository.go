package repository

import (
	"context"
	"errors"

	"github.com/hitchly/engagement-tracker/internal/model"
	"github.com/hitchly/engagement-tracker/pkg/pg"
	"gorm.io/gorm"
)

var (
	ErrRecipientNotFound = errors.New("recipient not found")
)

// RecipientRepository is the read side the aggregator depends on. Guest
// CRUD is owned by an external collaborator; Create exists for that
// collaborator's guest_added path and for test seeding.
type RecipientRepository struct {
	*pg.DB
}

func NewRecipientRepository(db *pg.DB) *RecipientRepository {
	return &RecipientRepository{
		db,
	}
}

func (r *RecipientRepository) Create(ctx context.Context, rec *model.Recipient) (*model.Recipient, error) {
	entity := toRecipientEntity(rec)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toRecipientModel(entity), nil
}

func (r *RecipientRepository) Get(ctx context.Context, tenantID, id int64) (*model.Recipient, error) {
	var entity RecipientEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecipientNotFound
		}
		return nil, err
	}
	return toRecipientModel(&entity), nil
}

// ListByTenant returns every recipient of the tenant in one read; the
// aggregator pairs this with one bulk event read per call.
func (r *RecipientRepository) ListByTenant(ctx context.Context, tenantID int64) ([]*model.Recipient, error) {
	var entities []*RecipientEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("id ASC").
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	return toRecipientModels(entities), nil
}
