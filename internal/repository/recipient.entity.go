package repository

import (
	"time"

	"github.com/hitchly/engagement-tracker/internal/model"
)

type RecipientEntity struct {
	ID        int64     `db:"id"         gorm:"primaryKey;autoIncrement;column:id"`
	TenantID  int64     `db:"tenant_id"  gorm:"column:tenant_id;not null;index:idx_recipients_tenant"`
	Name      string    `db:"name"       gorm:"column:name;not null"`
	Mobile    string    `db:"mobile"     gorm:"column:mobile"`
	Email     string    `db:"email"      gorm:"column:email"`
	CreatedAt time.Time `db:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (RecipientEntity) TableName() string {
	return "recipients"
}

func toRecipientEntity(m *model.Recipient) *RecipientEntity {
	if m == nil {
		return nil
	}
	return &RecipientEntity{
		ID:        m.ID,
		TenantID:  m.TenantID,
		Name:      m.Name,
		Mobile:    m.Mobile,
		Email:     m.Email,
		CreatedAt: m.CreatedAt,
	}
}

func toRecipientModel(e *RecipientEntity) *model.Recipient {
	if e == nil {
		return nil
	}
	return &model.Recipient{
		ID:        e.ID,
		TenantID:  e.TenantID,
		Name:      e.Name,
		Mobile:    e.Mobile,
		Email:     e.Email,
		CreatedAt: e.CreatedAt,
	}
}

func toRecipientModels(entities []*RecipientEntity) []*model.Recipient {
	if entities == nil {
		return nil
	}
	models := make([]*model.Recipient, len(entities))
	for i, e := range entities {
		models[i] = toRecipientModel(e)
	}
	return models
}
