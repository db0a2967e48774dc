package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitchly/engagement-tracker/internal/model"
)

func TestRecipientRepository_CreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRecipientRepository(db.DB)
	ctx := context.Background()

	created, err := repo.Create(ctx, &model.Recipient{
		TenantID: 1,
		Name:     "Avery Quinn",
		Mobile:   "+15550001111",
		Email:    "avery@example.com",
	})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)

	got, err := repo.Get(ctx, 1, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Avery Quinn", got.Name)
	assert.Equal(t, "+15550001111", got.Mobile)
}

func TestRecipientRepository_Get_WrongTenant(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRecipientRepository(db.DB)
	ctx := context.Background()

	created, err := repo.Create(ctx, &model.Recipient{TenantID: 1, Name: "Avery Quinn"})
	require.NoError(t, err)

	_, err = repo.Get(ctx, 2, created.ID)
	assert.ErrorIs(t, err, ErrRecipientNotFound)
}

func TestRecipientRepository_ListByTenant(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRecipientRepository(db.DB)
	ctx := context.Background()

	for _, name := range []string{"Avery Quinn", "Jordan Reyes"} {
		_, err := repo.Create(ctx, &model.Recipient{TenantID: 1, Name: name})
		require.NoError(t, err)
	}
	_, err := repo.Create(ctx, &model.Recipient{TenantID: 2, Name: "Sam Okafor"})
	require.NoError(t, err)

	recs, err := repo.ListByTenant(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "Avery Quinn", recs[0].Name)
	assert.Equal(t, "Jordan Reyes", recs[1].Name)

	empty, err := repo.ListByTenant(ctx, 3)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
