package products

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/dukapay-backend/pkg/db/dbtest"
	"github.com/angelmondragon/dukapay-backend/pkg/db/models"
)

func TestFindByIDs(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	ctx := context.Background()

	vendor := uuid.New()
	soap := &models.Product{VendorID: vendor, Name: "Sabuni", PriceTZS: decimal.NewFromInt(10000), Active: true}
	rice := &models.Product{VendorID: vendor, Name: "Mchele", PriceTZS: decimal.NewFromInt(5000), Active: true}
	require.NoError(t, repo.Create(ctx, soap))
	require.NoError(t, repo.Create(ctx, rice))

	missing := uuid.New()
	found, err := repo.FindByIDs(ctx, []uuid.UUID{soap.ID, rice.ID, missing})
	require.NoError(t, err)
	require.Len(t, found, 2)
	require.True(t, found[soap.ID].PriceTZS.Equal(decimal.NewFromInt(10000)))
	require.Equal(t, vendor, found[rice.ID].VendorID)
	_, ok := found[missing]
	require.False(t, ok)

	empty, err := repo.FindByIDs(ctx, nil)
	require.NoError(t, err)
	require.Empty(t, empty)
}
