package orders

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/dukapay-backend/pkg/db/dbtest"
	"github.com/angelmondragon/dukapay-backend/pkg/db/models"
	"github.com/angelmondragon/dukapay-backend/pkg/enums"
	"github.com/angelmondragon/dukapay-backend/pkg/types"
)

func newOrder(userID uuid.UUID, key string) *models.Order {
	line := models.OrderLine{
		ProductID:    uuid.New(),
		VendorID:     uuid.New(),
		ProductName:  "Sabuni",
		Quantity:     2,
		UnitPriceTZS: decimal.NewFromInt(10000),
		LineTotalTZS: decimal.NewFromInt(20000),
	}
	return &models.Order{
		OrderNumber:     NewOrderNumber(time.Now()),
		UserID:          userID,
		IdempotencyKey:  key,
		Status:          enums.OrderStatusPending,
		SubtotalTZS:     decimal.NewFromInt(20000),
		ShippingTZS:     decimal.Zero,
		TaxTZS:          decimal.Zero,
		TotalTZS:        decimal.NewFromInt(20000),
		ShippingAddress: types.ShippingAddress{Phone: "0712345678", Region: "Dar es Salaam", Street: "Samora Ave"},
		Lines:           []models.OrderLine{line},
	}
}

func TestCreateAndFind(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	ctx := context.Background()
	user := uuid.New()

	order := newOrder(user, "key-1")
	require.NoError(t, repo.Create(ctx, order))
	require.NotEqual(t, uuid.Nil, order.ID)

	loaded, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Lines, 1)
	require.Equal(t, "Samora Ave", loaded.ShippingAddress.Street)
	require.True(t, loaded.TotalTZS.Equal(decimal.NewFromInt(20000)))

	byKey, err := repo.FindByIdempotencyKey(ctx, "key-1")
	require.NoError(t, err)
	require.Equal(t, order.ID, byKey.ID)

	_, err = repo.FindForUser(ctx, order.ID, uuid.New())
	require.Error(t, err)
}

func TestDuplicateIdempotencyKeyIsUniqueViolation(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newOrder(uuid.New(), "dup")))
	err := repo.Create(ctx, newOrder(uuid.New(), "dup"))
	require.Error(t, err)
	require.True(t, IsIdempotencyConflict(err))
	require.False(t, IsOrderNumberConflict(err))
}

func TestDuplicateOrderNumberIsNotIdempotencyConflict(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	ctx := context.Background()

	first := newOrder(uuid.New(), "first-key")
	require.NoError(t, repo.Create(ctx, first))
	second := newOrder(uuid.New(), "second-key")
	second.OrderNumber = first.OrderNumber
	err := repo.Create(ctx, second)
	require.Error(t, err)
	require.True(t, IsOrderNumberConflict(err))
	require.False(t, IsIdempotencyConflict(err))
}

func TestStatusUpdatesAreGuarded(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	ctx := context.Background()
	now := time.Now().UTC()

	order := newOrder(uuid.New(), "key-guard")
	require.NoError(t, repo.Create(ctx, order))

	moved, err := repo.MarkConfirmed(ctx, order.ID, now)
	require.NoError(t, err)
	require.True(t, moved)

	moved, err = repo.MarkConfirmed(ctx, order.ID, now)
	require.NoError(t, err)
	require.False(t, moved, "second confirmation must be a no-op")

	moved, err = repo.MarkCancelled(ctx, order.ID, now)
	require.NoError(t, err)
	require.False(t, moved, "confirmed order cannot be cancelled")

	loaded, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusConfirmed, loaded.Status)
	require.NotNil(t, loaded.ConfirmedAt)
}

func TestFindExpiredPendingSkipsOrdersWithLiveAttempts(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	ctx := context.Background()
	conn := client.DB()

	old := time.Now().Add(-100 * time.Hour)
	stale := newOrder(uuid.New(), "stale")
	live := newOrder(uuid.New(), "live")
	fresh := newOrder(uuid.New(), "fresh")
	require.NoError(t, repo.Create(ctx, stale))
	require.NoError(t, repo.Create(ctx, live))
	require.NoError(t, repo.Create(ctx, fresh))
	require.NoError(t, conn.Model(&models.Order{}).Where("id IN ?", []uuid.UUID{stale.ID, live.ID}).Update("created_at", old).Error)

	require.NoError(t, conn.Create(&models.PaymentAttempt{
		OrderID:        live.ID,
		Provider:       enums.PaymentProviderMpesa,
		Status:         enums.PaymentStatusInitiated,
		AmountTZS:      live.TotalTZS,
		PayerPhone:     "255712345678",
		IdempotencyKey: "attempt-live",
	}).Error)

	cutoff := time.Now().Add(-72 * time.Hour)
	expired, err := repo.FindExpiredPending(ctx, cutoff, 10)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	require.Equal(t, stale.ID, expired[0].ID)
}

func TestNewOrderNumberFormat(t *testing.T) {
	number := NewOrderNumber(time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC))
	require.Regexp(t, regexp.MustCompile(`^DP-261018-[0-9A-F]{8}$`), number)
}
