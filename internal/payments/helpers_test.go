package payments

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/dukapay-backend/internal/orders"
	"github.com/angelmondragon/dukapay-backend/internal/providers"
	"github.com/angelmondragon/dukapay-backend/pkg/db"
	"github.com/angelmondragon/dukapay-backend/pkg/db/dbtest"
	"github.com/angelmondragon/dukapay-backend/pkg/db/models"
	"github.com/angelmondragon/dukapay-backend/pkg/enums"
	"github.com/angelmondragon/dukapay-backend/pkg/logger"
	"github.com/angelmondragon/dukapay-backend/pkg/outbox"
	"github.com/angelmondragon/dukapay-backend/pkg/types"
)

type stubAdapter struct {
	result providers.Result
	calls  int
	last   providers.PaymentRequest
}

func (s *stubAdapter) Name() string { return "stub" }

func (s *stubAdapter) Authenticate(context.Context) (providers.Token, error) {
	return providers.Token{Value: "token"}, nil
}

func (s *stubAdapter) RequestPayment(_ context.Context, _ providers.Token, req providers.PaymentRequest) providers.Result {
	s.calls++
	s.last = req
	result := s.result
	if result.CorrelationID != "" {
		result.CorrelationID = fmt.Sprintf("%s-%d", result.CorrelationID, s.calls)
	}
	return result
}

type phoneStub map[uuid.UUID]string

func (p phoneStub) FindPhone(_ context.Context, userID uuid.UUID) (string, error) {
	return p[userID], nil
}

type harness struct {
	client       *db.Client
	attempts     *AttemptRepository
	orders       orders.Repository
	status       *Service
	orchestrator *Orchestrator
	adapter      *stubAdapter
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	client := dbtest.Open(t)
	attempts := NewAttemptRepository(client.DB())
	ordersRepo := orders.NewRepository(client.DB())
	emitter := outbox.NewService(outbox.NewRepository(client.DB()), logger.Nop())

	status, err := NewService(client, attempts, ordersRepo, emitter, logger.Nop(), nil)
	require.NoError(t, err)

	adapter := &stubAdapter{result: providers.Accepted("txn-1")}
	registry := providers.NewRegistry()
	require.NoError(t, registry.Register(adapter, enums.PaymentProviderMpesa, enums.PaymentProviderAirtel))

	orchestrator, err := NewOrchestrator(client, attempts, emitter, registry, status, logger.Nop(), nil, time.Second)
	require.NoError(t, err)

	return &harness{
		client:       client,
		attempts:     attempts,
		orders:       ordersRepo,
		status:       status,
		orchestrator: orchestrator,
		adapter:      adapter,
	}
}

func (h *harness) seedOrder(t *testing.T, userID uuid.UUID, total int64) *models.Order {
	t.Helper()
	amount := decimal.NewFromInt(total)
	order := &models.Order{
		OrderNumber:     orders.NewOrderNumber(time.Now()),
		UserID:          userID,
		IdempotencyKey:  uuid.NewString(),
		Status:          enums.OrderStatusPending,
		SubtotalTZS:     amount,
		ShippingTZS:     decimal.Zero,
		TaxTZS:          decimal.Zero,
		TotalTZS:        amount,
		ShippingAddress: types.ShippingAddress{Phone: "0712345678", Region: "Arusha", Street: "Sokoine Rd"},
		Lines: []models.OrderLine{{
			ProductID:    uuid.New(),
			VendorID:     uuid.New(),
			ProductName:  "Kahawa",
			Quantity:     1,
			UnitPriceTZS: amount,
			LineTotalTZS: amount,
		}},
	}
	require.NoError(t, h.orders.Create(context.Background(), order))
	return order
}

func (h *harness) start(t *testing.T, order *models.Order) *StartResult {
	t.Helper()
	res, err := h.orchestrator.Start(context.Background(), StartInput{
		Order:          order,
		Provider:       enums.PaymentProviderMpesa,
		Phone:          "255712345678",
		IdempotencyKey: uuid.NewString(),
		Actor:          outbox.UserActor(order.UserID),
	})
	require.NoError(t, err)
	return res
}

func (h *harness) countEvents(t *testing.T, eventType enums.OutboxEventType) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.client.DB().Model(&models.OutboxEvent{}).Where("event_type = ?", eventType).Count(&n).Error)
	return n
}

func (h *harness) reloadAttempt(t *testing.T, id uuid.UUID) *models.PaymentAttempt {
	t.Helper()
	attempt, err := h.attempts.FindByID(context.Background(), id)
	require.NoError(t, err)
	return attempt
}

func (h *harness) reloadOrder(t *testing.T, id uuid.UUID) *models.Order {
	t.Helper()
	order, err := h.orders.FindByID(context.Background(), id)
	require.NoError(t, err)
	return order
}
