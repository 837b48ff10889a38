package checkout

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/dukapay-backend/internal/cart"
	"github.com/angelmondragon/dukapay-backend/internal/orders"
	"github.com/angelmondragon/dukapay-backend/internal/payments"
	"github.com/angelmondragon/dukapay-backend/internal/products"
	"github.com/angelmondragon/dukapay-backend/internal/profiles"
	"github.com/angelmondragon/dukapay-backend/internal/providers"
	"github.com/angelmondragon/dukapay-backend/pkg/db"
	"github.com/angelmondragon/dukapay-backend/pkg/db/dbtest"
	"github.com/angelmondragon/dukapay-backend/pkg/db/models"
	"github.com/angelmondragon/dukapay-backend/pkg/enums"
	"github.com/angelmondragon/dukapay-backend/pkg/logger"
	"github.com/angelmondragon/dukapay-backend/pkg/outbox"
)

type stubAdapter struct {
	mu     sync.Mutex
	result providers.Result
	calls  int
}

func (s *stubAdapter) Name() string { return "stub" }

func (s *stubAdapter) Authenticate(context.Context) (providers.Token, error) {
	return providers.Token{Value: "token"}, nil
}

func (s *stubAdapter) RequestPayment(context.Context, providers.Token, providers.PaymentRequest) providers.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	result := s.result
	if result.CorrelationID != "" {
		result.CorrelationID = result.CorrelationID + "-" + uuid.NewString()[:8]
	}
	return result
}

func (s *stubAdapter) set(result providers.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.result = result
}

func (s *stubAdapter) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type harness struct {
	client   *db.Client
	orders   orders.Repository
	carts    *cart.Repository
	products *products.Repository
	profiles *profiles.Repository
	attempts *payments.AttemptRepository
	adapter  *stubAdapter
	service  *Service
	retry    *payments.RetryService
}

func newHarness(t *testing.T, pricing PricingPolicy) *harness {
	t.Helper()
	client := dbtest.Open(t)
	conn := client.DB()

	ordersRepo := orders.NewRepository(conn)
	carts := cart.NewRepository(conn)
	productsRepo := products.NewRepository(conn)
	profilesRepo := profiles.NewRepository(conn)
	attempts := payments.NewAttemptRepository(conn)
	emitter := outbox.NewService(outbox.NewRepository(conn), logger.Nop())

	status, err := payments.NewService(client, attempts, ordersRepo, emitter, logger.Nop(), nil)
	require.NoError(t, err)

	adapter := &stubAdapter{result: providers.Accepted("txn")}
	registry := providers.NewRegistry()
	require.NoError(t, registry.Register(adapter, enums.PaymentProviderMpesa, enums.PaymentProviderAirtel))

	orchestrator, err := payments.NewOrchestrator(client, attempts, emitter, registry, status, logger.Nop(), nil, time.Second)
	require.NoError(t, err)

	materializer, err := NewMaterializer(client, ordersRepo, carts, productsRepo, emitter, pricing)
	require.NoError(t, err)

	service, err := NewService(NewGate(ordersRepo), materializer, profilesRepo, orchestrator, carts, logger.Nop(), nil)
	require.NoError(t, err)

	retry, err := payments.NewRetryService(ordersRepo, attempts, profilesRepo, orchestrator, logger.Nop(), nil)
	require.NoError(t, err)

	return &harness{
		client:   client,
		orders:   ordersRepo,
		carts:    carts,
		products: productsRepo,
		profiles: profilesRepo,
		attempts: attempts,
		adapter:  adapter,
		service:  service,
		retry:    retry,
	}
}

func (h *harness) seedProduct(t *testing.T, name string, price int64) *models.Product {
	t.Helper()
	product := &models.Product{
		VendorID: uuid.New(),
		Name:     name,
		PriceTZS: decimal.NewFromInt(price),
		Active:   true,
	}
	require.NoError(t, h.products.Create(context.Background(), product))
	return product
}

func (h *harness) addToCart(t *testing.T, userID uuid.UUID, product *models.Product, qty int) {
	t.Helper()
	_, err := h.carts.AddItem(context.Background(), userID, product.ID, qty)
	require.NoError(t, err)
}

func (h *harness) countOrders(t *testing.T, userID uuid.UUID) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.client.DB().Model(&models.Order{}).Where("user_id = ?", userID).Count(&n).Error)
	return n
}

func (h *harness) countEvents(t *testing.T, eventType enums.OutboxEventType) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.client.DB().Model(&models.OutboxEvent{}).Where("event_type = ?", eventType).Count(&n).Error)
	return n
}

func address(t *testing.T, fields map[string]any) json.RawMessage {
	t.Helper()
	base := map[string]any{
		"name":     "Neema Mushi",
		"phone":    "0712345678",
		"region":   "Dar es Salaam",
		"district": "Kinondoni",
		"street":   "Morogoro Rd 14",
	}
	for k, v := range fields {
		if v == nil {
			delete(base, k)
			continue
		}
		base[k] = v
	}
	raw, err := json.Marshal(base)
	require.NoError(t, err)
	return raw
}

func request(t *testing.T, userID uuid.UUID, key string) Request {
	t.Helper()
	return Request{
		UserID:          userID,
		IdempotencyKey:  key,
		ShippingAddress: address(t, nil),
		PaymentProvider: "mpesa",
	}
}
