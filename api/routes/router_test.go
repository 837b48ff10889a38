package routes

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/dukapay-backend/internal/cart"
	"github.com/angelmondragon/dukapay-backend/internal/checkout"
	"github.com/angelmondragon/dukapay-backend/internal/orders"
	"github.com/angelmondragon/dukapay-backend/internal/payments"
	"github.com/angelmondragon/dukapay-backend/internal/products"
	"github.com/angelmondragon/dukapay-backend/internal/profiles"
	"github.com/angelmondragon/dukapay-backend/internal/providers"
	"github.com/angelmondragon/dukapay-backend/internal/webhooks"
	azampaywebhook "github.com/angelmondragon/dukapay-backend/internal/webhooks/azampay"
	"github.com/angelmondragon/dukapay-backend/pkg/auth"
	"github.com/angelmondragon/dukapay-backend/pkg/config"
	"github.com/angelmondragon/dukapay-backend/pkg/db/dbtest"
	"github.com/angelmondragon/dukapay-backend/pkg/db/models"
	"github.com/angelmondragon/dukapay-backend/pkg/enums"
	"github.com/angelmondragon/dukapay-backend/pkg/logger"
	"github.com/angelmondragon/dukapay-backend/pkg/metrics"
	"github.com/angelmondragon/dukapay-backend/pkg/outbox"
)

const callbackSecret = "callback-secret"

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

type acceptingAdapter struct{ reference string }

func (a acceptingAdapter) Name() string { return "stub" }

func (a acceptingAdapter) Authenticate(context.Context) (providers.Token, error) {
	return providers.Token{Value: "token"}, nil
}

func (a acceptingAdapter) RequestPayment(context.Context, providers.Token, providers.PaymentRequest) providers.Result {
	return providers.Accepted(a.reference)
}

type memoryStore struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func (m *memoryStore) SetNX(_ context.Context, key string, _ any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keys[key]; ok {
		return false, nil
	}
	m.keys[key] = struct{}{}
	return true, nil
}

func (m *memoryStore) Set(_ context.Context, key string, _ any, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[key] = struct{}{}
	return nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string { return scope + ":" + id }

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.keys, key)
	}
	return nil
}

type app struct {
	handler  http.Handler
	cfg      *config.Config
	carts    *cart.Repository
	products *products.Repository
}

func newApp(t *testing.T, redisErr error) *app {
	t.Helper()
	cfg := &config.Config{
		App:  config.AppConfig{Env: "dev"},
		CORS: config.CORSConfig{AllowedOrigins: []string{"https://shop.dukapay.co.tz"}, MaxAge: 300},
		JWT:  config.JWTConfig{Secret: "jwt-secret", Issuer: "dukapay"},
		Payments: config.PaymentsConfig{
			CallbackSecret:  callbackSecret,
			SignatureHeader: "X-Azampay-Signature",
			PollingTimeout:  5 * time.Minute,
		},
	}

	client := dbtest.Open(t)
	conn := client.DB()
	logg := logger.Nop()
	reg := prometheus.NewRegistry()
	paymentMetrics := metrics.NewPaymentMetrics(reg)

	ordersRepo := orders.NewRepository(conn)
	carts := cart.NewRepository(conn)
	productsRepo := products.NewRepository(conn)
	profilesRepo := profiles.NewRepository(conn)
	attempts := payments.NewAttemptRepository(conn)
	emitter := outbox.NewService(outbox.NewRepository(conn), logg)

	status, err := payments.NewService(client, attempts, ordersRepo, emitter, logg, paymentMetrics)
	require.NoError(t, err)
	registry := providers.NewRegistry()
	require.NoError(t, registry.Register(acceptingAdapter{reference: "AZM-" + uuid.NewString()[:8]}, enums.PaymentProviderMpesa))
	orchestrator, err := payments.NewOrchestrator(client, attempts, emitter, registry, status, logg, paymentMetrics, time.Second)
	require.NoError(t, err)
	materializer, err := checkout.NewMaterializer(client, ordersRepo, carts, productsRepo, emitter, checkout.ZeroPolicy{})
	require.NoError(t, err)
	checkoutSvc, err := checkout.NewService(checkout.NewGate(ordersRepo), materializer, profilesRepo, orchestrator, carts, logg, paymentMetrics)
	require.NoError(t, err)
	retrySvc, err := payments.NewRetryService(ordersRepo, attempts, profilesRepo, orchestrator, logg, paymentMetrics)
	require.NoError(t, err)
	webhookSvc, err := azampaywebhook.NewService(attempts, status, logg, paymentMetrics)
	require.NoError(t, err)
	guard, err := webhooks.NewIdempotencyGuard(&memoryStore{keys: map[string]struct{}{}}, time.Hour, "azampay")
	require.NoError(t, err)

	handler := NewRouter(
		cfg,
		logg,
		client,
		stubPinger{err: redisErr},
		promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		paymentMetrics,
		checkoutSvc,
		retrySvc,
		payments.NewStatusReader(ordersRepo, attempts, cfg.Payments.PollingTimeout),
		webhookSvc,
		guard,
	)
	return &app{handler: handler, cfg: cfg, carts: carts, products: productsRepo}
}

func (a *app) token(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	token, err := auth.MintAccessToken(a.cfg.JWT, time.Now(), time.Hour, auth.AccessTokenPayload{UserID: userID})
	require.NoError(t, err)
	return token
}

func (a *app) do(t *testing.T, method, path, token string, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp := httptest.NewRecorder()
	a.handler.ServeHTTP(resp, req)
	return resp
}

func data[T any](t *testing.T, resp *httptest.ResponseRecorder) T {
	t.Helper()
	var envelope struct {
		Data T `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return envelope.Data
}

func TestHealthEndpoints(t *testing.T) {
	healthy := newApp(t, nil)
	require.Equal(t, http.StatusOK, healthy.do(t, http.MethodGet, "/health/live", "", "", nil).Code)
	require.Equal(t, http.StatusOK, healthy.do(t, http.MethodGet, "/health/ready", "", "", nil).Code)

	degraded := newApp(t, errors.New("connection refused"))
	require.Equal(t, http.StatusServiceUnavailable, degraded.do(t, http.MethodGet, "/health/ready", "", "", nil).Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	a := newApp(t, nil)
	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/api/v1/checkout"},
		{http.MethodPost, "/api/v1/payments/retry"},
		{http.MethodGet, "/api/v1/orders/" + uuid.NewString() + "/payment"},
	} {
		resp := a.do(t, tc.method, tc.path, "", "{}", nil)
		require.Equal(t, http.StatusUnauthorized, resp.Code, tc.path)
	}
}

func TestCustomerAPIPreflightAllowsStorefrontOrigin(t *testing.T) {
	a := newApp(t, nil)

	preflight := func(origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/checkout", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		req.Header.Set("Access-Control-Request-Headers", "Authorization, Idempotency-Key")
		rec := httptest.NewRecorder()
		a.handler.ServeHTTP(rec, req)
		return rec
	}

	allowed := preflight("https://shop.dukapay.co.tz")
	require.Equal(t, "https://shop.dukapay.co.tz", allowed.Header().Get("Access-Control-Allow-Origin"))
	require.NotEqual(t, http.StatusUnauthorized, allowed.Code, "preflight must not hit auth")

	require.Empty(t, preflight("https://evil.example").Header().Get("Access-Control-Allow-Origin"))
}

func TestCheckoutToConfirmedOverHTTP(t *testing.T) {
	a := newApp(t, nil)
	ctx := context.Background()
	userID := uuid.New()
	token := a.token(t, userID)

	product := &models.Product{VendorID: uuid.New(), Name: "Kanga", PriceTZS: decimal.NewFromInt(9000), Active: true}
	require.NoError(t, a.products.Create(ctx, product))
	_, err := a.carts.AddItem(ctx, userID, product.ID, 2)
	require.NoError(t, err)

	body := `{"shipping_address":{"phone":"0712345678","region":"Arusha","street":"Sokoine Rd"},"payment_provider":"mpesa"}`
	resp := a.do(t, http.MethodPost, "/api/v1/checkout", token, body, map[string]string{"Idempotency-Key": "router-key"})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	summary := data[payments.Summary](t, resp)
	require.NotNil(t, summary.PaymentID)
	require.Equal(t, "initiated", summary.Status)

	replay := a.do(t, http.MethodPost, "/api/v1/checkout", token, body, map[string]string{"Idempotency-Key": "router-key"})
	require.Equal(t, http.StatusOK, replay.Code)
	replayed := data[payments.Summary](t, replay)
	require.True(t, replayed.Idempotent)
	require.Equal(t, summary.OrderID, replayed.OrderID)

	callback := `{"utilityref":"` + summary.PaymentID.String() + `","transactionstatus":"success","amount":"18000","operator":"Mpesa"}`
	unsigned := a.do(t, http.MethodPost, "/api/v1/webhooks/azampay", "", callback, map[string]string{"X-Azampay-Signature": "sha256=00"})
	require.Equal(t, http.StatusUnauthorized, unsigned.Code)

	statusPath := "/api/v1/orders/" + summary.OrderID.String() + "/payment"
	pending := data[payments.PaymentView](t, a.do(t, http.MethodGet, statusPath, token, "", nil))
	require.Equal(t, enums.OrderStatusPending, pending.OrderStatus)

	signature := webhooks.Sign([]byte(callback), callbackSecret)
	signed := a.do(t, http.MethodPost, "/api/v1/webhooks/azampay", "", callback, map[string]string{"X-Azampay-Signature": signature})
	require.Equal(t, http.StatusOK, signed.Code, signed.Body.String())

	confirmed := data[payments.PaymentView](t, a.do(t, http.MethodGet, statusPath, token, "", nil))
	require.Equal(t, enums.OrderStatusConfirmed, confirmed.OrderStatus)
	require.NotNil(t, confirmed.Attempt)
	require.Equal(t, enums.PaymentStatusCompleted, confirmed.Attempt.Status)

	retry := a.do(t, http.MethodPost, "/api/v1/payments/retry", token, `{"order_id":"`+summary.OrderID.String()+`"}`, nil)
	require.Equal(t, http.StatusBadRequest, retry.Code)
	require.Contains(t, retry.Body.String(), "ORDER_NOT_PENDING")

	other := a.do(t, http.MethodGet, statusPath, a.token(t, uuid.New()), "", nil)
	require.Equal(t, http.StatusNotFound, other.Code)

	metricsResp := a.do(t, http.MethodGet, "/metrics", "", "", nil)
	require.Equal(t, http.StatusOK, metricsResp.Code)
	require.Contains(t, metricsResp.Body.String(), "dukapay_")
}
