package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/dukapay-backend/api/controllers"
	webhookcontrollers "github.com/angelmondragon/dukapay-backend/api/controllers/webhooks"
	"github.com/angelmondragon/dukapay-backend/api/middleware"
	"github.com/angelmondragon/dukapay-backend/internal/webhooks"
	"github.com/angelmondragon/dukapay-backend/pkg/config"
	"github.com/angelmondragon/dukapay-backend/pkg/db"
	"github.com/angelmondragon/dukapay-backend/pkg/logger"
	"github.com/angelmondragon/dukapay-backend/pkg/metrics"
	"github.com/angelmondragon/dukapay-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisP redis.Pinger,
	metricsHandler http.Handler,
	paymentMetrics *metrics.PaymentMetrics,
	checkoutService controllers.CheckoutService,
	retryService controllers.RetryService,
	statusReader controllers.PaymentStatusReader,
	azampayWebhookService webhookcontrollers.AzamPayWebhookService,
	webhookGuard *webhooks.IdempotencyGuard,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"database": dbP,
			"redis":    redisP,
		}))
	})
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	var guard webhookcontrollers.DeliveryGuard
	if webhookGuard != nil {
		guard = webhookGuard
	}
	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/azampay", webhookcontrollers.AzamPayWebhook(
			azampayWebhookService,
			webhookcontrollers.AzamPaySignature{Header: cfg.Payments.SignatureHeader, Secret: cfg.Payments.CallbackSecret},
			guard,
			paymentMetrics,
			logg,
		))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.CORS(cfg.CORS), middleware.Auth(cfg.JWT, logg))

		r.Post("/checkout", controllers.Checkout(checkoutService, logg))
		r.Post("/payments/retry", controllers.RetryPayment(retryService, logg))
		r.Get("/orders/{orderId}/payment", controllers.PaymentStatus(statusReader, logg))
	})

	return r
}
