package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/dukapay-backend/api/routes"
	"github.com/angelmondragon/dukapay-backend/internal/cart"
	"github.com/angelmondragon/dukapay-backend/internal/checkout"
	"github.com/angelmondragon/dukapay-backend/internal/orders"
	"github.com/angelmondragon/dukapay-backend/internal/payments"
	"github.com/angelmondragon/dukapay-backend/internal/products"
	"github.com/angelmondragon/dukapay-backend/internal/profiles"
	"github.com/angelmondragon/dukapay-backend/internal/providers"
	"github.com/angelmondragon/dukapay-backend/internal/providers/azampay"
	"github.com/angelmondragon/dukapay-backend/internal/webhooks"
	azampaywebhook "github.com/angelmondragon/dukapay-backend/internal/webhooks/azampay"
	"github.com/angelmondragon/dukapay-backend/pkg/config"
	"github.com/angelmondragon/dukapay-backend/pkg/db"
	"github.com/angelmondragon/dukapay-backend/pkg/logger"
	"github.com/angelmondragon/dukapay-backend/pkg/metrics"
	"github.com/angelmondragon/dukapay-backend/pkg/migrate"
	"github.com/angelmondragon/dukapay-backend/pkg/outbox"
	"github.com/angelmondragon/dukapay-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	promRegistry := metrics.NewProcessRegistry()
	paymentMetrics := metrics.NewPaymentMetrics(promRegistry)

	providerRegistry, err := buildProviderRegistry(cfg, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to build provider registry", err)
		os.Exit(1)
	}

	conn := dbClient.DB()
	ordersRepo := orders.NewRepository(conn)
	carts := cart.NewRepository(conn)
	productsRepo := products.NewRepository(conn)
	profilesRepo := profiles.NewRepository(conn)
	attempts := payments.NewAttemptRepository(conn)
	emitter := outbox.NewService(outbox.NewRepository(conn), logg)

	statusService, err := payments.NewService(dbClient, attempts, ordersRepo, emitter, logg, paymentMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment status service", err)
		os.Exit(1)
	}
	orchestrator, err := payments.NewOrchestrator(dbClient, attempts, emitter, providerRegistry, statusService, logg, paymentMetrics, cfg.Payments.ProviderTimeout)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment orchestrator", err)
		os.Exit(1)
	}
	materializer, err := checkout.NewMaterializer(dbClient, ordersRepo, carts, productsRepo, emitter, checkout.PolicyFromConfig(cfg.Payments))
	if err != nil {
		logg.Error(context.Background(), "failed to create cart materializer", err)
		os.Exit(1)
	}
	checkoutService, err := checkout.NewService(checkout.NewGate(ordersRepo), materializer, profilesRepo, orchestrator, carts, logg, paymentMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}
	retryService, err := payments.NewRetryService(ordersRepo, attempts, profilesRepo, orchestrator, logg, paymentMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create retry service", err)
		os.Exit(1)
	}
	webhookService, err := azampaywebhook.NewService(attempts, statusService, logg, paymentMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create azampay webhook service", err)
		os.Exit(1)
	}
	webhookGuard, err := webhooks.NewIdempotencyGuard(redisClient, cfg.Payments.WebhookDedupeTTL, azampay.Name)
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook guard", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}),
			paymentMetrics,
			checkoutService,
			retryService,
			payments.NewStatusReader(ordersRepo, attempts, cfg.Payments.PollingTimeout),
			webhookService,
			webhookGuard,
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-sigCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
		logg.Info(ctx, "api server shut down gracefully")
	}
}

// buildProviderRegistry binds every AzamPay network to the AzamPay adapter.
// Without credentials the networks stay unregistered and attempts fail with
// the not-implemented result.
func buildProviderRegistry(cfg *config.Config, logg *logger.Logger) (*providers.Registry, error) {
	registry := providers.NewRegistry()
	if cfg.AzamPay.ClientID == "" {
		logg.Warn(context.Background(), "azampay credentials not configured; payment requests will be rejected")
		return registry, nil
	}
	client, err := azampay.NewClient(cfg.AzamPay, azampay.WithHTTPClient(providers.NewHTTPClient(cfg.Payments.ProviderTimeout)))
	if err != nil {
		return nil, err
	}
	if err := registry.Register(client, azampay.Networks...); err != nil {
		return nil, err
	}
	logg.Info(logg.WithField(context.Background(), "azampay_env", cfg.AzamPay.Environment()), "azampay adapter registered")
	return registry, nil
}
