package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/angelmondragon/dukapay-backend/pkg/config"
	"github.com/angelmondragon/dukapay-backend/pkg/db"
	"github.com/angelmondragon/dukapay-backend/pkg/logger"
	"github.com/angelmondragon/dukapay-backend/pkg/metrics"
	"github.com/angelmondragon/dukapay-backend/pkg/migrate"
	"github.com/angelmondragon/dukapay-backend/pkg/outbox"
	"github.com/angelmondragon/dukapay-backend/pkg/outbox/registry"
	"github.com/angelmondragon/dukapay-backend/pkg/pubsub"
)

func main() {
	dlqList := flag.Bool("dlq-list", false, "print the most recent DLQ entries and exit")
	dlqReplay := flag.String("dlq-replay", "", "requeue the DLQ entry for this outbox event id and exit")
	dlqEvent := flag.String("dlq-event", "", "with -dlq-list, only show this event type")
	dlqAggregate := flag.String("dlq-aggregate", "", "with -dlq-list, only show this aggregate type")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "outbox-publisher"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "outbox-publisher"

	logg = logger.New(logger.Options{
		ServiceName: "outbox-publisher",
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

	dlqRepo := outbox.NewDLQRepository(dbClient.DB())
	if *dlqList || *dlqReplay != "" {
		filter, err := parseDLQFilter(*dlqEvent, *dlqAggregate)
		if err != nil {
			logg.Error(context.Background(), "invalid dlq filter", err)
			os.Exit(2)
		}
		if err := runDLQCommand(context.Background(), dlqRepo, *dlqList, *dlqReplay, filter); err != nil {
			logg.Error(context.Background(), "dlq command failed", err)
			os.Exit(1)
		}
		return
	}

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub client", err)
		}
	}()

	reg := metrics.NewProcessRegistry()

	repo := outbox.NewRepository(dbClient.DB())
	eventRegistry, err := registry.NewEventRegistry(cfg.PubSub)
	if err != nil {
		logg.Error(context.Background(), "failed to build event registry", err)
		os.Exit(1)
	}
	service, err := NewService(ServiceParams{
		Config:        cfg,
		Logger:        logg,
		DB:            dbClient,
		PubSub:        pubsubClient,
		Repository:    repo,
		Registry:      eventRegistry,
		DLQRepository: dlqRepo,
		Backlog:       repo,
		Metrics:       metrics.NewOutboxMetrics(reg),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox publisher", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": "outbox-publisher",
		"topics":      eventRegistry.Topics(),
	})
	logg.Info(ctx, "starting outbox publisher")

	metricsServer := metrics.NewServer(":"+cfg.App.Port, reg)
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "metrics server stopped", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "outbox publisher stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "outbox publisher shutting down gracefully")
}

func parseDLQFilter(eventType, aggregateType string) (outbox.DLQFilter, error) {
	var filter outbox.DLQFilter
	if eventType != "" {
		parsed, err := enums.ParseOutboxEventType(eventType)
		if err != nil {
			return filter, err
		}
		filter.EventType = parsed
	}
	if aggregateType != "" {
		parsed, err := enums.ParseOutboxAggregateType(aggregateType)
		if err != nil {
			return filter, err
		}
		filter.AggregateType = parsed
	}
	return filter, nil
}

func runDLQCommand(ctx context.Context, repo *outbox.DLQRepository, list bool, replay string, filter outbox.DLQFilter) error {
	if replay != "" {
		eventID, err := uuid.Parse(replay)
		if err != nil {
			return fmt.Errorf("invalid -dlq-replay id: %w", err)
		}
		if err := repo.Replay(ctx, eventID); err != nil {
			return err
		}
		fmt.Println("requeued", eventID)
	}
	if !list {
		return nil
	}
	rows, err := repo.ListRecent(ctx, filter)
	if err != nil {
		return err
	}
	for _, row := range rows {
		msg := ""
		if row.ErrorMessage != nil {
			msg = *row.ErrorMessage
		}
		fmt.Printf("%s\t%s\t%s\t%s\t%s\n", row.FailedAt.Format(time.RFC3339), row.EventID, row.EventType, row.ErrorReason, msg)
	}
	return nil
}
