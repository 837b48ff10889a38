package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/dukapay-backend/internal/orders"
	"github.com/angelmondragon/dukapay-backend/pkg/db/models"
	"github.com/angelmondragon/dukapay-backend/pkg/enums"
	"github.com/angelmondragon/dukapay-backend/pkg/logger"
	"github.com/angelmondragon/dukapay-backend/pkg/outbox"
	"github.com/angelmondragon/dukapay-backend/pkg/outbox/payloads"
)

const (
	defaultOrderTTL  = 72 * time.Hour
	defaultBatchSize = 200
	expiryReason     = "payment_window_elapsed"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// OrderExpiryJobParams configure the unpaid-order expiry job.
type OrderExpiryJobParams struct {
	Logger    *logger.Logger
	DB        txRunner
	Orders    orders.Repository
	Outbox    outboxEmitter
	TTL       time.Duration
	BatchSize int
}

// NewOrderExpiryJob cancels pending orders older than the TTL that have no
// attempt still initiated inside the window.
func NewOrderExpiryJob(params OrderExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultOrderTTL
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	return &orderExpiryJob{
		logg:   params.Logger,
		db:     params.DB,
		orders: params.Orders,
		outbox: params.Outbox,
		ttl:    ttl,
		batch:  batch,
		now:    time.Now,
	}, nil
}

type orderExpiryJob struct {
	logg   *logger.Logger
	db     txRunner
	orders orders.Repository
	outbox outboxEmitter
	ttl    time.Duration
	batch  int
	now    func() time.Time
}

func (j *orderExpiryJob) Name() string { return "order-expiry" }

func (j *orderExpiryJob) Run(ctx context.Context) (int, error) {
	cutoff := j.now().UTC().Add(-j.ttl)
	expired, err := j.orders.FindExpiredPending(ctx, cutoff, j.batch)
	if err != nil {
		return 0, fmt.Errorf("query expired orders: %w", err)
	}

	var errs error
	cancelled := 0
	for _, order := range expired {
		moved, err := j.cancel(ctx, order)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("cancel order %s: %w", order.ID, err))
			continue
		}
		if moved {
			cancelled++
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":     cutoff,
		"candidates": len(expired),
		"cancelled":  cancelled,
	})
	j.logg.Info(logCtx, "order expiry loop complete")
	return cancelled, errs
}

// cancel flips one order with a guarded update. An order confirmed since the
// query is left alone.
func (j *orderExpiryJob) cancel(ctx context.Context, order models.Order) (bool, error) {
	var moved bool
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		now := j.now().UTC()
		ok, err := j.orders.WithTx(tx).MarkCancelled(ctx, order.ID, now)
		if err != nil || !ok {
			return err
		}
		moved = true
		return j.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCancelled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         outbox.SystemActor("cron"),
			OccurredAt:    now,
			Data: payloads.OrderCancelledEvent{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				UserID:      order.UserID,
				CancelledAt: now,
				Reason:      expiryReason,
			},
		})
	})
	if err != nil {
		return false, err
	}
	if moved {
		j.logg.Info(j.logg.WithOrderID(ctx, order.ID.String()), "order cancelled after payment window")
	}
	return moved, nil
}
