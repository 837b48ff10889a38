package payments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/dukapay-backend/internal/providers"
	"github.com/angelmondragon/dukapay-backend/pkg/db/models"
	"github.com/angelmondragon/dukapay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/dukapay-backend/pkg/errors"
	"github.com/angelmondragon/dukapay-backend/pkg/logger"
	"github.com/angelmondragon/dukapay-backend/pkg/outbox"
	"github.com/angelmondragon/dukapay-backend/pkg/outbox/payloads"
)

const defaultProviderTimeout = 30 * time.Second

// StartInput describes the attempt to create for an order.
type StartInput struct {
	Order          *models.Order
	Provider       enums.PaymentProvider
	Phone          string
	IdempotencyKey string
	Actor          *outbox.ActorRef
	// PreviousAttemptID is set by retries and emits payment_retried.
	PreviousAttemptID *uuid.UUID
	Retry             bool
}

// StartResult carries the persisted attempt and the provider's answer.
type StartResult struct {
	Attempt *models.PaymentAttempt
	Result  providers.Result
}

// Orchestrator creates payment attempts and drives the provider push.
type Orchestrator struct {
	tx       txRunner
	attempts *AttemptRepository
	outbox   outbox.Emitter
	registry *providers.Registry
	status   *Service
	logg     *logger.Logger
	metrics  metricsRecorder
	timeout  time.Duration
}

// NewOrchestrator wires the orchestrator.
func NewOrchestrator(tx txRunner, attempts *AttemptRepository, emitter outbox.Emitter, registry *providers.Registry, status *Service, logg *logger.Logger, metrics metricsRecorder, timeout time.Duration) (*Orchestrator, error) {
	if tx == nil || attempts == nil || emitter == nil || status == nil {
		return nil, fmt.Errorf("orchestrator dependencies required")
	}
	if registry == nil {
		registry = providers.NewRegistry()
	}
	if logg == nil {
		logg = logger.Nop()
	}
	if timeout <= 0 {
		timeout = defaultProviderTimeout
	}
	return &Orchestrator{
		tx:       tx,
		attempts: attempts,
		outbox:   emitter,
		registry: registry,
		status:   status,
		logg:     logg,
		metrics:  metrics,
		timeout:  timeout,
	}, nil
}

// Start inserts an initiated attempt for the order's total and pushes it to the
// provider. An error means no attempt exists; provider failures are reported in
// the result, never as an error.
func (o *Orchestrator) Start(ctx context.Context, in StartInput) (*StartResult, error) {
	attempt, err := o.Create(ctx, in)
	if err != nil {
		return nil, err
	}
	result := o.Push(ctx, attempt, in.Order)
	return &StartResult{Attempt: attempt, Result: result}, nil
}

// Create persists the attempt and its outbox events in one transaction.
func (o *Orchestrator) Create(ctx context.Context, in StartInput) (*models.PaymentAttempt, error) {
	if in.Order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order required")
	}
	details := map[string]any{"order_id": in.Order.ID, "order_number": in.Order.OrderNumber}

	attempt := &models.PaymentAttempt{
		OrderID:        in.Order.ID,
		Provider:       in.Provider,
		Status:         enums.PaymentStatusInitiated,
		AmountTZS:      in.Order.TotalTZS,
		PayerPhone:     in.Phone,
		IdempotencyKey: in.IdempotencyKey,
	}
	err := o.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := o.attempts.WithTx(tx).Create(ctx, attempt); err != nil {
			return err
		}
		if err := o.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentInitiated,
			AggregateType: enums.AggregatePaymentAttempt,
			AggregateID:   attempt.ID,
			Actor:         in.Actor,
			Data:          attemptPayload(attempt),
		}); err != nil {
			return err
		}
		if !in.Retry {
			return nil
		}
		return o.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentRetried,
			AggregateType: enums.AggregateOrder,
			AggregateID:   in.Order.ID,
			Actor:         in.Actor,
			Data: payloads.PaymentRetriedEvent{
				OrderID:           in.Order.ID,
				PaymentID:         attempt.ID,
				PreviousPaymentID: in.PreviousAttemptID,
				Provider:          attempt.Provider,
			},
		})
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePaymentCreateFailed, err, "payment could not be started").WithDetails(details)
	}
	return attempt, nil
}

// Push sends the attempt to its provider under the configured timeout, records
// the correlation id and fails the attempt on explicit rejection. Ambiguous
// results leave the attempt initiated.
func (o *Orchestrator) Push(ctx context.Context, attempt *models.PaymentAttempt, order *models.Order) providers.Result {
	ctx = o.logg.WithPaymentID(o.logg.WithOrderID(ctx, attempt.OrderID.String()), attempt.ID.String())
	adapter := o.registry.Resolve(attempt.Provider)

	pushCtx, cancel := context.WithTimeout(ctx, o.timeout)
	started := time.Now()
	result := providers.Charge(pushCtx, adapter, providers.PaymentRequest{
		Network:     attempt.Provider,
		Phone:       attempt.PayerPhone,
		Amount:      attempt.AmountTZS,
		Reference:   attempt.ID.String(),
		Description: description(order),
	})
	cancel()
	if o.metrics != nil {
		o.metrics.ObserveProvider(string(attempt.Provider), string(result.Kind), time.Since(started))
	}

	ctx = o.logg.WithFields(ctx, map[string]any{
		"provider":       string(attempt.Provider),
		"adapter":        adapter.Name(),
		"result":         string(result.Kind),
		"correlation_id": result.CorrelationID,
		"error_code":     result.ErrorCode,
	})

	// The request context may already be spent; bookkeeping must still land.
	persistCtx := context.WithoutCancel(ctx)

	if result.IsFailure() {
		if _, err := o.status.Apply(persistCtx, Update{
			AttemptID:         attempt.ID,
			Event:             EventFailed,
			ProviderReference: result.CorrelationID,
			FailureCode:       result.ErrorCode,
			FailureMessage:    result.ErrorMessage,
			Source:            "provider",
		}); err != nil {
			o.logg.Error(ctx, "failed to record provider rejection", err)
		} else {
			attempt.Status = enums.PaymentStatusFailed
			attempt.FailureCode = optional(result.ErrorCode)
			attempt.FailureMessage = optional(result.ErrorMessage)
		}
		if result.CorrelationID != "" {
			ref := result.CorrelationID
			attempt.ProviderReference = &ref
		}
		o.logg.Warn(ctx, "payment push rejected")
		return result
	}

	if result.CorrelationID != "" {
		if _, err := o.attempts.SetProviderReference(persistCtx, attempt.ID, result.CorrelationID); err != nil {
			o.logg.Error(ctx, "failed to store provider reference", err)
		} else {
			ref := result.CorrelationID
			attempt.ProviderReference = &ref
		}
	}

	if result.IsAccepted() {
		o.logg.Info(ctx, "payment push accepted")
	} else {
		o.logg.Warn(ctx, "payment push outcome ambiguous, awaiting callback")
	}
	return result
}

func description(order *models.Order) string {
	if order == nil {
		return "DukaPay order"
	}
	return strings.TrimSpace("DukaPay order " + order.OrderNumber)
}
