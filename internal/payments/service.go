package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/dukapay-backend/internal/orders"
	"github.com/angelmondragon/dukapay-backend/pkg/db/models"
	"github.com/angelmondragon/dukapay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/dukapay-backend/pkg/errors"
	"github.com/angelmondragon/dukapay-backend/pkg/logger"
	"github.com/angelmondragon/dukapay-backend/pkg/outbox"
	"github.com/angelmondragon/dukapay-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type metricsRecorder interface {
	IncCheckout(flow, outcome string)
	ObserveProvider(provider, result string, took time.Duration)
	IncWebhook(provider, outcome string)
	IncTransition(event, outcome string)
}

// Update is a status report for one attempt, from a verified callback or from
// the provider's synchronous answer.
type Update struct {
	AttemptID         uuid.UUID
	Event             Event
	ProviderReference string
	FailureCode       string
	FailureMessage    string
	Source            string
}

// Applied reports what Apply did.
type Applied struct {
	Attempt        *models.PaymentAttempt
	Outcome        Outcome
	OrderConfirmed bool
}

// Service persists state machine decisions with guarded updates.
type Service struct {
	tx       txRunner
	attempts *AttemptRepository
	orders   orders.Repository
	outbox   outbox.Emitter
	logg     *logger.Logger
	metrics  metricsRecorder
	now      func() time.Time
}

// NewService wires the attempt status service.
func NewService(tx txRunner, attempts *AttemptRepository, ordersRepo orders.Repository, emitter outbox.Emitter, logg *logger.Logger, metrics metricsRecorder) (*Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if attempts == nil {
		return nil, fmt.Errorf("attempt repository required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{
		tx:       tx,
		attempts: attempts,
		orders:   ordersRepo,
		outbox:   emitter,
		logg:     logg,
		metrics:  metrics,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// Apply runs the event through Transition and persists the result. The first
// completed attempt of an order confirms it; later sibling completions only
// complete their own attempt.
func (s *Service) Apply(ctx context.Context, upd Update) (*Applied, error) {
	ctx = s.logg.WithPaymentID(ctx, upd.AttemptID.String())
	ctx = s.logg.WithFields(ctx, map[string]any{"event": string(upd.Event), "source": upd.Source})

	var applied Applied
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		attempts := s.attempts.WithTx(tx)
		attempt, err := s.lockAttempt(ctx, tx, upd.AttemptID)
		if err != nil {
			return err
		}

		if upd.ProviderReference != "" && attempt.ProviderReference == nil {
			if _, err := attempts.SetProviderReference(ctx, attempt.ID, upd.ProviderReference); err != nil {
				return err
			}
			ref := upd.ProviderReference
			attempt.ProviderReference = &ref
		}

		next, outcome := Transition(attempt.Status, upd.Event)
		applied.Attempt = attempt
		applied.Outcome = outcome
		if outcome != OutcomeApplied {
			return nil
		}

		now := s.now()
		var moved bool
		switch next {
		case enums.PaymentStatusCompleted:
			moved, err = attempts.MarkCompleted(ctx, attempt.ID, now)
		case enums.PaymentStatusFailed:
			moved, err = attempts.MarkFailed(ctx, attempt.ID, upd.FailureCode, upd.FailureMessage, now)
		}
		if err != nil {
			return err
		}
		if !moved {
			current, err := attempts.FindByID(ctx, attempt.ID)
			if err != nil {
				return err
			}
			applied.Attempt = current
			_, applied.Outcome = Transition(current.Status, upd.Event)
			return nil
		}

		attempt.Status = next
		if next == enums.PaymentStatusCompleted {
			attempt.CompletedAt = &now
		} else {
			attempt.FailedAt = &now
			attempt.FailureCode = optional(upd.FailureCode)
			attempt.FailureMessage = optional(upd.FailureMessage)
		}

		if err := s.emitAttemptEvent(ctx, tx, attempt); err != nil {
			return err
		}
		if next == enums.PaymentStatusCompleted {
			confirmed, err := s.confirmOrder(ctx, tx, attempt, now)
			if err != nil {
				return err
			}
			applied.OrderConfirmed = confirmed
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logOutcome(ctx, upd, &applied)
	if s.metrics != nil {
		s.metrics.IncTransition(string(upd.Event), string(applied.Outcome))
	}
	return &applied, nil
}

func (s *Service) lockAttempt(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.PaymentAttempt, error) {
	var attempt models.PaymentAttempt
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&attempt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "payment attempt not found")
	}
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (s *Service) confirmOrder(ctx context.Context, tx *gorm.DB, attempt *models.PaymentAttempt, now time.Time) (bool, error) {
	ordersRepo := s.orders.WithTx(tx)
	moved, err := ordersRepo.MarkConfirmed(ctx, attempt.OrderID, now)
	if err != nil {
		return false, err
	}
	order, err := ordersRepo.FindByID(ctx, attempt.OrderID)
	if err != nil {
		return false, err
	}
	ctx = s.logg.WithOrderID(ctx, order.ID.String())
	if !moved {
		if order.Status == enums.OrderStatusCancelled {
			s.logg.Error(ctx, "payment completed for cancelled order, manual reconciliation required", nil)
		} else {
			s.logg.Info(ctx, "order already confirmed by an earlier attempt")
		}
		return false, nil
	}

	return true, s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderConfirmed,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         outbox.SystemActor("payments"),
		Data: payloads.OrderConfirmedEvent{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			UserID:      order.UserID,
			PaymentID:   attempt.ID,
			ConfirmedAt: now,
		},
	})
}

func (s *Service) emitAttemptEvent(ctx context.Context, tx *gorm.DB, attempt *models.PaymentAttempt) error {
	eventType := enums.EventPaymentCompleted
	if attempt.Status == enums.PaymentStatusFailed {
		eventType = enums.EventPaymentFailed
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregatePaymentAttempt,
		AggregateID:   attempt.ID,
		Actor:         outbox.SystemActor("payments"),
		Data:          attemptPayload(attempt),
	})
}

func (s *Service) logOutcome(ctx context.Context, upd Update, applied *Applied) {
	status := applied.Attempt.Status
	ctx = s.logg.WithFields(ctx, map[string]any{"outcome": string(applied.Outcome), "status": string(status)})
	switch {
	case applied.Outcome == OutcomeRejected && upd.Event == EventCompleted:
		s.logg.Error(ctx, "completion reported for failed attempt, manual reconciliation required", nil)
	case applied.Outcome == OutcomeRejected:
		s.logg.Warn(ctx, "ignored failure for completed attempt")
	case applied.Outcome == OutcomeNoop:
		s.logg.Info(ctx, "duplicate payment status ignored")
	default:
		s.logg.Info(ctx, "payment attempt status updated")
	}
}

func attemptPayload(attempt *models.PaymentAttempt) payloads.PaymentStatusEvent {
	return payloads.PaymentStatusEvent{
		PaymentID:         attempt.ID,
		OrderID:           attempt.OrderID,
		Provider:          attempt.Provider,
		Status:            attempt.Status,
		AmountTZS:         attempt.AmountTZS,
		ProviderReference: attempt.ProviderReference,
		FailureCode:       attempt.FailureCode,
		FailureMessage:    attempt.FailureMessage,
	}
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
