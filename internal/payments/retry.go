package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/dukapay-backend/internal/orders"
	"github.com/angelmondragon/dukapay-backend/pkg/db/models"
	"github.com/angelmondragon/dukapay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/dukapay-backend/pkg/errors"
	"github.com/angelmondragon/dukapay-backend/pkg/logger"
	"github.com/angelmondragon/dukapay-backend/pkg/outbox"
)

type phoneLookup interface {
	FindPhone(ctx context.Context, userID uuid.UUID) (string, error)
}

// RetryInput names the order to pay again and optionally a different network.
type RetryInput struct {
	UserID   uuid.UUID
	OrderID  uuid.UUID
	Provider string
}

// RetryService creates a sibling attempt for a pending order. It never touches
// the order or its lines.
type RetryService struct {
	orders       orders.Repository
	attempts     *AttemptRepository
	profiles     phoneLookup
	orchestrator *Orchestrator
	logg         *logger.Logger
	metrics      metricsRecorder
}

// NewRetryService wires the retry flow.
func NewRetryService(ordersRepo orders.Repository, attempts *AttemptRepository, profiles phoneLookup, orchestrator *Orchestrator, logg *logger.Logger, metrics metricsRecorder) (*RetryService, error) {
	if ordersRepo == nil || attempts == nil || profiles == nil || orchestrator == nil {
		return nil, fmt.Errorf("retry dependencies required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &RetryService{
		orders:       ordersRepo,
		attempts:     attempts,
		profiles:     profiles,
		orchestrator: orchestrator,
		logg:         logg,
		metrics:      metrics,
	}, nil
}

// Retry validates the order and starts exactly one new attempt.
func (s *RetryService) Retry(ctx context.Context, in RetryInput) (*Summary, error) {
	ctx = s.logg.WithOrderID(ctx, in.OrderID.String())

	order, err := s.orders.FindForUser(ctx, in.OrderID, in.UserID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeOrderNotFound, "Order not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	if order.Status != enums.OrderStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeOrderNotPending, fmt.Sprintf("Order is %s and cannot be paid", order.Status))
	}
	if !order.TotalTZS.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidAmount, "Order total must be greater than zero")
	}

	profilePhone, err := s.profiles.FindPhone(ctx, in.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load profile")
	}
	phone, err := ResolvePayerPhone(profilePhone, order.ShippingAddress.Phone)
	if err != nil {
		return nil, err
	}

	var previousID *uuid.UUID
	latest, err := s.attempts.FindLatestForOrder(ctx, order.ID)
	switch {
	case err == nil:
		id := latest.ID
		previousID = &id
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load latest attempt")
	}

	provider, err := s.pickProvider(in.Provider, latest)
	if err != nil {
		return nil, err
	}

	start, err := s.orchestrator.Start(ctx, StartInput{
		Order:             order,
		Provider:          provider,
		Phone:             phone,
		IdempotencyKey:    uuid.NewString(),
		Actor:             outbox.UserActor(in.UserID),
		PreviousAttemptID: previousID,
		Retry:             true,
	})
	if err != nil {
		s.record("error")
		return nil, err
	}

	summary := Summarize(order, start)
	s.record(summary.Outcome())
	return summary, nil
}

// pickProvider prefers the requested network, then the latest attempt's.
func (s *RetryService) pickProvider(requested string, latest *models.PaymentAttempt) (enums.PaymentProvider, error) {
	if strings.TrimSpace(requested) == "" && latest != nil {
		return latest.Provider, nil
	}
	provider, err := enums.ParsePaymentProvider(requested)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "Unsupported payment provider")
	}
	return provider, nil
}

func (s *RetryService) record(outcome string) {
	if s.metrics != nil {
		s.metrics.IncCheckout("retry", outcome)
	}
}
