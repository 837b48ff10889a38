package payments

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/dukapay-backend/internal/orders"
	"github.com/angelmondragon/dukapay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/dukapay-backend/pkg/errors"
)

// AttemptView is the client-facing slice of an attempt.
type AttemptView struct {
	PaymentID   uuid.UUID             `json:"payment_id"`
	Status      enums.PaymentStatus   `json:"status"`
	Provider    enums.PaymentProvider `json:"provider"`
	FailureCode *string               `json:"failure_code,omitempty"`
	CreatedAt   time.Time             `json:"created_at"`
}

// PaymentView is what the client polls while waiting for the callback.
type PaymentView struct {
	OrderID     uuid.UUID         `json:"order_id"`
	OrderNumber string            `json:"order_number"`
	OrderStatus enums.OrderStatus `json:"order_status"`
	TotalTZS    decimal.Decimal   `json:"total_tzs"`
	Attempt     *AttemptView      `json:"attempt,omitempty"`
	TimedOut    bool              `json:"timed_out"`
	CanRetry    bool              `json:"can_retry"`
}

// StatusReader serves the polling endpoint. The timeout is advisory and never
// changes stored state.
type StatusReader struct {
	orders         orders.Repository
	attempts       *AttemptRepository
	pollingTimeout time.Duration
	now            func() time.Time
}

// NewStatusReader builds the polling view reader.
func NewStatusReader(ordersRepo orders.Repository, attempts *AttemptRepository, pollingTimeout time.Duration) *StatusReader {
	if pollingTimeout <= 0 {
		pollingTimeout = 5 * time.Minute
	}
	return &StatusReader{
		orders:         ordersRepo,
		attempts:       attempts,
		pollingTimeout: pollingTimeout,
		now:            time.Now,
	}
}

// View returns the order's latest attempt with the polling verdict.
func (r *StatusReader) View(ctx context.Context, userID, orderID uuid.UUID) (*PaymentView, error) {
	order, err := r.orders.FindForUser(ctx, orderID, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeOrderNotFound, "Order not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}

	view := &PaymentView{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		OrderStatus: order.Status,
		TotalTZS:    order.TotalTZS,
	}

	latest, err := r.attempts.FindLatestForOrder(ctx, order.ID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load latest attempt")
	}
	if latest != nil {
		view.Attempt = &AttemptView{
			PaymentID:   latest.ID,
			Status:      latest.Status,
			Provider:    latest.Provider,
			FailureCode: latest.FailureCode,
			CreatedAt:   latest.CreatedAt,
		}
		if latest.Status == enums.PaymentStatusInitiated {
			view.TimedOut = r.now().Sub(latest.CreatedAt) >= r.pollingTimeout
		}
	}

	if order.Status == enums.OrderStatusPending {
		view.CanRetry = latest == nil || latest.Status == enums.PaymentStatusFailed || view.TimedOut
	}
	return view, nil
}
