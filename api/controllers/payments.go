package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/dukapay-backend/api/responses"
	"github.com/angelmondragon/dukapay-backend/api/validators"
	"github.com/angelmondragon/dukapay-backend/internal/payments"
	pkgerrors "github.com/angelmondragon/dukapay-backend/pkg/errors"
	"github.com/angelmondragon/dukapay-backend/pkg/logger"
)

// RetryService starts a new attempt for a pending order.
type RetryService interface {
	Retry(ctx context.Context, in payments.RetryInput) (*payments.Summary, error)
}

// PaymentStatusReader serves the polling view.
type PaymentStatusReader interface {
	View(ctx context.Context, userID, orderID uuid.UUID) (*payments.PaymentView, error)
}

type retryRequest struct {
	OrderID         string `json:"order_id" validate:"required,uuid"`
	PaymentProvider string `json:"payment_provider" validate:"omitempty,payment_provider"`
}

// RetryPayment requests a fresh STK push for an order still awaiting payment.
func RetryPayment(svc RetryService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "retry service unavailable"))
			return
		}

		userID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload retryRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParseUUID(payload.OrderID, "order_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		summary, err := svc.Retry(r.Context(), payments.RetryInput{
			UserID:   userID,
			OrderID:  orderID,
			Provider: payload.PaymentProvider,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, summary)
	}
}

// PaymentStatus returns the latest attempt for an order owned by the caller.
func PaymentStatus(reader PaymentStatusReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if reader == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment status unavailable"))
			return
		}

		userID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParseUUID(chi.URLParam(r, "orderId"), "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := reader.View(r.Context(), userID, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, view)
	}
}
