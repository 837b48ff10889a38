package controllers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/angelmondragon/dukapay-backend/api/responses"
	"github.com/angelmondragon/dukapay-backend/api/validators"
	checkoutsvc "github.com/angelmondragon/dukapay-backend/internal/checkout"
	"github.com/angelmondragon/dukapay-backend/internal/payments"
	pkgerrors "github.com/angelmondragon/dukapay-backend/pkg/errors"
	"github.com/angelmondragon/dukapay-backend/pkg/logger"
)

const idempotencyKeyHeader = "Idempotency-Key"

// CheckoutService runs the checkout flow for one request.
type CheckoutService interface {
	Checkout(ctx context.Context, req checkoutsvc.Request) (*payments.Summary, error)
}

type checkoutRequest struct {
	ShippingAddress json.RawMessage `json:"shipping_address"`
	PaymentProvider string          `json:"payment_provider" validate:"omitempty,payment_provider"`
}

// Checkout turns the caller's cart into an order and requests the first payment.
func Checkout(svc CheckoutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		userID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		summary, err := svc.Checkout(r.Context(), checkoutsvc.Request{
			UserID:          userID,
			IdempotencyKey:  r.Header.Get(idempotencyKeyHeader),
			ShippingAddress: payload.ShippingAddress,
			PaymentProvider: payload.PaymentProvider,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, summary)
	}
}
