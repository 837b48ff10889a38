package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/dukapay-backend/pkg/enums"
)

// OrderCreatedEvent signals a cart was materialized into an order.
type OrderCreatedEvent struct {
	OrderID     uuid.UUID       `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	UserID      uuid.UUID       `json:"user_id"`
	LineCount   int             `json:"line_count"`
	SubtotalTZS decimal.Decimal `json:"subtotal_tzs"`
	ShippingTZS decimal.Decimal `json:"shipping_tzs"`
	TaxTZS      decimal.Decimal `json:"tax_tzs"`
	TotalTZS    decimal.Decimal `json:"total_tzs"`
}

// OrderConfirmedEvent is emitted once, when the first attempt completes.
type OrderConfirmedEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	UserID      uuid.UUID `json:"user_id"`
	PaymentID   uuid.UUID `json:"payment_id"`
	ConfirmedAt time.Time `json:"confirmed_at"`
}

// OrderCancelledEvent is emitted when an unpaid order expires.
type OrderCancelledEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	UserID      uuid.UUID `json:"user_id"`
	CancelledAt time.Time `json:"cancelled_at"`
	Reason      string    `json:"reason"`
}

// PaymentStatusEvent covers initiated, completed and failed attempt transitions.
type PaymentStatusEvent struct {
	PaymentID         uuid.UUID             `json:"payment_id"`
	OrderID           uuid.UUID             `json:"order_id"`
	Provider          enums.PaymentProvider `json:"provider"`
	Status            enums.PaymentStatus   `json:"status"`
	AmountTZS         decimal.Decimal       `json:"amount_tzs"`
	ProviderReference *string               `json:"provider_reference,omitempty"`
	FailureCode       *string               `json:"failure_code,omitempty"`
	FailureMessage    *string               `json:"failure_message,omitempty"`
}

// PaymentRetriedEvent records a new attempt created for a pending order.
type PaymentRetriedEvent struct {
	OrderID           uuid.UUID             `json:"order_id"`
	PaymentID         uuid.UUID             `json:"payment_id"`
	PreviousPaymentID *uuid.UUID            `json:"previous_payment_id,omitempty"`
	Provider          enums.PaymentProvider `json:"provider"`
}
