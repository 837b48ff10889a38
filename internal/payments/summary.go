package payments

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/dukapay-backend/pkg/db/models"
)

// Summary is what checkout and retry return once an order exists. Status is the
// attempt status, or the order status for idempotent replays.
type Summary struct {
	OrderID       uuid.UUID  `json:"order_id"`
	OrderNumber   string     `json:"order_number"`
	PaymentID     *uuid.UUID `json:"payment_id,omitempty"`
	Status        string     `json:"status,omitempty"`
	Idempotent    bool       `json:"idempotent,omitempty"`
	StkPushFailed bool       `json:"stk_push_failed,omitempty"`
	Error         string     `json:"error,omitempty"`
	Message       string     `json:"message,omitempty"`
}

// Summarize builds the response for a started attempt.
func Summarize(order *models.Order, start *StartResult) *Summary {
	id := start.Attempt.ID
	summary := &Summary{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		PaymentID:   &id,
		Status:      string(start.Attempt.Status),
	}
	switch {
	case start.Result.IsFailure():
		summary.StkPushFailed = true
		summary.Error = start.Result.Message()
	case !start.Result.IsAccepted():
		summary.Message = "Payment request is pending confirmation from the provider"
	}
	return summary
}

// Replay builds the response for an order returned by the idempotency gate.
func Replay(order *models.Order) *Summary {
	return &Summary{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Status:      string(order.Status),
		Idempotent:  true,
	}
}

// Outcome labels the summary for metrics.
func (s *Summary) Outcome() string {
	switch {
	case s.Idempotent:
		return "replay"
	case s.StkPushFailed:
		return "stk_push_failed"
	case s.Message != "":
		return "ambiguous"
	default:
		return "accepted"
	}
}
