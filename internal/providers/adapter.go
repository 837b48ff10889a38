// Package providers defines the contract every mobile-money network adapter
// implements and the shared plumbing (token cache, routing, HTTP transport)
// the payment orchestrator drives them through.
package providers

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/dukapay-backend/pkg/enums"
)

// ErrAuthRefused marks credentials the provider explicitly rejected, as opposed
// to a network failure while fetching a token.
var ErrAuthRefused = errors.New("provider refused credentials")

// Token is a bearer credential with its expiry.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// ValidAt reports whether the token can still be used at now, keeping skew in reserve.
func (t Token) ValidAt(now time.Time, skew time.Duration) bool {
	if t.Value == "" {
		return false
	}
	if t.ExpiresAt.IsZero() {
		return true
	}
	return now.Add(skew).Before(t.ExpiresAt)
}

// PaymentRequest is the push-to-phone request handed to an adapter.
type PaymentRequest struct {
	Network     enums.PaymentProvider
	Phone       string
	Amount      decimal.Decimal
	Reference   string
	Description string
}

// Adapter talks to one payment aggregator.
type Adapter interface {
	Name() string
	Authenticate(ctx context.Context) (Token, error)
	RequestPayment(ctx context.Context, token Token, req PaymentRequest) Result
}

// TokenInvalidator is implemented by adapters that cache tokens and can drop
// one the provider stopped honoring.
type TokenInvalidator interface {
	InvalidateToken(token Token)
}
