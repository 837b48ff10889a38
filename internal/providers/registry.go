package providers

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/dukapay-backend/pkg/enums"
)

// Registry routes a customer-facing network to the adapter serving it.
type Registry struct {
	adapters map[enums.PaymentProvider]Adapter
}

// NewRegistry builds an empty registry. Networks without an adapter resolve to
// the not-implemented adapter.
func NewRegistry() *Registry {
	return &Registry{adapters: map[enums.PaymentProvider]Adapter{}}
}

// Register binds the networks to the adapter.
func (r *Registry) Register(adapter Adapter, networks ...enums.PaymentProvider) error {
	if adapter == nil {
		return errors.New("adapter required")
	}
	for _, network := range networks {
		if !network.IsValid() {
			return fmt.Errorf("unknown payment provider %q", network)
		}
		r.adapters[network] = adapter
	}
	return nil
}

// Resolve returns the adapter for the network.
func (r *Registry) Resolve(network enums.PaymentProvider) Adapter {
	if r != nil {
		if adapter, ok := r.adapters[network]; ok {
			return adapter
		}
	}
	return unimplemented{name: string(network)}
}

// Charge authenticates and submits the push, refreshing the token and retrying
// once when the provider answers 401.
func Charge(ctx context.Context, adapter Adapter, req PaymentRequest) Result {
	result := chargeOnce(ctx, adapter, req)
	if result.Kind != KindUnauthorized {
		return result
	}
	return chargeOnce(ctx, adapter, req)
}

func chargeOnce(ctx context.Context, adapter Adapter, req PaymentRequest) Result {
	token, err := adapter.Authenticate(ctx)
	if err != nil {
		return authFailure(ctx, err)
	}
	result := adapter.RequestPayment(ctx, token, req)
	if result.Kind == KindUnauthorized {
		if inv, ok := adapter.(TokenInvalidator); ok {
			inv.InvalidateToken(token)
		}
	}
	return result
}

func authFailure(ctx context.Context, err error) Result {
	switch {
	case errors.Is(err, ErrAuthRefused):
		return Rejected("", CodeAuthRefused, err.Error())
	case errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil:
		return Ambiguous(CodeTimeout, "provider authentication timed out")
	default:
		return Ambiguous(CodeTransport, err.Error())
	}
}

type unimplemented struct {
	name string
}

func (u unimplemented) Name() string { return u.name }

func (u unimplemented) Authenticate(context.Context) (Token, error) {
	return Token{}, nil
}

func (u unimplemented) RequestPayment(context.Context, Token, PaymentRequest) Result {
	return NotImplemented(u.name)
}
