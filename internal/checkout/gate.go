package checkout

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/dukapay-backend/internal/orders"
	"github.com/angelmondragon/dukapay-backend/internal/payments"
	"github.com/angelmondragon/dukapay-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/dukapay-backend/pkg/errors"
)

// Gate answers whether an idempotency key already produced an order. Mutual
// exclusion is the unique index on orders.idempotency_key; Gate only reads.
type Gate struct {
	orders orders.Repository
}

// NewGate binds the gate to the orders repository.
func NewGate(repo orders.Repository) *Gate {
	return &Gate{orders: repo}
}

// Lookup returns a replay summary when key already owns an order, or nil when
// the key is unused. A key owned by another user is IDEMPOTENCY_KEY_REUSED.
func (g *Gate) Lookup(ctx context.Context, key string, userID uuid.UUID) (*payments.Summary, error) {
	order, err := g.orders.FindByIdempotencyKey(ctx, key)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "idempotency lookup failed")
	}
	return replayFor(order, userID)
}

// Resolve re-reads the order that won a concurrent insert for key.
func (g *Gate) Resolve(ctx context.Context, key string, userID uuid.UUID) (*payments.Summary, error) {
	order, err := g.orders.FindByIdempotencyKey(ctx, key)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeOrderCreateFailed, err, "order could not be created")
	}
	return replayFor(order, userID)
}

func replayFor(order *models.Order, userID uuid.UUID) (*payments.Summary, error) {
	if order.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeIdempotency, "Idempotency-Key was already used")
	}
	return payments.Replay(order), nil
}
