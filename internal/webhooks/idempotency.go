package webhooks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/dukapay-backend/pkg/redis"
)

// Claims expire quickly so a delivery whose processing died is applied again
// on the provider's next attempt.
const defaultClaimTTL = 2 * time.Minute

const (
	markerProcessing = "processing"
	markerDone       = "done"
)

// IdempotencyGuard remembers processed deliveries in Redis so exact
// redeliveries are acknowledged without touching the database. A delivery is
// claimed briefly while it is applied and remembered for ttl once it succeeds.
type IdempotencyGuard struct {
	store    redis.IdempotencyStore
	ttl      time.Duration
	claimTTL time.Duration
	scope    string
}

func NewIdempotencyGuard(store redis.IdempotencyStore, ttl time.Duration, scope string) (*IdempotencyGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	claimTTL := defaultClaimTTL
	if ttl > 0 && ttl < claimTTL {
		claimTTL = ttl
	}
	return &IdempotencyGuard{
		store:    store,
		ttl:      ttl,
		claimTTL: claimTTL,
		scope:    scope,
	}, nil
}

// Claim reports whether deliveryID is already processed or in flight, claiming
// it if not.
func (g *IdempotencyGuard) Claim(ctx context.Context, deliveryID string) (bool, error) {
	if deliveryID == "" {
		return false, errors.New("delivery id is required")
	}
	key := g.store.IdempotencyKey(g.scope, deliveryID)
	set, err := g.store.SetNX(ctx, key, markerProcessing, g.claimTTL)
	if err != nil {
		return false, fmt.Errorf("set idempotency key: %w", err)
	}
	return !set, nil
}

// MarkProcessed remembers a successfully applied delivery for the full ttl.
func (g *IdempotencyGuard) MarkProcessed(ctx context.Context, deliveryID string) error {
	if deliveryID == "" {
		return errors.New("delivery id is required")
	}
	key := g.store.IdempotencyKey(g.scope, deliveryID)
	if err := g.store.Set(ctx, key, markerDone, g.ttl); err != nil {
		return fmt.Errorf("mark delivery processed: %w", err)
	}
	return nil
}

// Delete forgets deliveryID so a redelivery after a failed attempt is processed.
func (g *IdempotencyGuard) Delete(ctx context.Context, deliveryID string) error {
	if deliveryID == "" {
		return errors.New("delivery id is required")
	}
	return g.store.Del(ctx, g.store.IdempotencyKey(g.scope, deliveryID))
}
