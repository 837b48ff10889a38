package payments

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/dukapay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/dukapay-backend/pkg/errors"
)

func TestApplyCompletionConfirmsOrderOnce(t *testing.T) {
	h := newHarness(t)
	order := h.seedOrder(t, uuid.New(), 25000)
	res := h.start(t, order)
	ctx := context.Background()

	applied, err := h.status.Apply(ctx, Update{AttemptID: res.Attempt.ID, Event: EventCompleted, Source: "webhook"})
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, applied.Outcome)
	require.True(t, applied.OrderConfirmed)

	dup, err := h.status.Apply(ctx, Update{AttemptID: res.Attempt.ID, Event: EventCompleted, Source: "webhook"})
	require.NoError(t, err)
	require.Equal(t, OutcomeNoop, dup.Outcome)
	require.False(t, dup.OrderConfirmed)

	late, err := h.status.Apply(ctx, Update{AttemptID: res.Attempt.ID, Event: EventFailed, FailureCode: "LATE", Source: "webhook"})
	require.NoError(t, err)
	require.Equal(t, OutcomeRejected, late.Outcome)

	attempt := h.reloadAttempt(t, res.Attempt.ID)
	require.Equal(t, enums.PaymentStatusCompleted, attempt.Status)
	require.Nil(t, attempt.FailureCode)
	require.NotNil(t, attempt.CompletedAt)

	reloaded := h.reloadOrder(t, order.ID)
	require.Equal(t, enums.OrderStatusConfirmed, reloaded.Status)
	require.NotNil(t, reloaded.ConfirmedAt)
	require.EqualValues(t, 1, h.countEvents(t, enums.EventOrderConfirmed))
	require.EqualValues(t, 1, h.countEvents(t, enums.EventPaymentCompleted))
}

func TestApplyFirstCompletionWins(t *testing.T) {
	h := newHarness(t)
	order := h.seedOrder(t, uuid.New(), 5000)
	first := h.start(t, order)
	second := h.start(t, order)
	ctx := context.Background()

	a, err := h.status.Apply(ctx, Update{AttemptID: second.Attempt.ID, Event: EventCompleted})
	require.NoError(t, err)
	require.True(t, a.OrderConfirmed)

	b, err := h.status.Apply(ctx, Update{AttemptID: first.Attempt.ID, Event: EventCompleted})
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, b.Outcome)
	require.False(t, b.OrderConfirmed)

	require.EqualValues(t, 1, h.countEvents(t, enums.EventOrderConfirmed))
	require.Equal(t, enums.PaymentStatusCompleted, h.reloadAttempt(t, first.Attempt.ID).Status)
}

func TestApplyCompletionAfterFailureIsRejected(t *testing.T) {
	h := newHarness(t)
	order := h.seedOrder(t, uuid.New(), 5000)
	res := h.start(t, order)
	ctx := context.Background()

	_, err := h.status.Apply(ctx, Update{AttemptID: res.Attempt.ID, Event: EventFailed, FailureCode: "USER_CANCELLED"})
	require.NoError(t, err)

	applied, err := h.status.Apply(ctx, Update{AttemptID: res.Attempt.ID, Event: EventCompleted})
	require.NoError(t, err)
	require.Equal(t, OutcomeRejected, applied.Outcome)
	require.Equal(t, enums.PaymentStatusFailed, h.reloadAttempt(t, res.Attempt.ID).Status)
	require.Equal(t, enums.OrderStatusPending, h.reloadOrder(t, order.ID).Status)
}

func TestApplyCompletionOnCancelledOrderKeepsOrderCancelled(t *testing.T) {
	h := newHarness(t)
	order := h.seedOrder(t, uuid.New(), 5000)
	res := h.start(t, order)
	ctx := context.Background()

	moved, err := h.orders.MarkCancelled(ctx, order.ID, order.CreatedAt)
	require.NoError(t, err)
	require.True(t, moved)

	applied, err := h.status.Apply(ctx, Update{AttemptID: res.Attempt.ID, Event: EventCompleted})
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, applied.Outcome)
	require.False(t, applied.OrderConfirmed)
	require.Equal(t, enums.OrderStatusCancelled, h.reloadOrder(t, order.ID).Status)
}

func TestApplyRecordsLateProviderReference(t *testing.T) {
	h := newHarness(t)
	h.adapter.result.CorrelationID = ""
	order := h.seedOrder(t, uuid.New(), 5000)
	res := h.start(t, order)
	require.Nil(t, h.reloadAttempt(t, res.Attempt.ID).ProviderReference)

	_, err := h.status.Apply(context.Background(), Update{AttemptID: res.Attempt.ID, Event: EventCompleted, ProviderReference: "txn-late"})
	require.NoError(t, err)
	require.Equal(t, "txn-late", *h.reloadAttempt(t, res.Attempt.ID).ProviderReference)
}

func TestApplyUnknownAttempt(t *testing.T) {
	h := newHarness(t)
	_, err := h.status.Apply(context.Background(), Update{AttemptID: uuid.New(), Event: EventCompleted})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}
