package models

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/dukapay-backend/pkg/enums"
)

func TestOutboxEventDeadLetterSnapshotsRow(t *testing.T) {
	event := OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventPaymentCompleted,
		AggregateType: enums.AggregatePaymentAttempt,
		AggregateID:   uuid.New(),
		Payload:       []byte(`{"version":1}`),
		AttemptCount:  10,
	}
	failedAt := time.Date(2026, 10, 18, 12, 0, 0, 0, time.FixedZone("EAT", 3*3600))

	entry := event.DeadLetter(enums.OutboxDLQReasonMaxAttempts, errors.New("deadline exceeded"), failedAt)
	require.Equal(t, event.ID, entry.EventID)
	require.Equal(t, event.AggregateID, entry.AggregateID)
	require.Equal(t, 10, entry.AttemptCount)
	require.Equal(t, time.UTC, entry.FailedAt.Location())
	require.NotNil(t, entry.ErrorMessage)
	require.Equal(t, "deadline exceeded", *entry.ErrorMessage)

	require.Nil(t, event.DeadLetter(enums.OutboxDLQReasonNonRetryable, nil, failedAt).ErrorMessage)
}
