package outbox

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/dukapay-backend/pkg/db/dbtest"
	"github.com/angelmondragon/dukapay-backend/pkg/db/models"
	"github.com/angelmondragon/dukapay-backend/pkg/enums"
	"github.com/angelmondragon/dukapay-backend/pkg/logger"
)

func TestEmitWritesEnvelope(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	svc := NewService(repo, logger.Nop())
	orderID := uuid.New()

	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Actor:         SystemActor("test"),
			Data:          map[string]string{"order_id": orderID.String()},
		})
	})
	require.NoError(t, err)

	var rows []models.OutboxEvent
	require.NoError(t, client.DB().Find(&rows).Error)
	require.Len(t, rows, 1)
	require.Equal(t, orderID, rows[0].AggregateID)
	require.Contains(t, string(rows[0].Payload), `"version":1`)

	backlog, err := repo.CountUnpublished()
	require.NoError(t, err)
	require.EqualValues(t, 1, backlog)
}

func TestEmitRejectsUnknownEvent(t *testing.T) {
	client := dbtest.Open(t)
	svc := NewService(NewRepository(client.DB()), logger.Nop())
	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{EventType: "order_shipped", AggregateType: enums.AggregateOrder, AggregateID: uuid.New()})
	})
	require.Error(t, err)
	err = client.WithTx(context.Background(), func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder})
	})
	require.ErrorContains(t, err, "no aggregate id")
	require.Error(t, svc.Emit(context.Background(), nil, DomainEvent{EventType: enums.EventOrderCreated}))
}

func TestDeletePublishedBefore(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	now := time.Now().UTC()
	old := now.Add(-40 * 24 * time.Hour)
	older := now.Add(-50 * 24 * time.Hour)

	rows := []models.OutboxEvent{
		{EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: []byte(`{}`), PublishedAt: &old},
		{EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: []byte(`{}`), PublishedAt: &older},
		{EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: []byte(`{}`), PublishedAt: &now},
		{EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: []byte(`{}`)},
		{EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: []byte(`{}`), PublishedAt: &old, AttemptCount: 7},
	}
	for _, row := range rows {
		require.NoError(t, repo.Insert(client.DB(), row))
	}

	deleteBatch := func() int64 {
		var deleted int64
		err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
			n, err := repo.DeletePublishedBefore(context.Background(), tx, now.Add(-30*24*time.Hour), 5, 1)
			deleted = n
			return err
		})
		require.NoError(t, err)
		return deleted
	}
	require.EqualValues(t, 1, deleteBatch())
	require.EqualValues(t, 1, deleteBatch())
	require.EqualValues(t, 0, deleteBatch())

	var remaining int64
	require.NoError(t, client.DB().Model(&models.OutboxEvent{}).Count(&remaining).Error)
	require.EqualValues(t, 3, remaining)

	_, err := repo.DeletePublishedBefore(context.Background(), nil, now, 5, 10)
	require.Error(t, err)
}
