package outbox

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/phoneshop-backend/pkg/db/dbtest"
	"github.com/angelmondragon/phoneshop-backend/pkg/db/models"
	"github.com/angelmondragon/phoneshop-backend/pkg/enums"
)

func TestEmitStoresVersionedEnvelope(t *testing.T) {
	client := dbtest.Open(t)
	svc := NewService(NewRepository(client.DB()), nil)
	at := time.Date(2025, 3, 14, 8, 30, 0, 0, time.FixedZone("ICT", 7*3600))

	err := svc.Emit(context.Background(), client.DB(), Event{
		Type:       enums.OrderEventPaid,
		OrderID:    42,
		Actor:      &ActorRef{UserID: "u-1", Role: "admin"},
		Data:       OrderPaid{Source: PaidManually, Amount: decimal.RequireFromString("990000")},
		OccurredAt: at,
	})
	require.NoError(t, err)

	rows := dbtest.OutboxEvents(t, client, 42)
	require.Len(t, rows, 1)
	row := rows[0]
	require.Equal(t, enums.OrderEventPaid, row.EventType)
	require.Nil(t, row.PublishedAt)
	require.Zero(t, row.AttemptCount)

	env, err := DecodeEnvelope(row.Payload)
	require.NoError(t, err)
	require.Equal(t, EnvelopeVersion, env.Version)
	require.Equal(t, row.EventID, env.EventID)
	require.Equal(t, int64(42), env.OrderID)
	require.True(t, env.OccurredAt.Equal(at))
	require.Equal(t, time.UTC, env.OccurredAt.Location())
	require.Equal(t, "admin", env.Actor.Role)

	var paid OrderPaid
	require.NoError(t, json.Unmarshal(env.Data, &paid))
	require.Equal(t, PaidManually, paid.Source)
	require.Empty(t, paid.TransactionNo)
}

func TestEmitAssignsDistinctEventIDs(t *testing.T) {
	client := dbtest.Open(t)
	svc := NewService(NewRepository(client.DB()), nil)
	event := Event{Type: enums.OrderEventPlaced, OrderID: 7, Data: OrderPlaced{}}

	require.NoError(t, svc.Emit(context.Background(), client.DB(), event))
	require.NoError(t, svc.Emit(context.Background(), client.DB(), event))

	rows := dbtest.OutboxEvents(t, client, 7)
	require.Len(t, rows, 2)
	require.NotEqual(t, rows[0].EventID, rows[1].EventID)
}

func TestEmitRejectsIncompleteEvents(t *testing.T) {
	client := dbtest.Open(t)
	svc := NewService(NewRepository(client.DB()), nil)
	ctx := context.Background()

	require.Error(t, svc.Emit(ctx, nil, Event{Type: enums.OrderEventPlaced, OrderID: 1}))
	require.Error(t, svc.Emit(ctx, client.DB(), Event{Type: "order.shipped", OrderID: 1}))
	require.Error(t, svc.Emit(ctx, client.DB(), Event{Type: enums.OrderEventPlaced}))
	require.Error(t, svc.Emit(ctx, client.DB(), Event{Type: enums.OrderEventPlaced, OrderID: 1, Data: make(chan int)}))

	var count int64
	require.NoError(t, client.DB().Model(&models.OutboxEvent{}).Count(&count).Error)
	require.Zero(t, count)
}
