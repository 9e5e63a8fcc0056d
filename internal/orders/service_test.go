package orders

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/phoneshop-backend/internal/inventory"
	"github.com/angelmondragon/phoneshop-backend/pkg/db"
	"github.com/angelmondragon/phoneshop-backend/pkg/db/dbtest"
	"github.com/angelmondragon/phoneshop-backend/pkg/db/models"
	"github.com/angelmondragon/phoneshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/phoneshop-backend/pkg/errors"
	"github.com/angelmondragon/phoneshop-backend/pkg/outbox"
	"github.com/angelmondragon/phoneshop-backend/pkg/pagination"
)

type serviceFixture struct {
	client  *db.Client
	svc     Service
	variant models.ProductVariant
	owner   Actor
	admin   Actor
}

func newServiceFixture(t *testing.T) serviceFixture {
	t.Helper()
	client := dbtest.Open(t)
	events := outbox.NewService(outbox.NewRepository(client.DB()), nil)
	svc, err := NewService(NewRepository(client.DB()), client, inventory.NewRepository(client.DB()), WithEvents(events))
	require.NoError(t, err)
	return serviceFixture{
		client:  client,
		svc:     svc,
		variant: dbtest.SeedVariant(t, client, nil, "500000.00", 4),
		owner:   Actor{UserID: uuid.New(), Role: enums.UserRoleCustomer},
		admin:   Actor{UserID: uuid.New(), Role: enums.UserRoleAdmin},
	}
}

func (f serviceFixture) orderFor(t *testing.T, owner Actor, status enums.OrderStatus, qty int) *models.Order {
	return seedOrder(t, f.client, seedOrderInput{UserID: ptrUUID(owner.UserID), Variant: f.variant, Status: status, Quantity: qty})
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	require.Truef(t, pkgerrors.Is(err, code), "expected %s, got %v", code, err)
}

func TestNewServiceValidatesDeps(t *testing.T) {
	client := dbtest.Open(t)
	_, err := NewService(nil, client, inventory.NewRepository(client.DB()))
	require.Error(t, err)
	_, err = NewService(NewRepository(client.DB()), nil, inventory.NewRepository(client.DB()))
	require.Error(t, err)
	_, err = NewService(NewRepository(client.DB()), client, nil)
	require.Error(t, err)
}

func TestOwnerCancelsPendingOrderAndStockReturns(t *testing.T) {
	f := newServiceFixture(t)
	order := f.orderFor(t, f.owner, enums.OrderStatusPending, 2)

	dto, err := f.svc.UpdateStatus(context.Background(), f.owner, order.ID, enums.OrderStatusCancelled)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusCancelled, dto.Status)
	require.NotNil(t, dto.CancelledAt)
	require.Equal(t, 6, dbtest.Stock(t, f.client, f.variant.ID))
}

func TestCancelTwiceIsNoOp(t *testing.T) {
	f := newServiceFixture(t)
	order := f.orderFor(t, f.owner, enums.OrderStatusPending, 1)
	ctx := context.Background()

	_, err := f.svc.UpdateStatus(ctx, f.owner, order.ID, enums.OrderStatusCancelled)
	require.NoError(t, err)
	dto, err := f.svc.UpdateStatus(ctx, f.owner, order.ID, enums.OrderStatusCancelled)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusCancelled, dto.Status)
	require.Equal(t, 5, dbtest.Stock(t, f.client, f.variant.ID), "stock must be returned once")
}

func TestOwnerCannotAdvanceStatus(t *testing.T) {
	f := newServiceFixture(t)
	order := f.orderFor(t, f.owner, enums.OrderStatusPending, 1)

	_, err := f.svc.UpdateStatus(context.Background(), f.owner, order.ID, enums.OrderStatusShipping)
	requireCode(t, err, pkgerrors.CodeForbidden)
}

func TestStrangerCannotCancel(t *testing.T) {
	f := newServiceFixture(t)
	order := f.orderFor(t, f.owner, enums.OrderStatusPending, 1)
	stranger := Actor{UserID: uuid.New(), Role: enums.UserRoleCustomer}

	_, err := f.svc.UpdateStatus(context.Background(), stranger, order.ID, enums.OrderStatusCancelled)
	requireCode(t, err, pkgerrors.CodeForbidden)

	_, err = f.svc.UpdateStatus(context.Background(), Actor{}, order.ID, enums.OrderStatusCancelled)
	requireCode(t, err, pkgerrors.CodeUnauthorized)
}

func TestOwnerCannotCancelShippedOrder(t *testing.T) {
	f := newServiceFixture(t)
	order := f.orderFor(t, f.owner, enums.OrderStatusShipping, 1)

	_, err := f.svc.UpdateStatus(context.Background(), f.owner, order.ID, enums.OrderStatusCancelled)
	requireCode(t, err, pkgerrors.CodeStateConflict)
	require.Equal(t, 4, dbtest.Stock(t, f.client, f.variant.ID))
}

func TestPaidOrderCannotBeCancelled(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	order := seedOrder(t, f.client, seedOrderInput{UserID: ptrUUID(f.owner.UserID), Variant: f.variant, Paid: true, Method: enums.PaymentMethodGateway})

	for _, actor := range []Actor{f.owner, f.admin} {
		_, err := f.svc.UpdateStatus(ctx, actor, order.ID, enums.OrderStatusCancelled)
		requireCode(t, err, pkgerrors.CodeStateConflict)
	}

	dto, err := f.svc.Get(ctx, f.admin, order.ID)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusPending, dto.Status)
	require.Equal(t, enums.PaymentStatusPaid, dto.PaymentStatus)
	require.Nil(t, dto.CancelledAt)
	require.Equal(t, 4, dbtest.Stock(t, f.client, f.variant.ID))
	require.Empty(t, dbtest.OutboxEvents(t, f.client, order.ID))

	dto, err = f.svc.UpdateStatus(ctx, f.admin, order.ID, enums.OrderStatusShipping)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusShipping, dto.Status)
}

func TestAdminWalksHappyPathAndTerminalStatesHold(t *testing.T) {
	f := newServiceFixture(t)
	order := f.orderFor(t, f.owner, enums.OrderStatusPending, 1)
	ctx := context.Background()

	dto, err := f.svc.UpdateStatus(ctx, f.admin, order.ID, enums.OrderStatusShipping)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusShipping, dto.Status)

	_, err = f.svc.UpdateStatus(ctx, f.admin, order.ID, enums.OrderStatusPending)
	requireCode(t, err, pkgerrors.CodeStateConflict)

	dto, err = f.svc.UpdateStatus(ctx, f.admin, order.ID, enums.OrderStatusCompleted)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusCompleted, dto.Status)

	_, err = f.svc.UpdateStatus(ctx, f.admin, order.ID, enums.OrderStatusCancelled)
	requireCode(t, err, pkgerrors.CodeStateConflict)
}

func TestUpdateStatusMissingOrder(t *testing.T) {
	f := newServiceFixture(t)
	_, err := f.svc.UpdateStatus(context.Background(), f.admin, 9999, enums.OrderStatusShipping)
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestGetEnforcesOwnership(t *testing.T) {
	f := newServiceFixture(t)
	order := f.orderFor(t, f.owner, enums.OrderStatusPending, 1)
	ctx := context.Background()

	dto, err := f.svc.Get(ctx, f.owner, order.ID)
	require.NoError(t, err)
	require.Equal(t, order.ID, dto.ID)
	require.Equal(t, 1, dto.ItemCount)

	_, err = f.svc.Get(ctx, f.admin, order.ID)
	require.NoError(t, err)

	_, err = f.svc.Get(ctx, Actor{UserID: uuid.New(), Role: enums.UserRoleCustomer}, order.ID)
	requireCode(t, err, pkgerrors.CodeForbidden)

	_, err = f.svc.Get(ctx, f.admin, order.ID+1000)
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestAnonymousOrderOnlyVisibleToAdmin(t *testing.T) {
	f := newServiceFixture(t)
	order := seedOrder(t, f.client, seedOrderInput{Variant: f.variant})

	_, err := f.svc.Get(context.Background(), f.owner, order.ID)
	requireCode(t, err, pkgerrors.CodeForbidden)
	_, err = f.svc.Get(context.Background(), f.admin, order.ID)
	require.NoError(t, err)
}

func TestManualPaymentOverride(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	order := f.orderFor(t, f.owner, enums.OrderStatusPending, 1)

	_, err := f.svc.UpdatePaymentStatus(ctx, f.owner, order.ID, enums.PaymentStatusPaid)
	requireCode(t, err, pkgerrors.CodeForbidden)

	dto, err := f.svc.UpdatePaymentStatus(ctx, f.admin, order.ID, enums.PaymentStatusPaid)
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusPaid, dto.PaymentStatus)
	require.NotNil(t, dto.PaidAt)

	dto, err = f.svc.UpdatePaymentStatus(ctx, f.admin, order.ID, enums.PaymentStatusPaid)
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusPaid, dto.PaymentStatus)

	_, err = f.svc.UpdatePaymentStatus(ctx, f.admin, order.ID, enums.PaymentStatusUnpaid)
	requireCode(t, err, pkgerrors.CodeStateConflict)
}

func TestManualPaymentRejectedForCancelledOrder(t *testing.T) {
	f := newServiceFixture(t)
	order := f.orderFor(t, f.owner, enums.OrderStatusCancelled, 1)

	_, err := f.svc.UpdatePaymentStatus(context.Background(), f.admin, order.ID, enums.PaymentStatusPaid)
	requireCode(t, err, pkgerrors.CodeStateConflict)
}

func TestListMineDefaultsToFivePerPage(t *testing.T) {
	f := newServiceFixture(t)
	for i := 0; i < 7; i++ {
		f.orderFor(t, f.owner, enums.OrderStatusPending, 1)
	}

	page, err := f.svc.ListMine(context.Background(), f.owner, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, page.Items, DefaultMyOrdersLimit)
	require.EqualValues(t, 7, page.TotalItems)
	require.Equal(t, 2, page.TotalPages)
	require.Equal(t, 1, page.CurrentPage)

	_, err = f.svc.ListMine(context.Background(), Actor{}, pagination.Params{})
	requireCode(t, err, pkgerrors.CodeUnauthorized)
}

func TestCanTransitionTable(t *testing.T) {
	cases := []struct {
		from, to enums.OrderStatus
		want     bool
	}{
		{enums.OrderStatusPending, enums.OrderStatusShipping, true},
		{enums.OrderStatusPending, enums.OrderStatusCancelled, true},
		{enums.OrderStatusShipping, enums.OrderStatusCompleted, true},
		{enums.OrderStatusPending, enums.OrderStatusCompleted, false},
		{enums.OrderStatusShipping, enums.OrderStatusCancelled, false},
		{enums.OrderStatusCompleted, enums.OrderStatusPending, false},
		{enums.OrderStatusCancelled, enums.OrderStatusPending, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestExpireUnpaidCancelsAndRestocks(t *testing.T) {
	f := newServiceFixture(t)
	order := seedOrder(t, f.client, seedOrderInput{Variant: f.variant, Method: enums.PaymentMethodGateway, Quantity: 3})

	expired, err := f.svc.ExpireUnpaid(context.Background(), order.ID)
	require.NoError(t, err)
	require.True(t, expired)
	require.Equal(t, 7, dbtest.Stock(t, f.client, f.variant.ID))

	dto, err := f.svc.Get(context.Background(), f.admin, order.ID)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusCancelled, dto.Status)

	expired, err = f.svc.ExpireUnpaid(context.Background(), order.ID)
	require.NoError(t, err)
	require.False(t, expired)
	require.Equal(t, 7, dbtest.Stock(t, f.client, f.variant.ID))
}

func TestExpireUnpaidSkipsPaidOrder(t *testing.T) {
	f := newServiceFixture(t)
	order := seedOrder(t, f.client, seedOrderInput{Variant: f.variant, Method: enums.PaymentMethodGateway, Paid: true})

	expired, err := f.svc.ExpireUnpaid(context.Background(), order.ID)
	require.NoError(t, err)
	require.False(t, expired)
	require.Equal(t, 4, dbtest.Stock(t, f.client, f.variant.ID))
}

func TestExpireUnpaidMissingOrder(t *testing.T) {
	f := newServiceFixture(t)
	_, err := f.svc.ExpireUnpaid(context.Background(), 4040)
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func decodeStatusChange(t *testing.T, row models.OutboxEvent) (outbox.Envelope, outbox.OrderStatusChanged) {
	t.Helper()
	require.Equal(t, enums.OrderEventStatusChanged, row.EventType)
	env, err := outbox.DecodeEnvelope(row.Payload)
	require.NoError(t, err)
	var change outbox.OrderStatusChanged
	require.NoError(t, json.Unmarshal(env.Data, &change))
	return env, change
}

func TestStatusChangesQueueEvents(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	order := f.orderFor(t, f.owner, enums.OrderStatusPending, 1)

	_, err := f.svc.UpdateStatus(ctx, f.owner, order.ID, enums.OrderStatusCancelled)
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, f.owner, order.ID, enums.OrderStatusCancelled)
	require.NoError(t, err)

	rows := dbtest.OutboxEvents(t, f.client, order.ID)
	require.Len(t, rows, 1, "a no-op transition must not queue an event")
	env, change := decodeStatusChange(t, rows[0])
	require.Equal(t, enums.OrderStatusPending, change.From)
	require.Equal(t, enums.OrderStatusCancelled, change.To)
	require.Equal(t, outbox.ReasonRequested, change.Reason)
	require.True(t, change.Restocked)
	require.NotNil(t, env.Actor)
	require.Equal(t, f.owner.UserID.String(), env.Actor.UserID)
}

func TestManualPaymentQueuesPaidEventOnce(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	order := f.orderFor(t, f.owner, enums.OrderStatusPending, 2)

	for i := 0; i < 2; i++ {
		_, err := f.svc.UpdatePaymentStatus(ctx, f.admin, order.ID, enums.PaymentStatusPaid)
		require.NoError(t, err)
	}

	rows := dbtest.OutboxEvents(t, f.client, order.ID)
	require.Len(t, rows, 1)
	require.Equal(t, enums.OrderEventPaid, rows[0].EventType)
	env, err := outbox.DecodeEnvelope(rows[0].Payload)
	require.NoError(t, err)
	var paid outbox.OrderPaid
	require.NoError(t, json.Unmarshal(env.Data, &paid))
	require.Equal(t, outbox.PaidManually, paid.Source)
	require.True(t, paid.Amount.Equal(order.TotalAmount), "amount %s", paid.Amount)
}

func TestExpireUnpaidQueuesSystemEvent(t *testing.T) {
	f := newServiceFixture(t)
	order := seedOrder(t, f.client, seedOrderInput{Variant: f.variant, Method: enums.PaymentMethodGateway})

	expired, err := f.svc.ExpireUnpaid(context.Background(), order.ID)
	require.NoError(t, err)
	require.True(t, expired)

	rows := dbtest.OutboxEvents(t, f.client, order.ID)
	require.Len(t, rows, 1)
	env, change := decodeStatusChange(t, rows[0])
	require.Nil(t, env.Actor)
	require.Equal(t, outbox.ReasonPaymentExpiry, change.Reason)
}
