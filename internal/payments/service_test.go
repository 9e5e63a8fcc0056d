package payments

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/phoneshop-backend/internal/inventory"
	"github.com/angelmondragon/phoneshop-backend/internal/orders"
	"github.com/angelmondragon/phoneshop-backend/pkg/db"
	"github.com/angelmondragon/phoneshop-backend/pkg/db/dbtest"
	"github.com/angelmondragon/phoneshop-backend/pkg/db/models"
	"github.com/angelmondragon/phoneshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/phoneshop-backend/pkg/errors"
	"github.com/angelmondragon/phoneshop-backend/pkg/outbox"
	"github.com/angelmondragon/phoneshop-backend/pkg/redis/redistest"
)

type recordingMetrics struct {
	outcomes map[string]int
}

func (m *recordingMetrics) IncCallback(outcome string) {
	if m.outcomes == nil {
		m.outcomes = map[string]int{}
	}
	m.outcomes[outcome]++
}

type fixture struct {
	client  *db.Client
	gateway *Gateway
	store   *redistest.MemoryStore
	metrics *recordingMetrics
	svc     Service
}

func newFixture(t *testing.T, withGuard bool) *fixture {
	t.Helper()
	client := dbtest.Open(t)
	gw, err := NewGateway(testGatewayConfig(), time.UTC)
	require.NoError(t, err)

	f := &fixture{client: client, gateway: gw, metrics: &recordingMetrics{}}
	var guard *ReplayGuard
	if withGuard {
		f.store = redistest.NewMemoryStore()
		guard, err = NewReplayGuard(f.store, time.Hour)
		require.NoError(t, err)
	}
	f.svc, err = NewService(ServiceParams{
		Repo:    orders.NewRepository(client.DB()),
		Tx:      client,
		Gateway: gw,
		Guard:   guard,
		Metrics: f.metrics,
		Events:  outbox.NewService(outbox.NewRepository(client.DB()), nil),
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) seedOrder(t *testing.T, total string, status enums.OrderStatus, paid enums.PaymentStatus) *models.Order {
	t.Helper()
	product := dbtest.SeedProduct(t, f.client, "Galaxy S24")
	variant := dbtest.SeedVariant(t, f.client, &product.ID, total, 5)
	order := &models.Order{
		CustomerName:    "Le Thi Mai",
		CustomerPhone:   "0912345678",
		ShippingAddress: "8 Nguyen Hue, District 1",
		OrderDate:       time.Now().UTC(),
		TotalAmount:     variant.Price,
		Status:          status,
		PaymentMethod:   enums.PaymentMethodGateway,
		PaymentStatus:   paid,
		Lines: []models.OrderLine{{
			VariantID: variant.ID,
			Quantity:  1,
			UnitPrice: variant.Price,
		}},
	}
	require.NoError(t, f.client.DB().Create(order).Error)
	return order
}

func (f *fixture) signedCallback(orderID int64, amount decimal.Decimal, code, txn string) url.Values {
	params := url.Values{}
	params.Set(ParamTmnCode, "DEMO1234")
	params.Set(ParamTxnRef, strconv.FormatInt(orderID, 10))
	params.Set(ParamAmount, MinorUnits(amount))
	params.Set(ParamResponseCode, code)
	params.Set(ParamTransactionNo, txn)
	params.Set(ParamSecureHash, f.gateway.signer.Sign(params))
	return params
}

func (f *fixture) reload(t *testing.T, orderID int64) models.Order {
	t.Helper()
	var order models.Order
	require.NoError(t, f.client.DB().First(&order, orderID).Error)
	return order
}

func (f *fixture) callbackCount(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.client.DB().Model(&models.PaymentCallback{}).Count(&count).Error)
	return count
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	require.Equal(t, code, typed.Code())
}

func TestHandleCallbackMarksOrderPaidOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	order := f.seedOrder(t, "20365000", enums.OrderStatusPending, enums.PaymentStatusUnpaid)
	params := f.signedCallback(order.ID, order.TotalAmount, "00", "14000001")

	first, err := f.svc.HandleCallback(ctx, params)
	require.NoError(t, err)
	require.True(t, first.Success)
	require.Equal(t, enums.CallbackOutcomePaid, first.Outcome)
	require.False(t, first.Duplicate)
	require.Equal(t, order.ID, first.OrderID)
	require.Equal(t, "14000001", first.TransactionNo)

	stored := f.reload(t, order.ID)
	require.Equal(t, enums.PaymentStatusPaid, stored.PaymentStatus)
	require.NotNil(t, stored.PaidAt)
	paidAt := *stored.PaidAt

	second, err := f.svc.HandleCallback(ctx, params)
	require.NoError(t, err)
	require.True(t, second.Duplicate)
	require.Equal(t, enums.CallbackOutcomePaid, second.Outcome)
	require.True(t, second.Success)

	again := f.reload(t, order.ID)
	require.True(t, paidAt.Equal(*again.PaidAt), "replay must not touch paid_at")
	require.Equal(t, int64(1), f.callbackCount(t))
	require.Equal(t, 1, f.metrics.outcomes["paid"])
}

func TestHandleCallbackQueuesPaidEventOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	order := f.seedOrder(t, "20365000", enums.OrderStatusPending, enums.PaymentStatusUnpaid)
	params := f.signedCallback(order.ID, order.TotalAmount, "00", "14000002")

	for i := 0; i < 2; i++ {
		_, err := f.svc.HandleCallback(ctx, params)
		require.NoError(t, err)
	}
	_, err := f.svc.HandleCallback(ctx, f.signedCallback(order.ID, order.TotalAmount, "00", "14000003"))
	require.NoError(t, err)

	rows := dbtest.OutboxEvents(t, f.client, order.ID)
	require.Len(t, rows, 1)
	require.Equal(t, enums.OrderEventPaid, rows[0].EventType)
	env, err := outbox.DecodeEnvelope(rows[0].Payload)
	require.NoError(t, err)
	require.Nil(t, env.Actor)
	var paid outbox.OrderPaid
	require.NoError(t, json.Unmarshal(env.Data, &paid))
	require.Equal(t, outbox.PaidByGateway, paid.Source)
	require.Equal(t, "14000002", paid.TransactionNo)
	require.True(t, paid.Amount.Equal(order.TotalAmount))
}

func TestHandleCallbackFailedPaymentQueuesNothing(t *testing.T) {
	f := newFixture(t, false)
	order := f.seedOrder(t, "700000", enums.OrderStatusPending, enums.PaymentStatusUnpaid)

	_, err := f.svc.HandleCallback(context.Background(), f.signedCallback(order.ID, order.TotalAmount, "24", "11"))
	require.NoError(t, err)
	require.Empty(t, dbtest.OutboxEvents(t, f.client, order.ID))
}

func TestHandleCallbackReplayWithoutCacheUsesRecordedOutcome(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	order := f.seedOrder(t, "1500000", enums.OrderStatusPending, enums.PaymentStatusUnpaid)
	params := f.signedCallback(order.ID, order.TotalAmount, "24", "99")

	first, err := f.svc.HandleCallback(ctx, params)
	require.NoError(t, err)
	require.Equal(t, enums.CallbackOutcomePaymentFailed, first.Outcome)

	second, err := f.svc.HandleCallback(ctx, params)
	require.NoError(t, err)
	require.True(t, second.Duplicate)
	require.Equal(t, enums.CallbackOutcomePaymentFailed, second.Outcome)
	require.Equal(t, int64(1), f.callbackCount(t))
	require.Equal(t, 1, f.metrics.outcomes["payment_failed"])
}

func TestHandleCallbackGuardOutageFallsThroughToDatabase(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	f.store.Err = redistest.ErrUnavailable
	order := f.seedOrder(t, "990000", enums.OrderStatusPending, enums.PaymentStatusUnpaid)
	params := f.signedCallback(order.ID, order.TotalAmount, "00", "1")

	res, err := f.svc.HandleCallback(ctx, params)
	require.NoError(t, err)
	require.Equal(t, enums.CallbackOutcomePaid, res.Outcome)

	res, err = f.svc.HandleCallback(ctx, params)
	require.NoError(t, err)
	require.True(t, res.Duplicate)
	require.Equal(t, enums.CallbackOutcomePaid, res.Outcome)
}

func TestHandleCallbackRejectsTamperedParameters(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	order := f.seedOrder(t, "500000", enums.OrderStatusPending, enums.PaymentStatusUnpaid)
	params := f.signedCallback(order.ID, order.TotalAmount, "00", "2")
	params.Set(ParamAmount, "100")

	_, err := f.svc.HandleCallback(ctx, params)
	requireCode(t, err, pkgerrors.CodeInvalidSignature)
	require.Equal(t, enums.PaymentStatusUnpaid, f.reload(t, order.ID).PaymentStatus)
	require.Equal(t, int64(0), f.callbackCount(t))
	require.Equal(t, 0, f.store.Len())
}

func TestHandleCallbackCancelledOrderIsReportedNotSettled(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	order := f.seedOrder(t, "700000", enums.OrderStatusCancelled, enums.PaymentStatusUnpaid)

	res, err := f.svc.HandleCallback(ctx, f.signedCallback(order.ID, order.TotalAmount, "00", "3"))
	require.NoError(t, err)
	require.False(t, res.Success)
	require.Equal(t, enums.CallbackOutcomeOrderCancelled, res.Outcome)
	require.Equal(t, enums.PaymentStatusUnpaid, f.reload(t, order.ID).PaymentStatus)
}

func TestHandleCallbackRacingOwnerCancelSettlesOneWay(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	orderSvc, err := orders.NewService(orders.NewRepository(f.client.DB()), f.client, inventory.NewRepository(f.client.DB()))
	require.NoError(t, err)
	owner := orders.Actor{UserID: uuid.New(), Role: enums.UserRoleCustomer}

	for i := 0; i < 20; i++ {
		order := f.seedOrder(t, "990000", enums.OrderStatusPending, enums.PaymentStatusUnpaid)
		require.NoError(t, f.client.DB().Model(order).Update("user_id", owner.UserID).Error)
		variantID := order.Lines[0].VariantID
		params := f.signedCallback(order.ID, order.TotalAmount, "00", strconv.Itoa(15000000+i))

		var (
			wg        sync.WaitGroup
			res       *CallbackResult
			cbErr     error
			cancelErr error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			res, cbErr = f.svc.HandleCallback(ctx, params)
		}()
		go func() {
			defer wg.Done()
			_, cancelErr = orderSvc.UpdateStatus(ctx, owner, order.ID, enums.OrderStatusCancelled)
		}()
		wg.Wait()

		require.NoError(t, cbErr, "iteration %d", i)
		final := f.reload(t, order.ID)
		switch res.Outcome {
		case enums.CallbackOutcomePaid:
			requireCode(t, cancelErr, pkgerrors.CodeStateConflict)
			require.Equal(t, enums.OrderStatusPending, final.Status, "iteration %d", i)
			require.Equal(t, enums.PaymentStatusPaid, final.PaymentStatus, "iteration %d", i)
			require.Equal(t, 5, dbtest.Stock(t, f.client, variantID), "iteration %d", i)
		case enums.CallbackOutcomeOrderCancelled:
			require.NoError(t, cancelErr, "iteration %d", i)
			require.False(t, res.Success)
			require.Equal(t, enums.OrderStatusCancelled, final.Status, "iteration %d", i)
			require.Equal(t, enums.PaymentStatusUnpaid, final.PaymentStatus, "iteration %d", i)
			require.Equal(t, 6, dbtest.Stock(t, f.client, variantID), "iteration %d", i)
		default:
			t.Fatalf("iteration %d: unexpected outcome %q", i, res.Outcome)
		}
	}
}

func TestHandleCallbackFailedCodeLeavesOrderPayable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	order := f.seedOrder(t, "700000", enums.OrderStatusPending, enums.PaymentStatusUnpaid)

	res, err := f.svc.HandleCallback(ctx, f.signedCallback(order.ID, order.TotalAmount, "24", "4"))
	require.NoError(t, err)
	require.False(t, res.Success)
	require.Equal(t, enums.CallbackOutcomePaymentFailed, res.Outcome)

	res, err = f.svc.HandleCallback(ctx, f.signedCallback(order.ID, order.TotalAmount, "00", "5"))
	require.NoError(t, err)
	require.Equal(t, enums.CallbackOutcomePaid, res.Outcome)
	require.Equal(t, int64(2), f.callbackCount(t))
}

func TestHandleCallbackAmountMismatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	order := f.seedOrder(t, "700000", enums.OrderStatusPending, enums.PaymentStatusUnpaid)

	res, err := f.svc.HandleCallback(ctx, f.signedCallback(order.ID, decimal.NewFromInt(1000), "00", "6"))
	require.NoError(t, err)
	require.False(t, res.Success)
	require.Equal(t, enums.CallbackOutcomeAmountMismatch, res.Outcome)
	require.Equal(t, enums.PaymentStatusUnpaid, f.reload(t, order.ID).PaymentStatus)
}

func TestHandleCallbackSecondSuccessfulCallbackIsAlreadyPaid(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	order := f.seedOrder(t, "700000", enums.OrderStatusPending, enums.PaymentStatusUnpaid)

	_, err := f.svc.HandleCallback(ctx, f.signedCallback(order.ID, order.TotalAmount, "00", "7"))
	require.NoError(t, err)
	res, err := f.svc.HandleCallback(ctx, f.signedCallback(order.ID, order.TotalAmount, "00", "8"))
	require.NoError(t, err)
	require.True(t, res.Success)
	require.False(t, res.Duplicate)
	require.Equal(t, enums.CallbackOutcomeAlreadyPaid, res.Outcome)
}

func TestHandleCallbackValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	_, err := f.svc.HandleCallback(ctx, url.Values{ParamTxnRef: {"1"}})
	requireCode(t, err, pkgerrors.CodeValidation)

	params := f.signedCallback(1, decimal.NewFromInt(1), "00", "9")
	params.Set(ParamTxnRef, "abc")
	_, err = f.svc.HandleCallback(ctx, params)
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestHandleCallbackUnknownOrder(t *testing.T) {
	f := newFixture(t, true)
	_, err := f.svc.HandleCallback(context.Background(), f.signedCallback(4040, decimal.NewFromInt(10), "00", "10"))
	requireCode(t, err, pkgerrors.CodeNotFound)
	require.Equal(t, int64(0), f.callbackCount(t))
}

func TestCreatePaymentURL(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	pending := f.seedOrder(t, "1234567.50", enums.OrderStatusPending, enums.PaymentStatusUnpaid)
	res, err := f.svc.CreatePaymentURL(ctx, pending.ID, "10.1.1.1")
	require.NoError(t, err)
	require.Equal(t, pending.ID, res.OrderID)
	parsed, err := url.Parse(res.PaymentURL)
	require.NoError(t, err)
	require.Equal(t, "123456750", parsed.Query().Get(ParamAmount))

	cancelled := f.seedOrder(t, "100", enums.OrderStatusCancelled, enums.PaymentStatusUnpaid)
	_, err = f.svc.CreatePaymentURL(ctx, cancelled.ID, "")
	requireCode(t, err, pkgerrors.CodeStateConflict)

	paid := f.seedOrder(t, "100", enums.OrderStatusPending, enums.PaymentStatusPaid)
	_, err = f.svc.CreatePaymentURL(ctx, paid.ID, "")
	requireCode(t, err, pkgerrors.CodeStateConflict)

	cod := f.seedOrder(t, "100", enums.OrderStatusPending, enums.PaymentStatusUnpaid)
	require.NoError(t, f.client.DB().Model(cod).Update("payment_method", enums.PaymentMethodCOD).Error)
	_, err = f.svc.CreatePaymentURL(ctx, cod.ID, "")
	requireCode(t, err, pkgerrors.CodeStateConflict)

	_, err = f.svc.CreatePaymentURL(ctx, 999999, "")
	requireCode(t, err, pkgerrors.CodeNotFound)

	_, err = f.svc.CreatePaymentURL(ctx, 0, "")
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestNewServiceRequiresCollaborators(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)
}
