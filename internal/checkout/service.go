package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/phoneshop-backend/internal/checkout/helpers"
	"github.com/angelmondragon/phoneshop-backend/internal/inventory"
	"github.com/angelmondragon/phoneshop-backend/internal/orders"
	"github.com/angelmondragon/phoneshop-backend/pkg/db/models"
	"github.com/angelmondragon/phoneshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/phoneshop-backend/pkg/errors"
	"github.com/angelmondragon/phoneshop-backend/pkg/outbox"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var timeNowUTC = func() time.Time { return time.Now().UTC() }

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type stockLedger interface {
	FindVariants(ctx context.Context, tx *gorm.DB, ids []int64) (map[int64]models.ProductVariant, error)
	Reserve(ctx context.Context, tx *gorm.DB, requests []inventory.Reservation) error
}

type checkoutMetrics interface {
	IncCheckout(result string)
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.Event) error
}

// Option customizes the checkout service.
type Option func(*service)

// WithEvents queues an order.placed event in the checkout transaction.
func WithEvents(events eventEmitter) Option {
	return func(s *service) { s.events = events }
}

// Service executes checkout orchestration.
type Service interface {
	PlaceOrder(ctx context.Context, input PlaceOrderInput) (*PlaceOrderResult, error)
}

// LineInput is one requested (variant, quantity) pair.
type LineInput struct {
	VariantID int64 `json:"variant_id"`
	Quantity  int   `json:"quantity"`
}

// PlaceOrderInput captures the buyer's checkout request.
type PlaceOrderInput struct {
	// UserID is set when the buyer is authenticated; anonymous orders leave it nil.
	UserID          *uuid.UUID
	CustomerName    string
	CustomerPhone   string
	ShippingAddress string
	PaymentMethod   string
	Lines           []LineInput
}

// PlaceOrderResult is returned for a committed order.
type PlaceOrderResult struct {
	OrderID       int64               `json:"order_id"`
	TotalAmount   decimal.Decimal     `json:"total_amount"`
	Status        enums.OrderStatus   `json:"status"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	PaymentStatus enums.PaymentStatus `json:"payment_status"`
	OrderDate     time.Time           `json:"order_date"`
}

type service struct {
	tx         txRunner
	ordersRepo orders.Repository
	stock      stockLedger
	metrics    checkoutMetrics
	events     eventEmitter
}

// NewService builds the checkout service. metrics may be nil.
func NewService(tx txRunner, ordersRepo orders.Repository, stock stockLedger, metrics checkoutMetrics, opts ...Option) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if stock == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	svc := &service{
		tx:         tx,
		ordersRepo: ordersRepo,
		stock:      stock,
		metrics:    metrics,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// PlaceOrder validates the cart, then in one transaction looks up every
// variant, snapshots prices, decrements stock and writes the order with its
// lines. Any failure leaves stock and the ledger untouched.
func (s *service) PlaceOrder(ctx context.Context, input PlaceOrderInput) (*PlaceOrderResult, error) {
	result, err := s.placeOrder(ctx, input)
	s.observe(err)
	return result, err
}

func (s *service) placeOrder(ctx context.Context, input PlaceOrderInput) (*PlaceOrderResult, error) {
	contact := helpers.NormalizeContact(helpers.Contact{
		Name:    input.CustomerName,
		Phone:   input.CustomerPhone,
		Address: input.ShippingAddress,
	})
	requested := make([]helpers.LineRequest, 0, len(input.Lines))
	for _, line := range input.Lines {
		requested = append(requested, helpers.LineRequest{VariantID: line.VariantID, Quantity: line.Quantity})
	}
	method, err := helpers.ValidateCheckout(contact, input.PaymentMethod, requested)
	if err != nil {
		return nil, err
	}
	lines := helpers.GroupLinesByVariant(requested)

	var order *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		variants, err := s.stock.FindVariants(ctx, tx, helpers.VariantIDs(lines))
		if err != nil {
			return err
		}
		priced, total, err := helpers.PriceLines(lines, variants)
		if err != nil {
			return err
		}

		reservations := make([]inventory.Reservation, 0, len(lines))
		for _, line := range lines {
			reservations = append(reservations, inventory.Reservation{VariantID: line.VariantID, Quantity: line.Quantity})
		}
		if err := s.stock.Reserve(ctx, tx, reservations); err != nil {
			return err
		}

		order = &models.Order{
			UserID:          input.UserID,
			CustomerName:    contact.Name,
			CustomerPhone:   contact.Phone,
			ShippingAddress: contact.Address,
			OrderDate:       timeNowUTC(),
			TotalAmount:     total,
			Status:          enums.OrderStatusPending,
			PaymentMethod:   method,
			PaymentStatus:   enums.PaymentStatusUnpaid,
			Lines:           priced,
		}
		if err := s.ordersRepo.WithTx(tx).CreateOrder(ctx, order); err != nil {
			return err
		}
		return s.emitPlaced(ctx, tx, order)
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "order was not placed")
	}

	return &PlaceOrderResult{
		OrderID:       order.ID,
		TotalAmount:   order.TotalAmount,
		Status:        order.Status,
		PaymentMethod: order.PaymentMethod,
		PaymentStatus: order.PaymentStatus,
		OrderDate:     order.OrderDate,
	}, nil
}

func (s *service) emitPlaced(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	if s.events == nil {
		return nil
	}
	lines := make([]outbox.OrderLine, 0, len(order.Lines))
	for _, line := range order.Lines {
		lines = append(lines, outbox.OrderLine{VariantID: line.VariantID, Quantity: line.Quantity, UnitPrice: line.UnitPrice})
	}
	var actor *outbox.ActorRef
	if order.UserID != nil {
		actor = &outbox.ActorRef{UserID: order.UserID.String(), Role: string(enums.UserRoleCustomer)}
	}
	return s.events.Emit(ctx, tx, outbox.Event{
		Type:       enums.OrderEventPlaced,
		OrderID:    order.ID,
		Actor:      actor,
		OccurredAt: order.OrderDate,
		Data: outbox.OrderPlaced{
			TotalAmount:   order.TotalAmount,
			PaymentMethod: order.PaymentMethod,
			Lines:         lines,
		},
	})
}

func (s *service) observe(err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.IncCheckout(resultLabel(err))
}

func resultLabel(err error) string {
	if err == nil {
		return "placed"
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		return "failed"
	}
	switch typed.Code() {
	case pkgerrors.CodeInsufficientStock:
		return "insufficient_stock"
	case pkgerrors.CodeNotFound:
		return "not_found"
	case pkgerrors.CodeValidation:
		return "invalid"
	default:
		return "failed"
	}
}
