package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/phoneshop-backend/internal/inventory"
	"github.com/angelmondragon/phoneshop-backend/pkg/db/models"
	"github.com/angelmondragon/phoneshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/phoneshop-backend/pkg/errors"
	"github.com/angelmondragon/phoneshop-backend/pkg/outbox"
	"github.com/angelmondragon/phoneshop-backend/pkg/pagination"
	"gorm.io/gorm"
)

const (
	// DefaultMyOrdersLimit is the page size of a customer's order history.
	DefaultMyOrdersLimit = 5
	// DefaultAdminListLimit is the page size of the admin order list.
	DefaultAdminListLimit = 10
)

var timeNowUTC = func() time.Time { return time.Now().UTC() }

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// InventoryReleaser returns stock when an order is cancelled.
type InventoryReleaser interface {
	Release(ctx context.Context, tx *gorm.DB, releases []inventory.Reservation) error
}

// EventEmitter queues lifecycle events inside the transition's transaction.
type EventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.Event) error
}

// Option customizes the order service.
type Option func(*service)

// WithEvents emits order.status_changed and order.paid events.
func WithEvents(events EventEmitter) Option {
	return func(s *service) { s.events = events }
}

// Service defines order reads and lifecycle transitions.
type Service interface {
	Get(ctx context.Context, actor Actor, orderID int64) (*OrderDTO, error)
	ListMine(ctx context.Context, actor Actor, params pagination.Params) (*pagination.Page[OrderDTO], error)
	List(ctx context.Context, filters ListFilters, params pagination.Params) (*pagination.Page[OrderDTO], error)
	UpdateStatus(ctx context.Context, actor Actor, orderID int64, target enums.OrderStatus) (*OrderDTO, error)
	UpdatePaymentStatus(ctx context.Context, actor Actor, orderID int64, target enums.PaymentStatus) (*OrderDTO, error)
	ExpireUnpaid(ctx context.Context, orderID int64) (bool, error)
}

type service struct {
	repo      Repository
	tx        txRunner
	inventory InventoryReleaser
	events    EventEmitter
}

// NewService builds an order service with the required dependencies.
func NewService(repo Repository, tx txRunner, inventory InventoryReleaser, opts ...Option) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if inventory == nil {
		return nil, fmt.Errorf("inventory releaser required")
	}
	svc := &service{
		repo:      repo,
		tx:        tx,
		inventory: inventory,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

func (s *service) Get(ctx context.Context, actor Actor, orderID int64) (*OrderDTO, error) {
	if !actor.Authenticated() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	order, err := s.load(ctx, s.repo, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !actor.Owns(order) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to user")
	}
	dto := NewOrderDTO(order)
	return &dto, nil
}

func (s *service) ListMine(ctx context.Context, actor Actor, params pagination.Params) (*pagination.Page[OrderDTO], error) {
	if !actor.Authenticated() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	params = pagination.Normalize(params, DefaultMyOrdersLimit)
	rows, total, err := s.repo.ListByUser(ctx, actor.UserID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list user orders")
	}
	page := pagination.NewPage(newOrderDTOs(rows), total, params)
	return &page, nil
}

func (s *service) List(ctx context.Context, filters ListFilters, params pagination.Params) (*pagination.Page[OrderDTO], error) {
	params = pagination.Normalize(params, DefaultAdminListLimit)
	rows, total, err := s.repo.List(ctx, filters, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	page := pagination.NewPage(newOrderDTOs(rows), total, params)
	return &page, nil
}

// UpdateStatus applies one transition of the order status table. Requesting
// the current status succeeds without side effects. Cancelling returns every
// line's quantity to stock in the same transaction and is refused once the
// order is paid.
func (s *service) UpdateStatus(ctx context.Context, actor Actor, orderID int64, target enums.OrderStatus) (*OrderDTO, error) {
	if !target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid order status %q", target))
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.lock(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if err := authorizeStatusChange(actor, order, target); err != nil {
			return err
		}
		if order.Status == target {
			return nil
		}
		if err := checkTransition(order, target); err != nil {
			return err
		}

		updated, err := repo.UpdateStatus(ctx, order.ID, order.Status, target, timeNowUTC())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if !updated {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order status changed concurrently")
		}

		restocked := target == enums.OrderStatusCancelled
		if restocked {
			if err := s.restock(ctx, tx, repo, order.ID); err != nil {
				return err
			}
		}
		return s.emit(ctx, tx, order.ID, actorRef(actor), enums.OrderEventStatusChanged, outbox.OrderStatusChanged{
			From:      order.Status,
			To:        target,
			Reason:    outbox.ReasonRequested,
			Restocked: restocked,
		})
	})
	if err != nil {
		return nil, err
	}
	return s.reload(ctx, orderID)
}

// UpdatePaymentStatus is the manual override path for staff. Payment status
// only ever moves from unpaid to paid.
func (s *service) UpdatePaymentStatus(ctx context.Context, actor Actor, orderID int64, target enums.PaymentStatus) (*OrderDTO, error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	if !target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payment status %q", target))
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.lock(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if order.PaymentStatus == target {
			return nil
		}
		if target == enums.PaymentStatusUnpaid {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "a paid order cannot be marked unpaid")
		}

		result, err := SettlePayment(ctx, repo, order, timeNowUTC())
		if err != nil {
			return err
		}
		switch result {
		case SettleCancelled:
			return pkgerrors.New(pkgerrors.CodeStateConflict, "a cancelled order cannot be marked paid")
		case SettlePaid:
			return s.emit(ctx, tx, order.ID, actorRef(actor), enums.OrderEventPaid, outbox.OrderPaid{
				Source: outbox.PaidManually,
				Amount: order.TotalAmount,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.reload(ctx, orderID)
}

// ExpireUnpaid cancels an order whose payment window lapsed and returns its
// stock. It reports false without side effects when the order has since been
// paid or has left the pending status.
func (s *service) ExpireUnpaid(ctx context.Context, orderID int64) (bool, error) {
	expired := false
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.lock(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if order.Status != enums.OrderStatusPending || order.PaymentStatus != enums.PaymentStatusUnpaid {
			return nil
		}
		updated, err := repo.UpdateStatus(ctx, order.ID, order.Status, enums.OrderStatusCancelled, timeNowUTC())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel expired order")
		}
		if !updated {
			return nil
		}
		if err := s.restock(ctx, tx, repo, order.ID); err != nil {
			return err
		}
		expired = true
		return s.emit(ctx, tx, order.ID, nil, enums.OrderEventStatusChanged, outbox.OrderStatusChanged{
			From:      enums.OrderStatusPending,
			To:        enums.OrderStatusCancelled,
			Reason:    outbox.ReasonPaymentExpiry,
			Restocked: true,
		})
	})
	if err != nil {
		return false, err
	}
	return expired, nil
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, orderID int64, actor *outbox.ActorRef, kind enums.OrderEventType, data any) error {
	if s.events == nil {
		return nil
	}
	if err := s.events.Emit(ctx, tx, outbox.Event{Type: kind, OrderID: orderID, Actor: actor, Data: data}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue order event")
	}
	return nil
}

func actorRef(actor Actor) *outbox.ActorRef {
	if !actor.Authenticated() {
		return nil
	}
	return &outbox.ActorRef{UserID: actor.UserID.String(), Role: string(actor.Role)}
}

func (s *service) restock(ctx context.Context, tx *gorm.DB, repo Repository, orderID int64) error {
	lines, err := repo.FindLines(ctx, orderID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order lines")
	}
	releases := make([]inventory.Reservation, 0, len(lines))
	for _, line := range lines {
		releases = append(releases, inventory.Reservation{VariantID: line.VariantID, Quantity: line.Quantity})
	}
	if len(releases) == 0 {
		return nil
	}
	if err := s.inventory.Release(ctx, tx, releases); err != nil {
		if pkgerrors.As(err) != nil {
			return err
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restock cancelled order")
	}
	return nil
}

func (s *service) lock(ctx context.Context, repo Repository, orderID int64) (*models.Order, error) {
	order, err := repo.LockOrder(ctx, orderID)
	if err != nil {
		if isNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("order %d not found", orderID))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) load(ctx context.Context, repo Repository, orderID int64) (*models.Order, error) {
	order, err := repo.FindOrder(ctx, orderID)
	if err != nil {
		if isNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("order %d not found", orderID))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) reload(ctx context.Context, orderID int64) (*OrderDTO, error) {
	order, err := s.load(ctx, s.repo, orderID)
	if err != nil {
		return nil, err
	}
	dto := NewOrderDTO(order)
	return &dto, nil
}
