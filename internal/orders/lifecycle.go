package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/phoneshop-backend/pkg/db/models"
	"github.com/angelmondragon/phoneshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/phoneshop-backend/pkg/errors"
)

var statusTransitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending:  {enums.OrderStatusShipping, enums.OrderStatusCancelled},
	enums.OrderStatusShipping: {enums.OrderStatusCompleted},
}

// CanTransition reports whether the status table allows from -> to.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// authorizeStatusChange applies the actor rules: admins may request any
// transition, owners may only cancel their own order, everyone else is refused.
func authorizeStatusChange(actor Actor, order *models.Order, target enums.OrderStatus) error {
	if !actor.Authenticated() {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	if actor.IsAdmin() {
		return nil
	}
	if !actor.Owns(order) {
		return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to user")
	}
	if target != enums.OrderStatusCancelled {
		return pkgerrors.New(pkgerrors.CodeForbidden, "customers may only cancel their orders")
	}
	return nil
}

func checkTransition(order *models.Order, target enums.OrderStatus) error {
	if target == enums.OrderStatusCancelled && order.PaymentStatus == enums.PaymentStatusPaid {
		return pkgerrors.New(
			pkgerrors.CodeStateConflict,
			fmt.Sprintf("order %d is already paid and cannot be cancelled", order.ID),
		).WithDetails(map[string]any{
			"current_status": order.Status,
			"payment_status": order.PaymentStatus,
		})
	}
	if CanTransition(order.Status, target) {
		return nil
	}
	return pkgerrors.New(
		pkgerrors.CodeStateConflict,
		fmt.Sprintf("order %d cannot move from %s to %s", order.ID, order.Status, target),
	).WithDetails(map[string]any{
		"current_status":   order.Status,
		"requested_status": target,
	})
}

// SettleResult describes what settling a payment did to the order.
type SettleResult string

const (
	SettlePaid        SettleResult = "paid"
	SettleAlreadyPaid SettleResult = "already_paid"
	SettleCancelled   SettleResult = "cancelled"
)

// SettlePayment moves an order's payment status from unpaid to paid. Already
// paid orders are reported without side effects; cancelled orders are never
// settled. repo must be bound to the caller's transaction.
func SettlePayment(ctx context.Context, repo Repository, order *models.Order, at time.Time) (SettleResult, error) {
	if order.PaymentStatus == enums.PaymentStatusPaid {
		return SettleAlreadyPaid, nil
	}
	if order.Status == enums.OrderStatusCancelled {
		return SettleCancelled, nil
	}

	updated, err := repo.MarkPaid(ctx, order.ID, at)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order paid")
	}
	if updated {
		order.PaymentStatus = enums.PaymentStatusPaid
		order.PaidAt = &at
		return SettlePaid, nil
	}

	// Lost a race with another writer; report whatever state won.
	current, err := repo.LockOrder(ctx, order.ID)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
	}
	*order = *current
	if current.PaymentStatus == enums.PaymentStatusPaid {
		return SettleAlreadyPaid, nil
	}
	if current.Status == enums.OrderStatusCancelled {
		return SettleCancelled, nil
	}
	return "", pkgerrors.New(pkgerrors.CodeInternal, "order payment state could not be resolved")
}
