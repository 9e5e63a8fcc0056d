package enums

import (
	"fmt"
	"strings"
)

// OrderStatus tracks the fulfillment lifecycle of an order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusShipping  OrderStatus = "shipping"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusShipping,
	OrderStatusCompleted,
	OrderStatusCancelled,
}

// String implements fmt.Stringer.
func (o OrderStatus) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OrderStatus.
func (o OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == o {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible.
func (o OrderStatus) IsTerminal() bool {
	return o == OrderStatusCompleted || o == OrderStatusCancelled
}

// ParseOrderStatus converts raw input into an OrderStatus. Matching is
// case-insensitive so legacy values such as "Shipping" are accepted.
func ParseOrderStatus(value string) (OrderStatus, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validOrderStatuses {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
