package enums

import (
	"fmt"
	"strings"
)

// PaymentStatus tracks whether an order has been settled.
type PaymentStatus string

const (
	PaymentStatusUnpaid PaymentStatus = "unpaid"
	PaymentStatusPaid   PaymentStatus = "paid"
)

var validPaymentStatuses = []PaymentStatus{
	PaymentStatusUnpaid,
	PaymentStatusPaid,
}

// String implements fmt.Stringer.
func (p PaymentStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentStatus.
func (p PaymentStatus) IsValid() bool {
	for _, candidate := range validPaymentStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentStatus converts raw input into a PaymentStatus.
func ParsePaymentStatus(value string) (PaymentStatus, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validPaymentStatuses {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment status %q", value)
}
