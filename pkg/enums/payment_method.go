package enums

import (
	"fmt"
	"strings"
)

// PaymentMethod describes how a customer intends to settle an order.
type PaymentMethod string

const (
	PaymentMethodCOD     PaymentMethod = "cod"
	PaymentMethodGateway PaymentMethod = "gateway"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodCOD,
	PaymentMethodGateway,
}

var paymentMethodAliases = map[string]PaymentMethod{
	"cash":  PaymentMethodCOD,
	"vnpay": PaymentMethodGateway,
}

// String implements fmt.Stringer.
func (p PaymentMethod) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentMethod.
func (p PaymentMethod) IsValid() bool {
	for _, candidate := range validPaymentMethods {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentMethod converts raw input into a PaymentMethod. An empty value
// defaults to cash on delivery.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return PaymentMethodCOD, nil
	}
	for _, candidate := range validPaymentMethods {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	if alias, ok := paymentMethodAliases[normalized]; ok {
		return alias, nil
	}
	return "", fmt.Errorf("invalid payment method %q", value)
}
