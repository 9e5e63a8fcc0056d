package helpers

import (
	"fmt"
	"strings"

	"github.com/angelmondragon/phoneshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/phoneshop-backend/pkg/errors"
)

// Contact holds the buyer fields collected at checkout.
type Contact struct {
	Name    string
	Phone   string
	Address string
}

// LineRequest is one (variant, quantity) pair of a cart.
type LineRequest struct {
	VariantID int64
	Quantity  int
}

// FieldError names one invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// NormalizeContact trims the contact fields; phone numbers also lose inner spaces.
func NormalizeContact(c Contact) Contact {
	return Contact{
		Name:    strings.TrimSpace(c.Name),
		Phone:   strings.ReplaceAll(strings.TrimSpace(c.Phone), " ", ""),
		Address: strings.TrimSpace(c.Address),
	}
}

// ValidateCheckout checks contact fields, the payment method and every cart
// line, returning a VALIDATION_ERROR listing all problems at once.
func ValidateCheckout(contact Contact, method string, lines []LineRequest) (enums.PaymentMethod, error) {
	var problems []FieldError
	if contact.Name == "" {
		problems = append(problems, FieldError{Field: "customer_name", Message: "is required"})
	}
	if contact.Phone == "" {
		problems = append(problems, FieldError{Field: "customer_phone", Message: "is required"})
	}
	if contact.Address == "" {
		problems = append(problems, FieldError{Field: "shipping_address", Message: "is required"})
	}

	paymentMethod, err := enums.ParsePaymentMethod(method)
	if err != nil {
		problems = append(problems, FieldError{Field: "payment_method", Message: err.Error()})
	}

	if len(lines) == 0 {
		problems = append(problems, FieldError{Field: "items", Message: "at least one item is required"})
	}
	for i, line := range lines {
		if line.VariantID <= 0 {
			problems = append(problems, FieldError{Field: fmt.Sprintf("items[%d].variant_id", i), Message: "must be positive"})
		}
		if line.Quantity < 1 {
			problems = append(problems, FieldError{Field: fmt.Sprintf("items[%d].quantity", i), Message: "must be at least 1"})
		}
	}

	if len(problems) > 0 {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "invalid checkout request").WithDetails(problems)
	}
	return paymentMethod, nil
}
