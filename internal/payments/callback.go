package payments

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/phoneshop-backend/pkg/errors"
)

// Callback is the parsed form of a gateway callback.
type Callback struct {
	OrderID       int64
	Amount        decimal.Decimal
	ResponseCode  string
	TransactionNo string
	SecureHash    string
	Payload       string
}

// ParseCallback extracts the fields the reconciler needs. Missing or garbled
// fields are a VALIDATION_ERROR.
func ParseCallback(params url.Values) (*Callback, error) {
	var missing []string
	for _, key := range []string{ParamSecureHash, ParamTxnRef, ParamResponseCode, ParamAmount} {
		if strings.TrimSpace(params.Get(key)) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "callback is missing required parameters").
			WithDetails(map[string]any{"missing": missing})
	}

	orderID, err := strconv.ParseInt(strings.TrimSpace(params.Get(ParamTxnRef)), 10, 64)
	if err != nil || orderID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid order reference %q", params.Get(ParamTxnRef)))
	}

	minor, err := decimal.NewFromString(strings.TrimSpace(params.Get(ParamAmount)))
	if err != nil || minor.IsNegative() || !minor.Equal(minor.Truncate(0)) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid amount %q", params.Get(ParamAmount)))
	}

	return &Callback{
		OrderID:       orderID,
		Amount:        minor.Div(hundred),
		ResponseCode:  strings.TrimSpace(params.Get(ParamResponseCode)),
		TransactionNo: strings.TrimSpace(params.Get(ParamTransactionNo)),
		SecureHash:    strings.ToLower(strings.TrimSpace(params.Get(ParamSecureHash))),
		Payload:       params.Encode(),
	}, nil
}
