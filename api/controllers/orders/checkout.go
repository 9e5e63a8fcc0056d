package orders

import (
	"net/http"

	"github.com/angelmondragon/phoneshop-backend/api/middleware"
	"github.com/angelmondragon/phoneshop-backend/api/responses"
	"github.com/angelmondragon/phoneshop-backend/api/validators"
	"github.com/angelmondragon/phoneshop-backend/internal/checkout"
	pkgerrors "github.com/angelmondragon/phoneshop-backend/pkg/errors"
	"github.com/angelmondragon/phoneshop-backend/pkg/logger"
)

type placeOrderRequest struct {
	CustomerName    string               `json:"customer_name"`
	CustomerPhone   string               `json:"customer_phone"`
	ShippingAddress string               `json:"shipping_address"`
	PaymentMethod   string               `json:"payment_method"`
	Items           []checkout.LineInput `json:"items"`
}

// PlaceOrder runs checkout for anonymous or authenticated buyers. Field level
// validation happens in the checkout service so every problem is reported at once.
func PlaceOrder(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var req placeOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := checkout.PlaceOrderInput{
			CustomerName:    req.CustomerName,
			CustomerPhone:   req.CustomerPhone,
			ShippingAddress: req.ShippingAddress,
			PaymentMethod:   req.PaymentMethod,
			Lines:           req.Items,
		}
		if userID, ok := middleware.UserUUIDFromContext(r.Context()); ok {
			input.UserID = &userID
		}

		result, err := svc.PlaceOrder(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, checkoutError(err))
			return
		}

		if logg != nil {
			ctx := logg.WithOrderID(r.Context(), result.OrderID)
			logg.Info(ctx, "order placed")
		}
		responses.WriteSuccess(w, result)
	}
}

// checkoutError answers an unknown variant in the cart as a bad line (400)
// while keeping the NOT_FOUND code in the body.
func checkoutError(err error) error {
	if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeNotFound {
		return typed.WithHTTPStatus(http.StatusBadRequest)
	}
	return err
}
