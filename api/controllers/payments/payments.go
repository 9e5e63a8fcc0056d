package payments

import (
	"net"
	"net/http"
	"strings"

	"github.com/angelmondragon/phoneshop-backend/api/responses"
	"github.com/angelmondragon/phoneshop-backend/api/validators"
	internalpayments "github.com/angelmondragon/phoneshop-backend/internal/payments"
	pkgerrors "github.com/angelmondragon/phoneshop-backend/pkg/errors"
	"github.com/angelmondragon/phoneshop-backend/pkg/logger"
)

type createPaymentURLRequest struct {
	OrderID int64 `json:"order_id" validate:"required,gt=0"`
}

// CreatePaymentURL signs a gateway redirect for an unpaid order.
func CreatePaymentURL(svc internalpayments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		var req createPaymentURLRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := validators.ValidateStruct(&req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithOrderID(ctx, req.OrderID)
		}
		result, err := svc.CreatePaymentURL(ctx, req.OrderID, clientIP(r))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// PaymentCallback receives the gateway return. Processed callbacks always
// answer 200 with the structured outcome; only malformed or forged requests
// are rejected.
func PaymentCallback(svc internalpayments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		result, err := svc.HandleCallback(r.Context(), r.URL.Query())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first := strings.TrimSpace(strings.Split(forwarded, ",")[0])
		if net.ParseIP(first) != nil {
			return first
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(realIP) != nil {
		return realIP
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
