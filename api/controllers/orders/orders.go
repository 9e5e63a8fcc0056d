package orders

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/angelmondragon/phoneshop-backend/api/middleware"
	"github.com/angelmondragon/phoneshop-backend/api/responses"
	"github.com/angelmondragon/phoneshop-backend/api/validators"
	internalorders "github.com/angelmondragon/phoneshop-backend/internal/orders"
	"github.com/angelmondragon/phoneshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/phoneshop-backend/pkg/errors"
	"github.com/angelmondragon/phoneshop-backend/pkg/logger"
	"github.com/angelmondragon/phoneshop-backend/pkg/pagination"
)

const maxSearchLen = 100

// MyOrders returns the caller's order history, newest first.
func MyOrders(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		params, err := parsePage(r, internalorders.DefaultMyOrdersLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.ListMine(r.Context(), actorFrom(r), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// List returns every order for the admin console.
func List(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		params, err := parsePage(r, internalorders.DefaultAdminListLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filters := internalorders.ListFilters{
			Search: validators.SanitizeString(r.URL.Query().Get("search"), maxSearchLen),
		}
		page, err := svc.List(r.Context(), filters, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// Get returns one order to its owner or an admin.
func Get(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		orderID, err := validators.ParseIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithOrderID(ctx, orderID)
		}
		order, err := svc.Get(ctx, actorFrom(r), orderID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// UpdateStatus applies an order status transition. The body is a bare JSON
// string such as "Shipping"; {"status": "..."} is accepted too.
func UpdateStatus(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		orderID, err := validators.ParseIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		raw, err := decodeStatusBody(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		target, err := enums.ParseOrderStatus(raw)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order status").
				WithDetails(map[string]any{"status": raw}))
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithOrderID(ctx, orderID)
		}
		order, err := svc.UpdateStatus(ctx, actorFrom(r), orderID, target)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if logg != nil {
			logg.Info(logg.WithField(ctx, "status", string(order.Status)), "order status updated")
		}
		responses.WriteSuccess(w, order)
	}
}

// UpdatePaymentStatus is the admin manual payment override.
func UpdatePaymentStatus(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		orderID, err := validators.ParseIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		raw, err := decodeStatusBody(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		target, err := enums.ParsePaymentStatus(raw)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment status").
				WithDetails(map[string]any{"payment_status": raw}))
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithOrderID(ctx, orderID)
		}
		order, err := svc.UpdatePaymentStatus(ctx, actorFrom(r), orderID, target)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

func actorFrom(r *http.Request) internalorders.Actor {
	userID, ok := middleware.UserUUIDFromContext(r.Context())
	if !ok {
		return internalorders.Actor{}
	}
	return internalorders.Actor{
		UserID: userID,
		Role:   middleware.RoleEnumFromContext(r.Context()),
	}
}

func parsePage(r *http.Request, defaultLimit int) (pagination.Params, error) {
	page, err := validators.ParseQueryInt(r, "page", pagination.DefaultPage, 1, 1_000_000)
	if err != nil {
		return pagination.Params{}, err
	}
	limit, err := validators.ParseQueryInt(r, "limit", defaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.Params{}, err
	}
	return pagination.Params{Page: page, Limit: limit}, nil
}

func decodeStatusBody(r *http.Request) (string, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1024))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body")
	}
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "status is required")
	}

	var value string
	if err := json.Unmarshal([]byte(trimmed), &value); err == nil {
		return value, nil
	}
	var wrapped struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal([]byte(trimmed), &wrapped); err == nil && wrapped.Status != "" {
		return wrapped.Status, nil
	}
	return "", pkgerrors.New(pkgerrors.CodeValidation, "body must be a JSON string status")
}
