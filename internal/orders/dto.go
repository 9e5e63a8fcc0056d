package orders

import (
	"time"

	"github.com/angelmondragon/phoneshop-backend/pkg/db/models"
	"github.com/angelmondragon/phoneshop-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ListFilters describe the inputs supported by the admin orders list.
type ListFilters struct {
	// Search matches customer name or phone by substring, or the order id exactly.
	Search string
}

// Actor is the authenticated caller requesting an order operation. The zero
// value is an anonymous caller.
type Actor struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

// IsAdmin reports whether the actor carries the administrative capability.
func (a Actor) IsAdmin() bool {
	return a.Role == enums.UserRoleAdmin
}

// Authenticated reports whether the actor carries a user identity.
func (a Actor) Authenticated() bool {
	return a.UserID != uuid.Nil
}

// Owns reports whether the order was placed by the actor.
func (a Actor) Owns(order *models.Order) bool {
	return a.Authenticated() && order != nil && order.UserID != nil && *order.UserID == a.UserID
}

// OrderLineDTO exposes one priced line of an order.
type OrderLineDTO struct {
	ID          int64           `json:"id"`
	VariantID   int64           `json:"variant_id"`
	ProductID   *int64          `json:"product_id,omitempty"`
	ProductName string          `json:"product_name,omitempty"`
	Color       string          `json:"color,omitempty"`
	Ram         string          `json:"ram,omitempty"`
	Rom         string          `json:"rom,omitempty"`
	ImageURL    *string         `json:"image_url,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

// OrderDTO is the client-facing order representation.
type OrderDTO struct {
	ID              int64               `json:"id"`
	UserID          *uuid.UUID          `json:"user_id,omitempty"`
	CustomerName    string              `json:"customer_name"`
	CustomerPhone   string              `json:"customer_phone"`
	ShippingAddress string              `json:"shipping_address"`
	OrderDate       time.Time           `json:"order_date"`
	TotalAmount     decimal.Decimal     `json:"total_amount"`
	Status          enums.OrderStatus   `json:"status"`
	PaymentMethod   enums.PaymentMethod `json:"payment_method"`
	PaymentStatus   enums.PaymentStatus `json:"payment_status"`
	PaidAt          *time.Time          `json:"paid_at,omitempty"`
	CancelledAt     *time.Time          `json:"cancelled_at,omitempty"`
	ItemCount       int                 `json:"item_count"`
	Lines           []OrderLineDTO      `json:"lines"`
}

// NewOrderDTO maps a loaded order (with lines preloaded) onto its DTO.
func NewOrderDTO(order *models.Order) OrderDTO {
	dto := OrderDTO{
		ID:              order.ID,
		UserID:          order.UserID,
		CustomerName:    order.CustomerName,
		CustomerPhone:   order.CustomerPhone,
		ShippingAddress: order.ShippingAddress,
		OrderDate:       order.OrderDate,
		TotalAmount:     order.TotalAmount,
		Status:          order.Status,
		PaymentMethod:   order.PaymentMethod,
		PaymentStatus:   order.PaymentStatus,
		PaidAt:          order.PaidAt,
		CancelledAt:     order.CancelledAt,
		Lines:           make([]OrderLineDTO, 0, len(order.Lines)),
	}
	for _, line := range order.Lines {
		dto.ItemCount += line.Quantity
		lineDTO := OrderLineDTO{
			ID:        line.ID,
			VariantID: line.VariantID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			Subtotal:  line.Subtotal(),
		}
		if v := line.Variant; v != nil {
			lineDTO.ProductID = v.ProductID
			lineDTO.Color = v.Color
			lineDTO.Ram = v.Ram
			lineDTO.Rom = v.Rom
			lineDTO.ImageURL = v.ImageURL
			if v.Product != nil {
				lineDTO.ProductName = v.Product.Name
			}
		}
		dto.Lines = append(dto.Lines, lineDTO)
	}
	return dto
}

func newOrderDTOs(rows []models.Order) []OrderDTO {
	out := make([]OrderDTO, 0, len(rows))
	for i := range rows {
		out = append(out, NewOrderDTO(&rows[i]))
	}
	return out
}
