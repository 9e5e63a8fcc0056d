package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/phoneshop-backend/pkg/db"
	"github.com/angelmondragon/phoneshop-backend/pkg/db/models"
	"github.com/angelmondragon/phoneshop-backend/pkg/enums"
)

type seedOrderInput struct {
	UserID   *uuid.UUID
	Name     string
	Phone    string
	Status   enums.OrderStatus
	Paid     bool
	Method   enums.PaymentMethod
	OrderAt  time.Time
	Variant  models.ProductVariant
	Quantity int
}

func seedOrder(t *testing.T, client *db.Client, in seedOrderInput) *models.Order {
	t.Helper()
	if in.Name == "" {
		in.Name = "Nguyen Van A"
	}
	if in.Phone == "" {
		in.Phone = "0901234567"
	}
	if in.Status == "" {
		in.Status = enums.OrderStatusPending
	}
	if in.OrderAt.IsZero() {
		in.OrderAt = time.Now().UTC()
	}
	if in.Quantity == 0 {
		in.Quantity = 1
	}
	if in.Method == "" {
		in.Method = enums.PaymentMethodCOD
	}
	paymentStatus := enums.PaymentStatusUnpaid
	if in.Paid {
		paymentStatus = enums.PaymentStatusPaid
	}
	line := models.OrderLine{
		VariantID: in.Variant.ID,
		Quantity:  in.Quantity,
		UnitPrice: in.Variant.Price,
	}
	order := &models.Order{
		UserID:          in.UserID,
		CustomerName:    in.Name,
		CustomerPhone:   in.Phone,
		ShippingAddress: "12 Le Loi, District 1",
		OrderDate:       in.OrderAt.UTC(),
		TotalAmount:     line.UnitPrice.Mul(decimal.NewFromInt(int64(in.Quantity))),
		Status:          in.Status,
		PaymentMethod:   in.Method,
		PaymentStatus:   paymentStatus,
		Lines:           []models.OrderLine{line},
	}
	if err := NewRepository(client.DB()).CreateOrder(context.Background(), order); err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return order
}

func ptrUUID(id uuid.UUID) *uuid.UUID {
	return &id
}
