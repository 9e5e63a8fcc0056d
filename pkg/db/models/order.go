package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/phoneshop-backend/pkg/enums"
)

// Order is one customer transaction. Rows are never deleted.
type Order struct {
	ID              int64               `gorm:"column:id;primaryKey;autoIncrement"`
	UserID          *uuid.UUID          `gorm:"column:user_id;type:uuid;index"`
	CustomerName    string              `gorm:"column:customer_name;not null"`
	CustomerPhone   string              `gorm:"column:customer_phone;not null"`
	ShippingAddress string              `gorm:"column:shipping_address;not null"`
	OrderDate       time.Time           `gorm:"column:order_date;not null;index"`
	TotalAmount     decimal.Decimal     `gorm:"column:total_amount;type:numeric(18,2);not null"`
	Status          enums.OrderStatus   `gorm:"column:status;type:text;not null;default:'pending'"`
	PaymentMethod   enums.PaymentMethod `gorm:"column:payment_method;type:text;not null;default:'cod'"`
	PaymentStatus   enums.PaymentStatus `gorm:"column:payment_status;type:text;not null;default:'unpaid'"`
	PaidAt          *time.Time          `gorm:"column:paid_at"`
	CancelledAt     *time.Time          `gorm:"column:cancelled_at"`
	Lines           []OrderLine         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
