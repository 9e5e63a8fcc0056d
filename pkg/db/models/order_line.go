package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderLine snapshots the variant price at checkout; it is never recomputed.
type OrderLine struct {
	ID        int64           `gorm:"column:id;primaryKey;autoIncrement"`
	OrderID   int64           `gorm:"column:order_id;not null;index"`
	VariantID int64           `gorm:"column:variant_id;not null;index"`
	Quantity  int             `gorm:"column:quantity;not null;check:chk_order_lines_quantity,quantity >= 1"`
	UnitPrice decimal.Decimal `gorm:"column:unit_price;type:numeric(18,2);not null"`
	Variant   *ProductVariant `gorm:"foreignKey:VariantID;constraint:OnDelete:RESTRICT"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}

// Subtotal returns unit price times quantity.
func (l OrderLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}
