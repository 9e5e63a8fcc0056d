package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductVariant is the unit that carries price and stock.
type ProductVariant struct {
	ID            int64           `gorm:"column:id;primaryKey;autoIncrement"`
	ProductID     *int64          `gorm:"column:product_id"`
	Color         string          `gorm:"column:color;not null;default:''"`
	Ram           string          `gorm:"column:ram;not null;default:''"`
	Rom           string          `gorm:"column:rom;not null;default:''"`
	ImageURL      *string         `gorm:"column:image_url"`
	Price         decimal.Decimal `gorm:"column:price;type:numeric(18,2);not null"`
	StockQuantity int             `gorm:"column:stock_quantity;not null;default:0;check:chk_product_variants_stock,stock_quantity >= 0"`
	Product       *Product        `gorm:"foreignKey:ProductID"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
