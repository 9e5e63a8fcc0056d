package stats

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/phoneshop-backend/pkg/enums"
)

// ChartPoint is one bucket of the revenue chart.
type ChartPoint struct {
	Label   string          `json:"label"`
	Date    string          `json:"date"`
	Revenue decimal.Decimal `json:"revenue"`
}

// Dashboard is the admin revenue overview.
type Dashboard struct {
	Timeframe     enums.StatsTimeframe `json:"timeframe"`
	TotalRevenue  decimal.Decimal      `json:"total_revenue"`
	TotalOrders   int64                `json:"total_orders"`
	TotalProducts int64                `json:"total_products"`
	ChartData     []ChartPoint         `json:"chart_data"`
}

// Totals are the lifetime aggregates shown next to the chart.
type Totals struct {
	Revenue  decimal.Decimal
	Orders   int64
	Products int64
}

// RevenueRow is a single non-cancelled order's contribution to the chart.
type RevenueRow struct {
	OrderDate   time.Time       `gorm:"column:order_date"`
	TotalAmount decimal.Decimal `gorm:"column:total_amount"`
}
