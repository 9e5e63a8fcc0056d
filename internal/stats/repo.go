package stats

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/phoneshop-backend/internal/repo"
	"github.com/angelmondragon/phoneshop-backend/pkg/db/models"
	"github.com/angelmondragon/phoneshop-backend/pkg/enums"
)

// Repository reads revenue aggregates from the order ledger.
type Repository interface {
	Totals(ctx context.Context) (*Totals, error)
	RevenueBetween(ctx context.Context, from, to time.Time) ([]RevenueRow, error)
}

type repository struct {
	base repo.Base
}

// NewRepository builds a read-only stats repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) Totals(ctx context.Context) (*Totals, error) {
	db := r.base.DB(ctx)

	var revenue struct {
		Total decimal.Decimal
	}
	if err := db.Model(&models.Order{}).
		Select("COALESCE(SUM(total_amount), 0) AS total").
		Where("status <> ?", enums.OrderStatusCancelled).
		Scan(&revenue).Error; err != nil {
		return nil, err
	}

	var orders int64
	if err := db.Model(&models.Order{}).Count(&orders).Error; err != nil {
		return nil, err
	}
	var products int64
	if err := db.Model(&models.Product{}).Count(&products).Error; err != nil {
		return nil, err
	}

	return &Totals{
		Revenue:  revenue.Total.Round(2),
		Orders:   orders,
		Products: products,
	}, nil
}

// RevenueBetween returns non-cancelled orders placed in [from, to).
func (r *repository) RevenueBetween(ctx context.Context, from, to time.Time) ([]RevenueRow, error) {
	var rows []RevenueRow
	err := r.base.DB(ctx).
		Model(&models.Order{}).
		Select("order_date, total_amount").
		Where("status <> ?", enums.OrderStatusCancelled).
		Where("order_date >= ? AND order_date < ?", from.UTC(), to.UTC()).
		Order("order_date ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
