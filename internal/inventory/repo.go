package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/angelmondragon/phoneshop-backend/internal/repo"
	"github.com/angelmondragon/phoneshop-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/phoneshop-backend/pkg/errors"
	"gorm.io/gorm"
)

// Reservation is a request to take quantity units of a variant out of stock.
type Reservation struct {
	VariantID int64
	Quantity  int
}

// StockShortage is attached to INSUFFICIENT_STOCK errors.
type StockShortage struct {
	VariantID int64 `json:"variant_id"`
	Requested int   `json:"requested"`
	Available int   `json:"available"`
}

// Repository owns the per-variant stock counters.
type Repository struct {
	base repo.Base
}

// NewRepository binds the inventory ledger to a GORM connection.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{base: repo.NewBase(db)}
}

// FindVariants loads the requested variants keyed by id. Missing ids are simply
// absent from the map. Pass the checkout transaction as tx when one is open.
func (r *Repository) FindVariants(ctx context.Context, tx *gorm.DB, ids []int64) (map[int64]models.ProductVariant, error) {
	result := make(map[int64]models.ProductVariant, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var rows []models.ProductVariant
	if err := r.base.Conn(ctx, tx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		result[row.ID] = row
	}
	return result, nil
}

// Reserve decrements stock for every request inside tx. Requests are merged per
// variant and applied in ascending id order so concurrent multi-line checkouts
// take row locks in the same order. Each decrement is a conditional update that
// only matches while enough stock remains; the first miss aborts with
// INSUFFICIENT_STOCK and the caller must roll tx back.
func (r *Repository) Reserve(ctx context.Context, tx *gorm.DB, requests []Reservation) error {
	if tx == nil {
		return fmt.Errorf("reserve requires a transaction")
	}
	merged, err := merge(requests)
	if err != nil {
		return err
	}

	conn := r.base.Conn(ctx, tx)
	for _, req := range merged {
		res := conn.Model(&models.ProductVariant{}).
			Where("id = ? AND stock_quantity >= ?", req.VariantID, req.Quantity).
			Updates(map[string]any{
				"stock_quantity": gorm.Expr("stock_quantity - ?", req.Quantity),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 1 {
			continue
		}
		return r.shortage(conn, req)
	}
	return nil
}

// Release returns stock to the listed variants inside tx.
func (r *Repository) Release(ctx context.Context, tx *gorm.DB, releases []Reservation) error {
	if tx == nil {
		return fmt.Errorf("release requires a transaction")
	}
	merged, err := merge(releases)
	if err != nil {
		return err
	}

	conn := r.base.Conn(ctx, tx)
	for _, rel := range merged {
		res := conn.Model(&models.ProductVariant{}).
			Where("id = ?", rel.VariantID).
			Updates(map[string]any{
				"stock_quantity": gorm.Expr("stock_quantity + ?", rel.Quantity),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("variant %d not found", rel.VariantID))
		}
	}
	return nil
}

func (r *Repository) shortage(conn *gorm.DB, req Reservation) error {
	var variant models.ProductVariant
	if err := conn.Select("id", "stock_quantity").First(&variant, req.VariantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("variant %d not found", req.VariantID))
		}
		return err
	}
	return pkgerrors.New(
		pkgerrors.CodeInsufficientStock,
		fmt.Sprintf("variant %d has %d in stock, %d requested", req.VariantID, variant.StockQuantity, req.Quantity),
	).WithDetails(StockShortage{
		VariantID: req.VariantID,
		Requested: req.Quantity,
		Available: variant.StockQuantity,
	})
}

func merge(requests []Reservation) ([]Reservation, error) {
	totals := make(map[int64]int, len(requests))
	for _, req := range requests {
		if req.Quantity < 1 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("quantity for variant %d must be at least 1", req.VariantID))
		}
		totals[req.VariantID] += req.Quantity
	}
	merged := make([]Reservation, 0, len(totals))
	for id, qty := range totals {
		merged = append(merged, Reservation{VariantID: id, Quantity: qty})
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].VariantID < merged[j].VariantID })
	return merged, nil
}
