package orders

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/phoneshop-backend/pkg/db/models"
	"github.com/angelmondragon/phoneshop-backend/pkg/enums"
	"github.com/angelmondragon/phoneshop-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// CreateOrder inserts the order and its lines in one statement batch.
func (r *repository) CreateOrder(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	var order models.Order
	err := withLines(r.db.WithContext(ctx)).
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// LockOrder reads the order row with FOR UPDATE so concurrent status and
// payment writers serialize on it.
func (r *repository) LockOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindLines(ctx context.Context, orderID int64) ([]models.OrderLine, error) {
	var lines []models.OrderLine
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("id ASC").
		Find(&lines).Error
	if err != nil {
		return nil, err
	}
	return lines, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Order, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Order{}).Where("user_id = ?", userID)
	return r.page(query, params)
}

func (r *repository) List(ctx context.Context, filters ListFilters, params pagination.Params) ([]models.Order, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Order{})
	if search := strings.TrimSpace(filters.Search); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		if id, err := strconv.ParseInt(strings.TrimPrefix(search, "#"), 10, 64); err == nil {
			query = query.Where("LOWER(customer_name) LIKE ? OR customer_phone LIKE ? OR id = ?", pattern, pattern, id)
		} else {
			query = query.Where("LOWER(customer_name) LIKE ? OR customer_phone LIKE ?", pattern, pattern)
		}
	}
	return r.page(query, params)
}

func (r *repository) page(query *gorm.DB, params pagination.Params) ([]models.Order, int64, error) {
	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.Order
	if total == 0 {
		return rows, 0, nil
	}
	err := withLines(query.Session(&gorm.Session{})).
		Order("order_date DESC").
		Order("id DESC").
		Offset(params.Offset()).
		Limit(params.Limit).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// UpdateStatus moves the order from one status to another. It reports false
// when the row was no longer in the from status. Cancelling also requires the
// order to still be unpaid, so a settled payment always wins over a cancel.
func (r *repository) UpdateStatus(ctx context.Context, orderID int64, from, to enums.OrderStatus, at time.Time) (bool, error) {
	updates := map[string]any{"status": to}
	query := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, from)
	if to == enums.OrderStatusCancelled {
		updates["cancelled_at"] = at
		query = query.Where("payment_status = ?", enums.PaymentStatusUnpaid)
	}
	res := query.Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// MarkPaid settles an unpaid, non-cancelled order. It reports false when the
// order was already paid or cancelled by the time the update ran.
func (r *repository) MarkPaid(ctx context.Context, orderID int64, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND payment_status = ? AND status <> ?", orderID, enums.PaymentStatusUnpaid, enums.OrderStatusCancelled).
		Updates(map[string]any{
			"payment_status": enums.PaymentStatusPaid,
			"paid_at":        at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// RecordCallback inserts the callback unless one with the same signature
// exists. It reports whether the row was inserted.
func (r *repository) RecordCallback(ctx context.Context, callback *models.PaymentCallback) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "signature"}}, DoNothing: true}).
		Create(callback)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) FindCallbackBySignature(ctx context.Context, signature string) (*models.PaymentCallback, error) {
	var callback models.PaymentCallback
	err := r.db.WithContext(ctx).
		Where("signature = ?", signature).
		First(&callback).Error
	if err != nil {
		return nil, err
	}
	return &callback, nil
}

func (r *repository) SetCallbackOutcome(ctx context.Context, callbackID int64, outcome enums.CallbackOutcome) error {
	res := r.db.WithContext(ctx).
		Model(&models.PaymentCallback{}).
		Where("id = ?", callbackID).
		Update("outcome", outcome)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// FindStaleUnpaid returns pending, unpaid orders of the given payment method
// placed before the cutoff, oldest first.
func (r *repository) FindStaleUnpaid(ctx context.Context, method enums.PaymentMethod, placedBefore time.Time, limit int) ([]models.Order, error) {
	var rows []models.Order
	query := r.db.WithContext(ctx).
		Where("payment_method = ? AND status = ? AND payment_status = ? AND order_date < ?",
			method, enums.OrderStatusPending, enums.PaymentStatusUnpaid, placedBefore.UTC()).
		Order("order_date ASC").
		Order("id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func withLines(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("order_lines.id ASC") }).
		Preload("Lines.Variant").
		Preload("Lines.Variant.Product")
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
