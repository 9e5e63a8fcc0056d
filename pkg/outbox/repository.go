package outbox

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/phoneshop-backend/pkg/db/models"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Insert(tx *gorm.DB, event *models.OutboxEvent) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.Create(event).Error
}

// FetchUnpublishedForPublish locks the oldest unpublished rows that still
// have attempts left. SKIP LOCKED lets several publishers share the table.
func (r *Repository) FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	var rows []models.OutboxEvent
	err := r.conn(tx).
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("published_at IS NULL AND attempt_count < ?", maxAttempts).
		Order("created_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *Repository) MarkPublishedTx(tx *gorm.DB, id int64, at time.Time) error {
	return r.conn(tx).Model(&models.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{"published_at": at, "last_error": nil}).Error
}

func (r *Repository) MarkFailedTx(tx *gorm.DB, id int64, cause error) error {
	return r.conn(tx).Model(&models.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"last_error":    cause.Error(),
			"attempt_count": gorm.Expr("attempt_count + 1"),
		}).Error
}

// MarkTerminalTx parks a row that can never be published by exhausting its
// attempts. The row stays for inspection.
func (r *Repository) MarkTerminalTx(tx *gorm.DB, id int64, cause error, maxAttempts int) error {
	return r.conn(tx).Model(&models.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"last_error":    cause.Error(),
			"attempt_count": maxAttempts,
		}).Error
}

// CountPending reports unpublished rows with attempts left.
func (r *Repository) CountPending(tx *gorm.DB, maxAttempts int) (int64, error) {
	var n int64
	err := r.conn(tx).Model(&models.OutboxEvent{}).
		Where("published_at IS NULL AND attempt_count < ?", maxAttempts).
		Count(&n).Error
	return n, err
}

// DeletePublishedBefore prunes delivered rows. Parked rows are never
// published and so are kept.
func (r *Repository) DeletePublishedBefore(tx *gorm.DB, cutoff time.Time, limit int) (int64, error) {
	conn := r.conn(tx)
	ids := conn.Model(&models.OutboxEvent{}).
		Select("id").
		Where("published_at IS NOT NULL AND published_at < ?", cutoff).
		Order("published_at ASC").
		Limit(limit)
	res := conn.Where("id IN (?)", ids).Delete(&models.OutboxEvent{})
	return res.RowsAffected, res.Error
}

func (r *Repository) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}
