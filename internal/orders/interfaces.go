package orders

import (
	"context"
	"time"

	"github.com/angelmondragon/phoneshop-backend/pkg/db/models"
	"github.com/angelmondragon/phoneshop-backend/pkg/enums"
	"github.com/angelmondragon/phoneshop-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository defines persistence operations for the order ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) error
	FindOrder(ctx context.Context, orderID int64) (*models.Order, error)
	LockOrder(ctx context.Context, orderID int64) (*models.Order, error)
	FindLines(ctx context.Context, orderID int64) ([]models.OrderLine, error)
	ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Order, int64, error)
	List(ctx context.Context, filters ListFilters, params pagination.Params) ([]models.Order, int64, error)
	UpdateStatus(ctx context.Context, orderID int64, from, to enums.OrderStatus, at time.Time) (bool, error)
	MarkPaid(ctx context.Context, orderID int64, at time.Time) (bool, error)
	RecordCallback(ctx context.Context, callback *models.PaymentCallback) (bool, error)
	FindCallbackBySignature(ctx context.Context, signature string) (*models.PaymentCallback, error)
	SetCallbackOutcome(ctx context.Context, callbackID int64, outcome enums.CallbackOutcome) error
	FindStaleUnpaid(ctx context.Context, method enums.PaymentMethod, placedBefore time.Time, limit int) ([]models.Order, error)
}
