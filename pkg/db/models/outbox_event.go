package models

import (
	"time"

	"github.com/angelmondragon/phoneshop-backend/pkg/enums"
)

// OutboxEvent is an order event written in the same transaction as the state
// change it describes. The publisher sets PublishedAt once the broker acks.
type OutboxEvent struct {
	ID           int64                `gorm:"column:id;primaryKey;autoIncrement"`
	EventID      string               `gorm:"column:event_id;not null;uniqueIndex"`
	EventType    enums.OrderEventType `gorm:"column:event_type;type:text;not null"`
	OrderID      int64                `gorm:"column:order_id;not null;index"`
	Payload      string               `gorm:"column:payload;type:text;not null"`
	AttemptCount int                  `gorm:"column:attempt_count;not null;default:0"`
	LastError    *string              `gorm:"column:last_error"`
	PublishedAt  *time.Time           `gorm:"column:published_at;index"`
	CreatedAt    time.Time            `gorm:"column:created_at;autoCreateTime"`
}
