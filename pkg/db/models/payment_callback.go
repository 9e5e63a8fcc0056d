package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/phoneshop-backend/pkg/enums"
)

// PaymentCallback records every verified gateway callback. The signature is
// unique so a redelivered callback maps onto the first record.
type PaymentCallback struct {
	ID            int64                 `gorm:"column:id;primaryKey;autoIncrement"`
	OrderID       int64                 `gorm:"column:order_id;not null;index"`
	TransactionNo string                `gorm:"column:transaction_no;not null;default:''"`
	ResponseCode  string                `gorm:"column:response_code;not null"`
	Amount        decimal.Decimal       `gorm:"column:amount;type:numeric(18,2);not null"`
	Signature     string                `gorm:"column:signature;not null;uniqueIndex"`
	Payload       string                `gorm:"column:payload;type:text;not null"`
	Outcome       enums.CallbackOutcome `gorm:"column:outcome;type:text;not null"`
	CreatedAt     time.Time             `gorm:"column:created_at;autoCreateTime"`
}
