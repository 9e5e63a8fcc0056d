package outbox

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/phoneshop-backend/pkg/enums"
)

// EnvelopeVersion is bumped whenever a payload changes incompatibly.
const EnvelopeVersion = 1

// ActorRef identifies who caused the event. System jobs leave UserID empty.
type ActorRef struct {
	UserID string `json:"user_id,omitempty"`
	Role   string `json:"role,omitempty"`
}

// Envelope is the stable JSON document stored in outbox_events.payload and
// sent to the broker unchanged.
type Envelope struct {
	Version    int                  `json:"version"`
	EventID    string               `json:"event_id"`
	EventType  enums.OrderEventType `json:"event_type"`
	OrderID    int64                `json:"order_id"`
	OccurredAt time.Time            `json:"occurred_at"`
	Actor      *ActorRef            `json:"actor,omitempty"`
	Data       json.RawMessage      `json:"data"`
}

// DecodeEnvelope parses a stored payload.
func DecodeEnvelope(payload string) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

type OrderLine struct {
	VariantID int64           `json:"variant_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// OrderPlaced is the data of order.placed.
type OrderPlaced struct {
	TotalAmount   decimal.Decimal     `json:"total_amount"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	Lines         []OrderLine         `json:"lines"`
}

// OrderStatusChanged is the data of order.status_changed.
type OrderStatusChanged struct {
	From      enums.OrderStatus `json:"from"`
	To        enums.OrderStatus `json:"to"`
	Reason    string            `json:"reason"`
	Restocked bool              `json:"restocked"`
}

// Reasons carried by OrderStatusChanged.
const (
	ReasonRequested     = "requested"
	ReasonPaymentExpiry = "payment_window_expired"
)

// OrderPaid is the data of order.paid.
type OrderPaid struct {
	Source        string          `json:"source"`
	Amount        decimal.Decimal `json:"amount"`
	TransactionNo string          `json:"transaction_no,omitempty"`
}

// Payment sources carried by OrderPaid.
const (
	PaidByGateway = "gateway"
	PaidManually  = "manual"
)
