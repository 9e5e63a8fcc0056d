package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/phoneshop-backend/pkg/db/models"
	"github.com/angelmondragon/phoneshop-backend/pkg/enums"
	"github.com/angelmondragon/phoneshop-backend/pkg/logger"
)

// Event is what domain services hand to Emit.
type Event struct {
	Type       enums.OrderEventType
	OrderID    int64
	Actor      *ActorRef
	Data       any
	OccurredAt time.Time
}

// Service writes events inside the caller's transaction so an event exists
// exactly when its state change commits.
type Service struct {
	repo *Repository
	logg *logger.Logger
	now  func() time.Time
}

func NewService(repo *Repository, logg *logger.Logger) *Service {
	return &Service{repo: repo, logg: logg, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Service) Emit(ctx context.Context, tx *gorm.DB, event Event) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if !event.Type.IsValid() {
		return fmt.Errorf("unknown event type %q", event.Type)
	}
	if event.OrderID <= 0 {
		return errors.New("order id required")
	}
	data, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("marshal %s data: %w", event.Type, err)
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now()
	}

	envelope := Envelope{
		Version:    EnvelopeVersion,
		EventID:    uuid.NewString(),
		EventType:  event.Type,
		OrderID:    event.OrderID,
		OccurredAt: event.OccurredAt.UTC(),
		Actor:      event.Actor,
		Data:       data,
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	row := &models.OutboxEvent{
		EventID:   envelope.EventID,
		EventType: event.Type,
		OrderID:   event.OrderID,
		Payload:   string(payload),
	}
	if err := s.repo.Insert(tx.WithContext(ctx), row); err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"event_id":   envelope.EventID,
			"event_type": event.Type,
			"order_id":   event.OrderID,
		})
		s.logg.Debug(logCtx, "outbox event queued")
	}
	return nil
}
