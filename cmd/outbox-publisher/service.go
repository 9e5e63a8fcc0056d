package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/IBM/sarama"
	"gorm.io/gorm"

	"github.com/angelmondragon/phoneshop-backend/pkg/db/models"
	"github.com/angelmondragon/phoneshop-backend/pkg/logger"
	"github.com/angelmondragon/phoneshop-backend/pkg/metrics"
	"github.com/angelmondragon/phoneshop-backend/pkg/outbox"
)

const (
	defaultBatchSize   = 50
	defaultPoll        = 500 * time.Millisecond
	defaultMaxAttempts = 10
	maxBackoff         = 10 * time.Second
	jitterWindow       = 250 * time.Millisecond

	headerEventID   = "event_id"
	headerEventType = "event_type"
	headerVersion   = "envelope_version"
)

var jitterSource = rand.New(rand.NewSource(time.Now().UnixNano()))

// errNonRetryable marks rows that no amount of retrying will deliver.
var errNonRetryable = errors.New("non-retryable")

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id int64, at time.Time) error
	MarkFailedTx(tx *gorm.DB, id int64, cause error) error
	MarkTerminalTx(tx *gorm.DB, id int64, cause error, maxAttempts int) error
	CountPending(tx *gorm.DB, maxAttempts int) (int64, error)
}

// messageSender is the slice of sarama.SyncProducer the publisher needs.
type messageSender interface {
	SendMessage(msg *sarama.ProducerMessage) (partition int32, offset int64, err error)
}

type publishMetrics interface {
	IncPublished(eventType string)
	IncFailed(eventType string, terminal bool)
	SetPending(n int64)
}

type ServiceParams struct {
	Logger       *logger.Logger
	DB           dbClient
	Repository   outboxRepository
	Producer     messageSender
	Metrics      publishMetrics
	Topic        string
	BatchSize    int
	MaxAttempts  int
	PollInterval time.Duration
}

type Service struct {
	logg         *logger.Logger
	db           dbClient
	repo         outboxRepository
	producer     messageSender
	metrics      publishMetrics
	topic        string
	batchSize    int
	maxAttempts  int
	pollInterval time.Duration
	now          func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.Repository == nil {
		return nil, errors.New("outbox repository is required")
	}
	if params.Producer == nil {
		return nil, errors.New("kafka producer is required")
	}
	if params.Topic == "" {
		return nil, errors.New("kafka topic is required")
	}

	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	maxAttempts := params.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	poll := params.PollInterval
	if poll <= 0 {
		poll = defaultPoll
	}
	var m publishMetrics = metrics.NewOutboxMetrics(nil)
	if params.Metrics != nil {
		m = params.Metrics
	}

	return &Service{
		logg:         params.Logger,
		db:           params.DB,
		repo:         params.Repository,
		producer:     params.Producer,
		metrics:      m,
		topic:        params.Topic,
		batchSize:    batch,
		maxAttempts:  maxAttempts,
		pollInterval: poll,
		now:          func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *Service) Run(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		s.logg.Error(ctx, "database ping failed", err)
		return fmt.Errorf("database ping failed: %w", err)
	}

	backoff := s.pollInterval
	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "outbox publisher context canceled")
			return ctx.Err()
		default:
		}

		processed, err := s.processBatch(ctx)
		if err != nil {
			s.logg.Error(ctx, "outbox publisher batch error", err)
			backoff = nextBackoff(backoff, s.pollInterval, maxBackoff)
			if err := s.sleep(ctx, withJitter(backoff)); err != nil {
				return err
			}
			continue
		}
		backoff = s.pollInterval
		s.reportPending(ctx)

		if processed {
			continue
		}
		if err := s.sleep(ctx, withJitter(s.pollInterval)); err != nil {
			return err
		}
	}
}

// processBatch publishes one locked batch. A failed send never aborts the
// batch; it only moves that row's attempt counter.
func (s *Service) processBatch(ctx context.Context) (bool, error) {
	processed := false
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			return nil
		}

		processed = true
		for _, event := range events {
			fields := s.eventFields(event)
			err := s.publish(event)
			if err == nil {
				if markErr := s.repo.MarkPublishedTx(tx, event.ID, s.now()); markErr != nil {
					return fmt.Errorf("mark published %d: %w", event.ID, markErr)
				}
				s.metrics.IncPublished(string(event.EventType))
				s.logg.Info(s.logg.WithFields(ctx, fields), "outbox event published")
				continue
			}

			nextAttempt := event.AttemptCount + 1
			fields["attempt_count"] = nextAttempt
			fields["error"] = err.Error()
			terminal := errors.Is(err, errNonRetryable) || nextAttempt >= s.maxAttempts
			if terminal {
				s.logg.Warn(s.logg.WithFields(ctx, fields), "outbox event will not be retried")
				if markErr := s.repo.MarkTerminalTx(tx, event.ID, err, s.maxAttempts); markErr != nil {
					return fmt.Errorf("mark terminal %d: %w", event.ID, markErr)
				}
			} else {
				s.logg.Warn(s.logg.WithFields(ctx, fields), "outbox publish failed")
				if markErr := s.repo.MarkFailedTx(tx, event.ID, err); markErr != nil {
					return fmt.Errorf("mark failure %d: %w", event.ID, markErr)
				}
			}
			s.metrics.IncFailed(string(event.EventType), terminal)
		}
		return nil
	})
	return processed, err
}

func (s *Service) publish(event models.OutboxEvent) error {
	envelope, err := outbox.DecodeEnvelope(event.Payload)
	if err != nil {
		return fmt.Errorf("%w: decode envelope: %v", errNonRetryable, err)
	}
	if !envelope.EventType.IsValid() {
		return fmt.Errorf("%w: unknown event type %q", errNonRetryable, envelope.EventType)
	}

	msg := &sarama.ProducerMessage{
		Topic: s.topic,
		Key:   sarama.StringEncoder(strconv.FormatInt(event.OrderID, 10)),
		Value: sarama.StringEncoder(event.Payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte(headerEventID), Value: []byte(envelope.EventID)},
			{Key: []byte(headerEventType), Value: []byte(envelope.EventType)},
			{Key: []byte(headerVersion), Value: []byte(strconv.Itoa(envelope.Version))},
		},
	}
	if _, _, err := s.producer.SendMessage(msg); err != nil {
		if errors.Is(err, sarama.ErrMessageSizeTooLarge) || errors.Is(err, sarama.ErrInvalidMessage) {
			return fmt.Errorf("%w: %v", errNonRetryable, err)
		}
		return err
	}
	return nil
}

func (s *Service) reportPending(ctx context.Context) {
	n, err := s.repo.CountPending(nil, s.maxAttempts)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "count pending outbox events")
		return
	}
	s.metrics.SetPending(n)
}

func (s *Service) eventFields(event models.OutboxEvent) map[string]any {
	fields := map[string]any{
		"outbox_id":     event.ID,
		"event_id":      event.EventID,
		"event_type":    event.EventType,
		"order_id":      event.OrderID,
		"topic":         s.topic,
		"attempt_count": event.AttemptCount,
	}
	if event.LastError != nil {
		fields["last_error"] = *event.LastError
	}
	return fields
}

func (s *Service) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func nextBackoff(current, base, max time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	next := current * 2
	if next > max {
		return max
	}
	return next
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + time.Duration(jitterSource.Int63n(int64(jitterWindow)))
}
