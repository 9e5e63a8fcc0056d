package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/phoneshop-backend/pkg/logger"
)

const (
	outboxRetentionJobName = "outbox-retention"
	defaultOutboxRetention = 30 * 24 * time.Hour
	defaultRetentionBatch  = 1000
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPruner interface {
	DeletePublishedBefore(tx *gorm.DB, cutoff time.Time, limit int) (int64, error)
}

type OutboxRetentionJobParams struct {
	Logger    *logger.Logger
	DB        txRunner
	Outbox    outboxPruner
	Retention time.Duration
	BatchSize int
}

// NewOutboxRetentionJob prunes order events the publisher delivered more than
// Retention ago.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = defaultOutboxRetention
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultRetentionBatch
	}
	return &outboxRetentionJob{
		logg:      params.Logger,
		db:        params.DB,
		outbox:    params.Outbox,
		retention: retention,
		batch:     batch,
		now:       time.Now,
	}, nil
}

type outboxRetentionJob struct {
	logg      *logger.Logger
	db        txRunner
	outbox    outboxPruner
	retention time.Duration
	batch     int
	now       func() time.Time
}

func (j *outboxRetentionJob) Name() string { return outboxRetentionJobName }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	var deleted int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		n, err := j.outbox.DeletePublishedBefore(tx.WithContext(ctx), cutoff, j.batch)
		deleted = n
		return err
	})
	if err != nil {
		return fmt.Errorf("outbox retention: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff.Format(time.RFC3339),
		"rows_deleted": deleted,
	})
	j.logg.Info(logCtx, "outbox retention cleanup complete")
	return nil
}
