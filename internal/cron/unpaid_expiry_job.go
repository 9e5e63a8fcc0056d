package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/phoneshop-backend/pkg/db/models"
	"github.com/angelmondragon/phoneshop-backend/pkg/enums"
	"github.com/angelmondragon/phoneshop-backend/pkg/logger"
)

const (
	unpaidExpiryJobName = "expire-unpaid-orders"
	defaultExpiryBatch  = 100
)

type staleOrderReader interface {
	FindStaleUnpaid(ctx context.Context, method enums.PaymentMethod, placedBefore time.Time, limit int) ([]models.Order, error)
}

type orderExpirer interface {
	ExpireUnpaid(ctx context.Context, orderID int64) (bool, error)
}

type expiryMetrics interface {
	AddExpired(n int)
}

// UnpaidExpiryJobParams configure the gateway order expiry sweep. Window is
// how long after placement an unpaid gateway order stays reserved.
type UnpaidExpiryJobParams struct {
	Logger    *logger.Logger
	Reader    staleOrderReader
	Orders    orderExpirer
	Metrics   expiryMetrics
	Window    time.Duration
	BatchSize int
}

// NewUnpaidExpiryJob builds the job that cancels gateway orders whose payment
// never arrived, returning their stock to the shelf.
func NewUnpaidExpiryJob(params UnpaidExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Reader == nil {
		return nil, fmt.Errorf("stale order reader required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order expirer required")
	}
	if params.Window <= 0 {
		return nil, fmt.Errorf("expiry window must be positive")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultExpiryBatch
	}
	return &unpaidExpiryJob{
		logg:    params.Logger,
		reader:  params.Reader,
		orders:  params.Orders,
		metrics: params.Metrics,
		window:  params.Window,
		batch:   batch,
		now:     time.Now,
	}, nil
}

type unpaidExpiryJob struct {
	logg    *logger.Logger
	reader  staleOrderReader
	orders  orderExpirer
	metrics expiryMetrics
	window  time.Duration
	batch   int
	now     func() time.Time
}

func (j *unpaidExpiryJob) Name() string { return unpaidExpiryJobName }

// Run processes one batch per cycle. Orders that fail stay pending and are
// retried next cycle; the remaining orders in the batch are still processed.
func (j *unpaidExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.window)
	stale, err := j.reader.FindStaleUnpaid(ctx, enums.PaymentMethodGateway, cutoff, j.batch)
	if err != nil {
		return fmt.Errorf("query stale unpaid orders: %w", err)
	}

	var errs error
	expired := 0
	for _, order := range stale {
		ok, err := j.orders.ExpireUnpaid(ctx, order.ID)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("expire order %d: %w", order.ID, err))
			continue
		}
		if ok {
			expired++
			j.logg.Info(j.logg.WithOrderID(ctx, order.ID), "unpaid gateway order expired")
		}
	}
	if j.metrics != nil {
		j.metrics.AddExpired(expired)
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"candidates": len(stale),
		"expired":    expired,
		"cutoff":     cutoff.Format(time.RFC3339),
	})
	j.logg.Info(logCtx, "unpaid order expiry complete")
	return errs
}
