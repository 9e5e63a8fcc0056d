package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/phoneshop-backend/pkg/logger"
)

const defaultInterval = 5 * time.Minute

// ErrLockHeld is returned by RunOnce when another replica owns the cycle.
var ErrLockHeld = errors.New("cron lock held by another instance")

type jobMetrics interface {
	ObserveDuration(job string, duration time.Duration)
	IncSuccess(job string)
	IncFailure(job string)
}

// ServiceParams configure the cron service. Metrics is optional and a zero
// JobTimeout leaves jobs bounded only by the caller's context.
type ServiceParams struct {
	Logger     *logger.Logger
	Registry   *Registry
	Lock       Lock
	Metrics    jobMetrics
	Interval   time.Duration
	JobTimeout time.Duration
}

// Service runs every registered job on a fixed cadence while holding the lock.
type Service struct {
	logg       *logger.Logger
	registry   *Registry
	lock       Lock
	metrics    jobMetrics
	interval   time.Duration
	jobTimeout time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Lock == nil {
		return nil, fmt.Errorf("lock required")
	}
	s := &Service{
		logg:       params.Logger,
		registry:   params.Registry,
		lock:       params.Lock,
		metrics:    params.Metrics,
		interval:   params.Interval,
		jobTimeout: params.JobTimeout,
	}
	if s.registry == nil {
		s.registry = NewRegistry()
	}
	if s.interval <= 0 {
		s.interval = defaultInterval
	}
	return s, nil
}

// Run executes one cycle immediately, then one per interval until ctx ends.
// Job failures are logged and never stop the loop.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.runCycle(ctx); err != nil {
			s.logg.Error(ctx, "scheduled run failed", err)
		}
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron service context canceled")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce executes a single cycle and returns the combined job errors. It
// suits one-shot schedulers that provide their own cadence.
func (s *Service) RunOnce(ctx context.Context) error {
	ran, err := s.runCycle(ctx)
	if err != nil {
		return err
	}
	if !ran {
		return ErrLockHeld
	}
	return nil
}

func (s *Service) runCycle(ctx context.Context) (ran bool, err error) {
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		s.logg.Info(ctx, "another cron instance is running; skipping this cycle")
		return false, nil
	}
	defer func() {
		if relErr := s.lock.Release(context.WithoutCancel(ctx)); relErr != nil {
			s.logg.Error(ctx, "failed to release cron lock", relErr)
		}
	}()

	var jobErrs error
	for _, job := range s.registry.Jobs() {
		jobErrs = multierr.Append(jobErrs, s.runJob(ctx, job))
	}
	return true, jobErrs
}

func (s *Service) runJob(ctx context.Context, job Job) error {
	jobCtx := s.logg.WithJob(ctx, job.Name())
	if s.jobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(jobCtx, s.jobTimeout)
		defer cancel()
	}

	start := time.Now()
	err := job.Run(jobCtx)
	duration := time.Since(start)
	logCtx := s.logg.WithField(jobCtx, "duration_ms", duration.Milliseconds())

	if s.metrics != nil {
		s.metrics.ObserveDuration(job.Name(), duration)
	}
	if err != nil {
		s.logg.Error(logCtx, "job failed", err)
		if s.metrics != nil {
			s.metrics.IncFailure(job.Name())
		}
		return fmt.Errorf("%s: %w", job.Name(), err)
	}
	s.logg.Info(logCtx, "job completed")
	if s.metrics != nil {
		s.metrics.IncSuccess(job.Name())
	}
	return nil
}
