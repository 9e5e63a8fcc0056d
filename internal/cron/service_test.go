package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/angelmondragon/phoneshop-backend/pkg/logger"
)

type fakeLock struct {
	acquired bool
	released int
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.acquired {
		return false, nil
	}
	f.acquired = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.acquired = false
	f.released++
	return nil
}

type testJob struct {
	name string
	err  error
	runs int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.runs++
	return t.err
}

type recordingJobMetrics struct {
	success map[string]int
	failure map[string]int
}

func (r *recordingJobMetrics) ObserveDuration(string, time.Duration) {}

func (r *recordingJobMetrics) IncSuccess(job string) {
	if r.success == nil {
		r.success = map[string]int{}
	}
	r.success[job]++
}

func (r *recordingJobMetrics) IncFailure(job string) {
	if r.failure == nil {
		r.failure = map[string]int{}
	}
	r.failure[job]++
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard})
}

func TestServiceRunCycleRunsAllJobsEvenOnFailure(t *testing.T) {
	success := &testJob{name: "success"}
	failure := &testJob{name: "fail", err: errors.New("boom")}
	lock := &fakeLock{}
	recorder := &recordingJobMetrics{}
	service, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: NewRegistry(success, failure),
		Lock:     lock,
		Metrics:  recorder,
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	ran, err := service.runCycle(context.Background())
	if !ran {
		t.Fatalf("expected cycle to run")
	}
	if err == nil || !errors.Is(err, failure.err) {
		t.Fatalf("expected failing job error to surface, got %v", err)
	}
	if success.runs != 1 || failure.runs != 1 {
		t.Fatalf("expected both jobs to run once, got %d and %d", success.runs, failure.runs)
	}
	if recorder.success["success"] != 1 || recorder.failure["fail"] != 1 {
		t.Fatalf("unexpected metrics %+v", recorder)
	}
	if lock.released != 1 {
		t.Fatalf("expected lock release, got %d", lock.released)
	}
}

func TestServiceSkipsCycleWhenLockHeld(t *testing.T) {
	job := &testJob{name: "expire"}
	lock := &fakeLock{acquired: true}
	service, err := NewService(ServiceParams{Logger: testLogger(), Registry: NewRegistry(job), Lock: lock})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	ran, err := service.runCycle(context.Background())
	if err != nil || ran {
		t.Fatalf("expected skipped cycle, got ran=%v err=%v", ran, err)
	}
	if job.runs != 0 {
		t.Fatalf("job ran while lock was held elsewhere")
	}
}

func TestServiceRunStopsOnCancel(t *testing.T) {
	job := &testJob{name: "expire"}
	service, err := NewService(ServiceParams{Logger: testLogger(), Registry: NewRegistry(job), Lock: NewLocalLock(), Interval: time.Hour})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := service.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if job.runs != 1 {
		t.Fatalf("expected the initial cycle to run, got %d", job.runs)
	}
}

func TestNewServiceRequiresLoggerAndLock(t *testing.T) {
	if _, err := NewService(ServiceParams{Lock: NewLocalLock()}); err == nil {
		t.Fatalf("expected logger error")
	}
	if _, err := NewService(ServiceParams{Logger: testLogger()}); err == nil {
		t.Fatalf("expected lock error")
	}
}

type blockingJob struct{}

func (blockingJob) Name() string { return "slow" }

func (blockingJob) Run(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestRunOnceAppliesJobTimeout(t *testing.T) {
	service, err := NewService(ServiceParams{
		Logger:     testLogger(),
		Registry:   NewRegistry(blockingJob{}),
		Lock:       NewLocalLock(),
		JobTimeout: 10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	if err := service.RunOnce(context.Background()); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestRunOnceReportsHeldLock(t *testing.T) {
	lock := &fakeLock{acquired: true}
	service, err := NewService(ServiceParams{Logger: testLogger(), Registry: NewRegistry(&testJob{name: "expire"}), Lock: lock})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	if err := service.RunOnce(context.Background()); !errors.Is(err, ErrLockHeld) {
		t.Fatalf("expected ErrLockHeld, got %v", err)
	}
}
