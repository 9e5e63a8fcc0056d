package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CronJobMetrics records scheduled job runs.
type CronJobMetrics struct {
	duration *prometheus.HistogramVec
	runs     *prometheus.CounterVec
	expired  prometheus.Counter
}

// NewCronJobMetrics registers the cron job metrics on the provided registerer.
func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return &CronJobMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cron_job_duration_seconds",
		Help:    "Duration of cron jobs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cron_job_runs_total",
		Help: "Cron job executions partitioned by result.",
	}, []string{"job", "result"})
	expired := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "unpaid_orders_expired_total",
		Help: "Gateway orders cancelled because their payment window lapsed.",
	})
	reg.MustRegister(duration, runs, expired)
	return &CronJobMetrics{
		duration: duration,
		runs:     runs,
		expired:  expired,
	}
}

func (c *CronJobMetrics) ObserveDuration(job string, duration time.Duration) {
	if c == nil || c.duration == nil {
		return
	}
	c.duration.WithLabelValues(normalizeLabel(job)).Observe(duration.Seconds())
}

func (c *CronJobMetrics) IncSuccess(job string) {
	if c == nil || c.runs == nil {
		return
	}
	c.runs.WithLabelValues(normalizeLabel(job), "success").Inc()
}

func (c *CronJobMetrics) IncFailure(job string) {
	if c == nil || c.runs == nil {
		return
	}
	c.runs.WithLabelValues(normalizeLabel(job), "failure").Inc()
}

// AddExpired counts orders cancelled by the expiry sweep.
func (c *CronJobMetrics) AddExpired(n int) {
	if c == nil || c.expired == nil || n <= 0 {
		return
	}
	c.expired.Add(float64(n))
}
