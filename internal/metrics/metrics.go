// Package metrics exposes the process's pool and sync-engine gauges
// through a custom Prometheus registry (spec.md §4.2.5 / SPEC_FULL.md §5.6).
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jkantaria/dbgateway/internal/dbpool"
)

// Collector holds all Prometheus metrics for dbgateway.
type Collector struct {
	Registry *prometheus.Registry

	poolCurrentSize       *prometheus.GaugeVec
	poolActive            *prometheus.GaugeVec
	poolIdle              *prometheus.GaugeVec
	poolWaiters           *prometheus.GaugeVec
	poolTotalCreated      *prometheus.GaugeVec
	poolTotalAcquired     *prometheus.GaugeVec
	poolTotalReleased     *prometheus.GaugeVec
	poolTotalValidatedOk  *prometheus.GaugeVec
	poolFailedCreations   *prometheus.GaugeVec
	poolFailedValidations *prometheus.GaugeVec
	poolAvgAcquireWaitMs  *prometheus.GaugeVec

	acquireDuration *prometheus.HistogramVec
	healthStatus    *prometheus.GaugeVec

	syncProcessedTotal *prometheus.CounterVec
	syncFailedTotal    *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics on an independent
// registry. Safe to call multiple times (e.g. in tests or on config
// reload); each call's registry is isolated from any other.
func New() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		Registry: reg,
		poolCurrentSize: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "dbgateway_pool_current_size", Help: "Current number of connections in the pool"},
			[]string{"pool"},
		),
		poolActive: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "dbgateway_pool_active", Help: "Connections currently checked out"},
			[]string{"pool"},
		),
		poolIdle: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "dbgateway_pool_idle", Help: "Connections currently idle"},
			[]string{"pool"},
		),
		poolWaiters: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "dbgateway_pool_waiters", Help: "Goroutines waiting on Acquire"},
			[]string{"pool"},
		),
		poolTotalCreated: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "dbgateway_pool_total_created", Help: "Connections created since pool start"},
			[]string{"pool"},
		),
		poolTotalAcquired: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "dbgateway_pool_total_acquired", Help: "Successful Acquire calls since pool start"},
			[]string{"pool"},
		),
		poolTotalReleased: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "dbgateway_pool_total_released", Help: "Release calls since pool start"},
			[]string{"pool"},
		),
		poolTotalValidatedOk: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "dbgateway_pool_total_validated_ok", Help: "Successful validation pings since pool start"},
			[]string{"pool"},
		),
		poolFailedCreations: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "dbgateway_pool_failed_creations", Help: "Failed connection creations since pool start"},
			[]string{"pool"},
		),
		poolFailedValidations: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "dbgateway_pool_failed_validations", Help: "Failed validation pings since pool start"},
			[]string{"pool"},
		),
		poolAvgAcquireWaitMs: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "dbgateway_pool_avg_acquire_wait_ms", Help: "Average Acquire wait time in milliseconds since pool start"},
			[]string{"pool"},
		),
		acquireDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dbgateway_acquire_duration_seconds",
				Help:    "Time spent waiting for Acquire to return",
				Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
			},
			[]string{"pool"},
		),
		healthStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "dbgateway_pool_health", Help: "Health status of a pool's backing database (1=healthy, 0=unhealthy)"},
			[]string{"pool"},
		),
		syncProcessedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "dbgateway_sync_processed_total", Help: "Total sync items processed per entity"},
			[]string{"entity"},
		),
		syncFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "dbgateway_sync_failed_total", Help: "Total sync items failed per entity"},
			[]string{"entity"},
		),
	}

	reg.MustRegister(
		c.poolCurrentSize,
		c.poolActive,
		c.poolIdle,
		c.poolWaiters,
		c.poolTotalCreated,
		c.poolTotalAcquired,
		c.poolTotalReleased,
		c.poolTotalValidatedOk,
		c.poolFailedCreations,
		c.poolFailedValidations,
		c.poolAvgAcquireWaitMs,
		c.acquireDuration,
		c.healthStatus,
		c.syncProcessedTotal,
		c.syncFailedTotal,
	)

	return c
}

// UpdatePoolStats overwrites all per-pool gauges from a dbpool.Stats
// snapshot. Called on a short interval by whatever wires the
// PoolManager to this collector.
func (c *Collector) UpdatePoolStats(s dbpool.Stats) {
	c.poolCurrentSize.WithLabelValues(s.PoolName).Set(float64(s.CurrentSize))
	c.poolActive.WithLabelValues(s.PoolName).Set(float64(s.ActiveCount))
	c.poolIdle.WithLabelValues(s.PoolName).Set(float64(s.IdleCount))
	c.poolWaiters.WithLabelValues(s.PoolName).Set(float64(s.Waiters))
	c.poolTotalCreated.WithLabelValues(s.PoolName).Set(float64(s.TotalCreated))
	c.poolTotalAcquired.WithLabelValues(s.PoolName).Set(float64(s.TotalAcquired))
	c.poolTotalReleased.WithLabelValues(s.PoolName).Set(float64(s.TotalReleased))
	c.poolTotalValidatedOk.WithLabelValues(s.PoolName).Set(float64(s.TotalValidatedOk))
	c.poolFailedCreations.WithLabelValues(s.PoolName).Set(float64(s.FailedCreations))
	c.poolFailedValidations.WithLabelValues(s.PoolName).Set(float64(s.FailedValidations))
	c.poolAvgAcquireWaitMs.WithLabelValues(s.PoolName).Set(s.AvgAcquireWaitMs)
}

// AcquireDuration observes how long a single Acquire call took.
func (c *Collector) AcquireDuration(pool string, d time.Duration) {
	c.acquireDuration.WithLabelValues(pool).Observe(d.Seconds())
}

// SetPoolHealth sets the health gauge for a pool's backing database.
func (c *Collector) SetPoolHealth(pool string, healthy bool) {
	val := 0.0
	if healthy {
		val = 1.0
	}
	c.healthStatus.WithLabelValues(pool).Set(val)
}

// SyncCompleted records a sync result's processed/failed counts for an entity.
func (c *Collector) SyncCompleted(entity string, processed, failed int) {
	c.syncProcessedTotal.WithLabelValues(entity).Add(float64(processed))
	c.syncFailedTotal.WithLabelValues(entity).Add(float64(failed))
}

// RemovePool removes all metrics for a pool. PoolManager's
// ConfigurePools/ConfigureOne do not call it; a retired pool's series
// remain until RemovePool is called for that name.
func (c *Collector) RemovePool(pool string) {
	c.poolCurrentSize.DeleteLabelValues(pool)
	c.poolActive.DeleteLabelValues(pool)
	c.poolIdle.DeleteLabelValues(pool)
	c.poolWaiters.DeleteLabelValues(pool)
	c.poolTotalCreated.DeleteLabelValues(pool)
	c.poolTotalAcquired.DeleteLabelValues(pool)
	c.poolTotalReleased.DeleteLabelValues(pool)
	c.poolTotalValidatedOk.DeleteLabelValues(pool)
	c.poolFailedCreations.DeleteLabelValues(pool)
	c.poolFailedValidations.DeleteLabelValues(pool)
	c.poolAvgAcquireWaitMs.DeleteLabelValues(pool)
	c.healthStatus.DeleteLabelValues(pool)
	c.acquireDuration.DeletePartialMatch(prometheus.Labels{"pool": pool})
}
