// Package healthcheck periodically probes every configured pool's
// backing database with a SQL-level validation query, replacing the
// teacher's raw TCP/wire-protocol pings (which never open a real
// database/sql connection) with a genuine end-to-end check through
// the same dbpool.PoolManager the rest of the gateway uses.
package healthcheck

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jkantaria/dbgateway/internal/dbpool"
	"github.com/jkantaria/dbgateway/internal/metrics"
)

// Status is the health state of a single pool's backing database.
type Status int

const (
	StatusUnknown Status = iota
	StatusHealthy
	StatusUnhealthy
)

func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// PoolHealth is the per-pool health record surfaced by GET /status.
type PoolHealth struct {
	Status              Status    `json:"status"`
	LastCheck           time.Time `json:"lastCheck"`
	ConsecutiveFailures int       `json:"consecutiveFailures"`
	LastError           string    `json:"lastError,omitempty"`
}

// Settings controls check cadence and the failure threshold before a
// pool is reported unhealthy.
type Settings struct {
	Interval          time.Duration
	FailureThreshold  int
	ConnectionTimeout time.Duration
}

func (s Settings) withDefaults() Settings {
	if s.Interval <= 0 {
		s.Interval = 30 * time.Second
	}
	if s.FailureThreshold <= 0 {
		s.FailureThreshold = 3
	}
	if s.ConnectionTimeout <= 0 {
		s.ConnectionTimeout = 5 * time.Second
	}
	return s
}

// Checker periodically validates every pool known to a PoolManager.
type Checker struct {
	mu     sync.RWMutex
	status map[string]*PoolHealth

	poolNames func() []string
	manager   *dbpool.PoolManager
	metrics   *metrics.Collector
	settings  Settings

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewChecker builds a Checker against a PoolManager. poolNames
// supplies the set of pool names to probe each cycle (cmd/dbgateway
// passes the manager's own PoolNames method).
func NewChecker(manager *dbpool.PoolManager, poolNames func() []string, m *metrics.Collector, settings Settings) *Checker {
	return &Checker{
		status:    make(map[string]*PoolHealth),
		poolNames: poolNames,
		manager:   manager,
		metrics:   m,
		settings:  settings.withDefaults(),
		stopCh:    make(chan struct{}),
	}
}

// Start begins periodic checking in a background goroutine.
func (c *Checker) Start() {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.run()
	}()
	slog.Info("health checker started", "interval", c.settings.Interval, "threshold", c.settings.FailureThreshold)
}

// Stop halts the background goroutine. Safe to call multiple times.
func (c *Checker) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	c.wg.Wait()
}

func (c *Checker) run() {
	c.checkAll()
	ticker := time.NewTicker(c.settings.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.checkAll()
		case <-c.stopCh:
			return
		}
	}
}

func (c *Checker) checkAll() {
	names := c.poolNames()
	var wg sync.WaitGroup
	for _, name := range names {
		name := name
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			healthy, checkErr := c.pingPool(name)
			elapsed := time.Since(start)
			if c.metrics != nil {
				c.metrics.SetPoolHealth(name, healthy)
			}
			c.updateStatus(name, healthy, checkErr, elapsed)
		}()
	}
	wg.Wait()
}

func (c *Checker) pingPool(name string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.settings.ConnectionTimeout)
	defer cancel()

	pc, err := c.manager.Acquire(ctx, name, int(c.settings.ConnectionTimeout.Milliseconds()))
	if err != nil {
		return false, err
	}
	defer c.manager.Release(pc, name)

	_, err = pc.Conn().ExecuteScalar(ctx, "SELECT 1", nil)
	if err != nil {
		return false, err
	}
	return true, nil
}

func (c *Checker) updateStatus(name string, healthy bool, checkErr error, elapsed time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	h, ok := c.status[name]
	if !ok {
		h = &PoolHealth{}
		c.status[name] = h
	}
	h.LastCheck = time.Now()

	if healthy {
		h.ConsecutiveFailures = 0
		h.Status = StatusHealthy
		h.LastError = ""
		return
	}

	h.ConsecutiveFailures++
	if checkErr != nil {
		h.LastError = checkErr.Error()
	}
	if h.ConsecutiveFailures >= c.settings.FailureThreshold {
		h.Status = StatusUnhealthy
	}
}

// Snapshot returns a copy of the current per-pool health map, safe
// for the status handler to marshal directly.
func (c *Checker) Snapshot() map[string]PoolHealth {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]PoolHealth, len(c.status))
	for k, v := range c.status {
		out[k] = *v
	}
	return out
}
