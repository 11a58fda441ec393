package dbpool

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/jkantaria/dbgateway/internal/config"
	"github.com/jkantaria/dbgateway/internal/dbdriver"
	"github.com/jkantaria/dbgateway/internal/gwerrors"
)

// pollInterval bounds how long a waiter sleeps before re-competing for
// a freed slot, per the fairness requirement in spec.md §4.2.1: every
// waiter re-polls at least this often so no one waits indefinitely on
// a single missed signal.
const pollInterval = 250 * time.Millisecond

// Settings carries the pool-wide tunables that live outside a single
// ConnectionConfig (spec.md §6.3 database.validation / database.pool),
// applied uniformly across every SingleDBPool a PoolManager owns.
type Settings struct {
	ValidationIntervalSec int
	CleanupIntervalSec    int
	CleanupBudgetSec      int
	ShutdownGraceSec      int
}

// Stats is the atomic metrics snapshot spec.md §4.2.5 requires.
type Stats struct {
	PoolName          string  `json:"poolName"`
	CurrentSize       int     `json:"currentSize"`
	ActiveCount       int     `json:"activeCount"`
	IdleCount         int     `json:"idleCount"`
	Waiters           int     `json:"waiters"`
	TotalCreated      int64   `json:"totalCreated"`
	TotalAcquired     int64   `json:"totalAcquired"`
	TotalReleased     int64   `json:"totalReleased"`
	TotalValidatedOk  int64   `json:"totalValidatedOk"`
	FailedCreations   int64   `json:"failedCreations"`
	FailedValidations int64   `json:"failedValidations"`
	AvgAcquireWaitMs  float64 `json:"avgAcquireWaitMs"`
}

// SingleDBPool is a bounded pool of DBConnection sessions for one
// ConnectionConfig, implementing the acquisition/release/cleanup
// algorithms of spec.md §4.2. Grounded on the teacher's TenantPool:
// same sync.Cond wait/signal shape, generalized from a raw net.Conn
// pool to a dbdriver.DBConnection pool with lazy validation instead of
// a network Ping.
type SingleDBPool struct {
	mu   sync.Mutex
	cond *sync.Cond

	cfg      config.ConnectionConfig
	settings Settings

	idle   []*PooledConnection
	active map[string]*PooledConnection

	currentSize  int
	waiters      int
	shuttingDown bool
	stopCh       chan struct{}
	stopOnce     sync.Once

	totalCreated      int64
	totalAcquired     int64
	totalReleased     int64
	totalValidatedOk  int64
	failedCreations   int64
	failedValidations int64
	waitTimeTotal     time.Duration
	waitSamples       int64

	// dialFunc creates and connects a new backing DBConnection. It
	// defaults to dbdriver.New + Connect but is overridable in tests
	// to avoid requiring a live database.
	dialFunc func(ctx context.Context) (*PooledConnection, error)
}

// NewSingleDBPool constructs a pool for cfg and starts its background
// cleanup task. cfg must already be validated.
func NewSingleDBPool(cfg config.ConnectionConfig, settings Settings) *SingleDBPool {
	p := &SingleDBPool{
		cfg:      cfg,
		settings: settings,
		idle:     make([]*PooledConnection, 0, cfg.Pooling.MaxSize),
		active:   make(map[string]*PooledConnection),
		stopCh:   make(chan struct{}),
	}
	p.cond = sync.NewCond(&p.mu)
	p.dialFunc = p.connect

	if cfg.Pooling.Enabled {
		go p.cleanupLoop()
	}
	return p
}

func (p *SingleDBPool) validationInterval() time.Duration {
	sec := p.settings.ValidationIntervalSec
	if sec <= 0 {
		sec = 300
	}
	return time.Duration(sec) * time.Second
}

func (p *SingleDBPool) cleanupInterval() time.Duration {
	sec := p.settings.CleanupIntervalSec
	minSec := p.cfg.Pooling.IdleTimeoutSec / 3
	if minSec < 15 {
		minSec = 15
	}
	if sec < minSec {
		sec = minSec
	}
	return time.Duration(sec) * time.Second
}

func (p *SingleDBPool) cleanupBudget() time.Duration {
	sec := p.settings.CleanupBudgetSec
	if sec <= 0 {
		sec = 30
	}
	return time.Duration(sec) * time.Second
}

func (p *SingleDBPool) shutdownGrace() time.Duration {
	sec := p.settings.ShutdownGraceSec
	if sec <= 0 {
		sec = 10
	}
	return time.Duration(sec) * time.Second
}

// connect dials a fresh connection, retrying transient failures with
// exponential backoff per cfg.Retry (spec.md §3.1 retry.attempts/
// delayMs). Attempts <= 0 means no retrying: the first failure is
// returned immediately, matching the field's zero value.
func (p *SingleDBPool) connect(ctx context.Context) (*PooledConnection, error) {
	backoff := newExponentialBackoff(time.Duration(p.cfg.Retry.DelayMs) * time.Millisecond)
	totalAttempts := 1 + p.cfg.Retry.Attempts
	if totalAttempts < 1 {
		totalAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < totalAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff(attempt - 1)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		conn, err := dbdriver.New(p.cfg)
		if err != nil {
			lastErr = err
			continue
		}

		connectCtx, cancel := context.WithTimeout(ctx, time.Duration(p.cfg.ConnectTimeoutSec)*time.Second)
		err = conn.Connect(connectCtx)
		cancel()
		if err != nil {
			lastErr = err
			slog.Warn("database connect attempt failed", "pool", p.cfg.Name, "attempt", attempt+1, "of", totalAttempts, "err", err)
			continue
		}

		return newPooledConnection(conn, p.cfg.Name), nil
	}
	return nil, lastErr
}

// Acquire implements spec.md §4.2.1. timeoutMs overrides the pool's
// configured acquire timeout when > 0.
func (p *SingleDBPool) Acquire(ctx context.Context, timeoutMs int) (*PooledConnection, error) {
	if !p.cfg.Pooling.Enabled {
		return p.acquireUnpooled(ctx)
	}

	timeout := time.Duration(p.cfg.Pooling.AcquireTimeoutMs) * time.Millisecond
	if timeoutMs > 0 {
		timeout = time.Duration(timeoutMs) * time.Millisecond
	}
	start := time.Now()
	deadline := start.Add(timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}

	p.mu.Lock()
	p.waiters++
	defer func() {
		p.mu.Lock()
		p.waiters--
		p.waitTimeTotal += time.Since(start)
		p.waitSamples++
		p.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			p.mu.Unlock()
			return nil, ctx.Err()
		default:
		}

		if p.shuttingDown {
			p.mu.Unlock()
			return nil, gwerrors.PoolError(false, "pool %q is shutting down", p.cfg.Name)
		}

		if len(p.idle) > 0 {
			pc := p.idle[len(p.idle)-1]
			p.idle = p.idle[:len(p.idle)-1]

			if pc.needsValidation(p.validationInterval()) {
				p.mu.Unlock()
				if p.validate(pc) {
					p.mu.Lock()
					p.totalValidatedOk++
				} else {
					p.mu.Lock()
					p.failedValidations++
					_ = pc.close()
					p.currentSize--
					continue
				}
			}

			pc.setState(StateInUse)
			pc.markUsed()
			p.active[pc.ID()] = pc
			p.totalAcquired++
			p.mu.Unlock()
			return pc, nil
		}

		if p.currentSize < p.cfg.Pooling.MaxSize {
			p.currentSize++
			p.mu.Unlock()

			pc, err := p.dialFunc(ctx)
			if err != nil {
				p.mu.Lock()
				p.currentSize--
				p.failedCreations++
				continue
			}

			pc.setState(StateInUse)
			pc.markUsed()
			p.mu.Lock()
			p.active[pc.ID()] = pc
			p.totalCreated++
			p.totalAcquired++
			p.mu.Unlock()
			return pc, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			p.mu.Unlock()
			return nil, gwerrors.PoolError(true, "acquire timeout for pool %q", p.cfg.Name)
		}

		wait := remaining
		if wait > pollInterval {
			wait = pollInterval
		}
		timer := time.AfterFunc(wait, func() {
			p.mu.Lock()
			p.cond.Broadcast()
			p.mu.Unlock()
		})
		p.cond.Wait()
		timer.Stop()
	}
}

func (p *SingleDBPool) acquireUnpooled(ctx context.Context) (*PooledConnection, error) {
	pc, err := p.dialFunc(ctx)
	if err != nil {
		p.mu.Lock()
		p.failedCreations++
		p.mu.Unlock()
		return nil, err
	}
	pc.setState(StateInUse)
	pc.markUsed()

	p.mu.Lock()
	p.active[pc.ID()] = pc
	p.totalCreated++
	p.totalAcquired++
	p.mu.Unlock()
	return pc, nil
}

// validate issues a bounded SELECT 1 against pc, per the lazy
// validation policy in spec.md §4.2.1.
func (p *SingleDBPool) validate(pc *PooledConnection) bool {
	ctx, cancel := context.WithTimeout(context.Background(), pc.validationTimeout())
	defer cancel()
	_, err := pc.Conn().ExecuteScalar(ctx, "SELECT 1", nil)
	if err != nil {
		pc.setState(StateInvalid)
		return false
	}
	pc.markValidated()
	return true
}

// Release implements spec.md §4.2.2.
func (p *SingleDBPool) Release(pc *PooledConnection) {
	p.mu.Lock()

	if _, ok := p.active[pc.ID()]; !ok {
		p.mu.Unlock()
		slog.Warn("release of unknown connection ignored", "pool", p.cfg.Name, "conn", pc.ID())
		return
	}
	delete(p.active, pc.ID())
	p.totalReleased++

	if !p.cfg.Pooling.Enabled || pc.State() != StateInUse {
		p.currentSize--
		p.mu.Unlock()
		_ = pc.close()
		p.mu.Lock()
		p.cond.Signal()
		p.mu.Unlock()
		return
	}

	if len(p.idle) >= p.cfg.Pooling.MaxSize {
		p.currentSize--
		p.mu.Unlock()
		_ = pc.close()
		p.mu.Lock()
		p.cond.Signal()
		p.mu.Unlock()
		return
	}

	pc.setState(StateIdle)
	pc.markUsed()
	p.idle = append(p.idle, pc)
	p.cond.Signal()
	p.mu.Unlock()
}

// HasActive reports whether pc currently belongs to this pool's active
// set, used by PoolManager.Release to locate the owning pool when the
// caller supplies no pool-name hint.
func (p *SingleDBPool) HasActive(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.active[id]
	return ok
}

// Stats returns a mutually-consistent snapshot per spec.md §4.2.5.
func (p *SingleDBPool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	var avgWait float64
	if p.waitSamples > 0 {
		avgWait = float64(p.waitTimeTotal.Milliseconds()) / float64(p.waitSamples)
	}

	return Stats{
		PoolName:          p.cfg.Name,
		CurrentSize:       p.currentSize,
		ActiveCount:       len(p.active),
		IdleCount:         len(p.idle),
		Waiters:           p.waiters,
		TotalCreated:      p.totalCreated,
		TotalAcquired:     p.totalAcquired,
		TotalReleased:     p.totalReleased,
		TotalValidatedOk:  p.totalValidatedOk,
		FailedCreations:   p.failedCreations,
		FailedValidations: p.failedValidations,
		AvgAcquireWaitMs:  avgWait,
	}
}

func (p *SingleDBPool) cleanupLoop() {
	ticker := time.NewTicker(p.cleanupInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.runCleanupCycle()
		case <-p.stopCh:
			return
		}
	}
}

// runCleanupCycle implements spec.md §4.2.3.
func (p *SingleDBPool) runCleanupCycle() {
	start := time.Now()
	budget := p.cleanupBudget()

	p.trimIdle(start, budget)

	if time.Since(start) > budget {
		slog.Warn("cleanup cycle exceeded budget, skipping top-up", "pool", p.cfg.Name)
		return
	}
	p.topUpMinSize(start, budget)
}

// Trim forces an immediate idle-trim-to-minSize pass, used by
// PoolManager.TrimAll.
func (p *SingleDBPool) Trim() {
	p.trimIdle(time.Now(), p.cleanupBudget())
}

func (p *SingleDBPool) trimIdle(start time.Time, budget time.Duration) {
	idleTimeout := time.Duration(p.cfg.Pooling.IdleTimeoutSec) * time.Second

	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.idle) <= p.cfg.Pooling.MinSize {
		return
	}

	// Oldest (longest-idle) first, so eviction targets them before
	// newer idle connections.
	sort.Slice(p.idle, func(i, j int) bool {
		return p.idle[i].idleFor() > p.idle[j].idleFor()
	})

	removable := len(p.idle) - p.cfg.Pooling.MinSize
	kept := make([]*PooledConnection, 0, len(p.idle))
	for _, pc := range p.idle {
		if time.Since(start) > budget {
			kept = append(kept, pc)
			continue
		}
		if removable > 0 && pc.idleFor() >= idleTimeout {
			_ = pc.close()
			p.currentSize--
			removable--
			continue
		}
		kept = append(kept, pc)
	}
	p.idle = kept
}

func (p *SingleDBPool) topUpMinSize(start time.Time, budget time.Duration) {
	for {
		p.mu.Lock()
		need := p.currentSize < p.cfg.Pooling.MinSize
		if need {
			p.currentSize++
		}
		p.mu.Unlock()

		if !need || time.Since(start) > budget {
			return
		}

		pc, err := p.dialFunc(context.Background())
		if err != nil {
			p.mu.Lock()
			p.currentSize--
			p.failedCreations++
			p.mu.Unlock()
			slog.Warn("min-size top-up connection failed", "pool", p.cfg.Name, "err", err)
			return
		}
		pc.setState(StateIdle)

		p.mu.Lock()
		p.idle = append(p.idle, pc)
		p.totalCreated++
		p.cond.Signal()
		p.mu.Unlock()
	}
}

// ValidateAll proactively validates every idle connection, destroying
// any that fail.
func (p *SingleDBPool) ValidateAll() {
	p.mu.Lock()
	idle := make([]*PooledConnection, len(p.idle))
	copy(idle, p.idle)
	p.mu.Unlock()

	kept := make([]*PooledConnection, 0, len(idle))
	for _, pc := range idle {
		if p.validate(pc) {
			p.mu.Lock()
			p.totalValidatedOk++
			p.mu.Unlock()
			kept = append(kept, pc)
		} else {
			p.mu.Lock()
			p.failedValidations++
			p.mu.Unlock()
			_ = pc.close()
			p.mu.Lock()
			p.currentSize--
			p.mu.Unlock()
		}
	}

	p.mu.Lock()
	p.idle = kept
	p.mu.Unlock()
}

// Shutdown implements spec.md §4.2.4.
func (p *SingleDBPool) Shutdown() {
	p.mu.Lock()
	if p.shuttingDown {
		p.mu.Unlock()
		return
	}
	p.shuttingDown = true
	p.stopOnce.Do(func() { close(p.stopCh) })
	p.cond.Broadcast()

	for _, pc := range p.idle {
		_ = pc.close()
	}
	p.idle = p.idle[:0]
	activeCount := len(p.active)
	p.mu.Unlock()

	if activeCount == 0 {
		return
	}

	slog.Info("draining active connections", "pool", p.cfg.Name, "count", activeCount)
	deadline := time.Now().Add(p.shutdownGrace())
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		p.mu.Lock()
		remaining := len(p.active)
		p.mu.Unlock()
		if remaining == 0 {
			return
		}
		if time.Now().After(deadline) {
			p.mu.Lock()
			for _, pc := range p.active {
				_ = pc.close()
			}
			p.active = make(map[string]*PooledConnection)
			p.mu.Unlock()
			slog.Warn("force-closed active connections after shutdown grace period", "pool", p.cfg.Name)
			return
		}
		<-ticker.C
	}
}
