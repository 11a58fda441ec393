package dbpool

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/jkantaria/dbgateway/internal/config"
	"github.com/jkantaria/dbgateway/internal/dbdriver"
	"github.com/jkantaria/dbgateway/internal/gwerrors"
)

// managerState is the PoolManager lifecycle from spec.md §4.3.
type managerState int

const (
	managerUninitialized managerState = iota
	managerRunning
	managerDestroyed
)

// PoolManager owns one SingleDBPool per configured database and
// implements the atomic-reconfiguration / named-acquire surface of
// spec.md §4.3. Grounded on the teacher's pool.Manager (RWMutex-guarded
// name→pool map, Close-once semantics), generalized to the three-state
// uninitialized/running/destroyed lifecycle and irreversible
// destruction the spec requires.
type PoolManager struct {
	mu       sync.RWMutex
	state    managerState
	pools    map[string]*SingleDBPool
	settings Settings
}

// NewPoolManager constructs a manager in the running state with no
// configured pools yet.
func NewPoolManager(settings Settings) *PoolManager {
	return &PoolManager{
		state:    managerRunning,
		pools:    make(map[string]*SingleDBPool),
		settings: settings,
	}
}

// ConfigurePools atomically replaces the full set of named pools,
// destroying whatever pools previously existed under the manager lock.
func (m *PoolManager) ConfigurePools(cfgs []config.ConnectionConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == managerDestroyed {
		return gwerrors.PoolError(false, "pool manager has been destroyed")
	}

	old := m.pools
	next := make(map[string]*SingleDBPool, len(cfgs))
	for _, cfg := range cfgs {
		next[cfg.Name] = NewSingleDBPool(cfg, m.settings)
	}
	m.pools = next
	m.state = managerRunning

	for name, p := range old {
		slog.Info("retiring pool during reconfiguration", "pool", name)
		p.Shutdown()
	}
	return nil
}

// ConfigureOne atomically replaces a single named pool, leaving the
// others untouched.
func (m *PoolManager) ConfigureOne(cfg config.ConnectionConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == managerDestroyed {
		return gwerrors.PoolError(false, "pool manager has been destroyed")
	}

	old, existed := m.pools[cfg.Name]
	m.pools[cfg.Name] = NewSingleDBPool(cfg, m.settings)
	if existed {
		go old.Shutdown()
	}
	return nil
}

func (m *PoolManager) pool(name string) (*SingleDBPool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.state == managerDestroyed {
		return nil, gwerrors.PoolError(false, "pool manager has been destroyed")
	}
	p, ok := m.pools[name]
	if !ok {
		return nil, gwerrors.PoolError(false, "unknown database pool %q", name)
	}
	return p, nil
}

// Acquire fetches a connection from the named pool.
func (m *PoolManager) Acquire(ctx context.Context, name string, timeoutMs int) (*PooledConnection, error) {
	p, err := m.pool(name)
	if err != nil {
		return nil, err
	}
	return p.Acquire(ctx, timeoutMs)
}

// Release returns conn to its owning pool. nameHint, when non-empty,
// is tried first; otherwise the connection's own recorded pool name is
// used, and failing that every pool is asked in turn to reclaim it —
// the deprecated fallback path spec.md §4.3 allows for connections
// whose origin cannot otherwise be determined.
func (m *PoolManager) Release(conn *PooledConnection, nameHint string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.state == managerDestroyed {
		return gwerrors.PoolError(false, "pool manager has been destroyed")
	}

	if nameHint != "" {
		if p, ok := m.pools[nameHint]; ok {
			p.Release(conn)
			return nil
		}
	}

	if conn.PoolName() != "" {
		if p, ok := m.pools[conn.PoolName()]; ok {
			p.Release(conn)
			return nil
		}
	}

	slog.Warn("releasing connection by iteration: no pool name hint available", "conn", conn.ID())
	for _, p := range m.pools {
		if p.HasActive(conn.ID()) {
			p.Release(conn)
			return nil
		}
	}
	return gwerrors.PoolError(false, "could not determine owning pool for connection %q", conn.ID())
}

// Acquirer is the minimal pool-access surface HTTP controllers depend
// on: acquire a session and get back a release function, rather than
// the full PooledConnection handle, so they can be exercised against a
// fake dbdriver.DBConnection in tests without a real pool behind it.
type Acquirer interface {
	AcquireConn(ctx context.Context, pool string, timeoutMs int) (dbdriver.DBConnection, func(), error)
}

// AcquireConn implements Acquirer by acquiring from and releasing back
// to the named pool.
func (m *PoolManager) AcquireConn(ctx context.Context, pool string, timeoutMs int) (dbdriver.DBConnection, func(), error) {
	pc, err := m.Acquire(ctx, pool, timeoutMs)
	if err != nil {
		return nil, nil, err
	}
	release := func() { m.Release(pc, pool) }
	return pc.Conn(), release, nil
}

// PoolNames returns the names of every currently configured pool, used
// by the health checker and status handler to know what to iterate.
func (m *PoolManager) PoolNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.pools))
	for name := range m.pools {
		names = append(names, name)
	}
	return names
}

// GetPoolStats returns the JSON-encoded stats for one named pool.
func (m *PoolManager) GetPoolStats(name string) ([]byte, error) {
	p, err := m.pool(name)
	if err != nil {
		return nil, err
	}
	return json.Marshal(p.Stats())
}

// GetAllPoolsStats returns the JSON-encoded stats array for every pool.
func (m *PoolManager) GetAllPoolsStats() ([]byte, error) {
	m.mu.RLock()
	stats := make([]Stats, 0, len(m.pools))
	for _, p := range m.pools {
		stats = append(stats, p.Stats())
	}
	m.mu.RUnlock()
	return json.Marshal(stats)
}

// ValidateAll proactively validates idle connections in every pool.
func (m *PoolManager) ValidateAll() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.pools {
		p.ValidateAll()
	}
}

// TrimAll forces an immediate idle-trim pass on every pool.
func (m *PoolManager) TrimAll() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.pools {
		p.Trim()
	}
}

// Shutdown destroys every pool and transitions the manager to the
// terminal destroyed state. Irreversible: subsequent calls return
// PoolError(destroyed).
func (m *PoolManager) Shutdown() {
	m.mu.Lock()
	if m.state == managerDestroyed {
		m.mu.Unlock()
		return
	}
	pools := m.pools
	m.pools = make(map[string]*SingleDBPool)
	m.state = managerDestroyed
	m.mu.Unlock()

	for _, p := range pools {
		p.Shutdown()
	}
}
