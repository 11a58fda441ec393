// Package dbpool implements SingleDBPool and PoolManager (spec.md
// §4.2/§4.3): a bounded pool of dbdriver.DBConnection sessions with
// lazy validation, idle trimming, and fair condvar-based acquisition,
// grounded on the teacher's internal/pool connection-state machine.
package dbpool

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jkantaria/dbgateway/internal/dbdriver"
)

// State is the lifecycle state of a PooledConnection.
type State int

const (
	StateNew State = iota
	StateIdle
	StateInUse
	StateInvalid
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateIdle:
		return "idle"
	case StateInUse:
		return "inUse"
	case StateInvalid:
		return "invalid"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// PooledConnection wraps a dbdriver.DBConnection with the pool
// bookkeeping fields spec.md §4.2 requires: identity, state, and the
// timestamps the acquisition/cleanup algorithms key off of. Mirrors
// the teacher's PooledConn, generalized from a raw net.Conn to a
// DBConnection.
type PooledConnection struct {
	mu sync.Mutex

	id            string
	conn          dbdriver.DBConnection
	state         State
	createdAt     time.Time
	lastUsedAt    time.Time
	lastValidated time.Time
	poolName      string
}

func newPooledConnection(conn dbdriver.DBConnection, poolName string) *PooledConnection {
	now := time.Now()
	return &PooledConnection{
		id:            uuid.NewString(),
		conn:          conn,
		state:         StateNew,
		createdAt:     now,
		lastUsedAt:    now,
		lastValidated: now,
		poolName:      poolName,
	}
}

// ID returns the PooledConnection's stable identity, used to locate it
// in the active set on Release.
func (pc *PooledConnection) ID() string { return pc.id }

// Conn returns the underlying DBConnection for issuing queries.
func (pc *PooledConnection) Conn() dbdriver.DBConnection { return pc.conn }

// PoolName returns the name of the pool this connection was created by.
func (pc *PooledConnection) PoolName() string { return pc.poolName }

func (pc *PooledConnection) State() State {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.state
}

func (pc *PooledConnection) setState(s State) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.state = s
}

func (pc *PooledConnection) markUsed() {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.lastUsedAt = time.Now()
}

func (pc *PooledConnection) idleFor() time.Duration {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return time.Since(pc.lastUsedAt)
}

// needsValidation reports whether the connection should be pinged
// before being handed out, per the lazy validation policy in spec.md
// §4.2.1: due when now-lastValidatedAt >= validationIntervalSec.
func (pc *PooledConnection) needsValidation(interval time.Duration) bool {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return time.Since(pc.lastValidated) >= interval
}

func (pc *PooledConnection) markValidated() {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.lastValidated = time.Now()
}

// validationTimeout shortens the SELECT 1 budget for connections that
// have sat idle a long time or were previously flagged invalid,
// per spec.md §4.2.1.
func (pc *PooledConnection) validationTimeout() time.Duration {
	if pc.idleFor() > time.Hour || pc.State() == StateInvalid {
		return time.Second
	}
	return 5 * time.Second
}

func (pc *PooledConnection) close() error {
	pc.setState(StateClosed)
	return pc.conn.Disconnect()
}
