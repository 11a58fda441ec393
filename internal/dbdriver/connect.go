package dbdriver

import (
	"context"
	"database/sql/driver"
	"errors"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jkantaria/dbgateway/internal/gwerrors"
)

// finishConnect opens db via driverName/dsn, pings it within the
// connection's configured timeout, runs the engine's session
// initialization statements, and stores the handle. It is idempotent:
// a connection that is already open returns immediately.
func (b *baseConn) finishConnect(ctx context.Context, driverName, dsn string, sessionInit []string) error {
	b.mu.Lock()
	if b.db != nil {
		b.mu.Unlock()
		return nil
	}
	b.mu.Unlock()

	db, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return gwerrors.ConnectionError(err, "opening connection %q", b.cfg.Name)
	}

	if b.cfg.Pooling.Enabled {
		db.SetMaxOpenConns(b.cfg.Pooling.MaxSize)
	} else {
		db.SetMaxOpenConns(1)
	}

	pingCtx, cancel := context.WithTimeout(ctx, time.Duration(b.cfg.ConnectTimeoutSec)*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return gwerrors.ConnectionError(err, "connecting to %q", b.cfg.Name)
	}

	for _, stmt := range sessionInit {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			slog.Warn("session init statement failed", "connection", b.cfg.Name, "statement", stmt, "err", err)
			if isBrokenTransport(err) {
				db.Close()
				return gwerrors.ConnectionError(err, "session initialization broke the transport on %q", b.cfg.Name)
			}
		}
	}

	b.mu.Lock()
	b.db = db
	b.mu.Unlock()
	return nil
}

// isBrokenTransport reports whether err indicates the underlying
// network transport, rather than just the statement, is unusable.
// Session init failures that don't meet this bar (e.g. an unsupported
// SET option) are logged and swallowed per spec.
func isBrokenTransport(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, net.ErrClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "use of closed network connection")
}
