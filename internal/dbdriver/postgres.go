package dbdriver

import (
	"context"
	"fmt"
	"net/url"

	"github.com/jkantaria/dbgateway/internal/config"
)

// postgresConn is a DBConnection backed by jackc/pgx/v5's database/sql
// stdlib adapter (driver name "pgx").
type postgresConn struct {
	baseConn
}

func postgresDSN(cfg config.ConnectionConfig) string {
	q := url.Values{}
	q.Set("connect_timeout", fmt.Sprintf("%d", cfg.ConnectTimeoutSec))
	if cfg.ApplicationName != "" {
		q.Set("application_name", cfg.ApplicationName)
	}
	if cfg.TLS.Enabled {
		q.Set("sslmode", "verify-full")
		if cfg.TLS.RootCert != "" {
			q.Set("sslrootcert", cfg.TLS.RootCert)
		}
		if cfg.TLS.Cert != "" {
			q.Set("sslcert", cfg.TLS.Cert)
		}
		if cfg.TLS.Key != "" {
			q.Set("sslkey", cfg.TLS.Key)
		}
	} else {
		q.Set("sslmode", "disable")
	}
	for k, v := range cfg.ExtraParams {
		q.Set(k, v)
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.Username, cfg.Password),
		Host:     fmt.Sprintf("%s:%d", cfg.Server, cfg.Port),
		Path:     "/" + cfg.Database,
		RawQuery: q.Encode(),
	}
	return u.String()
}

func postgresSessionInit(schema string) []string {
	stmts := make([]string, 0, 3)
	if schema != "" {
		if quoted, err := QuoteIdentifier(config.EnginePostgres, schema); err == nil {
			stmts = append(stmts, "SET search_path TO "+quoted)
		}
	}
	stmts = append(stmts,
		"SET client_encoding TO 'UTF8'",
		"SET TIME ZONE 'UTC'",
	)
	return stmts
}

func (c *postgresConn) Connect(ctx context.Context) error {
	return c.finishConnect(ctx, "pgx", postgresDSN(c.cfg), postgresSessionInit(c.cfg.Schema))
}

func (c *postgresConn) Version(ctx context.Context) (string, error) {
	v, err := c.ExecuteScalar(ctx, "SELECT version()", nil)
	if err != nil {
		return "", err
	}
	return scalarToString(v), nil
}

func (c *postgresConn) GetTables(ctx context.Context) ([]string, error) {
	rs, err := c.ExecuteReader(ctx,
		"SELECT table_name AS name FROM information_schema.tables WHERE table_schema = current_schema() AND table_type = 'BASE TABLE' ORDER BY table_name",
		nil)
	if err != nil {
		return nil, err
	}
	return columnStrings(rs, "name"), nil
}

func (c *postgresConn) GetFields(ctx context.Context, table string) ([]string, error) {
	if _, err := QuoteIdentifier(c.Engine(), table); err != nil {
		return nil, err
	}
	rs, err := c.ExecuteReader(ctx,
		"SELECT column_name AS name FROM information_schema.columns WHERE table_name = :table ORDER BY ordinal_position",
		Params{"table": table})
	if err != nil {
		return nil, err
	}
	return columnStrings(rs, "name"), nil
}
