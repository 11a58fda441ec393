package dbdriver

import (
	"context"
	"fmt"
	"net/url"

	"github.com/jkantaria/dbgateway/internal/config"
)

// mysqlConn is a DBConnection backed by go-sql-driver/mysql.
type mysqlConn struct {
	baseConn
}

func mysqlDSN(cfg config.ConnectionConfig) string {
	q := url.Values{}
	q.Set("parseTime", "true")
	q.Set("loc", "UTC")
	q.Set("timeout", fmt.Sprintf("%ds", cfg.ConnectTimeoutSec))
	if cfg.TLS.Enabled {
		q.Set("tls", "true")
	}
	for k, v := range cfg.ExtraParams {
		q.Set(k, v)
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
		url.QueryEscape(cfg.Username), url.QueryEscape(cfg.Password),
		cfg.Server, cfg.Port, cfg.Database, q.Encode())
}

func mysqlSessionInit() []string {
	return []string{
		"SET NAMES utf8mb4 COLLATE utf8mb4_unicode_ci",
		"SET SESSION time_zone = '+00:00'",
		"SET SESSION sql_mode = 'STRICT_TRANS_TABLES,NO_ZERO_IN_DATE,NO_ZERO_DATE,ERROR_FOR_DIVISION_BY_ZERO,NO_ENGINE_SUBSTITUTION'",
	}
}

func (c *mysqlConn) Connect(ctx context.Context) error {
	return c.finishConnect(ctx, "mysql", mysqlDSN(c.cfg), mysqlSessionInit())
}

func (c *mysqlConn) Version(ctx context.Context) (string, error) {
	v, err := c.ExecuteScalar(ctx, "SELECT VERSION()", nil)
	if err != nil {
		return "", err
	}
	return scalarToString(v), nil
}

func (c *mysqlConn) GetTables(ctx context.Context) ([]string, error) {
	rs, err := c.ExecuteReader(ctx,
		"SELECT TABLE_NAME AS name FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_SCHEMA = DATABASE() AND TABLE_TYPE = 'BASE TABLE' ORDER BY TABLE_NAME",
		nil)
	if err != nil {
		return nil, err
	}
	return columnStrings(rs, "name"), nil
}

func (c *mysqlConn) GetFields(ctx context.Context, table string) ([]string, error) {
	if _, err := QuoteIdentifier(c.Engine(), table); err != nil {
		return nil, err
	}
	rs, err := c.ExecuteReader(ctx,
		"SELECT COLUMN_NAME AS name FROM INFORMATION_SCHEMA.COLUMNS WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = :table ORDER BY ORDINAL_POSITION",
		Params{"table": table})
	if err != nil {
		return nil, err
	}
	return columnStrings(rs, "name"), nil
}
