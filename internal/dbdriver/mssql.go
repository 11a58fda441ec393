package dbdriver

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/jkantaria/dbgateway/internal/config"
)

// mssqlConn is a DBConnection backed by microsoft/go-mssqldb.
type mssqlConn struct {
	baseConn
}

func mssqlDSN(cfg config.ConnectionConfig) string {
	q := url.Values{}
	q.Set("database", cfg.Database)
	q.Set("connection timeout", strconv.Itoa(cfg.ConnectTimeoutSec))
	q.Set("dial timeout", strconv.Itoa(cfg.ConnectTimeoutSec))
	if cfg.ApplicationName != "" {
		q.Set("app name", cfg.ApplicationName)
	}
	if cfg.TLS.Enabled {
		q.Set("encrypt", "true")
		if cfg.TLS.RootCert != "" {
			q.Set("certificate", cfg.TLS.RootCert)
		}
	} else {
		q.Set("encrypt", "disable")
	}
	for k, v := range cfg.ExtraParams {
		q.Set(k, v)
	}

	u := url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(cfg.Username, cfg.Password),
		Host:     fmt.Sprintf("%s:%d", cfg.Server, cfg.Port),
		RawQuery: q.Encode(),
	}
	return u.String()
}

func mssqlSessionInit() []string {
	return []string{
		"SET ANSI_NULLS ON",
		"SET ANSI_PADDING ON",
		"SET ANSI_WARNINGS ON",
		"SET ARITHABORT ON",
		"SET CONCAT_NULL_YIELDS_NULL ON",
		"SET QUOTED_IDENTIFIER ON",
		"SET NUMERIC_ROUNDABORT OFF",
		"SET DATEFORMAT ymd",
	}
}

func (c *mssqlConn) Connect(ctx context.Context) error {
	return c.finishConnect(ctx, "sqlserver", mssqlDSN(c.cfg), mssqlSessionInit())
}

func (c *mssqlConn) Version(ctx context.Context) (string, error) {
	v, err := c.ExecuteScalar(ctx, "SELECT @@VERSION", nil)
	if err != nil {
		return "", err
	}
	return scalarToString(v), nil
}

func (c *mssqlConn) GetTables(ctx context.Context) ([]string, error) {
	rs, err := c.ExecuteReader(ctx, "SELECT TABLE_NAME AS name FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_TYPE = 'BASE TABLE' ORDER BY TABLE_NAME", nil)
	if err != nil {
		return nil, err
	}
	return columnStrings(rs, "name"), nil
}

func (c *mssqlConn) GetFields(ctx context.Context, table string) ([]string, error) {
	if _, err := QuoteIdentifier(c.Engine(), table); err != nil {
		return nil, err
	}
	rs, err := c.ExecuteReader(ctx, "SELECT COLUMN_NAME AS name FROM INFORMATION_SCHEMA.COLUMNS WHERE TABLE_NAME = :table ORDER BY ORDINAL_POSITION", Params{"table": table})
	if err != nil {
		return nil, err
	}
	return columnStrings(rs, "name"), nil
}
