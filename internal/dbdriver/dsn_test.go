package dbdriver

import (
	"net/url"
	"strings"
	"testing"

	"github.com/jkantaria/dbgateway/internal/config"
)

func TestMSSQLDSNIncludesDatabaseAndCredentials(t *testing.T) {
	cfg := config.ConnectionConfig{
		Server: "db1", Port: 1433, Database: "appdb",
		Username: "svc", Password: "p@ss w/ord", ConnectTimeoutSec: 15,
	}
	dsn := mssqlDSN(cfg)
	u, err := url.Parse(dsn)
	if err != nil {
		t.Fatalf("mssqlDSN produced unparseable URL: %v", err)
	}
	if u.Scheme != "sqlserver" {
		t.Errorf("expected scheme sqlserver, got %s", u.Scheme)
	}
	if u.Host != "db1:1433" {
		t.Errorf("expected host db1:1433, got %s", u.Host)
	}
	if got, _ := u.User.Password(); got != "p@ss w/ord" {
		t.Errorf("password not round-tripped correctly, got %q", got)
	}
	if u.Query().Get("database") != "appdb" {
		t.Errorf("expected database=appdb in query, got %q", u.RawQuery)
	}
}

func TestPostgresDSNDefaultsToSSLDisable(t *testing.T) {
	cfg := config.ConnectionConfig{Server: "db1", Port: 5432, Database: "appdb", Username: "u", Password: "p"}
	dsn := postgresDSN(cfg)
	if !strings.Contains(dsn, "sslmode=disable") {
		t.Errorf("expected sslmode=disable in dsn, got %s", dsn)
	}
}

func TestPostgresDSNEnablesTLSVerifyFull(t *testing.T) {
	cfg := config.ConnectionConfig{
		Server: "db1", Port: 5432, Database: "appdb",
		TLS: config.TLSConfig{Enabled: true, RootCert: "/etc/ssl/root.pem"},
	}
	dsn := postgresDSN(cfg)
	if !strings.Contains(dsn, "sslmode=verify-full") {
		t.Errorf("expected sslmode=verify-full, got %s", dsn)
	}
	if !strings.Contains(dsn, "sslrootcert=") {
		t.Errorf("expected sslrootcert param, got %s", dsn)
	}
}

func TestMySQLDSNFormat(t *testing.T) {
	cfg := config.ConnectionConfig{Server: "db1", Port: 3306, Database: "appdb", Username: "u", Password: "p", ConnectTimeoutSec: 10}
	dsn := mysqlDSN(cfg)
	if !strings.HasPrefix(dsn, "u:p@tcp(db1:3306)/appdb?") {
		t.Errorf("unexpected mysql dsn shape: %s", dsn)
	}
	if !strings.Contains(dsn, "parseTime=true") || !strings.Contains(dsn, "loc=UTC") {
		t.Errorf("expected parseTime/loc params, got %s", dsn)
	}
}

func TestPostgresSessionInitIncludesSearchPathOnlyWhenSchemaSet(t *testing.T) {
	withSchema := postgresSessionInit("tenant_a")
	if len(withSchema) != 3 {
		t.Fatalf("expected 3 statements with schema, got %d: %v", len(withSchema), withSchema)
	}
	if !strings.Contains(withSchema[0], `"tenant_a"`) {
		t.Errorf("expected quoted schema in search_path statement, got %s", withSchema[0])
	}

	withoutSchema := postgresSessionInit("")
	if len(withoutSchema) != 2 {
		t.Fatalf("expected 2 statements without schema, got %d: %v", len(withoutSchema), withoutSchema)
	}
}

func TestMSSQLSessionInitStatements(t *testing.T) {
	stmts := mssqlSessionInit()
	if len(stmts) != 8 {
		t.Fatalf("expected 8 session-init statements, got %d", len(stmts))
	}
}

func TestMySQLSessionInitStatements(t *testing.T) {
	stmts := mysqlSessionInit()
	if len(stmts) != 3 {
		t.Fatalf("expected 3 session-init statements, got %d", len(stmts))
	}
	if !strings.Contains(stmts[0], "utf8mb4") {
		t.Errorf("expected utf8mb4 in first statement, got %s", stmts[0])
	}
}
