package config

import (
	"os"
	"testing"
)

func TestConnectionConfigValidateDefaults(t *testing.T) {
	c := ConnectionConfig{Name: "main", EngineRaw: "mssql", Server: "db1", Database: "appdb"}
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if c.Port != 1433 {
		t.Errorf("expected default mssql port 1433, got %d", c.Port)
	}
	if c.Pooling.MinSize != 0 || c.Pooling.MaxSize != 1 {
		t.Errorf("expected pooling disabled to force minSize=0 maxSize=1, got %+v", c.Pooling)
	}
	if !c.Validated() {
		t.Error("expected Validated() true after Validate")
	}
}

func TestConnectionConfigValidateRequiresServerAndDatabase(t *testing.T) {
	if err := (&ConnectionConfig{Name: "x"}).Validate(); err == nil {
		t.Error("expected error for missing server/database")
	}
	if err := (&ConnectionConfig{Name: "x", Server: "h"}).Validate(); err == nil {
		t.Error("expected error for missing database")
	}
}

func TestConnectionConfigAcquireTimeoutClamp(t *testing.T) {
	c := ConnectionConfig{
		Name: "p", Server: "h", Database: "d", EngineRaw: "postgres",
		Pooling: PoolingConfig{Enabled: true, MinSize: 1, MaxSize: 5, AcquireTimeoutMs: 999999999},
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if c.Pooling.AcquireTimeoutMs != 300000 {
		t.Errorf("expected acquire timeout clamped to 300000, got %d", c.Pooling.AcquireTimeoutMs)
	}
}

func TestConnectionConfigProductionModeRequiresLargerPools(t *testing.T) {
	os.Setenv("ENVIRONMENT", "PRODUCTION")
	defer os.Unsetenv("ENVIRONMENT")

	c := ConnectionConfig{
		Name: "p", Server: "h", Database: "d", EngineRaw: "mysql",
		Pooling: PoolingConfig{Enabled: true, MinSize: 1, MaxSize: 1},
	}
	if err := c.Validate(); err == nil {
		t.Error("expected production-mode validation error for minSize<2")
	}

	c2 := ConnectionConfig{
		Name: "p2", Server: "h", Database: "d", EngineRaw: "mysql",
		Pooling: PoolingConfig{Enabled: true, MinSize: 2, MaxSize: 3},
	}
	if err := c2.Validate(); err == nil {
		t.Error("expected production-mode validation error for maxSize<2*minSize")
	}
}

func TestConnectionConfigRedacted(t *testing.T) {
	c := ConnectionConfig{Name: "p", Password: "s3cr3t"}
	r := c.Redacted()
	if r.Password == "s3cr3t" {
		t.Error("expected password to be redacted")
	}
	if c.Password != "s3cr3t" {
		t.Error("Redacted must not mutate the original")
	}
}

func TestEngineDriverNameAndDefaultPort(t *testing.T) {
	cases := []struct {
		raw        string
		driverName string
		port       int
	}{
		{"mssql", "sqlserver", 1433},
		{"postgres", "pgx", 5432},
		{"mysql", "mysql", 3306},
	}
	for _, tc := range cases {
		e := ParseEngine(tc.raw)
		if e.DriverName() != tc.driverName {
			t.Errorf("%s: expected driver %s, got %s", tc.raw, tc.driverName, e.DriverName())
		}
		if e.DefaultPort() != tc.port {
			t.Errorf("%s: expected port %d, got %d", tc.raw, tc.port, e.DefaultPort())
		}
	}
}
