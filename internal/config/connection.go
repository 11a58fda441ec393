package config

import (
	"os"
	"strings"

	"github.com/jkantaria/dbgateway/internal/gwerrors"
)

// Engine identifies the target database engine for a ConnectionConfig.
type Engine int

const (
	EngineUnknown Engine = iota
	EngineMSSQL
	EnginePostgres
	EngineMySQL
)

// ParseEngine converts a config string into an Engine.
func ParseEngine(s string) Engine {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mssql", "sqlserver":
		return EngineMSSQL
	case "postgres", "postgresql", "pgx":
		return EnginePostgres
	case "mysql":
		return EngineMySQL
	default:
		return EngineUnknown
	}
}

func (e Engine) String() string {
	switch e {
	case EngineMSSQL:
		return "mssql"
	case EnginePostgres:
		return "postgres"
	case EngineMySQL:
		return "mysql"
	default:
		return "unknown"
	}
}

// DriverName returns the database/sql driver name registered for this
// engine: "sqlserver" (microsoft/go-mssqldb), "pgx" (jackc/pgx/v5
// stdlib adapter), or "mysql" (go-sql-driver/mysql).
func (e Engine) DriverName() string {
	switch e {
	case EngineMSSQL:
		return "sqlserver"
	case EnginePostgres:
		return "pgx"
	case EngineMySQL:
		return "mysql"
	default:
		return ""
	}
}

// DefaultPort returns the engine's conventional TCP port.
func (e Engine) DefaultPort() int {
	switch e {
	case EngineMSSQL:
		return 1433
	case EnginePostgres:
		return 5432
	case EngineMySQL:
		return 3306
	default:
		return 0
	}
}

// PoolingConfig mirrors spec.md §3.1 "pooling".
type PoolingConfig struct {
	Enabled          bool `json:"enabled"`
	MinSize          int  `json:"minSize"`
	MaxSize          int  `json:"maxSize"`
	IdleTimeoutSec   int  `json:"idleTimeoutSec"`
	AcquireTimeoutMs int  `json:"acquireTimeoutMs"`
}

// TLSConfig mirrors spec.md §3.1 "tls".
type TLSConfig struct {
	Enabled  bool   `json:"enabled"`
	Cert     string `json:"cert"`
	Key      string `json:"key"`
	RootCert string `json:"rootCert"`
}

// RetryConfig mirrors spec.md §3.1 "retry".
type RetryConfig struct {
	Attempts int `json:"attempts"`
	DelayMs  int `json:"delayMs"`
}

// ConnectionConfig is the validated, immutable-after-Validate record
// describing one database endpoint and its pool policy (spec.md §3.1).
type ConnectionConfig struct {
	Name              string            `json:"name"`
	Engine            Engine            `json:"-"`
	EngineRaw         string            `json:"engine"`
	Server            string            `json:"server"`
	Port              int               `json:"port"`
	Database          string            `json:"database"`
	Schema            string            `json:"schema"`
	Username          string            `json:"username"`
	Password          string            `json:"password"`
	ApplicationName   string            `json:"applicationName"`
	ExtraParams       map[string]string `json:"extraParams"`
	ConnectTimeoutSec int               `json:"connectTimeoutSec"`
	CommandTimeoutSec int               `json:"commandTimeoutSec"`
	Pooling           PoolingConfig     `json:"pooling"`
	TLS               TLSConfig         `json:"tls"`
	Retry             RetryConfig       `json:"retry"`

	validated bool
}

// IsProductionMode detects production mode from ENVIRONMENT/APP_ENV,
// per spec.md §3.1.
func IsProductionMode() bool {
	env := strings.ToUpper(strings.TrimSpace(os.Getenv("ENVIRONMENT")))
	appEnv := strings.ToUpper(strings.TrimSpace(os.Getenv("APP_ENV")))
	return env == "PRODUCTION" || appEnv == "PROD"
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Validate enforces every invariant in spec.md §3.1 and normalizes
// derived fields (engine default port, pooling min/max when disabled,
// clamped timeouts). It is idempotent.
func (c *ConnectionConfig) Validate() error {
	if c.Name == "" {
		return gwerrors.ConfigError("connection config: name must not be empty")
	}
	if c.Server == "" {
		return gwerrors.ConfigError("connection config %q: server must not be empty", c.Name)
	}
	if c.Database == "" {
		return gwerrors.ConfigError("connection config %q: database must not be empty", c.Name)
	}

	c.Engine = ParseEngine(c.EngineRaw)
	if c.Port == 0 {
		c.Port = c.Engine.DefaultPort()
	}

	if c.Pooling.Enabled {
		if c.Pooling.MinSize < 1 {
			c.Pooling.MinSize = 1
		}
		if c.Pooling.MaxSize < c.Pooling.MinSize {
			c.Pooling.MaxSize = c.Pooling.MinSize
		}
		if IsProductionMode() {
			if c.Pooling.MinSize < 2 {
				return gwerrors.ConfigError("connection config %q: minSize must be >= 2 in production", c.Name)
			}
			if c.Pooling.MaxSize < 2*c.Pooling.MinSize {
				return gwerrors.ConfigError("connection config %q: maxSize must be >= 2*minSize in production", c.Name)
			}
		}
		if c.Pooling.AcquireTimeoutMs == 0 {
			c.Pooling.AcquireTimeoutMs = 5000
		}
		c.Pooling.AcquireTimeoutMs = clampInt(c.Pooling.AcquireTimeoutMs, 1000, 300000)
		if c.Pooling.IdleTimeoutSec < 60 {
			c.Pooling.IdleTimeoutSec = 60
		}
	} else {
		c.Pooling.MinSize = 0
		c.Pooling.MaxSize = 1
	}

	if c.ConnectTimeoutSec <= 0 {
		c.ConnectTimeoutSec = 30
	}
	if c.ConnectTimeoutSec > 300 {
		c.ConnectTimeoutSec = 300
	}
	if c.CommandTimeoutSec <= 0 {
		c.CommandTimeoutSec = 30
	}
	if c.CommandTimeoutSec > 3600 {
		c.CommandTimeoutSec = 3600
	}
	if c.Retry.Attempts > 10 {
		c.Retry.Attempts = 10
	}
	if c.Retry.DelayMs > 60000 {
		c.Retry.DelayMs = 60000
	}

	c.validated = true
	return nil
}

// Validated reports whether Validate has already succeeded.
func (c *ConnectionConfig) Validated() bool {
	return c.validated
}

// Redacted returns a copy of the ConnectionConfig with the password
// masked, safe for logging — mirrors the teacher's TenantConfig.Redacted.
func (c ConnectionConfig) Redacted() ConnectionConfig {
	if c.Password != "" {
		c.Password = "***REDACTED***"
	}
	return c
}
