// Package config loads and hot-reloads the dbgateway JSON configuration
// file (spec.md §6.3) and holds the validated ConnectionConfig records
// for every configured database pool.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// LogLevel enumerates the application.logLevel values from spec.md §6.3.
type LogLevel string

const (
	LogLevelNone     LogLevel = "none"
	LogLevelFatal    LogLevel = "fatal"
	LogLevelCritical LogLevel = "critical"
	LogLevelError    LogLevel = "error"
	LogLevelWarning  LogLevel = "warning"
	LogLevelInfo     LogLevel = "info"
	LogLevelDebug    LogLevel = "debug"
	LogLevelSpam     LogLevel = "spam"
)

// SlogLevel maps a spec LogLevel onto the nearest log/slog level.
func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LogLevelDebug, LogLevelSpam:
		return slog.LevelDebug
	case LogLevelWarning:
		return slog.LevelWarn
	case LogLevelError, LogLevelCritical, LogLevelFatal:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ApplicationConfig mirrors spec.md §6.3 "application", plus two
// fields the distilled spec leaves to "the HTTP listener" as an
// external collaborator: httpPort for the API listener (teacher's
// Listen.APIPort equivalent) and primaryPool naming which configured
// database pool backs the gateway's customers and sync handlers.
type ApplicationConfig struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	LogLevel    LogLevel `json:"logLevel"`
	HTTPPort    int      `json:"httpPort"`
	PrimaryPool string   `json:"primaryPool"`
}

// JWTConfig mirrors spec.md §6.3 "security.jwt".
type JWTConfig struct {
	Secret          string `json:"secret"`
	Issuer          string `json:"issuer"`
	Audience        string `json:"audience"`
	ExpirationHours int    `json:"expirationHours"`
}

// SecurityConfig mirrors spec.md §6.3 "security".
type SecurityConfig struct {
	JWT JWTConfig `json:"jwt"`
}

// PoolDefaults carries the database.pool.* / database.validation.*
// tunables from spec.md §6.3, used to fill in ConnectionConfig fields
// that are left at their zero value.
type PoolDefaults struct {
	MinSize               int `json:"minSize"`
	MaxSize               int `json:"maxSize"`
	IdleTimeoutSec        int `json:"idleTimeoutSec"`
	AcquireTimeoutMs      int `json:"acquireTimeoutMs"`
	ValidationIntervalSec int `json:"validationIntervalSec"`
	CleanupIntervalSec    int `json:"cleanupIntervalSec"`
	CleanupBudgetSec      int `json:"cleanupBudgetSec"`
	ShutdownGraceSec      int `json:"shutdownGraceSec"`
}

func defaultPoolDefaults() PoolDefaults {
	return PoolDefaults{
		MinSize:               1,
		MaxSize:               10,
		IdleTimeoutSec:        300,
		AcquireTimeoutMs:      5000,
		ValidationIntervalSec: 300,
		CleanupIntervalSec:    15,
		CleanupBudgetSec:      30,
		ShutdownGraceSec:      10,
	}
}

// DatabaseConfig mirrors spec.md §6.3 "database".
type DatabaseConfig struct {
	Defaults   PoolDefaults `json:"defaults"`
	Pool       PoolDefaults `json:"pool"`
	Validation PoolDefaults `json:"validation"`
}

// Config is the top-level dbgateway configuration document.
type Config struct {
	Application   ApplicationConfig  `json:"application"`
	DatabasePools []ConnectionConfig `json:"databasePools"`
	Security      SecurityConfig     `json:"security"`
	Database      DatabaseConfig     `json:"database"`
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// substituteEnvVars replaces ${VAR_NAME} patterns with environment
// variable values, ported from the teacher's config.Watcher helper.
func substituteEnvVars(data []byte) []byte {
	return envVarPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		varName := envVarPattern.FindSubmatch(match)[1]
		if val, ok := os.LookupEnv(string(varName)); ok {
			return []byte(val)
		}
		return match
	})
}

// Load reads, env-substitutes, parses, and validates the JSON config
// file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	data = substituteEnvVars(data)

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func mergeDefaults(pd *PoolDefaults, fallback PoolDefaults) {
	if pd.MinSize == 0 {
		pd.MinSize = fallback.MinSize
	}
	if pd.MaxSize == 0 {
		pd.MaxSize = fallback.MaxSize
	}
	if pd.IdleTimeoutSec == 0 {
		pd.IdleTimeoutSec = fallback.IdleTimeoutSec
	}
	if pd.AcquireTimeoutMs == 0 {
		pd.AcquireTimeoutMs = fallback.AcquireTimeoutMs
	}
	if pd.ValidationIntervalSec == 0 {
		pd.ValidationIntervalSec = fallback.ValidationIntervalSec
	}
	if pd.CleanupIntervalSec == 0 {
		pd.CleanupIntervalSec = fallback.CleanupIntervalSec
	}
	if pd.CleanupBudgetSec == 0 {
		pd.CleanupBudgetSec = fallback.CleanupBudgetSec
	}
	if pd.ShutdownGraceSec == 0 {
		pd.ShutdownGraceSec = fallback.ShutdownGraceSec
	}
}

func applyDefaults(cfg *Config) {
	base := defaultPoolDefaults()
	mergeDefaults(&cfg.Database.Defaults, base)
	mergeDefaults(&cfg.Database.Pool, cfg.Database.Defaults)
	mergeDefaults(&cfg.Database.Validation, cfg.Database.Defaults)

	if cfg.Application.LogLevel == "" {
		cfg.Application.LogLevel = LogLevelInfo
	}
	if cfg.Security.JWT.ExpirationHours == 0 {
		cfg.Security.JWT.ExpirationHours = 24
	}
	if cfg.Application.HTTPPort == 0 {
		cfg.Application.HTTPPort = 8080
	}
	if cfg.Application.PrimaryPool == "" && len(cfg.DatabasePools) > 0 {
		cfg.Application.PrimaryPool = cfg.DatabasePools[0].Name
	}

	for i := range cfg.DatabasePools {
		pc := &cfg.DatabasePools[i]
		if pc.Pooling.Enabled {
			if pc.Pooling.MinSize == 0 {
				pc.Pooling.MinSize = cfg.Database.Pool.MinSize
			}
			if pc.Pooling.MaxSize == 0 {
				pc.Pooling.MaxSize = cfg.Database.Pool.MaxSize
			}
			if pc.Pooling.IdleTimeoutSec == 0 {
				pc.Pooling.IdleTimeoutSec = cfg.Database.Pool.IdleTimeoutSec
			}
			if pc.Pooling.AcquireTimeoutMs == 0 {
				pc.Pooling.AcquireTimeoutMs = cfg.Database.Pool.AcquireTimeoutMs
			}
		}
	}
}

func validate(cfg *Config) error {
	if len(cfg.Security.JWT.Secret) > 0 && len(cfg.Security.JWT.Secret) < 32 {
		return fmt.Errorf("security.jwt.secret must be at least 32 characters")
	}

	seen := make(map[string]struct{}, len(cfg.DatabasePools))
	for i := range cfg.DatabasePools {
		pc := &cfg.DatabasePools[i]
		if err := pc.Validate(); err != nil {
			return err
		}
		if _, dup := seen[pc.Name]; dup {
			return fmt.Errorf("duplicate database pool name %q", pc.Name)
		}
		seen[pc.Name] = struct{}{}
	}
	return nil
}

// Watcher watches the config file for changes and invokes callback
// with the newly loaded and validated Config, ported from the
// teacher's internal/config.Watcher (fsnotify + debounce timer).
type Watcher struct {
	path     string
	callback func(*Config)
	watcher  *fsnotify.Watcher
	mu       sync.Mutex
	stopCh   chan struct{}
}

// NewWatcher creates a new config file watcher.
func NewWatcher(path string, callback func(*Config)) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	if err := w.Add(path); err != nil {
		w.Close()
		return nil, fmt.Errorf("watching config file: %w", err)
	}

	cw := &Watcher{
		path:     path,
		callback: callback,
		watcher:  w,
		stopCh:   make(chan struct{}),
	}

	go cw.run()
	return cw, nil
}

func (cw *Watcher) run() {
	var debounce *time.Timer
	for {
		select {
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(500*time.Millisecond, cw.reload)
			}
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("config watcher error", "err", err)
		case <-cw.stopCh:
			return
		}
	}
}

func (cw *Watcher) reload() {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	cfg, err := Load(cw.path)
	if err != nil {
		slog.Error("config hot-reload failed", "err", err)
		return
	}

	slog.Info("configuration reloaded", "path", cw.path)
	cw.callback(cfg)
}

// Stop stops the config watcher.
func (cw *Watcher) Stop() error {
	close(cw.stopCh)
	return cw.watcher.Close()
}
