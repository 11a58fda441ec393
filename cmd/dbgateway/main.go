package main

import (
	"encoding/json"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jkantaria/dbgateway/internal/authn"
	"github.com/jkantaria/dbgateway/internal/config"
	"github.com/jkantaria/dbgateway/internal/customers"
	"github.com/jkantaria/dbgateway/internal/dbpool"
	"github.com/jkantaria/dbgateway/internal/healthcheck"
	"github.com/jkantaria/dbgateway/internal/httpapi"
	"github.com/jkantaria/dbgateway/internal/metrics"
	"github.com/jkantaria/dbgateway/internal/synccontrollers"
)

func main() {
	configPath := flag.String("config", "configs/dbgateway.json", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	slog.SetLogLoggerLevel(cfg.Application.LogLevel.SlogLevel())
	slog.Info("dbgateway starting", "config", *configPath, "pools", len(cfg.DatabasePools))

	m := metrics.New()

	pm := dbpool.NewPoolManager(dbpool.Settings{
		ValidationIntervalSec: cfg.Database.Validation.ValidationIntervalSec,
		CleanupIntervalSec:    cfg.Database.Pool.CleanupIntervalSec,
		CleanupBudgetSec:      cfg.Database.Pool.CleanupBudgetSec,
		ShutdownGraceSec:      cfg.Database.Pool.ShutdownGraceSec,
	})
	if err := pm.ConfigurePools(cfg.DatabasePools); err != nil {
		log.Fatalf("failed to configure database pools: %v", err)
	}

	hc := healthcheck.NewChecker(pm, pm.PoolNames, m, healthcheck.Settings{})
	hc.Start()

	stopStats := startStatsLoop(pm, m, 5*time.Second)

	userStore := authn.NewMemoryUserStore()
	auth := authn.New(cfg.Security.JWT, userStore)
	sessions := authn.NewSessionRegistry()

	customerHandlers := customers.NewHandlers(pm, cfg.Application.PrimaryPool)
	syncHandlers := synccontrollers.NewHandlers(pm, cfg.Application.PrimaryPool)

	api := httpapi.NewServer(pm, hc, m, auth, sessions, customerHandlers, syncHandlers)
	if err := api.Start(cfg.Application.HTTPPort); err != nil {
		log.Fatalf("failed to start http api: %v", err)
	}

	watcher, err := config.NewWatcher(*configPath, func(newCfg *config.Config) {
		if err := pm.ConfigurePools(newCfg.DatabasePools); err != nil {
			slog.Error("config hot-reload: failed to reconfigure pools", "err", err)
			return
		}
		slog.Info("configuration reloaded", "pools", len(newCfg.DatabasePools))
	})
	if err != nil {
		slog.Warn("config hot-reload not available", "err", err)
	}

	slog.Info("dbgateway ready", "httpPort", cfg.Application.HTTPPort, "primaryPool", cfg.Application.PrimaryPool)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("received signal, shutting down", "signal", sig.String())

	if watcher != nil {
		watcher.Stop()
	}
	close(stopStats)
	if err := api.Stop(); err != nil {
		slog.Error("http api shutdown error", "err", err)
	}
	hc.Stop()
	pm.Shutdown()

	slog.Info("dbgateway stopped")
}

// startStatsLoop periodically pushes each pool's Stats into the
// Prometheus collector, the same cadence-driven push the teacher's
// pool.Manager.StartStatsLoop uses, adapted to dbpool.PoolManager's
// JSON snapshot (GetAllPoolsStats) instead of a typed stats channel.
func startStatsLoop(pm *dbpool.PoolManager, m *metrics.Collector, interval time.Duration) chan struct{} {
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				data, err := pm.GetAllPoolsStats()
				if err != nil {
					slog.Error("failed to collect pool stats", "err", err)
					continue
				}
				var stats []dbpool.Stats
				if err := json.Unmarshal(data, &stats); err != nil {
					slog.Error("failed to decode pool stats", "err", err)
					continue
				}
				for _, s := range stats {
					m.UpdatePoolStats(s)
				}
			case <-stop:
				return
			}
		}
	}()
	return stop
}
