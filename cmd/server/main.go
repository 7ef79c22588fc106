package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/purelind/pycompat-check/internal/badge"
	"github.com/purelind/pycompat-check/internal/cache"
	_ "github.com/purelind/pycompat-check/internal/cache/bc"
	_ "github.com/purelind/pycompat-check/internal/cache/redis"
	"github.com/purelind/pycompat-check/internal/checker"
	"github.com/purelind/pycompat-check/internal/config"
	"github.com/purelind/pycompat-check/internal/database"
	"github.com/purelind/pycompat-check/internal/freshness"
	"github.com/purelind/pycompat-check/internal/pypi"
	"github.com/purelind/pycompat-check/internal/server"
	"github.com/purelind/pycompat-check/internal/status"
	"github.com/purelind/pycompat-check/internal/updater"
	"github.com/purelind/pycompat-check/pkg/logger"
)

func main() {
	workers := flag.Int("refresh-workers", 4, "packages refreshed at once by the cron job")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		panic("failed to load .env: " + err.Error())
	}
	cfg := config.Load()

	// initialize logger
	if err := logger.Init(cfg.LogPath, cfg.LogLevel); err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer logger.Sync()

	w, err := config.LoadWhitelist(cfg.WhitelistFile)
	if err != nil {
		logger.Error("Failed to load whitelist:", err)
		os.Exit(1)
	}

	ctx := context.Background()
	store, closeStore, err := database.Open(ctx, cfg, w.PyPIName)
	if err != nil {
		logger.Error("Failed to open result store:", err)
		os.Exit(1)
	}
	defer closeStore()

	cache.DoCallbacks()
	c, err := cache.Initialize(cfg.Cache)
	if err != nil {
		logger.Error("Failed to initialize cache:", err)
		os.Exit(1)
	}
	defer c.Close()

	// only reached for packages outside the whitelist
	remote := checker.NewRemote(cfg.CheckEndpoint, checker.DefaultRemoteTimeout)
	source := freshness.NewStoreFirst(store, remote, w)
	client := pypi.NewClient(cfg.PyPI.BaseURL, cfg.PyPI.Rate)
	agg := status.NewAggregator(store,
		freshness.NewHighlighter(source, w),
		freshness.NewDeprecatedFinder(source, client, w),
		w)

	u := updater.NewUpdater(updater.DefaultAPI, cfg.GitHubToken, w)
	svc := badge.NewService(agg, c, u, w)

	srv := server.New(cfg.Server.Port, server.NewBadgeHandler(svc))

	// setup cron job
	cr := cron.New()
	_, err = cr.AddFunc(cfg.CronSchedule, func() {
		if err := u.UpdateAll(ctx); err != nil {
			logger.Warn("Failed to update GitHub head commits:", err)
		}
		if err := svc.RefreshAll(ctx, *workers); err != nil {
			logger.Error("Failed to refresh badges:", err)
		}
	})
	if err != nil {
		logger.Error("Failed to schedule cron job:", err)
		os.Exit(1)
	} else {
		logger.Info("Cron job scheduled:", cfg.CronSchedule)
	}
	cr.Start()
	defer cr.Stop()

	// start server in a goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error("Failed to start server:", err)
			os.Exit(1)
		}
	}()

	// handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown:", err)
	}
}
