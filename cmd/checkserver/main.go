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

	"github.com/purelind/pycompat-check/internal/checker"
	"github.com/purelind/pycompat-check/internal/config"
	"github.com/purelind/pycompat-check/internal/pypi"
	"github.com/purelind/pycompat-check/internal/server"
	"github.com/purelind/pycompat-check/pkg/logger"
)

func main() {
	port := flag.Int("port", 0, "listen port; CHECK_SERVER_PORT when 0")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		panic("failed to load .env: " + err.Error())
	}
	cfg := config.Load()
	if *port == 0 {
		*port = cfg.Server.CheckPort
	}

	if err := logger.Init(cfg.LogPath, cfg.LogLevel); err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer logger.Sync()

	w, err := config.LoadWhitelist(cfg.WhitelistFile)
	if err != nil {
		logger.Error("Failed to load whitelist:", err)
		os.Exit(1)
	}

	probes := make(map[int]*checker.Pip, len(cfg.Probe.PythonCommands))
	versions := make([]int, 0, len(cfg.Probe.PythonCommands))
	for v, cmd := range cfg.Probe.PythonCommands {
		probes[v] = &checker.Pip{
			Command: cmd,
			TmpDir:  cfg.Probe.TmpDir,
			Clean:   cfg.Probe.Clean,
			Timeout: cfg.Probe.Timeout,
		}
		versions = append(versions, v)
	}
	resolver := pypi.NewResolver(pypi.NewClient(cfg.PyPI.BaseURL, cfg.PyPI.Rate), 8)
	local := checker.NewLocal(probes, resolver)

	srv := server.New(*port, server.NewCheckHandler(local, versions, w))

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

	// let a running probe finish
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Probe.Timeout+10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown:", err)
	}
}
