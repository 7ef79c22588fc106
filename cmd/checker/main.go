package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/purelind/pycompat-check/internal/checker"
	"github.com/purelind/pycompat-check/internal/config"
	"github.com/purelind/pycompat-check/internal/database"
	"github.com/purelind/pycompat-check/internal/notify"
	"github.com/purelind/pycompat-check/internal/orchestrator"
	"github.com/purelind/pycompat-check/internal/pypi"
	"github.com/purelind/pycompat-check/pkg/logger"
)

const notifyTimeout = 30 * time.Second

func main() {
	timeout := flag.Duration("timeout", 6*time.Hour, "run timeout duration")
	withPyPI := flag.Bool("pypi", true, "check the whitelisted PyPI packages")
	withGitHub := flag.Bool("github", false, "check the GitHub head packages")
	versionsFlag := flag.String("versions", "2,3", "comma separated python versions to check")
	local := flag.Bool("local", false, "run probes on this host instead of the check endpoint")
	schedule := flag.String("schedule", "", "cron schedule; run once when empty")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		panic("failed to load .env: " + err.Error())
	}
	cfg := config.Load()

	if err := logger.Init(cfg.LogPath, cfg.LogLevel); err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer logger.Sync()

	versions, err := parseVersions(*versionsFlag)
	if err != nil {
		logger.Error("Invalid -versions:", err)
		os.Exit(1)
	}

	w, err := config.LoadWhitelist(cfg.WhitelistFile)
	if err != nil {
		logger.Error("Failed to load whitelist:", err)
		os.Exit(1)
	}

	store, closeStore, err := database.Open(context.Background(), cfg, w.PyPIName)
	if err != nil {
		logger.Error("Failed to open result store:", err)
		os.Exit(1)
	}
	defer closeStore()

	var c checker.Checker
	if *local {
		c = newLocalChecker(cfg)
	} else {
		c = checker.NewRemote(cfg.CheckEndpoint, checker.DefaultRemoteTimeout)
	}

	o := orchestrator.New(c, store, w,
		orchestrator.WithWorkers(cfg.Orchestrator.Workers),
		orchestrator.WithAttempts(cfg.Orchestrator.Attempts),
		orchestrator.WithProgressEvery(cfg.Orchestrator.ProgressEvery),
		orchestrator.WithBatchSize(cfg.Orchestrator.BatchSize),
	)
	n := notify.NewNotifier(cfg.Webhooks.Success, cfg.Webhooks.Failure)

	run := func() bool {
		ctx, cancel := context.WithTimeout(context.Background(), *timeout)
		defer cancel()

		var units []orchestrator.Unit
		if *withPyPI {
			units = append(units, o.Plan(w.Tracked(), versions)...)
		}
		if *withGitHub {
			units = append(units, o.PlanGitHub(versions)...)
		}
		sum, err := o.Execute(ctx, units)
		if err != nil {
			logger.Error("Run failed:", err)
		}
		if sum != nil {
			report(n, sum)
		}
		return err == nil && sum != nil && len(sum.Failures) == 0
	}

	if *schedule == "" {
		if !run() {
			logger.Error("Checker failed")
			os.Exit(1)
		}
		logger.Info("Checker completed successfully")
		return
	}

	cr := cron.New()
	if _, err := cr.AddFunc(*schedule, func() { run() }); err != nil {
		logger.Error("Failed to schedule cron job:", err)
		os.Exit(1)
	}
	logger.Info("Cron job scheduled:", *schedule)
	cr.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Waiting for the running check to finish...")
	<-cr.Stop().Done()
}

// report sends the run summary on its own deadline, so a run that hit
// its timeout still gets reported.
func report(n *notify.Notifier, sum *orchestrator.Summary) {
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()
	if err := n.SendRunSummary(ctx, sum); err != nil {
		logger.Warn("Failed to send run notification:", err)
	}
}

func parseVersions(s string) ([]int, error) {
	var out []int
	for _, f := range strings.Split(s, ",") {
		v, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func newLocalChecker(cfg *config.Config) *checker.Local {
	probes := make(map[int]*checker.Pip, len(cfg.Probe.PythonCommands))
	for v, cmd := range cfg.Probe.PythonCommands {
		probes[v] = &checker.Pip{
			Command: cmd,
			TmpDir:  cfg.Probe.TmpDir,
			Clean:   cfg.Probe.Clean,
			Timeout: cfg.Probe.Timeout,
		}
	}
	resolver := pypi.NewResolver(pypi.NewClient(cfg.PyPI.BaseURL, cfg.PyPI.Rate), 8)
	return checker.NewLocal(probes, resolver)
}
