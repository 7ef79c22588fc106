package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	MySQL struct {
		Host     string
		User     string
		Password string
		Port     int
		Database string
	}
	Store struct {
		Driver     string // mysql, sqlite or memory
		SQLitePath string
	}
	Server struct {
		Port      int
		CheckPort int
	}
	// CheckEndpoint is the remote check server queried by the orchestrator
	// and by the dependency fallback.
	CheckEndpoint string
	Probe         struct {
		PythonCommands map[int][]string
		TmpDir         string
		Clean          bool
		Timeout        time.Duration
	}
	Orchestrator struct {
		Workers       int
		Attempts      int
		ProgressEvery int
		BatchSize     int
	}
	Cache CacheConfig
	PyPI  struct {
		BaseURL string
		Rate    float64
	}
	LogPath       string
	LogLevel      string
	GitHubToken   string
	CronSchedule  string
	WhitelistFile string
	Webhooks      struct {
		Success string
		Failure string
	}
}

// CacheConfig selects and configures the badge cache backend.
type CacheConfig struct {
	Backend     string // local, bitcask or redis
	BitcaskPath string
	RedisAddr   string
	Compress    bool
}

func Load() *Config {
	cfg := &Config{}

	// MySQL configuration
	cfg.MySQL.Host = getEnv("MYSQL_HOST", "localhost")
	cfg.MySQL.User = getEnv("MYSQL_USER", "root")
	cfg.MySQL.Password = getEnv("MYSQL_PASSWORD", "")
	cfg.MySQL.Port = getEnvInt("MYSQL_PORT", 3306)
	cfg.MySQL.Database = getEnv("MYSQL_DATABASE", "compatibility_data")

	cfg.Store.Driver = getEnv("STORE_DRIVER", "mysql")
	cfg.Store.SQLitePath = getEnv("SQLITE_PATH", "data/compatibility.db")

	// server configuration
	cfg.Server.Port = getEnvInt("SERVER_PORT", 8080)
	cfg.Server.CheckPort = getEnvInt("CHECK_SERVER_PORT", 8888)

	cfg.CheckEndpoint = getEnv("CHECK_ENDPOINT", "http://localhost:8888/")

	// probe configuration
	cfg.Probe.PythonCommands = map[int][]string{
		2: strings.Fields(getEnv("PYTHON2_PIP", "python2 -m pip")),
		3: strings.Fields(getEnv("PYTHON3_PIP", "python3 -m pip")),
	}
	cfg.Probe.TmpDir = getEnv("PROBE_TMPDIR", os.TempDir())
	cfg.Probe.Clean = getEnvBool("PROBE_CLEAN", false)
	cfg.Probe.Timeout = getEnvDuration("PROBE_TIMEOUT", 290*time.Second)

	cfg.Orchestrator.Workers = getEnvInt("CHECK_WORKERS", 20)
	cfg.Orchestrator.Attempts = getEnvInt("CHECK_ATTEMPTS", 5)
	cfg.Orchestrator.ProgressEvery = getEnvInt("CHECK_PROGRESS_EVERY", 50)
	cfg.Orchestrator.BatchSize = getEnvInt("STORE_BATCH_SIZE", 50)

	// cache configuration
	cfg.Cache.Backend = getEnv("CACHE_BACKEND", "local")
	cfg.Cache.BitcaskPath = getEnv("CACHE_BITCASK_PATH", "data/badge-cache")
	cfg.Cache.RedisAddr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Cache.Compress = getEnvBool("CACHE_COMPRESS", true)

	cfg.PyPI.BaseURL = getEnv("PYPI_URL", "https://pypi.org/pypi")
	cfg.PyPI.Rate = getEnvFloat("PYPI_RATE", 10)

	// log configuration
	cfg.LogPath = getEnv("LOG_PATH", "logs/pycompat.log")
	cfg.LogLevel = getEnv("LOG_LEVEL", "info")

	// github token
	cfg.GitHubToken = getEnv("GH_TOKEN", "")

	cfg.CronSchedule = getEnv("CRON_SCHEDULE", "@every 30m")
	cfg.WhitelistFile = getEnv("WHITELIST_FILE", "")

	cfg.Webhooks.Success = getEnv("NOTIFY_SUCCESS_WEBHOOK", "")
	cfg.Webhooks.Failure = getEnv("NOTIFY_FAILURE_WEBHOOK", "")

	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
