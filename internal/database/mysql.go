package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	"github.com/purelind/pycompat-check/internal/checker"
	"github.com/purelind/pycompat-check/pkg/logger"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

type DB struct {
	db       *sql.DB
	driver   string
	pypiName func(string) string
}

// database configuration
type Config struct {
	Driver   string
	Host     string
	Port     int
	User     string
	Password string
	Database string
	// Path is the SQLite database file; ":memory:" for a private
	// in-memory database.
	Path string
	// PyPIName maps GitHub install names to PyPI names when picking the
	// dependency snapshot to keep. nil means identity.
	PyPIName func(string) string
}

func New(cfg Config) (*DB, error) {
	var (
		db  *sql.DB
		err error
	)
	switch cfg.Driver {
	case DriverMySQL, "":
		cfg.Driver = DriverMySQL
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&loc=UTC",
			cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database)
		db, err = sql.Open("mysql", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		// set connection pool parameters
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	case DriverSQLite:
		db, err = sql.Open("sqlite", cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		// One connection keeps ":memory:" databases alive and serializes
		// writers.
		db.SetMaxOpenConns(1)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	// validate database connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pypiName := cfg.PyPIName
	if pypiName == nil {
		pypiName = identity
	}
	return &DB{db: db, driver: cfg.Driver, pypiName: pypiName}, nil
}

func (db *DB) Close() error {
	return db.db.Close()
}

var schema = map[string][]string{
	DriverMySQL: {
		`CREATE TABLE IF NOT EXISTS self_compatibility_status (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			install_name VARCHAR(255) NOT NULL,
			status VARCHAR(32) NOT NULL,
			py_version TINYINT NOT NULL,
			checked_at DATETIME(6) NOT NULL,
			details TEXT,
			INDEX idx_self_install_name (install_name, py_version)
		)`,
		`CREATE TABLE IF NOT EXISTS pairwise_compatibility_status (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			install_name_lower VARCHAR(255) NOT NULL,
			install_name_higher VARCHAR(255) NOT NULL,
			status VARCHAR(32) NOT NULL,
			py_version TINYINT NOT NULL,
			checked_at DATETIME(6) NOT NULL,
			details TEXT,
			INDEX idx_pair_lower (install_name_lower, install_name_higher),
			INDEX idx_pair_higher (install_name_higher)
		)`,
		`CREATE TABLE IF NOT EXISTS release_time_for_dependencies (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			install_name VARCHAR(255) NOT NULL,
			dep_name VARCHAR(255) NOT NULL,
			installed_version VARCHAR(64) NOT NULL,
			installed_version_time DATETIME(6) NULL,
			latest_version VARCHAR(64) NOT NULL,
			latest_version_time DATETIME(6) NULL,
			is_latest BOOLEAN NOT NULL,
			checked_at DATETIME(6) NULL,
			snapshot_at DATETIME(6) NOT NULL,
			INDEX idx_release_install_name (install_name, snapshot_at)
		)`,
	},
	DriverSQLite: {
		`CREATE TABLE IF NOT EXISTS self_compatibility_status (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			install_name TEXT NOT NULL,
			status TEXT NOT NULL,
			py_version INTEGER NOT NULL,
			checked_at DATETIME NOT NULL,
			details TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_self_install_name ON self_compatibility_status (install_name, py_version)`,
		`CREATE TABLE IF NOT EXISTS pairwise_compatibility_status (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			install_name_lower TEXT NOT NULL,
			install_name_higher TEXT NOT NULL,
			status TEXT NOT NULL,
			py_version INTEGER NOT NULL,
			checked_at DATETIME NOT NULL,
			details TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_pair_lower ON pairwise_compatibility_status (install_name_lower, install_name_higher)`,
		`CREATE INDEX IF NOT EXISTS idx_pair_higher ON pairwise_compatibility_status (install_name_higher)`,
		`CREATE TABLE IF NOT EXISTS release_time_for_dependencies (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			install_name TEXT NOT NULL,
			dep_name TEXT NOT NULL,
			installed_version TEXT NOT NULL,
			installed_version_time DATETIME,
			latest_version TEXT NOT NULL,
			latest_version_time DATETIME,
			is_latest BOOLEAN NOT NULL,
			checked_at DATETIME,
			snapshot_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_release_install_name ON release_time_for_dependencies (install_name, snapshot_at)`,
	},
}

// initialize database tables
func (db *DB) InitSchema(ctx context.Context) error {
	for _, stmt := range schema[db.driver] {
		if _, err := db.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// Save appends results in one transaction. The batch is rejected before
// anything is written if any result is neither self nor pairwise.
func (db *DB) Save(ctx context.Context, results []*checker.Result) error {
	results, err := prepare(results)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		return nil
	}

	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, r := range results {
		var err error
		if r.IsSelf() {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO self_compatibility_status
				(install_name, status, py_version, checked_at, details)
				VALUES (?, ?, ?, ?, ?)`,
				r.Packages[0].InstallName, string(r.Status), r.PythonVersion, dbTime(r.Timestamp), nullString(r.Details))
		} else {
			p := pairOf(r)
			_, err = tx.ExecContext(ctx, `
				INSERT INTO pairwise_compatibility_status
				(install_name_lower, install_name_higher, status, py_version, checked_at, details)
				VALUES (?, ?, ?, ?, ?, ?)`,
				p.Lower, p.Higher, string(r.Status), r.PythonVersion, dbTime(r.Timestamp), nullString(r.Details))
		}
		if err != nil {
			return fmt.Errorf("failed to insert check result: %w", err)
		}
	}

	for name, r := range snapshots(results, db.pypiName) {
		for dep, info := range r.DependencyInfo {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO release_time_for_dependencies
				(install_name, dep_name, installed_version, installed_version_time,
				 latest_version, latest_version_time, is_latest, checked_at, snapshot_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				name, dep, info.InstalledVersion, dbTime(info.InstalledVersionTime),
				info.LatestVersion, dbTime(info.LatestVersionTime), info.IsLatest,
				dbTime(info.CurrentTime), dbTime(r.Timestamp))
			if err != nil {
				return fmt.Errorf("failed to insert dependency info: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit results: %w", err)
	}
	return nil
}

func (db *DB) SelfCompatibility(ctx context.Context, pkg checker.Package) ([]*checker.Result, error) {
	rows, err := db.db.QueryContext(ctx, `
		SELECT install_name, status, py_version, checked_at, details
		FROM self_compatibility_status
		WHERE install_name = ?
		ORDER BY id`, pkg.InstallName)
	if err != nil {
		return nil, fmt.Errorf("failed to query self compatibility: %w", err)
	}
	results, err := scanResults(rows, false)
	if err != nil {
		return nil, err
	}
	return Latest(results), nil
}

func (db *DB) PairCompatibility(ctx context.Context, pkgs []checker.Package) ([]*checker.Result, error) {
	if len(pkgs) != 2 {
		return nil, fmt.Errorf("%w: got %d", ErrNotPair, len(pkgs))
	}
	p := NewPair(pkgs[0].InstallName, pkgs[1].InstallName)
	rows, err := db.db.QueryContext(ctx, `
		SELECT install_name_lower, install_name_higher, status, py_version, checked_at, details
		FROM pairwise_compatibility_status
		WHERE install_name_lower = ? AND install_name_higher = ?
		ORDER BY id`, p.Lower, p.Higher)
	if err != nil {
		return nil, fmt.Errorf("failed to query pair compatibility: %w", err)
	}
	results, err := scanResults(rows, true)
	if err != nil {
		return nil, err
	}
	return Latest(results), nil
}

func (db *DB) CompatibilityCombinations(ctx context.Context, pkgs []checker.Package) (map[Pair][]*checker.Result, error) {
	wanted := combinations(pkgs)
	if len(wanted) == 0 {
		return map[Pair][]*checker.Result{}, nil
	}
	names := make([]interface{}, len(pkgs))
	for i, p := range pkgs {
		names[i] = p.InstallName
	}
	in := placeholders(len(names))
	query := fmt.Sprintf(`
		SELECT install_name_lower, install_name_higher, status, py_version, checked_at, details
		FROM pairwise_compatibility_status
		WHERE install_name_lower IN (%s) AND install_name_higher IN (%s)
		ORDER BY id`, in, in)
	rows, err := db.db.QueryContext(ctx, query, append(names, names...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query compatibility combinations: %w", err)
	}
	results, err := scanResults(rows, true)
	if err != nil {
		return nil, err
	}
	return groupPairs(results, func(p Pair) bool {
		_, ok := wanted[p]
		return ok
	}), nil
}

func (db *DB) PairwiseForPackage(ctx context.Context, pkg checker.Package) (map[Pair][]*checker.Result, error) {
	rows, err := db.db.QueryContext(ctx, `
		SELECT install_name_lower, install_name_higher, status, py_version, checked_at, details
		FROM pairwise_compatibility_status
		WHERE install_name_lower = ? OR install_name_higher = ?
		ORDER BY id`, pkg.InstallName, pkg.InstallName)
	if err != nil {
		return nil, fmt.Errorf("failed to query pairwise compatibility: %w", err)
	}
	results, err := scanResults(rows, true)
	if err != nil {
		return nil, err
	}
	return groupPairs(results, func(Pair) bool { return true }), nil
}

// DependencyInfo returns the most recent dependency snapshot saved for
// installName, or an empty map.
func (db *DB) DependencyInfo(ctx context.Context, installName string) (map[string]checker.VersionInfo, error) {
	rows, err := db.db.QueryContext(ctx, `
		SELECT dep_name, installed_version, installed_version_time,
		       latest_version, latest_version_time, is_latest, checked_at
		FROM release_time_for_dependencies
		WHERE install_name = ? AND snapshot_at = (
			SELECT MAX(snapshot_at) FROM release_time_for_dependencies WHERE install_name = ?)
		ORDER BY id`, installName, installName)
	if err != nil {
		return nil, fmt.Errorf("failed to query dependency info: %w", err)
	}
	defer rows.Close()

	out := make(map[string]checker.VersionInfo)
	for rows.Next() {
		var (
			dep                           string
			info                          checker.VersionInfo
			installedAt, latestAt, nowRow timeValue
		)
		if err := rows.Scan(&dep, &info.InstalledVersion, &installedAt,
			&info.LatestVersion, &latestAt, &info.IsLatest, &nowRow); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		info.InstalledVersionTime = installedAt.Time
		info.LatestVersionTime = latestAt.Time
		info.CurrentTime = nowRow.Time
		out[dep] = info
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return out, nil
}

func (db *DB) Packages(ctx context.Context) ([]checker.Package, error) {
	rows, err := db.db.QueryContext(ctx, `
		SELECT DISTINCT install_name FROM self_compatibility_status ORDER BY install_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query packages: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		names = append(names, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return checker.NewPackages(names...), nil
}

// common query results processing
func scanResults(rows *sql.Rows, pairwise bool) ([]*checker.Result, error) {
	defer rows.Close()

	var results []*checker.Result
	for rows.Next() {
		var (
			names     []string
			status    string
			pyVersion int
			checkedAt timeValue
			details   sql.NullString
			err       error
		)
		if pairwise {
			var lower, higher string
			err = rows.Scan(&lower, &higher, &status, &pyVersion, &checkedAt, &details)
			names = []string{lower, higher}
		} else {
			var name string
			err = rows.Scan(&name, &status, &pyVersion, &checkedAt, &details)
			names = []string{name}
		}
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		st, err := checker.ParseStatus(status)
		if err != nil {
			logger.Warn("Unknown status in store:", status)
			st = checker.StatusUnknown
		}
		results = append(results, &checker.Result{
			Packages:      checker.NewPackages(names...),
			PythonVersion: pyVersion,
			Status:        st,
			Details:       details.String,
			Timestamp:     checkedAt.Time,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return results, nil
}

func groupPairs(results []*checker.Result, keep func(Pair) bool) map[Pair][]*checker.Result {
	grouped := make(map[Pair][]*checker.Result)
	for _, r := range results {
		p := pairOf(r)
		if keep(p) {
			grouped[p] = append(grouped[p], r)
		}
	}
	for p, rs := range grouped {
		grouped[p] = Latest(rs)
	}
	return grouped
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

const storeTimeLayout = "2006-01-02 15:04:05.000000"

// dbTime writes a UTC timestamp in a form both MySQL DATETIME(6) and
// SQLite accept and order correctly. The zero time is NULL.
type dbTime time.Time

func (t dbTime) Value() (driver.Value, error) {
	tt := time.Time(t)
	if tt.IsZero() {
		return nil, nil
	}
	return tt.UTC().Format(storeTimeLayout), nil
}

// timeValue scans DATETIME columns from either driver.
type timeValue struct {
	Time time.Time
}

func (t *timeValue) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		t.Time = time.Time{}
	case time.Time:
		t.Time = v.UTC()
	case []byte:
		return t.parse(string(v))
	case string:
		return t.parse(v)
	default:
		return fmt.Errorf("cannot scan %T into a timestamp", src)
	}
	return nil
}

func (t *timeValue) parse(s string) error {
	parsed, err := checker.ParseTime(s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}
