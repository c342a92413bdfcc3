package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"silverline-hq/portcullis/pkg/engine"
)

// Schema is the usage-record archive schema.
const Schema = `
CREATE TABLE IF NOT EXISTS usage_records (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	group_id   TEXT NOT NULL DEFAULT '',
	timestamp  INTEGER NOT NULL,
	scope_key  TEXT NOT NULL,
	allowed    INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_usage_user_time ON usage_records(user_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_usage_time ON usage_records(timestamp);
`

// SQLiteConfig contains configuration for the SQLite archive.
type SQLiteConfig struct {
	// Path is the database file path. The containing directory is
	// created if missing.
	Path string

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int

	// WALMode enables Write-Ahead Logging for better concurrency.
	// Default: true
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         "./data/portcullis.db",
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteStorage creates a SQLite archive, initializing the schema and
// enabling WAL mode if configured.
func NewSQLiteStorage(config *SQLiteConfig) (*SQLiteStorage, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}

	logger := slog.Default().With("component", "history.sqlite")

	if dir := filepath.Dir(config.Path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create archive directory %q: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", config.Path)
	if err != nil {
		return nil, fmt.Errorf("open archive %q: %w", config.Path, err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)

	s := &SQLiteStorage{db: db, config: config, logger: logger}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("usage archive initialized",
		"path", config.Path,
		"wal_mode", config.WALMode,
	)

	return s, nil
}

func (s *SQLiteStorage) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return fmt.Errorf("enable WAL: %w", err)
		}
	}
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", s.config.BusyTimeout.Milliseconds())); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := s.db.Exec(Schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Insert implements Storage.
func (s *SQLiteStorage) Insert(ctx context.Context, rec engine.UsageRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO usage_records (id, user_id, group_id, timestamp, scope_key, allowed)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.UserID, rec.GroupID, rec.Timestamp.UnixMilli(), rec.ScopeKey, boolToInt(rec.Allowed))
	if err != nil {
		return fmt.Errorf("insert usage record: %w", err)
	}
	return nil
}

// UserRecords implements Storage.
func (s *SQLiteStorage) UserRecords(ctx context.Context, userID string, since time.Time) ([]engine.UsageRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, group_id, timestamp, scope_key, allowed
		 FROM usage_records
		 WHERE user_id = ? AND timestamp >= ?
		 ORDER BY timestamp DESC`,
		userID, since.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("query user records: %w", err)
	}
	defer rows.Close()

	var out []engine.UsageRecord
	for rows.Next() {
		var rec engine.UsageRecord
		var ts int64
		var allowed int
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.GroupID, &ts, &rec.ScopeKey, &allowed); err != nil {
			return nil, fmt.Errorf("scan usage record: %w", err)
		}
		rec.Timestamp = time.UnixMilli(ts).UTC()
		rec.Allowed = allowed != 0
		out = append(out, rec)
	}
	return out, rows.Err()
}

// DailyStats implements Storage.
func (s *SQLiteStorage) DailyStats(ctx context.Context, from, to time.Time) ([]DayStat, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT date(timestamp/1000, 'unixepoch') AS day,
		        COUNT(*),
		        SUM(allowed)
		 FROM usage_records
		 WHERE timestamp >= ? AND timestamp < ?
		 GROUP BY day
		 ORDER BY day ASC`,
		from.UnixMilli(), to.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("query daily stats: %w", err)
	}
	defer rows.Close()

	var out []DayStat
	for rows.Next() {
		var stat DayStat
		if err := rows.Scan(&stat.Day, &stat.Total, &stat.Allowed); err != nil {
			return nil, fmt.Errorf("scan daily stat: %w", err)
		}
		stat.Denied = stat.Total - stat.Allowed
		out = append(out, stat)
	}
	return out, rows.Err()
}

// TopUsers implements Storage.
func (s *SQLiteStorage) TopUsers(ctx context.Context, since time.Time, n int) ([]TopEntry, error) {
	return s.topBy(ctx, "user_id", "user_id != ''", since, n)
}

// TopGroups implements Storage.
func (s *SQLiteStorage) TopGroups(ctx context.Context, since time.Time, n int) ([]TopEntry, error) {
	return s.topBy(ctx, "group_id", "group_id != ''", since, n)
}

func (s *SQLiteStorage) topBy(ctx context.Context, column, filter string, since time.Time, n int) ([]TopEntry, error) {
	query := fmt.Sprintf(
		`SELECT %s, COUNT(*) AS c
		 FROM usage_records
		 WHERE allowed = 1 AND timestamp >= ? AND %s
		 GROUP BY %s
		 ORDER BY c DESC, %s ASC
		 LIMIT ?`, column, filter, column, column)

	rows, err := s.db.QueryContext(ctx, query, since.UnixMilli(), n)
	if err != nil {
		return nil, fmt.Errorf("query top %s: %w", column, err)
	}
	defer rows.Close()

	var out []TopEntry
	for rows.Next() {
		var entry TopEntry
		if err := rows.Scan(&entry.ID, &entry.Count); err != nil {
			return nil, fmt.Errorf("scan top entry: %w", err)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// UserTotals implements Storage.
func (s *SQLiteStorage) UserTotals(ctx context.Context, from, to time.Time) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, COUNT(*)
		 FROM usage_records
		 WHERE allowed = 1 AND timestamp >= ? AND timestamp < ?
		 GROUP BY user_id`,
		from.UnixMilli(), to.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("query user totals: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var id string
		var count int64
		if err := rows.Scan(&id, &count); err != nil {
			return nil, fmt.Errorf("scan user total: %w", err)
		}
		out[id] = count
	}
	return out, rows.Err()
}

// DeleteBefore implements Storage.
func (s *SQLiteStorage) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM usage_records WHERE timestamp < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("delete old records: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		s.logger.Info("old usage records pruned", "deleted", deleted, "cutoff", cutoff)
	}
	return deleted, nil
}

// Count implements Storage.
func (s *SQLiteStorage) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM usage_records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

// Close implements Storage.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
