package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// ErrNotFound is returned when a key holds no value.
var ErrNotFound = errors.New("key not found")

// Stats summarizes backend counters for admin dashboards.
type Stats struct {
	Keys  int64
	Bytes int64
}

// MCPRequestLog captures one incoming MCP request handled by the server.
type MCPRequestLog struct {
	ID         int64     `json:"id"`
	Method     string    `json:"method"`
	ToolName   string    `json:"tool_name"`
	Success    bool      `json:"success"`
	ErrorText  string    `json:"error_text"`
	DurationMS int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store is the flat key/value persistence used by the cache store.
type Store interface {
	Put(ctx context.Context, key string, value []byte, now time.Time) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, keys ...string) (int64, error)
	Keys(ctx context.Context, prefix string) ([]string, error)
	Stats(ctx context.Context) (Stats, error)
	Close() error
}

// SQLiteStore is a SQLite-backed key/value store.
type SQLiteStore struct {
	db     *sql.DB
	logger *log.Logger
}

// OpenSQLite opens and initializes the SQLite store.
func OpenSQLite(ctx context.Context, dbPath string, logger *log.Logger) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteStore{db: db, logger: logger}
	if err := s.init(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) init(ctx context.Context) error {
	for _, stmt := range splitSQLStatements(schemaSQL) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("run schema stmt: %w", err)
		}
	}
	return nil
}

func splitSQLStatements(s string) []string {
	parts := strings.Split(s, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p+";")
	}
	return out
}

func (s *SQLiteStore) Put(ctx context.Context, key string, value []byte, now time.Time) error {
	const q = `INSERT INTO kv (key, value, size_bytes, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, size_bytes = excluded.size_bytes, updated_at = excluded.updated_at`
	_, err := s.db.ExecContext(ctx, q, key, string(value), len(value), now.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ? LIMIT 1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return []byte(value), nil
}

func (s *SQLiteStore) Delete(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keys)), ",")
	args := make([]any, 0, len(keys))
	for _, k := range keys {
		args = append(args, k)
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("delete keys: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete rows affected: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM kv WHERE instr(key, ?) = 1 ORDER BY key`, prefix)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	defer rows.Close()

	keys := make([]string, 0, 16)
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `SELECT count(*), coalesce(sum(size_bytes), 0) FROM kv`).Scan(&st.Keys, &st.Bytes)
	if err != nil {
		return st, fmt.Errorf("kv stats: %w", err)
	}
	return st, nil
}

// InsertMCPRequestLog stores one request event for admin observability.
func (s *SQLiteStore) InsertMCPRequestLog(ctx context.Context, rec MCPRequestLog) error {
	ts := rec.CreatedAt.UTC()
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	success := 0
	if rec.Success {
		success = 1
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO mcp_requests (
		method, tool_name, success, error_text, duration_ms, created_at
	) VALUES (?, ?, ?, ?, ?, ?)`,
		strings.TrimSpace(rec.Method),
		strings.TrimSpace(rec.ToolName),
		success,
		strings.TrimSpace(rec.ErrorText),
		rec.DurationMS,
		ts.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert mcp request log: %w", err)
	}
	return nil
}

// RecentMCPRequestLogs returns most recent request events in newest-first order.
func (s *SQLiteStore) RecentMCPRequestLogs(ctx context.Context, limit int) ([]MCPRequestLog, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, method, tool_name, success, error_text, duration_ms, created_at
FROM mcp_requests
ORDER BY created_at DESC
LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list mcp request logs: %w", err)
	}
	defer rows.Close()

	items := make([]MCPRequestLog, 0, limit)
	for rows.Next() {
		var (
			row            MCPRequestLog
			successAsInt   int
			createdAtValue string
		)
		if err := rows.Scan(
			&row.ID,
			&row.Method,
			&row.ToolName,
			&successAsInt,
			&row.ErrorText,
			&row.DurationMS,
			&createdAtValue,
		); err != nil {
			return nil, fmt.Errorf("scan mcp request log: %w", err)
		}
		row.Success = successAsInt == 1
		if ts, err := time.Parse(time.RFC3339Nano, createdAtValue); err == nil {
			row.CreatedAt = ts
		}
		items = append(items, row)
	}
	return items, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
