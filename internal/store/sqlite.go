package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS nodes (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TEXT NOT NULL
);`

// SQLite keeps nodes in a local database file.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path. ":memory:" gives a
// private in-memory database.
func OpenSQLite(path string) (*SQLite, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	if path == ":memory:" {
		// Each connection to ":memory:" is a separate database.
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range append(pragmas, schema) {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", strings.TrimSpace(p), err)
		}
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) PutNode(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal node: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO nodes (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, string(data), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return wrapBusy("put node "+key, err)
	}
	return nil
}

func (s *SQLite) GetNode(ctx context.Context, key string) (*Node, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM nodes WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, wrapBusy("get node "+key, err)
	}
	return &Node{Key: key, Value: json.RawMessage(value)}, nil
}

func (s *SQLite) DeleteNode(ctx context.Context, key string, recursive bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapBusy("begin tx", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM nodes WHERE key = ?`, key); err != nil {
		return wrapBusy("delete node "+key, err)
	}
	if recursive {
		prefix := key + "/"
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM nodes WHERE substr(key, 1, ?) = ?`, utf8.RuneCountInString(prefix), prefix); err != nil {
			return wrapBusy("delete children "+key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return wrapBusy("commit", err)
	}
	return nil
}

func (s *SQLite) ListChildren(ctx context.Context, prefix string, limit int) ([]Node, error) {
	if limit <= 0 {
		limit = -1
	}
	p := prefix + "/"
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value FROM nodes WHERE substr(key, 1, ?) = ? ORDER BY key LIMIT ?`,
		utf8.RuneCountInString(p), p, limit)
	if err != nil {
		return nil, wrapBusy("list children "+prefix, err)
	}
	defer rows.Close()

	var nodes []Node
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		nodes = append(nodes, Node{Key: key, Value: json.RawMessage(value)})
	}
	if err := rows.Err(); err != nil {
		return nil, wrapBusy("list children "+prefix, err)
	}
	return nodes, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

// isBusy reports whether err indicates an SQLite BUSY condition.
func isBusy(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}

func wrapBusy(op string, err error) error {
	if isBusy(err) {
		return &RetryableError{Message: op + ": " + err.Error()}
	}
	return fmt.Errorf("%s: %w", op, err)
}
