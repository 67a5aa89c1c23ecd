package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const (
	sqliteStateTable       = "solvegate_state"
	sqliteStateKey         = "default"
	sqliteOperationTimeout = 5 * time.Second
)

// SQLiteStateBackend is the default backend for a local installation: one
// pure-Go database file, no external service.
type SQLiteStateBackend struct {
	db *sql.DB
}

func NewSQLiteStateBackend(path string) (*SQLiteStateBackend, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, ErrInvalidInput
	}
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create state dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open state db: %w", err)
	}
	backend := &SQLiteStateBackend{db: db}
	if err := backend.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate state db: %w", err)
	}
	return backend, nil
}

func (b *SQLiteStateBackend) migrate() error {
	ctx, cancel := context.WithTimeout(context.Background(), sqliteOperationTimeout)
	defer cancel()
	_, err := b.db.ExecContext(ctx, fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		state_key  TEXT PRIMARY KEY,
		snapshot   TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`, sqliteStateTable))
	return err
}

func (b *SQLiteStateBackend) Load() (*persistedState, error) {
	if b == nil || b.db == nil {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), sqliteOperationTimeout)
	defer cancel()

	var payload string
	query := fmt.Sprintf("SELECT snapshot FROM %s WHERE state_key = ?", sqliteStateTable)
	err := b.db.QueryRowContext(ctx, query, sqliteStateKey).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var snapshot persistedState
	if err := json.Unmarshal([]byte(payload), &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func (b *SQLiteStateBackend) Save(state *persistedState) error {
	if b == nil || b.db == nil || state == nil {
		return nil
	}
	payload, err := json.Marshal(state)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), sqliteOperationTimeout)
	defer cancel()

	query := fmt.Sprintf(`
		INSERT INTO %s (state_key, snapshot, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (state_key)
		DO UPDATE SET snapshot = excluded.snapshot, updated_at = excluded.updated_at`, sqliteStateTable)
	_, err = b.db.ExecContext(ctx, query, sqliteStateKey, string(payload), time.Now().UTC().Format(time.RFC3339Nano))
	return err
}

func (b *SQLiteStateBackend) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}
