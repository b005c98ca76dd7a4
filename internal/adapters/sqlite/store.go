// Package sqlite persists the local working snapshot: the five entity
// collections live in their own tables for the planner commands to query,
// while sync bookkeeping (device id, stamps, the base snapshot) lives in a
// small key-value table. The store is the single writer for local state.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/felixgeelhaar/sous/internal/domain/snapshot"
)

// Errors returned by the store.
var (
	ErrNotFound       = errors.New("sqlite: record not found")
	ErrNoBaseSnapshot = errors.New("sqlite: no base snapshot saved yet")
)

// State keys in the sync_state table.
const (
	stateDeviceID     = "device_id"
	stateLastModified = "last_modified"
	stateVersion      = "version"
	stateBaseSnapshot = "base_snapshot"
)

// Store is a SQLite-backed local store. SQLite has a single writer, so the
// connection pool is capped at one connection.
type Store struct {
	db *sql.DB
}

// Open opens (and if needed creates) the database at path and ensures the
// schema exists. Use ":memory:" for an ephemeral store in tests.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS recipes (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	description   TEXT NOT NULL DEFAULT '',
	servings      INTEGER NOT NULL DEFAULT 0,
	prep_minutes  INTEGER NOT NULL DEFAULT 0,
	cook_minutes  INTEGER NOT NULL DEFAULT 0,
	instructions  TEXT NOT NULL DEFAULT '[]',
	tags          TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS ingredients (
	id        TEXT PRIMARY KEY,
	recipe_id TEXT NOT NULL,
	name      TEXT NOT NULL,
	quantity  REAL NOT NULL DEFAULT 0,
	unit      TEXT NOT NULL DEFAULT '',
	note      TEXT NOT NULL DEFAULT '',
	optional  INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_ingredients_recipe ON ingredients(recipe_id);

CREATE TABLE IF NOT EXISTS meal_plans (
	id        TEXT PRIMARY KEY,
	date      TEXT NOT NULL,
	slot      TEXT NOT NULL,
	recipe_id TEXT NOT NULL DEFAULT '',
	title     TEXT NOT NULL DEFAULT '',
	servings  INTEGER NOT NULL DEFAULT 0,
	note      TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_meal_plans_date ON meal_plans(date);

CREATE TABLE IF NOT EXISTS grocery_lists (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	range_start TEXT NOT NULL DEFAULT '',
	range_end   TEXT NOT NULL DEFAULT '',
	note        TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS grocery_items (
	id         TEXT PRIMARY KEY,
	list_id    TEXT NOT NULL,
	name       TEXT NOT NULL,
	quantity   REAL NOT NULL DEFAULT 0,
	unit       TEXT NOT NULL DEFAULT '',
	category   TEXT NOT NULL DEFAULT '',
	checked    INTEGER NOT NULL DEFAULT 0,
	sort_order INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_grocery_items_list ON grocery_items(list_id);

CREATE TABLE IF NOT EXISTS sync_state (
	key   TEXT PRIMARY KEY,
	value BLOB NOT NULL
);
`

// DeviceID returns this device's stable identifier, generating and storing
// one on first use.
func (s *Store) DeviceID(ctx context.Context) (string, error) {
	value, err := s.getState(ctx, stateDeviceID)
	if err == nil {
		return string(value), nil
	}
	if !errors.Is(err, ErrNotFound) {
		return "", err
	}

	id := uuid.NewString()
	if err := s.setState(ctx, stateDeviceID, []byte(id)); err != nil {
		return "", err
	}
	return id, nil
}

// LastModified returns the working snapshot's last-modified stamp in Unix
// milliseconds, or zero when nothing has been stored yet.
func (s *Store) LastModified(ctx context.Context) (int64, error) {
	value, err := s.getState(ctx, stateLastModified)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	var stamp int64
	if err := json.Unmarshal(value, &stamp); err != nil {
		return 0, fmt.Errorf("corrupt last_modified state: %w", err)
	}
	return stamp, nil
}

// SetLastModified updates the working snapshot's last-modified stamp.
func (s *Store) SetLastModified(ctx context.Context, stamp int64) error {
	value, _ := json.Marshal(stamp)
	return s.setState(ctx, stateLastModified, value)
}

// SaveBase stores the base snapshot: the last state both this device and the
// shared blob agreed on. It is the three-way merge's common ancestor.
func (s *Store) SaveBase(ctx context.Context, snap *snapshot.Snapshot) error {
	if snap == nil {
		return fmt.Errorf("base snapshot is nil")
	}

	normalized := snap.Clone()
	normalized.Normalize()
	value, err := json.Marshal(normalized)
	if err != nil {
		return fmt.Errorf("failed to marshal base snapshot: %w", err)
	}
	return s.setState(ctx, stateBaseSnapshot, value)
}

// LoadBase returns the stored base snapshot, or ErrNoBaseSnapshot.
func (s *Store) LoadBase(ctx context.Context) (*snapshot.Snapshot, error) {
	value, err := s.getState(ctx, stateBaseSnapshot)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNoBaseSnapshot
	}
	if err != nil {
		return nil, err
	}

	var snap snapshot.Snapshot
	if err := json.Unmarshal(value, &snap); err != nil {
		return nil, fmt.Errorf("corrupt base snapshot: %w", err)
	}
	snap.Normalize()
	return &snap, nil
}

// ClearBase removes the stored base snapshot.
func (s *Store) ClearBase(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sync_state WHERE key = ?`, stateBaseSnapshot)
	return err
}

func (s *Store) getState(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM sync_state WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state %s: %w", key, err)
	}
	return value, nil
}

func (s *Store) setState(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_state (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	if err != nil {
		return fmt.Errorf("failed to write state %s: %w", key, err)
	}
	return nil
}

func (s *Store) setStateTx(ctx context.Context, tx *sql.Tx, key string, value []byte) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO sync_state (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	if err != nil {
		return fmt.Errorf("failed to write state %s: %w", key, err)
	}
	return nil
}
