// Package statestore persists the upload registry as durable JSON keyed by
// upload id, so a restart reconstructs the registry from storage rather than
// memory. The registry snapshot is rewritten wholesale on every mutation.
package statestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"
)

// Store manages queue-state persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the state database and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	schema := `CREATE TABLE IF NOT EXISTS upload_state (
        upload_id TEXT PRIMARY KEY,
        record    TEXT NOT NULL
    )`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Save replaces the persisted snapshot with the given registry contents.
// The whole snapshot is rewritten in one transaction so readers never observe
// a partially updated registry.
func (s *Store) Save(ctx context.Context, snapshot map[string]json.RawMessage) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM upload_state`); err != nil {
		return fmt.Errorf("clear snapshot: %w", err)
	}
	for id, record := range snapshot {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO upload_state (upload_id, record) VALUES (?, ?)`,
			id, string(record),
		); err != nil {
			return fmt.Errorf("insert record %q: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// Load reads the persisted snapshot. Rows whose payload is not valid JSON are
// dropped rather than surfaced as errors; a damaged store degrades to an
// empty registry.
func (s *Store) Load(ctx context.Context) (map[string]json.RawMessage, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT upload_id, record FROM upload_state`)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	defer rows.Close()

	snapshot := make(map[string]json.RawMessage)
	for rows.Next() {
		var id, record string
		if err := rows.Scan(&id, &record); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		if !json.Valid([]byte(record)) {
			continue
		}
		snapshot[id] = json.RawMessage(record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot rows: %w", err)
	}
	return snapshot, nil
}
