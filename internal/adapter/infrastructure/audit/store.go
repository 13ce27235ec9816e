// Package audit provides the SQLite-backed configuration change journal.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"netpilot/internal/pkg/logging"
	"netpilot/internal/port"
	"netpilot/internal/types"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schemaVersion = 1

// SQLiteStore is an adapter that implements the AuditStore port on an SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// Ensure SQLiteStore implements the AuditStore port
var _ port.AuditStore = (*SQLiteStore)(nil)

// NewSQLiteStore opens (creating if needed) the journal at path and applies
// the schema. Use ":memory:" for a throwaway journal.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating audit directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening audit database %s: %w", path, err)
	}
	// A single connection keeps ":memory:" databases shared across calls
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var version sql.NullInt64
	if err := s.db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version); err != nil {
		return fmt.Errorf("checking migration version: %w", err)
	}
	if version.Valid && version.Int64 >= schemaVersion {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS audit_records (
			id TEXT PRIMARY KEY,
			session TEXT NOT NULL,
			recorded_at INTEGER NOT NULL,
			action TEXT NOT NULL,
			file TEXT NOT NULL DEFAULT '',
			entry_key TEXT NOT NULL DEFAULT '',
			entry_value TEXT NOT NULL DEFAULT '',
			backup TEXT NOT NULL DEFAULT '',
			detail TEXT NOT NULL DEFAULT ''
		)
	`); err != nil {
		return fmt.Errorf("creating audit_records table: %w", err)
	}
	if _, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_audit_records_time ON audit_records(recorded_at)`); err != nil {
		return fmt.Errorf("creating audit_records index: %w", err)
	}
	if _, err := tx.Exec(`INSERT INTO schema_migrations (version) VALUES (?)`, schemaVersion); err != nil {
		return fmt.Errorf("recording migration: %w", err)
	}

	return tx.Commit()
}

// Record appends records in one transaction. Records without an ID get a
// UUIDv7; records without a time get the current time.
func (s *SQLiteStore) Record(ctx context.Context, records []types.AuditRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting audit transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO audit_records (id, session, recorded_at, action, file, entry_key, entry_value, backup, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing audit insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if r.ID == "" {
			u, err := uuid.NewV7()
			if err != nil {
				return fmt.Errorf("generating UUIDv7 for audit record: %w", err)
			}
			r.ID = u.String()
		}
		if r.Time.IsZero() {
			r.Time = time.Now()
		}
		if _, err := stmt.ExecContext(ctx, r.ID, r.Session, r.Time.UnixNano(), string(r.Action),
			r.File, r.Key, r.Value, r.Backup, r.Detail); err != nil {
			return fmt.Errorf("inserting audit record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing audit records: %w", err)
	}

	logging.WithComponent("audit").WithField("records", len(records)).Debug("Recorded audit entries")
	return nil
}

// List returns up to limit records, newest first. A non-positive limit returns all.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]types.AuditRecord, error) {
	query := `
		SELECT id, session, recorded_at, action, file, entry_key, entry_value, backup, detail
		FROM audit_records
		ORDER BY recorded_at DESC, id DESC
	`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit records: %w", err)
	}
	defer rows.Close()

	var records []types.AuditRecord
	for rows.Next() {
		var (
			r        types.AuditRecord
			action   string
			recorded int64
		)
		if err := rows.Scan(&r.ID, &r.Session, &recorded, &action, &r.File, &r.Key, &r.Value, &r.Backup, &r.Detail); err != nil {
			return nil, fmt.Errorf("scanning audit record: %w", err)
		}
		r.Action = types.AuditAction(action)
		r.Time = time.Unix(0, recorded).UTC()
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit records: %w", err)
	}
	return records, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
