package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/adc-ontology-enricher/internal/domain"
)

// SQLiteStore implements Store on a local SQLite file.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore opens dbPath, creating the file and schema if needed.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db, dbPath: dbPath}, nil
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS dictionary_entries (
		domain TEXT NOT NULL,
		raw_value TEXT NOT NULL,
		stable_id TEXT NOT NULL DEFAULT '',
		label TEXT NOT NULL DEFAULT '',
		match_status TEXT NOT NULL,
		match_score REAL NOT NULL DEFAULT 0,
		run_id TEXT NOT NULL DEFAULT '',
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (domain, raw_value)
	);

	CREATE INDEX IF NOT EXISTS idx_dictionary_status ON dictionary_entries(domain, match_status);
	CREATE INDEX IF NOT EXISTS idx_dictionary_stable_id ON dictionary_entries(stable_id);
	`
	_, err := db.Exec(schema)
	return err
}

// SaveEntries implements Store. All entries are written in one transaction.
func (s *SQLiteStore) SaveEntries(ctx context.Context, entries []domain.DictionaryEntry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO dictionary_entries (
			domain, raw_value, stable_id, label, match_status, match_score, run_id, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (domain, raw_value) DO UPDATE SET
			stable_id = excluded.stable_id,
			label = excluded.label,
			match_status = excluded.match_status,
			match_score = excluded.match_score,
			run_id = excluded.run_id,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.Domain, e.RawValue, e.StableID, e.Label,
			string(e.Status), e.Score, e.RunID, now); err != nil {
			return 0, fmt.Errorf("failed to upsert %s/%s: %w", e.Domain, e.RawValue, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}
	return len(entries), nil
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, domainName, rawValue string) (*domain.DictionaryEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT domain, raw_value, stable_id, label, match_status, match_score, run_id, updated_at
		FROM dictionary_entries
		WHERE domain = ? AND raw_value = ?
	`, domainName, rawValue)

	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan: %w", err)
	}
	return e, nil
}

// List implements Store.
func (s *SQLiteStore) List(ctx context.Context, domainName string, limit, offset int) ([]*domain.DictionaryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT domain, raw_value, stable_id, label, match_status, match_score, run_id, updated_at
		FROM dictionary_entries
		WHERE ? = '' OR domain = ?
		ORDER BY domain, raw_value
		LIMIT ? OFFSET ?
	`, domainName, domainName, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	var result []*domain.DictionaryEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// Count implements Store.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM dictionary_entries").Scan(&count)
	return count, err
}

// ExportJSON implements Store.
func (s *SQLiteStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	return exportJSON(ctx, s, writer)
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func exportJSON(ctx context.Context, s Store, writer io.Writer) error {
	all, err := s.List(ctx, "", maxExportLimit, 0)
	if err != nil {
		return fmt.Errorf("failed to list entries: %w", err)
	}
	export := &DictionaryExport{
		Version:    exportVersion,
		ExportedAt: time.Now().UTC(),
		Count:      len(all),
		Entries:    all,
	}
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}
