package store

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"time"

	_ "github.com/lib/pq"

	"github.com/adc-ontology-enricher/internal/domain"
)

// PostgresStore implements Store on PostgreSQL. The dictionary_entries
// table is created by the database migrations.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an open connection.
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromURL opens databaseURL with lib/pq.
func NewPostgresStoreFromURL(databaseURL string) (*PostgresStore, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("postgres url is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	s, err := NewPostgresStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

const upsertEntrySQL = `
	INSERT INTO dictionary_entries (
		domain, raw_value, stable_id, label, match_status, match_score, run_id, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (domain, raw_value) DO UPDATE SET
		stable_id = EXCLUDED.stable_id,
		label = EXCLUDED.label,
		match_status = EXCLUDED.match_status,
		match_score = EXCLUDED.match_score,
		run_id = EXCLUDED.run_id,
		updated_at = EXCLUDED.updated_at
`

// SaveEntries implements Store.
func (s *PostgresStore) SaveEntries(ctx context.Context, entries []domain.DictionaryEntry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, upsertEntrySQL)
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
func (s *PostgresStore) Get(ctx context.Context, domainName, rawValue string) (*domain.DictionaryEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT domain, raw_value, stable_id, label, match_status, match_score, run_id, updated_at
		FROM dictionary_entries
		WHERE domain = $1 AND raw_value = $2
	`, domainName, rawValue)

	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}
	return e, nil
}

// List implements Store.
func (s *PostgresStore) List(ctx context.Context, domainName string, limit, offset int) ([]*domain.DictionaryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT domain, raw_value, stable_id, label, match_status, match_score, run_id, updated_at
		FROM dictionary_entries
		WHERE $1 = '' OR domain = $1
		ORDER BY domain, raw_value
		LIMIT $2 OFFSET $3
	`, domainName, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	defer rows.Close()

	var result []*domain.DictionaryEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// Count implements Store.
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM dictionary_entries").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return count, nil
}

// ExportJSON implements Store.
func (s *PostgresStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	return exportJSON(ctx, s, writer)
}

// Close implements Store.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
