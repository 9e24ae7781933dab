// Package store persists the resolved dictionaries of a run: one row per
// domain and raw value, upserted so later runs refresh earlier answers.
package store

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/adc-ontology-enricher/internal/domain"
)

// Store defines the dictionary storage operations.
type Store interface {
	// SaveEntries upserts entries keyed by domain and raw value.
	SaveEntries(ctx context.Context, entries []domain.DictionaryEntry) (int, error)

	// Get returns the entry for a raw value, or nil when absent.
	Get(ctx context.Context, domainName, rawValue string) (*domain.DictionaryEntry, error)

	// List returns the entries of a domain, all domains when empty.
	List(ctx context.Context, domainName string, limit, offset int) ([]*domain.DictionaryEntry, error)

	// Count returns the number of stored entries.
	Count(ctx context.Context) (int64, error)

	// ExportJSON writes every entry as a JSON document.
	ExportJSON(ctx context.Context, writer io.Writer) error

	Close() error
}

// DictionaryExport is the document written by ExportJSON.
type DictionaryExport struct {
	Version    string                    `json:"version"`
	ExportedAt time.Time                 `json:"exported_at"`
	Count      int                       `json:"count"`
	Entries    []*domain.DictionaryEntry `json:"entries"`
}

// exportVersion tags DictionaryExport documents.
const exportVersion = "1.0"

// maxExportLimit bounds a single export.
const maxExportLimit = 1000000

// Open creates the store selected by cfg. It returns nil, nil when no
// driver is configured.
func Open(cfg domain.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case domain.StoreDriverNone:
		return nil, nil
	case domain.StoreDriverSQLite:
		return NewSQLiteStore(cfg.SQLitePath)
	case domain.StoreDriverPostgres:
		return NewPostgresStoreFromURL(cfg.PostgresURL)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// scanner is implemented by sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(s scanner) (*domain.DictionaryEntry, error) {
	e := &domain.DictionaryEntry{}
	var status string
	if err := s.Scan(&e.Domain, &e.RawValue, &e.StableID, &e.Label,
		&status, &e.Score, &e.RunID, &e.UpdatedAt); err != nil {
		return nil, err
	}
	e.Status = domain.MatchStatus(status)
	return e, nil
}
