package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/adc-ontology-enricher/internal/domain"
)

// RecordSink writes enriched drugs to the enriched_drugs table, one row per
// drug item, grouped under their run.
type RecordSink struct {
	db  *DB
	log *logrus.Logger
}

// NewRecordSink creates a sink on db.
func NewRecordSink(db *DB, logger *logrus.Logger) *RecordSink {
	return &RecordSink{db: db, log: logger}
}

const (
	upsertRunSQL = `
		INSERT INTO enrichment_runs (run_id, started_at, records, drugs, summary)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (run_id) DO UPDATE SET
			records = EXCLUDED.records,
			drugs = EXCLUDED.drugs,
			summary = EXCLUDED.summary`

	insertDrugSQL = `
		INSERT INTO enriched_drugs (run_id, entry_id, drug_index, drug_name, drug, ontology)
		VALUES ($1, $2, $3, $4, $5, $6)`
)

// WriteRun replaces the rows of run with records in one transaction and
// returns the number of drug rows written.
func (s *RecordSink) WriteRun(ctx context.Context, run domain.RunSummary, records []domain.EnrichedRecord) (int, error) {
	runID, err := uuid.Parse(run.RunID)
	if err != nil {
		return 0, fmt.Errorf("invalid run id %q: %w", run.RunID, err)
	}

	summary, err := json.Marshal(run)
	if err != nil {
		return 0, fmt.Errorf("encoding run summary: %w", err)
	}

	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, upsertRunSQL, runID, run.StartedAt, run.Records, run.Drugs, string(summary)); err != nil {
		return 0, fmt.Errorf("writing run: %w", err)
	}
	if _, err := tx.Exec(ctx, "DELETE FROM enriched_drugs WHERE run_id = $1", runID); err != nil {
		return 0, fmt.Errorf("clearing previous rows: %w", err)
	}

	batch := &pgx.Batch{}
	for _, rec := range records {
		for pos, drug := range rec.Drugs {
			drugJSON, err := json.Marshal(drug)
			if err != nil {
				return 0, fmt.Errorf("encoding drug %s#%d: %w", rec.ID, pos, err)
			}
			ontologyJSON, err := json.Marshal(drug.Ontology)
			if err != nil {
				return 0, fmt.Errorf("encoding ontology %s#%d: %w", rec.ID, pos, err)
			}
			batch.Queue(insertDrugSQL, runID, string(rec.ID), pos, drug.Item.Name(),
				string(drugJSON), string(ontologyJSON))
		}
	}

	rows := batch.Len()
	if rows > 0 {
		results := tx.SendBatch(ctx, batch)
		for i := 0; i < rows; i++ {
			if _, err := results.Exec(); err != nil {
				results.Close()
				return 0, fmt.Errorf("inserting drug row %d: %w", i, err)
			}
		}
		if err := results.Close(); err != nil {
			return 0, fmt.Errorf("closing batch: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing run: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"run_id": run.RunID,
		"rows":   rows,
	}).Info("Enriched records written to database")
	return rows, nil
}

// CountRun returns the number of drug rows stored for runID.
func (s *RecordSink) CountRun(ctx context.Context, runID string) (int, error) {
	id, err := uuid.Parse(runID)
	if err != nil {
		return 0, fmt.Errorf("invalid run id %q: %w", runID, err)
	}
	var n int
	if err := s.db.Pool.QueryRow(ctx, "SELECT COUNT(*) FROM enriched_drugs WHERE run_id = $1", id).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting rows: %w", err)
	}
	return n, nil
}

// DrugOntology returns the stored ontology of one drug.
func (s *RecordSink) DrugOntology(ctx context.Context, runID string, entry domain.RecordID, pos int) (map[string]domain.EnrichmentField, error) {
	id, err := uuid.Parse(runID)
	if err != nil {
		return nil, fmt.Errorf("invalid run id %q: %w", runID, err)
	}
	var raw []byte
	err = s.db.Pool.QueryRow(ctx,
		"SELECT ontology FROM enriched_drugs WHERE run_id = $1 AND entry_id = $2 AND drug_index = $3",
		id, string(entry), pos).Scan(&raw)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading ontology: %w", err)
	}
	var out map[string]domain.EnrichmentField
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decoding ontology: %w", err)
	}
	return out, nil
}
