// Package loader reads the record corpus and the reference vocabularies
// from disk.
package loader

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/pgzip"

	"github.com/adc-ontology-enricher/internal/domain"
)

// readCloser closes both the decompressor and the underlying file.
type readCloser struct {
	io.Reader
	closers []io.Closer
}

func (r *readCloser) Close() error {
	var first error
	for _, c := range r.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Open opens path for reading, transparently decompressing ".gz" files.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	if !strings.HasSuffix(strings.ToLower(path), ".gz") {
		return f, nil
	}

	zr, err := pgzip.NewReader(bufio.NewReader(f))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to open gzip stream %s: %w", path, err)
	}
	return &readCloser{Reader: zr, closers: []io.Closer{zr, f}}, nil
}

// LoadCorpus reads a JSON array of records.
func LoadCorpus(path string) ([]domain.RawRecord, error) {
	rc, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var records []domain.RawRecord
	if err := json.NewDecoder(rc).Decode(&records); err != nil {
		return nil, fmt.Errorf("failed to decode corpus %s: %w", path, err)
	}
	if err := CheckRecordIDs(records); err != nil {
		return nil, fmt.Errorf("invalid corpus %s: %w", path, err)
	}
	return records, nil
}

// ErrInvalidRecordID marks a record whose id is missing or repeated.
// Enrichments are joined back by id, so ids must be unique.
var ErrInvalidRecordID = errors.New("invalid record id")

// CheckRecordIDs returns ErrInvalidRecordID for the first record with an
// empty id or an id already seen.
func CheckRecordIDs(records []domain.RawRecord) error {
	seen := make(map[domain.RecordID]int, len(records))
	for i, r := range records {
		if strings.TrimSpace(string(r.ID)) == "" {
			return fmt.Errorf("%w: record %d has no id", ErrInvalidRecordID, i)
		}
		if first, ok := seen[r.ID]; ok {
			return fmt.Errorf("%w: records %d and %d share id %q", ErrInvalidRecordID, first, i, r.ID)
		}
		seen[r.ID] = i
	}
	return nil
}
