package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/adc-ontology-enricher/internal/domain"
)

// HGNC column names
const (
	HGNCSymbol        = "symbol"
	HGNCAliasSymbol   = "alias_symbol"
	HGNCID            = "hgnc_id"
	HGNCEnsemblGeneID = "ensembl_gene_id"
	HGNCLocusType     = "locus_type"
	HGNCGeneGroup     = "gene_group"
)

// Attribute keys set on HGNC reference entries
const (
	AttrEnsemblGeneID = "ensembl_gene_id"
	AttrLocusType     = "locus_type"
	AttrGeneGroup     = "gene_group"
)

// LoadHGNC reads an HGNC complete-set TSV, optionally gzip compressed, into
// reference entries. Columns are located by header name.
func LoadHGNC(path string) ([]domain.ReferenceEntry, error) {
	rc, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	entries, err := ParseHGNC(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HGNC table %s: %w", path, err)
	}
	return entries, nil
}

// ParseHGNC parses HGNC TSV content.
func ParseHGNC(r io.Reader) ([]domain.ReferenceEntry, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{HGNCSymbol, HGNCID} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("missing column %q", required)
		}
	}

	get := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return cleanCell(row[i])
	}

	var entries []domain.ReferenceEntry
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		symbol := get(row, HGNCSymbol)
		if symbol == "" {
			continue
		}

		entries = append(entries, domain.ReferenceEntry{
			CanonicalSymbol: symbol,
			AliasField:      get(row, HGNCAliasSymbol),
			StableID:        get(row, HGNCID),
			Attributes: map[string]interface{}{
				AttrEnsemblGeneID: get(row, HGNCEnsemblGeneID),
				AttrLocusType:     get(row, HGNCLocusType),
				AttrGeneGroup:     splitGroups(get(row, HGNCGeneGroup)),
			},
		})
	}
	return entries, nil
}

// cleanCell trims a cell and maps spreadsheet null markers to "".
func cleanCell(s string) string {
	s = strings.Trim(strings.TrimSpace(s), `"`)
	if strings.EqualFold(s, "nan") || strings.EqualFold(s, "null") {
		return ""
	}
	return s
}

func splitGroups(field string) []string {
	out := []string{}
	for _, g := range strings.Split(field, "|") {
		if g = cleanCell(g); g != "" {
			out = append(out, g)
		}
	}
	return out
}
