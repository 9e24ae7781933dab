package loader

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/adc-ontology-enricher/internal/domain"
)

// DOIDTerm is one leaf of the Disease Ontology cancer subtree.
type DOIDTerm struct {
	ID         string     `json:"-"`
	Label      string     `json:"label"`
	Paths      [][]string `json:"paths_to_root"`
	LabelPaths [][]string `json:"label_paths_to_root"`
}

// LoadDOID reads the DOID leaf path JSON, an object keyed by DOID curie.
// Terms are returned sorted by id.
func LoadDOID(path string) ([]DOIDTerm, error) {
	rc, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var raw map[string]DOIDTerm
	if err := json.NewDecoder(rc).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode DOID hierarchy %s: %w", path, err)
	}

	terms := make([]DOIDTerm, 0, len(raw))
	for id, term := range raw {
		term.ID = id
		terms = append(terms, term)
	}
	sort.Slice(terms, func(i, j int) bool { return terms[i].ID < terms[j].ID })
	return terms, nil
}

// Attribute keys set on TACA reference entries
const (
	AttrTACAFamily = "family"
)

// LoadTACA reads the tumor-associated carbohydrate antigen vocabulary, an
// object mapping family name to its subtypes. Every subtype becomes an
// entry carrying its family. Families are visited in sorted order.
func LoadTACA(path string) ([]domain.ReferenceEntry, error) {
	rc, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var families map[string][]string
	if err := json.NewDecoder(rc).Decode(&families); err != nil {
		return nil, fmt.Errorf("failed to decode TACA vocabulary %s: %w", path, err)
	}

	names := make([]string, 0, len(families))
	for name := range families {
		names = append(names, name)
	}
	sort.Strings(names)

	var entries []domain.ReferenceEntry
	for _, family := range names {
		for _, subtype := range families[family] {
			if subtype == "" {
				continue
			}
			entries = append(entries, domain.ReferenceEntry{
				CanonicalSymbol: subtype,
				StableID:        subtype,
				Attributes:      map[string]interface{}{AttrTACAFamily: family},
			})
		}
	}
	return entries, nil
}
