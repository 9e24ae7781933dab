package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adc-ontology-enricher/internal/domain"
	"github.com/adc-ontology-enricher/internal/enrich"
)

// sourceKeys names the drug item key each domain reads.
var sourceKeys = map[string]string{
	domain.DomainDrug:              "drugName",
	domain.DomainAntigen:           "targetAntigen",
	domain.DomainDisease:           "cancerIndication",
	domain.DomainPayload:           "payload",
	domain.DomainLinker:            "linker",
	domain.DomainCompany:           "company",
	domain.DomainTrialDesign:       "trialDesign",
	domain.DomainBiomarkerStrategy: "biomarkerStrategy",
}

func jsonObject(key, value string) ([]byte, error) {
	data, err := json.Marshal(map[string]string{key: value})
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return data, nil
}

// domainInput returns the informative input text a drug carries for a
// domain, or "".
func domainInput(drug domain.DrugItem, name string) string {
	var values domain.FieldValue
	switch name {
	case domain.DomainDrug:
		values = append(append(values, drug.DrugName...), drug.DrugAlias...)
	case domain.DomainAntigen:
		values = drug.TargetAntigen
	case domain.DomainDisease:
		values = drug.CancerIndication
	case domain.DomainPayload:
		values = drug.Payload
	case domain.DomainLinker:
		values = drug.Linker
	case domain.DomainCompany:
		values = drug.Company
	case domain.DomainTrialDesign:
		values = drug.TrialDesign
	case domain.DomainBiomarkerStrategy:
		values = drug.BiomarkerStrategy
	}

	parts := make([]string, 0, len(values))
	for _, v := range values {
		if !domain.IsUnknownText(v) {
			parts = append(parts, strings.TrimSpace(v))
		}
	}
	return strings.Join(parts, "; ")
}

// unknownRows lists every drug and domain left unknown despite having
// input text.
func unknownRows(records []domain.EnrichedRecord, domains []string) []domain.UnknownRow {
	rows := []domain.UnknownRow{}
	for _, rec := range records {
		for pos, drug := range rec.Drugs {
			for _, d := range domains {
				if drug.Ontology[d].Status().Matched() {
					continue
				}
				input := domainInput(drug.Item, d)
				if input == "" {
					continue
				}
				rows = append(rows, domain.UnknownRow{
					EntryID:   rec.ID,
					DrugIndex: pos,
					DrugName:  drug.Item.Name(),
					Domain:    d,
					Input:     input,
				})
			}
		}
	}
	return rows
}

// dictionaryEntries flattens the trees into one entry per domain and raw
// value. The first field seen for a raw value wins.
func dictionaryEntries(runID string, trees []*enrich.DomainTree) []domain.DictionaryEntry {
	var out []domain.DictionaryEntry
	seen := make(map[string]struct{})
	add := func(e domain.DictionaryEntry) {
		if strings.TrimSpace(e.RawValue) == "" {
			return
		}
		k := e.Domain + "\x00" + e.RawValue
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		e.RunID = runID
		out = append(out, e)
	}

	for _, tree := range trees {
		for _, key := range tree.Keys() {
			f, _ := tree.Get(key)
			for _, e := range fieldEntries(tree.Domain, f) {
				add(e)
			}
		}
	}
	return out
}

func fieldEntries(name string, f domain.EnrichmentField) []domain.DictionaryEntry {
	entry := func(raw, id, label string, f domain.EnrichmentField) domain.DictionaryEntry {
		return domain.DictionaryEntry{
			Domain:   name,
			RawValue: raw,
			StableID: id,
			Label:    label,
			Status:   f.Status(),
			Score:    fieldScore(f),
		}
	}

	switch name {
	case domain.DomainAntigen:
		targets, _ := f["targets"].([]domain.EnrichmentField)
		out := make([]domain.DictionaryEntry, 0, len(targets))
		for _, t := range targets {
			id, label := str(t["hgnc_id"]), str(t["hgnc_symbol"])
			if sub := str(t["taca_subtype"]); sub != "" {
				id, label = sub, sub
			}
			out = append(out, entry(str(t["input"]), id, label, t))
		}
		return out
	case domain.DomainDisease:
		all, _ := f["all_diseases"].([]domain.EnrichmentField)
		out := make([]domain.DictionaryEntry, 0, len(all))
		for _, d := range all {
			out = append(out, entry(str(d["input"]), str(d["doid_id"]), str(d["doid_label"]), d))
		}
		return out
	case domain.DomainDrug, domain.DomainPayload, domain.DomainLinker:
		return []domain.DictionaryEntry{entry(str(f["input"]), str(f["chembl_id"]), str(f["preferred_name"]), f)}
	case domain.DomainCompany:
		cleaned := str(f["company_cleaned"])
		return []domain.DictionaryEntry{entry(str(f["company_original"]), cleaned, cleaned, f)}
	case domain.DomainTrialDesign:
		cleaned := str(f["design_cleaned"])
		return []domain.DictionaryEntry{entry(str(f["design_original"]), cleaned, cleaned, f)}
	case domain.DomainBiomarkerStrategy:
		cleaned := str(f["strategy_cleaned"])
		return []domain.DictionaryEntry{entry(str(f["strategy_original"]), cleaned, cleaned, f)}
	}
	return nil
}

func str(v interface{}) string {
	s, _ := v.(string)
	return s
}

// fieldScore reads match_score, falling back to the keyword confidence.
func fieldScore(f domain.EnrichmentField) float64 {
	switch v := f["match_score"].(type) {
	case float64:
		return v
	}
	switch v := f["confidence"].(type) {
	case int:
		return float64(v)
	case float64:
		return v
	}
	return 0
}

// writeJSONAtomic writes v as indented JSON to path through a temporary
// file in the same directory, so readers never see a partial file.
func writeJSONAtomic(path string, v interface{}) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to rename %s: %w", tmpName, err)
	}
	committed = true
	return nil
}
