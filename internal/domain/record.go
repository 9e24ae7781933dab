package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// JSON keys of the corpus
const (
	keyID             = "id"
	keyExtractedDrugs = "extractedDrugs"
	keyOntology       = "ontology"
)

// RecordID is the opaque corpus identifier. The corpus carries it either as a
// JSON string or a JSON number; both are kept as text.
type RecordID string

// UnmarshalJSON accepts strings, numbers and null.
func (id *RecordID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = RecordID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("record id must be a string or number: %w", err)
	}
	*id = RecordID(n.String())
	return nil
}

// FieldValue is the single shape every free-text drug field takes after
// ingestion: a sequence of non-empty strings.
type FieldValue []string

// ParseFieldValue accepts absent, null, the "unknown" sentinel, a bare string
// or a list of strings. Anything else yields an empty value.
func ParseFieldValue(raw json.RawMessage) FieldValue {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil
		}
		if IsUnknownText(s) {
			return nil
		}
		return FieldValue{strings.TrimSpace(s)}
	case '[':
		var items []interface{}
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil
		}
		var out FieldValue
		for _, item := range items {
			s, ok := item.(string)
			if !ok || IsUnknownText(s) {
				continue
			}
			out = append(out, strings.TrimSpace(s))
		}
		return out
	default:
		return nil
	}
}

// First returns the first value or "".
func (f FieldValue) First() string {
	if len(f) == 0 {
		return ""
	}
	return f[0]
}

// Join concatenates values with sep.
func (f FieldValue) Join(sep string) string {
	return strings.Join(f, sep)
}

// DrugItem is one extracted drug entity within a record.
type DrugItem struct {
	DrugName          FieldValue
	DrugAlias         FieldValue
	TargetAntigen     FieldValue
	CancerIndication  FieldValue
	Payload           FieldValue
	Linker            FieldValue
	Company           FieldValue
	TrialDesign       FieldValue
	BiomarkerStrategy FieldValue
	Phase             FieldValue
	MechanismOfAction FieldValue

	// raw holds every key of the source object verbatim
	raw map[string]json.RawMessage
}

// UnmarshalJSON normalizes each known field and keeps the raw object.
func (d *DrugItem) UnmarshalJSON(data []byte) error {
	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("drug item must be an object: %w", err)
	}

	*d = DrugItem{
		DrugName:          ParseFieldValue(raw["drugName"]),
		DrugAlias:         ParseFieldValue(raw["drugAlias"]),
		TargetAntigen:     firstPresent(raw, "targetAntigenCanonicalized", "targetAntigen"),
		CancerIndication:  ParseFieldValue(raw["cancerIndication"]),
		Payload:           ParseFieldValue(raw["payload"]),
		Linker:            ParseFieldValue(raw["linker"]),
		Company:           ParseFieldValue(raw["company"]),
		TrialDesign:       ParseFieldValue(raw["trialDesign"]),
		BiomarkerStrategy: ParseFieldValue(raw["biomarkerStrategy"]),
		Phase:             ParseFieldValue(raw["phase"]),
		MechanismOfAction: ParseFieldValue(raw["mechanismOfAction"]),
		raw:               raw,
	}
	return nil
}

// firstPresent parses the first of keys that yields a non-empty value.
func firstPresent(raw map[string]json.RawMessage, keys ...string) FieldValue {
	for _, k := range keys {
		if v := ParseFieldValue(raw[k]); len(v) > 0 {
			return v
		}
	}
	return nil
}

// Name returns the drug name used for name based joins.
func (d DrugItem) Name() string {
	return d.DrugName.First()
}

// RawField returns the verbatim JSON of a source key.
func (d DrugItem) RawField(key string) (json.RawMessage, bool) {
	v, ok := d.raw[key]
	return v, ok
}

// RawRecord is one corpus entry.
type RawRecord struct {
	ID    RecordID
	Drugs []DrugItem

	// raw holds every top-level key except the drug list
	raw map[string]json.RawMessage
}

// UnmarshalJSON decodes the id and drug list and keeps the other keys.
func (r *RawRecord) UnmarshalJSON(data []byte) error {
	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("record must be an object: %w", err)
	}

	var rec RawRecord
	if idRaw, ok := raw[keyID]; ok {
		if err := json.Unmarshal(idRaw, &rec.ID); err != nil {
			return err
		}
	}

	if drugsRaw, ok := raw[keyExtractedDrugs]; ok {
		var items []json.RawMessage
		if err := json.Unmarshal(drugsRaw, &items); err == nil {
			for _, item := range items {
				var drug DrugItem
				if err := json.Unmarshal(item, &drug); err != nil {
					// non-object entries contribute nothing
					continue
				}
				rec.Drugs = append(rec.Drugs, drug)
			}
		}
		delete(raw, keyExtractedDrugs)
	}

	rec.raw = raw
	*r = rec
	return nil
}

// EnrichedDrug is a drug item with its ontology mapping populated.
type EnrichedDrug struct {
	Item     DrugItem
	Ontology map[string]EnrichmentField
}

// MarshalJSON writes the source keys verbatim followed by the ontology.
func (d EnrichedDrug) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(d.Item.raw)+1)
	for k, v := range d.Item.raw {
		out[k] = v
	}
	out[keyOntology] = d.Ontology
	return json.Marshal(out)
}

// EnrichedRecord is the final output entity.
type EnrichedRecord struct {
	ID    RecordID
	Drugs []EnrichedDrug

	raw map[string]json.RawMessage
}

// NewEnrichedRecord starts an enriched record carrying base's top-level keys.
func NewEnrichedRecord(base RawRecord) EnrichedRecord {
	return EnrichedRecord{
		ID:    base.ID,
		Drugs: make([]EnrichedDrug, 0, len(base.Drugs)),
		raw:   base.raw,
	}
}

// MarshalJSON writes the source keys verbatim with the enriched drug list.
func (r EnrichedRecord) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(r.raw)+1)
	for k, v := range r.raw {
		out[k] = v
	}
	if _, ok := out[keyID]; !ok && r.ID != "" {
		out[keyID] = string(r.ID)
	}
	drugs := r.Drugs
	if drugs == nil {
		drugs = []EnrichedDrug{}
	}
	out[keyExtractedDrugs] = drugs
	return json.Marshal(out)
}
