package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFieldValue(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want FieldValue
	}{
		{"Absent", ``, nil},
		{"Null", `null`, nil},
		{"Unknown_Sentinel", `"unknown"`, nil},
		{"Unknown_Sentinel_Mixed_Case", `" Unknown "`, nil},
		{"Bare_String", `"HER2"`, FieldValue{"HER2"}},
		{"Trimmed_String", `"  TROP2 "`, FieldValue{"TROP2"}},
		{"List", `["HER2", "TROP2"]`, FieldValue{"HER2", "TROP2"}},
		{"List_Drops_Non_Strings", `["HER2", 3, null, {"a": 1}, "unknown", ""]`, FieldValue{"HER2"}},
		{"Number_Is_Empty", `42`, nil},
		{"Object_Is_Empty", `{"name": "HER2"}`, nil},
		{"Bool_Is_Empty", `true`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseFieldValue(json.RawMessage(tt.raw)))
		})
	}
}

func TestRawRecord_UnmarshalJSON(t *testing.T) {
	t.Run("Numeric_ID", func(t *testing.T) {
		var rec RawRecord
		require.NoError(t, json.Unmarshal([]byte(`{"id": 1042, "extractedDrugs": []}`), &rec))
		assert.Equal(t, RecordID("1042"), rec.ID)
		assert.Empty(t, rec.Drugs)
	})

	t.Run("Mixed_Field_Shapes", func(t *testing.T) {
		data := `{
			"id": "abc",
			"title": "T-DXd in HER2-low",
			"extractedDrugs": [
				{"drugName": "T-DXd", "targetAntigen": "HER2", "cancerIndication": ["NSCLC", "breast cancer"], "payload": null, "linker": "unknown", "company": 7},
				"not an object",
				{"drugName": "SKB264"}
			]
		}`

		var rec RawRecord
		require.NoError(t, json.Unmarshal([]byte(data), &rec))
		require.Len(t, rec.Drugs, 2)

		drug := rec.Drugs[0]
		assert.Equal(t, "T-DXd", drug.Name())
		assert.Equal(t, FieldValue{"HER2"}, drug.TargetAntigen)
		assert.Equal(t, FieldValue{"NSCLC", "breast cancer"}, drug.CancerIndication)
		assert.Empty(t, drug.Payload)
		assert.Empty(t, drug.Linker)
		assert.Empty(t, drug.Company)
		assert.Equal(t, "SKB264", rec.Drugs[1].Name())
	})
}

func TestEnrichedRecord_MarshalJSON(t *testing.T) {
	var rec RawRecord
	require.NoError(t, json.Unmarshal([]byte(`{"id": 7, "title": "x", "extractedDrugs": [{"drugName": "A", "payload": "unknown"}]}`), &rec))

	enriched := NewEnrichedRecord(rec)
	enriched.Drugs = append(enriched.Drugs, EnrichedDrug{
		Item:     rec.Drugs[0],
		Ontology: map[string]EnrichmentField{DomainPayload: UnknownField()},
	})

	data, err := json.Marshal(enriched)
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, float64(7), out["id"])
	assert.Equal(t, "x", out["title"])

	drugs := out["extractedDrugs"].([]interface{})
	require.Len(t, drugs, 1)
	drug := drugs[0].(map[string]interface{})
	assert.Equal(t, "unknown", drug["payload"], "source values are kept verbatim")
	ontology := drug["ontology"].(map[string]interface{})
	assert.Equal(t, map[string]interface{}{"match_status": "unknown"}, ontology["payload"])
}

func TestEnrichmentField_Clone(t *testing.T) {
	orig := EnrichmentField{
		"match_status": "canonical",
		"synonyms":     []string{"HER2", "NEU"},
		"targets":      []EnrichmentField{{"match_status": "canonical"}},
	}

	clone := orig.Clone()
	clone["synonyms"].([]string)[0] = "changed"
	clone["targets"].([]EnrichmentField)[0]["match_status"] = "unknown"

	assert.Equal(t, "HER2", orig["synonyms"].([]string)[0])
	assert.Equal(t, StatusCanonical, orig["targets"].([]EnrichmentField)[0].Status())
	assert.Equal(t, StatusUnknown, EnrichmentField{}.Status())
}

func TestDrugItem_CanonicalizedAntigenPreferred(t *testing.T) {
	var d DrugItem
	require.NoError(t, json.Unmarshal([]byte(`{"targetAntigen": "HER-2 protein", "targetAntigenCanonicalized": ["HER2"]}`), &d))
	assert.Equal(t, FieldValue{"HER2"}, d.TargetAntigen)

	require.NoError(t, json.Unmarshal([]byte(`{"targetAntigen": "TROP2", "targetAntigenCanonicalized": "unknown"}`), &d))
	assert.Equal(t, FieldValue{"TROP2"}, d.TargetAntigen)
}
