package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adc-ontology-enricher/internal/classify"
	"github.com/adc-ontology-enricher/internal/domain"
	"github.com/adc-ontology-enricher/internal/loader"
	"github.com/adc-ontology-enricher/pkg/external"
)

func testOptions() Options {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return Options{Workers: 4, MemoSize: 64, Logger: logger}
}

func parseRecords(t *testing.T, data string) []domain.RawRecord {
	t.Helper()
	var records []domain.RawRecord
	require.NoError(t, json.Unmarshal([]byte(data), &records))
	return records
}

func key(id string, pos int) DrugKey {
	return DrugKey{Entry: domain.RecordID(id), Position: pos}
}

func hgncEntries() []domain.ReferenceEntry {
	gene := func(symbol, id, aliases, locus string) domain.ReferenceEntry {
		return domain.ReferenceEntry{
			CanonicalSymbol: symbol,
			StableID:        id,
			AliasField:      aliases,
			Attributes: map[string]interface{}{
				loader.AttrLocusType:     locus,
				loader.AttrEnsemblGeneID: "ENSG-" + symbol,
				loader.AttrGeneGroup:     []string{"CD molecules"},
			},
		}
	}
	return []domain.ReferenceEntry{
		gene("ERBB2", "HGNC:3430", "NEU|HER-2|CD340|HER2", "gene with protein product"),
		gene("TACSTD2", "HGNC:11530", "TROP2|EGP-1", "gene with protein product"),
		gene("FOLR1", "HGNC:3791", "FRalpha|FRA", "gene with protein product"),
		gene("MIR21", "HGNC:31586", "", "RNA, micro"),
	}
}

func tacaEntries() []domain.ReferenceEntry {
	taca := func(subtype, family string) domain.ReferenceEntry {
		return domain.ReferenceEntry{
			CanonicalSymbol: subtype,
			StableID:        subtype,
			Attributes:      map[string]interface{}{loader.AttrTACAFamily: family},
		}
	}
	return []domain.ReferenceEntry{
		taca("Globo H", "Globo"),
		taca("Sialyl-Tn", "Tn"),
		taca("Tn antigen", "Tn"),
	}
}

func TestAntigenAdapter_Enrich(t *testing.T) {
	adapter, err := NewAntigenAdapter(hgncEntries(), tacaEntries(), AntigenConfig{}, testOptions())
	require.NoError(t, err)
	assert.Equal(t, domain.DomainAntigen, adapter.Domain())

	records := parseRecords(t, `[
		{"id": 1, "extractedDrugs": [
			{"drugName": "T-DXd", "targetAntigen": "HER2"},
			{"drugName": "Dato-DXd", "targetAntigen": "Trophoblast antigen 2 (TROP2)"},
			{"drugName": "X", "targetAntigen": ["XKCD9999", "HER-2"]},
			{"drugName": "Y", "targetAntigen": "unknown"}
		]},
		{"id": 2, "extractedDrugs": [
			{"drugName": "Z", "targetAntigen": "Sialyl Tn antigen"},
			{"drugName": "W", "targetAntigen": "MIR21"}
		]}
	]`)

	tree, err := adapter.Enrich(context.Background(), records)
	require.NoError(t, err)
	assert.Equal(t, 5, tree.Len())

	t.Run("Alias", func(t *testing.T) {
		f, ok := tree.Get(key("1", 0))
		require.True(t, ok)
		assert.Equal(t, "ERBB2", f["hgnc_symbol"])
		assert.Equal(t, "HGNC:3430", f["hgnc_id"])
		assert.Equal(t, "alias_match", f["match_status"])
		assert.Equal(t, 1.0, f["match_score"])
		assert.Equal(t, []string{"NEU", "HER-2", "CD340", "HER2"}, f["synonyms"])
		assert.Equal(t, []string{"CD molecules"}, f["gene_group"])
		assert.Equal(t, "T-DXd", tree.Name(key("1", 0)))
	})

	t.Run("Parenthetical", func(t *testing.T) {
		f, _ := tree.Get(key("1", 1))
		assert.Equal(t, "TACSTD2", f["hgnc_symbol"])
		assert.Equal(t, "Trophoblast antigen 2 (TROP2)", f["input"])
	})

	t.Run("Primary_Is_First_Match", func(t *testing.T) {
		f, _ := tree.Get(key("1", 2))
		assert.Equal(t, "ERBB2", f["hgnc_symbol"])
		targets, ok := f["targets"].([]domain.EnrichmentField)
		require.True(t, ok)
		require.Len(t, targets, 2)
		assert.Equal(t, "unknown", targets[0]["match_status"])
		assert.Equal(t, "XKCD9999", targets[0]["input"])
	})

	t.Run("Sentinel_Has_No_Field", func(t *testing.T) {
		_, ok := tree.Get(key("1", 3))
		assert.False(t, ok)
	})

	t.Run("TACA_Fallback", func(t *testing.T) {
		f, _ := tree.Get(key("2", 0))
		assert.Equal(t, "taca_match", f["match_status"])
		assert.Equal(t, "Tn", f["taca_family"])
		assert.Nil(t, f["hgnc_symbol"])
	})

	t.Run("Excluded_Locus_Type", func(t *testing.T) {
		f, _ := tree.Get(key("2", 1))
		assert.Equal(t, "unknown", f["match_status"])
	})

	assert.Equal(t, 4, tree.Stats.Total()-tree.Stats[domain.StatusUnknown])
}

func doidTerms() []loader.DOIDTerm {
	return []loader.DOIDTerm{
		{
			ID:         "DOID:1612",
			Label:      "breast cancer",
			LabelPaths: [][]string{{"disease", "cancer", "breast cancer"}},
		},
		{
			ID:         "DOID:3908",
			Label:      "non-small cell lung carcinoma",
			LabelPaths: [][]string{{"disease", "cancer", "lung cancer", "non-small cell lung carcinoma"}},
		},
		{
			ID:    "DOID:3910",
			Label: "lung adenocarcinoma",
		},
	}
}

func TestLabelVariants(t *testing.T) {
	variants := LabelVariants("luminal B breast carcinoma")
	assert.Contains(t, variants, "luminal b breast cancer")
	assert.Contains(t, variants, "b breast carcinoma")
	assert.Contains(t, variants, "luminal breast carcinoma")
	assert.NotContains(t, variants, "luminal b breast carcinoma")

	for _, v := range LabelVariants("carcinoma, malignant") {
		assert.NotContains(t, v, ",")
	}
}

func TestDiseaseAdapter_Enrich(t *testing.T) {
	adapter, err := NewDiseaseAdapter(doidTerms(), DiseaseConfig{}, testOptions())
	require.NoError(t, err)

	records := parseRecords(t, `[
		{"id": "a", "extractedDrugs": [
			{"drugName": "D1", "cancerIndication": "NSCLC"},
			{"drugName": "D2", "cancerIndication": ["xyzzy syndrome", "Breast Cancer"]},
			{"drugName": "D3", "cancerIndication": "zz"}
		]}
	]`)

	tree, err := adapter.Enrich(context.Background(), records)
	require.NoError(t, err)

	t.Run("Acronym_Expansion", func(t *testing.T) {
		f, _ := tree.Get(key("a", 0))
		assert.Equal(t, "DOID:3908", f["doid_id"])
		assert.Equal(t, "non-small cell lung carcinoma", f["doid_label"])
		assert.Equal(t, "exact_match", f["match_status"])
		assert.Contains(t, f["synonyms"], "non-small cell lung cancer")
		assert.Equal(t, []string{"disease", "cancer", "lung cancer", "non-small cell lung carcinoma"}, f["hierarchy_path"])
	})

	t.Run("Best_Of_Several", func(t *testing.T) {
		f, _ := tree.Get(key("a", 1))
		assert.Equal(t, "DOID:1612", f["doid_id"])
		all, ok := f["all_diseases"].([]domain.EnrichmentField)
		require.True(t, ok)
		require.Len(t, all, 2)
		assert.Equal(t, "unknown", all[0]["match_status"])
		assert.Nil(t, all[0]["doid_id"])
	})

	t.Run("Too_Short", func(t *testing.T) {
		f, _ := tree.Get(key("a", 2))
		assert.Equal(t, "unknown", f["match_status"])
		assert.Equal(t, 0.0, f["match_score"])
	})
}

func TestDiseaseAdapter_AcronymCase(t *testing.T) {
	terms := append(doidTerms(), loader.DOIDTerm{ID: "DOID:9952", Label: "acute lymphoblastic leukemia"})
	adapter, err := NewDiseaseAdapter(terms, DiseaseConfig{}, testOptions())
	require.NoError(t, err)

	t.Run("Lowercase_Word_Left_Alone", func(t *testing.T) {
		assert.NotContains(t, adapter.ExpandedTerms("leukemia, all subtypes"), "leukemia, acute lymphoblastic leukemia subtypes")

		res := adapter.ResolveTerm("leukemia, all subtypes")
		if res.Entry != nil {
			assert.NotEqual(t, "DOID:9952", res.Entry.StableID)
		}
	})

	t.Run("Uppercase_Acronym_Expanded", func(t *testing.T) {
		res := adapter.ResolveTerm("relapsed ALL")
		require.NotNil(t, res.Entry)
		assert.Equal(t, "DOID:9952", res.Entry.StableID)
	})
}

func TestDiseaseStatus(t *testing.T) {
	tests := []struct {
		res  domain.MatchResult
		want domain.MatchStatus
	}{
		{domain.MatchResult{Status: domain.StatusCanonical, Score: 1}, domain.StatusExactMatch},
		{domain.MatchResult{Status: domain.StatusFuzzyMatch, Score: 0.96}, domain.StatusExactMatch},
		{domain.MatchResult{Status: domain.StatusFuzzyMatch, Score: 0.8}, domain.StatusFuzzyMatch},
		{domain.MatchResult{Status: domain.StatusFuzzyMatch, Score: 0.65}, domain.StatusAcronymMatch},
		{domain.MatchResult{Status: domain.StatusUnknown}, domain.StatusUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DiseaseStatus(tt.res, 0.70, 0.60))
	}
}

// fakeRegistry answers lookups from a fixed table and counts calls.
type fakeRegistry struct {
	mu        sync.Mutex
	molecules map[string]*external.LookupResult
	failing   map[string]bool
	calls     map[string]int
}

func (f *fakeRegistry) Lookup(ctx context.Context, query string, opts external.LookupOptions) (*external.LookupResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[query]++
	if f.failing[query] {
		return nil, errors.New("connection reset")
	}
	if res, ok := f.molecules[query]; ok {
		return res, nil
	}
	return nil, external.ErrNotFound
}

func molecule(id, name string, synonyms ...string) *external.Molecule {
	m := &external.Molecule{ChEMBLID: id, PrefName: name, MoleculeType: external.MoleculeTypeSmallMolecule}
	for _, s := range synonyms {
		m.MoleculeSynonyms = append(m.MoleculeSynonyms, external.MoleculeSynonym{Synonym: s})
	}
	return m
}

func TestPayloadAdapter_Enrich(t *testing.T) {
	registry := &fakeRegistry{
		molecules: map[string]*external.LookupResult{
			"MMAE":       {Molecule: molecule("CHEMBL3545086", "MONOMETHYL AURISTATIN E", "MMAE")},
			"Deruxtecan": {Molecule: molecule("CHEMBL4297289", "DERUXTECAN")},
			"Exatecan":   {Molecule: molecule("CHEMBL81677", "EXATECAN MESYLATE")},
		},
		failing: map[string]bool{"SN-38": true},
	}
	adapter := NewPayloadAdapter(registry, testOptions())
	assert.Equal(t, domain.DomainPayload, adapter.Domain())

	records := parseRecords(t, `[
		{"id": 1, "extractedDrugs": [
			{"drugName": "A", "payload": "MMAE"},
			{"drugName": "B", "payload": "Deruxtecan (DXd)"},
			{"drugName": "C", "payload": "SN-38"},
			{"drugName": "D", "payload": "Dx"}
		]},
		{"id": 2, "extractedDrugs": [
			{"drugName": "E", "payload": "MMAE"},
			{"drugName": "F", "payload": "Exatecan"}
		]}
	]`)

	tree, err := adapter.Enrich(context.Background(), records)
	require.NoError(t, err)
	assert.Equal(t, 6, tree.Len())

	f, _ := tree.Get(key("1", 0))
	assert.Equal(t, "CHEMBL3545086", f["chembl_id"])
	assert.Equal(t, "alias_match", f["match_status"])
	assert.Equal(t, 1, registry.calls["MMAE"])

	f, _ = tree.Get(key("1", 1))
	assert.Equal(t, "canonical", f["match_status"])
	assert.Equal(t, "Deruxtecan (DXd)", f["input"])
	assert.Equal(t, 0, registry.calls["DXd"])

	f, _ = tree.Get(key("1", 2))
	assert.Equal(t, "unknown", f["match_status"])
	assert.Equal(t, 1, tree.UpstreamErrors)

	f, _ = tree.Get(key("1", 3))
	assert.Equal(t, "unknown", f["match_status"])
	assert.Equal(t, 0, registry.calls["Dx"])

	f, _ = tree.Get(key("2", 1))
	assert.Equal(t, "registry_match", f["match_status"])
	score, ok := f["match_score"].(float64)
	require.True(t, ok)
	assert.True(t, score > 0 && score < 1)

	// the same payload in another record reuses the first lookup
	f, _ = tree.Get(key("2", 0))
	assert.Equal(t, "CHEMBL3545086", f["chembl_id"])
}

func TestDrugAdapter_Enrich(t *testing.T) {
	adc := &external.Molecule{ChEMBLID: "CHEMBL3989966", PrefName: "TRASTUZUMAB DERUXTECAN", MoleculeType: external.MoleculeTypeADC}
	registry := &fakeRegistry{
		molecules: map[string]*external.LookupResult{
			"trastuzumab deruxtecan": {
				Molecule:   adc,
				Mechanisms: []external.Mechanism{{MechanismOfAction: "Receptor protein-tyrosine kinase erbB-2 inhibitor", ActionType: "INHIBITOR"}},
			},
		},
	}
	adapter := NewDrugAdapter(registry, testOptions())

	records := parseRecords(t, `[{"id": 1, "extractedDrugs": [
		{"drugName": "T-DXd", "drugAlias": ["DS-8201a", "trastuzumab deruxtecan"]},
		{"drugName": "Unlisted-1"}
	]}]`)

	tree, err := adapter.Enrich(context.Background(), records)
	require.NoError(t, err)

	f, _ := tree.Get(key("1", 0))
	assert.Equal(t, "canonical", f["match_status"])
	assert.Equal(t, "trastuzumab deruxtecan", f["input"])
	mechs, ok := f["mechanism_of_action"].([]interface{})
	require.True(t, ok)
	require.Len(t, mechs, 1)
	assert.Equal(t, "INHIBITOR", mechs[0].(map[string]interface{})["action_type"])

	f, _ = tree.Get(key("1", 1))
	assert.Equal(t, "unknown", f["match_status"])
	assert.Equal(t, []interface{}{}, f["mechanism_of_action"])
}

func TestChemicalAdapter_Cancelled(t *testing.T) {
	adapter := NewLinkerAdapter(&fakeRegistry{}, testOptions())
	records := parseRecords(t, `[{"id": 1, "extractedDrugs": [{"linker": "vc-PAB"}]}]`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := adapter.Enrich(ctx, records)
	assert.Error(t, err)
}

func TestKeywordAdapters(t *testing.T) {
	tables, err := classify.DefaultTables()
	require.NoError(t, err)

	records := parseRecords(t, `[{"id": 7, "extractedDrugs": [
		{"drugName": "DS-8201a", "company": "Daiichi Sankyo", "trialDesign": "unknown", "phase": "Phase 1",
		 "biomarkerStrategy": "IHC analysis of tumor samples"},
		{"drugName": "BMS-986148", "company": null},
		{"drugName": "Mystery", "company": "unknown"}
	]}]`)
	ctx := context.Background()

	t.Run("Company", func(t *testing.T) {
		tree, err := NewCompanyAdapter(tables.Company, testOptions()).Enrich(ctx, records)
		require.NoError(t, err)

		f, _ := tree.Get(key("7", 0))
		assert.Equal(t, "Daiichi Sankyo", f["company_cleaned"])
		assert.Equal(t, "canonical", f["match_status"])
		assert.Equal(t, SourceField, f["source"])
		assert.Equal(t, 1, f["confidence"])

		f, _ = tree.Get(key("7", 1))
		assert.Equal(t, "BMS", f["company_cleaned"])
		assert.Equal(t, "inferred", f["match_status"])
		assert.Equal(t, SourceDrugName, f["source"])

		_, ok := tree.Get(key("7", 2))
		assert.False(t, ok)
	})

	t.Run("Trial_Design_From_Phase", func(t *testing.T) {
		tree, err := NewTrialDesignAdapter(tables.TrialDesign, testOptions()).Enrich(ctx, records)
		require.NoError(t, err)

		f, ok := tree.Get(key("7", 0))
		require.True(t, ok)
		assert.Equal(t, "Dose-escalation study", f["design_cleaned"])
		assert.Equal(t, true, f["inferred_from_phase"])
		assert.Equal(t, "inferred", f["match_status"])
		assert.Nil(t, f["design_original"])
		assert.Equal(t, 1, tree.Len())
	})

	t.Run("Biomarker", func(t *testing.T) {
		tree, err := NewBiomarkerAdapter(tables.Biomarker, testOptions()).Enrich(ctx, records)
		require.NoError(t, err)

		f, _ := tree.Get(key("7", 0))
		assert.Equal(t, "IHC analysis of tumor samples", f["strategy_cleaned"])
		assert.Equal(t, "canonical", f["match_status"])
		assert.Equal(t, []string{"immunohistochemistry"}, f["matched_categories"])
		assert.Equal(t, []string{"IHC"}, f["technologies"])
		assert.Equal(t, []string{"IHC"}, f["molecules"])
		assert.Equal(t, 4, f["complexity"])
	})
}

func TestDomainTree_SetReplaces(t *testing.T) {
	tree := NewDomainTree("x")
	tree.Set(key("1", 0), "A", domain.UnknownField())
	tree.Set(key("1", 0), "A", domain.EnrichmentField{"match_status": "canonical"})

	assert.Equal(t, 1, tree.Len())
	assert.Equal(t, 1, tree.Stats[domain.StatusCanonical])
	assert.Equal(t, 0, tree.Stats[domain.StatusUnknown])
	assert.Equal(t, []DrugKey{key("1", 0)}, tree.Keys())
}

func TestDistinctValues(t *testing.T) {
	records := parseRecords(t, `[
		{"id": 1, "extractedDrugs": [{"payload": ["MMAE", " DXd "]}, {"payload": "MMAE"}]},
		{"id": 2, "extractedDrugs": [{"payload": null}]}
	]`)
	got := DistinctValues(records, func(d domain.DrugItem) domain.FieldValue { return d.Payload })
	assert.Equal(t, []string{"DXd", "MMAE"}, got)
}
