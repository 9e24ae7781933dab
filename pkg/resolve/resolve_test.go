package resolve

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adc-ontology-enricher/internal/domain"
	"github.com/adc-ontology-enricher/pkg/normalize"
	"github.com/adc-ontology-enricher/pkg/vocab"
)

func geneIndex() *vocab.Index {
	return vocab.Build("gene", []domain.ReferenceEntry{
		{CanonicalSymbol: "ERBB2", AliasField: "HER2|NEU", StableID: "HGNC:3430"},
		{CanonicalSymbol: "TACSTD2", AliasField: "TROP2, EGP-1", StableID: "HGNC:11530"},
		{CanonicalSymbol: "FOLR1", AliasField: "FRA", StableID: "HGNC:3791"},
	})
}

func TestResolve_Cascade(t *testing.T) {
	idx := geneIndex()

	t.Run("Alias_Match", func(t *testing.T) {
		res := Resolve("HER2", idx, DefaultGeneCutoff)
		assert.Equal(t, domain.StatusAliasMatch, res.Status)
		assert.Equal(t, 1.0, res.Score)
		require.NotNil(t, res.Entry)
		assert.Equal(t, "ERBB2", res.Entry.CanonicalSymbol)
		assert.Equal(t, "HGNC:3430", res.Entry.StableID)
	})

	t.Run("Punctuation_Is_Ignored", func(t *testing.T) {
		res := Resolve("HER-2", idx, DefaultGeneCutoff)
		assert.Equal(t, domain.StatusAliasMatch, res.Status)
		assert.Equal(t, "HGNC:3430", res.Entry.StableID)
		assert.Equal(t, "HER-2", res.Input)
	})

	t.Run("Canonical_Symbol", func(t *testing.T) {
		res := Resolve("erbb2", idx, DefaultGeneCutoff)
		assert.Equal(t, domain.StatusCanonical, res.Status)
		assert.Equal(t, 1.0, res.Score)
		assert.Equal(t, "ERBB2", res.MatchedKey)
	})

	t.Run("Fuzzy_Match", func(t *testing.T) {
		res := Resolve("ERBB-22", idx, DefaultGeneCutoff)
		assert.Equal(t, domain.StatusFuzzyMatch, res.Status)
		assert.InDelta(t, 10.0/11.0, res.Score, 1e-9)
		assert.Equal(t, "HGNC:3430", res.Entry.StableID)
		assert.Equal(t, "ERBB2", res.MatchedKey)
	})

	t.Run("No_Match", func(t *testing.T) {
		res := Resolve("XKCD9999", idx, DefaultGeneCutoff)
		assert.Equal(t, domain.StatusUnknown, res.Status)
		assert.Zero(t, res.Score)
		assert.Nil(t, res.Entry)
	})

	t.Run("Short_Input_Is_Unknown", func(t *testing.T) {
		for _, raw := range []string{"", "HE", "a-1", "  "} {
			res := Resolve(raw, idx, DefaultGeneCutoff)
			assert.Equal(t, domain.StatusUnknown, res.Status, raw)
		}
	})

	t.Run("Deterministic", func(t *testing.T) {
		first := Resolve("TROP-2 antigen", idx, 0.5)
		for i := 0; i < 5; i++ {
			assert.Equal(t, first, Resolve("TROP-2 antigen", idx, 0.5))
		}
	})
}

func TestResolve_TieBreaksOnSmallestKey(t *testing.T) {
	idx := vocab.Build("test", []domain.ReferenceEntry{
		{CanonicalSymbol: "ABCE", StableID: "e"},
		{CanonicalSymbol: "ABCD", StableID: "d"},
	})

	res := Resolve("ABCX", idx, 0.7)
	assert.Equal(t, domain.StatusFuzzyMatch, res.Status)
	assert.InDelta(t, 0.75, res.Score, 1e-9)
	assert.Equal(t, "ABCD", res.MatchedKey)
	assert.Equal(t, "d", res.Entry.StableID)
}

func TestResolver_ScoreRules(t *testing.T) {
	idx := vocab.Build("disease", []domain.ReferenceEntry{
		{CanonicalSymbol: "colin kancer", StableID: "DOID:1"},
		{CanonicalSymbol: "colon cancer", StableID: "DOID:219"},
		{CanonicalSymbol: "breast cancer", StableID: "DOID:1612"},
	})

	t.Run("Without_Rules_Smallest_Key_Wins", func(t *testing.T) {
		r, err := New(idx, Options{Cutoff: DefaultDiseaseCutoff})
		require.NoError(t, err)
		res := r.Resolve("colon kancer")
		assert.Equal(t, "DOID:1", res.Entry.StableID)
	})

	t.Run("Boost_Changes_Winner", func(t *testing.T) {
		r, err := New(idx, Options{Cutoff: DefaultDiseaseCutoff, Rules: DefaultAnatomicalRules()})
		require.NoError(t, err)
		res := r.Resolve("colon kancer")
		assert.Equal(t, domain.StatusFuzzyMatch, res.Status)
		assert.Equal(t, "DOID:219", res.Entry.StableID)
		assert.Equal(t, 1.0, res.Score)
	})

	t.Run("Boosted_Score_Is_Clamped", func(t *testing.T) {
		r, err := New(idx, Options{Cutoff: DefaultDiseaseCutoff, Rules: DefaultAnatomicalRules()})
		require.NoError(t, err)
		res := r.Resolve("breast cancers")
		assert.Equal(t, domain.StatusFuzzyMatch, res.Status)
		assert.Equal(t, 1.0, res.Score)
	})
}

func TestApplyRules_FirstChangeWins(t *testing.T) {
	rules := []ScoreRule{
		KeywordBoost{Name: "a", InputTerms: []string{"lung"}, LabelTerm: "lung", Boost: 0.1},
		KeywordBoost{Name: "b", InputTerms: []string{"lung"}, LabelTerm: "lung", Boost: 0.2},
	}

	assert.InDelta(t, 0.8, applyRules(rules, "Lung adenocarcinoma", "lung carcinoma", 0.7), 1e-9)
	assert.InDelta(t, 0.7, applyRules(rules, "liver tumor", "lung carcinoma", 0.7), 1e-9)
	assert.InDelta(t, 0.7, applyRules(rules, "lung tumor", "liver carcinoma", 0.7), 1e-9)
}

func TestResolver_ResolveCandidates(t *testing.T) {
	r, err := New(geneIndex(), Options{Cutoff: DefaultGeneCutoff, MemoSize: 16})
	require.NoError(t, err)

	t.Run("Parenthetical_Short_Form", func(t *testing.T) {
		raw := "Folate Receptor Alpha (FRA)"
		res := r.ResolveCandidates(raw, Candidates(normalize.ExpandParenthetical(raw)...))
		assert.Equal(t, domain.StatusAliasMatch, res.Status)
		assert.Equal(t, "HGNC:3791", res.Entry.StableID)
		assert.Equal(t, raw, res.Input)
	})

	t.Run("Candidate_Cutoff_Overrides_Default", func(t *testing.T) {
		res := r.ResolveCandidates("x", []Candidate{{Text: "ERBB-22", Cutoff: 0.95}})
		assert.Equal(t, domain.StatusUnknown, res.Status)

		res = r.ResolveCandidates("x", []Candidate{{Text: "ERBB-22"}})
		assert.Equal(t, domain.StatusFuzzyMatch, res.Status)
		assert.Equal(t, "x", res.Input)
	})

	t.Run("Memo_Returns_Same_Result", func(t *testing.T) {
		assert.Equal(t, r.Resolve("TROP2"), r.Resolve("TROP2"))
	})
}

func TestResolver_Fallback(t *testing.T) {
	taca := vocab.Build("taca", []domain.ReferenceEntry{
		{CanonicalSymbol: "Sialyl-Tn", StableID: "Sialyl-Tn", Attributes: map[string]interface{}{"family": "Tn"}},
	})
	r, err := New(geneIndex(), Options{
		Cutoff:   DefaultGeneCutoff,
		Fallback: &Fallback{Index: taca, Cutoff: DefaultTACACutoff, Status: domain.StatusTACAMatch},
	})
	require.NoError(t, err)

	t.Run("Fallback_Relabels_Status", func(t *testing.T) {
		res := r.ResolveCandidates("Sialyl Tn antigen", nil)
		assert.Equal(t, domain.StatusTACAMatch, res.Status)
		assert.Equal(t, "Tn", res.Entry.Attr("family"))
	})

	t.Run("Primary_Wins_Over_Fallback", func(t *testing.T) {
		res := r.ResolveCandidates("HER2", nil)
		assert.Equal(t, domain.StatusAliasMatch, res.Status)
	})

	t.Run("Both_Miss", func(t *testing.T) {
		res := r.ResolveCandidates("XKCD9999", nil)
		assert.Equal(t, domain.StatusUnknown, res.Status)
	})
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, Options{Cutoff: 0.5})
	assert.Error(t, err)

	_, err = New(geneIndex(), Options{Cutoff: 0})
	assert.Error(t, err)

	_, err = New(geneIndex(), Options{Cutoff: 1.5})
	assert.Error(t, err)
}

func TestResolveAll(t *testing.T) {
	idx := geneIndex()
	var calls int32

	results, err := ResolveAll(context.Background(), []string{"HER2", "TROP2", "HER2", "XKCD9999"}, 4, func(raw string) domain.MatchResult {
		atomic.AddInt32(&calls, 1)
		return Resolve(raw, idx, DefaultGeneCutoff)
	})
	require.NoError(t, err)

	assert.Len(t, results, 3)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, domain.StatusAliasMatch, results["HER2"].Status)
	assert.Equal(t, domain.StatusUnknown, results["XKCD9999"].Status)
}

func TestResolveAll_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ResolveAll(ctx, []string{"HER2"}, 1, func(raw string) domain.MatchResult {
		return domain.UnknownResult(raw)
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRatio(t *testing.T) {
	assert.InDelta(t, 0.75, Ratio("abcd", "bcde"), 1e-9)
	assert.Equal(t, 1.0, Ratio("", ""))
	assert.Equal(t, 1.0, Ratio("DXd", "DXd"))
	assert.Zero(t, Ratio("abc", "xyz"))
}
