package enrich

import (
	"context"
	"fmt"
	"strings"

	"github.com/adc-ontology-enricher/internal/domain"
	"github.com/adc-ontology-enricher/internal/loader"
	"github.com/adc-ontology-enricher/pkg/normalize"
	"github.com/adc-ontology-enricher/pkg/resolve"
	"github.com/adc-ontology-enricher/pkg/vocab"
)

// ExactMatchScore is the lowest score reported as an exact match.
const ExactMatchScore = 0.95

// DefaultCancerAcronyms expands the abbreviations common in indications.
// Order matters for cumulative substitution.
var DefaultCancerAcronyms = normalize.AcronymTable{
	{Short: "NSCLC", Long: "non-small cell lung cancer"},
	{Short: "SCLC", Long: "small cell lung cancer"},
	{Short: "AML", Long: "acute myeloid leukemia"},
	{Short: "ALL", Long: "acute lymphoblastic leukemia"},
	{Short: "DLBCL", Long: "diffuse large B-cell lymphoma"},
	{Short: "CRC", Long: "colorectal cancer"},
	{Short: "CRPC", Long: "castrate-resistant prostate cancer"},
	{Short: "ESCC", Long: "esophageal squamous cell carcinoma"},
	{Short: "EWS", Long: "Ewing sarcoma"},
	{Short: "B-ALL", Long: "B-cell acute lymphoblastic leukemia"},
	{Short: "Ph-like", Long: "Philadelphia chromosome-like"},
	{Short: "TKI", Long: "tyrosine kinase inhibitor"},
	{Short: "EGFR-TKI", Long: "EGFR tyrosine kinase inhibitor"},
	{Short: "HER2", Long: "human epidermal growth factor receptor 2"},
	{Short: "ER+", Long: "estrogen receptor positive"},
	{Short: "HER2-", Long: "human epidermal growth factor receptor 2 negative"},
	{Short: "CD30+", Long: "CD30 positive"},
	{Short: "CDH17+", Long: "CDH17 positive"},
	{Short: "CEACAM5+", Long: "CEACAM5 positive"},
	{Short: "CRLF2+", Long: "CRLF2 positive"},
	{Short: "ETV6-NTRK3+", Long: "ETV6-NTRK3 fusion positive"},
	{Short: "B7-H3+", Long: "B7-H3 positive"},
}

// attribute keys on DOID entries
const (
	attrPaths      = "paths_to_root"
	attrLabelPaths = "label_paths_to_root"
)

// labelPrefixes are qualifiers dropped to form label variants
var labelPrefixes = []string{
	"estrogen-receptor positive ",
	"estrogen-receptor negative ",
	"progesterone-receptor positive ",
	"progesterone-receptor negative ",
	"her2-receptor positive ",
	"her2-receptor negative ",
	"triple-receptor negative ",
	"luminal ",
}

// DiseaseConfig configures the disease adapter.
type DiseaseConfig struct {
	Cutoff        float64
	AcronymCutoff float64
	Acronyms      normalize.AcronymTable
	// Rules nil means the anatomical defaults; use an empty slice for none
	Rules []resolve.ScoreRule
}

// DiseaseAdapter resolves cancer indications against the DOID leaf terms.
type DiseaseAdapter struct {
	resolver *resolve.Resolver
	cfg      DiseaseConfig
	opts     Options
}

// NewDiseaseAdapter indexes terms by label with the generated label
// variants as aliases.
func NewDiseaseAdapter(terms []loader.DOIDTerm, cfg DiseaseConfig, opts Options) (*DiseaseAdapter, error) {
	opts = opts.withDefaults()
	if cfg.Cutoff == 0 {
		cfg.Cutoff = resolve.DefaultDiseaseCutoff
	}
	if cfg.AcronymCutoff == 0 {
		cfg.AcronymCutoff = resolve.DefaultAcronymCutoff
	}
	if cfg.Acronyms == nil {
		cfg.Acronyms = DefaultCancerAcronyms
	}
	if cfg.Rules == nil {
		cfg.Rules = resolve.DefaultAnatomicalRules()
	}

	entries := make([]domain.ReferenceEntry, 0, len(terms))
	for _, t := range terms {
		if strings.TrimSpace(t.Label) == "" {
			continue
		}
		entries = append(entries, domain.ReferenceEntry{
			CanonicalSymbol: t.Label,
			AliasField:      strings.Join(LabelVariants(t.Label), "|"),
			StableID:        t.ID,
			Attributes: map[string]interface{}{
				attrPaths:      t.Paths,
				attrLabelPaths: t.LabelPaths,
			},
		})
	}

	idx := vocab.Build("doid", entries)
	logIndex(opts.Logger, idx, len(terms))

	r, err := resolve.New(idx, resolve.Options{
		Cutoff:   cfg.Cutoff,
		Rules:    cfg.Rules,
		MemoSize: opts.MemoSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create disease resolver: %w", err)
	}
	return &DiseaseAdapter{resolver: r, cfg: cfg, opts: opts}, nil
}

// LabelVariants returns the lowercase alternative spellings of a DOID
// label. Commas are replaced so a variant survives alias splitting.
func LabelVariants(label string) []string {
	lower := strings.ToLower(label)
	raw := []string{
		strings.ReplaceAll(lower, "cancer", "carcinoma"),
		strings.ReplaceAll(lower, "carcinoma", "cancer"),
		strings.ReplaceAll(lower, "tumor", "cancer"),
		strings.ReplaceAll(lower, "cancer", "tumor"),
		strings.ReplaceAll(lower, "malignant", ""),
		strings.ReplaceAll(lower, "malignancy", ""),
	}
	for _, p := range labelPrefixes {
		raw = append(raw, strings.ReplaceAll(lower, p, ""))
	}
	for c := 'A'; c <= 'Z'; c++ {
		raw = append(raw, strings.ToLower(strings.ReplaceAll(label, " "+string(c), "")))
	}

	seen := map[string]struct{}{lower: {}}
	var out []string
	for _, v := range raw {
		v = strings.Join(strings.Fields(strings.ReplaceAll(v, ",", " ")), " ")
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Domain implements Adapter.
func (a *DiseaseAdapter) Domain() string {
	return domain.DomainDisease
}

// ExpandedTerms returns the acronym variants of raw.
func (a *DiseaseAdapter) ExpandedTerms(raw string) []string {
	return normalize.ExpandAcronyms(raw, a.cfg.Acronyms)
}

// ResolveTerm resolves one indication. Every acronym variant and its
// parenthetical parts are tried; the best score wins, earlier on ties.
func (a *DiseaseAdapter) ResolveTerm(raw string) domain.MatchResult {
	best := domain.UnknownResult(raw)
	for _, variant := range a.ExpandedTerms(raw) {
		cutoff := a.cfg.AcronymCutoff
		if variant == raw {
			cutoff = a.cfg.Cutoff
		}
		for _, text := range normalize.ExpandParenthetical(variant) {
			res := a.resolver.ResolveAt(text, cutoff)
			if res.Status.Matched() && res.Score > best.Score {
				best = res
			}
		}
	}
	best.Input = raw
	best.Status = DiseaseStatus(best, a.cfg.Cutoff, a.cfg.AcronymCutoff)
	if best.Status == domain.StatusUnknown {
		best.Entry = nil
	}
	return best
}

// DiseaseStatus maps a cascade result onto the disease tiers.
func DiseaseStatus(res domain.MatchResult, fuzzyCutoff, acronymCutoff float64) domain.MatchStatus {
	switch {
	case res.Status == domain.StatusCanonical, res.Status == domain.StatusAliasMatch:
		return domain.StatusExactMatch
	case !res.Status.Matched():
		return domain.StatusUnknown
	case res.Score >= ExactMatchScore:
		return domain.StatusExactMatch
	case res.Score >= fuzzyCutoff:
		return domain.StatusFuzzyMatch
	case res.Score >= acronymCutoff:
		return domain.StatusAcronymMatch
	default:
		return domain.StatusUnknown
	}
}

// Resolve resolves a single indication into its field.
func (a *DiseaseAdapter) Resolve(raw string) domain.EnrichmentField {
	return a.diseaseField(a.ResolveTerm(raw))
}

// Enrich implements Adapter.
func (a *DiseaseAdapter) Enrich(ctx context.Context, records []domain.RawRecord) (*DomainTree, error) {
	sel := func(d domain.DrugItem) domain.FieldValue { return d.CancerIndication }
	raws := DistinctValues(records, sel)

	results, err := resolve.ResolveAll(ctx, raws, a.opts.Workers, a.ResolveTerm)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve diseases: %w", err)
	}

	tree := NewDomainTree(a.Domain())
	tree.Lookups = len(raws)

	forEachDrug(records, func(key DrugKey, drug domain.DrugItem) {
		values := trimmedValues(sel(drug))
		if len(values) == 0 {
			return
		}

		all := make([]domain.EnrichmentField, 0, len(values))
		best := 0
		for i, v := range values {
			res := results[v]
			all = append(all, a.diseaseField(res))
			if i > 0 && betterDisease(res, results[values[best]]) {
				best = i
			}
		}

		field := all[best].Clone()
		field["all_diseases"] = all
		tree.Set(key, drug.Name(), field)
	})

	logTree(a.opts.Logger, tree)
	return tree, nil
}

// betterDisease reports whether a strictly beats b: an exact match beats
// any score, otherwise the higher score wins.
func betterDisease(a, b domain.MatchResult) bool {
	aExact := a.Status == domain.StatusExactMatch
	bExact := b.Status == domain.StatusExactMatch
	if aExact != bExact {
		return aExact
	}
	return a.Score > b.Score
}

func (a *DiseaseAdapter) diseaseField(res domain.MatchResult) domain.EnrichmentField {
	f := domain.EnrichmentField{
		"input":           res.Input,
		"doid_id":         nil,
		"doid_label":      nil,
		"hierarchy_path":  []string{},
		"hierarchy_paths": [][]string{},
		"synonyms":        a.ExpandedTerms(res.Input),
		"match_status":    string(res.Status),
		"match_score":     res.Score,
	}

	e := res.Entry
	if e == nil || !res.Status.Matched() {
		f["match_score"] = 0.0
		return f
	}

	f["doid_id"] = e.StableID
	f["doid_label"] = e.CanonicalSymbol
	if paths, ok := e.Attributes[attrLabelPaths].([][]string); ok && len(paths) > 0 {
		cp := make([][]string, len(paths))
		for i := range paths {
			cp[i] = append([]string{}, paths[i]...)
		}
		f["hierarchy_paths"] = cp
		f["hierarchy_path"] = append([]string{}, paths[0]...)
	}
	return f
}
