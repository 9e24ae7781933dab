package enrich

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/adc-ontology-enricher/internal/domain"
	"github.com/adc-ontology-enricher/internal/loader"
	"github.com/adc-ontology-enricher/pkg/normalize"
	"github.com/adc-ontology-enricher/pkg/resolve"
	"github.com/adc-ontology-enricher/pkg/vocab"
)

// DefaultExcludedLocusTypes are HGNC locus types that never name an antigen.
var DefaultExcludedLocusTypes = []string{
	"RNA, long non-coding",
	"RNA, micro",
	"pseudogene",
	"unknown",
	"readthrough",
	"RNA, transfer",
	"RNA, small nucleolar",
	"RNA, ribosomal",
}

// AntigenConfig configures the antigen adapter.
type AntigenConfig struct {
	Cutoff             float64
	TACACutoff         float64
	ExcludedLocusTypes []string
}

// AntigenAdapter resolves target antigens against HGNC with a TACA fallback.
type AntigenAdapter struct {
	resolver *resolve.Resolver
	opts     Options
}

// NewAntigenAdapter builds the gene index from hgnc rows outside the
// excluded locus types. taca may be empty.
func NewAntigenAdapter(hgnc, taca []domain.ReferenceEntry, cfg AntigenConfig, opts Options) (*AntigenAdapter, error) {
	opts = opts.withDefaults()
	if cfg.Cutoff == 0 {
		cfg.Cutoff = resolve.DefaultGeneCutoff
	}
	if cfg.TACACutoff == 0 {
		cfg.TACACutoff = resolve.DefaultTACACutoff
	}
	if cfg.ExcludedLocusTypes == nil {
		cfg.ExcludedLocusTypes = DefaultExcludedLocusTypes
	}

	excluded := make(map[string]struct{}, len(cfg.ExcludedLocusTypes))
	for _, lt := range cfg.ExcludedLocusTypes {
		excluded[strings.ToLower(strings.TrimSpace(lt))] = struct{}{}
	}
	genes := vocab.Filter(hgnc, func(e domain.ReferenceEntry) bool {
		_, skip := excluded[strings.ToLower(e.Attr(loader.AttrLocusType))]
		return !skip
	})

	idx := vocab.Build("hgnc", genes)
	logIndex(opts.Logger, idx, len(hgnc))

	ropts := resolve.Options{Cutoff: cfg.Cutoff, MemoSize: opts.MemoSize}
	if len(taca) > 0 {
		tacaIdx := vocab.Build("taca", taca)
		logIndex(opts.Logger, tacaIdx, len(taca))
		ropts.Fallback = &resolve.Fallback{
			Index:  tacaIdx,
			Cutoff: cfg.TACACutoff,
			Status: domain.StatusTACAMatch,
		}
	}

	r, err := resolve.New(idx, ropts)
	if err != nil {
		return nil, fmt.Errorf("failed to create antigen resolver: %w", err)
	}
	return &AntigenAdapter{resolver: r, opts: opts}, nil
}

// Domain implements Adapter.
func (a *AntigenAdapter) Domain() string {
	return domain.DomainAntigen
}

// Resolve resolves a single antigen string.
func (a *AntigenAdapter) Resolve(raw string) domain.EnrichmentField {
	return antigenField(a.resolver.ResolveCandidates(raw, antigenCandidates(raw)))
}

// Enrich implements Adapter.
func (a *AntigenAdapter) Enrich(ctx context.Context, records []domain.RawRecord) (*DomainTree, error) {
	sel := func(d domain.DrugItem) domain.FieldValue { return d.TargetAntigen }
	raws := DistinctValues(records, sel)

	results, err := a.resolver.ResolveAll(ctx, raws, a.opts.Workers, antigenCandidates)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve antigens: %w", err)
	}

	tree := NewDomainTree(a.Domain())
	tree.Lookups = len(raws)

	forEachDrug(records, func(key DrugKey, drug domain.DrugItem) {
		values := trimmedValues(sel(drug))
		if len(values) == 0 {
			return
		}

		targets := make([]domain.EnrichmentField, 0, len(values))
		primary := -1
		for i, v := range values {
			f := antigenField(results[v])
			targets = append(targets, f)
			if primary < 0 && f.Status().Matched() {
				primary = i
			}
		}
		if primary < 0 {
			primary = 0
		}

		field := targets[primary].Clone()
		field["targets"] = targets
		tree.Set(key, drug.Name(), field)
	})

	logTree(a.opts.Logger, tree)
	return tree, nil
}

func antigenCandidates(raw string) []resolve.Candidate {
	return resolve.Candidates(normalize.ExpandParenthetical(raw)...)
}

func antigenField(res domain.MatchResult) domain.EnrichmentField {
	f := domain.EnrichmentField{
		"input":           res.Input,
		"hgnc_symbol":     nil,
		"hgnc_id":         nil,
		"ensembl_gene_id": nil,
		"synonyms":        []string{},
		"locus_type":      nil,
		"gene_group":      []string{},
		"taca_subtype":    nil,
		"taca_family":     nil,
		"match_status":    string(res.Status),
		"match_score":     res.Score,
	}

	e := res.Entry
	if e == nil {
		return f
	}

	if res.Status == domain.StatusTACAMatch {
		f["taca_subtype"] = e.CanonicalSymbol
		f["taca_family"] = stringOrNil(e.Attr(loader.AttrTACAFamily))
		return f
	}

	f["hgnc_symbol"] = e.CanonicalSymbol
	f["hgnc_id"] = stringOrNil(e.StableID)
	f["ensembl_gene_id"] = stringOrNil(e.Attr(loader.AttrEnsemblGeneID))
	f["locus_type"] = stringOrNil(e.Attr(loader.AttrLocusType))
	f["synonyms"] = cleanSynonyms(vocab.SplitAliases(e.AliasField))
	if groups, ok := e.Attributes[loader.AttrGeneGroup].([]string); ok {
		f["gene_group"] = append([]string{}, groups...)
	}
	return f
}

func cleanSynonyms(in []string) []string {
	out := []string{}
	for _, s := range in {
		if s == "" || strings.EqualFold(s, "nan") {
			continue
		}
		out = append(out, s)
	}
	return out
}

// logIndex reports index build counters.
func logIndex(logger *logrus.Logger, idx *vocab.Index, rows int) {
	stats := idx.Stats()
	logger.WithFields(logrus.Fields{
		"vocabulary":        idx.Name(),
		"rows":              rows,
		"entries":           stats.Entries,
		"symbol_keys":       stats.SymbolKeys,
		"alias_keys":        stats.AliasKeys,
		"symbol_collisions": stats.SymbolCollisions,
		"alias_collisions":  stats.AliasCollisions,
	}).Info("Reference index built")
}
