package pipeline

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/adc-ontology-enricher/internal/classify"
	"github.com/adc-ontology-enricher/internal/config"
	"github.com/adc-ontology-enricher/internal/domain"
	"github.com/adc-ontology-enricher/internal/enrich"
	"github.com/adc-ontology-enricher/internal/loader"
	"github.com/adc-ontology-enricher/pkg/external"
)

// NewRegistry builds the ChEMBL registry from cfg: a rate-limited client
// behind a circuit breaker, with the Redis response cache when one is
// configured and reachable.
func NewRegistry(cfg *domain.Config, logger *logrus.Logger) (*external.ResilientRegistry, func()) {
	client := external.NewChEMBLClient(external.ChEMBLConfig{
		BaseURL:   cfg.Registry.BaseURL,
		Timeout:   cfg.Registry.Timeout,
		RateLimit: cfg.Registry.RateLimit,
	})

	var cache *external.CacheClient
	cleanup := func() {}
	if cfg.Cache.RedisURL != "" {
		c, err := external.NewCacheClient(cfg.Cache)
		if err != nil {
			logger.WithFields(logrus.Fields{
				"error": err.Error(),
			}).Warn("Registry cache unavailable, continuing without it")
		} else {
			cache = c
			cleanup = func() { c.Close() }
		}
	}

	registry := external.NewResilientRegistry(client, cache,
		external.CircuitBreakerConfigFrom(cfg.Registry.CircuitBreaker), logger)
	return registry, cleanup
}

// adapterOptions maps the matching settings onto adapter options.
func adapterOptions(cfg *domain.Config, logger *logrus.Logger) enrich.Options {
	return enrich.Options{
		Workers:  cfg.Matching.Workers,
		MemoSize: cfg.Matching.FuzzyMemoSize,
		Logger:   logger,
	}
}

// builder constructs the adapter of one domain. Vocabularies are loaded on
// first use.
type builder struct {
	cfg      *domain.Config
	logger   *logrus.Logger
	registry external.MoleculeRegistry
	runID    string

	tables *classify.Tables
}

// build returns the adapter for name, or nil when the domain cannot run in
// this configuration.
func (b *builder) build(name string) (enrich.Adapter, error) {
	opts := adapterOptions(b.cfg, b.logger)
	switch name {
	case domain.DomainAntigen:
		return b.antigen(opts)
	case domain.DomainDisease:
		return b.disease(opts)
	case domain.DomainDrug, domain.DomainPayload, domain.DomainLinker:
		if b.registry == nil {
			return nil, nil
		}
		switch name {
		case domain.DomainDrug:
			return enrich.NewDrugAdapter(b.registry, opts), nil
		case domain.DomainPayload:
			return enrich.NewPayloadAdapter(b.registry, opts), nil
		default:
			return enrich.NewLinkerAdapter(b.registry, opts), nil
		}
	case domain.DomainCompany, domain.DomainTrialDesign, domain.DomainBiomarkerStrategy:
		tables, err := b.keywordTables()
		if err != nil {
			return nil, err
		}
		switch name {
		case domain.DomainCompany:
			return enrich.NewCompanyAdapter(tables.Company, opts), nil
		case domain.DomainTrialDesign:
			return enrich.NewTrialDesignAdapter(tables.TrialDesign, opts), nil
		default:
			return enrich.NewBiomarkerAdapter(tables.Biomarker, opts), nil
		}
	default:
		return nil, fmt.Errorf("unknown domain %q", name)
	}
}

func (b *builder) antigen(opts enrich.Options) (enrich.Adapter, error) {
	hgnc, err := loader.LoadHGNC(b.cfg.Vocabulary.HGNCPath)
	if err != nil {
		return nil, b.vocabularyError("HGNC", b.cfg.Vocabulary.HGNCPath, err)
	}

	var taca []domain.ReferenceEntry
	if path := b.cfg.Vocabulary.TACAPath; path != "" {
		if _, statErr := os.Stat(path); statErr != nil {
			b.logger.WithFields(logrus.Fields{
				"path":  path,
				"error": statErr.Error(),
			}).Warn("TACA vocabulary not found, antigen fallback disabled")
		} else if taca, err = loader.LoadTACA(path); err != nil {
			return nil, b.vocabularyError("TACA", path, err)
		}
	}

	excluded := b.cfg.Vocabulary.ExcludedLocusTypes
	if len(excluded) == 0 {
		excluded = nil
	}
	a, err := enrich.NewAntigenAdapter(hgnc, taca, enrich.AntigenConfig{
		Cutoff:             b.cfg.Matching.GeneCutoff,
		TACACutoff:         b.cfg.Matching.TACACutoff,
		ExcludedLocusTypes: excluded,
	}, opts)
	if err != nil {
		return nil, b.vocabularyError("HGNC", b.cfg.Vocabulary.HGNCPath, err)
	}
	return a, nil
}

func (b *builder) disease(opts enrich.Options) (enrich.Adapter, error) {
	terms, err := loader.LoadDOID(b.cfg.Vocabulary.DOIDPath)
	if err != nil {
		return nil, b.vocabularyError("DOID", b.cfg.Vocabulary.DOIDPath, err)
	}
	a, err := enrich.NewDiseaseAdapter(terms, enrich.DiseaseConfig{
		Cutoff:        b.cfg.Matching.DiseaseCutoff,
		AcronymCutoff: b.cfg.Matching.AcronymCutoff,
		Acronyms:      config.Acronyms(b.cfg),
		Rules:         config.ScoreRules(b.cfg),
	}, opts)
	if err != nil {
		return nil, b.vocabularyError("DOID", b.cfg.Vocabulary.DOIDPath, err)
	}
	return a, nil
}

func (b *builder) keywordTables() (*classify.Tables, error) {
	if b.tables != nil {
		return b.tables, nil
	}
	tables, err := classify.LoadTables(b.cfg.Vocabulary.KeywordTablesPath)
	if err != nil {
		return nil, b.vocabularyError("keyword tables", b.cfg.Vocabulary.KeywordTablesPath, err)
	}
	b.tables = tables
	return tables, nil
}

func (b *builder) vocabularyError(name, path string, err error) error {
	return domain.NewPipelineError(domain.ErrVocabularyError,
		fmt.Sprintf("failed to load %s vocabulary", name), path, b.runID, err)
}

// ResolveOne resolves a single raw term in one domain, for debugging a
// vocabulary or registry answer without a corpus.
func ResolveOne(ctx context.Context, cfg *domain.Config, logger *logrus.Logger, registry external.MoleculeRegistry, domainName, term string) (domain.EnrichmentField, error) {
	b := &builder{cfg: cfg, logger: logger, registry: registry}
	adapter, err := b.build(domainName)
	if err != nil {
		return nil, err
	}
	if adapter == nil {
		return nil, fmt.Errorf("domain %s needs the chemical registry, which is disabled", domainName)
	}

	switch a := adapter.(type) {
	case *enrich.AntigenAdapter:
		return a.Resolve(term), nil
	case *enrich.DiseaseAdapter:
		return a.Resolve(term), nil
	case *enrich.ChemicalAdapter:
		return a.Resolve(ctx, []string{term})
	}

	// keyword adapters classify a whole drug item
	drug, err := drugFor(domainName, term)
	if err != nil {
		return nil, err
	}
	tree, err := adapter.Enrich(ctx, []domain.RawRecord{{ID: "resolve", Drugs: []domain.DrugItem{drug}}})
	if err != nil {
		return nil, err
	}
	if f, ok := tree.Get(enrich.DrugKey{Entry: "resolve", Position: 0}); ok {
		return f, nil
	}
	return domain.UnknownField(), nil
}

// drugFor builds a one-field drug item carrying term under the source key
// of domainName.
func drugFor(domainName, term string) (domain.DrugItem, error) {
	key, ok := sourceKeys[domainName]
	if !ok {
		return domain.DrugItem{}, fmt.Errorf("unknown domain %q", domainName)
	}
	var drug domain.DrugItem
	data, err := jsonObject(key, term)
	if err != nil {
		return drug, err
	}
	if err := drug.UnmarshalJSON(data); err != nil {
		return drug, fmt.Errorf("failed to build drug item: %w", err)
	}
	return drug, nil
}
