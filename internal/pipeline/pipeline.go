// Package pipeline runs one enrichment pass: check and load the inputs,
// run each configured domain adapter, merge the trees onto the corpus and
// write the results.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/adc-ontology-enricher/internal/database"
	"github.com/adc-ontology-enricher/internal/domain"
	"github.com/adc-ontology-enricher/internal/enrich"
	"github.com/adc-ontology-enricher/internal/loader"
	"github.com/adc-ontology-enricher/internal/logging"
	"github.com/adc-ontology-enricher/internal/merge"
	"github.com/adc-ontology-enricher/internal/metrics"
	"github.com/adc-ontology-enricher/internal/store"
	"github.com/adc-ontology-enricher/pkg/external"
)

// RecordSink receives the enriched records of a run.
type RecordSink interface {
	WriteRun(ctx context.Context, run domain.RunSummary, records []domain.EnrichedRecord) (int, error)
}

// Pipeline runs enrichment passes for one configuration.
type Pipeline struct {
	cfg    *domain.Config
	logger *logrus.Logger

	registry external.MoleculeRegistry
	store    store.Store
	sink     RecordSink
	metrics  *metrics.RunMetrics
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithRegistry sets the molecule registry used by the chemical domains,
// replacing the one built from configuration.
func WithRegistry(r external.MoleculeRegistry) Option {
	return func(p *Pipeline) { p.registry = r }
}

// WithStore sets the dictionary store, replacing the configured one.
func WithStore(s store.Store) Option {
	return func(p *Pipeline) { p.store = s }
}

// WithSink sets the record sink, replacing the configured database.
func WithSink(s RecordSink) Option {
	return func(p *Pipeline) { p.sink = s }
}

// WithMetrics records run metrics into m.
func WithMetrics(m *metrics.RunMetrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// New creates a pipeline for cfg.
func New(cfg *domain.Config, logger *logrus.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	p := &Pipeline{cfg: cfg, logger: logger}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes one pass. On failure no output file is left behind and the
// error is a *domain.PipelineError.
func (p *Pipeline) Run(ctx context.Context) (*domain.RunSummary, error) {
	runID := uuid.NewString()
	summary := &domain.RunSummary{RunID: runID, StartedAt: time.Now().UTC()}
	log := p.logger.WithField("run_id", runID)
	log.WithFields(logrus.Fields{
		"corpus":  p.cfg.Input.CorpusPath,
		"domains": strings.Join(p.domains(), ","),
		"join_by": p.cfg.Merge.JoinBy,
	}).Info("Enrichment run started")

	if err := p.checkInputs(runID); err != nil {
		return nil, err
	}

	stage := logging.StartStage(p.logger, runID, "load_corpus", nil)
	records, err := loader.LoadCorpus(p.cfg.Input.CorpusPath)
	stage.End(err)
	if err != nil {
		return nil, domain.NewPipelineError(domain.ErrInputError, "failed to load corpus",
			p.cfg.Input.CorpusPath, runID, err)
	}
	summary.Records = len(records)

	registry, cleanup := p.moleculeRegistry()
	defer cleanup()

	b := &builder{cfg: p.cfg, logger: p.logger, registry: registry, runID: runID}
	trees, err := p.runAdapters(ctx, b, records, summary)
	if err != nil {
		return nil, err
	}

	enriched, mstats, err := merge.Merge(records, trees, merge.Options{
		JoinBy:  p.cfg.Merge.JoinBy,
		Domains: p.domains(),
		Logger:  p.logger,
	})
	if err != nil {
		return nil, domain.NewPipelineError(domain.ErrConfigError, "merge failed", "", runID, err)
	}
	summary.Drugs = mstats.Drugs
	summary.Ambiguous = mstats.Ambiguous

	if err := ctx.Err(); err != nil {
		return nil, domain.NewPipelineError(domain.ErrAdapterError, "run cancelled", "", runID, err)
	}

	if err := writeJSONAtomic(p.cfg.Output.Path, enriched); err != nil {
		return nil, domain.NewPipelineError(domain.ErrOutputError, "failed to write output",
			p.cfg.Output.Path, runID, err)
	}
	summary.OutputPath = p.cfg.Output.Path

	unknowns := unknownRows(enriched, p.domains())
	summary.Unknowns = len(unknowns)
	if path := p.cfg.Output.UnknownsPath; path != "" {
		if err := writeJSONAtomic(path, unknowns); err != nil {
			return nil, domain.NewPipelineError(domain.ErrOutputError, "failed to write unknowns report",
				path, runID, err)
		}
	}

	if err := p.saveDictionaries(ctx, runID, trees, summary); err != nil {
		return nil, err
	}
	if err := p.writeSink(ctx, enriched, summary); err != nil {
		return nil, err
	}

	summary.Duration = time.Since(summary.StartedAt)
	p.pushMetrics(ctx, *summary)

	log.WithFields(logrus.Fields{
		"records":     summary.Records,
		"drugs":       summary.Drugs,
		"unknowns":    summary.Unknowns,
		"output":      summary.OutputPath,
		"duration_ms": summary.Duration.Milliseconds(),
	}).Info("Enrichment run completed")
	return summary, nil
}

// domains returns the configured domains, all when none are.
func (p *Pipeline) domains() []string {
	if len(p.cfg.Output.Domains) == 0 {
		return domain.AllDomains
	}
	return p.cfg.Output.Domains
}

func (p *Pipeline) enabled(name string) bool {
	for _, d := range p.domains() {
		if d == name {
			return true
		}
	}
	return false
}

// checkInputs verifies the corpus and every vocabulary an enabled domain
// requires before any work starts.
func (p *Pipeline) checkInputs(runID string) error {
	required := []struct {
		name   string
		path   string
		needed bool
	}{
		{"corpus", p.cfg.Input.CorpusPath, true},
		{"HGNC vocabulary", p.cfg.Vocabulary.HGNCPath, p.enabled(domain.DomainAntigen)},
		{"DOID vocabulary", p.cfg.Vocabulary.DOIDPath, p.enabled(domain.DomainDisease)},
	}
	for _, r := range required {
		if !r.needed {
			continue
		}
		if r.path == "" {
			return domain.NewMissingInputError(r.name, r.path, runID, nil)
		}
		info, err := os.Stat(r.path)
		if err != nil {
			return domain.NewMissingInputError(r.name, r.path, runID, err)
		}
		if info.IsDir() {
			return domain.NewMissingInputError(r.name, r.path, runID, fmt.Errorf("%s is a directory", r.path))
		}
	}
	return nil
}

// moleculeRegistry returns the injected registry, or builds one when the
// registry is enabled and a chemical domain is configured.
func (p *Pipeline) moleculeRegistry() (external.MoleculeRegistry, func()) {
	if p.registry != nil {
		return p.registry, func() {}
	}
	if !p.cfg.Registry.Enabled {
		return nil, func() {}
	}
	if !p.enabled(domain.DomainDrug) && !p.enabled(domain.DomainPayload) && !p.enabled(domain.DomainLinker) {
		return nil, func() {}
	}
	registry, cleanup := NewRegistry(p.cfg, p.logger)
	return registry, cleanup
}

// runAdapters runs each configured domain in turn.
func (p *Pipeline) runAdapters(ctx context.Context, b *builder, records []domain.RawRecord, summary *domain.RunSummary) ([]*enrich.DomainTree, error) {
	var trees []*enrich.DomainTree
	for _, name := range p.domains() {
		if err := ctx.Err(); err != nil {
			return nil, domain.NewPipelineError(domain.ErrAdapterError, "run cancelled", name, summary.RunID, err)
		}

		adapter, err := b.build(name)
		if err != nil {
			var perr *domain.PipelineError
			if errors.As(err, &perr) {
				return nil, perr
			}
			return nil, domain.NewPipelineError(domain.ErrConfigError, "failed to build adapter", name, summary.RunID, err)
		}
		if adapter == nil {
			p.logger.WithFields(logrus.Fields{
				"run_id": summary.RunID,
				"domain": name,
			}).Warn("Chemical registry disabled, domain left unknown")
			summary.Domains = append(summary.Domains, domain.DomainSummary{Domain: name, Skipped: true})
			continue
		}

		stage := logging.StartStage(p.logger, summary.RunID, "enrich", logrus.Fields{"domain": name})
		tree, err := adapter.Enrich(ctx, records)
		elapsed := stage.End(err)
		if err != nil {
			return nil, domain.NewPipelineError(domain.ErrAdapterError,
				fmt.Sprintf("%s adapter failed", name), "", summary.RunID, err)
		}

		trees = append(trees, tree)
		summary.Domains = append(summary.Domains, domain.DomainSummary{
			Domain:         name,
			Fields:         tree.Len(),
			Lookups:        tree.Lookups,
			UpstreamErrors: tree.UpstreamErrors,
			Statuses:       tree.Stats,
			Duration:       elapsed,
		})
	}
	return trees, nil
}

// saveDictionaries persists the resolved raw values when a store is set or
// configured.
func (p *Pipeline) saveDictionaries(ctx context.Context, runID string, trees []*enrich.DomainTree, summary *domain.RunSummary) error {
	s := p.store
	if s == nil {
		opened, err := store.Open(p.cfg.Store)
		if err != nil {
			return domain.NewPipelineError(domain.ErrOutputError, "failed to open dictionary store",
				p.cfg.Store.Driver, runID, err)
		}
		if opened == nil {
			return nil
		}
		defer opened.Close()
		s = opened
	}

	stage := logging.StartStage(p.logger, runID, "save_dictionaries", nil)
	n, err := s.SaveEntries(ctx, dictionaryEntries(runID, trees))
	stage.End(err)
	if err != nil {
		return domain.NewPipelineError(domain.ErrOutputError, "failed to save dictionaries", "", runID, err)
	}
	summary.Dictionary = n
	return nil
}

// writeSink writes the enriched records to the record sink when one is set
// or the database is enabled.
func (p *Pipeline) writeSink(ctx context.Context, records []domain.EnrichedRecord, summary *domain.RunSummary) error {
	sink := p.sink
	if sink == nil {
		if !p.cfg.Database.Enabled {
			return nil
		}
		db, err := p.openDatabase(ctx)
		if err != nil {
			return domain.NewPipelineError(domain.ErrOutputError, "failed to open record database", "", summary.RunID, err)
		}
		defer db.Close()
		sink = database.NewRecordSink(db, p.logger)
	}

	stage := logging.StartStage(p.logger, summary.RunID, "write_sink", nil)
	n, err := sink.WriteRun(ctx, *summary, records)
	stage.End(err)
	if err != nil {
		return domain.NewPipelineError(domain.ErrOutputError, "failed to write records to database", "", summary.RunID, err)
	}
	summary.SinkRecords = n
	return nil
}

func (p *Pipeline) openDatabase(ctx context.Context) (*database.DB, error) {
	if p.cfg.Database.MigrateOnStart {
		runner, err := database.NewMigrationRunner(p.cfg.Database.URL, p.logger)
		if err != nil {
			return nil, err
		}
		err = runner.Up(ctx)
		if cerr := runner.Close(); cerr != nil {
			p.logger.WithError(cerr).Warn("Failed to close migration runner")
		}
		if err != nil {
			return nil, err
		}
	}
	return database.NewConnection(ctx, database.ConfigFrom(p.cfg.Database), p.logger)
}

// pushMetrics records the run. Push failures are logged, not fatal.
func (p *Pipeline) pushMetrics(ctx context.Context, summary domain.RunSummary) {
	m := p.metrics
	if m == nil {
		if p.cfg.Metrics.PushgatewayURL == "" {
			return
		}
		m = metrics.New()
	}
	m.Observe(summary)

	if p.cfg.Metrics.PushgatewayURL == "" {
		return
	}
	if err := m.Push(ctx, p.cfg.Metrics.PushgatewayURL, p.cfg.Metrics.Job, summary.RunID); err != nil {
		p.logger.WithFields(logrus.Fields{
			"run_id": summary.RunID,
			"error":  err.Error(),
		}).Warn("Failed to push metrics")
	}
}
