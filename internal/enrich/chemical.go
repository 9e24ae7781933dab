package enrich

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/adc-ontology-enricher/internal/cache"
	"github.com/adc-ontology-enricher/internal/domain"
	"github.com/adc-ontology-enricher/pkg/external"
	"github.com/adc-ontology-enricher/pkg/normalize"
	"github.com/adc-ontology-enricher/pkg/resolve"
)

// MinQueryLength is the shortest candidate sent to the registry.
const MinQueryLength = 3

// ChemicalAdapter resolves chemical names through a molecule registry. One
// adapter type serves the drug, payload and linker domains.
type ChemicalAdapter struct {
	name     string
	registry external.MoleculeRegistry
	lookup   external.LookupOptions
	selector FieldSelector
	opts     Options

	memo     *cache.RunCache[*external.LookupResult]
	upstream errorCounter
}

// NewPayloadAdapter resolves payloads to small molecules.
func NewPayloadAdapter(registry external.MoleculeRegistry, opts Options) *ChemicalAdapter {
	return newChemicalAdapter(domain.DomainPayload, registry,
		external.LookupOptions{MoleculeType: external.MoleculeTypeSmallMolecule},
		func(d domain.DrugItem) domain.FieldValue { return d.Payload }, opts)
}

// NewLinkerAdapter resolves linkers to small molecules.
func NewLinkerAdapter(registry external.MoleculeRegistry, opts Options) *ChemicalAdapter {
	return newChemicalAdapter(domain.DomainLinker, registry,
		external.LookupOptions{MoleculeType: external.MoleculeTypeSmallMolecule},
		func(d domain.DrugItem) domain.FieldValue { return d.Linker }, opts)
}

// NewDrugAdapter resolves drug names and aliases to antibody drug
// conjugates, with their mechanisms of action.
func NewDrugAdapter(registry external.MoleculeRegistry, opts Options) *ChemicalAdapter {
	return newChemicalAdapter(domain.DomainDrug, registry,
		external.LookupOptions{MoleculeType: external.MoleculeTypeADC, WithMechanisms: true},
		func(d domain.DrugItem) domain.FieldValue {
			out := append(domain.FieldValue{}, d.DrugName...)
			return append(out, d.DrugAlias...)
		}, opts)
}

func newChemicalAdapter(name string, registry external.MoleculeRegistry, lookup external.LookupOptions, sel FieldSelector, opts Options) *ChemicalAdapter {
	return &ChemicalAdapter{
		name:     name,
		registry: registry,
		lookup:   lookup,
		selector: sel,
		opts:     opts.withDefaults(),
		memo:     cache.NewRunCache[*external.LookupResult](),
	}
}

// Domain implements Adapter.
func (a *ChemicalAdapter) Domain() string {
	return a.name
}

// CacheStats exposes the run memo counters.
func (a *ChemicalAdapter) CacheStats() cache.Stats {
	return a.memo.Stats()
}

// candidate is one registry query derived from a raw value
type candidate struct {
	raw   string
	query string
}

// chemicalCandidates expands each value into its parenthetical parts and
// drops duplicates and queries too short to search.
func chemicalCandidates(values []string) []candidate {
	seen := make(map[string]struct{})
	var out []candidate
	for _, raw := range values {
		for _, q := range normalize.ExpandParenthetical(raw) {
			q = strings.TrimSpace(q)
			if utf8.RuneCountInString(q) < MinQueryLength {
				continue
			}
			key := normalize.Key(q)
			if _, ok := seen[key]; ok || key == "" {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, candidate{raw: raw, query: q})
		}
	}
	return out
}

// Resolve resolves the logical input made of values: the first candidate
// the registry accepts wins. Registry failures degrade to unknown.
func (a *ChemicalAdapter) Resolve(ctx context.Context, values []string) (domain.EnrichmentField, error) {
	input := ""
	if len(values) > 0 {
		input = values[0]
	}

	for _, c := range chemicalCandidates(values) {
		res, err := a.fetch(ctx, c.query)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			a.upstream.inc()
			a.opts.Logger.WithFields(logrus.Fields{
				"domain": a.name,
				"query":  c.query,
				"error":  err.Error(),
			}).Warn("Registry lookup failed")
			continue
		}
		if res.Found() {
			return a.chemicalField(c, res), nil
		}
	}

	return a.unknownField(input), nil
}

// fetch looks a query up once per run, keyed by its normalized form.
// Misses are memoized; failures are not.
func (a *ChemicalAdapter) fetch(ctx context.Context, query string) (*external.LookupResult, error) {
	return a.memo.Get(ctx, normalize.Key(query), func(ctx context.Context, _ string) (*external.LookupResult, error) {
		res, err := a.registry.Lookup(ctx, query, a.lookup)
		if errors.Is(err, external.ErrNotFound) {
			return &external.LookupResult{Query: query}, nil
		}
		return res, err
	})
}

// Enrich implements Adapter.
func (a *ChemicalAdapter) Enrich(ctx context.Context, records []domain.RawRecord) (*DomainTree, error) {
	// distinct logical inputs, in first-seen order
	type group struct {
		values []string
		field  domain.EnrichmentField
	}
	groups := make(map[string]*group)
	var order []string
	forEachDrug(records, func(_ DrugKey, drug domain.DrugItem) {
		values := trimmedValues(a.selector(drug))
		if len(values) == 0 {
			return
		}
		k := strings.Join(values, "\x00")
		if _, ok := groups[k]; !ok {
			groups[k] = &group{values: values}
			order = append(order, k)
		}
	})

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.Workers)
	var mu sync.Mutex
	for _, k := range order {
		grp := groups[k]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			field, err := a.Resolve(gctx, grp.values)
			if err != nil {
				return err
			}
			mu.Lock()
			grp.field = field
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", a.name, err)
	}

	tree := NewDomainTree(a.name)
	tree.Lookups = a.memo.Len()
	tree.UpstreamErrors = a.upstream.value()

	forEachDrug(records, func(key DrugKey, drug domain.DrugItem) {
		values := trimmedValues(a.selector(drug))
		if len(values) == 0 {
			return
		}
		grp := groups[strings.Join(values, "\x00")]
		tree.Set(key, drug.Name(), grp.field.Clone())
	})

	stats := a.memo.Stats()
	a.opts.Logger.WithFields(logrus.Fields{
		"domain":      a.name,
		"cache_hits":  stats.Hits,
		"cache_loads": stats.Loads,
		"errors":      stats.Errors,
	}).Debug("Registry memo statistics")
	logTree(a.opts.Logger, tree)
	return tree, nil
}

// chemicalStatus grades how the query relates to the returned molecule.
func chemicalStatus(query string, mol *external.Molecule) (domain.MatchStatus, float64) {
	key := normalize.Key(query)
	pref := normalize.Key(mol.PrefName)
	if key != "" && key == pref {
		return domain.StatusCanonical, 1.0
	}
	for _, syn := range mol.Synonyms() {
		if normalize.Key(syn) == key {
			return domain.StatusAliasMatch, 1.0
		}
	}
	return domain.StatusRegistryMatch, resolve.Ratio(key, pref)
}

func (a *ChemicalAdapter) unknownField(input string) domain.EnrichmentField {
	f := domain.EnrichmentField{
		"input":             input,
		"chembl_id":         nil,
		"preferred_name":    nil,
		"max_phase":         nil,
		"molecule_type":     nil,
		"first_approval":    nil,
		"drug_type":         nil,
		"atc_codes":         []string{},
		"usan_stem":         nil,
		"indication_class":  nil,
		"withdrawn":         nil,
		"black_box_warning": nil,
		"match_status":      string(domain.StatusUnknown),
		"match_score":       0.0,
	}
	if a.lookup.WithMechanisms {
		f["mechanism_of_action"] = []interface{}{}
	}
	return f
}

func (a *ChemicalAdapter) chemicalField(c candidate, res *external.LookupResult) domain.EnrichmentField {
	mol := res.Molecule
	status, score := chemicalStatus(c.query, mol)

	f := a.unknownField(c.raw)
	f["chembl_id"] = mol.ChEMBLID
	f["preferred_name"] = stringOrNil(mol.PrefName)
	f["max_phase"] = flexOrNil(mol.MaxPhase)
	f["molecule_type"] = stringOrNil(mol.MoleculeType)
	f["first_approval"] = flexOrNil(mol.FirstApproval)
	f["drug_type"] = flexOrNil(mol.DrugType)
	f["atc_codes"] = append([]string{}, mol.ATCCodes...)
	f["usan_stem"] = stringOrNil(mol.USANStem)
	f["indication_class"] = stringOrNil(mol.IndicationClass)
	f["black_box_warning"] = flexOrNil(mol.BlackBoxWarning)
	if mol.Withdrawn != nil {
		f["withdrawn"] = *mol.Withdrawn
	}
	f["match_status"] = string(status)
	f["match_score"] = score

	if a.lookup.WithMechanisms {
		mechs := make([]interface{}, 0, len(res.Mechanisms))
		for _, m := range res.Mechanisms {
			entry := map[string]interface{}{
				"mechanism_of_action": stringOrNil(m.MechanismOfAction),
				"action_type":         stringOrNil(m.ActionType),
				"target_chembl_id":    stringOrNil(m.TargetChEMBLID),
				"disease_efficacy":    nil,
			}
			if m.DiseaseEfficacy != nil {
				entry["disease_efficacy"] = *m.DiseaseEfficacy
			}
			mechs = append(mechs, entry)
		}
		f["mechanism_of_action"] = mechs
	}
	return f
}

func flexOrNil(n *external.FlexNumber) interface{} {
	if n == nil {
		return nil
	}
	return float64(*n)
}
