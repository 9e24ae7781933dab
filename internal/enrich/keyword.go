package enrich

import (
	"context"
	"sort"

	"github.com/adc-ontology-enricher/internal/classify"
	"github.com/adc-ontology-enricher/internal/domain"
)

// Company field sources
const (
	SourceField    = "field"
	SourceDrugName = "drug_name"
)

func confidence(status domain.MatchStatus) int {
	if status.Matched() {
		return 1
	}
	return 0
}

// CompanyAdapter standardizes sponsor names and infers missing ones from
// drug codes.
type CompanyAdapter struct {
	table *classify.CompanyTable
	opts  Options
}

// NewCompanyAdapter creates a company adapter over table.
func NewCompanyAdapter(table *classify.CompanyTable, opts Options) *CompanyAdapter {
	return &CompanyAdapter{table: table, opts: opts.withDefaults()}
}

// Domain implements Adapter.
func (a *CompanyAdapter) Domain() string {
	return domain.DomainCompany
}

// Classify builds the company field of one drug. The first company value
// is cleaned; without one the drug name is mined for a sponsor code.
func (a *CompanyAdapter) Classify(drug domain.DrugItem) (domain.EnrichmentField, bool) {
	original := drug.Company.First()
	cleaned, status := a.table.CleanCompany(original)
	source := ""
	if status.Matched() {
		source = SourceField
	} else if code, ok := a.table.CompanyFromDrugName(drug.Name()); ok {
		cleaned, status, source = code, domain.StatusInferred, SourceDrugName
	}

	if original == "" && source == "" {
		return nil, false
	}
	return domain.EnrichmentField{
		"company_cleaned":  stringOrNil(cleaned),
		"company_original": stringOrNil(original),
		"confidence":       confidence(status),
		"source":           source,
		"match_status":     string(status),
	}, true
}

// Enrich implements Adapter.
func (a *CompanyAdapter) Enrich(ctx context.Context, records []domain.RawRecord) (*DomainTree, error) {
	return classifyAll(ctx, records, a.Domain(), a.opts, a.Classify)
}

// TrialDesignAdapter standardizes and categorizes trial designs, inferring
// a design from the phase when none is given.
type TrialDesignAdapter struct {
	table *classify.TrialDesignTable
	opts  Options
}

// NewTrialDesignAdapter creates a trial design adapter over table.
func NewTrialDesignAdapter(table *classify.TrialDesignTable, opts Options) *TrialDesignAdapter {
	return &TrialDesignAdapter{table: table, opts: opts.withDefaults()}
}

// Domain implements Adapter.
func (a *TrialDesignAdapter) Domain() string {
	return domain.DomainTrialDesign
}

// Classify builds the trial design field of one drug.
func (a *TrialDesignAdapter) Classify(drug domain.DrugItem) (domain.EnrichmentField, bool) {
	original := drug.TrialDesign.Join("; ")
	cleaned, status := a.table.CleanDesign(original)

	inferred := false
	if !status.Matched() {
		for _, phase := range drug.Phase {
			if design, ok := a.table.DesignFromPhase(phase); ok {
				cleaned, status, inferred = design, domain.StatusInferred, true
				break
			}
		}
	}
	if original == "" && !inferred {
		return nil, false
	}

	categories := a.table.Categorize(cleaned)
	return domain.EnrichmentField{
		"design_cleaned":      stringOrNil(cleaned),
		"design_original":     stringOrNil(original),
		"categories":          categories,
		"matched_categories":  classify.Matched(categories),
		"category_groups":     a.groups(categories),
		"inferred_from_phase": inferred,
		"confidence":          confidence(status),
		"match_status":        string(status),
	}, true
}

// groups arranges matched categories under their group names.
func (a *TrialDesignAdapter) groups(flags map[string]bool) map[string]interface{} {
	byGroup := make(map[string][]string)
	for _, c := range a.table.Categories {
		if flags[c.Name] && c.Group != "" {
			byGroup[c.Group] = append(byGroup[c.Group], c.Name)
		}
	}
	out := make(map[string]interface{}, len(byGroup))
	for g, names := range byGroup {
		sort.Strings(names)
		out[g] = names
	}
	return out
}

// Enrich implements Adapter.
func (a *TrialDesignAdapter) Enrich(ctx context.Context, records []domain.RawRecord) (*DomainTree, error) {
	return classifyAll(ctx, records, a.Domain(), a.opts, a.Classify)
}

// BiomarkerAdapter standardizes biomarker strategies and extracts their
// categories, technologies and molecules.
type BiomarkerAdapter struct {
	table *classify.BiomarkerTable
	opts  Options
}

// NewBiomarkerAdapter creates a biomarker strategy adapter over table.
func NewBiomarkerAdapter(table *classify.BiomarkerTable, opts Options) *BiomarkerAdapter {
	return &BiomarkerAdapter{table: table, opts: opts.withDefaults()}
}

// Domain implements Adapter.
func (a *BiomarkerAdapter) Domain() string {
	return domain.DomainBiomarkerStrategy
}

// Classify builds the biomarker strategy field of one drug.
func (a *BiomarkerAdapter) Classify(drug domain.DrugItem) (domain.EnrichmentField, bool) {
	original := drug.BiomarkerStrategy.Join("; ")
	if original == "" {
		return nil, false
	}
	cleaned, status := a.table.CleanStrategy(original)
	categories := a.table.Categorize(cleaned)

	return domain.EnrichmentField{
		"strategy_cleaned":   stringOrNil(cleaned),
		"strategy_original":  original,
		"categories":         categories,
		"matched_categories": classify.Matched(categories),
		"technologies":       a.table.MatchTechnologies(cleaned),
		"molecules":          a.table.Molecules(cleaned),
		"complexity":         a.table.Complexity(cleaned),
		"confidence":         confidence(status),
		"match_status":       string(status),
	}, true
}

// Enrich implements Adapter.
func (a *BiomarkerAdapter) Enrich(ctx context.Context, records []domain.RawRecord) (*DomainTree, error) {
	return classifyAll(ctx, records, a.Domain(), a.opts, a.Classify)
}

// classifyAll applies a per-drug classifier across the corpus.
func classifyAll(ctx context.Context, records []domain.RawRecord, name string, opts Options,
	fn func(domain.DrugItem) (domain.EnrichmentField, bool)) (*DomainTree, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tree := NewDomainTree(name)
	forEachDrug(records, func(key DrugKey, drug domain.DrugItem) {
		if f, ok := fn(drug); ok {
			tree.Set(key, drug.Name(), f)
		}
	})
	tree.Lookups = tree.Len()
	logTree(opts.Logger, tree)
	return tree, nil
}
