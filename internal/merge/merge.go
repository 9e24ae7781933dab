// Package merge joins independently produced domain trees onto the base
// corpus.
package merge

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/adc-ontology-enricher/internal/domain"
	"github.com/adc-ontology-enricher/internal/enrich"
)

// Options controls a merge.
type Options struct {
	// JoinBy is domain.JoinByIndex (default) or domain.JoinByName
	JoinBy string
	// Domains lists the ontology keys every drug carries; empty means all
	Domains []string
	Logger  *logrus.Logger
}

// Stats reports join diagnostics.
type Stats struct {
	Drugs int `json:"drugs"`
	// Ambiguous counts drugs whose name repeats within their record
	Ambiguous int `json:"ambiguous"`
	// Filled counts domain slots that fell back to unknown
	Filled int `json:"filled"`
}

// drugIndex maps a record id to its per-drug fields of one domain.
type drugIndex map[domain.RecordID]map[string]domain.EnrichmentField

// Merge returns new enriched records: base with every drug's ontology
// holding exactly the configured domains. Inputs are never mutated.
func Merge(base []domain.RawRecord, trees []*enrich.DomainTree, opts Options) ([]domain.EnrichedRecord, Stats, error) {
	if opts.JoinBy == "" {
		opts.JoinBy = domain.JoinByIndex
	}
	if opts.JoinBy != domain.JoinByIndex && opts.JoinBy != domain.JoinByName {
		return nil, Stats{}, fmt.Errorf("unknown join mode %q", opts.JoinBy)
	}
	if len(opts.Domains) == 0 {
		opts.Domains = domain.AllDomains
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	wanted := make(map[string]struct{}, len(opts.Domains))
	for _, d := range opts.Domains {
		wanted[d] = struct{}{}
	}

	// later trees for the same domain replace earlier ones
	indexes := make(map[string]drugIndex, len(opts.Domains))
	for _, tree := range trees {
		if tree == nil {
			continue
		}
		if _, ok := wanted[tree.Domain]; !ok {
			continue
		}
		indexes[tree.Domain] = buildIndex(tree, opts.JoinBy)
	}

	var stats Stats
	out := make([]domain.EnrichedRecord, 0, len(base))
	for _, rec := range base {
		enriched := domain.NewEnrichedRecord(rec)
		seen := make(map[string]int, len(rec.Drugs))

		for pos, drug := range rec.Drugs {
			stats.Drugs++
			joinKey := drugJoinKey(opts.JoinBy, pos, drug)
			if opts.JoinBy == domain.JoinByName {
				seen[joinKey]++
				if seen[joinKey] > 1 {
					stats.Ambiguous++
				}
			}

			ontology := make(map[string]domain.EnrichmentField, len(opts.Domains))
			for _, d := range opts.Domains {
				if f, ok := indexes[d][rec.ID][joinKey]; ok && f != nil {
					ontology[d] = f.Clone()
					continue
				}
				ontology[d] = domain.UnknownField()
				stats.Filled++
			}
			enriched.Drugs = append(enriched.Drugs, domain.EnrichedDrug{Item: drug, Ontology: ontology})
		}
		out = append(out, enriched)
	}

	if stats.Ambiguous > 0 {
		opts.Logger.WithFields(logrus.Fields{
			"join_by":   opts.JoinBy,
			"ambiguous": stats.Ambiguous,
		}).Warn("Duplicate drug names within records; first occurrence wins")
	}
	opts.Logger.WithFields(logrus.Fields{
		"records": len(out),
		"drugs":   stats.Drugs,
		"domains": len(opts.Domains),
		"filled":  stats.Filled,
	}).Info("Enrichment merged")

	return out, stats, nil
}

func drugJoinKey(joinBy string, pos int, drug domain.DrugItem) string {
	if joinBy == domain.JoinByName {
		return drug.Name()
	}
	return fmt.Sprintf("#%d", pos)
}

// buildIndex indexes a tree by record then join key. Keys are visited in
// position order so the first drug of a repeated name wins.
func buildIndex(tree *enrich.DomainTree, joinBy string) drugIndex {
	idx := make(drugIndex)
	for _, k := range tree.Keys() {
		f, _ := tree.Get(k)

		var joinKey string
		if joinBy == domain.JoinByName {
			joinKey = tree.Name(k)
		} else {
			joinKey = fmt.Sprintf("#%d", k.Position)
		}

		byDrug, ok := idx[k.Entry]
		if !ok {
			byDrug = make(map[string]domain.EnrichmentField)
			idx[k.Entry] = byDrug
		}
		if _, dup := byDrug[joinKey]; dup {
			continue
		}
		byDrug[joinKey] = f
	}
	return idx
}
