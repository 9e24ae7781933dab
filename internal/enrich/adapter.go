// Package enrich turns resolver results into the per-domain enrichment trees
// that the merge engine joins back onto the corpus.
package enrich

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/adc-ontology-enricher/internal/domain"
)

// Adapter produces the enrichment tree of one domain.
type Adapter interface {
	Domain() string
	Enrich(ctx context.Context, records []domain.RawRecord) (*DomainTree, error)
}

// DrugKey addresses one drug item: the record id and the drug's position
// within the record.
type DrugKey struct {
	Entry    domain.RecordID
	Position int
}

// DomainTree holds the fields an adapter produced, keyed by drug.
type DomainTree struct {
	Domain string

	fields map[DrugKey]domain.EnrichmentField
	names  map[DrugKey]string

	// Stats counts the status of every field set on the tree
	Stats domain.StatusCounts
	// Lookups counts distinct raw values resolved
	Lookups int
	// UpstreamErrors counts registry failures that degraded to unknown
	UpstreamErrors int
}

// NewDomainTree creates an empty tree for name.
func NewDomainTree(name string) *DomainTree {
	return &DomainTree{
		Domain: name,
		fields: make(map[DrugKey]domain.EnrichmentField),
		names:  make(map[DrugKey]string),
		Stats:  domain.StatusCounts{},
	}
}

// Set attaches field to a drug. A later Set for the same drug replaces the
// earlier field.
func (t *DomainTree) Set(key DrugKey, drugName string, field domain.EnrichmentField) {
	if prev, ok := t.fields[key]; ok {
		t.Stats[prev.Status()]--
		if t.Stats[prev.Status()] <= 0 {
			delete(t.Stats, prev.Status())
		}
	}
	t.fields[key] = field
	t.names[key] = drugName
	t.Stats.Add(field.Status())
}

// Get returns the field of a drug.
func (t *DomainTree) Get(key DrugKey) (domain.EnrichmentField, bool) {
	f, ok := t.fields[key]
	return f, ok
}

// Name returns the drug name recorded with a field.
func (t *DomainTree) Name(key DrugKey) string {
	return t.names[key]
}

// Len returns the number of fields.
func (t *DomainTree) Len() int {
	return len(t.fields)
}

// Keys returns the drug keys ordered by record id then position.
func (t *DomainTree) Keys() []DrugKey {
	keys := make([]DrugKey, 0, len(t.fields))
	for k := range t.fields {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Entry != keys[j].Entry {
			return keys[i].Entry < keys[j].Entry
		}
		return keys[i].Position < keys[j].Position
	})
	return keys
}

// Options holds settings shared by all adapters.
type Options struct {
	Workers  int
	MemoSize int
	Logger   *logrus.Logger
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.MemoSize < 0 {
		o.MemoSize = 0
	}
	if o.Logger == nil {
		o.Logger = logrus.StandardLogger()
	}
	return o
}

// FieldSelector extracts the raw values of a domain from a drug item.
type FieldSelector func(d domain.DrugItem) domain.FieldValue

// DistinctValues returns the trimmed non-empty values selected across the
// corpus, sorted and unique.
func DistinctValues(records []domain.RawRecord, sel FieldSelector) []string {
	seen := make(map[string]struct{})
	for _, rec := range records {
		for _, drug := range rec.Drugs {
			for _, v := range sel(drug) {
				if v = strings.TrimSpace(v); v != "" {
					seen[v] = struct{}{}
				}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// trimmedValues returns the trimmed non-empty values of v in order.
func trimmedValues(v domain.FieldValue) []string {
	out := make([]string, 0, len(v))
	for _, s := range v {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// forEachDrug visits every drug of the corpus with its key.
func forEachDrug(records []domain.RawRecord, fn func(key DrugKey, drug domain.DrugItem)) {
	for _, rec := range records {
		for pos, drug := range rec.Drugs {
			fn(DrugKey{Entry: rec.ID, Position: pos}, drug)
		}
	}
}

// logTree reports the status breakdown of a finished tree.
func logTree(logger *logrus.Logger, tree *DomainTree) {
	fields := logrus.Fields{
		"domain":  tree.Domain,
		"fields":  tree.Len(),
		"lookups": tree.Lookups,
	}
	for _, s := range tree.Stats.Statuses() {
		fields["status_"+string(s)] = tree.Stats[s]
	}
	if tree.UpstreamErrors > 0 {
		fields["upstream_errors"] = tree.UpstreamErrors
	}
	logger.WithFields(fields).Info("Domain enrichment completed")
}

// errorCounter is a concurrency-safe tally.
type errorCounter struct {
	mu sync.Mutex
	n  int
}

func (c *errorCounter) inc() {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

func (c *errorCounter) value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

// stringOrNil maps "" to a JSON null.
func stringOrNil(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
