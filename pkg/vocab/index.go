// Package vocab builds lookup indexes over reference vocabularies.
package vocab

import (
	"regexp"
	"sort"
	"strings"

	"github.com/adc-ontology-enricher/internal/domain"
	"github.com/adc-ontology-enricher/pkg/normalize"
)

// aliasSeparator splits delimited alias fields
var aliasSeparator = regexp.MustCompile(`[|,]`)

// Index holds the canonical and alias lookups of one vocabulary domain.
// It is read-only once built.
type Index struct {
	name        string
	entries     []domain.ReferenceEntry
	bySymbolKey map[string]*domain.ReferenceEntry
	byAliasKey  map[string]*domain.ReferenceEntry
	allKeys     []string
	stats       BuildStats
}

// BuildStats reports data-quality counters gathered during Build.
type BuildStats struct {
	Entries          int `json:"entries"`
	SymbolKeys       int `json:"symbol_keys"`
	AliasKeys        int `json:"alias_keys"`
	SymbolCollisions int `json:"symbol_collisions"`
	AliasCollisions  int `json:"alias_collisions"`
	EmptySymbols     int `json:"empty_symbols"`
}

// Collisions is the total of symbol and alias collisions.
func (s BuildStats) Collisions() int {
	return s.SymbolCollisions + s.AliasCollisions
}

// SplitAliases splits a delimited alias field into trimmed non-empty pieces.
func SplitAliases(field string) []string {
	if strings.TrimSpace(field) == "" {
		return nil
	}
	var out []string
	for _, piece := range aliasSeparator.Split(field, -1) {
		if p := strings.TrimSpace(piece); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Filter returns the entries for which keep reports true. Callers use it to
// drop rows outside the domain of interest before Build.
func Filter(entries []domain.ReferenceEntry, keep func(domain.ReferenceEntry) bool) []domain.ReferenceEntry {
	if keep == nil {
		return entries
	}
	out := make([]domain.ReferenceEntry, 0, len(entries))
	for _, e := range entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

// Build indexes entries. Each entry's canonical symbol and every alias piece
// are normalized; duplicate keys resolve last-write-wins and are counted.
func Build(name string, entries []domain.ReferenceEntry) *Index {
	idx := &Index{
		name:        name,
		entries:     make([]domain.ReferenceEntry, len(entries)),
		bySymbolKey: make(map[string]*domain.ReferenceEntry, len(entries)),
		byAliasKey:  make(map[string]*domain.ReferenceEntry),
	}
	copy(idx.entries, entries)

	for i := range idx.entries {
		e := &idx.entries[i]
		e.CanonicalKey = normalize.Key(e.CanonicalSymbol)
		e.AliasKeys = nil

		if e.CanonicalKey == "" {
			idx.stats.EmptySymbols++
		} else {
			if prev, ok := idx.bySymbolKey[e.CanonicalKey]; ok && prev != e {
				idx.stats.SymbolCollisions++
			}
			idx.bySymbolKey[e.CanonicalKey] = e
		}

		for _, alias := range SplitAliases(e.AliasField) {
			key := normalize.Key(alias)
			if key == "" {
				continue
			}
			e.AliasKeys = append(e.AliasKeys, key)
			if prev, ok := idx.byAliasKey[key]; ok && prev != e {
				idx.stats.AliasCollisions++
			}
			idx.byAliasKey[key] = e
		}
	}

	keys := make(map[string]struct{}, len(idx.bySymbolKey)+len(idx.byAliasKey))
	for k := range idx.bySymbolKey {
		keys[k] = struct{}{}
	}
	for k := range idx.byAliasKey {
		keys[k] = struct{}{}
	}
	idx.allKeys = make([]string, 0, len(keys))
	for k := range keys {
		idx.allKeys = append(idx.allKeys, k)
	}
	sort.Strings(idx.allKeys)

	idx.stats.Entries = len(idx.entries)
	idx.stats.SymbolKeys = len(idx.bySymbolKey)
	idx.stats.AliasKeys = len(idx.byAliasKey)
	return idx
}

// Name returns the vocabulary name the index was built for.
func (idx *Index) Name() string {
	return idx.name
}

// BySymbol looks up a normalized canonical key.
func (idx *Index) BySymbol(key string) (*domain.ReferenceEntry, bool) {
	e, ok := idx.bySymbolKey[key]
	return e, ok
}

// ByAlias looks up a normalized alias key.
func (idx *Index) ByAlias(key string) (*domain.ReferenceEntry, bool) {
	e, ok := idx.byAliasKey[key]
	return e, ok
}

// Lookup resolves a key from either map, preferring the canonical one.
func (idx *Index) Lookup(key string) (*domain.ReferenceEntry, bool) {
	if e, ok := idx.bySymbolKey[key]; ok {
		return e, true
	}
	return idx.ByAlias(key)
}

// Keys returns the sorted union of symbol and alias keys. The slice must not
// be modified.
func (idx *Index) Keys() []string {
	return idx.allKeys
}

// Entries returns the indexed entries. The slice must not be modified.
func (idx *Index) Entries() []domain.ReferenceEntry {
	return idx.entries
}

// Len returns the number of indexed entries.
func (idx *Index) Len() int {
	return len(idx.entries)
}

// Stats returns the build counters.
func (idx *Index) Stats() BuildStats {
	return idx.stats
}
