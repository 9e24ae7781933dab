// Package resolve implements the match cascade that maps a noisy free-text
// symbol onto a reference vocabulary entry.
package resolve

import (
	"fmt"
	"math"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/adc-ontology-enricher/internal/domain"
	"github.com/adc-ontology-enricher/pkg/normalize"
	"github.com/adc-ontology-enricher/pkg/vocab"
)

// MinFuzzyKeyLength is the shortest normalized input the cascade resolves.
// Shorter inputs produce too many spurious similarity matches.
const MinFuzzyKeyLength = 3

// Default cutoffs per vocabulary
const (
	DefaultGeneCutoff    = 0.85
	DefaultDiseaseCutoff = 0.70
	DefaultAcronymCutoff = 0.60
	DefaultTACACutoff    = 0.50
)

// Resolve runs the cascade for raw against idx: canonical key, alias key,
// then the closest key with similarity >= cutoff, else unknown.
func Resolve(raw string, idx *vocab.Index, cutoff float64) domain.MatchResult {
	return cascade(raw, idx, nil, cutoff, nil)
}

// Fallback is a secondary vocabulary tried when the primary cascade misses.
// Successful fallback results carry Status instead of their cascade status.
type Fallback struct {
	Index  *vocab.Index
	Cutoff float64
	Status domain.MatchStatus
}

// Options configures a Resolver.
type Options struct {
	Cutoff   float64
	Rules    []ScoreRule
	Fallback *Fallback
	// MemoSize bounds the per-resolver result memo; 0 disables it
	MemoSize int
}

// Candidate is one surface form of a logical input. A zero Cutoff uses the
// resolver's default.
type Candidate struct {
	Text   string
	Cutoff float64
}

// Candidates wraps plain strings as default-cutoff candidates.
func Candidates(texts ...string) []Candidate {
	out := make([]Candidate, len(texts))
	for i, t := range texts {
		out[i] = Candidate{Text: t}
	}
	return out
}

// Resolver binds an index to its cutoff, scoring rules and optional
// fallback vocabulary. It is safe for concurrent use.
type Resolver struct {
	idx      *vocab.Index
	opts     Options
	seqs     [][]string
	memo     *lru.Cache[string, domain.MatchResult]
	fallback *Resolver
}

// New creates a Resolver over idx.
func New(idx *vocab.Index, opts Options) (*Resolver, error) {
	if idx == nil {
		return nil, fmt.Errorf("reference index is required")
	}
	if opts.Cutoff <= 0 || opts.Cutoff > 1 {
		return nil, fmt.Errorf("cutoff must be in (0, 1], got %v", opts.Cutoff)
	}

	r := &Resolver{
		idx:  idx,
		opts: opts,
		seqs: make([][]string, len(idx.Keys())),
	}
	for i, k := range idx.Keys() {
		r.seqs[i] = splitRunes(k)
	}

	if opts.MemoSize > 0 {
		memo, err := lru.New[string, domain.MatchResult](opts.MemoSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create resolution memo: %w", err)
		}
		r.memo = memo
	}

	if fb := opts.Fallback; fb != nil && fb.Index != nil {
		secondary, err := New(fb.Index, Options{Cutoff: fb.Cutoff, MemoSize: opts.MemoSize})
		if err != nil {
			return nil, fmt.Errorf("failed to create fallback resolver: %w", err)
		}
		r.fallback = secondary
	}

	return r, nil
}

// Index returns the primary index.
func (r *Resolver) Index() *vocab.Index {
	return r.idx
}

// Cutoff returns the default similarity floor.
func (r *Resolver) Cutoff() float64 {
	return r.opts.Cutoff
}

// Resolve runs the cascade for raw with the default cutoff.
func (r *Resolver) Resolve(raw string) domain.MatchResult {
	return r.ResolveAt(raw, r.opts.Cutoff)
}

// ResolveAt runs the cascade for raw with an explicit cutoff.
func (r *Resolver) ResolveAt(raw string, cutoff float64) domain.MatchResult {
	if cutoff <= 0 {
		cutoff = r.opts.Cutoff
	}
	if r.memo == nil {
		return cascade(raw, r.idx, r.seqs, cutoff, r.opts.Rules)
	}

	memoKey := fmt.Sprintf("%g\x00%s", cutoff, raw)
	if res, ok := r.memo.Get(memoKey); ok {
		return res
	}
	res := cascade(raw, r.idx, r.seqs, cutoff, r.opts.Rules)
	r.memo.Add(memoKey, res)
	return res
}

// ResolveCandidates resolves the surface forms of one logical input in
// order and returns the first match. When all miss, raw itself is resolved
// once more, then the fallback vocabulary is tried, then unknown.
func (r *Resolver) ResolveCandidates(raw string, candidates []Candidate) domain.MatchResult {
	for _, c := range candidates {
		res := r.ResolveAt(c.Text, c.Cutoff)
		if res.Status.Matched() {
			res.Input = raw
			return res
		}
	}

	if res := r.Resolve(raw); res.Status.Matched() {
		return res
	}

	if r.fallback != nil {
		if res := r.fallback.Resolve(raw); res.Status.Matched() {
			if st := r.opts.Fallback.Status; st != "" {
				res.Status = st
			}
			return res
		}
	}

	return domain.UnknownResult(raw)
}

// cascade is the strict ordered match: canonical, alias, fuzzy, unknown.
func cascade(raw string, idx *vocab.Index, seqs [][]string, cutoff float64, rules []ScoreRule) domain.MatchResult {
	key := normalize.Key(raw)
	if len(key) < MinFuzzyKeyLength {
		return domain.UnknownResult(raw)
	}

	if e, ok := idx.BySymbol(key); ok {
		return domain.MatchResult{Input: raw, Entry: e, Status: domain.StatusCanonical, Score: 1.0, MatchedKey: key}
	}
	if e, ok := idx.ByAlias(key); ok {
		return domain.MatchResult{Input: raw, Entry: e, Status: domain.StatusAliasMatch, Score: 1.0, MatchedKey: key}
	}

	keys := idx.Keys()
	bestIdx := -1
	bestScore := math.Inf(-1)
	var bestEntry *domain.ReferenceEntry

	// keys are sorted, so keeping the first maximum breaks ties by the
	// lexicographically smallest key
	closeMatch(key, keys, seqs, cutoff, func(i int, score float64) {
		entry, ok := idx.Lookup(keys[i])
		if !ok {
			return
		}
		if len(rules) > 0 {
			score = applyRules(rules, raw, entry.CanonicalSymbol, score)
		}
		if score > bestScore {
			bestIdx, bestScore, bestEntry = i, score, entry
		}
	})

	if bestIdx < 0 {
		return domain.UnknownResult(raw)
	}

	return domain.MatchResult{
		Input:      raw,
		Entry:      bestEntry,
		Status:     domain.StatusFuzzyMatch,
		Score:      bestScore,
		MatchedKey: keys[bestIdx],
	}
}
