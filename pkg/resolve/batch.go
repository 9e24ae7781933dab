package resolve

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/adc-ontology-enricher/internal/domain"
)

// ResolveAll resolves each distinct raw value with fn on up to workers
// goroutines and returns the results keyed by raw value. It stops early when
// ctx is cancelled.
func ResolveAll(ctx context.Context, raws []string, workers int, fn func(string) domain.MatchResult) (map[string]domain.MatchResult, error) {
	if workers < 1 {
		workers = 1
	}

	seen := make(map[string]struct{}, len(raws))
	unique := make([]string, 0, len(raws))
	for _, raw := range raws {
		if _, ok := seen[raw]; ok {
			continue
		}
		seen[raw] = struct{}{}
		unique = append(unique, raw)
	}

	var mu sync.Mutex
	results := make(map[string]domain.MatchResult, len(unique))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, raw := range unique {
		raw := raw
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res := fn(raw)
			mu.Lock()
			results[raw] = res
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// ResolveAll resolves each distinct raw value through ResolveCandidates.
// candidatesFn may be nil, in which case only raw itself is tried.
func (r *Resolver) ResolveAll(ctx context.Context, raws []string, workers int, candidatesFn func(string) []Candidate) (map[string]domain.MatchResult, error) {
	return ResolveAll(ctx, raws, workers, func(raw string) domain.MatchResult {
		var candidates []Candidate
		if candidatesFn != nil {
			candidates = candidatesFn(raw)
		}
		return r.ResolveCandidates(raw, candidates)
	})
}
