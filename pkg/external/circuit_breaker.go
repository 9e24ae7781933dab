package external

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/adc-ontology-enricher/internal/domain"
)

// CircuitBreakerConfig represents circuit breaker configuration
type CircuitBreakerConfig struct {
	MaxRequests      uint32        `json:"max_requests"`
	Interval         time.Duration `json:"interval"`
	Timeout          time.Duration `json:"timeout"`
	FailureThreshold uint32        `json:"failure_threshold"`
}

// CircuitBreakerConfigFrom converts the application config section
func CircuitBreakerConfigFrom(c domain.CircuitBreakerConfig) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		MaxRequests:      c.MaxRequests,
		Interval:         c.Interval,
		Timeout:          c.Timeout,
		FailureThreshold: c.FailureThreshold,
	}
}

// ResilientRegistry wraps a molecule API with a circuit breaker and an
// optional cross-run response cache
type ResilientRegistry struct {
	api     MoleculeAPI
	cache   *CacheClient
	breaker *gobreaker.CircuitBreaker
	logger  *logrus.Logger
}

// NewResilientRegistry creates a breaker-protected registry. cache may be nil.
func NewResilientRegistry(api MoleculeAPI, cache *CacheClient, config CircuitBreakerConfig, logger *logrus.Logger) *ResilientRegistry {
	if config.MaxRequests == 0 {
		config.MaxRequests = 3
	}
	if config.Interval == 0 {
		config.Interval = 30 * time.Second
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}
	if config.FailureThreshold == 0 {
		config.FailureThreshold = 5
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	r := &ResilientRegistry{
		api:    api,
		cache:  cache,
		logger: logger,
	}

	threshold := config.FailureThreshold
	r.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "ChEMBL",
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.ConsecutiveFailures >= threshold {
				return true
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
		// a molecule the registry does not know is an answer, not a fault
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound)
		},
	})

	return r
}

// State returns the breaker state
func (r *ResilientRegistry) State() gobreaker.State {
	return r.breaker.State()
}

// Lookup searches the registry for query and returns the first acceptable
// molecule, consulting the response cache first.
func (r *ResilientRegistry) Lookup(ctx context.Context, query string, opts LookupOptions) (*LookupResult, error) {
	if r.cache != nil {
		cached, ok, err := r.cache.GetLookup(ctx, query, opts)
		if err != nil {
			r.logger.WithError(err).WithField("query", query).Debug("Lookup cache read failed")
		}
		if ok {
			if !cached.Found() {
				return nil, ErrNotFound
			}
			return cached, nil
		}
	}

	out, err := r.breaker.Execute(func() (interface{}, error) {
		return r.lookup(ctx, query, opts)
	})

	switch {
	case err == nil:
		result := out.(*LookupResult)
		r.store(ctx, query, opts, result)
		return result, nil
	case errors.Is(err, ErrNotFound):
		r.store(ctx, query, opts, &LookupResult{Query: query})
		return nil, err
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return nil, fmt.Errorf("%w: ChEMBL circuit breaker: %v", domain.ErrRegistryFailure, err)
	default:
		return nil, fmt.Errorf("%w: %v", domain.ErrRegistryFailure, err)
	}
}

func (r *ResilientRegistry) store(ctx context.Context, query string, opts LookupOptions, result *LookupResult) {
	if r.cache == nil {
		return
	}
	if err := r.cache.SetLookup(ctx, query, opts, result, 0); err != nil {
		r.logger.WithError(err).WithField("query", query).Debug("Lookup cache write failed")
	}
}

func (r *ResilientRegistry) lookup(ctx context.Context, query string, opts LookupOptions) (*LookupResult, error) {
	hits, err := r.api.SearchMolecules(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, ErrNotFound
	}

	hit := hits[0]
	if hit.ChEMBLID == "" {
		return nil, ErrNotFound
	}

	mol, err := r.api.GetMolecule(ctx, hit.ChEMBLID)
	switch {
	case errors.Is(err, ErrNotFound):
		mol = &hit
	case err != nil:
		return nil, err
	}
	if mol.ChEMBLID == "" {
		mol.ChEMBLID = hit.ChEMBLID
	}
	if len(mol.MoleculeSynonyms) == 0 {
		mol.MoleculeSynonyms = hit.MoleculeSynonyms
	}

	if opts.MoleculeType != "" && mol.MoleculeType != opts.MoleculeType {
		return nil, ErrNotFound
	}
	if mol.PrefName == "" && mol.MaxPhase == nil {
		return nil, ErrNotFound
	}

	result := &LookupResult{Query: query, Molecule: mol}
	if opts.WithMechanisms {
		mechs, err := r.api.GetMechanisms(ctx, mol.ChEMBLID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		result.Mechanisms = mechs
	}
	return result, nil
}

var _ MoleculeRegistry = (*ResilientRegistry)(nil)
