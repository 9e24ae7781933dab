// Package external holds the clients for remote chemical registries.
package external

import (
	"context"
	"fmt"

	"github.com/adc-ontology-enricher/internal/domain"
)

// ErrNotFound is returned when the registry has no acceptable molecule.
var ErrNotFound = domain.ErrNotFound

// StatusError is a non-200 response from a registry.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API returned status %d: %s", e.Code, e.Body)
}

// LookupResult is a molecule together with its mechanisms of action.
type LookupResult struct {
	Query      string      `json:"query"`
	Molecule   *Molecule   `json:"molecule"`
	Mechanisms []Mechanism `json:"mechanisms,omitempty"`
}

// Found reports whether the lookup produced a molecule.
func (r *LookupResult) Found() bool {
	return r != nil && r.Molecule != nil
}

// LookupOptions selects what a lookup fetches and accepts.
type LookupOptions struct {
	MoleculeType   string
	WithMechanisms bool
}

// MoleculeRegistry resolves free-text chemical names to registry molecules.
type MoleculeRegistry interface {
	// Lookup returns ErrNotFound when no acceptable molecule exists.
	Lookup(ctx context.Context, query string, opts LookupOptions) (*LookupResult, error)
}

// MoleculeAPI is the raw registry surface a MoleculeRegistry is built from.
type MoleculeAPI interface {
	SearchMolecules(ctx context.Context, query string) ([]Molecule, error)
	GetMolecule(ctx context.Context, chemblID string) (*Molecule, error)
	GetMechanisms(ctx context.Context, chemblID string) ([]Mechanism, error)
}

var _ MoleculeAPI = (*ChEMBLClient)(nil)
