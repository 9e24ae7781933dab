package domain

import (
	"errors"
	"strings"
)

// Domain names used as keys of a drug item's ontology mapping.
const (
	DomainDrug              = "drug"
	DomainAntigen           = "antigen"
	DomainDisease           = "disease"
	DomainPayload           = "payload"
	DomainLinker            = "linker"
	DomainCompany           = "company"
	DomainTrialDesign       = "trial_design"
	DomainBiomarkerStrategy = "biomarker_strategy"
)

// AllDomains lists every domain in output order.
var AllDomains = []string{
	DomainDrug,
	DomainAntigen,
	DomainDisease,
	DomainPayload,
	DomainLinker,
	DomainCompany,
	DomainTrialDesign,
	DomainBiomarkerStrategy,
}

// IsKnownDomain reports whether name is one of AllDomains.
func IsKnownDomain(name string) bool {
	for _, d := range AllDomains {
		if d == name {
			return true
		}
	}
	return false
}

// UnknownSentinel is the literal the extraction step writes for missing values.
const UnknownSentinel = "unknown"

// IsUnknownText reports whether s carries no information.
func IsUnknownText(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || strings.EqualFold(s, UnknownSentinel)
}

// Common errors
var (
	ErrNotFound        = errors.New("not found")
	ErrRegistryFailure = errors.New("registry lookup failed")
)
