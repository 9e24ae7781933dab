package domain

import "sort"

// MatchStatus classifies how a resolution succeeded or failed.
type MatchStatus string

const (
	StatusCanonical     MatchStatus = "canonical"
	StatusAliasMatch    MatchStatus = "alias_match"
	StatusFuzzyMatch    MatchStatus = "fuzzy_match"
	StatusUnknown       MatchStatus = "unknown"
	StatusTACAMatch     MatchStatus = "taca_match"
	StatusExactMatch    MatchStatus = "exact_match"
	StatusAcronymMatch  MatchStatus = "acronym_match"
	StatusRegistryMatch MatchStatus = "registry_match"

	// keyword adapters
	StatusUncurated MatchStatus = "uncurated"
	StatusInferred  MatchStatus = "inferred"
)

// Matched reports whether the status denotes a successful resolution.
func (s MatchStatus) Matched() bool {
	return s != "" && s != StatusUnknown
}

// ReferenceEntry is one row of an external vocabulary.
type ReferenceEntry struct {
	CanonicalSymbol string                 `json:"canonical_symbol"`
	CanonicalKey    string                 `json:"canonical_key,omitempty"`
	AliasField      string                 `json:"alias_field,omitempty"`
	AliasKeys       []string               `json:"alias_keys,omitempty"`
	StableID        string                 `json:"stable_id"`
	Attributes      map[string]interface{} `json:"attributes,omitempty"`
}

// Attr returns a string attribute or "".
func (e *ReferenceEntry) Attr(name string) string {
	if e == nil || e.Attributes == nil {
		return ""
	}
	s, _ := e.Attributes[name].(string)
	return s
}

// MatchResult is the output of a single resolution.
type MatchResult struct {
	Input      string          `json:"input"`
	Entry      *ReferenceEntry `json:"matched_entry"`
	Status     MatchStatus     `json:"status"`
	Score      float64         `json:"score"`
	MatchedKey string          `json:"matched_key,omitempty"`
}

// UnknownResult is the miss value for input.
func UnknownResult(input string) MatchResult {
	return MatchResult{Input: input, Status: StatusUnknown, Score: 0}
}

// EnrichmentField is the per-domain decoration attached to a drug item.
type EnrichmentField map[string]interface{}

// FieldMatchStatus is the key every EnrichmentField carries.
const FieldMatchStatus = "match_status"

// UnknownField is the field assigned when a domain produced nothing.
func UnknownField() EnrichmentField {
	return EnrichmentField{FieldMatchStatus: string(StatusUnknown)}
}

// Status returns the field's match status, unknown when unset.
func (f EnrichmentField) Status() MatchStatus {
	switch v := f[FieldMatchStatus].(type) {
	case string:
		if v != "" {
			return MatchStatus(v)
		}
	case MatchStatus:
		if v != "" {
			return v
		}
	}
	return StatusUnknown
}

// Clone returns a deep copy so merged trees never share mutable state.
func (f EnrichmentField) Clone() EnrichmentField {
	if f == nil {
		return nil
	}
	out := make(EnrichmentField, len(f))
	for k, v := range f {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case EnrichmentField:
		return t.Clone()
	case map[string]interface{}:
		return map[string]interface{}(EnrichmentField(t).Clone())
	case []EnrichmentField:
		out := make([]EnrichmentField, len(t))
		for i := range t {
			out[i] = t[i].Clone()
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	case []string:
		return append([]string(nil), t...)
	case [][]string:
		out := make([][]string, len(t))
		for i := range t {
			out[i] = append([]string(nil), t[i]...)
		}
		return out
	case map[string]bool:
		out := make(map[string]bool, len(t))
		for k, b := range t {
			out[k] = b
		}
		return out
	default:
		return v
	}
}

// StatusCounts tallies match statuses for reporting.
type StatusCounts map[MatchStatus]int

// Add records one status.
func (c StatusCounts) Add(s MatchStatus) {
	c[s]++
}

// Total returns the number of recorded statuses.
func (c StatusCounts) Total() int {
	n := 0
	for _, v := range c {
		n += v
	}
	return n
}

// Statuses returns the recorded statuses in lexical order.
func (c StatusCounts) Statuses() []MatchStatus {
	out := make([]MatchStatus, 0, len(c))
	for s := range c {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
