package classify

import (
	"sort"
	"strings"

	"github.com/adc-ontology-enricher/internal/domain"
	"github.com/adc-ontology-enricher/pkg/normalize"
)

// Standardize maps text onto a variation table: an exact match first, then
// containment in either direction, in table order. It returns the standard
// form and canonical or alias_match, or ("", unknown) when nothing applies.
func Standardize(text string, variations []Variation) (string, domain.MatchStatus) {
	folded := normalize.Fold(text)
	if folded == "" {
		return "", domain.StatusUnknown
	}

	for _, v := range variations {
		if folded == v.Pattern {
			return v.Standard, domain.StatusCanonical
		}
	}
	for _, v := range variations {
		if strings.Contains(folded, v.Pattern) || strings.Contains(v.Pattern, folded) {
			return v.Standard, domain.StatusAliasMatch
		}
	}
	return "", domain.StatusUnknown
}

// Categorize flags every category with at least one keyword contained in
// text. All categories are present in the result.
func Categorize(text string, categories []Category) map[string]bool {
	folded := normalize.Fold(text)
	out := make(map[string]bool, len(categories))
	for _, c := range categories {
		out[c.Name] = folded != "" && containsAny(folded, c.Keywords)
	}
	return out
}

// Matched returns the flagged category names, sorted.
func Matched(flags map[string]bool) []string {
	out := make([]string, 0, len(flags))
	for name, ok := range flags {
		if ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func containsAny(folded string, keywords []string) bool {
	for _, k := range keywords {
		if k != "" && strings.Contains(folded, strings.ToLower(k)) {
			return true
		}
	}
	return false
}

// CleanCompany standardizes a company name. Unlisted names are title-cased
// and reported as uncurated.
func (t *CompanyTable) CleanCompany(name string) (string, domain.MatchStatus) {
	if domain.IsUnknownText(name) {
		return "", domain.StatusUnknown
	}
	if std, status := Standardize(name, t.Variations); status.Matched() {
		return std, status
	}
	return normalize.Title(name), domain.StatusUncurated
}

// CompanyFromDrugName extracts a sponsor code from an alphanumeric drug
// label, by known prefix first and then by the code patterns.
func (t *CompanyTable) CompanyFromDrugName(drugName string) (string, bool) {
	if domain.IsUnknownText(drugName) {
		return "", false
	}
	upper := strings.ToUpper(strings.TrimSpace(drugName))

	for _, prefix := range t.DrugPrefixes {
		if prefix != "" && strings.HasPrefix(upper, strings.ToUpper(prefix)) {
			return prefix, true
		}
	}
	for _, re := range t.patterns {
		if m := re.FindStringSubmatch(upper); len(m) > 1 && len(m[1]) >= 2 {
			return m[1], true
		}
	}
	return "", false
}

// CleanDesign standardizes a trial design. Unlisted designs are
// title-cased and reported as uncurated.
func (t *TrialDesignTable) CleanDesign(design string) (string, domain.MatchStatus) {
	if domain.IsUnknownText(design) {
		return "", domain.StatusUnknown
	}
	if std, status := Standardize(design, t.Variations); status.Matched() {
		return std, status
	}
	return normalize.Title(design), domain.StatusUncurated
}

// DesignFromPhase infers a design from phase text. Longer patterns are
// tried first so "phase ii" is not taken for "phase i".
func (t *TrialDesignTable) DesignFromPhase(phase string) (string, bool) {
	if domain.IsUnknownText(phase) {
		return "", false
	}
	folded := normalize.Fold(phase)

	ordered := make([]Variation, len(t.PhaseDesigns))
	copy(ordered, t.PhaseDesigns)
	sort.SliceStable(ordered, func(i, j int) bool {
		return len(ordered[i].Pattern) > len(ordered[j].Pattern)
	})

	for _, p := range ordered {
		if p.Pattern != "" && strings.Contains(folded, p.Pattern) {
			return p.Standard, true
		}
	}
	return "", false
}

// Categorize flags the design categories of a cleaned design.
func (t *TrialDesignTable) Categorize(design string) map[string]bool {
	return Categorize(design, t.Categories)
}

// CleanStrategy standardizes a biomarker strategy. Unlisted strategies are
// kept trimmed and reported as uncurated.
func (t *BiomarkerTable) CleanStrategy(strategy string) (string, domain.MatchStatus) {
	if domain.IsUnknownText(strategy) {
		return "", domain.StatusUnknown
	}
	if std, status := Standardize(strategy, t.Variations); status.Matched() {
		return std, status
	}
	return strings.TrimSpace(strategy), domain.StatusUncurated
}

// Categorize flags the biomarker categories of a cleaned strategy.
func (t *BiomarkerTable) Categorize(strategy string) map[string]bool {
	return Categorize(strategy, t.Categories)
}

// MatchTechnologies lists the assay technologies mentioned, in table order.
func (t *BiomarkerTable) MatchTechnologies(strategy string) []string {
	folded := normalize.Fold(strategy)
	out := []string{}
	if folded == "" {
		return out
	}
	for _, tech := range t.Technologies {
		if strings.Contains(folded, strings.ToLower(tech)) {
			out = append(out, tech)
		}
	}
	return out
}

// Molecules extracts candidate biomarker names: abbreviations, two-word
// and single capitalized names. The result is unique and sorted.
func (t *BiomarkerTable) Molecules(strategy string) []string {
	seen := make(map[string]struct{})
	for _, re := range t.patterns {
		for _, m := range re.FindAllString(strategy, -1) {
			seen[m] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for m := range seen {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Complexity scores a strategy: two points per category, one per
// technology and molecule, and one per ten words.
func (t *BiomarkerTable) Complexity(strategy string) int {
	if domain.IsUnknownText(strategy) {
		return 0
	}
	categories := len(Matched(t.Categorize(strategy)))
	return categories*2 +
		len(t.MatchTechnologies(strategy)) +
		len(t.Molecules(strategy)) +
		len(strings.Fields(strategy))/10
}
