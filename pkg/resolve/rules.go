package resolve

import (
	"strings"

	"github.com/adc-ontology-enricher/pkg/normalize"
)

// ScoreRule adjusts a fuzzy similarity score for one candidate label.
// Rules only see candidates that already passed the cutoff.
type ScoreRule interface {
	Adjust(input, label string, score float64) float64
}

// KeywordBoost raises the score when the input mentions any of InputTerms
// and the candidate label contains LabelTerm.
type KeywordBoost struct {
	Name       string
	InputTerms []string
	LabelTerm  string
	Boost      float64
}

// Adjust implements ScoreRule.
func (k KeywordBoost) Adjust(input, label string, score float64) float64 {
	in := normalize.Fold(input)
	matched := false
	for _, term := range k.InputTerms {
		if t := normalize.Fold(term); t != "" && strings.Contains(in, t) {
			matched = true
			break
		}
	}
	if !matched {
		return score
	}
	if !strings.Contains(normalize.Fold(label), normalize.Fold(k.LabelTerm)) {
		return score
	}
	return score + k.Boost
}

// applyRules runs rules in order; the first one that changes the score wins.
// The result never exceeds 1.0.
func applyRules(rules []ScoreRule, input, label string, score float64) float64 {
	for _, r := range rules {
		if adjusted := r.Adjust(input, label, score); adjusted != score {
			score = adjusted
			break
		}
	}
	if score > 1.0 {
		return 1.0
	}
	return score
}

// AnatomicalBoost is the default boost for a matching anatomical site.
const AnatomicalBoost = 0.15

// DefaultAnatomicalRules favors disease labels naming the same organ as the
// input.
func DefaultAnatomicalRules() []ScoreRule {
	return []ScoreRule{
		KeywordBoost{Name: "lung", InputTerms: []string{"lung", "pulmonary", "non-small cell lung", "small cell lung"}, LabelTerm: "lung", Boost: AnatomicalBoost},
		KeywordBoost{Name: "breast", InputTerms: []string{"breast", "mammary"}, LabelTerm: "breast", Boost: AnatomicalBoost},
		KeywordBoost{Name: "prostate", InputTerms: []string{"prostate"}, LabelTerm: "prostate", Boost: AnatomicalBoost},
		KeywordBoost{Name: "colon", InputTerms: []string{"colon", "colorectal", "large intestine"}, LabelTerm: "colon", Boost: AnatomicalBoost},
	}
}
