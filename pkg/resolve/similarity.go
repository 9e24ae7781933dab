package resolve

import (
	"github.com/pmezard/go-difflib/difflib"
)

// Ratio returns the sequence similarity 2*M/T of a and b, where M is the
// number of characters in matching blocks and T the total length.
func Ratio(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	m := difflib.NewMatcher(splitRunes(a), splitRunes(b))
	return m.Ratio()
}

// splitRunes turns s into the element sequence the matcher compares.
func splitRunes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

// closeMatch scans candidates for the best key whose similarity to word is
// at least cutoff. Candidates are screened by the cheap upper bounds first.
// seqs, when non-nil, holds the pre-split form of each candidate.
func closeMatch(word string, candidates []string, seqs [][]string, cutoff float64, visit func(i int, score float64)) {
	m := difflib.NewMatcher(nil, splitRunes(word))
	for i, cand := range candidates {
		var seq []string
		if seqs != nil {
			seq = seqs[i]
		} else {
			seq = splitRunes(cand)
		}
		m.SetSeq1(seq)
		if m.RealQuickRatio() < cutoff || m.QuickRatio() < cutoff {
			continue
		}
		score := m.Ratio()
		if score < cutoff {
			continue
		}
		visit(i, score)
	}
}
