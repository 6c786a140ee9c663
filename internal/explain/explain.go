// Package explain renders a ranked result's scoring decision as
// human-readable text: per-factor contribution, the two dominant
// factors, and any matched code patterns. Grounded on the code-search
// engine's ExplainData, generalized from its two-channel (BM25/vector)
// shape to the eight-factor blend.
package explain

import (
	"fmt"
	"sort"
	"strings"

	"github.com/coderag/engine/internal/ragquery"
)

// Explain renders why result was ranked where it was, for the given
// weight vector and matched pattern names. It has no side effects and
// performs no I/O.
func Explain(rr ragquery.RankedResult, weights ragquery.WeightVector, matchedPatterns []string, in ragquery.Intent) string {
	type contribution struct {
		factor ragquery.Factor
		value  float64
		weight float64
		contrib float64
	}

	contribs := make([]contribution, ragquery.NumFactors)
	for f := 0; f < int(ragquery.NumFactors); f++ {
		v := rr.Factors[f].Value
		w := weights[f]
		contribs[f] = contribution{factor: ragquery.Factor(f), value: v, weight: w, contrib: v * w}
	}

	sorted := make([]contribution, len(contribs))
	copy(sorted, contribs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].contrib > sorted[j].contrib })

	var b strings.Builder
	fmt.Fprintf(&b, "score %.3f (intent=%s, rank #%d)\n", rr.Score, in, rr.TieBreak)
	b.WriteString("factors:\n")
	for _, c := range contribs {
		fmt.Fprintf(&b, "  %-20s value=%.3f weight=%.3f contribution=%.3f confidence=%.2f\n",
			c.factor.String(), c.value, c.weight, c.contrib, rr.Factors[c.factor].Confidence)
	}

	if len(sorted) >= 2 {
		fmt.Fprintf(&b, "dominant factors: %s, %s\n", sorted[0].factor.String(), sorted[1].factor.String())
	} else if len(sorted) == 1 {
		fmt.Fprintf(&b, "dominant factor: %s\n", sorted[0].factor.String())
	}

	if len(matchedPatterns) > 0 {
		fmt.Fprintf(&b, "matched patterns: %s\n", strings.Join(matchedPatterns, ", "))
	}

	return b.String()
}
