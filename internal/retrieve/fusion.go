package retrieve

import (
	"sort"

	"github.com/coderag/engine/internal/ragquery"
)

// RRFConstant is the standard Reciprocal Rank Fusion smoothing
// parameter; k=60 is the empirically validated default used across
// keyword/vector search fusion implementations.
const RRFConstant = 60

// strategyHit is one ranked hit from a single retrieval strategy.
type strategyHit struct {
	strategy string
	rank     int // 1-indexed
	result   ragquery.RetrievalResult
}

// fusionAccum tracks one document's merged view across strategies
// while fuse is still summing RRF contributions.
type fusionAccum struct {
	result   ragquery.RetrievalResult
	rrf      float64
	seenIn   map[string]bool
	firstSet bool
}

// fuse merges per-strategy ranked hit lists with Reciprocal Rank
// Fusion: RRF(d) = Σ 1/(k + rank_in_strategy), summed over every
// strategy that returned d. Per-strategy max scores are carried
// forward onto the merged RetrievalResult so the ranker can use them
// directly without recomputing anything. Missing-list contribution
// uses missing_rank = max(len of any strategy list) + 1.
func fuse(hitsByStrategy map[string][]strategyHit) []ragquery.RetrievalResult {
	byID := make(map[string]*fusionAccum)
	var order []string

	maxLen := 0
	for _, hits := range hitsByStrategy {
		if len(hits) > maxLen {
			maxLen = len(hits)
		}
	}
	missingRank := maxLen + 1

	for strategyName, hits := range hitsByStrategy {
		for _, h := range hits {
			a, ok := byID[h.result.ID]
			if !ok {
				a = &fusionAccum{seenIn: make(map[string]bool)}
				byID[h.result.ID] = a
				order = append(order, h.result.ID)
			}
			mergeFields(a, h.result)
			a.seenIn[strategyName] = true
			a.rrf += 1.0 / float64(RRFConstant+h.rank)
		}
	}

	// Documents missing from a strategy still receive that strategy's
	// contribution at missingRank, applying the fusion rule uniformly
	// across every strategy channel, not just two.
	for strategyName := range hitsByStrategy {
		for _, id := range order {
			a := byID[id]
			if !a.seenIn[strategyName] {
				a.rrf += 1.0 / float64(RRFConstant+missingRank)
			}
		}
	}

	out := make([]ragquery.RetrievalResult, 0, len(order))
	rrfByID := make(map[string]float64, len(order))
	for _, id := range order {
		out = append(out, byID[id].result)
		rrfByID[id] = byID[id].rrf
	}

	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := rrfByID[out[i].ID], rrfByID[out[j].ID]
		if ri != rj {
			return ri > rj
		}
		return out[i].ID < out[j].ID
	})

	return out
}

// mergeFields folds a strategy's view of a document into the
// accumulated merged result, carrying forward the maximum score seen
// in each channel (keyword/vector/semantic) and filling in descriptive
// fields (path, snippet, imports, ...) the first time they're seen.
func mergeFields(a *fusionAccum, r ragquery.RetrievalResult) {
	if !a.firstSet {
		a.result = r
		a.firstSet = true
	} else {
		if r.VectorScore != nil && (a.result.VectorScore == nil || *r.VectorScore > *a.result.VectorScore) {
			a.result.VectorScore = r.VectorScore
		}
		if r.SemanticScore != nil && (a.result.SemanticScore == nil || *r.SemanticScore > *a.result.SemanticScore) {
			a.result.SemanticScore = r.SemanticScore
		}
		if r.KeywordScore > a.result.KeywordScore {
			a.result.KeywordScore = r.KeywordScore
		}
	}
}
