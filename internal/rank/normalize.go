package rank

import (
	"math"

	"github.com/coderag/engine/internal/errors"
)

// checkFinite raises ranking_invariant_violated for any NaN/Inf value;
// this is a programming error that must never be silently replaced.
func checkFinite(v float64, context string) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return errors.QueryError(errors.KindRankingInvariant,
			"non-finite factor value in "+context, nil)
	}
	return nil
}

// minMax normalizes vals to [0,1]. When min==max, every element becomes
// 0.5 (never divides by zero). Caller is responsible for checking
// inputs are finite first.
func minMax(vals []float64) []float64 {
	out := make([]float64, len(vals))
	if len(vals) == 0 {
		return out
	}
	lo, hi := vals[0], vals[0]
	for _, v := range vals[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if hi == lo {
		for i := range out {
			out[i] = 0.5
		}
		return out
	}
	for i, v := range vals {
		out[i] = (v - lo) / (hi - lo)
	}
	return out
}

// clamp01 clamps v into [0,1]. Used only after a value is already
// known finite, to absorb floating-point edge rounding in composed
// scores; never to mask a NaN/Inf, which is rejected earlier by
// checkFinite.
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
