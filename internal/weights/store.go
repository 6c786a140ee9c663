// Package weights implements the Adaptive Weight Store: per-intent
// weight vectors, updated from feedback via a bounded exponential
// moving average, with rollback on measured quality regression. The
// single-writer/snapshot-read discipline mirrors the code-search
// engine's circuit breaker: a mutex-guarded state machine whose readers
// take a cheap, lock-protected copy rather than holding a reference
// into mutable state.
package weights

import (
	"sync"

	"github.com/coderag/engine/internal/ragquery"
)

const (
	MinWeight        = 0.05
	MaxWeight        = 0.5
	PerUpdateMaxDelta = 0.05
	DefaultEta        = 0.1
	DefaultMinBatch   = 5
	DefaultHistorySize = 10
	DefaultRollbackWindow = 100
	DefaultRollbackDropThreshold = 0.15
)

// DefaultWeights returns a balanced starting vector (every weight equal,
// already normalized) used for any intent without learned weights yet.
func DefaultWeights() ragquery.WeightVector {
	var w ragquery.WeightVector
	v := 1.0 / float64(ragquery.NumFactors)
	for i := range w {
		w[i] = v
	}
	return w
}

// FactorLookup resolves the FactorVector the ranker computed for a
// given (query fingerprint, result id) pair, so feedback (which only
// carries ids, not factor values) can apportion reward across factors.
// The pipeline wires this to the result cache's retained response.
type FactorLookup func(fingerprint, resultID string) (ragquery.FactorVector, bool)

type intentState struct {
	current ragquery.WeightVector
	history []ragquery.WeightVector // bounded, most recent last
	pending []pendingObservation
	// cooldownRemaining counts queries during which this intent's
	// vector is pinned after a rollback and must not be updated again.
	cooldownRemaining int
}

type pendingObservation struct {
	factors ragquery.FactorVector
	reward  float64
}

// Store holds per-intent weight vectors and processes feedback batches.
type Store struct {
	mu       sync.RWMutex
	states   map[ragquery.Intent]*intentState
	eta      float64
	minBatch int
	lookup   FactorLookup
}

func NewStore(lookup FactorLookup) *Store {
	s := &Store{
		states:   make(map[ragquery.Intent]*intentState),
		eta:      DefaultEta,
		minBatch: DefaultMinBatch,
		lookup:   lookup,
	}
	for _, in := range ragquery.Intents {
		s.states[in] = &intentState{current: DefaultWeights()}
	}
	return s
}

// WeightsFor returns a read-only snapshot for intent, taken under a
// read lock so a concurrent update can never mutate it mid-read.
func (s *Store) WeightsFor(in ragquery.Intent) ragquery.WeightVector {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[in]
	if !ok {
		return DefaultWeights()
	}
	return st.current
}

// rewardFor maps a feedback outcome and rank to its reward signal.
func rewardFor(outcome ragquery.FeedbackOutcome, rank int) float64 {
	switch outcome {
	case ragquery.OutcomeCopy:
		return 0.5
	case ragquery.OutcomeExplicitPositive:
		return 0.5
	case ragquery.OutcomeExplicitNegative:
		return -0.5
	case ragquery.OutcomeNoClick:
		return -0.05
	case ragquery.OutcomeClick:
		switch {
		case rank >= 1 && rank <= 3:
			return 0.3
		case rank >= 1 && rank <= 5:
			return 0.1
		default:
			return 0
		}
	default:
		return 0
	}
}

// Observe enqueues a batch of feedback records for their respective
// intents, applying an update once an intent has accumulated at least
// minBatch pending observations. Records whose factor vector cannot be
// resolved (e.g. the cached response already expired) are counted
// toward the batch but contribute no reward apportionment.
func (s *Store) Observe(batch []ragquery.FeedbackRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byIntent := make(map[ragquery.Intent][]pendingObservation)
	for _, rec := range batch {
		reward := rewardFor(rec.Outcome, rec.Rank)
		var factors ragquery.FactorVector
		if s.lookup != nil {
			if fv, ok := s.lookup(rec.QueryFingerprint, rec.ResultID); ok {
				factors = fv
			}
		}
		byIntent[rec.Intent] = append(byIntent[rec.Intent], pendingObservation{factors: factors, reward: reward})
	}

	for in, obs := range byIntent {
		st, ok := s.states[in]
		if !ok {
			st = &intentState{current: DefaultWeights()}
			s.states[in] = st
		}
		st.pending = append(st.pending, obs...)
		if len(st.pending) >= s.minBatch && st.cooldownRemaining == 0 {
			// Keep the starting vector so the first update can be rolled back.
			if len(st.history) == 0 {
				st.history = pushHistory(st.history, st.current)
			}
			st.current = applyUpdate(st.current, st.pending, s.eta)
			st.history = pushHistory(st.history, st.current)
			st.pending = nil
		}
	}
}

// applyUpdate computes the bounded EMA update for one intent's pending
// batch and returns the new, renormalized weight vector.
func applyUpdate(current ragquery.WeightVector, batch []pendingObservation, eta float64) ragquery.WeightVector {
	var rewardTerm [ragquery.NumFactors]float64
	var count [ragquery.NumFactors]float64

	for _, obs := range batch {
		var sum float64
		for _, fv := range obs.factors {
			sum += fv.Value
		}
		if sum == 0 {
			continue
		}
		for f := 0; f < int(ragquery.NumFactors); f++ {
			share := obs.factors[f].Value / sum
			rewardTerm[f] += obs.reward * share
			count[f]++
		}
	}
	for f := 0; f < int(ragquery.NumFactors); f++ {
		if count[f] > 0 {
			rewardTerm[f] /= count[f]
		}
	}

	var updated ragquery.WeightVector
	for f := 0; f < int(ragquery.NumFactors); f++ {
		delta := eta * (rewardTerm[f] - current[f])
		if delta > PerUpdateMaxDelta {
			delta = PerUpdateMaxDelta
		}
		if delta < -PerUpdateMaxDelta {
			delta = -PerUpdateMaxDelta
		}
		w := current[f] + delta
		if w < MinWeight {
			w = MinWeight
		}
		if w > MaxWeight {
			w = MaxWeight
		}
		updated[f] = w
	}

	return renormalize(updated)
}

// renormalize scales weights so they sum to 1.0 while respecting the
// [0.05, 0.5] bound as closely as floating point allows. Renormalizing
// a vector already within bounds and summing to 1 is a no-op.
func renormalize(w ragquery.WeightVector) ragquery.WeightVector {
	sum := w.Sum()
	if sum == 0 {
		return DefaultWeights()
	}
	var out ragquery.WeightVector
	for i, v := range w {
		out[i] = v / sum
	}
	return out
}

func pushHistory(history []ragquery.WeightVector, v ragquery.WeightVector) []ragquery.WeightVector {
	history = append(history, v)
	if len(history) > DefaultHistorySize {
		history = history[len(history)-DefaultHistorySize:]
	}
	return history
}

// RollbackIfRegressed compares newCTR against the CTR recorded before
// the most recent update for intent; if it dropped by more than
// threshold, the previous vector is restored and pinned for cooldown
// queries. Returns true if a rollback occurred.
func (s *Store) RollbackIfRegressed(in ragquery.Intent, previousCTR, newCTR, threshold float64, cooldown int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[in]
	if !ok || len(st.history) < 2 {
		return false
	}
	if previousCTR-newCTR <= threshold {
		return false
	}
	// Last-known-good is the vector before the most recent update.
	lastGood := st.history[len(st.history)-2]
	st.current = lastGood
	st.history = append(st.history, lastGood)
	if len(st.history) > DefaultHistorySize {
		st.history = st.history[len(st.history)-DefaultHistorySize:]
	}
	st.cooldownRemaining = cooldown
	return true
}

// TickCooldown decrements the cooldown counter for intent by one query;
// call once per query served under that intent.
func (s *Store) TickCooldown(in ragquery.Intent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.states[in]; ok && st.cooldownRemaining > 0 {
		st.cooldownRemaining--
	}
}
