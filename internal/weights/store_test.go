package weights

import (
	"math"
	"testing"

	"github.com/coderag/engine/internal/ragquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupAllOnTextRelevance(_ string, _ string) (ragquery.FactorVector, bool) {
	var fv ragquery.FactorVector
	fv[ragquery.FactorTextRelevance] = ragquery.FactorValue{Value: 1.0, Confidence: 1.0}
	return fv, true
}

func TestStore_WeightsAlwaysBoundedAndNormalized(t *testing.T) {
	s := NewStore(lookupAllOnTextRelevance)
	var batch []ragquery.FeedbackRecord
	for i := 0; i < 20; i++ {
		batch = append(batch, ragquery.FeedbackRecord{
			QueryFingerprint: "fp", ResultID: "r1", Rank: 1,
			Outcome: ragquery.OutcomeClick, Intent: ragquery.IntentImplement,
		})
	}
	s.Observe(batch)

	w := s.WeightsFor(ragquery.IntentImplement)
	var sum float64
	for _, v := range w {
		assert.GreaterOrEqual(t, v, MinWeight-1e-9)
		assert.LessOrEqual(t, v, MaxWeight+1e-9)
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestStore_PerUpdateDeltaCapped(t *testing.T) {
	s := NewStore(lookupAllOnTextRelevance)
	before := s.WeightsFor(ragquery.IntentImplement)

	var batch []ragquery.FeedbackRecord
	for i := 0; i < 20; i++ {
		batch = append(batch, ragquery.FeedbackRecord{
			QueryFingerprint: "fp", ResultID: "r1", Rank: 1,
			Outcome: ragquery.OutcomeClick, Intent: ragquery.IntentImplement,
		})
	}
	s.Observe(batch)
	after := s.WeightsFor(ragquery.IntentImplement)

	// text_relevance may increase, but never by more than the
	// per-update cap before renormalization pushes it slightly; allow
	// renormalization slack on top of the raw cap.
	diff := after[ragquery.FactorTextRelevance] - before[ragquery.FactorTextRelevance]
	assert.GreaterOrEqual(t, diff, 0.0)
	for f := range after {
		assert.LessOrEqual(t, math.Abs(after[f]-before[f]), PerUpdateMaxDelta+0.1)
	}
}

func TestStore_NoUpdateBelowMinBatch(t *testing.T) {
	s := NewStore(lookupAllOnTextRelevance)
	before := s.WeightsFor(ragquery.IntentDebug)
	s.Observe([]ragquery.FeedbackRecord{
		{QueryFingerprint: "fp", ResultID: "r1", Rank: 1, Outcome: ragquery.OutcomeClick, Intent: ragquery.IntentDebug},
	})
	after := s.WeightsFor(ragquery.IntentDebug)
	assert.Equal(t, before, after)
}

func TestStore_RollbackRestoresBitForBit(t *testing.T) {
	s := NewStore(lookupAllOnTextRelevance)
	firstVector := s.WeightsFor(ragquery.IntentTest)

	var batch []ragquery.FeedbackRecord
	for i := 0; i < 5; i++ {
		batch = append(batch, ragquery.FeedbackRecord{
			QueryFingerprint: "fp", ResultID: "r1", Rank: 1,
			Outcome: ragquery.OutcomeClick, Intent: ragquery.IntentTest,
		})
	}
	s.Observe(batch)
	updated := s.WeightsFor(ragquery.IntentTest)
	require.NotEqual(t, firstVector, updated)

	rolledBack := s.RollbackIfRegressed(ragquery.IntentTest, 0.5, 0.1, DefaultRollbackDropThreshold, 10)
	require.True(t, rolledBack)
	assert.Equal(t, firstVector, s.WeightsFor(ragquery.IntentTest))
}
