package consensus

import (
	"testing"

	"golang-price-watcher/internal/tracker/dto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cand(amount, confidence float64, method dto.ExtractionMethod) dto.PriceCandidate {
	return dto.PriceCandidate{Amount: amount, Currency: "USD", Method: method, Confidence: confidence}
}

func TestPricesMatch(t *testing.T) {
	assert.True(t, PricesMatch(29.99, 29.99))
	assert.True(t, PricesMatch(29.99, 31.00)) // ~3.3% apart
	assert.False(t, PricesMatch(100.00, 90.00))
	assert.False(t, PricesMatch(40.00, 25.00))

	// Non-positive amounts never match, even each other.
	assert.False(t, PricesMatch(0, 0))
	assert.False(t, PricesMatch(-5, -5))
	assert.False(t, PricesMatch(0, 10))
}

func TestEvaluate_AgreementWithinTolerance(t *testing.T) {
	result := Evaluate([]dto.PriceCandidate{
		cand(29.99, 0.9, dto.MethodStructuredData),
		cand(29.99, 0.85, dto.MethodSiteSpecific),
		cand(31.00, 0.6, dto.MethodGeneric),
	})

	require.NotNil(t, result.Winner)
	assert.True(t, result.Reached)
	assert.Equal(t, 29.99, result.Winner.Amount)
	assert.Equal(t, dto.MethodStructuredData, result.Winner.Method)
}

func TestEvaluate_TwoWaySplitIsNoConsensus(t *testing.T) {
	result := Evaluate([]dto.PriceCandidate{
		cand(40.00, 0.9, dto.MethodStructuredData),
		cand(25.00, 0.6, dto.MethodGeneric),
	})

	assert.False(t, result.Reached)
	assert.Len(t, result.Groups, 2)
}

func TestEvaluate_PluralityBeatsRunnerUp(t *testing.T) {
	// 2-1-1 split: no absolute majority, but the top group strictly
	// outsizes the runner-up.
	result := Evaluate([]dto.PriceCandidate{
		cand(10.00, 0.6, dto.MethodGeneric),
		cand(10.05, 0.6, dto.MethodGeneric),
		cand(50.00, 0.9, dto.MethodStructuredData),
		cand(80.00, 0.85, dto.MethodSiteSpecific),
	})

	require.NotNil(t, result.Winner)
	assert.True(t, result.Reached)
	assert.InDelta(t, 10.00, result.Winner.Amount, 0.1)
}

func TestEvaluate_SingleCandidate(t *testing.T) {
	result := Evaluate([]dto.PriceCandidate{cand(19.99, 0.9, dto.MethodStructuredData)})

	require.NotNil(t, result.Winner)
	assert.True(t, result.Reached)
	assert.Equal(t, 19.99, result.Winner.Amount)
}

func TestEvaluate_Empty(t *testing.T) {
	result := Evaluate(nil)
	assert.Nil(t, result.Winner)
	assert.False(t, result.Reached)
}

func TestEvaluate_WinnerIsHighestConfidenceInTopGroup(t *testing.T) {
	result := Evaluate([]dto.PriceCandidate{
		cand(100.00, 0.6, dto.MethodGeneric),
		cand(100.00, 0.9, dto.MethodStructuredData),
		cand(101.00, 0.85, dto.MethodSiteSpecific),
	})

	require.NotNil(t, result.Winner)
	assert.True(t, result.Reached)
	assert.Equal(t, 0.9, result.Winner.Confidence)
}

func TestBestConfidence(t *testing.T) {
	best := BestConfidence([]dto.PriceCandidate{
		cand(40.00, 0.9, dto.MethodStructuredData),
		cand(25.00, 0.6, dto.MethodGeneric),
	})
	require.NotNil(t, best)
	assert.Equal(t, 40.00, best.Amount)

	assert.Nil(t, BestConfidence(nil))
}
