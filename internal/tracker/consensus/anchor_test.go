package consensus

import (
	"testing"

	"golang-price-watcher/internal/tracker/dto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchAnchor_ExactMatch(t *testing.T) {
	match, within := MatchAnchor(99.99, []dto.PriceCandidate{
		cand(149.99, 0.9, dto.MethodStructuredData),
		cand(99.99, 0.6, dto.MethodGeneric),
	})

	require.NotNil(t, match)
	assert.True(t, within)
	assert.Equal(t, 99.99, match.Amount)
}

func TestMatchAnchor_WithinTolerance(t *testing.T) {
	// 95 is 5% from a 100 anchor, inside the 15% band.
	match, within := MatchAnchor(100.00, []dto.PriceCandidate{
		cand(95.00, 0.9, dto.MethodStructuredData),
		cand(150.00, 0.9, dto.MethodSiteSpecific),
	})

	require.NotNil(t, match)
	assert.True(t, within)
	assert.Equal(t, 95.00, match.Amount)
}

func TestMatchAnchor_BeyondToleranceStillClosest(t *testing.T) {
	// Nothing near the anchor: the closest candidate is still chosen,
	// read as a genuine price change.
	match, within := MatchAnchor(100.00, []dto.PriceCandidate{
		cand(200.00, 0.9, dto.MethodStructuredData),
		cand(250.00, 0.9, dto.MethodGeneric),
	})

	require.NotNil(t, match)
	assert.False(t, within)
	assert.Equal(t, 200.00, match.Amount)
}

func TestMatchAnchor_NoAnchorOrCandidates(t *testing.T) {
	match, _ := MatchAnchor(0, []dto.PriceCandidate{cand(10, 0.9, dto.MethodGeneric)})
	assert.Nil(t, match)

	match, _ = MatchAnchor(100, nil)
	assert.Nil(t, match)
}
