package consensus

import (
	"math"

	"golang-price-watcher/internal/tracker/dto"
)

// anchorTolerance is the relative distance under which a candidate is
// considered the same variant the user confirmed.
const anchorTolerance = 0.15

// MatchAnchor selects the candidate closest to a user-confirmed anchor
// price. Within the tolerance it is the continuing price of that variant;
// beyond it the closest candidate is still chosen and treated as a genuine
// price change rather than a different variant. Either way the result is
// user-anchored, so it skips oracle verification entirely and takes
// precedence over consensus.
//
// TODO: the beyond-tolerance fallback can silently follow a legitimate price
// change onto the wrong variant; widening the needs-review trigger here is
// under consideration.
// The second return reports whether the match fell within the tolerance;
// both cases are accepted and marked verified.
func MatchAnchor(anchor float64, candidates []dto.PriceCandidate) (*dto.PriceCandidate, bool) {
	if anchor <= 0 || len(candidates) == 0 {
		return nil, false
	}

	best := candidates[0]
	bestDist := math.Abs(best.Amount - anchor)
	for _, c := range candidates[1:] {
		if d := math.Abs(c.Amount - anchor); d < bestDist {
			best = c
			bestDist = d
		}
	}

	withinTolerance := bestDist == 0 || bestDist/anchor < anchorTolerance

	return &best, withinTolerance
}
