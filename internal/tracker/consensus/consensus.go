package consensus

import (
	"math"
	"sort"

	"golang-price-watcher/internal/tracker/dto"
)

// relativeTolerance is how far apart two candidates may be, relative to
// their average, while still being treated as the same real price.
const relativeTolerance = 0.05

// PricesMatch reports whether two amounts are within the relative tolerance:
// |a-b| / avg(a,b) < 0.05. Symmetric and reflexive for positive amounts.
func PricesMatch(a, b float64) bool {
	if a <= 0 || b <= 0 {
		return false
	}
	avg := (a + b) / 2
	return math.Abs(a-b)/avg < relativeTolerance
}

// Evaluate groups the candidates of one fetch and decides whether they agree
// on a single price. Grouping is greedy: a candidate joins the first group
// where it matches every member, preserving discovery order. Consensus is
// declared when the top group holds a majority of all candidates, or strictly
// outsizes the runner-up. The winner is the top group's highest-confidence
// member.
func Evaluate(candidates []dto.PriceCandidate) dto.ConsensusResult {
	if len(candidates) == 0 {
		return dto.ConsensusResult{}
	}

	groups := groupCandidates(candidates)

	sort.SliceStable(groups, func(i, j int) bool {
		if len(groups[i]) != len(groups[j]) {
			return len(groups[i]) > len(groups[j])
		}
		return meanConfidence(groups[i]) > meanConfidence(groups[j])
	})

	top := groups[0]
	reached := 2*len(top) > len(candidates)
	if !reached && len(groups) > 1 && len(top) > len(groups[1]) {
		reached = true
	}
	if len(candidates) == 1 {
		reached = true
	}

	winner := bestOf(top)

	return dto.ConsensusResult{
		Winner:  &winner,
		Reached: reached,
		Groups:  groups,
	}
}

func groupCandidates(candidates []dto.PriceCandidate) [][]dto.PriceCandidate {
	var groups [][]dto.PriceCandidate

outer:
	for _, c := range candidates {
		for i, g := range groups {
			if matchesAll(c, g) {
				groups[i] = append(groups[i], c)
				continue outer
			}
		}
		groups = append(groups, []dto.PriceCandidate{c})
	}

	return groups
}

func matchesAll(c dto.PriceCandidate, group []dto.PriceCandidate) bool {
	for _, member := range group {
		if !PricesMatch(c.Amount, member.Amount) {
			return false
		}
	}
	return true
}

func meanConfidence(group []dto.PriceCandidate) float64 {
	if len(group) == 0 {
		return 0
	}
	sum := 0.0
	for _, c := range group {
		sum += c.Confidence
	}
	return sum / float64(len(group))
}

// bestOf returns the highest-confidence member; ties keep the first
// discovered, which preserves extractor priority order.
func bestOf(group []dto.PriceCandidate) dto.PriceCandidate {
	best := group[0]
	for _, c := range group[1:] {
		if c.Confidence > best.Confidence {
			best = c
		}
	}
	return best
}

// BestConfidence returns the highest-confidence candidate across the whole
// list, used as the provisional value when reconciliation needs review.
func BestConfidence(candidates []dto.PriceCandidate) *dto.PriceCandidate {
	if len(candidates) == 0 {
		return nil
	}
	best := bestOf(candidates)
	return &best
}
