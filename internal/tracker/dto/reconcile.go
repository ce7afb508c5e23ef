package dto

// ConsensusResult is the outcome of grouping one fetch's candidates.
type ConsensusResult struct {
	Winner  *PriceCandidate    `json:"winner,omitempty"`
	Reached bool               `json:"reached"`
	Groups  [][]PriceCandidate `json:"groups,omitempty"`
}

// ReconciledObservation is the single trusted result of one check. The full
// candidate list is carried so a human can arbitrate when NeedsReview is set.
type ReconciledObservation struct {
	Name        string           `json:"name,omitempty"`
	ImageURL    string           `json:"image_url,omitempty"`
	Price       *PriceCandidate  `json:"price,omitempty"`
	StockStatus StockStatus      `json:"stock_status"`
	Provenance  string           `json:"provenance,omitempty"`
	NeedsReview bool             `json:"needs_review"`
	Candidates  []PriceCandidate `json:"candidates,omitempty"`
}
