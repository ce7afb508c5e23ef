package dto

// ExtractionMethod tags where a price candidate came from.
type ExtractionMethod string

const (
	MethodStructuredData ExtractionMethod = "structured-data"
	MethodSiteSpecific   ExtractionMethod = "site-specific"
	MethodGeneric        ExtractionMethod = "generic"
	MethodOracle         ExtractionMethod = "oracle"
)

// StockStatus is the reconciled availability of an item.
type StockStatus string

const (
	StockStatusInStock    StockStatus = "in_stock"
	StockStatusOutOfStock StockStatus = "out_of_stock"
	StockStatusUnknown    StockStatus = "unknown"
)

// PriceCandidate is one extractor's proposed price. Candidates live only for
// the duration of a single reconciliation pass and are never persisted.
type PriceCandidate struct {
	Amount     float64          `json:"amount"`
	Currency   string           `json:"currency"`
	Method     ExtractionMethod `json:"method"`
	Context    string           `json:"context,omitempty"`
	Confidence float64          `json:"confidence"`
}

// ProductMeta carries non-price page metadata contributed by extractors.
type ProductMeta struct {
	Name     string `json:"name,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// Merge fills empty fields from other without overwriting populated ones, so
// higher-priority extractors keep first-writer-wins semantics.
func (m *ProductMeta) Merge(other ProductMeta) {
	if m.Name == "" {
		m.Name = other.Name
	}
	if m.ImageURL == "" {
		m.ImageURL = other.ImageURL
	}
}
