package extractor

import (
	"regexp"
	"strings"

	"golang-price-watcher/internal/tracker/dto"
	"golang-price-watcher/pkg/logger"

	"github.com/PuerkitoBio/goquery"
)

const (
	genericConfidence = 0.6

	// Noise bound: only the first few matches per selector are considered.
	maxMatchesPerSelector = 3
)

// Selectors that commonly carry the live price, tried in order.
var genericSelectors = []string{
	`[itemprop="price"]`,
	`[data-price]`,
	`[data-product-price]`,
	`[data-price-amount]`,
	`[class*="price"]`,
}

// Classes that mark struck-through or "was" prices, never the live one.
var excludedClassPattern = regexp.MustCompile(`(?i)(was|old|strike|original|list[-_]?price|msrp|regular|compare|previous|before|crossed)`)

// GenericExtractor pattern-matches common price-bearing attributes and class
// names. It is the least trusted source and its output is capped per selector.
type GenericExtractor struct {
	logger *logger.Logger
}

// NewGenericExtractor creates the generic CSS/attribute extractor.
func NewGenericExtractor(log *logger.Logger) *GenericExtractor {
	return &GenericExtractor{logger: log}
}

// Method returns the extraction method tag.
func (e *GenericExtractor) Method() dto.ExtractionMethod {
	return dto.MethodGeneric
}

// Extract proposes candidates from generic price markers, skipping elements
// whose own or ancestor classes suggest an original/was/strikethrough price.
func (e *GenericExtractor) Extract(doc *goquery.Document, pageURL string) ([]dto.PriceCandidate, dto.ProductMeta) {
	var candidates []dto.PriceCandidate
	seen := make(map[float64]bool)

	for _, selector := range genericSelectors {
		matched := 0
		doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if matched >= maxMatchesPerSelector {
				return false
			}
			if isStrikethroughContext(s) {
				return true
			}

			text := priceTextOf(s)
			amount, currency, ok := ParsePrice(text)
			if !ok {
				return true
			}
			if seen[amount] {
				return true
			}
			seen[amount] = true
			matched++

			candidates = append(candidates, dto.PriceCandidate{
				Amount:     amount,
				Currency:   currency,
				Method:     dto.MethodGeneric,
				Context:    "selector " + selector,
				Confidence: genericConfidence,
			})
			return true
		})
	}

	return candidates, dto.ProductMeta{}
}

// priceTextOf prefers a content/data attribute over element text, since
// meta-style markers carry the machine-readable value there.
func priceTextOf(s *goquery.Selection) string {
	for _, attr := range []string{"content", "data-price", "data-product-price", "data-price-amount"} {
		if v, ok := s.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return strings.TrimSpace(s.Text())
}

// isStrikethroughContext checks the element and its ancestry for classes that
// mark an original/was price, plus literal <s>/<del>/<strike> wrappers.
func isStrikethroughContext(s *goquery.Selection) bool {
	if cls, ok := s.Attr("class"); ok && excludedClassPattern.MatchString(cls) {
		return true
	}

	excluded := false
	s.Parents().EachWithBreak(func(_ int, p *goquery.Selection) bool {
		if goquery.NodeName(p) == "s" || goquery.NodeName(p) == "del" || goquery.NodeName(p) == "strike" {
			excluded = true
			return false
		}
		if cls, ok := p.Attr("class"); ok && excludedClassPattern.MatchString(cls) {
			excluded = true
			return false
		}
		return true
	})
	return excluded
}
