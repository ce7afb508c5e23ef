package extractor

import (
	"encoding/json"
	"strconv"
	"strings"

	"golang-price-watcher/internal/tracker/dto"
	"golang-price-watcher/pkg/logger"

	"github.com/PuerkitoBio/goquery"
)

const structuredDataConfidence = 0.9

// structuredProduct is a schema.org Product block flattened to the fields
// the tracker cares about.
type structuredProduct struct {
	Name         string
	ImageURL     string
	Price        float64
	Currency     string
	Availability string
}

// StructuredDataExtractor reads embedded JSON-LD product/offer blocks. These
// are retailer-asserted and get the highest confidence.
type StructuredDataExtractor struct {
	logger *logger.Logger
}

// NewStructuredDataExtractor creates the JSON-LD extractor.
func NewStructuredDataExtractor(log *logger.Logger) *StructuredDataExtractor {
	return &StructuredDataExtractor{logger: log}
}

// Method returns the extraction method tag.
func (e *StructuredDataExtractor) Method() dto.ExtractionMethod {
	return dto.MethodStructuredData
}

// Extract proposes one candidate per structured product offer found.
func (e *StructuredDataExtractor) Extract(doc *goquery.Document, pageURL string) ([]dto.PriceCandidate, dto.ProductMeta) {
	var candidates []dto.PriceCandidate
	var meta dto.ProductMeta

	for _, p := range parseStructuredProducts(doc) {
		meta.Merge(dto.ProductMeta{Name: p.Name, ImageURL: p.ImageURL})
		if p.Price <= 0 {
			continue
		}
		currency := p.Currency
		if currency == "" {
			currency = "USD"
		}
		candidates = append(candidates, dto.PriceCandidate{
			Amount:     p.Price,
			Currency:   currency,
			Method:     dto.MethodStructuredData,
			Context:    "json-ld offer",
			Confidence: structuredDataConfidence,
		})
	}

	return candidates, meta
}

// parseStructuredProducts walks every JSON-LD block on the page and collects
// schema.org Product entries. Malformed blocks are skipped, not fatal.
func parseStructuredProducts(doc *goquery.Document) []structuredProduct {
	var products []structuredProduct

	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var raw interface{}
		if err := json.Unmarshal([]byte(s.Text()), &raw); err != nil {
			return
		}
		collectProducts(raw, &products)
	})

	return products
}

// collectProducts recurses through JSON-LD values, including @graph arrays
// and top-level arrays, picking out Product nodes.
func collectProducts(v interface{}, out *[]structuredProduct) {
	switch node := v.(type) {
	case []interface{}:
		for _, item := range node {
			collectProducts(item, out)
		}
	case map[string]interface{}:
		if graph, ok := node["@graph"]; ok {
			collectProducts(graph, out)
		}
		if isProductNode(node) {
			if p, ok := productFromNode(node); ok {
				*out = append(*out, p)
			}
		}
	}
}

func isProductNode(node map[string]interface{}) bool {
	switch t := node["@type"].(type) {
	case string:
		return strings.EqualFold(t, "Product")
	case []interface{}:
		for _, v := range t {
			if s, ok := v.(string); ok && strings.EqualFold(s, "Product") {
				return true
			}
		}
	}
	return false
}

func productFromNode(node map[string]interface{}) (structuredProduct, bool) {
	p := structuredProduct{
		Name:     stringField(node, "name"),
		ImageURL: imageField(node["image"]),
	}

	offers := node["offers"]
	if offers == nil {
		return p, p.Name != ""
	}

	switch o := offers.(type) {
	case map[string]interface{}:
		fillFromOffer(&p, o)
	case []interface{}:
		// Take the first offer that yields a price.
		for _, item := range o {
			if m, ok := item.(map[string]interface{}); ok {
				fillFromOffer(&p, m)
				if p.Price > 0 {
					break
				}
			}
		}
	}

	return p, true
}

// fillFromOffer applies the price precedence: lowPrice over price over a
// nested priceSpecification price.
func fillFromOffer(p *structuredProduct, offer map[string]interface{}) {
	if v, ok := numericField(offer, "lowPrice"); ok {
		p.Price = v
	} else if v, ok := numericField(offer, "price"); ok {
		p.Price = v
	} else if spec, ok := offer["priceSpecification"].(map[string]interface{}); ok {
		if v, ok := numericField(spec, "price"); ok {
			p.Price = v
		}
		if p.Currency == "" {
			p.Currency = stringField(spec, "priceCurrency")
		}
	}

	if c := stringField(offer, "priceCurrency"); c != "" {
		p.Currency = c
	}
	if a := stringField(offer, "availability"); a != "" {
		p.Availability = a
	}
}

func stringField(node map[string]interface{}, key string) string {
	if s, ok := node[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

func numericField(node map[string]interface{}, key string) (float64, bool) {
	switch v := node[key].(type) {
	case float64:
		if v > 0 {
			return v, true
		}
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && f > 0 {
			return f, true
		}
	}
	return 0, false
}

func imageField(v interface{}) string {
	switch img := v.(type) {
	case string:
		return strings.TrimSpace(img)
	case []interface{}:
		if len(img) > 0 {
			if s, ok := img[0].(string); ok {
				return strings.TrimSpace(s)
			}
		}
	case map[string]interface{}:
		return stringField(img, "url")
	}
	return ""
}
