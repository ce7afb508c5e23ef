package extractor

import (
	"strings"

	"golang-price-watcher/internal/tracker/dto"
	"golang-price-watcher/pkg/logger"

	"github.com/PuerkitoBio/goquery"
)

// Extractor proposes zero or more price candidates from a fetched document,
// plus any product metadata it can contribute.
type Extractor interface {
	Method() dto.ExtractionMethod
	Extract(doc *goquery.Document, pageURL string) ([]dto.PriceCandidate, dto.ProductMeta)
}

// Registry runs all extractors against one document and merges their output.
type Registry struct {
	extractors []Extractor
	logger     *logger.Logger
}

// NewRegistry builds the default extractor set in priority order:
// structured-data first, then site-specific, then generic.
func NewRegistry(log *logger.Logger) *Registry {
	return &Registry{
		extractors: []Extractor{
			NewStructuredDataExtractor(log),
			NewSiteSpecificExtractor(log),
			NewGenericExtractor(log),
		},
		logger: log,
	}
}

// ExtractAll runs every extractor independently and returns the merged
// candidate list in stable discovery order. Metadata is filled
// first-writer-wins in extractor priority order, with page meta tags as the
// final fallback.
func (r *Registry) ExtractAll(doc *goquery.Document, pageURL string) ([]dto.PriceCandidate, dto.ProductMeta) {
	var candidates []dto.PriceCandidate
	var meta dto.ProductMeta

	for _, e := range r.extractors {
		cands, m := e.Extract(doc, pageURL)
		for _, c := range cands {
			if c.Amount <= 0 {
				continue
			}
			candidates = append(candidates, c)
		}
		meta.Merge(m)
	}

	meta.Merge(metaFromPageTags(doc))

	r.logger.Debug("Extraction pass complete",
		logger.StringField("url", pageURL),
		logger.IntField("candidates", len(candidates)),
	)

	return candidates, meta
}

// metaFromPageTags is the lowest-priority metadata provider: OpenGraph and
// plain <title>/<img> fallbacks.
func metaFromPageTags(doc *goquery.Document) dto.ProductMeta {
	var meta dto.ProductMeta

	if v, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok {
		meta.Name = strings.TrimSpace(v)
	}
	if meta.Name == "" {
		meta.Name = strings.TrimSpace(doc.Find("title").First().Text())
	}

	if v, ok := doc.Find(`meta[property="og:image"]`).Attr("content"); ok {
		meta.ImageURL = strings.TrimSpace(v)
	}

	return meta
}
