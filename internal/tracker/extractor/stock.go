package extractor

import (
	"regexp"
	"strings"

	"golang-price-watcher/internal/tracker/dto"
	"golang-price-watcher/pkg/logger"

	"github.com/PuerkitoBio/goquery"
	"github.com/mauidude/go-readability"
)

var (
	availabilityInStock    = regexp.MustCompile(`(?i)(InStock|LimitedAvailability|OnlineOnly|InStoreOnly)`)
	availabilityOutOfStock = regexp.MustCompile(`(?i)(OutOfStock|SoldOut|Discontinued|PreOrder|PreSale|BackOrder)`)

	// Hard pre-order/waitlist badges and button text.
	preorderPattern = regexp.MustCompile(`(?i)(pre-?order|coming soon|notify me when available|join (the )?waitlist|sign up for (stock )?alerts|release[sd]? on)`)

	// Soft availability phrasing. "available in stock" contains "available in",
	// so this alone never beats a real in-stock signal.
	softAvailabilityPattern = regexp.MustCompile(`(?i)\bavailable\s+(in|from|on)\b`)

	strongInStockPattern = regexp.MustCompile(`(?i)(\bin stock\b|\bships today\b|\bships tomorrow\b|\bready to ship\b)`)

	addToCartPattern = regexp.MustCompile(`(?i)(add[ \-_]?to[ \-_]?(cart|basket|bag)|buy[ \-_]?now|buy it now)`)

	outOfStockBadgePattern = regexp.MustCompile(`(?i)(out[ \-_]?of[ \-_]?stock|sold[ \-_]?out|unavailable)`)

	// Exact phrases strong enough to call out-of-stock from text alone. Only
	// searched within the main product region so recommendation widgets
	// ("customers also bought, currently out of stock") can't poison the call.
	outOfStockPhrases = []string{
		"currently out of stock",
		"this item is currently out of stock",
		"temporarily out of stock",
		"currently unavailable",
		"out of stock online",
		"sold out",
		"no longer available",
	}
)

// StockInferencer derives in-stock/out-of-stock/unknown from one fetched
// document. It is deliberately conservative: when no signal is decisive it
// answers unknown rather than guessing.
type StockInferencer struct {
	logger *logger.Logger
}

// NewStockInferencer creates a stock status inferencer.
func NewStockInferencer(log *logger.Logger) *StockInferencer {
	return &StockInferencer{logger: log}
}

// Infer applies the precedence ladder:
//  1. structured-data availability (authoritative)
//  2. pre-order badges, unless a stronger in-stock signal is present
//  3. a genuine add-to-cart control
//  4. explicit out-of-stock badges
//  5. strong phrases scoped to the main product region
//  6. unknown
func (si *StockInferencer) Infer(doc *goquery.Document, rawHTML string) dto.StockStatus {
	if status, ok := structuredAvailability(doc); ok {
		return status
	}

	hasCart := hasAddToCartControl(doc)
	pageText := doc.Text()
	strongInStock := hasCart || strongInStockPattern.MatchString(pageText)

	if (hasPreorderBadge(doc) || softAvailabilityPattern.MatchString(controlText(doc))) && !strongInStock {
		return dto.StockStatusOutOfStock
	}

	if hasCart {
		return dto.StockStatusInStock
	}

	if hasOutOfStockBadge(doc) {
		return dto.StockStatusOutOfStock
	}

	region := mainProductRegionText(rawHTML, doc)
	for _, phrase := range outOfStockPhrases {
		if strings.Contains(region, phrase) {
			return dto.StockStatusOutOfStock
		}
	}

	return dto.StockStatusUnknown
}

// structuredAvailability reads the schema.org offer availability field.
// Pre-order and discontinued map to out-of-stock: the item cannot be bought
// right now.
func structuredAvailability(doc *goquery.Document) (dto.StockStatus, bool) {
	for _, p := range parseStructuredProducts(doc) {
		if p.Availability == "" {
			continue
		}
		if availabilityInStock.MatchString(p.Availability) {
			return dto.StockStatusInStock, true
		}
		if availabilityOutOfStock.MatchString(p.Availability) {
			return dto.StockStatusOutOfStock, true
		}
	}

	// Microdata fallback.
	if href, ok := doc.Find(`link[itemprop="availability"], [itemprop="availability"]`).Attr("href"); ok {
		if availabilityInStock.MatchString(href) {
			return dto.StockStatusInStock, true
		}
		if availabilityOutOfStock.MatchString(href) {
			return dto.StockStatusOutOfStock, true
		}
	}

	return dto.StockStatusUnknown, false
}

// hasAddToCartControl looks for an enabled, non-preorder purchase control.
func hasAddToCartControl(doc *goquery.Document) bool {
	found := false
	doc.Find("button, input[type='submit'], a").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		label := controlLabel(s)
		if !addToCartPattern.MatchString(label) {
			return true
		}
		if preorderPattern.MatchString(label) {
			return true
		}
		if _, disabled := s.Attr("disabled"); disabled {
			return true
		}
		if cls, ok := s.Attr("class"); ok && strings.Contains(strings.ToLower(cls), "disabled") {
			return true
		}
		found = true
		return false
	})
	return found
}

func hasPreorderBadge(doc *goquery.Document) bool {
	return preorderPattern.MatchString(controlText(doc))
}

func hasOutOfStockBadge(doc *goquery.Document) bool {
	found := false
	doc.Find("[class], [id]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		marker, _ := s.Attr("class")
		if id, ok := s.Attr("id"); ok {
			marker += " " + id
		}
		if outOfStockBadgePattern.MatchString(marker) && strings.TrimSpace(s.Text()) != "" {
			found = true
			return false
		}
		return true
	})
	return found
}

// controlText concatenates the labels of all UI controls and badges, the
// surface where pre-order wording shows up.
func controlText(doc *goquery.Document) string {
	var sb strings.Builder
	doc.Find("button, input[type='submit'], a, [class*='badge'], [class*='availability'], [class*='stock']").Each(func(_ int, s *goquery.Selection) {
		sb.WriteString(controlLabel(s))
		sb.WriteString(" ")
	})
	return sb.String()
}

func controlLabel(s *goquery.Selection) string {
	label := s.Text()
	if v, ok := s.Attr("value"); ok {
		label += " " + v
	}
	if v, ok := s.Attr("aria-label"); ok {
		label += " " + v
	}
	if v, ok := s.Attr("id"); ok {
		label += " " + v
	}
	if v, ok := s.Attr("class"); ok {
		label += " " + v
	}
	return label
}

// mainProductRegionText isolates the main product region with readability so
// phrase heuristics don't match unrelated recommendation widgets. Falls back
// to the full document text when readability can't parse the page.
func mainProductRegionText(rawHTML string, doc *goquery.Document) string {
	if rawHTML != "" {
		if rdoc, err := readability.NewDocument(rawHTML); err == nil {
			content := rdoc.Content()
			if cdoc, err := goquery.NewDocumentFromReader(strings.NewReader(content)); err == nil {
				if text := strings.TrimSpace(cdoc.Text()); text != "" {
					return strings.ToLower(text)
				}
			}
		}
	}

	main := doc.Find("main, #main, [role='main'], #dp-container, #centerCol").First()
	if main.Length() > 0 {
		return strings.ToLower(main.Text())
	}
	return strings.ToLower(doc.Text())
}
