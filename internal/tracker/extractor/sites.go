package extractor

import (
	"net/url"
	"strings"

	"golang-price-watcher/internal/tracker/dto"
	"golang-price-watcher/pkg/logger"

	"github.com/PuerkitoBio/goquery"
)

const siteSpecificConfidence = 0.85

// siteEntry pairs a URL matcher with a retailer-specific scrape function.
// The table is ordered; the first matching entry wins.
type siteEntry struct {
	name    string
	matches func(host string) bool
	scrape  func(doc *goquery.Document) ([]dto.PriceCandidate, dto.ProductMeta)
}

// SiteSpecificExtractor dispatches to per-retailer scrapers that know each
// site's markup idioms: buy-box containers, hidden other-seller blocks,
// whole+fraction price splits.
type SiteSpecificExtractor struct {
	sites  []siteEntry
	logger *logger.Logger
}

// NewSiteSpecificExtractor builds the static retailer table.
func NewSiteSpecificExtractor(log *logger.Logger) *SiteSpecificExtractor {
	e := &SiteSpecificExtractor{logger: log}
	e.sites = []siteEntry{
		{name: "amazon", matches: hostContains("amazon."), scrape: scrapeAmazon},
		{name: "bestbuy", matches: hostContains("bestbuy."), scrape: scrapeBestBuy},
		{name: "walmart", matches: hostContains("walmart."), scrape: scrapeWalmart},
		{name: "ebay", matches: hostContains("ebay."), scrape: scrapeEbay},
		{name: "newegg", matches: hostContains("newegg."), scrape: scrapeNewegg},
	}
	return e
}

// Method returns the extraction method tag.
func (e *SiteSpecificExtractor) Method() dto.ExtractionMethod {
	return dto.MethodSiteSpecific
}

// Extract runs the first matching retailer scraper, if any.
func (e *SiteSpecificExtractor) Extract(doc *goquery.Document, pageURL string) ([]dto.PriceCandidate, dto.ProductMeta) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return nil, dto.ProductMeta{}
	}
	host := strings.ToLower(parsed.Hostname())

	for _, site := range e.sites {
		if site.matches(host) {
			cands, meta := site.scrape(doc)
			e.logger.Debug("Site-specific extraction",
				logger.StringField("site", site.name),
				logger.IntField("candidates", len(cands)),
			)
			return cands, meta
		}
	}
	return nil, dto.ProductMeta{}
}

func hostContains(fragment string) func(string) bool {
	return func(host string) bool {
		return strings.Contains(host, fragment)
	}
}

func siteCandidate(text, context string) (dto.PriceCandidate, bool) {
	amount, currency, ok := ParsePrice(text)
	if !ok {
		return dto.PriceCandidate{}, false
	}
	return dto.PriceCandidate{
		Amount:     amount,
		Currency:   currency,
		Method:     dto.MethodSiteSpecific,
		Context:    context,
		Confidence: siteSpecificConfidence,
	}, true
}

// scrapeAmazon reads the buy-box price, falling back to the whole+fraction
// split, and additionally surfaces the used/other-sellers price when present.
// Coupon and savings badges are actively excluded.
func scrapeAmazon(doc *goquery.Document) ([]dto.PriceCandidate, dto.ProductMeta) {
	var candidates []dto.PriceCandidate

	buyBox := doc.Find("#corePriceDisplay_desktop_feature_div, #corePrice_feature_div, #apex_desktop").First()
	if buyBox.Length() == 0 {
		buyBox = doc.Selection
	}

	priceText := ""
	buyBox.Find(".a-price .a-offscreen").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if insideExcludedAmazonBlock(s) {
			return true
		}
		priceText = strings.TrimSpace(s.Text())
		return priceText == ""
	})

	// Whole+fraction split when the offscreen text is absent.
	if priceText == "" {
		whole := strings.TrimSpace(buyBox.Find(".a-price-whole").First().Text())
		if whole != "" {
			whole = strings.TrimSuffix(strings.ReplaceAll(whole, ",", ""), ".")
			fraction := strings.TrimSpace(buyBox.Find(".a-price-fraction").First().Text())
			if fraction == "" {
				fraction = "00"
			}
			priceText = whole + "." + fraction
		}
	}

	if c, ok := siteCandidate(priceText, "amazon buy box"); ok {
		candidates = append(candidates, c)
	}

	// Used / other sellers is a genuine second price, not noise.
	usedText := strings.TrimSpace(doc.Find("#usedBuySection .a-color-price, #olpLinkWidget_feature_div .a-color-price").First().Text())
	if c, ok := siteCandidate(usedText, "amazon used/other sellers"); ok {
		candidates = append(candidates, c)
	}

	meta := dto.ProductMeta{
		Name: strings.TrimSpace(doc.Find("#productTitle").First().Text()),
	}
	if src, ok := doc.Find("#landingImage").Attr("src"); ok {
		meta.ImageURL = src
	}

	return candidates, meta
}

func insideExcludedAmazonBlock(s *goquery.Selection) bool {
	excluded := false
	s.ParentsFiltered(".promoPriceBlockMessage, #couponBadgeRegularVpc, .savingsPercentage, #subscriptionPrice, .basisPrice").
		EachWithBreak(func(_ int, _ *goquery.Selection) bool {
			excluded = true
			return false
		})
	return excluded
}

func scrapeBestBuy(doc *goquery.Document) ([]dto.PriceCandidate, dto.ProductMeta) {
	var candidates []dto.PriceCandidate

	priceText := strings.TrimSpace(doc.Find(".priceView-hero-price span[aria-hidden='true'], .priceView-customer-price span[aria-hidden='true']").First().Text())
	if priceText == "" {
		priceText = strings.TrimSpace(doc.Find("div.pricing-price .priceView-purchase-price").First().Text())
	}
	if c, ok := siteCandidate(priceText, "bestbuy customer price"); ok {
		candidates = append(candidates, c)
	}

	openBox := strings.TrimSpace(doc.Find(".open-box-lowest-price .price, a[data-track='Open-Box'] .price").First().Text())
	if c, ok := siteCandidate(openBox, "bestbuy open box"); ok {
		candidates = append(candidates, c)
	}

	meta := dto.ProductMeta{
		Name: strings.TrimSpace(doc.Find("h1.heading-5, .sku-title h1").First().Text()),
	}
	if src, ok := doc.Find("img.primary-image").Attr("src"); ok {
		meta.ImageURL = src
	}

	return candidates, meta
}

func scrapeWalmart(doc *goquery.Document) ([]dto.PriceCandidate, dto.ProductMeta) {
	var candidates []dto.PriceCandidate

	priceText := strings.TrimSpace(doc.Find(`[itemprop="price"], [data-testid="price-wrap"] span.w_iUH7`).First().Text())
	if priceText == "" {
		if v, ok := doc.Find(`meta[itemprop="price"]`).Attr("content"); ok {
			priceText = v
		}
	}
	if c, ok := siteCandidate(priceText, "walmart buy box"); ok {
		candidates = append(candidates, c)
	}

	meta := dto.ProductMeta{
		Name: strings.TrimSpace(doc.Find(`h1[itemprop="name"], h1#main-title`).First().Text()),
	}
	if src, ok := doc.Find(`[data-testid="hero-image"] img, img[data-seo-id="hero-image"]`).Attr("src"); ok {
		meta.ImageURL = src
	}

	return candidates, meta
}

func scrapeEbay(doc *goquery.Document) ([]dto.PriceCandidate, dto.ProductMeta) {
	var candidates []dto.PriceCandidate

	priceText := strings.TrimSpace(doc.Find(".x-price-primary .ux-textspans, #prcIsum").First().Text())
	if c, ok := siteCandidate(priceText, "ebay primary price"); ok {
		candidates = append(candidates, c)
	}

	meta := dto.ProductMeta{
		Name: strings.TrimSpace(doc.Find(".x-item-title__mainTitle .ux-textspans, h1#itemTitle").First().Text()),
	}
	if src, ok := doc.Find("#icImg, .ux-image-carousel-item img").Attr("src"); ok {
		meta.ImageURL = src
	}

	return candidates, meta
}

func scrapeNewegg(doc *goquery.Document) ([]dto.PriceCandidate, dto.ProductMeta) {
	var candidates []dto.PriceCandidate

	priceCell := doc.Find(".price-current").First()
	whole := strings.TrimSpace(priceCell.Find("strong").Text())
	fraction := strings.TrimSpace(priceCell.Find("sup").Text())
	if whole != "" {
		if c, ok := siteCandidate(whole+fraction, "newegg current price"); ok {
			candidates = append(candidates, c)
		}
	}

	meta := dto.ProductMeta{
		Name: strings.TrimSpace(doc.Find("h1.product-title").First().Text()),
	}
	if src, ok := doc.Find(".product-view-img-original").Attr("src"); ok {
		meta.ImageURL = src
	}

	return candidates, meta
}
