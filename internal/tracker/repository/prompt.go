package repository

import (
	"encoding/json"
	"fmt"

	"golang-price-watcher/internal/tracker/dto"
)

// BuildExtractPrompt asks the oracle to read a product page from scratch.
func BuildExtractPrompt(html string) string {
	return fmt.Sprintf(`You are a product page analyzer. Extract the product information from the HTML below.

Respond with ONLY a JSON object, no markdown, in this exact shape:
{
  "name": "product name",
  "price": 0.0,
  "currency": "USD",
  "image_url": "",
  "stock_status": "in_stock|out_of_stock|unknown",
  "confidence": 0.0
}

Rules:
- "price" is the current buyable price of the main product, never a crossed-out, bundle, or financing price.
- "confidence" is your certainty in [0,1].
- Use "unknown" for stock_status when the page is not decisive.

HTML:
%s`, html)
}

// BuildVerifyPrompt asks the oracle to judge a price another extractor chose.
func BuildVerifyPrompt(html string, claimedPrice float64, currency string) string {
	return fmt.Sprintf(`You are verifying a scraped product price. The scraper claims the current price is %.2f %s.

Inspect the HTML below and respond with ONLY a JSON object, no markdown:
{
  "is_correct": true,
  "suggested_price": 0.0,
  "stock_status": "in_stock|out_of_stock|unknown",
  "confidence": 0.0,
  "reason": "short explanation"
}

Rules:
- "is_correct" is true when %.2f %s is the actual current price of the main product.
- When it is wrong, put the real price in "suggested_price"; otherwise leave it 0.
- Never treat financing, per-month, crossed-out or bundle prices as the current price.

HTML:
%s`, claimedPrice, currency, claimedPrice, currency, html)
}

// BuildArbitratePrompt asks the oracle to pick among disagreeing candidates.
func BuildArbitratePrompt(html string, candidates []dto.PriceCandidate) string {
	list, _ := json.Marshal(candidates)
	return fmt.Sprintf(`Multiple scrapers disagree about the current price on this product page. The candidates are:

%s

Inspect the HTML below and pick the candidate that is the actual current buyable price of the main product. Respond with ONLY a JSON object, no markdown:
{
  "selected_index": 0,
  "confidence": 0.0,
  "reason": "short explanation"
}

"selected_index" is the zero-based index into the candidate list above.

HTML:
%s`, string(list), html)
}

// BuildVariantStockPrompt asks whether a specific variant is purchasable.
// Page-level availability can differ per variant, so the question is scoped
// to the variant priced at the anchor.
func BuildVariantStockPrompt(html string, price float64, currency string) string {
	return fmt.Sprintf(`This product page may offer several variants. Determine whether the variant priced at %.2f %s can actually be purchased right now.

Respond with ONLY a JSON object, no markdown:
{
  "purchasable": true,
  "confidence": 0.0,
  "reason": "short explanation"
}

HTML:
%s`, price, currency, html)
}
