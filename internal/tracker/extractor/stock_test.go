package extractor

import (
	"testing"

	"golang-price-watcher/internal/tracker/dto"
	"golang-price-watcher/pkg/logger"

	"github.com/stretchr/testify/assert"
)

func inferStatus(t *testing.T, html string) dto.StockStatus {
	t.Helper()
	si := NewStockInferencer(logger.NewNop())
	return si.Infer(docFromHTML(t, html), "")
}

func TestStockInferencer_StructuredAvailabilityIsAuthoritative(t *testing.T) {
	// Structured data says in stock even though the page text says otherwise.
	html := `<html><head><script type="application/ld+json">
	{"@type": "Product", "name": "W", "offers": {"price": 10, "availability": "https://schema.org/InStock"}}
	</script></head><body><div>Sold out</div></body></html>`

	assert.Equal(t, dto.StockStatusInStock, inferStatus(t, html))
}

func TestStockInferencer_StructuredOutOfStockBeatsCartButton(t *testing.T) {
	html := `<html><head><script type="application/ld+json">
	{"@type": "Product", "name": "W", "offers": {"price": 10, "availability": "https://schema.org/OutOfStock"}}
	</script></head><body><button>Add to Cart</button></body></html>`

	assert.Equal(t, dto.StockStatusOutOfStock, inferStatus(t, html))
}

func TestStockInferencer_PreOrderMapsToOutOfStock(t *testing.T) {
	html := `<html><body><button>Pre-order now</button></body></html>`
	assert.Equal(t, dto.StockStatusOutOfStock, inferStatus(t, html))

	html = `<html><body><div class="badge">Coming soon</div><button>Notify me when available</button></body></html>`
	assert.Equal(t, dto.StockStatusOutOfStock, inferStatus(t, html))
}

func TestStockInferencer_FutureAvailabilityWithoutStrongSignal(t *testing.T) {
	html := `<html><body><div class="availability">Available in November</div></body></html>`
	assert.Equal(t, dto.StockStatusOutOfStock, inferStatus(t, html))
}

func TestStockInferencer_AvailableInStockIsNotOutOfStock(t *testing.T) {
	// "Available in stock" contains "available in"; the strong in-stock
	// phrase must win.
	html := `<html><body>
	<div class="availability">Available in stock</div>
	<button>Add to Cart</button>
	</body></html>`

	assert.Equal(t, dto.StockStatusInStock, inferStatus(t, html))
}

func TestStockInferencer_EnabledCartControl(t *testing.T) {
	html := `<html><body><button id="add-to-cart-button">Add to Cart</button></body></html>`
	assert.Equal(t, dto.StockStatusInStock, inferStatus(t, html))
}

func TestStockInferencer_DisabledCartControlIsNotInStock(t *testing.T) {
	html := `<html><body><button disabled>Add to Cart</button></body></html>`
	assert.NotEqual(t, dto.StockStatusInStock, inferStatus(t, html))
}

func TestStockInferencer_OutOfStockBadge(t *testing.T) {
	html := `<html><body><div class="out-of-stock">This item is unavailable</div></body></html>`
	assert.Equal(t, dto.StockStatusOutOfStock, inferStatus(t, html))
}

func TestStockInferencer_PhraseScopedToMainRegion(t *testing.T) {
	// The out-of-stock phrase appears only in a recommendation widget
	// outside the main product region, so it must not poison the call.
	html := `<html><body>
	<main><h1>Acme Widget</h1><p>Great product.</p></main>
	<div class="recommendations">Customers also bought: Other Widget, currently out of stock.</div>
	</body></html>`

	assert.Equal(t, dto.StockStatusUnknown, inferStatus(t, html))
}

func TestStockInferencer_PhraseInsideMainRegion(t *testing.T) {
	html := `<html><body>
	<main><h1>Acme Widget</h1><p>This item is currently out of stock.</p></main>
	</body></html>`

	assert.Equal(t, dto.StockStatusOutOfStock, inferStatus(t, html))
}

func TestStockInferencer_NoSignalsIsUnknown(t *testing.T) {
	html := `<html><body><h1>Acme Widget</h1><p>A great product.</p></body></html>`
	assert.Equal(t, dto.StockStatusUnknown, inferStatus(t, html))
}
