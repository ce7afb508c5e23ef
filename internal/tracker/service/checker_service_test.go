package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"golang-price-watcher/internal/entity"
	"golang-price-watcher/internal/tracker/config"
	"golang-price-watcher/internal/tracker/dto"
	"golang-price-watcher/internal/tracker/extractor"
	"golang-price-watcher/internal/tracker/fetcher"
	"golang-price-watcher/internal/tracker/repository"
	"golang-price-watcher/pkg/logger"
	"golang-price-watcher/pkg/telegram"
	"golang-price-watcher/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeItemRepo struct {
	items   map[uint]*entity.TrackedItem
	updates []map[string]interface{}
}

func newFakeItemRepo() *fakeItemRepo {
	return &fakeItemRepo{items: make(map[uint]*entity.TrackedItem)}
}

func (r *fakeItemRepo) Create(ctx context.Context, item *entity.TrackedItem) error {
	r.items[item.ID] = item
	return nil
}

func (r *fakeItemRepo) GetByID(ctx context.Context, id uint) (*entity.TrackedItem, error) {
	return r.items[id], nil
}

func (r *fakeItemRepo) GetAll(ctx context.Context) ([]entity.TrackedItem, error) {
	var out []entity.TrackedItem
	for _, i := range r.items {
		out = append(out, *i)
	}
	return out, nil
}

func (r *fakeItemRepo) GetDueItems(ctx context.Context, now time.Time) ([]entity.TrackedItem, error) {
	return r.GetAll(ctx)
}

func (r *fakeItemRepo) UpdateFields(ctx context.Context, id uint, fields map[string]interface{}) error {
	r.updates = append(r.updates, fields)
	return nil
}

func (r *fakeItemRepo) Delete(ctx context.Context, id uint) error {
	delete(r.items, id)
	return nil
}

func (r *fakeItemRepo) lastUpdate() map[string]interface{} {
	if len(r.updates) == 0 {
		return nil
	}
	return r.updates[len(r.updates)-1]
}

type fakePriceRepo struct {
	history []entity.PriceObservation
}

func (r *fakePriceRepo) GetLatest(ctx context.Context, itemID uint) (*entity.PriceObservation, error) {
	if len(r.history) == 0 {
		return nil, nil
	}
	latest := r.history[len(r.history)-1]
	return &latest, nil
}

func (r *fakePriceRepo) CreateIfChanged(ctx context.Context, obs *entity.PriceObservation) (bool, error) {
	if latest, _ := r.GetLatest(ctx, obs.ItemID); latest != nil && latest.Amount == obs.Amount {
		return false, nil
	}
	r.history = append(r.history, *obs)
	return true, nil
}

func (r *fakePriceRepo) GetHistory(ctx context.Context, itemID uint, limit int) ([]entity.PriceObservation, error) {
	return r.history, nil
}

type fakeStockRepo struct {
	created []entity.StockStatusObservation
}

func (r *fakeStockRepo) Create(ctx context.Context, obs *entity.StockStatusObservation) error {
	r.created = append(r.created, *obs)
	return nil
}

func (r *fakeStockRepo) GetHistory(ctx context.Context, itemID uint, limit int) ([]entity.StockStatusObservation, error) {
	return r.created, nil
}

type fakePageFetcher struct {
	html           string
	renderedHTML   string
	rerenderCalled bool
}

func (f *fakePageFetcher) Fetch(ctx context.Context, url string) (*fetcher.Result, error) {
	return &fetcher.Result{HTML: f.html, StatusCode: 200}, nil
}

func (f *fakePageFetcher) Rerender(ctx context.Context, url string, previous *fetcher.Result) (*fetcher.Result, error) {
	f.rerenderCalled = true
	if f.renderedHTML == "" {
		return nil, fmt.Errorf("no renderer")
	}
	return &fetcher.Result{HTML: f.renderedHTML, StatusCode: 200, Rendered: true}, nil
}

type fakeOracle struct {
	verification   *dto.OracleVerification
	arbitration    *dto.OracleArbitration
	stockCheck     *dto.OracleStockCheck
	verifyCalls    int
	arbitrateCalls int
	variantCalls   int
}

func (o *fakeOracle) Extract(ctx context.Context, html string) (*dto.OracleExtraction, error) {
	return nil, fmt.Errorf("not configured")
}

func (o *fakeOracle) Verify(ctx context.Context, html string, claimedPrice float64, currency string) (*dto.OracleVerification, error) {
	o.verifyCalls++
	if o.verification == nil {
		return nil, fmt.Errorf("not configured")
	}
	return o.verification, nil
}

func (o *fakeOracle) Arbitrate(ctx context.Context, html string, candidates []dto.PriceCandidate) (*dto.OracleArbitration, error) {
	o.arbitrateCalls++
	if o.arbitration == nil {
		return nil, fmt.Errorf("not configured")
	}
	return o.arbitration, nil
}

func (o *fakeOracle) CheckVariantStock(ctx context.Context, html string, price float64, currency string) (*dto.OracleStockCheck, error) {
	o.variantCalls++
	if o.stockCheck == nil {
		return nil, fmt.Errorf("not configured")
	}
	return o.stockCheck, nil
}

type fakeNotifier struct {
	messages []string
}

func (n *fakeNotifier) SendMessage(text string) error {
	n.messages = append(n.messages, text)
	return nil
}

func (n *fakeNotifier) SendMessageUser(text string, telegramID int64) error {
	n.messages = append(n.messages, text)
	return nil
}

func testCheckerConfig() *config.Config {
	return &config.Config{
		Tracker: config.Tracker{
			JitterSpread:        300 * time.Second,
			OracleMinConfidence: 0.75,
		},
	}
}

type checkerFixture struct {
	checker   *CheckerService
	itemRepo  *fakeItemRepo
	priceRepo *fakePriceRepo
	stockRepo *fakeStockRepo
	fetcher   *fakePageFetcher
	oracle    *fakeOracle
	notifier  *fakeNotifier
}

// oracleOrNil avoids handing the checker a typed-nil interface.
func oracleOrNil(o *fakeOracle) repository.OracleRepository {
	if o == nil {
		return nil
	}
	return o
}

func notifierOrNil(n *fakeNotifier) telegram.Notifier {
	if n == nil {
		return nil
	}
	return n
}

func newCheckerFixture(html string, oracle *fakeOracle, notifier *fakeNotifier) *checkerFixture {
	log := logger.NewNop()
	fx := &checkerFixture{
		itemRepo:  newFakeItemRepo(),
		priceRepo: &fakePriceRepo{},
		stockRepo: &fakeStockRepo{},
		fetcher:   &fakePageFetcher{html: html},
		oracle:    oracle,
		notifier:  notifier,
	}

	fx.checker = NewCheckerService(
		testCheckerConfig(), log, fx.fetcher,
		extractor.NewRegistry(log), extractor.NewStockInferencer(log),
		oracleOrNil(fx.oracle), fx.itemRepo, fx.priceRepo, fx.stockRepo,
		notifierOrNil(fx.notifier), nil,
	)
	return fx
}

func agreementPage(price string) string {
	return fmt.Sprintf(`<html><head>
	<title>Acme Widget</title>
	<script type="application/ld+json">
	{"@type": "Product", "name": "Acme Widget", "offers": {"price": %s, "priceCurrency": "USD", "availability": "https://schema.org/InStock"}}
	</script>
	</head><body>
	<span class="price">$%s</span>
	<button>Add to Cart</button>
	</body></html>`, price, price)
}

func splitPage() string {
	return `<html><head>
	<script type="application/ld+json">
	{"@type": "Product", "name": "Acme Widget", "offers": {"price": 40.00, "priceCurrency": "USD"}}
	</script>
	</head><body>
	<span class="price">$25.00</span>
	</body></html>`
}

func TestCheckItem_ConsensusRecordsObservation(t *testing.T) {
	fx := newCheckerFixture(agreementPage("29.99"), nil, nil)
	item := &entity.TrackedItem{ID: 1, URL: "https://shop.example.com/p/1", RefreshIntervalSeconds: 3600}

	obs, err := fx.checker.CheckItem(context.Background(), item, false)
	require.NoError(t, err)

	require.NotNil(t, obs.Price)
	assert.Equal(t, 29.99, obs.Price.Amount)
	assert.False(t, obs.NeedsReview)
	assert.Equal(t, dto.StockStatusInStock, obs.StockStatus)
	assert.Equal(t, "Acme Widget", obs.Name)

	require.Len(t, fx.priceRepo.history, 1)
	assert.Equal(t, 29.99, fx.priceRepo.history[0].Amount)

	fields := fx.itemRepo.lastUpdate()
	require.NotNil(t, fields)
	assert.Contains(t, fields, "last_checked_at")
	assert.Contains(t, fields, "next_check_at")
	assert.Equal(t, string(dto.MethodStructuredData), fields["preferred_method"])
}

func TestCheckItem_UnchangedPriceWritesNothing(t *testing.T) {
	fx := newCheckerFixture(agreementPage("29.99"), nil, nil)
	item := &entity.TrackedItem{ID: 1, URL: "https://shop.example.com/p/1", RefreshIntervalSeconds: 3600}

	_, err := fx.checker.CheckItem(context.Background(), item, false)
	require.NoError(t, err)
	_, err = fx.checker.CheckItem(context.Background(), item, false)
	require.NoError(t, err)

	// Same price observed twice appends exactly one history row.
	assert.Len(t, fx.priceRepo.history, 1)
}

func TestCheckItem_AnchorSkipsOracle(t *testing.T) {
	// Two variant prices on the page; the anchor pins the cheaper one.
	html := `<html><head>
	<script type="application/ld+json">
	{"@type": "Product", "name": "Widget 2-pack", "offers": {"price": 149.99, "priceCurrency": "USD", "availability": "https://schema.org/InStock"}}
	</script>
	</head><body><span class="price">$99.99</span></body></html>`

	oracle := &fakeOracle{}
	fx := newCheckerFixture(html, oracle, nil)
	item := &entity.TrackedItem{
		ID: 1, URL: "https://shop.example.com/p/1", RefreshIntervalSeconds: 3600,
		AnchorPrice: utils.ToPointer(99.99),
	}

	obs, err := fx.checker.CheckItem(context.Background(), item, false)
	require.NoError(t, err)

	require.NotNil(t, obs.Price)
	assert.Equal(t, 99.99, obs.Price.Amount)
	assert.Equal(t, "verified", obs.Provenance)

	// User-anchored results never consult the price oracle.
	assert.Zero(t, oracle.verifyCalls)
	assert.Zero(t, oracle.arbitrateCalls)
	// In-stock pages skip the variant stock question too.
	assert.Zero(t, oracle.variantCalls)
}

func TestCheckItem_NeedsReviewKeepsProvisionalPrice(t *testing.T) {
	fx := newCheckerFixture(splitPage(), nil, nil)
	item := &entity.TrackedItem{ID: 1, URL: "https://shop.example.com/p/1", RefreshIntervalSeconds: 3600}

	obs, err := fx.checker.CheckItem(context.Background(), item, false)
	require.NoError(t, err)

	assert.True(t, obs.NeedsReview)
	require.NotNil(t, obs.Price)
	assert.Equal(t, 40.00, obs.Price.Amount) // highest confidence candidate
	assert.Len(t, obs.Candidates, 2)
}

func TestCheckItem_PreferredMethodBreaksDisagreement(t *testing.T) {
	fx := newCheckerFixture(splitPage(), nil, nil)
	item := &entity.TrackedItem{
		ID: 1, URL: "https://shop.example.com/p/1", RefreshIntervalSeconds: 3600,
		PreferredMethod: string(dto.MethodStructuredData),
	}

	obs, err := fx.checker.CheckItem(context.Background(), item, false)
	require.NoError(t, err)

	assert.False(t, obs.NeedsReview)
	require.NotNil(t, obs.Price)
	assert.Equal(t, 40.00, obs.Price.Amount)
}

func TestCheckItem_OracleArbitratesDisagreement(t *testing.T) {
	oracle := &fakeOracle{arbitration: &dto.OracleArbitration{SelectedIndex: 1, Confidence: 0.9}}
	fx := newCheckerFixture(splitPage(), oracle, nil)
	item := &entity.TrackedItem{ID: 1, URL: "https://shop.example.com/p/1", RefreshIntervalSeconds: 3600}

	obs, err := fx.checker.CheckItem(context.Background(), item, false)
	require.NoError(t, err)

	assert.False(t, obs.NeedsReview)
	require.NotNil(t, obs.Price)
	assert.Equal(t, 25.00, obs.Price.Amount)
	assert.Equal(t, "ai-verified", obs.Provenance)
	assert.Equal(t, 1, oracle.arbitrateCalls)
}

func TestCheckItem_OracleCorrectsConsensusWinner(t *testing.T) {
	oracle := &fakeOracle{verification: &dto.OracleVerification{
		IsCorrect: false, SuggestedPrice: 24.99, Confidence: 0.9, Reason: "sale price in buy box",
	}}
	fx := newCheckerFixture(agreementPage("29.99"), oracle, nil)
	item := &entity.TrackedItem{ID: 1, URL: "https://shop.example.com/p/1", RefreshIntervalSeconds: 3600}

	obs, err := fx.checker.CheckItem(context.Background(), item, false)
	require.NoError(t, err)

	require.NotNil(t, obs.Price)
	assert.Equal(t, 24.99, obs.Price.Amount)
	assert.Equal(t, dto.MethodOracle, obs.Price.Method)
	assert.Equal(t, "ai-corrected", obs.Provenance)
}

func TestCheckItem_LowConfidenceOracleIsIgnored(t *testing.T) {
	oracle := &fakeOracle{verification: &dto.OracleVerification{
		IsCorrect: false, SuggestedPrice: 24.99, Confidence: 0.5,
	}}
	fx := newCheckerFixture(agreementPage("29.99"), oracle, nil)
	item := &entity.TrackedItem{ID: 1, URL: "https://shop.example.com/p/1", RefreshIntervalSeconds: 3600}

	obs, err := fx.checker.CheckItem(context.Background(), item, false)
	require.NoError(t, err)

	require.NotNil(t, obs.Price)
	assert.Equal(t, 29.99, obs.Price.Amount)
	assert.Empty(t, obs.Provenance)
}

func TestCheckItem_DisableAISkipsOracle(t *testing.T) {
	oracle := &fakeOracle{verification: &dto.OracleVerification{IsCorrect: true, Confidence: 0.9}}
	fx := newCheckerFixture(agreementPage("29.99"), oracle, nil)
	item := &entity.TrackedItem{
		ID: 1, URL: "https://shop.example.com/p/1", RefreshIntervalSeconds: 3600,
		DisableAI: true,
	}

	_, err := fx.checker.CheckItem(context.Background(), item, false)
	require.NoError(t, err)
	assert.Zero(t, oracle.verifyCalls)
}

func TestCheckItem_ManualCheckDoesNotRestampSchedule(t *testing.T) {
	fx := newCheckerFixture(agreementPage("29.99"), nil, nil)
	item := &entity.TrackedItem{ID: 1, URL: "https://shop.example.com/p/1", RefreshIntervalSeconds: 3600}

	_, err := fx.checker.CheckItem(context.Background(), item, true)
	require.NoError(t, err)

	fields := fx.itemRepo.lastUpdate()
	require.NotNil(t, fields)
	assert.Contains(t, fields, "last_checked_at")
	assert.NotContains(t, fields, "next_check_at")
}

func TestCheckItem_ZeroCandidatesTriggersRerender(t *testing.T) {
	fx := newCheckerFixture(`<html><body>loading...</body></html>`, nil, nil)
	fx.fetcher.renderedHTML = agreementPage("19.99")
	item := &entity.TrackedItem{ID: 1, URL: "https://shop.example.com/p/1", RefreshIntervalSeconds: 3600}

	obs, err := fx.checker.CheckItem(context.Background(), item, false)
	require.NoError(t, err)

	assert.True(t, fx.fetcher.rerenderCalled)
	require.NotNil(t, obs.Price)
	assert.Equal(t, 19.99, obs.Price.Amount)
}

func TestCheckItem_BackInStockTransition(t *testing.T) {
	notifier := &fakeNotifier{}
	fx := newCheckerFixture(agreementPage("29.99"), nil, notifier)
	item := &entity.TrackedItem{
		ID: 1, URL: "https://shop.example.com/p/1", RefreshIntervalSeconds: 3600,
		LastStockStatus:   string(dto.StockStatusOutOfStock),
		NotifyBackInStock: true,
	}

	_, err := fx.checker.CheckItem(context.Background(), item, false)
	require.NoError(t, err)

	require.Len(t, fx.stockRepo.created, 1)
	assert.Equal(t, string(dto.StockStatusInStock), fx.stockRepo.created[0].Status)
	assert.Equal(t, string(dto.StockStatusInStock), fx.itemRepo.lastUpdate()["last_stock_status"])
	assert.Len(t, notifier.messages, 1)
}

func TestCheckItem_PriceDropNotification(t *testing.T) {
	notifier := &fakeNotifier{}
	fx := newCheckerFixture(agreementPage("29.99"), nil, notifier)
	fx.priceRepo.history = []entity.PriceObservation{{ItemID: 1, Amount: 49.99, Currency: "USD"}}
	item := &entity.TrackedItem{
		ID: 1, URL: "https://shop.example.com/p/1", RefreshIntervalSeconds: 3600,
		PriceDropThreshold: utils.ToPointer(10.0),
	}

	_, err := fx.checker.CheckItem(context.Background(), item, false)
	require.NoError(t, err)
	assert.Len(t, notifier.messages, 1)
}

func TestCheckItem_SmallDropBelowThresholdIsSilent(t *testing.T) {
	notifier := &fakeNotifier{}
	fx := newCheckerFixture(agreementPage("29.99"), nil, notifier)
	fx.priceRepo.history = []entity.PriceObservation{{ItemID: 1, Amount: 31.99, Currency: "USD"}}
	item := &entity.TrackedItem{
		ID: 1, URL: "https://shop.example.com/p/1", RefreshIntervalSeconds: 3600,
		PriceDropThreshold: utils.ToPointer(10.0),
	}

	_, err := fx.checker.CheckItem(context.Background(), item, false)
	require.NoError(t, err)
	assert.Empty(t, notifier.messages)
}

func TestNextCheckAt_JitterBounds(t *testing.T) {
	now := time.Now()
	interval := time.Hour
	spread := 300 * time.Second

	for i := 0; i < 100; i++ {
		next := NextCheckAt(now, interval, spread)
		assert.False(t, next.Before(now.Add(interval-spread)))
		assert.False(t, next.After(now.Add(interval+spread)))
	}
}

func TestInitialNextCheck_StaggersAcrossInterval(t *testing.T) {
	now := time.Now()
	interval := time.Hour

	for i := 0; i < 100; i++ {
		next := InitialNextCheck(now, interval)
		assert.False(t, next.Before(now))
		assert.True(t, next.Before(now.Add(interval)))
	}
}
