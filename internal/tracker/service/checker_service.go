package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"golang-price-watcher/internal/entity"
	"golang-price-watcher/internal/tracker/config"
	"golang-price-watcher/internal/tracker/consensus"
	"golang-price-watcher/internal/tracker/dto"
	"golang-price-watcher/internal/tracker/extractor"
	"golang-price-watcher/internal/tracker/fetcher"
	"golang-price-watcher/internal/tracker/repository"
	"golang-price-watcher/pkg/common"
	"golang-price-watcher/pkg/logger"
	redisPkg "golang-price-watcher/pkg/redis"
	"golang-price-watcher/pkg/telegram"
	"golang-price-watcher/pkg/utils"

	"github.com/PuerkitoBio/goquery"
	redis "github.com/redis/go-redis/v9"
)

// PageFetcher is the escalation controller surface the checker needs.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (*fetcher.Result, error)
	Rerender(ctx context.Context, url string, previous *fetcher.Result) (*fetcher.Result, error)
}

// CheckerService runs the end-to-end pipeline for one item: fetch, extract,
// reconcile, diff against stored state, notify, and restamp the schedule.
type CheckerService struct {
	cfg        *config.Config
	logger     *logger.Logger
	fetcher    PageFetcher
	extractors *extractor.Registry
	stock      *extractor.StockInferencer
	oracle     repository.OracleRepository
	itemRepo   repository.TrackedItemRepository
	priceRepo  repository.PriceObservationRepository
	stockRepo  repository.StockStatusObservationRepository
	notifier   telegram.Notifier
	redis      *redisPkg.Client
	now        func() time.Time
}

// NewCheckerService wires the check pipeline. oracle, notifier and redis may
// be nil; the pipeline degrades to its non-oracle, non-notifying paths.
func NewCheckerService(
	cfg *config.Config,
	log *logger.Logger,
	pageFetcher PageFetcher,
	extractors *extractor.Registry,
	stock *extractor.StockInferencer,
	oracle repository.OracleRepository,
	itemRepo repository.TrackedItemRepository,
	priceRepo repository.PriceObservationRepository,
	stockRepo repository.StockStatusObservationRepository,
	notifier telegram.Notifier,
	redisClient *redisPkg.Client,
) *CheckerService {
	return &CheckerService{
		cfg:        cfg,
		logger:     log,
		fetcher:    pageFetcher,
		extractors: extractors,
		stock:      stock,
		oracle:     oracle,
		itemRepo:   itemRepo,
		priceRepo:  priceRepo,
		stockRepo:  stockRepo,
		notifier:   notifier,
		redis:      redisClient,
		now:        time.Now,
	}
}

// CheckItem performs one full check of a tracked item. Manual checks share
// the pipeline but do not restamp the next scheduled check.
func (s *CheckerService) CheckItem(ctx context.Context, item *entity.TrackedItem, manual bool) (*dto.ReconciledObservation, error) {
	res, err := s.fetcher.Fetch(ctx, item.URL)
	if err != nil {
		s.stampSchedule(ctx, item, manual)
		return nil, fmt.Errorf("fetch failed for item %d: %w", item.ID, err)
	}

	cands, meta, status, err := s.extract(res, item.URL)
	if err != nil {
		s.stampSchedule(ctx, item, manual)
		return nil, err
	}

	// Second escalation trigger: a clean fetch that yielded nothing.
	if len(cands) == 0 {
		if res2, err2 := s.fetcher.Rerender(ctx, item.URL, res); err2 == nil {
			if c2, m2, st2, err3 := s.extract(res2, item.URL); err3 == nil {
				res, cands, meta, status = res2, c2, m2, st2
			}
		} else {
			s.logger.Debug("Rendered retry unavailable",
				logger.IntField("item_id", int(item.ID)), logger.ErrorField(err2))
		}
	}

	obs, consensusReached := s.reconcile(ctx, item, res.HTML, cands, meta, status)

	if err := s.applyChanges(ctx, item, obs, consensusReached, manual); err != nil {
		return obs, err
	}

	return obs, nil
}

func (s *CheckerService) extract(res *fetcher.Result, pageURL string) ([]dto.PriceCandidate, dto.ProductMeta, dto.StockStatus, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(res.HTML))
	if err != nil {
		return nil, dto.ProductMeta{}, dto.StockStatusUnknown, fmt.Errorf("failed to parse page markup: %w", err)
	}

	cands, meta := s.extractors.ExtractAll(doc, pageURL)
	status := s.stock.Infer(doc, res.HTML)
	return cands, meta, status, nil
}

// reconcile turns one fetch's candidates into the single trusted observation.
// Precedence: anchor match, then consensus (with optional AI verification),
// then the preferred-method hint, then arbitration, then needs-review.
func (s *CheckerService) reconcile(ctx context.Context, item *entity.TrackedItem, html string, cands []dto.PriceCandidate, meta dto.ProductMeta, status dto.StockStatus) (*dto.ReconciledObservation, bool) {
	obs := &dto.ReconciledObservation{
		Name:        meta.Name,
		ImageURL:    meta.ImageURL,
		StockStatus: status,
		Candidates:  cands,
	}

	if len(cands) == 0 {
		// Nothing to reconcile and nothing for a human to pick from.
		return obs, false
	}

	if item.AnchorPrice != nil && *item.AnchorPrice > 0 {
		match, within := consensus.MatchAnchor(*item.AnchorPrice, cands)
		if match != nil {
			obs.Price = match
			obs.Provenance = common.ProvenanceVerified
			if !within {
				s.logger.Info("Anchor matched beyond tolerance, treating as price change",
					logger.IntField("item_id", int(item.ID)),
					logger.Float64Field("anchor", *item.AnchorPrice),
					logger.Float64Field("matched", match.Amount),
				)
			}
			s.checkVariantStock(ctx, item, html, obs)
			return obs, false
		}
	}

	result := consensus.Evaluate(cands)

	if result.Reached {
		obs.Price = result.Winner
		s.verifyWithOracle(ctx, item, html, obs)
		return obs, true
	}

	if item.PreferredMethod != "" {
		if c := bestByMethod(cands, dto.ExtractionMethod(item.PreferredMethod)); c != nil {
			obs.Price = c
			return obs, false
		}
	}

	if s.oracleUsable(item) && len(cands) >= 2 {
		arb, err := s.oracle.Arbitrate(ctx, html, cands)
		if err != nil {
			s.logger.Warn("Oracle arbitration failed",
				logger.IntField("item_id", int(item.ID)), logger.ErrorField(err))
		} else if arb.Confidence >= s.cfg.Tracker.OracleMinConfidence {
			picked := cands[arb.SelectedIndex]
			obs.Price = &picked
			obs.Provenance = common.ProvenanceAIVerified
			return obs, false
		}
	}

	// No consensus, no anchor, no confident judge: expose everything to a
	// human with the best-confidence candidate as provisional value.
	obs.NeedsReview = true
	obs.Price = consensus.BestConfidence(cands)
	return obs, false
}

// verifyWithOracle confidence-gates an AI second opinion on a consensus
// winner. Below-threshold or failed verification leaves the result untouched.
func (s *CheckerService) verifyWithOracle(ctx context.Context, item *entity.TrackedItem, html string, obs *dto.ReconciledObservation) {
	if !s.oracleUsable(item) || obs.Price == nil {
		return
	}

	v, err := s.oracle.Verify(ctx, html, obs.Price.Amount, obs.Price.Currency)
	if err != nil {
		s.logger.Warn("Oracle verification failed",
			logger.IntField("item_id", int(item.ID)), logger.ErrorField(err))
		return
	}
	if v.Confidence < s.cfg.Tracker.OracleMinConfidence {
		return
	}

	if v.IsCorrect {
		obs.Provenance = common.ProvenanceAIVerified
	} else if v.SuggestedPrice > 0 {
		corrected := *obs.Price
		corrected.Amount = math.Round(v.SuggestedPrice*100) / 100
		corrected.Method = dto.MethodOracle
		corrected.Context = v.Reason
		obs.Price = &corrected
		obs.Provenance = common.ProvenanceAICorrected
	}

	if obs.StockStatus == dto.StockStatusUnknown {
		obs.StockStatus = stockStatusFromString(v.StockStatus)
	}
}

// checkVariantStock delegates a variant-scoped stock question to the oracle
// when an anchor match is in effect, since page-level status can differ per
// variant. The price itself is never touched: it is user-anchored.
func (s *CheckerService) checkVariantStock(ctx context.Context, item *entity.TrackedItem, html string, obs *dto.ReconciledObservation) {
	if !s.oracleUsable(item) || obs.Price == nil || obs.StockStatus == dto.StockStatusInStock {
		return
	}

	sc, err := s.oracle.CheckVariantStock(ctx, html, obs.Price.Amount, obs.Price.Currency)
	if err != nil {
		s.logger.Warn("Variant stock check failed",
			logger.IntField("item_id", int(item.ID)), logger.ErrorField(err))
		return
	}
	if sc.Confidence < s.cfg.Tracker.OracleMinConfidence {
		return
	}

	if sc.Purchasable {
		obs.StockStatus = dto.StockStatusInStock
	} else {
		obs.StockStatus = dto.StockStatusOutOfStock
	}
}

func (s *CheckerService) oracleUsable(item *entity.TrackedItem) bool {
	return s.oracle != nil && !item.DisableAI
}

// applyChanges diffs the reconciled observation against stored state, writes
// history, fires events, and restamps the schedule.
func (s *CheckerService) applyChanges(ctx context.Context, item *entity.TrackedItem, obs *dto.ReconciledObservation, consensusReached, manual bool) error {
	now := s.now()

	fields := map[string]interface{}{
		"last_checked_at": now,
	}
	if !manual {
		fields["next_check_at"] = NextCheckAt(now, item.RefreshInterval(), s.cfg.Tracker.JitterSpread)
	}
	if obs.Name != "" && obs.Name != item.Name {
		fields["name"] = obs.Name
	}
	if obs.ImageURL != "" && obs.ImageURL != item.ImageURL {
		fields["image_url"] = obs.ImageURL
	}

	if obs.StockStatus != dto.StockStatusUnknown && string(obs.StockStatus) != item.LastStockStatus {
		if err := s.stockRepo.Create(ctx, &entity.StockStatusObservation{
			ItemID: item.ID,
			Status: string(obs.StockStatus),
		}); err != nil {
			s.logger.Error("Failed to record stock transition",
				logger.IntField("item_id", int(item.ID)), logger.ErrorField(err))
		} else {
			fields["last_stock_status"] = string(obs.StockStatus)
			if item.LastStockStatus == string(dto.StockStatusOutOfStock) &&
				obs.StockStatus == dto.StockStatusInStock && item.NotifyBackInStock {
				s.notifyBackInStock(ctx, item, obs)
			}
		}
	}

	if obs.Price != nil {
		if err := s.recordPrice(ctx, item, obs, consensusReached, fields); err != nil {
			s.logger.Error("Failed to record price observation",
				logger.IntField("item_id", int(item.ID)), logger.ErrorField(err))
		}
	}

	if err := s.itemRepo.UpdateFields(ctx, item.ID, fields); err != nil {
		return fmt.Errorf("failed to update item %d: %w", item.ID, err)
	}
	return nil
}

func (s *CheckerService) recordPrice(ctx context.Context, item *entity.TrackedItem, obs *dto.ReconciledObservation, consensusReached bool, fields map[string]interface{}) error {
	latest, err := s.priceRepo.GetLatest(ctx, item.ID)
	if err != nil {
		return err
	}

	written, err := s.priceRepo.CreateIfChanged(ctx, &entity.PriceObservation{
		ItemID:     item.ID,
		Amount:     obs.Price.Amount,
		Currency:   obs.Price.Currency,
		Provenance: obs.Provenance,
	})
	if err != nil {
		return err
	}

	if written && latest != nil {
		newAmount := obs.Price.Amount

		if item.PriceDropThreshold != nil && latest.Amount-newAmount >= *item.PriceDropThreshold {
			s.notifyPriceDrop(ctx, item, latest.Amount, newAmount, obs.Price.Currency)
		}
		if item.TargetPrice != nil && newAmount <= *item.TargetPrice && latest.Amount > *item.TargetPrice {
			s.notifyTargetPrice(ctx, item, *item.TargetPrice, newAmount, obs.Price.Currency)
		}
	}

	// The preferred method is a stable hint, refreshed only on unambiguous
	// extraction success.
	if consensusReached && string(obs.Price.Method) != item.PreferredMethod {
		fields["preferred_method"] = string(obs.Price.Method)
	}

	return nil
}

// stampSchedule records a failed check so the item doesn't hot-loop.
func (s *CheckerService) stampSchedule(ctx context.Context, item *entity.TrackedItem, manual bool) {
	if manual {
		return
	}
	now := s.now()
	err := s.itemRepo.UpdateFields(ctx, item.ID, map[string]interface{}{
		"last_checked_at": now,
		"next_check_at":   NextCheckAt(now, item.RefreshInterval(), s.cfg.Tracker.JitterSpread),
	})
	if err != nil {
		s.logger.Error("Failed to stamp schedule after failed check",
			logger.IntField("item_id", int(item.ID)), logger.ErrorField(err))
	}
}

func (s *CheckerService) notifyPriceDrop(ctx context.Context, item *entity.TrackedItem, oldPrice, newPrice float64, currency string) {
	if !s.shouldNotify(ctx, telegram.PriceDrop, item, newPrice) {
		return
	}
	s.send(item, telegram.FormatPriceDrop(itemDisplayName(item), item.URL, oldPrice, newPrice, currency))
}

func (s *CheckerService) notifyTargetPrice(ctx context.Context, item *entity.TrackedItem, target, newPrice float64, currency string) {
	if !s.shouldNotify(ctx, telegram.TargetPrice, item, newPrice) {
		return
	}
	s.send(item, telegram.FormatTargetPrice(itemDisplayName(item), item.URL, target, newPrice, currency))
}

func (s *CheckerService) notifyBackInStock(ctx context.Context, item *entity.TrackedItem, obs *dto.ReconciledObservation) {
	price, currency := 0.0, ""
	if obs.Price != nil {
		price, currency = obs.Price.Amount, obs.Price.Currency
	}
	if !s.shouldNotify(ctx, telegram.BackInStock, item, price) {
		return
	}
	s.send(item, telegram.FormatBackInStock(itemDisplayName(item), item.URL, price, currency))
}

// shouldNotify suppresses repeat alerts for the same event unless the price
// moved past the resend threshold since the last one. Redis keeps the
// suppression state across restarts; without Redis every event notifies.
func (s *CheckerService) shouldNotify(ctx context.Context, event telegram.EventType, item *entity.TrackedItem, amount float64) bool {
	if s.notifier == nil {
		return false
	}
	if s.redis == nil {
		return true
	}

	key := fmt.Sprintf(common.RedisKeyAlertSent, event, item.ID)

	last, err := s.redis.Get(ctx, key).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		s.logger.Warn("Alert suppression lookup failed", logger.ErrorField(err))
		return true
	}

	if err == nil {
		lastAmount, parseErr := strconv.ParseFloat(last, 64)
		if parseErr == nil && lastAmount > 0 {
			percentChange := math.Abs(amount-lastAmount) / lastAmount * 100
			if percentChange < s.cfg.Tracker.AlertResendThresholdPercent {
				s.logger.Debug("Skip resend alert",
					logger.StringField("event", string(event)),
					logger.IntField("item_id", int(item.ID)),
				)
				return false
			}
		}
	}

	if err := s.redis.Set(ctx, key, amount, s.cfg.Tracker.AlertCacheDuration).Err(); err != nil {
		s.logger.Warn("Failed to store alert suppression key", logger.ErrorField(err))
	}
	return true
}

func (s *CheckerService) send(item *entity.TrackedItem, message string) {
	var err error
	if item.User.TelegramID != 0 {
		err = s.notifier.SendMessageUser(message, item.User.TelegramID)
	} else {
		err = s.notifier.SendMessage(message)
	}
	if err != nil {
		s.logger.Error("Failed to send notification",
			logger.IntField("item_id", int(item.ID)), logger.ErrorField(err))
	}
}

func bestByMethod(cands []dto.PriceCandidate, method dto.ExtractionMethod) *dto.PriceCandidate {
	var best *dto.PriceCandidate
	for i := range cands {
		if cands[i].Method != method {
			continue
		}
		if best == nil || cands[i].Confidence > best.Confidence {
			best = &cands[i]
		}
	}
	return best
}

func stockStatusFromString(s string) dto.StockStatus {
	switch s {
	case string(dto.StockStatusInStock):
		return dto.StockStatusInStock
	case string(dto.StockStatusOutOfStock):
		return dto.StockStatusOutOfStock
	default:
		return dto.StockStatusUnknown
	}
}

func itemDisplayName(item *entity.TrackedItem) string {
	if item.Name != "" {
		return item.Name
	}
	return item.URL
}

// NextCheckAt computes the post-check schedule: now + interval + jitter drawn
// uniformly from [-spread, +spread]. Never earlier than now, so short
// intervals can't schedule into the past.
func NextCheckAt(now time.Time, interval, spread time.Duration) time.Time {
	next := now.Add(interval + utils.JitterAround(spread))
	if next.Before(now) {
		return now
	}
	return next
}

// InitialNextCheck staggers a newly added item uniformly across [now,
// now+interval) so batches of simultaneously added items don't poll in
// lockstep.
func InitialNextCheck(now time.Time, interval time.Duration) time.Time {
	return now.Add(utils.RandDurationUpTo(interval))
}
