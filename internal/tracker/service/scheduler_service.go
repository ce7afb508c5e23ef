package service

import (
	"context"
	"sync/atomic"
	"time"

	"golang-price-watcher/internal/entity"
	"golang-price-watcher/internal/tracker/config"
	"golang-price-watcher/internal/tracker/dto"
	"golang-price-watcher/internal/tracker/repository"
	"golang-price-watcher/pkg/logger"
	"golang-price-watcher/pkg/utils"

	"github.com/robfig/cron/v3"
)

// ItemChecker runs one item's check pipeline.
type ItemChecker interface {
	CheckItem(ctx context.Context, item *entity.TrackedItem, manual bool) (*dto.ReconciledObservation, error)
}

// SchedulerService drives the refresh loop: a fixed tick selects due items
// and runs them serially with politeness pacing. At most one batch is active
// system-wide; overlapping ticks are no-ops.
type SchedulerService interface {
	Start(ctx context.Context) error
	Stop()
	RunBatch(ctx context.Context)
}

type schedulerService struct {
	cfg      *config.Config
	logger   *logger.Logger
	itemRepo repository.TrackedItemRepository
	checker  ItemChecker
	cron     *cron.Cron
	running  atomic.Bool
	// sleep is swapped out in tests.
	sleep func(time.Duration)
}

// NewSchedulerService creates the scheduler.
func NewSchedulerService(cfg *config.Config, log *logger.Logger, itemRepo repository.TrackedItemRepository, checker ItemChecker) SchedulerService {
	return &schedulerService{
		cfg:      cfg,
		logger:   log,
		itemRepo: itemRepo,
		checker:  checker,
		sleep:    time.Sleep,
	}
}

// Start registers the tick and begins the cron loop. The tick cadence comes
// from configuration; a batch that outlives the cadence simply causes the
// next tick to be suppressed by the single-flight guard.
func (s *schedulerService) Start(ctx context.Context) error {
	s.cron = cron.New()
	_, err := s.cron.AddFunc(s.cfg.Tracker.TickSpec, func() {
		s.RunBatch(ctx)
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("Scheduler started", logger.StringField("tick_spec", s.cfg.Tracker.TickSpec))
	return nil
}

// Stop halts the tick and waits for a running batch's cron goroutine to
// return.
func (s *schedulerService) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// RunBatch selects and checks all due items. Invoking it while a run is
// active is a no-op with no side effects.
func (s *schedulerService) RunBatch(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Debug("Batch already running, skipping tick")
		return
	}
	defer s.running.Store(false)

	items, err := s.itemRepo.GetDueItems(ctx, time.Now())
	if err != nil {
		s.logger.Error("Failed to select due items", logger.ErrorField(err))
		return
	}
	if len(items) == 0 {
		return
	}

	s.logger.Info("Starting batch", logger.IntField("due_items", len(items)))

	checked, failed := 0, 0
	for i := range items {
		if !utils.ShouldContinue(ctx) {
			s.logger.Info("Batch cancelled", logger.IntField("checked", checked))
			break
		}
		if i > 0 {
			// Politeness pacing toward target sites.
			s.sleep(utils.RandDurationBetween(s.cfg.Tracker.MinItemDelay, s.cfg.Tracker.MaxItemDelay))
		}

		if err := s.checkOne(ctx, &items[i]); err != nil {
			failed++
			s.logger.Error("Item check failed",
				logger.IntField("item_id", int(items[i].ID)),
				logger.StringField("url", items[i].URL),
				logger.ErrorField(err),
			)
			continue
		}
		checked++
	}

	s.logger.Info("Batch complete",
		logger.IntField("checked", checked),
		logger.IntField("failed", failed),
	)
}

// checkOne isolates a single item's failure, including panics, so the batch
// always continues.
func (s *schedulerService) checkOne(ctx context.Context, item *entity.TrackedItem) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = utils.PanicToError(r)
		}
	}()

	obs, err := s.checker.CheckItem(ctx, item, false)
	if err != nil {
		return err
	}

	if obs.Price != nil {
		s.logger.Debug("Item checked",
			logger.IntField("item_id", int(item.ID)),
			logger.Float64Field("price", obs.Price.Amount),
			logger.StringField("stock", string(obs.StockStatus)),
			logger.BoolField("needs_review", obs.NeedsReview),
		)
	} else {
		s.logger.Debug("Item checked without price",
			logger.IntField("item_id", int(item.ID)),
			logger.StringField("stock", string(obs.StockStatus)),
		)
	}
	return nil
}
