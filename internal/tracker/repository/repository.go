package repository

import (
	"context"
	"time"

	"golang-price-watcher/internal/entity"
	"golang-price-watcher/internal/tracker/dto"
)

// TrackedItemRepository persists tracked items and answers the scheduler's
// "items due for refresh" query.
type TrackedItemRepository interface {
	Create(ctx context.Context, item *entity.TrackedItem) error
	GetByID(ctx context.Context, id uint) (*entity.TrackedItem, error)
	GetAll(ctx context.Context) ([]entity.TrackedItem, error)
	GetDueItems(ctx context.Context, now time.Time) ([]entity.TrackedItem, error)
	// UpdateFields writes only the given columns, last-write-wins per field,
	// so manual and scheduled checks can't clobber each other's records.
	UpdateFields(ctx context.Context, id uint, fields map[string]interface{}) error
	Delete(ctx context.Context, id uint) error
}

// PriceObservationRepository is append-only price history.
type PriceObservationRepository interface {
	GetLatest(ctx context.Context, itemID uint) (*entity.PriceObservation, error)
	// CreateIfChanged appends the observation only when its amount differs
	// from the latest stored one. Returns whether a row was written.
	CreateIfChanged(ctx context.Context, obs *entity.PriceObservation) (bool, error)
	GetHistory(ctx context.Context, itemID uint, limit int) ([]entity.PriceObservation, error)
}

// StockStatusObservationRepository is append-only status transition history.
type StockStatusObservationRepository interface {
	Create(ctx context.Context, obs *entity.StockStatusObservation) error
	GetHistory(ctx context.Context, itemID uint, limit int) ([]entity.StockStatusObservation, error)
}

// OracleRepository is the external extraction/arbitration judge. All answers
// are best-effort and advisory unless their confidence clears the configured
// acceptance threshold.
type OracleRepository interface {
	Extract(ctx context.Context, html string) (*dto.OracleExtraction, error)
	Verify(ctx context.Context, html string, claimedPrice float64, currency string) (*dto.OracleVerification, error)
	Arbitrate(ctx context.Context, html string, candidates []dto.PriceCandidate) (*dto.OracleArbitration, error)
	CheckVariantStock(ctx context.Context, html string, price float64, currency string) (*dto.OracleStockCheck, error)
}
