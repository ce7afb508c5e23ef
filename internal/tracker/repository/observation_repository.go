package repository

import (
	"context"
	"errors"

	"golang-price-watcher/internal/entity"

	"gorm.io/gorm"
)

type priceObservationRepository struct {
	db *gorm.DB
}

// NewPriceObservationRepository creates a gorm-backed price history repository.
func NewPriceObservationRepository(db *gorm.DB) PriceObservationRepository {
	return &priceObservationRepository{db: db}
}

func (r *priceObservationRepository) GetLatest(ctx context.Context, itemID uint) (*entity.PriceObservation, error) {
	var obs entity.PriceObservation
	err := r.db.WithContext(ctx).
		Where("item_id = ?", itemID).
		Order("created_at DESC, id DESC").
		First(&obs).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &obs, nil
}

func (r *priceObservationRepository) CreateIfChanged(ctx context.Context, obs *entity.PriceObservation) (bool, error) {
	latest, err := r.GetLatest(ctx, obs.ItemID)
	if err != nil {
		return false, err
	}
	if latest != nil && latest.Amount == obs.Amount {
		return false, nil
	}
	if err := r.db.WithContext(ctx).Create(obs).Error; err != nil {
		return false, err
	}
	return true, nil
}

func (r *priceObservationRepository) GetHistory(ctx context.Context, itemID uint, limit int) ([]entity.PriceObservation, error) {
	var history []entity.PriceObservation
	q := r.db.WithContext(ctx).
		Where("item_id = ?", itemID).
		Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&history).Error; err != nil {
		return nil, err
	}
	return history, nil
}

type stockStatusObservationRepository struct {
	db *gorm.DB
}

// NewStockStatusObservationRepository creates a gorm-backed stock transition repository.
func NewStockStatusObservationRepository(db *gorm.DB) StockStatusObservationRepository {
	return &stockStatusObservationRepository{db: db}
}

func (r *stockStatusObservationRepository) Create(ctx context.Context, obs *entity.StockStatusObservation) error {
	return r.db.WithContext(ctx).Create(obs).Error
}

func (r *stockStatusObservationRepository) GetHistory(ctx context.Context, itemID uint, limit int) ([]entity.StockStatusObservation, error) {
	var history []entity.StockStatusObservation
	q := r.db.WithContext(ctx).
		Where("item_id = ?", itemID).
		Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&history).Error; err != nil {
		return nil, err
	}
	return history, nil
}
