package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang-price-watcher/internal/entity"

	"gorm.io/gorm"
)

type trackedItemRepository struct {
	db *gorm.DB
}

// NewTrackedItemRepository creates a gorm-backed tracked item repository.
func NewTrackedItemRepository(db *gorm.DB) TrackedItemRepository {
	return &trackedItemRepository{db: db}
}

func (r *trackedItemRepository) Create(ctx context.Context, item *entity.TrackedItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *trackedItemRepository) GetByID(ctx context.Context, id uint) (*entity.TrackedItem, error) {
	var item entity.TrackedItem
	if err := r.db.WithContext(ctx).Preload("User").First(&item, id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *trackedItemRepository) GetAll(ctx context.Context) ([]entity.TrackedItem, error) {
	var items []entity.TrackedItem
	if err := r.db.WithContext(ctx).Order("id").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// GetDueItems selects unpaused items whose next check is unset or in the past.
func (r *trackedItemRepository) GetDueItems(ctx context.Context, now time.Time) ([]entity.TrackedItem, error) {
	var items []entity.TrackedItem
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("paused = ?", false).
		Where("next_check_at IS NULL OR next_check_at <= ?", now).
		Order("next_check_at NULLS FIRST").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *trackedItemRepository) UpdateFields(ctx context.Context, id uint, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&entity.TrackedItem{}).
		Where("id = ?", id).
		Updates(fields).Error
}

// Delete removes the item and cascades its observation history.
func (r *trackedItemRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("item_id = ?", id).Delete(&entity.PriceObservation{}).Error; err != nil {
			return fmt.Errorf("failed to delete price history: %w", err)
		}
		if err := tx.Where("item_id = ?", id).Delete(&entity.StockStatusObservation{}).Error; err != nil {
			return fmt.Errorf("failed to delete stock history: %w", err)
		}
		res := tx.Delete(&entity.TrackedItem{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// IsNotFound reports whether the error is a missing-record error.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
