package entity

import "time"

// StockStatusObservation records a stock status transition. Written only on
// change, not on every poll.
type StockStatusObservation struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ItemID    uint      `gorm:"not null;index" json:"item_id"`
	Status    string    `gorm:"not null" json:"status"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (StockStatusObservation) TableName() string {
	return "stock_status_observations"
}
