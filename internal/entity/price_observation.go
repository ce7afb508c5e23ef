package entity

import "time"

// PriceObservation is an immutable point-in-time price record. A new row is
// appended only when the amount differs from the latest stored one.
type PriceObservation struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ItemID     uint      `gorm:"not null;index" json:"item_id"`
	Amount     float64   `gorm:"not null" json:"amount"`
	Currency   string    `gorm:"not null;size:3" json:"currency"`
	Provenance string    `json:"provenance"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (PriceObservation) TableName() string {
	return "price_observations"
}
