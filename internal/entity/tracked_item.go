package entity

import "time"

// TrackedItem is a product URL being watched for price and availability.
type TrackedItem struct {
	ID                     uint       `gorm:"primaryKey" json:"id"`
	UserID                 uint       `gorm:"not null;index" json:"user_id"`
	User                   User       `json:"-"`
	URL                    string     `gorm:"not null" json:"url"`
	Name                   string     `json:"name"`
	ImageURL               string     `json:"image_url"`
	RefreshIntervalSeconds int        `gorm:"not null;default:3600" json:"refresh_interval_seconds"`
	LastCheckedAt          *time.Time `json:"last_checked_at"`
	NextCheckAt            *time.Time `gorm:"index" json:"next_check_at"`
	LastStockStatus        string     `gorm:"not null;default:unknown" json:"last_stock_status"`
	PriceDropThreshold     *float64   `json:"price_drop_threshold"`
	TargetPrice            *float64   `json:"target_price"`
	AnchorPrice            *float64   `json:"anchor_price"`
	PreferredMethod        string     `json:"preferred_method"`
	DisableAI              bool       `gorm:"not null;default:false" json:"disable_ai"`
	Paused                 bool       `gorm:"not null;default:false" json:"paused"`
	NotifyBackInStock      bool       `gorm:"not null;default:false" json:"notify_back_in_stock"`
	CreatedAt              time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (TrackedItem) TableName() string {
	return "tracked_items"
}

// RefreshInterval returns the polling interval as a duration.
func (t *TrackedItem) RefreshInterval() time.Duration {
	return time.Duration(t.RefreshIntervalSeconds) * time.Second
}
