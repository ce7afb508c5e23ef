package dto

// CreateItemRequest starts tracking a product URL.
type CreateItemRequest struct {
	URL                    string   `json:"url"`
	UserID                 uint     `json:"user_id"`
	RefreshIntervalSeconds int      `json:"refresh_interval_seconds"`
	PriceDropThreshold     *float64 `json:"price_drop_threshold,omitempty"`
	TargetPrice            *float64 `json:"target_price,omitempty"`
	DisableAI              bool     `json:"disable_ai"`
	NotifyBackInStock      bool     `json:"notify_back_in_stock"`
}

// ConfirmPriceRequest pins the item to a user-confirmed price (the anchor).
type ConfirmPriceRequest struct {
	Amount float64 `json:"amount"`
	// Method optionally records which extractor produced the confirmed
	// price, stored as the preferred method hint.
	Method string `json:"method,omitempty"`
}

// UpdateItemRequest mutates tracking settings.
type UpdateItemRequest struct {
	RefreshIntervalSeconds *int     `json:"refresh_interval_seconds,omitempty"`
	PriceDropThreshold     *float64 `json:"price_drop_threshold,omitempty"`
	TargetPrice            *float64 `json:"target_price,omitempty"`
	DisableAI              *bool    `json:"disable_ai,omitempty"`
	Paused                 *bool    `json:"paused,omitempty"`
	NotifyBackInStock      *bool    `json:"notify_back_in_stock,omitempty"`
}

// ErrorResponse is the error payload shape for the HTTP surface.
type ErrorResponse struct {
	Error string `json:"error"`
}
