package dto

// OracleExtraction is the oracle's own read of a product page.
type OracleExtraction struct {
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Currency    string  `json:"currency"`
	ImageURL    string  `json:"image_url"`
	StockStatus string  `json:"stock_status"`
	Confidence  float64 `json:"confidence"`
}

// OracleVerification is the oracle's judgement of a claimed price.
type OracleVerification struct {
	IsCorrect      bool    `json:"is_correct"`
	SuggestedPrice float64 `json:"suggested_price,omitempty"`
	StockStatus    string  `json:"stock_status"`
	Confidence     float64 `json:"confidence"`
	Reason         string  `json:"reason"`
}

// OracleArbitration is the oracle's pick among disagreeing candidates.
type OracleArbitration struct {
	SelectedIndex int     `json:"selected_index"`
	Confidence    float64 `json:"confidence"`
	Reason        string  `json:"reason"`
}

// OracleStockCheck answers whether a specific variant is purchasable.
type OracleStockCheck struct {
	Purchasable bool    `json:"purchasable"`
	Confidence  float64 `json:"confidence"`
	Reason      string  `json:"reason"`
}

// GeminiAPIRequest is the raw generateContent request payload.
type GeminiAPIRequest struct {
	Contents []Content `json:"contents"`
}

// Content is a single message in a Gemini request.
type Content struct {
	Parts []Part `json:"parts"`
}

// Part is one text part of a Gemini message.
type Part struct {
	Text string `json:"text"`
}

// GeminiAPIResponse is the raw generateContent response payload.
type GeminiAPIResponse struct {
	Candidates []struct {
		Content struct {
			Parts []Part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}
