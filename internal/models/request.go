package models

// PredictRequest represents a forecast request body
type PredictRequest struct {
	StoreID           string `json:"store_id"`
	ProductID         string `json:"product_id"`
	DaysAhead         *int   `json:"days_ahead,omitempty"` // defaults to 14
	IncludeConfidence bool   `json:"include_confidence"`
}

// TrainRequest represents a training request body
type TrainRequest struct {
	StoreID      string `json:"store_id"`
	ProductID    string `json:"product_id,omitempty"`
	LookbackDays *int   `json:"lookback_days,omitempty"` // defaults to 90
}

// AnomalyRequest represents an anomaly detection request. Fields may also
// arrive as query parameters.
type AnomalyRequest struct {
	StoreID    string `json:"store_id"`
	ProductID  string `json:"product_id"`
	WindowSize *int   `json:"window_size,omitempty"` // defaults to 30
}

// IntOrDefault returns *p, or def when p is nil. An explicit zero is kept so
// that range checks can reject it.
func IntOrDefault(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}
