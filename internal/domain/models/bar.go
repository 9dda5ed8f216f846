package models

// Bar is an OHLCV candle keyed by its period-aligned start (epoch ms).
// ManipulationPercent is 0 for untouched bars.
type Bar struct {
	Symbol              string  `json:"symbol"`
	Timestamp           int64   `json:"timestamp"`
	Open                float64 `json:"open"`
	High                float64 `json:"high"`
	Low                 float64 `json:"low"`
	Close               float64 `json:"close"`
	Volume              float64 `json:"volume"`
	ManipulationPercent float64 `json:"manipulation_percent"`
	// UpdatedAt is the time (epoch ms) of the latest sample folded into an
	// in-progress bar. Zero for closed historical bars.
	UpdatedAt int64 `json:"updated_at,omitempty"`
}

// Trade is a single raw price sample from the upstream market feed.
type Trade struct {
	Symbol    string  `json:"symbol"`
	Timestamp int64   `json:"t"` // ms
	Price     float64 `json:"c"`
	Volume    float64 `json:"v"`
}
