package models

// AdjustmentKind selects how Magnitude is applied to the anchor price.
type AdjustmentKind string

const (
	KindPercent  AdjustmentKind = "PERCENT"
	KindAbsolute AdjustmentKind = "ABSOLUTE"
)

// Adjustment is an admin-issued, time-boxed bias applied to the displayed price.
// Records are read-only here; the admin side may shorten EndsAt to stop one early.
type Adjustment struct {
	ID           string         `json:"id"`
	InstrumentID string         `json:"instrument_id"`
	Kind         AdjustmentKind `json:"kind"`
	Magnitude    float64        `json:"magnitude"`
	AnchorPrice  *float64       `json:"anchor_price,omitempty"`
	StartAt      int64          `json:"start_at"` // ms
	EndsAt       int64          `json:"ends_at"`  // ms
}

// AdjustmentEvent is the change notification pushed by the admin service.
type AdjustmentEvent struct {
	Type         string `json:"type"` // created, stopped, deleted
	ID           string `json:"id"`
	InstrumentID string `json:"instrument_id"`
}
