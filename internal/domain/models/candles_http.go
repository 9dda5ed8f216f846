package models

// Requests for overlay HTTP endpoints.

type CandlesRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required,instrument"`
	From   string `query:"from" json:"from" validate:"omitempty,timestamp"`
	To     string `query:"to" json:"to" validate:"omitempty,timestamp"`
	TF     string `query:"tf" json:"tf" default:"1m" validate:"oneof=1s 1m 5m"`
	Limit  int    `query:"limit" json:"limit" default:"1000" validate:"gte=1,lte=50000"`
}

type LiveRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required,instrument"`
}

type SessionRequest struct {
	Symbol string `param:"symbol" validate:"required,instrument"`
}
