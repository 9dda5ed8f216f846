package repository

import (
	"context"

	"PriceShaper/internal/domain/models"
)

type MarketStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Trade, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// AdjustmentSource lists the adjustments that may govern an instrument now or
// that governed it recently. Records for other instruments may be included.
type AdjustmentSource interface {
	GetActiveAdjustments(ctx context.Context, instrument string) ([]models.Adjustment, error)
}

// BarPublisher fans synthesized bars out to downstream consumers.
type BarPublisher interface {
	Publish(ctx context.Context, b models.Bar, newPeriod bool) error
	Close() error
}

// MarkPriceCache holds the latest displayed close per instrument.
type MarkPriceCache interface {
	SetMark(ctx context.Context, instrument string, price float64) error
	GetMark(ctx context.Context, instrument string) (float64, bool, error)
}

type Metrics interface {
	RecordMessageSent(backend, symbol string)
	RecordError(kind string)
	RecordLastPrice(symbol string, price float64)
	RecordLatency(op string, seconds float64)
	RecordManipulation(symbol string, percent float64)
	RecordPhase(symbol, phase string)
	RecordOutcome(symbol, outcome string)
}
