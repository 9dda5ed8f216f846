package adjustment

import (
	"math"
	"math/rand"

	"PriceShaper/internal/domain/models"
)

const (
	t0     int64 = 1_700_000_000_000
	minute int64 = 60_000
)

func ptr(f float64) *float64 { return &f }

func pump(id string, magnitude float64, start, end int64) models.Adjustment {
	return models.Adjustment{
		ID:           id,
		InstrumentID: "BINANCE:BTC/USDT",
		Kind:         models.KindPercent,
		Magnitude:    magnitude,
		StartAt:      start,
		EndsAt:       end,
	}
}

// walk builds n continuous 1m bars: every open equals the previous close.
func walk(seed int64, n int, start float64) []models.Bar {
	rng := rand.New(rand.NewSource(seed))
	bars := make([]models.Bar, n)
	price := start
	for i := range bars {
		open := price
		price = open * (1 + rng.NormFloat64()*0.002)
		hi := math.Max(open, price) * (1 + rng.Float64()*0.001)
		lo := math.Min(open, price) * (1 - rng.Float64()*0.001)
		bars[i] = models.Bar{
			Symbol:    "BTCUSDT",
			Timestamp: t0 + int64(i)*minute,
			Open:      open,
			High:      hi,
			Low:       lo,
			Close:     price,
			Volume:    rng.Float64() * 10,
		}
	}
	return bars
}

func flat(ts int64, price float64) models.Bar {
	return models.Bar{
		Symbol:    "BTCUSDT",
		Timestamp: ts,
		Open:      price,
		High:      price * 1.001,
		Low:       price * 0.999,
		Close:     price,
		Volume:    1,
	}
}
