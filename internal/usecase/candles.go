package usecase

import (
	"context"
	"fmt"
	"time"

	"PriceShaper/internal/domain/models"
	domrepo "PriceShaper/internal/domain/repository"
	"PriceShaper/internal/services/adjustment"
	applogger "PriceShaper/pkg/logger"
	"PriceShaper/pkg/util"
)

const (
	defaultCandleLimit = 10000
	maxCandleLimit     = 50000
)

// CandlesUseCase serves historical candles with the adjustment overlay applied.
type CandlesUseCase struct {
	store   domrepo.BarStore
	source  domrepo.AdjustmentSource
	engine  *adjustment.Engine
	metrics domrepo.Metrics
	l       *applogger.Logger
}

func NewCandlesUseCase(store domrepo.BarStore, source domrepo.AdjustmentSource, engine *adjustment.Engine, metrics domrepo.Metrics, l *applogger.Logger) *CandlesUseCase {
	if l == nil {
		l = applogger.Nop()
	}
	return &CandlesUseCase{store: store, source: source, engine: engine, metrics: metrics, l: l}
}

type GetCandlesParams struct {
	Symbol    string
	From      time.Time
	To        time.Time
	Timeframe domrepo.Timeframe
	Limit     int
}

type GetCandlesResult struct {
	Symbol      string
	Timeframe   string
	From        time.Time
	To          time.Time
	Count       int
	Manipulated bool // at least one bar carries a non-zero manipulation percent
	Degraded    bool // adjustments were unavailable and raw bars were returned
	Candles     []models.Bar
}

func (uc *CandlesUseCase) GetCandles(ctx context.Context, p GetCandlesParams) (*GetCandlesResult, error) {
	if p.Symbol == "" {
		return nil, fmt.Errorf("symbol required")
	}
	if p.From.After(p.To) {
		return nil, fmt.Errorf("from must be <= to")
	}
	if p.Limit <= 0 {
		p.Limit = defaultCandleLimit
	}
	if p.Limit > maxCandleLimit {
		p.Limit = maxCandleLimit
	}
	p.Timeframe = domrepo.NormalizeTimeframe(string(p.Timeframe))
	p.From, p.To = util.AlignFromTo(p.From, p.To, p.Timeframe.Duration())

	start := time.Now()
	bars, err := uc.store.GetBars(ctx, p.Symbol, p.From, p.To, p.Timeframe)
	if err != nil {
		uc.metrics.RecordError("candles_store")
		return nil, fmt.Errorf("get bars: %w", err)
	}
	if len(bars) > p.Limit {
		bars = bars[:p.Limit]
	}

	res := &GetCandlesResult{
		Symbol:    p.Symbol,
		Timeframe: string(p.Timeframe),
		From:      p.From,
		To:        p.To,
	}

	adjs, err := uc.source.GetActiveAdjustments(ctx, p.Symbol)
	if err != nil {
		uc.metrics.RecordError("candles_adjustments")
		uc.l.Warn("adjustments unavailable, serving raw candles",
			applogger.String("symbol", p.Symbol), applogger.Error(err))
		res.Degraded = true
	} else if len(adjs) > 0 {
		bars = uc.engine.ApplyToRange(bars, adjs)
	}

	for _, b := range bars {
		if b.ManipulationPercent != 0 {
			res.Manipulated = true
			break
		}
	}
	res.Count = len(bars)
	res.Candles = bars
	uc.metrics.RecordLatency("candles_overlay", time.Since(start).Seconds())
	return res, nil
}
