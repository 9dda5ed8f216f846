package usecase

import (
	"context"

	"PriceShaper/internal/domain/models"
	drepo "PriceShaper/internal/domain/repository"
	mid "PriceShaper/internal/middleware"
	applogger "PriceShaper/pkg/logger"
)

// TradeCollector reads the market stream and feeds trades through the
// pipeline into the live overlay.
type TradeCollector struct {
	stream  drepo.MarketStream
	pipe    *mid.RealtimePipeline
	metrics drepo.Metrics
	l       *applogger.Logger
}

// NewTradeCollector creates a new TradeCollector instance.
func NewTradeCollector(stream drepo.MarketStream, pipe *mid.RealtimePipeline, metrics drepo.Metrics, l *applogger.Logger) *TradeCollector {
	if l == nil {
		l = applogger.Nop()
	}
	return &TradeCollector{stream: stream, pipe: pipe, metrics: metrics, l: l}
}

// IsConnected returns true if the market stream is connected.
func (c *TradeCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

func (c *TradeCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	c.pipe.Start(ctx)
	trCh, errCh := c.stream.Read(ctx)
	go c.consume(ctx, trCh, errCh)
	return nil
}

func (c *TradeCollector) consume(ctx context.Context, trCh <-chan *models.Trade, errCh <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errCh:
			if !ok {
				return
			}
			if err == nil {
				continue
			}
			c.metrics.RecordError("stream")
			c.l.Warn("market stream error, reconnecting", applogger.Error(err))
			if rerr := c.stream.Reconnect(ctx); rerr != nil {
				c.l.Error("market stream reconnect failed", applogger.Error(rerr))
			}
		case t, ok := <-trCh:
			if !ok {
				return
			}
			if t == nil {
				continue
			}
			if err := c.pipe.Process(ctx, t); err != nil {
				c.l.Debug("trade rejected", applogger.String("symbol", t.Symbol), applogger.Error(err))
			}
		}
	}
}

// Shutdown stops the pipeline and closes the stream.
func (c *TradeCollector) Shutdown(ctx context.Context) error {
	c.pipe.Stop()
	return c.stream.Close()
}
