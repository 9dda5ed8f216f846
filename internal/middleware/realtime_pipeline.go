package middleware

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"PriceShaper/internal/domain/models"
	domrepo "PriceShaper/internal/domain/repository"
	applogger "PriceShaper/pkg/logger"

	"golang.org/x/time/rate"
)

// Proc is the minimal processor interface the pipeline needs.
type Proc interface {
	Process(ctx context.Context, t *models.Trade) error
}

// RealtimePipeline sits between the market stream and the live overlay.
// It validates and throttles trades, then queues them for a single drain
// goroutine so a slow downstream never stalls the socket reader and
// per-symbol order is preserved.
type RealtimePipeline struct {
	proc     Proc
	metrics  domrepo.Metrics
	l        *applogger.Logger
	maxRPS   int
	bufSize  int
	bufCh    chan *models.Trade
	stopCh   chan struct{}
	doneCh   chan struct{}
	started  bool
	mu       sync.Mutex
	limiters map[string]*rate.Limiter // per symbol
	// optional format transform hook
	transform func(*models.Trade) *models.Trade
}

type PipelineOption func(*RealtimePipeline)

// WithMaxRPS sets the max trades per second per symbol. Zero disables throttling.
func WithMaxRPS(n int) PipelineOption {
	return func(p *RealtimePipeline) {
		if n >= 0 {
			p.maxRPS = n
		}
	}
}

// WithBufferSize sets the queue size between reader and drain loop.
func WithBufferSize(n int) PipelineOption {
	return func(p *RealtimePipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// WithTransform sets a transformation hook to modify trade format.
func WithTransform(fn func(*models.Trade) *models.Trade) PipelineOption {
	return func(p *RealtimePipeline) { p.transform = fn }
}

// WithLogger sets the structured logger.
func WithLogger(l *applogger.Logger) PipelineOption {
	return func(p *RealtimePipeline) {
		if l != nil {
			p.l = l
		}
	}
}

// NewRealtimePipeline creates a new pipeline.
func NewRealtimePipeline(proc Proc, metrics domrepo.Metrics, opts ...PipelineOption) *RealtimePipeline {
	p := &RealtimePipeline{
		proc:     proc,
		metrics:  metrics,
		l:        applogger.Nop(),
		maxRPS:   20,
		bufSize:  1000,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		limiters: make(map[string]*rate.Limiter),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan *models.Trade, p.bufSize)
	return p
}

// Start launches the drain loop. Before Start, Process forwards synchronously.
func (p *RealtimePipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go p.drain(ctx)
}

func (p *RealtimePipeline) drain(ctx context.Context) {
	defer close(p.doneCh)
	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case t := <-p.bufCh:
			p.forward(ctx, t)
		}
	}
}

// Stop stops the drain loop and waits for the in-flight trade.
func (p *RealtimePipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
	<-p.doneCh
}

// Process validates, throttles, and queues a trade for the downstream.
func (p *RealtimePipeline) Process(ctx context.Context, t *models.Trade) error {
	if err := validateTrade(t); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	if p.transform != nil {
		t = p.transform(t)
		if err := validateTrade(t); err != nil {
			p.metrics.RecordError("pipeline_transform_invalid")
			return err
		}
	}

	p.mu.Lock()
	allowed := p.allow(t.Symbol, time.Now())
	started := p.started
	p.mu.Unlock()
	if !allowed {
		p.metrics.RecordError("pipeline_throttle")
		return nil
	}

	if !started {
		return p.forward(ctx, t)
	}
	select {
	case p.bufCh <- t:
		p.metrics.RecordLatency("pipeline_buffer_depth", float64(len(p.bufCh)))
		return nil
	default:
		p.metrics.RecordError("pipeline_buffer_full")
		p.l.Warn("pipeline buffer full, trade dropped", applogger.String("symbol", t.Symbol))
		return fmt.Errorf("pipeline buffer full")
	}
}

func (p *RealtimePipeline) forward(ctx context.Context, t *models.Trade) error {
	start := time.Now()
	if err := p.proc.Process(ctx, t); err != nil {
		p.metrics.RecordError("pipeline_process")
		p.l.Warn("pipeline downstream error", applogger.String("symbol", t.Symbol), applogger.Error(err))
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	return nil
}

func validateTrade(t *models.Trade) error {
	if t == nil {
		return fmt.Errorf("trade nil")
	}
	if t.Symbol == "" {
		return fmt.Errorf("symbol empty")
	}
	if t.Timestamp <= 0 {
		return fmt.Errorf("timestamp invalid")
	}
	if math.IsNaN(t.Price) || math.IsInf(t.Price, 0) || t.Price <= 0 || t.Volume < 0 {
		return fmt.Errorf("non-positive price or negative volume")
	}
	return nil
}

// allow must be called with p.mu held. Each symbol gets a bucket of
// maxRPS tokens refilled at maxRPS per second.
func (p *RealtimePipeline) allow(symbol string, now time.Time) bool {
	if p.maxRPS <= 0 {
		return true
	}
	lim, ok := p.limiters[symbol]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(p.maxRPS), p.maxRPS)
		p.limiters[symbol] = lim
	}
	return lim.AllowN(now, 1)
}
