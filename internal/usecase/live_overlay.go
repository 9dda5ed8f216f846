package usecase

import (
	"context"
	"sync"
	"time"

	"PriceShaper/internal/domain/models"
	domrepo "PriceShaper/internal/domain/repository"
	"PriceShaper/internal/services/adjustment"
	applogger "PriceShaper/pkg/logger"
)

// LiveOverlay turns the raw trade stream into displayed bars. Each instrument
// gets its own session: an engine State plus the raw in-progress bar that
// trades are folded into.
type LiveOverlay struct {
	engine  *adjustment.Engine
	source  domrepo.AdjustmentSource
	store   domrepo.BarStore       // optional, used to warm new sessions
	pub     domrepo.BarPublisher   // optional
	marks   domrepo.MarkPriceCache // optional
	metrics domrepo.Metrics
	l       *applogger.Logger

	tf       domrepo.Timeframe
	warmBars int

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	mu      sync.Mutex
	state   *adjustment.State
	raw     models.Bar
	hasRaw  bool
	adjs    []models.Adjustment // last list fetched successfully
	hasAdjs bool
	last    adjustment.Tick
	hasLast bool
}

// LiveOption configures LiveOverlay.
type LiveOption func(*LiveOverlay)

// WithBarStore seeds each new session by replaying its last warmBars stored bars from s.
func WithBarStore(s domrepo.BarStore, warmBars int) LiveOption {
	return func(o *LiveOverlay) {
		o.store = s
		o.warmBars = warmBars
	}
}

// WithPublisher fans every overlaid bar out through p.
func WithPublisher(p domrepo.BarPublisher) LiveOption {
	return func(o *LiveOverlay) { o.pub = p }
}

// WithMarkCache writes each session's latest synthetic close to c.
func WithMarkCache(c domrepo.MarkPriceCache) LiveOption {
	return func(o *LiveOverlay) { o.marks = c }
}

// WithTimeframe sets the bucket width of the live series.
func WithTimeframe(tf domrepo.Timeframe) LiveOption {
	return func(o *LiveOverlay) { o.tf = domrepo.NormalizeTimeframe(string(tf)) }
}

// WithLiveLogger replaces the default logger; nil is ignored.
func WithLiveLogger(l *applogger.Logger) LiveOption {
	return func(o *LiveOverlay) {
		if l != nil {
			o.l = l
		}
	}
}

// NewLiveOverlay creates an overlay that folds trades into bars and runs them through engine.
func NewLiveOverlay(engine *adjustment.Engine, source domrepo.AdjustmentSource, metrics domrepo.Metrics, opts ...LiveOption) *LiveOverlay {
	o := &LiveOverlay{
		engine:   engine,
		source:   source,
		metrics:  metrics,
		l:        applogger.Nop(),
		tf:       domrepo.DefaultTimeframe(),
		sessions: make(map[string]*session),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Process folds one trade into its instrument's bar and emits the displayed
// result. Downstream failures are logged and counted; the trade is never
// re-applied, so Process only fails on input it cannot use.
func (o *LiveOverlay) Process(ctx context.Context, t *models.Trade) error {
	if t == nil || t.Symbol == "" {
		return errInvalidTrade
	}
	start := time.Now()
	key := adjustment.Normalize(t.Symbol)
	s := o.session(ctx, key, t)

	s.mu.Lock()
	defer s.mu.Unlock()

	bucket := o.tf.BucketStart(t.Timestamp)
	if s.hasRaw && bucket < s.raw.Timestamp {
		o.metrics.RecordError("live_late_trade")
		o.l.Debug("late trade dropped", applogger.Symbol(t.Symbol), applogger.Int64("ts", t.Timestamp))
		return nil
	}
	o.fold(s, t, bucket)

	adjs := o.adjustments(ctx, s, t.Symbol)
	prev := s.state.Phase
	tick := o.engine.ApplyTick(s.state, s.raw, adjs)

	o.metrics.RecordOutcome(key, tick.Outcome.String())
	switch tick.Outcome {
	case adjustment.OutcomeStale, adjustment.OutcomeMismatch:
		o.l.Debug("tick skipped", applogger.Symbol(t.Symbol), applogger.String("outcome", tick.Outcome.String()))
		return nil
	case adjustment.OutcomeDegraded:
		o.metrics.RecordError("live_degraded")
	}
	if tick.Phase != prev {
		o.l.Info("adjustment phase changed",
			applogger.Symbol(t.Symbol),
			applogger.String("from", string(prev)),
			applogger.String("to", string(tick.Phase)),
			applogger.String("adjustment_id", s.state.GoverningID),
			applogger.Float64("percent", tick.Bar.ManipulationPercent))
	}

	s.last = tick
	s.hasLast = true
	o.metrics.RecordPhase(key, string(tick.Phase))
	o.metrics.RecordManipulation(key, tick.Bar.ManipulationPercent)
	o.metrics.RecordLastPrice(key, tick.Bar.Close)

	o.emit(ctx, tick)
	o.metrics.RecordLatency("live_overlay", time.Since(start).Seconds())
	return nil
}

// fold merges t into the session's raw in-progress bar.
func (o *LiveOverlay) fold(s *session, t *models.Trade, bucket int64) {
	if !s.hasRaw || bucket > s.raw.Timestamp {
		s.raw = models.Bar{
			Symbol:    t.Symbol,
			Timestamp: bucket,
			Open:      t.Price,
			High:      t.Price,
			Low:       t.Price,
			Close:     t.Price,
			Volume:    t.Volume,
			UpdatedAt: t.Timestamp,
		}
		s.hasRaw = true
		return
	}
	if t.Price > s.raw.High {
		s.raw.High = t.Price
	}
	if t.Price < s.raw.Low {
		s.raw.Low = t.Price
	}
	s.raw.Volume += t.Volume
	// out-of-order trades inside the bucket do not move the close
	if t.Timestamp >= s.raw.UpdatedAt {
		s.raw.Close = t.Price
		s.raw.UpdatedAt = t.Timestamp
	}
}

// adjustments returns the current list, falling back to the last good one.
func (o *LiveOverlay) adjustments(ctx context.Context, s *session, symbol string) []models.Adjustment {
	adjs, err := o.source.GetActiveAdjustments(ctx, symbol)
	if err == nil {
		s.adjs = adjs
		s.hasAdjs = true
		return adjs
	}
	o.metrics.RecordError("live_adjustments")
	o.l.Warn("adjustments unavailable",
		applogger.Symbol(symbol),
		applogger.Bool("using_snapshot", s.hasAdjs),
		applogger.Error(err))
	return s.adjs
}

func (o *LiveOverlay) emit(ctx context.Context, tick adjustment.Tick) {
	if o.pub != nil {
		if err := o.pub.Publish(ctx, tick.Bar, tick.NewPeriod); err != nil {
			o.metrics.RecordError("live_publish")
			o.l.Warn("publish bar failed", applogger.Symbol(tick.Bar.Symbol), applogger.Error(err))
		} else {
			o.metrics.RecordMessageSent("kafka", tick.Bar.Symbol)
		}
	}
	if o.marks != nil {
		if err := o.marks.SetMark(ctx, tick.Bar.Symbol, tick.Bar.Close); err != nil {
			o.metrics.RecordError("live_mark")
			o.l.Warn("set mark price failed", applogger.Symbol(tick.Bar.Symbol), applogger.Error(err))
		}
	}
}

// session returns the session for key, creating and warming it on first use.
func (o *LiveOverlay) session(ctx context.Context, key string, t *models.Trade) *session {
	o.mu.Lock()
	s, ok := o.sessions[key]
	if !ok {
		s = &session{state: adjustment.NewState(t.Symbol)}
		o.sessions[key] = s
		s.mu.Lock() // held until warmed so concurrent trades queue behind it
	}
	o.mu.Unlock()
	if ok {
		return s
	}
	defer s.mu.Unlock()
	o.warm(ctx, s, t)
	return s
}

// warm replays recent closed bars so a fresh session resumes the same
// displayed path the batch view shows.
func (o *LiveOverlay) warm(ctx context.Context, s *session, t *models.Trade) {
	if o.store == nil || o.warmBars <= 0 {
		return
	}
	bars, err := o.store.GetLatestNBars(ctx, t.Symbol, o.warmBars, o.tf)
	if err != nil {
		o.metrics.RecordError("live_warm")
		o.l.Warn("warm session failed", applogger.Symbol(t.Symbol), applogger.Error(err))
		return
	}
	bucket := o.tf.BucketStart(t.Timestamp)
	closed := bars[:0:0]
	for _, b := range bars {
		if b.Timestamp < bucket {
			closed = append(closed, b)
		}
	}
	if len(closed) == 0 {
		return
	}
	adjs, err := o.source.GetActiveAdjustments(ctx, t.Symbol)
	if err != nil {
		o.metrics.RecordError("live_warm")
		o.l.Warn("warm session without adjustments", applogger.Symbol(t.Symbol), applogger.Error(err))
		return
	}
	s.adjs, s.hasAdjs = adjs, true
	shaped, st := o.engine.Replay(closed, adjs)
	st.Instrument = t.Symbol
	s.state = st
	s.last = adjustment.Tick{Bar: shaped[len(shaped)-1], NewPeriod: true, Phase: st.Phase}
	s.hasLast = true
	o.l.Info("session warmed",
		applogger.Symbol(t.Symbol),
		applogger.Int("bars", len(closed)),
		applogger.String("phase", string(st.Phase)))
}

// LiveSnapshot is the latest displayed bar of a session.
type LiveSnapshot struct {
	Bar         models.Bar
	Phase       adjustment.Phase
	GoverningID string
}

// Latest returns the last emitted bar for symbol.
func (o *LiveOverlay) Latest(symbol string) (LiveSnapshot, bool) {
	o.mu.Lock()
	s, ok := o.sessions[adjustment.Normalize(symbol)]
	o.mu.Unlock()
	if !ok {
		return LiveSnapshot{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasLast {
		return LiveSnapshot{}, false
	}
	return LiveSnapshot{Bar: s.last.Bar, Phase: s.state.Phase, GoverningID: s.state.GoverningID}, true
}

// Drop discards the session for symbol. The next trade starts a new one.
func (o *LiveOverlay) Drop(symbol string) bool {
	key := adjustment.Normalize(symbol)
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.sessions[key]; !ok {
		return false
	}
	delete(o.sessions, key)
	o.l.Info("session dropped", applogger.Symbol(symbol))
	return true
}

// Sessions returns the number of live sessions.
func (o *LiveOverlay) Sessions() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.sessions)
}
