package adjustment

import (
	"math"

	"PriceShaper/internal/domain/models"
)

// Config holds the numeric knobs of the overlay.
type Config struct {
	ActiveSmoothing float64 // share of the gap to the current target closed per step
	DecayFactor     float64 // per-step multiplier of the residual percent while returning
	ReturnEpsilon   float64 // |percent| below which returning completes
	ReturnMaxSteps  int     // hard cap on returning steps
	WickRatio       float64 // wick length relative to the candle body
	MinWickFraction float64 // minimum wick relative to close
}

// DefaultConfig returns the canonical overlay constants.
func DefaultConfig() Config {
	return Config{
		ActiveSmoothing: 0.35,
		DecayFactor:     0.92,
		ReturnEpsilon:   0.1,
		ReturnMaxSteps:  10,
		WickRatio:       0.2,
		MinWickFraction: 0.0001,
	}
}

// Option configures Engine.
type Option func(*Config)

// WithActiveSmoothing sets the ACTIVE-phase smoothing factor (0,1].
func WithActiveSmoothing(a float64) Option {
	return func(c *Config) {
		if a > 0 && a <= 1 {
			c.ActiveSmoothing = a
		}
	}
}

// WithDecay sets the returning decay factor and its termination rule.
func WithDecay(factor, epsilon float64, maxSteps int) Option {
	return func(c *Config) {
		if factor > 0 && factor < 1 {
			c.DecayFactor = factor
		}
		if epsilon > 0 {
			c.ReturnEpsilon = epsilon
		}
		if maxSteps > 0 {
			c.ReturnMaxSteps = maxSteps
		}
	}
}

// WithWicks sets the high/low reconstruction ratios.
func WithWicks(ratio, minFraction float64) Option {
	return func(c *Config) {
		if ratio >= 0 {
			c.WickRatio = ratio
		}
		if minFraction >= 0 {
			c.MinWickFraction = minFraction
		}
	}
}

// Outcome tells the caller which path produced a bar.
type Outcome int

const (
	OutcomePassThrough Outcome = iota
	OutcomeActive
	OutcomeReturning
	OutcomeResolved // returning finished, raw price emitted
	OutcomeMismatch
	OutcomeStale
	OutcomeDegraded
)

func (o Outcome) String() string {
	switch o {
	case OutcomePassThrough:
		return "pass_through"
	case OutcomeActive:
		return "active"
	case OutcomeReturning:
		return "returning"
	case OutcomeResolved:
		return "resolved"
	case OutcomeMismatch:
		return "mismatch"
	case OutcomeStale:
		return "stale"
	case OutcomeDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// Modified reports whether the bar differs from the raw input.
func (o Outcome) Modified() bool {
	return o == OutcomeActive || o == OutcomeReturning || o == OutcomeResolved
}

// Engine applies adjustments to raw bars. It holds configuration only; all
// per-instrument memory lives in State, so one Engine serves every session.
type Engine struct {
	cfg Config
}

// New creates an Engine with DefaultConfig overridden by opts.
func New(opts ...Option) *Engine {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Engine{cfg: cfg}
}

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// advance runs the phase machine for one evaluation and returns the close to
// emit. State is mutated only on the paths that commit a phase.
func (e *Engine) advance(st *State, raw float64, adjs []models.Adjustment, at int64) (float64, Outcome) {
	a, governed := Governing(adjs, st.Instrument, at)
	if governed {
		if c, err := e.activeClose(st, a, raw, at); err == nil {
			return c, OutcomeActive
		}
	}

	// an adjustment with an unusable target counts as absent
	idle := OutcomePassThrough
	if governed {
		idle = OutcomeDegraded
	}
	switch st.Phase {
	case PhaseActive:
		if st.LastPercent == 0 {
			st.reset()
			return raw, idle
		}
		st.enterReturning()
		fallthrough
	case PhaseReturning:
		return e.returningClose(st, raw)
	}
	return raw, idle
}

// activeClose computes the ACTIVE close for a and commits a to st only when
// the result is usable. An adjustment that governed earlier in the episode
// keeps its anchor and resumes from the last emitted close.
func (e *Engine) activeClose(st *State, a models.Adjustment, raw float64, at int64) (float64, error) {
	continuing := st.Phase == PhaseActive && st.GoverningID == a.ID
	anchor, seen := st.anchorFor(a.ID)
	if !seen {
		anchor = raw
		if a.AnchorPrice != nil {
			anchor = *a.AnchorPrice
		}
	}
	target, err := Target(a, anchor)
	if err != nil {
		return 0, err
	}
	p, err := Progress(at, a.StartAt, a.EndsAt)
	if err != nil {
		return 0, err
	}
	current := anchor + (target-anchor)*p

	prev := anchor
	if seen {
		prev = st.LastSyntheticClose
	}
	c := prev + (current-prev)*e.cfg.ActiveSmoothing
	if !finite(c) || c <= 0 {
		return 0, ErrInvalidAdjustment
	}
	if !continuing {
		st.enterActive(a.ID, anchor)
	}
	return c, nil
}

func (e *Engine) returningClose(st *State, raw float64) (float64, Outcome) {
	percent := st.ReturningStartPercent * math.Pow(e.cfg.DecayFactor, float64(st.ReturningStepCount))
	st.ReturningStepCount++
	if math.Abs(percent) < e.cfg.ReturnEpsilon || st.ReturningStepCount >= e.cfg.ReturnMaxSteps {
		st.reset()
		return raw, OutcomeResolved
	}
	return raw * (1 + percent/100), OutcomeReturning
}

// wicks rebuilds high/low around a modified body.
func (e *Engine) wicks(open, close float64) (high, low float64) {
	body := math.Abs(close - open)
	wick := math.Max(body*e.cfg.WickRatio, close*e.cfg.MinWickFraction)
	high = math.Max(open, close) + wick
	low = math.Min(open, close) - wick
	if low <= 0 {
		low = math.Min(open, close)
	}
	return high, low
}
