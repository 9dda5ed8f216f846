package adjustment

import (
	"math"

	"PriceShaper/internal/domain/models"
)

// Tick is the result of one ApplyTick call.
type Tick struct {
	Bar       models.Bar
	NewPeriod bool // false when Bar updates the current period in place
	Outcome   Outcome
	Phase     Phase
}

// ApplyTick overlays adjs onto one raw bar and advances st.
//
// Bars for another instrument, bars older than the last accepted one and
// bars without a usable close are returned unchanged with st untouched. Every failure degrades to the raw
// bar; ApplyTick never panics on bad adjustment input.
func (e *Engine) ApplyTick(st *State, raw models.Bar, adjs []models.Adjustment) Tick {
	raw.ManipulationPercent = 0
	if st == nil {
		return Tick{Bar: raw, NewPeriod: true, Outcome: OutcomePassThrough, Phase: PhaseIdle}
	}
	if raw.Symbol != "" && st.Instrument != "" && !Matches(raw.Symbol, st.Instrument) {
		return Tick{Bar: raw, Outcome: OutcomeMismatch, Phase: st.Phase}
	}

	at := evalTime(raw)
	if st.seen && (raw.Timestamp < st.periodStart || at < st.lastEval) {
		return Tick{Bar: raw, Outcome: OutcomeStale, Phase: st.Phase}
	}
	newPeriod := !st.seen || raw.Timestamp != st.periodStart

	if !finite(raw.Close) || raw.Close <= 0 {
		return Tick{Bar: raw, NewPeriod: newPeriod, Outcome: OutcomeDegraded, Phase: st.Phase}
	}

	c, outcome := e.advance(st, raw.Close, adjs, at)
	t := Tick{NewPeriod: newPeriod, Outcome: outcome, Phase: st.Phase}
	if outcome.Modified() {
		t.Bar = e.shape(st, raw, newPeriod, c)
	} else {
		t.Bar = e.passThrough(st, raw, newPeriod)
	}
	st.record(t, at, outcome.Modified())
	return t
}

// shape builds the synthetic candle for close c. The open is pinned to the
// previous emitted close (or the period's pinned open for in-place updates).
func (e *Engine) shape(st *State, raw models.Bar, newPeriod bool, c float64) models.Bar {
	open := raw.Open
	switch {
	case !newPeriod:
		open = st.periodOpen
	case st.seen:
		open = st.LastSyntheticClose
	}
	high, low := e.wicks(open, c)
	if !newPeriod {
		high = math.Max(high, st.periodHigh)
		low = math.Min(low, st.periodLow)
	}

	out := raw
	out.Open = open
	out.High = high
	out.Low = low
	out.Close = c
	out.ManipulationPercent = (c/raw.Close - 1) * 100
	return out
}

// passThrough emits raw, except that an in-place update of a period whose
// open was already pinned keeps that open and its extremes.
func (e *Engine) passThrough(st *State, raw models.Bar, newPeriod bool) models.Bar {
	if newPeriod || !st.periodForced {
		return raw
	}
	out := raw
	out.Open = st.periodOpen
	out.High = math.Max(math.Max(raw.High, st.periodHigh), math.Max(out.Open, raw.Close))
	out.Low = math.Min(math.Min(raw.Low, st.periodLow), math.Min(out.Open, raw.Close))
	return out
}

func evalTime(b models.Bar) int64 {
	if b.UpdatedAt > 0 {
		return b.UpdatedAt
	}
	return b.Timestamp
}
