package adjustment

import "PriceShaper/internal/domain/models"

// ApplyToRange overlays adjs onto an ordered run of historical bars and
// returns a slice of the same length. It reads nothing from, and writes
// nothing to, any live session state, so ranges can be recomputed freely.
func (e *Engine) ApplyToRange(raw []models.Bar, adjs []models.Adjustment) []models.Bar {
	out, _ := e.Replay(raw, adjs)
	return out
}

// Replay is ApplyToRange that also hands back the state reached after the
// last bar. A live session seeded with it continues the series without a
// jump.
//
// The run is threaded through the same step function ApplyTick uses, with a
// fresh local State, so history and live produce identical closes for the
// same inputs.
func (e *Engine) Replay(raw []models.Bar, adjs []models.Adjustment) ([]models.Bar, *State) {
	out := make([]models.Bar, len(raw))
	st := NewState(instrumentOf(raw))
	for i, b := range raw {
		out[i] = e.ApplyTick(st, b, adjs).Bar
	}
	return out, st
}

// instrumentOf returns the first non-empty symbol in bars.
func instrumentOf(bars []models.Bar) string {
	for _, b := range bars {
		if b.Symbol != "" {
			return b.Symbol
		}
	}
	return ""
}
