package adjustment

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PriceShaper/internal/domain/models"
)

func TestApplyToRangeMatchesLive(t *testing.T) {
	e := New()
	bars := walk(42, 240, 64_000)
	adjs := []models.Adjustment{
		pump("pump", 12, bars[20].Timestamp+15_000, bars[70].Timestamp),
		pump("dump", -9, bars[60].Timestamp, bars[90].Timestamp),
		{ID: "abs", InstrumentID: "BTCUSDT", Kind: models.KindAbsolute, Magnitude: 900, AnchorPrice: ptr(63_500), StartAt: bars[150].Timestamp, EndsAt: bars[151].Timestamp + 20_000},
		pump("broken", 50, bars[200].Timestamp, bars[200].Timestamp),
	}

	batch := e.ApplyToRange(bars, adjs)
	require.Len(t, batch, len(bars))

	st := NewState("BTCUSDT")
	for i, b := range bars {
		live := e.ApplyTick(st, b, adjs).Bar
		assert.InEpsilon(t, live.Close, batch[i].Close, 1e-6, "bar %d", i)
		assert.InDelta(t, live.ManipulationPercent, batch[i].ManipulationPercent, 1e-9, "bar %d", i)
	}

	manipulated := 0
	for _, b := range batch {
		if b.ManipulationPercent != 0 {
			manipulated++
		}
	}
	assert.Greater(t, manipulated, 60)
}

func TestApplyToRangeEvaluatesHistoryAtBarTime(t *testing.T) {
	e := New()
	bars := make([]models.Bar, 11)
	for i := range bars {
		bars[i] = flat(t0+int64(i)*minute, 100)
	}
	a := pump("a1", 5, t0, t0+10*minute)
	out := e.ApplyToRange(bars, []models.Adjustment{a})

	for i := 1; i < len(out); i++ {
		assert.GreaterOrEqual(t, out[i].Close, out[i-1].Close, "bar %d", i)
		assert.Equal(t, out[i-1].Close, out[i].Open, "bar %d", i)
	}
	assert.Less(t, out[10].Close, 105.0)
	assert.Greater(t, out[10].Close, 103.0)
}

func TestApplyToRangePassThrough(t *testing.T) {
	bars := walk(5, 100, 1.2345)
	out := New().ApplyToRange(bars, nil)
	assert.Equal(t, bars, out)

	other := pump("eth", 10, bars[0].Timestamp, bars[99].Timestamp)
	other.InstrumentID = "ETHUSDT"
	assert.Equal(t, bars, New().ApplyToRange(bars, []models.Adjustment{other}))
}

func TestApplyToRangeIsPure(t *testing.T) {
	e := New()
	bars := walk(9, 50, 500)
	snapshot := append([]models.Bar(nil), bars...)
	adjs := []models.Adjustment{pump("a", -20, bars[5].Timestamp, bars[25].Timestamp)}

	first := e.ApplyToRange(bars, adjs)
	second := e.ApplyToRange(bars, adjs)

	assert.Equal(t, snapshot, bars, "input must not be mutated")
	assert.Equal(t, first, second)
	assert.Empty(t, e.ApplyToRange(nil, adjs))
}

func TestReplaySeedsLiveSession(t *testing.T) {
	e := New()
	bars := walk(21, 120, 250)
	adjs := []models.Adjustment{pump("a", 15, bars[30].Timestamp, bars[80].Timestamp)}

	full := e.ApplyToRange(bars, adjs)

	head, st := e.Replay(bars[:60], adjs)
	require.Equal(t, full[:60], head)
	require.Equal(t, PhaseActive, st.Phase)

	for i, b := range bars[60:] {
		got := e.ApplyTick(st, b, adjs).Bar
		assert.InEpsilon(t, full[60+i].Close, got.Close, 1e-12, "bar %d", 60+i)
		assert.Equal(t, full[60+i].Open, got.Open, "bar %d", 60+i)
	}
}

func TestApplyToRangeSkipsForeignBars(t *testing.T) {
	e := New()
	bars := walk(4, 20, 100)
	stray := flat(bars[10].Timestamp+1, 3000)
	stray.Symbol = "ETHUSDT"
	mixed := append(append(append([]models.Bar(nil), bars[:11]...), stray), bars[11:]...)

	adjs := []models.Adjustment{pump("a", 10, bars[2].Timestamp, bars[15].Timestamp)}
	out := e.ApplyToRange(mixed, adjs)

	assert.Equal(t, stray, out[11])
	assert.Equal(t, out[10].Close, out[12].Open, "series continues across the foreign bar")
	assert.False(t, math.IsNaN(out[12].Close))
}
