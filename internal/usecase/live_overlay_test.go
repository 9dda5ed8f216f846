package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"PriceShaper/internal/domain/models"
	domrepo "PriceShaper/internal/domain/repository"
	"PriceShaper/internal/services/adjustment"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trade(ts int64, price float64) *models.Trade {
	return &models.Trade{Symbol: "BTCUSDT", Timestamp: ts, Price: price, Volume: 1}
}

func newOverlay(src *fakeSource, opts ...LiveOption) (*LiveOverlay, *fakePublisher, *fakeMarks, *fakeMetrics) {
	pub := &fakePublisher{}
	marks := &fakeMarks{}
	m := newFakeMetrics()
	opts = append([]LiveOption{WithPublisher(pub), WithMarkCache(marks), WithTimeframe(domrepo.TF1m)}, opts...)
	return NewLiveOverlay(adjustment.New(), src, m, opts...), pub, marks, m
}

func TestLiveOverlayPassThroughAggregatesTrades(t *testing.T) {
	o, pub, marks, _ := newOverlay(&fakeSource{})
	ctx := context.Background()

	require.NoError(t, o.Process(ctx, trade(t0+1_000, 100)))
	require.NoError(t, o.Process(ctx, trade(t0+2_000, 105)))
	require.NoError(t, o.Process(ctx, trade(t0+3_000, 95)))
	require.NoError(t, o.Process(ctx, trade(t0+4_000, 101)))
	require.NoError(t, o.Process(ctx, trade(t0+minute+1_000, 102)))

	require.Len(t, pub.out, 5)
	assert.True(t, pub.out[0].newPeriod)
	assert.False(t, pub.out[3].newPeriod)
	assert.True(t, pub.out[4].newPeriod)

	first := pub.out[3].bar
	assert.Equal(t, t0, first.Timestamp)
	assert.Equal(t, 100.0, first.Open)
	assert.Equal(t, 105.0, first.High)
	assert.Equal(t, 95.0, first.Low)
	assert.Equal(t, 101.0, first.Close)
	assert.Equal(t, 4.0, first.Volume)
	assert.Equal(t, t0+4_000, first.UpdatedAt)
	assert.Zero(t, first.ManipulationPercent)

	mark, ok, err := marks.GetMark(ctx, "BTCUSDT")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 102.0, mark)

	snap, ok := o.Latest("btc/usdt")
	require.True(t, ok)
	assert.Equal(t, adjustment.PhaseIdle, snap.Phase)
	assert.Equal(t, 102.0, snap.Bar.Close)
}

func TestLiveOverlayOutOfOrderTradeKeepsClose(t *testing.T) {
	o, pub, _, m := newOverlay(&fakeSource{})
	ctx := context.Background()

	require.NoError(t, o.Process(ctx, trade(t0+minute+5_000, 100)))
	require.NoError(t, o.Process(ctx, trade(t0+minute+2_000, 90)))
	require.NoError(t, o.Process(ctx, trade(t0+10_000, 80)))

	require.Len(t, pub.out, 2)
	b := pub.out[1].bar
	assert.Equal(t, 100.0, b.Close)
	assert.Equal(t, 90.0, b.Low)
	assert.Equal(t, 1, m.errors["live_late_trade"])
}

func TestLiveOverlayMatchesBatch(t *testing.T) {
	adjs := []models.Adjustment{pump("a1", 8, t0+10*minute, t0+30*minute)}
	o, pub, _, m := newOverlay(&fakeSource{adjs: adjs})
	ctx := context.Background()

	var raw []models.Bar
	price := 100.0
	for i := 0; i < 60; i++ {
		ts := t0 + int64(i)*minute + 30_000
		price += float64(i%7) - 3
		require.NoError(t, o.Process(ctx, trade(ts, price)))
		b := bar(t0+int64(i)*minute, price)
		b.UpdatedAt = ts
		raw = append(raw, b)
	}

	want := adjustment.New().ApplyToRange(raw, adjs)
	require.Len(t, pub.out, len(want))
	for i := range want {
		assert.InDelta(t, want[i].Close, pub.out[i].bar.Close, 1e-9, "bar %d", i)
		assert.InDelta(t, want[i].Open, pub.out[i].bar.Open, 1e-9, "bar %d", i)
		assert.InDelta(t, want[i].ManipulationPercent, pub.out[i].bar.ManipulationPercent, 1e-9, "bar %d", i)
	}
	assert.Greater(t, pub.out[25].bar.ManipulationPercent, 0.0)
	assert.Zero(t, pub.out[59].bar.ManipulationPercent)
	assert.Positive(t, m.outcomes["returning"])
	assert.Equal(t, 1, m.outcomes["resolved"])
	assert.Equal(t, "IDLE", m.phases["BTCUSDT"])
}

func TestLiveOverlayKeepsSnapshotWhenSourceFails(t *testing.T) {
	src := &fakeSource{adjs: []models.Adjustment{pump("a1", 10, t0, t0+10*minute)}}
	o, pub, _, m := newOverlay(src)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, o.Process(ctx, trade(t0+int64(i)*minute+1_000, 100)))
	}
	src.set(nil, errors.New("admin down"))
	require.NoError(t, o.Process(ctx, trade(t0+5*minute+1_000, 100)))

	last := pub.out[len(pub.out)-1]
	assert.Greater(t, last.bar.ManipulationPercent, 0.0)
	snap, ok := o.Latest("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, adjustment.PhaseActive, snap.Phase)
	assert.Equal(t, "a1", snap.GoverningID)
	assert.Equal(t, 1, m.errors["live_adjustments"])
}

func TestLiveOverlayPublishFailureDoesNotFail(t *testing.T) {
	o, pub, marks, m := newOverlay(&fakeSource{})
	pub.err = errors.New("kafka down")

	require.NoError(t, o.Process(context.Background(), trade(t0+1_000, 100)))
	assert.Equal(t, 1, m.errors["live_publish"])
	_, ok, _ := marks.GetMark(context.Background(), "BTCUSDT")
	assert.True(t, ok)
}

func TestLiveOverlayWarmsFromStore(t *testing.T) {
	adjs := []models.Adjustment{pump("a1", 10, t0, t0+30*minute)}
	var hist []models.Bar
	for i := 0; i < 20; i++ {
		hist = append(hist, bar(t0+int64(i)*minute, 100))
	}
	store := &fakeStore{bars: hist}
	o, pub, _, _ := newOverlay(&fakeSource{adjs: adjs}, WithBarStore(store, 50))

	snap, ok := o.Latest("BTCUSDT")
	assert.False(t, ok)

	require.NoError(t, o.Process(context.Background(), trade(t0+20*minute+1_000, 100)))

	shaped, st := adjustment.New().Replay(hist, adjs)
	snap, ok = o.Latest("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, adjustment.PhaseActive, snap.Phase)
	require.Len(t, pub.out, 1)
	// the first live bar opens where the warmed history closed
	assert.InDelta(t, shaped[len(shaped)-1].Close, pub.out[0].bar.Open, 1e-9)
	assert.Equal(t, st.GoverningID, snap.GoverningID)
}

func TestLiveOverlayWarmIgnoresCurrentBucket(t *testing.T) {
	store := &fakeStore{bars: []models.Bar{bar(t0, 100), bar(t0+minute, 100)}}
	o, pub, _, _ := newOverlay(&fakeSource{}, WithBarStore(store, 10))

	require.NoError(t, o.Process(context.Background(), trade(t0+minute+1_000, 100)))
	require.Len(t, pub.out, 1)
	assert.True(t, pub.out[0].newPeriod)
}

func TestLiveOverlayDrop(t *testing.T) {
	o, _, _, _ := newOverlay(&fakeSource{})
	require.NoError(t, o.Process(context.Background(), trade(t0+1_000, 100)))
	assert.Equal(t, 1, o.Sessions())

	assert.True(t, o.Drop("BINANCE:BTCUSDT"))
	assert.False(t, o.Drop("BTCUSDT"))
	assert.Equal(t, 0, o.Sessions())
	_, ok := o.Latest("BTCUSDT")
	assert.False(t, ok)
}

func TestLiveOverlayRejectsInvalidTrade(t *testing.T) {
	o, _, _, _ := newOverlay(&fakeSource{})
	assert.Error(t, o.Process(context.Background(), nil))
	assert.Error(t, o.Process(context.Background(), &models.Trade{Price: 1}))
}

func TestLiveOverlayConcurrentSymbols(t *testing.T) {
	o, _, _, _ := newOverlay(&fakeSource{})
	ctx := context.Background()
	symbols := []string{"BTCUSDT", "ETHUSDT", "SOLUSDT", "XRPUSDT"}

	var wg sync.WaitGroup
	for _, s := range symbols {
		wg.Add(1)
		go func(sym string) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				_ = o.Process(ctx, &models.Trade{Symbol: sym, Timestamp: t0 + int64(i)*1_000, Price: 10, Volume: 1})
			}
		}(s)
	}
	wg.Wait()
	assert.Equal(t, len(symbols), o.Sessions())
}
