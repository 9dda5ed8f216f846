package repository

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"PriceShaper/internal/domain/models"
	"PriceShaper/pkg/cache"
	xhttp "PriceShaper/pkg/http"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPAdjustmentSource(t *testing.T) {
	anchor := 100.0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/adjustments", r.URL.Path)
		assert.Equal(t, "BINANCE:BTCUSDT", r.URL.Query().Get("instrument"))
		assert.Equal(t, "recent", r.URL.Query().Get("active"))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status": 200,
			"data": []models.Adjustment{{
				ID: "a1", InstrumentID: "BTC/USDT", Kind: models.KindPercent,
				Magnitude: 5, AnchorPrice: &anchor, StartAt: 1, EndsAt: 2,
			}},
		})
	}))
	defer srv.Close()

	src := NewHTTPAdjustmentSource(srv.URL+"/", xhttp.NewClient(xhttp.WithTimeout(time.Second)))
	got, err := src.GetActiveAdjustments(context.Background(), "BINANCE:BTCUSDT")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a1", got[0].ID)
	require.NotNil(t, got[0].AnchorPrice)
	assert.Equal(t, 100.0, *got[0].AnchorPrice)
}

func TestHTTPAdjustmentSourceStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	src := NewHTTPAdjustmentSource(srv.URL, xhttp.NewClient())
	_, err := src.GetActiveAdjustments(context.Background(), "BTCUSDT")
	require.Error(t, err)
	var se *xhttp.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadGateway, se.Code)
}

type countingSource struct {
	calls atomic.Int32
	adjs  []models.Adjustment
	err   error
}

func (s *countingSource) GetActiveAdjustments(context.Context, string) ([]models.Adjustment, error) {
	s.calls.Add(1)
	return s.adjs, s.err
}

func TestCachedAdjustmentSourceSnapshotsAndInvalidates(t *testing.T) {
	ctx := context.Background()
	mc := cache.NewMemoryCache()
	defer mc.Close()
	next := &countingSource{adjs: []models.Adjustment{{ID: "a1", InstrumentID: "BTCUSDT"}}}
	src := NewCachedAdjustmentSource(next, mc, time.Minute, nil)

	for i := 0; i < 3; i++ {
		got, err := src.GetActiveAdjustments(ctx, "BINANCE:BTC/USDT")
		require.NoError(t, err)
		require.Len(t, got, 1)
	}
	// spelling variants share one snapshot
	_, err := src.GetActiveAdjustments(ctx, "btc-usdt")
	require.NoError(t, err)
	assert.Equal(t, int32(1), next.calls.Load())

	require.NoError(t, src.Invalidate(ctx, "BTCUSDT"))
	_, err = src.GetActiveAdjustments(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, int32(2), next.calls.Load())

	require.NoError(t, src.Invalidate(ctx, ""))
	_, err = src.GetActiveAdjustments(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, int32(3), next.calls.Load())
}

func TestCachedAdjustmentSourceDoesNotCacheErrors(t *testing.T) {
	ctx := context.Background()
	mc := cache.NewMemoryCache()
	defer mc.Close()
	next := &countingSource{err: errors.New("admin down")}
	src := NewCachedAdjustmentSource(next, mc, time.Minute, nil)

	_, err := src.GetActiveAdjustments(ctx, "BTCUSDT")
	require.Error(t, err)
	_, err = src.GetActiveAdjustments(ctx, "BTCUSDT")
	require.Error(t, err)
	assert.Equal(t, int32(2), next.calls.Load())
}

func TestCacheMarkStore(t *testing.T) {
	ctx := context.Background()
	mc := cache.NewMemoryCache()
	defer mc.Close()
	s := NewCacheMarkStore(mc, time.Minute)

	_, ok, err := s.GetMark(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetMark(ctx, "BINANCE:BTCUSDT", 101.75))
	p, ok, err := s.GetMark(ctx, "btc/usdt")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 101.75, p)

	exists, _ := mc.Exists(ctx, "mark:BTCUSDT")
	assert.True(t, exists)
}

func TestBarMessageShape(t *testing.T) {
	b := models.Bar{Symbol: "BTCUSDT", Timestamp: 60_000, Open: 1, High: 2, Low: 0.5, Close: 1.5, ManipulationPercent: 1.2}
	raw, err := json.Marshal(NewBarMessage(b, true))
	require.NoError(t, err)
	assert.JSONEq(t, `{"symbol":"BTCUSDT","t":60000,"o":1,"h":2,"l":0.5,"c":1.5,"v":0,
		"manipulation_percent":1.2,"new_period":true}`, string(raw))
}
