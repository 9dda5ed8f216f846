package middleware

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"PriceShaper/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopMetrics struct {
	mu     sync.Mutex
	errors map[string]int
}

func (m *nopMetrics) RecordMessageSent(string, string) {}
func (m *nopMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.errors == nil {
		m.errors = map[string]int{}
	}
	m.errors[kind]++
}
func (m *nopMetrics) RecordLastPrice(string, float64)    {}
func (m *nopMetrics) RecordLatency(string, float64)      {}
func (m *nopMetrics) RecordManipulation(string, float64) {}
func (m *nopMetrics) RecordPhase(string, string)         {}
func (m *nopMetrics) RecordOutcome(string, string)       {}

func (m *nopMetrics) count(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors[kind]
}

type recordingProc struct {
	mu  sync.Mutex
	got []models.Trade
	err error
}

func (r *recordingProc) Process(_ context.Context, t *models.Trade) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, *t)
	return r.err
}

func (r *recordingProc) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.got)
}

func TestPipelineRejectsInvalidTrades(t *testing.T) {
	m := &nopMetrics{}
	proc := &recordingProc{}
	p := NewRealtimePipeline(proc, m, WithMaxRPS(0))
	ctx := context.Background()

	bad := []*models.Trade{
		nil,
		{Timestamp: 1, Price: 1},
		{Symbol: "BTCUSDT", Price: 1},
		{Symbol: "BTCUSDT", Timestamp: 1, Price: 0},
		{Symbol: "BTCUSDT", Timestamp: 1, Price: math.NaN()},
		{Symbol: "BTCUSDT", Timestamp: 1, Price: 1, Volume: -1},
	}
	for _, tr := range bad {
		assert.Error(t, p.Process(ctx, tr))
	}
	assert.Equal(t, 0, proc.len())
	assert.Equal(t, len(bad), m.count("pipeline_validate"))
}

func TestPipelineThrottlesPerSymbol(t *testing.T) {
	m := &nopMetrics{}
	proc := &recordingProc{}
	p := NewRealtimePipeline(proc, m, WithMaxRPS(1))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, p.Process(ctx, &models.Trade{Symbol: "BTCUSDT", Timestamp: int64(i + 1), Price: 100}))
	}
	require.NoError(t, p.Process(ctx, &models.Trade{Symbol: "ETHUSDT", Timestamp: 1, Price: 10}))

	assert.Equal(t, 2, proc.len())
	assert.Equal(t, 4, m.count("pipeline_throttle"))
}

func TestPipelineDrainsInOrder(t *testing.T) {
	proc := &recordingProc{}
	p := NewRealtimePipeline(proc, &nopMetrics{}, WithMaxRPS(0), WithBufferSize(64))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)

	for i := 1; i <= 50; i++ {
		require.NoError(t, p.Process(ctx, &models.Trade{Symbol: "BTCUSDT", Timestamp: int64(i), Price: float64(100 + i)}))
	}
	require.Eventually(t, func() bool { return proc.len() == 50 }, time.Second, 5*time.Millisecond)
	p.Stop()

	for i, tr := range proc.got {
		assert.Equal(t, int64(i+1), tr.Timestamp)
	}
}

func TestPipelineSurfacesDownstreamErrorWhenSynchronous(t *testing.T) {
	m := &nopMetrics{}
	proc := &recordingProc{err: errors.New("boom")}
	p := NewRealtimePipeline(proc, m, WithMaxRPS(0))

	err := p.Process(context.Background(), &models.Trade{Symbol: "BTCUSDT", Timestamp: 1, Price: 1})
	require.Error(t, err)
	assert.Equal(t, 1, m.count("pipeline_process"))
}

func TestPipelineTransform(t *testing.T) {
	proc := &recordingProc{}
	p := NewRealtimePipeline(proc, &nopMetrics{}, WithMaxRPS(0), WithTransform(func(tr *models.Trade) *models.Trade {
		out := *tr
		out.Symbol = "X:" + tr.Symbol
		return &out
	}))
	require.NoError(t, p.Process(context.Background(), &models.Trade{Symbol: "BTCUSDT", Timestamp: 1, Price: 1}))
	require.Equal(t, 1, proc.len())
	assert.Equal(t, "X:BTCUSDT", proc.got[0].Symbol)
}
