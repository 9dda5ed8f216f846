package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"PriceShaper/internal/domain/models"
	mid "PriceShaper/internal/middleware"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStream struct {
	trades     chan *models.Trade
	errs       chan error
	connected  atomic.Bool
	reconnects atomic.Int32
	closed     atomic.Bool
}

func newFakeStream() *fakeStream {
	return &fakeStream{trades: make(chan *models.Trade, 8), errs: make(chan error, 1)}
}

func (s *fakeStream) Connect(context.Context) error {
	s.connected.Store(true)
	return nil
}
func (s *fakeStream) Subscribe(context.Context) error { return nil }
func (s *fakeStream) Read(context.Context) (<-chan *models.Trade, <-chan error) {
	return s.trades, s.errs
}
func (s *fakeStream) Reconnect(context.Context) error {
	s.reconnects.Add(1)
	return nil
}
func (s *fakeStream) Close() error {
	s.closed.Store(true)
	s.connected.Store(false)
	return nil
}
func (s *fakeStream) IsConnected() bool { return s.connected.Load() }

type recordingProc struct {
	mu  sync.Mutex
	got []models.Trade
}

func (p *recordingProc) Process(_ context.Context, t *models.Trade) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.got = append(p.got, *t)
	return nil
}

func (p *recordingProc) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.got)
}

func TestTradeCollectorForwardsAndReconnects(t *testing.T) {
	stream := newFakeStream()
	proc := &recordingProc{}
	m := newFakeMetrics()
	pipe := mid.NewRealtimePipeline(proc, m, mid.WithMaxRPS(0))
	c := NewTradeCollector(stream, pipe, m, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, c.Start(ctx))
	assert.True(t, c.IsConnected())

	stream.trades <- &models.Trade{Symbol: "BTCUSDT", Timestamp: t0, Price: 100, Volume: 1}
	stream.errs <- errors.New("read: connection reset")
	stream.trades <- &models.Trade{Symbol: "BTCUSDT", Timestamp: t0 + 1000, Price: 101, Volume: 1}
	stream.trades <- &models.Trade{Symbol: "BTCUSDT", Timestamp: t0 + 2000, Price: -1}

	require.Eventually(t, func() bool { return proc.count() == 2 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return stream.reconnects.Load() == 1 }, time.Second, 5*time.Millisecond)

	m.mu.Lock()
	assert.Equal(t, 1, m.errors["stream"])
	m.mu.Unlock()

	require.NoError(t, c.Shutdown(context.Background()))
	assert.True(t, stream.closed.Load())
	assert.False(t, c.IsConnected())
}
