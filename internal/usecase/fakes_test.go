package usecase

import (
	"context"
	"sync"
	"time"

	"PriceShaper/internal/domain/models"
	domrepo "PriceShaper/internal/domain/repository"
)

const (
	t0     int64 = 1_700_000_040_000 // minute aligned
	minute int64 = 60_000
)

type fakeMetrics struct {
	mu       sync.Mutex
	errors   map[string]int
	outcomes map[string]int
	phases   map[string]string
	sent     int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{errors: map[string]int{}, outcomes: map[string]int{}, phases: map[string]string{}}
}

func (m *fakeMetrics) RecordMessageSent(string, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent++
}
func (m *fakeMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[kind]++
}
func (m *fakeMetrics) RecordLastPrice(string, float64)    {}
func (m *fakeMetrics) RecordLatency(string, float64)      {}
func (m *fakeMetrics) RecordManipulation(string, float64) {}
func (m *fakeMetrics) RecordPhase(symbol, phase string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.phases[symbol] = phase
}
func (m *fakeMetrics) RecordOutcome(_ string, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes[outcome]++
}

type fakeSource struct {
	mu    sync.Mutex
	adjs  []models.Adjustment
	err   error
	calls int
}

func (s *fakeSource) GetActiveAdjustments(context.Context, string) ([]models.Adjustment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return append([]models.Adjustment(nil), s.adjs...), nil
}

func (s *fakeSource) set(adjs []models.Adjustment, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adjs, s.err = adjs, err
}

type fakeStore struct {
	bars []models.Bar
	err  error
}

func (s *fakeStore) GetBars(_ context.Context, _ string, from, to time.Time, _ domrepo.Timeframe) ([]models.Bar, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []models.Bar
	for _, b := range s.bars {
		if b.Timestamp >= from.UnixMilli() && b.Timestamp <= to.UnixMilli() {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *fakeStore) GetLatestNBars(_ context.Context, _ string, n int, _ domrepo.Timeframe) ([]models.Bar, error) {
	if s.err != nil {
		return nil, s.err
	}
	if len(s.bars) <= n {
		return s.bars, nil
	}
	return s.bars[len(s.bars)-n:], nil
}

type published struct {
	bar       models.Bar
	newPeriod bool
}

type fakePublisher struct {
	mu  sync.Mutex
	out []published
	err error
}

func (p *fakePublisher) Publish(_ context.Context, b models.Bar, newPeriod bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.out = append(p.out, published{bar: b, newPeriod: newPeriod})
	return nil
}

func (p *fakePublisher) Close() error { return nil }

type fakeMarks struct {
	mu    sync.Mutex
	marks map[string]float64
}

func (m *fakeMarks) SetMark(_ context.Context, instrument string, price float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.marks == nil {
		m.marks = map[string]float64{}
	}
	m.marks[instrument] = price
	return nil
}

func (m *fakeMarks) GetMark(_ context.Context, instrument string) (float64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.marks[instrument]
	return p, ok, nil
}

func pump(id string, magnitude float64, start, end int64) models.Adjustment {
	return models.Adjustment{
		ID:           id,
		InstrumentID: "BINANCE:BTCUSDT",
		Kind:         models.KindPercent,
		Magnitude:    magnitude,
		StartAt:      start,
		EndsAt:       end,
	}
}

func bar(ts int64, price float64) models.Bar {
	return models.Bar{
		Symbol:    "BTCUSDT",
		Timestamp: ts,
		Open:      price,
		High:      price,
		Low:       price,
		Close:     price,
		Volume:    1,
	}
}
