package repository

import (
	"context"
	"errors"
	"time"

	domrepo "PriceShaper/internal/domain/repository"
	"PriceShaper/internal/services/adjustment"
	"PriceShaper/pkg/cache"
)

// CacheMarkStore keeps the displayed close under "mark:{INSTRUMENT}" so
// order matching and PnL read the same price the chart shows.
type CacheMarkStore struct {
	cache cache.Service
	ttl   time.Duration
}

func NewCacheMarkStore(c cache.Service, ttl time.Duration) *CacheMarkStore {
	return &CacheMarkStore{cache: c, ttl: ttl}
}

func markKey(instrument string) string {
	return cache.Key("mark", adjustment.Normalize(instrument))
}

func (s *CacheMarkStore) SetMark(ctx context.Context, instrument string, price float64) error {
	return s.cache.Set(ctx, markKey(instrument), price, s.ttl)
}

func (s *CacheMarkStore) GetMark(ctx context.Context, instrument string) (float64, bool, error) {
	var p float64
	err := s.cache.Get(ctx, markKey(instrument), &p)
	if errors.Is(err, cache.ErrCacheMiss) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return p, true, nil
}

var _ domrepo.MarkPriceCache = (*CacheMarkStore)(nil)
