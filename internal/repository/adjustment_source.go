package repository

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"PriceShaper/internal/domain/models"
	domrepo "PriceShaper/internal/domain/repository"
	"PriceShaper/internal/services/adjustment"
	"PriceShaper/pkg/cache"
	xhttp "PriceShaper/pkg/http"
	applogger "PriceShaper/pkg/logger"
)

// HTTPAdjustmentSource reads adjustments from the admin service.
//
//	GET {base}/adjustments?instrument=BTCUSDT&active=recent
//	{"status":200,"message":"OK","data":[{...}]}
type HTTPAdjustmentSource struct {
	base   string
	client *xhttp.Client
}

func NewHTTPAdjustmentSource(baseURL string, client *xhttp.Client) *HTTPAdjustmentSource {
	return &HTTPAdjustmentSource{base: strings.TrimRight(baseURL, "/"), client: client}
}

func (s *HTTPAdjustmentSource) GetActiveAdjustments(ctx context.Context, instrument string) ([]models.Adjustment, error) {
	var resp struct {
		Data []models.Adjustment `json:"data"`
	}
	q := url.Values{"instrument": {instrument}, "active": {"recent"}}
	err := s.client.GetJSON(ctx, s.base+"/adjustments", q, &resp)
	if err != nil {
		return nil, fmt.Errorf("fetch adjustments for %s: %w", instrument, err)
	}
	return resp.Data, nil
}

// CachedAdjustmentSource snapshots another source per instrument for ttl.
// Live ticks arrive many times a second; the admin list changes rarely and
// change notifications call Invalidate.
type CachedAdjustmentSource struct {
	next  domrepo.AdjustmentSource
	cache cache.Service
	ttl   time.Duration
	l     *applogger.Logger
}

const adjustmentsKeyPrefix = "adjustments"

func NewCachedAdjustmentSource(next domrepo.AdjustmentSource, c cache.Service, ttl time.Duration, l *applogger.Logger) *CachedAdjustmentSource {
	if l == nil {
		l = applogger.Nop()
	}
	return &CachedAdjustmentSource{next: next, cache: c, ttl: ttl, l: l}
}

func (s *CachedAdjustmentSource) GetActiveAdjustments(ctx context.Context, instrument string) ([]models.Adjustment, error) {
	key := cache.Key(adjustmentsKeyPrefix, adjustment.Normalize(instrument))

	var adjs []models.Adjustment
	err := s.cache.Get(ctx, key, &adjs)
	if err == nil {
		return adjs, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		s.l.Warn("adjustment cache read failed", applogger.String("key", key), applogger.Error(err))
	}

	adjs, err = s.next.GetActiveAdjustments(ctx, instrument)
	if err != nil {
		return nil, err
	}
	if adjs == nil {
		adjs = []models.Adjustment{}
	}
	if err := s.cache.Set(ctx, key, adjs, s.ttl); err != nil {
		s.l.Warn("adjustment cache write failed", applogger.String("key", key), applogger.Error(err))
	}
	return adjs, nil
}

// Invalidate drops the snapshot for instrument, or every snapshot when
// instrument is empty.
func (s *CachedAdjustmentSource) Invalidate(ctx context.Context, instrument string) error {
	if instrument == "" {
		return s.cache.DeleteByPattern(ctx, cache.NamespacePattern(adjustmentsKeyPrefix))
	}
	return s.cache.Delete(ctx, cache.Key(adjustmentsKeyPrefix, adjustment.Normalize(instrument)))
}

var _ domrepo.AdjustmentSource = (*HTTPAdjustmentSource)(nil)
var _ domrepo.AdjustmentSource = (*CachedAdjustmentSource)(nil)
