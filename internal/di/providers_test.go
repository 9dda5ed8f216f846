package di

import (
	"context"
	"testing"

	"PriceShaper/internal/services/adjustment"
	"PriceShaper/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvideEngineKeepsDefaultsForZeroValues(t *testing.T) {
	cfg := &config.Config{}
	assert.Equal(t, adjustment.DefaultConfig(), ProvideEngine(cfg).Config())

	cfg.Engine.DecayFactor = 0.8
	cfg.Engine.WickRatio = 0.5
	got := ProvideEngine(cfg).Config()
	want := adjustment.DefaultConfig()
	want.DecayFactor = 0.8
	want.WickRatio = 0.5
	assert.Equal(t, want, got)
}

func TestProvideDisabledBackends(t *testing.T) {
	cfg := &config.Config{}
	cfg.Logger.Level = "info"
	l, err := ProvideLogger(cfg)
	require.NoError(t, err)

	ch, cleanup, err := ProvideClickHouseClient(cfg, l)
	require.NoError(t, err)
	assert.Nil(t, ch)
	cleanup()

	p, cleanup, err := ProvideKafkaProducer(cfg, l)
	require.NoError(t, err)
	assert.Nil(t, p)
	cleanup()

	c, err := ProvideKafkaConsumer(cfg, l)
	require.NoError(t, err)
	assert.Nil(t, c)

	assert.Nil(t, ProvideBarPublisher(nil, cfg))
	_, err = ProvideBarStore(nil, l).GetLatestNBars(context.Background(), "BTCUSDT", 1, "1m")
	assert.Error(t, err)

	rc, cleanup, err := ProvideRedisCache(cfg, l)
	require.NoError(t, err)
	assert.Nil(t, rc)
	cleanup()

	svc, cleanup := ProvideCache(cfg, rc)
	assert.NotNil(t, svc)
	cleanup()

	assert.Nil(t, ProvideEventsQueue(cfg, rc, nil, l))
}
