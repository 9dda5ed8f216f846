package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInvalidator struct {
	got []string
	err error
}

func (f *fakeInvalidator) Invalidate(_ context.Context, instrument string) error {
	f.got = append(f.got, instrument)
	return f.err
}

func TestAdjustmentEventsHandler(t *testing.T) {
	inv := &fakeInvalidator{}
	m := newFakeMetrics()
	h := NewAdjustmentEventsHandler("priceshaper.adjustments", inv, m, nil)
	ctx := context.Background()

	assert.Equal(t, "priceshaper.adjustments", h.Topic())
	require.NoError(t, h.Handle(ctx, []byte(`{"type":"stopped","id":"a1","instrument_id":"BINANCE:BTCUSDT"}`)))
	require.NoError(t, h.Handle(ctx, []byte(`{"type":"created","id":"a2"}`)))
	assert.Equal(t, []string{"BINANCE:BTCUSDT", ""}, inv.got)
	assert.Equal(t, 2, m.sent)
}

func TestAdjustmentEventsHandlerRejectsBadMessages(t *testing.T) {
	inv := &fakeInvalidator{}
	m := newFakeMetrics()
	h := NewAdjustmentEventsHandler("t", inv, m, nil)
	ctx := context.Background()

	err := h.Handle(ctx, []byte(`{not json`))
	assert.ErrorIs(t, err, errInvalidEvent)
	err = h.Handle(ctx, []byte(`{"type":"paused","id":"a1"}`))
	assert.ErrorIs(t, err, errInvalidEvent)
	assert.Empty(t, inv.got)
	assert.Equal(t, 1, m.errors["events_unmarshal"])
	assert.Equal(t, 1, m.errors["events_type"])
}

func TestAdjustmentEventsHandlerInvalidateError(t *testing.T) {
	inv := &fakeInvalidator{err: errors.New("redis down")}
	h := NewAdjustmentEventsHandler("t", inv, newFakeMetrics(), nil)
	assert.Error(t, h.Handle(context.Background(), []byte(`{"type":"deleted","id":"a1","instrument_id":"ETHUSDT"}`)))
}
