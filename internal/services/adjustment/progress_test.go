package adjustment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PriceShaper/internal/domain/models"
)

func TestProgressEndpointsAndMidpoint(t *testing.T) {
	tests := []struct {
		name string
		now  int64
		want float64
	}{
		{"start", t0, 0},
		{"quarter", t0 + 150_000, 0.125},
		{"mid", t0 + 300_000, 0.5},
		{"three quarters", t0 + 450_000, 0.875},
		{"end", t0 + 600_000, 1},
		{"before window clamps", t0 - 1_000, 0},
		{"after window clamps", t0 + 900_000, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Progress(tt.now, t0, t0+600_000)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestProgressMonotonicAndGentleAtEdges(t *testing.T) {
	prev := -1.0
	for now := t0; now <= t0+600_000; now += 1_000 {
		p, err := Progress(now, t0, t0+600_000)
		require.NoError(t, err)
		require.GreaterOrEqual(t, p, prev)
		prev = p
	}

	edge, _ := Progress(t0+60_000, t0, t0+600_000)
	midA, _ := Progress(t0+270_000, t0, t0+600_000)
	midB, _ := Progress(t0+330_000, t0, t0+600_000)
	assert.Less(t, edge, midB-midA)
}

func TestProgressRejectsEmptyWindow(t *testing.T) {
	_, err := Progress(t0, t0, t0)
	assert.ErrorIs(t, err, ErrMalformedAdjustment)

	_, err = Progress(t0, t0+10, t0)
	assert.ErrorIs(t, err, ErrMalformedAdjustment)
}

func TestCurrentTargetClimbsToPumpTarget(t *testing.T) {
	a := pump("p5", 5, t0, t0+10*minute)
	anchor := 100.0
	target, err := Target(a, anchor)
	require.NoError(t, err)

	prev := 0.0
	for i := int64(0); i <= 10; i++ {
		p, err := Progress(t0+i*minute, a.StartAt, a.EndsAt)
		require.NoError(t, err)
		current := anchor + (target-anchor)*p
		assert.GreaterOrEqual(t, current, prev)
		prev = current
	}
	assert.InDelta(t, anchor*1.05, prev, 1e-9)
}

func TestProgressIgnoresKind(t *testing.T) {
	a := models.Adjustment{Kind: models.KindAbsolute, StartAt: t0, EndsAt: t0 + 1000}
	p, err := Progress(t0+500, a.StartAt, a.EndsAt)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, p, 1e-12)
}
