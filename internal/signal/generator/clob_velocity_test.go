package generator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rxtech-lab/argo-signals/internal/types"
)

func pricePoints(base time.Time, prices []float64, stepSecs int) []types.PricePoint {
	points := make([]types.PricePoint, 0, len(prices))
	for i, p := range prices {
		points = append(points, types.PricePoint{
			Timestamp: base.Add(time.Duration(i*stepSecs) * time.Second),
			Price:     p,
		})
	}

	return points
}

func clobContext(points []types.PricePoint) *types.SignalContext {
	return types.NewSignalContext(time.Now(), "BTCUSDT").WithExternalPrices(points)
}

func TestClobVelocityNeutralWithTooFewPoints(t *testing.T) {
	gen := NewClobVelocitySignal()

	signal, err := gen.Compute(clobContext([]types.PricePoint{
		{Timestamp: time.Now(), Price: 0.55},
	}))
	require.NoError(t, err)
	assert.Equal(t, types.DirectionNeutral, signal.Direction)
}

func TestClobVelocityNeutralNearMidpoint(t *testing.T) {
	gen := NewClobVelocitySignal()
	base := time.Now()

	// Latest price 0.51 is within the 0.015 displacement floor.
	signal, err := gen.Compute(clobContext(pricePoints(base, []float64{0.50, 0.51}, 10)))
	require.NoError(t, err)

	assert.Equal(t, types.DirectionNeutral, signal.Direction)
	assert.Contains(t, signal.Metadata, "velocity")
	assert.InDelta(t, 0.01, signal.Metadata["displacement"], 1e-9)
}

func TestClobVelocityFastMoveUp(t *testing.T) {
	gen := NewClobVelocitySignal()
	base := time.Now()

	// 0.50 to 0.54 over 10 seconds: 0.4 cents/sec, displacement +0.04.
	signal, err := gen.Compute(clobContext(pricePoints(base, []float64{0.50, 0.54}, 10)))
	require.NoError(t, err)

	assert.Equal(t, types.DirectionUp, signal.Direction)
	assert.InDelta(t, 1.0, signal.Strength, 1e-9)
	assert.InDelta(t, 0.8, signal.Confidence, 1e-9)
	assert.InDelta(t, 0.4, signal.Metadata["velocity_cents_per_sec"], 1e-9)
}

func TestClobVelocityDisagreementLowersConfidence(t *testing.T) {
	gen := NewClobVelocitySignal()
	base := time.Now()

	// Price above midpoint but falling: velocity and displacement disagree.
	signal, err := gen.Compute(clobContext(pricePoints(base, []float64{0.58, 0.54}, 10)))
	require.NoError(t, err)

	assert.Equal(t, types.DirectionDown, signal.Direction)
	assert.InDelta(t, 0.3*signal.Strength, signal.Confidence, 1e-9)
}

func TestClobVelocitySlowDriftHasLowStrength(t *testing.T) {
	gen := NewClobVelocitySignal()
	base := time.Now()

	// 0.01 over 100 seconds: 0.01 cents/sec against a 0.2 reference.
	signal, err := gen.Compute(clobContext(pricePoints(base, []float64{0.56, 0.57}, 100)))
	require.NoError(t, err)

	assert.Equal(t, types.DirectionUp, signal.Direction)
	assert.InDelta(t, 0.05, signal.Strength, 1e-9)
}

func TestClobVelocityRejectsSubSecondWindow(t *testing.T) {
	gen := NewClobVelocitySignal()
	base := time.Now()

	points := []types.PricePoint{
		{Timestamp: base, Price: 0.50},
		{Timestamp: base.Add(500 * time.Millisecond), Price: 0.54},
	}

	signal, err := gen.Compute(clobContext(points))
	require.NoError(t, err)
	assert.Equal(t, types.DirectionNeutral, signal.Direction)
}

func TestClobVelocityHonorsLookbackWindow(t *testing.T) {
	config := DefaultClobVelocityConfig()
	config.LookbackSecs = 30
	gen := NewClobVelocitySignalWithConfig(config)
	base := time.Now()

	// The first point is 60s old, outside the 30s lookback; velocity is
	// measured from the 20s-old point instead.
	points := []types.PricePoint{
		{Timestamp: base, Price: 0.30},
		{Timestamp: base.Add(40 * time.Second), Price: 0.54},
		{Timestamp: base.Add(60 * time.Second), Price: 0.56},
	}

	signal, err := gen.Compute(clobContext(points))
	require.NoError(t, err)

	assert.Equal(t, types.DirectionUp, signal.Direction)
	// (0.56 - 0.54) / 20s = 0.1 cents/sec
	assert.InDelta(t, 0.1, signal.Metadata["velocity_cents_per_sec"], 1e-9)
}
