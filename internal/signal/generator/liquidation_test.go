package generator

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rxtech-lab/argo-signals/internal/types"
)

func liquidationContext(usd int64) *types.SignalContext {
	return types.NewSignalContext(time.Now(), "BTCUSDT").
		WithLiquidationUSD(decimal.NewFromInt(usd))
}

func TestCascadeNeutralWithoutLiquidation(t *testing.T) {
	gen := DefaultLiquidationCascadeSignal()

	signal, err := gen.Compute(types.NewSignalContext(time.Now(), "BTCUSDT"))
	require.NoError(t, err)
	assert.Equal(t, types.DirectionNeutral, signal.Direction)
	assert.Zero(t, gen.ObservationCount())
}

func TestCascadeBelowMinimumThreshold(t *testing.T) {
	gen := DefaultLiquidationCascadeSignal()

	assert.False(t, gen.IsCascade(decimal.NewFromInt(4999)))
}

func TestCascadeEmptyWindowAboveMinimum(t *testing.T) {
	gen := DefaultLiquidationCascadeSignal()

	// Nothing to average against: clearing the floor is enough.
	assert.True(t, gen.IsCascade(decimal.NewFromInt(5000)))
}

func TestCascadeTriggersAtMultipleOfAverage(t *testing.T) {
	gen := DefaultLiquidationCascadeSignal()

	for i := 0; i < 10; i++ {
		_, err := gen.Compute(liquidationContext(10_000))
		require.NoError(t, err)
	}

	assert.True(t, gen.AverageLiquidation().Equal(decimal.NewFromInt(10_000)))
	assert.False(t, gen.IsCascade(decimal.NewFromInt(29_000)))
	assert.True(t, gen.IsCascade(decimal.NewFromInt(30_000)))
}

func TestCascadeStrengthScalesWithRatio(t *testing.T) {
	gen := DefaultLiquidationCascadeSignal()

	for i := 0; i < 10; i++ {
		_, err := gen.Compute(liquidationContext(10_000))
		require.NoError(t, err)
	}

	// 6x the average against a 3x trigger: (6-3)/3 = 1.0.
	signal, err := gen.Compute(liquidationContext(60_000))
	require.NoError(t, err)

	assert.Equal(t, types.DirectionNeutral, signal.Direction)
	assert.InDelta(t, 1.0, signal.Strength, 1e-9)
	assert.InDelta(t, 1, signal.Metadata["is_cascade"], 1e-9)
}

func TestCascadeClassifiesBeforeRecording(t *testing.T) {
	gen := DefaultLiquidationCascadeSignal()

	// The first observation is classified against an empty window, so it
	// counts as a cascade by clearing the minimum alone.
	signal, err := gen.Compute(liquidationContext(50_000))
	require.NoError(t, err)

	assert.InDelta(t, 1, signal.Metadata["is_cascade"], 1e-9)
	assert.Equal(t, 1, gen.ObservationCount())
}

func TestCascadeWindowEvictsOldest(t *testing.T) {
	gen := NewLiquidationCascadeSignal(decimal.NewFromInt(5000), 3.0, 1.0, 3)

	for _, usd := range []int64{10_000, 20_000, 30_000, 40_000} {
		_, err := gen.Compute(liquidationContext(usd))
		require.NoError(t, err)
	}

	assert.Equal(t, 3, gen.ObservationCount())
	assert.True(t, gen.AverageLiquidation().Equal(decimal.NewFromInt(30_000)))
}

func aggregate(longUSD, shortUSD int64) types.LiquidationAggregate {
	return types.LiquidationAggregate{
		WindowMinutes:  24 * 60,
		LongVolumeUSD:  decimal.NewFromInt(longUSD),
		ShortVolumeUSD: decimal.NewFromInt(shortUSD),
	}
}

func TestRatioSignalBelowVolumeFloor(t *testing.T) {
	config := DefaultLiquidationRatioConfig()

	_, _, ok := CalculateRatioSignal(decimal.NewFromInt(50_000), decimal.NewFromInt(40_000), config)
	assert.False(t, ok)
}

func TestRatioSignalZeroShortsIsExtremeBullish(t *testing.T) {
	config := DefaultLiquidationRatioConfig()

	direction, strength, ok := CalculateRatioSignal(decimal.NewFromInt(500_000), decimal.Zero, config)
	require.True(t, ok)
	assert.Equal(t, types.DirectionUp, direction)
	assert.InDelta(t, 1.0, strength, 1e-9)
}

func TestRatioSignalHighRatioIsBullish(t *testing.T) {
	config := DefaultLiquidationRatioConfig()

	// Ratio 4.0 against a 2.0 threshold: strength (4-2)/2 = 1.0.
	direction, strength, ok := CalculateRatioSignal(decimal.NewFromInt(400_000), decimal.NewFromInt(100_000), config)
	require.True(t, ok)
	assert.Equal(t, types.DirectionUp, direction)
	assert.InDelta(t, 1.0, strength, 1e-9)
}

func TestRatioSignalLowRatioIsBearish(t *testing.T) {
	config := DefaultLiquidationRatioConfig()

	// Ratio 0.25 against a 0.5 threshold: strength (0.5-0.25)/0.5 = 0.5.
	direction, strength, ok := CalculateRatioSignal(decimal.NewFromInt(100_000), decimal.NewFromInt(400_000), config)
	require.True(t, ok)
	assert.Equal(t, types.DirectionDown, direction)
	assert.InDelta(t, 0.5, strength, 1e-9)
}

func TestRatioSignalMidRangeNeutral(t *testing.T) {
	config := DefaultLiquidationRatioConfig()

	_, _, ok := CalculateRatioSignal(decimal.NewFromInt(100_000), decimal.NewFromInt(100_000), config)
	assert.False(t, ok)
}

func TestRatioConfigClampsThresholds(t *testing.T) {
	config := NewLiquidationRatioConfig(0.5, 1.5, decimal.NewFromInt(100_000))

	assert.InDelta(t, 1.0, config.HighRatioThreshold, 1e-9)
	assert.InDelta(t, 1.0, config.LowRatioThreshold, 1e-9)
}

func TestRatioGeneratorUsesContextAggregate(t *testing.T) {
	gen := DefaultLiquidationRatioSignal()

	ctx := types.NewSignalContext(time.Now(), "BTCUSDT").
		WithLiquidationAggregate(aggregate(400_000, 100_000))

	signal, err := gen.Compute(ctx)
	require.NoError(t, err)

	assert.Equal(t, types.DirectionUp, signal.Direction)
	assert.InDelta(t, 4.0, signal.Metadata["ratio"], 1e-9)
	assert.InDelta(t, 500_000, signal.Metadata["total_volume_24h"], 1e-9)
}

func TestRatioGeneratorFallsBackToCachedAggregate(t *testing.T) {
	gen := DefaultLiquidationRatioSignal()
	gen.SetAggregate(aggregate(100_000, 400_000))

	signal, err := gen.Compute(types.NewSignalContext(time.Now(), "BTCUSDT"))
	require.NoError(t, err)

	assert.Equal(t, types.DirectionDown, signal.Direction)
}

func TestRatioGeneratorNeutralWithoutAggregate(t *testing.T) {
	gen := DefaultLiquidationRatioSignal()

	signal, err := gen.Compute(types.NewSignalContext(time.Now(), "BTCUSDT"))
	require.NoError(t, err)
	assert.Equal(t, types.DirectionNeutral, signal.Direction)
}
