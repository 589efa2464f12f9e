package generator

import (
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rxtech-lab/argo-signals/internal/types"
)

func fundingContext(rate float64) *types.SignalContext {
	return types.NewSignalContext(time.Now(), "BTCUSDT").WithFundingRate(rate)
}

func fundingRecord(rate float64, percentile optional.Option[float64]) types.HistoricalFundingRate {
	return types.HistoricalFundingRate{
		Timestamp:   time.Now(),
		FundingRate: rate,
		Percentile:  percentile,
	}
}

func TestFundingNeutralWithoutRate(t *testing.T) {
	gen := DefaultFundingRateSignal()

	signal, err := gen.Compute(types.NewSignalContext(time.Now(), "BTCUSDT"))
	require.NoError(t, err)
	assert.Equal(t, types.DirectionNeutral, signal.Direction)
}

func TestFundingNeutralWithSingleObservation(t *testing.T) {
	gen := DefaultFundingRateSignal()

	signal, err := gen.Compute(fundingContext(0.01))
	require.NoError(t, err)
	assert.Equal(t, types.DirectionNeutral, signal.Direction)
	assert.Equal(t, 1, gen.ObservationCount())
}

func TestFundingContrarianBearishOnExtremePositive(t *testing.T) {
	gen := NewFundingRateSignal(2.0, 1.0, 100).WithSignalMode(FundingModeZScore)

	// Flat funding, then an extreme positive spike.
	for i := 0; i < 30; i++ {
		rate := 0.0001
		if i%2 == 0 {
			rate = -0.0001
		}

		_, err := gen.Compute(fundingContext(rate))
		require.NoError(t, err)
	}

	signal, err := gen.Compute(fundingContext(0.01))
	require.NoError(t, err)

	assert.Equal(t, types.DirectionDown, signal.Direction)
	assert.Greater(t, signal.Strength, 0.0)
	assert.Greater(t, signal.Metadata["zscore"], 2.0)
}

func TestFundingContrarianBullishOnExtremeNegative(t *testing.T) {
	gen := NewFundingRateSignal(2.0, 1.0, 100).WithSignalMode(FundingModeZScore)

	for i := 0; i < 30; i++ {
		rate := 0.0001
		if i%2 == 0 {
			rate = -0.0001
		}

		_, err := gen.Compute(fundingContext(rate))
		require.NoError(t, err)
	}

	signal, err := gen.Compute(fundingContext(-0.01))
	require.NoError(t, err)

	assert.Equal(t, types.DirectionUp, signal.Direction)
	assert.Greater(t, signal.Strength, 0.0)
}

func TestFundingZScoreDegenerateWindow(t *testing.T) {
	gen := DefaultFundingRateSignal()

	for i := 0; i < 5; i++ {
		_, err := gen.Compute(fundingContext(0.0001))
		require.NoError(t, err)
	}

	_, ok := gen.CurrentZScore()
	assert.False(t, ok)
}

func TestPercentileSignalHighIsBearish(t *testing.T) {
	historical := []float64{0.0001, 0.0002, 0.0003, 0.0004, 0.0005}

	direction, strength, ok := PercentileSignal(0.001, historical, 0.90, 0.10)
	require.True(t, ok)
	assert.Equal(t, types.DirectionDown, direction)
	assert.Greater(t, strength, 0.0)
}

func TestPercentileSignalLowIsBullish(t *testing.T) {
	historical := []float64{0.0001, 0.0002, 0.0003, 0.0004, 0.0005}

	direction, strength, ok := PercentileSignal(-0.001, historical, 0.90, 0.10)
	require.True(t, ok)
	assert.Equal(t, types.DirectionUp, direction)
	assert.Greater(t, strength, 0.0)
}

func TestPercentileSignalMidRangeNeutral(t *testing.T) {
	historical := []float64{0.0001, 0.0002, 0.0003, 0.0004, 0.0005}

	_, _, ok := PercentileSignal(0.0003, historical, 0.90, 0.10)
	assert.False(t, ok)
}

func TestIsFundingExtreme30dRequiresMinData(t *testing.T) {
	config := DefaultFundingPercentileConfig()
	historical := []float64{0.0001, 0.0002}

	_, _, _, extreme := IsFundingExtreme30d(0.01, historical, config)
	assert.False(t, extreme)
}

func TestIsFundingExtreme30dHighPercentile(t *testing.T) {
	config := DefaultFundingPercentileConfig()

	historical := make([]float64, 0, 40)
	for i := 0; i < 40; i++ {
		historical = append(historical, 0.0001*float64(i%10))
	}

	direction, strength, percentile, extreme := IsFundingExtreme30d(0.01, historical, config)
	require.True(t, extreme)
	assert.Equal(t, types.DirectionDown, direction)
	assert.Greater(t, strength, 0.0)
	assert.Greater(t, percentile, config.HighThreshold)
}

func TestDetectReversalAfterExtremeHigh(t *testing.T) {
	config := DefaultFundingReversalConfig()

	// Extreme high percentile early in the window, normalized now.
	records := []types.HistoricalFundingRate{
		fundingRecord(0.001, optional.Some(0.95)),
		fundingRecord(0.0009, optional.Some(0.92)),
		fundingRecord(0.0008, optional.Some(0.85)),
		fundingRecord(0.0006, optional.Some(0.75)),
		fundingRecord(0.0005, optional.Some(0.70)),
		fundingRecord(0.0004, optional.Some(0.65)),
		fundingRecord(0.0003, optional.Some(0.60)),
		fundingRecord(0.0002, optional.Some(0.55)),
		fundingRecord(0.0002, optional.Some(0.52)),
		fundingRecord(0.0001, optional.Some(0.50)),
	}

	reversal := DetectReversal(records, config)
	require.NotNil(t, reversal)
	assert.Equal(t, types.DirectionDown, reversal.FromDirection)
	assert.InDelta(t, 0.95, reversal.Strength, 1e-9)
}

func TestDetectReversalRequiresNormalization(t *testing.T) {
	config := DefaultFundingReversalConfig()

	records := make([]types.HistoricalFundingRate, 0, 10)
	for i := 0; i < 10; i++ {
		records = append(records, fundingRecord(0.001, optional.Some(0.95)))
	}

	// Still extreme: no reversal yet.
	assert.Nil(t, DetectReversal(records, config))
}

func TestDetectReversalRequiresFullLookback(t *testing.T) {
	config := DefaultFundingReversalConfig()

	records := []types.HistoricalFundingRate{
		fundingRecord(0.001, optional.Some(0.95)),
		fundingRecord(0.0001, optional.Some(0.50)),
	}

	assert.Nil(t, DetectReversal(records, config))
}

func TestFundingReversalBoostsConfidence(t *testing.T) {
	gen := NewFundingRateSignal(2.0, 1.0, 100).
		WithSignalMode(FundingModeZScore).
		WithReversalDetection(DefaultFundingReversalConfig())

	for i := 0; i < 30; i++ {
		rate := 0.0001
		if i%2 == 0 {
			rate = -0.0001
		}

		_, err := gen.Compute(fundingContext(rate))
		require.NoError(t, err)
	}

	// Historical records show an extreme low percentile that has since
	// normalized: a reversal away from Up. The current extreme positive
	// funding z-score yields Down, matching the reversal, so confidence
	// is boosted by half the reversal strength.
	records := []types.HistoricalFundingRate{
		fundingRecord(-0.001, optional.Some(0.02)),
		fundingRecord(-0.0009, optional.Some(0.05)),
		fundingRecord(-0.0008, optional.Some(0.15)),
		fundingRecord(-0.0006, optional.Some(0.25)),
		fundingRecord(-0.0005, optional.Some(0.30)),
		fundingRecord(-0.0004, optional.Some(0.35)),
		fundingRecord(-0.0003, optional.Some(0.40)),
		fundingRecord(-0.0002, optional.Some(0.45)),
		fundingRecord(-0.0002, optional.Some(0.48)),
		fundingRecord(-0.0001, optional.Some(0.50)),
	}

	ctx := fundingContext(0.01).WithHistoricalFunding(records)

	signal, err := gen.Compute(ctx)
	require.NoError(t, err)

	assert.Equal(t, types.DirectionDown, signal.Direction)
	assert.InDelta(t, 0.49, signal.Confidence, 1e-9)
	assert.InDelta(t, 1, signal.Metadata["reversal_detected"], 1e-9)
}
