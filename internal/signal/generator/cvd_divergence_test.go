package generator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rxtech-lab/argo-signals/internal/types"
)

func TestDetectBearishDivergence(t *testing.T) {
	// Price makes a new high while CVD makes a lower high.
	prices := []float64{100, 101, 102, 103}
	cvds := []float64{50, 60, 70, 65}

	assert.True(t, DetectBearishDivergence(prices, cvds, 0.001))
	assert.Equal(t, DivergenceBearish, DetectDivergence(prices, cvds, 0.001))
}

func TestDetectBullishDivergence(t *testing.T) {
	// Price makes a new low while CVD makes a higher low.
	prices := []float64{100, 99, 98, 97}
	cvds := []float64{50, 40, 30, 35}

	assert.True(t, DetectBullishDivergence(prices, cvds, 0.001))
	assert.Equal(t, DivergenceBullish, DetectDivergence(prices, cvds, 0.001))
}

func TestDivergenceRequiresMinPriceChange(t *testing.T) {
	// New high of only 0.05% with a 0.1% minimum.
	prices := []float64{100, 100.01, 100.02, 100.05}
	cvds := []float64{50, 60, 70, 65}

	assert.False(t, DetectBearishDivergence(prices, cvds, 0.001))
}

func TestDivergenceNoneWhenConfirmed(t *testing.T) {
	// Price and CVD rising together: trend confirmation, not divergence.
	prices := []float64{100, 101, 102, 103}
	cvds := []float64{50, 60, 70, 80}

	assert.Equal(t, DivergenceNone, DetectDivergence(prices, cvds, 0.001))
}

func TestDivergenceRejectsNonFiniteInputs(t *testing.T) {
	prices := []float64{100, 101, math.NaN(), 103}
	cvds := []float64{50, 60, 70, 65}

	assert.False(t, DetectBearishDivergence(prices, cvds, 0.001))
	assert.False(t, DetectBullishDivergence(prices, cvds, 0.001))
}

func TestDivergenceTooFewPoints(t *testing.T) {
	assert.Equal(t, DivergenceNone, DetectDivergence([]float64{100, 101}, []float64{50, 60}, 0.001))
}

func TestDetectAbsorptionBuy(t *testing.T) {
	// Flat price with heavy positive CVD: accumulation.
	prices := []float64{100, 100.01, 100.02, 100.01}

	assert.Equal(t, AbsorptionBuy, DetectAbsorption(prices, 50, 0.001, 10))
}

func TestDetectAbsorptionSell(t *testing.T) {
	prices := []float64{100, 100.01, 100.02, 100.01}

	assert.Equal(t, AbsorptionSell, DetectAbsorption(prices, -50, 0.001, 10))
}

func TestDetectAbsorptionRequiresFlatPrice(t *testing.T) {
	// A 5% range is not flat at a 0.1% threshold.
	prices := []float64{100, 102, 104, 105}

	assert.Equal(t, AbsorptionNone, DetectAbsorption(prices, 50, 0.001, 10))
}

func TestDetectAbsorptionRequiresSignificantCvd(t *testing.T) {
	prices := []float64{100, 100.01, 100.02, 100.01}

	assert.Equal(t, AbsorptionNone, DetectAbsorption(prices, 5, 0.001, 10))
}

func TestDivergenceStrengthOppositeMoves(t *testing.T) {
	// Price spans its full range upward, CVD its full range downward: the
	// normalized difference is 2, giving maximum strength.
	prices := []float64{100, 101, 102, 103}
	cvds := []float64{80, 70, 60, 50}

	assert.InDelta(t, 1.0, CalculateDivergenceStrength(prices, cvds), 1e-9)
}

func TestDivergenceStrengthAlignedMoves(t *testing.T) {
	prices := []float64{100, 101, 102, 103}
	cvds := []float64{50, 60, 70, 80}

	assert.InDelta(t, 0.0, CalculateDivergenceStrength(prices, cvds), 1e-9)
}

func TestCvdSignalAccumulatesObservations(t *testing.T) {
	gen := DefaultCvdDivergenceSignal()

	gen.AddObservation(10, 100)
	gen.AddObservation(-4, 101)

	assert.InDelta(t, 6.0, gen.CumulativeCvd(), 1e-9)
	assert.Equal(t, 2, gen.ObservationCount())

	gen.Reset()
	assert.Zero(t, gen.CumulativeCvd())
	assert.Zero(t, gen.ObservationCount())
}

func TestCvdSignalHistoryBounded(t *testing.T) {
	config := DefaultCvdDivergenceConfig()
	config.LookbackPeriods = 3
	gen := NewCvdDivergenceSignal(config)

	for i := 0; i < 5; i++ {
		gen.AddObservation(1, 100+float64(i))
	}

	assert.Equal(t, 3, gen.ObservationCount())
}

func TestCvdSignalNeutralWithoutMidPrice(t *testing.T) {
	gen := DefaultCvdDivergenceSignal()

	signal, err := gen.Compute(bookContext(nil, nil))
	require.NoError(t, err)
	assert.Equal(t, types.DirectionNeutral, signal.Direction)
	assert.Zero(t, gen.ObservationCount())
}

func TestCvdSignalBearishDivergenceFromContext(t *testing.T) {
	gen := DefaultCvdDivergenceSignal()

	// Rising mid price with weakening book imbalance.
	steps := []struct {
		bidPx, bidQty int64
		askPx, askQty int64
	}{
		{100, 90, 102, 10},
		{102, 80, 104, 20},
		{104, 70, 106, 30},
		{106, 20, 108, 80},
	}

	for _, step := range steps {
		ctx := bookContext(
			[]types.PriceLevel{level(step.bidPx, step.bidQty)},
			[]types.PriceLevel{level(step.askPx, step.askQty)},
		)

		_, err := gen.Compute(ctx)
		require.NoError(t, err)
	}

	assert.Equal(t, DivergenceBearish, gen.DetectDivergence())
}
