package generator

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rxtech-lab/argo-signals/internal/types"
)

func level(price, qty int64) types.PriceLevel {
	return types.PriceLevel{
		Price:    decimal.NewFromInt(price),
		Quantity: decimal.NewFromInt(qty),
	}
}

func bookContext(bids, asks []types.PriceLevel) *types.SignalContext {
	book := &types.OrderBookSnapshot{Bids: bids, Asks: asks}

	return types.NewSignalContext(time.Now(), "BTCUSDT").WithOrderBook(book)
}

func TestImbalanceNeutralWithoutBook(t *testing.T) {
	gen := DefaultOrderBookImbalanceSignal()

	signal, err := gen.Compute(types.NewSignalContext(time.Now(), "BTCUSDT"))
	require.NoError(t, err)
	assert.Equal(t, types.DirectionNeutral, signal.Direction)
}

func TestImbalanceBullishBeyondThreshold(t *testing.T) {
	gen := NewOrderBookImbalanceSignal(0.3, 1.0, 1)

	ctx := bookContext(
		[]types.PriceLevel{level(100, 90)},
		[]types.PriceLevel{level(101, 10)},
	)

	signal, err := gen.Compute(ctx)
	require.NoError(t, err)

	assert.Equal(t, types.DirectionUp, signal.Direction)
	assert.InDelta(t, 0.8, signal.Strength, 1e-9)
	assert.InDelta(t, 0.8, signal.Metadata["smoothed_imbalance"], 1e-9)
}

func TestImbalanceBearishBeyondThreshold(t *testing.T) {
	gen := NewOrderBookImbalanceSignal(0.3, 1.0, 1)

	ctx := bookContext(
		[]types.PriceLevel{level(100, 10)},
		[]types.PriceLevel{level(101, 90)},
	)

	signal, err := gen.Compute(ctx)
	require.NoError(t, err)

	assert.Equal(t, types.DirectionDown, signal.Direction)
	assert.InDelta(t, 0.8, signal.Strength, 1e-9)
}

func TestImbalanceSmoothingAveragesWindow(t *testing.T) {
	gen := NewOrderBookImbalanceSignal(0.3, 1.0, 10)

	// First snapshot heavily bullish, second flat; the smoothed value is
	// the mean of both observations.
	first := bookContext(
		[]types.PriceLevel{level(100, 100)},
		[]types.PriceLevel{level(101, 0)},
	)
	second := bookContext(
		[]types.PriceLevel{level(100, 50)},
		[]types.PriceLevel{level(101, 50)},
	)

	_, err := gen.Compute(first)
	require.NoError(t, err)

	signal, err := gen.Compute(second)
	require.NoError(t, err)

	assert.InDelta(t, 0.5, signal.Metadata["smoothed_imbalance"], 1e-9)
	assert.Equal(t, types.DirectionUp, signal.Direction)
}

func TestWeightedImbalanceFavorsCloserLevels(t *testing.T) {
	// Equal quantities, but the bid sits closer to the mid than the ask.
	bids := []types.PriceLevel{level(99, 50)}
	asks := []types.PriceLevel{level(120, 50)}

	weighted := CalculateWeightedImbalance(bids, asks)
	assert.Greater(t, weighted, 0.0)
}

func TestWeightedImbalanceEmptyBook(t *testing.T) {
	assert.Zero(t, CalculateWeightedImbalance(nil, nil))
}

func TestDetectWallsFiltersSizeAndProximity(t *testing.T) {
	config := DefaultWallDetectionConfig()
	mid := decimal.NewFromInt(100)

	bids := []types.PriceLevel{
		level(100, 50), // wall at mid
		level(99, 5),   // too small
		level(90, 80),  // 1000 bps away, outside proximity
	}
	asks := []types.PriceLevel{
		level(101, 20), // wall at 100 bps
	}

	walls := DetectWalls(config, bids, asks, mid)
	require.Len(t, walls, 2)

	// Sorted by size descending
	assert.Equal(t, SideBid, walls[0].Side)
	assert.True(t, walls[0].Size.Equal(decimal.NewFromInt(50)))
	assert.Equal(t, SideAsk, walls[1].Side)
}

func TestWallBiasFloorDominant(t *testing.T) {
	walls := []Wall{
		{Side: SideBid, Semantics: WallFloor, Price: decimal.NewFromInt(100), Size: decimal.NewFromInt(80), DistanceBps: 0},
		{Side: SideAsk, Semantics: WallCeiling, Price: decimal.NewFromInt(101), Size: decimal.NewFromInt(20), DistanceBps: 0},
	}

	bias := CalculateWallBias(walls)

	assert.Greater(t, bias.Bias, 0.0)
	assert.Equal(t, 1, bias.FloorCount)
	assert.Equal(t, 1, bias.CeilingCount)
	assert.Equal(t, types.DirectionUp, bias.Direction())
	require.NotNil(t, bias.DominantWall)
	assert.Equal(t, WallFloor, bias.DominantWall.Semantics)
}

func TestWallBiasProximityDiscountsDistantWalls(t *testing.T) {
	// Same size; the wall 100 bps away counts half as much as one at the mid.
	walls := []Wall{
		{Side: SideBid, Semantics: WallFloor, Size: decimal.NewFromInt(40), DistanceBps: 0},
		{Side: SideAsk, Semantics: WallCeiling, Size: decimal.NewFromInt(40), DistanceBps: 100},
	}

	bias := CalculateWallBias(walls)
	assert.InDelta(t, 40.0, bias.FloorStrength, 1e-9)
	assert.InDelta(t, 20.0, bias.CeilingStrength, 1e-9)
	assert.Equal(t, types.DirectionUp, bias.Direction())
}

func TestWallBiasDeadZone(t *testing.T) {
	bias := WallBias{Bias: 0.005}
	assert.Equal(t, types.DirectionNeutral, bias.Direction())
}

func TestImbalanceZScoreModeRequiresHistory(t *testing.T) {
	gen := NewOrderBookImbalanceSignal(0.3, 1.0, 1).WithZScoreHistory(20)

	ctx := bookContext(
		[]types.PriceLevel{level(100, 90)},
		[]types.PriceLevel{level(101, 10)},
	).WithHistoricalImbalances([]float64{0.1, 0.2})

	signal, err := gen.Compute(ctx)
	require.NoError(t, err)

	// Too little history: falls back to the fixed threshold.
	assert.Equal(t, types.DirectionUp, signal.Direction)
	assert.NotContains(t, signal.Metadata, "zscore")
}

func TestImbalanceZScoreModeOverridesThreshold(t *testing.T) {
	gen := NewOrderBookImbalanceSignal(0.3, 1.0, 1).WithZScoreHistory(5)

	// Historical imbalances hover near zero; the current 0.8 reading is a
	// large positive outlier.
	history := []float64{0.0, 0.01, -0.01, 0.02, -0.02}

	ctx := bookContext(
		[]types.PriceLevel{level(100, 90)},
		[]types.PriceLevel{level(101, 10)},
	).WithHistoricalImbalances(history)

	signal, err := gen.Compute(ctx)
	require.NoError(t, err)

	assert.Equal(t, types.DirectionUp, signal.Direction)
	assert.Contains(t, signal.Metadata, "zscore")
	assert.Greater(t, signal.Metadata["zscore"], 2.0)
}

func TestImbalanceMetadataCountsWalls(t *testing.T) {
	gen := NewOrderBookImbalanceSignal(0.3, 1.0, 1).WithWallDetection(DefaultWallDetectionConfig())

	ctx := bookContext(
		[]types.PriceLevel{level(100, 50)},
		[]types.PriceLevel{level(101, 30)},
	)

	signal, err := gen.Compute(ctx)
	require.NoError(t, err)

	assert.InDelta(t, 2, signal.Metadata["wall_count"], 1e-9)
	assert.InDelta(t, 1, signal.Metadata["bid_wall_count"], 1e-9)
	assert.InDelta(t, 1, signal.Metadata["ask_wall_count"], 1e-9)
	assert.Contains(t, signal.Metadata, "wall_bias")
}
