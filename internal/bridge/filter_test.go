package bridge

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rxtech-lab/argo-signals/internal/types"
)

func proposal(direction types.SignalDirection, strength float64) types.SignalEvent {
	return types.SignalEvent{
		Symbol:    "BTCUSDT",
		Direction: direction,
		Strength:  strength,
		Price:     decimal.NewFromInt(50_000),
		Timestamp: time.Now(),
	}
}

func TestFilterConfigDefaults(t *testing.T) {
	config := DefaultFilterConfig()

	assert.True(t, config.EntryFilterEnabled)
	assert.InDelta(t, 0.6, config.EntryFilterThreshold, 1e-9)
	assert.True(t, config.ExitTriggerEnabled)
	assert.InDelta(t, 0.8, config.ExitLiquidationThreshold, 1e-9)
	assert.InDelta(t, 0.9, config.ExitFundingThreshold, 1e-9)
	assert.True(t, config.SizingAdjustmentEnabled)
	assert.InDelta(t, 0.5, config.StressSizeMultiplier, 1e-9)
	assert.False(t, config.EntryTimingEnabled)
}

func TestFilterConfigDisabled(t *testing.T) {
	config := DisabledFilterConfig()

	assert.False(t, config.EntryFilterEnabled)
	assert.False(t, config.ExitTriggerEnabled)
	assert.False(t, config.SizingAdjustmentEnabled)
	assert.False(t, config.EntryTimingEnabled)
}

func TestFilterConfigConservativeTighter(t *testing.T) {
	config := ConservativeFilterConfig()

	assert.Less(t, config.EntryFilterThreshold, 0.6)
	assert.Less(t, config.ExitLiquidationThreshold, 0.8)
	assert.Less(t, config.StressSizeMultiplier, 0.5)
	assert.True(t, config.EntryTimingEnabled)
}

func TestAllowWhenAllQuiet(t *testing.T) {
	filter := NewFilter(DefaultFilterConfig())

	result := filter.Apply(proposal(types.SignalDirectionLong, 0.8), NewCachedMicroSignals())

	assert.Equal(t, DispositionAllow, result.Disposition)
	assert.True(t, result.IsAllowed())
	require.NotNil(t, result.Signal)
	assert.InDelta(t, 0.8, result.Signal.Strength, 1e-9)
}

func TestForceExitOnOpposingCascade(t *testing.T) {
	filter := NewFilter(DefaultFilterConfig())

	micro := NewCachedMicroSignals()
	micro.LiquidationCascade = signalValue(t, types.DirectionDown, 0.9, 0.8)

	result := filter.Apply(proposal(types.SignalDirectionLong, 0.8), micro)

	assert.Equal(t, DispositionForceExit, result.Disposition)
	assert.Contains(t, result.Reason, "Liquidation cascade against position")
	require.NotNil(t, result.Signal)
	assert.Equal(t, types.SignalDirectionExit, result.Signal.Direction)
	assert.InDelta(t, 1.0, result.Signal.Strength, 1e-9)
}

func TestForceExitOnOpposingFunding(t *testing.T) {
	filter := NewFilter(DefaultFilterConfig())

	micro := NewCachedMicroSignals()
	micro.FundingRate = signalValue(t, types.DirectionUp, 0.95, 0.8)

	result := filter.Apply(proposal(types.SignalDirectionShort, 0.8), micro)

	assert.Equal(t, DispositionForceExit, result.Disposition)
	assert.Contains(t, result.Reason, "Extreme funding rate against position")
}

func TestNoForceExitWhenCascadeAgrees(t *testing.T) {
	filter := NewFilter(DefaultFilterConfig())

	micro := NewCachedMicroSignals()
	micro.LiquidationCascade = signalValue(t, types.DirectionUp, 0.9, 0.8)

	result := filter.Apply(proposal(types.SignalDirectionLong, 0.8), micro)
	assert.Equal(t, DispositionAllow, result.Disposition)
}

func TestExitProposalNeverForceExited(t *testing.T) {
	filter := NewFilter(DefaultFilterConfig())

	micro := NewCachedMicroSignals()
	micro.LiquidationCascade = signalValue(t, types.DirectionDown, 0.9, 0.8)

	result := filter.Apply(proposal(types.SignalDirectionExit, 0.8), micro)
	assert.NotEqual(t, DispositionForceExit, result.Disposition)
}

func TestExitTriggerPrecedesEntryFilter(t *testing.T) {
	filter := NewFilter(DefaultFilterConfig())

	// Both the cascade exit trigger and the entry filter oppose the long;
	// the exit trigger is evaluated first.
	micro := NewCachedMicroSignals()
	micro.LiquidationCascade = signalValue(t, types.DirectionDown, 0.9, 0.8)
	micro.Composite = signalValue(t, types.DirectionDown, 0.9, 0.8)

	result := filter.Apply(proposal(types.SignalDirectionLong, 0.8), micro)
	assert.Equal(t, DispositionForceExit, result.Disposition)
}

func TestEntryFilterBlocksConflictingEntry(t *testing.T) {
	filter := NewFilter(DefaultFilterConfig())

	micro := NewCachedMicroSignals()
	micro.Composite = signalValue(t, types.DirectionDown, 0.7, 0.8)

	result := filter.Apply(proposal(types.SignalDirectionLong, 0.8), micro)

	assert.Equal(t, DispositionBlock, result.Disposition)
	assert.False(t, result.IsAllowed())
	assert.Nil(t, result.Signal)
	assert.Contains(t, result.Reason, "conflicts with long entry")
}

func TestEntryFilterIgnoresWeakComposite(t *testing.T) {
	filter := NewFilter(DefaultFilterConfig())

	micro := NewCachedMicroSignals()
	micro.Composite = signalValue(t, types.DirectionDown, 0.5, 0.8)

	result := filter.Apply(proposal(types.SignalDirectionLong, 0.8), micro)
	assert.Equal(t, DispositionAllow, result.Disposition)
}

func TestEntryFilterAllowsAgreeingEntry(t *testing.T) {
	filter := NewFilter(DefaultFilterConfig())

	micro := NewCachedMicroSignals()
	micro.Composite = signalValue(t, types.DirectionUp, 0.9, 0.8)

	result := filter.Apply(proposal(types.SignalDirectionLong, 0.8), micro)
	assert.Equal(t, DispositionAllow, result.Disposition)
}

func TestEntryTimingBlocksWithoutSupport(t *testing.T) {
	config := DefaultFilterConfig()
	config.EntryTimingEnabled = true
	filter := NewFilter(config)

	// Bullish book, but below the support threshold.
	micro := NewCachedMicroSignals()
	micro.OrderBookImbalance = signalValue(t, types.DirectionUp, 0.1, 0.5)

	result := filter.Apply(proposal(types.SignalDirectionLong, 0.8), micro)

	assert.Equal(t, DispositionBlock, result.Disposition)
	assert.Contains(t, result.Reason, "Waiting for order book support")
}

func TestEntryTimingBlocksOpposingBook(t *testing.T) {
	config := DefaultFilterConfig()
	config.EntryTimingEnabled = true
	filter := NewFilter(config)

	micro := NewCachedMicroSignals()
	micro.OrderBookImbalance = signalValue(t, types.DirectionDown, 0.8, 0.5)

	result := filter.Apply(proposal(types.SignalDirectionLong, 0.8), micro)
	assert.Equal(t, DispositionBlock, result.Disposition)
}

func TestEntryTimingAllowsNeutralBook(t *testing.T) {
	config := DefaultFilterConfig()
	config.EntryTimingEnabled = true
	filter := NewFilter(config)

	result := filter.Apply(proposal(types.SignalDirectionLong, 0.8), NewCachedMicroSignals())
	assert.Equal(t, DispositionAllow, result.Disposition)
}

func TestEntryTimingAllowsSupportiveBook(t *testing.T) {
	config := DefaultFilterConfig()
	config.EntryTimingEnabled = true
	filter := NewFilter(config)

	micro := NewCachedMicroSignals()
	micro.OrderBookImbalance = signalValue(t, types.DirectionUp, 0.5, 0.5)

	result := filter.Apply(proposal(types.SignalDirectionLong, 0.8), micro)
	assert.Equal(t, DispositionAllow, result.Disposition)
}

func TestSizingHalvesStrengthUnderStress(t *testing.T) {
	filter := NewFilter(DefaultFilterConfig())

	// High stress from a cascade whose direction does not oppose the long.
	micro := NewCachedMicroSignals()
	micro.LiquidationCascade = signalValue(t, types.DirectionNeutral, 0.75, 0.8)

	result := filter.Apply(proposal(types.SignalDirectionLong, 0.8), micro)

	assert.Equal(t, DispositionModify, result.Disposition)
	require.NotNil(t, result.Signal)
	assert.InDelta(t, 0.4, result.Signal.Strength, 1e-9)
}

func TestSizingUntouchedWithoutStress(t *testing.T) {
	filter := NewFilter(DefaultFilterConfig())

	result := filter.Apply(proposal(types.SignalDirectionLong, 0.8), NewCachedMicroSignals())

	assert.Equal(t, DispositionAllow, result.Disposition)
	require.NotNil(t, result.Signal)
	assert.InDelta(t, 0.8, result.Signal.Strength, 1e-9)
}

func TestDisabledFilterAlwaysAllows(t *testing.T) {
	filter := NewFilter(DisabledFilterConfig())

	micro := NewCachedMicroSignals()
	micro.LiquidationCascade = signalValue(t, types.DirectionDown, 1.0, 1.0)
	micro.Composite = signalValue(t, types.DirectionDown, 1.0, 1.0)

	result := filter.Apply(proposal(types.SignalDirectionLong, 0.8), micro)
	assert.Equal(t, DispositionAllow, result.Disposition)
}
