package generator

import (
	"github.com/shopspring/decimal"

	"github.com/rxtech-lab/argo-signals/internal/types"
)

// LiquidationRatioConfig configures the 24h long/short liquidation ratio signal.
type LiquidationRatioConfig struct {
	// HighRatioThreshold is the long/short ratio above which a bullish
	// reversal signal fires. Default 2.0.
	HighRatioThreshold float64
	// LowRatioThreshold is the ratio below which a bearish reversal signal
	// fires. Default 0.5.
	LowRatioThreshold float64
	// MinVolumeUSD is the minimum total 24h volume for a meaningful signal.
	MinVolumeUSD decimal.Decimal
	// Weight for composite aggregation.
	Weight float64
}

// DefaultLiquidationRatioConfig returns thresholds 2.0/0.5 with a $100,000
// volume floor.
func DefaultLiquidationRatioConfig() LiquidationRatioConfig {
	return LiquidationRatioConfig{
		HighRatioThreshold: 2.0,
		LowRatioThreshold:  0.5,
		MinVolumeUSD:       decimal.NewFromInt(100_000),
		Weight:             1.0,
	}
}

// NewLiquidationRatioConfig creates a config with custom thresholds. The
// high threshold is floored at 1.0 and the low threshold clamped to [0, 1].
func NewLiquidationRatioConfig(highRatioThreshold, lowRatioThreshold float64, minVolumeUSD decimal.Decimal) LiquidationRatioConfig {
	if highRatioThreshold < 1 {
		highRatioThreshold = 1
	}

	return LiquidationRatioConfig{
		HighRatioThreshold: highRatioThreshold,
		LowRatioThreshold:  clamp(lowRatioThreshold, 0, 1),
		MinVolumeUSD:       minVolumeUSD,
		Weight:             1.0,
	}
}

// CalculateRatioSignal derives a contrarian signal from 24h long/short
// liquidation volumes. Heavy long liquidations imply a washed-out downside
// and a bullish reversal; heavy short liquidations the opposite. Zero short
// volume with sufficient total volume is the extreme bullish case.
func CalculateRatioSignal(longVolume, shortVolume decimal.Decimal, config LiquidationRatioConfig) (types.Direction, float64, bool) {
	total := longVolume.Add(shortVolume)
	if total.LessThan(config.MinVolumeUSD) {
		return types.DirectionNeutral, 0, false
	}

	if shortVolume.IsZero() {
		return types.DirectionUp, 1, true
	}

	ratio, _ := longVolume.Div(shortVolume).Float64()

	if ratio >= config.HighRatioThreshold {
		strength := clamp((ratio-config.HighRatioThreshold)/config.HighRatioThreshold, 0, 1)

		return types.DirectionUp, strength, true
	}

	if ratio <= config.LowRatioThreshold {
		strength := clamp((config.LowRatioThreshold-ratio)/config.LowRatioThreshold, 0, 1)

		return types.DirectionDown, strength, true
	}

	return types.DirectionNeutral, 0, false
}

// LiquidationRatioSignal is a contrarian generator over the 24h long/short
// liquidation ratio.
type LiquidationRatioSignal struct {
	name   string
	config LiquidationRatioConfig

	// cachedAggregate is used when the context carries no aggregate.
	cachedAggregate *types.LiquidationAggregate
}

// NewLiquidationRatioSignal creates the generator with the given config.
func NewLiquidationRatioSignal(config LiquidationRatioConfig) *LiquidationRatioSignal {
	return &LiquidationRatioSignal{
		name:   "liquidation_ratio",
		config: config,
	}
}

// DefaultLiquidationRatioSignal returns the generator with default config.
func DefaultLiquidationRatioSignal() *LiquidationRatioSignal {
	return NewLiquidationRatioSignal(DefaultLiquidationRatioConfig())
}

// SetAggregate sets the fallback aggregate used when the context has none.
func (s *LiquidationRatioSignal) SetAggregate(aggregate types.LiquidationAggregate) {
	s.cachedAggregate = &aggregate
}

// Config returns the generator configuration.
func (s *LiquidationRatioSignal) Config() LiquidationRatioConfig {
	return s.config
}

// Compute implements signal.Generator.
func (s *LiquidationRatioSignal) Compute(ctx *types.SignalContext) (types.SignalValue, error) {
	var aggregate types.LiquidationAggregate

	switch {
	case ctx.LiquidationAggregate.IsSome():
		aggregate = ctx.LiquidationAggregate.Unwrap()
	case s.cachedAggregate != nil:
		aggregate = *s.cachedAggregate
	default:
		return types.Neutral(), nil
	}

	direction, strength, ok := CalculateRatioSignal(aggregate.LongVolumeUSD, aggregate.ShortVolumeUSD, s.config)
	if !ok {
		direction, strength = types.DirectionNeutral, 0
	}

	signal, err := types.NewSignalValue(direction, strength, 0)
	if err != nil {
		return types.SignalValue{}, err
	}

	longF, _ := aggregate.LongVolumeUSD.Float64()
	shortF, _ := aggregate.ShortVolumeUSD.Float64()
	totalF, _ := aggregate.TotalVolumeUSD().Float64()

	signal = signal.
		WithMetadata("long_volume_24h", longF).
		WithMetadata("short_volume_24h", shortF).
		WithMetadata("total_volume_24h", totalF)

	if !aggregate.ShortVolumeUSD.IsZero() {
		ratio, _ := aggregate.LongVolumeUSD.Div(aggregate.ShortVolumeUSD).Float64()
		signal = signal.WithMetadata("ratio", ratio)
	}

	return signal, nil
}

// Name implements signal.Generator.
func (s *LiquidationRatioSignal) Name() string {
	return s.name
}

// Weight implements signal.Generator.
func (s *LiquidationRatioSignal) Weight() float64 {
	return s.config.Weight
}
