package generator

import (
	"math"

	"github.com/rxtech-lab/argo-signals/internal/types"
)

// MomentumExhaustionConfig configures momentum exhaustion detection.
type MomentumExhaustionConfig struct {
	// BigMoveThreshold is the minimum fractional move, e.g. 0.02 = 2%.
	BigMoveThreshold float64
	// BigMoveLookback is the candle window in which the move is measured.
	BigMoveLookback int
	// StallRatio is the maximum recent/big-move range ratio for a stall.
	StallRatio float64
	// StallLookback is the number of recent candles checked for a stall.
	StallLookback int
	// MinCandles is the minimum candle count for a valid signal.
	MinCandles int
}

// DefaultMomentumExhaustionConfig returns 2% over 5 candles, a 30% stall
// ratio over 3 candles, and an 8-candle minimum.
func DefaultMomentumExhaustionConfig() MomentumExhaustionConfig {
	return MomentumExhaustionConfig{
		BigMoveThreshold: 0.02,
		BigMoveLookback:  5,
		StallRatio:       0.3,
		StallLookback:    3,
		MinCandles:       8,
	}
}

// BigMoveResult describes a detected big move.
type BigMoveResult struct {
	Direction types.Direction
	// Magnitude is the fractional size of the move, e.g. 0.03 = 3%.
	Magnitude float64
	// CandleIndex is the index of the candle closing the move.
	CandleIndex int
}

// DetectBigMove looks for a cumulative price change over the lookback window
// exceeding the threshold. Candles are oldest first; the most recent candle
// is excluded (it belongs to the stall window).
func DetectBigMove(candles []types.OhlcvCandle, threshold float64, lookback int) (BigMoveResult, bool) {
	if len(candles) < lookback+1 {
		return BigMoveResult{}, false
	}

	startIdx := len(candles) - lookback - 1
	if startIdx < 0 {
		startIdx = 0
	}

	endIdx := len(candles) - 1
	if startIdx >= endIdx {
		return BigMoveResult{}, false
	}

	startPrice := candles[startIdx].Open
	endPrice := candles[endIdx].Close

	if startPrice == 0 {
		return BigMoveResult{}, false
	}

	change := (endPrice - startPrice) / startPrice
	magnitude := math.Abs(change)

	if magnitude < threshold {
		return BigMoveResult{}, false
	}

	direction := types.DirectionDown
	if change > 0 {
		direction = types.DirectionUp
	}

	return BigMoveResult{
		Direction:   direction,
		Magnitude:   magnitude,
		CandleIndex: endIdx,
	}, true
}

// DetectStall reports range compression: the average high-low range of the
// most recent stallLookback candles falls below stallRatio times the average
// range of the preceding bigMoveLookback candles.
func DetectStall(candles []types.OhlcvCandle, stallRatio float64, stallLookback, bigMoveLookback int) bool {
	if len(candles) < stallLookback+bigMoveLookback {
		return false
	}

	bigMoveStart := len(candles) - stallLookback - bigMoveLookback
	bigMoveEnd := len(candles) - stallLookback

	if bigMoveStart >= bigMoveEnd {
		return false
	}

	avgRange := func(window []types.OhlcvCandle) float64 {
		sum := 0.0
		for _, c := range window {
			sum += c.Range()
		}

		return sum / float64(len(window))
	}

	bigMoveAvg := avgRange(candles[bigMoveStart:bigMoveEnd])
	if bigMoveAvg == 0 {
		return false
	}

	stallAvg := avgRange(candles[len(candles)-stallLookback:])

	return stallAvg/bigMoveAvg < stallRatio
}

// DetectMomentumExhaustion looks for a big move followed by a stall and
// returns a contrarian signal opposite the move. Strength normalizes the
// move magnitude against twice the threshold, capped at 1.
func DetectMomentumExhaustion(candles []types.OhlcvCandle, config MomentumExhaustionConfig) (types.Direction, float64, bool) {
	if len(candles) < config.MinCandles {
		return types.DirectionNeutral, 0, false
	}

	bigMove, ok := DetectBigMove(candles, config.BigMoveThreshold, config.BigMoveLookback)
	if !ok {
		return types.DirectionNeutral, 0, false
	}

	if !DetectStall(candles, config.StallRatio, config.StallLookback, config.BigMoveLookback) {
		return types.DirectionNeutral, 0, false
	}

	strength := math.Min(bigMove.Magnitude/(config.BigMoveThreshold*2), 1)

	return bigMove.Direction.Opposite(), strength, true
}

// MomentumExhaustionSignal is a contrarian generator: a big move followed by
// range compression suggests momentum is exhausted and a reversal is likely.
type MomentumExhaustionSignal struct {
	name   string
	config MomentumExhaustionConfig
	weight float64
}

// NewMomentumExhaustionSignal creates the generator.
func NewMomentumExhaustionSignal(config MomentumExhaustionConfig, weight float64) *MomentumExhaustionSignal {
	return &MomentumExhaustionSignal{
		name:   "momentum_exhaustion",
		config: config,
		weight: weight,
	}
}

// DefaultMomentumExhaustionSignal returns the generator with default config
// and weight 1.0.
func DefaultMomentumExhaustionSignal() *MomentumExhaustionSignal {
	return NewMomentumExhaustionSignal(DefaultMomentumExhaustionConfig(), 1.0)
}

// WithBigMoveThreshold sets the big move threshold (absolute value taken).
func (s *MomentumExhaustionSignal) WithBigMoveThreshold(threshold float64) *MomentumExhaustionSignal {
	s.config.BigMoveThreshold = math.Abs(threshold)

	return s
}

// WithStallRatio sets the stall ratio, clamped to [0, 1].
func (s *MomentumExhaustionSignal) WithStallRatio(ratio float64) *MomentumExhaustionSignal {
	s.config.StallRatio = clamp(ratio, 0, 1)

	return s
}

// WithLookbacks sets the big-move and stall lookbacks, each floored at 1.
func (s *MomentumExhaustionSignal) WithLookbacks(bigMove, stall int) *MomentumExhaustionSignal {
	if bigMove < 1 {
		bigMove = 1
	}

	if stall < 1 {
		stall = 1
	}

	s.config.BigMoveLookback = bigMove
	s.config.StallLookback = stall

	return s
}

// Config returns the generator configuration.
func (s *MomentumExhaustionSignal) Config() MomentumExhaustionConfig {
	return s.config
}

// Compute implements signal.Generator.
func (s *MomentumExhaustionSignal) Compute(ctx *types.SignalContext) (types.SignalValue, error) {
	candles := ctx.RecentCandles
	if len(candles) == 0 {
		return types.Neutral(), nil
	}

	direction, strength, ok := DetectMomentumExhaustion(candles, s.config)
	if !ok {
		return types.Neutral(), nil
	}

	signal, err := types.NewSignalValue(direction, strength, 0)
	if err != nil {
		return types.SignalValue{}, err
	}

	signal = signal.
		WithMetadata("big_move_threshold", s.config.BigMoveThreshold).
		WithMetadata("stall_ratio", s.config.StallRatio)

	if bigMove, found := DetectBigMove(candles, s.config.BigMoveThreshold, s.config.BigMoveLookback); found {
		signal = signal.
			WithMetadata("big_move_magnitude", bigMove.Magnitude).
			WithMetadata("big_move_direction", bigMove.Direction.Sign())
	}

	return signal, nil
}

// Name implements signal.Generator.
func (s *MomentumExhaustionSignal) Name() string {
	return s.name
}

// Weight implements signal.Generator.
func (s *MomentumExhaustionSignal) Weight() float64 {
	return s.weight
}
