// Package generator contains the concrete signal generators. Each generator
// owns its private rolling state and degrades to a neutral signal when the
// context lacks the data it needs.
package generator

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/rxtech-lab/argo-signals/internal/types"
)

// Side of the order book.
type Side int

const (
	// SideBid is the buy side of the book.
	SideBid Side = iota
	// SideAsk is the sell side of the book.
	SideAsk
)

// WallSemantics classifies a large resting order as support or resistance.
//
//   - Floor: bid wall acting as support, bullish
//   - Ceiling: ask wall acting as resistance, bearish
type WallSemantics int

const (
	// WallFloor is a bid wall acting as support.
	WallFloor WallSemantics = iota
	// WallCeiling is an ask wall acting as resistance.
	WallCeiling
)

// DirectionBias returns +1 for a floor and -1 for a ceiling.
func (w WallSemantics) DirectionBias() float64 {
	if w == WallFloor {
		return 1
	}

	return -1
}

// WallSemanticsForSide maps a book side to its wall semantics.
func WallSemanticsForSide(side Side) WallSemantics {
	if side == SideBid {
		return WallFloor
	}

	return WallCeiling
}

// WallDetectionConfig configures order book wall detection.
type WallDetectionConfig struct {
	// MinWallSize is the minimum base-asset quantity to count as a wall.
	MinWallSize decimal.Decimal
	// ProximityBps is the maximum distance from mid price in basis points.
	ProximityBps uint32
}

// DefaultWallDetectionConfig returns the defaults: 10 base units within 100 bps.
func DefaultWallDetectionConfig() WallDetectionConfig {
	return WallDetectionConfig{
		MinWallSize:  decimal.NewFromInt(10),
		ProximityBps: 100,
	}
}

// Wall is a detected large order in the book.
type Wall struct {
	Side        Side
	Semantics   WallSemantics
	Price       decimal.Decimal
	Size        decimal.Decimal
	DistanceBps uint32
}

// WallBias aggregates detected walls into a single directional bias, where
// floors contribute positively and ceilings negatively.
type WallBias struct {
	// Bias is in [-1, 1]: +1 floor dominant, -1 ceiling dominant.
	Bias            float64
	FloorStrength   float64
	CeilingStrength float64
	DominantWall    *Wall
	FloorCount      int
	CeilingCount    int
}

// Direction returns the direction indicated by the bias, with a small dead
// zone around zero.
func (b WallBias) Direction() types.Direction {
	if b.Bias > 0.01 {
		return types.DirectionUp
	}

	if b.Bias < -0.01 {
		return types.DirectionDown
	}

	return types.DirectionNeutral
}

// OrderBookImbalanceSignal generates signals from bid/ask volume imbalance.
//
// Positive smoothed imbalance beyond the threshold is bullish, negative is
// bearish. A rolling window smooths out per-snapshot noise, and an optional
// z-score mode compares the smoothed value against a historical imbalance
// series instead of the fixed threshold.
type OrderBookImbalanceSignal struct {
	name      string
	threshold float64
	weight    float64

	window     []float64
	windowSize int

	useWeighted      bool
	wallConfig       *WallDetectionConfig
	minZScoreHistory int
	zscoreThreshold  float64
}

// NewOrderBookImbalanceSignal creates an imbalance generator with the given
// threshold (clamped to [0, 1]), weight and smoothing window size.
func NewOrderBookImbalanceSignal(threshold, weight float64, windowSize int) *OrderBookImbalanceSignal {
	if windowSize < 1 {
		windowSize = 1
	}

	return &OrderBookImbalanceSignal{
		name:            "orderbook_imbalance",
		threshold:       clamp(threshold, 0, 1),
		weight:          weight,
		window:          make([]float64, 0, windowSize),
		windowSize:      windowSize,
		zscoreThreshold: 2.0,
	}
}

// DefaultOrderBookImbalanceSignal returns the generator with threshold 0.3,
// weight 1.0 and a 10-observation smoothing window.
func DefaultOrderBookImbalanceSignal() *OrderBookImbalanceSignal {
	return NewOrderBookImbalanceSignal(0.3, 1.0, 10)
}

// WithWeighted enables proximity-weighted imbalance calculation.
func (s *OrderBookImbalanceSignal) WithWeighted(enabled bool) *OrderBookImbalanceSignal {
	s.useWeighted = enabled

	return s
}

// WithWallDetection enables wall detection with the given configuration.
func (s *OrderBookImbalanceSignal) WithWallDetection(config WallDetectionConfig) *OrderBookImbalanceSignal {
	s.wallConfig = &config

	return s
}

// WithZScoreHistory sets the minimum historical imbalance observations
// required before z-score mode activates. Zero disables z-score mode.
func (s *OrderBookImbalanceSignal) WithZScoreHistory(minHistory int) *OrderBookImbalanceSignal {
	s.minZScoreHistory = minHistory

	return s
}

// WithZScoreThreshold sets the z-score magnitude required for a directional signal.
func (s *OrderBookImbalanceSignal) WithZScoreThreshold(threshold float64) *OrderBookImbalanceSignal {
	s.zscoreThreshold = threshold

	return s
}

// CurrentImbalance returns the mean of the smoothing window, or 0 when empty.
func (s *OrderBookImbalanceSignal) CurrentImbalance() float64 {
	if len(s.window) == 0 {
		return 0
	}

	sum := 0.0
	for _, v := range s.window {
		sum += v
	}

	return sum / float64(len(s.window))
}

func (s *OrderBookImbalanceSignal) addObservation(imbalance float64) {
	if len(s.window) >= s.windowSize {
		copy(s.window, s.window[1:])
		s.window = s.window[:len(s.window)-1]
	}

	s.window = append(s.window, imbalance)
}

// Compute implements signal.Generator.
func (s *OrderBookImbalanceSignal) Compute(ctx *types.SignalContext) (types.SignalValue, error) {
	book := ctx.OrderBook
	if book == nil {
		return types.Neutral(), nil
	}

	rawImbalance := book.Imbalance()
	if s.useWeighted {
		rawImbalance = CalculateWeightedImbalance(book.Bids, book.Asks)
	}

	s.addObservation(rawImbalance)
	smoothed := s.CurrentImbalance()

	var walls []Wall

	if s.wallConfig != nil {
		if mid := book.MidPrice(); mid.IsSome() {
			walls = DetectWalls(*s.wallConfig, book.Bids, book.Asks, mid.Unwrap())
		}
	}

	zscore, hasZScore := s.imbalanceZScore(smoothed, ctx.HistoricalImbalances)

	var (
		direction types.Direction
		strength  float64
	)

	switch {
	case hasZScore && zscore > s.zscoreThreshold:
		direction, strength = types.DirectionUp, math.Min(zscore/s.zscoreThreshold, 1)
	case hasZScore && zscore < -s.zscoreThreshold:
		direction, strength = types.DirectionDown, math.Min(-zscore/s.zscoreThreshold, 1)
	case hasZScore:
		direction, strength = types.DirectionNeutral, math.Min(math.Abs(zscore)/s.zscoreThreshold, 1)
	case smoothed > s.threshold:
		direction, strength = types.DirectionUp, math.Min(smoothed, 1)
	case smoothed < -s.threshold:
		direction, strength = types.DirectionDown, math.Min(math.Abs(smoothed), 1)
	default:
		direction, strength = types.DirectionNeutral, math.Abs(smoothed)
	}

	signal, err := types.NewSignalValue(direction, strength, 0)
	if err != nil {
		return types.SignalValue{}, err
	}

	signal = signal.
		WithMetadata("raw_imbalance", rawImbalance).
		WithMetadata("smoothed_imbalance", smoothed).
		WithMetadata("threshold", s.threshold)

	if hasZScore {
		signal = signal.WithMetadata("zscore", zscore)
	}

	bidWalls, askWalls := 0, 0
	for _, wall := range walls {
		if wall.Side == SideBid {
			bidWalls++
		} else {
			askWalls++
		}
	}

	signal = signal.
		WithMetadata("wall_count", float64(len(walls))).
		WithMetadata("bid_wall_count", float64(bidWalls)).
		WithMetadata("ask_wall_count", float64(askWalls))

	if len(walls) > 0 {
		bias := CalculateWallBias(walls)
		signal = signal.
			WithMetadata("wall_bias", bias.Bias).
			WithMetadata("floor_strength", bias.FloorStrength).
			WithMetadata("ceiling_strength", bias.CeilingStrength)
	}

	return signal, nil
}

// Name implements signal.Generator.
func (s *OrderBookImbalanceSignal) Name() string {
	return s.name
}

// Weight implements signal.Generator.
func (s *OrderBookImbalanceSignal) Weight() float64 {
	return s.weight
}

func (s *OrderBookImbalanceSignal) imbalanceZScore(current float64, historical []float64) (float64, bool) {
	if s.minZScoreHistory == 0 || len(historical) < s.minZScoreHistory {
		return 0, false
	}

	return zscoreAgainst(historical, current)
}

// CalculateWeightedImbalance computes the bid/ask imbalance with each level
// weighted by proximity to the mid price: weight = 1 / (1 + distance), where
// distance is measured as a fraction of the mid price.
func CalculateWeightedImbalance(bids, asks []types.PriceLevel) float64 {
	if len(bids) == 0 && len(asks) == 0 {
		return 0
	}

	var mid decimal.Decimal

	switch {
	case len(bids) > 0 && len(asks) > 0:
		mid = bids[0].Price.Add(asks[0].Price).Div(decimal.NewFromInt(2))
	case len(bids) > 0:
		mid = bids[0].Price
	default:
		mid = asks[0].Price
	}

	if mid.IsZero() {
		return 0
	}

	weightedVolume := func(levels []types.PriceLevel) float64 {
		total := 0.0

		for _, level := range levels {
			distance, _ := level.Price.Sub(mid).Div(mid).Abs().Float64()
			qty, _ := level.Quantity.Float64()
			total += qty / (1 + distance)
		}

		return total
	}

	weightedBid := weightedVolume(bids)
	weightedAsk := weightedVolume(asks)

	total := weightedBid + weightedAsk
	if total < 1e-10 {
		return 0
	}

	return (weightedBid - weightedAsk) / total
}

// DetectWalls finds resting orders at least MinWallSize large within
// ProximityBps of the mid price, sorted by size descending.
func DetectWalls(config WallDetectionConfig, bids, asks []types.PriceLevel, midPrice decimal.Decimal) []Wall {
	var walls []Wall

	if midPrice.IsZero() {
		return walls
	}

	appendWalls := func(levels []types.PriceLevel, side Side) {
		for _, level := range levels {
			if level.Quantity.LessThan(config.MinWallSize) {
				continue
			}

			distancePct, _ := level.Price.Sub(midPrice).Div(midPrice).Abs().Float64()
			distanceBps := uint32(math.Min(distancePct*10000, math.MaxUint32))

			if distanceBps <= config.ProximityBps {
				walls = append(walls, Wall{
					Side:        side,
					Semantics:   WallSemanticsForSide(side),
					Price:       level.Price,
					Size:        level.Quantity,
					DistanceBps: distanceBps,
				})
			}
		}
	}

	appendWalls(bids, SideBid)
	appendWalls(asks, SideAsk)

	sort.SliceStable(walls, func(i, j int) bool {
		return walls[i].Size.GreaterThan(walls[j].Size)
	})

	return walls
}

// CalculateWallBias aggregates walls into a directional bias. Each wall is
// weighted by size times a proximity weight of 1 / (1 + bps/100), so walls at
// the mid count fully and walls 100 bps away count half.
func CalculateWallBias(walls []Wall) WallBias {
	if len(walls) == 0 {
		return WallBias{}
	}

	var bias WallBias

	maxScore := 0.0

	for i := range walls {
		wall := walls[i]
		proximityWeight := 1.0 / (1.0 + float64(wall.DistanceBps)/100.0)
		size, _ := wall.Size.Float64()
		score := size * proximityWeight

		if score > maxScore {
			maxScore = score
			bias.DominantWall = &walls[i]
		}

		if wall.Semantics == WallFloor {
			bias.FloorStrength += score
			bias.FloorCount++
		} else {
			bias.CeilingStrength += score
			bias.CeilingCount++
		}
	}

	total := bias.FloorStrength + bias.CeilingStrength
	if total > 1e-10 {
		bias.Bias = (bias.FloorStrength - bias.CeilingStrength) / total
	}

	return bias
}

// zscoreAgainst computes the z-score of value against a historical series
// using the sample standard deviation. A degenerate series yields 0.
func zscoreAgainst(historical []float64, value float64) (float64, bool) {
	if len(historical) < 2 {
		return 0, false
	}

	mean := 0.0
	for _, v := range historical {
		mean += v
	}

	mean /= float64(len(historical))

	variance := 0.0
	for _, v := range historical {
		diff := v - mean
		variance += diff * diff
	}

	std := math.Sqrt(variance / float64(len(historical)-1))
	if std < 1e-10 {
		return 0, true
	}

	return (value - mean) / std, true
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}

	if v > hi {
		return hi
	}

	return v
}
