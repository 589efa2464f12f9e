package generator

import (
	"math"

	"github.com/rxtech-lab/argo-signals/internal/types"
)

// CvdDivergenceConfig configures CVD divergence detection.
type CvdDivergenceConfig struct {
	// LookbackPeriods is the size of the synchronized price/CVD history.
	LookbackPeriods int
	// MinPriceChange is the minimum price change ratio for a new high/low.
	MinPriceChange float64
	// FlatPriceThreshold is the maximum normalized range counted as "flat".
	FlatPriceThreshold float64
	// AbsorptionCvdThreshold is the minimum |CVD change| for absorption.
	AbsorptionCvdThreshold float64
	// Weight for composite aggregation.
	Weight float64
}

// DefaultCvdDivergenceConfig returns lookback 10, 0.1% price thresholds and
// a 10 base-unit absorption threshold.
func DefaultCvdDivergenceConfig() CvdDivergenceConfig {
	return CvdDivergenceConfig{
		LookbackPeriods:        10,
		MinPriceChange:         0.001,
		FlatPriceThreshold:     0.001,
		AbsorptionCvdThreshold: 10.0,
		Weight:                 1.0,
	}
}

// DivergenceType is the result of divergence detection.
type DivergenceType int

const (
	// DivergenceNone means no divergence was detected.
	DivergenceNone DivergenceType = iota
	// DivergenceBearish means price made a new high while CVD made a lower high.
	DivergenceBearish
	// DivergenceBullish means price made a new low while CVD made a higher low.
	DivergenceBullish
)

// AbsorptionType is the result of absorption detection.
type AbsorptionType int

const (
	// AbsorptionNone means no absorption was detected.
	AbsorptionNone AbsorptionType = iota
	// AbsorptionBuy is heavy buy CVD with flat price (accumulation).
	AbsorptionBuy
	// AbsorptionSell is heavy sell CVD with flat price (distribution).
	AbsorptionSell
)

// CvdDivergenceSignal detects divergences between price and cumulative
// volume delta, a classic reversal indicator, plus absorption (large delta
// with flat price).
type CvdDivergenceSignal struct {
	name   string
	config CvdDivergenceConfig

	cvdHistory    []float64
	priceHistory  []float64
	cumulativeCvd float64
}

// NewCvdDivergenceSignal creates a CVD divergence generator.
func NewCvdDivergenceSignal(config CvdDivergenceConfig) *CvdDivergenceSignal {
	if config.LookbackPeriods < 1 {
		config.LookbackPeriods = 1
	}

	return &CvdDivergenceSignal{
		name:         "cvd_divergence",
		config:       config,
		cvdHistory:   make([]float64, 0, config.LookbackPeriods),
		priceHistory: make([]float64, 0, config.LookbackPeriods),
	}
}

// DefaultCvdDivergenceSignal returns the generator with default config.
func DefaultCvdDivergenceSignal() *CvdDivergenceSignal {
	return NewCvdDivergenceSignal(DefaultCvdDivergenceConfig())
}

// AddObservation accumulates a CVD delta and records the (cumulative CVD,
// price) pair in the synchronized histories.
func (s *CvdDivergenceSignal) AddObservation(cvdDelta, price float64) {
	s.cumulativeCvd += cvdDelta

	if len(s.cvdHistory) >= s.config.LookbackPeriods {
		copy(s.cvdHistory, s.cvdHistory[1:])
		s.cvdHistory = s.cvdHistory[:len(s.cvdHistory)-1]
		copy(s.priceHistory, s.priceHistory[1:])
		s.priceHistory = s.priceHistory[:len(s.priceHistory)-1]
	}

	s.cvdHistory = append(s.cvdHistory, s.cumulativeCvd)
	s.priceHistory = append(s.priceHistory, price)
}

// Reset clears the cumulative CVD and histories.
func (s *CvdDivergenceSignal) Reset() {
	s.cumulativeCvd = 0
	s.cvdHistory = s.cvdHistory[:0]
	s.priceHistory = s.priceHistory[:0]
}

// CumulativeCvd returns the running CVD total.
func (s *CvdDivergenceSignal) CumulativeCvd() float64 {
	return s.cumulativeCvd
}

// ObservationCount returns the number of observations held.
func (s *CvdDivergenceSignal) ObservationCount() int {
	return len(s.cvdHistory)
}

// DetectDivergence evaluates the current history for a divergence.
func (s *CvdDivergenceSignal) DetectDivergence() DivergenceType {
	return DetectDivergence(s.priceHistory, s.cvdHistory, s.config.MinPriceChange)
}

// DetectAbsorption evaluates the current history for absorption.
func (s *CvdDivergenceSignal) DetectAbsorption() AbsorptionType {
	if len(s.priceHistory) < 2 {
		return AbsorptionNone
	}

	cvdChange := 0.0
	if len(s.cvdHistory) >= 2 {
		cvdChange = s.cvdHistory[len(s.cvdHistory)-1] - s.cvdHistory[0]
	}

	return DetectAbsorption(s.priceHistory, cvdChange, s.config.FlatPriceThreshold, s.config.AbsorptionCvdThreshold)
}

// Compute implements signal.Generator.
func (s *CvdDivergenceSignal) Compute(ctx *types.SignalContext) (types.SignalValue, error) {
	mid := ctx.MidPrice()
	if mid.IsNone() {
		return types.Neutral(), nil
	}

	price := mid.Unwrap()

	// Order book imbalance stands in for the per-tick volume delta; a trade
	// tick feed would replace this.
	cvdDelta := 0.0
	if ctx.OrderBook != nil {
		cvdDelta = ctx.OrderBook.Imbalance()
	}

	s.AddObservation(cvdDelta, price)

	if s.ObservationCount() < 3 {
		return types.Neutral(), nil
	}

	divergence := s.DetectDivergence()
	absorption := s.DetectAbsorption()

	direction := types.DirectionNeutral
	baseStrength := 0.0

	switch divergence {
	case DivergenceBearish:
		direction, baseStrength = types.DirectionDown, 0.7
	case DivergenceBullish:
		direction, baseStrength = types.DirectionUp, 0.7
	default:
		switch absorption {
		case AbsorptionBuy:
			direction, baseStrength = types.DirectionUp, 0.5
		case AbsorptionSell:
			direction, baseStrength = types.DirectionDown, 0.5
		}
	}

	multiplier := CalculateDivergenceStrength(s.priceHistory, s.cvdHistory)
	strength := math.Min(baseStrength*(0.5+multiplier*0.5), 1)

	signal, err := types.NewSignalValue(direction, strength, 0)
	if err != nil {
		return types.SignalValue{}, err
	}

	signal = signal.
		WithMetadata("cumulative_cvd", s.cumulativeCvd).
		WithMetadata("price", price)

	switch divergence {
	case DivergenceBearish:
		signal = signal.WithMetadata("divergence_type", -1)
	case DivergenceBullish:
		signal = signal.WithMetadata("divergence_type", 1)
	}

	switch absorption {
	case AbsorptionBuy:
		signal = signal.WithMetadata("absorption_type", 1)
	case AbsorptionSell:
		signal = signal.WithMetadata("absorption_type", -1)
	}

	return signal, nil
}

// Name implements signal.Generator.
func (s *CvdDivergenceSignal) Name() string {
	return s.name
}

// Weight implements signal.Generator.
func (s *CvdDivergenceSignal) Weight() float64 {
	return s.config.Weight
}

// DetectDivergence checks a price/CVD pair of series (oldest first) for a
// divergence. Bearish takes precedence when both fire.
func DetectDivergence(prices, cvds []float64, minPriceChange float64) DivergenceType {
	if len(prices) < 3 || len(cvds) < 3 || len(prices) != len(cvds) {
		return DivergenceNone
	}

	if DetectBearishDivergence(prices, cvds, minPriceChange) {
		return DivergenceBearish
	}

	if DetectBullishDivergence(prices, cvds, minPriceChange) {
		return DivergenceBullish
	}

	return DivergenceNone
}

// DetectBearishDivergence reports whether price made a new high beyond the
// minimum change ratio while CVD made a lower high. Non-finite inputs
// short-circuit to false.
func DetectBearishDivergence(prices, cvds []float64, minPriceChange float64) bool {
	if len(prices) < 3 || len(cvds) < 3 {
		return false
	}

	if !allFinite(prices) || !allFinite(cvds) {
		return false
	}

	prevHighIdx := 0
	prevHigh := prices[0]

	for i, p := range prices[:len(prices)-1] {
		if p > prevHigh {
			prevHigh = p
			prevHighIdx = i
		}
	}

	currentPrice := prices[len(prices)-1]
	currentCvd := cvds[len(cvds)-1]
	prevCvd := cvds[prevHighIdx]

	const minPrice = 1e-10

	priceChangeRatio := 0.0
	if math.Abs(prevHigh) > minPrice {
		priceChangeRatio = (currentPrice - prevHigh) / prevHigh
	}

	return priceChangeRatio > minPriceChange && currentCvd < prevCvd
}

// DetectBullishDivergence reports whether price made a new low beyond the
// minimum change ratio while CVD made a higher low.
func DetectBullishDivergence(prices, cvds []float64, minPriceChange float64) bool {
	if len(prices) < 3 || len(cvds) < 3 {
		return false
	}

	if !allFinite(prices) || !allFinite(cvds) {
		return false
	}

	prevLowIdx := 0
	prevLow := prices[0]

	for i, p := range prices[:len(prices)-1] {
		if p < prevLow {
			prevLow = p
			prevLowIdx = i
		}
	}

	currentPrice := prices[len(prices)-1]
	currentCvd := cvds[len(cvds)-1]
	prevCvd := cvds[prevLowIdx]

	const minPrice = 1e-10

	priceChangeRatio := 0.0
	if math.Abs(prevLow) > minPrice {
		priceChangeRatio = (prevLow - currentPrice) / prevLow
	}

	return priceChangeRatio > minPriceChange && currentCvd > prevCvd
}

// DetectAbsorption reports significant volume delta with a flat price, which
// suggests institutional flow being absorbed at a level.
func DetectAbsorption(prices []float64, cvdChange, flatThreshold, cvdThreshold float64) AbsorptionType {
	if len(prices) < 2 {
		return AbsorptionNone
	}

	maxPrice := math.Inf(-1)
	minPrice := math.Inf(1)

	for _, p := range prices {
		maxPrice = math.Max(maxPrice, p)
		minPrice = math.Min(minPrice, p)
	}

	avgPrice := (maxPrice + minPrice) / 2
	if avgPrice <= 0 {
		return AbsorptionNone
	}

	isFlat := (maxPrice-minPrice)/avgPrice < flatThreshold
	isSignificant := math.Abs(cvdChange) > cvdThreshold

	if !isFlat || !isSignificant {
		return AbsorptionNone
	}

	if cvdChange > 0 {
		return AbsorptionBuy
	}

	return AbsorptionSell
}

// CalculateDivergenceStrength measures how oppositely price and CVD moved
// over the window, normalized to [0, 1]. Both changes are normalized by
// their own range; the maximum possible divergence magnitude is 2.
func CalculateDivergenceStrength(prices, cvds []float64) float64 {
	if len(prices) < 2 || len(cvds) < 2 {
		return 0
	}

	normChange := func(series []float64) float64 {
		change := series[len(series)-1] - series[0]

		maxV := math.Inf(-1)
		minV := math.Inf(1)

		for _, v := range series {
			maxV = math.Max(maxV, v)
			minV = math.Min(minV, v)
		}

		if maxV-minV <= 0 {
			return 0
		}

		return change / (maxV - minV)
	}

	magnitude := math.Abs(normChange(prices) - normChange(cvds))

	return math.Min(magnitude/2, 1)
}

func allFinite(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}

	return true
}
