package generator

import (
	"math"

	"github.com/rxtech-lab/argo-signals/internal/types"
)

// FundingSignalMode selects how the z-score and percentile readings are
// combined into one funding signal.
type FundingSignalMode int

const (
	// FundingModeCombined merges z-score and percentile signals (default).
	FundingModeCombined FundingSignalMode = iota
	// FundingModeZScore uses the z-score reading only.
	FundingModeZScore
	// FundingModePercentile uses the percentile reading only.
	FundingModePercentile
)

// FundingReversalConfig configures funding rate reversal detection.
type FundingReversalConfig struct {
	// LookbackPeriods is the number of observations scanned for a reversal.
	LookbackPeriods int
	// ExtremeThresholdPercentile marks funding as extreme, e.g. 0.90.
	ExtremeThresholdPercentile float64
	// ReversionThresholdPercentile bounds the "normal" range, e.g. 0.60.
	ReversionThresholdPercentile float64
}

// DefaultFundingReversalConfig returns lookback 10, extreme 0.90, reversion 0.60.
func DefaultFundingReversalConfig() FundingReversalConfig {
	return FundingReversalConfig{
		LookbackPeriods:              10,
		ExtremeThresholdPercentile:   0.90,
		ReversionThresholdPercentile: 0.60,
	}
}

// FundingPercentileConfig configures 30-day percentile analysis of funding.
type FundingPercentileConfig struct {
	// LookbackPeriods is the number of funding periods considered (90 = 30 days).
	LookbackPeriods int
	// HighThreshold flags high funding, default 0.80 (top 20%).
	HighThreshold float64
	// LowThreshold flags low funding, default 0.20 (bottom 20%).
	LowThreshold float64
	// MinDataPoints is the minimum history for a valid reading.
	MinDataPoints int
}

// DefaultFundingPercentileConfig returns lookback 90, thresholds 0.80/0.20,
// minimum 30 data points.
func DefaultFundingPercentileConfig() FundingPercentileConfig {
	return FundingPercentileConfig{
		LookbackPeriods: 90,
		HighThreshold:   0.80,
		LowThreshold:    0.20,
		MinDataPoints:   30,
	}
}

// ReversalSignal indicates funding normalizing after an extreme reading.
type ReversalSignal struct {
	// FromDirection is the signal direction the extreme funding implied.
	FromDirection types.Direction
	Strength      float64
}

// FundingRateSignal is a contrarian generator: extreme positive funding
// suggests overleveraged longs (bearish), extreme negative funding suggests
// overleveraged shorts (bullish).
type FundingRateSignal struct {
	name            string
	zscoreThreshold float64
	weight          float64

	history    []float64
	windowSize int

	percentileThresholdHigh float64
	percentileThresholdLow  float64
	reversalConfig          *FundingReversalConfig
	signalMode              FundingSignalMode
	percentileConfig        *FundingPercentileConfig
}

// NewFundingRateSignal creates a funding generator with the given z-score
// threshold (absolute value taken), weight and rolling window size (min 2).
func NewFundingRateSignal(zscoreThreshold, weight float64, windowSize int) *FundingRateSignal {
	if windowSize < 2 {
		windowSize = 2
	}

	return &FundingRateSignal{
		name:                    "funding_rate",
		zscoreThreshold:         math.Abs(zscoreThreshold),
		weight:                  weight,
		history:                 make([]float64, 0, windowSize),
		windowSize:              windowSize,
		percentileThresholdHigh: 0.90,
		percentileThresholdLow:  0.10,
		signalMode:              FundingModeCombined,
	}
}

// DefaultFundingRateSignal returns the generator with threshold 2.0, weight
// 1.0 and a 100-observation window.
func DefaultFundingRateSignal() *FundingRateSignal {
	return NewFundingRateSignal(2.0, 1.0, 100)
}

// WithPercentileThresholds sets the low/high percentile thresholds, clamped to [0, 1].
func (s *FundingRateSignal) WithPercentileThresholds(low, high float64) *FundingRateSignal {
	s.percentileThresholdLow = clamp(low, 0, 1)
	s.percentileThresholdHigh = clamp(high, 0, 1)

	return s
}

// WithReversalDetection enables reversal detection.
func (s *FundingRateSignal) WithReversalDetection(config FundingReversalConfig) *FundingRateSignal {
	s.reversalConfig = &config

	return s
}

// WithSignalMode sets the combination mode.
func (s *FundingRateSignal) WithSignalMode(mode FundingSignalMode) *FundingRateSignal {
	s.signalMode = mode

	return s
}

// WithPercentileConfig enables 30-day extreme funding detection.
func (s *FundingRateSignal) WithPercentileConfig(config FundingPercentileConfig) *FundingRateSignal {
	s.percentileConfig = &config

	return s
}

// ObservationCount returns the number of funding observations held.
func (s *FundingRateSignal) ObservationCount() int {
	return len(s.history)
}

// CurrentZScore returns the z-score of the latest observation against the
// rolling window, or false when the window is too small or degenerate.
func (s *FundingRateSignal) CurrentZScore() (float64, bool) {
	if len(s.history) < 2 {
		return 0, false
	}

	latest := s.history[len(s.history)-1]

	mean := 0.0
	for _, v := range s.history {
		mean += v
	}

	mean /= float64(len(s.history))

	variance := 0.0
	for _, v := range s.history {
		diff := v - mean
		variance += diff * diff
	}

	std := math.Sqrt(variance / float64(len(s.history)-1))
	if std < 1e-10 {
		return 0, false
	}

	return (latest - mean) / std, true
}

func (s *FundingRateSignal) addObservation(rate float64) {
	if len(s.history) >= s.windowSize {
		copy(s.history, s.history[1:])
		s.history = s.history[:len(s.history)-1]
	}

	s.history = append(s.history, rate)
}

// Compute implements signal.Generator.
func (s *FundingRateSignal) Compute(ctx *types.SignalContext) (types.SignalValue, error) {
	if ctx.FundingRate.IsNone() {
		return types.Neutral(), nil
	}

	fundingRate := ctx.FundingRate.Unwrap()
	s.addObservation(fundingRate)

	if len(s.history) < 2 {
		return types.Neutral(), nil
	}

	var (
		zscoreDir      types.Direction
		zscoreStrength float64
		hasZScoreSig   bool
	)

	zscore, hasZScore := s.CurrentZScore()
	if hasZScore {
		switch {
		case zscore > s.zscoreThreshold:
			zscoreDir = types.DirectionDown
			zscoreStrength = math.Min((zscore-s.zscoreThreshold)/s.zscoreThreshold, 1)
			hasZScoreSig = true
		case zscore < -s.zscoreThreshold:
			zscoreDir = types.DirectionUp
			zscoreStrength = math.Min((-zscore-s.zscoreThreshold)/s.zscoreThreshold, 1)
			hasZScoreSig = true
		}
	}

	historicalRates := make([]float64, 0, len(ctx.HistoricalFunding))
	for _, record := range ctx.HistoricalFunding {
		historicalRates = append(historicalRates, record.FundingRate)
	}

	if len(historicalRates) == 0 {
		historicalRates = append(historicalRates, s.history...)
	}

	percentile, hasPercentile := percentileAgainst(historicalRates, fundingRate)
	pctDir, pctStrength, hasPctSig := PercentileSignal(fundingRate, historicalRates, s.percentileThresholdHigh, s.percentileThresholdLow)

	var reversal *ReversalSignal
	if s.reversalConfig != nil && len(ctx.HistoricalFunding) > 0 {
		reversal = DetectReversal(ctx.HistoricalFunding, *s.reversalConfig)
	}

	var (
		direction types.Direction
		strength  float64
	)

	switch s.signalMode {
	case FundingModeZScore:
		if hasZScoreSig {
			direction, strength = zscoreDir, zscoreStrength
		}
	case FundingModePercentile:
		if hasPctSig {
			direction, strength = pctDir, pctStrength
		}
	default:
		switch {
		case hasZScoreSig && hasPctSig && zscoreDir == pctDir:
			// Agreeing signals, average strength with a boost
			direction = zscoreDir
			strength = math.Min((zscoreStrength+pctStrength)/2*1.2, 1)
		case hasZScoreSig && hasPctSig:
			// Conflicting signals, keep the dominant one at half strength
			if zscoreStrength > pctStrength {
				direction, strength = zscoreDir, zscoreStrength*0.5
			} else {
				direction, strength = pctDir, pctStrength*0.5
			}
		case hasZScoreSig:
			direction, strength = zscoreDir, zscoreStrength
		case hasPctSig:
			direction, strength = pctDir, pctStrength
		}
	}

	confidence := 0.0
	if reversal != nil && reversal.FromDirection.Opposite() == direction {
		confidence = reversal.Strength * 0.5
	}

	signal, err := types.NewSignalValue(direction, strength, confidence)
	if err != nil {
		return types.SignalValue{}, err
	}

	signal = signal.
		WithMetadata("funding_rate", fundingRate).
		WithMetadata("threshold", s.zscoreThreshold)

	if hasZScore {
		signal = signal.WithMetadata("zscore", zscore)
	}

	if hasPercentile {
		signal = signal.WithMetadata("percentile", percentile)
	}

	if reversal != nil {
		signal = signal.
			WithMetadata("reversal_detected", 1).
			WithMetadata("reversal_strength", reversal.Strength)
	}

	if hasZScoreSig && hasPctSig {
		agree := 0.0
		if zscoreDir == pctDir {
			agree = 1
		}

		signal = signal.WithMetadata("signals_agree", agree)
	}

	if s.percentileConfig != nil {
		if _, _, pct30, extreme := IsFundingExtreme30d(fundingRate, historicalRates, *s.percentileConfig); extreme {
			signal = signal.WithMetadata("percentile_30d", pct30)
		}
	}

	return signal, nil
}

// Name implements signal.Generator.
func (s *FundingRateSignal) Name() string {
	return s.name
}

// Weight implements signal.Generator.
func (s *FundingRateSignal) Weight() float64 {
	return s.weight
}

// PercentileSignal derives a contrarian signal from where current sits in
// the historical distribution. High percentile means overleveraged longs
// (bearish); low percentile means overleveraged shorts (bullish).
func PercentileSignal(current float64, historical []float64, highThreshold, lowThreshold float64) (types.Direction, float64, bool) {
	percentile, ok := percentileAgainst(historical, current)
	if !ok {
		return types.DirectionNeutral, 0, false
	}

	if percentile >= highThreshold {
		strength := (percentile - highThreshold) / (1 - highThreshold)

		return types.DirectionDown, math.Min(strength, 1), true
	}

	if percentile <= lowThreshold {
		strength := (lowThreshold - percentile) / lowThreshold

		return types.DirectionUp, math.Min(strength, 1), true
	}

	return types.DirectionNeutral, 0, false
}

// IsFundingExtreme30d reports whether current funding is extreme against a
// long history per the config, returning direction, strength and percentile.
func IsFundingExtreme30d(current float64, historical []float64, config FundingPercentileConfig) (types.Direction, float64, float64, bool) {
	if len(historical) < config.MinDataPoints {
		return types.DirectionNeutral, 0, 0, false
	}

	percentile, ok := percentileAgainst(historical, current)
	if !ok {
		return types.DirectionNeutral, 0, 0, false
	}

	if percentile >= config.HighThreshold {
		strength := (percentile - config.HighThreshold) / (1 - config.HighThreshold)

		return types.DirectionDown, math.Min(strength, 1), percentile, true
	}

	if percentile <= config.LowThreshold {
		strength := (config.LowThreshold - percentile) / config.LowThreshold

		return types.DirectionUp, math.Min(strength, 1), percentile, true
	}

	return types.DirectionNeutral, 0, 0, false
}

// DetectReversal looks for funding that was recently extreme and has since
// returned to the normal percentile band. Records are oldest first; the last
// record is the current observation.
func DetectReversal(historical []types.HistoricalFundingRate, config FundingReversalConfig) *ReversalSignal {
	if len(historical) < config.LookbackPeriods {
		return nil
	}

	recent := historical[len(historical)-config.LookbackPeriods:]

	current := recent[len(recent)-1]
	if current.Percentile.IsNone() {
		return nil
	}

	currentPercentile := current.Percentile.Unwrap()

	wasExtremeHigh := false
	wasExtremeLow := false
	extremeStrength := 0.0

	for _, record := range recent[:len(recent)-1] {
		if record.Percentile.IsNone() {
			continue
		}

		pct := record.Percentile.Unwrap()
		if pct >= config.ExtremeThresholdPercentile {
			wasExtremeHigh = true
			extremeStrength = math.Max(pct, extremeStrength)
		} else if pct <= 1-config.ExtremeThresholdPercentile {
			wasExtremeLow = true
			extremeStrength = math.Max(1-pct, extremeStrength)
		}
	}

	// Normal band is [1-threshold, threshold], e.g. [0.40, 0.60] at 0.60
	isNormal := currentPercentile >= 1-config.ReversionThresholdPercentile &&
		currentPercentile <= config.ReversionThresholdPercentile
	if !isNormal {
		return nil
	}

	if wasExtremeHigh {
		return &ReversalSignal{FromDirection: types.DirectionDown, Strength: math.Min(extremeStrength, 1)}
	}

	if wasExtremeLow {
		return &ReversalSignal{FromDirection: types.DirectionUp, Strength: math.Min(extremeStrength, 1)}
	}

	return nil
}

// percentileAgainst returns the tie-aware percentile rank of value within
// historical as a fraction in [0, 1], or false when historical is empty.
func percentileAgainst(historical []float64, value float64) (float64, bool) {
	if len(historical) == 0 {
		return 0, false
	}

	below := 0
	equal := 0

	for _, v := range historical {
		switch {
		case v < value:
			below++
		case v == value:
			equal++
		}
	}

	rank := (float64(below) + 0.5*float64(equal)) / float64(len(historical))

	return rank, true
}
