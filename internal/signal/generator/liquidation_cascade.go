package generator

import (
	"github.com/shopspring/decimal"

	"github.com/rxtech-lab/argo-signals/internal/types"
)

// LiquidationCascadeSignal detects unusually large liquidation volume.
//
// Large liquidations often trigger cascading liquidations as the price move
// hits other leveraged positions. Without side information the direction is
// Neutral; the strength serves composites as a volatility indicator.
type LiquidationCascadeSignal struct {
	name            string
	minUSDThreshold decimal.Decimal
	cascadeMultiple float64
	weight          float64

	history    []decimal.Decimal
	windowSize int
}

// NewLiquidationCascadeSignal creates a cascade generator. The cascade
// multiple is floored at 1.0 and the window size at 1.
func NewLiquidationCascadeSignal(minUSDThreshold decimal.Decimal, cascadeMultiple, weight float64, windowSize int) *LiquidationCascadeSignal {
	if cascadeMultiple < 1 {
		cascadeMultiple = 1
	}

	if windowSize < 1 {
		windowSize = 1
	}

	return &LiquidationCascadeSignal{
		name:            "liquidation_cascade",
		minUSDThreshold: minUSDThreshold,
		cascadeMultiple: cascadeMultiple,
		weight:          weight,
		history:         make([]decimal.Decimal, 0, windowSize),
		windowSize:      windowSize,
	}
}

// DefaultLiquidationCascadeSignal returns the generator with a $5,000
// minimum, 3x-average trigger, weight 1.0 and a 100-observation window.
func DefaultLiquidationCascadeSignal() *LiquidationCascadeSignal {
	return NewLiquidationCascadeSignal(decimal.NewFromInt(5000), 3.0, 1.0, 100)
}

// AverageLiquidation returns the mean liquidation value in the window.
func (s *LiquidationCascadeSignal) AverageLiquidation() decimal.Decimal {
	if len(s.history) == 0 {
		return decimal.Zero
	}

	sum := decimal.Zero
	for _, v := range s.history {
		sum = sum.Add(v)
	}

	return sum.Div(decimal.NewFromInt(int64(len(s.history))))
}

// IsCascade reports whether value triggers cascade detection against the
// current window. With an empty window, clearing the minimum threshold alone
// is enough.
func (s *LiquidationCascadeSignal) IsCascade(value decimal.Decimal) bool {
	if value.LessThan(s.minUSDThreshold) {
		return false
	}

	avg := s.AverageLiquidation()
	if avg.IsZero() {
		return true
	}

	valueF, _ := value.Float64()
	avgF, _ := avg.Float64()

	return valueF >= avgF*s.cascadeMultiple
}

// ObservationCount returns the number of liquidation observations held.
func (s *LiquidationCascadeSignal) ObservationCount() int {
	return len(s.history)
}

func (s *LiquidationCascadeSignal) addObservation(value decimal.Decimal) {
	if len(s.history) >= s.windowSize {
		copy(s.history, s.history[1:])
		s.history = s.history[:len(s.history)-1]
	}

	s.history = append(s.history, value)
}

// Compute implements signal.Generator.
func (s *LiquidationCascadeSignal) Compute(ctx *types.SignalContext) (types.SignalValue, error) {
	if ctx.LiquidationUSD.IsNone() {
		return types.Neutral(), nil
	}

	liqValue := ctx.LiquidationUSD.Unwrap()

	// Classify against the window as it stood before this observation
	isCascade := s.IsCascade(liqValue)
	avgBefore := s.AverageLiquidation()

	s.addObservation(liqValue)

	strength := 0.0

	if isCascade {
		valueF, _ := liqValue.Float64()
		avgF, _ := avgBefore.Float64()

		ratio := s.cascadeMultiple
		if avgF > 0 {
			ratio = valueF / avgF
		}

		strength = clamp((ratio-s.cascadeMultiple)/s.cascadeMultiple, 0, 1)
	}

	signal, err := types.NewSignalValue(types.DirectionNeutral, strength, 0)
	if err != nil {
		return types.SignalValue{}, err
	}

	liqF, _ := liqValue.Float64()
	avgF, _ := s.AverageLiquidation().Float64()

	cascadeFlag := 0.0
	if isCascade {
		cascadeFlag = 1
	}

	return signal.
		WithMetadata("liquidation_usd", liqF).
		WithMetadata("average_liquidation", avgF).
		WithMetadata("is_cascade", cascadeFlag).
		WithMetadata("cascade_multiple", s.cascadeMultiple), nil
}

// Name implements signal.Generator.
func (s *LiquidationCascadeSignal) Name() string {
	return s.name
}

// Weight implements signal.Generator.
func (s *LiquidationCascadeSignal) Weight() float64 {
	return s.weight
}
