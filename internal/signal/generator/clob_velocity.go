package generator

import (
	"math"
	"time"

	"github.com/rxtech-lab/argo-signals/internal/types"
)

// ClobVelocityConfig configures the external CLOB price velocity signal.
type ClobVelocityConfig struct {
	// LookbackSecs is the velocity window. Shorter is more responsive,
	// longer is smoother.
	LookbackSecs float64
	// ReferenceVelocity in cents/sec maps to strength 1.0.
	ReferenceVelocity float64
	// MinDisplacement from the 0.50 midpoint required to produce a signal.
	MinDisplacement float64
	// Weight for composite aggregation.
	Weight float64
}

// DefaultClobVelocityConfig returns a 60s window, 0.2 cents/sec reference,
// 0.015 minimum displacement and weight 1.3.
func DefaultClobVelocityConfig() ClobVelocityConfig {
	return ClobVelocityConfig{
		LookbackSecs:      60,
		ReferenceVelocity: 0.2,
		MinDisplacement:   0.015,
		Weight:            1.3,
	}
}

// ClobVelocitySignal measures the rate of change of an external CLOB price.
//
// A price that jumps from 0.50 to 0.53 in one tick indicates stronger
// conviction than a slow drift to 0.535 over minutes; fast moves confirm
// the direction with high strength.
type ClobVelocitySignal struct {
	config ClobVelocityConfig
}

// NewClobVelocitySignal creates the generator with default config.
func NewClobVelocitySignal() *ClobVelocitySignal {
	return &ClobVelocitySignal{config: DefaultClobVelocityConfig()}
}

// NewClobVelocitySignalWithConfig creates the generator with custom config.
func NewClobVelocitySignalWithConfig(config ClobVelocityConfig) *ClobVelocitySignal {
	return &ClobVelocitySignal{config: config}
}

// computeVelocity returns (price units/sec, latest price, displacement from
// 0.50), or false when the window has fewer than two usable points or spans
// less than one second.
func (s *ClobVelocitySignal) computeVelocity(history []types.PricePoint) (float64, float64, float64, bool) {
	if len(history) < 2 {
		return 0, 0, 0, false
	}

	latest := history[len(history)-1]
	cutoff := latest.Timestamp.Add(-time.Duration(s.config.LookbackSecs * float64(time.Second)))

	earliest := history[0]

	for _, point := range history {
		if !point.Timestamp.Before(cutoff) {
			earliest = point

			break
		}
	}

	dtSecs := latest.Timestamp.Sub(earliest.Timestamp).Seconds()
	if dtSecs < 1 {
		return 0, 0, 0, false
	}

	velocity := (latest.Price - earliest.Price) / dtSecs
	displacement := latest.Price - 0.5

	return velocity, latest.Price, displacement, true
}

// Compute implements signal.Generator.
func (s *ClobVelocitySignal) Compute(ctx *types.SignalContext) (types.SignalValue, error) {
	history := ctx.ExternalPrices
	if len(history) < 2 {
		return types.Neutral(), nil
	}

	velocity, _, displacement, ok := s.computeVelocity(history)
	if !ok {
		return types.Neutral(), nil
	}

	if math.Abs(displacement) < s.config.MinDisplacement {
		return types.Neutral().
			WithMetadata("velocity", velocity*100).
			WithMetadata("displacement", displacement), nil
	}

	var direction types.Direction

	switch {
	case velocity > 0:
		direction = types.DirectionUp
	case velocity < 0:
		direction = types.DirectionDown
	default:
		return types.Neutral(), nil
	}

	velocityCentsPerSec := math.Abs(velocity) * 100
	strength := math.Min(velocityCentsPerSec/s.config.ReferenceVelocity, 1)

	// Velocity pushing toward the displacement means a consistent move
	agree := (velocity > 0 && displacement > 0) || (velocity < 0 && displacement < 0)

	confidence := strength * 0.3
	if agree {
		confidence = strength * 0.8
	}

	signal, err := types.NewSignalValue(direction, strength, math.Min(confidence, 1))
	if err != nil {
		return types.SignalValue{}, err
	}

	return signal.
		WithMetadata("velocity_cents_per_sec", velocityCentsPerSec).
		WithMetadata("displacement", displacement).
		WithMetadata("lookback_secs", s.config.LookbackSecs), nil
}

// Name implements signal.Generator.
func (s *ClobVelocitySignal) Name() string {
	return "clob_velocity"
}

// Weight implements signal.Generator.
func (s *ClobVelocitySignal) Weight() float64 {
	return s.config.Weight
}
