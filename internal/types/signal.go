package types

import (
	"github.com/rxtech-lab/argo-signals/pkg/errors"
)

// SignalValue is the output of a single signal generator: a direction with a
// strength and a confidence, both in [0, 1], plus numeric metadata describing
// how the value was derived.
type SignalValue struct {
	Direction  Direction
	Strength   float64
	Confidence float64
	Metadata   map[string]float64
}

// NewSignalValue creates a SignalValue after validating that strength and
// confidence are within [0, 1].
func NewSignalValue(direction Direction, strength, confidence float64) (SignalValue, error) {
	if strength < 0 || strength > 1 {
		return SignalValue{}, errors.Newf(errors.ErrCodeInvalidStrength, "strength must be in [0, 1], got %f", strength)
	}

	if confidence < 0 || confidence > 1 {
		return SignalValue{}, errors.Newf(errors.ErrCodeInvalidConfidence, "confidence must be in [0, 1], got %f", confidence)
	}

	return SignalValue{
		Direction:  direction,
		Strength:   strength,
		Confidence: confidence,
		Metadata:   make(map[string]float64),
	}, nil
}

// Neutral returns a signal with no direction, zero strength and zero confidence.
func Neutral() SignalValue {
	return SignalValue{
		Direction:  DirectionNeutral,
		Strength:   0,
		Confidence: 0,
		Metadata:   make(map[string]float64),
	}
}

// WithMetadata attaches a metadata entry and returns the signal, allowing
// fluent chaining after construction.
func (s SignalValue) WithMetadata(key string, value float64) SignalValue {
	if s.Metadata == nil {
		s.Metadata = make(map[string]float64)
	}

	s.Metadata[key] = value

	return s
}

// IsActionable returns true when the signal is directional with non-zero strength.
func (s SignalValue) IsActionable() bool {
	return s.Direction.IsDirectional() && s.Strength > 0
}
