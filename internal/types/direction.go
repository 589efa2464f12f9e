package types

// Direction is the directional bias of a signal.
type Direction int

const (
	// DirectionNeutral indicates no directional bias.
	DirectionNeutral Direction = iota
	// DirectionUp is a bullish bias.
	DirectionUp
	// DirectionDown is a bearish bias.
	DirectionDown
)

// String implements fmt.Stringer.
func (d Direction) String() string {
	switch d {
	case DirectionUp:
		return "up"
	case DirectionDown:
		return "down"
	default:
		return "neutral"
	}
}

// Opposite returns the reversed direction. Neutral is its own opposite.
func (d Direction) Opposite() Direction {
	switch d {
	case DirectionUp:
		return DirectionDown
	case DirectionDown:
		return DirectionUp
	default:
		return DirectionNeutral
	}
}

// IsDirectional returns true for Up and Down.
func (d Direction) IsDirectional() bool {
	return d == DirectionUp || d == DirectionDown
}

// Sign returns +1 for Up, -1 for Down and 0 for Neutral.
func (d Direction) Sign() float64 {
	switch d {
	case DirectionUp:
		return 1
	case DirectionDown:
		return -1
	default:
		return 0
	}
}
