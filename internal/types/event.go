package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// SignalDirection is the direction of a strategy-proposed trade signal.
type SignalDirection int

const (
	// SignalDirectionLong proposes opening or holding a long position.
	SignalDirectionLong SignalDirection = iota
	// SignalDirectionShort proposes opening or holding a short position.
	SignalDirectionShort
	// SignalDirectionExit proposes closing the current position.
	SignalDirectionExit
)

// String implements fmt.Stringer.
func (d SignalDirection) String() string {
	switch d {
	case SignalDirectionLong:
		return "long"
	case SignalDirectionShort:
		return "short"
	default:
		return "exit"
	}
}

// SignalEvent is a trade signal proposed by a strategy, before the
// microstructure filter has passed judgment on it.
type SignalEvent struct {
	Symbol    string
	Direction SignalDirection
	Strength  float64
	Price     decimal.Decimal
	Timestamp time.Time
}
