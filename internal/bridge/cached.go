// Package bridge connects asynchronously computed microstructure signals to
// synchronous strategy decisions: a shared signal cache, a priority-ordered
// decision filter and the background orchestrator that keeps the cache fresh.
package bridge

import (
	"sync"
	"time"

	"github.com/rxtech-lab/argo-signals/internal/types"
)

// CachedMicroSignals is the latest snapshot of per-instrument microstructure
// signals. The orchestrator overwrites it every fusion cycle; strategies read
// it through SharedMicroSignals.
type CachedMicroSignals struct {
	OrderBookImbalance types.SignalValue
	FundingRate        types.SignalValue
	LiquidationCascade types.SignalValue
	News               types.SignalValue
	Composite          types.SignalValue
	LastUpdated        time.Time
}

// NewCachedMicroSignals returns a snapshot with all signals neutral.
func NewCachedMicroSignals() CachedMicroSignals {
	return CachedMicroSignals{
		OrderBookImbalance: types.Neutral(),
		FundingRate:        types.Neutral(),
		LiquidationCascade: types.Neutral(),
		News:               types.Neutral(),
		Composite:          types.Neutral(),
		LastUpdated:        time.Now(),
	}
}

// IsHighStress reports elevated market stress: liquidation cascade strength
// above 0.7 or funding rate strength above 0.8.
func (c CachedMicroSignals) IsHighStress() bool {
	return c.LiquidationCascade.Strength > 0.7 || c.FundingRate.Strength > 0.8
}

// ConsensusDirection returns the dominant direction across the order book,
// funding and liquidation signals, each voting with its strength. The winner
// must accumulate weight above 0.5.
func (c CachedMicroSignals) ConsensusDirection() types.Direction {
	upWeight, downWeight := 0.0, 0.0

	for _, signal := range []types.SignalValue{c.OrderBookImbalance, c.FundingRate, c.LiquidationCascade} {
		switch signal.Direction {
		case types.DirectionUp:
			upWeight += signal.Strength
		case types.DirectionDown:
			downWeight += signal.Strength
		}
	}

	switch {
	case upWeight > downWeight && upWeight > 0.5:
		return types.DirectionUp
	case downWeight > upWeight && downWeight > 0.5:
		return types.DirectionDown
	default:
		return types.DirectionNeutral
	}
}

// SupportsDirection reports whether the microstructure consensus permits a
// strategy direction. Exits are always supported, and a neutral consensus
// never blocks.
func (c CachedMicroSignals) SupportsDirection(direction types.SignalDirection) bool {
	if direction == types.SignalDirectionExit {
		return true
	}

	switch c.ConsensusDirection() {
	case types.DirectionNeutral:
		return true
	case types.DirectionUp:
		return direction == types.SignalDirectionLong
	default:
		return direction == types.SignalDirectionShort
	}
}

// Age returns how old the snapshot is at the given time.
func (c CachedMicroSignals) Age(now time.Time) time.Duration {
	return now.Sub(c.LastUpdated)
}

// IsStale reports whether the snapshot is older than maxAge at the given time.
func (c CachedMicroSignals) IsStale(now time.Time, maxAge time.Duration) bool {
	return c.Age(now) > maxAge
}

// SharedMicroSignals guards a CachedMicroSignals snapshot behind a
// read-write lock. The orchestrator is the sole writer; strategies and the
// filter read concurrently.
type SharedMicroSignals struct {
	mu      sync.RWMutex
	signals CachedMicroSignals
}

// NewSharedMicroSignals creates a shared cache holding neutral signals.
func NewSharedMicroSignals() *SharedMicroSignals {
	return &SharedMicroSignals{signals: NewCachedMicroSignals()}
}

// Snapshot returns a copy of the current signals.
func (s *SharedMicroSignals) Snapshot() CachedMicroSignals {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.signals
}

// Store replaces the cached snapshot.
func (s *SharedMicroSignals) Store(signals CachedMicroSignals) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.signals = signals
}
