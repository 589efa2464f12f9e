// Package signal defines the generator contract and the registry that fans a
// market context out to every registered generator.
package signal

import (
	"github.com/rxtech-lab/argo-signals/internal/types"
)

// Generator computes a directional signal from a market context.
//
// Implementations may keep internal rolling state across calls; Compute is
// invoked from a single goroutine per generator. Missing context data must
// degrade to a neutral signal, not an error.
type Generator interface {
	// Compute derives a signal from the given context.
	Compute(ctx *types.SignalContext) (types.SignalValue, error)
	// Name returns the unique name of the generator.
	Name() string
	// Weight returns the generator's weight for composite aggregation.
	Weight() float64
}
