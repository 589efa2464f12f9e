package signal

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-signals/internal/logger"
	"github.com/rxtech-lab/argo-signals/internal/types"
	"github.com/rxtech-lab/argo-signals/pkg/errors"
)

// Registry manages a set of signal generators. Each registry instance owns
// its generators; there is no process-global registry.
type Registry struct {
	generators map[string]Generator
	mu         sync.RWMutex
	logger     *logger.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(log *logger.Logger) *Registry {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Registry{
		generators: make(map[string]Generator),
		logger:     log,
	}
}

// Register adds a generator to the registry.
func (r *Registry) Register(gen Generator) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := gen.Name()
	if _, exists := r.generators[name]; exists {
		return errors.Newf(errors.ErrCodeGeneratorAlreadyExists, "generator with name %s already registered", name)
	}

	r.generators[name] = gen

	return nil
}

// Remove removes a generator from the registry.
func (r *Registry) Remove(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.generators[name]; !exists {
		return errors.Newf(errors.ErrCodeGeneratorNotFound, "generator with name %s not found", name)
	}

	delete(r.generators, name)

	return nil
}

// Len returns the number of registered generators.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.generators)
}

// Names returns all registered generator names, sorted for deterministic
// iteration.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.generators))
	for name := range r.generators {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Weights returns the weight of every registered generator keyed by name.
func (r *Registry) Weights() map[string]float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	weights := make(map[string]float64, len(r.generators))
	for name, gen := range r.generators {
		weights[name] = gen.Weight()
	}

	return weights
}

// ComputeAll runs every registered generator against the context. A failing
// generator is logged and skipped so one failure never suppresses the votes
// of the others.
func (r *Registry) ComputeAll(ctx *types.SignalContext) map[string]types.SignalValue {
	r.mu.RLock()
	defer r.mu.RUnlock()

	results := make(map[string]types.SignalValue, len(r.generators))

	for name, gen := range r.generators {
		value, err := gen.Compute(ctx)
		if err != nil {
			r.logger.Warn("Signal generator failed, skipping",
				zap.String("generator", name),
				zap.String("symbol", ctx.Symbol),
				zap.Error(err))

			continue
		}

		results[name] = value
	}

	return results
}

// ComputeOne runs a single generator by name.
func (r *Registry) ComputeOne(name string, ctx *types.SignalContext) (types.SignalValue, error) {
	r.mu.RLock()
	gen, exists := r.generators[name]
	r.mu.RUnlock()

	if !exists {
		return types.SignalValue{}, errors.Newf(errors.ErrCodeGeneratorNotFound, "generator with name %s not found", name)
	}

	value, err := gen.Compute(ctx)
	if err != nil {
		return types.SignalValue{}, errors.Wrapf(errors.ErrCodeSignalComputation, err, "generator %s failed", name)
	}

	return value, nil
}
