package bridge

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-signals/internal/logger"
	"github.com/rxtech-lab/argo-signals/internal/signal/composite"
	"github.com/rxtech-lab/argo-signals/internal/signal/generator"
	"github.com/rxtech-lab/argo-signals/internal/types"
)

// Command controls a running orchestrator.
type Command int

const (
	// CommandUpdateNow forces an immediate signal refresh.
	CommandUpdateNow Command = iota
	// CommandShutdown stops the orchestrator loop.
	CommandShutdown
)

// ContextBuilder assembles a point-in-time SignalContext for the
// orchestrator's instrument. Implementations query the store or read live
// collector state; data must be strictly before the given timestamp to avoid
// look-ahead bias.
type ContextBuilder interface {
	BuildAt(ctx context.Context, timestamp time.Time) (*types.SignalContext, error)
}

// OrchestratorConfig configures the fusion loop.
type OrchestratorConfig struct {
	// UpdateInterval between fusion cycles.
	UpdateInterval time.Duration
	// Symbol to track, e.g. "BTCUSDT".
	Symbol string
	// Exchange name, e.g. "binance".
	Exchange string
}

// DefaultOrchestratorConfig returns a 5 second interval on Binance BTCUSDT.
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		UpdateInterval: 5 * time.Second,
		Symbol:         "BTCUSDT",
		Exchange:       "binance",
	}
}

// Generators bundles the signal generators the orchestrator runs each cycle.
// The composite owns its own generator instances so that its internal rolling
// state is not shared with the individually cached generators.
type Generators struct {
	OrderBook   *generator.OrderBookImbalanceSignal
	Funding     *generator.FundingRateSignal
	Liquidation *generator.LiquidationCascadeSignal
	News        *generator.NewsSignal
	Composite   *composite.Composite
}

// DefaultGenerators returns the standard bundle: default micro generators
// plus a two-signal quorum composite over an independent generator set.
func DefaultGenerators() Generators {
	comp := composite.NewRequireN("microstructure_composite", 2).
		WithGenerator(generator.DefaultOrderBookImbalanceSignal()).
		WithGenerator(generator.DefaultFundingRateSignal()).
		WithGenerator(generator.DefaultLiquidationRatioSignal()).
		WithGenerator(generator.DefaultNewsSignal())

	return Generators{
		OrderBook:   generator.DefaultOrderBookImbalanceSignal(),
		Funding:     generator.DefaultFundingRateSignal(),
		Liquidation: generator.DefaultLiquidationCascadeSignal(),
		News:        generator.DefaultNewsSignal(),
		Composite:   comp,
	}
}

// Orchestrator periodically snapshots market state into a SignalContext,
// computes every microstructure signal and overwrites the shared cache. It
// is the cache's sole writer.
type Orchestrator struct {
	config     OrchestratorConfig
	builder    ContextBuilder
	signals    *SharedMicroSignals
	generators Generators
	logger     *logger.Logger

	commands chan Command
	done     chan struct{}
}

// NewOrchestrator creates an orchestrator with the default generator bundle.
func NewOrchestrator(builder ContextBuilder, config OrchestratorConfig, signals *SharedMicroSignals) *Orchestrator {
	return &Orchestrator{
		config:     config,
		builder:    builder,
		signals:    signals,
		generators: DefaultGenerators(),
		logger:     logger.NewNopLogger(),
		commands:   make(chan Command, 8),
		done:       make(chan struct{}),
	}
}

// WithGenerators replaces the generator bundle.
func (o *Orchestrator) WithGenerators(generators Generators) *Orchestrator {
	o.generators = generators

	return o
}

// WithLogger sets the orchestrator logger.
func (o *Orchestrator) WithLogger(log *logger.Logger) *Orchestrator {
	if log != nil {
		o.logger = log
	}

	return o
}

// Start launches the fusion loop. The loop stops when ctx is cancelled or a
// Shutdown command arrives.
func (o *Orchestrator) Start(ctx context.Context) {
	go o.run(ctx)
}

// UpdateNow requests an immediate refresh. The request is dropped when one
// is already pending, so bursts coalesce into a single cycle.
func (o *Orchestrator) UpdateNow() {
	select {
	case o.commands <- CommandUpdateNow:
	default:
	}
}

// Shutdown stops the loop and waits for it to exit.
func (o *Orchestrator) Shutdown() {
	select {
	case o.commands <- CommandShutdown:
	case <-o.done:
		return
	}

	<-o.done
}

// Done returns a channel closed when the loop has exited.
func (o *Orchestrator) Done() <-chan struct{} {
	return o.done
}

func (o *Orchestrator) run(ctx context.Context) {
	defer close(o.done)

	ticker := time.NewTicker(o.config.UpdateInterval)
	defer ticker.Stop()

	o.logger.Info("microstructure orchestrator started",
		zap.String("symbol", o.config.Symbol),
		zap.Duration("interval", o.config.UpdateInterval),
	)

	for {
		select {
		case <-ctx.Done():
			o.logger.Info("context cancelled, orchestrator shutting down")

			return
		case <-ticker.C:
			o.refresh(ctx)
		case cmd := <-o.commands:
			switch cmd {
			case CommandUpdateNow:
				o.refresh(ctx)
			case CommandShutdown:
				o.logger.Info("microstructure orchestrator shutting down")

				return
			}
		}
	}
}

// refresh runs one fusion cycle. A failing generator keeps its signal
// neutral for the cycle rather than aborting the others.
func (o *Orchestrator) refresh(ctx context.Context) {
	cycleID := uuid.NewString()
	now := time.Now()

	signalCtx, err := o.builder.BuildAt(ctx, now)
	if err != nil {
		o.logger.Warn("failed to build signal context",
			zap.String("cycle_id", cycleID),
			zap.String("symbol", o.config.Symbol),
			zap.Error(err),
		)

		return
	}

	compute := func(name string, gen interface {
		Compute(*types.SignalContext) (types.SignalValue, error)
	}) types.SignalValue {
		value, err := gen.Compute(signalCtx)
		if err != nil {
			o.logger.Warn("generator failed, holding neutral for this cycle",
				zap.String("cycle_id", cycleID),
				zap.String("generator", name),
				zap.Error(err),
			)

			return types.Neutral()
		}

		return value
	}

	snapshot := CachedMicroSignals{
		OrderBookImbalance: compute(o.generators.OrderBook.Name(), o.generators.OrderBook),
		FundingRate:        compute(o.generators.Funding.Name(), o.generators.Funding),
		LiquidationCascade: compute(o.generators.Liquidation.Name(), o.generators.Liquidation),
		News:               compute(o.generators.News.Name(), o.generators.News),
		Composite:          compute(o.generators.Composite.Name(), o.generators.Composite),
		LastUpdated:        now,
	}

	o.signals.Store(snapshot)

	o.logger.Debug("updated microstructure signals",
		zap.String("cycle_id", cycleID),
		zap.String("symbol", o.config.Symbol),
		zap.String("composite_direction", snapshot.Composite.Direction.String()),
	)
}
