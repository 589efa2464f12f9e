package bridge

import (
	"fmt"

	"github.com/rxtech-lab/argo-signals/internal/types"
)

// FilterConfig controls which microstructure rules run and their thresholds.
// Every feature toggles independently.
type FilterConfig struct {
	// EntryFilterEnabled blocks entries that conflict with the composite.
	EntryFilterEnabled bool `json:"entry_filter_enabled" yaml:"entry_filter_enabled"`
	// EntryFilterThreshold is the minimum composite strength for blocking.
	EntryFilterThreshold float64 `json:"entry_filter_threshold" yaml:"entry_filter_threshold" validate:"gte=0,lte=1"`

	// ExitTriggerEnabled forces exits on extreme microstructure conditions.
	ExitTriggerEnabled bool `json:"exit_trigger_enabled" yaml:"exit_trigger_enabled"`
	// ExitLiquidationThreshold is the cascade strength that triggers an exit.
	ExitLiquidationThreshold float64 `json:"exit_liquidation_threshold" yaml:"exit_liquidation_threshold" validate:"gte=0,lte=1"`
	// ExitFundingThreshold is the funding strength that triggers an exit.
	ExitFundingThreshold float64 `json:"exit_funding_threshold" yaml:"exit_funding_threshold" validate:"gte=0,lte=1"`

	// SizingAdjustmentEnabled shrinks entries under high market stress.
	SizingAdjustmentEnabled bool `json:"sizing_adjustment_enabled" yaml:"sizing_adjustment_enabled"`
	// StressSizeMultiplier scales signal strength under high stress.
	StressSizeMultiplier float64 `json:"stress_size_multiplier" yaml:"stress_size_multiplier" validate:"gte=0,lte=1"`

	// EntryTimingEnabled delays entries until the order book supports them.
	EntryTimingEnabled bool `json:"entry_timing_enabled" yaml:"entry_timing_enabled"`
	// TimingSupportThreshold is the minimum supporting imbalance strength.
	TimingSupportThreshold float64 `json:"timing_support_threshold" yaml:"timing_support_threshold" validate:"gte=0,lte=1"`
}

// DefaultFilterConfig enables everything except entry timing.
func DefaultFilterConfig() FilterConfig {
	return FilterConfig{
		EntryFilterEnabled:       true,
		EntryFilterThreshold:     0.6,
		ExitTriggerEnabled:       true,
		ExitLiquidationThreshold: 0.8,
		ExitFundingThreshold:     0.9,
		SizingAdjustmentEnabled:  true,
		StressSizeMultiplier:     0.5,
		EntryTimingEnabled:       false,
		TimingSupportThreshold:   0.3,
	}
}

// DisabledFilterConfig turns every feature off.
func DisabledFilterConfig() FilterConfig {
	config := DefaultFilterConfig()
	config.EntryFilterEnabled = false
	config.ExitTriggerEnabled = false
	config.SizingAdjustmentEnabled = false
	config.EntryTimingEnabled = false

	return config
}

// ConservativeFilterConfig tightens every threshold and enables entry timing.
func ConservativeFilterConfig() FilterConfig {
	return FilterConfig{
		EntryFilterEnabled:       true,
		EntryFilterThreshold:     0.4,
		ExitTriggerEnabled:       true,
		ExitLiquidationThreshold: 0.6,
		ExitFundingThreshold:     0.7,
		SizingAdjustmentEnabled:  true,
		StressSizeMultiplier:     0.25,
		EntryTimingEnabled:       true,
		TimingSupportThreshold:   0.4,
	}
}

// Disposition is the outcome of applying the filter to a proposed signal.
type Disposition int

const (
	// DispositionAllow passes the signal through unchanged.
	DispositionAllow Disposition = iota
	// DispositionBlock suppresses the signal entirely.
	DispositionBlock
	// DispositionModify passes the signal through with adjusted strength.
	DispositionModify
	// DispositionForceExit replaces the signal with an exit.
	DispositionForceExit
)

// String implements fmt.Stringer.
func (d Disposition) String() string {
	switch d {
	case DispositionAllow:
		return "allow"
	case DispositionBlock:
		return "block"
	case DispositionModify:
		return "modify"
	default:
		return "force_exit"
	}
}

// FilterResult is the filter's judgment on one proposed signal. Signal is nil
// only for Block.
type FilterResult struct {
	Disposition Disposition
	Reason      string
	Signal      *types.SignalEvent
}

// IsAllowed reports whether a signal passes in some form.
func (r FilterResult) IsAllowed() bool {
	return r.Disposition != DispositionBlock
}

func allowResult(signal types.SignalEvent) FilterResult {
	return FilterResult{Disposition: DispositionAllow, Signal: &signal}
}

func blockResult(reason string) FilterResult {
	return FilterResult{Disposition: DispositionBlock, Reason: reason}
}

func modifyResult(signal types.SignalEvent) FilterResult {
	return FilterResult{Disposition: DispositionModify, Signal: &signal}
}

func forceExitResult(reason string, signal types.SignalEvent) FilterResult {
	return FilterResult{Disposition: DispositionForceExit, Reason: reason, Signal: &signal}
}

// Filter applies microstructure conditions to strategy signals.
//
// Rules run in a fixed order; the first one that decides wins:
//  1. Exit triggers
//  2. Entry filter
//  3. Entry timing
//  4. Sizing adjustment
type Filter struct {
	config FilterConfig
}

// NewFilter creates a filter with the given configuration.
func NewFilter(config FilterConfig) *Filter {
	return &Filter{config: config}
}

// Config returns the filter configuration.
func (f *Filter) Config() FilterConfig {
	return f.config
}

// Apply judges one proposed signal against the cached microstructure state.
func (f *Filter) Apply(signal types.SignalEvent, micro CachedMicroSignals) FilterResult {
	if f.config.ExitTriggerEnabled {
		if result, triggered := f.checkExitTrigger(signal, micro); triggered {
			return result
		}
	}

	if f.config.EntryFilterEnabled && signal.Direction != types.SignalDirectionExit {
		if result, blocked := f.checkEntryFilter(signal, micro); blocked {
			return result
		}
	}

	if f.config.EntryTimingEnabled &&
		signal.Direction != types.SignalDirectionExit &&
		!f.checkEntryTiming(signal, micro) {
		return blockResult("Waiting for order book support")
	}

	if f.config.SizingAdjustmentEnabled && micro.IsHighStress() {
		modified := signal
		modified.Strength *= f.config.StressSizeMultiplier

		return modifyResult(modified)
	}

	return allowResult(signal)
}

// opposesPosition reports whether a cached signal direction runs against the
// proposed position direction.
func opposesPosition(proposed types.SignalDirection, cached types.Direction) bool {
	return (proposed == types.SignalDirectionLong && cached == types.DirectionDown) ||
		(proposed == types.SignalDirectionShort && cached == types.DirectionUp)
}

func (f *Filter) checkExitTrigger(signal types.SignalEvent, micro CachedMicroSignals) (FilterResult, bool) {
	// Exit proposals are never force-exited again
	if signal.Direction == types.SignalDirectionExit {
		return FilterResult{}, false
	}

	exitEvent := types.SignalEvent{
		Symbol:    signal.Symbol,
		Direction: types.SignalDirectionExit,
		Strength:  1.0,
		Price:     signal.Price,
		Timestamp: signal.Timestamp,
	}

	liq := micro.LiquidationCascade
	if liq.Strength >= f.config.ExitLiquidationThreshold && opposesPosition(signal.Direction, liq.Direction) {
		reason := fmt.Sprintf("Liquidation cascade against position (strength: %.2f)", liq.Strength)

		return forceExitResult(reason, exitEvent), true
	}

	funding := micro.FundingRate
	if funding.Strength >= f.config.ExitFundingThreshold && opposesPosition(signal.Direction, funding.Direction) {
		reason := fmt.Sprintf("Extreme funding rate against position (strength: %.2f)", funding.Strength)

		return forceExitResult(reason, exitEvent), true
	}

	return FilterResult{}, false
}

func (f *Filter) checkEntryFilter(signal types.SignalEvent, micro CachedMicroSignals) (FilterResult, bool) {
	composite := micro.Composite

	if composite.Strength < f.config.EntryFilterThreshold {
		return FilterResult{}, false
	}

	if !opposesPosition(signal.Direction, composite.Direction) {
		return FilterResult{}, false
	}

	reason := fmt.Sprintf(
		"Microstructure signal (%s, strength: %.2f) conflicts with %s entry",
		composite.Direction, composite.Strength, signal.Direction,
	)

	return blockResult(reason), true
}

func (f *Filter) checkEntryTiming(signal types.SignalEvent, micro CachedMicroSignals) bool {
	book := micro.OrderBookImbalance

	switch {
	case signal.Direction == types.SignalDirectionLong && book.Direction == types.DirectionUp:
		return book.Strength >= f.config.TimingSupportThreshold
	case signal.Direction == types.SignalDirectionShort && book.Direction == types.DirectionDown:
		return book.Strength >= f.config.TimingSupportThreshold
	case book.Direction == types.DirectionNeutral:
		return true
	default:
		return false
	}
}
