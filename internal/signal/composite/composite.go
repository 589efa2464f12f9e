package composite

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-signals/internal/logger"
	"github.com/rxtech-lab/argo-signals/internal/signal"
	"github.com/rxtech-lab/argo-signals/internal/types"
)

// Method selects how the underlying signals are folded into one.
type Method int

const (
	// MethodWeightedAverage folds signals by their signed weighted contributions.
	MethodWeightedAverage Method = iota
	// MethodVoting takes a weight-weighted majority vote on direction.
	MethodVoting
	// MethodStrongest picks the single strongest directional signal.
	MethodStrongest
	// MethodBayesian combines signal confidences through log-odds.
	MethodBayesian
	// MethodRequireN reports a direction only when a quorum agrees.
	MethodRequireN
)

// String implements fmt.Stringer.
func (m Method) String() string {
	switch m {
	case MethodWeightedAverage:
		return "weighted_average"
	case MethodVoting:
		return "voting"
	case MethodStrongest:
		return "strongest"
	case MethodBayesian:
		return "bayesian"
	case MethodRequireN:
		return "require_n"
	default:
		return "unknown"
	}
}

// weightedSignal pairs a computed signal with its generator's name and weight.
type weightedSignal struct {
	name   string
	weight float64
	value  types.SignalValue
}

// Composite fuses an ordered list of generators into one signal. The fusion
// method is fixed at construction; generators each own their internal state,
// so composition order does not affect individual outputs.
//
// A generator returning an error is treated as not voting this cycle. The
// remaining generators still contribute, so a single failure never silences
// the composite.
type Composite struct {
	name     string
	weight   float64
	method   Method
	minAgree int

	generators []signal.Generator
	logger     *logger.Logger

	adjustMulticollinearity bool
	correlationThreshold    float64
	correlationMatrix       *CorrelationMatrix
}

// New creates a composite with the given fusion method.
func New(name string, method Method) *Composite {
	return &Composite{
		name:                 name,
		weight:               1.0,
		method:               method,
		minAgree:             2,
		correlationThreshold: 0.7,
		logger:               logger.NewNopLogger(),
	}
}

// NewWeightedAverage creates a weighted-average composite.
func NewWeightedAverage(name string) *Composite {
	return New(name, MethodWeightedAverage)
}

// NewVoting creates a majority-vote composite.
func NewVoting(name string) *Composite {
	return New(name, MethodVoting)
}

// NewBayesian creates a Bayesian log-odds composite.
func NewBayesian(name string) *Composite {
	return New(name, MethodBayesian)
}

// NewRequireN creates a quorum composite: a direction is reported only when
// at least minAgree generators agree on the same non-neutral direction. This
// prevents one dominant generator from single-handedly driving the decision.
func NewRequireN(name string, minAgree int) *Composite {
	c := New(name, MethodRequireN)
	c.minAgree = minAgree

	return c
}

// WithGenerator appends a generator.
func (c *Composite) WithGenerator(gen signal.Generator) *Composite {
	c.generators = append(c.generators, gen)

	return c
}

// WithLogger sets the logger used to report skipped generators.
func (c *Composite) WithLogger(log *logger.Logger) *Composite {
	if log != nil {
		c.logger = log
	}

	return c
}

// WithWeight sets the composite's own weight, for nesting composites.
func (c *Composite) WithWeight(weight float64) *Composite {
	c.weight = weight

	return c
}

// WithMulticollinearityAdjustment enables correlation-based weight reduction
// with the given threshold.
func (c *Composite) WithMulticollinearityAdjustment(threshold float64) *Composite {
	c.adjustMulticollinearity = true
	c.correlationThreshold = threshold

	return c
}

// SetCorrelationMatrix installs the matrix used for multicollinearity
// adjustment.
func (c *Composite) SetCorrelationMatrix(matrix *CorrelationMatrix) {
	c.correlationMatrix = matrix
}

// GeneratorCount returns the number of registered generators.
func (c *Composite) GeneratorCount() int {
	return len(c.generators)
}

// Method returns the fusion method fixed at construction.
func (c *Composite) Method() Method {
	return c.method
}

// Compute implements signal.Generator. Every registered generator runs
// against the same context; failures are logged and skipped.
func (c *Composite) Compute(ctx *types.SignalContext) (types.SignalValue, error) {
	signals := make([]weightedSignal, 0, len(c.generators))

	for _, gen := range c.generators {
		value, err := gen.Compute(ctx)
		if err != nil {
			c.logger.Warn("generator failed, excluding from fusion",
				zap.String("composite", c.name),
				zap.String("generator", gen.Name()),
				zap.Error(err),
			)

			continue
		}

		signals = append(signals, weightedSignal{
			name:   gen.Name(),
			weight: gen.Weight(),
			value:  value,
		})
	}

	c.applyMulticollinearityAdjustment(signals)

	var combined types.SignalValue

	switch c.method {
	case MethodVoting:
		combined = combineVoting(signals)
	case MethodStrongest:
		combined = combineStrongest(signals)
	case MethodBayesian:
		combined = CombineBayesian(signals)
	case MethodRequireN:
		combined = combineRequireN(signals, c.minAgree)
	default:
		combined = combineWeightedAverage(signals)
	}

	// Per-generator breakdown for factor analysis
	for _, ws := range signals {
		combined = combined.
			WithMetadata(fmt.Sprintf("%s_direction", ws.name), ws.value.Direction.Sign()).
			WithMetadata(fmt.Sprintf("%s_strength", ws.name), ws.value.Strength).
			WithMetadata(fmt.Sprintf("%s_weight", ws.name), ws.weight)
	}

	return combined, nil
}

// Name implements signal.Generator.
func (c *Composite) Name() string {
	return c.name
}

// Weight implements signal.Generator.
func (c *Composite) Weight() float64 {
	return c.weight
}

func (c *Composite) applyMulticollinearityAdjustment(signals []weightedSignal) {
	if !c.adjustMulticollinearity || c.correlationMatrix == nil {
		return
	}

	weights := make(map[string]float64, len(signals))
	for _, ws := range signals {
		weights[ws.name] = ws.weight
	}

	AdjustWeightsForMulticollinearity(weights, c.correlationMatrix, c.correlationThreshold)

	for i := range signals {
		if weight, ok := weights[signals[i].name]; ok {
			signals[i].weight = weight
		}
	}
}

// combineWeightedAverage folds signals by their signed contributions. Each
// non-neutral signal contributes weight * strength * confidence, signed by
// direction; the composite direction is the sign of the normalized sum, with
// a small dead zone. Strength and confidence are the weighted means of the
// non-neutral contributors.
func combineWeightedAverage(signals []weightedSignal) types.SignalValue {
	if len(signals) == 0 {
		return types.Neutral()
	}

	totalWeight := 0.0
	for _, ws := range signals {
		totalWeight += ws.weight
	}

	if totalWeight < 1e-15 {
		return types.Neutral()
	}

	score := 0.0
	directionalWeight := 0.0
	strengthSum := 0.0
	confidenceSum := 0.0

	for _, ws := range signals {
		score += ws.weight * ws.value.Direction.Sign() * ws.value.Strength * ws.value.Confidence

		if ws.value.Direction.IsDirectional() {
			directionalWeight += ws.weight
			strengthSum += ws.weight * ws.value.Strength
			confidenceSum += ws.weight * ws.value.Confidence
		}
	}

	score /= totalWeight

	direction := types.DirectionNeutral

	switch {
	case score > 0.1:
		direction = types.DirectionUp
	case score < -0.1:
		direction = types.DirectionDown
	}

	strength, confidence := 0.0, 0.0
	if directionalWeight > 1e-15 {
		strength = strengthSum / directionalWeight
		confidence = confidenceSum / directionalWeight
	}

	return mustSignal(direction, clamp01(strength), clamp01(confidence))
}

// combineVoting takes a weight-weighted vote on direction; strength and
// confidence are weighted means over all signals.
func combineVoting(signals []weightedSignal) types.SignalValue {
	if len(signals) == 0 {
		return types.Neutral()
	}

	upVotes, downVotes := 0.0, 0.0
	totalWeight, strengthSum, confidenceSum := 0.0, 0.0, 0.0

	for _, ws := range signals {
		switch ws.value.Direction {
		case types.DirectionUp:
			upVotes += ws.weight
		case types.DirectionDown:
			downVotes += ws.weight
		}

		totalWeight += ws.weight
		strengthSum += ws.weight * ws.value.Strength
		confidenceSum += ws.weight * ws.value.Confidence
	}

	direction := types.DirectionNeutral

	switch {
	case upVotes > downVotes:
		direction = types.DirectionUp
	case downVotes > upVotes:
		direction = types.DirectionDown
	}

	strength, confidence := 0.0, 0.0
	if totalWeight > 0 {
		strength = strengthSum / totalWeight
		confidence = confidenceSum / totalWeight
	}

	return mustSignal(direction, clamp01(strength), clamp01(confidence))
}

// combineStrongest returns the directional signal with the highest
// weight-scaled strength, or neutral when none are directional.
func combineStrongest(signals []weightedSignal) types.SignalValue {
	best := types.Neutral()
	bestScore := math.Inf(-1)
	found := false

	for _, ws := range signals {
		if !ws.value.Direction.IsDirectional() {
			continue
		}

		score := ws.weight * ws.value.Strength
		if score > bestScore {
			bestScore = score
			best = ws.value
			found = true
		}
	}

	if !found {
		return types.Neutral()
	}

	return best
}

// CombineBayesian fuses directional signals through weighted log-odds. Each
// signal maps its confidence to P(Up): an Up signal at confidence c gives
// 0.5 + 0.5c, a Down signal 0.5 - 0.5c. Probabilities are clamped away from
// 0 and 1 before the log-odds transform.
func CombineBayesian(signals []weightedSignal) types.SignalValue {
	if len(signals) == 0 {
		return types.Neutral()
	}

	directional := make([]weightedSignal, 0, len(signals))
	for _, ws := range signals {
		if ws.weight > 1e-15 && ws.value.Direction.IsDirectional() {
			directional = append(directional, ws)
		}
	}

	if len(directional) == 0 {
		totalWeight := 0.0
		confidenceSum := 0.0

		for _, ws := range signals {
			totalWeight += ws.weight
			confidenceSum += ws.weight * ws.value.Confidence
		}

		if totalWeight > 1e-15 {
			return mustSignal(types.DirectionNeutral, 0, clamp01(confidenceSum/totalWeight))
		}

		return types.Neutral()
	}

	totalWeight := 0.0
	for _, ws := range directional {
		totalWeight += ws.weight
	}

	logOddsSum := 0.0

	for _, ws := range directional {
		pUp := 0.5
		if ws.value.Direction == types.DirectionUp {
			pUp = 0.5 + 0.5*ws.value.Confidence
		} else {
			pUp = 0.5 - 0.5*ws.value.Confidence
		}

		pClamped := math.Max(0.01, math.Min(0.99, pUp))
		logOdds := math.Log(pClamped / (1 - pClamped))

		logOddsSum += (ws.weight / totalWeight) * logOdds
	}

	combinedP := 1 / (1 + math.Exp(-logOddsSum))

	direction := types.DirectionNeutral

	switch {
	case combinedP > 0.55:
		direction = types.DirectionUp
	case combinedP < 0.45:
		direction = types.DirectionDown
	}

	strength := clamp01(math.Abs(combinedP-0.5) * 2)

	return mustSignal(direction, strength, strength)
}

// combineRequireN reports a direction only when at least minAgree signals
// share the same non-neutral direction. Up wins when both sides qualify.
// Strength and confidence are plain averages over the agreeing signals.
func combineRequireN(signals []weightedSignal, minAgree int) types.SignalValue {
	if len(signals) == 0 {
		return types.Neutral()
	}

	var up, down []weightedSignal

	for _, ws := range signals {
		switch ws.value.Direction {
		case types.DirectionUp:
			up = append(up, ws)
		case types.DirectionDown:
			down = append(down, ws)
		}
	}

	var (
		direction types.Direction
		agreeing  []weightedSignal
	)

	switch {
	case len(up) >= minAgree:
		direction, agreeing = types.DirectionUp, up
	case len(down) >= minAgree:
		direction, agreeing = types.DirectionDown, down
	default:
		return types.Neutral()
	}

	strengthSum, confidenceSum := 0.0, 0.0
	for _, ws := range agreeing {
		strengthSum += ws.value.Strength
		confidenceSum += ws.value.Confidence
	}

	count := float64(len(agreeing))

	return mustSignal(direction, clamp01(strengthSum/count), clamp01(confidenceSum/count))
}

// mustSignal builds a SignalValue from already-clamped inputs.
func mustSignal(direction types.Direction, strength, confidence float64) types.SignalValue {
	value, err := types.NewSignalValue(direction, strength, confidence)
	if err != nil {
		return types.Neutral()
	}

	return value
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}

	if v > 1 {
		return 1
	}

	return v
}
