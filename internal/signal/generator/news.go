package generator

import (
	"math"
	"strings"
	"time"

	"github.com/rxtech-lab/argo-signals/internal/types"
)

// DefaultCategoryWeights returns the impact weight per news category. Higher
// weights indicate more market-moving potential.
func DefaultCategoryWeights() map[string]float64 {
	return map[string]float64{
		"hack":       1.0,
		"regulation": 0.9,
		"whale":      0.8,
		"etf":        0.7,
		"exchange":   0.6,
		"technical":  0.5,
		"other":      0.3,
	}
}

// categoryKeywords maps each category to the title keywords that select it.
var categoryKeywords = []struct {
	category string
	keywords []string
}{
	{"hack", []string{"hack", "exploit", "vulnerability", "breach", "attack", "stolen"}},
	{"regulation", []string{"sec", "regulation", "ban", "legal", "court", "lawsuit", "congress", "cftc"}},
	{"whale", []string{"whale", "large", "million", "billion", "dormant", "massive", "huge"}},
	{"etf", []string{"etf", "fund", "blackrock", "fidelity", "grayscale", "ishares"}},
	{"exchange", []string{"binance", "coinbase", "kraken", "exchange", "listing", "delist"}},
	{"technical", []string{"halving", "difficulty", "hashrate", "mining", "block", "mempool"}},
}

// GetCategoryWeight scans a news title for category keywords and returns the
// highest matching weight, falling back to the "other" weight.
func GetCategoryWeight(title string, weights map[string]float64) float64 {
	titleLower := strings.ToLower(title)

	maxWeight, ok := weights["other"]
	if !ok {
		maxWeight = 0.3
	}

	for _, entry := range categoryKeywords {
		matched := false

		for _, kw := range entry.keywords {
			if strings.Contains(titleLower, kw) {
				matched = true

				break
			}
		}

		if !matched {
			continue
		}

		weight, ok := weights[entry.category]
		if !ok {
			weight = 0.3
		}

		if weight > maxWeight {
			maxWeight = weight
		}
	}

	return maxWeight
}

// newsHalfLifeMinutes is the age at which news impact halves.
const newsHalfLifeMinutes = 15.0

// CalculateTimeDecay returns the exponential decay factor for news of the
// given age: 1.0 when fresh, ~0.5 at 15 minutes, ~0.25 at 30 minutes.
func CalculateTimeDecay(ageMinutes float64) float64 {
	if ageMinutes <= 0 {
		return 1.0
	}

	lambda := math.Ln2 / newsHalfLifeMinutes

	return math.Exp(-lambda * ageMinutes)
}

// CalculateNewsImpact aggregates the signed impact of the given events at the
// reference time. Each event within the lookback and at or above the urgency
// floor contributes categoryWeight * urgency * sentiment * timeDecay.
func CalculateNewsImpact(events []types.NewsEvent, weights map[string]float64, lookback time.Duration, now time.Time, minUrgency float64) float64 {
	lookbackStart := now.Add(-lookback)

	total := 0.0

	for _, event := range events {
		if event.Timestamp.Before(lookbackStart) {
			continue
		}

		if event.UrgencyScore < minUrgency {
			continue
		}

		ageMinutes := now.Sub(event.Timestamp).Minutes()
		decay := CalculateTimeDecay(ageMinutes)
		categoryWeight := GetCategoryWeight(event.Title, weights)

		total += categoryWeight * event.UrgencyScore * event.Sentiment * decay
	}

	return total
}

// NewsSignal generates signals from scored news events. Impact is the
// category-weighted, urgency-scaled, time-decayed sum of event sentiment;
// impact beyond the threshold produces a directional signal.
type NewsSignal struct {
	name            string
	weight          float64
	minUrgency      float64
	lookback        time.Duration
	categoryWeights map[string]float64
	impactThreshold float64
}

// NewNewsSignal creates a news generator with default configuration: 0.5
// minimum urgency, 30 minute lookback and 0.1 impact threshold.
func NewNewsSignal(name string) *NewsSignal {
	return &NewsSignal{
		name:            name,
		weight:          1.0,
		minUrgency:      0.5,
		lookback:        30 * time.Minute,
		impactThreshold: 0.1,
	}
}

// DefaultNewsSignal returns the generator under the name "news_sentiment".
func DefaultNewsSignal() *NewsSignal {
	return NewNewsSignal("news_sentiment")
}

// WithMinUrgency sets the urgency floor, clamped to [0, 1].
func (s *NewsSignal) WithMinUrgency(urgency float64) *NewsSignal {
	s.minUrgency = clamp(urgency, 0, 1)

	return s
}

// WithLookback sets the lookback window for considering news.
func (s *NewsSignal) WithLookback(lookback time.Duration) *NewsSignal {
	s.lookback = lookback

	return s
}

// WithCategoryWeights overrides the default category weights.
func (s *NewsSignal) WithCategoryWeights(weights map[string]float64) *NewsSignal {
	s.categoryWeights = weights

	return s
}

// WithWeight sets the weight for composite aggregation.
func (s *NewsSignal) WithWeight(weight float64) *NewsSignal {
	s.weight = weight

	return s
}

// WithImpactThreshold sets the directional threshold (absolute value taken).
func (s *NewsSignal) WithImpactThreshold(threshold float64) *NewsSignal {
	s.impactThreshold = math.Abs(threshold)

	return s
}

func (s *NewsSignal) effectiveWeights() map[string]float64 {
	if s.categoryWeights != nil {
		return s.categoryWeights
	}

	return DefaultCategoryWeights()
}

// Compute implements signal.Generator.
func (s *NewsSignal) Compute(ctx *types.SignalContext) (types.SignalValue, error) {
	events := ctx.NewsEvents
	if len(events) == 0 {
		return types.Neutral().
			WithMetadata("event_count", 0).
			WithMetadata("impact", 0), nil
	}

	weights := s.effectiveWeights()
	impact := CalculateNewsImpact(events, weights, s.lookback, ctx.Timestamp, s.minUrgency)

	lookbackStart := ctx.Timestamp.Add(-s.lookback)
	eventCount := 0

	for _, event := range events {
		if !event.Timestamp.Before(lookbackStart) && event.UrgencyScore >= s.minUrgency {
			eventCount++
		}
	}

	direction := types.DirectionNeutral
	strength := 0.0

	switch {
	case impact > s.impactThreshold:
		direction = types.DirectionUp
		strength = clamp(impact/2, 0, 1)
	case impact < -s.impactThreshold:
		direction = types.DirectionDown
		strength = clamp(-impact/2, 0, 1)
	}

	signal, err := types.NewSignalValue(direction, strength, 0)
	if err != nil {
		return types.SignalValue{}, err
	}

	return signal.
		WithMetadata("event_count", float64(eventCount)).
		WithMetadata("impact", impact).
		WithMetadata("impact_threshold", s.impactThreshold).
		WithMetadata("min_urgency", s.minUrgency).
		WithMetadata("lookback_minutes", s.lookback.Minutes()), nil
}

// Name implements signal.Generator.
func (s *NewsSignal) Name() string {
	return s.name
}

// Weight implements signal.Generator.
func (s *NewsSignal) Weight() float64 {
	return s.weight
}
