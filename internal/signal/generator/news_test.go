package generator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rxtech-lab/argo-signals/internal/types"
)

func newsEvent(title string, sentiment, urgency float64, age time.Duration, now time.Time) types.NewsEvent {
	return types.NewsEvent{
		Timestamp:    now.Add(-age),
		Source:       "test",
		Title:        title,
		Sentiment:    sentiment,
		UrgencyScore: urgency,
		Currencies:   []string{"BTC"},
	}
}

func TestTimeDecayFreshNews(t *testing.T) {
	assert.InDelta(t, 1.0, CalculateTimeDecay(0), 0.01)
}

func TestTimeDecayHalfLife(t *testing.T) {
	assert.InDelta(t, 0.5, CalculateTimeDecay(15), 0.01)
	assert.InDelta(t, 0.25, CalculateTimeDecay(30), 0.01)
}

func TestTimeDecayOldNewsNearZero(t *testing.T) {
	assert.Less(t, CalculateTimeDecay(120), 0.01)
}

func TestCategoryWeightHackHighest(t *testing.T) {
	weights := DefaultCategoryWeights()

	assert.InDelta(t, 1.0, GetCategoryWeight("Major exchange hack: funds stolen", weights), 1e-9)
	assert.InDelta(t, 0.9, GetCategoryWeight("SEC files lawsuit", weights), 1e-9)
	assert.InDelta(t, 0.7, GetCategoryWeight("BlackRock ETF inflows surge", weights), 1e-9)
}

func TestCategoryWeightFallsBackToOther(t *testing.T) {
	weights := DefaultCategoryWeights()

	assert.InDelta(t, 0.3, GetCategoryWeight("Quiet day in crypto markets", weights), 1e-9)
}

func TestCategoryWeightPicksHighestMatch(t *testing.T) {
	weights := DefaultCategoryWeights()

	// Matches both "exchange" (0.6) and "hack" (1.0); the highest wins.
	assert.InDelta(t, 1.0, GetCategoryWeight("Binance exchange hack reported", weights), 1e-9)
}

func TestNewsImpactFiltersLookbackAndUrgency(t *testing.T) {
	now := time.Now()
	weights := DefaultCategoryWeights()

	events := []types.NewsEvent{
		newsEvent("ETF approval imminent", 1, 0.9, 2*time.Hour, now), // outside lookback
		newsEvent("ETF approval imminent", 1, 0.2, time.Minute, now), // below urgency floor
	}

	impact := CalculateNewsImpact(events, weights, 30*time.Minute, now, 0.5)
	assert.Zero(t, impact)
}

func TestNewsImpactSignsFollowSentiment(t *testing.T) {
	now := time.Now()
	weights := DefaultCategoryWeights()

	bullish := []types.NewsEvent{newsEvent("ETF inflows surge", 1, 0.9, time.Minute, now)}
	bearish := []types.NewsEvent{newsEvent("Exchange hack: funds stolen", -1, 0.9, time.Minute, now)}

	assert.Greater(t, CalculateNewsImpact(bullish, weights, 30*time.Minute, now, 0.5), 0.0)
	assert.Less(t, CalculateNewsImpact(bearish, weights, 30*time.Minute, now, 0.5), 0.0)
}

func TestNewsImpactDecaysWithAge(t *testing.T) {
	now := time.Now()
	weights := DefaultCategoryWeights()

	fresh := []types.NewsEvent{newsEvent("ETF inflows surge", 1, 0.9, 0, now)}
	stale := []types.NewsEvent{newsEvent("ETF inflows surge", 1, 0.9, 15*time.Minute, now)}

	freshImpact := CalculateNewsImpact(fresh, weights, 30*time.Minute, now, 0.5)
	staleImpact := CalculateNewsImpact(stale, weights, 30*time.Minute, now, 0.5)

	assert.InDelta(t, freshImpact*0.5, staleImpact, 0.01)
}

func TestNewsSignalNeutralWithoutEvents(t *testing.T) {
	gen := DefaultNewsSignal()

	signal, err := gen.Compute(types.NewSignalContext(time.Now(), "BTCUSDT"))
	require.NoError(t, err)

	assert.Equal(t, types.DirectionNeutral, signal.Direction)
	assert.Zero(t, signal.Metadata["event_count"])
}

func TestNewsSignalBullishOnPositiveImpact(t *testing.T) {
	gen := DefaultNewsSignal()
	now := time.Now()

	ctx := types.NewSignalContext(now, "BTCUSDT").WithNewsEvents([]types.NewsEvent{
		newsEvent("BlackRock ETF inflows surge", 1, 0.9, time.Minute, now),
		newsEvent("Whale accumulation: billion dollar buy", 1, 0.8, 5*time.Minute, now),
	})

	signal, err := gen.Compute(ctx)
	require.NoError(t, err)

	assert.Equal(t, types.DirectionUp, signal.Direction)
	assert.Greater(t, signal.Strength, 0.0)
	assert.InDelta(t, 2, signal.Metadata["event_count"], 1e-9)
	assert.Greater(t, signal.Metadata["impact"], 0.1)
}

func TestNewsSignalBearishOnHack(t *testing.T) {
	gen := DefaultNewsSignal()
	now := time.Now()

	ctx := types.NewSignalContext(now, "BTCUSDT").WithNewsEvents([]types.NewsEvent{
		newsEvent("Major exchange hack: $100M stolen", -1, 1.0, time.Minute, now),
	})

	signal, err := gen.Compute(ctx)
	require.NoError(t, err)

	assert.Equal(t, types.DirectionDown, signal.Direction)
	assert.Greater(t, signal.Strength, 0.0)
	assert.Less(t, signal.Metadata["impact"], -0.1)
}

func TestNewsSignalNeutralBelowImpactThreshold(t *testing.T) {
	gen := DefaultNewsSignal()
	now := time.Now()

	// Low-weight category with modest urgency stays under the threshold.
	ctx := types.NewSignalContext(now, "BTCUSDT").WithNewsEvents([]types.NewsEvent{
		newsEvent("Quiet day in crypto markets", 1, 0.5, 20*time.Minute, now),
	})

	signal, err := gen.Compute(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.DirectionNeutral, signal.Direction)
}

func TestNewsSignalBuilders(t *testing.T) {
	gen := NewNewsSignal("news").
		WithMinUrgency(1.5).
		WithLookback(time.Hour).
		WithImpactThreshold(-0.2).
		WithWeight(2.0)

	assert.Equal(t, "news", gen.Name())
	assert.InDelta(t, 2.0, gen.Weight(), 1e-9)

	now := time.Now()
	ctx := types.NewSignalContext(now, "BTCUSDT").WithNewsEvents([]types.NewsEvent{
		newsEvent("ETF inflows surge", 1, 0.9, 45*time.Minute, now),
	})

	signal, err := gen.Compute(ctx)
	require.NoError(t, err)

	// Urgency floor clamps to 1.0, leaving the 0.9 event below it.
	assert.InDelta(t, 0, signal.Metadata["event_count"], 1e-9)
	assert.InDelta(t, 0.2, signal.Metadata["impact_threshold"], 1e-9)
	assert.InDelta(t, 60, signal.Metadata["lookback_minutes"], 1e-9)
}
