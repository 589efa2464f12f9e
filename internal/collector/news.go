package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-signals/internal/logger"
	"github.com/rxtech-lab/argo-signals/internal/store"
	"github.com/rxtech-lab/argo-signals/pkg/errors"
)

// NewsCategory classifies a headline by its market-moving potential.
type NewsCategory string

const (
	CategoryHack       NewsCategory = "hack"
	CategoryRegulation NewsCategory = "regulation"
	CategoryWhale      NewsCategory = "whale"
	CategoryEtf        NewsCategory = "etf"
	CategoryExchange   NewsCategory = "exchange"
	CategoryTechnical  NewsCategory = "technical"
	CategoryOther      NewsCategory = "other"
)

// BaseUrgency returns the category's base urgency score before time decay.
func (c NewsCategory) BaseUrgency() float64 {
	switch c {
	case CategoryHack:
		return 1.0
	case CategoryRegulation:
		return 0.9
	case CategoryWhale:
		return 0.8
	case CategoryEtf:
		return 0.7
	case CategoryExchange:
		return 0.6
	case CategoryTechnical:
		return 0.5
	default:
		return 0.3
	}
}

var categoryKeywordSets = []struct {
	category NewsCategory
	keywords []string
}{
	{CategoryHack, []string{"hack", "exploit", "vulnerability", "breach", "attack", "stolen"}},
	{CategoryRegulation, []string{"sec", "regulation", "ban", "legal", "court", "lawsuit", "congress", "cftc"}},
	{CategoryWhale, []string{"whale", "large", "million", "billion", "dormant", "massive", "huge"}},
	{CategoryEtf, []string{"etf", "fund", "blackrock", "fidelity", "grayscale", "ishares"}},
	{CategoryExchange, []string{"binance", "coinbase", "kraken", "exchange", "listing", "delist"}},
	{CategoryTechnical, []string{"halving", "difficulty", "hashrate", "mining", "block", "mempool"}},
}

// CategorizeNews returns every category whose keywords appear in the title,
// highest urgency first. A title matching nothing yields CategoryOther.
func CategorizeNews(title string) []NewsCategory {
	lower := strings.ToLower(title)

	var categories []NewsCategory

	for _, set := range categoryKeywordSets {
		for _, keyword := range set.keywords {
			if strings.Contains(lower, keyword) {
				categories = append(categories, set.category)

				break
			}
		}
	}

	if len(categories) == 0 {
		return []NewsCategory{CategoryOther}
	}

	sort.SliceStable(categories, func(i, j int) bool {
		return categories[i].BaseUrgency() > categories[j].BaseUrgency()
	})

	return categories
}

// CalculateUrgency scores a headline by its strongest category, decayed
// exponentially with age: urgency = base * exp(-0.1 * hours). The result is
// clamped to [0, 1].
func CalculateUrgency(categories []NewsCategory, publishedAt, now time.Time) float64 {
	if len(categories) == 0 {
		return 0
	}

	hours := now.Sub(publishedAt).Hours()
	if hours < 0 {
		hours = 0
	}

	urgency := categories[0].BaseUrgency() * math.Exp(-0.1*hours)

	return math.Min(math.Max(urgency, 0), 1)
}

// DetermineSentiment maps vote counts to a sentiment value: above a 60%
// positive ratio is bullish (+1), below 40% is bearish (-1), anything else
// including no votes is neutral (0).
func DetermineSentiment(positive, negative int) float64 {
	total := positive + negative
	if total == 0 {
		return 0
	}

	ratio := float64(positive) / float64(total)

	switch {
	case ratio > 0.6:
		return 1
	case ratio < 0.4:
		return -1
	default:
		return 0
	}
}

// NewsConfig configures the news poller.
type NewsConfig struct {
	// APIKey authenticates against the news API.
	APIKey string
	// BaseURL of the CryptoPanic-compatible API.
	BaseURL string
	// PollInterval between fetches.
	PollInterval time.Duration
	// Currencies filter, e.g. ["BTC"].
	Currencies []string
}

// NewNewsConfig returns a config polling every minute for BTC news.
func NewNewsConfig(apiKey string) NewsConfig {
	return NewsConfig{
		APIKey:       apiKey,
		BaseURL:      "https://cryptopanic.com/api/v1",
		PollInterval: time.Minute,
		Currencies:   []string{"BTC"},
	}
}

// WithBaseURL overrides the API base URL. Tests point this at a local server.
func (c NewsConfig) WithBaseURL(base string) NewsConfig {
	c.BaseURL = base

	return c
}

// WithPollInterval sets the poll interval.
func (c NewsConfig) WithPollInterval(interval time.Duration) NewsConfig {
	c.PollInterval = interval

	return c
}

// WithCurrencies sets the currency filter.
func (c NewsConfig) WithCurrencies(currencies []string) NewsConfig {
	c.Currencies = currencies

	return c
}

// newsPost is one post in the API response.
type newsPost struct {
	ID          json.Number `json:"id"`
	Title       string      `json:"title"`
	PublishedAt time.Time   `json:"published_at"`
	Source      struct {
		Title string `json:"title"`
	} `json:"source"`
	Votes struct {
		Positive int `json:"positive"`
		Negative int `json:"negative"`
	} `json:"votes"`
	Currencies []struct {
		Code string `json:"code"`
	} `json:"currencies"`
}

type newsResponse struct {
	Results []newsPost `json:"results"`
}

// NewsSink receives scored news records.
type NewsSink interface {
	InsertNewsEvent(record store.NewsRecord) error
}

// NewsCollector polls a CryptoPanic-compatible API, scores each headline for
// category, urgency and sentiment, and persists unseen posts.
type NewsCollector struct {
	config NewsConfig
	http   *http.Client
	sink   NewsSink
	seen   map[string]struct{}
	events chan<- Event
	stats  *Stats
	logger *logger.Logger
}

// NewNewsCollector creates a news collector writing to the sink.
func NewNewsCollector(config NewsConfig, sink NewsSink) *NewsCollector {
	return &NewsCollector{
		config: config,
		http:   &http.Client{Timeout: 30 * time.Second},
		sink:   sink,
		seen:   make(map[string]struct{}),
		stats:  &Stats{},
		logger: logger.NewNopLogger(),
	}
}

// WithEvents sets the monitoring event channel.
func (c *NewsCollector) WithEvents(events chan<- Event) *NewsCollector {
	c.events = events

	return c
}

// WithLogger sets the collector logger.
func (c *NewsCollector) WithLogger(log *logger.Logger) *NewsCollector {
	if log != nil {
		c.logger = log
	}

	return c
}

// Stats returns the collector statistics.
func (c *NewsCollector) Stats() *Stats {
	return c.stats
}

// FetchURL returns the posts endpoint with auth and currency filters applied.
func (c *NewsCollector) FetchURL() string {
	query := url.Values{}
	query.Set("auth_token", c.config.APIKey)

	if len(c.config.Currencies) > 0 {
		query.Set("currencies", strings.Join(c.config.Currencies, ","))
	}

	return fmt.Sprintf("%s/posts/?%s", c.config.BaseURL, query.Encode())
}

// Poll fetches the latest posts once and persists unseen ones. Returns the
// number of new records written.
func (c *NewsCollector) Poll(ctx context.Context) (int, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.FetchURL(), nil)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeCollectorConnect, "failed to build news request", err)
	}

	response, err := c.http.Do(request)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeCollectorConnect, "news fetch failed", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return 0, errors.Newf(errors.ErrCodeCollectorStream, "news API returned status %d", response.StatusCode)
	}

	var parsed newsResponse
	if err := json.NewDecoder(response.Body).Decode(&parsed); err != nil {
		return 0, errors.Wrap(errors.ErrCodeCollectorParse, "failed to decode news response", err)
	}

	now := time.Now()
	written := 0

	for _, post := range parsed.Results {
		id := post.ID.String()
		if _, ok := c.seen[id]; ok {
			continue
		}

		record := c.score(post, now)

		if err := c.sink.InsertNewsEvent(record); err != nil {
			c.stats.ErrorOccurred()
			c.logger.Warn("failed to persist news event", zap.Error(err))

			continue
		}

		c.seen[id] = struct{}{}
		c.stats.RecordCollected()
		written++
	}

	return written, nil
}

// Run polls on the configured interval until the context is cancelled.
func (c *NewsCollector) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.config.PollInterval)
	defer ticker.Stop()

	for {
		written, err := c.Poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			c.stats.ErrorOccurred()
			c.logger.Warn("news poll failed", zap.Error(err))
			emitEvent(c.events, Event{Type: EventError, Source: "news", Reason: err.Error()})
		} else if written > 0 {
			c.logger.Debug("collected news events", zap.Int("count", written))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (c *NewsCollector) score(post newsPost, now time.Time) store.NewsRecord {
	categories := CategorizeNews(post.Title)

	currencies := make([]string, 0, len(post.Currencies))
	for _, currency := range post.Currencies {
		currencies = append(currencies, currency.Code)
	}

	return store.NewsRecord{
		Timestamp:    post.PublishedAt,
		Source:       post.Source.Title,
		Title:        post.Title,
		Sentiment:    DetermineSentiment(post.Votes.Positive, post.Votes.Negative),
		UrgencyScore: CalculateUrgency(categories, post.PublishedAt, now),
		Currencies:   currencies,
	}
}
