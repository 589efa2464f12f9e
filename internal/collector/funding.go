package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-signals/internal/logger"
	"github.com/rxtech-lab/argo-signals/internal/stats"
	"github.com/rxtech-lab/argo-signals/internal/store"
	"github.com/rxtech-lab/argo-signals/pkg/errors"
)

// defaultFundingHistorySize covers 30 days of 8 hour funding periods.
const defaultFundingHistorySize = 90

// MarkPriceUpdate is a Binance futures mark price stream message carrying the
// current funding rate.
type MarkPriceUpdate struct {
	EventType       string `json:"e"`
	EventTime       int64  `json:"E"`
	Symbol          string `json:"s"`
	MarkPrice       string `json:"p"`
	IndexPrice      string `json:"i"`
	FundingRate     string `json:"r"`
	NextFundingTime int64  `json:"T"`
}

// FundingSink receives enriched funding rate records.
type FundingSink interface {
	InsertFundingRate(record store.FundingRateRecord) error
}

// FundingCollector streams funding rates from the Binance futures mark price
// stream and enriches each observation with its rolling z-score and
// percentile before persisting it.
type FundingCollector struct {
	config  Config
	sink    FundingSink
	history *stats.RollingHistory
	events  chan<- Event
	stats   *Stats
	logger  *logger.Logger
}

// NewFundingCollector creates a funding collector writing to the sink.
func NewFundingCollector(config Config, sink FundingSink) *FundingCollector {
	return &FundingCollector{
		config:  config,
		sink:    sink,
		history: stats.NewRollingHistory(defaultFundingHistorySize),
		stats:   &Stats{},
		logger:  logger.NewNopLogger(),
	}
}

// WithHistorySize replaces the rolling statistical history capacity.
func (c *FundingCollector) WithHistorySize(size int) *FundingCollector {
	c.history = stats.NewRollingHistory(size)

	return c
}

// WithEvents sets the monitoring event channel.
func (c *FundingCollector) WithEvents(events chan<- Event) *FundingCollector {
	c.events = events

	return c
}

// WithLogger sets the collector logger.
func (c *FundingCollector) WithLogger(log *logger.Logger) *FundingCollector {
	if log != nil {
		c.logger = log
	}

	return c
}

// Stats returns the collector statistics.
func (c *FundingCollector) Stats() *Stats {
	return c.stats
}

// StreamURL returns the mark price stream URL for the configured symbol.
func (c *FundingCollector) StreamURL() string {
	return fmt.Sprintf("%s%s@markPrice", binanceFuturesWS, c.config.Symbol)
}

// Enrich builds a funding record for the rate, attaching z-score and
// percentile against the history collected so far, then records the rate in
// the history. Statistical context stays nil until enough observations
// accumulate.
func (c *FundingCollector) Enrich(timestamp time.Time, rate float64) store.FundingRateRecord {
	record := store.FundingRateRecord{
		Timestamp: timestamp,
		Symbol:    c.config.SymbolUpper(),
		Exchange:  c.config.Exchange,
		Rate:      rate,
	}

	if zscore := c.history.ZScore(rate); zscore.IsSome() {
		value := zscore.Unwrap()
		record.ZScore = &value
	}

	if percentile := c.history.Percentile(rate); percentile.IsSome() {
		value := percentile.Unwrap()
		record.Percentile = &value
	}

	c.history.Push(rate)

	return record
}

// Run streams funding rates until the context is cancelled, reconnecting on
// failure.
func (c *FundingCollector) Run(ctx context.Context) error {
	return runWithReconnect(ctx, c.config, "funding", c.events, c.stats, c.logger, c.collectStream)
}

func (c *FundingCollector) collectStream(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.StreamURL(), nil)
	if err != nil {
		return errors.Wrap(errors.ErrCodeCollectorConnect, "failed to connect to mark price stream", err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	emitEvent(c.events, Event{Type: EventConnected, Source: "funding"})
	c.logger.Info("funding stream connected", zap.String("symbol", c.config.Symbol))

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			emitEvent(c.events, Event{Type: EventDisconnected, Source: "funding", Reason: err.Error()})

			return errors.Wrap(errors.ErrCodeCollectorStream, "mark price stream read failed", err)
		}

		var update MarkPriceUpdate
		if err := json.Unmarshal(payload, &update); err != nil {
			c.stats.ErrorOccurred()
			c.logger.Warn("failed to decode mark price update", zap.Error(err))

			continue
		}

		rate, err := strconv.ParseFloat(update.FundingRate, 64)
		if err != nil {
			c.stats.ErrorOccurred()
			c.logger.Warn("failed to parse funding rate", zap.String("rate", update.FundingRate), zap.Error(err))

			continue
		}

		record := c.Enrich(time.UnixMilli(update.EventTime).UTC(), rate)

		if err := c.sink.InsertFundingRate(record); err != nil {
			c.stats.ErrorOccurred()
			c.logger.Warn("failed to persist funding rate", zap.Error(err))

			continue
		}

		c.stats.RecordCollected()
	}
}
