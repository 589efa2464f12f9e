package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-signals/internal/logger"
	"github.com/rxtech-lab/argo-signals/internal/store"
	"github.com/rxtech-lab/argo-signals/internal/types"
	"github.com/rxtech-lab/argo-signals/pkg/errors"
)

// ForceOrderEvent is a Binance futures liquidation stream message.
type ForceOrderEvent struct {
	EventType string     `json:"e"`
	EventTime int64      `json:"E"`
	Order     ForceOrder `json:"o"`
}

// ForceOrder holds the liquidated order details.
type ForceOrder struct {
	Symbol string `json:"s"`
	// Side is SELL when a long was liquidated, BUY when a short was.
	Side           string `json:"S"`
	Price          string `json:"p"`
	AveragePrice   string `json:"ap"`
	FilledQuantity string `json:"z"`
	TradeTime      int64  `json:"T"`
}

// LiquidationSide returns "long" or "short" for the liquidated position.
func (o ForceOrder) LiquidationSide() string {
	if o.Side == "SELL" {
		return "long"
	}

	return "short"
}

// NotionalUSD returns quantity times price, or 0 when either fails to parse.
func (o ForceOrder) NotionalUSD() float64 {
	quantity, err := strconv.ParseFloat(o.FilledQuantity, 64)
	if err != nil {
		return 0
	}

	price, err := strconv.ParseFloat(o.Price, 64)
	if err != nil {
		return 0
	}

	return quantity * price
}

// windowSpec pairs a rolling window length with its stored entries.
type windowSpec struct {
	length  time.Duration
	entries []store.LiquidationRecord
}

// RollingWindows keeps liquidations bucketed into 5 minute, 1 hour, 4 hour
// and 24 hour rolling windows for aggregate queries.
type RollingWindows struct {
	windows []windowSpec
}

// NewRollingWindows creates the standard window set.
func NewRollingWindows() *RollingWindows {
	return &RollingWindows{
		windows: []windowSpec{
			{length: 5 * time.Minute},
			{length: time.Hour},
			{length: 4 * time.Hour},
			{length: 24 * time.Hour},
		},
	}
}

// Add records a liquidation in every window and prunes expired entries
// relative to its timestamp.
func (w *RollingWindows) Add(record store.LiquidationRecord) {
	for i := range w.windows {
		w.windows[i].entries = append(w.windows[i].entries, record)
	}

	w.prune(record.Timestamp)
}

func (w *RollingWindows) prune(now time.Time) {
	for i := range w.windows {
		cutoff := now.Add(-w.windows[i].length)
		entries := w.windows[i].entries

		start := 0
		for start < len(entries) && entries[start].Timestamp.Before(cutoff) {
			start++
		}

		w.windows[i].entries = entries[start:]
	}
}

// Aggregate returns the aggregate for the window of the given length, or
// false when no such window is tracked.
func (w *RollingWindows) Aggregate(length time.Duration) (types.LiquidationAggregate, bool) {
	for _, window := range w.windows {
		if window.length != length {
			continue
		}

		aggregate := types.LiquidationAggregate{
			WindowMinutes:  int(window.length / time.Minute),
			LongVolumeUSD:  decimal.Zero,
			ShortVolumeUSD: decimal.Zero,
			NetDeltaUSD:    decimal.Zero,
		}

		for _, record := range window.entries {
			notional := decimal.NewFromFloat(record.NotionalUSD)

			if record.Side == "long" {
				aggregate.LongVolumeUSD = aggregate.LongVolumeUSD.Add(notional)
				aggregate.CountLong++
			} else {
				aggregate.ShortVolumeUSD = aggregate.ShortVolumeUSD.Add(notional)
				aggregate.CountShort++
			}
		}

		aggregate.NetDeltaUSD = aggregate.LongVolumeUSD.Sub(aggregate.ShortVolumeUSD)

		return aggregate, true
	}

	return types.LiquidationAggregate{}, false
}

// LiquidationSink receives parsed liquidations.
type LiquidationSink interface {
	InsertLiquidation(record store.LiquidationRecord) error
}

// LiquidationCollector streams forced liquidations from Binance futures,
// persists each event and maintains rolling window aggregates.
type LiquidationCollector struct {
	config  Config
	sink    LiquidationSink
	windows *RollingWindows
	events  chan<- Event
	stats   *Stats
	logger  *logger.Logger
}

// NewLiquidationCollector creates a liquidation collector writing to the sink.
func NewLiquidationCollector(config Config, sink LiquidationSink) *LiquidationCollector {
	return &LiquidationCollector{
		config:  config,
		sink:    sink,
		windows: NewRollingWindows(),
		stats:   &Stats{},
		logger:  logger.NewNopLogger(),
	}
}

// WithEvents sets the monitoring event channel.
func (c *LiquidationCollector) WithEvents(events chan<- Event) *LiquidationCollector {
	c.events = events

	return c
}

// WithLogger sets the collector logger.
func (c *LiquidationCollector) WithLogger(log *logger.Logger) *LiquidationCollector {
	if log != nil {
		c.logger = log
	}

	return c
}

// Stats returns the collector statistics.
func (c *LiquidationCollector) Stats() *Stats {
	return c.stats
}

// Windows returns the rolling window aggregates.
func (c *LiquidationCollector) Windows() *RollingWindows {
	return c.windows
}

// StreamURL returns the forceOrder stream URL for the configured symbol.
func (c *LiquidationCollector) StreamURL() string {
	return fmt.Sprintf("%s%s@forceOrder", binanceFuturesWS, c.config.Symbol)
}

// Run streams liquidations until the context is cancelled, reconnecting on
// failure.
func (c *LiquidationCollector) Run(ctx context.Context) error {
	return runWithReconnect(ctx, c.config, "liquidation", c.events, c.stats, c.logger, c.collectStream)
}

func (c *LiquidationCollector) collectStream(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.StreamURL(), nil)
	if err != nil {
		return errors.Wrap(errors.ErrCodeCollectorConnect, "failed to connect to liquidation stream", err)
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

	emitEvent(c.events, Event{Type: EventConnected, Source: "liquidation"})
	c.logger.Info("liquidation stream connected", zap.String("symbol", c.config.Symbol))

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			emitEvent(c.events, Event{Type: EventDisconnected, Source: "liquidation", Reason: err.Error()})

			return errors.Wrap(errors.ErrCodeCollectorStream, "liquidation stream read failed", err)
		}

		var event ForceOrderEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			c.stats.ErrorOccurred()
			c.logger.Warn("failed to decode liquidation event", zap.Error(err))

			continue
		}

		record := c.toRecord(event)
		c.windows.Add(record)

		if err := c.sink.InsertLiquidation(record); err != nil {
			c.stats.ErrorOccurred()
			c.logger.Warn("failed to persist liquidation", zap.Error(err))

			continue
		}

		c.stats.RecordCollected()
	}
}

func (c *LiquidationCollector) toRecord(event ForceOrderEvent) store.LiquidationRecord {
	order := event.Order

	quantity, _ := strconv.ParseFloat(order.FilledQuantity, 64)
	price, _ := strconv.ParseFloat(order.Price, 64)

	return store.LiquidationRecord{
		Timestamp:   time.UnixMilli(order.TradeTime).UTC(),
		Symbol:      c.config.SymbolUpper(),
		Exchange:    c.config.Exchange,
		Side:        order.LiquidationSide(),
		Quantity:    quantity,
		Price:       price,
		NotionalUSD: order.NotionalUSD(),
	}
}
