package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-signals/internal/logger"
	"github.com/rxtech-lab/argo-signals/internal/store"
	"github.com/rxtech-lab/argo-signals/internal/types"
	"github.com/rxtech-lab/argo-signals/pkg/errors"
)

// DepthUpdate is a Binance futures partial book depth message. Levels arrive
// as [price, quantity] string pairs.
type DepthUpdate struct {
	EventType string      `json:"e"`
	EventTime int64       `json:"E"`
	Symbol    string      `json:"s"`
	Bids      [][2]string `json:"b"`
	Asks      [][2]string `json:"a"`
}

// streamEnvelope wraps combined-stream payloads.
type streamEnvelope struct {
	Stream string      `json:"stream"`
	Data   DepthUpdate `json:"data"`
}

// ParseLevels converts raw [price, quantity] pairs into price levels,
// skipping pairs that fail to parse.
func ParseLevels(raw [][2]string) []types.PriceLevel {
	levels := make([]types.PriceLevel, 0, len(raw))

	for _, pair := range raw {
		price, err := decimal.NewFromString(pair[0])
		if err != nil {
			continue
		}

		quantity, err := decimal.NewFromString(pair[1])
		if err != nil {
			continue
		}

		levels = append(levels, types.PriceLevel{Price: price, Quantity: quantity})
	}

	return levels
}

// SpreadBps returns the bid/ask spread in basis points of the mid price, or
// 0 when either side is empty.
func SpreadBps(book *types.OrderBookSnapshot) float64 {
	spread := book.Spread()
	mid := book.MidPrice()

	if spread.IsNone() || mid.IsNone() || !mid.Unwrap().IsPositive() {
		return 0
	}

	bps, _ := spread.Unwrap().Div(mid.Unwrap()).Mul(decimal.NewFromInt(10_000)).Float64()

	return bps
}

// BookAggregator collapses 100ms depth updates into one snapshot per second,
// keeping the latest book state seen within each second.
type BookAggregator struct {
	symbol   string
	exchange string

	lastSecond int64
	bids       []types.PriceLevel
	asks       []types.PriceLevel
	eventTime  int64
}

// NewBookAggregator creates an aggregator tagging records with the given
// symbol and exchange.
func NewBookAggregator(symbol, exchange string) *BookAggregator {
	return &BookAggregator{symbol: symbol, exchange: exchange}
}

// Process absorbs a depth update. Crossing a second boundary returns the
// snapshot accumulated for the previous second.
func (a *BookAggregator) Process(update DepthUpdate) (store.OrderBookRecord, bool) {
	second := update.EventTime / 1000

	var (
		record  store.OrderBookRecord
		emitted bool
	)

	if a.lastSecond != 0 && second > a.lastSecond && len(a.bids) > 0 {
		record = a.snapshot()
		emitted = true
	}

	a.lastSecond = second
	a.bids = ParseLevels(update.Bids)
	a.asks = ParseLevels(update.Asks)
	a.eventTime = update.EventTime

	return record, emitted
}

// Flush returns the pending snapshot, if any. Used on shutdown.
func (a *BookAggregator) Flush() (store.OrderBookRecord, bool) {
	if len(a.bids) == 0 {
		return store.OrderBookRecord{}, false
	}

	return a.snapshot(), true
}

func (a *BookAggregator) snapshot() store.OrderBookRecord {
	book := &types.OrderBookSnapshot{Bids: a.bids, Asks: a.asks}

	mid := 0.0
	if price := book.MidPrice(); price.IsSome() {
		mid, _ = price.Unwrap().Float64()
	}

	return store.OrderBookRecord{
		Timestamp: time.UnixMilli(a.eventTime).UTC(),
		Symbol:    a.symbol,
		Exchange:  a.exchange,
		Bids:      a.bids,
		Asks:      a.asks,
		Imbalance: book.Imbalance(),
		MidPrice:  mid,
		SpreadBps: SpreadBps(book),
	}
}

// BookSink receives aggregated order book snapshots.
type BookSink interface {
	InsertOrderBook(record store.OrderBookRecord) error
}

// OrderBookCollector streams 20-level depth from Binance futures and writes
// one snapshot per second.
type OrderBookCollector struct {
	config Config
	sink   BookSink
	events chan<- Event
	stats  *Stats
	logger *logger.Logger
}

// NewOrderBookCollector creates an order book collector writing to the sink.
func NewOrderBookCollector(config Config, sink BookSink) *OrderBookCollector {
	return &OrderBookCollector{
		config: config,
		sink:   sink,
		stats:  &Stats{},
		logger: logger.NewNopLogger(),
	}
}

// WithEvents sets the monitoring event channel.
func (c *OrderBookCollector) WithEvents(events chan<- Event) *OrderBookCollector {
	c.events = events

	return c
}

// WithLogger sets the collector logger.
func (c *OrderBookCollector) WithLogger(log *logger.Logger) *OrderBookCollector {
	if log != nil {
		c.logger = log
	}

	return c
}

// Stats returns the collector statistics.
func (c *OrderBookCollector) Stats() *Stats {
	return c.stats
}

// StreamURL returns the combined-stream URL for 20-level depth at 100ms.
func (c *OrderBookCollector) StreamURL() string {
	return fmt.Sprintf("%s?streams=%s@depth20@100ms", binanceFuturesStreamWS, c.config.Symbol)
}

// Run streams depth updates until the context is cancelled, reconnecting on
// failure.
func (c *OrderBookCollector) Run(ctx context.Context) error {
	return runWithReconnect(ctx, c.config, "orderbook", c.events, c.stats, c.logger, c.collectStream)
}

func (c *OrderBookCollector) collectStream(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.StreamURL(), nil)
	if err != nil {
		return errors.Wrap(errors.ErrCodeCollectorConnect, "failed to connect to depth stream", err)
	}
	defer conn.Close()

	// Closing the connection unblocks the read loop on cancellation.
	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	emitEvent(c.events, Event{Type: EventConnected, Source: "orderbook"})
	c.logger.Info("order book stream connected", zap.String("symbol", c.config.Symbol))

	aggregator := NewBookAggregator(c.config.SymbolUpper(), c.config.Exchange)

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				c.flush(aggregator)

				return nil
			}

			emitEvent(c.events, Event{Type: EventDisconnected, Source: "orderbook", Reason: err.Error()})

			return errors.Wrap(errors.ErrCodeCollectorStream, "depth stream read failed", err)
		}

		var envelope streamEnvelope
		if err := json.Unmarshal(payload, &envelope); err != nil {
			c.stats.ErrorOccurred()
			c.logger.Warn("failed to decode depth update", zap.Error(err))

			continue
		}

		record, ok := aggregator.Process(envelope.Data)
		if !ok {
			continue
		}

		if err := c.sink.InsertOrderBook(record); err != nil {
			c.stats.ErrorOccurred()
			c.logger.Warn("failed to persist order book snapshot", zap.Error(err))

			continue
		}

		c.stats.RecordCollected()
	}
}

func (c *OrderBookCollector) flush(aggregator *BookAggregator) {
	record, ok := aggregator.Flush()
	if !ok {
		return
	}

	if err := c.sink.InsertOrderBook(record); err != nil {
		c.logger.Warn("failed to flush order book snapshot", zap.Error(err))

		return
	}

	c.stats.RecordCollected()
}
